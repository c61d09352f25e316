package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"fknsrs.biz/p/sorm"
	"github.com/gorilla/mux"
	"github.com/monoculum/formam"

	"fknsrs.biz/p/ytnotes/internal/attachments"
	"fknsrs.biz/p/ytnotes/internal/ctxdb"
	"fknsrs.biz/p/ytnotes/internal/ctxjobqueue"
	"fknsrs.biz/p/ytnotes/internal/ctxlogger"
	"fknsrs.biz/p/ytnotes/internal/httputil"
	"fknsrs.biz/p/ytnotes/internal/jobqueue"
	"fknsrs.biz/p/ytnotes/internal/queuenames"
	"fknsrs.biz/p/ytnotes/internal/ytdirect"
	"fknsrs.biz/p/ytnotes/internal/ytutil"
	"fknsrs.biz/p/ytnotes/models"
)

// parseScopeID turns a form's subcategory selection into a scope: empty means
// the playlist's uncategorized run.
func parseScopeID(value string) (*int, error) {
	if value == "" {
		return nil, nil
	}

	id, err := strconv.Atoi(value)
	if err != nil {
		return nil, err
	}

	return &id, nil
}

// AttachAction accepts pasted video URLs, video IDs, and playlist URLs or
// IDs. Playlists are expanded into their member videos. Each video is
// resolved to a single local record and attached to the end of the chosen
// scope; videos already in that scope are skipped.
func AttachAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	playlist, err := findOwnPlaylist(r, user)
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	returnTo := "/playlists/" + strconv.Itoa(playlist.ID)

	if err := r.ParseForm(); err != nil {
		panic(err)
	}

	var input struct {
		URLsOrIDs     string `formam:"urls_or_ids"`
		SubcategoryID string `formam:"subcategory_id"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	subcategoryID, err := parseScopeID(input.SubcategoryID)
	if err != nil {
		httputil.RedirectWithError(rw, r, returnTo, "That subcategory doesn't exist.")
		return
	}

	ids, err := ytutil.ExtractAndIdentifyIDs(input.URLsOrIDs, false)
	if err != nil {
		httputil.RedirectWithError(rw, r, returnTo, "Could not extract IDs from input: "+err.Error())
		return
	}

	if len(ids) == 0 {
		httputil.RedirectWithError(rw, r, returnTo, "No IDs found in input")
		return
	}

	// Pasted videos get their metadata scraped up front; playlist expansions
	// only name their member videos, so those are created as placeholders and
	// filled in later by a metadata job.
	var videoIDs []string
	fromImport := make(map[string]bool)

	for _, id := range ids {
		switch id.Type {
		case ytutil.VideoID:
			videoIDs = append(videoIDs, id.Value)
		case ytutil.PlaylistID:
			p, err := ytdirect.GetPlaylist(r.Context(), id.Value)
			if err != nil {
				httputil.RedirectWithError(rw, r, returnTo, "Could not fetch playlist "+id.Value+": "+err.Error())
				return
			}

			for _, videoID := range p.VideoIDs {
				videoIDs = append(videoIDs, videoID)
				fromImport[videoID] = true
			}
		default:
			httputil.RedirectWithError(rw, r, returnTo, "Could not determine what to do with "+id.Value)
			return
		}
	}

	seen := make(map[string]bool)
	deduped := videoIDs[:0]
	for _, videoID := range videoIDs {
		if !seen[videoID] {
			seen[videoID] = true
			deduped = append(deduped, videoID)
		}
	}
	videoIDs = deduped

	metadata := make(map[string]attachments.VideoMetadata)

	for _, videoID := range videoIDs {
		if fromImport[videoID] {
			continue
		}

		var existing models.Video
		if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &existing, "where external_id = ?", videoID); err == nil {
			continue
		} else if err != sql.ErrNoRows {
			panic(err)
		}

		v, err := ytdirect.GetVideo(r.Context(), videoID)
		if err != nil {
			ctxlogger.GetLogger(r.Context()).WithError(err).WithField("video.external_id", videoID).Warn("could not fetch video metadata; deferring to background refresh")
			fromImport[videoID] = true
			continue
		}

		metadata[videoID] = attachments.VideoMetadata{
			Title:             v.Title,
			ChannelExternalID: v.ChannelID,
			ChannelTitle:      v.ChannelTitle,
			DurationSeconds:   v.LengthSeconds,
			Thumbnails:        v.Thumbnails,
		}
	}

	var attached, skipped int

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, videoID := range videoIDs {
			video, err := attachments.ResolveVideo(ctx, tx, videoID, metadata[videoID])
			if err != nil {
				return err
			}

			if video.Title == "" {
				if err := ctxjobqueue.Add(ctx, tx, &jobqueue.Job{
					QueueName: queuenames.VideoRefreshMetadata,
					Payload:   videoID,
				}); err != nil {
					return err
				}
			}

			if _, err := attachments.Attach(ctx, tx, playlist.ID, subcategoryID, video); err != nil {
				if errors.Is(err, attachments.ErrAlreadyAttached) {
					skipped++
					continue
				}

				return err
			}

			attached++
		}

		return nil
	}); err != nil {
		if errors.Is(err, attachments.ErrSubcategoryMismatch) {
			httputil.RedirectWithError(rw, r, returnTo, "That subcategory doesn't exist.")
			return
		}

		panic(err)
	}

	message := fmt.Sprintf("Added %d videos.", attached)
	if skipped > 0 {
		message = fmt.Sprintf("Added %d videos; %d were already there.", attached, skipped)
	}

	if attached == 0 {
		httputil.RedirectWithInformation(rw, r, returnTo, message)
		return
	}

	httputil.RedirectWithSuccess(rw, r, returnTo, message)
}

// ReorderAction rewrites the order of one scope from a list of attachment
// IDs. The list must name exactly the scope's current members; partial or
// stale lists leave the order untouched.
func ReorderAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	playlist, err := findOwnPlaylist(r, user)
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	returnTo := "/playlists/" + strconv.Itoa(playlist.ID)

	if err := r.ParseForm(); err != nil {
		panic(err)
	}

	var input struct {
		SubcategoryID string `formam:"subcategory_id"`
		Order         string `formam:"order"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	subcategoryID, err := parseScopeID(input.SubcategoryID)
	if err != nil {
		httputil.RedirectWithError(rw, r, returnTo, "That subcategory doesn't exist.")
		return
	}

	var orderedIDs []int
	for _, s := range strings.FieldsFunc(input.Order, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r' }) {
		id, err := strconv.Atoi(s)
		if err != nil {
			httputil.RedirectWithError(rw, r, returnTo, "Could not understand the new order.")
			return
		}

		orderedIDs = append(orderedIDs, id)
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return attachments.Reorder(ctx, tx, playlist.ID, subcategoryID, orderedIDs)
	}); err != nil {
		switch {
		case errors.Is(err, attachments.ErrSubcategoryMismatch):
			httputil.RedirectWithError(rw, r, returnTo, "That subcategory doesn't exist.")
		case errors.Is(err, attachments.ErrScopeMismatch):
			httputil.RedirectWithError(rw, r, returnTo, "The list has changed since you started; please try again.")
		default:
			panic(err)
		}

		return
	}

	httputil.RedirectWithSuccess(rw, r, returnTo, "Order saved.")
}

func findOwnAttachment(r *http.Request, user *models.User) (*models.Playlist, *models.PlaylistVideo, error) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		return nil, nil, sql.ErrNoRows
	}

	var attachment models.PlaylistVideo
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &attachment, "where id = ?", id); err != nil {
		return nil, nil, err
	}

	var playlist models.Playlist
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &playlist, "where id = ? and user_id = ?", attachment.PlaylistID, user.ID); err != nil {
		return nil, nil, err
	}

	return &playlist, &attachment, nil
}

// MoveAction re-scopes one attachment to another subcategory of the same
// playlist, or back to uncategorized, appending it at the end of the target.
func MoveAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	playlist, attachment, err := findOwnAttachment(r, user)
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	returnTo := "/playlists/" + strconv.Itoa(playlist.ID)

	if err := r.ParseForm(); err != nil {
		panic(err)
	}

	var input struct {
		SubcategoryID string `formam:"subcategory_id"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	subcategoryID, err := parseScopeID(input.SubcategoryID)
	if err != nil {
		httputil.RedirectWithError(rw, r, returnTo, "That subcategory doesn't exist.")
		return
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return attachments.Move(ctx, tx, attachment, subcategoryID)
	}); err != nil {
		switch {
		case errors.Is(err, attachments.ErrSubcategoryMismatch):
			httputil.RedirectWithError(rw, r, returnTo, "That subcategory doesn't exist.")
		case errors.Is(err, attachments.ErrAlreadyAttached):
			httputil.RedirectWithError(rw, r, returnTo, "That video is already in the target subcategory.")
		default:
			panic(err)
		}

		return
	}

	httputil.RedirectWithSuccess(rw, r, returnTo, "Video moved.")
}

// DetachAction removes one attachment along with its notes. If this was the
// last playlist anywhere referencing the video, the video record goes too.
func DetachAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	playlist, attachment, err := findOwnAttachment(r, user)
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return attachments.Detach(ctx, tx, attachment)
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/playlists/"+strconv.Itoa(playlist.ID), "Video removed.")
}
