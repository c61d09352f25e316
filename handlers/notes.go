package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/gorilla/mux"
	"github.com/monoculum/formam"

	"fknsrs.biz/p/ytnotes/internal/ctxdb"
	"fknsrs.biz/p/ytnotes/internal/ctxtemplate"
	"fknsrs.biz/p/ytnotes/internal/httputil"
	"fknsrs.biz/p/ytnotes/models"
)

// parseTimestamp accepts "ss", "mm:ss", or "hh:mm:ss". Empty input means the
// note isn't anchored to a point in the video.
func parseTimestamp(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return nil, fmt.Errorf("too many segments")
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid segment %q", part)
		}

		total = total*60 + n
	}

	return &total, nil
}

// AttachmentNotes shows one attached video with its notes, timestamped notes
// first in video order, then the rest oldest first.
func AttachmentNotes(rw http.ResponseWriter, r *http.Request) {
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

	var video models.VideoInPlaylist
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &video, "where playlist_video_id = ?", attachment.ID); err != nil {
		panic(err)
	}

	var notes []models.Note
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &notes, "where playlist_video_id = ? order by timestamp_seconds is null, timestamp_seconds asc, created_at asc", attachment.ID); err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_attachment_notes", map[string]interface{}{
		"Playlist": playlist,
		"Video":    video,
		"Notes":    notes,
	}); err != nil {
		panic(err)
	}
}

func NoteCreateAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	_, attachment, err := findOwnAttachment(r, user)
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	returnTo := "/attachments/" + strconv.Itoa(attachment.ID) + "/notes"

	if err := r.ParseForm(); err != nil {
		panic(err)
	}

	var input struct {
		Body      string `formam:"body"`
		Timestamp string `formam:"timestamp"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	if strings.TrimSpace(input.Body) == "" {
		httputil.RedirectWithError(rw, r, returnTo, "Notes need some text.")
		return
	}

	timestamp, err := parseTimestamp(input.Timestamp)
	if err != nil {
		httputil.RedirectWithError(rw, r, returnTo, "Could not understand the timestamp; use mm:ss or hh:mm:ss.")
		return
	}

	now := time.Now()

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.CreateRecord(ctx, tx, &models.Note{
			CreatedAt:        now,
			UpdatedAt:        now,
			UserID:           user.ID,
			PlaylistVideoID:  attachment.ID,
			Body:             input.Body,
			TimestampSeconds: timestamp,
		})
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, returnTo, "Note added.")
}

func findOwnNote(r *http.Request, user *models.User) (*models.Note, error) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		return nil, sql.ErrNoRows
	}

	var note models.Note
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &note, "where id = ? and user_id = ?", id, user.ID); err != nil {
		return nil, err
	}

	return &note, nil
}

func NoteUpdateAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	note, err := findOwnNote(r, user)
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	returnTo := "/attachments/" + strconv.Itoa(note.PlaylistVideoID) + "/notes"

	if err := r.ParseForm(); err != nil {
		panic(err)
	}

	var input struct {
		Body      string `formam:"body"`
		Timestamp string `formam:"timestamp"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	if strings.TrimSpace(input.Body) == "" {
		httputil.RedirectWithError(rw, r, returnTo, "Notes need some text.")
		return
	}

	timestamp, err := parseTimestamp(input.Timestamp)
	if err != nil {
		httputil.RedirectWithError(rw, r, returnTo, "Could not understand the timestamp; use mm:ss or hh:mm:ss.")
		return
	}

	note.Body = input.Body
	note.TimestampSeconds = timestamp
	note.UpdatedAt = time.Now()

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.SaveRecord(ctx, tx, note)
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, returnTo, "Note saved.")
}

func NoteDeleteAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	note, err := findOwnNote(r, user)
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "delete from notes where id = ?", note.ID)
		return err
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/attachments/"+strconv.Itoa(note.PlaylistVideoID)+"/notes", "Note deleted.")
}
