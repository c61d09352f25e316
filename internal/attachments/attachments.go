package attachments

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/ytnotes/internal/sqltypes"
	"fknsrs.biz/p/ytnotes/models"
)

var (
	ErrAlreadyAttached     = fmt.Errorf("attachments: video is already attached in this scope")
	ErrSubcategoryMismatch = fmt.Errorf("attachments: subcategory does not belong to this playlist")
	ErrScopeMismatch       = fmt.Errorf("attachments: supplied ids do not match the current scope membership")
)

// VideoMetadata is what the metadata collaborator knows about an external
// video; it is only consulted when the video is not already known locally.
type VideoMetadata struct {
	Title             string
	ChannelExternalID string
	ChannelTitle      string
	DurationSeconds   int
	Thumbnails        []string
}

// ResolveVideo returns the canonical video record for an external ID,
// creating one from meta if absent. Metadata of an existing record is left
// untouched. A concurrent create racing on the external_id unique constraint
// is resolved by re-fetching the winning row.
func ResolveVideo(ctx context.Context, tx *sql.Tx, externalID string, meta VideoMetadata) (*models.Video, error) {
	var video models.Video
	err := sorm.FindFirstWhere(ctx, tx, &video, "where external_id = ?", externalID)
	if err == nil {
		return &video, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("attachments.ResolveVideo: could not find video record: %w", err)
	}

	video.CreatedAt = time.Now()
	video.ExternalID = externalID
	video.Title = meta.Title
	video.ChannelExternalID = meta.ChannelExternalID
	video.ChannelTitle = meta.ChannelTitle
	video.DurationSeconds = meta.DurationSeconds
	video.Thumbnails = sqltypes.JSONStringSlice(meta.Thumbnails)
	video.MetadataUpdatedAt = &video.CreatedAt

	if err := sorm.CreateRecord(ctx, tx, &video); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			var existing models.Video
			if err2 := sorm.FindFirstWhere(ctx, tx, &existing, "where external_id = ?", externalID); err2 != nil {
				return nil, fmt.Errorf("attachments.ResolveVideo: could not re-fetch video record after constraint violation: %w", err2)
			}

			return &existing, nil
		}

		return nil, fmt.Errorf("attachments.ResolveVideo: could not create video record: %w", err)
	}

	return &video, nil
}

func checkSubcategory(ctx context.Context, tx *sql.Tx, playlistID int, subcategoryID *int) error {
	if subcategoryID == nil {
		return nil
	}

	var subcategory models.Subcategory
	if err := sorm.FindFirstWhere(ctx, tx, &subcategory, "where id = ? and playlist_id = ?", *subcategoryID, playlistID); err != nil {
		if err == sql.ErrNoRows {
			return ErrSubcategoryMismatch
		}

		return fmt.Errorf("attachments.checkSubcategory: could not find subcategory record: %w", err)
	}

	return nil
}

// NextPosition computes the position for a new attachment in the
// (playlistID, subcategoryID) scope: one past the current maximum, or zero
// for an empty scope. The uncategorized scope and each subcategory are
// independent sequences.
func NextPosition(ctx context.Context, tx *sql.Tx, playlistID int, subcategoryID *int) (int, error) {
	if err := checkSubcategory(ctx, tx, playlistID, subcategoryID); err != nil {
		return 0, fmt.Errorf("attachments.NextPosition: %w", err)
	}

	var position int

	if subcategoryID == nil {
		if err := tx.QueryRowContext(ctx, "select coalesce(max(position), -1) + 1 from playlist_videos where playlist_id = ? and subcategory_id is null", playlistID).Scan(&position); err != nil {
			return 0, fmt.Errorf("attachments.NextPosition: could not query max position: %w", err)
		}
	} else {
		if err := tx.QueryRowContext(ctx, "select coalesce(max(position), -1) + 1 from playlist_videos where playlist_id = ? and subcategory_id = ?", playlistID, *subcategoryID).Scan(&position); err != nil {
			return 0, fmt.Errorf("attachments.NextPosition: could not query max position: %w", err)
		}
	}

	return position, nil
}

func findScope(ctx context.Context, tx *sql.Tx, playlistID int, subcategoryID *int) ([]models.PlaylistVideo, error) {
	var scope []models.PlaylistVideo

	if subcategoryID == nil {
		if err := sorm.FindWhere(ctx, tx, &scope, "where playlist_id = ? and subcategory_id is null order by position asc", playlistID); err != nil {
			return nil, fmt.Errorf("attachments.findScope: could not find attachment records: %w", err)
		}
	} else {
		if err := sorm.FindWhere(ctx, tx, &scope, "where playlist_id = ? and subcategory_id = ? order by position asc", playlistID, *subcategoryID); err != nil {
			return nil, fmt.Errorf("attachments.findScope: could not find attachment records: %w", err)
		}
	}

	return scope, nil
}

// Attach appends video to the end of the (playlistID, subcategoryID) scope.
// The same video can appear in any number of scopes, but only once per scope.
func Attach(ctx context.Context, tx *sql.Tx, playlistID int, subcategoryID *int, video *models.Video) (*models.PlaylistVideo, error) {
	position, err := NextPosition(ctx, tx, playlistID, subcategoryID)
	if err != nil {
		return nil, fmt.Errorf("attachments.Attach: %w", err)
	}

	scope, err := findScope(ctx, tx, playlistID, subcategoryID)
	if err != nil {
		return nil, fmt.Errorf("attachments.Attach: %w", err)
	}

	for _, e := range scope {
		if e.VideoID == video.ID {
			return nil, ErrAlreadyAttached
		}
	}

	attachment := models.PlaylistVideo{
		AddedAt:       time.Now(),
		PlaylistID:    playlistID,
		SubcategoryID: subcategoryID,
		VideoID:       video.ID,
		Position:      position,
	}

	if err := sorm.CreateRecord(ctx, tx, &attachment); err != nil {
		return nil, fmt.Errorf("attachments.Attach: could not create attachment record: %w", err)
	}

	return &attachment, nil
}

// Reorder assigns positions 0..n-1 to the attachments of one scope in the
// order given by orderedIDs. The ID set must equal the scope's current
// membership exactly; anything else is rejected before any row is touched.
func Reorder(ctx context.Context, tx *sql.Tx, playlistID int, subcategoryID *int, orderedIDs []int) error {
	if err := checkSubcategory(ctx, tx, playlistID, subcategoryID); err != nil {
		return fmt.Errorf("attachments.Reorder: %w", err)
	}

	scope, err := findScope(ctx, tx, playlistID, subcategoryID)
	if err != nil {
		return fmt.Errorf("attachments.Reorder: %w", err)
	}

	if len(scope) != len(orderedIDs) {
		return ErrScopeMismatch
	}

	members := make(map[int]bool, len(scope))
	for _, e := range scope {
		members[e.ID] = true
	}

	seen := make(map[int]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if !members[id] || seen[id] {
			return ErrScopeMismatch
		}
		seen[id] = true
	}

	for i, id := range orderedIDs {
		if _, err := tx.ExecContext(ctx, "update playlist_videos set position = ? where id = ?", i, id); err != nil {
			return fmt.Errorf("attachments.Reorder: could not update attachment record: %w", err)
		}
	}

	return nil
}

// Move re-scopes an attachment to another subcategory (or to uncategorized)
// within its playlist, appending it at the end of the target scope. The
// source scope keeps its gap; positions tolerate gaps and attach always picks
// max+1.
func Move(ctx context.Context, tx *sql.Tx, attachment *models.PlaylistVideo, subcategoryID *int) error {
	position, err := NextPosition(ctx, tx, attachment.PlaylistID, subcategoryID)
	if err != nil {
		return fmt.Errorf("attachments.Move: %w", err)
	}

	scope, err := findScope(ctx, tx, attachment.PlaylistID, subcategoryID)
	if err != nil {
		return fmt.Errorf("attachments.Move: %w", err)
	}

	for _, e := range scope {
		if e.VideoID == attachment.VideoID && e.ID != attachment.ID {
			return ErrAlreadyAttached
		}
	}

	attachment.SubcategoryID = subcategoryID
	attachment.Position = position

	if err := sorm.SaveRecord(ctx, tx, attachment); err != nil {
		return fmt.Errorf("attachments.Move: could not save attachment record: %w", err)
	}

	return nil
}

// CollectOrphan deletes the video if no attachment references it any more.
// It reports whether the video was deleted.
func CollectOrphan(ctx context.Context, tx *sql.Tx, videoID int) (bool, error) {
	var count int
	if err := tx.QueryRowContext(ctx, "select count(*) from playlist_videos where video_id = ?", videoID).Scan(&count); err != nil {
		return false, fmt.Errorf("attachments.CollectOrphan: could not count references: %w", err)
	}

	if count > 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, "delete from videos where id = ?", videoID); err != nil {
		return false, fmt.Errorf("attachments.CollectOrphan: could not delete video record: %w", err)
	}

	return true, nil
}

// Detach removes one attachment together with its notes, then collects the
// underlying video if this was its last reference.
func Detach(ctx context.Context, tx *sql.Tx, attachment *models.PlaylistVideo) error {
	if _, err := tx.ExecContext(ctx, "delete from notes where playlist_video_id = ?", attachment.ID); err != nil {
		return fmt.Errorf("attachments.Detach: could not delete note records: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "delete from playlist_videos where id = ?", attachment.ID); err != nil {
		return fmt.Errorf("attachments.Detach: could not delete attachment record: %w", err)
	}

	if _, err := CollectOrphan(ctx, tx, attachment.VideoID); err != nil {
		return fmt.Errorf("attachments.Detach: %w", err)
	}

	return nil
}

// DetachAllForPlaylist removes every attachment of a playlist (with notes)
// and bulk-collects videos left without references, for use inside the same
// transaction as the playlist deletion.
func DetachAllForPlaylist(ctx context.Context, tx *sql.Tx, playlistID int) error {
	rows, err := tx.QueryContext(ctx, "select distinct video_id from playlist_videos where playlist_id = ?", playlistID)
	if err != nil {
		return fmt.Errorf("attachments.DetachAllForPlaylist: could not query video ids: %w", err)
	}

	var videoIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("attachments.DetachAllForPlaylist: could not scan video id: %w", err)
		}
		videoIDs = append(videoIDs, id)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("attachments.DetachAllForPlaylist: could not close rows: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "delete from notes where playlist_video_id in (select id from playlist_videos where playlist_id = ?)", playlistID); err != nil {
		return fmt.Errorf("attachments.DetachAllForPlaylist: could not delete note records: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "delete from playlist_videos where playlist_id = ?", playlistID); err != nil {
		return fmt.Errorf("attachments.DetachAllForPlaylist: could not delete attachment records: %w", err)
	}

	for _, videoID := range videoIDs {
		if _, err := CollectOrphan(ctx, tx, videoID); err != nil {
			return fmt.Errorf("attachments.DetachAllForPlaylist: %w", err)
		}
	}

	return nil
}

// MoveAllToUncategorized re-scopes every attachment of a subcategory into the
// playlist's uncategorized scope, appended after the existing uncategorized
// attachments in their prior relative order. Used when a subcategory is
// deleted; the videos stay attached, so no orphan collection happens here.
func MoveAllToUncategorized(ctx context.Context, tx *sql.Tx, playlistID, subcategoryID int) error {
	next, err := NextPosition(ctx, tx, playlistID, nil)
	if err != nil {
		return fmt.Errorf("attachments.MoveAllToUncategorized: %w", err)
	}

	scope, err := findScope(ctx, tx, playlistID, &subcategoryID)
	if err != nil {
		return fmt.Errorf("attachments.MoveAllToUncategorized: %w", err)
	}

	for i, e := range scope {
		if _, err := tx.ExecContext(ctx, "update playlist_videos set subcategory_id = null, position = ? where id = ?", next+i, e.ID); err != nil {
			return fmt.Errorf("attachments.MoveAllToUncategorized: could not update attachment record: %w", err)
		}
	}

	return nil
}
