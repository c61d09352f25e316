package models

import (
	"database/sql"
	"time"

	"fknsrs.biz/p/ytnotes/internal/sqlbuilderutil"
	"fknsrs.biz/p/ytnotes/internal/sqltypes"
)

var (
	VideoInPlaylistTable *sqlbuilderutil.Table
)

func init() {
	VideoInPlaylistTable = sqlbuilderutil.MustMakeTable(VideoInPlaylist{})
}

// VideoInPlaylist is backed by the video_in_playlist_view view, which joins
// playlist_videos to videos and subcategories and counts notes.
type VideoInPlaylist struct {
	PlaylistVideoID       int `sql:",table:video_in_playlist_view"`
	PlaylistVideoAddedAt  time.Time
	PlaylistVideoPosition int
	PlaylistID            int
	PlaylistUserID        int
	PlaylistName          string
	SubcategoryID         *int
	SubcategoryName       string
	VideoID               int
	VideoExternalID       string
	VideoTitle            string
	VideoChannelTitle     string
	VideoDurationSeconds  int
	VideoThumbnails       sqltypes.JSONStringSlice
	NoteCount             int
}

func (s *VideoInPlaylist) OverrideScan(names []string, scanners []sql.Scanner) error {
	for i, name := range names {
		switch name {
		case "PlaylistVideoAddedAt":
			scanners[i] = &sqltypes.TimeScanner{Value: &s.PlaylistVideoAddedAt}
		}
	}

	return nil
}
