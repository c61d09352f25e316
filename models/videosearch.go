package models

import (
	"database/sql"
	"time"

	"fknsrs.biz/p/ytnotes/internal/sqlbuilderutil"
	"fknsrs.biz/p/ytnotes/internal/sqltypes"
)

var (
	VideoSearchTable *sqlbuilderutil.Table
)

func init() {
	VideoSearchTable = sqlbuilderutil.MustMakeTable(VideoSearch{})
}

// VideoSearch is backed by the video_search view: one row per (video, user)
// pair, counting how many of that user's attachments reference the video.
// Videos with no attachments have no rows, but those are deleted anyway.
type VideoSearch struct {
	VideoID                int `sql:",table:video_search"`
	VideoCreatedAt         time.Time
	VideoUserID            int
	VideoExternalID        string
	VideoTitle             string
	VideoChannelExternalID string
	VideoChannelTitle      string
	VideoDurationSeconds   int
	VideoThumbnails        sqltypes.JSONStringSlice
	AttachmentCount        int
}

func (s *VideoSearch) OverrideScan(names []string, scanners []sql.Scanner) error {
	for i, name := range names {
		switch name {
		case "VideoCreatedAt":
			scanners[i] = &sqltypes.TimeScanner{Value: &s.VideoCreatedAt}
		}
	}

	return nil
}
