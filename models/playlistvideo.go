package models

import (
	"time"

	"fknsrs.biz/p/ytnotes/internal/sqlbuilderutil"
)

var (
	PlaylistVideoTable *sqlbuilderutil.Table
)

func init() {
	PlaylistVideoTable = sqlbuilderutil.MustMakeTable(PlaylistVideo{})
}

// PlaylistVideo attaches one video to one playlist. Position is scoped to the
// (playlist_id, subcategory_id) pair; the uncategorized scope and each
// subcategory order their attachments independently.
type PlaylistVideo struct {
	ID            int `sql:",table:playlist_videos"`
	AddedAt       time.Time
	PlaylistID    int
	SubcategoryID *int
	VideoID       int
	Position      int
}
