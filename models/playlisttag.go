package models

import (
	"time"

	"fknsrs.biz/p/ytnotes/internal/sqlbuilderutil"
)

var (
	PlaylistTagTable *sqlbuilderutil.Table
)

func init() {
	PlaylistTagTable = sqlbuilderutil.MustMakeTable(PlaylistTag{})
}

type PlaylistTag struct {
	ID         int `sql:",table:playlist_tags"`
	CreatedAt  time.Time
	PlaylistID int
	TagID      int
}
