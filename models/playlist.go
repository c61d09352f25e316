package models

import (
	"time"

	"fknsrs.biz/p/ytnotes/internal/sqlbuilderutil"
)

var (
	PlaylistTable *sqlbuilderutil.Table
)

func init() {
	PlaylistTable = sqlbuilderutil.MustMakeTable(Playlist{})
}

type Playlist struct {
	ID             int `sql:",table:playlists"`
	CreatedAt      time.Time
	UserID         int
	PlaylistTypeID *int
	Name           string
	Description    string
}
