package models

import (
	"time"

	"fknsrs.biz/p/ytnotes/internal/sqlbuilderutil"
)

var (
	PlaylistTypeTable *sqlbuilderutil.Table
)

func init() {
	PlaylistTypeTable = sqlbuilderutil.MustMakeTable(PlaylistType{})
}

type PlaylistType struct {
	ID          int `sql:",table:playlist_types"`
	CreatedAt   time.Time
	UserID      int
	Name        string
	Description string
}
