package models

import (
	"time"

	"fknsrs.biz/p/ytnotes/internal/sqlbuilderutil"
)

var (
	NoteTable *sqlbuilderutil.Table
)

func init() {
	NoteTable = sqlbuilderutil.MustMakeTable(Note{})
}

// Note is a (possibly timestamped) note against one playlist video.
// TimestampSeconds is an offset into the video, or nil for a general note.
type Note struct {
	ID               int `sql:",table:notes"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	UserID           int
	PlaylistVideoID  int
	Body             string
	TimestampSeconds *int
}
