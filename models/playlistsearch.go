package models

import (
	"database/sql"
	"time"

	"fknsrs.biz/p/ytnotes/internal/sqlbuilderutil"
	"fknsrs.biz/p/ytnotes/internal/sqltypes"
)

var (
	PlaylistSearchTable *sqlbuilderutil.Table
)

func init() {
	PlaylistSearchTable = sqlbuilderutil.MustMakeTable(PlaylistSearch{})
}

// PlaylistSearch is backed by the playlist_search view, which joins playlists
// to their type and counts attachments.
type PlaylistSearch struct {
	PlaylistID          int `sql:",table:playlist_search"`
	PlaylistCreatedAt   time.Time
	PlaylistUserID      int
	PlaylistName        string
	PlaylistDescription string
	PlaylistTypeID      *int
	PlaylistTypeName    string
	VideoCount          int
}

func (s *PlaylistSearch) OverrideScan(names []string, scanners []sql.Scanner) error {
	for i, name := range names {
		switch name {
		case "PlaylistCreatedAt":
			scanners[i] = &sqltypes.TimeScanner{Value: &s.PlaylistCreatedAt}
		}
	}

	return nil
}
