package models

import (
	"time"

	"fknsrs.biz/p/ytnotes/internal/sqlbuilderutil"
)

var (
	SessionTable *sqlbuilderutil.Table
)

func init() {
	SessionTable = sqlbuilderutil.MustMakeTable(Session{})
}

type Session struct {
	ID        int `sql:",table:sessions"`
	CreatedAt time.Time
	ExpiresAt time.Time
	Token     string
	UserID    int
}
