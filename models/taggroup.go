package models

import (
	"time"

	"fknsrs.biz/p/ytnotes/internal/sqlbuilderutil"
)

var (
	TagGroupTable *sqlbuilderutil.Table
)

func init() {
	TagGroupTable = sqlbuilderutil.MustMakeTable(TagGroup{})
}

type TagGroup struct {
	ID        int `sql:",table:tag_groups"`
	CreatedAt time.Time
	UserID    int
	Name      string
}
