package models

import (
	"time"

	"fknsrs.biz/p/ytnotes/internal/sqlbuilderutil"
)

var (
	TagTable *sqlbuilderutil.Table
)

func init() {
	TagTable = sqlbuilderutil.MustMakeTable(Tag{})
}

type Tag struct {
	ID         int `sql:",table:tags"`
	CreatedAt  time.Time
	TagGroupID int
	Name       string
}
