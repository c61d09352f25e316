package models

import (
	"time"

	"fknsrs.biz/p/ytnotes/internal/sqlbuilderutil"
)

var (
	SubcategoryTable *sqlbuilderutil.Table
)

func init() {
	SubcategoryTable = sqlbuilderutil.MustMakeTable(Subcategory{})
}

type Subcategory struct {
	ID         int `sql:",table:subcategories"`
	CreatedAt  time.Time
	PlaylistID int
	Name       string
	Position   int
}
