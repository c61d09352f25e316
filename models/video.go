package models

import (
	"time"

	"fknsrs.biz/p/ytnotes/internal/sqlbuilderutil"
	"fknsrs.biz/p/ytnotes/internal/sqltypes"
)

var (
	VideoTable *sqlbuilderutil.Table
)

func init() {
	VideoTable = sqlbuilderutil.MustMakeTable(Video{})
}

type Video struct {
	ID                int `sql:",table:videos"`
	CreatedAt         time.Time
	ExternalID        string
	Title             string
	ChannelExternalID string
	ChannelTitle      string
	DurationSeconds   int
	Thumbnails        sqltypes.JSONStringSlice

	MetadataUpdatedAt *time.Time
}
