package models

import (
	"time"

	"fknsrs.biz/p/ytnotes/internal/sqlbuilderutil"
)

var (
	UserTable *sqlbuilderutil.Table
)

func init() {
	UserTable = sqlbuilderutil.MustMakeTable(User{})
}

type User struct {
	ID           int `sql:",table:users"`
	CreatedAt    time.Time
	Email        string
	DisplayName  string
	PasswordHash string
}
