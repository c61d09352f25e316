package migrate

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestUp(t *testing.T) {
	a := assert.New(t)

	db, err := sql.Open("sqlite3", ":memory:")
	a.NoError(err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()

	a.NoError(Up(ctx, db))

	version, err := getVersion(ctx, db)
	a.NoError(err)
	a.NotZero(version)

	var name string
	a.NoError(db.QueryRow("select name from sqlite_master where type = 'table' and name = 'playlists'").Scan(&name))
	a.Equal("playlists", name)

	// running again is a no-op
	a.NoError(Up(ctx, db))

	again, err := getVersion(ctx, db)
	a.NoError(err)
	a.Equal(version, again)
}

func TestLoadMigrations(t *testing.T) {
	a := assert.New(t)

	migrations, err := loadMigrations()
	a.NoError(err)
	a.NotEmpty(migrations)

	for i, m := range migrations {
		a.Equal(i+1, m.version)
		a.NotEmpty(m.up)
	}
}
