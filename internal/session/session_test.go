package session

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"fknsrs.biz/p/sorm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytnotes/internal/migrate"
	"fknsrs.biz/p/ytnotes/models"
)

func init() {
	sorm.SetParameterPrefix("?")
}

func setupTestDB(t *testing.T) (*sql.DB, *models.User) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("could not open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	db.SetMaxOpenConns(1)

	ctx := context.Background()

	if err := migrate.Up(ctx, db); err != nil {
		t.Fatalf("could not migrate database: %v", err)
	}

	user := models.User{
		CreatedAt:    time.Now(),
		Email:        "test@example.com",
		DisplayName:  "Test",
		PasswordHash: "x",
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("could not open transaction: %v", err)
	}
	if err := sorm.CreateRecord(ctx, tx, &user); err != nil {
		t.Fatalf("could not create user: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("could not commit transaction: %v", err)
	}

	return db, &user
}

func TestCreateAndFindUser(t *testing.T) {
	a := assert.New(t)

	db, user := setupTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	a.NoError(err)

	s, err := Create(ctx, tx, user.ID, time.Hour)
	a.NoError(err)
	a.NoError(tx.Commit())

	a.NotEmpty(s.Token)
	a.True(s.ExpiresAt.After(time.Now()))

	found, err := FindUser(ctx, db, s.Token, time.Now())
	a.NoError(err)
	a.Equal(user.ID, found.ID)
	a.Equal(user.Email, found.Email)
}

func TestFindUserRejectsExpiredAndUnknown(t *testing.T) {
	a := assert.New(t)

	db, user := setupTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	a.NoError(err)

	s, err := Create(ctx, tx, user.ID, time.Hour)
	a.NoError(err)
	a.NoError(tx.Commit())

	_, err = FindUser(ctx, db, "not-a-real-token", time.Now())
	a.ErrorIs(err, sql.ErrNoRows)

	// past the expiry, the token is as good as unknown
	_, err = FindUser(ctx, db, s.Token, time.Now().Add(time.Hour*2))
	a.ErrorIs(err, sql.ErrNoRows)
}

func TestDelete(t *testing.T) {
	a := assert.New(t)

	db, user := setupTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	a.NoError(err)
	s, err := Create(ctx, tx, user.ID, time.Hour)
	a.NoError(err)
	a.NoError(tx.Commit())

	tx, err = db.BeginTx(ctx, nil)
	a.NoError(err)
	a.NoError(Delete(ctx, tx, s.Token))
	a.NoError(Delete(ctx, tx, "never-existed"))
	a.NoError(tx.Commit())

	_, err = FindUser(ctx, db, s.Token, time.Now())
	a.ErrorIs(err, sql.ErrNoRows)
}

func TestDeleteExpired(t *testing.T) {
	a := assert.New(t)

	db, user := setupTestDB(t)
	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	a.NoError(err)
	expired, err := Create(ctx, tx, user.ID, time.Minute)
	a.NoError(err)
	live, err := Create(ctx, tx, user.ID, time.Hour*24)
	a.NoError(err)
	a.NoError(tx.Commit())

	tx, err = db.BeginTx(ctx, nil)
	a.NoError(err)
	n, err := DeleteExpired(ctx, tx, time.Now().Add(time.Hour))
	a.NoError(err)
	a.NoError(tx.Commit())

	a.Equal(int64(1), n)

	_, err = FindUser(ctx, db, expired.Token, time.Now())
	a.ErrorIs(err, sql.ErrNoRows)

	found, err := FindUser(ctx, db, live.Token, time.Now())
	a.NoError(err)
	a.Equal(user.ID, found.ID)
}
