package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"fknsrs.biz/p/ytnotes/internal/attachments"
	"fknsrs.biz/p/ytnotes/internal/ctxdb"
	"fknsrs.biz/p/ytnotes/internal/ctxjobqueue"
	"fknsrs.biz/p/ytnotes/internal/ctxsession"
	"fknsrs.biz/p/ytnotes/internal/jobqueue"
	"fknsrs.biz/p/ytnotes/internal/migrate"
	"fknsrs.biz/p/ytnotes/internal/queuenames"
	"fknsrs.biz/p/ytnotes/models"
)

func init() {
	sorm.SetParameterPrefix("?")
}

func setupRefreshTest(t *testing.T) (*sql.DB, *models.User, *models.User, *models.Video) {
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

	owner := models.User{CreatedAt: time.Now(), Email: "owner@example.com", DisplayName: "Owner", PasswordHash: "x"}
	other := models.User{CreatedAt: time.Now(), Email: "other@example.com", DisplayName: "Other", PasswordHash: "x"}

	var video *models.Video

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("could not open transaction: %v", err)
	}

	for _, user := range []*models.User{&owner, &other} {
		if err := sorm.CreateRecord(ctx, tx, user); err != nil {
			t.Fatalf("could not create user: %v", err)
		}
	}

	playlist := models.Playlist{CreatedAt: time.Now(), UserID: owner.ID, Name: "test"}
	if err := sorm.CreateRecord(ctx, tx, &playlist); err != nil {
		t.Fatalf("could not create playlist: %v", err)
	}

	v, err := attachments.ResolveVideo(ctx, tx, "dQw4w9WgXcQ", attachments.VideoMetadata{Title: "test video"})
	if err != nil {
		t.Fatalf("could not resolve video: %v", err)
	}
	video = v

	if _, err := attachments.Attach(ctx, tx, playlist.ID, nil, video); err != nil {
		t.Fatalf("could not attach video: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("could not commit transaction: %v", err)
	}

	return db, &owner, &other, video
}

func refreshRequest(db *sql.DB, user *models.User, videoID int) *http.Request {
	w := jobqueue.NewWorker(map[string]jobqueue.WorkerFunction{
		queuenames.VideoRefreshMetadata: func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
			return "", nil
		},
	})

	r := httptest.NewRequest(http.MethodPost, "/videos/"+strconv.Itoa(videoID)+"/refresh", nil)

	ctx := r.Context()
	ctx = ctxdb.WithDB(ctx, db)
	ctx = ctxjobqueue.WithWorker(ctx, w)
	ctx = ctxsession.WithUser(ctx, user)

	return mux.SetURLVars(r.WithContext(ctx), map[string]string{"id": strconv.Itoa(videoID)})
}

func countJobs(t *testing.T, db *sql.DB, queueName string) int {
	t.Helper()

	var count int
	if err := db.QueryRow("select count(*) from jobs where queue_name = ?", queueName).Scan(&count); err != nil {
		t.Fatalf("could not count jobs: %v", err)
	}

	return count
}

func TestVideoRefreshActionRequiresAppearance(t *testing.T) {
	a := assert.New(t)

	db, _, other, video := setupRefreshTest(t)

	// the video exists, but none of this user's playlists contain it
	rec := httptest.NewRecorder()
	VideoRefreshAction(rec, refreshRequest(db, other, video.ID))

	a.Equal(http.StatusNotFound, rec.Code)
	a.Zero(countJobs(t, db, queuenames.VideoRefreshMetadata))
}

func TestVideoRefreshActionQueuesJob(t *testing.T) {
	a := assert.New(t)

	db, owner, _, video := setupRefreshTest(t)

	rec := httptest.NewRecorder()
	VideoRefreshAction(rec, refreshRequest(db, owner, video.ID))

	a.Equal(http.StatusFound, rec.Code)
	a.Equal(1, countJobs(t, db, queuenames.VideoRefreshMetadata))
}
