package attachments

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

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("could not open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// in-memory databases disappear if the pool opens a second connection
	db.SetMaxOpenConns(1)

	if err := migrate.Up(context.Background(), db); err != nil {
		t.Fatalf("could not migrate database: %v", err)
	}

	return db
}

func withTx(t *testing.T, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) error {
	t.Helper()

	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("could not open transaction: %v", err)
	}

	if err := fn(ctx, tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("could not commit transaction: %v", err)
	}

	return nil
}

func makeUser(t *testing.T, db *sql.DB) *models.User {
	t.Helper()

	user := models.User{
		CreatedAt:    time.Now(),
		Email:        "test@example.com",
		DisplayName:  "Test",
		PasswordHash: "x",
	}

	if err := withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.CreateRecord(ctx, tx, &user)
	}); err != nil {
		t.Fatalf("could not create user: %v", err)
	}

	return &user
}

func makePlaylist(t *testing.T, db *sql.DB, user *models.User, name string) *models.Playlist {
	t.Helper()

	playlist := models.Playlist{
		CreatedAt: time.Now(),
		UserID:    user.ID,
		Name:      name,
	}

	if err := withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.CreateRecord(ctx, tx, &playlist)
	}); err != nil {
		t.Fatalf("could not create playlist: %v", err)
	}

	return &playlist
}

func makeSubcategory(t *testing.T, db *sql.DB, playlist *models.Playlist, name string, position int) *models.Subcategory {
	t.Helper()

	subcategory := models.Subcategory{
		CreatedAt:  time.Now(),
		PlaylistID: playlist.ID,
		Name:       name,
		Position:   position,
	}

	if err := withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.CreateRecord(ctx, tx, &subcategory)
	}); err != nil {
		t.Fatalf("could not create subcategory: %v", err)
	}

	return &subcategory
}

func resolveAndAttach(t *testing.T, db *sql.DB, playlistID int, subcategoryID *int, externalID string) (*models.Video, *models.PlaylistVideo, error) {
	t.Helper()

	var video *models.Video
	var attachment *models.PlaylistVideo

	err := withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		v, err := ResolveVideo(ctx, tx, externalID, VideoMetadata{Title: "video " + externalID})
		if err != nil {
			return err
		}
		video = v

		a, err := Attach(ctx, tx, playlistID, subcategoryID, v)
		if err != nil {
			return err
		}
		attachment = a

		return nil
	})

	return video, attachment, err
}

func scopePositions(t *testing.T, db *sql.DB, playlistID int, subcategoryID *int) map[int]int {
	t.Helper()

	positions := make(map[int]int)

	if err := withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		scope, err := findScope(ctx, tx, playlistID, subcategoryID)
		if err != nil {
			return err
		}

		for _, e := range scope {
			positions[e.ID] = e.Position
		}

		return nil
	}); err != nil {
		t.Fatalf("could not read scope: %v", err)
	}

	return positions
}

func TestResolveVideoFindOrCreate(t *testing.T) {
	a := assert.New(t)

	db := setupTestDB(t)

	var first, second *models.Video

	a.NoError(withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		v, err := ResolveVideo(ctx, tx, "dQw4w9WgXcQ", VideoMetadata{
			Title:           "Original Title",
			ChannelTitle:    "Original Channel",
			DurationSeconds: 212,
		})
		if err != nil {
			return err
		}
		first = v

		return nil
	}))

	a.NoError(withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		v, err := ResolveVideo(ctx, tx, "dQw4w9WgXcQ", VideoMetadata{
			Title: "Different Title",
		})
		if err != nil {
			return err
		}
		second = v

		return nil
	}))

	a.NotZero(first.ID)
	a.Equal(first.ID, second.ID)
	a.Equal("Original Title", second.Title, "metadata of an existing record should be left alone")
	a.Equal(212, second.DurationSeconds)
	a.NotNil(first.MetadataUpdatedAt)

	// the re-fetched record's time columns must come back as real times
	a.WithinDuration(time.Now(), second.CreatedAt, time.Minute)
	if a.NotNil(second.MetadataUpdatedAt) {
		a.WithinDuration(time.Now(), *second.MetadataUpdatedAt, time.Minute)
	}
}

func TestAttachAssignsSequentialPositions(t *testing.T) {
	a := assert.New(t)

	db := setupTestDB(t)
	user := makeUser(t, db)
	playlist := makePlaylist(t, db, user, "test")

	for i, externalID := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc"} {
		_, attachment, err := resolveAndAttach(t, db, playlist.ID, nil, externalID)
		a.NoError(err)
		a.Equal(i, attachment.Position)
	}
}

func TestAttachScopesAreIndependent(t *testing.T) {
	a := assert.New(t)

	db := setupTestDB(t)
	user := makeUser(t, db)
	playlist := makePlaylist(t, db, user, "test")
	subcategory := makeSubcategory(t, db, playlist, "live sets", 0)

	_, uncategorized, err := resolveAndAttach(t, db, playlist.ID, nil, "aaaaaaaaaaa")
	a.NoError(err)
	a.Equal(0, uncategorized.Position)

	// the same video can sit in the uncategorized run and a subcategory at
	// once; each scope numbers from zero
	_, inSubcategory, err := resolveAndAttach(t, db, playlist.ID, &subcategory.ID, "aaaaaaaaaaa")
	a.NoError(err)
	a.Equal(0, inSubcategory.Position)

	_, second, err := resolveAndAttach(t, db, playlist.ID, &subcategory.ID, "bbbbbbbbbbb")
	a.NoError(err)
	a.Equal(1, second.Position)
}

func TestAttachRejectsDuplicateInScope(t *testing.T) {
	a := assert.New(t)

	db := setupTestDB(t)
	user := makeUser(t, db)
	playlist := makePlaylist(t, db, user, "test")

	_, _, err := resolveAndAttach(t, db, playlist.ID, nil, "aaaaaaaaaaa")
	a.NoError(err)

	_, _, err = resolveAndAttach(t, db, playlist.ID, nil, "aaaaaaaaaaa")
	a.ErrorIs(err, ErrAlreadyAttached)

	// but another playlist can attach it fine
	other := makePlaylist(t, db, user, "other")
	_, _, err = resolveAndAttach(t, db, other.ID, nil, "aaaaaaaaaaa")
	a.NoError(err)
}

func TestNextPositionRejectsForeignSubcategory(t *testing.T) {
	a := assert.New(t)

	db := setupTestDB(t)
	user := makeUser(t, db)
	playlist := makePlaylist(t, db, user, "test")
	other := makePlaylist(t, db, user, "other")
	foreign := makeSubcategory(t, db, other, "elsewhere", 0)

	err := withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		_, err := NextPosition(ctx, tx, playlist.ID, &foreign.ID)
		return err
	})
	a.ErrorIs(err, ErrSubcategoryMismatch)
}

func TestReorder(t *testing.T) {
	a := assert.New(t)

	db := setupTestDB(t)
	user := makeUser(t, db)
	playlist := makePlaylist(t, db, user, "test")

	var ids []int
	for _, externalID := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc"} {
		_, attachment, err := resolveAndAttach(t, db, playlist.ID, nil, externalID)
		a.NoError(err)
		ids = append(ids, attachment.ID)
	}

	a.NoError(withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		return Reorder(ctx, tx, playlist.ID, nil, []int{ids[2], ids[0], ids[1]})
	}))

	positions := scopePositions(t, db, playlist.ID, nil)
	a.Equal(0, positions[ids[2]])
	a.Equal(1, positions[ids[0]])
	a.Equal(2, positions[ids[1]])
}

func TestReorderRejectsBadMemberships(t *testing.T) {
	db := setupTestDB(t)
	user := makeUser(t, db)
	playlist := makePlaylist(t, db, user, "test")

	var ids []int
	for _, externalID := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc"} {
		_, attachment, err := resolveAndAttach(t, db, playlist.ID, nil, externalID)
		assert.NoError(t, err)
		ids = append(ids, attachment.ID)
	}

	testCases := []struct {
		name    string
		ordered []int
	}{
		{"too few", []int{ids[0], ids[1]}},
		{"too many", []int{ids[0], ids[1], ids[2], ids[2]}},
		{"duplicate", []int{ids[0], ids[1], ids[1]}},
		{"unknown id", []int{ids[0], ids[1], ids[2] + 1000}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			a := assert.New(t)

			err := withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
				return Reorder(ctx, tx, playlist.ID, nil, testCase.ordered)
			})
			a.ErrorIs(err, ErrScopeMismatch)

			// nothing should have moved
			positions := scopePositions(t, db, playlist.ID, nil)
			for i, id := range ids {
				a.Equal(i, positions[id])
			}
		})
	}
}

func TestReorderRollsBackCompletely(t *testing.T) {
	a := assert.New(t)

	db := setupTestDB(t)
	user := makeUser(t, db)
	playlist := makePlaylist(t, db, user, "test")

	var ids []int
	for _, externalID := range []string{"aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc"} {
		_, attachment, err := resolveAndAttach(t, db, playlist.ID, nil, externalID)
		a.NoError(err)
		ids = append(ids, attachment.ID)
	}

	ctx := context.Background()

	tx, err := db.BeginTx(ctx, nil)
	a.NoError(err)

	a.NoError(Reorder(ctx, tx, playlist.ID, nil, []int{ids[2], ids[0], ids[1]}))

	// a failure later in the same transaction takes the renumbering down
	// with it
	_, err = tx.ExecContext(ctx, "insert into playlist_videos (id) values (?)", ids[0])
	a.Error(err)

	a.NoError(tx.Rollback())

	positions := scopePositions(t, db, playlist.ID, nil)
	for i, id := range ids {
		a.Equal(i, positions[id])
	}
}

func TestMoveAppendsToTargetScope(t *testing.T) {
	a := assert.New(t)

	db := setupTestDB(t)
	user := makeUser(t, db)
	playlist := makePlaylist(t, db, user, "test")
	subcategory := makeSubcategory(t, db, playlist, "live sets", 0)

	_, _, err := resolveAndAttach(t, db, playlist.ID, &subcategory.ID, "aaaaaaaaaaa")
	a.NoError(err)

	_, moved, err := resolveAndAttach(t, db, playlist.ID, nil, "bbbbbbbbbbb")
	a.NoError(err)

	a.NoError(withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		return Move(ctx, tx, moved, &subcategory.ID)
	}))

	a.Equal(&subcategory.ID, moved.SubcategoryID)
	a.Equal(1, moved.Position)

	// the source scope is empty now; a fresh attach starts at zero again
	_, fresh, err := resolveAndAttach(t, db, playlist.ID, nil, "ccccccccccc")
	a.NoError(err)
	a.Equal(0, fresh.Position)
}

func TestMoveRejectsDuplicateInTarget(t *testing.T) {
	a := assert.New(t)

	db := setupTestDB(t)
	user := makeUser(t, db)
	playlist := makePlaylist(t, db, user, "test")
	subcategory := makeSubcategory(t, db, playlist, "live sets", 0)

	_, _, err := resolveAndAttach(t, db, playlist.ID, &subcategory.ID, "aaaaaaaaaaa")
	a.NoError(err)

	_, moved, err := resolveAndAttach(t, db, playlist.ID, nil, "aaaaaaaaaaa")
	a.NoError(err)

	err = withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		return Move(ctx, tx, moved, &subcategory.ID)
	})
	a.ErrorIs(err, ErrAlreadyAttached)
}

func videoExists(t *testing.T, db *sql.DB, videoID int) bool {
	t.Helper()

	var count int
	if err := db.QueryRow("select count(*) from videos where id = ?", videoID).Scan(&count); err != nil {
		t.Fatalf("could not count videos: %v", err)
	}

	return count > 0
}

func TestDetachCollectsOrphanedVideo(t *testing.T) {
	a := assert.New(t)

	db := setupTestDB(t)
	user := makeUser(t, db)
	playlist := makePlaylist(t, db, user, "test")
	other := makePlaylist(t, db, user, "other")

	video, first, err := resolveAndAttach(t, db, playlist.ID, nil, "aaaaaaaaaaa")
	a.NoError(err)

	_, second, err := resolveAndAttach(t, db, other.ID, nil, "aaaaaaaaaaa")
	a.NoError(err)

	a.NoError(withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.CreateRecord(ctx, tx, &models.Note{
			CreatedAt:       time.Now(),
			UpdatedAt:       time.Now(),
			UserID:          user.ID,
			PlaylistVideoID: first.ID,
			Body:            "great intro",
		})
	}))

	// still referenced by the other playlist
	a.NoError(withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		return Detach(ctx, tx, first)
	}))
	a.True(videoExists(t, db, video.ID))

	// last reference gone; video record goes with it
	a.NoError(withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		return Detach(ctx, tx, second)
	}))
	a.False(videoExists(t, db, video.ID))

	var noteCount int
	a.NoError(db.QueryRow("select count(*) from notes").Scan(&noteCount))
	a.Zero(noteCount)
}

func TestDetachAllForPlaylist(t *testing.T) {
	a := assert.New(t)

	db := setupTestDB(t)
	user := makeUser(t, db)
	playlist := makePlaylist(t, db, user, "test")
	other := makePlaylist(t, db, user, "other")

	shared, _, err := resolveAndAttach(t, db, playlist.ID, nil, "aaaaaaaaaaa")
	a.NoError(err)
	_, _, err = resolveAndAttach(t, db, other.ID, nil, "aaaaaaaaaaa")
	a.NoError(err)

	exclusive, _, err := resolveAndAttach(t, db, playlist.ID, nil, "bbbbbbbbbbb")
	a.NoError(err)

	a.NoError(withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		return DetachAllForPlaylist(ctx, tx, playlist.ID)
	}))

	a.True(videoExists(t, db, shared.ID), "video still referenced elsewhere should survive")
	a.False(videoExists(t, db, exclusive.ID), "video only referenced here should be collected")

	positions := scopePositions(t, db, playlist.ID, nil)
	a.Empty(positions)
}

func TestMoveAllToUncategorized(t *testing.T) {
	a := assert.New(t)

	db := setupTestDB(t)
	user := makeUser(t, db)
	playlist := makePlaylist(t, db, user, "test")
	subcategory := makeSubcategory(t, db, playlist, "live sets", 0)

	_, existing, err := resolveAndAttach(t, db, playlist.ID, nil, "aaaaaaaaaaa")
	a.NoError(err)

	_, first, err := resolveAndAttach(t, db, playlist.ID, &subcategory.ID, "bbbbbbbbbbb")
	a.NoError(err)
	_, second, err := resolveAndAttach(t, db, playlist.ID, &subcategory.ID, "ccccccccccc")
	a.NoError(err)

	a.NoError(withTx(t, db, func(ctx context.Context, tx *sql.Tx) error {
		return MoveAllToUncategorized(ctx, tx, playlist.ID, subcategory.ID)
	}))

	positions := scopePositions(t, db, playlist.ID, nil)
	a.Equal(0, positions[existing.ID])
	a.Equal(1, positions[first.ID])
	a.Equal(2, positions[second.ID])

	a.Empty(scopePositions(t, db, playlist.ID, &subcategory.ID))
}
