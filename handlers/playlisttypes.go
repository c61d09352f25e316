package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/gorilla/mux"
	"github.com/monoculum/formam"

	"fknsrs.biz/p/ytnotes/internal/ctxdb"
	"fknsrs.biz/p/ytnotes/internal/ctxtemplate"
	"fknsrs.biz/p/ytnotes/internal/httputil"
	"fknsrs.biz/p/ytnotes/models"
)

func PlaylistTypes(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	var types []models.PlaylistType
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &types, "where user_id = ? order by name asc", user.ID); err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_types", map[string]interface{}{
		"Types": types,
	}); err != nil {
		panic(err)
	}
}

func PlaylistTypeCreateAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	if err := r.ParseForm(); err != nil {
		panic(err)
	}

	var input struct {
		Name        string `formam:"name"`
		Description string `formam:"description"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	if input.Name == "" {
		httputil.RedirectWithError(rw, r, "/types", "Playlist types need a name.")
		return
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.CreateRecord(ctx, tx, &models.PlaylistType{
			CreatedAt:   time.Now(),
			UserID:      user.ID,
			Name:        input.Name,
			Description: input.Description,
		})
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/types", "Playlist type created.")
}

func findOwnPlaylistType(r *http.Request, user *models.User) (*models.PlaylistType, error) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		return nil, sql.ErrNoRows
	}

	var t models.PlaylistType
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &t, "where id = ? and user_id = ?", id, user.ID); err != nil {
		return nil, err
	}

	return &t, nil
}

func PlaylistTypeUpdateAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	t, err := findOwnPlaylistType(r, user)
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	if err := r.ParseForm(); err != nil {
		panic(err)
	}

	var input struct {
		Name        string `formam:"name"`
		Description string `formam:"description"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	if input.Name == "" {
		httputil.RedirectWithError(rw, r, "/types", "Playlist types need a name.")
		return
	}

	t.Name = input.Name
	t.Description = input.Description

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.SaveRecord(ctx, tx, t)
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/types", "Playlist type updated.")
}

// PlaylistTypeDeleteAction removes a type; playlists that used it fall back to
// having no type via the schema's on delete set null.
func PlaylistTypeDeleteAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	t, err := findOwnPlaylistType(r, user)
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "update playlists set playlist_type_id = null where playlist_type_id = ?", t.ID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, "delete from playlist_types where id = ?", t.ID)
		return err
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/types", "Playlist type deleted.")
}
