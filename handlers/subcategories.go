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

	"fknsrs.biz/p/ytnotes/internal/attachments"
	"fknsrs.biz/p/ytnotes/internal/ctxdb"
	"fknsrs.biz/p/ytnotes/internal/httputil"
	"fknsrs.biz/p/ytnotes/models"
)

func SubcategoryCreateAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	playlist, err := findOwnPlaylist(r, user)
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
		Name string `formam:"name"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	returnTo := "/playlists/" + strconv.Itoa(playlist.ID)

	if input.Name == "" {
		httputil.RedirectWithError(rw, r, returnTo, "Subcategories need a name.")
		return
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		var position int
		if err := tx.QueryRowContext(ctx, "select coalesce(max(position), -1) + 1 from subcategories where playlist_id = ?", playlist.ID).Scan(&position); err != nil {
			return err
		}

		return sorm.CreateRecord(ctx, tx, &models.Subcategory{
			CreatedAt:  time.Now(),
			PlaylistID: playlist.ID,
			Name:       input.Name,
			Position:   position,
		})
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, returnTo, "Subcategory created.")
}

func findOwnSubcategory(r *http.Request, user *models.User) (*models.Playlist, *models.Subcategory, error) {
	playlist, err := findOwnPlaylist(r, user)
	if err != nil {
		return nil, nil, err
	}

	id, err := strconv.Atoi(mux.Vars(r)["subcategoryID"])
	if err != nil {
		return nil, nil, sql.ErrNoRows
	}

	var s models.Subcategory
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &s, "where id = ? and playlist_id = ?", id, playlist.ID); err != nil {
		return nil, nil, err
	}

	return playlist, &s, nil
}

func SubcategoryRenameAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	playlist, subcategory, err := findOwnSubcategory(r, user)
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
		Name string `formam:"name"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	returnTo := "/playlists/" + strconv.Itoa(playlist.ID)

	if input.Name == "" {
		httputil.RedirectWithError(rw, r, returnTo, "Subcategories need a name.")
		return
	}

	subcategory.Name = input.Name

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.SaveRecord(ctx, tx, subcategory)
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, returnTo, "Subcategory renamed.")
}

// SubcategoryDeleteAction removes a subcategory. Its attachments are not
// lost: they move to the end of the playlist's uncategorized run, keeping
// their relative order.
func SubcategoryDeleteAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	playlist, subcategory, err := findOwnSubcategory(r, user)
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := attachments.MoveAllToUncategorized(ctx, tx, playlist.ID, subcategory.ID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, "delete from subcategories where id = ?", subcategory.ID)
		return err
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/playlists/"+strconv.Itoa(playlist.ID), "Subcategory deleted.")
}
