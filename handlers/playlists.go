package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"fknsrs.biz/p/sorm"
	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"
	"github.com/gorilla/mux"
	"github.com/monoculum/formam"

	"fknsrs.biz/p/ytnotes/internal/attachments"
	"fknsrs.biz/p/ytnotes/internal/ctxdb"
	"fknsrs.biz/p/ytnotes/internal/ctxtemplate"
	"fknsrs.biz/p/ytnotes/internal/godatautil"
	"fknsrs.biz/p/ytnotes/internal/httputil"
	"fknsrs.biz/p/ytnotes/models"
)

// Playlists lists the current user's playlists. The query string accepts
// OData-style $filter, $orderby, $skip, and $top parameters, e.g.
// ?$filter=substringof(PlaylistName,'mix')&$orderby=PlaylistName asc.
func Playlists(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	q, err := godatautil.ParseQuery(r.URL.Query())
	if err != nil {
		httputil.RedirectWithError(rw, r, "/playlists", "Could not understand query: "+err.Error())
		return
	}

	condition := sb.AsExpr(sb.Eq(models.PlaylistSearchTable.C("PlaylistUserID"), sb.Bind(user.ID)))

	if filter, err := godatautil.MakeCondition(q, models.PlaylistSearchTable); err != nil {
		httputil.RedirectWithError(rw, r, "/playlists", "Could not understand query: "+err.Error())
		return
	} else if filter != nil {
		condition = sb.BooleanOperator("and", condition, filter)
	}

	order, err := godatautil.MakeOrders(q, models.PlaylistSearchTable, sb.OrderDesc(models.PlaylistSearchTable.C("PlaylistCreatedAt")))
	if err != nil {
		httputil.RedirectWithError(rw, r, "/playlists", "Could not understand query: "+err.Error())
		return
	}

	var playlists []models.PlaylistSearch
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&playlists,
		condition,
		order,
		godatautil.MakeOffsetLimit(q, 0, 100),
	); err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_playlists", map[string]interface{}{
		"Playlists": playlists,
	}); err != nil {
		panic(err)
	}
}

func PlaylistNew(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	var types []models.PlaylistType
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &types, "where user_id = ? order by name asc", user.ID); err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_playlist_new", map[string]interface{}{
		"Types": types,
	}); err != nil {
		panic(err)
	}
}

type playlistInput struct {
	Name           string `formam:"name"`
	Description    string `formam:"description"`
	PlaylistTypeID string `formam:"playlist_type_id"`
}

// resolveTypeID turns the form's type selection into a validated id, nil for
// "no type".
func resolveTypeID(r *http.Request, user *models.User, value string) (*int, error) {
	if value == "" {
		return nil, nil
	}

	id, err := strconv.Atoi(value)
	if err != nil {
		return nil, err
	}

	var t models.PlaylistType
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &t, "where id = ? and user_id = ?", id, user.ID); err != nil {
		return nil, err
	}

	return &t.ID, nil
}

func PlaylistCreateAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	if err := r.ParseForm(); err != nil {
		panic(err)
	}

	var input playlistInput
	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	if input.Name == "" {
		httputil.RedirectWithError(rw, r, "/playlists/new", "Playlists need a name.")
		return
	}

	typeID, err := resolveTypeID(r, user, input.PlaylistTypeID)
	if err != nil {
		httputil.RedirectWithError(rw, r, "/playlists/new", "That playlist type doesn't exist.")
		return
	}

	playlist := models.Playlist{
		CreatedAt:      time.Now(),
		UserID:         user.ID,
		PlaylistTypeID: typeID,
		Name:           input.Name,
		Description:    input.Description,
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.CreateRecord(ctx, tx, &playlist)
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/playlists/"+strconv.Itoa(playlist.ID), "Playlist created.")
}

func findOwnPlaylist(r *http.Request, user *models.User) (*models.Playlist, error) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		return nil, sql.ErrNoRows
	}

	var p models.Playlist
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &p, "where id = ? and user_id = ?", id, user.ID); err != nil {
		return nil, err
	}

	return &p, nil
}

// PlaylistScope is one ordered run of videos on the playlist page: the
// uncategorized run has a nil Subcategory.
type PlaylistScope struct {
	Subcategory *models.Subcategory
	Videos      []models.VideoInPlaylist
}

func Playlist(rw http.ResponseWriter, r *http.Request) {
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

	var subcategories []models.Subcategory
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &subcategories, "where playlist_id = ? order by position asc", playlist.ID); err != nil {
		panic(err)
	}

	var videos []models.VideoInPlaylist
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &videos, "where playlist_id = ? order by playlist_video_position asc", playlist.ID); err != nil {
		panic(err)
	}

	scopes := make([]PlaylistScope, 1, len(subcategories)+1)
	for i := range subcategories {
		scopes = append(scopes, PlaylistScope{Subcategory: &subcategories[i]})
	}

	for _, v := range videos {
		if v.SubcategoryID == nil {
			scopes[0].Videos = append(scopes[0].Videos, v)
			continue
		}

		for i := range scopes[1:] {
			if scopes[i+1].Subcategory.ID == *v.SubcategoryID {
				scopes[i+1].Videos = append(scopes[i+1].Videos, v)
				break
			}
		}
	}

	var tags []models.Tag
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &tags, "where id in (select tag_id from playlist_tags where playlist_id = ?) order by name asc", playlist.ID); err != nil {
		panic(err)
	}

	var allTags []models.Tag
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &allTags, "where tag_group_id in (select id from tag_groups where user_id = ?) order by name asc", user.ID); err != nil {
		panic(err)
	}

	var types []models.PlaylistType
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &types, "where user_id = ? order by name asc", user.ID); err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_playlist", map[string]interface{}{
		"Playlist":      playlist,
		"Subcategories": subcategories,
		"Scopes":        scopes,
		"Tags":          tags,
		"AllTags":       allTags,
		"Types":         types,
	}); err != nil {
		panic(err)
	}
}

func PlaylistUpdateAction(rw http.ResponseWriter, r *http.Request) {
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

	var input playlistInput
	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	returnTo := "/playlists/" + strconv.Itoa(playlist.ID)

	if input.Name == "" {
		httputil.RedirectWithError(rw, r, returnTo, "Playlists need a name.")
		return
	}

	typeID, err := resolveTypeID(r, user, input.PlaylistTypeID)
	if err != nil {
		httputil.RedirectWithError(rw, r, returnTo, "That playlist type doesn't exist.")
		return
	}

	playlist.Name = input.Name
	playlist.Description = input.Description
	playlist.PlaylistTypeID = typeID

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.SaveRecord(ctx, tx, playlist)
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, returnTo, "Playlist updated.")
}

// PlaylistDeleteAction removes a playlist along with its subcategories, tag
// associations, attachments, and notes. Videos no longer referenced anywhere
// are collected in the same transaction.
func PlaylistDeleteAction(rw http.ResponseWriter, r *http.Request) {
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

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := attachments.DetachAllForPlaylist(ctx, tx, playlist.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "delete from subcategories where playlist_id = ?", playlist.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "delete from playlist_tags where playlist_id = ?", playlist.ID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, "delete from playlists where id = ?", playlist.ID)
		return err
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/playlists", "Playlist deleted.")
}

func PlaylistTagAddAction(rw http.ResponseWriter, r *http.Request) {
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
		TagID int `formam:"tag_id"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	returnTo := "/playlists/" + strconv.Itoa(playlist.ID)

	var tag models.Tag
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &tag, "where id = ? and tag_group_id in (select id from tag_groups where user_id = ?)", input.TagID, user.ID); err != nil {
		if err == sql.ErrNoRows {
			httputil.RedirectWithError(rw, r, returnTo, "That tag doesn't exist.")
			return
		}

		panic(err)
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		var existing models.PlaylistTag
		if err := sorm.FindFirstWhere(ctx, tx, &existing, "where playlist_id = ? and tag_id = ?", playlist.ID, tag.ID); err == nil {
			return nil
		} else if err != sql.ErrNoRows {
			return err
		}

		return sorm.CreateRecord(ctx, tx, &models.PlaylistTag{
			CreatedAt:  time.Now(),
			PlaylistID: playlist.ID,
			TagID:      tag.ID,
		})
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, returnTo, "Tag added.")
}

func PlaylistTagRemoveAction(rw http.ResponseWriter, r *http.Request) {
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

	tagID, err := strconv.Atoi(mux.Vars(r)["tagID"])
	if err != nil {
		httputil.NotFound(rw, r)
		return
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "delete from playlist_tags where playlist_id = ? and tag_id = ?", playlist.ID, tagID)
		return err
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/playlists/"+strconv.Itoa(playlist.ID), "Tag removed.")
}
