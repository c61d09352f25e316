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

// TagGroupWithTags is the shape page_tag_groups renders: each group together
// with its tags in name order.
type TagGroupWithTags struct {
	models.TagGroup
	Tags []models.Tag
}

func TagGroups(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	var groups []models.TagGroup
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &groups, "where user_id = ? order by name asc", user.ID); err != nil {
		panic(err)
	}

	var tags []models.Tag
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &tags, "where tag_group_id in (select id from tag_groups where user_id = ?) order by name asc", user.ID); err != nil {
		panic(err)
	}

	grouped := make([]TagGroupWithTags, len(groups))
	for i, g := range groups {
		grouped[i].TagGroup = g
		for _, t := range tags {
			if t.TagGroupID == g.ID {
				grouped[i].Tags = append(grouped[i].Tags, t)
			}
		}
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_tag_groups", map[string]interface{}{
		"Groups": grouped,
	}); err != nil {
		panic(err)
	}
}

func TagGroupCreateAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
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

	if input.Name == "" {
		httputil.RedirectWithError(rw, r, "/tag-groups", "Tag groups need a name.")
		return
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.CreateRecord(ctx, tx, &models.TagGroup{
			CreatedAt: time.Now(),
			UserID:    user.ID,
			Name:      input.Name,
		})
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/tag-groups", "Tag group created.")
}

func findOwnTagGroup(r *http.Request, user *models.User, id int) (*models.TagGroup, error) {
	var g models.TagGroup
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &g, "where id = ? and user_id = ?", id, user.ID); err != nil {
		return nil, err
	}

	return &g, nil
}

// TagGroupDeleteAction removes a group with its tags; any playlist
// associations with those tags go too.
func TagGroupDeleteAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		httputil.NotFound(rw, r)
		return
	}

	g, err := findOwnTagGroup(r, user, id)
	if err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "delete from playlist_tags where tag_id in (select id from tags where tag_group_id = ?)", g.ID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "delete from tags where tag_group_id = ?", g.ID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, "delete from tag_groups where id = ?", g.ID)
		return err
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/tag-groups", "Tag group deleted.")
}

func TagCreateAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		httputil.NotFound(rw, r)
		return
	}

	g, err := findOwnTagGroup(r, user, id)
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

	if input.Name == "" {
		httputil.RedirectWithError(rw, r, "/tag-groups", "Tags need a name.")
		return
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return sorm.CreateRecord(ctx, tx, &models.Tag{
			CreatedAt:  time.Now(),
			TagGroupID: g.ID,
			Name:       input.Name,
		})
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/tag-groups", "Tag created.")
}

func TagDeleteAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		httputil.NotFound(rw, r)
		return
	}

	var tag models.Tag
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &tag, "where id = ? and tag_group_id in (select id from tag_groups where user_id = ?)", id, user.ID); err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "delete from playlist_tags where tag_id = ?", tag.ID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, "delete from tags where id = ?", tag.ID)
		return err
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/tag-groups", "Tag deleted.")
}
