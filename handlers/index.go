package handlers

import (
	"net/http"

	"fknsrs.biz/p/sorm"
	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"

	"fknsrs.biz/p/ytnotes/internal/ctxdb"
	"fknsrs.biz/p/ytnotes/internal/ctxsession"
	"fknsrs.biz/p/ytnotes/internal/ctxtemplate"
	"fknsrs.biz/p/ytnotes/models"
)

func Index(rw http.ResponseWriter, r *http.Request) {
	user := ctxsession.GetUser(r.Context())
	if user == nil {
		if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_index", map[string]interface{}{}); err != nil {
			panic(err)
		}
		return
	}

	var playlists []models.PlaylistSearch
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&playlists,
		sb.Eq(models.PlaylistSearchTable.C("PlaylistUserID"), sb.Bind(user.ID)),
		[]sb.AsOrderingTerm{sb.OrderDesc(models.PlaylistSearchTable.C("PlaylistCreatedAt"))},
		sb.OffsetLimit(nil, sb.Literal("10")),
	); err != nil {
		panic(err)
	}

	var notes []models.Note
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &notes, "where user_id = ? order by updated_at desc limit 10", user.ID); err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_index", map[string]interface{}{
		"Playlists": playlists,
		"Notes":     notes,
	}); err != nil {
		panic(err)
	}
}
