package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"

	"fknsrs.biz/p/sorm"
	"fknsrs.biz/p/sorm/qsorm"
	sb "fknsrs.biz/p/sqlbuilder"
	"github.com/gorilla/mux"

	"fknsrs.biz/p/ytnotes/internal/ctxdb"
	"fknsrs.biz/p/ytnotes/internal/ctxjobqueue"
	"fknsrs.biz/p/ytnotes/internal/ctxtemplate"
	"fknsrs.biz/p/ytnotes/internal/godatautil"
	"fknsrs.biz/p/ytnotes/internal/httputil"
	"fknsrs.biz/p/ytnotes/internal/jobqueue"
	"fknsrs.biz/p/ytnotes/internal/queuenames"
	"fknsrs.biz/p/ytnotes/models"
)

// Videos lists every video attached to any of the current user's playlists.
// Like the playlist listing it accepts OData-style $filter, $orderby, $skip,
// and $top parameters.
func Videos(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	q, err := godatautil.ParseQuery(r.URL.Query())
	if err != nil {
		httputil.RedirectWithError(rw, r, "/videos", "Could not understand query: "+err.Error())
		return
	}

	condition := sb.AsExpr(sb.Eq(models.VideoSearchTable.C("VideoUserID"), sb.Bind(user.ID)))

	if filter, err := godatautil.MakeCondition(q, models.VideoSearchTable); err != nil {
		httputil.RedirectWithError(rw, r, "/videos", "Could not understand query: "+err.Error())
		return
	} else if filter != nil {
		condition = sb.BooleanOperator("and", condition, filter)
	}

	order, err := godatautil.MakeOrders(q, models.VideoSearchTable, sb.OrderDesc(models.VideoSearchTable.C("VideoCreatedAt")))
	if err != nil {
		httputil.RedirectWithError(rw, r, "/videos", "Could not understand query: "+err.Error())
		return
	}

	var videos []models.VideoSearch
	if err := qsorm.FindWhere(
		r.Context(),
		ctxdb.GetDB(r.Context()),
		&videos,
		condition,
		order,
		godatautil.MakeOffsetLimit(q, 0, 100),
	); err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_videos", map[string]interface{}{
		"Videos": videos,
	}); err != nil {
		panic(err)
	}
}

// Video shows one video's metadata plus every place it appears in the user's
// playlists.
func Video(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		httputil.NotFound(rw, r)
		return
	}

	var video models.Video
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &video, "where id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	var appearances []models.VideoInPlaylist
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &appearances, "where video_id = ? and playlist_user_id = ? order by playlist_id asc, playlist_video_position asc", video.ID, user.ID); err != nil {
		panic(err)
	}

	if len(appearances) == 0 {
		httputil.NotFound(rw, r)
		return
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_video", map[string]interface{}{
		"Video":       video,
		"Appearances": appearances,
	}); err != nil {
		panic(err)
	}
}

// VideoRefreshAction queues a metadata refresh; the page reflects the new
// details once the background worker gets to it.
func VideoRefreshAction(rw http.ResponseWriter, r *http.Request) {
	user := requireUser(rw, r)
	if user == nil {
		return
	}

	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		httputil.NotFound(rw, r)
		return
	}

	var video models.Video
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &video, "where id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			httputil.NotFound(rw, r)
			return
		}

		panic(err)
	}

	// only videos visible to this user can be refreshed
	var appearances int
	if err := ctxdb.GetDB(r.Context()).QueryRowContext(r.Context(), "select count(*) from playlist_videos pv join playlists p on p.id = pv.playlist_id where pv.video_id = ? and p.user_id = ?", video.ID, user.ID).Scan(&appearances); err != nil {
		panic(err)
	}
	if appearances == 0 {
		httputil.NotFound(rw, r)
		return
	}

	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		return ctxjobqueue.Add(ctx, tx, &jobqueue.Job{
			QueueName: queuenames.VideoRefreshMetadata,
			Payload:   video.ExternalID,
		})
	}); err != nil {
		panic(err)
	}

	httputil.RedirectWithSuccess(rw, r, "/videos/"+strconv.Itoa(video.ID), "Metadata will be refreshed soon.")
}
