package handlers

import (
	"net/http"

	"fknsrs.biz/p/sorm"

	"fknsrs.biz/p/ytnotes/internal/ctxdb"
	"fknsrs.biz/p/ytnotes/internal/ctxtemplate"
	"fknsrs.biz/p/ytnotes/internal/jobqueue"
)

func Jobs(rw http.ResponseWriter, r *http.Request) {
	if requireUser(rw, r) == nil {
		return
	}

	var jobs []jobqueue.Job
	if err := sorm.FindWhere(r.Context(), ctxdb.GetDB(r.Context()), &jobs, "where finished_at is null order by id desc limit 1500"); err != nil {
		panic(err)
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_jobs", map[string]interface{}{
		"Jobs": jobs,
	}); err != nil {
		panic(err)
	}
}
