package handlers

import (
	"net/http"

	"fknsrs.biz/p/ytnotes/internal/ctxsession"
	"fknsrs.biz/p/ytnotes/internal/httputil"
	"fknsrs.biz/p/ytnotes/models"
)

// requireUser returns the signed-in user, or redirects to the login page and
// returns nil. Callers must return immediately on nil.
func requireUser(rw http.ResponseWriter, r *http.Request) *models.User {
	user := ctxsession.GetUser(r.Context())
	if user == nil {
		httputil.RedirectWithError(rw, r, "/login", "You must be signed in to do that.")
		return nil
	}

	return user
}
