package ctxsession

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"fknsrs.biz/p/ytnotes/internal/ctxdb"
	"fknsrs.biz/p/ytnotes/internal/ctxlogger"
	"fknsrs.biz/p/ytnotes/internal/session"
	"fknsrs.biz/p/ytnotes/models"
)

// context registration

var userKey int

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, &userKey, user)
}

// GetUser returns the authenticated user for this request, or nil.
func GetUser(ctx context.Context) *models.User {
	if v := ctx.Value(&userKey); v != nil {
		return v.(*models.User)
	}

	return nil
}

// middleware

// Register resolves the session cookie to a user record on every request.
// Unknown, expired, or missing tokens simply leave the user unset; handlers
// decide what requires authentication.
func Register(cookieName string) func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	return func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		c, err := r.Cookie(cookieName)
		if err != nil || c.Value == "" {
			next(rw, r)
			return
		}

		user, err := session.FindUser(r.Context(), ctxdb.GetDB(r.Context()), c.Value, time.Now())
		if err != nil {
			if err != sql.ErrNoRows {
				ctxlogger.GetLogger(r.Context()).WithError(err).Error("could not resolve session token")
			}

			next(rw, r)
			return
		}

		next(rw, r.WithContext(WithUser(r.Context(), user)))
	}
}
