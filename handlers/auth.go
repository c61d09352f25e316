package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/monoculum/formam"
	"golang.org/x/crypto/bcrypt"

	"fknsrs.biz/p/ytnotes/internal/ctxconfig"
	"fknsrs.biz/p/ytnotes/internal/ctxdb"
	"fknsrs.biz/p/ytnotes/internal/ctxjobqueue"
	"fknsrs.biz/p/ytnotes/internal/ctxsession"
	"fknsrs.biz/p/ytnotes/internal/ctxtemplate"
	"fknsrs.biz/p/ytnotes/internal/httputil"
	"fknsrs.biz/p/ytnotes/internal/jobqueue"
	"fknsrs.biz/p/ytnotes/internal/mailer"
	"fknsrs.biz/p/ytnotes/internal/queuenames"
	"fknsrs.biz/p/ytnotes/internal/session"
	"fknsrs.biz/p/ytnotes/models"
)

func setSessionCookie(rw http.ResponseWriter, r *http.Request, s *models.Session) {
	http.SetCookie(rw, &http.Cookie{
		Name:     ctxconfig.GetConfig(r.Context()).SessionCookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(rw http.ResponseWriter, r *http.Request) {
	http.SetCookie(rw, &http.Cookie{
		Name:     ctxconfig.GetConfig(r.Context()).SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func Register(rw http.ResponseWriter, r *http.Request) {
	if !ctxconfig.GetConfig(r.Context()).RegistrationEnabled {
		httputil.RedirectWithError(rw, r, "/login", "Registration is currently closed.")
		return
	}

	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_register", map[string]interface{}{}); err != nil {
		panic(err)
	}
}

func RegisterAction(rw http.ResponseWriter, r *http.Request) {
	if !ctxconfig.GetConfig(r.Context()).RegistrationEnabled {
		httputil.RedirectWithError(rw, r, "/login", "Registration is currently closed.")
		return
	}

	if err := r.ParseForm(); err != nil {
		panic(err)
	}

	var input struct {
		Email       string `formam:"email"`
		DisplayName string `formam:"display_name"`
		Password    string `formam:"password"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.DisplayName = strings.TrimSpace(input.DisplayName)

	if input.Email == "" || !strings.Contains(input.Email, "@") {
		httputil.RedirectWithError(rw, r, "/register", "A valid email address is required.")
		return
	}
	if input.DisplayName == "" {
		input.DisplayName = input.Email
	}
	if len(input.Password) < 8 {
		httputil.RedirectWithError(rw, r, "/register", "Passwords must be at least eight characters.")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}

	var s *models.Session
	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		var existing models.User
		if err := sorm.FindFirstWhere(ctx, tx, &existing, "where email = ?", input.Email); err == nil {
			return errEmailTaken
		} else if err != sql.ErrNoRows {
			return err
		}

		user := models.User{
			CreatedAt:    time.Now(),
			Email:        input.Email,
			DisplayName:  input.DisplayName,
			PasswordHash: string(hash),
		}

		if err := sorm.CreateRecord(ctx, tx, &user); err != nil {
			return err
		}

		payload, err := json.Marshal(mailer.Message{
			To:      user.Email,
			Subject: "Welcome to ytnotes",
			Body:    "Hi " + user.DisplayName + ",\n\nYour account is ready. Sign in at " + ctxconfig.GetConfig(ctx).ApplicationBaseURL + "/login and start organising playlists.\n",
		})
		if err != nil {
			return err
		}

		if err := ctxjobqueue.Add(ctx, tx, &jobqueue.Job{
			QueueName: queuenames.MailSend,
			Payload:   string(payload),
		}); err != nil {
			return err
		}

		s, err = session.Create(ctx, tx, user.ID, time.Duration(ctxconfig.GetConfig(ctx).SessionTTL))
		return err
	}); err != nil {
		if err == errEmailTaken {
			httputil.RedirectWithError(rw, r, "/register", "That email address is already registered.")
			return
		}

		panic(err)
	}

	setSessionCookie(rw, r, s)

	httputil.RedirectWithSuccess(rw, r, "/", "Welcome! Your account is ready.")
}

var errEmailTaken = errors.New("email address already registered")

func Login(rw http.ResponseWriter, r *http.Request) {
	if err := ctxtemplate.ExecuteTemplateIntoResponse(r, rw, "page_login", map[string]interface{}{}); err != nil {
		panic(err)
	}
}

func LoginAction(rw http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		panic(err)
	}

	var input struct {
		Email    string `formam:"email"`
		Password string `formam:"password"`
	}

	if err := formam.Decode(r.PostForm, &input); err != nil {
		panic(err)
	}

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))

	var user models.User
	if err := sorm.FindFirstWhere(r.Context(), ctxdb.GetDB(r.Context()), &user, "where email = ?", input.Email); err != nil {
		if err == sql.ErrNoRows {
			httputil.RedirectWithError(rw, r, "/login", "Unknown email address or wrong password.")
			return
		}

		panic(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		httputil.RedirectWithError(rw, r, "/login", "Unknown email address or wrong password.")
		return
	}

	var s *models.Session
	if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		s, err = session.Create(ctx, tx, user.ID, time.Duration(ctxconfig.GetConfig(ctx).SessionTTL))
		return err
	}); err != nil {
		panic(err)
	}

	setSessionCookie(rw, r, s)

	httputil.RedirectWithSuccess(rw, r, "/", "Welcome back, "+user.DisplayName+".")
}

func LogoutAction(rw http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(ctxconfig.GetConfig(r.Context()).SessionCookieName); err == nil && c.Value != "" {
		if err := ctxdb.UsingTx(r.Context(), nil, func(ctx context.Context, tx *sql.Tx) error {
			return session.Delete(ctx, tx, c.Value)
		}); err != nil {
			panic(err)
		}
	}

	clearSessionCookie(rw, r)

	if ctxsession.GetUser(r.Context()) != nil {
		httputil.RedirectWithSuccess(rw, r, "/login", "You have been signed out.")
	} else {
		http.Redirect(rw, r, "/login", http.StatusFound)
	}
}
