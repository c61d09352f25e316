package main

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"fknsrs.biz/p/sorm"
	"github.com/gorilla/mux"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"github.com/tdewolff/minify"
	"github.com/tdewolff/minify/css"
	"github.com/tdewolff/minify/html"
	"github.com/tdewolff/minify/js"
	"github.com/urfave/negroni/v2"
	"go.etcd.io/bbolt"

	"fknsrs.biz/p/ytnotes/handlers"
	"fknsrs.biz/p/ytnotes/internal/attachments"
	"fknsrs.biz/p/ytnotes/internal/bboltstorage"
	"fknsrs.biz/p/ytnotes/internal/config"
	"fknsrs.biz/p/ytnotes/internal/configreader"
	"fknsrs.biz/p/ytnotes/internal/ctxclock"
	"fknsrs.biz/p/ytnotes/internal/ctxconfig"
	"fknsrs.biz/p/ytnotes/internal/ctxdb"
	"fknsrs.biz/p/ytnotes/internal/ctxhttpclient"
	"fknsrs.biz/p/ytnotes/internal/ctxjobqueue"
	"fknsrs.biz/p/ytnotes/internal/ctxlogger"
	"fknsrs.biz/p/ytnotes/internal/ctxsession"
	"fknsrs.biz/p/ytnotes/internal/ctxtemplate"
	"fknsrs.biz/p/ytnotes/internal/ctxtimer"
	"fknsrs.biz/p/ytnotes/internal/httpcache"
	"fknsrs.biz/p/ytnotes/internal/jobqueue"
	"fknsrs.biz/p/ytnotes/internal/logrusstackhook"
	"fknsrs.biz/p/ytnotes/internal/mailer"
	"fknsrs.biz/p/ytnotes/internal/migrate"
	"fknsrs.biz/p/ytnotes/internal/ptr"
	"fknsrs.biz/p/ytnotes/internal/queuenames"
	"fknsrs.biz/p/ytnotes/internal/session"
	"fknsrs.biz/p/ytnotes/internal/sqlitelogger"
	"fknsrs.biz/p/ytnotes/internal/sqltypes"
	"fknsrs.biz/p/ytnotes/internal/stringutil"
	"fknsrs.biz/p/ytnotes/internal/templatecollection"
	"fknsrs.biz/p/ytnotes/internal/timeutil"
	"fknsrs.biz/p/ytnotes/internal/ytdirect"
	"fknsrs.biz/p/ytnotes/models"
)

func init() {
	sorm.SetParameterPrefix("?")
}

var cfg = config.Config{
	LogLevel:             logrus.InfoLevel,
	LogDebugLevels:       config.LevelList{logrus.DebugLevel, logrus.TraceLevel},
	LogQueries:           config.LogQueries{Enabled: true, SlowerThan: time.Millisecond * 100},
	LogSORM:              false,
	ApplicationAddr:      ":8080",
	ApplicationDatabase:  "database.db",
	ApplicationCachePath: "cache.db",
	ApplicationBaseURL:   "http://localhost:8080",
	ApplicationMinify:    true,
	SessionCookieName:    "ytnotes_session",
	SessionTTL:           config.Duration(session.DefaultTTL),
	SessionSweepInterval: timeutil.DayTimeDuration(time.Hour),
	OrphanSweepInterval:  timeutil.DayTimeDuration(time.Hour * 24),
	RegistrationEnabled:  true,
	BackgroundWorkers:    1,
}

//go:embed templates
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

func init() {
	for _, configPath := range []string{"config.toml", "config.yaml", "config.yml"} {
		if st, err := os.Stat(configPath); err == nil && st != nil && !st.IsDir() {
			cfg.Config = configPath
		}
	}
}

type simpleQueryLogger struct {
	logger *logrus.Logger
}

func (s *simpleQueryLogger) LogQuery(query string, args []interface{}) {
	fields := logrus.Fields{
		"db.query":      query,
		"db.args.count": len(args),
	}

	for i, e := range args {
		fields[fmt.Sprintf("db.args.%d", i)] = e
	}

	s.logger.WithFields(fields).Info("sorm query start")
}

func (s *simpleQueryLogger) LogQueryAfter(query string, args []interface{}, duration time.Duration, err error) {
	fields := logrus.Fields{
		"db.query":      query,
		"db.duration":   duration,
		"db.error":      err,
		"db.args.count": len(args),
	}

	for i, e := range args {
		fields[fmt.Sprintf("db.args.%d", i)] = e
	}

	s.logger.WithFields(fields).Info("sorm query finish")
}

func main() {
	ctx := context.Background()

	if err := configreader.Read(os.Args[0], os.Args[1:], os.Environ(), &cfg); err != nil {
		panic(err)
	}

	ctx = ctxconfig.WithConfig(ctx, cfg)
	ctx = ctxclock.WithClock(ctx, ctxclock.NewRealClock())

	logger := logrus.New()

	logger.SetLevel(cfg.LogLevel)
	if len(cfg.LogDebugLevels) > 0 {
		logger.AddHook(logrusstackhook.NewStackHook(nil, cfg.LogDebugLevels, nil))
	}

	logger.WithFields(logrus.Fields{
		"config.config":                 cfg.Config,
		"config.log_level":              cfg.LogLevel,
		"config.log_debug_levels":       cfg.LogDebugLevels,
		"config.log_queries":            cfg.LogQueries,
		"config.log_sorm":               cfg.LogSORM,
		"config.application_addr":       cfg.ApplicationAddr,
		"config.application_database":   cfg.ApplicationDatabase,
		"config.application_cache_path": cfg.ApplicationCachePath,
		"config.application_base_url":   cfg.ApplicationBaseURL,
		"config.application_minify":     cfg.ApplicationMinify,
		"config.session_cookie_name":    cfg.SessionCookieName,
		"config.session_ttl":            time.Duration(cfg.SessionTTL),
		"config.session_sweep_interval": time.Duration(cfg.SessionSweepInterval),
		"config.orphan_sweep_interval":  time.Duration(cfg.OrphanSweepInterval),
		"config.registration_enabled":   cfg.RegistrationEnabled,
		"config.smtp_addr":              cfg.SMTPAddr,
		"config.background_workers":     cfg.BackgroundWorkers,
	}).Info("program starting")

	if cfg.LogSORM {
		sorm.SetQueryLogger(&simpleQueryLogger{logger})
	}

	ctx = ctxlogger.WithLogger(ctx, logger)

	dbDriver := "sqlite3"

	if !cfg.LogQueries.IsZero() {
		dbDriver = "sqlite3:logged"

		sql.Register(dbDriver, sqlitelogger.New(
			dbDriver,
			&sqlite3.SQLiteDriver{},
			&sqlitelogger.BasicFilter{
				LogSlowerThan: cfg.LogQueries.SlowerThan,
				IgnorePackageStackFrames: []string{
					// standard library
					"database/sql",
					"net/http",
					"runtime",
					// libraries
					"github.com/gorilla/mux",
					"github.com/shogo82148/go-sql-proxy",
					"github.com/urfave/negroni/v2",
					// middleware
					"fknsrs.biz/p/ytnotes/internal/ctxclock",
					"fknsrs.biz/p/ytnotes/internal/ctxdb",
					"fknsrs.biz/p/ytnotes/internal/ctxjobqueue",
					"fknsrs.biz/p/ytnotes/internal/ctxlogger",
					"fknsrs.biz/p/ytnotes/internal/ctxsession",
					"fknsrs.biz/p/ytnotes/internal/ctxtemplate",
					"fknsrs.biz/p/ytnotes/internal/ctxtimer",
					"fknsrs.biz/p/ytnotes/internal/sqlitelogger",
					// main
					"main",
				},
				IgnoreFunctionQueries: []string{
					"fknsrs.biz/p/ytnotes/internal/jobqueue.(*Worker).Run",
				},
			},
		))
	}

	db, err := sql.Open(dbDriver, cfg.ApplicationDatabase)
	if err != nil {
		panic(err)
	}
	defer db.Close()

	ctx = ctxdb.WithDB(ctx, db)

	if err := migrate.Up(ctx, db); err != nil {
		panic(err)
	}

	cacheDB, err := bbolt.Open(cfg.ApplicationCachePath, 0600, nil)
	if err != nil {
		panic(err)
	}
	defer cacheDB.Close()

	ctx = ctxhttpclient.WithHTTPClient(ctx, &http.Client{
		Transport: httpcache.NewTransport(nil, bboltstorage.New(cacheDB), 0),
	})

	ctx = ctxjobqueue.WithWorker(ctx, jobqueue.NewWorker(nil))

	var sender mailer.Sender = mailer.LogSender{}
	if cfg.SMTPAddr != "" {
		sender = mailer.NewSMTPSender(cfg.SMTPAddr, cfg.SMTPFrom)
	}

	if err := registerJobQueueWorkerFunctions(ctx, sender); err != nil {
		panic(err)
	}

	if err := ensureSweepJobs(ctx); err != nil {
		panic(err)
	}

	workers := []worker{
		{
			name: "application",
			run: func(ctx context.Context) error {
				return runApplicationWorker(ctx, cfg.ApplicationAddr)
			},
		},
	}

	for i := 0; i < cfg.BackgroundWorkers; i++ {
		workers = append(workers, worker{
			name: fmt.Sprintf("job_queue.%d", i),
			run: func(ctx context.Context) error {
				return runJobQueueWorker(ctx)
			},
		})
	}

	if err := runAllWorkers(ctx, workers); err != nil {
		panic(err)
	}
}

type worker struct {
	name string
	run  func(ctx context.Context) error
}

func runAllWorkers(ctx context.Context, workers []worker) error {
	done := make(chan error, len(workers))
	cancellers := make([]context.CancelCauseFunc, len(workers))

	var rw sync.RWMutex

	for id, w := range workers {
		go func(id int, w worker) {
			for {
				l := ctxlogger.GetLogger(ctx).WithFields(logrus.Fields{
					"worker.id":   id + 1,
					"worker.name": w.name,
				})

				ctx, cancel := context.WithCancelCause(ctxlogger.WithLogger(ctx, l))

				rw.Lock()
				cancellers[id] = cancel
				rw.Unlock()

				if err := w.run(ctx); err != nil {
					l.WithError(err).Error("worker failed")

					rw.RLock()
					for _, fn := range cancellers {
						if fn == nil {
							continue
						}

						fn(fmt.Errorf("worker %d (%s) failed: %w", id+1, w.name, err))
					}
					rw.RUnlock()
				} else {
					l.Info("worker restarted")
				}

				time.Sleep(time.Second)
			}
		}(id, w)
	}

	var errs []error
	for err := range done {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func directoryExists(name string) bool {
	st, err := os.Stat(name)
	if err != nil {
		return false
	}
	return st.IsDir()
}

func runApplicationWorker(ctx context.Context, addr string) error {
	l := ctxlogger.GetLogger(ctx)

	l.WithFields(logrus.Fields{
		"args.addr": addr,
	}).Info("running application worker")

	templateFuncs := template.FuncMap{
		"first_of": func(a ...interface{}) string {
			for _, e := range a {
				if s := fmt.Sprintf("%v", e); s != "" {
					return s
				}
			}

			return ""
		},
		"format_time": func(t time.Time) string {
			return t.Format(time.RFC3339)
		},
		"format_time_null": func(t *time.Time) string {
			if t == nil {
				return ""
			}

			return t.Format(time.RFC3339)
		},
		"format_date": func(t time.Time) string {
			return t.Format("2006-01-02")
		},
		"format_time_relative": func(t time.Time) string {
			return time.Now().Sub(t).String()
		},
		"format_timestamp": func(seconds int) string {
			if seconds >= 3600 {
				return fmt.Sprintf("%d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
			}

			return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
		},
		"format_timestamp_null": func(seconds *int) string {
			if seconds == nil {
				return ""
			}

			if *seconds >= 3600 {
				return fmt.Sprintf("%d:%02d:%02d", *seconds/3600, (*seconds/60)%60, *seconds%60)
			}

			return fmt.Sprintf("%d:%02d", *seconds/60, *seconds%60)
		},
		"deref_int": func(p *int) int {
			if p == nil {
				return 0
			}

			return *p
		},
		"pascal_to_snake": stringutil.PascalToSnake,
		"pascal_to_title": stringutil.PascalToTitle,
		"make_map": func(args ...interface{}) map[string]interface{} {
			m := make(map[string]interface{})

			for i := 0; i < len(args)/2; i++ {
				kv := args[i*2]
				vv := args[i*2+1]

				k, ok := kv.(string)
				if !ok {
					panic(fmt.Errorf("key value should be string; was instead %T", kv))
				}

				m[k] = vv
			}

			return m
		},
	}

	var templates templatecollection.Collection

	if directoryExists("templates") {
		l.Info("using live filesystem for templates")
		c, err := templatecollection.NewLive(os.DirFS("templates"), templateFuncs)
		if err != nil {
			return fmt.Errorf("runApplicationWorker: %w", err)
		}
		templates = c
	} else {
		l.Info("using embedded filesystem for templates")
		c, err := templatecollection.NewCached(templateFS, templateFuncs)
		if err != nil {
			return fmt.Errorf("runApplicationWorker: %w", err)
		}
		templates = c
	}

	m := mux.NewRouter()

	m.Methods(http.MethodGet).Path("/").HandlerFunc(handlers.Index)
	m.Methods(http.MethodGet).Path("/register").HandlerFunc(handlers.Register)
	m.Methods(http.MethodPost).Path("/register").HandlerFunc(handlers.RegisterAction)
	m.Methods(http.MethodGet).Path("/login").HandlerFunc(handlers.Login)
	m.Methods(http.MethodPost).Path("/login").HandlerFunc(handlers.LoginAction)
	m.Methods(http.MethodPost).Path("/logout").HandlerFunc(handlers.LogoutAction)
	m.Methods(http.MethodGet).Path("/types").HandlerFunc(handlers.PlaylistTypes)
	m.Methods(http.MethodPost).Path("/types").HandlerFunc(handlers.PlaylistTypeCreateAction)
	m.Methods(http.MethodPost).Path("/types/{id}").HandlerFunc(handlers.PlaylistTypeUpdateAction)
	m.Methods(http.MethodPost).Path("/types/{id}/delete").HandlerFunc(handlers.PlaylistTypeDeleteAction)
	m.Methods(http.MethodGet).Path("/tag-groups").HandlerFunc(handlers.TagGroups)
	m.Methods(http.MethodPost).Path("/tag-groups").HandlerFunc(handlers.TagGroupCreateAction)
	m.Methods(http.MethodPost).Path("/tag-groups/{id}/delete").HandlerFunc(handlers.TagGroupDeleteAction)
	m.Methods(http.MethodPost).Path("/tag-groups/{id}/tags").HandlerFunc(handlers.TagCreateAction)
	m.Methods(http.MethodPost).Path("/tags/{id}/delete").HandlerFunc(handlers.TagDeleteAction)
	m.Methods(http.MethodGet).Path("/playlists").HandlerFunc(handlers.Playlists)
	m.Methods(http.MethodGet).Path("/playlists/new").HandlerFunc(handlers.PlaylistNew)
	m.Methods(http.MethodPost).Path("/playlists").HandlerFunc(handlers.PlaylistCreateAction)
	m.Methods(http.MethodGet).Path("/playlists/{id}").HandlerFunc(handlers.Playlist)
	m.Methods(http.MethodPost).Path("/playlists/{id}").HandlerFunc(handlers.PlaylistUpdateAction)
	m.Methods(http.MethodPost).Path("/playlists/{id}/delete").HandlerFunc(handlers.PlaylistDeleteAction)
	m.Methods(http.MethodPost).Path("/playlists/{id}/tags").HandlerFunc(handlers.PlaylistTagAddAction)
	m.Methods(http.MethodPost).Path("/playlists/{id}/tags/{tagID}/delete").HandlerFunc(handlers.PlaylistTagRemoveAction)
	m.Methods(http.MethodPost).Path("/playlists/{id}/subcategories").HandlerFunc(handlers.SubcategoryCreateAction)
	m.Methods(http.MethodPost).Path("/playlists/{id}/subcategories/{subcategoryID}").HandlerFunc(handlers.SubcategoryRenameAction)
	m.Methods(http.MethodPost).Path("/playlists/{id}/subcategories/{subcategoryID}/delete").HandlerFunc(handlers.SubcategoryDeleteAction)
	m.Methods(http.MethodPost).Path("/playlists/{id}/attach").HandlerFunc(handlers.AttachAction)
	m.Methods(http.MethodPost).Path("/playlists/{id}/reorder").HandlerFunc(handlers.ReorderAction)
	m.Methods(http.MethodGet).Path("/attachments/{id}/notes").HandlerFunc(handlers.AttachmentNotes)
	m.Methods(http.MethodPost).Path("/attachments/{id}/notes").HandlerFunc(handlers.NoteCreateAction)
	m.Methods(http.MethodPost).Path("/attachments/{id}/move").HandlerFunc(handlers.MoveAction)
	m.Methods(http.MethodPost).Path("/attachments/{id}/delete").HandlerFunc(handlers.DetachAction)
	m.Methods(http.MethodPost).Path("/notes/{id}").HandlerFunc(handlers.NoteUpdateAction)
	m.Methods(http.MethodPost).Path("/notes/{id}/delete").HandlerFunc(handlers.NoteDeleteAction)
	m.Methods(http.MethodGet).Path("/videos").HandlerFunc(handlers.Videos)
	m.Methods(http.MethodGet).Path("/videos/{id}").HandlerFunc(handlers.Video)
	m.Methods(http.MethodPost).Path("/videos/{id}/refresh").HandlerFunc(handlers.VideoRefreshAction)
	m.Methods(http.MethodGet).Path("/jobs").HandlerFunc(handlers.Jobs)

	if directoryExists("static") {
		l.Info("using live filesystem for static files")
		m.Methods(http.MethodGet).PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	} else {
		l.Info("using embedded filesystem for static files")
		m.Methods(http.MethodGet).PathPrefix("/static/").Handler(http.FileServer(http.FS(staticFS)))
	}

	min := minify.New()
	min.Add("text/html", html.DefaultMinifier)
	min.Add("text/css", css.DefaultMinifier)
	min.Add("application/javascript", js.DefaultMinifier)

	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.UseFunc(ctxlogger.Register(l))
	n.UseFunc(ctxtimer.Register(nil))
	n.UseFunc(ctxclock.Register(ctxclock.GetClock(ctx)))
	n.UseFunc(ctxtemplate.Register(templates))
	n.UseFunc(ctxdb.Register(ctxdb.GetDB(ctx)))
	n.UseFunc(ctxjobqueue.Register(ctxjobqueue.GetWorker(ctx)))
	n.UseFunc(ctxsession.Register(cfg.SessionCookieName))
	n.UseFunc(ctxtimer.AddLoggerHooks())
	n.UseFunc(ctxclock.AddLoggerHooks())
	n.UseFunc(ctxlogger.Log())

	n.UseFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
		next(rw, r.WithContext(ctxtemplate.WithData(r.Context(), map[string]interface{}{
			"User": ctxsession.GetUser(r.Context()),
			"Messages": struct{ Error, Success, Information string }{
				r.URL.Query().Get("error"),
				r.URL.Query().Get("success"),
				r.URL.Query().Get("information"),
			},
		})))
	})

	if cfg.ApplicationMinify {
		n.UseFunc(func(rw http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
			if strings.ToLower(r.Header.Get("connection")) != "upgrade" {
				mw := min.ResponseWriter(rw, r)
				defer mw.Close()
				rw = mw
			}

			next(rw, r)
		})
	}

	n.UseHandler(m)

	s := &http.Server{
		Addr:        addr,
		Handler:     n,
		BaseContext: func(l net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		l.Info("starting server")
		errs <- s.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		return s.Shutdown(ctx)
	}
}

// ensureSweepJobs makes sure exactly one pending sweep job of each kind
// exists; each sweep re-enqueues itself when it runs.
func ensureSweepJobs(ctx context.Context) error {
	return ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, queueName := range []string{queuenames.SessionSweep, queuenames.OrphanSweep} {
			var count int
			if err := tx.QueryRowContext(ctx, "select count(*) from jobs where queue_name = ? and finished_at is null", queueName).Scan(&count); err != nil {
				return err
			}

			if count > 0 {
				continue
			}

			if err := ctxjobqueue.Add(ctx, tx, &jobqueue.Job{QueueName: queueName}); err != nil {
				return err
			}
		}

		return nil
	})
}

func registerJobQueueWorkerFunctions(ctx context.Context, sender mailer.Sender) error {
	l := ctxlogger.GetLogger(ctx)

	l.Info("registering job queue worker functions")

	w := ctxjobqueue.GetWorker(ctx)
	if w == nil {
		return fmt.Errorf("job queue worker not available in context")
	}

	return w.RegisterAll(map[string]jobqueue.WorkerFunction{
		queuenames.VideoRefreshMetadata: func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
			externalID, _, err := jobqueue.ParsePayload(j.Payload)
			if err != nil {
				return "", err
			}

			videoData, err := ytdirect.GetVideo(ctx, externalID)
			if err != nil {
				return "", err
			}

			if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
				var video models.Video
				if err := sorm.FindFirstWhere(ctx, tx, &video, "where external_id = ?", externalID); err != nil {
					if err == sql.ErrNoRows {
						// detached and collected in the meantime
						return nil
					}

					return err
				}

				video.Title = videoData.Title
				video.ChannelExternalID = videoData.ChannelID
				video.ChannelTitle = videoData.ChannelTitle
				video.DurationSeconds = videoData.LengthSeconds
				video.Thumbnails = sqltypes.JSONStringSlice(videoData.Thumbnails)
				video.MetadataUpdatedAt = ptr.Time(time.Now())

				return sorm.SaveRecord(ctx, tx, &video)
			}); err != nil {
				return "", err
			}

			return "refreshed " + externalID, nil
		},
		queuenames.MailSend: func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
			var msg mailer.Message
			if err := json.Unmarshal([]byte(j.Payload), &msg); err != nil {
				return "", err
			}

			if err := sender.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
				return "", err
			}

			return "sent to " + msg.To, nil
		},
		queuenames.SessionSweep: func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
			var deleted int64

			if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
				n, err := session.DeleteExpired(ctx, tx, time.Now())
				if err != nil {
					return err
				}
				deleted = n

				return ctxjobqueue.Add(ctx, tx, &jobqueue.Job{
					QueueName: queuenames.SessionSweep,
					RunAfter:  time.Now().Add(time.Duration(cfg.SessionSweepInterval)),
				})
			}); err != nil {
				return "", err
			}

			return fmt.Sprintf("deleted %d expired sessions", deleted), nil
		},
		queuenames.OrphanSweep: func(ctx context.Context, w *jobqueue.Worker, j *jobqueue.Job) (string, error) {
			var collected int

			if err := ctxdb.UsingTx(ctx, nil, func(ctx context.Context, tx *sql.Tx) error {
				rows, err := tx.QueryContext(ctx, "select id from videos where id not in (select video_id from playlist_videos)")
				if err != nil {
					return err
				}

				var ids []int
				for rows.Next() {
					var id int
					if err := rows.Scan(&id); err != nil {
						rows.Close()
						return err
					}
					ids = append(ids, id)
				}
				if err := rows.Close(); err != nil {
					return err
				}

				for _, id := range ids {
					deleted, err := attachments.CollectOrphan(ctx, tx, id)
					if err != nil {
						return err
					}
					if deleted {
						collected++
					}
				}

				return ctxjobqueue.Add(ctx, tx, &jobqueue.Job{
					QueueName: queuenames.OrphanSweep,
					RunAfter:  time.Now().Add(time.Duration(cfg.OrphanSweepInterval)),
				})
			}); err != nil {
				return "", err
			}

			return fmt.Sprintf("collected %d orphaned videos", collected), nil
		},
	})
}

func runJobQueueWorker(ctx context.Context) error {
	l := ctxlogger.GetLogger(ctx)

	l.Info("running job queue worker")

	w := ctxjobqueue.GetWorker(ctx)
	if w == nil {
		return fmt.Errorf("job queue worker not available in context")
	}

	return w.Run(ctx)
}
