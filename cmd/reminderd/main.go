package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"reminderd/internal/api"
	"reminderd/internal/directory"
	"reminderd/internal/dispatch"
	"reminderd/internal/jobstore"
	"reminderd/internal/mailer"
	"reminderd/internal/reminder"
	"reminderd/internal/schedule"
)

func main() {
	var (
		addr   = flag.String("addr", ":8080", "HTTP bind address")
		dbPath = flag.String("db", "reminderd.db", "SQLite DB path")
		lead   = flag.Duration("lead", 24*time.Hour, "reminder lead time before the event")
		sweep  = flag.Duration("sweep", time.Minute, "reconciliation sweep interval")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	_ = godotenv.Load()

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", *dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	db.SetMaxOpenConns(1) // SQLite single writer

	if err := jobstore.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("ensure job schema")
	}
	if err := directory.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("ensure directory schema")
	}

	store := jobstore.NewSQLiteStore(db)
	dir := directory.NewSQLiteReader(db)

	var sender mailer.Sender = mailer.Log{}
	if cfg, ok := mailer.ConfigFromEnv(); ok {
		sender = mailer.NewSMTP(cfg)
		log.Info().Str("host", cfg.Host).Int("port", cfg.Port).Msg("SMTP sender configured")
	} else {
		log.Warn().Msg("SMTP_HOST not set; reminders will be logged, not delivered")
	}

	disp := dispatch.New(dir, sender, store)
	engine := schedule.NewEngine(store, disp.Dispatch, *sweep)

	// The store is the ground truth; running with an empty timer set after
	// a failed recovery would silently drop reminders, so abort instead.
	n, err := engine.Recover(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("startup recovery")
	}
	log.Info().Int("recovered", n).Msg("re-armed pending jobs")

	engine.Start()
	defer engine.Stop()

	svc := reminder.NewService(store, engine, *lead)
	srv := &http.Server{Addr: *addr, Handler: api.NewServer(svc, store, dir)}
	go func() {
		log.Info().Str("addr", *addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")
	ctxTimeout, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()
	_ = srv.Shutdown(ctxTimeout)
}
