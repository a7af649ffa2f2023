package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"beanstore/internal/config"
	"beanstore/internal/events"
	apphttp "beanstore/internal/http"
	"beanstore/internal/http/handlers"
	applog "beanstore/internal/log"
	"beanstore/internal/mail"
	"beanstore/internal/repos"
	"beanstore/internal/session"
)

const purgeEvery = 15 * time.Minute

func main() {
	log := applog.Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	applog.SetLevel(cfg.LogLevel)

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			log.Warn().Err(err).Str("file", cfg.LogFile).Msg("could not open log file")
		} else {
			defer f.Close()
			applog.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}
	log = applog.Logger()

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open db")
	}
	defer db.Close()

	if cfg.AdminEmail != "" {
		if err := ensureAdmin(db, cfg); err != nil {
			log.Fatal().Err(err).Msg("ensure admin")
		}
	}

	var cl handlers.Clients
	if cfg.SessionStore == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis")
		}
		cl.Sessions = session.NewRedisStore(rdb)
	}
	if cfg.SMTPEnabled() {
		cl.Mail = mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
	} else {
		log.Warn().Msg("SMTP_HOST not set; mail is logged instead of sent")
	}
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		pub := events.NewKafkaPublisher(events.NewKafkaWriter(brokers, cfg.KafkaOrderTopic))
		defer func() {
			if err := pub.Close(); err != nil {
				log.Error().Err(err).Msg("close kafka writer")
			}
		}()
		cl.Events = pub
	}

	deps := handlers.NewDeps(db, cfg, cl)
	app := apphttp.NewApp(cfg, deps, apphttp.Options{AccessLog: true})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go purgeSessions(ctx, deps.Sessions)

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("db", cfg.DBDriver).Str("sessions", cfg.SessionStore).Msg("listening")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Error().Err(err).Msg("listen")
	}
}

func ensureAdmin(db *sqlx.DB, cfg config.Config) error {
	if cfg.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD is required with ADMIN_EMAIL")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return repos.NewCustomerRepo(db).EnsureAdmin(ctx, uuid.NewString(), "管理員", cfg.AdminEmail, string(hash), time.Now().UTC())
}

func purgeSessions(ctx context.Context, sm *session.Manager) {
	t := time.NewTicker(purgeEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := sm.Purge(ctx)
			if err != nil {
				applog.Logger().Error().Err(err).Str("action", "session.purge").Send()
				continue
			}
			if n > 0 {
				applog.Logger().Info().Str("action", "session.purge").Int64("removed", n).Send()
			}
		}
	}
}
