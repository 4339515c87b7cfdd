// Command server runs the procurement backend API.
//
// Boot order: env + config, logging, database, integrations (oracle, mailer,
// fanout, mailbox), OTel, then the HTTP server with graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/procurehub/go-procurement-backend/internal/ai"
	"github.com/procurehub/go-procurement-backend/internal/config"
	"github.com/procurehub/go-procurement-backend/internal/fanout"
	httpapi "github.com/procurehub/go-procurement-backend/internal/http"
	"github.com/procurehub/go-procurement-backend/internal/ingest"
	"github.com/procurehub/go-procurement-backend/internal/mail"
	"github.com/procurehub/go-procurement-backend/internal/mailbox"
	"github.com/procurehub/go-procurement-backend/internal/observability"
	"github.com/procurehub/go-procurement-backend/internal/repo"
	"github.com/procurehub/go-procurement-backend/internal/sysutil"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	setupLogging(cfg)

	gin.SetMode(cfg.GinMode)

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	// Redis backs the SSE replay log; without it streams still work, but
	// reconnecting clients cannot catch up on missed events.
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, event replay disabled")
			rdb = nil
		}
	}
	hub := fanout.NewHub(rdb)

	oracle := ai.NewClient(ai.Config{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})

	mailer, err := mail.New(mail.Config{
		Provider:     cfg.Mail.Provider,
		FromEmail:    cfg.Mail.FromEmail,
		FromName:     cfg.Mail.FromName,
		SMTPHost:     cfg.Mail.SMTPHost,
		SMTPPort:     cfg.Mail.SMTPPort,
		SMTPUser:     cfg.Mail.SMTPUser,
		SMTPPass:     cfg.Mail.SMTPPass,
		ResendAPIKey: cfg.Mail.ResendAPIKey,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("configure mailer")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Mailbox monitoring is optional; without credentials replies can still
	// arrive through the inbound webhook or manual submission.
	var listener *ingest.Listener
	if cfg.Mailbox.Enabled() {
		gm, err := mailbox.NewGmail(mailbox.GmailConfig{
			ClientID:     cfg.Mailbox.ClientID,
			ClientSecret: cfg.Mailbox.ClientSecret,
			RefreshToken: cfg.Mailbox.RefreshToken,
			PubSubTopic:  cfg.Mailbox.PubSubTopic,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("configure mailbox")
		}
		listener = &ingest.Listener{
			DB:       db,
			Provider: gm,
			Pipeline: ingest.NewPipeline(db, oracle, hub),
			Mailbox:  cfg.Mailbox.Address,
		}
		listener.StartWatch(ctx)
		log.Info().Str("mailbox", cfg.Mailbox.Address).Msg("mailbox monitoring enabled")
	} else {
		log.Info().Msg("mailbox monitoring disabled, set GMAIL_* to enable")
	}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("setup otel")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, hub, oracle, mailer, listener, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		// No WriteTimeout: the SSE endpoints hold responses open
		// indefinitely and a global write deadline would sever them.
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
}

// setupLogging configures the global zerolog logger from config.
func setupLogging(cfg config.Config) {
	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}
