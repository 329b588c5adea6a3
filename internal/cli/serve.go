package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/lazypower/mnemo/internal/assistant"
	"github.com/lazypower/mnemo/internal/auth"
	"github.com/lazypower/mnemo/internal/classifier"
	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/llm"
	"github.com/lazypower/mnemo/internal/logging"
	"github.com/lazypower/mnemo/internal/metrics"
	"github.com/lazypower/mnemo/internal/notify"
	"github.com/lazypower/mnemo/internal/server"
	"github.com/lazypower/mnemo/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.SetupDefault(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	db, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		return fmt.Errorf("configure llm: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.NewCollector(reg)

	var mailer notify.Mailer
	if cfg.Email.SMTPHost != "" {
		mailer = notify.NewEmailNotifier(cfg.Email, logger)
	} else {
		logger.Warn("smtp not configured, magic links will be logged")
		mailer = notify.NewLogMailer(logger)
	}

	authSvc := auth.NewService(db, mailer, auth.Config{
		BaseURL:  cfg.Server.BaseURL,
		TokenTTL: cfg.Auth.TokenTTL,
		Metrics:  rec,
		Logger:   logger,
	})
	sessions := auth.NewSessions(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL, cfg.CookieSecure())
	router := assistant.NewRouter(db, classifier.New(llmClient, rec), cfg.User.Timezone, rec, logger)

	srv := server.New(server.Deps{
		DB:              db,
		Router:          router,
		Auth:            authSvc,
		Sessions:        sessions,
		Metrics:         rec,
		Gatherer:        reg,
		Logger:          logger,
		LoginRatePerMin: cfg.Server.LoginRatePerMin,
	}, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mnemo serving",
			slog.String("addr", addr),
			slog.String("db", db.Path),
			slog.String("llm", cfg.LLM.Provider),
			slog.String("timezone", cfg.User.Timezone))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-done:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

// openDB opens the configured database, falling back to ~/.mnemo/mnemo.db.
func openDB(cfg *config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	return store.Open(dbPath)
}
