package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/erazemk/rewear/internal/api"
	"github.com/erazemk/rewear/internal/auth"
	"github.com/erazemk/rewear/internal/config"
	"github.com/erazemk/rewear/internal/db"
	"github.com/erazemk/rewear/internal/imaging"
	"github.com/erazemk/rewear/internal/logger"
	"github.com/erazemk/rewear/internal/metrics"
	"github.com/erazemk/rewear/internal/store"
	"github.com/erazemk/rewear/internal/swap"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API. Pending migrations are applied first unless
REWEAR_AUTO_MIGRATE=false. On an empty database an admin account is created
and its password printed once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				opts.cfg.Addr = addr
			}
			return serve(cmd.Context(), opts.cfg)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default REWEAR_ADDR or :8080)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx = log.WithFields(ctx, map[string]any{"env": cfg.Env, "driver": cfg.DB.Driver})

	database, err := openDB(cfg)
	if err != nil {
		log.Error(ctx, "failed to open database", err)
		return err
	}
	defer database.Close()

	if err := database.PingContext(ctx); err != nil {
		log.Error(ctx, "database unreachable", err)
		return fmt.Errorf("pinging database: %w", err)
	}

	if cfg.DB.AutoMigrate {
		if err := db.Migrate(ctx, database); err != nil {
			log.Error(ctx, "failed to apply migrations", err)
			return err
		}
	}
	log.Info(ctx, "database ready")

	password, created, err := bootstrapAdmin(ctx, database, cfg.AdminEmail, cfg.InitialPoints)
	if err != nil {
		log.Error(ctx, "failed to bootstrap admin", err)
		return err
	}
	if created {
		printInitResult(os.Stdout, cfg.DB.DSN, cfg.AdminEmail, password)
		fmt.Println()
	}

	issuer, err := newIssuer(ctx, cfg, database)
	if err != nil {
		log.Error(ctx, "failed to set up token issuer", err)
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(database.DB, cfg.DB.Driver),
	)

	router := api.NewRouter(api.Deps{
		DB:     database,
		Log:    log,
		Issuer: issuer,
		Engine: &swap.Engine{
			DB:      database,
			Log:     log,
			Metrics: metrics.NewSwaps(registry),
		},
		Gatherer:    registry,
		HTTPMetrics: metrics.NewHTTP(registry),
		Images: imaging.Processor{
			MaxDimension: imaging.DefaultMaxDimension,
			Quality:      imaging.DefaultQuality,
			MaxBytes:     cfg.Items.MaxUploadBytes(),
		},
		MaxImages:     cfg.Items.MaxImages,
		AutoApprove:   cfg.Items.AutoApprove,
		InitialPoints: cfg.InitialPoints,
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return run(ctx, log, server)
}

// run serves until SIGINT or SIGTERM, then drains in-flight requests.
func run(ctx context.Context, log *logger.Logger, server *http.Server) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info(log.WithField(ctx, "addr", server.Addr), "server started")
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server error", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(ctx, "shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server forced to shutdown", err)
		return err
	}
	log.Info(ctx, "server stopped, closing database")
	return nil
}

// newIssuer uses the configured secret, or one generated once and kept in
// the settings table.
func newIssuer(ctx context.Context, cfg *config.Config, database *db.DB) (*auth.Issuer, error) {
	secret := cfg.JWT.Secret
	if secret == "" {
		var err error
		secret, err = store.GetJWTSecret(ctx, database)
		if err != nil {
			return nil, err
		}
	}
	return auth.NewIssuer(secret, cfg.JWT.TTL)
}
