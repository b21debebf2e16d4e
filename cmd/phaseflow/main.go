package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mhartman/phaseflow/internal/config"
	"github.com/mhartman/phaseflow/internal/db"
	"github.com/mhartman/phaseflow/internal/httpapi"
	"github.com/mhartman/phaseflow/internal/metrics"
	"github.com/mhartman/phaseflow/internal/repository"
	"github.com/mhartman/phaseflow/internal/service"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type serveOptions struct {
	configPath string
	listenAddr string
	dbPath     string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "phaseflow",
		Short: "Phase dependency cascade engine",
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	bindServeFlags(cmd.Flags(), opts)
	return cmd
}

// bindServeFlags keeps flag wiring in one place; flag values beat config file
// values, which beat environment overrides applied at load time.
func bindServeFlags(fs *pflag.FlagSet, opts *serveOptions) {
	fs.StringVar(&opts.configPath, "config", "", "path to YAML config file")
	fs.StringVar(&opts.listenAddr, "listen", "", "listen address (overrides config)")
	fs.StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides config)")
}

func runServe(ctx context.Context, opts *serveOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.listenAddr != "" {
		cfg.ListenAddr = opts.listenAddr
	}
	if opts.dbPath != "" {
		cfg.DBPath = opts.dbPath
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	gin.SetMode(cfg.GinMode)

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	projectRepo := repository.NewSQLiteProjectRepo(database)
	phaseRepo := repository.NewSQLitePhaseRepo(database)
	depRepo := repository.NewSQLiteDependencyRepo(database)

	uow := db.NewSQLiteUnitOfWork(database)
	locks := service.NewProjectLocks()

	registry := prometheus.NewRegistry()
	engineMetrics := metrics.NewEngineMetrics(registry)
	observer := service.NewSlogUseCaseObserver(logger)

	handlers := httpapi.NewHandlers(
		service.NewProjectService(projectRepo),
		service.NewPhaseService(phaseRepo, projectRepo),
		service.NewDependencyService(depRepo, uow, locks, engineMetrics, observer),
		service.NewCascadeService(uow, locks, engineMetrics, observer),
		logger,
	)
	router := httpapi.NewRouter(handlers, logger, registry)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr, "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
