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
	"time"

	"github.com/oussamaboulmali/newswire/app/agency"
	"github.com/oussamaboulmali/newswire/app/api"
	"github.com/oussamaboulmali/newswire/app/cfg"
	"github.com/oussamaboulmali/newswire/app/database"
	"github.com/oussamaboulmali/newswire/app/feed"
	"github.com/oussamaboulmali/newswire/app/logging"
	"github.com/oussamaboulmali/newswire/app/parser"
	"github.com/oussamaboulmali/newswire/app/source"
	"github.com/oussamaboulmali/newswire/app/tasks"
)

func main() {
	os.Exit(run())
}

func run() int {
	c, err := cfg.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if c == nil {
		return 0
	}

	closeLog, err := logging.Setup(c.Debug, c.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		return 1
	}
	defer closeLog()

	slog.Info("Starting newswire", "version", c.Version, "command", c.Command, "db_driver", c.DBDriver)

	db, err := database.Open(c.DBDriver, c.DSN())
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		return 1
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return 1
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	if c.Command == cfg.CommandMigrate {
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledger := database.NewLedgerRepository(db)
	articleRepo := database.NewArticleRepository(db)
	agencyRepo := database.NewAgencyRepository(db)

	if c.Command == cfg.CommandMaintain {
		return maintain(ctx, c, database.NewMaintenanceRepository(db))
	}

	configCache := agency.NewConfigCache(c.AgenciesDir)
	if err := configCache.Run(); err != nil {
		slog.Error("Failed to load agency configurations", "dir", c.AgenciesDir, "error", err)
		return 1
	}
	slog.Info("Agency configurations loaded", "dir", c.AgenciesDir, "count", configCache.GetConfigCount())

	if c.Command == cfg.CommandServe {
		baseURL := c.BaseUrl
		if baseURL == "" {
			baseURL = "http://localhost:" + c.Port
		}
		handler := api.NewHandler(configCache, db, ledger, articleRepo, agencyRepo,
			feed.NewGenerator(baseURL, c.Version), c.Version)
		return serve(ctx, c, api.NewServer(handler, c.APIAccessKey))
	}

	runner := tasks.NewRunner(configCache, parser.DefaultRegistry(), source.New, ledger, articleRepo, agencyRepo)
	if err := runner.Run(ctx, c.Agencies); err != nil {
		slog.Error("Ingestion run failed", "error", err)
		return 1
	}
	return 0
}

func maintain(ctx context.Context, c *cfg.Cfg, repo database.MaintenanceStore) int {
	err := tasks.RunTasks(ctx,
		tasks.NewCloseSessionsTask(c.SessionTTL, repo),
		tasks.NewUnblockUsersTask(c.BlockDuration, repo),
		tasks.NewPruneRetentionTask(c.Retention, c.PruneSessions, repo),
	)
	if err != nil {
		slog.Error("Maintenance failed", "error", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, c *cfg.Cfg, handler http.Handler) int {
	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	code := 0
	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
	case err := <-serverErrChan:
		slog.Error("HTTP server error", "error", err)
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return 1
	}
	slog.Info("HTTP server stopped")
	return code
}
