package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/regretlab/adversary-sim/internal/regretd"
	"github.com/regretlab/adversary-sim/internal/report"
	"github.com/regretlab/adversary-sim/internal/store"
	"github.com/regretlab/adversary-sim/pkg/config"
	"github.com/regretlab/adversary-sim/pkg/logger"
	"github.com/regretlab/adversary-sim/pkg/models"
)

func main() {
	var configPath string
	var httpAddr string
	var logLevel string
	var dbPath string
	var sweepPath string

	flag.StringVar(&configPath, "config", "", "path to daemon config file (optional)")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address (overrides config)")
	flag.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error; overrides config)")
	flag.StringVar(&dbPath, "db", "", "path to SQLite run archive (overrides config; empty disables)")
	flag.StringVar(&sweepPath, "sweep", "", "run a sweep file once, print the export JSON and exit")
	flag.Parse()

	cfg := config.DefaultConfig()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			logger.Error("failed to load config", "path", configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}

	logger.SetDefault(logger.NewText(cfg.LogLevel, os.Stderr))

	if sweepPath != "" {
		if err := runSweepOnce(sweepPath); err != nil {
			logger.Error("sweep failed", "path", sweepPath, "error", err)
			os.Exit(1)
		}
		return
	}

	serve(cfg)
}

// runSweepOnce executes a sweep file synchronously and prints the export
// payload (results plus chart payloads) to stdout.
func runSweepOnce(path string) error {
	sweep, err := config.LoadSweep(path)
	if err != nil {
		return err
	}

	results := make([]models.CaseResult, 0, len(sweep.Cases))
	charts := make([]*report.CaseCharts, 0, len(sweep.Cases))
	for _, c := range sweep.Cases {
		trailing := c.Trailing()
		caseResult, err := regretd.ExecuteCase(models.CaseSpec{
			Name:            c.Name,
			Actions:         c.Actions,
			Increments:      c.Increments,
			IncludeTrailing: &trailing,
		})
		if err != nil {
			return err
		}
		logger.Info("case executed",
			"case", c.Name,
			"min_loss", caseResult.MinLoss,
			"greedy_loss", caseResult.GreedyLoss,
			"bound", caseResult.Bound,
			"bound_attained", caseResult.BoundAttained)
		results = append(results, caseResult)
		charts = append(charts, report.Charts(caseResult))
	}

	export := map[string]any{
		"result": regretd.Aggregate(results),
		"charts": charts,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(export)
}

func serve(cfg *config.Config) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runStore := regretd.NewRunStore()
	if cfg.DBPath != "" {
		archive, err := store.Open(cfg.DBPath)
		if err != nil {
			logger.Error("failed to open run archive", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer archive.Close()

		runStore.WithArchive(archive)
		n, err := runStore.LoadArchived()
		if err != nil {
			logger.Error("failed to load archived runs", "error", err)
			os.Exit(1)
		}
		logger.Info("run archive loaded", "path", cfg.DBPath, "runs", n)
	}

	executor := regretd.NewRunExecutor(runStore)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           regretd.NewHTTPServer(runStore, executor).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
}
