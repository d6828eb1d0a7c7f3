// Package main is the entry point of rdio-stats. It counts call uploads
// from scanner clients and serves the statistics to the dashboard.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/rdio-stats/internal/api"
	"github.com/j-veylop/rdio-stats/internal/config"
	"github.com/j-veylop/rdio-stats/internal/db"
	"github.com/j-veylop/rdio-stats/internal/logger"
	"github.com/j-veylop/rdio-stats/internal/report"
	"github.com/j-veylop/rdio-stats/internal/services"
	"github.com/j-veylop/rdio-stats/internal/stats"
	"github.com/j-veylop/rdio-stats/internal/uploads"
	"github.com/j-veylop/rdio-stats/internal/version"
)

func main() {
	args := os.Args[1:]

	// Handle version flag
	if len(args) > 0 && (args[0] == "-v" || args[0] == "--version") {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Handle help flag
	if len(args) > 0 && (args[0] == "-h" || args[0] == "--help" || args[0] == "help") {
		printUsage()
		os.Exit(0)
	}

	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	var err error
	switch command {
	case "serve":
		err = run()
	case "report":
		err = runReport(args)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", command)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run starts both listeners and blocks until a signal arrives or one of
// them fails.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting", "version", version.Info())

	// Loads the talkgroup directory and opens the database. A missing
	// directory aborts startup.
	svcManager, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := svcManager.Close(); closeErr != nil {
			logger.Error("error closing services", "error", closeErr)
		}
	}()

	spool, err := uploads.New(cfg.Upload.TmpDir)
	if err != nil {
		return err
	}

	handler := api.NewHandler(svcManager, spool, api.Config{
		APIKey:        cfg.Upload.APIKey,
		RateLimit:     cfg.Upload.RateLimit,
		MaxMemory:     cfg.Upload.MaxMemory,
		CORSOrigins:   cfg.UI.CORSOrigins,
		PublicDir:     cfg.UI.PublicDir,
		NotifyEnabled: cfg.Notify.Enabled,
	})

	servers := []*http.Server{
		newServer(listenAddr(cfg.Upload.Bind, cfg.Upload.Port), handler.UploadRouter()),
		newServer(listenAddr(cfg.UI.Bind, cfg.UI.Port), handler.QueryRouter()),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server on %s failed: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown of %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func newServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func listenAddr(bind string, port int) string {
	return net.JoinHostPort(bind, strconv.Itoa(port))
}

// runReport prints a snapshot of the database to stdout.
func runReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	top := fs.Int("top", 10, "number of talkgroups to list")
	width := fs.Int("width", 72, "chart width in columns")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	database, err := db.New(cfg.Data.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(); closeErr != nil {
			logger.Error("failed to close database", "error", closeErr)
		}
	}()

	summary, err := stats.New(database, database, nil).Summary(context.Background())
	if err != nil {
		return err
	}

	return report.Render(os.Stdout, summary, report.Options{Top: *top, Width: *width})
}

// printUsage prints the command-line usage information.
func printUsage() {
	fmt.Println(`rdio-stats - call statistics for rdio-scanner uploads

Usage:
  rdiostats [command] [flags]

Commands:
  serve           Run the upload and dashboard listeners (default)
  report          Print a snapshot of the statistics
    -top N        Number of talkgroups to list (default 10)
    -width N      Chart width in columns (default 72)

Flags:
  -h, --help      Show this help message
  -v, --version   Show version information

Environment Variables:
  UPLOAD_PORT         Upload listener port (default: 3000)
  UPLOAD_BIND         Upload listener address (default: 0.0.0.0)
  UPLOAD_TMP_DIR      Attachment scratch directory (default: tmp)
  UPLOAD_API_KEY      Require this X-API-Key on uploads (default: off)
  UPLOAD_RATE_LIMIT   Uploads per minute per IP (default: 0, off)
  UPLOAD_MAX_MEMORY   Multipart in-memory limit in bytes (default: 32MiB)
  UI_PORT             Dashboard listener port (default: 3001)
  UI_BIND             Dashboard listener address (default: 0.0.0.0)
  UI_PUBLIC_DIR       Dashboard static files (default: public)
  UI_CORS_ORIGINS     Comma-separated allowed origins (default: *)
  TALKGROUPS_CSV      Talkgroup directory file (default: talkgroups.csv)
  DATABASE_PATH       SQLite database path (default: ./stats.db)
  NOTIFY_ENABLED      Desktop notification per call (default: true)
  LOG_LEVEL           debug, info, warn or error (default: info)
  LOG_FORMAT          text or json (default: text)
  SHUTDOWN_TIMEOUT    Graceful shutdown timeout (default: 10s)

Configuration:
  The application looks for .env files in the following locations:
  - Current directory
  - ~/.config/rdio-stats/.env
  - Parent directory

Buckets use the process timezone; set TZ to change it.`)
}
