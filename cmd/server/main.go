// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/requestbox/internal/api/connect"
	"github.com/osa030/requestbox/internal/app/filter"
	"github.com/osa030/requestbox/internal/app/venue"
	"github.com/osa030/requestbox/internal/infra/config"
	"github.com/osa030/requestbox/internal/infra/journal"
	"github.com/osa030/requestbox/internal/infra/logger"
)

var (
	app        = kingpin.New("requestbox-server", "requestbox venue request queue server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").Envar("REQUESTBOX_CONFIG").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	logJSON    = app.Flag("log-json", "Write JSON log lines to stdout").Bool()

	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{Output: "stdout", Level: "info", JSON: *logJSON}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %+v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %+v", err)
		os.Exit(1)
	}
}

// run executes the main server logic. Deferred cleanup runs on every return.
func run(cfg *config.Config) error {
	ctx := context.Background()

	j, err := journal.Open(ctx, journal.Options{
		Driver:     cfg.Journal.Driver,
		DSN:        cfg.Journal.DSN,
		BufferSize: cfg.Journal.BufferSize,
	})
	if err != nil {
		return errors.Wrap(err, "open journal")
	}
	defer func() {
		if err := j.Close(); err != nil {
			zlog.Error().Msgf("Failed to close journal: %v", err)
		}
	}()
	zlog.Info().Msgf("Journal opened: driver=%s", j.Driver())

	v, err := venue.NewService(cfg, j)
	if err != nil {
		return errors.Wrap(err, "create venue")
	}
	defer v.Close()

	if err := v.Start(ctx); err != nil {
		return errors.Wrap(err, "start venue")
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(apiconnect.NewHandler(v, cfg), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Give the listener a moment before running hooks that may call it.
	time.Sleep(100 * time.Millisecond)
	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		zlog.Info().Msgf("Received %s, shutting down...", sig)
	case <-v.Done():
		zlog.Info().Msg("Venue closed, shutting down...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Closing the venue ends open display streams so Shutdown does not wait on them.
	v.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}
	if err := j.Flush(shutdownCtx); err != nil {
		zlog.Warn().Msgf("Failed to flush journal: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// printFilters prints available filters.
func printFilters() {
	registered := filter.GetRegistered()
	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Available Filters:")
	for _, name := range names {
		f := registered[name](nil)
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
	fmt.Println("Always enabled:")
	for _, f := range []filter.Filter{filter.NewAcceptanceFilter(nil), filter.NewPaymentFilter(nil)} {
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), strings.Join(f.ReturnCodes(), ", "))
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
