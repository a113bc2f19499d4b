package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/sdnpulse/sdnpulse/internal/api"
	"github.com/sdnpulse/sdnpulse/internal/auth"
	"github.com/sdnpulse/sdnpulse/internal/config"
	"github.com/sdnpulse/sdnpulse/internal/metrics"
	"github.com/sdnpulse/sdnpulse/internal/poller"
	"github.com/sdnpulse/sdnpulse/internal/snapshot"
	"github.com/sdnpulse/sdnpulse/internal/source"
)

const version = "0.3.0"

// Flags holds command-line options.
type Flags struct {
	ConfigPath  string
	LogLevel    string
	Encrypt     string
	ShowVersion bool
}

func main() {
	flags := parseFlags()

	if flags.ShowVersion {
		fmt.Printf("sdnpulse %s\n", version)
		return
	}

	if flags.Encrypt != "" {
		if err := encryptSecret(flags); err != nil {
			fmt.Fprintf(os.Stderr, "encrypt failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flags); err != nil {
		fmt.Fprintf(os.Stderr, "sdnpulse: %v\n", err)
		os.Exit(1)
	}
}

// parseFlags parses command-line flags.
func parseFlags() Flags {
	var f Flags

	pflag.StringVarP(&f.ConfigPath, "config", "c", "config.yaml", "Path to configuration file")
	pflag.StringVar(&f.LogLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	pflag.StringVar(&f.Encrypt, "encrypt", "", "Print the enc: form of a secret for the config file and exit")
	pflag.BoolVarP(&f.ShowVersion, "version", "v", false, "Show version and exit")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "sdnpulse %s\n\n", version)
		fmt.Fprintf(os.Stderr, "USAGE:\n")
		fmt.Fprintf(os.Stderr, "  sdnpulse [flags]\n\n")
		fmt.Fprintf(os.Stderr, "FLAGS:\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	return f
}

// run wires the collector and serves the API until ctx is cancelled.
func run(ctx context.Context, flags Flags) error {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if flags.LogLevel != "" {
		cfg.Logging.Level = flags.LogLevel
		if !cfg.Logging.IsLogLevelValid() {
			return fmt.Errorf("invalid log level %q", flags.LogLevel)
		}
	}

	logger, closeLog, err := initLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("starting sdnpulse",
		"version", version,
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"interval", cfg.Collector.GetInterval(),
	)

	jwtSecret := ""
	if cfg.Auth.Enabled {
		jwtSecret = cfg.Auth.JWTSecret
	}
	authService, err := auth.NewService(
		jwtSecret,
		cfg.Auth.EncryptionKey,
		cfg.Auth.AdminUsername,
		cfg.Auth.AdminPassword,
		cfg.Auth.GetJWTExpiry(),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}

	registry := source.NewRegistry()
	descs, err := cfg.Descriptors(registry, authService.Reveal)
	if err != nil {
		return fmt.Errorf("failed to build sources: %w", err)
	}
	defer func() {
		if err := source.CloseAll(descs); err != nil {
			logger.Warn("failed to close sources", "error", err)
		}
	}()

	var worstCase time.Duration
	for _, d := range descs {
		logger.Info("source configured",
			"source_id", d.ID,
			"kind", d.Kind,
			"class", d.Class,
			"timeout", d.Timeout,
			"max_attempts", d.MaxAttempts,
			"retry_backoff", d.RetryBackoff,
		)
		worstCase = max(worstCase, d.WorstCase())
	}

	var (
		recorder poller.Recorder
		exporter *metrics.Exporter
	)
	if cfg.Metrics.Enabled {
		exporter = metrics.NewExporter()
		recorder = exporter
	}

	store := snapshot.NewStore(logger)

	var allowedOrigins []string
	if cfg.CORS.Enabled {
		allowedOrigins = cfg.CORS.AllowedOrigins
	}
	hub := api.NewHub(logger, allowedOrigins)
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)
	defer hub.Attach(store)()

	deps := api.Dependencies{
		Config:   cfg,
		Store:    store,
		Sources:  descs,
		Registry: registry,
		Auth:     authService,
		Hub:      hub,
		Logger:   logger,
	}
	if exporter != nil {
		deps.Metrics = exporter.Handler()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	fetcher := poller.NewFetcher(logger, recorder)
	aggregator := poller.NewAggregator(fetcher, logger, recorder, nil)
	scheduler := poller.NewScheduler(aggregator, cfg.Collector.GetInterval(), logger, poller.WithRecorder(recorder))

	schedule := scheduler.Start(ctx, descs, func(snap snapshot.Snapshot) error {
		store.Publish(snap)
		return nil
	})

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-serverErr:
		logger.Error("server failed", "error", err)
	}

	schedule.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GetShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// The in-flight cycle is bounded by the slowest source's budget.
	done := make(chan struct{})
	go func() {
		schedule.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(worstCase + time.Second):
		logger.Warn("in-flight cycle did not finish before shutdown", "waited", worstCase+time.Second)
	}

	logger.Info("sdnpulse stopped")
	return err
}

// encryptSecret prints the enc: form of flags.Encrypt. The key comes from
// SDNPULSE_AUTH_ENCRYPTION_KEY or, failing that, the config file.
func encryptSecret(flags Flags) error {
	key := os.Getenv("SDNPULSE_AUTH_ENCRYPTION_KEY")
	if key == "" {
		cfg, err := config.Load(flags.ConfigPath)
		if err != nil {
			return fmt.Errorf("no SDNPULSE_AUTH_ENCRYPTION_KEY set and %w", err)
		}
		key = cfg.Auth.EncryptionKey
	}

	svc, err := auth.NewService("", key, "", "", 0)
	if err != nil {
		return err
	}
	sealed, err := svc.Seal(flags.Encrypt)
	if err != nil {
		return err
	}
	fmt.Println(sealed)
	return nil
}

// initLogger builds the process logger. The returned function closes the
// log file, if any.
func initLogger(cfg config.LoggingConfig) (*slog.Logger, func(), error) {
	var handler slog.Handler

	// Set log level
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var (
		out     io.Writer = os.Stdout
		closeFn           = func() {}
	)
	switch cfg.Output {
	case "stderr":
		out = os.Stderr
	case "file":
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closeFn = func() { f.Close() }
	}

	// Set format
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler), closeFn, nil
}
