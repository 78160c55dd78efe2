package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/okian/crowdcast/internal/adapters/http/api"
	"github.com/okian/crowdcast/internal/adapters/http/swagger"
	app "github.com/okian/crowdcast/internal/app"
	"github.com/okian/crowdcast/internal/config"
	"github.com/okian/crowdcast/pkg/logger"
	"github.com/okian/crowdcast/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

// predictLayouts are accepted by -predict-at, in order.
var predictLayouts = []string{time.RFC3339, time.DateTime, time.DateOnly} //nolint:gochecknoglobals // fixed layout list

type cliOptions struct {
	predictGame string
	predictAt   time.Time
}

func main() {
	var (
		predictGame = flag.String("predict-game", "", "Game to predict a player count for after fitting")
		predictAt   = flag.String("predict-at", "", "Instant of the prediction (RFC3339 or 2006-01-02 15:04:05, UTC)")
	)
	flag.Parse()

	opts, err := parseCLI(*predictGame, *predictAt)
	if err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithJSON(cfg.LogFormat == "json")); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, opts, log); err != nil {
		log.Error(ctx, "crowdcast failed", logger.Error(err))
		os.Exit(1)
	}
}

// parseCLI validates the prediction flags: both or neither must be set.
func parseCLI(game, at string) (cliOptions, error) {
	game, at = strings.TrimSpace(game), strings.TrimSpace(at)
	if game == "" && at == "" {
		return cliOptions{}, nil
	}
	if game == "" || at == "" {
		return cliOptions{}, errors.New("-predict-game and -predict-at must be given together")
	}
	for _, layout := range predictLayouts {
		if t, err := time.ParseInLocation(layout, at, time.UTC); err == nil {
			return cliOptions{predictGame: game, predictAt: t}, nil
		}
	}
	return cliOptions{}, fmt.Errorf("invalid -predict-at %q", at)
}

// run loads the data, fits the model, renders charts, answers the optional
// prediction and then serves the explorer until ctx is done.
func run(ctx context.Context, cfg *config.Config, opts cliOptions, log logger.Logger) error {
	svc := app.New(
		app.WithConfig(cfg),
		app.WithLogger(log.Named("pipeline")),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	if _, err := svc.Fit(ctx); err != nil {
		return err
	}
	if err := svc.RenderCharts(ctx); err != nil {
		return fmt.Errorf("render charts: %w", err)
	}

	if opts.predictGame != "" {
		y, err := svc.Predict(ctx, opts.predictGame, opts.predictAt)
		if err != nil {
			return fmt.Errorf("predict: %w", err)
		}
		fmt.Fprintf(os.Stdout, "%s at %s: %.2f\n", opts.predictGame, opts.predictAt.Format(time.DateTime), y)
	}

	if cfg.Addr == "" {
		return nil
	}
	return serve(ctx, cfg.Addr, svc, log)
}

func newMux(ctx context.Context, svc *app.Service, log logger.Logger) *http.ServeMux {
	explorer := app.NewExplorer(svc.Games(), svc.Weekend(), log.Named("explorer"))
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, explorer).Register(ctx, mux)
	return mux
}

func serve(ctx context.Context, addr string, svc *app.Service, log logger.Logger) error {
	go startSystemMetricsUpdater(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           newMux(ctx, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
