// Package service runs the analysis pipeline: it loads the telemetry files,
// builds feature tables, fits and applies the regression and renders charts.
package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/crowdcast/internal/adapters/chart"
	"github.com/okian/crowdcast/internal/adapters/source"
	"github.com/okian/crowdcast/internal/config"
	"github.com/okian/crowdcast/internal/domain/features"
	"github.com/okian/crowdcast/internal/domain/model"
	"github.com/okian/crowdcast/internal/domain/reference"
	"github.com/okian/crowdcast/internal/domain/regression"
	"github.com/okian/crowdcast/pkg/logger"
	"github.com/okian/crowdcast/pkg/metrics"
)

const chartDirPerm = 0o755

// Service owns the loaded reference snapshots and the last fitted model.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	loader *source.Loader

	// Loaded data
	files   []string
	games   []model.GameSamples
	weekend *reference.WeekendIndex
	meta    *reference.MetadataIndex
	loaded  source.Stats

	// Last fit
	model     *regression.Model
	predictor *regression.Predictor
	diag      regression.Diagnostics
	report    features.Report

	started bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration. The default is config.New().
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLoader replaces the samples loader built from the configuration.
func WithLoader(l *source.Loader) Option {
	return func(s *Service) {
		if l != nil {
			s.loader = l
		}
	}
}

// New constructs a new Service.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start discovers and loads every input table. It is a no-op once started.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.loader == nil {
		s.loader = source.NewLoader(
			source.WithYear(s.cfg.Year),
			source.WithWorkers(s.cfg.LoadWorkers),
			source.WithNameSuffix(s.cfg.NameSuffix),
			source.WithLogger(s.logger.Named("source")),
		)
	}

	files, err := source.Discover(s.cfg.DataDir, s.cfg.Extension, s.cfg.WeekendFile, s.cfg.MetadataFile)
	if err != nil {
		return err
	}
	flags, _, err := s.loader.LoadWeekend(ctx, s.cfg.WeekendFile)
	if err != nil {
		return fmt.Errorf("load weekend table: %w", err)
	}
	metas, _, err := s.loader.LoadMetadata(ctx, s.cfg.MetadataFile)
	if err != nil {
		return fmt.Errorf("load metadata table: %w", err)
	}
	games, stats, err := s.loader.LoadAll(ctx, files)
	if err != nil {
		return fmt.Errorf("load samples: %w", err)
	}

	s.files = files
	s.games = games
	s.loaded = stats
	s.weekend = reference.NewWeekendIndex(flags)
	s.meta = reference.NewMetadataIndex(metas)
	s.started = true

	s.logger.Info(ctx, "pipeline started",
		logger.Int("files", len(files)),
		logger.Int("weekendDates", s.weekend.Len()),
		logger.Int("games", s.meta.Len()),
		logger.Int("samples", stats.Rows))
	return nil
}

// Build produces the feature table of the configured grain.
func (s *Service) Build(ctx context.Context) (*features.Table, features.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, features.Report{}, ErrNotStarted
	}
	return s.build(ctx)
}

func (s *Service) build(ctx context.Context) (*features.Table, features.Report, error) {
	var opts features.Options
	if s.cfg.GenreVocabulary == config.VocabularyMetadata {
		opts.Genres = s.meta.Genres()
	}

	var (
		table *features.Table
		rep   features.Report
		err   error
	)
	switch s.cfg.Grain {
	case config.GrainDaily:
		peaks := make([]features.GamePeaks, len(s.games))
		for i, g := range s.games {
			peaks[i] = features.GamePeaks{Game: g.Game, Peaks: features.DailyPeaks(g.Samples)}
		}
		table, rep, err = features.BuildDaily(peaks, s.weekend, s.meta, opts)
	default:
		table, rep, err = features.BuildTimestamp(s.games, s.weekend, s.meta, opts)
	}
	if err != nil {
		return nil, rep, fmt.Errorf("build %s features: %w", s.cfg.Grain, err)
	}

	for _, g := range rep.SkippedGames {
		metrics.RecordGameSkipped()
		s.logger.Warn(ctx, "no metadata for game; skipping", logger.String("game", g))
	}
	if rep.MissingRelease > 0 {
		metrics.RecordMissingRelease(rep.MissingRelease)
		s.logger.Warn(ctx, "rows without release date use days_since_release=0",
			logger.Int("rows", rep.MissingRelease))
	}
	metrics.RecordFeatureRows(table.Grain, table.Len())
	metrics.UpdateGenreColumns(len(rep.GenreColumns))
	return table, rep, nil
}

// Fit builds the configured feature table and fits the regression on it.
// With a chart directory configured the predicted-vs-actual chart is
// written there too.
func (s *Service) Fit(ctx context.Context) (*regression.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil, ErrNotStarted
	}

	table, rep, err := s.build(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	m, diag, err := regression.Fit(ctx, table)
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		metrics.RecordFit(elapsed, err, 0, 0, 0)
		return nil, fmt.Errorf("fit %s model: %w", table.Grain, err)
	}
	metrics.RecordFit(elapsed, nil, m.R2, len(m.Coefficients), m.Rows)

	s.model, s.diag, s.report = m, diag, rep
	s.predictor = regression.NewPredictor(m, s.weekend, s.meta)

	s.logger.Info(ctx, "model fitted",
		logger.String("id", m.ID.String()),
		logger.String("grain", m.Grain),
		logger.Int("rows", m.Rows),
		logger.Float64("r2", m.R2),
		logger.Float64("intercept", m.Intercept))
	for _, c := range m.Coefficients {
		s.logger.Debug(ctx, "coefficient", logger.String("feature", c.Name), logger.Float64("value", c.Value))
	}

	if s.cfg.ChartDir != "" {
		name := fmt.Sprintf("fit_%s.png", m.Grain)
		title := fmt.Sprintf("Predicted vs actual %s (R2=%.3f)", m.Target, m.R2)
		if err := s.writeChart(name, func(w io.Writer) error {
			return chart.FitDiagnostic(w, title, diag.Actual, diag.Predicted)
		}); err != nil {
			s.logger.Error(ctx, "failed to render fit chart", logger.Error(err))
		}
	}
	return m, nil
}

// Predict estimates the target of the last fitted model for game at the
// given instant.
func (s *Service) Predict(ctx context.Context, game string, at time.Time) (float64, error) {
	s.mu.RLock()
	p := s.predictor
	s.mu.RUnlock()
	if p == nil {
		metrics.RecordPrediction(ErrNotFitted)
		return 0, ErrNotFitted
	}

	y, err := p.Predict(ctx, game, at)
	metrics.RecordPrediction(err)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "prediction",
		logger.String("game", game),
		logger.Time("at", at),
		logger.Float64("value", y))
	return y, nil
}

// RenderCharts writes the daily peak and peak-time charts of every loaded
// game to the chart directory. It does nothing without one.
func (s *Service) RenderCharts(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	if s.cfg.ChartDir == "" {
		return nil
	}

	for _, g := range s.games {
		if err := ctx.Err(); err != nil {
			return err
		}
		peaks := features.DailyPeaks(g.Samples)
		if err := s.writeChart(g.Game+"_daily_peaks.png", func(w io.Writer) error {
			return chart.DailyPeaks(w, "Daily Max Player Count: "+g.Game, peaks, s.weekend)
		}); err != nil {
			return err
		}
		if err := s.writeChart(g.Game+"_peak_times.png", func(w io.Writer) error {
			return chart.PeakTimes(w, "Daily Peak Time: "+g.Game, peaks, s.weekend)
		}); err != nil {
			return err
		}
	}
	s.logger.Info(ctx, "charts rendered",
		logger.String("dir", s.cfg.ChartDir),
		logger.Int("games", len(s.games)))
	return nil
}

func (s *Service) writeChart(name string, render func(io.Writer) error) error {
	if err := os.MkdirAll(s.cfg.ChartDir, chartDirPerm); err != nil {
		return fmt.Errorf("create chart dir: %w", err)
	}
	path := filepath.Join(s.cfg.ChartDir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// Model returns the last fitted model.
func (s *Service) Model() (*regression.Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model, s.model != nil
}

// Diagnostics returns the in-sample predictions of the last fit.
func (s *Service) Diagnostics() regression.Diagnostics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.diag
}

// Games returns the loaded samples, one entry per discovered file.
func (s *Service) Games() []model.GameSamples {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.GameSamples, len(s.games))
	copy(out, s.games)
	return out
}

// Weekend returns the weekend index.
func (s *Service) Weekend() *reference.WeekendIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.weekend
}

// GetStats returns current service statistics.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"files":          len(s.files),
		"samples":        s.loaded.Rows,
		"droppedRows":    s.loaded.Dropped,
		"skippedGames":   len(s.report.SkippedGames),
		"missingRelease": s.report.MissingRelease,
		"genreColumns":   len(s.report.GenreColumns),
		"grain":          s.cfg.Grain,
	}
	if s.meta != nil {
		stats["games"] = s.meta.Len()
	}
	if s.model != nil {
		stats["modelId"] = s.model.ID.String()
		stats["r2"] = s.model.R2
		stats["features"] = len(s.model.Coefficients)
		stats["rows"] = s.model.Rows
	}
	return stats
}
