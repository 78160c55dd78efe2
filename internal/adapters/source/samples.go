// Package source reads the telemetry CSV files: one samples file per game
// plus the weekend and game metadata side tables.
package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/crowdcast/internal/domain/model"
	"github.com/okian/crowdcast/pkg/logger"
	"github.com/okian/crowdcast/pkg/metrics"
)

const (
	defaultYear    = 2025
	defaultWorkers = 4

	// sampleLayout parses "<year>-<MM-DD> <HH:MM:SS>"; single digit month,
	// day and hour are accepted.
	sampleLayout = "2006-1-2 15:04:05"
)

// Sample file columns.
const (
	colDate    = "date"
	colTime    = "time"
	colPlayers = "players"
)

// Stats counts what a load kept and dropped.
type Stats struct {
	Files   int
	Rows    int
	Dropped int
}

func (s *Stats) add(o Stats) {
	s.Files += o.Files
	s.Rows += o.Rows
	s.Dropped += o.Dropped
}

// Loader reads sample files.
type Loader struct {
	year    int
	workers int
	suffix  string
	log     logger.Logger
}

// NewLoader constructs a Loader. The default logger is the global one, so
// logger.Init must have run unless WithLogger is given.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		year:    defaultYear,
		workers: defaultWorkers,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logger.Named("source")
	}
	return l
}

// LoadSamples reads one samples file. Rows with an unparsable date or time,
// or a player count that is not a non-negative integer, are dropped and
// counted. A file with no valid rows is not an error.
func (l *Loader) LoadSamples(ctx context.Context, path string) (model.GameSamples, Stats, error) {
	gs := model.GameSamples{Game: GameName(path, l.suffix), File: path}
	st := Stats{Files: 1}

	err := readCSV(ctx, path, []string{colDate, colTime, colPlayers}, func(row func(string) string) {
		s, ok := l.parseSample(row(colDate), row(colTime), row(colPlayers))
		if !ok {
			st.Dropped++
			return
		}
		gs.Samples = append(gs.Samples, s)
	}, func() { st.Dropped++ })
	if err != nil {
		return model.GameSamples{}, Stats{}, err
	}
	st.Rows = len(gs.Samples)

	metrics.RecordRowsLoaded(metrics.TableSamples, st.Rows)
	metrics.RecordRowsDropped(metrics.TableSamples, st.Dropped)
	if st.Dropped > 0 {
		l.log.Warn(ctx, "dropped malformed sample rows",
			logger.String("file", path),
			logger.Int("dropped", st.Dropped))
	}
	return gs, st, nil
}

// LoadAll reads several files concurrently, bounded by the worker count.
// Results keep the order of paths. The first failure cancels the rest.
func (l *Loader) LoadAll(ctx context.Context, paths []string) ([]model.GameSamples, Stats, error) {
	start := time.Now()
	out := make([]model.GameSamples, len(paths))
	stats := make([]Stats, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			gs, st, err := l.LoadSamples(gctx, path)
			if err != nil {
				return err
			}
			out[i], stats[i] = gs, st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	var total Stats
	for _, st := range stats {
		total.add(st)
	}
	elapsed := time.Since(start)
	metrics.RecordLoadDuration(float64(elapsed.Milliseconds()))
	l.log.Info(ctx, "sample files loaded",
		logger.Int("files", total.Files),
		logger.Int("rows", total.Rows),
		logger.Int("dropped", total.Dropped),
		logger.Duration("took", elapsed))
	return out, total, nil
}

func (l *Loader) parseSample(day, clock, players string) (model.Sample, bool) {
	ts, err := time.ParseInLocation(sampleLayout, fmt.Sprintf("%d-%s %s", l.year, day, clock), time.UTC)
	if err != nil {
		return model.Sample{}, false
	}
	n, ok := parseCount(players)
	if !ok {
		return model.Sample{}, false
	}
	return model.Sample{Day: day, Clock: clock, Timestamp: ts, Players: n}, true
}

// parseCount accepts "123" and integral floats such as "123.0".
func parseCount(s string) (int64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, n >= 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// GameName derives the metadata key of a samples file: the file stem with
// every occurrence of suffix removed.
func GameName(path, suffix string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if suffix == "" {
		return stem
	}
	return strings.ReplaceAll(stem, suffix, "")
}

// Discover lists the regular files in dir whose extension matches ext,
// ignoring case, sorted by name. Paths in exclude are left out.
func Discover(dir, ext string, exclude ...string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}
	skip := make(map[string]struct{}, len(exclude))
	for _, p := range exclude {
		if p != "" {
			skip[absPath(p)] = struct{}{}
		}
	}

	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, ok := skip[absPath(path)]; ok {
			continue
		}
		out = append(out, path)
	}
	metrics.UpdateFilesDiscovered(len(out))
	if len(out) == 0 {
		return nil, fmt.Errorf("%w in %s with extension %s", ErrNoFiles, dir, ext)
	}
	return out, nil
}

func absPath(p string) string {
	if a, err := filepath.Abs(p); err == nil {
		return a
	}
	return filepath.Clean(p)
}

// readCSV streams the rows of a headed CSV file. onRow gets a lookup by
// column name; onBad is called for rows the CSV reader rejects.
func readCSV(ctx context.Context, path string, required []string, onRow func(func(string) string), onBad func()) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: %w: %s", path, ErrMissingColumns, strings.Join(required, ","))
	}
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	var missing []string
	for _, c := range required {
		if _, ok := index[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: %w: %s", path, ErrMissingColumns, strings.Join(missing, ","))
	}

	var rec []string
	lookup := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err = r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			onBad()
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		onRow(lookup)
	}
}
