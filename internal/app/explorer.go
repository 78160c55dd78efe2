package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/okian/crowdcast/internal/adapters/chart"
	"github.com/okian/crowdcast/internal/domain/features"
	"github.com/okian/crowdcast/internal/domain/model"
	"github.com/okian/crowdcast/internal/domain/reference"
	"github.com/okian/crowdcast/internal/domain/types"
	"github.com/okian/crowdcast/pkg/logger"
	"github.com/okian/crowdcast/pkg/metrics"
)

// Series windows, counted back from the last sample.
const (
	RangeDay   = "1d"
	RangeWeek  = "1w"
	RangeMonth = "1m"
	RangeAll   = "all"
)

type explorerEntry struct {
	name    string
	samples model.GameSamples
}

// Explorer holds the browsable file list, the current selection and the
// series of the selected file. The zero selection is the first file.
type Explorer struct {
	mu sync.RWMutex

	entries  []explorerEntry
	byName   map[string]int
	selected int
	series   []model.SeriesPoint

	weekend *reference.WeekendIndex
	logger  logger.Logger
}

// NewExplorer builds an explorer over the loaded files. Files are listed by
// base name in the given order.
func NewExplorer(games []model.GameSamples, weekend *reference.WeekendIndex, log logger.Logger) *Explorer {
	if log == nil {
		log = logger.Named("explorer")
	}
	e := &Explorer{
		byName:   make(map[string]int, len(games)),
		selected: -1,
		weekend:  weekend,
		logger:   log,
	}
	for _, g := range games {
		name := filepath.Base(g.File)
		if _, dup := e.byName[name]; dup {
			continue
		}
		e.byName[name] = len(e.entries)
		e.entries = append(e.entries, explorerEntry{name: name, samples: g})
	}
	if len(e.entries) > 0 {
		e.choose(0)
	}
	return e
}

// Files lists the selectable files.
func (e *Explorer) Files() []types.FileEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.FileEntry, len(e.entries))
	for i, en := range e.entries {
		out[i] = types.FileEntry{
			Name:     en.name,
			Game:     en.samples.Game,
			Samples:  len(en.samples.Samples),
			Selected: i == e.selected,
		}
	}
	return out
}

// Selected returns the current file.
func (e *Explorer) Selected() (types.FileEntry, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.selected < 0 {
		return types.FileEntry{}, ErrNoSelection
	}
	en := e.entries[e.selected]
	return types.FileEntry{Name: en.name, Game: en.samples.Game, Samples: len(en.samples.Samples), Selected: true}, nil
}

// Select makes name the current file. A name outside the list fails with
// ErrInvalidSelection and leaves the selection unchanged.
func (e *Explorer) Select(ctx context.Context, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, ok := e.byName[name]
	metrics.RecordSelection(ok)
	if !ok {
		e.logger.Warn(ctx, "rejected selection", logger.String("file", name))
		return fmt.Errorf("%w: %q", ErrInvalidSelection, name)
	}
	e.choose(i)
	e.logger.Debug(ctx, "selected file", logger.String("file", name), logger.Int("points", len(e.series)))
	return nil
}

// choose must be called with the lock held.
func (e *Explorer) choose(i int) {
	samples := e.entries[i].samples.Samples
	series := make([]model.SeriesPoint, len(samples))
	for j, s := range samples {
		series[j] = model.SeriesPoint{Timestamp: s.Timestamp, Players: s.Players}
	}
	sort.SliceStable(series, func(a, b int) bool { return series[a].Timestamp.Before(series[b].Timestamp) })
	e.selected = i
	e.series = series
}

// Series returns the points of the selection inside window.
func (e *Explorer) Series(window string) ([]model.SeriesPoint, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.selected < 0 {
		return nil, ErrNoSelection
	}
	return clip(e.series, window)
}

// Peaks returns the daily peaks of the selection.
func (e *Explorer) Peaks() ([]types.Peak, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.selected < 0 {
		return nil, ErrNoSelection
	}
	peaks := features.DailyPeaks(e.entries[e.selected].samples.Samples)
	out := make([]types.Peak, len(peaks))
	for i, p := range peaks {
		out[i] = types.Peak{
			Date:      p.Date.Format(time.DateOnly),
			Time:      p.Clock,
			Players:   p.Players,
			IsWeekend: e.weekend.IsWeekend(p.Date),
		}
	}
	return out, nil
}

// RenderSeries draws the selection inside window as a PNG.
func (e *Explorer) RenderSeries(w io.Writer, window string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.selected < 0 {
		return ErrNoSelection
	}
	points, err := clip(e.series, window)
	if err != nil {
		return err
	}
	en := e.entries[e.selected]
	return chart.Series(w, fmt.Sprintf("Player Count Over Time: %s", en.samples.Game), points)
}

// clip keeps the points no older than window before the last point.
func clip(series []model.SeriesPoint, window string) ([]model.SeriesPoint, error) {
	if len(series) == 0 {
		if _, err := windowStart(time.Time{}, window); err != nil {
			return nil, err
		}
		return nil, nil
	}
	from, err := windowStart(series[len(series)-1].Timestamp, window)
	if err != nil {
		return nil, err
	}
	i := sort.Search(len(series), func(i int) bool { return !series[i].Timestamp.Before(from) })
	out := make([]model.SeriesPoint, len(series)-i)
	copy(out, series[i:])
	return out, nil
}

func windowStart(last time.Time, window string) (time.Time, error) {
	switch window {
	case "", RangeAll:
		return time.Time{}, nil
	case RangeDay:
		return last.AddDate(0, 0, -1), nil
	case RangeWeek:
		return last.AddDate(0, 0, -7), nil
	case RangeMonth:
		return last.AddDate(0, -1, 0), nil
	default:
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidRange, window)
	}
}
