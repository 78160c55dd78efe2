package source

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/okian/crowdcast/internal/domain/model"
	"github.com/okian/crowdcast/pkg/logger"
	"github.com/okian/crowdcast/pkg/metrics"
)

// Side table columns.
const (
	colIsWeekend   = "is_weekend"
	colGameName    = "game_name"
	colGenre       = "genre"
	colReleaseDate = "release_date"
	colPrice       = "price_usd"
)

// dateLayouts are tried in order for side table dates.
var dateLayouts = []string{ //nolint:gochecknoglobals // fixed layout list
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	time.RFC3339,
}

// LoadWeekend reads the date,is_weekend table. Rows with an unparsable
// date or flag are dropped.
func (l *Loader) LoadWeekend(ctx context.Context, path string) ([]model.WeekendFlag, Stats, error) {
	var (
		out []model.WeekendFlag
		st  = Stats{Files: 1}
	)
	err := readCSV(ctx, path, []string{colDate, colIsWeekend}, func(row func(string) string) {
		d, ok := parseDate(row(colDate))
		if !ok {
			st.Dropped++
			return
		}
		flag, err := strconv.ParseBool(row(colIsWeekend))
		if err != nil {
			st.Dropped++
			return
		}
		out = append(out, model.WeekendFlag{Date: d, IsWeekend: flag})
	}, func() { st.Dropped++ })
	if err != nil {
		return nil, Stats{}, err
	}
	st.Rows = len(out)
	l.report(ctx, metrics.TableWeekend, path, st)
	return out, st, nil
}

// LoadMetadata reads the game_name,genre,release_date,price_usd table.
// An unparsable or negative price becomes 0; an unparsable release date
// leaves the game without one. Rows without a name are dropped.
func (l *Loader) LoadMetadata(ctx context.Context, path string) ([]model.GameMeta, Stats, error) {
	var (
		out []model.GameMeta
		st  = Stats{Files: 1}
	)
	err := readCSV(ctx, path, []string{colGameName, colGenre, colReleaseDate, colPrice}, func(row func(string) string) {
		name := row(colGameName)
		if name == "" {
			st.Dropped++
			return
		}
		g := model.GameMeta{Name: name, Genre: row(colGenre), PriceUSD: parsePrice(row(colPrice))}
		g.ReleaseDate, g.HasRelease = parseDate(row(colReleaseDate))
		out = append(out, g)
	}, func() { st.Dropped++ })
	if err != nil {
		return nil, Stats{}, err
	}
	st.Rows = len(out)
	l.report(ctx, metrics.TableMetadata, path, st)
	return out, st, nil
}

func (l *Loader) report(ctx context.Context, table, path string, st Stats) {
	metrics.RecordRowsLoaded(table, st.Rows)
	metrics.RecordRowsDropped(table, st.Dropped)
	l.log.Info(ctx, "reference table loaded",
		logger.String("table", table),
		logger.String("file", path),
		logger.Int("rows", st.Rows),
		logger.Int("dropped", st.Dropped))
}

// parseDate returns the UTC calendar date of s.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.DateOf(t), true
		}
	}
	return time.Time{}, false
}

func parsePrice(s string) float64 {
	p, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return 0
	}
	return p
}
