package features

import (
	"math"
	"sort"
	"time"

	"github.com/okian/crowdcast/internal/domain/model"
	"github.com/okian/crowdcast/internal/domain/reference"
)

const (
	daysPerWeek  = 7
	hoursPerDay  = 24
	fullTurnRads = 2 * math.Pi
)

// Options tunes table construction.
type Options struct {
	// Genres fixes the one-hot vocabulary. Empty means the genres of the
	// games present in the batch.
	Genres []string
}

// Report describes what a build left out or had to guess.
type Report struct {
	// SkippedGames lists games without metadata, in input order.
	SkippedGames []string
	// MissingRelease counts rows whose game has no release date; their
	// days_since_release is 0.
	MissingRelease int
	// GenreColumns lists the one-hot columns produced.
	GenreColumns []string
}

// GamePeaks groups the daily peaks of one game.
type GamePeaks struct {
	Game  string
	Peaks []model.DailyPeak
}

// record is one joined row before column assembly.
type record struct {
	game    string
	at      time.Time
	target  float64
	meta    model.GameMeta
	weekend bool
	days    int
}

// BuildTimestamp produces one row per sample. Games missing from meta are
// skipped. All games share one genre vocabulary.
func BuildTimestamp(games []model.GameSamples, weekend *reference.WeekendIndex, meta *reference.MetadataIndex, opts Options) (*Table, Report, error) {
	var (
		rep  Report
		recs []record
	)
	for _, gs := range games {
		g, ok := meta.Lookup(gs.Game)
		if !ok {
			rep.SkippedGames = appendOnce(rep.SkippedGames, gs.Game)
			continue
		}
		for _, s := range gs.Samples {
			days, hasRelease := g.DaysSinceRelease(s.Timestamp)
			if !hasRelease {
				rep.MissingRelease++
			}
			recs = append(recs, record{
				game:    gs.Game,
				at:      s.Timestamp,
				target:  float64(s.Players),
				meta:    g,
				weekend: weekend.IsWeekend(s.Timestamp),
				days:    days,
			})
		}
	}

	n := len(recs)
	var (
		names, dates, stamps = make([]string, n), make([]time.Time, n), make([]time.Time, n)
		players              = make([]float64, n)
		isWeekend, price     = make([]float64, n), make([]float64, n)
		days, hour, dow      = make([]float64, n), make([]float64, n), make([]float64, n)
		dowSin, dowCos       = make([]float64, n), make([]float64, n)
		hourSin, hourCos     = make([]float64, n), make([]float64, n)
	)
	for i, r := range recs {
		names[i] = r.game
		dates[i] = model.DateOf(r.at)
		stamps[i] = r.at
		players[i] = r.target
		isWeekend[i] = boolToFloat(r.weekend)
		price[i] = r.meta.PriceUSD
		days[i] = float64(r.days)
		hour[i] = float64(r.at.Hour())
		dow[i] = float64(model.DayOfWeek(r.at))
		dowSin[i], dowCos[i] = cyclical(dow[i], daysPerWeek)
		hourSin[i], hourCos[i] = cyclical(hour[i], hoursPerDay)
	}

	t := NewTable(GrainTimestamp, ColPlayers)
	t.Origin = earliestDate(recs)
	b := &tableBuilder{t: t}
	b.text(ColGame, names)
	b.times(ColDate, dates)
	b.times(ColTimestamp, stamps)
	b.numeric(ColPlayers, players)
	b.numeric(ColIsWeekend, isWeekend)
	b.numeric(ColPrice, price)
	b.numeric(ColDaysSinceRelease, days)
	b.numeric(ColHour, hour)
	b.numeric(ColDayOfWeek, dow)
	b.numeric(ColDowSin, dowSin)
	b.numeric(ColDowCos, dowCos)
	b.numeric(ColHourSin, hourSin)
	b.numeric(ColHourCos, hourCos)
	rep.GenreColumns = b.genres(recs, opts)
	if b.err != nil {
		return nil, rep, b.err
	}
	return t, rep, nil
}

// BuildDaily produces one row per (game, date) from daily peaks. day_index
// counts days from the earliest date across all included games.
func BuildDaily(games []GamePeaks, weekend *reference.WeekendIndex, meta *reference.MetadataIndex, opts Options) (*Table, Report, error) {
	var (
		rep  Report
		recs []record
	)
	for _, gp := range games {
		g, ok := meta.Lookup(gp.Game)
		if !ok {
			rep.SkippedGames = appendOnce(rep.SkippedGames, gp.Game)
			continue
		}
		for _, p := range gp.Peaks {
			date := model.DateOf(p.Date)
			days, hasRelease := g.DaysSinceRelease(date)
			if !hasRelease {
				rep.MissingRelease++
			}
			recs = append(recs, record{
				game:    gp.Game,
				at:      date,
				target:  float64(p.Players),
				meta:    g,
				weekend: weekend.IsWeekend(date),
				days:    days,
			})
		}
	}

	origin := earliestDate(recs)
	n := len(recs)
	var (
		names, dates     = make([]string, n), make([]time.Time, n)
		maxCount         = make([]float64, n)
		isWeekend, price = make([]float64, n), make([]float64, n)
		days, dayIndex   = make([]float64, n), make([]float64, n)
		dow              = make([]float64, n)
		dowSin, dowCos   = make([]float64, n), make([]float64, n)
	)
	for i, r := range recs {
		names[i] = r.game
		dates[i] = r.at
		maxCount[i] = r.target
		isWeekend[i] = boolToFloat(r.weekend)
		price[i] = r.meta.PriceUSD
		days[i] = float64(r.days)
		dayIndex[i] = float64(model.WholeDays(origin, r.at))
		dow[i] = float64(model.DayOfWeek(r.at))
		dowSin[i], dowCos[i] = cyclical(dow[i], daysPerWeek)
	}

	t := NewTable(GrainDaily, ColMaxCount)
	t.Origin = origin
	b := &tableBuilder{t: t}
	b.text(ColGame, names)
	b.times(ColDate, dates)
	b.numeric(ColMaxCount, maxCount)
	b.numeric(ColIsWeekend, isWeekend)
	b.numeric(ColPrice, price)
	b.numeric(ColDaysSinceRelease, days)
	b.numeric(ColDayIndex, dayIndex)
	b.numeric(ColDayOfWeek, dow)
	b.numeric(ColDowSin, dowSin)
	b.numeric(ColDowCos, dowCos)
	rep.GenreColumns = b.genres(recs, opts)
	if b.err != nil {
		return nil, rep, b.err
	}
	return t, rep, nil
}

// PointVector derives every feature either grain can use for one game at
// one instant, plus the game's own genre column set to 1. Callers align the
// map to a model's column order; columns the model does not know are
// dropped there. origin is the model's day_index origin; a zero origin
// leaves day_index out.
func PointVector(g model.GameMeta, at time.Time, weekend *reference.WeekendIndex, origin time.Time) map[string]float64 {
	days, _ := g.DaysSinceRelease(at)
	hour := float64(at.Hour())
	dow := float64(model.DayOfWeek(at))
	dowSin, dowCos := cyclical(dow, daysPerWeek)
	hourSin, hourCos := cyclical(hour, hoursPerDay)

	v := map[string]float64{
		ColIsWeekend:        boolToFloat(weekend.IsWeekend(at)),
		ColPrice:            g.PriceUSD,
		ColDaysSinceRelease: float64(days),
		ColHour:             hour,
		ColDayOfWeek:        dow,
		ColDowSin:           dowSin,
		ColDowCos:           dowCos,
		ColHourSin:          hourSin,
		ColHourCos:          hourCos,
	}
	if g.Genre != "" {
		v[GenrePrefix+g.Genre] = 1
	}
	if !origin.IsZero() {
		v[ColDayIndex] = float64(model.WholeDays(origin, at))
	}
	return v
}

// DailyPeaks returns, for every calendar date, the sample with the highest
// player count. Ties keep the first sample in input order. The result is
// sorted by date.
func DailyPeaks(samples []model.Sample) []model.DailyPeak {
	byDate := make(map[time.Time]int)
	var peaks []model.DailyPeak
	for _, s := range samples {
		d := model.DateOf(s.Timestamp)
		i, ok := byDate[d]
		if !ok {
			byDate[d] = len(peaks)
			peaks = append(peaks, model.DailyPeak{Date: d, Day: s.Day, Clock: s.Clock, Players: s.Players})
			continue
		}
		if s.Players > peaks[i].Players {
			peaks[i].Day, peaks[i].Clock, peaks[i].Players = s.Day, s.Clock, s.Players
		}
	}
	sort.Slice(peaks, func(i, j int) bool { return peaks[i].Date.Before(peaks[j].Date) })
	return peaks
}

// Vocabulary returns the sorted, de-duplicated genre list. The first entry
// is the reference category and gets no column. Blank genres are not
// categories; rows holding one get zero in every genre column.
func Vocabulary(genres []string) []string {
	seen := make(map[string]struct{}, len(genres))
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

type tableBuilder struct {
	t   *Table
	err error
}

func (b *tableBuilder) numeric(name string, v []float64) {
	if b.err == nil {
		b.err = b.t.AddNumeric(name, v)
	}
}

func (b *tableBuilder) text(name string, v []string) {
	if b.err == nil {
		b.err = b.t.AddText(name, v)
	}
}

func (b *tableBuilder) times(name string, v []time.Time) {
	if b.err == nil {
		b.err = b.t.AddTime(name, v)
	}
}

// genres appends the drop-first one-hot columns and returns their names.
func (b *tableBuilder) genres(recs []record, opts Options) []string {
	vocab := Vocabulary(opts.Genres)
	if len(vocab) == 0 {
		batch := make([]string, len(recs))
		for i, r := range recs {
			batch[i] = r.meta.Genre
		}
		vocab = Vocabulary(batch)
	}
	if len(vocab) < 2 {
		return nil
	}

	cols := make([]string, 0, len(vocab)-1)
	for _, genre := range vocab[1:] {
		values := make([]float64, len(recs))
		for i, r := range recs {
			if r.meta.Genre == genre {
				values[i] = 1
			}
		}
		name := GenrePrefix + genre
		b.numeric(name, values)
		cols = append(cols, name)
	}
	return cols
}

func cyclical(v, period float64) (sin, cos float64) {
	angle := fullTurnRads * v / period
	return math.Sin(angle), math.Cos(angle)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func earliestDate(recs []record) time.Time {
	var earliest time.Time
	for i, r := range recs {
		d := model.DateOf(r.at)
		if i == 0 || d.Before(earliest) {
			earliest = d
		}
	}
	return earliest
}

func appendOnce(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
