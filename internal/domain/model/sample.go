// Package model contains domain models passed between layers.
package model

import "time"

// Sample is one player-count observation read from a samples file.
type Sample struct {
	Day       string    // MM-DD as written in the file
	Clock     string    // HH:MM:SS as written in the file
	Timestamp time.Time // Year + Day + Clock, UTC
	Players   int64     // non-negative player count
}

// GameSamples groups the samples of one file under the game it belongs to.
type GameSamples struct {
	Game    string
	File    string
	Samples []Sample
}

// WeekendFlag is one row of the weekend side table.
type WeekendFlag struct {
	Date      time.Time // normalized to UTC midnight
	IsWeekend bool
}

// GameMeta holds the static attributes of a game.
type GameMeta struct {
	Name        string
	Genre       string
	ReleaseDate time.Time
	HasRelease  bool // false when release_date was missing or unparsable
	PriceUSD    float64
}

// DailyPeak is the highest player count seen on one calendar date.
type DailyPeak struct {
	Date    time.Time // UTC midnight
	Day     string    // MM-DD key as written in the file
	Clock   string    // HH:MM:SS of the peak
	Players int64
}

// SeriesPoint is one point of a plotted player-count series.
type SeriesPoint struct {
	Timestamp time.Time
	Players   int64
}
