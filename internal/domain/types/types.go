// Package types contains the read shapes shared by the application and the HTTP API.
package types

import "time"

// FileEntry is one discovered samples file.
type FileEntry struct {
	Name     string `json:"name"`
	Game     string `json:"game"`
	Samples  int    `json:"samples"`
	Selected bool   `json:"selected"`
}

// Point is one plotted player count.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Players   int64     `json:"players"`
}

// Peak is the highest player count of one date.
type Peak struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Players   int64  `json:"players"`
	IsWeekend bool   `json:"is_weekend"`
}

// Coefficient is one named model weight.
type Coefficient struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ModelSummary describes the last fitted model.
type ModelSummary struct {
	ID           string        `json:"id"`
	Grain        string        `json:"grain"`
	Target       string        `json:"target"`
	Intercept    float64       `json:"intercept"`
	R2           float64       `json:"r2"`
	Rows         int           `json:"rows"`
	Origin       string        `json:"origin,omitempty"`
	FittedAt     time.Time     `json:"fitted_at"`
	Coefficients []Coefficient `json:"coefficients"`
}
