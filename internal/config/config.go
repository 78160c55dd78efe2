// Package config defines the process configuration and its loader.
//
// Conventions:
//   - New returns the defaults; Load layers a YAML file and env vars on top.
//   - Validation failures wrap ErrInvalidConfig, load failures ErrLoadConfig.
package config

import (
	"runtime"
)

// Feature table grains.
const (
	GrainTimestamp = "timestamp"
	GrainDaily     = "daily"
)

// Genre vocabulary sources.
const (
	VocabularyBatch    = "batch"
	VocabularyMetadata = "metadata"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format" validate:"oneof=text json"`

	// Addr is the explorer listen address, e.g. ":9080". Empty disables it.
	Addr string `koanf:"addr" validate:"omitempty,hostname_port"`

	// DataDir holds one samples file per game.
	DataDir string `koanf:"data_dir" validate:"required"`

	// Extension selects which files in DataDir are sample files.
	Extension string `koanf:"extension" validate:"required,startswith=."`

	// WeekendFile is the date,is_weekend side table.
	WeekendFile string `koanf:"weekend_file" validate:"required"`

	// MetadataFile is the game_name,genre,release_date,price_usd table.
	MetadataFile string `koanf:"metadata_file" validate:"required"`

	// Year is prefixed to the MM-DD dates of sample files.
	Year int `koanf:"year" validate:"gte=1,lte=9999"`

	// NameSuffix is stripped from file stems to get the metadata key.
	NameSuffix string `koanf:"name_suffix"`

	// Grain chooses the feature table the pipeline fits: timestamp or daily.
	Grain string `koanf:"grain" validate:"oneof=timestamp daily"`

	// GenreVocabulary chooses where one-hot genre columns come from:
	// batch (genres of the games in the table) or metadata (all genres).
	GenreVocabulary string `koanf:"genre_vocabulary" validate:"oneof=batch metadata"`

	// ChartDir receives PNG charts. Empty disables rendering.
	ChartDir string `koanf:"chart_dir"`

	// LoadWorkers bounds concurrent sample file loads.
	LoadWorkers int `koanf:"load_workers" validate:"gte=1"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:        "info",
		LogFormat:       "text",
		Addr:            ":9080",
		DataDir:         "data/games",
		Extension:       ".csv",
		WeekendFile:     "data/weekend.csv",
		MetadataFile:    "data/game.csv",
		Year:            2025,
		NameSuffix:      "_test",
		Grain:           GrainTimestamp,
		GenreVocabulary: VocabularyBatch,
		ChartDir:        "",
		LoadWorkers:     runtime.NumCPU(),
	}
}
