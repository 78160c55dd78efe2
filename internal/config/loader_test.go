package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/okian/crowdcast/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.DataDir, convey.ShouldEqual, "data/games")
				convey.So(cfg.Year, convey.ShouldEqual, 2025)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CROWDCAST_ADDR", ":8080")
			_ = os.Setenv("CROWDCAST_DATA_DIR", "/srv/telemetry")
			_ = os.Setenv("CROWDCAST_YEAR", "2024")
			_ = os.Setenv("CROWDCAST_GRAIN", "daily")
			_ = os.Setenv("CROWDCAST_LOAD_WORKERS", "3")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DataDir, convey.ShouldEqual, "/srv/telemetry")
				convey.So(cfg.Year, convey.ShouldEqual, 2024)
				convey.So(cfg.Grain, convey.ShouldEqual, config.GrainDaily)
				convey.So(cfg.LoadWorkers, convey.ShouldEqual, 3)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
data_dir: "./games"
weekend_file: "./ref/weekend.csv"
metadata_file: "./ref/game.csv"
genre_vocabulary: metadata
chart_dir: "./charts"
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CROWDCAST_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.DataDir, convey.ShouldEqual, "./games")
				convey.So(cfg.WeekendFile, convey.ShouldEqual, "./ref/weekend.csv")
				convey.So(cfg.MetadataFile, convey.ShouldEqual, "./ref/game.csv")
				convey.So(cfg.GenreVocabulary, convey.ShouldEqual, config.VocabularyMetadata)
				convey.So(cfg.ChartDir, convey.ShouldEqual, "./charts")
				convey.So(cfg.Extension, convey.ShouldEqual, ".csv") // From defaults
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile("addr: \":9090\"\nyear: 2023\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CROWDCAST_CONFIG", tmpFile)
			_ = os.Setenv("CROWDCAST_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080") // Overridden by env
				convey.So(cfg.Year, convey.ShouldEqual, 2023)    // From file
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CROWDCAST_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("CROWDCAST_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the grain is unknown", func() {
			_ = os.Setenv("CROWDCAST_GRAIN", "hourly")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "Grain")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the extension has no leading dot", func() {
			_ = os.Setenv("CROWDCAST_EXTENSION", "csv")

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the explorer address is cleared", func() {
			_ = os.Setenv("CROWDCAST_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the server is simply disabled", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, "")
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("CROWDCAST_YEAR", "twenty")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"CROWDCAST_CONFIG",
		"CROWDCAST_ADDR",
		"CROWDCAST_DATA_DIR",
		"CROWDCAST_YEAR",
		"CROWDCAST_GRAIN",
		"CROWDCAST_LOAD_WORKERS",
		"CROWDCAST_EXTENSION",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "crowdcast-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
