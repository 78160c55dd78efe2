package service_test

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/crowdcast/internal/adapters/source"
	service "github.com/okian/crowdcast/internal/app"
	"github.com/okian/crowdcast/internal/config"
	"github.com/okian/crowdcast/internal/domain/features"
	"github.com/okian/crowdcast/internal/domain/reference"
	"github.com/okian/crowdcast/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func write(dir, name, body string) string {
	path := filepath.Join(dir, name)
	So(os.WriteFile(path, []byte(body), 0o600), ShouldBeNil)
	return path
}

// fixture writes three sample files, one of them for a game without
// metadata, with the side tables in the same directory.
func fixture() *config.Config {
	dir, err := os.MkdirTemp("", "crowdcast")
	So(err, ShouldBeNil)
	Reset(func() { _ = os.RemoveAll(dir) })

	write(dir, "GameX_test.csv", "date,time,players\n"+
		"09-20,10:00:00,12000\n"+
		"09-20,19:00:00,31245\n"+
		"09-21,19:00:00,28000\n"+
		"09-22,12:00:00,15000\n"+
		"09-22,20:00:00,22000\n")
	write(dir, "GameY_test.csv", "date,time,players\n"+
		"09-20,21:00:00,800\n"+
		"09-21,21:00:00,950\n"+
		"09-22,21:00:00,400\n")
	write(dir, "GameZ_test.csv", "date,time,players\n09-20,12:00:00,5\n")

	cfg := config.New()
	cfg.DataDir = dir
	cfg.WeekendFile = write(dir, "weekend.csv", "date,is_weekend\n2025-09-20,1\n2025-09-21,1\n2025-09-22,0\n")
	cfg.MetadataFile = write(dir, "game.csv", "game_name,genre,release_date,price_usd\n"+
		"GameX,FPS,2025-01-01,19.99\n"+
		"GameY,MOBA,2025-06-01,0\n")
	cfg.LoadWorkers = 2
	return cfg
}

func TestService_Start(t *testing.T) {
	ctx := context.Background()

	Convey("Given a data directory with three sample files", t, func() {
		cfg := fixture()
		svc := service.New(service.WithConfig(cfg))

		Convey("When starting the service", func() {
			err := svc.Start(ctx)

			Convey("Then it should load every file except the side tables", func() {
				So(err, ShouldBeNil)
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["files"], ShouldEqual, 3)
				So(stats["samples"], ShouldEqual, 9)
				So(stats["games"], ShouldEqual, 2)
				So(len(svc.Games()), ShouldEqual, 3)
				So(svc.Games()[0].Game, ShouldEqual, "GameX")
			})

			Convey("And starting again should be a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})
		})
	})

	Convey("Given a data directory without sample files", t, func() {
		cfg := config.New()
		cfg.DataDir = t.TempDir()

		Convey("Then start should fail with ErrNoFiles", func() {
			err := service.New(service.WithConfig(cfg)).Start(ctx)
			So(errors.Is(err, source.ErrNoFiles), ShouldBeTrue)
		})
	})

	Convey("Given a service that was never started", t, func() {
		svc := service.New()

		Convey("Then fitting and predicting should fail", func() {
			_, err := svc.Fit(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Predict(ctx, "GameX", time.Now())
			So(errors.Is(err, service.ErrNotFitted), ShouldBeTrue)
		})
	})
}

func TestService_Fit(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started service on the per-timestamp grain", t, func() {
		cfg := fixture()
		svc := service.New(service.WithConfig(cfg))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When fitting", func() {
			m, err := svc.Fit(ctx)
			So(err, ShouldBeNil)

			Convey("Then the game without metadata is left out", func() {
				So(m.Rows, ShouldEqual, 8)
				So(svc.GetStats()["skippedGames"], ShouldEqual, 1)
			})

			Convey("And identifier columns are not features", func() {
				names := m.Names()
				So(names, ShouldContain, features.ColHour)
				So(names, ShouldContain, "genre_MOBA")
				So(names, ShouldNotContain, features.ColGame)
				So(names, ShouldNotContain, features.ColPlayers)
			})

			Convey("And predictions are available", func() {
				y, err := svc.Predict(ctx, "GameX", time.Date(2025, 9, 20, 19, 0, 0, 0, time.UTC))
				So(err, ShouldBeNil)
				So(math.IsNaN(y), ShouldBeFalse)

				_, err = svc.Predict(ctx, "GameZ", time.Date(2025, 9, 20, 19, 0, 0, 0, time.UTC))
				So(errors.Is(err, reference.ErrUnknownGame), ShouldBeTrue)
			})

			Convey("And the diagnostics cover every training row", func() {
				d := svc.Diagnostics()
				So(len(d.Actual), ShouldEqual, 8)
				So(len(d.Predicted), ShouldEqual, 8)
			})
		})
	})

	Convey("Given the daily grain with the metadata vocabulary", t, func() {
		cfg := fixture()
		cfg.Grain = config.GrainDaily
		cfg.GenreVocabulary = config.VocabularyMetadata
		svc := service.New(service.WithConfig(cfg))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("Then the model uses day_index and no hour features", func() {
			m, err := svc.Fit(ctx)
			So(err, ShouldBeNil)
			So(m.Rows, ShouldEqual, 6)
			So(m.Names(), ShouldContain, features.ColDayIndex)
			So(m.Names(), ShouldNotContain, features.ColHour)
			So(m.Origin, ShouldEqual, time.Date(2025, 9, 20, 0, 0, 0, 0, time.UTC))
		})
	})

	Convey("Given a chart directory", t, func() {
		cfg := fixture()
		cfg.ChartDir = filepath.Join(cfg.DataDir, "charts")
		svc := service.New(service.WithConfig(cfg))
		So(svc.Start(ctx), ShouldBeNil)

		Convey("When fitting and rendering", func() {
			_, err := svc.Fit(ctx)
			So(err, ShouldBeNil)
			So(svc.RenderCharts(ctx), ShouldBeNil)

			Convey("Then PNG files are written per game and for the fit", func() {
				for _, name := range []string{"fit_timestamp.png", "GameX_daily_peaks.png", "GameY_peak_times.png"} {
					raw, err := os.ReadFile(filepath.Join(cfg.ChartDir, name))
					So(err, ShouldBeNil)
					_, err = png.Decode(bytes.NewReader(raw))
					So(err, ShouldBeNil)
				}
			})
		})
	})
}

func TestExplorer(t *testing.T) {
	ctx := context.Background()

	Convey("Given an explorer over the loaded files", t, func() {
		cfg := fixture()
		svc := service.New(service.WithConfig(cfg))
		So(svc.Start(ctx), ShouldBeNil)
		ex := service.NewExplorer(svc.Games(), svc.Weekend(), nil)

		Convey("Then the first file is selected initially", func() {
			sel, err := ex.Selected()
			So(err, ShouldBeNil)
			So(sel.Name, ShouldEqual, "GameX_test.csv")
			So(sel.Game, ShouldEqual, "GameX")
			So(len(ex.Files()), ShouldEqual, 3)
			So(ex.Files()[0].Selected, ShouldBeTrue)
		})

		Convey("When selecting a file outside the list", func() {
			err := ex.Select(ctx, "../etc/passwd")

			Convey("Then the selection is rejected and unchanged", func() {
				So(errors.Is(err, service.ErrInvalidSelection), ShouldBeTrue)
				sel, _ := ex.Selected()
				So(sel.Name, ShouldEqual, "GameX_test.csv")
			})
		})

		Convey("When selecting another file", func() {
			So(ex.Select(ctx, "GameY_test.csv"), ShouldBeNil)

			Convey("Then the series follows the selection", func() {
				points, err := ex.Series(service.RangeAll)
				So(err, ShouldBeNil)
				So(len(points), ShouldEqual, 3)
				So(points[0].Players, ShouldEqual, 800)
			})
		})

		Convey("Then range windows count back from the last sample", func() {
			day, err := ex.Series(service.RangeDay)
			So(err, ShouldBeNil)
			So(len(day), ShouldEqual, 2)
			week, _ := ex.Series(service.RangeWeek)
			So(len(week), ShouldEqual, 5)
			month, _ := ex.Series(service.RangeMonth)
			So(len(month), ShouldEqual, 5)

			_, err = ex.Series("2y")
			So(errors.Is(err, service.ErrInvalidRange), ShouldBeTrue)
		})

		Convey("Then daily peaks carry the weekend flag", func() {
			peaks, err := ex.Peaks()
			So(err, ShouldBeNil)
			So(len(peaks), ShouldEqual, 3)
			So(peaks[0].Date, ShouldEqual, "2025-09-20")
			So(peaks[0].Time, ShouldEqual, "19:00:00")
			So(peaks[0].IsWeekend, ShouldBeTrue)
			So(peaks[2].IsWeekend, ShouldBeFalse)
		})

		Convey("Then the series renders as a PNG", func() {
			var buf bytes.Buffer
			So(ex.RenderSeries(&buf, service.RangeAll), ShouldBeNil)
			_, err := png.Decode(&buf)
			So(err, ShouldBeNil)
		})
	})

	Convey("Given an explorer with no files", t, func() {
		ex := service.NewExplorer(nil, nil, nil)

		Convey("Then there is no selection", func() {
			_, err := ex.Selected()
			So(errors.Is(err, service.ErrNoSelection), ShouldBeTrue)
			_, err = ex.Series(service.RangeAll)
			So(errors.Is(err, service.ErrNoSelection), ShouldBeTrue)
		})
	})
}
