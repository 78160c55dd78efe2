package regression_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/crowdcast/internal/domain/features"
	"github.com/okian/crowdcast/internal/domain/model"
	"github.com/okian/crowdcast/internal/domain/reference"
	"github.com/okian/crowdcast/internal/domain/regression"
	. "github.com/smartystreets/goconvey/convey"
)

const tol = 1e-9

func table(target []float64, cols map[string][]float64, order ...string) *features.Table {
	t := features.NewTable(features.GrainDaily, "y")
	So(t.AddNumeric("y", target), ShouldBeNil)
	for _, name := range order {
		So(t.AddNumeric(name, cols[name]), ShouldBeNil)
	}
	return t
}

func coef(m *regression.Model, name string) float64 {
	for _, c := range m.Coefficients {
		if c.Name == name {
			return c.Value
		}
	}
	So(name, ShouldBeEmpty)
	return 0
}

func TestFit(t *testing.T) {
	ctx := context.Background()

	Convey("Given a target that is an exact linear function of two features", t, func() {
		x1 := []float64{1, 2, 3, 4, 5}
		x2 := []float64{2, 1, 4, 3, 6}
		y := make([]float64, len(x1))
		for i := range y {
			y[i] = 3 + 2*x1[i] - x2[i]
		}
		tbl := table(y, map[string][]float64{"a": x1, "b": x2}, "a", "b")

		Convey("When fitting", func() {
			m, diag, err := regression.Fit(ctx, tbl)
			So(err, ShouldBeNil)

			Convey("Then the coefficients are recovered", func() {
				So(m.Names(), ShouldResemble, []string{"a", "b"})
				So(coef(m, "a"), ShouldAlmostEqual, 2, tol)
				So(coef(m, "b"), ShouldAlmostEqual, -1, tol)
				So(m.Intercept, ShouldAlmostEqual, 3, tol)
				So(m.R2, ShouldAlmostEqual, 1, tol)
				So(m.Rows, ShouldEqual, 5)
				So(m.Target, ShouldEqual, "y")
			})

			Convey("And the diagnostics pair actual with predicted", func() {
				So(diag.Actual, ShouldResemble, y)
				for i := range y {
					So(diag.Predicted[i], ShouldAlmostEqual, y[i], tol)
				}
			})
		})
	})

	Convey("Given two perfectly collinear features", t, func() {
		x1 := []float64{1, 2, 3, 4}
		x2 := []float64{2, 4, 6, 8}
		y := []float64{6, 11, 16, 21}
		tbl := table(y, map[string][]float64{"a": x1, "b": x2}, "a", "b")

		Convey("When fitting", func() {
			m, _, err := regression.Fit(ctx, tbl)

			Convey("Then the minimum-norm solution is returned", func() {
				So(err, ShouldBeNil)
				So(coef(m, "a"), ShouldAlmostEqual, 1, 1e-6)
				So(coef(m, "b"), ShouldAlmostEqual, 2, 1e-6)
				So(m.Intercept, ShouldAlmostEqual, 1, 1e-6)
				So(m.R2, ShouldAlmostEqual, 1, 1e-6)
			})
		})
	})

	Convey("Given a constant feature", t, func() {
		tbl := table([]float64{1, 2, 3}, map[string][]float64{"c": {7, 7, 7}}, "c")

		Convey("Then its coefficient is 0 and the intercept is the mean", func() {
			m, _, err := regression.Fit(ctx, tbl)
			So(err, ShouldBeNil)
			So(coef(m, "c"), ShouldEqual, 0)
			So(m.Intercept, ShouldAlmostEqual, 2, tol)
			So(m.R2, ShouldAlmostEqual, 0, tol)
		})
	})

	Convey("Given a constant target and no features", t, func() {
		tbl := table([]float64{4, 4, 4}, nil)

		Convey("Then the fit is the mean and scores 1", func() {
			m, _, err := regression.Fit(ctx, tbl)
			So(err, ShouldBeNil)
			So(m.Coefficients, ShouldBeEmpty)
			So(m.Intercept, ShouldEqual, 4)
			So(m.R2, ShouldEqual, 1)
		})
	})

	Convey("Given invalid tables", t, func() {
		Convey("An empty table fails", func() {
			_, _, err := regression.Fit(ctx, features.NewTable(features.GrainDaily, "y"))
			So(errors.Is(err, regression.ErrEmptyTable), ShouldBeTrue)
		})

		Convey("A missing target fails", func() {
			tbl := features.NewTable(features.GrainDaily, "missing")
			So(tbl.AddNumeric("a", []float64{1, 2}), ShouldBeNil)
			_, _, err := regression.Fit(ctx, tbl)
			So(errors.Is(err, regression.ErrUnknownTarget), ShouldBeTrue)
		})

		Convey("A leftover text column fails", func() {
			tbl := table([]float64{1, 2}, nil)
			So(tbl.AddText("genre", []string{"FPS", "MOBA"}), ShouldBeNil)
			_, _, err := regression.Fit(ctx, tbl)
			So(errors.Is(err, regression.ErrNonNumericColumn), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "genre")
		})

		Convey("An excluded text column is ignored", func() {
			tbl := table([]float64{1, 2}, nil)
			So(tbl.AddText("genre", []string{"FPS", "MOBA"}), ShouldBeNil)
			_, _, err := regression.Fit(ctx, tbl, "genre")
			So(err, ShouldBeNil)
		})

		Convey("A cancelled context fails", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, _, err := regression.Fit(cctx, table([]float64{1, 2}, nil))
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestModelAlign(t *testing.T) {
	Convey("Given a model with three named coefficients", t, func() {
		m := &regression.Model{
			Intercept: 10,
			Coefficients: []regression.Coefficient{
				{Name: "a", Value: 1},
				{Name: "genre_MOBA", Value: 5},
				{Name: "b", Value: 2},
			},
		}

		Convey("Then missing names are 0 and extra names are dropped", func() {
			x := m.Align(map[string]float64{"b": 3, "a": 1, "genre_Racing": 1})
			So(x, ShouldResemble, []float64{1, 0, 3})
			So(m.PredictMap(map[string]float64{"b": 3, "a": 1}), ShouldEqual, 17)
		})

		Convey("Then a vector of the wrong length is rejected", func() {
			_, err := m.PredictVector([]float64{1})
			So(errors.Is(err, regression.ErrFeatureCount), ShouldBeTrue)
		})
	})
}

func day(m time.Month, d, h int) time.Time {
	return time.Date(2025, m, d, h, 0, 0, 0, time.UTC)
}

func sample(ts time.Time, players int64) model.Sample {
	return model.Sample{Day: ts.Format("01-02"), Clock: ts.Format("15:04:05"), Timestamp: ts, Players: players}
}

func TestPredictor(t *testing.T) {
	ctx := context.Background()
	weekend := reference.NewWeekendIndex([]model.WeekendFlag{
		{Date: day(9, 20, 0), IsWeekend: true},
		{Date: day(9, 21, 0), IsWeekend: true},
	})
	meta := reference.NewMetadataIndex([]model.GameMeta{
		{Name: "GameX", Genre: "FPS", ReleaseDate: day(1, 1, 0), HasRelease: true, PriceUSD: 19.99},
		{Name: "GameY", Genre: "MOBA", ReleaseDate: day(6, 1, 0), HasRelease: true},
		{Name: "GameZ", Genre: "Racing", ReleaseDate: day(3, 1, 0), HasRelease: true, PriceUSD: 5},
	})
	games := []model.GameSamples{
		{Game: "GameX", Samples: []model.Sample{
			sample(day(9, 20, 19), 31245), sample(day(9, 21, 3), 12000), sample(day(9, 22, 12), 20000),
		}},
		{Game: "GameY", Samples: []model.Sample{
			sample(day(9, 20, 8), 800), sample(day(9, 23, 22), 1500),
		}},
	}

	Convey("Given a model fitted on the per-timestamp grain", t, func() {
		tbl, _, err := features.BuildTimestamp(games, weekend, meta, features.Options{})
		So(err, ShouldBeNil)
		m, _, err := regression.Fit(ctx, tbl)
		So(err, ShouldBeNil)
		p := regression.NewPredictor(m, weekend, meta)

		Convey("Then the vector for a training row equals that row", func() {
			stamps, _ := tbl.Column(features.ColTimestamp)
			names, _ := tbl.Column(features.ColGame)
			for i := 0; i < tbl.Len(); i++ {
				x, err := p.Vector(names.Texts[i], stamps.Times[i])
				So(err, ShouldBeNil)
				So(x, ShouldResemble, m.Align(tbl.Row(i)))
			}
		})

		Convey("Then a game with an unseen genre still predicts", func() {
			x, err := p.Vector("GameZ", day(9, 25, 10))
			So(err, ShouldBeNil)
			So(len(x), ShouldEqual, len(m.Coefficients))
			_, err = p.Predict(ctx, "GameZ", day(9, 25, 10))
			So(err, ShouldBeNil)
		})

		Convey("Then an unknown game is reported by name", func() {
			_, err := p.Predict(ctx, "NoSuchGame", day(9, 25, 10))
			So(errors.Is(err, reference.ErrUnknownGame), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "NoSuchGame")
		})
	})

	Convey("Given a model fitted on the daily grain", t, func() {
		peaks := make([]features.GamePeaks, len(games))
		for i, g := range games {
			peaks[i] = features.GamePeaks{Game: g.Game, Peaks: features.DailyPeaks(g.Samples)}
		}
		tbl, _, err := features.BuildDaily(peaks, weekend, meta, features.Options{})
		So(err, ShouldBeNil)
		m, _, err := regression.Fit(ctx, tbl)
		So(err, ShouldBeNil)
		p := regression.NewPredictor(m, weekend, meta)

		Convey("Then day_index is aligned from the training origin", func() {
			So(m.Origin, ShouldEqual, day(9, 20, 0))
			dates, _ := tbl.Column(features.ColDate)
			names, _ := tbl.Column(features.ColGame)
			for i := 0; i < tbl.Len(); i++ {
				x, err := p.Vector(names.Texts[i], dates.Times[i])
				So(err, ShouldBeNil)
				So(x, ShouldResemble, m.Align(tbl.Row(i)))
			}
		})
	})
}
