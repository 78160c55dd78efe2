// Package chart renders static PNG charts of player counts and fits.
package chart

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"time"

	"github.com/fogleman/gg"

	"github.com/okian/crowdcast/internal/domain/model"
	"github.com/okian/crowdcast/internal/domain/reference"
	"github.com/okian/crowdcast/pkg/metrics"
)

// Chart kinds, used as metric labels.
const (
	KindSeries     = "series"
	KindPeaks      = "daily_peaks"
	KindPeakTimes  = "peak_times"
	KindDiagnostic = "diagnostic"
)

const (
	width  = 1200
	height = 600

	marginLeft   = 80
	marginRight  = 30
	marginTop    = 50
	marginBottom = 60

	ticks      = 6
	pointSize  = 4
	secPerHour = 3600
)

var (
	background = color.White
	axisColor  = color.RGBA{R: 60, G: 60, B: 60, A: 255}
	gridColor  = color.RGBA{R: 225, G: 225, B: 225, A: 255}
	lineColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	greyColor  = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	// Weekend and weekday point colors.
	Tomato    = color.RGBA{R: 255, G: 99, B: 71, A: 255}
	RoyalBlue = color.RGBA{R: 65, G: 105, B: 225, A: 255}
	refColor  = color.RGBA{R: 220, G: 20, B: 20, A: 255}
)

// Series draws the player count over time as a line.
func Series(w io.Writer, title string, points []model.SeriesPoint) error {
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = float64(p.Timestamp.Unix())
		ys[i] = float64(p.Players)
	}
	c := newCanvas(title, "Time", "Players", xs, ys)
	c.axes(formatClock, formatCount)
	c.line(xs, ys, lineColor, 2)
	return c.encode(w, KindSeries)
}

// DailyPeaks draws each day's peak, weekends in tomato and weekdays in
// royal blue, joined by a grey line.
func DailyPeaks(w io.Writer, title string, peaks []model.DailyPeak, weekend *reference.WeekendIndex) error {
	xs := make([]float64, len(peaks))
	ys := make([]float64, len(peaks))
	for i, p := range peaks {
		xs[i] = float64(p.Date.Unix())
		ys[i] = float64(p.Players)
	}
	c := newCanvas(title, "Date", "Max Player Count", xs, ys)
	c.axes(formatDay, formatCount)
	c.line(xs, ys, greyColor, 1)
	for i, p := range peaks {
		c.point(xs[i], ys[i], dayColor(weekend, p.Date))
	}
	return c.encode(w, KindPeaks)
}

// PeakTimes draws the time of day each daily peak happened.
func PeakTimes(w io.Writer, title string, peaks []model.DailyPeak, weekend *reference.WeekendIndex) error {
	xs := make([]float64, 0, len(peaks))
	ys := make([]float64, 0, len(peaks))
	days := make([]time.Time, 0, len(peaks))
	for _, p := range peaks {
		at, err := time.Parse("15:04:05", p.Clock)
		if err != nil {
			continue
		}
		xs = append(xs, float64(p.Date.Unix()))
		ys = append(ys, float64(at.Hour())+float64(at.Minute())/60+float64(at.Second())/secPerHour)
		days = append(days, p.Date)
	}
	c := newCanvas(title, "Date", "Peak Time (HH:MM)", xs, nil)
	c.ymin, c.ymax = 0, 24
	c.axes(formatDay, formatHour)
	for i := range xs {
		c.point(xs[i], ys[i], dayColor(weekend, days[i]))
	}
	return c.encode(w, KindPeakTimes)
}

// FitDiagnostic scatters predicted against actual values with a dashed
// y = x reference line.
func FitDiagnostic(w io.Writer, title string, actual, predicted []float64) error {
	if len(actual) != len(predicted) {
		return fmt.Errorf("actual has %d values, predicted %d", len(actual), len(predicted))
	}
	both := append(append([]float64{}, actual...), predicted...)
	c := newCanvas(title, "Actual", "Predicted", both, both)
	c.axes(formatCount, formatCount)

	c.dc.SetColor(refColor)
	c.dc.SetLineWidth(2)
	c.dc.SetDash(8, 6)
	lo, hi := math.Max(c.xmin, c.ymin), math.Min(c.xmax, c.ymax)
	c.dc.DrawLine(c.px(lo), c.py(lo), c.px(hi), c.py(hi))
	c.dc.Stroke()
	c.dc.SetDash()

	for i := range actual {
		c.point(actual[i], predicted[i], lineColor)
	}
	return c.encode(w, KindDiagnostic)
}

func dayColor(weekend *reference.WeekendIndex, d time.Time) color.Color {
	if weekend.IsWeekend(d) {
		return Tomato
	}
	return RoyalBlue
}

// canvas maps data coordinates onto the plotting area of a gg context.
type canvas struct {
	dc                     *gg.Context
	xmin, xmax, ymin, ymax float64
	title, xLabel, yLabel  string
	empty                  bool
}

func newCanvas(title, xLabel, yLabel string, xs, ys []float64) *canvas {
	c := &canvas{dc: gg.NewContext(width, height), title: title, xLabel: xLabel, yLabel: yLabel}
	c.xmin, c.xmax = bounds(xs)
	c.ymin, c.ymax = bounds(ys)
	c.empty = len(xs) == 0
	c.dc.SetColor(background)
	c.dc.Clear()
	return c
}

// bounds returns a padded range covering v, or [0, 1] when v is empty.
func bounds(v []float64) (lo, hi float64) {
	if len(v) == 0 {
		return 0, 1
	}
	lo, hi = v[0], v[0]
	for _, x := range v[1:] {
		lo, hi = math.Min(lo, x), math.Max(hi, x)
	}
	if lo == hi {
		return lo - 1, hi + 1
	}
	pad := (hi - lo) * 0.05
	return lo - pad, hi + pad
}

func (c *canvas) px(x float64) float64 {
	span := float64(width - marginLeft - marginRight)
	return marginLeft + (x-c.xmin)/(c.xmax-c.xmin)*span
}

func (c *canvas) py(y float64) float64 {
	span := float64(height - marginTop - marginBottom)
	return float64(height-marginBottom) - (y-c.ymin)/(c.ymax-c.ymin)*span
}

func (c *canvas) axes(xFmt, yFmt func(float64) string) {
	dc := c.dc
	left, right := float64(marginLeft), float64(width-marginRight)
	top, bottom := float64(marginTop), float64(height-marginBottom)

	dc.SetLineWidth(1)
	for i := 0; i < ticks; i++ {
		f := float64(i) / float64(ticks-1)
		x := c.xmin + f*(c.xmax-c.xmin)
		y := c.ymin + f*(c.ymax-c.ymin)

		dc.SetColor(gridColor)
		dc.DrawLine(c.px(x), top, c.px(x), bottom)
		dc.DrawLine(left, c.py(y), right, c.py(y))
		dc.Stroke()

		dc.SetColor(axisColor)
		dc.DrawStringAnchored(xFmt(x), c.px(x), bottom+16, 0.5, 0.5)
		dc.DrawStringAnchored(yFmt(y), left-8, c.py(y), 1, 0.5)
	}

	dc.SetColor(axisColor)
	dc.DrawLine(left, bottom, right, bottom)
	dc.DrawLine(left, top, left, bottom)
	dc.Stroke()

	dc.DrawStringAnchored(c.title, width/2, marginTop/2, 0.5, 0.5)
	dc.DrawStringAnchored(c.xLabel, (left+right)/2, height-16, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(gg.Radians(-90), 16, (top+bottom)/2)
	dc.DrawStringAnchored(c.yLabel, 16, (top+bottom)/2, 0.5, 0.5)
	dc.Pop()

	if c.empty {
		dc.DrawStringAnchored("no data", (left+right)/2, (top+bottom)/2, 0.5, 0.5)
	}
}

func (c *canvas) line(xs, ys []float64, col color.Color, lineWidth float64) {
	if len(xs) < 2 {
		return
	}
	c.dc.SetColor(col)
	c.dc.SetLineWidth(lineWidth)
	c.dc.MoveTo(c.px(xs[0]), c.py(ys[0]))
	for i := 1; i < len(xs); i++ {
		c.dc.LineTo(c.px(xs[i]), c.py(ys[i]))
	}
	c.dc.Stroke()
}

func (c *canvas) point(x, y float64, col color.Color) {
	c.dc.SetColor(col)
	c.dc.DrawCircle(c.px(x), c.py(y), pointSize)
	c.dc.Fill()
}

func (c *canvas) encode(w io.Writer, kind string) error {
	if err := c.dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode %s chart: %w", kind, err)
	}
	metrics.RecordChartRendered(kind)
	return nil
}

func formatClock(v float64) string {
	return time.Unix(int64(v), 0).UTC().Format("01-02 15:04")
}

func formatDay(v float64) string {
	return time.Unix(int64(v), 0).UTC().Format("01-02")
}

func formatHour(v float64) string {
	h := int(v)
	return fmt.Sprintf("%02d:%02d", h, int((v-float64(h))*60))
}

func formatCount(v float64) string {
	return fmt.Sprintf("%.0f", v)
}
