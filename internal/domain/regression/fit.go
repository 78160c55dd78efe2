// Package regression fits ordinary least squares models on feature tables
// and predicts single points with them.
package regression

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/okian/crowdcast/internal/domain/features"
)

// Coefficient is the weight of one named feature.
type Coefficient struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Model is a fitted linear model. The coefficient order is the column order
// seen at fit time and is the order every later prediction is aligned to.
type Model struct {
	ID           uuid.UUID
	Grain        string
	Target       string
	Origin       time.Time
	Coefficients []Coefficient
	Intercept    float64
	R2           float64
	Rows         int
	FittedAt     time.Time
}

// Diagnostics pairs the training targets with in-sample predictions.
type Diagnostics struct {
	Actual    []float64
	Predicted []float64
}

// Fit regresses the table's target on every numeric column except the
// target, the identifier columns and any extra excluded names. The intercept
// is fitted on centered data and the slope is the minimum-norm least squares
// solution, so collinear or constant features do not fail the fit.
func Fit(ctx context.Context, t *features.Table, exclude ...string) (*Model, Diagnostics, error) {
	if t == nil || t.Len() == 0 {
		return nil, Diagnostics{}, ErrEmptyTable
	}
	target, ok := t.Column(t.Target)
	if !ok || target.Kind != features.KindNumeric {
		return nil, Diagnostics{}, fmt.Errorf("%w: %q", ErrUnknownTarget, t.Target)
	}

	skip := make(map[string]struct{}, len(features.IdentifierColumns)+len(exclude)+1)
	skip[t.Target] = struct{}{}
	for _, name := range features.IdentifierColumns {
		skip[name] = struct{}{}
	}
	for _, name := range exclude {
		skip[name] = struct{}{}
	}

	var cols []*features.Column
	for _, c := range t.Columns() {
		if _, ok := skip[c.Name]; ok {
			continue
		}
		if c.Kind != features.KindNumeric {
			return nil, Diagnostics{}, fmt.Errorf("%w: %q is %s", ErrNonNumericColumn, c.Name, c.Kind)
		}
		cols = append(cols, c)
	}

	if err := ctx.Err(); err != nil {
		return nil, Diagnostics{}, err
	}

	n, p := t.Len(), len(cols)
	y := target.Numbers
	yMean := stat.Mean(y, nil)

	beta := make([]float64, p)
	xMeans := make([]float64, p)
	if p > 0 {
		xc := mat.NewDense(n, p, nil)
		for j, c := range cols {
			xMeans[j] = stat.Mean(c.Numbers, nil)
			for i, v := range c.Numbers {
				xc.Set(i, j, v-xMeans[j])
			}
		}
		yc := mat.NewDense(n, 1, nil)
		for i, v := range y {
			yc.Set(i, 0, v-yMean)
		}
		if err := solve(xc, yc, beta); err != nil {
			return nil, Diagnostics{}, err
		}
	}

	m := &Model{
		ID:           uuid.New(),
		Grain:        t.Grain,
		Target:       t.Target,
		Origin:       t.Origin,
		Coefficients: make([]Coefficient, p),
		Intercept:    yMean - floats.Dot(xMeans, beta),
		Rows:         n,
		FittedAt:     time.Now().UTC(),
	}
	for j, c := range cols {
		m.Coefficients[j] = Coefficient{Name: c.Name, Value: beta[j]}
	}

	predicted := make([]float64, n)
	row := make([]float64, p)
	for i := range predicted {
		for j, c := range cols {
			row[j] = c.Numbers[i]
		}
		predicted[i] = m.Intercept + floats.Dot(beta, row)
	}
	m.R2 = rSquared(predicted, y)

	actual := make([]float64, n)
	copy(actual, y)
	return m, Diagnostics{Actual: actual, Predicted: predicted}, nil
}

// solve writes the minimum-norm solution of xc·beta ≈ yc into beta.
func solve(xc *mat.Dense, yc *mat.Dense, beta []float64) error {
	n, p := xc.Dims()
	var svd mat.SVD
	if !svd.Factorize(xc, mat.SVDThin) {
		return ErrSolve
	}
	rcond := float64(max(n, p)) * machineEpsilon
	rank := svd.Rank(rcond)
	if rank == 0 {
		// Every centered column is zero; all slopes stay 0.
		return nil
	}
	var sol mat.Dense
	svd.SolveTo(&sol, yc, rank)
	for j := range beta {
		beta[j] = sol.At(j, 0)
	}
	return nil
}

const machineEpsilon = 2.220446049250313e-16

// rSquared is the coefficient of determination. A constant target scores 1
// when predicted exactly and 0 otherwise.
func rSquared(predicted, actual []float64) float64 {
	mean := stat.Mean(actual, nil)
	var ssTot, ssRes float64
	for i, v := range actual {
		ssTot += (v - mean) * (v - mean)
		ssRes += (v - predicted[i]) * (v - predicted[i])
	}
	if ssTot == 0 {
		if ssRes < 1e-9 {
			return 1
		}
		return 0
	}
	r2 := stat.RSquaredFrom(predicted, actual, nil)
	if math.IsNaN(r2) {
		return 0
	}
	return r2
}
