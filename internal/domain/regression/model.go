package regression

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/okian/crowdcast/internal/domain/features"
	"github.com/okian/crowdcast/internal/domain/reference"
)

// Names returns the feature names in model order.
func (m *Model) Names() []string {
	out := make([]string, len(m.Coefficients))
	for i, c := range m.Coefficients {
		out[i] = c.Name
	}
	return out
}

// Align reindexes a named feature map to the model's column order. Columns
// the model knows but the map lacks become 0; extra map entries are dropped.
func (m *Model) Align(values map[string]float64) []float64 {
	out := make([]float64, len(m.Coefficients))
	for i, c := range m.Coefficients {
		out[i] = values[c.Name]
	}
	return out
}

// PredictVector applies the model to an already aligned vector.
func (m *Model) PredictVector(x []float64) (float64, error) {
	if len(x) != len(m.Coefficients) {
		return 0, fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(x), len(m.Coefficients))
	}
	w := make([]float64, len(m.Coefficients))
	for i, c := range m.Coefficients {
		w[i] = c.Value
	}
	return m.Intercept + floats.Dot(w, x), nil
}

// PredictMap aligns values and applies the model.
func (m *Model) PredictMap(values map[string]float64) float64 {
	y, _ := m.PredictVector(m.Align(values))
	return y
}

// Predictor answers point predictions for one fitted model.
type Predictor struct {
	model   *Model
	weekend *reference.WeekendIndex
	meta    *reference.MetadataIndex
}

// NewPredictor binds a model to the reference tables its features came from.
func NewPredictor(m *Model, weekend *reference.WeekendIndex, meta *reference.MetadataIndex) *Predictor {
	return &Predictor{model: m, weekend: weekend, meta: meta}
}

// Model returns the bound model.
func (p *Predictor) Model() *Model { return p.model }

// Vector returns the aligned feature vector for game at the given instant.
func (p *Predictor) Vector(game string, at time.Time) ([]float64, error) {
	g, err := p.meta.Get(game)
	if err != nil {
		return nil, err
	}
	return p.model.Align(features.PointVector(g, at, p.weekend, p.model.Origin)), nil
}

// Predict estimates the target for game at the given instant. Unknown games
// fail with reference.ErrUnknownGame.
func (p *Predictor) Predict(ctx context.Context, game string, at time.Time) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	x, err := p.Vector(game, at)
	if err != nil {
		return 0, err
	}
	return p.model.PredictVector(x)
}
