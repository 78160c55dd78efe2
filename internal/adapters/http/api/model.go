package api

import (
	"net/http"
	"time"

	"github.com/okian/crowdcast/internal/domain/types"
)

// ModelHandler serves the coefficients of the last fit.
type ModelHandler struct {
	models ModelProvider
}

// NewModelHandler creates a new model handler.
func NewModelHandler(models ModelProvider) *ModelHandler {
	return &ModelHandler{models: models}
}

// HandleModel handles GET /model requests.
func (h *ModelHandler) HandleModel(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	m, ok := h.models.Model()
	if !ok {
		writeError(w, http.StatusNotFound, "not_fitted", ErrNotFitted)
		return
	}

	out := types.ModelSummary{
		ID:           m.ID.String(),
		Grain:        m.Grain,
		Target:       m.Target,
		Intercept:    m.Intercept,
		R2:           m.R2,
		Rows:         m.Rows,
		FittedAt:     m.FittedAt,
		Coefficients: make([]types.Coefficient, len(m.Coefficients)),
	}
	if !m.Origin.IsZero() {
		out.Origin = m.Origin.Format(time.DateOnly)
	}
	for i, c := range m.Coefficients {
		out.Coefficients[i] = types.Coefficient{Name: c.Name, Value: c.Value}
	}
	writeJSON(w, http.StatusOK, out)
}
