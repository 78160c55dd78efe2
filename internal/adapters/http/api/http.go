// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/okian/crowdcast/internal/domain/model"
	"github.com/okian/crowdcast/internal/domain/regression"
	"github.com/okian/crowdcast/internal/domain/types"
)

// Explorer is the browsing state the handlers read and update.
type Explorer interface {
	Files() []types.FileEntry
	Selected() (types.FileEntry, error)
	Select(ctx context.Context, name string) error
	Series(window string) ([]model.SeriesPoint, error)
	Peaks() ([]types.Peak, error)
	RenderSeries(w io.Writer, window string) error
}

// ModelProvider exposes the last fitted model.
type ModelProvider interface {
	Model() (*regression.Model, bool)
}

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider
	ModelProvider
}

// Server wires HTTP routes for the explorer API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	explorerHandler *ExplorerHandler
	modelHandler    *ModelHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, explorer Explorer) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		explorerHandler: NewExplorerHandler(explorer),
		modelHandler:    NewModelHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/files", MetricsMiddleware(s.explorerHandler.HandleFiles, "files"))
	mux.HandleFunc("/select", MetricsMiddleware(s.explorerHandler.HandleSelect, "select"))
	mux.HandleFunc("/series", MetricsMiddleware(s.explorerHandler.HandleSeries, "series"))
	mux.HandleFunc("/chart", MetricsMiddleware(s.explorerHandler.HandleChart, "chart"))
	mux.HandleFunc("/peaks", MetricsMiddleware(s.explorerHandler.HandlePeaks, "peaks"))
	mux.HandleFunc("/model", MetricsMiddleware(s.modelHandler.HandleModel, "model"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// allowMethod answers 405 with an Allow header unless r uses method.
func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	return false
}
