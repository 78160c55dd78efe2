package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	service "github.com/okian/crowdcast/internal/app"
	"github.com/okian/crowdcast/internal/domain/types"
)

const maxSelectBody = 4 << 10

// ExplorerHandler serves the file browser routes.
type ExplorerHandler struct {
	explorer Explorer
}

// NewExplorerHandler creates a new explorer handler.
func NewExplorerHandler(explorer Explorer) *ExplorerHandler {
	return &ExplorerHandler{explorer: explorer}
}

type selectRequest struct {
	File string `json:"file"`
}

type seriesResponse struct {
	File   string        `json:"file"`
	Game   string        `json:"game"`
	Range  string        `json:"range"`
	Points []types.Point `json:"points"`
}

type peaksResponse struct {
	File  string       `json:"file"`
	Game  string       `json:"game"`
	Peaks []types.Peak `json:"peaks"`
}

// HandleFiles handles GET /files requests.
func (h *ExplorerHandler) HandleFiles(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, h.explorer.Files())
}

// HandleSelect handles POST /select?file=NAME requests. The file may also be
// sent as a JSON body {"file": NAME}.
func (h *ExplorerHandler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("file"))
	if name == "" && r.Body != nil {
		var req selectRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSelectBody))
		if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		name = strings.TrimSpace(req.File)
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing file"))
		return
	}
	if err := h.explorer.Select(r.Context(), name); err != nil {
		writeExplorerError(w, err)
		return
	}
	sel, err := h.explorer.Selected()
	if err != nil {
		writeExplorerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

// HandleSeries handles GET /series?range=1d|1w|1m|all requests.
func (h *ExplorerHandler) HandleSeries(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	window := rangeParam(r)
	sel, err := h.explorer.Selected()
	if err != nil {
		writeExplorerError(w, err)
		return
	}
	series, err := h.explorer.Series(window)
	if err != nil {
		writeExplorerError(w, err)
		return
	}
	points := make([]types.Point, len(series))
	for i, p := range series {
		points[i] = types.Point{Timestamp: p.Timestamp, Players: p.Players}
	}
	writeJSON(w, http.StatusOK, seriesResponse{File: sel.Name, Game: sel.Game, Range: window, Points: points})
}

// HandleChart handles GET /chart?range= requests with a PNG of the series.
func (h *ExplorerHandler) HandleChart(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	var buf bytes.Buffer
	if err := h.explorer.RenderSeries(&buf, rangeParam(r)); err != nil {
		writeExplorerError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// HandlePeaks handles GET /peaks requests.
func (h *ExplorerHandler) HandlePeaks(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	sel, err := h.explorer.Selected()
	if err != nil {
		writeExplorerError(w, err)
		return
	}
	peaks, err := h.explorer.Peaks()
	if err != nil {
		writeExplorerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, peaksResponse{File: sel.Name, Game: sel.Game, Peaks: peaks})
}

func rangeParam(r *http.Request) string {
	window := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("range")))
	if window == "" {
		return service.RangeAll
	}
	return window
}

func writeExplorerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidSelection):
		writeError(w, http.StatusBadRequest, "invalid_selection", err)
	case errors.Is(err, service.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_range", err)
	case errors.Is(err, service.ErrNoSelection):
		writeError(w, http.StatusNotFound, "no_selection", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
