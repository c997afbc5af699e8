package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/bobmcallan/alpha-matrix/internal/auth"
	"github.com/bobmcallan/alpha-matrix/internal/common"
	"github.com/bobmcallan/alpha-matrix/internal/dashboard"
)

// APIHandler serves the JSON endpoints the dashboard page calls.
// Every route requires an authorized session.
type APIHandler struct {
	logger *common.Logger
	gate   *auth.Gate
	boards *dashboard.Registry
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(logger *common.Logger, gate *auth.Gate, boards *dashboard.Registry) *APIHandler {
	return &APIHandler{
		logger: logger,
		gate:   gate,
		boards: boards,
	}
}

// board resolves the caller's dashboard, writing 401 when there is no
// authorized session.
func (h *APIHandler) board(w http.ResponseWriter, r *http.Request) (*dashboard.Board, bool) {
	sess, ok := h.gate.Restore(r)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "authorization required")
		return nil, false
	}
	return h.boards.Board(sess.ID), true
}

// InstrumentsResponse is the body of GET /api/instruments.
type InstrumentsResponse struct {
	Status    string          `json:"status"`
	Loaded    bool            `json:"loaded"`
	Stale     bool            `json:"stale"`
	UpdatedAt *time.Time      `json:"updated_at,omitempty"`
	Rows      []dashboard.Row `json:"rows"`
}

// HandleInstruments handles GET /api/instruments. Each call performs one
// upstream load. Upstream failures still answer 200 with the previously
// held rows and stale=true.
func (h *APIHandler) HandleInstruments(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	board, ok := h.board(w, r)
	if !ok {
		return
	}

	err := board.LoadInstruments(r.Context())

	resp := InstrumentsResponse{
		Status: "ok",
		Loaded: board.Loaded(),
		Stale:  err != nil,
		Rows:   dashboard.Rows(board.Instruments()),
	}
	if t := board.UpdatedAt(); !t.IsZero() {
		resp.UpdatedAt = &t
	}
	WriteJSON(w, http.StatusOK, resp)
}

// HandlePortfolio handles GET /api/portfolio. The snapshot is null until the
// backend has answered successfully at least once; failures are not reported.
func (h *APIHandler) HandlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	board, ok := h.board(w, r)
	if !ok {
		return
	}

	board.LoadPortfolio(r.Context())

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"portfolio": board.Portfolio(),
	})
}

// reportRequest is the body of POST /api/report. Name is the instrument the
// page showed at Index; it is optional.
type reportRequest struct {
	Index *int   `json:"index"`
	Name  string `json:"name"`
}

// HandleReportCreate handles POST /api/report {"index": n, "name": s}. It
// blocks until the backend answers and returns the modal as it stands
// afterwards, with current=false when a newer selection or a close won the
// race. A name that no longer matches the row answers 409.
func (h *APIHandler) HandleReportCreate(w http.ResponseWriter, r *http.Request) {
	board, ok := h.board(w, r)
	if !ok {
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Index == nil {
		WriteError(w, http.StatusBadRequest, "body must be {\"index\": n}")
		return
	}

	res, err := board.RequestReport(r.Context(), *req.Index, req.Name)
	if errors.Is(err, dashboard.ErrNoInstrument) {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, dashboard.ErrSelectionChanged) {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, res)
}

// HandleReportView handles GET /api/report.
func (h *APIHandler) HandleReportView(w http.ResponseWriter, r *http.Request) {
	board, ok := h.board(w, r)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, board.Modal().View())
}

// HandleReportClose handles DELETE /api/report.
func (h *APIHandler) HandleReportClose(w http.ResponseWriter, r *http.Request) {
	board, ok := h.board(w, r)
	if !ok {
		return
	}
	board.Modal().Close()
	WriteJSON(w, http.StatusOK, board.Modal().View())
}
