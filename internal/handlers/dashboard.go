package handlers

import (
	"html/template"
	"net/http"

	"github.com/bobmcallan/alpha-matrix/internal/auth"
	"github.com/bobmcallan/alpha-matrix/internal/common"
	"github.com/bobmcallan/alpha-matrix/internal/config"
	"github.com/bobmcallan/alpha-matrix/internal/dashboard"
)

// DashboardHandler serves the score table page.
type DashboardHandler struct {
	logger    *common.Logger
	templates *template.Template
	devMode   bool
	gate      *auth.Gate
	boards    *dashboard.Registry
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(logger *common.Logger, devMode bool, gate *auth.Gate, boards *dashboard.Registry) *DashboardHandler {
	return &DashboardHandler{
		logger:    logger,
		templates: loadTemplates(),
		devMode:   devMode,
		gate:      gate,
		boards:    boards,
	}
}

// ServeHTTP renders the dashboard page. The page shows a full-screen
// loading placeholder until its first /api/instruments call settles; when
// this session already loaded once, the held rows are rendered straight away.
func (h *DashboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	sess, ok := h.gate.Restore(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	board := h.boards.Board(sess.ID)

	data := map[string]interface{}{
		"Page":          "dashboard",
		"DevMode":       h.devMode,
		"Loaded":        board.Loaded(),
		"Rows":          dashboard.Rows(board.Instruments()),
		"Portfolio":     board.Portfolio(),
		"HotRVol":       dashboard.HotRVol,
		"PortalVersion": config.GetVersion(),
	}

	w.Header().Set("Cache-Control", "no-store")
	if err := h.templates.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		if h.logger != nil {
			h.logger.Error().Str("template", "dashboard.html").Str("error", err.Error()).Msg("failed to render dashboard")
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
