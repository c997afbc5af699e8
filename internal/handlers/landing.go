package handlers

import (
	"html/template"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bobmcallan/alpha-matrix/internal/auth"
	"github.com/bobmcallan/alpha-matrix/internal/common"
	"github.com/bobmcallan/alpha-matrix/internal/config"
)

// Login error codes carried in the landing page query string.
const (
	ErrorInvalidPassword = "invalid_password"
	ErrorUnavailable     = "unavailable"
)

// PageHandler serves HTML pages rendered with Go templates.
type PageHandler struct {
	logger    *common.Logger
	templates *template.Template
	devMode   bool
	gate      *auth.Gate
}

// NewPageHandler creates a new page handler that loads templates from the pages directory.
func NewPageHandler(logger *common.Logger, devMode bool, gate *auth.Gate) *PageHandler {
	return &PageHandler{
		logger:    logger,
		templates: loadTemplates(),
		devMode:   devMode,
		gate:      gate,
	}
}

func loadTemplates() *template.Template {
	pagesDir := FindPagesDir()

	templates := template.Must(template.ParseGlob(filepath.Join(pagesDir, "*.html")))
	template.Must(templates.ParseGlob(filepath.Join(pagesDir, "partials", "*.html")))
	return templates
}

// FindPagesDir locates the pages directory.
func FindPagesDir() string {
	dirs := []string{
		"./pages",
		"../pages",
		"../../pages",
		".",
	}

	for _, dir := range dirs {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			abs, _ := filepath.Abs(dir)
			return abs
		}
	}

	return "."
}

// ServeLanding handles GET /. A browser that already holds an authorized
// session goes straight to the dashboard; everyone else gets the password
// form. A failed login lands here with ?error=invalid_password.
func (h *PageHandler) ServeLanding(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if _, ok := h.gate.Restore(r); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}

	var notice string
	switch r.URL.Query().Get("error") {
	case ErrorInvalidPassword:
		notice = "Incorrect password."
	case ErrorUnavailable:
		notice = "Sign-in is temporarily unavailable. Please try again."
	}

	h.render(w, "landing.html", map[string]interface{}{
		"Page":          "home",
		"DevMode":       h.devMode,
		"Notice":        notice,
		"PortalVersion": config.GetVersion(),
	})
}

func (h *PageHandler) render(w http.ResponseWriter, name string, data map[string]interface{}) {
	w.Header().Set("Cache-Control", "no-store")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		if h.logger != nil {
			h.logger.Error().Str("template", name).Str("error", err.Error()).Msg("failed to render page")
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// StaticFileHandler serves static files (CSS, JS, images).
func (h *PageHandler) StaticFileHandler(w http.ResponseWriter, r *http.Request) {
	pagesDir := FindPagesDir()
	staticDir := filepath.Join(pagesDir, "static")

	// Remove /static/ prefix from URL path
	path := r.URL.Path[len("/static/"):]
	fullPath := filepath.Join(staticDir, path)

	// Security: prevent directory traversal
	absStaticDir, _ := filepath.Abs(staticDir)
	absFullPath, _ := filepath.Abs(fullPath)
	if len(absFullPath) < len(absStaticDir) || absFullPath[:len(absStaticDir)] != absStaticDir {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, fullPath)
}
