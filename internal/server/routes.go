package server

import (
	"net/http"

	"github.com/bobmcallan/alpha-matrix/internal/handlers"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// UI pages (HTML templates)
	mux.HandleFunc("/", s.app.PageHandler.ServeLanding)
	mux.HandleFunc("/dashboard", s.app.DashboardHandler.ServeHTTP)

	// Static files (CSS, JS)
	mux.HandleFunc("/static/", s.app.PageHandler.StaticFileHandler)

	// Access gate
	mux.HandleFunc("/login", s.app.AuthHandler.HandleLogin)
	mux.HandleFunc("/logout", s.app.AuthHandler.HandleLogout)

	// MCP endpoint (JSON-RPC over HTTP)
	if s.app.MCPHandler != nil {
		mux.Handle("/mcp", s.app.MCPHandler)
	}

	// Dashboard API
	api := s.app.APIHandler
	mux.HandleFunc("/api/instruments", api.HandleInstruments)
	mux.HandleFunc("/api/portfolio", api.HandlePortfolio)
	mux.HandleFunc("/api/report", func(w http.ResponseWriter, r *http.Request) {
		RouteByMethod(w, r, MethodRouter{
			http.MethodGet:    api.HandleReportView,
			http.MethodPost:   api.HandleReportCreate,
			http.MethodDelete: api.HandleReportClose,
		})
	})

	mux.HandleFunc("/api/health", s.app.HealthHandler.ServeHTTP)
	mux.HandleFunc("/api/version", s.app.VersionHandler.ServeHTTP)
	mux.HandleFunc("/api/server-health", s.app.ServerHealthHandler.ServeHTTP)

	mux.HandleFunc("/metrics", s.handleMetrics)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.handleNotFound)

	return mux
}

// handleMetrics serves the prometheus registry to authorized sessions, or to
// anyone when server.public_metrics is set.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !s.app.Config.Server.PublicMetrics {
		if _, ok := s.app.Gate.Restore(r); !ok {
			handlers.WriteError(w, http.StatusUnauthorized, "authorization required")
			return
		}
	}
	s.app.Metrics.Handler().ServeHTTP(w, r)
}

// handleNotFound returns a JSON 404 for unmatched API routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not Found","message":"The requested endpoint does not exist"}`))
}
