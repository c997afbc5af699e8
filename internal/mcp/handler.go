// Package mcp exposes the dashboard to MCP clients over streamable HTTP.
package mcp

import (
	"encoding/json"
	"net/http"

	"github.com/bobmcallan/alpha-matrix/internal/auth"
	"github.com/bobmcallan/alpha-matrix/internal/common"
	"github.com/bobmcallan/alpha-matrix/internal/config"
	"github.com/bobmcallan/alpha-matrix/internal/dashboard"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Handler is the HTTP handler for the MCP endpoint.
// It wraps mcp-go's StreamableHTTPServer and delegates to it.
type Handler struct {
	server     *mcpserver.MCPServer
	streamable *mcpserver.StreamableHTTPServer
	logger     *common.Logger
	gate       *auth.Gate
}

// NewHandler creates the MCP handler. Tools act on the board of the portal
// session that made the call; source serves strategy reports and pinger
// backs get_version.
func NewHandler(logger *common.Logger, gate *auth.Gate, boards *dashboard.Registry, source dashboard.Source, pinger Pinger) *Handler {
	if logger == nil {
		logger = common.NewSilentLogger()
	}

	srv, toolCount := newServer(boards, source, pinger)
	streamable := mcpserver.NewStreamableHTTPServer(srv,
		mcpserver.WithStateLess(true),
	)

	logger.Info().
		Int("tools", toolCount).
		Msg("MCP handler initialized")

	return &Handler{
		server:     srv,
		streamable: streamable,
		logger:     logger,
		gate:       gate,
	}
}

// newServer builds the MCP server with all tools registered.
func newServer(boards *dashboard.Registry, source dashboard.Source, pinger Pinger) (*mcpserver.MCPServer, int) {
	srv := mcpserver.NewMCPServer(
		"alpha-matrix",
		config.GetVersion(),
		mcpserver.WithToolCapabilities(true),
	)
	tools := &toolSet{boards: boards, source: source}
	return srv, tools.register(srv, pinger)
}

// ServeHTTP requires an authorized portal session cookie, attaches it to the
// request context and delegates to the mcp-go StreamableHTTPServer.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.gate.Restore(r)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "unauthorized",
			"error_description": "Sign in to the portal before connecting an MCP client",
		})
		return
	}

	ctx := WithSessionContext(r.Context(), SessionContext{SessionID: sess.ID})
	h.streamable.ServeHTTP(w, r.WithContext(ctx))
}
