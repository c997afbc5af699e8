package mcp

import (
	"context"
	"time"

	"github.com/bobmcallan/alpha-matrix/internal/config"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Pinger checks that the quant backend is answering.
type Pinger interface {
	Ping(ctx context.Context) error
}

// versionResult is the body of get_version.
type versionResult struct {
	Portal  map[string]string `json:"alpha_matrix"`
	Backend string            `json:"backend"`
}

// VersionTool returns the mcp.Tool definition for get_version.
func VersionTool() mcp.Tool {
	return mcp.NewTool("get_version",
		mcp.WithDescription("Get the alpha-matrix portal version and whether the quant backend is reachable. Use this to verify connectivity."),
	)
}

// VersionToolHandler reports the portal build and whether the backend answers.
// A nil pinger reports the backend as "unknown".
func VersionToolHandler(pinger Pinger) server.ToolHandlerFunc {
	return func(ctx context.Context, r mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result := versionResult{
			Portal:  config.VersionInfo(),
			Backend: "unknown",
		}

		if pinger != nil {
			pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
			defer cancel()
			if err := pinger.Ping(pingCtx); err != nil {
				result.Backend = "down"
			} else {
				result.Backend = "ok"
			}
		}

		return jsonResult(result), nil
	}
}
