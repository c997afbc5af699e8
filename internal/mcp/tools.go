package mcp

import (
	"context"
	"strings"

	"github.com/bobmcallan/alpha-matrix/internal/dashboard"
	"github.com/bobmcallan/alpha-matrix/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// toolSet binds the MCP tools to the caller's dashboard board.
type toolSet struct {
	boards *dashboard.Registry
	source dashboard.Source
}

// board returns the board of the session that made the call.
func (t *toolSet) board(ctx context.Context) (*dashboard.Board, bool) {
	sc, ok := GetSessionContext(ctx)
	if !ok {
		return nil, false
	}
	return t.boards.Board(sc.SessionID), true
}

// register adds every tool to the server and returns how many were added.
func (t *toolSet) register(srv *server.MCPServer, pinger Pinger) int {
	tools := []struct {
		tool    mcp.Tool
		handler server.ToolHandlerFunc
	}{
		{listInstrumentsTool(), t.listInstruments},
		{getPortfolioTool(), t.getPortfolio},
		{getStrategyReportTool(), t.getStrategyReport},
		{VersionTool(), VersionToolHandler(pinger)},
	}
	for _, tt := range tools {
		srv.AddTool(tt.tool, tt.handler)
	}
	return len(tools)
}

func listInstrumentsTool() mcp.Tool {
	return mcp.NewTool("list_instruments",
		mcp.WithDescription("Reload and list the latest scored ETFs in backend order. Each row carries its position, grade style, formatted price, alpha and relative volume."),
		mcp.WithString("grade",
			mcp.Description("Only return rows whose grade style is this key (S, A, B or F). Positions stay those of the full list."),
		),
	)
}

// instrumentsResult is the body of list_instruments.
type instrumentsResult struct {
	Stale bool            `json:"stale"`
	Total int             `json:"total"`
	Rows  []dashboard.Row `json:"rows"`
}

func (t *toolSet) listInstruments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	board, ok := t.board(ctx)
	if !ok {
		return errorResult("authorization required"), nil
	}

	err := board.Refresh(ctx)
	rows := dashboard.Rows(board.Instruments())
	total := len(rows)

	if grade := strings.ToUpper(strings.TrimSpace(request.GetString("grade", ""))); grade != "" {
		filtered := make([]dashboard.Row, 0, len(rows))
		for _, row := range rows {
			if row.Style.Key == grade {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	return jsonResult(instrumentsResult{Stale: err != nil, Total: total, Rows: rows}), nil
}

func getPortfolioTool() mcp.Tool {
	return mcp.NewTool("get_portfolio",
		mcp.WithDescription("Get the portfolio holdings snapshot. Returns null holdings when the backend has none."),
	)
}

func (t *toolSet) getPortfolio(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	board, ok := t.board(ctx)
	if !ok {
		return errorResult("authorization required"), nil
	}

	board.LoadPortfolio(ctx)
	snap := board.Portfolio()
	if snap == nil {
		return jsonResult(map[string]interface{}{"holdings": nil}), nil
	}
	return jsonResult(snap), nil
}

func getStrategyReportTool() mcp.Tool {
	return mcp.NewTool("get_strategy_report",
		mcp.WithDescription("Ask the AI strategist for a report on one ETF. Select it by its position from list_instruments or by name."),
		mcp.WithNumber("index",
			mcp.Description("Zero-based position of the ETF in the latest list"),
		),
		mcp.WithString("name",
			mcp.Description("ETF name; the first row with this exact name is used"),
		),
	)
}

// getStrategyReport calls the backend directly instead of going through the
// board's modal, so an agent never displaces the report a browser is showing.
func (t *toolSet) getStrategyReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	board, ok := t.board(ctx)
	if !ok {
		return errorResult("authorization required"), nil
	}

	if !board.Loaded() {
		board.LoadInstruments(ctx)
	}

	inst, ok := t.resolve(board, request)
	if !ok {
		return errorResult("no such ETF in the current list; call list_instruments first"), nil
	}

	report, err := t.source.StrategyReport(ctx, inst)
	if err != nil {
		return errorResult(dashboard.TextUnreachable), nil
	}
	if report == "" {
		return errorResult(dashboard.TextNoReport), nil
	}
	return textResult(report), nil
}

// resolve picks the instrument named by the request, preferring the index.
func (t *toolSet) resolve(board *dashboard.Board, request mcp.CallToolRequest) (models.Instrument, bool) {
	args := request.GetArguments()
	if _, has := args["index"]; has {
		return board.Instrument(request.GetInt("index", -1))
	}

	name := request.GetString("name", "")
	if name == "" {
		return models.Instrument{}, false
	}
	for _, inst := range board.Instruments() {
		if inst.Name == name {
			return inst, true
		}
	}
	return models.Instrument{}, false
}
