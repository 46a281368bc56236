// Package mcpadapter exposes invoice review tools over the Model Context Protocol.
package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/core/ports"
)

const serverName = "stablebooks"

// Services are the inbound ports the tools call. Approval is not exposed.
type Services struct {
	Matcher      ports.EntityMatcher
	Reclassifier ports.Reclassifier
	Roster       ports.RosterService
}

type Tools struct {
	svc Services
}

func NewTools(svc Services) *Tools {
	return &Tools{svc: svc}
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(svc Services, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))
	tools := NewTools(svc)

	s.AddTool(mcp.NewTool("summarize_invoice",
		mcp.WithDescription("Per-category subtotals of an invoice and whether the remaining amount reconciles with the invoice total."),
		mcp.WithString("invoice_id", mcp.Required(), mcp.Description("Invoice identifier")),
	), tools.SummarizeInvoice)

	s.AddTool(mcp.NewTool("list_unmatched_names",
		mcp.WithDescription("Extracted horse names on an invoice that are not bound to the roster, with ranked roster suggestions."),
		mcp.WithString("invoice_id", mcp.Required(), mcp.Description("Invoice identifier")),
	), tools.ListUnmatchedNames)

	s.AddTool(mcp.NewTool("resolve_unmatched_name",
		mcp.WithDescription("Bind an unmatched name to an existing active horse. Every line item carrying the name is updated."),
		mcp.WithString("invoice_id", mcp.Required(), mcp.Description("Invoice identifier")),
		mcp.WithString("raw_name", mcp.Required(), mcp.Description("Name exactly as extracted")),
		mcp.WithString("horse_id", mcp.Required(), mcp.Description("Roster horse identifier")),
	), tools.ResolveUnmatchedName)

	s.AddTool(mcp.NewTool("find_horse",
		mcp.WithDescription("Look up roster horses by name, case-insensitively."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Horse name")),
	), tools.FindHorse)

	return s
}

func (t *Tools) SummarizeInvoice(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	invoiceID, err := req.RequireString("invoice_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	summary, err := t.svc.Reclassifier.Summarize(ctx, invoiceID)
	if err != nil {
		return toolError("summarize_invoice", err), nil
	}
	return jsonResult(summary)
}

func (t *Tools) ListUnmatchedNames(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	invoiceID, err := req.RequireString("invoice_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	candidates, err := t.svc.Matcher.Candidates(ctx, invoiceID)
	if err != nil {
		return toolError("list_unmatched_names", err), nil
	}
	if candidates == nil {
		candidates = []domain.NameCandidate{}
	}
	return jsonResult(map[string]any{"unmatched": candidates})
}

func (t *Tools) ResolveUnmatchedName(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	invoiceID, err := req.RequireString("invoice_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawName, err := req.RequireString("raw_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	horseID, err := req.RequireString("horse_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	inv, err := t.svc.Matcher.ResolveToExisting(ctx, invoiceID, rawName, horseID)
	if err != nil {
		return toolError("resolve_unmatched_name", err), nil
	}
	return jsonResult(map[string]any{
		"invoice_id":       inv.ID,
		"unresolved_names": inv.UnresolvedNames(),
		"unmatched_names":  inv.UnmatchedNames,
	})
}

func (t *Tools) FindHorse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	horses, err := t.svc.Roster.FindByName(ctx, name)
	if err != nil {
		return toolError("find_horse", err), nil
	}
	if horses == nil {
		horses = []domain.Horse{}
	}
	return jsonResult(map[string]any{"horses": horses})
}

// toolError reports a failed call to the client as a tool result so the
// assistant can read the kind and react.
func toolError(tool string, err error) *mcp.CallToolResult {
	kind := domain.KindName(err)
	if kind == "internal" {
		slog.Error("mcp_tool_failed", "tool", tool, "error", err)
		return mcp.NewToolResultError("internal error")
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %s", kind, err.Error()))
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
