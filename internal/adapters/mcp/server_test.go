package mcpadapter

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/stablebooks/internal/bootstrap"
	"github.com/kirillkom/stablebooks/internal/config"
	"github.com/kirillkom/stablebooks/internal/core/domain"
)

func newTestTools(t *testing.T) (*Tools, *bootstrap.App) {
	t.Helper()
	app, err := bootstrap.New(context.Background(), config.Config{StoreBackend: config.StoreBackendMemory}, bootstrap.Options{WithoutQueue: true})
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return NewTools(Services{Matcher: app.Matcher, Reclassifier: app.Reclassifier, Roster: app.Roster}), app
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func seedInvoice(t *testing.T, app *bootstrap.App, horseName string) *domain.Invoice {
	t.Helper()
	inv, err := app.Intake.CreateFromExtraction(context.Background(), "doc-"+horseName, domain.ExtractedInvoice{
		Category: app.Categories.List()[0].ID,
		Items:    []domain.ExtractedItem{{Description: "Hay", Amount: "45.50", HorseName: horseName}},
	})
	require.NoError(t, err)
	return inv
}

func TestNewServerRegistersTools(t *testing.T) {
	tools, _ := newTestTools(t)
	require.NotNil(t, NewServer(tools.svc, "test"))
}

func TestListAndResolveUnmatchedNames(t *testing.T) {
	tools, app := newTestTools(t)
	ctx := context.Background()
	horse, err := app.Roster.Register(ctx, "Storm Chaser", "")
	require.NoError(t, err)
	inv := seedInvoice(t, app, "Storm Chasr")

	res, err := tools.ListUnmatchedNames(ctx, callRequest("list_unmatched_names", map[string]any{"invoice_id": inv.ID}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var listed struct {
		Unmatched []domain.NameCandidate `json:"unmatched"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &listed))
	require.Len(t, listed.Unmatched, 1)
	require.Equal(t, "Storm Chasr", listed.Unmatched[0].RawName)

	res, err = tools.ResolveUnmatchedName(ctx, callRequest("resolve_unmatched_name", map[string]any{
		"invoice_id": inv.ID,
		"raw_name":   "Storm Chasr",
		"horse_id":   horse.ID,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	var resolved struct {
		UnresolvedNames []string `json:"unresolved_names"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &resolved))
	require.Empty(t, resolved.UnresolvedNames)

	res, err = tools.ResolveUnmatchedName(ctx, callRequest("resolve_unmatched_name", map[string]any{
		"invoice_id": inv.ID,
		"raw_name":   "Storm Chasr",
		"horse_id":   horse.ID,
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.True(t, strings.HasPrefix(resultText(t, res), "already_resolved"))
}

func TestSummarizeInvoice(t *testing.T) {
	tools, app := newTestTools(t)
	inv := seedInvoice(t, app, "")

	res, err := tools.SummarizeInvoice(context.Background(), callRequest("summarize_invoice", map[string]any{"invoice_id": inv.ID}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, resultText(t, res), "45.5")
}

func TestToolsReportDomainErrors(t *testing.T) {
	tools, _ := newTestTools(t)

	res, err := tools.SummarizeInvoice(context.Background(), callRequest("summarize_invoice", map[string]any{"invoice_id": "missing"}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.True(t, strings.HasPrefix(resultText(t, res), "not_found"))

	res, err = tools.FindHorse(context.Background(), callRequest("find_horse", map[string]any{}))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestFindHorse(t *testing.T) {
	tools, app := newTestTools(t)
	_, err := app.Roster.Register(context.Background(), "Bella", "Ann")
	require.NoError(t, err)

	res, err := tools.FindHorse(context.Background(), callRequest("find_horse", map[string]any{"name": "BELLA"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, resultText(t, res), `"name":"Bella"`)
}
