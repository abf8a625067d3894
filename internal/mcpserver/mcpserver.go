// Package mcpserver exposes stored transcripts and summaries as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rcliao/voicenote/internal/model"
	"github.com/rcliao/voicenote/internal/store"
)

// Reader is the store surface the tools query.
type Reader interface {
	Search(ctx context.Context, p store.SearchParams) ([]store.SearchResult, error)
	ListSummaries(ctx context.Context, p store.ListParams) ([]model.DailySummary, error)
	TranscriptsOn(ctx context.Context, userID, date string) ([]model.VoiceTranscript, error)
}

// Tools holds the handlers.
type Tools struct {
	r Reader
}

// New builds an MCP server with every tool registered.
func New(r Reader, version string) *server.MCPServer {
	s := server.NewMCPServer("voicenote", version, server.WithToolCapabilities(false))
	t := &Tools{r: r}

	s.AddTool(mcp.NewTool("search_transcripts",
		mcp.WithDescription("Find voice-note transcripts containing a phrase"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Substring to look for")),
		mcp.WithString("user_id", mcp.Description("Restrict to one user")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), t.SearchTranscripts)

	s.AddTool(mcp.NewTool("list_summaries",
		mcp.WithDescription("List daily summaries, newest first"),
		mcp.WithString("user_id", mcp.Description("Restrict to one user")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default 20)")),
	), t.ListSummaries)

	s.AddTool(mcp.NewTool("day_transcripts",
		mcp.WithDescription("All of a user's transcripts for one date"),
		mcp.WithString("user_id", mcp.Required()),
		mcp.WithString("date", mcp.Required(), mcp.Description("YYYY-MM-DD")),
	), t.DayTranscripts)

	return s
}

// Serve runs the server over stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func (t *Tools) SearchTranscripts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := t.r.Search(ctx, store.SearchParams{
		UserID: req.GetString("user_id", ""),
		Query:  query,
		Limit:  req.GetInt("limit", 20),
	})
	if err != nil {
		return mcp.NewToolResultError("search: " + err.Error()), nil
	}
	for i := range results {
		results[i].Embedding = nil
	}
	return jsonResult(results)
}

func (t *Tools) ListSummaries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sums, err := t.r.ListSummaries(ctx, store.ListParams{
		UserID: req.GetString("user_id", ""),
		Limit:  req.GetInt("limit", 20),
	})
	if err != nil {
		return mcp.NewToolResultError("list summaries: " + err.Error()), nil
	}
	return jsonResult(sums)
}

func (t *Tools) DayTranscripts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	date, err := req.RequireString("date")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trs, err := t.r.TranscriptsOn(ctx, userID, date)
	if err != nil {
		return mcp.NewToolResultError("transcripts: " + err.Error()), nil
	}
	for i := range trs {
		trs[i].Embedding = nil
	}
	return jsonResult(trs)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}
