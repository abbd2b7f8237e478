// Package mcp implements the Model Context Protocol server for storyloom.
// It exposes read-only tools over materialized projects so desktop LLM
// clients can browse a writer's codex and chapters.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/storyloom/storyloom/internal/models"
	"github.com/storyloom/storyloom/internal/store"
)

// Server wraps an MCPServer with storyloom dependencies.
type Server struct {
	mcp    *mcpserver.MCPServer
	st     store.Store
	logger *slog.Logger
}

// NewServer creates a new MCP server. If st is nil, tool calls return an
// error response instead of panicking.
func NewServer(st store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	// A nil concrete pointer wrapped in the interface would slip past the
	// st == nil guards on every handler and panic on first use.
	if v := reflect.ValueOf(st); st != nil && v.Kind() == reflect.Pointer && v.IsNil() {
		st = nil
	}
	s := &Server{st: st, logger: logger}

	mcpSrv := mcpserver.NewMCPServer(
		"storyloom",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildListProjectsTool(), s.handleListProjects)
	mcpSrv.AddTool(buildGetProjectTool(), s.handleGetProject)
	mcpSrv.AddTool(buildSearchCodexTool(), s.handleSearchCodex)
	mcpSrv.AddTool(buildListChaptersTool(), s.handleListChapters)
	mcpSrv.AddTool(buildStatsTool(), s.handleStats)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleListProjects is the exported handler for the "list_projects" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleListProjects(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleListProjects(ctx, req)
}

// HandleGetProject is the exported handler for the "get_project" tool.
func (s *Server) HandleGetProject(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleGetProject(ctx, req)
}

// HandleSearchCodex is the exported handler for the "search_codex" tool.
func (s *Server) HandleSearchCodex(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleSearchCodex(ctx, req)
}

// HandleListChapters is the exported handler for the "list_chapters" tool.
func (s *Server) HandleListChapters(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleListChapters(ctx, req)
}

// HandleStats is the exported handler for the "stats" tool.
func (s *Server) HandleStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleStats(ctx, req)
}

// --- helpers ---

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// --- tool definitions ---

func buildListProjectsTool() mcpgo.Tool {
	return mcpgo.NewTool("list_projects",
		mcpgo.WithDescription("List all writing projects in the local store, newest first."),
	)
}

func buildGetProjectTool() mcpgo.Tool {
	return mcpgo.NewTool("get_project",
		mcpgo.WithDescription("Get a project by ID, including its chapter list."),
		mcpgo.WithString("id",
			mcpgo.Required(),
			mcpgo.Description("The project ID"),
		),
	)
}

func buildSearchCodexTool() mcpgo.Tool {
	return mcpgo.NewTool("search_codex",
		mcpgo.WithDescription("Search a project's codex entries by name or alias substring."),
		mcpgo.WithString("project_id",
			mcpgo.Required(),
			mcpgo.Description("The project ID"),
		),
		mcpgo.WithString("query",
			mcpgo.Description("Case-insensitive substring to match against names and aliases (empty returns all)"),
		),
		mcpgo.WithString("type",
			mcpgo.Description("Filter by entry type: character, location, concept, or item"),
		),
	)
}

func buildListChaptersTool() mcpgo.Tool {
	return mcpgo.NewTool("list_chapters",
		mcpgo.WithDescription("List a project's chapters with their scene counts."),
		mcpgo.WithString("project_id",
			mcpgo.Required(),
			mcpgo.Description("The project ID"),
		),
	)
}

func buildStatsTool() mcpgo.Tool {
	return mcpgo.NewTool("stats",
		mcpgo.WithDescription("Get store statistics: total projects, codex entries, chapters, scenes."),
	)
}

// --- tool handlers ---

func (s *Server) handleListProjects(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}
	projects, err := s.st.ListProjects(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("listing projects failed: %s", err.Error()), nil
	}
	return toolResultJSON(map[string]any{"projects": projects})
}

func (s *Server) handleGetProject(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}
	id := strings.TrimSpace(req.GetString("id", ""))
	if id == "" {
		return mcpgo.NewToolResultError("id is required and must not be empty"), nil
	}

	project, err := s.st.GetProject(ctx, id)
	if err != nil {
		return mcpgo.NewToolResultErrorf("get project failed: %s", err.Error()), nil
	}
	chapters, err := s.st.QueryChapters(ctx, id)
	if err != nil {
		return mcpgo.NewToolResultErrorf("listing chapters failed: %s", err.Error()), nil
	}
	return toolResultJSON(map[string]any{
		"project":  project,
		"chapters": chapters,
	})
}

func (s *Server) handleSearchCodex(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}
	projectID := strings.TrimSpace(req.GetString("project_id", ""))
	if projectID == "" {
		return mcpgo.NewToolResultError("project_id is required and must not be empty"), nil
	}

	var typ models.CodexType
	if t := req.GetString("type", ""); t != "" {
		candidate := models.CodexType(t)
		if !candidate.IsValid() {
			return mcpgo.NewToolResultErrorf("invalid type %q: must be one of character, location, concept, item", t), nil
		}
		typ = candidate
	}

	entries, err := s.st.QueryCodexEntries(ctx, projectID, typ)
	if err != nil {
		return mcpgo.NewToolResultErrorf("codex query failed: %s", err.Error()), nil
	}

	query := strings.ToLower(strings.TrimSpace(req.GetString("query", "")))
	if query != "" {
		var filtered []models.CodexEntry
		for _, e := range entries {
			if codexMatches(e, query) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	return toolResultJSON(map[string]any{"entries": entries})
}

func (s *Server) handleListChapters(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}
	projectID := strings.TrimSpace(req.GetString("project_id", ""))
	if projectID == "" {
		return mcpgo.NewToolResultError("project_id is required and must not be empty"), nil
	}

	chapters, err := s.st.QueryChapters(ctx, projectID)
	if err != nil {
		return mcpgo.NewToolResultErrorf("listing chapters failed: %s", err.Error()), nil
	}

	type chapterSummary struct {
		models.Chapter
		SceneCount int `json:"scene_count"`
	}
	summaries := make([]chapterSummary, 0, len(chapters))
	for _, c := range chapters {
		summaries = append(summaries, chapterSummary{Chapter: c, SceneCount: len(c.SceneIDs)})
	}
	return toolResultJSON(map[string]any{"chapters": summaries})
}

func (s *Server) handleStats(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.st == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}
	stats, err := s.st.Stats(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("stats failed: %s", err.Error()), nil
	}
	return toolResultJSON(stats)
}

// codexMatches reports whether the entry's name or any alias contains the
// lower-cased query.
func codexMatches(e models.CodexEntry, query string) bool {
	if strings.Contains(strings.ToLower(e.Name), query) {
		return true
	}
	for _, a := range e.Aliases {
		if strings.Contains(strings.ToLower(a), query) {
			return true
		}
	}
	return false
}
