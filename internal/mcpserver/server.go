// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Jotter tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/notebook"
	"github.com/starford/jotter/internal/noteservice"
)

const formatURI = "jotter://partition-format"

// Server wraps the MCP server with Jotter tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all Jotter tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Jotter",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("query_notes",
		mcp.WithDescription("List loaded notes in ascending time order, optionally limited to a day range and to notes carrying any of the given tags."),
		mcp.WithString("from", mcp.Description("First day, YYYY-MM-DD (inclusive)")),
		mcp.WithString("to", mcp.Description("Last day, YYYY-MM-DD (inclusive)")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Match notes with at least one of these tags")),
	), s.queryNotes)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note. Text must not contain TAB or newline characters; "+
			"read the format via get_format_contract or the "+formatURI+" resource."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Note text")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Tags without spaces")),
		mcp.WithString("timestamp", mcp.Description("RFC 3339 timestamp; defaults to now")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("update_note",
		mcp.WithDescription("Change a note's text and/or tags. Blank text deletes the note."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note ID")),
		mcp.WithString("text", mcp.Description("New text")),
		mcp.WithArray("tags", mcp.WithStringItems(), mcp.Description("Replacement tag list")),
	), s.updateNote)

	s.mcp.AddTool(mcp.NewTool("delete_note",
		mcp.WithDescription("Delete a note. The file changes on the next save."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Note ID")),
	), s.deleteNote)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List the tags in use with their note counts."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through saved partition files."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Max results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("save_notebook",
		mcp.WithDescription("Write every changed day file to disk."),
	), s.saveNotebook)

	s.mcp.AddTool(mcp.NewTool("load_all_notes",
		mcp.WithDescription("Load every partition file, not just today's."),
	), s.loadAllNotes)

	s.mcp.AddTool(mcp.NewTool("get_format_contract",
		mcp.WithDescription("Returns the Jotter partition format and editing rules. "+
			"Call this before creating or updating notes."),
	), s.getFormatContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Partition Format Contract",
			mcp.WithResourceDescription("On-disk note format and editing rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func noteID(req mcp.CallToolRequest) (models.NoteID, error) {
	id := req.GetInt("id", 0)
	if id <= 0 {
		return 0, fmt.Errorf("id must be a positive integer")
	}
	return models.NoteID(id), nil
}

func hasArg(req mcp.CallToolRequest, key string) bool {
	_, ok := req.GetArguments()[key]
	return ok
}

func (s *Server) queryNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var q notebook.Query
	var err error
	if from := req.GetString("from", ""); from != "" {
		if q.From, err = civil.ParseDate(from); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid from: %v", err)), nil
		}
	}
	if to := req.GetString("to", ""); to != "" {
		if q.To, err = civil.ParseDate(to); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid to: %v", err)), nil
		}
	}
	if hasArg(req, "tags") {
		q.Tags = req.GetStringSlice("tags", []string{})
	}
	return jsonResult(s.svc.Query(ctx, q))
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	in := noteservice.CreateInput{Text: text, Tags: req.GetStringSlice("tags", nil)}
	if raw := req.GetString("timestamp", ""); raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid timestamp: %v", err)), nil
		}
		in.Timestamp = &ts
	}
	n, err := s.svc.Create(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n)
}

func (s *Server) updateNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := noteID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var in noteservice.UpdateInput
	if hasArg(req, "text") {
		text := req.GetString("text", "")
		in.Text = &text
	}
	if hasArg(req, "tags") {
		tags := req.GetStringSlice("tags", []string{})
		in.Tags = &tags
	}
	if in.Text == nil && in.Tags == nil {
		return mcp.NewToolResultError("text or tags is required"), nil
	}
	n, discarded, err := s.svc.Update(ctx, id, in)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if discarded {
		return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", id)), nil
	}
	return jsonResult(n)
}

func (s *Server) deleteNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := noteID(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", id)), nil
}

func (s *Server) listTags(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Tags(ctx))
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) saveNotebook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	files, err := s.svc.Save(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(files) == 0 {
		return mcp.NewToolResultText("nothing to save"), nil
	}
	return jsonResult(map[string][]string{"files": files})
}

func (s *Server) loadAllNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.svc.LoadAll(ctx); err != nil {
		// Files that parsed are loaded; report the rest.
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(s.svc.Info(ctx))
}

func (s *Server) getFormatContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PartitionFormatContract), nil
}

func (s *Server) readFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     PartitionFormatContract,
		},
	}, nil
}
