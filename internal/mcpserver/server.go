// Package mcpserver exposes the mind-map operations as MCP tools so an agent
// can read and edit XMind archives over stdio.
//
// Every tool takes the archive path as its "file" argument and runs one
// Store call. Failures are reported as tool errors carrying the error kind,
// not as protocol errors, so the calling model sees what went wrong.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/xmindctl/internal/config"
	"github.com/agentic-research/xmindctl/internal/edit"
	"github.com/agentic-research/xmindctl/internal/errs"
	"github.com/agentic-research/xmindctl/internal/mindmap"
	"github.com/agentic-research/xmindctl/internal/query"
)

// Server wires a Store to an MCP server.
type Server struct {
	store  *mindmap.Store
	logger *slog.Logger
	mcp    *server.MCPServer

	// Background is the color set_background uses when none is given.
	Background string
	// Abs turns a client-supplied path into one the store can open. Nil
	// leaves paths unchanged.
	Abs func(string) (string, error)
}

// New registers every tool on a fresh MCP server.
func New(store *mindmap.Store, version string) *Server {
	s := &Server{
		store:      store,
		logger:     store.Logger,
		mcp:        server.NewMCPServer("xmindctl", version, server.WithToolCapabilities(false)),
		Background: config.DefaultBackground,
	}
	s.register()
	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks serving requests on stdin and stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving mcp on stdio")
	return server.ServeStdio(s.mcp)
}

func fileArg() mcp.ToolOption {
	return mcp.WithString("file", mcp.Required(), mcp.Description("Path of the .xmind archive"))
}

func outputArg() mcp.ToolOption {
	return mcp.WithString("output", mcp.Description("Write the result here instead of overwriting file"))
}

func (s *Server) register() {
	s.mcp.AddTool(mcp.NewTool("list_sheets",
		mcp.WithDescription("List the sheets of an archive with their root topic and background color"),
		fileArg(),
	), s.handleListSheets)

	s.mcp.AddTool(mcp.NewTool("list_topics",
		mcp.WithDescription("List every topic with the path expression that addresses it"),
		fileArg(),
	), s.handleListTopics)

	s.mcp.AddTool(mcp.NewTool("list_entries",
		mcp.WithDescription("List the zip entries of an archive with sizes and digests"),
		fileArg(),
	), s.handleListEntries)

	s.mcp.AddTool(mcp.NewTool("insert_topic",
		mcp.WithDescription("Append a topic under the topic addressed by parent, e.g. sheet[0].rootTopic"),
		fileArg(),
		mcp.WithString("parent", mcp.Required(), mcp.Description("Path expression of the parent topic")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Title of the new topic")),
		mcp.WithString("id", mcp.Description("Explicit id; generated when omitted")),
		outputArg(),
	), s.handleInsertTopic)

	s.mcp.AddTool(mcp.NewTool("insert_topics",
		mcp.WithDescription("Append several topics under one parent. Either all are written or none"),
		fileArg(),
		mcp.WithString("parent", mcp.Required(), mcp.Description("Path expression of the parent topic")),
		mcp.WithArray("titles", mcp.Required(), mcp.WithStringItems(), mcp.Description("Titles, in order")),
		outputArg(),
	), s.handleInsertTopics)

	s.mcp.AddTool(mcp.NewTool("set_background",
		mcp.WithDescription("Set the background fill color of one sheet or of every sheet"),
		fileArg(),
		mcp.WithString("color", mcp.Description("Color as #RRGGBBAA")),
		mcp.WithNumber("sheet", mcp.Description("Sheet index, default 0")),
		mcp.WithBoolean("all", mcp.Description("Apply to every sheet")),
		outputArg(),
	), s.handleSetBackground)

	s.mcp.AddTool(mcp.NewTool("create",
		mcp.WithDescription("Create a new archive from the built-in blank map or a template"),
		mcp.WithString("output", mcp.Required(), mcp.Description("Path of the archive to write")),
		mcp.WithString("template", mcp.Description("Archive to start from")),
		mcp.WithString("sheet_title", mcp.Description("Title of the first sheet")),
		mcp.WithString("root_title", mcp.Description("Title of the first root topic")),
	), s.handleCreate)

	s.mcp.AddTool(mcp.NewTool("query",
		mcp.WithDescription("Evaluate a JSONPath selector against content.json"),
		fileArg(),
		mcp.WithString("jsonpath", mcp.Required(), mcp.Description("Selector, e.g. $..title")),
	), s.handleQuery)

	s.mcp.AddTool(mcp.NewTool("find",
		mcp.WithDescription(`Find topics matching a boolean expression, e.g. depth == 1 && title contains "Q4"`),
		fileArg(),
		mcp.WithString("where", mcp.Required(), mcp.Description("Expression over title, id, depth, path, sheet, parent, labels, ...")),
	), s.handleFind)
}

// path reads a required path argument and applies Abs.
func (s *Server) path(req mcp.CallToolRequest, key string) (string, error) {
	p, err := req.RequireString(key)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidInput, "arguments", "", err)
	}
	return s.abs(p)
}

func (s *Server) abs(p string) (string, error) {
	if p == "" || s.Abs == nil {
		return p, nil
	}
	out, err := s.Abs(p)
	if err != nil {
		return "", errs.Wrap(errs.KindInvalidInput, "arguments", p, err)
	}
	return out, nil
}

func (s *Server) handleListSheets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := s.path(req, "file")
	if err != nil {
		return s.fail("list_sheets", err), nil
	}
	sheets, err := s.store.ListSheets(file)
	if err != nil {
		return s.fail("list_sheets", err), nil
	}
	return s.jsonResult("list_sheets", sheets), nil
}

func (s *Server) handleListTopics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := s.path(req, "file")
	if err != nil {
		return s.fail("list_topics", err), nil
	}
	topics, err := s.store.ListTopics(file)
	if err != nil {
		return s.fail("list_topics", err), nil
	}
	return s.jsonResult("list_topics", topics), nil
}

func (s *Server) handleListEntries(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := s.path(req, "file")
	if err != nil {
		return s.fail("list_entries", err), nil
	}
	entries, err := s.store.Entries(file)
	if err != nil {
		return s.fail("list_entries", err), nil
	}
	return s.jsonResult("list_entries", entries), nil
}

func (s *Server) handleInsertTopic(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := s.path(req, "file")
	if err != nil {
		return s.fail("insert_topic", err), nil
	}
	parent, err := req.RequireString("parent")
	if err != nil {
		return s.fail("insert_topic", errs.Wrap(errs.KindInvalidInput, "arguments", "", err)), nil
	}
	title, err := req.RequireString("title")
	if err != nil {
		return s.fail("insert_topic", errs.Wrap(errs.KindInvalidInput, "arguments", "", err)), nil
	}
	output, err := s.abs(req.GetString("output", ""))
	if err != nil {
		return s.fail("insert_topic", err), nil
	}

	t, err := s.store.InsertTopic(file, output, parent, title, req.GetString("id", ""))
	if err != nil {
		return s.fail("insert_topic", err), nil
	}
	return s.jsonResult("insert_topic", map[string]string{"id": t.ID, "title": t.Title}), nil
}

func (s *Server) handleInsertTopics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := s.path(req, "file")
	if err != nil {
		return s.fail("insert_topics", err), nil
	}
	parent, err := req.RequireString("parent")
	if err != nil {
		return s.fail("insert_topics", errs.Wrap(errs.KindInvalidInput, "arguments", "", err)), nil
	}
	titles := req.GetStringSlice("titles", nil)
	output, err := s.abs(req.GetString("output", ""))
	if err != nil {
		return s.fail("insert_topics", err), nil
	}

	created, err := s.store.InsertTopics(file, output, parent, edit.Titles(titles...))
	if err != nil {
		return s.fail("insert_topics", err), nil
	}
	out := make([]map[string]string, len(created))
	for i, t := range created {
		out[i] = map[string]string{"id": t.ID, "title": t.Title}
	}
	return s.jsonResult("insert_topics", out), nil
}

func (s *Server) handleSetBackground(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := s.path(req, "file")
	if err != nil {
		return s.fail("set_background", err), nil
	}
	output, err := s.abs(req.GetString("output", ""))
	if err != nil {
		return s.fail("set_background", err), nil
	}
	color := req.GetString("color", s.Background)

	if req.GetBool("all", false) {
		n, err := s.store.SetAllBackgrounds(file, output, color)
		if err != nil {
			return s.fail("set_background", err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("set background %s on %d sheets", color, n)), nil
	}

	sheet := req.GetInt("sheet", 0)
	if err := s.store.SetBackground(file, output, sheet, color); err != nil {
		return s.fail("set_background", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("set background %s on sheet %d", color, sheet)), nil
}

func (s *Server) handleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	output, err := s.path(req, "output")
	if err != nil {
		return s.fail("create", err), nil
	}
	tmpl, err := s.abs(req.GetString("template", ""))
	if err != nil {
		return s.fail("create", err), nil
	}
	opts := mindmap.CreateOptions{
		Template:   tmpl,
		SheetTitle: req.GetString("sheet_title", ""),
		RootTitle:  req.GetString("root_title", ""),
	}
	if err := s.store.Create(output, opts); err != nil {
		return s.fail("create", err), nil
	}
	return mcp.NewToolResultText("created " + output), nil
}

func (s *Server) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := s.path(req, "file")
	if err != nil {
		return s.fail("query", err), nil
	}
	selector, err := req.RequireString("jsonpath")
	if err != nil {
		return s.fail("query", errs.Wrap(errs.KindInvalidInput, "arguments", "", err)), nil
	}
	doc, err := s.store.Read(file)
	if err != nil {
		return s.fail("query", err), nil
	}
	values, err := query.JSONPath(doc, selector)
	if err != nil {
		return s.fail("query", err), nil
	}
	return s.jsonResult("query", values), nil
}

func (s *Server) handleFind(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := s.path(req, "file")
	if err != nil {
		return s.fail("find", err), nil
	}
	where, err := req.RequireString("where")
	if err != nil {
		return s.fail("find", errs.Wrap(errs.KindInvalidInput, "arguments", "", err)), nil
	}
	doc, err := s.store.Read(file)
	if err != nil {
		return s.fail("find", err), nil
	}
	matches, err := query.Find(doc, where)
	if err != nil {
		return s.fail("find", err), nil
	}
	if matches == nil {
		matches = []query.Match{}
	}
	return s.jsonResult("find", matches), nil
}

func (s *Server) jsonResult(tool string, v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return s.fail(tool, fmt.Errorf("encode result: %w", err))
	}
	return mcp.NewToolResultText(string(data))
}

func (s *Server) fail(tool string, err error) *mcp.CallToolResult {
	kind := errs.KindOf(err)
	s.logger.Warn("tool failed", "tool", tool, "kind", kind.String(), "error", err)
	if kind == errs.KindUnknown {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", kind, err))
}
