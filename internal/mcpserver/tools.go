// Package mcpserver exposes one assistant session as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/ecofarmcast-go/internal/assistant"
	"github.com/comigor/ecofarmcast-go/internal/gateway"
	"github.com/comigor/ecofarmcast-go/internal/logger"
)

const serverName = "ecofarmcast"

type toolFunc struct {
	def    mcp.Tool
	handle server.ToolHandlerFunc
}

func (t toolFunc) Definition() mcp.Tool { return t.def }

func (t toolFunc) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	logger.L.Debug("mcp tool call", "tool", t.def.Name)
	return t.handle(ctx, req)
}

// Tools returns the registry of assistant tools bound to sess.
func Tools(sess *assistant.Session) *Registry {
	r := NewRegistry()

	r.Register(toolFunc{
		def: mcp.NewTool("set_page_context",
			mcp.WithDescription("Attach the assistant to an app page. Replaces any previous page context."),
			mcp.WithString("page_name", mcp.Required(), mcp.Description("Page name, one of: "+strings.Join(sess.Pages(), ", "))),
			mcp.WithObject("page_data", mcp.Description("Data currently shown on the page")),
		),
		handle: func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			name, err := req.RequireString("page_name")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			var data json.RawMessage
			if v, ok := req.GetArguments()["page_data"]; ok && v != nil {
				if data, err = json.Marshal(v); err != nil {
					return mcp.NewToolResultError("page_data is not valid JSON"), nil
				}
			}
			sess.SetPageContext(name, data)
			return mcp.NewToolResultText(sess.Prompt()), nil
		},
	})

	r.Register(toolFunc{
		def: mcp.NewTool("ask",
			mcp.WithDescription("Ask the farm assistant a question about the current page."),
			mcp.WithString("text", mcp.Required(), mcp.Description("The question")),
			mcp.WithNumber("temperature", mcp.Description("Sampling temperature; omit for the default")),
		),
		handle: func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			text := req.GetString("text", "")
			opts := gateway.Options{Temperature: float32(req.GetFloat("temperature", 0))}
			m := sess.Send(ctx, text, opts)
			if m.IsError {
				return mcp.NewToolResultError(m.Text), nil
			}
			return jsonResult(m)
		},
	})

	r.Register(toolFunc{
		def: mcp.NewTool("get_transcript",
			mcp.WithDescription("Return the chat transcript, oldest message first."),
		),
		handle: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return jsonResult(sess.Messages())
		},
	})

	r.Register(toolFunc{
		def: mcp.NewTool("clear_transcript",
			mcp.WithDescription("Remove every message from the chat transcript."),
		),
		handle: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			sess.Clear()
			return mcp.NewToolResultText("transcript cleared"), nil
		},
	})

	r.Register(toolFunc{
		def: mcp.NewTool("get_suggestions",
			mcp.WithDescription("Return the suggested questions for the current page."),
		),
		handle: func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText(strings.Join(sess.Suggestions(), "\n")), nil
		},
	})

	return r
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(b)), nil
}

// NewServer builds the MCP server for sess.
func NewServer(sess *assistant.Session, version string) *server.MCPServer {
	s := server.NewMCPServer(serverName, version, server.WithToolCapabilities(false))
	Tools(sess).Attach(s)
	return s
}

// Serve speaks MCP over in/out until ctx is cancelled or in is closed.
func Serve(ctx context.Context, sess *assistant.Session, version string, in io.Reader, out io.Writer) error {
	logger.L.Info("starting mcp stdio server", "session", sess.ID())
	return server.NewStdioServer(NewServer(sess, version)).Listen(ctx, in, out)
}
