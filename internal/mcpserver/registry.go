package mcpserver

import (
	"context"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool is an MCP tool together with its handler.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// Registry manages the available tools
type Registry struct {
	tools map[string]Tool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool; a later tool with the same name replaces the earlier.
func (r *Registry) Register(t Tool) {
	r.tools[t.Definition().Name] = t
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return t, nil
}

// List returns the tools sorted by name.
func (r *Registry) List() []Tool {
	ts := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		ts = append(ts, t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Definition().Name < ts[j].Definition().Name })
	return ts
}

// Call runs the tool named in req.
func (r *Registry) Call(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, err := r.Get(req.Params.Name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return t.Handle(ctx, req)
}

// Attach adds every registered tool to s, dispatching calls through Call.
func (r *Registry) Attach(s *server.MCPServer) {
	for _, t := range r.List() {
		s.AddTool(t.Definition(), r.Call)
	}
}
