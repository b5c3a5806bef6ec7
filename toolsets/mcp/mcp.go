// Package mcp provides a Toolset that proxies tool calls to an external MCP
// (Model Context Protocol) server over stdio, grounded on
// github.com/mark3labs/mcp-go. The connection is established eagerly at
// Factory time and torn down in Cleanup, consistent with the toolset
// isolation invariant: one connection per CallScope.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/relayforge/workerflow/runtime/agent/toolset"
)

// Name is the toolset's registration name in a project manifest.
const Name = "mcp"

// Config is the declaration-time configuration for an MCP toolset instance,
// bound when NewFactory is called; toolset.FactoryContext.Args is not read.
type Config struct {
	Command string
	Args    []string
	Env     map[string]string
	// Filter limits which remote tools are exposed; empty means all.
	Filter []string
}

// Toolset proxies tool calls to a connected MCP server.
type Toolset struct {
	client *mcpclient.Client
	tools  []mcp.Tool
	filter map[string]bool
}

// NewFactory returns a toolset.Factory bound to cfg, for registration in a
// project's toolset registry under a chosen name.
func NewFactory(cfg Config) toolset.Factory {
	return func(ctx context.Context, fc toolset.FactoryContext) (toolset.Toolset, error) {
		if cfg.Command == "" {
			return nil, fmt.Errorf("mcp: command is required")
		}
		env := make([]string, 0, len(cfg.Env))
		for k, v := range cfg.Env {
			env = append(env, fmt.Sprintf("%s=%s", k, v))
		}
		c, err := mcpclient.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
		if err != nil {
			return nil, fmt.Errorf("mcp: starting server: %w", err)
		}
		if err := c.Start(ctx); err != nil {
			return nil, fmt.Errorf("mcp: starting client: %w", err)
		}
		initReq := mcp.InitializeRequest{}
		initReq.Params.ClientInfo = mcp.Implementation{Name: "workerflow", Version: "1"}
		initReq.Params.ProtocolVersion = "2024-11-05"
		if _, err := c.Initialize(ctx, initReq); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("mcp: initializing: %w", err)
		}
		listResp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("mcp: listing tools: %w", err)
		}
		var filter map[string]bool
		if len(cfg.Filter) > 0 {
			filter = make(map[string]bool, len(cfg.Filter))
			for _, name := range cfg.Filter {
				filter[name] = true
			}
		}
		return &Toolset{client: c, tools: listResp.Tools, filter: filter}, nil
	}
}

// Tools implements toolset.Toolset, translating each remote MCP tool
// listing into a toolset.Tool.
func (t *Toolset) Tools() []toolset.Tool {
	out := make([]toolset.Tool, 0, len(t.tools))
	for _, remote := range t.tools {
		if t.filter != nil && !t.filter[remote.Name] {
			continue
		}
		name := remote.Name
		out = append(out, toolset.Tool{
			Name:        name,
			Description: remote.Description,
			InputSchema: remote.InputSchema,
			Call: func(ctx context.Context, args json.RawMessage) (string, error) {
				return t.call(ctx, name, args)
			},
		})
	}
	return out
}

func (t *Toolset) call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	var decoded map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &decoded); err != nil {
			return "", fmt.Errorf("mcp: decoding args for %q: %w", name, err)
		}
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = decoded
	resp, err := t.client.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("mcp: calling %q: %w", name, err)
	}
	var out string
	for _, c := range resp.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			out += tc.Text
		}
	}
	if resp.IsError {
		return out, fmt.Errorf("mcp: tool %q reported an error: %s", name, out)
	}
	return out, nil
}

// Cleanup implements toolset.Toolset, closing the MCP connection.
func (t *Toolset) Cleanup(context.Context) error {
	return t.client.Close()
}
