// Package extload loads the compiled extension plugins named by a
// manifest's `python_files` entries (SPEC_FULL.md domain stack): since the
// runtime is Go, each entry names a plugin binary speaking the
// github.com/hashicorp/go-plugin RPC protocol instead of an importable
// Python module, exposing toolset factories and @entry-equivalent functions
// over a small handshake.
package extload

import (
	"context"
	"encoding/json"
	"fmt"
	"net/rpc"
	"os/exec"

	"github.com/hashicorp/go-plugin"

	"github.com/relayforge/workerflow/runtime/agent/entryfn"
	"github.com/relayforge/workerflow/runtime/agent/toolset"
	"github.com/relayforge/workerflow/runtime/agent/worker"
)

// Handshake identifies the plugin protocol version and magic cookie every
// extension binary must present, following the pattern go-plugin requires.
var Handshake = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "WORKERFLOW_EXT_PLUGIN",
	MagicCookieValue: "on",
}

// Discovered is the set of toolset factories and entry functions a single
// plugin process exposed.
type Discovered struct {
	Toolsets map[string]toolset.Factory
	Entries  map[string]*entryfn.EntryFunction
}

// ExtensionRPC is the RPC surface an extension plugin binary implements:
// ListSurface enumerates the toolsets and entry functions it provides, and
// InvokeTool/InvokeEntry dispatch calls into the plugin process.
type ExtensionRPC interface {
	ListSurface() (Surface, error)
	InvokeTool(req ToolInvocation) (string, error)
	InvokeEntry(req EntryInvocation) (string, error)
}

// Surface describes the names a plugin exposes, without transferring any
// callable values across the RPC boundary.
type Surface struct {
	ToolsetNames []string
	ToolNames    map[string][]string // toolset name -> tool names
	EntryNames   []string
}

// ToolInvocation is one tool call forwarded to a plugin process.
type ToolInvocation struct {
	Toolset string
	Tool    string
	Args    []byte
}

// EntryInvocation is one entry-function call forwarded to a plugin process.
type EntryInvocation struct {
	Entry string
	Args  []byte
}

// Load launches the plugin binary at path, queries its Surface, and adapts
// every discovered toolset/entry into the in-process types the linker
// consumes. The client connection is kept open for the process lifetime
// (plugin.Client is reference-counted by hashicorp/go-plugin internally);
// Close should be called at process shutdown in a complete harness.
func Load(path string) (*Discovered, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: Handshake,
		Plugins:         map[string]plugin.Plugin{"extension": &rpcPlugin{}},
		Cmd:             exec.Command(path),
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolNetRPC},
	})
	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("extload: starting plugin %q: %w", path, err)
	}
	raw, err := rpcClient.Dispense("extension")
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("extload: dispensing extension interface: %w", err)
	}
	ext, ok := raw.(ExtensionRPC)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("extload: plugin %q does not implement ExtensionRPC", path)
	}

	surface, err := ext.ListSurface()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("extload: listing plugin surface: %w", err)
	}

	d := &Discovered{Toolsets: make(map[string]toolset.Factory), Entries: make(map[string]*entryfn.EntryFunction)}
	for _, tsName := range surface.ToolsetNames {
		d.Toolsets[tsName] = makeToolsetFactory(ext, tsName, surface.ToolNames[tsName])
	}
	for _, entryName := range surface.EntryNames {
		name := entryName
		fn := entryfn.New(name, func(ctx context.Context, args worker.Args, rt entryfn.CallRuntime) (any, error) {
			payload, err := encodeArgs(args)
			if err != nil {
				return nil, err
			}
			return ext.InvokeEntry(EntryInvocation{Entry: name, Args: payload})
		}, nil, nil)
		d.Entries[name] = fn
	}
	return d, nil
}

func makeToolsetFactory(ext ExtensionRPC, toolsetName string, toolNames []string) toolset.Factory {
	return func(ctx context.Context, fc toolset.FactoryContext) (toolset.Toolset, error) {
		return &pluginToolset{ext: ext, name: toolsetName, toolNames: toolNames}, nil
	}
}

type pluginToolset struct {
	toolset.BaseToolset
	ext       ExtensionRPC
	name      string
	toolNames []string
}

func (p *pluginToolset) Tools() []toolset.Tool {
	tools := make([]toolset.Tool, 0, len(p.toolNames))
	for _, name := range p.toolNames {
		toolName := name
		tools = append(tools, toolset.Tool{
			Name: toolName,
			Call: func(ctx context.Context, args json.RawMessage) (string, error) {
				return p.ext.InvokeTool(ToolInvocation{Toolset: p.name, Tool: toolName, Args: args})
			},
		})
	}
	return tools
}

func encodeArgs(args worker.Args) ([]byte, error) {
	spec := args.PromptSpec()
	return []byte(spec.Text), nil
}

// rpcPlugin adapts ExtensionRPC to hashicorp/go-plugin's net/rpc transport.
type rpcPlugin struct {
	Impl ExtensionRPC
}

func (p *rpcPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &rpcServer{impl: p.Impl}, nil
}

func (p *rpcPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &rpcClientAdapter{client: c}, nil
}

type rpcServer struct{ impl ExtensionRPC }

func (s *rpcServer) ListSurface(_ struct{}, resp *Surface) error {
	out, err := s.impl.ListSurface()
	if err != nil {
		return err
	}
	*resp = out
	return nil
}

func (s *rpcServer) InvokeTool(req ToolInvocation, resp *string) error {
	out, err := s.impl.InvokeTool(req)
	*resp = out
	return err
}

func (s *rpcServer) InvokeEntry(req EntryInvocation, resp *string) error {
	out, err := s.impl.InvokeEntry(req)
	*resp = out
	return err
}

type rpcClientAdapter struct{ client *rpc.Client }

func (c *rpcClientAdapter) ListSurface() (Surface, error) {
	var resp Surface
	err := c.client.Call("Plugin.ListSurface", struct{}{}, &resp)
	return resp, err
}

func (c *rpcClientAdapter) InvokeTool(req ToolInvocation) (string, error) {
	var resp string
	err := c.client.Call("Plugin.InvokeTool", req, &resp)
	return resp, err
}

func (c *rpcClientAdapter) InvokeEntry(req EntryInvocation) (string, error) {
	var resp string
	err := c.client.Call("Plugin.InvokeEntry", req, &resp)
	return resp, err
}
