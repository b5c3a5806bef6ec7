// Package toolset defines the runtime Toolset/Tool contract: the named
// container of callable tools a CallScope instantiates per call and tears
// down on close (spec data model entity "Toolset").
package toolset

import (
	"context"
	"encoding/json"

	"github.com/relayforge/workerflow/runtime/agent/approval"
)

// Tool is a single callable unit exposed by a Toolset.
type Tool struct {
	// Name is the tool identifier as seen by the LLM, unique within the
	// wrapped toolsets of one CallScope.
	Name string
	// Description is shown to the model to decide when to call the tool.
	Description string
	// InputSchema is the JSON Schema for the tool's argument payload.
	InputSchema any
	// Call invokes the tool with the raw JSON argument payload and returns
	// the raw JSON (or text) result.
	Call func(ctx context.Context, args json.RawMessage) (string, error)
}

// Config is the per-tool policy attribute a Toolset can declare statically,
// equivalent to the spec's `__approval_config__` mapping.
type Config = approval.ToolConfig

// Toolset is a named container of tools with optional lifecycle and
// approval metadata. No Toolset instance is ever shared across CallScopes
// (spec invariant: toolset isolation).
type Toolset interface {
	// Tools returns the callable tools this instance exposes.
	Tools() []Tool
	// Cleanup releases resources held by the instance. Called exactly once
	// per CallScope close, in LIFO instantiation order.
	Cleanup(ctx context.Context) error
}

// ApprovalConfigurable is implemented by toolsets that declare static
// per-tool approval attributes.
type ApprovalConfigurable interface {
	ApprovalConfig() map[string]Config
}

// NeedsApprovalHooker is implemented by toolsets that want to override
// approval resolution dynamically for a specific call.
type NeedsApprovalHooker interface {
	NeedsApproval(ctx context.Context, toolName string, args json.RawMessage) (*approval.Decision, error)
}

// Factory constructs a Toolset instance from declaration-time arguments and
// runtime-provided context (project root, invocation name, depth). Factories
// are registered by name in the manifest's toolset registry; Spec invokes a
// fresh instance per CallScope.
type Factory func(ctx context.Context, rc FactoryContext) (Toolset, error)

// FactoryContext carries the runtime-provided context a Factory may need in
// addition to its own declared constructor arguments.
type FactoryContext struct {
	ProjectRoot    string
	InvocationName string
	Depth          int
	Args           map[string]any
	// Runtime carries the callscope.RuntimeView building this toolset, typed
	// as any so this package need not import callscope. Factories that need
	// to spawn child scopes (worker-as-tool bridges) type-assert it.
	Runtime any
}

// BaseToolset is an embeddable helper providing a no-op Cleanup for
// toolsets without external resources to release.
type BaseToolset struct{}

// Cleanup is a no-op.
func (BaseToolset) Cleanup(context.Context) error { return nil }
