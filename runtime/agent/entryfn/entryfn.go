// Package entryfn implements the pure-code entry variant (spec "EntryFunction"):
// a callable invoked inside a CallScope with no LLM model required, backed by
// a compiled extension plugin in place of a Python `@entry` function (see
// SPEC_FULL.md domain stack, extload).
package entryfn

import (
	"context"

	"github.com/relayforge/workerflow/runtime/agent/worker"
)

// CallRuntime is the deps facade an EntryFunction body receives: it can
// dispatch tool calls without holding a reference to the enclosing
// CallScope's toolset instances directly.
type CallRuntime interface {
	CallTool(ctx context.Context, name string, args any) (string, error)
}

// Func is the body of an EntryFunction: `(args, runtime) -> (result, error)`.
type Func func(ctx context.Context, args worker.Args, rt CallRuntime) (any, error)

// EntryFunction is a registered Python-surface `@entry` equivalent: module
// lifetime, invoked inside a fresh CallScope per call (spec "EntryFunction").
type EntryFunction struct {
	name        string
	fn          Func
	toolsets    []worker.ToolsetSpec
	description string
	schemaIn    func() worker.Args
}

// New constructs an EntryFunction. schemaIn defaults to worker.DefaultArgs
// when nil, matching the CLI-boundary default.
func New(name string, fn Func, toolsets []worker.ToolsetSpec, schemaIn func() worker.Args) *EntryFunction {
	if schemaIn == nil {
		schemaIn = func() worker.Args { return worker.DefaultArgs{} }
	}
	return &EntryFunction{name: name, fn: fn, toolsets: toolsets, schemaIn: schemaIn}
}

// Name returns the function's registered name.
func (e *EntryFunction) Name() string { return e.name }

// ToolsetSpecs returns the toolsets this function declared at registration.
func (e *EntryFunction) ToolsetSpecs() []worker.ToolsetSpec { return e.toolsets }

// Description returns an optional human-readable description.
func (e *EntryFunction) Description() string { return e.description }

// WithDescription sets the description and returns e for chaining.
func (e *EntryFunction) WithDescription(d string) *EntryFunction {
	e.description = d
	return e
}

// NewArgs constructs a zero-value Args instance matching this function's
// declared input schema.
func (e *EntryFunction) NewArgs() worker.Args { return e.schemaIn() }

// Invoke runs the function body against validated args and a CallRuntime.
func (e *EntryFunction) Invoke(ctx context.Context, args worker.Args, rt CallRuntime) (any, error) {
	return e.fn(ctx, args, rt)
}
