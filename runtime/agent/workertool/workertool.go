// Package workertool implements the worker-as-tool bridge (spec component
// C7): exposing an in-scope worker as a callable tool whose JSON schema is
// derived from the worker's WorkerArgs, dispatched by spawning a child
// CallScope at the calling scope's depth + 1.
package workertool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relayforge/workerflow/runtime/agent/callscope"
	"github.com/relayforge/workerflow/runtime/agent/rerr"
	"github.com/relayforge/workerflow/runtime/agent/toolerrors"
	"github.com/relayforge/workerflow/runtime/agent/toolset"
	"github.com/relayforge/workerflow/runtime/agent/worker"
)

// Bridge wraps a resolved Worker as a toolset.Toolset exposing exactly one
// tool named after the worker. Self-reference (a worker bridging itself) is
// allowed and bounded only by the depth check in callscope.Start.
type Bridge struct {
	toolset.BaseToolset
	w          *worker.Worker
	schema     any
	rt         callscope.RuntimeView
	parentDepth int
}

// Tools implements toolset.Toolset.
func (b *Bridge) Tools() []toolset.Tool {
	return []toolset.Tool{{
		Name:        b.w.Name(),
		Description: b.w.Description(),
		InputSchema: b.schema,
		Call:        b.call,
	}}
}

func (b *Bridge) call(ctx context.Context, args json.RawMessage) (string, error) {
	decoded, err := worker.DecodeArgs(b.w.NewArgs(), args)
	if err != nil {
		return "", rerr.FromError(rerr.InputValidation, fmt.Sprintf("decoding args for worker tool %q", b.w.Name()), err)
	}

	child, err := callscope.Start(ctx, b.rt, callscope.WorkerEntry{W: b.w}, b.parentDepth+1, b.w.Name(), nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = child.Close(ctx) }()

	result, err := child.RunTurn(ctx, decoded)
	if err != nil {
		return "", toolerrors.NewWithCause(fmt.Sprintf("worker %q failed", b.w.Name()), err)
	}
	return stringify(result), nil
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// Factory adapts w as a toolset.Factory suitable for registration under the
// worker's own name in the project's toolset registry. schema is the JSON
// Schema derived from w's WorkerArgs.
func Factory(w *worker.Worker, schema any) toolset.Factory {
	return func(ctx context.Context, fc toolset.FactoryContext) (toolset.Toolset, error) {
		rt, ok := fc.Runtime.(callscope.RuntimeView)
		if !ok {
			return nil, rerr.New(rerr.ManifestInvalid, "worker-as-tool factory invoked without a RuntimeView")
		}
		return &Bridge{w: w, schema: schema, rt: rt, parentDepth: fc.Depth}, nil
	}
}
