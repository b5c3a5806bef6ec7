// Package toolplane implements the shared tool-plane builder (spec component
// C6): a single routine entries and CallScopes use to instantiate toolsets,
// wrap them with approval gating, dispatch calls, and attribute events.
package toolplane

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/relayforge/workerflow/runtime/agent/approval"
	"github.com/relayforge/workerflow/runtime/agent/events"
	"github.com/relayforge/workerflow/runtime/agent/rerr"
	"github.com/relayforge/workerflow/runtime/agent/toolset"
)

// Spec names one toolset to instantiate: the factory to call, plus the
// declared constructor arguments.
type Spec struct {
	Name    string
	Factory toolset.Factory
	Args    map[string]any
}

// Plane is the set of wrapped toolsets instantiated for one CallScope,
// plus the dispatch and cleanup routines the scope drives.
type Plane struct {
	invocationName string
	depth          int
	policy         *approval.Policy
	bus            events.Bus
	seqNo          *uint64 // shared per-Runtime counter
	callSeq        uint64  // per-scope counter

	instances []toolset.Toolset // in instantiation order, for LIFO cleanup
	byName    map[string]boundTool
}

type boundTool struct {
	tool   toolset.Tool
	ts     toolset.Toolset
	cfg    toolset.Config
	hasCfg bool
}

// Build instantiates every Spec in order, wraps each with approval gating,
// and returns a ready Plane. On any instantiation error, toolsets already
// built are cleaned up in reverse order before the error is returned.
func Build(
	ctx context.Context,
	specs []Spec,
	fc toolset.FactoryContext,
	policy *approval.Policy,
	bus events.Bus,
	seqNo *uint64,
) (*Plane, error) {
	p := &Plane{
		invocationName: fc.InvocationName,
		depth:          fc.Depth,
		policy:         policy,
		bus:            bus,
		seqNo:          seqNo,
		byName:         make(map[string]boundTool),
	}
	for _, spec := range specs {
		ts, err := spec.Factory(ctx, fc)
		if err != nil {
			p.closeAll(ctx)
			return nil, rerr.FromError(rerr.ManifestInvalid, fmt.Sprintf("instantiating toolset %q", spec.Name), err)
		}
		p.instances = append(p.instances, ts)
		var cfg map[string]toolset.Config
		if ac, ok := ts.(toolset.ApprovalConfigurable); ok {
			cfg = ac.ApprovalConfig()
		}
		for _, t := range ts.Tools() {
			c, hasCfg := cfg[t.Name]
			if _, dup := p.byName[t.Name]; dup {
				p.closeAll(ctx)
				return nil, rerr.New(rerr.ManifestInvalid, fmt.Sprintf("duplicate tool name %q across toolsets", t.Name))
			}
			p.byName[t.Name] = boundTool{tool: t, ts: ts, cfg: c, hasCfg: hasCfg}
		}
	}
	return p, nil
}

// ToolDefinitions returns the (name, description, schema) triples suitable
// for handing to an LLM Agent as available tools.
func (p *Plane) ToolDefinitions() []toolset.Tool {
	defs := make([]toolset.Tool, 0, len(p.byName))
	for _, bt := range p.byName {
		defs = append(defs, bt.tool)
	}
	return defs
}

// Call dispatches one tool call: resolves approval per the precedence in
// spec §4.5, then invokes the tool, emitting ToolCallEvent/ToolResultEvent
// attributed to p.invocationName/p.depth.
func (p *Plane) Call(ctx context.Context, toolName string, args json.RawMessage) (string, error) {
	bt, ok := p.byName[toolName]
	if !ok {
		return "", rerr.New(rerr.ToolNotFound, fmt.Sprintf("tool %q not found", toolName))
	}

	var argVal any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argVal); err != nil {
			return "", rerr.FromError(rerr.InputValidation, "decoding tool arguments", err)
		}
	}

	var hook approval.NeedsApprovalHook
	if h, ok := bt.ts.(toolset.NeedsApprovalHooker); ok {
		hook = func(ctx context.Context, toolName string, args any) (*approval.Decision, error) {
			return h.NeedsApproval(ctx, toolName, mustJSON(args))
		}
	}

	callID := p.nextCallID()
	attr := p.attribution()
	p.publish(ctx, events.NewToolCallEvent(attr, toolName, callID, string(args)))
	start := time.Now()

	decision, err := p.policy.Resolve(ctx, toolName, argVal, bt.cfg, hook)
	if err != nil {
		p.publish(ctx, events.NewToolResultEvent(p.attribution(), toolName, callID, err.Error(), time.Since(start).Milliseconds(), true))
		return "", err
	}
	if err := approval.EnforceDecision(decision, toolName); err != nil {
		p.publish(ctx, events.NewToolResultEvent(p.attribution(), toolName, callID, err.Error(), time.Since(start).Milliseconds(), true))
		if p.policy.ReturnPermissionErrors {
			return "", nil
		}
		return "", err
	}

	result, callErr := bt.tool.Call(ctx, args)
	dur := time.Since(start).Milliseconds()
	if callErr != nil {
		p.publish(ctx, events.NewToolResultEvent(p.attribution(), toolName, callID, callErr.Error(), dur, true))
		return "", rerr.FromError(rerr.ExternalIO, fmt.Sprintf("tool %q failed", toolName), callErr)
	}
	p.publish(ctx, events.NewToolResultEvent(p.attribution(), toolName, callID, result, dur, false))
	return result, nil
}

// Close runs Cleanup on every instantiated toolset in LIFO order. Cleanup
// errors are collected and returned together but never suppress the
// original failure passed by the caller (callscope decides precedence).
func (p *Plane) Close(ctx context.Context) error {
	return p.closeAll(ctx)
}

func (p *Plane) closeAll(ctx context.Context) error {
	var errs []error
	for i := len(p.instances) - 1; i >= 0; i-- {
		if err := p.instances[i].Cleanup(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	msg := errs[0].Error()
	for _, e := range errs[1:] {
		msg += "; " + e.Error()
	}
	return rerr.New(rerr.ToolsetCleanupErr, msg)
}

func (p *Plane) attribution() events.Attribution {
	p.callSeq++
	return events.Attribution{
		InvocationName: p.invocationName,
		Depth:          p.depth,
		SeqNo:          atomic.AddUint64(p.seqNo, 1),
		CallSeq:        p.callSeq,
	}
}

func (p *Plane) publish(ctx context.Context, ev events.Event) {
	if p.bus == nil {
		return
	}
	_ = p.bus.Publish(ctx, ev)
}

var callCounter uint64

func (p *Plane) nextCallID() string {
	n := atomic.AddUint64(&callCounter, 1)
	return fmt.Sprintf("call_%d", n)
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return data
}
