// Package execruntime implements the process-scoped Runtime and
// RuntimeConfig (spec component C4): immutable policy, mutable usage/message
// sinks, and the factory surface CallScope.Start is invoked through.
package execruntime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/relayforge/workerflow/runtime/agent/approval"
	"github.com/relayforge/workerflow/runtime/agent/attachment"
	"github.com/relayforge/workerflow/runtime/agent/callscope"
	"github.com/relayforge/workerflow/runtime/agent/events"
	"github.com/relayforge/workerflow/runtime/agent/manifest"
	"github.com/relayforge/workerflow/runtime/agent/model"
	"github.com/relayforge/workerflow/runtime/agent/rerr"
	"github.com/relayforge/workerflow/runtime/agent/runlog"
	"github.com/relayforge/workerflow/runtime/agent/session"
	"github.com/relayforge/workerflow/runtime/agent/telemetry"
	"github.com/relayforge/workerflow/runtime/agent/toolset"
	"github.com/relayforge/workerflow/runtime/agent/worker"
)

// Config is the immutable, process-scoped policy surface (spec
// "RuntimeConfig"). None of its callback fields are optional in spirit: a
// nil AgentResolver or ApprovalCallback simply means every call that needs
// one fails fast with a descriptive error, rather than the core reaching
// into a concrete provider.
type Config struct {
	ModelOverride          string
	ApprovalMode           approval.Mode
	ApprovalCallback       approval.Callback
	ReturnPermissionErrors bool
	MaxDepth               int
	Verbosity              int
	ProjectRoot            string
	OnEvent                func(context.Context, events.Event)

	// AgentResolver maps a resolved model identifier to an LLM Client. The
	// core never imports a concrete provider package directly (Design
	// Notes, §9); harnesses inject llm/anthropicagent, llm/openaiagent, or
	// a test double here.
	AgentResolver func(modelID string) (model.Client, error)

	// RunID and SessionID identify this Runtime's run for persistence and
	// session-scoped run listing. Both are caller-supplied since execruntime
	// has no identity generator of its own (Design Notes, §9: no concrete
	// UUID/clock dependency in the core).
	RunID     string
	SessionID string
	// RunLog, when set together with a non-empty RunID, receives every
	// emitted Event as a durable record.
	RunLog runlog.Store
	// Sessions, when set, tracks session lifecycle and per-run metadata
	// alongside RunLog, enabling session-scoped run listing.
	Sessions session.Store

	// Logger and Tracer back the run's observability surface. Nil defaults
	// to telemetry.NewNoopLogger/NewNoopTracer, never to a concrete
	// clue/otel dependency reached into directly from this package.
	Logger telemetry.Logger
	Tracer telemetry.Tracer
}

// UsageCollector aggregates token usage across every call in a Runtime's
// lifetime (spec "UsageCollector"): lock-guarded append, read under the
// same lock.
type UsageCollector struct {
	mu    sync.Mutex
	total model.TokenUsage
	byKey map[string]model.TokenUsage
}

func newUsageCollector() *UsageCollector {
	return &UsageCollector{byKey: make(map[string]model.TokenUsage)}
}

// Record adds usage to the running total and to the per-(invocation,depth) breakdown.
func (u *UsageCollector) Record(invocationName string, depth int, usage model.TokenUsage) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.total.InputTokens += usage.InputTokens
	u.total.OutputTokens += usage.OutputTokens
	u.total.TotalTokens += usage.TotalTokens
	u.total.CacheReadTokens += usage.CacheReadTokens
	u.total.CacheWriteTokens += usage.CacheWriteTokens
	key := fmt.Sprintf("%s@%d", invocationName, depth)
	prev := u.byKey[key]
	prev.InputTokens += usage.InputTokens
	prev.OutputTokens += usage.OutputTokens
	prev.TotalTokens += usage.TotalTokens
	u.byKey[key] = prev
}

// Total returns the aggregate usage recorded so far.
func (u *UsageCollector) Total() model.TokenUsage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.total
}

// MessageAccumulator records every message appended to any CallFrame within
// a Runtime, keyed by (invocation_name, depth) (spec "MessageAccumulator").
type MessageAccumulator struct {
	mu   sync.Mutex
	byKey map[string][]model.Message
}

func newMessageAccumulator() *MessageAccumulator {
	return &MessageAccumulator{byKey: make(map[string][]model.Message)}
}

// Record appends msgs under (invocationName, depth).
func (a *MessageAccumulator) Record(invocationName string, depth int, msgs []model.Message) {
	if len(msgs) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	key := fmt.Sprintf("%s@%d", invocationName, depth)
	a.byKey[key] = append(a.byKey[key], msgs...)
}

// All returns every recorded message across every invocation, for debugging
// and transcript export.
func (a *MessageAccumulator) All() map[string][]model.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string][]model.Message, len(a.byKey))
	for k, v := range a.byKey {
		out[k] = append([]model.Message(nil), v...)
	}
	return out
}

// Runtime is the process-scoped execution environment (spec "Runtime"). One
// Runtime is constructed per top-level run and is typically reused across
// turns in interactive mode; it owns no toolset instances directly.
type Runtime struct {
	cfg      Config
	project  *manifest.Project
	usage    *UsageCollector
	messages *MessageAccumulator
	policy   *approval.Policy
	bus      events.Bus
	gate     *attachment.Gate
	seqNo    uint64
}

// New constructs a Runtime bound to project, resolving the approval policy
// and attachment gate once for the Runtime's lifetime.
func New(cfg Config, project *manifest.Project) *Runtime {
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.NewNoopLogger()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = telemetry.NewNoopTracer()
	}
	policy := approval.NewPolicy(cfg.ApprovalMode, cfg.ApprovalCallback, cfg.ReturnPermissionErrors)
	bus := events.NewBus()
	r := &Runtime{
		cfg:      cfg,
		project:  project,
		usage:    newUsageCollector(),
		messages: newMessageAccumulator(),
		policy:   policy,
		bus:      bus,
	}
	r.gate = attachment.New(cfg.ProjectRoot, policy)
	if cfg.OnEvent != nil {
		_, _ = bus.Register(events.SubscriberFunc(func(ctx context.Context, ev events.Event) error {
			cfg.OnEvent(ctx, ev)
			return nil
		}))
	}
	if cfg.RunLog != nil && cfg.RunID != "" {
		_, _ = bus.Register(events.SubscriberFunc(func(ctx context.Context, ev events.Event) error {
			return r.appendRunLog(ctx, ev)
		}))
	}
	return r
}

func (r *Runtime) appendRunLog(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("execruntime: marshaling event payload: %w", err)
	}
	return r.cfg.RunLog.Append(ctx, &runlog.Event{
		RunID:     r.cfg.RunID,
		EntryName: r.project.Entry.EntryName(),
		SessionID: r.cfg.SessionID,
		Type:      ev.Type(),
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

// start ensures the configured session exists and upserts the run's metadata
// to RunStatusRunning. A no-op when Sessions is unconfigured.
func (r *Runtime) start(ctx context.Context) error {
	if r.cfg.Sessions == nil || r.cfg.RunID == "" {
		return nil
	}
	now := time.Now()
	if r.cfg.SessionID != "" {
		if _, err := r.cfg.Sessions.CreateSession(ctx, r.cfg.SessionID, now); err != nil {
			return fmt.Errorf("execruntime: creating session: %w", err)
		}
	}
	return r.cfg.Sessions.UpsertRun(ctx, session.RunMeta{
		EntryName: r.project.Entry.EntryName(),
		RunID:     r.cfg.RunID,
		SessionID: r.cfg.SessionID,
		Status:    session.RunStatusRunning,
		StartedAt: now,
		UpdatedAt: now,
	})
}

// finish records the run's terminal status. A no-op when Sessions is unconfigured.
func (r *Runtime) finish(ctx context.Context, runErr error) {
	if r.cfg.Sessions == nil || r.cfg.RunID == "" {
		return
	}
	status := session.RunStatusCompleted
	meta := map[string]any{}
	if runErr != nil {
		status = session.RunStatusFailed
		meta["error"] = runErr.Error()
	}
	_ = r.cfg.Sessions.UpsertRun(ctx, session.RunMeta{
		EntryName: r.project.Entry.EntryName(),
		RunID:     r.cfg.RunID,
		SessionID: r.cfg.SessionID,
		Status:    status,
		UpdatedAt: time.Now(),
		Metadata:  meta,
	})
}

// ProjectRoot implements callscope.RuntimeView.
func (r *Runtime) ProjectRoot() string { return r.cfg.ProjectRoot }

// MaxDepth implements callscope.RuntimeView.
func (r *Runtime) MaxDepth() int { return r.cfg.MaxDepth }

// ApprovalPolicy implements callscope.RuntimeView.
func (r *Runtime) ApprovalPolicy() *approval.Policy { return r.policy }

// EventBus implements callscope.RuntimeView.
func (r *Runtime) EventBus() events.Bus { return r.bus }

// SeqNoCounter implements callscope.RuntimeView.
func (r *Runtime) SeqNoCounter() *uint64 { return &r.seqNo }

// Verbosity implements callscope.RuntimeView.
func (r *Runtime) Verbosity() int { return r.cfg.Verbosity }

// AttachmentGate implements callscope.RuntimeView.
func (r *Runtime) AttachmentGate() *attachment.Gate { return r.gate }

// ResolveToolsetFactory implements callscope.RuntimeView.
func (r *Runtime) ResolveToolsetFactory(name string) (toolset.Factory, bool) {
	f, ok := r.project.Toolsets[name]
	return f, ok
}

// ResolveAgent implements callscope.RuntimeView.
func (r *Runtime) ResolveAgent(modelID string) (model.Client, error) {
	id := modelID
	if r.cfg.ModelOverride != "" {
		id = r.cfg.ModelOverride
	}
	if r.cfg.AgentResolver == nil {
		return nil, rerr.New(rerr.ModelUnresolved, "no AgentResolver configured on RuntimeConfig")
	}
	return r.cfg.AgentResolver(id)
}

// RecordUsage implements callscope.RuntimeView.
func (r *Runtime) RecordUsage(invocationName string, depth int, usage model.TokenUsage) {
	r.usage.Record(invocationName, depth, usage)
}

// RecordMessages implements callscope.RuntimeView.
func (r *Runtime) RecordMessages(invocationName string, depth int, msgs []model.Message) {
	r.messages.Record(invocationName, depth, msgs)
}

// Usage returns the Runtime's aggregate UsageCollector.
func (r *Runtime) Usage() *UsageCollector { return r.usage }

// Messages returns the Runtime's MessageAccumulator.
func (r *Runtime) Messages() *MessageAccumulator { return r.messages }

var _ callscope.RuntimeView = (*Runtime)(nil)

// Run creates a CallScope for the Project's entry, runs one turn, and
// returns the result with the scope still open (caller owns Close).
func (r *Runtime) Run(ctx context.Context, input any) (any, *callscope.Scope, error) {
	args, err := coerceArgs(r.project.Entry, input)
	if err != nil {
		return nil, nil, err
	}
	scope, err := callscope.Start(ctx, r, r.project.Entry, 0, r.project.Entry.EntryName(), nil)
	if err != nil {
		return nil, nil, err
	}
	out, err := scope.RunTurn(ctx, args)
	if err != nil {
		return nil, scope, err
	}
	return out, scope, nil
}

// RunToCompletion runs one turn and closes the scope before returning. When
// Config.Sessions is set, it brackets the run with a RunStatusRunning upsert
// and a terminal RunStatusCompleted/RunStatusFailed upsert.
func (r *Runtime) RunToCompletion(ctx context.Context, input any) (any, error) {
	ctx, span := r.cfg.Tracer.Start(ctx, "workerflow.run")
	defer span.End()
	r.cfg.Logger.Info(ctx, "run starting", "run_id", r.cfg.RunID, "entry", r.project.Entry.EntryName())

	if err := r.start(ctx); err != nil {
		span.RecordError(err)
		return nil, err
	}
	out, scope, err := r.Run(ctx, input)
	if scope != nil {
		closeErr := scope.Close(ctx)
		if err == nil {
			err = closeErr
		}
	}
	r.finish(ctx, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.cfg.Logger.Error(ctx, "run failed", "run_id", r.cfg.RunID, "error", err)
	} else {
		r.cfg.Logger.Info(ctx, "run completed", "run_id", r.cfg.RunID)
	}
	return out, err
}

// coerceArgs accepts either an already-constructed worker.Args, raw JSON
// ([]byte or json.RawMessage) decoded against the entry's schema, or a bare
// prompt string wrapped into worker.DefaultArgs when the entry's schema
// accepts it (the CLI boundary, spec §6).
func coerceArgs(entry callscope.Entry, input any) (worker.Args, error) {
	switch v := input.(type) {
	case worker.Args:
		return v, nil
	case []byte:
		return worker.DecodeArgs(entry.NewArgs(), v)
	case json.RawMessage:
		return worker.DecodeArgs(entry.NewArgs(), v)
	case string:
		zero := entry.NewArgs()
		if _, ok := zero.(worker.DefaultArgs); ok {
			return worker.DefaultArgs{Input: v}, nil
		}
		return nil, rerr.New(rerr.InputValidation, fmt.Sprintf("entry %q requires structured input, not a bare string", entry.EntryName()))
	default:
		return nil, rerr.New(rerr.InputValidation, fmt.Sprintf("unsupported input type %T for entry %q", input, entry.EntryName()))
	}
}
