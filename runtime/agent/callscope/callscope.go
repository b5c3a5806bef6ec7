// Package callscope implements the atomic unit of execution lifecycle (spec
// component C3): CallFrame state, toolset instantiation via the tool plane,
// turn execution, tool dispatch, and guaranteed LIFO cleanup.
package callscope

import (
	"context"
	"fmt"
	"sync"

	"github.com/relayforge/workerflow/runtime/agent/approval"
	"github.com/relayforge/workerflow/runtime/agent/attachment"
	"github.com/relayforge/workerflow/runtime/agent/entryfn"
	"github.com/relayforge/workerflow/runtime/agent/events"
	"github.com/relayforge/workerflow/runtime/agent/model"
	"github.com/relayforge/workerflow/runtime/agent/rerr"
	"github.com/relayforge/workerflow/runtime/agent/toolplane"
	"github.com/relayforge/workerflow/runtime/agent/toolset"
	"github.com/relayforge/workerflow/runtime/agent/worker"
)

// State is the CallScope lifecycle state machine (spec §4.3):
// Initialized -> Active -> Closed.
type State int

const (
	Initialized State = iota
	Active
	Closed
)

// RuntimeView is the narrow slice of Runtime a CallScope needs. Runtime
// (execruntime package) implements this; callscope never imports execruntime
// to avoid a dependency cycle (Entry.Start returns a CallScope that the
// Runtime itself constructs).
type RuntimeView interface {
	ProjectRoot() string
	MaxDepth() int
	ApprovalPolicy() *approval.Policy
	EventBus() events.Bus
	SeqNoCounter() *uint64
	Verbosity() int
	AttachmentGate() *attachment.Gate
	ResolveToolsetFactory(name string) (toolset.Factory, bool)
	ResolveAgent(modelID string) (model.Client, error)
	RecordUsage(invocationName string, depth int, usage model.TokenUsage)
	RecordMessages(invocationName string, depth int, msgs []model.Message)
}

// Entry is the uniform protocol both WorkerEntry and EntryFunction satisfy
// (spec "Entry" tagged variants; callers discriminate via EntryKind, not
// duck-typing).
type Entry interface {
	EntryName() string
	EntryKind() EntryKind
	ToolsetSpecs() []worker.ToolsetSpec
	NewArgs() worker.Args
}

// EntryKind discriminates the two Entry implementations.
type EntryKind int

const (
	KindWorker EntryKind = iota
	KindFunction
)

// WorkerEntry adapts *worker.Worker to the Entry protocol.
type WorkerEntry struct{ W *worker.Worker }

func (w WorkerEntry) EntryName() string                   { return w.W.Name() }
func (w WorkerEntry) EntryKind() EntryKind                { return KindWorker }
func (w WorkerEntry) ToolsetSpecs() []worker.ToolsetSpec   { return w.W.ToolsetSpecs() }
func (w WorkerEntry) NewArgs() worker.Args                 { return w.W.NewArgs() }

// FunctionEntry adapts *entryfn.EntryFunction to the Entry protocol.
type FunctionEntry struct{ F *entryfn.EntryFunction }

func (f FunctionEntry) EntryName() string                 { return f.F.Name() }
func (f FunctionEntry) EntryKind() EntryKind              { return KindFunction }
func (f FunctionEntry) ToolsetSpecs() []worker.ToolsetSpec { return f.F.ToolsetSpecs() }
func (f FunctionEntry) NewArgs() worker.Args               { return f.F.NewArgs() }

// Frame is the per-call state owned by a Scope (spec "CallFrame").
type Frame struct {
	Depth          int
	InvocationName string
	Model          string
	Messages       []model.Message
	Prompt         string

	callSeq uint64
}

// Scope is the async-context-managed owner of one invocation's toolsets,
// messages, and cleanup (spec "CallScope").
type Scope struct {
	mu    sync.Mutex
	state State

	rt    RuntimeView
	entry Entry
	frame *Frame
	plane *toolplane.Plane

	candidates *toolplane.CandidateFilter
	lastHint   *toolplane.RetryHint
}

// Start builds a new Scope for entry at the given depth, instantiating and
// approval-wrapping its declared toolsets. invocationName defaults to the
// entry's own name. history seeds frame.Messages for multi-turn reuse.
func Start(
	ctx context.Context,
	rt RuntimeView,
	entry Entry,
	depth int,
	invocationName string,
	history []model.Message,
) (*Scope, error) {
	if depth > rt.MaxDepth() {
		return nil, rerr.New(rerr.MaxDepthExceeded, fmt.Sprintf("depth %d exceeds max_depth", depth)).WithEntry(entry.EntryName())
	}
	if invocationName == "" {
		invocationName = entry.EntryName()
	}

	specs := make([]toolplane.Spec, 0, len(entry.ToolsetSpecs()))
	for _, ts := range entry.ToolsetSpecs() {
		factory, ok := rt.ResolveToolsetFactory(ts.Name)
		if !ok {
			return nil, rerr.New(rerr.ManifestInvalid, fmt.Sprintf("toolset %q not registered", ts.Name)).WithEntry(entry.EntryName())
		}
		specs = append(specs, toolplane.Spec{Name: ts.Name, Factory: factory, Args: ts.Args})
	}

	fc := toolset.FactoryContext{ProjectRoot: rt.ProjectRoot(), InvocationName: invocationName, Depth: depth, Runtime: rt}
	plane, err := toolplane.Build(ctx, specs, fc, rt.ApprovalPolicy(), rt.EventBus(), rt.SeqNoCounter())
	if err != nil {
		return nil, err
	}

	modelID := ""
	if we, ok := entry.(WorkerEntry); ok {
		modelID = we.W.Model()
	}

	s := &Scope{
		state:      Active,
		rt:         rt,
		entry:      entry,
		plane:      plane,
		candidates: toolplane.NewCandidateFilter(invocationName),
		frame: &Frame{
			Depth:          depth,
			InvocationName: invocationName,
			Model:          modelID,
			Messages:       append([]model.Message(nil), history...),
		},
	}
	return s, nil
}

// State returns the current lifecycle state.
func (s *Scope) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Frame returns the scope's CallFrame.
func (s *Scope) Frame() *Frame { return s.frame }

func (s *Scope) requireActive() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Active {
		return rerr.New(rerr.ScopeClosed, "call on a closed or uninitialized CallScope").WithEntry(s.entry.EntryName())
	}
	return nil
}

// CallTool dispatches name/args to the plane's wrapped toolsets.
func (s *Scope) CallTool(ctx context.Context, name string, args []byte) (string, error) {
	if err := s.requireActive(); err != nil {
		return "", err
	}
	return s.plane.Call(ctx, name, args)
}

// SpawnChild returns a new Scope at depth+1, used by worker-as-tool bridges
// and EntryFunction recursion.
func (s *Scope) SpawnChild(ctx context.Context, entry Entry, invocationName string) (*Scope, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	name := invocationName
	if name == "" {
		name = s.frame.InvocationName
	}
	return Start(ctx, s.rt, entry, s.frame.Depth+1, name, nil)
}

// Close runs toolset cleanup exactly once, in LIFO order. Close is
// idempotent; repeated calls after the first are no-ops.
func (s *Scope) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return nil
	}
	s.state = Closed
	s.mu.Unlock()
	return s.plane.Close(ctx)
}

// ResolveAttachments gates and reads every path, recording it into the
// shared attachment gate so later turns in the same Runtime don't re-prompt.
func (s *Scope) ResolveAttachments(ctx context.Context, paths []string) ([]attachment.Resolved, error) {
	gate := s.rt.AttachmentGate()
	if gate == nil || len(paths) == 0 {
		return nil, nil
	}
	return gate.Resolve(ctx, paths)
}
