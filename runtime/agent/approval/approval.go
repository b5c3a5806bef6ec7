// Package approval implements the tool-plane approval protocol (spec
// component C5): request/decision/memory types, the three approval modes,
// and the per-tool policy precedence consulted before every gated tool call.
package approval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/relayforge/workerflow/runtime/agent/rerr"
)

// Mode selects how ApprovalRequests are resolved at a call site.
type Mode string

const (
	// ModePrompt invokes the resolved Callback and blocks until a decision arrives.
	ModePrompt Mode = "prompt"
	// ModeApproveAll approves every request without invoking the callback.
	ModeApproveAll Mode = "approve_all"
	// ModeRejectAll rejects every request without invoking the callback.
	ModeRejectAll Mode = "reject_all"
)

// Remember controls whether a Decision is cached beyond its originating call.
type Remember string

const (
	RememberNever   Remember = "never"
	RememberSession Remember = "session"
)

// PresentationType hints to a harness how Presentation.Content should be rendered.
type PresentationType string

const (
	PresentationText        PresentationType = "text"
	PresentationDiff         PresentationType = "diff"
	PresentationFileContent  PresentationType = "file_content"
	PresentationCommand      PresentationType = "command"
	PresentationStructured   PresentationType = "structured"
)

// Presentation carries an optional rendering hint for an ApprovalRequest,
// formalizing the shape named by spec §6 ("presentation?").
type Presentation struct {
	Type     PresentationType
	Content  string
	Language string
}

// Request describes one gated tool call awaiting a decision.
type Request struct {
	ToolName     string
	Description  string
	Payload      any
	Presentation *Presentation
}

// Decision is the outcome of resolving a Request.
type Decision struct {
	Approved bool
	Note     string
	Remember Remember
}

// Approved returns a Decision approving the request, remembered per remember.
func Approved(remember Remember) Decision { return Decision{Approved: true, Remember: remember} }

// Denied returns a Decision rejecting the request.
func Denied(note string) Decision { return Decision{Approved: false, Note: note} }

// Callback resolves a Request to a Decision. The harness supplies this; the
// core never assumes a concrete UI or transport.
type Callback func(ctx context.Context, req Request) (Decision, error)

// ToolConfig is the per-tool policy attribute a Toolset may expose via
// __approval_config__-equivalent metadata: Blocked always wins over
// PreApproved (testable property 7).
type ToolConfig struct {
	Blocked     bool
	PreApproved bool
}

// NeedsApprovalHook lets a Toolset override policy resolution for a specific
// call, taking precedence over every other precedence rule.
type NeedsApprovalHook func(ctx context.Context, toolName string, args any) (*Decision, error)

// memoKey is the Runtime-scoped cache key: (tool_name, canonicalized payload).
type memoKey struct {
	tool string
	hash string
}

func canonicalize(payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	// Re-marshal through a generic map/slice to normalize key order.
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", err
	}
	normalized, err := json.Marshal(generic)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(normalized)
	return hex.EncodeToString(sum[:]), nil
}

// Memory caches approval decisions within a single Runtime. It is never
// process-wide: each Runtime owns its own Memory instance.
type Memory struct {
	mu    sync.Mutex
	cache map[memoKey]Decision
}

// NewMemory constructs an empty, ready-to-use Memory.
func NewMemory() *Memory {
	return &Memory{cache: make(map[memoKey]Decision)}
}

func (m *Memory) lookup(tool string, hash string) (Decision, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.cache[memoKey{tool: tool, hash: hash}]
	return d, ok
}

func (m *Memory) remember(tool string, hash string, d Decision) {
	if d.Remember != RememberSession {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[memoKey{tool: tool, hash: hash}] = d
}

// Policy binds a Mode and Callback to a Memory, forming the resolved
// approval callback a Runtime memoizes for its lifetime.
type Policy struct {
	Mode                   Mode
	Callback               Callback
	ReturnPermissionErrors bool
	Memory                 *Memory
}

// NewPolicy constructs a Policy with a fresh Memory.
func NewPolicy(mode Mode, cb Callback, returnPermissionErrors bool) *Policy {
	return &Policy{Mode: mode, Callback: cb, ReturnPermissionErrors: returnPermissionErrors, Memory: NewMemory()}
}

// Resolve applies the per-tool policy precedence from spec §4.5, in order:
// needs_approval hook, blocked config, pre_approved config, session cache,
// then the mode's callback/auto-decision.
func (p *Policy) Resolve(
	ctx context.Context,
	toolName string,
	args any,
	cfg ToolConfig,
	hook NeedsApprovalHook,
) (Decision, error) {
	if hook != nil {
		d, err := hook(ctx, toolName, args)
		if err != nil {
			return Decision{}, err
		}
		if d != nil {
			return *d, nil
		}
	}
	if cfg.Blocked {
		return Decision{}, rerr.New(rerr.PermissionDenied, fmt.Sprintf("tool %q is blocked", toolName))
	}
	if cfg.PreApproved {
		return Approved(RememberNever), nil
	}
	hash, err := canonicalize(args)
	if err != nil {
		return Decision{}, rerr.FromError(rerr.InputValidation, "canonicalizing approval payload", err)
	}
	if d, ok := p.Memory.lookup(toolName, hash); ok {
		return d, nil
	}
	d, err := p.decide(ctx, toolName, args)
	if err != nil {
		return Decision{}, err
	}
	p.Memory.remember(toolName, hash, d)
	return d, nil
}

func (p *Policy) decide(ctx context.Context, toolName string, args any) (Decision, error) {
	switch p.Mode {
	case ModeApproveAll:
		return Approved(RememberNever), nil
	case ModeRejectAll:
		return Denied("approval_mode=reject_all"), nil
	default:
		if p.Callback == nil {
			return Denied("no approval callback configured"), nil
		}
		req := Request{ToolName: toolName, Description: toolName, Payload: args}
		return p.Callback(ctx, req)
	}
}

// EnforceDecision turns a denied Decision into a PermissionDenied
// RuntimeError, or returns nil for an approved one.
func EnforceDecision(d Decision, toolName string) error {
	if d.Approved {
		return nil
	}
	msg := fmt.Sprintf("approval denied for tool %q", toolName)
	if d.Note != "" {
		msg = fmt.Sprintf("%s: %s", msg, d.Note)
	}
	return rerr.New(rerr.PermissionDenied, msg)
}
