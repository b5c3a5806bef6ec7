// Package events defines the typed UI event stream emitted by the execution
// core (spec component C9) and the Bus subscribers use to observe it.
//
// Every event is attributed to the invoking entity: InvocationName is the
// direct caller's frame name, never the root entry, so a parent-to-child
// worker-as-tool call produces events attributed to the child while it runs.
package events

import (
	"fmt"
	"strings"

	"github.com/relayforge/workerflow/runtime/agent"
)

// EventType discriminates concrete Event implementations without a type switch.
type EventType string

const (
	TypeUserMessage EventType = "user_message"
	TypeTextDelta   EventType = "text_delta"
	TypeToolCall    EventType = "tool_call"
	TypeToolResult  EventType = "tool_result"
	TypeStatus      EventType = "status"
	TypeError       EventType = "error"
)

// Event is the common contract satisfied by every concrete event type.
// Subscribers type-switch on the concrete type to reach event-specific
// fields; Type offers a cheap filter without the type assertion.
type Event interface {
	Type() EventType
	// InvocationName is the frame name attributed to this event: the direct
	// caller's name, not the root entry's.
	InvocationName() string
	// Depth is the CallFrame depth the event was produced at.
	Depth() int
	// SeqNo is a per-Runtime monotonic sequence number, with a per-scope
	// sequence number as a secondary ordering field (see CallSeq).
	SeqNo() uint64
	// CallSeq is the per-scope sequence number, used to disambiguate events
	// from concurrently running sibling scopes that share a Runtime sequence.
	CallSeq() uint64
}

type base struct {
	invocationName string
	depth          int
	seqNo          uint64
	callSeq        uint64
}

func (b base) InvocationName() string { return b.invocationName }
func (b base) Depth() int             { return b.depth }
func (b base) SeqNo() uint64          { return b.seqNo }
func (b base) CallSeq() uint64        { return b.callSeq }

// Attribution carries the fields common to every event constructor: who
// produced the event, at what depth, and where it falls in event order.
type Attribution struct {
	InvocationName string
	Depth          int
	SeqNo          uint64
	CallSeq        uint64
}

func (a Attribution) base() base {
	return base{invocationName: a.InvocationName, depth: a.Depth, seqNo: a.SeqNo, callSeq: a.CallSeq}
}

type (
	// UserMessageEvent fires once per turn with the prompt text derived from
	// the caller's WorkerArgs.
	UserMessageEvent struct {
		base
		Prompt string
	}

	// TextDeltaEvent fires only when verbosity >= 2, carrying a streamed
	// fragment of the model's response text.
	TextDeltaEvent struct {
		base
		Delta string
	}

	// ToolCallEvent fires when the toolplane dispatches a tool call, before
	// the tool runs.
	ToolCallEvent struct {
		base
		ToolName string
		CallID   string
		Args     string // truncated JSON
	}

	// ToolResultEvent fires after a tool call returns (success or structured
	// failure).
	ToolResultEvent struct {
		base
		ToolName   string
		CallID     string
		Result     string // truncated JSON or text
		Bounds     agent.Bounds
		DurationMS int64
		IsError    bool
	}

	// StatusEvent carries a free-form progress message (approval pending,
	// attachment resolving, depth warnings, ...).
	StatusEvent struct {
		base
		Message string
	}

	// ErrorEvent reports a terminal or recoverable failure classified by the
	// error taxonomy (ManifestInvalid, MaxDepthExceeded, PermissionDenied, ...).
	ErrorEvent struct {
		base
		Kind    string
		Message string
	}
)

func (UserMessageEvent) Type() EventType { return TypeUserMessage }
func (TextDeltaEvent) Type() EventType   { return TypeTextDelta }
func (ToolCallEvent) Type() EventType    { return TypeToolCall }
func (ToolResultEvent) Type() EventType  { return TypeToolResult }
func (StatusEvent) Type() EventType      { return TypeStatus }
func (ErrorEvent) Type() EventType       { return TypeError }

// NewUserMessageEvent constructs a UserMessageEvent attributed per a.
func NewUserMessageEvent(a Attribution, prompt string) *UserMessageEvent {
	return &UserMessageEvent{base: a.base(), Prompt: prompt}
}

// NewTextDeltaEvent constructs a TextDeltaEvent attributed per a.
func NewTextDeltaEvent(a Attribution, delta string) *TextDeltaEvent {
	return &TextDeltaEvent{base: a.base(), Delta: delta}
}

// NewToolCallEvent constructs a ToolCallEvent, truncating args with TruncateArgs.
func NewToolCallEvent(a Attribution, toolName, callID string, args string) *ToolCallEvent {
	return &ToolCallEvent{base: a.base(), ToolName: toolName, CallID: callID, Args: TruncateArgs(args)}
}

// NewToolResultEvent constructs a ToolResultEvent, truncating the result with
// TruncateResult and recording the pre-truncation size in Bounds so
// subscribers can tell a small result from one the tool plane cut down.
func NewToolResultEvent(a Attribution, toolName, callID, result string, durationMS int64, isError bool) *ToolResultEvent {
	truncated := TruncateResult(result)
	return &ToolResultEvent{
		base: a.base(), ToolName: toolName, CallID: callID,
		Result: truncated, Bounds: agent.BoundsFor(len(result), len(truncated)),
		DurationMS: durationMS, IsError: isError,
	}
}

// NewStatusEvent constructs a StatusEvent attributed per a.
func NewStatusEvent(a Attribution, message string) *StatusEvent {
	return &StatusEvent{base: a.base(), Message: message}
}

// NewErrorEvent constructs an ErrorEvent attributed per a.
func NewErrorEvent(a Attribution, kind, message string) *ErrorEvent {
	return &ErrorEvent{base: a.base(), Kind: kind, Message: message}
}

const (
	argsCap        = 2000
	resultHeadTail = 1000
)

// TruncateArgs caps tool-call argument strings at a single length, since
// arguments are usually small and truncating the middle would hide the
// shape of the call.
func TruncateArgs(s string) string {
	if len(s) <= argsCap {
		return s
	}
	return s[:argsCap] + fmt.Sprintf("...(%d more bytes)", len(s)-argsCap)
}

// TruncateResult caps tool-result strings using a head+tail window, since
// results are often large payloads where both the start (summary/headers)
// and the end (final rows, trailing errors) carry signal.
func TruncateResult(s string) string {
	if len(s) <= resultHeadTail*2 {
		return s
	}
	var b strings.Builder
	b.WriteString(s[:resultHeadTail])
	fmt.Fprintf(&b, "\n...(%d bytes omitted)...\n", len(s)-2*resultHeadTail)
	b.WriteString(s[len(s)-resultHeadTail:])
	return b.String()
}
