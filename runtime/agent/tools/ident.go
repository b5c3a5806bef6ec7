// Package tools defines the strong-typed tool identifier threaded through
// model tool calls and provider adapters, keeping a tool name distinct from
// an arbitrary string.
package tools

// Ident is the strong type for a tool name as offered to the model: the name
// the owning toolset declares (for example "filesystem.read_file", or a
// worker's own name for a worker-as-tool). Provider adapters decode a
// model's tool_use name into it as model.ToolCall.Name; the tool plane
// itself keys tools by plain string names.
type Ident string

// String satisfies fmt.Stringer so adapters can format an Ident directly
// wherever a tool name is logged or sanitized.
func (i Ident) String() string { return string(i) }

// ToolUnavailable is the reserved identifier a provider adapter substitutes
// for a model tool_use block naming a tool outside the turn's candidate
// list (hallucinated or no longer offered), preserving the tool_use ->
// tool_result handshake the wire protocol requires.
const ToolUnavailable Ident = "runtime.tool_unavailable"
