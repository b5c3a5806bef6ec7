package toolplane

import "strings"

// RetryReason classifies why a retry hint was attached to the next turn.
type RetryReason string

const (
	// RetryReasonToolUnavailable indicates the named tool could not be
	// resolved on its last call and should be excluded from the next turn's
	// candidates.
	RetryReasonToolUnavailable RetryReason = "tool_unavailable"
	// RetryReasonToolFailed indicates the named tool returned a structured
	// ToolError and the model should be nudged toward that tool specifically.
	RetryReasonToolFailed RetryReason = "tool_failed"
)

// RetryHint attaches guidance to the next turn after a tool call fails,
// grounded on the teacher's planner retry-hint mechanism (spec SPEC_FULL §4
// supplemented feature): the next turn's candidate tool list is adjusted.
// The hint itself is not sent to the model and is not recorded on
// ToolResultEvent; the model sees only the failure text.
type RetryHint struct {
	Reason         RetryReason
	Tool           string
	RestrictToTool bool
}

// CandidateFilter narrows a turn's tool candidates in response to an
// optional RetryHint from the previous turn.
type CandidateFilter struct {
	Label string
}

// NewCandidateFilter constructs a filter; label annotates emitted metadata,
// defaulting to "toolplane".
func NewCandidateFilter(label string) *CandidateFilter {
	if strings.TrimSpace(label) == "" {
		label = "toolplane"
	}
	return &CandidateFilter{Label: label}
}

// Apply narrows names per hint: RestrictToTool reduces the candidate set to
// exactly that tool (if present); RetryReasonToolUnavailable removes it.
func (f *CandidateFilter) Apply(names []string, hint *RetryHint) []string {
	if hint == nil || hint.Tool == "" {
		return names
	}
	switch {
	case hint.RestrictToTool:
		for _, n := range names {
			if n == hint.Tool {
				return []string{n}
			}
		}
		return nil
	case hint.Reason == RetryReasonToolUnavailable:
		out := names[:0:0]
		for _, n := range names {
			if n != hint.Tool {
				out = append(out, n)
			}
		}
		return out
	default:
		return names
	}
}
