// Package agent defines small cross-cutting types shared by the execution
// core that don't belong to any single runtime subpackage.
package agent

// Bounds describes how a tool result has been bounded relative to the bytes a
// tool originally produced. Runtimes attach it to a tool_result event so
// subscribers can tell a small result from one the tool plane truncated
// before it reached the model.
//
// TotalBytes is the length of the result before truncation; Truncated is
// true when TruncatedBytes (the length actually kept) is smaller than
// TotalBytes.
type Bounds struct {
	TotalBytes     int
	TruncatedBytes int
	Truncated      bool
}

// BoundsFor reports Bounds for a tool result string of length total, capped
// to kept bytes. Callers pass the pre- and post-truncation lengths already
// computed by events.TruncateResult.
func BoundsFor(total, kept int) Bounds {
	return Bounds{TotalBytes: total, TruncatedBytes: kept, Truncated: kept < total}
}
