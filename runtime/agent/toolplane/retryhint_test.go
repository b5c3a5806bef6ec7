package toolplane_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/workerflow/runtime/agent/toolplane"
)

func TestCandidateFilterRestrictsToTool(t *testing.T) {
	f := toolplane.NewCandidateFilter("")
	names := []string{"alpha", "beta"}
	hint := &toolplane.RetryHint{Tool: "beta", RestrictToTool: true}
	require.Equal(t, []string{"beta"}, f.Apply(names, hint))
}

func TestCandidateFilterRemovesUnavailable(t *testing.T) {
	f := toolplane.NewCandidateFilter("custom")
	names := []string{"alpha", "beta"}
	hint := &toolplane.RetryHint{Tool: "beta", Reason: toolplane.RetryReasonToolUnavailable}
	require.Equal(t, []string{"alpha"}, f.Apply(names, hint))
}

func TestCandidateFilterNoHint(t *testing.T) {
	f := toolplane.NewCandidateFilter("")
	names := []string{"alpha", "beta"}
	require.Equal(t, names, f.Apply(names, nil))
}
