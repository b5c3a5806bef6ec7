package agent_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/workerflow/runtime/agent"
)

func TestBoundsForUntruncated(t *testing.T) {
	b := agent.BoundsFor(10, 10)
	require.False(t, b.Truncated)
	require.Equal(t, 10, b.TotalBytes)
	require.Equal(t, 10, b.TruncatedBytes)
}

func TestBoundsForTruncated(t *testing.T) {
	b := agent.BoundsFor(5000, 2000)
	require.True(t, b.Truncated)
	require.Equal(t, 5000, b.TotalBytes)
	require.Equal(t, 2000, b.TruncatedBytes)
}
