package toolset_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/workerflow/runtime/agent/toolset"
)

func TestBaseToolsetCleanupIsANoop(t *testing.T) {
	var b toolset.BaseToolset
	require.NoError(t, b.Cleanup(context.Background()))
}
