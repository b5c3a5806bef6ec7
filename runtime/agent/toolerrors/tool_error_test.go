package toolerrors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/workerflow/runtime/agent/toolerrors"
)

func TestNewWithCausePreservesChain(t *testing.T) {
	root := errors.New("connection reset")
	wrapped := toolerrors.NewWithCause("worker \"billing\" failed", root)

	require.Equal(t, "worker \"billing\" failed", wrapped.Error())

	var te *toolerrors.ToolError
	require.True(t, errors.As(wrapped, &te))
	require.Equal(t, "connection reset", te.Unwrap().Error())
}

func TestFromErrorIsIdempotentAcrossARebridge(t *testing.T) {
	inner := toolerrors.New("tool \"search\" timed out")
	// Simulate a worker-as-tool bridge re-wrapping an already-structured
	// failure returned by the callee: the inner ToolError must survive
	// unchanged as the Cause rather than being flattened to its message.
	outer := toolerrors.NewWithCause("worker \"research\" failed", inner)

	require.Same(t, inner, toolerrors.FromError(inner))
	require.Same(t, inner, outer.Cause)
	require.Same(t, inner, outer.Unwrap())
}

func TestErrorfFormatsMessage(t *testing.T) {
	err := toolerrors.Errorf("tool %q rejected args: %v", "lookup", errors.New("bad json"))
	require.Equal(t, `tool "lookup" rejected args: bad json`, err.Error())
}

func TestNilToolErrorIsSafe(t *testing.T) {
	var te *toolerrors.ToolError
	require.Empty(t, te.Error())
	require.Nil(t, te.Unwrap())
	require.Nil(t, toolerrors.FromError(nil))
}
