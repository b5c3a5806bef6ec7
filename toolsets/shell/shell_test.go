package shell_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/workerflow/runtime/agent/toolset"
	"github.com/relayforge/workerflow/toolsets/shell"
)

func newToolset(t *testing.T, root string) toolset.Toolset {
	t.Helper()
	ts, err := shell.Factory(context.Background(), toolset.FactoryContext{ProjectRoot: root})
	require.NoError(t, err)
	return ts
}

func TestRunCommandCapturesStdout(t *testing.T) {
	ts := newToolset(t, t.TempDir())
	tools := ts.Tools()
	require.Len(t, tools, 1)

	out, err := tools[0].Call(context.Background(), json.RawMessage(`{"command":"echo hello"}`))
	require.NoError(t, err)
	require.Equal(t, "hello\n", out)
}

func TestRunCommandRejectsEmptyCommand(t *testing.T) {
	ts := newToolset(t, t.TempDir())
	_, err := ts.Tools()[0].Call(context.Background(), json.RawMessage(`{"command":""}`))
	require.Error(t, err)
}

func TestRunCommandReturnsCombinedOutputOnFailure(t *testing.T) {
	ts := newToolset(t, t.TempDir())
	out, err := ts.Tools()[0].Call(context.Background(), json.RawMessage(`{"command":"echo oops >&2; exit 1"}`))
	require.Error(t, err)
	require.Equal(t, "oops\n", out)
}

func TestApprovalConfigNeverPreApprovesRunCommand(t *testing.T) {
	ts, err := shell.Factory(context.Background(), toolset.FactoryContext{ProjectRoot: t.TempDir()})
	require.NoError(t, err)
	cfg := ts.(interface {
		ApprovalConfig() map[string]toolset.Config
	}).ApprovalConfig()

	entry, ok := cfg["shell.run_command"]
	require.True(t, ok)
	require.False(t, entry.PreApproved)
	require.False(t, entry.Blocked)
}
