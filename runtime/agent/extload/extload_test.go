package extload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/workerflow/runtime/agent/toolset"
	"github.com/relayforge/workerflow/runtime/agent/worker"
)

type fakeExt struct {
	surface     Surface
	toolCalls   []ToolInvocation
	entryCalls  []EntryInvocation
	toolResult  string
	entryResult string
	toolErr     error
	entryErr    error
}

func (f *fakeExt) ListSurface() (Surface, error) { return f.surface, nil }

func (f *fakeExt) InvokeTool(req ToolInvocation) (string, error) {
	f.toolCalls = append(f.toolCalls, req)
	return f.toolResult, f.toolErr
}

func (f *fakeExt) InvokeEntry(req EntryInvocation) (string, error) {
	f.entryCalls = append(f.entryCalls, req)
	return f.entryResult, f.entryErr
}

func TestMakeToolsetFactoryExposesEveryNamedTool(t *testing.T) {
	ext := &fakeExt{toolResult: "ok"}
	factory := makeToolsetFactory(ext, "files", []string{"read", "write"})

	ts, err := factory(context.Background(), toolset.FactoryContext{})
	require.NoError(t, err)

	tools := ts.Tools()
	require.Len(t, tools, 2)
	names := []string{tools[0].Name, tools[1].Name}
	require.ElementsMatch(t, []string{"read", "write"}, names)
}

func TestPluginToolsetToolsDispatchesToExtInvokeToolWithToolsetAndToolName(t *testing.T) {
	ext := &fakeExt{toolResult: "file contents"}
	factory := makeToolsetFactory(ext, "files", []string{"read"})
	ts, err := factory(context.Background(), toolset.FactoryContext{})
	require.NoError(t, err)

	tool := ts.Tools()[0]
	out, err := tool.Call(context.Background(), []byte(`{"path":"a.txt"}`))
	require.NoError(t, err)
	require.Equal(t, "file contents", out)

	require.Len(t, ext.toolCalls, 1)
	require.Equal(t, "files", ext.toolCalls[0].Toolset)
	require.Equal(t, "read", ext.toolCalls[0].Tool)
	require.Equal(t, []byte(`{"path":"a.txt"}`), ext.toolCalls[0].Args)
}

type plainArgs struct{ text string }

func (a plainArgs) PromptSpec() worker.PromptSpec { return worker.PromptSpec{Text: a.text} }

func TestEncodeArgsCarriesThePromptSpecText(t *testing.T) {
	payload, err := encodeArgs(plainArgs{text: "summarize this"})
	require.NoError(t, err)
	require.Equal(t, "summarize this", string(payload))
}
