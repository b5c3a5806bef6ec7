package entryfn_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/workerflow/runtime/agent/entryfn"
	"github.com/relayforge/workerflow/runtime/agent/worker"
)

type fakeCallRuntime struct {
	result string
	err    error
	called string
}

func (f *fakeCallRuntime) CallTool(_ context.Context, name string, _ any) (string, error) {
	f.called = name
	return f.result, f.err
}

func TestNewDefaultsSchemaToDefaultArgs(t *testing.T) {
	fn := entryfn.New("classify", func(context.Context, worker.Args, entryfn.CallRuntime) (any, error) {
		return nil, nil
	}, nil, nil)

	require.IsType(t, worker.DefaultArgs{}, fn.NewArgs())
}

func TestWithDescriptionIsChainable(t *testing.T) {
	fn := entryfn.New("classify", func(context.Context, worker.Args, entryfn.CallRuntime) (any, error) {
		return nil, nil
	}, nil, nil).WithDescription("classifies input text")

	require.Equal(t, "classifies input text", fn.Description())
}

func TestInvokeDispatchesToTheRegisteredBody(t *testing.T) {
	fn := entryfn.New("lookup", func(ctx context.Context, args worker.Args, rt entryfn.CallRuntime) (any, error) {
		spec := args.PromptSpec()
		return rt.CallTool(ctx, "search", spec.Text)
	}, nil, nil)

	rt := &fakeCallRuntime{result: "found it"}
	out, err := fn.Invoke(context.Background(), worker.DefaultArgs{Input: "query"}, rt)
	require.NoError(t, err)
	require.Equal(t, "found it", out)
	require.Equal(t, "search", rt.called)
}

func TestInvokePropagatesBodyError(t *testing.T) {
	wantErr := errors.New("boom")
	fn := entryfn.New("lookup", func(context.Context, worker.Args, entryfn.CallRuntime) (any, error) {
		return nil, wantErr
	}, nil, nil)

	_, err := fn.Invoke(context.Background(), worker.DefaultArgs{}, &fakeCallRuntime{})
	require.ErrorIs(t, err, wantErr)
}

func TestToolsetSpecsReturnsRegisteredToolsets(t *testing.T) {
	specs := []worker.ToolsetSpec{{Name: "search"}, {Name: "fs"}}
	fn := entryfn.New("lookup", nil, specs, nil)
	require.Equal(t, specs, fn.ToolsetSpecs())
}
