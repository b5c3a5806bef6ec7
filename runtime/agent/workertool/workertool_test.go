package workertool_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/workerflow/runtime/agent/approval"
	"github.com/relayforge/workerflow/runtime/agent/attachment"
	"github.com/relayforge/workerflow/runtime/agent/callscope"
	"github.com/relayforge/workerflow/runtime/agent/events"
	"github.com/relayforge/workerflow/runtime/agent/model"
	"github.com/relayforge/workerflow/runtime/agent/toolset"
	"github.com/relayforge/workerflow/runtime/agent/worker"
	"github.com/relayforge/workerflow/runtime/agent/workertool"
)

type fakeRuntime struct {
	policy *approval.Policy
	bus    events.Bus
	seqNo  uint64
	gate   *attachment.Gate
	agent  model.Client
}

func newFakeRuntime(agent model.Client) *fakeRuntime {
	policy := approval.NewPolicy(approval.ModeApproveAll, nil, false)
	return &fakeRuntime{policy: policy, bus: events.NewBus(), gate: attachment.New(".", policy), agent: agent}
}

func (f *fakeRuntime) ProjectRoot() string                                  { return "." }
func (f *fakeRuntime) MaxDepth() int                                        { return 5 }
func (f *fakeRuntime) ApprovalPolicy() *approval.Policy                     { return f.policy }
func (f *fakeRuntime) EventBus() events.Bus                                 { return f.bus }
func (f *fakeRuntime) SeqNoCounter() *uint64                                { return &f.seqNo }
func (f *fakeRuntime) Verbosity() int                                       { return 0 }
func (f *fakeRuntime) AttachmentGate() *attachment.Gate                     { return f.gate }
func (f *fakeRuntime) ResolveToolsetFactory(string) (toolset.Factory, bool) { return nil, false }
func (f *fakeRuntime) ResolveAgent(string) (model.Client, error)            { return f.agent, nil }
func (f *fakeRuntime) RecordUsage(string, int, model.TokenUsage)            {}
func (f *fakeRuntime) RecordMessages(string, int, []model.Message)         {}

type toolArgs struct{ Text string }

func (a toolArgs) PromptSpec() worker.PromptSpec { return worker.PromptSpec{Text: a.Text} }

type scriptedClient struct {
	resp *model.Response
}

func (c *scriptedClient) Complete(context.Context, *model.Request) (*model.Response, error) {
	return c.resp, nil
}

func (c *scriptedClient) Stream(context.Context, *model.Request) (model.Streamer, error) {
	return nil, model.ErrStreamingUnsupported
}

func newResearcher(t *testing.T) *worker.Worker {
	t.Helper()
	w, err := worker.New(worker.Definition{
		Frontmatter: worker.Frontmatter{Name: "researcher", Model: "claude-test", Description: "researches a topic"},
	}, func() worker.Args { return toolArgs{} })
	require.NoError(t, err)
	return w
}

func TestBridgeExposesOneToolNamedAfterWorker(t *testing.T) {
	w := newResearcher(t)
	factory := workertool.Factory(w, map[string]any{"type": "object"})

	rt := newFakeRuntime(&scriptedClient{resp: &model.Response{}})
	ts, err := factory(context.Background(), toolset.FactoryContext{Depth: 0, Runtime: callscope.RuntimeView(rt)})
	require.NoError(t, err)

	tools := ts.Tools()
	require.Len(t, tools, 1)
	require.Equal(t, "researcher", tools[0].Name)
	require.Equal(t, "researches a topic", tools[0].Description)
}

func TestBridgeDispatchesAChildTurnAndStringifiesTheResult(t *testing.T) {
	w := newResearcher(t)
	factory := workertool.Factory(w, map[string]any{"type": "object"})

	client := &scriptedClient{resp: &model.Response{
		Content: []model.Message{{Role: model.ConversationRoleAssistant, Parts: []model.Part{model.TextPart{Text: "the answer is 42"}}}},
	}}
	rt := newFakeRuntime(client)
	ts, err := factory(context.Background(), toolset.FactoryContext{Depth: 2, Runtime: callscope.RuntimeView(rt)})
	require.NoError(t, err)

	tool := ts.Tools()[0]
	out, err := tool.Call(context.Background(), json.RawMessage(`{"Text":"what is the answer?"}`))
	require.NoError(t, err)
	require.Equal(t, "the answer is 42", out)
}

func TestFactoryRejectsNonRuntimeView(t *testing.T) {
	w := newResearcher(t)
	factory := workertool.Factory(w, nil)
	_, err := factory(context.Background(), toolset.FactoryContext{Runtime: "not a runtime view"})
	require.Error(t, err)
}
