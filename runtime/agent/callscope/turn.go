package callscope

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/relayforge/workerflow/runtime/agent/events"
	"github.com/relayforge/workerflow/runtime/agent/model"
	"github.com/relayforge/workerflow/runtime/agent/rerr"
	"github.com/relayforge/workerflow/runtime/agent/toolerrors"
	"github.com/relayforge/workerflow/runtime/agent/toolplane"
	"github.com/relayforge/workerflow/runtime/agent/toolset"
	"github.com/relayforge/workerflow/runtime/agent/worker"
)

// RunTurn executes one turn against input, possibly invoking the LLM agent
// (WorkerEntry) or the registered function body (FunctionEntry). It may be
// called multiple times on the same Scope for chat-style reuse.
func (s *Scope) RunTurn(ctx context.Context, input worker.Args) (any, error) {
	if err := s.requireActive(); err != nil {
		return nil, err
	}
	switch s.entry.EntryKind() {
	case KindWorker:
		return s.runWorkerTurn(ctx, input)
	case KindFunction:
		return s.runFunctionTurn(ctx, input)
	default:
		return nil, rerr.New(rerr.ManifestInvalid, "unknown entry kind")
	}
}

func (s *Scope) attribution() events.Attribution {
	s.frame.callSeq++
	return events.Attribution{
		InvocationName: s.frame.InvocationName,
		Depth:          s.frame.Depth,
		SeqNo:          atomic.AddUint64(s.rt.SeqNoCounter(), 1),
		CallSeq:        s.frame.callSeq,
	}
}

func (s *Scope) publish(ctx context.Context, ev events.Event) {
	bus := s.rt.EventBus()
	if bus == nil {
		return
	}
	_ = bus.Publish(ctx, ev)
}

func (s *Scope) runWorkerTurn(ctx context.Context, input worker.Args) (any, error) {
	we, ok := s.entry.(WorkerEntry)
	if !ok {
		return nil, rerr.New(rerr.ManifestInvalid, "entry is not a WorkerEntry")
	}
	spec := input.PromptSpec()
	s.frame.Prompt = spec.Text

	var attachPaths []string
	for _, a := range spec.Attachments {
		attachPaths = append(attachPaths, a.Path)
	}
	resolved, err := s.ResolveAttachments(ctx, attachPaths)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.NewUserMessageEvent(s.attribution(), spec.Text))

	userMsg := model.Message{Role: "user", Parts: []model.Part{model.TextPart{Text: spec.Text}}}
	for _, r := range resolved {
		userMsg.Parts = append(userMsg.Parts, model.DocumentPart{Name: r.Path, Bytes: r.Bytes})
	}
	s.frame.Messages = append(s.frame.Messages, userMsg)

	agent, err := s.rt.ResolveAgent(we.W.Model())
	if err != nil {
		return nil, rerr.FromError(rerr.ModelUnresolved, fmt.Sprintf("resolving agent for model %q", we.W.Model()), err)
	}

	defs := s.plane.ToolDefinitions()
	names := make([]string, len(defs))
	byName := make(map[string]toolset.Tool, len(defs))
	for i, t := range defs {
		names[i] = t.Name
		byName[t.Name] = t
	}
	allowed := s.candidates.Apply(names, s.lastHint)
	s.lastHint = nil
	tools := make([]*model.ToolDefinition, 0, len(allowed))
	for _, name := range allowed {
		t := byName[name]
		tools = append(tools, &model.ToolDefinition{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
	}

	req := &model.Request{
		Model:    we.W.Model(),
		Messages: msgPtrs(s.frame.Messages),
		Tools:    tools,
	}
	resp, err := agent.Complete(ctx, req)
	if err != nil {
		return nil, rerr.FromError(rerr.ExternalIO, "model call failed", err)
	}

	for _, call := range resp.ToolCalls {
		result, toolErr := s.CallTool(ctx, string(call.Name), call.Payload)
		if toolErr != nil {
			result = toolErr.Error()
			s.lastHint = retryHintFor(string(call.Name), toolErr)
		}
		resp.Content = append(resp.Content, model.Message{
			Role:  "tool",
			Parts: []model.Part{model.TextPart{Text: result}},
			Meta:  map[string]any{"tool_call_id": call.ID, "tool_name": string(call.Name)},
		})
	}

	s.frame.Messages = append(s.frame.Messages, resp.Content...)
	s.rt.RecordMessages(s.frame.InvocationName, s.frame.Depth, resp.Content)
	s.rt.RecordUsage(s.frame.InvocationName, s.frame.Depth, resp.Usage)

	return extractText(resp.Content), nil
}

func (s *Scope) runFunctionTurn(ctx context.Context, input worker.Args) (any, error) {
	fe, ok := s.entry.(FunctionEntry)
	if !ok {
		return nil, rerr.New(rerr.ManifestInvalid, "entry is not a FunctionEntry")
	}
	rt := funcCallRuntime{scope: s}
	return fe.F.Invoke(ctx, input, rt)
}

type funcCallRuntime struct{ scope *Scope }

func (r funcCallRuntime) CallTool(ctx context.Context, name string, args any) (string, error) {
	data, err := json.Marshal(args)
	if err != nil {
		return "", rerr.FromError(rerr.InputValidation, "marshaling call_tool args", err)
	}
	return r.scope.CallTool(ctx, name, data)
}

// retryHintFor classifies a failed tool call into a RetryHint for the next
// turn's candidate list (spec SPEC_FULL §4 supplemented feature): an
// unresolved tool name is dropped from the candidates, a structured
// ToolError narrows the model toward retrying that tool specifically.
func retryHintFor(toolName string, toolErr error) *toolplane.RetryHint {
	if kind, ok := rerr.KindOf(toolErr); ok && kind == rerr.ToolNotFound {
		return &toolplane.RetryHint{Reason: toolplane.RetryReasonToolUnavailable, Tool: toolName}
	}
	var te *toolerrors.ToolError
	if errors.As(toolErr, &te) {
		return &toolplane.RetryHint{Reason: toolplane.RetryReasonToolFailed, Tool: toolName, RestrictToTool: true}
	}
	return nil
}

func msgPtrs(msgs []model.Message) []*model.Message {
	out := make([]*model.Message, len(msgs))
	for i := range msgs {
		out[i] = &msgs[i]
	}
	return out
}

func extractText(msgs []model.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		for _, p := range msgs[i].Parts {
			if tp, ok := p.(model.TextPart); ok {
				return tp.Text
			}
		}
	}
	return ""
}
