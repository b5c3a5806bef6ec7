// Command workerflow is the CLI harness for the project manifest execution
// core (spec external interface): it parses and links a manifest, builds a
// Runtime wired to the built-in toolsets and LLM provider adapters, runs the
// entry to completion, and renders the emitted event stream to stderr.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/relayforge/workerflow/llm/anthropicagent"
	"github.com/relayforge/workerflow/llm/openaiagent"
	"github.com/relayforge/workerflow/metrics"
	"github.com/relayforge/workerflow/runtime/agent/approval"
	"github.com/relayforge/workerflow/runtime/agent/callscope"
	"github.com/relayforge/workerflow/runtime/agent/events"
	"github.com/relayforge/workerflow/runtime/agent/execruntime"
	"github.com/relayforge/workerflow/runtime/agent/manifest"
	"github.com/relayforge/workerflow/runtime/agent/model"
	"github.com/relayforge/workerflow/runtime/agent/rerr"
	runlogmem "github.com/relayforge/workerflow/runtime/agent/runlog/inmem"
	sessionmem "github.com/relayforge/workerflow/runtime/agent/session/inmem"
	"github.com/relayforge/workerflow/runtime/agent/telemetry"
	"github.com/relayforge/workerflow/runtime/agent/toolset"
	"github.com/relayforge/workerflow/runtime/agent/worker"
	"github.com/relayforge/workerflow/toolsets/filesystem"
	"github.com/relayforge/workerflow/toolsets/shell"
)

// Exit codes per the external interface contract.
const (
	exitSuccess      = 0
	exitUserError    = 1
	exitExecError    = 2
	exitInterrupted  = 130
)

func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	os.Exit(run())
}

func run() int {
	var inputJSON string

	cmd := &cobra.Command{
		Use:          "workerflow manifest.json [prompt]",
		Short:        "Run a workerflow project manifest to completion",
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
	}
	cmd.Flags().StringVar(&inputJSON, "input-json", "", "Inline JSON input for the entry, in place of a bare prompt")

	ranExecute := false
	exitCode := exitUserError
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ranExecute = true
		code, err := execute(cmd.Context(), args, inputJSON)
		exitCode = code
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cmd.SetContext(ctx)

	if err := cmd.Execute(); err != nil {
		if ctx.Err() != nil {
			return exitInterrupted
		}
		if !ranExecute {
			// cobra rejected the arguments/flags before execute() ran.
			exitCode = exitUserError
		}
		slog.Error("workerflow failed", "error", err)
		return exitCode
	}
	return exitSuccess
}

func execute(ctx context.Context, args []string, inputJSON string) (int, error) {
	manifestPath := args[0]
	var promptArg string
	hasPrompt := len(args) == 2
	if hasPrompt {
		promptArg = args[1]
	}
	if hasPrompt && inputJSON != "" {
		return exitUserError, fmt.Errorf("cannot pass both a bare prompt and --input-json")
	}

	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return exitUserError, fmt.Errorf("reading manifest: %w", err)
	}
	dir := manifestDir(manifestPath)
	m, err := manifest.Parse(dir, raw)
	if err != nil {
		return exitUserError, err
	}

	if (hasPrompt || inputJSON != "") && !m.AllowCLIInput {
		return exitUserError, fmt.Errorf("manifest does not set allow_cli_input; CLI input is rejected")
	}

	builtins := map[string]toolset.Factory{
		filesystem.Name: filesystem.Factory,
		shell.Name:      shell.Factory,
	}
	project, err := manifest.Link(m, builtins, schemaForBuiltin)
	if err != nil {
		return classify(err), err
	}

	approvalMode := approval.Mode(m.Runtime.ApprovalMode)
	if approvalMode == "" {
		approvalMode = approval.ModePrompt
	}

	runID := uuid.New().String()
	sessionID := uuid.New().String()
	mx := metrics.New("workerflow")
	cfg := execruntime.Config{
		ModelOverride:          m.Entry.Model,
		ApprovalMode:           approvalMode,
		ApprovalCallback:       promptApprovalCallback,
		ReturnPermissionErrors: m.Runtime.ReturnPermissionErrors,
		MaxDepth:               m.Runtime.MaxDepth,
		Verbosity:              m.Runtime.Verbosity,
		ProjectRoot:            dir,
		OnEvent:                logEvent,
		AgentResolver:          resolveAgent,
		RunID:                  runID,
		SessionID:              sessionID,
		RunLog:                 runlogmem.New(),
		Sessions:               sessionmem.New(),
		Logger:                 telemetry.NewClueLogger(),
		Tracer:                 telemetry.NewClueTracer(),
	}
	rt := execruntime.New(cfg, project)
	slog.Info("starting run", "run_id", runID, "entry", project.Entry.EntryName())

	input, err := cliInput(promptArg, inputJSON, hasPrompt)
	if err != nil {
		return exitUserError, err
	}

	entryName := project.Entry.EntryName()
	started := time.Now()
	out, err := rt.RunToCompletion(ctx, input)
	mx.RecordCall(entryName, entryKindLabel(project.Entry.EntryKind()), time.Since(started))
	if err != nil {
		if kind, ok := rerr.KindOf(err); ok {
			mx.RecordCallError(entryName, string(kind))
		}
		if ctx.Err() != nil {
			return exitInterrupted, err
		}
		return classify(err), err
	}

	usage := rt.Usage().Total()
	mx.RecordTokens(entryName, usage.InputTokens, usage.OutputTokens, usage.CacheReadTokens, usage.CacheWriteTokens)

	payload, err := json.Marshal(out)
	if err != nil {
		return exitExecError, fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(payload))
	return exitSuccess, nil
}

func entryKindLabel(k callscope.EntryKind) string {
	if k == callscope.KindFunction {
		return "function"
	}
	return "worker"
}

func manifestDir(path string) string {
	dir := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		dir = path[:idx]
	} else {
		dir = "."
	}
	return dir
}

// schemaForBuiltin resolves input_model_ref for workers that declare none,
// wrapping CLI-supplied input in worker.DefaultArgs. Structured
// input_model_ref values require an extension plugin (spec §6 "Python
// module surface"); the CLI harness only ships the default schema.
func schemaForBuiltin(inputModelRef string) (func() worker.Args, any, error) {
	if strings.TrimSpace(inputModelRef) == "" {
		return func() worker.Args { return worker.DefaultArgs{} }, map[string]any{"type": "object", "properties": map[string]any{"input": map[string]any{"type": "string"}}}, nil
	}
	return nil, nil, fmt.Errorf("input_model_ref %q requires a python_files extension plugin to resolve", inputModelRef)
}

func cliInput(promptArg, inputJSON string, hasPrompt bool) (any, error) {
	switch {
	case inputJSON != "":
		var decoded json.RawMessage
		if err := json.Unmarshal([]byte(inputJSON), &decoded); err != nil {
			return nil, fmt.Errorf("--input-json is not valid JSON: %w", err)
		}
		return []byte(inputJSON), nil
	case hasPrompt:
		return promptArg, nil
	default:
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		return strings.TrimRight(line, "\r\n"), nil
	}
}

func resolveAgent(modelID string) (model.Client, error) {
	provider, name, ok := strings.Cut(modelID, ":")
	if !ok {
		provider, name = inferProvider(modelID), modelID
	}
	switch provider {
	case "anthropic":
		key := os.Getenv("ANTHROPIC_API_KEY")
		if key == "" {
			return nil, rerr.New(rerr.ModelUnresolved, "ANTHROPIC_API_KEY is not set")
		}
		return anthropicagent.NewFromAPIKey(key, name)
	case "openai":
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, rerr.New(rerr.ModelUnresolved, "OPENAI_API_KEY is not set")
		}
		return openaiagent.NewFromAPIKey(key, name)
	default:
		return nil, rerr.New(rerr.ModelUnresolved, fmt.Sprintf("unrecognized model provider for %q", modelID))
	}
}

func inferProvider(modelID string) string {
	switch {
	case strings.HasPrefix(modelID, "claude"):
		return "anthropic"
	case strings.HasPrefix(modelID, "gpt"), strings.HasPrefix(modelID, "o1"), strings.HasPrefix(modelID, "o3"):
		return "openai"
	default:
		return "anthropic"
	}
}

// promptApprovalCallback renders an approval request on stderr and blocks on
// a stdin yes/no answer, the default harness behavior for approval_mode=prompt.
func promptApprovalCallback(ctx context.Context, req approval.Request) (approval.Decision, error) {
	fmt.Fprintf(os.Stderr, "approve %s? [y/N] ", req.ToolName)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	if line == "y" || line == "yes" {
		return approval.Approved(approval.RememberSession), nil
	}
	return approval.Denied("declined at CLI prompt"), nil
}

func logEvent(ctx context.Context, ev events.Event) {
	fields := []any{"type", string(ev.Type()), "invocation", ev.InvocationName(), "depth", ev.Depth(), "seq", ev.SeqNo()}
	switch e := ev.(type) {
	case *events.UserMessageEvent:
		fields = append(fields, "prompt", e.Prompt)
	case *events.TextDeltaEvent:
		fields = append(fields, "delta", e.Delta)
	case *events.ToolCallEvent:
		fields = append(fields, "tool", e.ToolName, "call_id", e.CallID, "args", e.Args)
	case *events.ToolResultEvent:
		fields = append(fields, "tool", e.ToolName, "call_id", e.CallID, "duration_ms", e.DurationMS, "is_error", e.IsError)
	case *events.StatusEvent:
		fields = append(fields, "message", e.Message)
	case *events.ErrorEvent:
		fields = append(fields, "kind", e.Kind, "message", e.Message)
	}
	slog.Info("event", fields...)
}

// classify maps a RuntimeError's Kind to the user-error/execution-error exit
// code split the external interface specifies; ManifestInvalid and
// InputValidation are caller mistakes, everything else happens mid-run.
func classify(err error) int {
	kind, ok := rerr.KindOf(err)
	if !ok {
		return exitExecError
	}
	switch kind {
	case rerr.ManifestInvalid, rerr.InputValidation:
		return exitUserError
	default:
		return exitExecError
	}
}

