// Package shell provides a reference Toolset exposing a single
// run_command tool scoped to a project root, the "shell" collaborator
// named by the runtime's tool-plane examples. Every call is blocked from
// pre-approval so it always routes through the approval Policy.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/relayforge/workerflow/runtime/agent/toolset"
)

// Name is the toolset's registration name in a project manifest.
const Name = "shell"

// DefaultTimeout bounds a run_command invocation when args.TimeoutSeconds is
// unset or non-positive.
const DefaultTimeout = 30 * time.Second

// Toolset exposes run_command, executed with the project root as its
// working directory.
type Toolset struct {
	toolset.BaseToolset
	root string
}

// Factory constructs a shell Toolset rooted at FactoryContext.ProjectRoot.
func Factory(ctx context.Context, fc toolset.FactoryContext) (toolset.Toolset, error) {
	root := fc.ProjectRoot
	if root == "" {
		root = "."
	}
	return &Toolset{root: root}, nil
}

// ApprovalConfig implements toolset.ApprovalConfigurable: run_command is
// never pre-approved or auto-blocked; it always consults the Policy.
func (t *Toolset) ApprovalConfig() map[string]toolset.Config {
	return map[string]toolset.Config{"shell.run_command": {}}
}

// Tools implements toolset.Toolset.
func (t *Toolset) Tools() []toolset.Tool {
	return []toolset.Tool{{
		Name:        "shell.run_command",
		Description: "Run a shell command in the project root and capture combined stdout/stderr.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command":         map[string]any{"type": "string"},
				"timeout_seconds": map[string]any{"type": "integer"},
			},
			"required": []string{"command"},
		},
		Call: t.run,
	}}
}

type runArgs struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (t *Toolset) run(ctx context.Context, raw json.RawMessage) (string, error) {
	var args runArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("shell.run_command: decoding args: %w", err)
	}
	if args.Command == "" {
		return "", fmt.Errorf("shell.run_command: command is required")
	}
	timeout := DefaultTimeout
	if args.TimeoutSeconds > 0 {
		timeout = time.Duration(args.TimeoutSeconds) * time.Second
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", args.Command)
	cmd.Dir = t.root
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.String(), fmt.Errorf("shell.run_command: %w", err)
	}
	return out.String(), nil
}
