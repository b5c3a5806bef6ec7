package worker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayforge/workerflow/runtime/agent/worker"
)

const validFile = `---
name: greeter
model: claude-3-haiku
toolsets:
  - echo
  - search
entry: true
description: greets the caller
---
You are a friendly greeter.
`

func TestParseFileSplitsFrontmatterAndBody(t *testing.T) {
	fm, body, err := worker.ParseFile("greeter.worker", []byte(validFile))
	require.NoError(t, err)
	require.Equal(t, "greeter", fm.Name)
	require.Equal(t, "claude-3-haiku", fm.Model)
	require.Equal(t, []string{"echo", "search"}, fm.Toolsets)
	require.True(t, fm.Entry)
	require.Equal(t, "You are a friendly greeter.\n", body)
}

func TestParseFileRequiresDelimiter(t *testing.T) {
	_, _, err := worker.ParseFile("bad.worker", []byte("name: greeter\n"))
	require.Error(t, err)
}

func TestParseFileRequiresClosingDelimiter(t *testing.T) {
	_, _, err := worker.ParseFile("bad.worker", []byte("---\nname: greeter\n"))
	require.Error(t, err)
}

func TestParseFileRequiresName(t *testing.T) {
	_, _, err := worker.ParseFile("bad.worker", []byte("---\nmodel: x\n---\nbody\n"))
	require.Error(t, err)
}

func TestNewResolvesModelFromFrontmatter(t *testing.T) {
	fm, body, err := worker.ParseFile("greeter.worker", []byte(validFile))
	require.NoError(t, err)

	w, err := worker.New(worker.Definition{Path: "greeter.worker", Frontmatter: fm, Body: body}, nil)
	require.NoError(t, err)
	require.Equal(t, "greeter", w.Name())
	require.Equal(t, "claude-3-haiku", w.Model())
	require.True(t, w.IsEntryCandidate())
	require.Equal(t, []worker.ToolsetSpec{{Name: "echo"}, {Name: "search"}}, w.ToolsetSpecs())
	require.IsType(t, worker.DefaultArgs{}, w.NewArgs())
}

func TestNewResolvesModelFromEnvFallback(t *testing.T) {
	t.Setenv(worker.ModelEnvFallback, "claude-env-default")
	fm, body, err := worker.ParseFile("noModel.worker", []byte("---\nname: noModel\n---\nbody\n"))
	require.NoError(t, err)

	w, err := worker.New(worker.Definition{Path: "noModel.worker", Frontmatter: fm, Body: body}, nil)
	require.NoError(t, err)
	require.Equal(t, "claude-env-default", w.Model())
}

func TestNewFailsWithoutModel(t *testing.T) {
	t.Setenv(worker.ModelEnvFallback, "")
	fm, body, err := worker.ParseFile("noModel.worker", []byte("---\nname: noModel\n---\nbody\n"))
	require.NoError(t, err)

	_, err = worker.New(worker.Definition{Path: "noModel.worker", Frontmatter: fm, Body: body}, nil)
	require.Error(t, err)
}

func TestDefaultArgsPromptSpecHasNoAttachments(t *testing.T) {
	args := worker.DefaultArgs{Input: "hello"}
	spec := args.PromptSpec()
	require.Equal(t, "hello", spec.Text)
	require.Empty(t, spec.Attachments)
}
