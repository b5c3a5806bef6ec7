// Package filesystem provides a reference Toolset exposing read/write/list
// operations scoped to a project root, the "filesystem" collaborator named
// by the runtime's tool-plane examples. Reads are declared pre-approved via
// ApprovalConfig; write_file has no entry there, so the approval Policy
// decides it.
package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/relayforge/workerflow/runtime/agent/toolset"
)

// Toolset exposes read_file, write_file, and list_dir, all confined to
// ProjectRoot; paths escaping the root are rejected.
type Toolset struct {
	toolset.BaseToolset
	root string
}

// Name is the toolset's registration name in a project manifest.
const Name = "filesystem"

// Factory constructs a filesystem Toolset rooted at FactoryContext.ProjectRoot.
func Factory(ctx context.Context, fc toolset.FactoryContext) (toolset.Toolset, error) {
	root := fc.ProjectRoot
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("filesystem: resolving project root: %w", err)
	}
	return &Toolset{root: abs}, nil
}

// ApprovalConfig implements toolset.ApprovalConfigurable: reads are
// pre-approved; write_file is left to the Policy's session cache and mode.
func (t *Toolset) ApprovalConfig() map[string]toolset.Config {
	return map[string]toolset.Config{
		"filesystem.read_file": {PreApproved: true},
		"filesystem.list_dir":  {PreApproved: true},
	}
}

// Tools implements toolset.Toolset.
func (t *Toolset) Tools() []toolset.Tool {
	return []toolset.Tool{
		{
			Name:        "filesystem.read_file",
			Description: "Read a UTF-8 text file relative to the project root.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": map[string]any{"type": "string"}},
				"required":   []string{"path"},
			},
			Call: t.readFile,
		},
		{
			Name:        "filesystem.write_file",
			Description: "Write UTF-8 text content to a file relative to the project root, creating parent directories as needed.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path":    map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
				},
				"required": []string{"path", "content"},
			},
			Call: t.writeFile,
		},
		{
			Name:        "filesystem.list_dir",
			Description: "List entries of a directory relative to the project root.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"path": map[string]any{"type": "string"}},
			},
			Call: t.listDir,
		},
	}
}

func (t *Toolset) resolve(rel string) (string, error) {
	abs := filepath.Join(t.root, rel)
	if abs != t.root && !strings.HasPrefix(abs, t.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("filesystem: path %q escapes project root", rel)
	}
	return abs, nil
}

type pathArgs struct {
	Path string `json:"path"`
}

func (t *Toolset) readFile(_ context.Context, raw json.RawMessage) (string, error) {
	var args pathArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("filesystem.read_file: decoding args: %w", err)
	}
	abs, err := t.resolve(args.Path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("filesystem.read_file: %w", err)
	}
	return string(data), nil
}

type writeArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *Toolset) writeFile(_ context.Context, raw json.RawMessage) (string, error) {
	var args writeArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("filesystem.write_file: decoding args: %w", err)
	}
	abs, err := t.resolve(args.Path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("filesystem.write_file: %w", err)
	}
	if err := os.WriteFile(abs, []byte(args.Content), 0o644); err != nil {
		return "", fmt.Errorf("filesystem.write_file: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(args.Content), args.Path), nil
}

func (t *Toolset) listDir(_ context.Context, raw json.RawMessage) (string, error) {
	var args pathArgs
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("filesystem.list_dir: decoding args: %w", err)
		}
	}
	abs, err := t.resolve(args.Path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", fmt.Errorf("filesystem.list_dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	out, err := json.Marshal(names)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
