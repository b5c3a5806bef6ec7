// Package manifest implements the project manifest parser and linker (spec
// component C1): strict schema validation, worker/Python file loading, and
// resolution of names into a single executable Entry graph.
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/relayforge/workerflow/runtime/agent/rerr"
)

// RuntimeCfg is the `runtime` block of a manifest (spec §3).
type RuntimeCfg struct {
	ApprovalMode           string `json:"approval_mode,omitempty"`
	MaxDepth               int    `json:"max_depth,omitempty"`
	Verbosity              int    `json:"verbosity,omitempty"`
	ReturnPermissionErrors bool   `json:"return_permission_errors,omitempty"`
}

// EntryRef is the `entry` block naming the selected entry and optional
// default model/input.
type EntryRef struct {
	Name  string          `json:"name"`
	Model string          `json:"model,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// Manifest is the parsed, strictly validated project manifest (spec
// "Manifest"). Unknown top-level keys are rejected before this struct is
// populated.
type Manifest struct {
	Version       int        `json:"version"`
	Runtime       RuntimeCfg `json:"runtime"`
	Entry         EntryRef   `json:"entry"`
	WorkerFiles   []string   `json:"worker_files"`
	PythonFiles   []string   `json:"python_files,omitempty"`
	AllowCLIInput bool       `json:"allow_cli_input"`

	// Dir is the directory the manifest was loaded from, as passed to Parse
	// (it may be relative); every path in WorkerFiles/PythonFiles resolves
	// relative to it.
	Dir string `json:"-"`
}

const manifestSchemaJSON = `{
	"type": "object",
	"required": ["version", "entry", "worker_files"],
	"additionalProperties": false,
	"properties": {
		"version": {"const": 1},
		"runtime": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"approval_mode": {"enum": ["prompt", "approve_all", "reject_all"]},
				"max_depth": {"type": "integer", "minimum": 1},
				"verbosity": {"type": "integer", "minimum": 0, "maximum": 2},
				"return_permission_errors": {"type": "boolean"}
			}
		},
		"entry": {
			"type": "object",
			"required": ["name"],
			"additionalProperties": false,
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"model": {"type": "string"},
				"input": {}
			}
		},
		"worker_files": {"type": "array", "items": {"type": "string"}},
		"python_files": {"type": "array", "items": {"type": "string"}},
		"allow_cli_input": {"type": "boolean"}
	}
}`

var compiledSchema *jsonschema.Schema

func schema() (*jsonschema.Schema, error) {
	if compiledSchema != nil {
		return compiledSchema, nil
	}
	c := jsonschema.NewCompiler()
	var doc any
	if err := json.Unmarshal([]byte(manifestSchemaJSON), &doc); err != nil {
		return nil, err
	}
	if err := c.AddResource("manifest.schema.json", doc); err != nil {
		return nil, err
	}
	compiled, err := c.Compile("manifest.schema.json")
	if err != nil {
		return nil, err
	}
	compiledSchema = compiled
	return compiled, nil
}

// Parse strictly validates and decodes raw manifest JSON, rooted at dir.
func Parse(dir string, raw []byte) (*Manifest, error) {
	s, err := schema()
	if err != nil {
		return nil, rerr.FromError(rerr.ManifestInvalid, "compiling manifest schema", err)
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, rerr.FromError(rerr.ManifestInvalid, "manifest is not valid JSON", err)
	}
	if err := s.Validate(instance); err != nil {
		return nil, rerr.FromError(rerr.ManifestInvalid, "manifest failed schema validation", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, rerr.FromError(rerr.ManifestInvalid, "decoding manifest", err)
	}
	m.Dir = dir
	if m.Version != 1 {
		return nil, rerr.New(rerr.ManifestInvalid, fmt.Sprintf("unsupported manifest version %d", m.Version))
	}
	if strings.TrimSpace(m.Entry.Name) == "" {
		return nil, rerr.New(rerr.ManifestInvalid, "entry.name is required")
	}
	if len(m.WorkerFiles) == 0 && len(m.PythonFiles) == 0 {
		return nil, rerr.New(rerr.ManifestInvalid, "manifest must declare at least one worker_files or python_files entry")
	}
	return &m, nil
}
