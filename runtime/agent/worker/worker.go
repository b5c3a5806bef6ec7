package worker

import (
	"fmt"
	"os"
	"strings"
)

// ModelEnvFallback is the environment variable consulted when a worker's
// frontmatter omits `model` (spec §6).
const ModelEnvFallback = "LLM_DO_MODEL"

// ToolsetSpec is a declarative reference to a toolset by name, as written in
// a worker's `toolsets:` frontmatter list. The linker resolves the name
// against the project's toolset registry at construction time; Worker never
// holds a live Toolset instance (those are per-call).
type ToolsetSpec struct {
	Name string
	Args map[string]any
}

// Attachment is one file reference extracted from a WorkerArgs prompt spec,
// gated through the attachment toolset before a turn runs (spec §4.8).
type Attachment struct {
	Path string
}

// PromptSpec is the text and attachments WorkerArgs.PromptSpec derives from
// a concrete input value.
type PromptSpec struct {
	Text        string
	Attachments []Attachment
}

// Args is the base contract for worker inputs (spec "WorkerArgs"). All
// worker inputs are strict instances of an Args implementation; the only
// place a bare string is accepted is the CLI boundary, which wraps it in
// DefaultArgs.
type Args interface {
	PromptSpec() PromptSpec
}

// DefaultArgs is the strict WorkerArgs subclass the CLI boundary wraps a raw
// prompt string in. It has no attachments.
type DefaultArgs struct {
	Input string
}

// PromptSpec implements Args.
func (a DefaultArgs) PromptSpec() PromptSpec { return PromptSpec{Text: a.Input} }

// Definition is a parsed `.worker` file: frontmatter plus instruction body,
// not yet resolved against the project's toolset/model registries.
type Definition struct {
	Path        string
	Frontmatter Frontmatter
	Body        string
}

// Worker is a resolved, callable entry variant (spec "Worker"). Created once
// by the linker and shared, read-only, across every CallScope that invokes
// it; Model is immutable after New returns.
type Worker struct {
	name         string
	model        string
	instruction  string
	toolsets     []ToolsetSpec
	description  string
	schemaIn     func() Args // constructs a zero Args value for schema derivation
	entry        bool
}

// New constructs a Worker from a Definition, resolving the model from
// frontmatter or the LLM_DO_MODEL environment fallback. It fails with a
// descriptive error (to be wrapped as ModelUnresolved by the caller) when
// neither is present.
func New(def Definition, schemaIn func() Args) (*Worker, error) {
	model := strings.TrimSpace(def.Frontmatter.Model)
	if model == "" {
		model = strings.TrimSpace(os.Getenv(ModelEnvFallback))
	}
	if model == "" {
		return nil, fmt.Errorf("worker %q: no model in frontmatter and %s is unset", def.Frontmatter.Name, ModelEnvFallback)
	}
	specs := make([]ToolsetSpec, 0, len(def.Frontmatter.Toolsets))
	for _, name := range def.Frontmatter.Toolsets {
		specs = append(specs, ToolsetSpec{Name: name})
	}
	if schemaIn == nil {
		schemaIn = func() Args { return DefaultArgs{} }
	}
	return &Worker{
		name:        def.Frontmatter.Name,
		model:       model,
		instruction: def.Body,
		toolsets:    specs,
		description: def.Frontmatter.Description,
		schemaIn:    schemaIn,
		entry:       def.Frontmatter.Entry,
	}, nil
}

// Name returns the worker's unique name.
func (w *Worker) Name() string { return w.name }

// Model returns the resolved, immutable model identifier.
func (w *Worker) Model() string { return w.model }

// Instruction returns the worker's instruction prompt body.
func (w *Worker) Instruction() string { return w.instruction }

// ToolsetSpecs returns the toolset references declared by this worker, in
// frontmatter declaration order.
func (w *Worker) ToolsetSpecs() []ToolsetSpec { return w.toolsets }

// Description returns the worker's optional description, used for
// worker-as-tool schemas.
func (w *Worker) Description() string { return w.description }

// IsEntryCandidate reports whether the worker's frontmatter marked it as a
// candidate entry (`entry: true`).
func (w *Worker) IsEntryCandidate() bool { return w.entry }

// NewArgs constructs a zero-value Args instance matching this worker's
// input schema, for JSON decoding or schema derivation.
func (w *Worker) NewArgs() Args { return w.schemaIn() }
