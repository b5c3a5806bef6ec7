package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/relayforge/workerflow/runtime/agent/callscope"
	"github.com/relayforge/workerflow/runtime/agent/entryfn"
	"github.com/relayforge/workerflow/runtime/agent/extload"
	"github.com/relayforge/workerflow/runtime/agent/rerr"
	"github.com/relayforge/workerflow/runtime/agent/toolset"
	"github.com/relayforge/workerflow/runtime/agent/worker"
	"github.com/relayforge/workerflow/runtime/agent/workertool"
)

// Project is the fully resolved output of linking a Manifest: the selected
// Entry, every resolved Worker and EntryFunction, and the toolset registry
// (built-ins merged with worker-as-tool bridges and Python-plugin toolsets).
type Project struct {
	Manifest *Manifest
	Entry    callscope.Entry
	Workers  map[string]*worker.Worker
	Funcs    map[string]*entryfn.EntryFunction
	Toolsets map[string]toolset.Factory
}

// Link resolves m into a Project. builtins are merged into the toolset
// registry before Python-file and worker-as-tool toolsets are added; name
// collisions between any two sources fail linking (spec §4.1 step 1).
func Link(m *Manifest, builtins map[string]toolset.Factory, schemaFor func(inputModelRef string) (func() worker.Args, any, error)) (*Project, error) {
	registry := make(map[string]toolset.Factory, len(builtins))
	for name, f := range builtins {
		registry[name] = f
	}

	workers := make(map[string]*worker.Worker, len(m.WorkerFiles))
	workerSchemas := make(map[string]any, len(m.WorkerFiles))
	for _, rel := range m.WorkerFiles {
		path := filepath.Join(m.Dir, rel)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, rerr.FromError(rerr.ManifestInvalid, fmt.Sprintf("reading worker file %q", rel), err)
		}
		fm, body, err := worker.ParseFile(path, data)
		if err != nil {
			return nil, rerr.FromError(rerr.ManifestInvalid, "parsing worker file", err)
		}
		if _, dup := workers[fm.Name]; dup {
			return nil, rerr.New(rerr.ManifestInvalid, fmt.Sprintf("duplicate worker name %q", fm.Name))
		}
		schemaFn, schema, err := schemaFor(fm.InputModelRef)
		if err != nil {
			return nil, rerr.FromError(rerr.ManifestInvalid, fmt.Sprintf("resolving input_model_ref for worker %q", fm.Name), err)
		}
		w, err := worker.New(worker.Definition{Path: path, Frontmatter: fm, Body: body}, schemaFn)
		if err != nil {
			return nil, rerr.FromError(rerr.ModelUnresolved, "resolving worker model", err)
		}
		workers[fm.Name] = w
		workerSchemas[fm.Name] = schema
	}

	funcs := make(map[string]*entryfn.EntryFunction, len(m.PythonFiles))
	for _, rel := range m.PythonFiles {
		path := filepath.Join(m.Dir, rel)
		discovered, err := extload.Load(path)
		if err != nil {
			return nil, rerr.FromError(rerr.ManifestInvalid, fmt.Sprintf("loading extension plugin %q", rel), err)
		}
		for name, fn := range discovered.Entries {
			if _, dup := funcs[name]; dup {
				return nil, rerr.New(rerr.ManifestInvalid, fmt.Sprintf("duplicate entry function name %q", name))
			}
			funcs[name] = fn
		}
		for name, f := range discovered.Toolsets {
			if _, dup := registry[name]; dup {
				return nil, rerr.New(rerr.ManifestInvalid, fmt.Sprintf("toolset name %q already registered", name))
			}
			registry[name] = f
		}
	}

	// Validate every worker's declared toolset references resolve either to
	// a registered toolset or another worker's name (worker-as-tool).
	referenced := make(map[string]bool)
	names := make([]string, 0, len(workers))
	for name := range workers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := registry[name]; ok {
			return nil, rerr.New(rerr.ManifestInvalid, fmt.Sprintf("worker name %q collides with a registered toolset", name))
		}
		if _, ok := funcs[name]; ok {
			return nil, rerr.New(rerr.ManifestInvalid, fmt.Sprintf("worker name %q collides with an entry function", name))
		}
	}
	for _, name := range names {
		w := workers[name]
		for _, ts := range w.ToolsetSpecs() {
			if _, ok := registry[ts.Name]; ok {
				continue
			}
			target, ok := workers[ts.Name]
			if !ok {
				return nil, rerr.New(rerr.ManifestInvalid, fmt.Sprintf("worker %q references unresolved toolset %q", name, ts.Name))
			}
			referenced[ts.Name] = true
			registry[ts.Name] = workertool.Factory(target, workerSchemas[ts.Name])
		}
	}

	entryName := m.Entry.Name
	var entry callscope.Entry
	matches := 0
	if w, ok := workers[entryName]; ok {
		entry = callscope.WorkerEntry{W: w}
		matches++
	}
	if fn, ok := funcs[entryName]; ok {
		entry = callscope.FunctionEntry{F: fn}
		matches++
	}
	if matches == 0 {
		return nil, rerr.New(rerr.ManifestInvalid, fmt.Sprintf("entry %q does not resolve to any worker or entry function", entryName))
	}
	if matches > 1 {
		return nil, rerr.New(rerr.ManifestInvalid, fmt.Sprintf("entry name %q is ambiguous: matches both a worker and an entry function", entryName))
	}

	return &Project{Manifest: m, Entry: entry, Workers: workers, Funcs: funcs, Toolsets: registry}, nil
}
