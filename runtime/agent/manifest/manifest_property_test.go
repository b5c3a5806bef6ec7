package manifest_test

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"

	"github.com/relayforge/workerflow/runtime/agent/manifest"
)

func genNonEmptyAlphaString() gopter.Gen {
	return gen.IntRange(1, 16).FlatMap(func(length any) gopter.Gen {
		return gen.SliceOfN(length.(int), gen.AlphaChar()).Map(func(chars []rune) string {
			return string(chars)
		})
	}, reflect.TypeOf(""))
}

func genWorkerFileNames() gopter.Gen {
	return gen.IntRange(1, 5).FlatMap(func(n any) gopter.Gen {
		return gen.SliceOfN(n.(int), genNonEmptyAlphaString()).Map(func(names []string) []string {
			out := make([]string, len(names))
			for i, name := range names {
				out[i] = name + ".worker"
			}
			return out
		})
	}, reflect.TypeOf([]string{}))
}

// TestParseIsStableAcrossARoundTrip verifies testable property 9: a valid
// manifest serialized and reloaded yields identical Entry resolution and an
// identical worker_files dependency order.
func TestParseIsStableAcrossARoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("reparsing a manifest's own JSON yields the same entry and worker file order", prop.ForAll(
		func(entryName string, workerFiles []string) bool {
			raw, err := json.Marshal(map[string]any{
				"version":      1,
				"entry":        map[string]any{"name": entryName},
				"worker_files": workerFiles,
			})
			if err != nil {
				return false
			}

			first, err := manifest.Parse("/proj", raw)
			if err != nil {
				return false
			}

			reencoded, err := json.Marshal(first)
			if err != nil {
				return false
			}
			second, err := manifest.Parse("/proj", reencoded)
			if err != nil {
				return false
			}

			if first.Entry.Name != second.Entry.Name {
				return false
			}
			if len(first.WorkerFiles) != len(second.WorkerFiles) {
				return false
			}
			for i := range first.WorkerFiles {
				if first.WorkerFiles[i] != second.WorkerFiles[i] {
					return false
				}
			}
			return true
		},
		genNonEmptyAlphaString(),
		genWorkerFileNames(),
	))

	properties.TestingRun(t)
}

func TestParseRoundTripPreservesDirAcrossReloads(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"version":      1,
		"entry":        map[string]any{"name": "greeter"},
		"worker_files": []string{"greeter.worker"},
	})
	require.NoError(t, err)

	m, err := manifest.Parse("/proj/sub", raw)
	require.NoError(t, err)
	require.Equal(t, "/proj/sub", m.Dir)
}
