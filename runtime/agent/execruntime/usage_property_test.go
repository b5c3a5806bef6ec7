package execruntime

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/relayforge/workerflow/runtime/agent/model"
)

type usageRecording struct {
	invocationName string
	depth          int
	usage          model.TokenUsage
}

func genUsageRecording() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf("greeter", "researcher", "rec"),
		gen.IntRange(0, 4),
		gen.IntRange(0, 1000),
		gen.IntRange(0, 1000),
	).Map(func(vals []any) usageRecording {
		input := vals[2].(int)
		output := vals[3].(int)
		return usageRecording{
			invocationName: vals[0].(string),
			depth:          vals[1].(int),
			usage: model.TokenUsage{
				InputTokens:  input,
				OutputTokens: output,
				TotalTokens:  input + output,
			},
		}
	})
}

func genUsageRecordings() gopter.Gen {
	return gen.SliceOf(genUsageRecording())
}

// TestUsageCollectorTotalIsAdditive verifies testable property 10: total
// usage reported by a Runtime equals the sum of every per-call usage
// recorded against it, regardless of how the calls are interleaved across
// invocation names and depths.
func TestUsageCollectorTotalIsAdditive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("collector total equals the sum of every recorded usage", prop.ForAll(
		func(recordings []usageRecording) bool {
			collector := newUsageCollector()

			var wantInput, wantOutput, wantTotal int
			for _, r := range recordings {
				collector.Record(r.invocationName, r.depth, r.usage)
				wantInput += r.usage.InputTokens
				wantOutput += r.usage.OutputTokens
				wantTotal += r.usage.TotalTokens
			}

			got := collector.Total()
			if got.InputTokens != wantInput {
				return false
			}
			if got.OutputTokens != wantOutput {
				return false
			}
			if got.TotalTokens != wantTotal {
				return false
			}
			return true
		},
		genUsageRecordings(),
	))

	properties.TestingRun(t)
}

// TestUsageCollectorPerKeyBreakdownIsAdditive verifies that the per-
// (invocation, depth) breakdown tracked internally by byKey is additive
// within each key, independent of the Total aggregate.
func TestUsageCollectorPerKeyBreakdownIsAdditive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("per-key input token sum matches recordings for that key", prop.ForAll(
		func(recordings []usageRecording) bool {
			collector := newUsageCollector()
			want := make(map[string]int)
			for _, r := range recordings {
				collector.Record(r.invocationName, r.depth, r.usage)
				key := fmt.Sprintf("%s@%d", r.invocationName, r.depth)
				want[key] += r.usage.InputTokens
			}

			collector.mu.Lock()
			defer collector.mu.Unlock()
			for key, wantInput := range want {
				if collector.byKey[key].InputTokens != wantInput {
					return false
				}
			}
			return true
		},
		genUsageRecordings(),
	))

	properties.TestingRun(t)
}
