//go:build property
// +build property

// Property-based tests for the assignment invariants.
package ranking_test

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ukhalilov/ai-survey-app/pkg/ranking"
)

type pickCall struct {
	Provider int
	Rank     int
}

// TestAssignmentInjectivity verifies that no pick sequence can ever
// produce two providers holding the same rank.
func TestAssignmentInjectivity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	providers := []string{"chatgpt", "google", "stability", "bfl"}

	genPick := gen.Struct(reflect.TypeOf(pickCall{}), map[string]gopter.Gen{
		"Provider": gen.IntRange(0, len(providers)-1),
		"Rank":     gen.IntRange(1, len(providers)),
	})

	properties.Property("assignment stays injective under any pick sequence", prop.ForAll(
		func(calls []pickCall) bool {
			a := ranking.New(providers)
			for _, c := range calls {
				a.Pick(providers[c.Provider], c.Rank)

				seen := make(map[int]bool)
				for _, r := range a.Ranks() {
					if r < 1 || r > len(providers) {
						return false
					}
					if seen[r] {
						return false
					}
					seen[r] = true
				}
			}
			return true
		},
		gen.SliceOf(genPick),
	))

	properties.Property("chosen count matches the mapping after any pick sequence", prop.ForAll(
		func(calls []pickCall) bool {
			a := ranking.New(providers)
			for _, c := range calls {
				a.Pick(providers[c.Provider], c.Rank)
			}
			return a.ChosenCount() == len(a.Ranks()) &&
				a.Complete() == (a.ChosenCount() == len(providers))
		},
		gen.SliceOf(genPick),
	))

	properties.TestingRun(t)
}
