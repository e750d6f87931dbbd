// Package ranking holds the provider-ranking state for a Part B task.
//
// An Assignment is a partial mapping from provider name to rank. It is
// injective at every observable instant: no two providers ever hold the
// same rank. The only mutation is Pick, which implements the
// toggle / move / auto-complete rules the ranking page exposes.
package ranking

import (
	"fmt"
	"sync"
)

// Unranked is the rank value of a provider with no assignment.
const Unranked = 0

// Assignment maps each provider of a fixed set to a rank in 1..N,
// where N is the number of providers. The mapping may be incomplete
// but never contains a duplicate rank.
//
// Safe for concurrent use: the ranking page fires one request per pill
// click and rapid clicks overlap.
type Assignment struct {
	providers []string

	mu    sync.Mutex
	ranks map[string]int
}

// New creates an empty Assignment over the given provider set.
// The provider order is preserved for rendering.
func New(providers []string) *Assignment {
	ps := make([]string, len(providers))
	copy(ps, providers)
	return &Assignment{
		providers: ps,
		ranks:     make(map[string]int, len(ps)),
	}
}

// Providers returns the fixed provider set in display order.
func (a *Assignment) Providers() []string {
	ps := make([]string, len(a.providers))
	copy(ps, a.providers)
	return ps
}

// Size returns the cardinality of the provider set, which is also the
// highest valid rank.
func (a *Assignment) Size() int { return len(a.providers) }

// RankOf returns the rank held by provider, or Unranked.
func (a *Assignment) RankOf(provider string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ranks[provider]
}

// Ranks returns a copy of the current provider→rank mapping.
// Unassigned providers are absent.
func (a *Assignment) Ranks() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int, len(a.ranks))
	for p, r := range a.ranks {
		out[p] = r
	}
	return out
}

// Pick applies one user interaction: provider's pill for rank was clicked.
//
// Rules, in order:
//  1. Same rank again: toggle the provider back to unranked.
//  2. Otherwise the rank moves here, unassigning whichever provider
//     held it before (at most one, by the injectivity invariant).
//  3. If exactly one provider and exactly one rank remain afterwards,
//     the pairing is forced and applied automatically.
//
// Unknown providers and out-of-range ranks are the caller's contract
// violation; Pick ignores them rather than corrupting state.
func (a *Assignment) Pick(provider string, rank int) {
	if rank < 1 || rank > len(a.providers) || !a.knows(provider) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ranks[provider] == rank {
		delete(a.ranks, provider)
		return
	}

	for p, r := range a.ranks {
		if r == rank {
			delete(a.ranks, p)
			break
		}
	}
	a.ranks[provider] = rank

	a.autoComplete()
}

// autoComplete assigns the last unused rank to the last unassigned
// provider when both are unique, sparing the user a redundant click.
func (a *Assignment) autoComplete() {
	if len(a.ranks) != len(a.providers)-1 {
		return
	}

	var freeProvider string
	for _, p := range a.providers {
		if _, ok := a.ranks[p]; !ok {
			freeProvider = p
			break
		}
	}

	used := make(map[int]bool, len(a.ranks))
	for _, r := range a.ranks {
		used[r] = true
	}
	for r := 1; r <= len(a.providers); r++ {
		if !used[r] {
			a.ranks[freeProvider] = r
			return
		}
	}
}

// ChosenCount returns how many providers currently hold a rank.
func (a *Assignment) ChosenCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.ranks)
}

// Complete reports whether every provider holds a rank, i.e. the
// mapping is a total bijection and the submission gate opens.
func (a *Assignment) Complete() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.completeLocked()
}

func (a *Assignment) completeLocked() bool {
	return len(a.ranks) == len(a.providers)
}

// Progress returns the caption shown above the submit control.
func (a *Assignment) Progress() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.progressLocked()
}

func (a *Assignment) progressLocked() string {
	return fmt.Sprintf("Chosen %d/%d ranks (no ties).", len(a.ranks), len(a.providers))
}

func (a *Assignment) knows(provider string) bool {
	for _, p := range a.providers {
		if p == provider {
			return true
		}
	}
	return false
}
