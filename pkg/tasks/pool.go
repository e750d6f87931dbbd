// Package tasks builds the three survey task pools from the provider
// manifests: single images for Part A, cross-provider ranking sets for
// Part B, and per-provider seed-variation grids for Part C.
package tasks

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ukhalilov/ai-survey-app/pkg/manifest"
)

// BKey identifies a Part B ranking set: the same prompt and seed
// generated by every provider.
type BKey struct {
	CategoryID string
	PromptID   string
	SeedLabel  int
}

// CSet is a Part C diversity grid: one provider, one prompt, all
// configured seed labels, ordered by seed label.
type CSet struct {
	Provider   string
	CategoryID string
	PromptID   string
	Rows       []manifest.Row
}

// CKey identifies a CSet for seen-tracking.
func (c CSet) Key() string {
	return c.Provider + "|" + c.CategoryID + "|" + c.PromptID
}

// Pool holds the current task pools. It is reloadable at runtime
// (admin "Reload Pools"); readers take consistent snapshots.
type Pool struct {
	providerDirs map[string]string
	seedLabels   []int
	filter       manifest.Filter

	mu           sync.RWMutex
	aItems       []manifest.Row
	bSets        map[BKey]map[string]manifest.Row
	bKeys        []BKey
	cSets        []CSet
	allowedBases []string
}

// NewPool creates an empty pool for the given provider roots. Call
// Reload to populate it.
func NewPool(providerDirs map[string]string, seedLabels []int, filter manifest.Filter) *Pool {
	return &Pool{
		providerDirs: providerDirs,
		seedLabels:   seedLabels,
		filter:       filter,
		bSets:        make(map[BKey]map[string]manifest.Row),
	}
}

// Providers returns the configured provider names, sorted.
func (p *Pool) Providers() []string {
	out := make([]string, 0, len(p.providerDirs))
	for prov := range p.providerDirs {
		out = append(out, prov)
	}
	sort.Strings(out)
	return out
}

// Reload rebuilds every pool from the latest manifests on disk.
func (p *Pool) Reload() error {
	perProvider := make(map[string][]manifest.Row, len(p.providerDirs))
	var aItems []manifest.Row
	var bases []string

	for prov, root := range p.providerDirs {
		rows, err := manifest.ReadLatest(prov, root, p.filter)
		if err != nil {
			return fmt.Errorf("load manifest for %s: %w", prov, err)
		}
		perProvider[prov] = rows
		aItems = append(aItems, rows...)

		abs, err := filepath.Abs(root)
		if err != nil {
			abs = root
		}
		bases = append(bases, abs)
	}

	bSets, bKeys := buildBSets(perProvider, p.Providers())
	cSets := buildCSets(perProvider, p.seedLabels)

	p.mu.Lock()
	p.aItems = aItems
	p.bSets = bSets
	p.bKeys = bKeys
	p.cSets = cSets
	p.allowedBases = bases
	p.mu.Unlock()

	slog.Info("task pools rebuilt",
		"a_images", len(aItems), "b_sets", len(bKeys), "c_grids", len(cSets))
	return nil
}

// buildBSets keeps the (category, prompt, seed) keys present across
// every provider, taking the newest row per provider on duplicates.
func buildBSets(perProvider map[string][]manifest.Row, providers []string) (map[BKey]map[string]manifest.Row, []BKey) {
	index := make(map[string]map[BKey]manifest.Row, len(providers))
	for prov, rows := range perProvider {
		d := make(map[BKey]manifest.Row)
		for _, r := range rows {
			key := BKey{r.CategoryID, r.PromptID, r.SeedLabel}
			if keep, ok := d[key]; !ok || r.CompletedUTC > keep.CompletedUTC {
				d[key] = r
			}
		}
		index[prov] = d
	}

	sets := make(map[BKey]map[string]manifest.Row)
	var keys []BKey
	if len(providers) == 0 {
		return sets, keys
	}
outer:
	for key := range index[providers[0]] {
		for _, prov := range providers[1:] {
			if _, ok := index[prov][key]; !ok {
				continue outer
			}
		}
		set := make(map[string]manifest.Row, len(providers))
		for _, prov := range providers {
			set[prov] = index[prov][key]
		}
		sets[key] = set
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CategoryID != keys[j].CategoryID {
			return keys[i].CategoryID < keys[j].CategoryID
		}
		if keys[i].PromptID != keys[j].PromptID {
			return keys[i].PromptID < keys[j].PromptID
		}
		return keys[i].SeedLabel < keys[j].SeedLabel
	})
	return sets, keys
}

// buildCSets keeps (provider, category, prompt) groups that cover all
// configured seed labels.
func buildCSets(perProvider map[string][]manifest.Row, seedLabels []int) []CSet {
	var sets []CSet
	for prov, rows := range perProvider {
		type gkey struct{ cat, prompt string }
		groups := make(map[gkey]map[int]manifest.Row)
		for _, r := range rows {
			g := gkey{r.CategoryID, r.PromptID}
			if groups[g] == nil {
				groups[g] = make(map[int]manifest.Row)
			}
			groups[g][r.SeedLabel] = r
		}
		for g, bySeed := range groups {
			ordered := make([]manifest.Row, 0, len(seedLabels))
			complete := true
			for _, s := range seedLabels {
				r, ok := bySeed[s]
				if !ok {
					complete = false
					break
				}
				ordered = append(ordered, r)
			}
			if complete {
				sets = append(sets, CSet{Provider: prov, CategoryID: g.cat, PromptID: g.prompt, Rows: ordered})
			}
		}
	}
	sort.Slice(sets, func(i, j int) bool { return sets[i].Key() < sets[j].Key() })
	return sets
}

// AItems returns a snapshot of the Part A pool.
func (p *Pool) AItems() []manifest.Row {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]manifest.Row, len(p.aItems))
	copy(out, p.aItems)
	return out
}

// BKeys returns a snapshot of the Part B set keys.
func (p *Pool) BKeys() []BKey {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]BKey, len(p.bKeys))
	copy(out, p.bKeys)
	return out
}

// BSet returns the per-provider rows for a Part B key.
func (p *Pool) BSet(key BKey) (map[string]manifest.Row, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set, ok := p.bSets[key]
	if !ok {
		return nil, false
	}
	out := make(map[string]manifest.Row, len(set))
	for k, v := range set {
		out[k] = v
	}
	return out, true
}

// CSets returns a snapshot of the Part C pool.
func (p *Pool) CSets() []CSet {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]CSet, len(p.cSets))
	copy(out, p.cSets)
	return out
}

// Counts returns the pool sizes for the home page and admin overview.
func (p *Pool) Counts() (a, b, c int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.aItems), len(p.bKeys), len(p.cSets)
}

// ASetCount returns the number of distinct (category, prompt, seed)
// keys in the Part A pool.
func (p *Pool) ASetCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := make(map[BKey]bool)
	for _, r := range p.aItems {
		seen[BKey{r.CategoryID, r.PromptID, r.SeedLabel}] = true
	}
	return len(seen)
}

// IsAllowedPath reports whether path resolves under one of the provider
// roots. Image serving refuses anything else.
func (p *Pool) IsAllowedPath(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, base := range p.allowedBases {
		if abs == base || strings.HasPrefix(abs, base+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// HydratePromptText fills an empty prompt text from the pool by task
// identity. Plans store rows without prompt text to stay small.
func (p *Pool) HydratePromptText(r *manifest.Row) {
	if r.PromptText != "" {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, cand := range p.aItems {
		if cand.Provider == r.Provider && cand.CategoryID == r.CategoryID &&
			cand.PromptID == r.PromptID && cand.SeedLabel == r.SeedLabel {
			r.PromptText = cand.PromptText
			return
		}
	}
}
