package session

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ukhalilov/ai-survey-app/pkg/manifest"
	"github.com/ukhalilov/ai-survey-app/pkg/ranking"
	"github.com/ukhalilov/ai-survey-app/pkg/tasks"
)

// Modules in full-session order.
var moduleOrder = []string{"A", "B", "C"}

// Plan is one rater's sampled work list.
type Plan struct {
	A []manifest.Row
	B []tasks.BKey
	C []tasks.CSet
}

// Rater is the in-memory state of one participant.
type Rater struct {
	ID string

	mu       sync.Mutex
	plan     *Plan
	idx      map[string]int
	fullMode bool

	seenA map[string]bool // provider|category|prompt|seed
	seenB map[tasks.BKey]bool
	seenC map[string]bool // CSet.Key()

	// Live ranking state for the current Part B task.
	assignment    *ranking.Assignment
	assignmentKey tasks.BKey

	// Page-issue timestamps per module; set on first render of a
	// task, cleared on advance.
	started map[string]time.Time
}

func newRater(id string) *Rater {
	return &Rater{
		ID:      id,
		idx:     map[string]int{},
		seenA:   make(map[string]bool),
		seenB:   make(map[tasks.BKey]bool),
		seenC:   make(map[string]bool),
		started: map[string]time.Time{},
	}
}

func aKey(provider, category, prompt string, seed int) string {
	return fmt.Sprintf("%s|%s|%s|%d", provider, category, prompt, seed)
}

// EnsurePlan samples a plan from unseen pool items if the rater does
// not have one, and returns it.
func (rt *Rater) EnsurePlan(pool *tasks.Pool, targets Targets) *Plan {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.plan == nil {
		rt.plan = rt.samplePlanLocked(pool, targets)
		rt.idx = map[string]int{}
		rt.started = map[string]time.Time{}
	}
	return rt.plan
}

// ResetPlan drops the current plan; the next EnsurePlan resamples.
func (rt *Rater) ResetPlan() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.plan = nil
	rt.idx = map[string]int{}
	rt.started = map[string]time.Time{}
	rt.assignment = nil
}

func (rt *Rater) samplePlanLocked(pool *tasks.Pool, targets Targets) *Plan {
	plan := &Plan{}

	var poolA []manifest.Row
	for _, row := range pool.AItems() {
		if !rt.seenA[aKey(row.Provider, row.CategoryID, row.PromptID, row.SeedLabel)] {
			// Plans drop the prompt text to stay light; it is
			// rehydrated from the pool at render time.
			row.PromptText = ""
			poolA = append(poolA, row)
		}
	}
	rand.Shuffle(len(poolA), func(i, j int) { poolA[i], poolA[j] = poolA[j], poolA[i] })
	plan.A = poolA[:min(targets.A, len(poolA))]

	poolB := make([]tasks.BKey, 0)
	for _, key := range pool.BKeys() {
		if !rt.seenB[key] {
			poolB = append(poolB, key)
		}
	}
	rand.Shuffle(len(poolB), func(i, j int) { poolB[i], poolB[j] = poolB[j], poolB[i] })
	plan.B = poolB[:min(targets.B, len(poolB))]

	var poolC []tasks.CSet
	for _, cs := range pool.CSets() {
		if !rt.seenC[cs.Key()] {
			poolC = append(poolC, cs)
		}
	}
	rand.Shuffle(len(poolC), func(i, j int) { poolC[i], poolC[j] = poolC[j], poolC[i] })
	plan.C = poolC[:min(targets.C, len(poolC))]

	return plan
}

// Progress returns the cursor and plan size for a module.
func (rt *Rater) Progress(module string) (idx, total int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.plan == nil {
		return 0, 0
	}
	return rt.idx[module], rt.planSizeLocked(module)
}

func (rt *Rater) planSizeLocked(module string) int {
	switch module {
	case "A":
		return len(rt.plan.A)
	case "B":
		return len(rt.plan.B)
	case "C":
		return len(rt.plan.C)
	}
	return 0
}

// Remaining returns per-module outstanding counts for the home page.
func (rt *Rater) Remaining() map[string]int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := map[string]int{"A": 0, "B": 0, "C": 0}
	if rt.plan == nil {
		return out
	}
	for _, m := range moduleOrder {
		if n := rt.planSizeLocked(m) - rt.idx[m]; n > 0 {
			out[m] = n
		}
	}
	return out
}

// StartSingle leaves full mode so a module runs standalone. An
// in-progress module resumes where it left off; a finished one gets a
// fresh plan from the caller via ResetPlan + EnsurePlan.
func (rt *Rater) StartSingle() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.fullMode = false
}

// StartFull begins a full A→B→C session over a fresh plan.
func (rt *Rater) StartFull() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.plan = nil
	rt.idx = map[string]int{}
	rt.started = map[string]time.Time{}
	rt.assignment = nil
	rt.fullMode = true
}

// FullMode reports whether the rater is in a chained A→B→C session.
func (rt *Rater) FullMode() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.fullMode
}

// NextFullModule returns the first module with work left, or "" when
// the full session is done (which also ends full mode).
func (rt *Rater) NextFullModule() string {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.plan != nil {
		for _, m := range moduleOrder {
			if rt.idx[m] < rt.planSizeLocked(m) {
				return m
			}
		}
	}
	rt.fullMode = false
	return ""
}

// CurrentA returns the rater's current Part A item.
func (rt *Rater) CurrentA() (row manifest.Row, idx, total int, ok bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.plan == nil {
		return manifest.Row{}, 0, 0, false
	}
	idx, total = rt.idx["A"], len(rt.plan.A)
	if idx >= total {
		return manifest.Row{}, idx, total, false
	}
	return rt.plan.A[idx], idx, total, true
}

// CurrentB returns the rater's current Part B key.
func (rt *Rater) CurrentB() (key tasks.BKey, idx, total int, ok bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.plan == nil {
		return tasks.BKey{}, 0, 0, false
	}
	idx, total = rt.idx["B"], len(rt.plan.B)
	if idx >= total {
		return tasks.BKey{}, idx, total, false
	}
	return rt.plan.B[idx], idx, total, true
}

// CurrentC returns the rater's current Part C set.
func (rt *Rater) CurrentC() (cs tasks.CSet, idx, total int, ok bool) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.plan == nil {
		return tasks.CSet{}, 0, 0, false
	}
	idx, total = rt.idx["C"], len(rt.plan.C)
	if idx >= total {
		return tasks.CSet{}, idx, total, false
	}
	return rt.plan.C[idx], idx, total, true
}

// Advance moves a module's cursor past the current task and clears its
// page timer. For B it also discards the ranking assignment.
func (rt *Rater) Advance(module string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.idx[module]++
	delete(rt.started, module)
	if module == "B" {
		rt.assignment = nil
	}
}

// MarkSeenA records a served Part A item.
func (rt *Rater) MarkSeenA(provider, category, prompt string, seed int) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.seenA[aKey(provider, category, prompt, seed)] = true
}

// MarkSeenB records a served Part B set.
func (rt *Rater) MarkSeenB(key tasks.BKey) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.seenB[key] = true
}

// MarkSeenC records a served Part C grid.
func (rt *Rater) MarkSeenC(key string) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.seenC[key] = true
}

// Ranking returns the assignment for the given Part B task, creating a
// fresh one when the task changed since the last call. On creation the
// provider order is shuffled so card position does not correlate with
// provider identity; the order then stays fixed for the task's lifetime.
func (rt *Rater) Ranking(key tasks.BKey, providers []string) *ranking.Assignment {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.assignment == nil || rt.assignmentKey != key {
		shuffled := make([]string, len(providers))
		copy(shuffled, providers)
		rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		rt.assignment = ranking.New(shuffled)
		rt.assignmentKey = key
	}
	return rt.assignment
}

// StartTask records the page-issue timestamp for a module's current
// task. Reloads keep the original timestamp.
func (rt *Rater) StartTask(module string, now time.Time) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.started[module].IsZero() {
		rt.started[module] = now
	}
}

// ElapsedMS computes the task duration at submit time. Without a
// recorded start the raw now-milliseconds value is returned; degenerate
// but it never blocks a submission.
func (rt *Rater) ElapsedMS(module string, now time.Time) int64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	start := rt.started[module]
	if start.IsZero() {
		return now.UnixMilli()
	}
	return now.Sub(start).Milliseconds()
}
