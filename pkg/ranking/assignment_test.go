package ranking_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukhalilov/ai-survey-app/pkg/ranking"
)

var testProviders = []string{"chatgpt", "google", "stability", "bfl"}

func TestPick_Assign(t *testing.T) {
	a := ranking.New(testProviders)

	a.Pick("chatgpt", 1)

	assert.Equal(t, 1, a.RankOf("chatgpt"))
	assert.Equal(t, 1, a.ChosenCount())
	assert.False(t, a.Complete())
}

// TestPick_Toggle verifies the toggle law: picking the same rank twice
// returns the provider to unranked.
func TestPick_Toggle(t *testing.T) {
	a := ranking.New(testProviders)

	a.Pick("chatgpt", 1)
	a.Pick("chatgpt", 1)

	assert.Equal(t, ranking.Unranked, a.RankOf("chatgpt"))
	assert.Equal(t, 0, a.ChosenCount())
	assert.Equal(t, "Chosen 0/4 ranks (no ties).", a.Progress())
	assert.False(t, a.Complete())
}

// TestPick_Move verifies the move law: picking a rank held elsewhere
// steals it and unassigns the previous holder.
func TestPick_Move(t *testing.T) {
	a := ranking.New(testProviders)

	a.Pick("chatgpt", 1)
	a.Pick("google", 1)

	assert.Equal(t, ranking.Unranked, a.RankOf("chatgpt"))
	assert.Equal(t, 1, a.RankOf("google"))
	assert.Equal(t, 1, a.ChosenCount())
	assert.Equal(t, "Chosen 1/4 ranks (no ties).", a.Progress())
}

// TestPick_AutoComplete verifies that assigning three of four ranks
// forces the fourth pairing without an explicit pick.
func TestPick_AutoComplete(t *testing.T) {
	a := ranking.New(testProviders)

	a.Pick("chatgpt", 1)
	a.Pick("google", 2)
	a.Pick("stability", 3)

	assert.Equal(t, 4, a.RankOf("bfl"))
	assert.Equal(t, 4, a.ChosenCount())
	assert.True(t, a.Complete())
	assert.Equal(t, "Chosen 4/4 ranks (no ties).", a.Progress())
}

func TestPick_AutoCompleteAfterMove(t *testing.T) {
	a := ranking.New(testProviders)

	a.Pick("chatgpt", 1)
	a.Pick("google", 2)
	a.Pick("stability", 3)
	require.True(t, a.Complete())

	// Moving rank 2 onto bfl unassigns google, then auto-complete
	// hands google the freed rank 4.
	a.Pick("bfl", 2)

	assert.Equal(t, 2, a.RankOf("bfl"))
	assert.Equal(t, 4, a.RankOf("google"))
	assert.True(t, a.Complete())
}

func TestPick_ToggleReopensGate(t *testing.T) {
	a := ranking.New(testProviders)

	a.Pick("chatgpt", 1)
	a.Pick("google", 2)
	a.Pick("stability", 3)
	require.True(t, a.Complete())

	a.Pick("stability", 3)

	assert.Equal(t, ranking.Unranked, a.RankOf("stability"))
	assert.Equal(t, 3, a.ChosenCount())
	assert.False(t, a.Complete())
}

func TestPick_IgnoresInvalidInput(t *testing.T) {
	a := ranking.New(testProviders)
	a.Pick("chatgpt", 1)

	a.Pick("chatgpt", 0)
	a.Pick("chatgpt", 5)
	a.Pick("midjourney", 2)

	assert.Equal(t, map[string]int{"chatgpt": 1}, a.Ranks())
}

func TestView_PillStates(t *testing.T) {
	a := ranking.New(testProviders)
	a.Pick("chatgpt", 1)
	a.Pick("google", 3)

	v := a.View(ranking.ViewOptions{})

	require.Len(t, v.Providers, 4)
	assert.Equal(t, 2, v.ChosenCount)
	assert.False(t, v.SubmitEnabled)
	assert.Equal(t, "Chosen 2/4 ranks (no ties).", v.Progress)

	chatgpt := v.Providers[0]
	assert.Equal(t, "chatgpt", chatgpt.Provider)
	assert.True(t, chatgpt.Pills[0].Active)
	assert.False(t, chatgpt.Pills[0].Taken)
	assert.True(t, chatgpt.Pills[2].Taken, "rank 3 is held by google")
	assert.False(t, chatgpt.Pills[2].Disabled, "advisory styling only by default")

	stability := v.Providers[2]
	assert.Equal(t, ranking.Unranked, stability.Rank)
	assert.True(t, stability.Pills[0].Taken)
	assert.True(t, stability.Pills[2].Taken)
	assert.False(t, stability.Pills[1].Taken)
}

func TestView_StrictLockDisablesTakenPills(t *testing.T) {
	a := ranking.New(testProviders)
	a.Pick("chatgpt", 1)

	v := a.View(ranking.ViewOptions{StrictLock: true})

	google := v.Providers[1]
	assert.True(t, google.Pills[0].Taken)
	assert.True(t, google.Pills[0].Disabled)
	assert.False(t, google.Pills[1].Disabled)
}

func TestView_SubmitEnabledOnlyWhenComplete(t *testing.T) {
	a := ranking.New(testProviders)

	picks := []struct {
		provider string
		rank     int
	}{
		{"chatgpt", 2}, {"google", 4},
	}
	for _, p := range picks {
		assert.False(t, a.View(ranking.ViewOptions{}).SubmitEnabled)
		a.Pick(p.provider, p.rank)
	}
	assert.False(t, a.View(ranking.ViewOptions{}).SubmitEnabled)

	a.Pick("stability", 1)

	// Auto-complete closes the mapping, which opens the gate.
	assert.True(t, a.View(ranking.ViewOptions{}).SubmitEnabled)
}

func TestRanks_ReturnsCopy(t *testing.T) {
	a := ranking.New(testProviders)
	a.Pick("chatgpt", 1)

	m := a.Ranks()
	m["chatgpt"] = 4

	assert.Equal(t, 1, a.RankOf("chatgpt"))
}

// TestPick_Concurrent hammers a shared assignment from many goroutines,
// the way overlapping pill clicks reach it through the HTTP handler.
// Run with -race. Whatever interleaving wins, the mapping must stay
// injective.
func TestPick_Concurrent(t *testing.T) {
	a := ranking.New(testProviders)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				p := testProviders[(n+j)%len(testProviders)]
				a.Pick(p, 1+(n+j)%len(testProviders))
				a.RankOf(p)
				_ = a.View(ranking.ViewOptions{})
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int]string)
	for p, r := range a.Ranks() {
		require.GreaterOrEqual(t, r, 1)
		require.LessOrEqual(t, r, len(testProviders))
		if holder, dup := seen[r]; dup {
			t.Fatalf("rank %d held by both %s and %s", r, holder, p)
		}
		seen[r] = p
	}
}
