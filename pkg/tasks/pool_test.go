package tasks_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukhalilov/ai-survey-app/pkg/manifest"
	"github.com/ukhalilov/ai-survey-app/pkg/tasks"
)

const header = "run_id,model,category_id,prompt_id,seed,image_path,prompt_text,has_text,expected_texts,no_people,status,full_w,full_h,request_completed_utc\n"

// writeProvider lays out a provider root with one manifest run.
// Each row is (category, prompt, seed, completed).
func writeProvider(t *testing.T, dir string, rows [][4]string) {
	t.Helper()
	runDir := filepath.Join(dir, "manifests", "run-1")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	body := header
	for i, r := range rows {
		img := fmt.Sprintf("images/img%d.png", i)
		path := filepath.Join(dir, img)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
		body += fmt.Sprintf("r1,m,%s,%s,%s,%s,prompt %s,false,,false,ok,1024,1024,%s\n",
			r[0], r[1], r[2], img, r[1], r[3])
	}
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "manifest.csv"), []byte(body), 0o644))
}

func newTestPool(t *testing.T) (*tasks.Pool, map[string]string) {
	t.Helper()
	base := t.TempDir()
	dirs := map[string]string{
		"chatgpt": filepath.Join(base, "chatgpt"),
		"google":  filepath.Join(base, "google"),
	}

	// Both providers share (cat1, p1, 11); only chatgpt has (cat1, p2, 11).
	// chatgpt covers both seeds for p1, giving it a C grid.
	writeProvider(t, dirs["chatgpt"], [][4]string{
		{"cat1", "p1", "11", "t1"},
		{"cat1", "p1", "23", "t2"},
		{"cat1", "p2", "11", "t3"},
	})
	writeProvider(t, dirs["google"], [][4]string{
		{"cat1", "p1", "11", "t1"},
	})

	pool := tasks.NewPool(dirs, []int{11, 23}, manifest.Filter{StatusOKOnly: true})
	require.NoError(t, pool.Reload())
	return pool, dirs
}

func TestPool_Build(t *testing.T) {
	pool, _ := newTestPool(t)

	a, b, c := pool.Counts()
	assert.Equal(t, 4, a)
	assert.Equal(t, 1, b, "only (cat1,p1,11) exists across both providers")
	assert.Equal(t, 1, c, "only chatgpt/cat1/p1 covers both seeds")

	keys := pool.BKeys()
	require.Len(t, keys, 1)
	assert.Equal(t, tasks.BKey{CategoryID: "cat1", PromptID: "p1", SeedLabel: 11}, keys[0])

	set, ok := pool.BSet(keys[0])
	require.True(t, ok)
	require.Len(t, set, 2)
	assert.Equal(t, "chatgpt", set["chatgpt"].Provider)

	cs := pool.CSets()
	require.Len(t, cs, 1)
	assert.Equal(t, "chatgpt", cs[0].Provider)
	require.Len(t, cs[0].Rows, 2)
	assert.Equal(t, 11, cs[0].Rows[0].SeedLabel)
	assert.Equal(t, 23, cs[0].Rows[1].SeedLabel)
}

func TestPool_BSetNewestRowWins(t *testing.T) {
	base := t.TempDir()
	dirs := map[string]string{"chatgpt": filepath.Join(base, "chatgpt")}
	writeProvider(t, dirs["chatgpt"], [][4]string{
		{"cat1", "p1", "11", "t1"},
		{"cat1", "p1", "11", "t9"},
	})

	pool := tasks.NewPool(dirs, []int{11}, manifest.Filter{StatusOKOnly: true})
	require.NoError(t, pool.Reload())

	set, ok := pool.BSet(tasks.BKey{CategoryID: "cat1", PromptID: "p1", SeedLabel: 11})
	require.True(t, ok)
	assert.Equal(t, "t9", set["chatgpt"].CompletedUTC)
}

func TestPool_IsAllowedPath(t *testing.T) {
	pool, dirs := newTestPool(t)

	assert.True(t, pool.IsAllowedPath(filepath.Join(dirs["chatgpt"], "images", "img0.png")))
	assert.True(t, pool.IsAllowedPath(filepath.Join(dirs["google"], "anything.png")))
	assert.False(t, pool.IsAllowedPath("/etc/passwd"))
	assert.False(t, pool.IsAllowedPath(dirs["chatgpt"]+"suffix/escape.png"))
}

func TestPool_HydratePromptText(t *testing.T) {
	pool, _ := newTestPool(t)

	r := manifest.Row{Provider: "chatgpt", CategoryID: "cat1", PromptID: "p2", SeedLabel: 11}
	pool.HydratePromptText(&r)
	assert.Equal(t, "prompt p2", r.PromptText)

	r2 := manifest.Row{Provider: "chatgpt", CategoryID: "cat1", PromptID: "p2", SeedLabel: 11, PromptText: "keep"}
	pool.HydratePromptText(&r2)
	assert.Equal(t, "keep", r2.PromptText)
}

func TestPool_Providers(t *testing.T) {
	pool, _ := newTestPool(t)
	assert.Equal(t, []string{"chatgpt", "google"}, pool.Providers())
}
