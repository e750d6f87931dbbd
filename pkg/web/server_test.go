package web_test

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukhalilov/ai-survey-app/pkg/config"
	"github.com/ukhalilov/ai-survey-app/pkg/manifest"
	"github.com/ukhalilov/ai-survey-app/pkg/session"
	"github.com/ukhalilov/ai-survey-app/pkg/store"
	"github.com/ukhalilov/ai-survey-app/pkg/tasks"
	"github.com/ukhalilov/ai-survey-app/pkg/web"
)

const header = "run_id,model,category_id,prompt_id,seed,image_path,prompt_text,has_text,expected_texts,no_people,status,full_w,full_h,request_completed_utc\n"

func writeProvider(t *testing.T, dir string, rows [][3]string) {
	t.Helper()
	runDir := filepath.Join(dir, "manifests", "run-1")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	body := header
	for i, r := range rows {
		img := fmt.Sprintf("images/img%d.png", i)
		path := filepath.Join(dir, img)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
		body += fmt.Sprintf("r1,m,%s,%s,%s,%s,prompt %s,false,,false,ok,1024,1024,t%d\n",
			r[0], r[1], r[2], img, r[1], i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "manifest.csv"), []byte(body), 0o644))
}

type harness struct {
	ts    *httptest.Server
	pool  *tasks.Pool
	store store.Store
	dirs  map[string]string
}

// newHarness boots the full stack over a two-provider fixture pool:
// one shared (cat1, p1, seed 11) ranking set, one chatgpt diversity
// grid, four Part A images.
func newHarness(t *testing.T) *harness {
	t.Helper()
	base := t.TempDir()
	dirs := map[string]string{
		"chatgpt": filepath.Join(base, "chatgpt"),
		"google":  filepath.Join(base, "google"),
	}
	writeProvider(t, dirs["chatgpt"], [][3]string{
		{"cat1", "p1", "11"},
		{"cat1", "p1", "23"},
		{"cat1", "p2", "11"},
	})
	writeProvider(t, dirs["google"], [][3]string{
		{"cat1", "p1", "11"},
	})

	pool := tasks.NewPool(dirs, []int{11, 23}, manifest.Filter{StatusOKOnly: true})
	require.NoError(t, pool.Reload())

	st, err := store.OpenSQLite(filepath.Join(base, "survey.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := &config.Config{
		Port:       "0",
		AdminToken: "letmein",
		Survey: config.SurveyFile{
			Providers:   dirs,
			SeedLabels:  []int{11, 23},
			ModuleItems: map[string]int{"A": 10, "B": 10, "C": 10},
		},
		StorageRoot: base,
	}
	sessions := session.NewManager("test-secret", pool, st, session.Targets{A: 10, B: 10, C: 10}, nil)
	srv := web.NewServer(cfg, pool, st, sessions)

	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return &harness{ts: ts, pool: pool, store: st, dirs: dirs}
}

// client returns an http.Client with a cookie jar that does not follow
// redirects, so tests can assert Location headers.
func (h *harness) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func get(t *testing.T, c *http.Client, url string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, string(body)
}

func postForm(t *testing.T, c *http.Client, url string, form url.Values) *http.Response {
	t.Helper()
	resp, err := c.PostForm(url, form)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	require.NoError(t, resp.Body.Close())
	return resp
}

func TestHome_ShowsPoolSizes(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	resp, body := get(t, c, h.ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "4 images")
	assert.Contains(t, body, "1 ranking sets")
}

func TestUnknownPath_NotFound(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	resp, _ := get(t, c, h.ts.URL+"/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestModuleA_SubmitFlow(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	resp, body := get(t, c, h.ts.URL+"/a")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Part A")
	assert.Contains(t, body, "/img?p=")

	resp = postForm(t, c, h.ts.URL+"/submit/a", url.Values{
		"adherence":  {"5"},
		"aesthetic":  {"6"},
		"creativity": {"4"},
		"style":      {"7"},
		"elapsed_ms": {"1500"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	stats := h.stats(t)
	assert.Equal(t, 1, stats.Totals.A)
}

func TestModuleA_RejectsOutOfRangeRating(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	get(t, c, h.ts.URL+"/a")

	resp := postForm(t, c, h.ts.URL+"/submit/a", url.Values{
		"adherence":  {"9"},
		"aesthetic":  {"6"},
		"creativity": {"4"},
		"style":      {"7"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "flash=bad_rating")

	stats := h.stats(t)
	assert.Equal(t, 0, stats.Totals.A)
}

func TestModuleB_PickAndSubmit(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	resp, body := get(t, c, h.ts.URL+"/b")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Chosen 0/2 ranks (no ties).")
	assert.Contains(t, body, `name="category_id" value="cat1"`)

	// Picking one rank in a two-image set auto-completes the other.
	req, err := http.NewRequest(http.MethodPost, h.ts.URL+"/b/pick",
		strings.NewReader(url.Values{"provider": {"chatgpt"}, "rank": {"1"}}.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	pickResp, err := c.Do(req)
	require.NoError(t, err)
	frag, err := io.ReadAll(pickResp.Body)
	require.NoError(t, err)
	require.NoError(t, pickResp.Body.Close())
	require.Equal(t, http.StatusOK, pickResp.StatusCode)
	assert.Contains(t, string(frag), "Chosen 2/2 ranks (no ties).")
	assert.NotContains(t, string(frag), "<html", "HTMX pick returns a fragment, not a full page")

	resp = postForm(t, c, h.ts.URL+"/submit/b", url.Values{"elapsed_ms": {"2000"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	stats := h.stats(t)
	assert.Equal(t, 1, stats.Totals.B)
	require.Len(t, stats.B.Ranking, 2)
}

func TestModuleB_SubmitRejectsIncompleteRanking(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	get(t, c, h.ts.URL+"/b")

	resp := postForm(t, c, h.ts.URL+"/submit/b", url.Values{})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "flash=ties")

	stats := h.stats(t)
	assert.Equal(t, 0, stats.Totals.B)
}

func TestModuleB_PickRejectsUnknownProvider(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	get(t, c, h.ts.URL+"/b")

	resp := postForm(t, c, h.ts.URL+"/b/pick", url.Values{
		"provider": {"nonesuch"}, "rank": {"1"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestModuleC_SubmitFlow(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	resp, body := get(t, c, h.ts.URL+"/c")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "Part C")
	assert.Contains(t, body, "seed 11")
	assert.Contains(t, body, "seed 23")

	resp = postForm(t, c, h.ts.URL+"/submit/c", url.Values{
		"diversity":  {"6"},
		"elapsed_ms": {"900"},
	})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	stats := h.stats(t)
	assert.Equal(t, 1, stats.Totals.C)
}

func TestImage_AllowlistEnforced(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	inside := filepath.Join(h.dirs["chatgpt"], "images", "img0.png")
	enc := base64.URLEncoding.EncodeToString([]byte(inside))
	resp, body := get(t, c, h.ts.URL+"/img?p="+enc)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "png", body)

	outside := base64.URLEncoding.EncodeToString([]byte("/etc/passwd"))
	resp, _ = get(t, c, h.ts.URL+"/img?p="+outside)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = get(t, c, h.ts.URL+"/img?p=not-base64!")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdmin_RequiresLogin(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	resp, _ := get(t, c, h.ts.URL+"/admin")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "/admin/login")
}

func TestAdmin_LoginAndStats(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	resp := postForm(t, c, h.ts.URL+"/admin/login", url.Values{"token": {"wrong"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Location"), "flash=bad_token")

	resp = postForm(t, c, h.ts.URL+"/admin/login", url.Values{"token": {"letmein"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin", resp.Header.Get("Location"))

	resp, body := get(t, c, h.ts.URL+"/admin/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats store.Stats
	require.NoError(t, json.Unmarshal([]byte(body), &stats))
	assert.Equal(t, 4, stats.Pools.PoolA)
	assert.Equal(t, 1, stats.Pools.PoolB)
	assert.Equal(t, 1, stats.Pools.PoolC)
}

func TestAdmin_Reload(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	postForm(t, c, h.ts.URL+"/admin/login", url.Values{"token": {"letmein"}})

	resp := postForm(t, c, h.ts.URL+"/admin/reload", url.Values{})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// Clearing seen sets is destructive, so a stray link or prefetch must
// not trigger it: GET is rejected, only POST goes through.
func TestAdmin_ClearSeenRequiresPost(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	postForm(t, c, h.ts.URL+"/admin/login", url.Values{"token": {"letmein"}})

	for _, path := range []string{"/admin/clear_seen_me", "/admin/clear_seen_all"} {
		resp, _ := get(t, c, h.ts.URL+path)
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, path)

		resp = postForm(t, c, h.ts.URL+path, url.Values{})
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, path)
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)
	resp, body := get(t, c, h.ts.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"ok"`)
}

func TestInstructions_HideAndShow(t *testing.T) {
	h := newHarness(t)
	c := h.client(t)

	_, body := get(t, c, h.ts.URL+"/b")
	assert.NotContains(t, body, `id="instructions" hidden`)

	resp := postForm(t, c, h.ts.URL+"/instructions/hide", url.Values{})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	_, body = get(t, c, h.ts.URL+"/b")
	assert.Contains(t, body, "Show instructions")
}

// stats reads aggregates straight from the store, bypassing admin auth.
func (h *harness) stats(t *testing.T) *store.Stats {
	t.Helper()
	a, b, c := h.pool.Counts()
	stats, err := h.store.Stats(t.Context(), store.PoolCounts{PoolA: a, PoolB: b, PoolC: c})
	require.NoError(t, err)
	return stats
}
