package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimitMiddleware(t *testing.T) {
	// 1 req/sec with a burst of 2, so the third immediate request
	// must hit the 429 path.
	limiter := NewRateLimiter(1, 2)
	handler := limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	ts := httptest.NewServer(handler)
	defer ts.Close()

	client := ts.Client()

	for i := 0; i < 2; i++ {
		resp, err := client.Get(ts.URL)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		assert.Equal(t, http.StatusOK, resp.StatusCode, "within burst")
		assert.NoError(t, resp.Body.Close())
	}

	resp, err := client.Get(ts.URL)
	if err != nil {
		t.Fatalf("request 3 failed: %v", err)
	}
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode, "over burst")
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	assert.NoError(t, resp.Body.Close())

	// Tokens refill at 1/sec, so after a second the limiter opens again.
	time.Sleep(1100 * time.Millisecond)

	resp, err = client.Get(ts.URL)
	if err != nil {
		t.Fatalf("request 4 failed: %v", err)
	}
	assert.Equal(t, http.StatusOK, resp.StatusCode, "after refill")
	assert.NoError(t, resp.Body.Close())
}

func TestRateLimiter_TracksVisitorsPerIP(t *testing.T) {
	limiter := NewRateLimiter(1, 1)

	// Distinct addresses get independent budgets.
	assert.True(t, limiter.visitorFor("10.0.0.1").Allow())
	assert.True(t, limiter.visitorFor("10.0.0.2").Allow())
	assert.False(t, limiter.visitorFor("10.0.0.1").Allow(), "budget is per address")
}
