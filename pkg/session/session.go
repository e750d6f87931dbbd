// Package session tracks raters across requests: identity cookies,
// sampled task plans, per-module progress, seen-item sets, the live
// Part B ranking assignment, and page timing.
//
// Everything here lives in RAM and is lost on restart; only submitted
// responses are durable (pkg/store).
package session

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ukhalilov/ai-survey-app/pkg/store"
	"github.com/ukhalilov/ai-survey-app/pkg/tasks"
)

const (
	raterCookie = "survey_rater"
	adminCookie = "survey_admin"

	adminSessionTTL = 12 * time.Hour
)

// Targets are the per-module item counts for a sampled plan.
type Targets struct {
	A, B, C int
}

// Manager owns all rater state and the signed identity cookies.
type Manager struct {
	secret  []byte
	pool    *tasks.Pool
	store   store.Store
	targets Targets
	flags   FlagStore

	mu     sync.Mutex
	raters map[string]*Rater
}

// NewManager creates a Manager. An empty secret gets a random one,
// which invalidates cookies across restarts; fine for local runs.
func NewManager(secret string, pool *tasks.Pool, st store.Store, targets Targets, flags FlagStore) *Manager {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("session: generate secret: %v", err))
		}
		slog.Warn("SESSION_SECRET not set, using a random secret (sessions reset on restart)")
	}
	if flags == nil {
		flags = NewMemoryFlagStore()
	}
	return &Manager{
		secret:  key,
		pool:    pool,
		store:   st,
		targets: targets,
		flags:   flags,
		raters:  make(map[string]*Rater),
	}
}

// EnsureRater returns the rater for the request, minting an identity
// and setting the cookie on first contact.
func (m *Manager) EnsureRater(w http.ResponseWriter, r *http.Request) *Rater {
	if id, ok := m.raterIDFromRequest(r); ok {
		return m.get(id)
	}

	id := uuid.New().String()
	token, err := m.sign(id, 0)
	if err != nil {
		// Unsignable cookies would mean a broken secret; fail loudly.
		panic(fmt.Sprintf("session: sign rater cookie: %v", err))
	}
	http.SetCookie(w, &http.Cookie{
		Name:     raterCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if err := m.store.CreateRater(r.Context(), id, r.UserAgent()); err != nil {
		slog.Error("record new rater", "error", err, "rater", id)
	}
	return m.get(id)
}

func (m *Manager) raterIDFromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(raterCookie)
	if err != nil {
		return "", false
	}
	sub, err := m.verify(c.Value)
	if err != nil || sub == "" || sub == "admin" {
		return "", false
	}
	return sub, true
}

// EnsurePlan samples the rater's work plan from the pool if they do
// not have one yet.
func (m *Manager) EnsurePlan(rt *Rater) *Plan {
	return rt.EnsurePlan(m.pool, m.targets)
}

// ResamplePlan drops the rater's plan and samples a fresh one from
// their unseen items.
func (m *Manager) ResamplePlan(rt *Rater) *Plan {
	rt.ResetPlan()
	return rt.EnsurePlan(m.pool, m.targets)
}

func (m *Manager) get(id string) *Rater {
	m.mu.Lock()
	defer m.mu.Unlock()
	rt, ok := m.raters[id]
	if !ok {
		rt = newRater(id)
		m.raters[id] = rt
	}
	return rt
}

// GrantAdmin marks the browser as an authenticated admin.
func (m *Manager) GrantAdmin(w http.ResponseWriter) error {
	token, err := m.sign("admin", adminSessionTTL)
	if err != nil {
		return fmt.Errorf("sign admin cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// RevokeAdmin clears the admin cookie.
func (m *Manager) RevokeAdmin(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// IsAdmin reports whether the request carries a valid admin session.
func (m *Manager) IsAdmin(r *http.Request) bool {
	c, err := r.Cookie(adminCookie)
	if err != nil {
		return false
	}
	sub, err := m.verify(c.Value)
	return err == nil && sub == "admin"
}

func (m *Manager) sign(subject string, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", fmt.Errorf("invalid token")
	}
	return claims.Subject, nil
}

// HideInstructions persists the instruction-panel dismissal for a rater.
func (m *Manager) HideInstructions(raterID string) { m.flags.Set(instructionsKey(raterID), true) }

// ShowInstructions clears the dismissal.
func (m *Manager) ShowInstructions(raterID string) { m.flags.Set(instructionsKey(raterID), false) }

// InstructionsHidden reads the persisted flag.
func (m *Manager) InstructionsHidden(raterID string) bool {
	return m.flags.Get(instructionsKey(raterID))
}

func instructionsKey(raterID string) string { return "survey_b_instructions_hidden/" + raterID }

// ClearSeenForgets everything one rater has seen, and drops their plan
// so the next page samples a fresh one.
func (m *Manager) ClearSeen(raterID string) {
	m.mu.Lock()
	rt, ok := m.raters[raterID]
	m.mu.Unlock()
	if !ok {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.seenA = make(map[string]bool)
	rt.seenB = make(map[tasks.BKey]bool)
	rt.seenC = make(map[string]bool)
	rt.plan = nil
	rt.idx = map[string]int{}
	rt.started = map[string]time.Time{}
	rt.assignment = nil
}

// ClearSeenAll forgets seen sets for every rater. Plans stay; they
// expire naturally as raters finish them.
func (m *Manager) ClearSeenAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rt := range m.raters {
		rt.mu.Lock()
		rt.seenA = make(map[string]bool)
		rt.seenB = make(map[tasks.BKey]bool)
		rt.seenC = make(map[string]bool)
		rt.mu.Unlock()
	}
}
