package web

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"

	"golang.org/x/crypto/bcrypt"

	"github.com/ukhalilov/ai-survey-app/pkg/api"
	"github.com/ukhalilov/ai-survey-app/pkg/store"
)

// requireAdmin sends unauthenticated browsers to the login page.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.sessions.IsAdmin(r) {
			http.Redirect(w, r, "/admin/login?next="+url.QueryEscape(r.URL.Path), http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// verifyAdminToken checks the submitted token. A bcrypt hash in
// ADMIN_TOKEN_HASH wins over the plaintext ADMIN_TOKEN; with neither
// configured the admin surface stays closed.
func (s *Server) verifyAdminToken(token string) bool {
	if s.cfg.AdminTokenHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminTokenHash), []byte(token)) == nil
	}
	if s.cfg.AdminToken != "" {
		return subtle.ConstantTimeCompare([]byte(s.cfg.AdminToken), []byte(token)) == 1
	}
	slog.Warn("admin login attempted but no ADMIN_TOKEN or ADMIN_TOKEN_HASH configured")
	return false
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	next := r.URL.Query().Get("next")
	if next == "" || next[0] != '/' {
		next = "/admin"
	}

	if r.Method == http.MethodGet {
		data := struct {
			pageBase
			Next string
		}{basePage("Admin Login", flashFrom(r)), next}
		s.render(w, "admin_login", data)
		return
	}
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w)
		return
	}

	if !s.verifyAdminToken(r.PostFormValue("token")) {
		http.Redirect(w, r, "/admin/login?next="+url.QueryEscape(next)+"&flash=bad_token", http.StatusSeeOther)
		return
	}
	if err := s.sessions.GrantAdmin(w); err != nil {
		api.WriteInternal(w, err)
		return
	}
	slog.Info("admin session granted")
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.RevokeAdmin(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	s.render(w, "admin", basePage("Admin — Survey Results", flashFrom(r)))
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	a, b, c := s.pool.Counts()
	stats, err := s.store.Stats(r.Context(), store.PoolCounts{PoolA: a, PoolB: b, PoolC: c})
	if err != nil {
		api.WriteInternal(w, err)
		return
	}
	api.WriteJSON(w, stats)
}

func (s *Server) handleAdminReload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w)
		return
	}
	if err := s.pool.Reload(); err != nil {
		api.WriteInternal(w, err)
		return
	}
	a, b, c := s.pool.Counts()
	slog.Info("pools reloaded", "pool_a", a, "pool_b", b, "pool_c", c)
	api.WriteJSON(w, map[string]any{
		"status": "reloaded",
		"pools":  map[string]int{"A": a, "B": b, "C": c},
	})
}

func (s *Server) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ExportCSV(r.Context(), s.cfg.ExportDir())
	if err != nil {
		api.WriteInternal(w, err)
		return
	}
	slog.Info("responses exported", "files", len(files), "dir", s.cfg.ExportDir())
	api.WriteJSON(w, map[string]any{"exported": files})
}

// handleClearSeenMe lets an admin re-rate everything from their own
// browser, useful while checking a fresh pool.
func (s *Server) handleClearSeenMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w)
		return
	}
	rater := s.sessions.EnsureRater(w, r)
	s.sessions.ClearSeen(rater.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleClearSeenAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w)
		return
	}
	s.sessions.ClearSeenAll()
	slog.Info("seen sets cleared for all raters")
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}
