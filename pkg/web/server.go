// Package web is the HTTP surface of the survey: rater-facing pages
// for the three modules, image serving, and the admin dashboard.
package web

import (
	"encoding/base64"
	"html/template"
	"net/http"
	"time"

	"github.com/ukhalilov/ai-survey-app/pkg/api"
	"github.com/ukhalilov/ai-survey-app/pkg/config"
	"github.com/ukhalilov/ai-survey-app/pkg/ranking"
	"github.com/ukhalilov/ai-survey-app/pkg/session"
	"github.com/ukhalilov/ai-survey-app/pkg/store"
	"github.com/ukhalilov/ai-survey-app/pkg/tasks"
)

// Server wires the handlers to their dependencies.
type Server struct {
	cfg      *config.Config
	pool     *tasks.Pool
	store    store.Store
	sessions *session.Manager
	tmpl     *template.Template
	viewOpts ranking.ViewOptions
}

func NewServer(cfg *config.Config, pool *tasks.Pool, st store.Store, sessions *session.Manager) *Server {
	return &Server{
		cfg:      cfg,
		pool:     pool,
		store:    st,
		sessions: sessions,
		tmpl:     parseTemplates(),
		viewOpts: ranking.ViewOptions{StrictLock: cfg.Survey.UI.StrictRankLock},
	}
}

// Routes builds the full handler chain.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleHome)
	mux.HandleFunc("/start/", s.handleStart)
	mux.HandleFunc("/full/next", s.handleFullNext)

	mux.HandleFunc("/a", s.handleModuleA)
	mux.HandleFunc("/submit/a", s.handleSubmitA)
	mux.HandleFunc("/b", s.handleModuleB)
	mux.HandleFunc("/b/pick", s.handlePickB)
	mux.HandleFunc("/submit/b", s.handleSubmitB)
	mux.HandleFunc("/c", s.handleModuleC)
	mux.HandleFunc("/submit/c", s.handleSubmitC)

	mux.HandleFunc("/instructions/hide", s.handleInstructions(true))
	mux.HandleFunc("/instructions/show", s.handleInstructions(false))

	mux.HandleFunc("/img", s.handleImage)
	mux.HandleFunc("/static/", s.handleStatic)
	mux.HandleFunc("/thanks", s.handleThanks)
	mux.HandleFunc("/health", s.handleHealth)

	mux.HandleFunc("/admin", s.requireAdmin(s.handleAdminDashboard))
	mux.HandleFunc("/admin/login", s.handleAdminLogin)
	mux.HandleFunc("/admin/logout", s.handleAdminLogout)
	mux.HandleFunc("/admin/stats", s.requireAdmin(s.handleAdminStats))
	mux.HandleFunc("/admin/reload", s.requireAdmin(s.handleAdminReload))
	mux.HandleFunc("/admin/export", s.requireAdmin(s.handleAdminExport))
	mux.HandleFunc("/admin/clear_seen_me", s.requireAdmin(s.handleClearSeenMe))
	mux.HandleFunc("/admin/clear_seen_all", s.requireAdmin(s.handleClearSeenAll))

	limiter := api.NewRateLimiter(20, 40)
	return RequestIDMiddleware(LoggingMiddleware(limiter.Middleware(mux)))
}

// NewHTTPServer wraps the routes in an http.Server with sane timeouts.
func (s *Server) NewHTTPServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.cfg.Port,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	rater := s.sessions.EnsureRater(w, r)
	s.sessions.EnsurePlan(rater)

	a, b, c := s.pool.Counts()
	data := struct {
		pageBase
		Remaining     map[string]int
		ProviderCount int
		Sizes         struct {
			AImages, ASets, BSets, CGrids int
		}
	}{
		pageBase:      basePage("", flashFrom(r)),
		Remaining:     rater.Remaining(),
		ProviderCount: len(s.pool.Providers()),
	}
	data.Sizes.AImages = a
	data.Sizes.ASets = s.pool.ASetCount()
	data.Sizes.BSets = b
	data.Sizes.CGrids = c
	s.render(w, "home", data)
}

// handleStart routes /start/A, /start/B, /start/C and /start/full.
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	rater := s.sessions.EnsureRater(w, r)
	which := r.URL.Path[len("/start/"):]
	switch which {
	case "full":
		rater.StartFull()
		s.sessions.EnsurePlan(rater)
		http.Redirect(w, r, "/full/next", http.StatusSeeOther)
	case "A", "B", "C":
		rater.StartSingle()
		s.sessions.EnsurePlan(rater)
		if idx, total := rater.Progress(which); idx >= total {
			// Current plan has nothing left here; resample from the
			// rater's unseen items.
			s.sessions.ResamplePlan(rater)
		}
		http.Redirect(w, r, modulePath(which), http.StatusSeeOther)
	default:
		http.NotFound(w, r)
	}
}

// handleFullNext forwards to the first module with work left, or the
// thanks page when the chained session is done.
func (s *Server) handleFullNext(w http.ResponseWriter, r *http.Request) {
	rater := s.sessions.EnsureRater(w, r)
	s.sessions.EnsurePlan(rater)
	next := rater.NextFullModule()
	if next == "" {
		http.Redirect(w, r, "/thanks", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, modulePath(next), http.StatusSeeOther)
}

func (s *Server) handleThanks(w http.ResponseWriter, r *http.Request) {
	s.render(w, "thanks", basePage("Thanks", ""))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	a, b, c := s.pool.Counts()
	api.WriteJSON(w, map[string]any{
		"status": "ok",
		"pools":  map[string]int{"A": a, "B": b, "C": c},
	})
}

// afterSubmit decides where a finished task leads: the next item in the
// same module, the full-session router, or thanks.
func (s *Server) afterSubmit(w http.ResponseWriter, r *http.Request, rater *session.Rater, module string) {
	if rater.FullMode() {
		http.Redirect(w, r, "/full/next", http.StatusSeeOther)
		return
	}
	if idx, total := rater.Progress(module); idx >= total {
		http.Redirect(w, r, "/thanks", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, modulePath(module), http.StatusSeeOther)
}

func modulePath(module string) string {
	switch module {
	case "A":
		return "/a"
	case "B":
		return "/b"
	case "C":
		return "/c"
	}
	return "/"
}

// encodePath / decodePath shuttle absolute image paths through URLs.
func encodePath(p string) string {
	return base64.URLEncoding.EncodeToString([]byte(p))
}

func decodePath(enc string) (string, bool) {
	b, err := base64.URLEncoding.DecodeString(enc)
	if err != nil {
		return "", false
	}
	return string(b), true
}

// handleImage serves a pool image. Only paths inside the configured
// provider roots are allowed; everything else is refused.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	path, ok := decodePath(r.URL.Query().Get("p"))
	if !ok || path == "" {
		api.WriteBadRequest(w, "missing or undecodable image reference")
		return
	}
	if !s.pool.IsAllowedPath(path) {
		api.WriteForbidden(w, "image path outside the configured provider roots")
		return
	}
	http.ServeFile(w, r, path)
}
