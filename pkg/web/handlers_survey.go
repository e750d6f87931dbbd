package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ukhalilov/ai-survey-app/pkg/api"
	"github.com/ukhalilov/ai-survey-app/pkg/manifest"
	"github.com/ukhalilov/ai-survey-app/pkg/ranking"
	"github.com/ukhalilov/ai-survey-app/pkg/session"
	"github.com/ukhalilov/ai-survey-app/pkg/store"
	"github.com/ukhalilov/ai-survey-app/pkg/tasks"
)

// slider is one 1–7 rating control on the Part A page.
type slider struct {
	Name  string
	Label string
}

var aSliders = []slider{
	{"adherence", "Prompt adherence"},
	{"aesthetic", "Aesthetic quality"},
	{"creativity", "Creativity"},
	{"style", "Anime style fit"},
}

func (s *Server) renderNoData(w http.ResponseWriter, title, msg string) {
	data := struct {
		pageBase
		Message string
	}{basePage(title, ""), msg}
	s.render(w, "no_data", data)
}

// --- Part A ---

func (s *Server) handleModuleA(w http.ResponseWriter, r *http.Request) {
	rater := s.sessions.EnsureRater(w, r)
	s.sessions.EnsurePlan(rater)

	row, idx, total, ok := rater.CurrentA()
	if !ok {
		s.renderNoData(w, "Part A", "No more Part A items for you right now. Thanks for rating!")
		return
	}
	s.pool.HydratePromptText(&row)
	prepend, core := manifest.SplitPrompt(row.PromptText)
	rater.StartTask("A", time.Now())

	data := struct {
		pageBase
		Idx, Total    int
		Item          manifest.Row
		PromptCore    string
		PromptPrepend string
		ImageB64      string
		Sliders       []slider
	}{
		pageBase:      basePage("Part A — Rate Images", flashFrom(r)),
		Idx:           idx + 1,
		Total:         total,
		Item:          row,
		PromptCore:    core,
		PromptPrepend: prepend,
		ImageB64:      encodePath(row.ImagePath),
		Sliders:       aSliders,
	}
	s.render(w, "module_a", data)
}

func (s *Server) handleSubmitA(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w)
		return
	}
	rater := s.sessions.EnsureRater(w, r)
	row, _, _, ok := rater.CurrentA()
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		api.WriteBadRequest(w, "unparsable form")
		return
	}

	ratings := map[string]int{}
	for _, sl := range aSliders {
		v, err := strconv.Atoi(r.PostFormValue(sl.Name))
		if err != nil || v < 1 || v > 7 {
			http.Redirect(w, r, flashURL("/a", "bad_rating"), http.StatusSeeOther)
			return
		}
		ratings[sl.Name] = v
	}
	textCorr := r.PostFormValue("text_correctness")
	if row.HasText {
		switch textCorr {
		case "correct", "partial", "incorrect":
		default:
			http.Redirect(w, r, flashURL("/a", "bad_rating"), http.StatusSeeOther)
			return
		}
	} else {
		textCorr = ""
	}

	s.pool.HydratePromptText(&row)
	now := time.Now().UTC()
	resp := store.ResponseA{
		RaterID:         rater.ID,
		Provider:        row.Provider,
		Model:           row.Model,
		CategoryID:      row.CategoryID,
		PromptID:        row.PromptID,
		SeedLabel:       row.SeedLabel,
		ImagePath:       row.ImagePath,
		PromptText:      row.PromptText,
		HasText:         row.HasText,
		NoPeople:        row.NoPeople,
		Adherence:       ratings["adherence"],
		Aesthetic:       ratings["aesthetic"],
		Creativity:      ratings["creativity"],
		Style:           ratings["style"],
		TextCorrectness: textCorr,
		PeopleViolation: row.NoPeople && r.PostFormValue("people_violation") == "1",
		ElapsedMS:       s.elapsed(r, rater, "A", now),
		SubmittedUTC:    now,
	}
	if err := s.store.InsertA(r.Context(), resp); err != nil {
		api.WriteInternal(w, err)
		return
	}
	rater.MarkSeenA(row.Provider, row.CategoryID, row.PromptID, row.SeedLabel)
	rater.Advance("A")
	s.afterSubmit(w, r, rater, "A")
}

// --- Part B ---

// bCard is one candidate image with its rank pills.
type bCard struct {
	Provider string
	ImageB64 string
	Pills    []bPill
}

type bPill struct {
	ranking.Pill
	Provider string
}

type bPageData struct {
	pageBase
	Idx, Total         int
	CategoryID         string
	PromptID           string
	SeedLabel          int
	PromptCore         string
	NumRanks           int
	InstructionsHidden bool

	// rank_panel fields, also rendered standalone for HTMX swaps.
	Cards         []bCard
	Progress      string
	SubmitEnabled bool
}

// bTask resolves the rater's current Part B set and its assignment.
func (s *Server) bTask(rater *session.Rater) (key tasks.BKey, set map[string]manifest.Row, asg *ranking.Assignment, idx, total int, ok bool) {
	key, idx, total, ok = rater.CurrentB()
	if !ok {
		return
	}
	set, ok = s.pool.BSet(key)
	if !ok {
		// Pool was reloaded under the rater's feet; skip the orphan.
		slog.Warn("ranking set vanished from pool", "category", key.CategoryID, "prompt", key.PromptID, "seed", key.SeedLabel)
		rater.Advance("B")
		return key, nil, nil, idx, total, false
	}
	providers := make([]string, 0, len(set))
	for p := range set {
		providers = append(providers, p)
	}
	asg = rater.Ranking(key, providers)
	return key, set, asg, idx, total, true
}

func (s *Server) bPage(rater *session.Rater, flash string) (bPageData, bool) {
	key, set, asg, idx, total, ok := s.bTask(rater)
	if !ok {
		return bPageData{}, false
	}

	var promptText string
	for _, row := range set {
		promptText = row.PromptText
		break
	}
	_, core := manifest.SplitPrompt(promptText)

	view := asg.View(s.viewOpts)
	data := bPageData{
		pageBase:           basePage("Part B — Rank Images", flash),
		Idx:                idx + 1,
		Total:              total,
		CategoryID:         key.CategoryID,
		PromptID:           key.PromptID,
		SeedLabel:          key.SeedLabel,
		PromptCore:         core,
		NumRanks:           asg.Size(),
		InstructionsHidden: s.sessions.InstructionsHidden(rater.ID),
		Progress:           view.Progress,
		SubmitEnabled:      view.SubmitEnabled,
	}
	for _, pv := range view.Providers {
		card := bCard{
			Provider: pv.Provider,
			ImageB64: encodePath(set[pv.Provider].ImagePath),
		}
		for _, pill := range pv.Pills {
			card.Pills = append(card.Pills, bPill{Pill: pill, Provider: pv.Provider})
		}
		data.Cards = append(data.Cards, card)
	}
	return data, true
}

func (s *Server) handleModuleB(w http.ResponseWriter, r *http.Request) {
	rater := s.sessions.EnsureRater(w, r)
	s.sessions.EnsurePlan(rater)

	data, ok := s.bPage(rater, flashFrom(r))
	if !ok {
		s.renderNoData(w, "Part B", "No more ranking sets for you right now. Thanks for ranking!")
		return
	}
	rater.StartTask("B", time.Now())
	s.render(w, "module_b", data)
}

func (s *Server) handlePickB(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w)
		return
	}
	rater := s.sessions.EnsureRater(w, r)
	s.sessions.EnsurePlan(rater)

	_, set, asg, _, _, ok := s.bTask(rater)
	if !ok {
		api.WriteNotFound(w, "no active ranking task")
		return
	}
	if err := r.ParseForm(); err != nil {
		api.WriteBadRequest(w, "unparsable form")
		return
	}
	rank, err := strconv.Atoi(r.PostFormValue("rank"))
	if err != nil {
		api.WriteBadRequest(w, "rank must be an integer")
		return
	}
	provider := r.PostFormValue("provider")
	if _, known := set[provider]; !known {
		api.WriteBadRequest(w, "unknown provider")
		return
	}
	asg.Pick(provider, rank)

	if r.Header.Get("HX-Request") != "" {
		data, ok := s.bPage(rater, "")
		if !ok {
			api.WriteNotFound(w, "no active ranking task")
			return
		}
		s.render(w, "rank_panel", data)
		return
	}
	http.Redirect(w, r, "/b", http.StatusSeeOther)
}

func (s *Server) handleSubmitB(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w)
		return
	}
	rater := s.sessions.EnsureRater(w, r)
	key, set, asg, _, _, ok := s.bTask(rater)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	ranks := asg.Ranks()
	if len(ranks) != asg.Size() {
		http.Redirect(w, r, flashURL("/b", "ties"), http.StatusSeeOther)
		return
	}

	now := time.Now().UTC()
	elapsed := s.elapsed(r, rater, "B", now)
	rows := make([]store.ResponseB, 0, asg.Size())
	for provider, rank := range ranks {
		rows = append(rows, store.ResponseB{
			RaterID:      rater.ID,
			CategoryID:   key.CategoryID,
			PromptID:     key.PromptID,
			SeedLabel:    key.SeedLabel,
			Provider:     provider,
			Rank:         rank,
			ImagePath:    set[provider].ImagePath,
			ElapsedMS:    elapsed,
			SubmittedUTC: now,
		})
	}
	if err := s.store.InsertB(r.Context(), rows); err != nil {
		api.WriteInternal(w, err)
		return
	}
	rater.MarkSeenB(key)
	rater.Advance("B")
	s.afterSubmit(w, r, rater, "B")
}

// --- Part C ---

func (s *Server) handleModuleC(w http.ResponseWriter, r *http.Request) {
	rater := s.sessions.EnsureRater(w, r)
	s.sessions.EnsurePlan(rater)

	cs, idx, total, ok := rater.CurrentC()
	if !ok {
		s.renderNoData(w, "Part C", "No more diversity grids for you right now. Thanks!")
		return
	}
	_, core := manifest.SplitPrompt(cs.Rows[0].PromptText)
	rater.StartTask("C", time.Now())

	type tile struct {
		ImageB64  string
		SeedLabel int
	}
	data := struct {
		pageBase
		Idx, Total int
		Provider   string
		CategoryID string
		PromptID   string
		PromptCore string
		Tiles      []tile
	}{
		pageBase:   basePage("Part C — Seed Diversity", flashFrom(r)),
		Idx:        idx + 1,
		Total:      total,
		Provider:   cs.Provider,
		CategoryID: cs.CategoryID,
		PromptID:   cs.PromptID,
		PromptCore: core,
	}
	for _, row := range cs.Rows {
		data.Tiles = append(data.Tiles, tile{encodePath(row.ImagePath), row.SeedLabel})
	}
	s.render(w, "module_c", data)
}

func (s *Server) handleSubmitC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		api.WriteMethodNotAllowed(w)
		return
	}
	rater := s.sessions.EnsureRater(w, r)
	cs, _, _, ok := rater.CurrentC()
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	diversity, err := strconv.Atoi(r.PostFormValue("diversity"))
	if err != nil || diversity < 1 || diversity > 7 {
		http.Redirect(w, r, flashURL("/c", "bad_rating"), http.StatusSeeOther)
		return
	}

	now := time.Now().UTC()
	paths := make([]string, 0, len(cs.Rows))
	for _, row := range cs.Rows {
		paths = append(paths, row.ImagePath)
	}
	resp := store.ResponseC{
		RaterID:      rater.ID,
		Provider:     cs.Provider,
		CategoryID:   cs.CategoryID,
		PromptID:     cs.PromptID,
		Diversity:    diversity,
		ImagePaths:   paths,
		ElapsedMS:    s.elapsed(r, rater, "C", now),
		SubmittedUTC: now,
	}
	if err := s.store.InsertC(r.Context(), resp); err != nil {
		api.WriteInternal(w, err)
		return
	}
	rater.MarkSeenC(cs.Key())
	rater.Advance("C")
	s.afterSubmit(w, r, rater, "C")
}

// --- shared ---

// elapsed prefers the client-measured duration from the form and falls
// back to the server-side page timer.
func (s *Server) elapsed(r *http.Request, rater *session.Rater, module string, now time.Time) int64 {
	if v, err := strconv.ParseInt(r.PostFormValue("elapsed_ms"), 10, 64); err == nil && v > 0 {
		return v
	}
	return rater.ElapsedMS(module, now)
}

func (s *Server) handleInstructions(hide bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			api.WriteMethodNotAllowed(w)
			return
		}
		rater := s.sessions.EnsureRater(w, r)
		if hide {
			s.sessions.HideInstructions(rater.ID)
		} else {
			s.sessions.ShowInstructions(rater.ID)
		}
		http.Redirect(w, r, "/b", http.StatusSeeOther)
	}
}
