package web

import (
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
)

// All pages are standalone templates sharing the header/footer
// partials. Keeping them in the binary means the survey machine needs
// nothing besides the config file and the image folders.
const templateSrc = `
{{define "header"}}<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <title>{{.Title}}</title>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  <link rel="stylesheet" href="/static/style.css">
  <script src="https://unpkg.com/htmx.org@1.9.10"></script>
  <script defer src="/static/client.js"></script>
</head>
<body>
  <header>
    <div class="container"><h1>{{.Heading}}</h1></div>
  </header>
  <main class="container">
  {{if .Flash}}<div class="flash">{{.Flash}}</div>{{end}}
{{end}}

{{define "footer"}}
  </main>
  <footer>
    <div class="container small"><span>Local survey • Your responses are anonymous.</span></div>
  </footer>
</body>
</html>
{{end}}

{{define "home"}}{{template "header" .}}
<section class="card">
  <h2>Welcome</h2>
  <p>Help us evaluate AI models for <strong>animation-style images</strong>. Choose one quick module:</p>
  <ul>
    <li><strong>Part A</strong> – Rate single images. ({{.Remaining.A}} left in your plan)</li>
    <li><strong>Part B</strong> – Rank {{.ProviderCount}} images for the same prompt. ({{.Remaining.B}} left)</li>
    <li><strong>Part C</strong> – Judge diversity of seed variations. ({{.Remaining.C}} left)</li>
  </ul>
  <div class="buttons">
    <a class="btn" href="/start/A">Start Part A</a>
    <a class="btn" href="/start/B">Start Part B</a>
    <a class="btn" href="/start/C">Start Part C</a>
  </div>
</section>
<section class="card">
  <h3>Do everything in one go?</h3>
  <p>Run a full session: <strong>A → B → C</strong>.</p>
  <div class="buttons"><a class="btn" href="/start/full">Start Full Session</a></div>
</section>
<section class="card small">
  <p>Pools: {{.Sizes.AImages}} images ({{.Sizes.ASets}} sets) · {{.Sizes.BSets}} ranking sets · {{.Sizes.CGrids}} diversity grids</p>
</section>
{{template "footer" .}}{{end}}

{{define "module_a"}}{{template "header" .}}
<form class="card" method="post" action="/submit/a" onsubmit="return beforeSubmit('elapsed_ms_a')">
  <div class="headrow"><div>Part A — Image {{.Idx}} of {{.Total}}</div></div>
  <p class="prompt"><strong>Prompt:</strong> {{.PromptCore}}</p>
  <p class="small">
    <button type="button" class="btn" id="prepend-toggle" onclick="togglePrepend()">see full prompt</button>
  </p>
  <p class="prompt small" id="prepend-text" hidden>{{.PromptPrepend}}</p>
  <div class="img-wrap">
    <img src="/img?p={{.ImageB64}}" alt="image" onclick="openZoom(this.src)"/>
  </div>

  {{range .Sliders}}
  <div class="field">
    <label>{{.Label}} (1–7)</label>
    <input type="range" name="{{.Name}}" min="1" max="7" value="4" step="1" oninput="showVal(this)">
    <span class="bubble">4</span>
  </div>
  {{end}}

  {{if .Item.HasText}}
  <div class="field">
    <label>Text correctness</label>
    <select name="text_correctness" required>
      <option value="">Choose…</option>
      <option value="correct">Correct</option>
      <option value="partial">Partially correct</option>
      <option value="incorrect">Incorrect / Illegible</option>
    </select>
  </div>
  {{else}}<input type="hidden" name="text_correctness" value="">{{end}}

  {{if .Item.NoPeople}}
  <div class="field">
    <label>Does the image wrongly include people?</label>
    <select name="people_violation" required>
      <option value="0">No</option>
      <option value="1">Yes</option>
    </select>
  </div>
  {{else}}<input type="hidden" name="people_violation" value="0">{{end}}

  <input type="hidden" name="provider" value="{{.Item.Provider}}">
  <input type="hidden" name="model" value="{{.Item.Model}}">
  <input type="hidden" name="category_id" value="{{.Item.CategoryID}}">
  <input type="hidden" name="prompt_id" value="{{.Item.PromptID}}">
  <input type="hidden" name="seed_label" value="{{.Item.SeedLabel}}">
  <input type="hidden" name="image_path" value="{{.Item.ImagePath}}">
  <input type="hidden" id="elapsed_ms_a" name="elapsed_ms" value="0">

  <div class="buttons"><button class="btn" type="submit">Submit &amp; Next</button></div>
</form>
{{template "zoom_dialog" .}}
{{template "footer" .}}{{end}}

{{define "module_b"}}{{template "header" .}}
<section class="card" id="instructions" {{if .InstructionsHidden}}hidden{{end}}>
  <div class="headrow">
    <h3>How to rank</h3>
    <form method="post" action="/instructions/hide">
      <button class="btn" type="submit">Hide</button>
    </form>
  </div>
  <p>Click a rank pill on each image: <strong>1 = best, {{.NumRanks}} = worst</strong>. Click the same pill again
     to clear it; click a taken pill to move that rank here. Ranks are unique — no ties.</p>
</section>
{{if .InstructionsHidden}}
<form method="post" action="/instructions/show">
  <button class="btn small" type="submit">Show instructions</button>
</form>
{{end}}

<form class="card" method="post" action="/submit/b" onsubmit="return beforeSubmit('elapsed_ms_b')">
  <div class="headrow"><div>Part B — Set {{.Idx}} of {{.Total}}</div></div>
  <p class="prompt"><strong>Prompt:</strong> {{.PromptCore}}</p>
  <p class="small">Category: {{.CategoryID}} · Seed: {{.SeedLabel}}</p>

  {{template "rank_panel" .}}

  <input type="hidden" name="category_id" value="{{.CategoryID}}">
  <input type="hidden" name="prompt_id" value="{{.PromptID}}">
  <input type="hidden" name="seed_label" value="{{.SeedLabel}}">
  <input type="hidden" id="elapsed_ms_b" name="elapsed_ms" value="0">
</form>
{{template "zoom_dialog" .}}
{{template "footer" .}}{{end}}

{{define "rank_panel"}}
<div id="rank-panel">
  <div class="grid-2">
    {{range .Cards}}
    <div class="tile" data-provider="{{.Provider}}">
      <img src="/img?p={{.ImageB64}}" alt="candidate" onclick="openZoom(this.src)">
      <div class="rank-field">
        {{range .Pills}}
        <button type="button"
                class="pill{{if .Active}} active{{end}}{{if .Taken}} taken{{end}}"
                {{if .Disabled}}disabled{{end}}
                hx-post="/b/pick" hx-target="#rank-panel" hx-swap="outerHTML"
                hx-vals='{"provider":"{{.Provider}}","rank":"{{.Rank}}"}'>{{.Rank}}</button>
        {{end}}
      </div>
    </div>
    {{end}}
  </div>
  <div class="headrow">
    <div class="progress">{{.Progress}}</div>
    <button class="btn" type="submit" {{if not .SubmitEnabled}}disabled{{end}}>Submit &amp; Next</button>
  </div>
</div>
{{end}}

{{define "module_c"}}{{template "header" .}}
<form class="card" method="post" action="/submit/c" onsubmit="return beforeSubmit('elapsed_ms_c')">
  <div class="headrow"><div>Part C — Set {{.Idx}} of {{.Total}}</div></div>
  <p class="prompt"><strong>Prompt:</strong> {{.PromptCore}}</p>
  <p class="small">Provider: {{.Provider}} · Category: {{.CategoryID}}</p>

  <div class="grid-5">
    {{range .Tiles}}
    <div class="tile">
      <img src="/img?p={{.ImageB64}}" alt="variant" onclick="openZoom(this.src)">
      <div class="seedlabel">seed {{.SeedLabel}}</div>
    </div>
    {{end}}
  </div>

  <div class="field">
    <label>Diversity (1–7): How different are these while still matching the prompt?</label>
    <input type="range" name="diversity" min="1" max="7" value="4" step="1" oninput="showVal(this)">
    <span class="bubble">4</span>
  </div>

  <input type="hidden" name="provider" value="{{.Provider}}">
  <input type="hidden" name="category_id" value="{{.CategoryID}}">
  <input type="hidden" name="prompt_id" value="{{.PromptID}}">
  <input type="hidden" id="elapsed_ms_c" name="elapsed_ms" value="0">

  <div class="buttons"><button class="btn" type="submit">Submit &amp; Next</button></div>
</form>
{{template "zoom_dialog" .}}
{{template "footer" .}}{{end}}

{{define "zoom_dialog"}}
<dialog id="zoom" onclick="zoomBackdropClick(event)">
  <img id="zoom-img" src="" alt="zoom">
  <form method="dialog"><button class="btn">Close</button></form>
</dialog>
{{end}}

{{define "no_data"}}{{template "header" .}}
<section class="card">
  <h2>{{.Title}}</h2>
  <p>{{.Message}}</p>
  <div class="buttons"><a class="btn" href="/">Home</a></div>
</section>
{{template "footer" .}}{{end}}

{{define "thanks"}}{{template "header" .}}
<section class="card">
  <h2>Thanks!</h2>
  <p>Your responses were recorded. You can choose another part or close this window.</p>
  <div class="buttons"><a class="btn" href="/">Home</a></div>
</section>
{{template "footer" .}}{{end}}

{{define "admin_login"}}{{template "header" .}}
<form class="card" method="post" action="/admin/login{{if .Next}}?next={{.Next}}{{end}}">
  <h2>Admin Login</h2>
  <p>Enter the admin token.</p>
  <div class="field">
    <label>Token</label>
    <input name="token" type="password" required autocomplete="current-password"/>
  </div>
  <div class="buttons">
    <button class="btn" type="submit">Login</button>
    <a class="btn" href="/">Cancel</a>
  </div>
</form>
{{template "footer" .}}{{end}}

{{define "admin"}}{{template "header" .}}
<section class="card">
  <div class="headrow">
    <h2>Overview</h2>
    <div>
      <button class="btn" hx-post="/admin/reload" hx-swap="none">Reload Pools</button>
      <a class="btn" href="/admin/export">Export CSVs</a>
      <button class="btn" hx-post="/admin/clear_seen_me" hx-swap="none">Clear My Seen</button>
      <button class="btn" hx-post="/admin/clear_seen_all" hx-swap="none">Clear All Seen</button>
      <a class="btn" href="/admin/logout">Logout</a>
    </div>
  </div>
  <div class="grid-3 smallcards" hx-get="/admin/stats" hx-trigger="load, every 5s" hx-swap="none"
       hx-on::after-request="renderStats(JSON.parse(event.detail.xhr.responseText))">
  </div>
  <div id="overview" class="grid-3 smallcards"></div>
</section>
<section class="card"><h3>Module A — MOS per provider</h3><table id="tableA" class="table"><tbody></tbody></table></section>
<section class="card"><h3>Module A — Text correctness</h3><table id="tableText" class="table"><tbody></tbody></table></section>
<section class="card"><h3>Module A — No-people rule</h3><table id="tablePeople" class="table"><tbody></tbody></table></section>
<section class="card"><h3>Module B — Rankings</h3><table id="tableB" class="table"><tbody></tbody></table></section>
<section class="card"><h3>Module C — Diversity</h3><table id="tableC" class="table"><tbody></tbody></table></section>
<section class="card"><h3>Recent submissions</h3><div class="grid-3 smallcards" id="recent"></div></section>
<script src="/static/admin.js"></script>
{{template "footer" .}}{{end}}
`

// pageBase carries the fields every page template expects.
type pageBase struct {
	Title   string
	Heading string
	Flash   string
}

func basePage(title, flash string) pageBase {
	if title == "" {
		title = "Animation Image Survey"
	}
	return pageBase{Title: title, Heading: "Animation Image Survey", Flash: flash}
}

func parseTemplates() *template.Template {
	return template.Must(template.New("survey").Parse(templateSrc))
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("render template", "template", name, "error", err)
	}
}

// flashMessages maps flash codes (carried in the query string across
// redirects) to their user-facing text.
var flashMessages = map[string]string{
	"ties":       "Please assign unique ranks before submitting.",
	"bad_token":  "Invalid admin token.",
	"bad_rating": "Please complete all ratings before submitting.",
}

func flashFrom(r *http.Request) string {
	return flashMessages[r.URL.Query().Get("flash")]
}

func flashURL(path, code string) string {
	return fmt.Sprintf("%s?flash=%s", path, code)
}
