package web

import (
	"net/http"
	"strings"
)

const styleCSS = `
:root { --bg: #f6f7fb; --card: #ffffff; --ink: #1c2330; --accent: #4455ee; --muted: #6b7485; }
* { box-sizing: border-box; }
body { margin: 0; background: var(--bg); color: var(--ink); font: 16px/1.5 system-ui, sans-serif; }
.container { max-width: 980px; margin: 0 auto; padding: 0 16px; }
header { background: var(--card); border-bottom: 1px solid #e3e6ef; }
header h1 { font-size: 1.2rem; margin: 12px 0; }
footer { color: var(--muted); margin: 24px 0; }
.small { font-size: 0.85rem; color: var(--muted); }
.card { background: var(--card); border: 1px solid #e3e6ef; border-radius: 10px; padding: 16px; margin: 16px 0; }
.smallcards > div { background: var(--card); border: 1px solid #e3e6ef; border-radius: 8px; padding: 10px; }
.headrow { display: flex; justify-content: space-between; align-items: center; gap: 12px; }
.flash { background: #fff3cd; border: 1px solid #ffe69c; padding: 10px 14px; border-radius: 8px; margin: 12px 0; }
.btn { display: inline-block; background: var(--accent); color: #fff; border: 0; border-radius: 8px;
       padding: 8px 14px; text-decoration: none; cursor: pointer; font-size: 0.95rem; }
.btn[disabled] { background: #aab; cursor: not-allowed; }
.buttons { display: flex; gap: 10px; margin-top: 12px; flex-wrap: wrap; }
.field { margin: 14px 0; }
.field label { display: block; font-weight: 600; margin-bottom: 4px; }
.bubble { display: inline-block; min-width: 1.6em; text-align: center; background: var(--accent);
          color: #fff; border-radius: 6px; margin-left: 8px; }
.prompt { background: #eef0fa; border-radius: 8px; padding: 8px 12px; }
.img-wrap img, .tile img { max-width: 100%; border-radius: 8px; cursor: zoom-in; }
.grid-2 { display: grid; grid-template-columns: repeat(2, 1fr); gap: 14px; }
.grid-3 { display: grid; grid-template-columns: repeat(3, 1fr); gap: 10px; }
.grid-5 { display: grid; grid-template-columns: repeat(5, 1fr); gap: 8px; }
@media (max-width: 720px) { .grid-5 { grid-template-columns: repeat(2, 1fr); } .grid-2 { grid-template-columns: 1fr; } }
.tile { text-align: center; }
.seedlabel { color: var(--muted); font-size: 0.8rem; }
.rank-field { display: flex; justify-content: center; gap: 6px; margin-top: 6px; }
.pill { width: 38px; height: 38px; border-radius: 50%; border: 2px solid var(--accent);
        background: #fff; color: var(--accent); font-weight: 700; cursor: pointer; }
.pill.active { background: var(--accent); color: #fff; }
.pill.taken:not(.active) { border-style: dashed; opacity: 0.7; }
.pill[disabled] { opacity: 0.35; cursor: not-allowed; }
.progress { font-weight: 600; }
.table { width: 100%; border-collapse: collapse; }
.table td, .table th { border-bottom: 1px solid #e3e6ef; padding: 6px 8px; text-align: left; }
dialog#zoom { border: 0; border-radius: 10px; max-width: 92vw; }
dialog#zoom img { max-width: 88vw; max-height: 82vh; }
dialog::backdrop { background: rgba(10, 14, 28, 0.7); }
`

const clientJS = `
function showVal(input) {
  const bubble = input.parentElement.querySelector('.bubble');
  if (bubble) bubble.textContent = input.value;
}

function togglePrepend() {
  const text = document.getElementById('prepend-text');
  const btn = document.getElementById('prepend-toggle');
  if (!text) return;
  text.hidden = !text.hidden;
  if (btn) btn.textContent = text.hidden ? 'see full prompt' : 'hide full prompt';
}

let taskStarted = Date.now();

function beforeSubmit(fieldID) {
  const field = document.getElementById(fieldID);
  if (field && (!field.value || field.value === '0')) {
    field.value = String(Date.now() - taskStarted);
  }
  return true;
}

function openZoom(src) {
  const dlg = document.getElementById('zoom');
  if (!dlg) return;
  document.getElementById('zoom-img').src = src;
  dlg.showModal();
}

function zoomBackdropClick(ev) {
  if (ev.target.id === 'zoom') ev.target.close();
}

document.addEventListener('keydown', function (ev) {
  if (ev.key === 'Escape') {
    const dlg = document.getElementById('zoom');
    if (dlg && dlg.open) dlg.close();
  }
});
`

const adminJS = `
function cell(label, value) {
  return '<div><div class="small">' + label + '</div><div><strong>' + value + '</strong></div></div>';
}

function fillTable(id, header, rows) {
  const body = document.querySelector('#' + id + ' tbody');
  if (!body) return;
  let html = '<tr>' + header.map(function (h) { return '<th>' + h + '</th>'; }).join('') + '</tr>';
  rows.forEach(function (r) {
    html += '<tr>' + r.map(function (v) { return '<td>' + v + '</td>'; }).join('') + '</tr>';
  });
  body.innerHTML = html;
}

function num(v) { return v == null ? '–' : (typeof v === 'number' ? v.toFixed(2) : v); }

function recentLine(mod, r) {
  const bits = [r.provider, r.category_id + '/' + r.prompt_id];
  if (r.seed_label) bits.push('seed ' + r.seed_label);
  if (r.diversity) bits.push('diversity ' + r.diversity);
  return cell(mod + ' · ' + r.submitted_utc, bits.filter(Boolean).join(' · '));
}

function renderStats(s) {
  const ov = document.getElementById('overview');
  if (ov) {
    ov.innerHTML =
      cell('Raters', s.totals.raters) +
      cell('A responses', s.totals.A) +
      cell('B submissions', s.totals.B) +
      cell('C responses', s.totals.C) +
      cell('A pool', s.pools.pool_A + ' images') +
      cell('B / C pools', s.pools.pool_B + ' / ' + s.pools.pool_C);
  }
  fillTable('tableA', ['Provider', 'n', 'Adherence', 'Aesthetic', 'Creativity', 'Style'],
    s.A.mos.map(function (r) {
      return [r.provider, r.n, num(r.adherence), num(r.aesthetic), num(r.creativity), num(r.style)];
    }));
  fillTable('tableText', ['Provider', 'Correct', 'Partial', 'Incorrect'],
    s.A.text.map(function (r) { return [r.provider, r.correct, r.partial, r.incorrect]; }));
  fillTable('tablePeople', ['Provider', 'With rule', 'Violations'],
    s.A.people.map(function (r) { return [r.provider, r.with_rule, r.violations]; }));
  fillTable('tableB', ['Provider', 'n', 'Avg rank', 'Wins'],
    s.B.ranking.map(function (r) { return [r.provider, r.n, num(r.avg_rank), r.wins]; }));
  fillTable('tableC', ['Provider', 'n', 'Avg diversity'],
    s.C.diversity.map(function (r) { return [r.provider, r.n, num(r.avg_diversity)]; }));
  const rec = document.getElementById('recent');
  if (rec) {
    rec.innerHTML =
      s.recent.A.map(function (r) { return recentLine('A', r); }).join('') +
      s.recent.B.map(function (r) { return recentLine('B', r); }).join('') +
      s.recent.C.map(function (r) { return recentLine('C', r); }).join('');
  }
}
`

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/static/")
	var body, ctype string
	switch name {
	case "style.css":
		body, ctype = styleCSS, "text/css; charset=utf-8"
	case "client.js":
		body, ctype = clientJS, "application/javascript; charset=utf-8"
	case "admin.js":
		body, ctype = adminJS, "application/javascript; charset=utf-8"
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", ctype)
	w.Header().Set("Cache-Control", "max-age=300")
	_, _ = w.Write([]byte(body))
}
