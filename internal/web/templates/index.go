// Package templates renders the audit pages as templ components.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/patrimonio/internal/core"
)

// IndexData is everything the main page shows.
type IndexData struct {
	RestorePending bool
	RestoreCount   int

	Query     string
	Encoding  string

	// Tombo is the exact-lookup field; Checked is its item when found.
	Tombo   string
	Checked *core.Item

	Counts    core.Counts
	Page      core.Page
	Processed core.Page
}

// Index renders the audit page: the restore prompt while a saved session is
// pending, otherwise the upload form, totals, the items table and the
// processed-items list.
func Index(d IndexData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(pageHead)
		p.raw(`<body><main>`)
		p.raw(`<h1>Conferência de Patrimônio</h1>`)

		if d.RestorePending {
			p.f(`<section id="restore" class="card"><p>Encontramos uma sessão salva com <strong>%d</strong> itens. Deseja restaurá-la?</p>`, d.RestoreCount)
			p.raw(`<button onclick="restore(true)">Restaurar</button> <button onclick="restore(false)">Descartar</button></section>`)
			p.raw(pageScript)
			p.raw(`</main></body></html>`)
			return p.err
		}

		renderUpload(p, d.Encoding)
		if d.Counts.Total > 0 {
			renderCheck(p, d)
			renderStats(p, d.Counts)
			renderSearch(p, d.Query)
			renderItems(p, d)
			renderProcessed(p, d)
			p.raw(`<section class="card"><a class="button" href="/api/export">Exportar relatório</a> `)
			p.raw(`<button onclick="resetAll()">Apagar todos os dados</button></section>`)
		}

		p.raw(pageScript)
		p.raw(`</main></body></html>`)
		return p.err
	})
}

// ErrorPage renders a standalone error message.
func ErrorPage(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &printer{w: w}
		p.raw(pageHead)
		p.raw(`<body><main><section class="card error" role="alert">`)
		p.f(`<p><strong>%s</strong></p>`, esc(message))
		if action != "" {
			p.f(`<p>%s</p>`, esc(action))
		}
		if code != "" {
			p.f(`<p class="muted">Código: %s</p>`, esc(code))
		}
		p.raw(`<p><a href="/">Voltar</a></p></section></main></body></html>`)
		return p.err
	})
}

func renderUpload(p *printer, encoding string) {
	p.raw(`<section class="card"><form id="upload" onsubmit="return importFile(event)">`)
	p.raw(`<input type="file" name="file" accept=".csv,text/csv" required> `)
	p.f(`<input type="text" name="encoding" value="%s" size="12" title="Codificação"> `, esc(encoding))
	p.raw(`<button type="submit">Importar CSV</button></form></section>`)
}

// renderCheck is the single-tombo flow: exact lookup, then the item and
// its action buttons.
func renderCheck(p *printer, d IndexData) {
	p.raw(`<section id="check" class="card"><form method="get" action="/">`)
	p.f(`<input type="text" name="tombo" value="%s" placeholder="Digite o tombo" autofocus> `, esc(d.Tombo))
	p.raw(`<button type="submit">Conferir</button></form>`)
	switch {
	case d.Checked != nil:
		it := d.Checked
		p.f(`<dl class="item"><dt>Tombo</dt><dd>%s</dd><dt>Descrição</dt><dd>%s</dd>`, esc(it.ID), esc(it.DisplayDescription()))
		p.f(`<dt>Responsável</dt><dd>%s</dd><dt>Status</dt><dd>%s</dd></dl>`, esc(it.DisplayResponsible()), esc(string(it.Status)))
		id := esc(jsString(it.ID))
		p.raw(`<div class="actions">`)
		p.f(`<button onclick="actOn('found', [%s])">Encontrado</button> `, id)
		p.f(`<button onclick="actOn('not_found', [%s])">Não encontrado</button> `, id)
		p.f(`<button onclick="actOn('transfer', [%s])">Transferir</button> `, id)
		p.f(`<button onclick="actOn('dispose', [%s])">Desfazimento</button></div>`, id)
	case d.Tombo != "":
		p.f(`<p class="error" role="alert">Tombo %s não encontrado</p>`, esc(d.Tombo))
	}
	p.raw(`</section>`)
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

func renderStats(p *printer, c core.Counts) {
	p.raw(`<section class="card"><table class="stats"><tr><th>Total</th>`)
	for _, st := range core.Statuses {
		p.f(`<th>%s</th>`, esc(string(st)))
	}
	p.f(`</tr><tr><td>%d</td>`, c.Total)
	for _, st := range core.Statuses {
		p.f(`<td>%d</td>`, c.Of(st))
	}
	p.raw(`</tr></table></section>`)
}

func renderSearch(p *printer, query string) {
	p.raw(`<section class="card"><form method="get" action="/">`)
	p.f(`<input type="search" name="q" value="%s" placeholder="Tombo, descrição ou responsável"> `, esc(query))
	p.raw(`<button type="submit">Buscar</button></form></section>`)
}

func renderItems(p *printer, d IndexData) {
	p.raw(`<section class="card"><table><thead><tr><th></th><th>Tombo</th><th>Descrição</th><th>Responsável</th><th>Status</th></tr></thead><tbody>`)
	if len(d.Page.Items) == 0 {
		p.raw(`<tr><td colspan="5" class="muted">Nenhum item encontrado</td></tr>`)
	}
	for _, it := range d.Page.Items {
		p.f(`<tr><td><input type="checkbox" name="sel" value="%s"></td>`, esc(it.ID))
		p.f(`<td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
			esc(it.ID), esc(it.DisplayDescription()), esc(it.DisplayResponsible()), esc(string(it.Status)))
	}
	p.raw(`</tbody></table>`)
	p.raw(`<div class="actions">`)
	p.raw(`<button onclick="act('found')">Encontrado</button> `)
	p.raw(`<button onclick="act('not_found')">Não encontrado</button> `)
	p.raw(`<button onclick="act('transfer')">Transferir</button> `)
	p.raw(`<button onclick="act('dispose')">Desfazimento</button></div>`)
	renderPager(p, d.Page, func(n int) string { return pageURL(d.Query, n, d.Processed.Page) })
	p.raw(`</section>`)
}

func renderProcessed(p *printer, d IndexData) {
	p.f(`<section class="card"><h2>Itens processados (%d)</h2><ul>`, d.Processed.TotalItems)
	for _, it := range d.Processed.Items {
		p.f(`<li>%s: %s (%s)</li>`, esc(it.ID), esc(it.DisplayDescription()), esc(string(it.Status)))
	}
	p.raw(`</ul>`)
	renderPager(p, d.Processed, func(n int) string { return pageURL(d.Query, d.Page.Page, n) })
	p.raw(`</section>`)
}

func renderPager(p *printer, pg core.Page, link func(int) string) {
	if pg.TotalPages <= 1 {
		return
	}
	p.raw(`<nav class="pager">`)
	if pg.HasPrev() {
		p.f(`<a href="%s">&laquo; Anterior</a> `, esc(link(pg.Page-1)))
	}
	p.f(`<span>Página %d de %d</span>`, pg.Page, pg.TotalPages)
	if pg.HasNext() {
		p.f(` <a href="%s">Próxima &raquo;</a>`, esc(link(pg.Page+1)))
	}
	p.raw(`</nav>`)
}

func pageURL(query string, page, processed int) string {
	v := url.Values{}
	if query != "" {
		v.Set("q", query)
	}
	if page > 1 {
		v.Set("page", strconv.Itoa(page))
	}
	if processed > 1 {
		v.Set("processed", strconv.Itoa(processed))
	}
	if len(v) == 0 {
		return "/"
	}
	return "/?" + v.Encode()
}

func esc(s string) string {
	return templ.EscapeString(s)
}

// printer writes fragments and keeps the first write error.
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) raw(s string) {
	if p.err != nil {
		return
	}
	_, p.err = io.WriteString(p.w, s)
}

func (p *printer) f(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

const pageHead = `<!DOCTYPE html><html lang="pt-BR"><head><meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Conferência de Patrimônio</title>
<style>
body{font-family:system-ui,sans-serif;margin:0;background:#f4f5f7;color:#222}
main{max-width:1100px;margin:0 auto;padding:1rem}
.card{background:#fff;border-radius:6px;padding:1rem;margin-bottom:1rem;box-shadow:0 1px 2px rgba(0,0,0,.08)}
table{width:100%;border-collapse:collapse}th,td{text-align:left;padding:.3rem .5rem;border-bottom:1px solid #eee}
.muted{color:#888}.error{border-left:4px solid #c0392b}.actions{margin:.75rem 0}.pager{margin-top:.5rem}
</style></head>`

const pageScript = `<script>
async function call(method, url, body) {
  const opts = {method: method, headers: {}};
  if (body instanceof FormData) { opts.body = body; }
  else if (body !== undefined) { opts.headers['Content-Type'] = 'application/json'; opts.body = JSON.stringify(body); }
  const res = await fetch(url, opts);
  if (!res.ok) {
    const e = await res.json().catch(() => ({message: res.statusText}));
    alert(e.message + (e.action ? '\n' + e.action : ''));
    return null;
  }
  return res.json();
}
async function importFile(ev) {
  ev.preventDefault();
  const r = await call('POST', '/api/import', new FormData(ev.target));
  if (r) location.href = '/';
  return false;
}
async function act(action) {
  await actOn(action, [...document.querySelectorAll('input[name=sel]:checked')].map(c => c.value));
}
async function actOn(action, ids) {
  const body = {action: action, ids: ids};
  if (action === 'transfer' && ids.length > 0) {
    const name = prompt(ids.length === 1 ? 'Digite o nome do novo responsável:' : 'Digite o nome do novo responsável para os ' + ids.length + ' itens:');
    if (name === null) return;
    body.new_responsible = name;
  }
  if (await call('POST', '/api/actions', body)) location.reload();
}
async function restore(accept) {
  if (await call('POST', '/api/session/restore', {accept: accept})) location.href = '/';
}
async function resetAll() {
  if (!confirm('Apagar todos os dados da conferência?')) return;
  if (await call('POST', '/api/reset')) location.href = '/';
}
</script>`
