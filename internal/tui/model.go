// Package tui is the terminal audit console: search as you type, mark items
// and request transfers from the keyboard.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/JonMunkholm/patrimonio/internal/core"
)

type mode int

const (
	modeBrowse mode = iota
	modeRestore
	modeSearch
	modeTransfer
)

// Options configures the console.
type Options struct {
	// Export controls reports written with the x key.
	Export core.SerializeOptions
	// ExportPrefix names reports <prefix>_<date>.csv (default "report").
	ExportPrefix string
	// ExportDir is where reports are written (default current directory).
	ExportDir string
	// Debounce is the search quiet period (default core.DefaultDebounce).
	Debounce time.Duration
}

// searchMsg fires when the search box has been quiet for the debounce
// window. Only the one matching the latest keystroke is applied.
type searchMsg struct {
	seq   int
	query string
}

// Model is the bubbletea model of the console.
type Model struct {
	ctx     context.Context
	session *core.Session
	opts    Options

	mode         mode
	restoreCount int

	search    textinput.Model
	searchSeq int
	prompt    textinput.Model
	targets   []string

	page   core.Page
	cursor int

	status string
	err    string

	width, height int
	now           func() time.Time
}

// New builds the console around session. It opens on the restore prompt
// when a saved session is waiting.
func New(ctx context.Context, session *core.Session, opts Options) Model {
	if opts.ExportPrefix == "" {
		opts.ExportPrefix = "report"
	}
	if opts.Debounce <= 0 {
		opts.Debounce = core.DefaultDebounce
	}

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "tombo, descrição ou responsável"
	search.CharLimit = 120

	prompt := textinput.New()
	prompt.Prompt = "> "
	prompt.CharLimit = 200

	m := Model{
		ctx:     ctx,
		session: session,
		opts:    opts,
		search:  search,
		prompt:  prompt,
		width:   100,
		height:  30,
		now:     time.Now,
	}
	if count, pending := session.PendingRestore(); pending {
		m.mode = modeRestore
		m.restoreCount = count
	} else {
		m.refresh()
	}
	return m
}

// Run starts the console full-screen and blocks until the user quits.
func Run(ctx context.Context, session *core.Session, opts Options) error {
	p := tea.NewProgram(New(ctx, session, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case searchMsg:
		if msg.seq == m.searchSeq {
			m.session.SetQuery(msg.query)
			m.cursor = 0
			m.refreshPage(1)
		}
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modeRestore:
			return m.updateRestore(msg)
		case modeSearch:
			return m.updateSearch(msg)
		case modeTransfer:
			return m.updateTransfer(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) updateRestore(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var accept bool
	switch strings.ToLower(msg.String()) {
	case "s", "y", "enter":
		accept = true
	case "n", "esc":
		accept = false
	case "q":
		return m, tea.Quit
	default:
		return m, nil
	}

	n, err := m.session.ResolveRestore(m.ctx, accept)
	m.mode = modeBrowse
	if err != nil {
		m.setError(err)
		return m, nil
	}
	if accept {
		m.setStatus(fmt.Sprintf("Sessão restaurada: %d itens", n))
	} else {
		m.setStatus("Sessão salva descartada")
	}
	m.refresh()
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter, tea.KeyEsc:
		m.mode = modeBrowse
		m.search.Blur()
		// Apply immediately instead of waiting for the debounce.
		m.searchSeq++
		m.session.SetQuery(m.search.Value())
		m.cursor = 0
		m.refreshPage(1)
		return m, nil
	}

	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() == before {
		return m, cmd
	}

	m.searchSeq++
	seq, query := m.searchSeq, m.search.Value()
	tick := tea.Tick(m.opts.Debounce, func(time.Time) tea.Msg {
		return searchMsg{seq: seq, query: query}
	})
	return m, tea.Batch(cmd, tick)
}

func (m Model) updateTransfer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m = m.apply(core.ActionTransfer, core.StaticInput(m.prompt.Value()))
		m.closePrompt()
		return m, nil
	case tea.KeyEsc:
		m = m.apply(core.ActionTransfer, core.NoInput)
		m.closePrompt()
		return m, nil
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "/":
		m.mode = modeSearch
		m.search.Focus()
		return m, textinput.Blink
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.page.Items)-1 {
			m.cursor++
		}
	case "right", "l", "pgdown":
		if m.page.HasNext() {
			m.cursor = 0
			m.refreshPage(m.page.Page + 1)
		}
	case "left", "h", "pgup":
		if m.page.HasPrev() {
			m.cursor = 0
			m.refreshPage(m.page.Page - 1)
		}
	case " ":
		if it, ok := m.current(); ok {
			if m.isSelected(it.ID) {
				m.session.Unselect(it.ID)
			} else {
				m.session.Select(it.ID)
			}
		}
	case "c":
		m.session.ClearSelection()
	case "f":
		m = m.apply(core.ActionFound, core.NoInput)
	case "n":
		m = m.apply(core.ActionNotFound, core.NoInput)
	case "d":
		m = m.apply(core.ActionDispose, core.NoInput)
	case "t":
		m.targets = m.actionTargets()
		if len(m.targets) == 0 {
			m.setError(&core.ActionError{Action: core.ActionTransfer, Reason: core.ReasonNoTargets})
			return m, nil
		}
		m.mode = modeTransfer
		m.prompt.SetValue("")
		m.prompt.Placeholder = core.TransferPrompt(len(m.targets))
		m.prompt.Focus()
		return m, textinput.Blink
	case "x":
		m.export()
	}
	return m, nil
}

// actionTargets returns the selection, or the item under the cursor.
func (m Model) actionTargets() []string {
	if sel := m.session.Selection(); len(sel) > 0 {
		return sel
	}
	if it, ok := m.current(); ok {
		return []string{it.ID}
	}
	return nil
}

func (m Model) apply(action core.Action, input core.TextInput) Model {
	ids := m.targets
	if len(ids) == 0 {
		ids = m.actionTargets()
	}
	if len(ids) == 0 {
		m.setError(&core.ActionError{Action: action, Reason: core.ReasonNoTargets})
		return m
	}

	// Passing nil applies to the selection and clears it afterwards.
	var explicit []string
	if len(m.session.Selection()) == 0 {
		explicit = ids
	}

	updated, err := m.session.Apply(m.ctx, action, explicit, input)
	if err != nil {
		m.setError(err)
		return m
	}
	m.setStatus(fmt.Sprintf("%d item(ns) marcado(s) como %s", len(updated), action.Target()))
	m.refreshPage(m.page.Page)
	return m
}

func (m *Model) closePrompt() {
	m.mode = modeBrowse
	m.targets = nil
	m.prompt.Blur()
	m.prompt.SetValue("")
}

func (m *Model) export() {
	name := core.ExportFileName(m.opts.ExportPrefix, m.now())
	path := filepath.Join(m.opts.ExportDir, name)

	f, err := os.Create(path)
	if err != nil {
		m.setError(err)
		return
	}
	n, err := m.session.Export(f, m.opts.Export)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		m.setError(err)
		return
	}
	m.setStatus(fmt.Sprintf("Relatório exportado: %s (%d itens)", path, n))
}

func (m *Model) refresh() {
	m.refreshPage(m.session.CurrentPage())
}

func (m *Model) refreshPage(n int) {
	page, err := m.session.Page(n)
	if err != nil {
		m.setError(err)
		return
	}
	m.page = page
	if m.cursor >= len(page.Items) {
		m.cursor = max(len(page.Items)-1, 0)
	}
}

func (m Model) current() (core.Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.page.Items) {
		return core.Item{}, false
	}
	return m.page.Items[m.cursor], true
}

func (m Model) isSelected(id string) bool {
	for _, s := range m.session.Selection() {
		if s == id {
			return true
		}
	}
	return false
}

func (m *Model) setStatus(s string) {
	m.status, m.err = s, ""
}

func (m *Model) setError(err error) {
	msg := core.MapError(err)
	m.status, m.err = "", msg.Message
	if msg.Action != "" {
		m.err += ". " + msg.Action
	}
}

func (m Model) View() string {
	if m.mode == modeRestore {
		body := fmt.Sprintf("Encontramos uma sessão salva com %s itens.\nDeseja restaurá-la? %s",
			accentStyle.Render(fmt.Sprint(m.restoreCount)),
			helpStyle.Render("(s/n)"))
		return panelStyle.Render(titleStyle.Render("Conferência de Patrimônio") + "\n\n" + body)
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	if m.mode == modeSearch || m.search.Value() != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	b.WriteString(m.table())

	if m.mode == modeTransfer {
		b.WriteString("\n")
		b.WriteString(promptBox.Render(core.TransferPrompt(len(m.targets)) + "\n" + m.prompt.View()))
	}

	b.WriteString("\n")
	switch {
	case m.err != "":
		b.WriteString(errorStyle.Render(m.err))
	case m.status != "":
		b.WriteString(okStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("/ buscar  ↑↓ mover  ←→ página  espaço selecionar  f encontrado  n não encontrado  t transferir  d desfazimento  x exportar  q sair"))
	return panelStyle.Render(b.String())
}

func (m Model) header() string {
	c := m.session.Counts()
	parts := []string{titleStyle.Render("Conferência de Patrimônio"), accentStyle.Render(fmt.Sprintf("Total %d", c.Total))}
	for _, st := range core.Statuses {
		parts = append(parts, fmt.Sprintf("%s %d", statusText(st), c.Of(st)))
	}
	if sel := len(m.session.Selection()); sel > 0 {
		parts = append(parts, accentStyle.Render(fmt.Sprintf("%d selecionado(s)", sel)))
	}
	return strings.Join(parts, "  ")
}

func (m Model) table() string {
	if len(m.page.Items) == 0 {
		if m.session.Counts().Total == 0 {
			return mutedStyle.Render("Nenhum item carregado. Use `auditctl import ARQUIVO`.")
		}
		return mutedStyle.Render("Nenhum item encontrado")
	}

	descWidth := max(m.width-70, 20)
	rows := make([]string, 0, len(m.page.Items)+1)
	for i, it := range m.page.Items {
		mark := unselectedMrk
		if m.isSelected(it.ID) {
			mark = selectedMark
		}
		line := fmt.Sprintf("%s %-10s %-*s %-20s %s",
			mark,
			it.ID,
			descWidth, truncate(it.DisplayDescription(), descWidth),
			truncate(it.DisplayResponsible(), 20),
			statusText(it.Status),
		)
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		rows = append(rows, line)
	}
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("Página %d de %d (%d itens)", m.page.Page, max(m.page.TotalPages, 1), m.page.TotalItems)))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
