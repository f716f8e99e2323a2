package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/JonMunkholm/patrimonio/internal/core"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	accentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	mutedStyle    = lipgloss.NewStyle().Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cursorStyle   = lipgloss.NewStyle().Bold(true).Reverse(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)
	promptBox     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
	selectedMark  = okStyle.Render("[x]")
	unselectedMrk = mutedStyle.Render("[ ]")
)

var statusStyles = map[core.Status]lipgloss.Style{
	core.StatusPending:           lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	core.StatusFound:             lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	core.StatusNotFound:          lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	core.StatusTransferRequested: lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	core.StatusDisposalRequested: lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
}

func statusText(s core.Status) string {
	if st, ok := statusStyles[s]; ok {
		return st.Render(string(s))
	}
	return string(s)
}
