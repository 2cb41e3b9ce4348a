package statusbar

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/sqlbridge/internal/notify"
	"github.com/joacominatel/sqlbridge/internal/server"
	"github.com/joacominatel/sqlbridge/internal/tui/theme"
)

const hints = "Ctrl+E: Execute │ Tab: Pane │ F2: Restart sqls │ ?: Help │ q: Quit"

// Model is the status bar component.
type Model struct {
	width      int
	state      server.State
	restarts   int
	alias      string
	activePane string
	message    string
	severity   notify.Severity
}

// New creates a new status bar model.
func New() Model {
	return Model{
		activePane: "explorer",
		severity:   notify.SeverityInfo,
	}
}

// SetWidth updates the component width.
func (m *Model) SetWidth(w int) {
	m.width = w
}

// SetServer updates the language server indicator.
func (m *Model) SetServer(state server.State, restarts int) {
	m.state = state
	m.restarts = restarts
}

// SetAlias sets the active connection shown next to the indicator.
func (m *Model) SetAlias(alias string) {
	m.alias = alias
}

// SetActivePane updates the displayed active pane name.
func (m *Model) SetActivePane(pane string) {
	m.activePane = pane
}

// SetMessage sets an info message; "" restores the key hints.
func (m *Model) SetMessage(msg string) {
	m.Notify(notify.SeverityInfo, msg)
}

// Notify shows a message colored by severity.
func (m *Model) Notify(sev notify.Severity, msg string) {
	m.message = msg
	m.severity = sev
}

// Message returns the current message.
func (m Model) Message() string {
	return m.message
}

func (m Model) indicator() string {
	label := "sqls " + m.state.String()
	if m.restarts > 0 {
		label += fmt.Sprintf(" (%d/%d restarts)", m.restarts, server.MaxRestarts)
	}
	if m.alias != "" && m.state == server.Running {
		label += " │ " + m.alias
	}
	return lipgloss.NewStyle().Foreground(theme.ServerState(m.state)).Render("●") + " " + label
}

// View renders the status bar.
func (m Model) View() string {
	style := theme.StyleStatusBar.Width(m.width)
	left := m.indicator()

	right := hints
	if m.message != "" {
		right = theme.Severity(m.severity).Render(m.message)
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 4
	if padding < 1 {
		padding = 1
	}
	return style.Render(left + strings.Repeat(" ", padding) + right)
}
