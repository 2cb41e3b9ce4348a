// Package theme holds the palette and the styles shared by the panes.
package theme

import (
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/sqlbridge/internal/notify"
	"github.com/joacominatel/sqlbridge/internal/server"
)

// Color palette.
var (
	ColorPrimary   = lipgloss.Color("63")  // Purple
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorError     = lipgloss.Color("196") // Red
	ColorBorder    = lipgloss.Color("238") // Dark gray
	ColorMuted     = lipgloss.Color("245") // Light gray
	ColorHighlight = lipgloss.Color("229") // Yellow
	ColorNull      = lipgloss.Color("243")
)

var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleActiveBorder = StyleBorder.
				BorderForeground(ColorPrimary)

	StyleTitle   = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)
	StylePane    = StyleTitle.Padding(0, 1)
	StyleMuted   = lipgloss.NewStyle().Foreground(ColorMuted)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)

	// StyleNull marks SQL NULL cells so they read apart from the text "NULL".
	StyleNull = lipgloss.NewStyle().Foreground(ColorNull).Italic(true)

	StyleSelected = lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true)

	StyleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)

// Severity returns the style for a notification of sev.
func Severity(sev notify.Severity) lipgloss.Style {
	switch sev {
	case notify.SeverityError:
		return StyleError
	case notify.SeverityWarning:
		return StyleWarning
	}
	return lipgloss.NewStyle()
}

// ServerState returns the indicator color for st.
func ServerState(st server.State) lipgloss.Color {
	switch st {
	case server.Running:
		return ColorSuccess
	case server.Starting:
		return ColorWarning
	}
	return ColorError
}

// SQLInput styles ta for query entry. The prompt follows focus.
func SQLInput(ta *textarea.Model) {
	plain := lipgloss.NewStyle()
	for _, st := range []*textarea.Style{&ta.FocusedStyle, &ta.BlurredStyle} {
		st.Base = plain
		st.CursorLine = plain
		st.Placeholder = StyleMuted
	}
	ta.FocusedStyle.Prompt = plain.Foreground(ColorPrimary)
	ta.BlurredStyle.Prompt = plain.Foreground(ColorBorder)
}
