package results

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/sqlbridge/internal/result"
	"github.com/joacominatel/sqlbridge/internal/tui/theme"
)

const maxColWidth = 40

// Model is the query results component.
type Model struct {
	result    *result.QueryResult
	lastQuery string
	err       error
	hint      string
	width     int
	height    int
	focused   bool
	loading   bool
	colWidths []int

	cursorY int
	cursorX int
	scrollY int
	scrollX int

	exportDir     string
	statusMessage string
}

// New creates a new results model. Exports are written to exportDir.
func New(exportDir string) Model {
	return Model{exportDir: exportDir}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
}

// Focused returns whether the results pane has focus.
func (m Model) Focused() bool {
	return m.focused
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(l bool) {
	m.loading = l
}

// SetResult sets the result of query to display.
func (m *Model) SetResult(r *result.QueryResult, query string) {
	m.result = r
	m.lastQuery = query
	m.err = nil
	m.hint = ""
	m.cursorX, m.cursorY = 0, 0
	m.scrollX, m.scrollY = 0, 0
	m.loading = false
	m.calculateColumnWidths()
}

// SetError sets an error to display with an optional hint.
func (m *Model) SetError(err error, hint string) {
	m.err = err
	m.hint = hint
	m.result = nil
	m.scrollY = 0
	m.loading = false
}

// Result returns the displayed result, or nil.
func (m Model) Result() *result.QueryResult {
	return m.result
}

// TakeStatus returns and clears the pending status message.
func (m *Model) TakeStatus() string {
	s := m.statusMessage
	m.statusMessage = ""
	return s
}

func (m *Model) calculateColumnWidths() {
	if m.result == nil || len(m.result.Columns) == 0 {
		m.colWidths = nil
		return
	}

	m.colWidths = make([]int, len(m.result.Columns))
	for i, col := range m.result.Columns {
		m.colWidths[i] = lipgloss.Width(col.Name)
	}
	for _, row := range m.result.Rows {
		for i, col := range m.result.Columns {
			if w := lipgloss.Width(result.FormatValue(row[col.Name])); w > m.colWidths[i] {
				m.colWidths[i] = w
			}
		}
	}
	for i := range m.colWidths {
		m.colWidths[i] = max(1, min(m.colWidths[i], maxColWidth))
	}
}

func (m Model) rowCount() int {
	if m.result == nil {
		return 0
	}
	return len(m.result.Rows)
}

func (m Model) colCount() int {
	if m.result == nil {
		return 0
	}
	return len(m.result.Columns)
}

func (m Model) visibleRows() int {
	return max(1, m.height-4)
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the results pane.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch key.String() {
	case "up", "k":
		m.moveRow(-1)
	case "down", "j":
		m.moveRow(1)
	case "left", "h":
		if m.cursorX > 0 {
			m.cursorX--
		}
		m.scrollX = min(m.scrollX, m.cursorX)
	case "right", "l":
		if m.cursorX < m.colCount()-1 {
			m.cursorX++
		}
	case "pgup":
		m.moveRow(-m.height / 2)
	case "pgdown":
		m.moveRow(m.height / 2)
	case "home", "g":
		m.moveRow(-m.rowCount())
	case "end", "G":
		m.moveRow(m.rowCount())
	case "y", "c":
		m.doCopyCell()
	case "Y":
		m.doCopyRowJSON()
	case "ctrl+y":
		m.doCopyRowCSV()
	case "f":
		return m, m.doFilterByValue()
	case "D":
		return m, m.doGenerateDelete()
	case "e":
		return m, m.exportCmd("csv")
	case "E":
		return m, m.exportCmd("json")
	case "ctrl+t":
		return m, m.exportCmd("yaml")
	}
	return m, nil
}

func (m *Model) moveRow(delta int) {
	n := m.rowCount()
	if n == 0 {
		return
	}
	m.cursorY = max(0, min(m.cursorY+delta, n-1))
	if m.cursorY < m.scrollY {
		m.scrollY = m.cursorY
	}
	if m.cursorY >= m.scrollY+m.visibleRows() {
		m.scrollY = m.cursorY - m.visibleRows() + 1
	}
}

// View renders the results pane.
func (m Model) View() string {
	if m.loading {
		return theme.StylePane.Render("Results") + "\n" + theme.StyleMuted.Render("  Executing query...")
	}

	if m.err != nil {
		out := theme.StylePane.Render("Results") + "\n" + theme.StyleError.Render("  Error: "+m.err.Error())
		if m.hint != "" {
			out += "\n" + theme.StyleMuted.Render("  "+m.hint)
		}
		return out
	}

	if m.result == nil {
		return theme.StylePane.Render("Results") + "\n" +
			theme.StyleMuted.Render("  Execute a query to see results")
	}

	stats := fmt.Sprintf("%d row(s) | %s", len(m.result.Rows), m.result.ExecutionTime.Round(time.Millisecond))
	if n, ok := m.result.Affected(); ok {
		stats += fmt.Sprintf(" | %d affected", n)
	}
	header := theme.StylePane.Render("Results") + "  " + theme.StyleMuted.Render(stats)

	if len(m.result.Columns) == 0 {
		return header + "\n" + theme.StyleSuccess.Render("  Query executed successfully")
	}

	first, last := m.visibleColumns()

	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(m.renderHeader(first, last))
	b.WriteString("\n")
	b.WriteString(m.renderSeparator(first, last))

	for i := m.scrollY; i < len(m.result.Rows) && i < m.scrollY+m.visibleRows(); i++ {
		b.WriteString("\n")
		b.WriteString(m.renderRow(i, first, last))
	}
	return b.String()
}

// visibleColumns returns the column window that fits the width and
// contains the cursor.
func (m Model) visibleColumns() (int, int) {
	first := m.scrollX
	if m.cursorX < first {
		first = m.cursorX
	}
	for {
		width := 2
		last := first
		for last < len(m.colWidths) {
			w := m.colWidths[last] + 3
			if width+w > m.width && last > first {
				break
			}
			width += w
			last++
		}
		if m.cursorX < last || first >= m.cursorX {
			return first, last
		}
		first++
	}
}

func (m Model) renderHeader(first, last int) string {
	style := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorPrimary)
	parts := make([]string, 0, last-first)
	for i := first; i < last; i++ {
		parts = append(parts, style.Render(fit(m.result.Columns[i].Name, m.colWidths[i])))
	}
	return "  " + strings.Join(parts, " │ ")
}

func (m Model) renderRow(r, first, last int) string {
	row := m.result.Rows[r]
	parts := make([]string, 0, last-first)
	for i := first; i < last; i++ {
		v := row[m.result.Columns[i].Name]
		cell := fit(result.FormatValue(v), m.colWidths[i])
		switch {
		case m.focused && r == m.cursorY && i == m.cursorX:
			cell = theme.StyleSelected.Reverse(true).Render(cell)
		case v == nil:
			cell = theme.StyleNull.Render(cell)
		}
		parts = append(parts, cell)
	}

	prefix := "  "
	if m.focused && r == m.cursorY {
		prefix = theme.StyleSelected.Render("> ")
	}
	return prefix + strings.Join(parts, " │ ")
}

func (m Model) renderSeparator(first, last int) string {
	parts := make([]string, 0, last-first)
	for i := first; i < last; i++ {
		parts = append(parts, strings.Repeat("─", m.colWidths[i]))
	}
	return "  " + lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Join(parts, "─┼─"))
}

// fit truncates s with an ellipsis or pads it to width display cells.
func fit(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if lipgloss.Width(s) > width {
		runes := []rune(s)
		for len(runes) > 0 && lipgloss.Width(string(runes)) >= width {
			runes = runes[:len(runes)-1]
		}
		s = string(runes) + "…"
	}
	if pad := width - lipgloss.Width(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}
