package editor

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/sqlbridge/internal/tui/theme"
)

// ExecuteQueryMsg is sent when the user triggers query execution.
type ExecuteQueryMsg struct {
	Query string
}

var sqlKeywords = map[string]bool{}

func init() {
	for _, k := range strings.Fields(`
		select from where and or insert into update delete create drop alter
		table index join inner outer left right cross on not in is null like
		order by group having limit offset as distinct count sum avg min max
		between exists case when then else end values set begin commit
		rollback union all asc desc primary key foreign references cascade
		default true false ilike returning show databases tables use`) {
		sqlKeywords[k] = true
	}
}

// Model is the SQL query editor component.
type Model struct {
	textarea textarea.Model
	width    int
	height   int
	focused  bool

	// history recall, newest first
	history []string
	histPos int    // -1 when not browsing
	draft   string // text before browsing started

	tableNames  []string
	completions []string
	compIndex   int
}

// New creates a new editor model.
func New() Model {
	ta := textarea.New()
	ta.Placeholder = "Enter SQL query..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.Prompt = "│ "
	theme.SQLInput(&ta)

	return Model{textarea: ta, histPos: -1}
}

// SetSize updates the component dimensions.
func (m *Model) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.textarea.SetWidth(max(1, w-2))
	m.textarea.SetHeight(max(1, h-2))
}

// SetFocused sets the focus state.
func (m *Model) SetFocused(f bool) {
	m.focused = f
	if f {
		m.textarea.Focus()
	} else {
		m.textarea.Blur()
	}
}

// Focused returns whether the editor has focus.
func (m Model) Focused() bool {
	return m.focused
}

// Value returns the current editor content.
func (m Model) Value() string {
	return m.textarea.Value()
}

// SetQuery replaces the editor content.
func (m *Model) SetQuery(query string) {
	m.textarea.SetValue(query)
	m.histPos = -1
	m.completions = nil
}

// SetHistory sets the queries available for recall, newest first.
func (m *Model) SetHistory(queries []string) {
	m.history = queries
	m.histPos = -1
}

// SetTableNames sets the table names offered by Tab completion.
func (m *Model) SetTableNames(names []string) {
	m.tableNames = names
}

// Clear empties the editor.
func (m *Model) Clear() {
	m.textarea.Reset()
	m.histPos = -1
	m.completions = nil
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages for the editor.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+e", "f5":
			query := strings.TrimSpace(m.textarea.Value())
			if query == "" {
				return m, nil
			}
			m.completions = nil
			return m, func() tea.Msg { return ExecuteQueryMsg{Query: query} }
		case "ctrl+k":
			m.Clear()
			return m, nil
		case "ctrl+l":
			m.textarea.SetValue(uppercaseKeywords(m.textarea.Value()))
			return m, nil
		case "ctrl+r", "ctrl+p":
			m.recall(1)
			return m, nil
		case "ctrl+n":
			m.recall(-1)
			return m, nil
		case "tab":
			if m.complete() {
				return m, nil
			}
		case "esc":
			if m.completions != nil {
				m.completions = nil
				return m, nil
			}
		default:
			m.completions = nil
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

// recall steps through history; step 1 goes older, -1 newer. Stepping
// past the newest entry restores the draft.
func (m *Model) recall(step int) {
	if len(m.history) == 0 {
		return
	}
	if m.histPos == -1 {
		if step < 0 {
			return
		}
		m.draft = m.textarea.Value()
	}

	pos := min(m.histPos+step, len(m.history)-1)
	if pos < 0 {
		m.histPos = -1
		m.textarea.SetValue(m.draft)
		return
	}
	m.histPos = pos
	m.textarea.SetValue(m.history[pos])
}

// uppercaseKeywords uppercases SQL keywords outside string literals.
func uppercaseKeywords(val string) string {
	var out, word strings.Builder
	flush := func() {
		w := word.String()
		if sqlKeywords[strings.ToLower(w)] {
			w = strings.ToUpper(w)
		}
		out.WriteString(w)
		word.Reset()
	}

	var quote rune
	for _, ch := range val {
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			out.WriteRune(ch)
		case ch == '\'' || ch == '"':
			flush()
			quote = ch
			out.WriteRune(ch)
		case unicode.IsLetter(ch) || ch == '_':
			word.WriteRune(ch)
		default:
			flush()
			out.WriteRune(ch)
		}
	}
	flush()
	return out.String()
}

// complete replaces the trailing word with a matching table name. Repeated
// calls cycle through the candidates.
func (m *Model) complete() bool {
	if m.completions != nil {
		m.compIndex = (m.compIndex + 1) % len(m.completions)
		m.applyCompletion()
		return true
	}

	val := m.textarea.Value()
	partial := lastWord(val)
	if partial == "" || !tableContext(val) {
		return false
	}

	lower := strings.ToLower(partial)
	var matches []string
	for _, name := range m.tableNames {
		if strings.HasPrefix(strings.ToLower(name), lower) {
			matches = append(matches, name)
		}
	}
	if len(matches) == 0 {
		return false
	}

	m.completions = matches
	m.compIndex = 0
	m.applyCompletion()
	return true
}

func (m *Model) applyCompletion() {
	val := m.textarea.Value()
	base := strings.TrimSuffix(val, lastWord(val))
	m.textarea.SetValue(base + m.completions[m.compIndex])
}

func tableContext(val string) bool {
	upper := strings.ToUpper(val)
	for _, kw := range []string{"FROM", "JOIN", "TABLE", "INTO", "UPDATE"} {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}

// lastWord returns the trailing identifier of s.
func lastWord(s string) string {
	i := len(s)
	for i > 0 && isIdentChar(rune(s[i-1])) {
		i--
	}
	return s[i:]
}

func isIdentChar(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') || c == '_' || c == '.'
}

// View renders the editor.
func (m Model) View() string {
	title := theme.StylePane.Render("Query Editor")
	if m.histPos >= 0 {
		title += theme.StyleMuted.Render(fmt.Sprintf("  history %d/%d", m.histPos+1, len(m.history)))
	}

	var hint string
	if len(m.completions) > 1 {
		parts := make([]string, 0, len(m.completions))
		for i, c := range m.completions {
			if i == m.compIndex {
				parts = append(parts, theme.StyleSelected.Render(c))
			} else {
				parts = append(parts, theme.StyleMuted.Render(c))
			}
		}
		hint = "\n" + lipgloss.NewStyle().Padding(0, 1).Render(
			theme.StyleMuted.Render("Tab: ")+strings.Join(parts, " │ "),
		)
	}

	return title + "\n" + m.textarea.View() + hint
}
