package explorer

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/sqlbridge/internal/connstore"
	"github.com/joacominatel/sqlbridge/internal/tui/results"
	"github.com/joacominatel/sqlbridge/internal/tui/theme"
)

// NodeKind identifies the type of a tree node.
type NodeKind int

const (
	NodeConnection NodeKind = iota
	NodeDatabase
	NodeTable
)

// TreeNode represents a single node in the tree.
type TreeNode struct {
	Kind     NodeKind
	Name     string
	Children []*TreeNode
	Expanded bool
	Loaded   bool // whether children have been fetched
	Failed   string

	Alias    string // owning connection
	Database string // parent database (tables only)
	Driver   connstore.Driver
	Default  bool
}

// flatItem is a visible item in the flattened tree view.
type flatItem struct {
	node  *TreeNode
	depth int
}

// RequestDatabasesMsg asks the app to list databases of a connection.
type RequestDatabasesMsg struct {
	Alias string
}

// RequestTablesMsg asks the app to list tables of a database.
type RequestTablesMsg struct {
	Alias    string
	Database string
}

// Model is the explorer component.
type Model struct {
	roots   []*TreeNode
	items   []flatItem
	cursor  int
	width   int
	height  int
	focused bool
	active  string
}

// New creates a new explorer model.
func New() Model {
	return Model{}
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

// Focused returns whether the explorer has focus.
func (m Model) Focused() bool {
	return m.focused
}

// SetActive marks the connection the server is currently switched to.
func (m *Model) SetActive(alias string) {
	m.active = alias
}

// SetConnections replaces the root nodes. Expanded state and loaded
// children survive for aliases that are still present.
func (m *Model) SetConnections(entries []connstore.Entry) {
	prev := make(map[string]*TreeNode, len(m.roots))
	for _, r := range m.roots {
		prev[r.Name] = r
	}

	roots := make([]*TreeNode, 0, len(entries))
	for _, e := range entries {
		node, ok := prev[e.Alias]
		if !ok || node.Driver != e.Driver {
			node = &TreeNode{Kind: NodeConnection, Name: e.Alias, Alias: e.Alias}
		}
		node.Driver = e.Driver
		node.Default = e.Default
		roots = append(roots, node)
	}
	m.roots = roots
	m.flatten()
}

// SetDatabases fills the children of a connection node.
func (m *Model) SetDatabases(alias string, names []string, err error) {
	node := m.find(alias, "")
	if node == nil {
		return
	}
	node.Children = nil
	node.Failed = ""
	if err != nil {
		node.Failed = err.Error()
	}
	for _, name := range names {
		node.Children = append(node.Children, &TreeNode{
			Kind:     NodeDatabase,
			Name:     name,
			Alias:    alias,
			Database: name,
		})
	}
	node.Loaded = err == nil
	m.flatten()
}

// SetTables fills the children of a database node.
func (m *Model) SetTables(alias, database string, names []string, err error) {
	node := m.find(alias, database)
	if node == nil {
		return
	}
	node.Children = nil
	node.Failed = ""
	if err != nil {
		node.Failed = err.Error()
	}
	for _, name := range names {
		node.Children = append(node.Children, &TreeNode{
			Kind:     NodeTable,
			Name:     name,
			Alias:    alias,
			Database: database,
			Loaded:   true,
		})
	}
	node.Loaded = err == nil
	m.flatten()
}

// Tables returns the loaded table names of alias, for completion.
func (m Model) Tables(alias string) []string {
	var names []string
	if conn := m.find(alias, ""); conn != nil {
		for _, db := range conn.Children {
			for _, t := range db.Children {
				names = append(names, t.Name)
			}
		}
	}
	return names
}

func (m Model) find(alias, database string) *TreeNode {
	for _, r := range m.roots {
		if r.Name != alias {
			continue
		}
		if database == "" {
			return r
		}
		for _, db := range r.Children {
			if db.Name == database {
				return db
			}
		}
	}
	return nil
}

// Selected returns the node under the cursor, or nil.
func (m Model) Selected() *TreeNode {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil
	}
	return m.items[m.cursor].node
}

// flatten rebuilds the flat item list from the tree.
func (m *Model) flatten() {
	m.items = nil
	for _, r := range m.roots {
		m.flattenNode(r, 0)
	}
	if m.cursor >= len(m.items) {
		m.cursor = max(0, len(m.items)-1)
	}
}

func (m *Model) flattenNode(node *TreeNode, depth int) {
	m.items = append(m.items, flatItem{node: node, depth: depth})
	if node.Expanded {
		for _, child := range node.Children {
			m.flattenNode(child, depth+1)
		}
	}
}

// Init returns the initial command (none).
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the explorer.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.focused {
		return m, nil
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case "enter", "right", "l":
			return m, m.toggleExpand()
		case "left", "h":
			m.collapse()
		case "r":
			return m, m.reload()
		case "s":
			return m, m.quickSelect()
		}
	}
	return m, nil
}

func (m *Model) toggleExpand() tea.Cmd {
	node := m.Selected()
	if node == nil {
		return nil
	}
	if node.Kind == NodeTable {
		return m.quickSelect()
	}

	if node.Expanded {
		node.Expanded = false
		m.flatten()
		return nil
	}

	node.Expanded = true
	m.flatten()
	if !node.Loaded {
		return request(node)
	}
	return nil
}

func (m *Model) collapse() {
	node := m.Selected()
	if node == nil {
		return
	}
	if node.Expanded {
		node.Expanded = false
		m.flatten()
		return
	}
	// jump to the parent
	depth := m.items[m.cursor].depth
	for i := m.cursor - 1; i >= 0; i-- {
		if m.items[i].depth < depth {
			m.cursor = i
			return
		}
	}
}

func (m *Model) reload() tea.Cmd {
	node := m.Selected()
	if node == nil || node.Kind == NodeTable {
		return nil
	}
	node.Loaded = false
	node.Expanded = true
	m.flatten()
	return request(node)
}

func (m *Model) quickSelect() tea.Cmd {
	node := m.Selected()
	if node == nil || node.Kind != NodeTable {
		return nil
	}
	query := fmt.Sprintf("SELECT * FROM %s LIMIT 100;", node.Name)
	return func() tea.Msg {
		return results.SetEditorQueryMsg{Query: query}
	}
}

func request(node *TreeNode) tea.Cmd {
	alias, database := node.Alias, node.Database
	switch node.Kind {
	case NodeConnection:
		return func() tea.Msg { return RequestDatabasesMsg{Alias: alias} }
	case NodeDatabase:
		return func() tea.Msg { return RequestTablesMsg{Alias: alias, Database: database} }
	}
	return nil
}

// View renders the explorer.
func (m Model) View() string {
	title := theme.StylePane.Render("Connections")

	if len(m.roots) == 0 {
		return title + "\n" + theme.StyleMuted.Render("  No connections")
	}

	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n")

	visibleHeight := max(1, m.height-2)
	scrollOffset := 0
	if m.cursor >= visibleHeight {
		scrollOffset = m.cursor - visibleHeight + 1
	}

	for i := scrollOffset; i < len(m.items) && i < scrollOffset+visibleHeight; i++ {
		b.WriteString(m.renderNode(m.items[i], i == m.cursor))
		if i < scrollOffset+visibleHeight-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderNode(item flatItem, selected bool) string {
	node := item.node
	indent := strings.Repeat("  ", item.depth)

	icon := "▶ "
	switch {
	case node.Kind == NodeTable:
		icon = "  "
	case node.Expanded:
		icon = "▼ "
	}

	name := node.Name
	switch {
	case node.Kind == NodeConnection:
		name += " " + theme.StyleMuted.Render(string(node.Driver))
		if node.Name == m.active {
			name += theme.StyleSuccess.Render(" ●")
		}
	case node.Expanded && !node.Loaded && node.Failed == "":
		name += theme.StyleMuted.Render(" loading...")
	}
	if node.Failed != "" {
		name += " " + theme.StyleError.Render("!")
	}

	line := indent + icon + name
	if m.width > 4 && lipgloss.Width(line) > m.width-2 {
		line = truncate(line, m.width-4) + ".."
	}

	if selected {
		return theme.StyleSelected.Render(line)
	}
	return line
}

func truncate(s string, width int) string {
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r)) > width {
		r = r[:len(r)-1]
	}
	return string(r)
}
