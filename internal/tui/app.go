package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joacominatel/sqlbridge/internal/app"
	"github.com/joacominatel/sqlbridge/internal/connstore"
	"github.com/joacominatel/sqlbridge/internal/notify"
	"github.com/joacominatel/sqlbridge/internal/result"
	"github.com/joacominatel/sqlbridge/internal/server"
	"github.com/joacominatel/sqlbridge/internal/tui/editor"
	"github.com/joacominatel/sqlbridge/internal/tui/explorer"
	"github.com/joacominatel/sqlbridge/internal/tui/results"
	"github.com/joacominatel/sqlbridge/internal/tui/statusbar"
	"github.com/joacominatel/sqlbridge/internal/tui/theme"
)

const historyLimit = 100

// Pane identifies a focusable area.
type Pane int

const (
	PaneExplorer Pane = iota
	PaneEditor
	PaneResults
)

func (p Pane) String() string {
	switch p {
	case PaneExplorer:
		return "explorer"
	case PaneEditor:
		return "editor"
	case PaneResults:
		return "results"
	default:
		return "unknown"
	}
}

// AppMode tracks the current UI state.
type AppMode int

const (
	ModeSelectConnection AppMode = iota // saved connections list
	ModeAddConnection                   // alias, driver and DSN form
	ModeMain                            // main TUI
)

const (
	fieldAlias = iota
	fieldDriver
	fieldDSN
	fieldCount
)

// Messages produced by async commands.
type (
	connectionsLoadedMsg struct {
		entries []connstore.Entry
		err     error
	}
	serverActionMsg struct {
		action string
		err    error
	}
	connectionUsedMsg struct {
		alias string
		err   error
	}
	connectionSavedMsg struct {
		alias string
		err   error
	}
	connectionRemovedMsg struct {
		alias string
		err   error
	}
	databasesLoadedMsg struct {
		alias string
		names []string
		err   error
	}
	tablesLoadedMsg struct {
		alias    string
		database string
		names    []string
		err      error
	}
	queryExecutedMsg struct {
		query  string
		result *result.QueryResult
		err    error
	}
	historyLoadedMsg struct {
		queries []string
	}
)

// Model is the top-level bubbletea model orchestrating all components.
type Model struct {
	service    *app.Service
	explorer   explorer.Model
	editor     editor.Model
	results    results.Model
	statusbar  statusbar.Model
	inputs     [fieldCount]textinput.Model
	inputFocus int
	activePane Pane
	mode       AppMode
	width      int
	height     int
	err        error
	showHelp   bool

	connections []connstore.Entry
	connCursor  int
}

// NewModel creates the top-level model. Exports are written to exportDir.
func NewModel(service *app.Service, exportDir string) Model {
	placeholders := [fieldCount]string{
		"alias",
		"driver (mysql, postgresql, sqlite, clickhouse)",
		"data source name",
	}
	var inputs [fieldCount]textinput.Model
	for i := range inputs {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 500
		ti.Width = 70
		inputs[i] = ti
	}
	inputs[fieldAlias].Focus()

	return Model{
		service:    service,
		explorer:   explorer.New(),
		editor:     editor.New(),
		results:    results.New(exportDir),
		statusbar:  statusbar.New(),
		inputs:     inputs,
		activePane: PaneExplorer,
		mode:       ModeSelectConnection,
	}
}

// Init starts the language server and loads saved connections.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.loadConnectionsCmd(),
		m.serverCmd("start"),
		m.loadHistoryCmd(),
	)
}

// Update handles all messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "f2":
			m.statusbar.SetMessage("Restarting sqls...")
			return m, m.serverCmd("restart")
		case "f3":
			if st, _ := m.service.ServerState(); st == server.Stopped {
				return m, m.serverCmd("start")
			}
			return m, m.serverCmd("stop")
		}

		if msg.String() == "?" && m.mode == ModeMain && m.activePane != PaneEditor {
			m.showHelp = !m.showHelp
			return m, nil
		}
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}

		switch m.mode {
		case ModeSelectConnection:
			return m.updateSelectConnection(msg)
		case ModeAddConnection:
			return m.updateAddConnection(msg)
		case ModeMain:
			return m.updateMain(msg)
		}

	case ServerStateMsg:
		m.refreshServer()
		return m, nil

	case NotificationMsg:
		m.statusbar.Notify(msg.Severity, msg.Message)
		return m, nil

	case serverActionMsg:
		m.refreshServer()
		// The stop or restart that overtook this start reports its own outcome.
		if errors.Is(msg.err, server.ErrStartAborted) {
			return m, nil
		}
		if msg.err != nil {
			m.statusbar.Notify(notify.SeverityError, withHint("sqls "+msg.action+" failed: "+msg.err.Error(), msg.err))
			return m, nil
		}
		if msg.action != "stop" {
			m.statusbar.SetMessage("")
			return m, m.loadConnectionsCmd()
		}
		return m, nil

	case connectionsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.connections = msg.entries
		m.explorer.SetConnections(msg.entries)
		if m.connCursor > len(m.connections) {
			m.connCursor = len(m.connections)
		}
		return m, nil

	case connectionUsedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.statusbar.Notify(notify.SeverityError, withHint(msg.err.Error(), msg.err))
			return m, nil
		}
		m.err = nil
		m.mode = ModeMain
		m.statusbar.SetMessage("Using " + msg.alias)
		m.refreshServer()
		m.setFocus(PaneExplorer)
		m.layout()
		return m, m.loadConnectionsCmd()

	case connectionSavedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.mode = ModeSelectConnection
		m.resetInputs()
		m.statusbar.SetMessage("Saved " + msg.alias)
		return m, m.loadConnectionsCmd()

	case connectionRemovedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.statusbar.SetMessage("Removed " + msg.alias)
		return m, m.loadConnectionsCmd()

	case explorer.RequestDatabasesMsg:
		return m, m.loadDatabasesCmd(msg.Alias)

	case explorer.RequestTablesMsg:
		return m, m.loadTablesCmd(msg.Alias, msg.Database)

	case databasesLoadedMsg:
		m.explorer.SetDatabases(msg.alias, msg.names, msg.err)
		m.refreshServer()
		if msg.err != nil {
			m.statusbar.Notify(notify.SeverityError, "Failed to list databases: "+msg.err.Error())
		}
		return m, nil

	case tablesLoadedMsg:
		m.explorer.SetTables(msg.alias, msg.database, msg.names, msg.err)
		m.editor.SetTableNames(m.explorer.Tables(m.service.ActiveAlias()))
		m.refreshServer()
		if msg.err != nil {
			m.statusbar.Notify(notify.SeverityError, "Failed to list tables: "+msg.err.Error())
		}
		return m, nil

	case editor.ExecuteQueryMsg:
		m.results.SetLoading(true)
		m.statusbar.SetMessage("Executing query...")
		return m, m.executeQueryCmd(msg.Query)

	case queryExecutedMsg:
		if msg.err != nil {
			m.results.SetError(msg.err, app.Hint(msg.err))
			m.statusbar.SetMessage("")
			return m, m.loadHistoryCmd()
		}
		m.results.SetResult(msg.result, msg.query)
		m.statusbar.SetMessage("")
		return m, m.loadHistoryCmd()

	case historyLoadedMsg:
		m.editor.SetHistory(msg.queries)
		return m, nil

	case results.SetEditorQueryMsg:
		m.editor.SetQuery(msg.Query)
		m.setFocus(PaneEditor)
		return m, nil

	case results.StatusNotifyMsg:
		sev := notify.SeverityInfo
		if msg.Err {
			sev = notify.SeverityError
		}
		m.statusbar.Notify(sev, msg.Message)
		return m, nil
	}

	if m.mode == ModeMain {
		return m.updateComponents(msg)
	}
	return m, nil
}

func (m *Model) refreshServer() {
	st, restarts := m.service.ServerState()
	m.statusbar.SetServer(st, restarts)
	m.statusbar.SetAlias(m.service.ActiveAlias())
	m.explorer.SetActive(m.service.ActiveAlias())
}

func withHint(msg string, err error) string {
	if hint := app.Hint(err); hint != "" {
		return msg + " (" + hint + ")"
	}
	return msg
}

func (m Model) updateSelectConnection(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	count := len(m.connections)

	switch msg.String() {
	case "up", "k":
		if m.connCursor > 0 {
			m.connCursor--
		}
	case "down", "j":
		if m.connCursor < count { // last item is "New connection"
			m.connCursor++
		}
	case "enter":
		if m.connCursor < count {
			alias := m.connections[m.connCursor].Alias
			m.statusbar.SetMessage("Switching to " + alias + "...")
			return m, m.useConnectionCmd(alias)
		}
		return m.openAddConnection()
	case "n":
		return m.openAddConnection()
	case "d":
		if m.connCursor < count {
			return m, m.removeConnectionCmd(m.connections[m.connCursor].Alias)
		}
	case "esc":
		if m.service.ActiveAlias() != "" {
			m.mode = ModeMain
			m.setFocus(m.activePane)
			m.layout()
		}
	case "q":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) openAddConnection() (tea.Model, tea.Cmd) {
	m.mode = ModeAddConnection
	m.err = nil
	m.resetInputs()
	return m, textinput.Blink
}

func (m *Model) resetInputs() {
	for i := range m.inputs {
		m.inputs[i].Reset()
		m.inputs[i].Blur()
	}
	m.inputFocus = fieldAlias
	m.inputs[fieldAlias].Focus()
}

func (m Model) updateAddConnection(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "tab", "down", "shift+tab", "up":
		step := 1
		if s := msg.String(); s == "shift+tab" || s == "up" {
			step = fieldCount - 1
		}
		m.inputs[m.inputFocus].Blur()
		m.inputFocus = (m.inputFocus + step) % fieldCount
		m.inputs[m.inputFocus].Focus()
		return m, nil
	case "enter":
		if m.inputFocus < fieldDSN {
			m.inputs[m.inputFocus].Blur()
			m.inputFocus++
			m.inputs[m.inputFocus].Focus()
			return m, nil
		}
		cfg, err := m.formConfig()
		if err != nil {
			m.err = err
			return m, nil
		}
		return m, m.saveConnectionCmd(cfg)
	case "esc":
		m.mode = ModeSelectConnection
		m.err = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.inputFocus], cmd = m.inputs[m.inputFocus].Update(msg)
	return m, cmd
}

func (m Model) formConfig() (connstore.Config, error) {
	driver, err := connstore.ParseDriver(m.inputs[fieldDriver].Value())
	if err != nil {
		return connstore.Config{}, err
	}
	cfg := connstore.Config{
		Alias:          strings.TrimSpace(m.inputs[fieldAlias].Value()),
		Driver:         driver,
		DataSourceName: strings.TrimSpace(m.inputs[fieldDSN].Value()),
	}
	return cfg, connstore.Validate(cfg)
}

func (m Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		if m.activePane != PaneEditor {
			return m, tea.Quit
		}
	case "ctrl+o":
		m.mode = ModeSelectConnection
		return m, m.loadConnectionsCmd()
	case "tab":
		if m.activePane == PaneEditor {
			// the editor may consume Tab for completion
			before := m.editor.Value()
			next, cmd := m.updateComponents(msg)
			if nm := next.(Model); nm.editor.Value() != before {
				return nm, cmd
			}
		}
		m.cyclePane()
		return m, nil
	case "shift+tab":
		m.cyclePaneBack()
		return m, nil
	}
	return m.updateComponents(msg)
}

func (m Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.activePane {
	case PaneExplorer:
		m.explorer, cmd = m.explorer.Update(msg)
	case PaneEditor:
		m.editor, cmd = m.editor.Update(msg)
	case PaneResults:
		m.results, cmd = m.results.Update(msg)
		if status := m.results.TakeStatus(); status != "" {
			m.statusbar.SetMessage(status)
		}
	}
	return m, cmd
}

func (m *Model) cyclePane() {
	m.setFocus((m.activePane + 1) % 3)
}

func (m *Model) cyclePaneBack() {
	m.setFocus((m.activePane + 2) % 3)
}

func (m *Model) setFocus(pane Pane) {
	m.activePane = pane
	m.explorer.SetFocused(pane == PaneExplorer)
	m.editor.SetFocused(pane == PaneEditor)
	m.results.SetFocused(pane == PaneResults)
	m.statusbar.SetActivePane(pane.String())
}

func (m Model) explorerWidth() int {
	return max(22, min(m.width/4, 35))
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}

	availHeight := m.height - 1
	rightWidth := m.width - m.explorerWidth() - 1
	editorHeight := max(5, availHeight*40/100)

	m.explorer.SetSize(m.explorerWidth(), availHeight)
	m.editor.SetSize(rightWidth, editorHeight)
	m.results.SetSize(rightWidth, availHeight-editorHeight-1)
	m.statusbar.SetWidth(m.width)
}

// Async commands. Each captures the service so the closure does not hold
// a stale model.

func (m Model) serverCmd(action string) tea.Cmd {
	service := m.service
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		switch action {
		case "start":
			err = service.StartServer(ctx)
		case "stop":
			err = service.StopServer(ctx)
		case "restart":
			err = service.RestartServer(ctx)
		}
		return serverActionMsg{action: action, err: err}
	}
}

func (m Model) loadConnectionsCmd() tea.Cmd {
	service := m.service
	return func() tea.Msg {
		entries, err := service.Connections()
		return connectionsLoadedMsg{entries: entries, err: err}
	}
}

func (m Model) useConnectionCmd(alias string) tea.Cmd {
	service := m.service
	return func() tea.Msg {
		return connectionUsedMsg{alias: alias, err: service.UseConnection(context.Background(), alias)}
	}
}

func (m Model) saveConnectionCmd(cfg connstore.Config) tea.Cmd {
	service := m.service
	return func() tea.Msg {
		return connectionSavedMsg{alias: cfg.Alias, err: service.AddConnection(context.Background(), cfg)}
	}
}

func (m Model) removeConnectionCmd(alias string) tea.Cmd {
	service := m.service
	return func() tea.Msg {
		return connectionRemovedMsg{alias: alias, err: service.RemoveConnection(context.Background(), alias)}
	}
}

func (m Model) loadDatabasesCmd(alias string) tea.Cmd {
	service := m.service
	return func() tea.Msg {
		names, err := service.ListDatabases(context.Background(), alias)
		return databasesLoadedMsg{alias: alias, names: names, err: err}
	}
}

func (m Model) loadTablesCmd(alias, database string) tea.Cmd {
	service := m.service
	return func() tea.Msg {
		names, err := service.ListTables(context.Background(), alias, database)
		return tablesLoadedMsg{alias: alias, database: database, names: names, err: err}
	}
}

func (m Model) executeQueryCmd(query string) tea.Cmd {
	service := m.service
	return func() tea.Msg {
		res, err := service.ExecuteQuery(context.Background(), query)
		return queryExecutedMsg{query: query, result: res, err: err}
	}
}

func (m Model) loadHistoryCmd() tea.Cmd {
	service := m.service
	return func() tea.Msg {
		entries, err := service.History(historyLimit)
		if err != nil {
			return nil
		}
		queries := make([]string, 0, len(entries))
		for _, e := range entries {
			queries = append(queries, e.Query)
		}
		return historyLoadedMsg{queries: queries}
	}
}

// View renders the entire application.
func (m Model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}

	switch m.mode {
	case ModeSelectConnection:
		return m.viewSelectConnection()
	case ModeAddConnection:
		return m.viewAddConnection()
	default:
		return m.viewMain()
	}
}

func (m Model) banner() []string {
	title := lipgloss.NewStyle().
		Foreground(theme.ColorPrimary).
		Bold(true).
		Padding(1, 0).
		Render("sqlbridge")
	subtitle := theme.StyleMuted.Render("SQL through the sqls language server.")
	return []string{"", title, subtitle, ""}
}

func (m Model) errorLine() []string {
	if m.err == nil {
		return nil
	}
	return []string{"", theme.StyleError.Render("  Error: " + m.err.Error())}
}

func (m Model) viewSelectConnection() string {
	parts := m.banner()
	parts = append(parts, theme.StyleTitle.Render("Saved Connections"))

	for i, conn := range m.connections {
		label := fmt.Sprintf("%s (%s)", conn.Alias, conn.DisplayString())
		if conn.Default {
			label += " *"
		}
		if i == m.connCursor {
			parts = append(parts, theme.StyleSelected.Render("> "+label))
		} else {
			parts = append(parts, "  "+label)
		}
	}

	newLabel := "  [New Connection]"
	if m.connCursor == len(m.connections) {
		newLabel = theme.StyleSelected.Render("> [New Connection]")
	}
	parts = append(parts, "", newLabel)
	parts = append(parts, m.errorLine()...)
	parts = append(parts, "", m.statusbar.View())
	parts = append(parts, theme.StyleMuted.Render("  ↑/↓: Navigate  Enter: Use  n: New  d: Delete  F2: Restart sqls  q: Quit"))

	return lipgloss.Place(m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m Model) viewAddConnection() string {
	labels := [fieldCount]string{"Alias", "Driver", "Data source name"}

	parts := m.banner()
	parts = append(parts, theme.StyleTitle.Render("New Connection"))
	for i, in := range m.inputs {
		label := theme.StyleMuted.Render("  " + labels[i])
		if i == m.inputFocus {
			label = lipgloss.NewStyle().Foreground(theme.ColorPrimary).Render("  " + labels[i])
		}
		parts = append(parts, label, "  "+in.View())
	}
	parts = append(parts, m.errorLine()...)
	parts = append(parts, "", theme.StyleMuted.Render("  Tab: Next field │ Enter: Save │ Esc: Back"))

	return lipgloss.Place(m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Left, parts...),
	)
}

func (m Model) border(p Pane) lipgloss.Style {
	if m.activePane == p {
		return theme.StyleActiveBorder
	}
	return theme.StyleBorder
}

func (m Model) viewMain() string {
	explorerWidth := m.explorerWidth()
	rightWidth := m.width - explorerWidth - 1
	availHeight := m.height - 3

	explorerView := m.border(PaneExplorer).
		Width(explorerWidth - 2).
		Height(availHeight).
		Render(m.explorer.View())

	editorHeight := max(5, availHeight*40/100)
	resultsHeight := availHeight - editorHeight - 2

	editorView := m.border(PaneEditor).
		Width(rightWidth - 2).
		Height(editorHeight).
		Render(m.editor.View())

	resultsView := m.border(PaneResults).
		Width(rightWidth - 2).
		Height(resultsHeight).
		Render(m.results.View())

	mainArea := lipgloss.JoinHorizontal(lipgloss.Top,
		explorerView,
		lipgloss.JoinVertical(lipgloss.Left, editorView, resultsView),
	)

	return lipgloss.JoinVertical(lipgloss.Left, mainArea, m.statusbar.View())
}

func (m Model) viewHelp() string {
	sectionStyle := lipgloss.NewStyle().
		Foreground(theme.ColorHighlight).
		Bold(true)
	keyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	line := func(key, desc string) string {
		return keyStyle.Render(fmt.Sprintf("  %-14s", key)) + theme.StyleMuted.Render(desc)
	}

	help := lipgloss.JoinVertical(lipgloss.Left,
		theme.StyleTitle.Render("sqlbridge - Keyboard Shortcuts"),
		"",
		sectionStyle.Render("Global"),
		line("q / Ctrl+C", "Quit application"),
		line("Tab", "Switch between panes"),
		line("Shift+Tab", "Switch panes (reverse)"),
		line("F2", "Restart sqls"),
		line("F3", "Stop or start sqls"),
		line("Ctrl+O", "Choose connection"),
		line("?", "Toggle this help"),
		"",
		sectionStyle.Render("Explorer"),
		line("↑/k  ↓/j", "Navigate up/down"),
		line("Enter/→/l", "Expand item"),
		line("←/h", "Collapse or go to parent"),
		line("r", "Reload item"),
		line("s", "Quick SELECT * LIMIT 100"),
		"",
		sectionStyle.Render("Editor"),
		line("Ctrl+E / F5", "Execute query"),
		line("Ctrl+K", "Clear editor"),
		line("Ctrl+L", "Uppercase keywords"),
		line("Ctrl+R / Ctrl+N", "Older / newer history entry"),
		line("Tab", "Complete table name"),
		"",
		sectionStyle.Render("Results"),
		line("Arrows / hjkl", "Move cell cursor"),
		line("PgUp/PgDn", "Page up/down"),
		line("y", "Copy cell"),
		line("Y / Ctrl+Y", "Copy row as JSON / CSV"),
		line("f", "Filter by cell value"),
		line("D", "Generate DELETE for row"),
		line("e / E / Ctrl+T", "Export CSV / JSON / YAML"),
		"",
		theme.StyleMuted.Render("Press any key to close"),
	)

	return lipgloss.Place(m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		help,
	)
}
