package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/sqlbridge/internal/app"
	"github.com/joacominatel/sqlbridge/internal/connstore"
	"github.com/joacominatel/sqlbridge/internal/notify"
	"github.com/joacominatel/sqlbridge/internal/server"
	"github.com/joacominatel/sqlbridge/internal/state"
	"github.com/joacominatel/sqlbridge/internal/tui/editor"
	"github.com/joacominatel/sqlbridge/internal/tui/explorer"
)

type stubServer struct {
	state    server.State
	alias    string
	switched []bool
	reply    json.RawMessage
}

func (s *stubServer) State() server.State { return s.state }
func (s *stubServer) RestartCount() int { return 0 }
func (s *stubServer) ActiveAlias() string { return s.alias }

func (s *stubServer) Start(context.Context) error {
	s.state = server.Running
	return nil
}

func (s *stubServer) Stop(context.Context) error {
	s.state = server.Stopped
	return nil
}

func (s *stubServer) Restart(ctx context.Context) error { return s.Start(ctx) }

func (s *stubServer) SwitchConnection(_ context.Context, alias string) error {
	s.alias = alias
	return nil
}

func (s *stubServer) DidChangeConfiguration(_ context.Context, switchDefault bool) error {
	s.switched = append(s.switched, switchDefault)
	return nil
}

func (s *stubServer) ListDatabases(context.Context, string) ([]string, error) {
	return []string{"main"}, nil
}

func (s *stubServer) ListTables(context.Context, string, string) ([]string, error) {
	return []string{"users"}, nil
}

func (s *stubServer) SyncDocument(context.Context, string, string) error { return nil }

func (s *stubServer) ExecuteQuery(context.Context, server.QueryRequest) (json.RawMessage, error) {
	return s.reply, nil
}

func newTestModel(t *testing.T) (Model, *stubServer) {
	t.Helper()
	conns := connstore.New(state.NewMemory(), "test")
	for _, c := range []connstore.Config{
		{Alias: "lite", Driver: connstore.SQLite, DataSourceName: "file:lite.db"},
		{Alias: "other", Driver: connstore.SQLite, DataSourceName: "file:other.db"},
	} {
		if err := conns.Upsert(c); err != nil {
			t.Fatal(err)
		}
	}
	srv := &stubServer{state: server.Running}
	service := app.NewService(srv, conns, t.TempDir())

	m := NewModel(service, t.TempDir())
	m = send(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	m = send(t, m, m.loadConnectionsCmd()())
	return m, srv
}

// send runs msg and every command it returns synchronously, one level deep.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	if cmd == nil {
		return m
	}
	if out := cmd(); out != nil {
		if _, batch := out.(tea.BatchMsg); !batch {
			next, _ = m.Update(out)
			m = next.(Model)
		}
	}
	return m
}

func TestSelectConnectionEntersMain(t *testing.T) {
	m, srv := newTestModel(t)
	if len(m.connections) != 2 {
		t.Fatalf("Expected 2 connections, got %d", len(m.connections))
	}

	m = send(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.mode != ModeMain {
		t.Fatalf("Expected main mode, got %v", m.mode)
	}
	if len(srv.switched) != 1 || !srv.switched[0] {
		t.Errorf("Expected a configuration push with switch, got %v", srv.switched)
	}
}

func TestAddConnectionForm(t *testing.T) {
	m, _ := newTestModel(t)
	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	if m.mode != ModeAddConnection {
		t.Fatalf("Expected add mode, got %v", m.mode)
	}

	for _, field := range []string{"pg", "postgres", "postgres://u:p@localhost:5432/app"} {
		m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(field)})
		m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	}
	if m.err != nil {
		t.Fatalf("Unexpected error: %v", m.err)
	}
	if m.mode != ModeSelectConnection {
		t.Errorf("Expected to return to the list, got %v", m.mode)
	}

	m = send(t, m, m.loadConnectionsCmd()())
	if len(m.connections) != 3 || m.connections[2].Driver != connstore.PostgreSQL {
		t.Errorf("Unexpected connections %+v", m.connections)
	}
}

func TestAddConnectionRejectsBadDriver(t *testing.T) {
	m, _ := newTestModel(t)
	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	for _, field := range []string{"x", "oracle", "dsn"} {
		m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(field)})
		m = send(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	}
	if m.err == nil || !strings.Contains(m.err.Error(), "unsupported driver") {
		t.Errorf("Expected driver error, got %v", m.err)
	}
}

func TestExplorerRequestsRouteToService(t *testing.T) {
	m, _ := newTestModel(t)
	m = send(t, m, explorer.RequestDatabasesMsg{Alias: "lite"})
	m = send(t, m, explorer.RequestTablesMsg{Alias: "lite", Database: "main"})
	if got := m.explorer.Tables("lite"); len(got) != 1 || got[0] != "users" {
		t.Errorf("Tables = %v", got)
	}
}

func TestExecuteQueryShowsResult(t *testing.T) {
	m, srv := newTestModel(t)
	srv.reply = json.RawMessage(`{"columns":["id"],"rows":[[1],[2]]}`)
	m.mode = ModeMain

	m = send(t, m, editor.ExecuteQueryMsg{Query: "SELECT id FROM users"})
	res := m.results.Result()
	if res == nil || len(res.Rows) != 2 {
		t.Fatalf("Unexpected result %+v", res)
	}
}

func TestNotificationReachesStatusBar(t *testing.T) {
	m, _ := newTestModel(t)
	m = send(t, m, NotificationMsg{Severity: notify.SeverityWarning, Message: "sqls warned"})
	if m.statusbar.Message() != "sqls warned" {
		t.Errorf("Status = %q", m.statusbar.Message())
	}
}

func TestBridgeDropsBeforeAttach(t *testing.T) {
	var b Bridge
	if got := b.Sink(notify.SeverityError)("boom", "Retry"); got != "" {
		t.Errorf("Sink returned %q", got)
	}
	b.ObserveState(server.Running)
}

func TestAbortedStartIsNotReported(t *testing.T) {
	m, _ := newTestModel(t)
	m.statusbar.SetMessage("")
	err := &app.ErrConnection{Cause: server.ErrStartAborted}
	m = send(t, m, serverActionMsg{action: "start", err: err})
	if m.statusbar.Message() != "" {
		t.Errorf("Status = %q", m.statusbar.Message())
	}

	m = send(t, m, serverActionMsg{action: "start", err: errors.New("spawn failed")})
	if !strings.Contains(m.statusbar.Message(), "spawn failed") {
		t.Errorf("Status = %q", m.statusbar.Message())
	}
}

type chanSender chan tea.Msg

func (c chanSender) Send(msg tea.Msg) { c <- msg }

func TestBridgeKeepsOrder(t *testing.T) {
	out := make(chanSender, eventBuffer)
	var b Bridge
	b.attach(out)
	defer b.Close()

	sink := b.Sink(notify.SeverityInfo)
	for i := range 20 {
		sink(fmt.Sprintf("message %d", i))
	}

	for i := range 20 {
		select {
		case msg := <-out:
			want := fmt.Sprintf("message %d", i)
			if got := msg.(NotificationMsg).Message; got != want {
				t.Fatalf("Expected %q, got %q", want, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timed out waiting for message %d", i)
		}
	}
}

func TestBridgeDropsAfterClose(t *testing.T) {
	out := make(chanSender, eventBuffer)
	var b Bridge
	b.attach(out)
	b.Close()

	b.ObserveState(server.Running)
	select {
	case msg := <-out:
		t.Errorf("Unexpected event after Close: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}
