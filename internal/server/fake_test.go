package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/joacominatel/sqlbridge/internal/connstore"
	"github.com/joacominatel/sqlbridge/internal/state"
	"github.com/sourcegraph/jsonrpc2"
)

// responder scripts executeCommand replies of the fake server.
type responder func(command string, args []json.RawMessage) (any, error)

type fakeServer struct {
	conn *jsonrpc2.Conn

	mu       sync.Mutex
	methods  []string
	commands []string
	args     [][]json.RawMessage
	params   map[string]json.RawMessage
	respond  responder
}

func newFakeServer(rwc io.ReadWriteCloser, respond responder) *fakeServer {
	fs := &fakeServer{params: make(map[string]json.RawMessage), respond: respond}
	fs.conn = jsonrpc2.NewConn(context.Background(),
		jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(fs.handle))
	return fs
}

func (fs *fakeServer) handle(_ context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (any, error) {
	fs.mu.Lock()
	fs.methods = append(fs.methods, req.Method)
	if req.Params != nil {
		fs.params[req.Method] = *req.Params
	}
	fs.mu.Unlock()

	switch req.Method {
	case "initialize":
		return map[string]any{"capabilities": map[string]any{}}, nil
	case "shutdown":
		return nil, nil
	case "exit":
		go conn.Close()
		return nil, nil
	case "workspace/executeCommand":
		var p struct {
			Command   string            `json:"command"`
			Arguments []json.RawMessage `json:"arguments"`
		}
		if err := json.Unmarshal(*req.Params, &p); err != nil {
			return nil, err
		}
		fs.mu.Lock()
		fs.commands = append(fs.commands, p.Command)
		fs.args = append(fs.args, p.Arguments)
		respond := fs.respond
		fs.mu.Unlock()
		if respond != nil {
			return respond(p.Command, p.Arguments)
		}
		return nil, nil
	}
	return nil, nil
}

// crash drops the connection like a dying process would.
func (fs *fakeServer) crash() {
	_ = fs.conn.Close()
}

func (fs *fakeServer) Commands() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.commands...)
}

func (fs *fakeServer) Args(i int) []json.RawMessage {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.args[i]
}

func (fs *fakeServer) Methods() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.methods...)
}

func (fs *fakeServer) Params(method string) json.RawMessage {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.params[method]
}

func (fs *fakeServer) has(method string) bool {
	for _, m := range fs.Methods() {
		if m == method {
			return true
		}
	}
	return false
}

type pipeLauncher struct {
	servers chan *fakeServer

	mu       sync.Mutex
	launches int
	err      error
	respond  responder
	stalls   int

	// released receives once per stalled stream the client closed.
	released chan struct{}
}

func newPipeLauncher(respond responder) *pipeLauncher {
	return &pipeLauncher{
		servers:  make(chan *fakeServer, 32),
		respond:  respond,
		released: make(chan struct{}, 32),
	}
}

func (l *pipeLauncher) Launch(context.Context) (io.ReadWriteCloser, error) {
	l.mu.Lock()
	l.launches++
	err, respond := l.err, l.respond
	stall := l.stalls > 0
	if stall {
		l.stalls--
	}
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}

	client, srv := net.Pipe()
	if stall {
		// Reads requests and never answers, like a server stuck before
		// its initialize reply.
		go func() {
			_, _ = io.Copy(io.Discard, srv)
			l.released <- struct{}{}
		}()
		return client, nil
	}
	l.servers <- newFakeServer(srv, respond)
	return client, nil
}

func (l *pipeLauncher) Launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.launches
}

// stall makes the next n launches hang in the handshake.
func (l *pipeLauncher) stall(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stalls = n
}

func (l *pipeLauncher) waitReleased(t *testing.T) {
	t.Helper()
	select {
	case <-l.released:
	case <-time.After(2 * time.Second):
		t.Fatal("Stalled stream was never closed")
	}
}

func (l *pipeLauncher) fail(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *pipeLauncher) next(t *testing.T) *fakeServer {
	t.Helper()
	select {
	case fs := <-l.servers:
		return fs
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for a launch")
		return nil
	}
}

type recorder struct {
	mu       sync.Mutex
	messages []string
}

func (r *recorder) add(sev, message string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, sev+": "+message)
	return ""
}

func (r *recorder) Error(message string, _ ...string) string { return r.add("error", message) }
func (r *recorder) Warning(message string, _ ...string) string { return r.add("warning", message) }
func (r *recorder) Info(message string, _ ...string) string { return r.add("info", message) }

func (r *recorder) contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func testConnections(t *testing.T) *connstore.Store {
	t.Helper()
	store := connstore.New(state.NewMemory(), "test")
	for _, cfg := range []connstore.Config{
		{Alias: "lite", Driver: connstore.SQLite, DataSourceName: "file:app.db"},
		{Alias: "my", Driver: connstore.MySQL, DataSourceName: "root@tcp(127.0.0.1:3306)/world"},
	} {
		if err := store.Upsert(cfg); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	if err := store.SetDefault("lite"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	return store
}

type harness struct {
	sup      *Supervisor
	launcher *pipeLauncher
	notes    *recorder
	conns    *connstore.Store
}

func newHarness(t *testing.T, respond responder) *harness {
	t.Helper()
	h := &harness{
		launcher: newPipeLauncher(respond),
		notes:    &recorder{},
		conns:    testConnections(t),
	}
	h.sup = New(h.launcher, h.conns, h.notes)
	t.Cleanup(func() {
		_ = h.sup.Stop(context.Background())
	})
	return h
}

func (h *harness) start(t *testing.T) *fakeServer {
	t.Helper()
	if err := h.sup.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return h.launcher.next(t)
}

// replies answers listing commands from a fixed table.
func replies(table map[string]any) responder {
	return func(command string, _ []json.RawMessage) (any, error) {
		if v, ok := table[command]; ok {
			if err, isErr := v.(error); isErr {
				return nil, err
			}
			return v, nil
		}
		return nil, nil
	}
}

func argString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		t.Fatalf("Argument %s is not a string: %v", raw, err)
	}
	return s
}

var errRemote = fmt.Errorf("remote failure")
