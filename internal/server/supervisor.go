// Package server supervises the sqls language server: it spawns the process,
// speaks JSON-RPC to it, restarts it within a budget and exposes the remote
// commands everything else is built on.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joacominatel/sqlbridge/internal/connstore"
	"github.com/sourcegraph/jsonrpc2"
)

// State of the supervised connection.
type State int

const (
	Stopped State = iota
	Starting
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

const (
	// MaxRestarts bounds automatic restarts between caller-initiated starts.
	MaxRestarts = 5

	transportErrorLimit = 3
	previewLimit        = 500
	shutdownTimeout     = 3 * time.Second
)

// ConnectionSource provides the connection list pushed to the server.
type ConnectionSource interface {
	ListAll() ([]connstore.Entry, error)
	Current() (connstore.Config, bool, error)
}

// Notifier shows messages to the user. Implementations must not block.
type Notifier interface {
	Error(message string, actions ...string) string
	Warning(message string, actions ...string) string
	Info(message string, actions ...string) string
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger. jsonrpc2 protocol warnings go to it as well.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// WithStateObserver registers fn to be called after every state change.
// It runs on the goroutine that made the change.
func WithStateObserver(fn func(State)) Option {
	return func(s *Supervisor) {
		s.observer = fn
	}
}

// WithLowercaseKeywords sets the lowercaseKeywords setting sent to sqls.
func WithLowercaseKeywords(v bool) Option {
	return func(s *Supervisor) {
		s.lowercaseKeywords = v
	}
}

// Supervisor owns at most one language server connection at a time.
//
// Lifecycle changes are serialized under mu. A generation counter is bumped
// on every change so a start that was overtaken by Stop or Restart discards
// its connection instead of installing it. The stream of a start still in
// its handshake is kept in pending so Stop and Restart can close it.
type Supervisor struct {
	launcher          Launcher
	conns             ConnectionSource
	notifier          Notifier
	logger            *slog.Logger
	observer          func(State)
	lowercaseKeywords bool

	mu              sync.Mutex
	state           State
	gen             uint64
	conn            *jsonrpc2.Conn
	pending         io.Closer
	initialized     bool
	restarts        int
	transportErrors int
	session         uuid.UUID
	activeAlias     string
	documents       map[string]int
}

// New creates a stopped supervisor.
func New(launcher Launcher, conns ConnectionSource, notifier Notifier, opts ...Option) *Supervisor {
	s := &Supervisor{
		launcher:  launcher,
		conns:     conns,
		notifier:  notifier,
		logger:    slog.New(slog.DiscardHandler),
		documents: make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RestartCount returns the automatic restarts since the last caller start.
func (s *Supervisor) RestartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// ActiveAlias returns the alias last switched to, or "".
func (s *Supervisor) ActiveAlias() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeAlias
}

func (s *Supervisor) observe(st State) {
	if s.observer != nil {
		s.observer(st)
	}
}

// Start spawns the server and performs the handshake. It returns nil
// immediately when the supervisor is already Starting or Running, and
// ErrStartAborted when Stop or Restart overtook it.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != Stopped {
		s.mu.Unlock()
		return nil
	}
	s.state = Starting
	s.initialized = true
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	s.observe(Starting)

	if err := s.launch(ctx, gen, false); err != nil {
		s.fail(gen, err)
		return err
	}
	return nil
}

// Stop shuts the server down, abandoning a start in progress. Stopping a
// stopped supervisor is a no-op.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	conn := s.detachLocked()
	pending := s.takePendingLocked()
	prev := s.state
	s.state = Stopped
	s.gen++
	s.mu.Unlock()

	if prev != Stopped {
		s.observe(Stopped)
	}
	if pending != nil {
		_ = pending.Close()
	}
	if conn != nil {
		s.shutdown(ctx, conn)
	}
	return nil
}

// Restart replaces the server with a fresh one. A start in progress,
// automatic or not, is abandoned. On a supervisor that was never started it
// is Start. It ignores the restart budget and resets it on success.
func (s *Supervisor) Restart(ctx context.Context) error {
	s.mu.Lock()
	if !s.initialized {
		s.mu.Unlock()
		return s.Start(ctx)
	}
	conn := s.detachLocked()
	pending := s.takePendingLocked()
	s.state = Starting
	s.gen++
	gen := s.gen
	s.mu.Unlock()
	s.observe(Starting)

	if pending != nil {
		_ = pending.Close()
	}
	if conn != nil {
		s.shutdown(ctx, conn)
	}
	if err := s.launch(ctx, gen, false); err != nil {
		s.fail(gen, err)
		return err
	}
	return nil
}

func (s *Supervisor) detachLocked() *jsonrpc2.Conn {
	conn := s.conn
	s.conn = nil
	s.activeAlias = ""
	return conn
}

func (s *Supervisor) takePendingLocked() io.Closer {
	pending := s.pending
	s.pending = nil
	return pending
}

// track records rwc as the stream of generation gen. It reports false when
// gen was already overtaken.
func (s *Supervisor) track(gen uint64, rwc io.Closer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return false
	}
	s.pending = rwc
	return true
}

func (s *Supervisor) untrack(rwc io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == rwc {
		s.pending = nil
	}
}

// startErr wraps cause unless gen was overtaken, in which case the failure
// is the closed stream and the start is reported as aborted.
func (s *Supervisor) startErr(gen uint64, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrStartAborted
	}
	return &StartError{Cause: cause}
}

// launch spawns, handshakes and pushes configuration for generation gen.
// It never moves the state to Stopped; callers handle failure.
func (s *Supervisor) launch(ctx context.Context, gen uint64, auto bool) error {
	rwc, err := s.launcher.Launch(ctx)
	if err != nil {
		var missing *ExecutableMissingError
		if errors.As(err, &missing) {
			return err
		}
		return &StartError{Cause: err}
	}
	if !s.track(gen, rwc) {
		_ = rwc.Close()
		return ErrStartAborted
	}
	defer s.untrack(rwc)

	conn := jsonrpc2.NewConn(
		context.WithoutCancel(ctx),
		jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}),
		jsonrpc2.HandlerWithError(s.handle),
		jsonrpc2.SetLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn)),
	)

	settings, err := s.settings()
	if err != nil {
		_ = conn.Close()
		return s.startErr(gen, err)
	}
	params := initializeParams{
		ProcessID:             os.Getpid(),
		InitializationOptions: settings,
	}
	if err := conn.Call(ctx, "initialize", params, nil); err != nil {
		_ = conn.Close()
		return s.startErr(gen, fmt.Errorf("initialize: %w", err))
	}
	if err := conn.Notify(ctx, "initialized", struct{}{}); err != nil {
		_ = conn.Close()
		return s.startErr(gen, fmt.Errorf("initialized: %w", err))
	}

	s.mu.Lock()
	if s.gen != gen || s.state != Starting {
		s.mu.Unlock()
		s.shutdown(ctx, conn)
		return ErrStartAborted
	}
	s.conn = conn
	s.session = uuid.New()
	s.documents = make(map[string]int)
	session := s.session
	s.mu.Unlock()

	go func() {
		<-conn.DisconnectNotify()
		s.handleDisconnect(conn)
	}()

	if err := s.notifyConfiguration(ctx, conn, settings); err != nil {
		s.mu.Lock()
		if s.conn == conn {
			s.detachLocked()
		}
		s.mu.Unlock()
		s.shutdown(ctx, conn)
		return s.startErr(gen, fmt.Errorf("push configuration: %w", err))
	}
	// An unreachable database is not a server failure.
	if err := s.switchDefault(ctx, conn); err != nil {
		s.logger.Warn("switch to default connection failed", "error", err)
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrStartAborted
	}
	if s.conn != conn {
		s.mu.Unlock()
		return &StartError{Cause: ErrConnectionClosed}
	}
	s.state = Running
	s.transportErrors = 0
	if !auto {
		s.restarts = 0
	}
	restarts := s.restarts
	s.mu.Unlock()
	s.observe(Running)

	s.logger.Info("language server running", "session", session.String(), "restarts", restarts, "automatic", auto)
	return nil
}

// fail reports a failed start of generation gen and moves to Stopped.
func (s *Supervisor) fail(gen uint64, err error) {
	if errors.Is(err, ErrStartAborted) {
		return
	}
	s.mu.Lock()
	current := s.gen == gen
	if current {
		s.state = Stopped
	}
	s.mu.Unlock()
	if !current {
		return
	}
	s.observe(Stopped)
	s.logger.Error("language server start failed", "error", err)
	s.notifier.Error(err.Error())
}

// handleDisconnect runs when a connection's stream ends. Connections that
// were detached by Stop, Restart or a transport failure are ignored.
func (s *Supervisor) handleDisconnect(conn *jsonrpc2.Conn) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.detachLocked()
	if s.state != Running {
		// Closed during configuration push; launch reports it.
		s.mu.Unlock()
		return
	}

	if s.restarts >= MaxRestarts {
		s.state = Stopped
		s.gen++
		restarts := s.restarts
		s.mu.Unlock()
		s.observe(Stopped)
		s.reportMaxRestarts(restarts)
		return
	}
	s.restarts++
	s.state = Starting
	s.gen++
	gen := s.gen
	restarts := s.restarts
	s.mu.Unlock()
	s.observe(Starting)

	s.logger.Warn("language server connection closed, restarting", "attempt", restarts, "max", MaxRestarts)
	s.autoRestart(gen)
}

// autoRestart relaunches until it succeeds, the budget runs out or a newer
// generation takes over. Failed attempts consume the budget.
func (s *Supervisor) autoRestart(gen uint64) {
	for {
		err := s.launch(context.Background(), gen, true)
		if err == nil || errors.Is(err, ErrStartAborted) {
			return
		}
		s.logger.Warn("automatic restart failed", "error", err)

		var missing *ExecutableMissingError
		s.mu.Lock()
		if s.gen != gen {
			s.mu.Unlock()
			return
		}
		if errors.As(err, &missing) || s.restarts >= MaxRestarts {
			s.state = Stopped
			s.gen++
			restarts := s.restarts
			s.mu.Unlock()
			s.observe(Stopped)
			if missing != nil {
				s.notifier.Error(err.Error())
				return
			}
			s.reportMaxRestarts(restarts)
			return
		}
		s.restarts++
		s.mu.Unlock()
	}
}

func (s *Supervisor) reportMaxRestarts(restarts int) {
	err := &MaxRestartsError{Restarts: restarts}
	s.logger.Error("language server restart budget exhausted", "restarts", restarts)
	s.notifier.Error(err.Error())
}

// observeTransportError counts a transport failure on conn. Past the limit
// the supervisor stops without restarting.
func (s *Supervisor) observeTransportError(conn *jsonrpc2.Conn, cause error) {
	s.mu.Lock()
	if s.conn != conn || s.state != Running {
		s.mu.Unlock()
		return
	}
	s.transportErrors++
	count := s.transportErrors
	if count <= transportErrorLimit {
		s.mu.Unlock()
		s.logger.Warn("transport error", "count", count, "error", cause)
		return
	}
	s.detachLocked()
	s.state = Stopped
	s.gen++
	s.mu.Unlock()
	s.observe(Stopped)

	err := &TransportError{Count: count, Cause: cause}
	s.logger.Error("language server stopped", "error", err)
	s.notifier.Error(err.Error())
	go s.shutdown(context.Background(), conn)
}

// shutdown asks the server to exit and closes the stream regardless of the
// outcome.
func (s *Supervisor) shutdown(ctx context.Context, conn *jsonrpc2.Conn) {
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := conn.Call(ctx, "shutdown", nil, nil); err != nil && !errors.Is(err, jsonrpc2.ErrClosed) {
		s.logger.Debug("shutdown request failed", "error", err)
		return
	}
	if err := conn.Notify(ctx, "exit", nil); err != nil && !errors.Is(err, jsonrpc2.ErrClosed) {
		s.logger.Debug("exit notification failed", "error", err)
	}
}

func (s *Supervisor) settings() (Settings, error) {
	entries, err := s.conns.ListAll()
	if err != nil {
		return Settings{}, fmt.Errorf("list connections: %w", err)
	}
	return Settings{
		LowercaseKeywords: s.lowercaseKeywords,
		Connections:       wireConnections(entries),
	}, nil
}

func (s *Supervisor) liveConn() (*jsonrpc2.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running || s.conn == nil {
		return nil, ErrServerNotRunning
	}
	return s.conn, nil
}

// ExecuteCommand runs a workspace/executeCommand request and returns the raw
// result. Failures are shown to the user and returned as *CommandError.
// There is no per-call timeout; the call ends with ctx or the connection.
func (s *Supervisor) ExecuteCommand(ctx context.Context, command string, args ...any) (json.RawMessage, error) {
	conn, err := s.liveConn()
	if err != nil {
		return nil, err
	}
	return s.call(ctx, conn, command, args)
}

func (s *Supervisor) call(ctx context.Context, conn *jsonrpc2.Conn, command string, args []any) (json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	s.logger.Info("executing command", "command", command, "args", args)

	var result json.RawMessage
	err := conn.Call(ctx, "workspace/executeCommand", executeCommandParams{Command: command, Arguments: args}, &result)
	if err != nil {
		s.classify(conn, err)
		if errors.Is(err, jsonrpc2.ErrClosed) {
			err = fmt.Errorf("%w: %w", ErrConnectionClosed, err)
		}
		cmdErr := &CommandError{Command: command, Cause: err}
		s.logger.Warn("command failed", "command", command, "error", err)
		s.notifier.Error(cmdErr.Error())
		return nil, cmdErr
	}

	s.logger.Debug("command result", "command", command, "preview", preview(result))
	return result, nil
}

// classify counts call failures that are neither remote errors, caller
// cancellations nor closures (closures go through handleDisconnect).
func (s *Supervisor) classify(conn *jsonrpc2.Conn, err error) {
	var rpcErr *jsonrpc2.Error
	switch {
	case errors.As(err, &rpcErr),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, jsonrpc2.ErrClosed):
		return
	}
	s.observeTransportError(conn, err)
}

func preview(raw json.RawMessage) string {
	r := []rune(string(raw))
	if len(r) <= previewLimit {
		return string(r)
	}
	return string(r[:previewLimit]) + "..."
}
