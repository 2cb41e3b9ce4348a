package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joacominatel/sqlbridge/internal/connstore"
	"github.com/joacominatel/sqlbridge/internal/export"
	"github.com/joacominatel/sqlbridge/internal/history"
	"github.com/joacominatel/sqlbridge/internal/result"
	"github.com/joacominatel/sqlbridge/internal/server"
)

// Server is the part of the supervisor the routers use.
type Server interface {
	State() server.State
	RestartCount() int
	ActiveAlias() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Restart(ctx context.Context) error
	SwitchConnection(ctx context.Context, alias string) error
	DidChangeConfiguration(ctx context.Context, switchDefault bool) error
	ListDatabases(ctx context.Context, alias string) ([]string, error)
	ListTables(ctx context.Context, alias, database string) ([]string, error)
	SyncDocument(ctx context.Context, uri, text string) error
	ExecuteQuery(ctx context.Context, req server.QueryRequest) (json.RawMessage, error)
}

// ScratchFile is the document queries are written to before execution.
const ScratchFile = "query.sql"

// Service coordinates operations between the front ends and the language
// server.
type Service struct {
	server     Server
	conns      *connstore.Store
	history    *history.Store
	scratchDir string
	showJSON   bool
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHistory records executed queries in h.
func WithHistory(h *history.Store) Option {
	return func(s *Service) {
		s.history = h
	}
}

// WithShowJSON asks the server for JSON results instead of ASCII tables.
func WithShowJSON(v bool) Option {
	return func(s *Service) {
		s.showJSON = v
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new application service. Queries are staged in
// scratchDir.
func NewService(srv Server, conns *connstore.Store, scratchDir string, opts ...Option) *Service {
	s := &Service{
		server:     srv,
		conns:      conns,
		scratchDir: scratchDir,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServerState returns the supervisor state and its restart count.
func (s *Service) ServerState() (server.State, int) {
	return s.server.State(), s.server.RestartCount()
}

// ActiveAlias returns the connection the server is switched to.
func (s *Service) ActiveAlias() string {
	return s.server.ActiveAlias()
}

// StartServer starts the language server.
func (s *Service) StartServer(ctx context.Context) error {
	if err := s.server.Start(ctx); err != nil {
		return &ErrConnection{Cause: err}
	}
	return nil
}

// StopServer stops the language server.
func (s *Service) StopServer(ctx context.Context) error {
	return s.server.Stop(ctx)
}

// RestartServer restarts the language server regardless of the restart
// budget.
func (s *Service) RestartServer(ctx context.Context) error {
	if err := s.server.Restart(ctx); err != nil {
		return &ErrConnection{Cause: err}
	}
	return nil
}

// Connections lists saved connections in insertion order.
func (s *Service) Connections() ([]connstore.Entry, error) {
	entries, err := s.conns.ListAll()
	if err != nil {
		return nil, &ErrConfig{Cause: err}
	}
	return entries, nil
}

// AddConnection saves cfg and pushes the connection list to a running
// server.
func (s *Service) AddConnection(ctx context.Context, cfg connstore.Config) error {
	if err := s.conns.Upsert(cfg); err != nil {
		return &ErrConfig{Cause: err}
	}
	return s.push(ctx, false)
}

// RemoveConnection deletes alias and pushes the connection list.
func (s *Service) RemoveConnection(ctx context.Context, alias string) error {
	if err := s.conns.Remove(alias); err != nil {
		return &ErrConfig{Cause: err}
	}
	return s.push(ctx, false)
}

// UseConnection makes alias the default and switches the server to it.
func (s *Service) UseConnection(ctx context.Context, alias string) error {
	if _, ok, err := s.conns.Get(alias); err != nil {
		return &ErrConfig{Cause: err}
	} else if !ok {
		return &ErrConnection{Cause: fmt.Errorf("%s: %w", alias, connstore.ErrNotFound)}
	}
	if err := s.conns.SetDefault(alias); err != nil {
		return &ErrConfig{Cause: err}
	}
	return s.push(ctx, true)
}

// ClearConnections removes every saved connection.
func (s *Service) ClearConnections(ctx context.Context) error {
	if err := s.conns.ClearAll(); err != nil {
		return &ErrConfig{Cause: err}
	}
	return s.push(ctx, false)
}

// push is skipped when the server is not running; the next start sends
// the list in the handshake.
func (s *Service) push(ctx context.Context, switchDefault bool) error {
	if s.server.State() != server.Running {
		return nil
	}
	if err := s.server.DidChangeConfiguration(ctx, switchDefault); err != nil {
		return &ErrConnection{Cause: err}
	}
	return nil
}

// ListDatabases returns the databases of alias; "" is the active alias.
func (s *Service) ListDatabases(ctx context.Context, alias string) ([]string, error) {
	names, err := s.server.ListDatabases(ctx, alias)
	if err != nil {
		return names, &ErrConnection{Cause: err}
	}
	return names, nil
}

// ListTables returns the tables of database on alias.
func (s *Service) ListTables(ctx context.Context, alias, database string) ([]string, error) {
	names, err := s.server.ListTables(ctx, alias, database)
	if err != nil {
		return names, &ErrConnection{Cause: err}
	}
	return names, nil
}

// ExecuteQuery runs query on the active connection and returns the
// normalized result.
func (s *Service) ExecuteQuery(ctx context.Context, query string) (*result.QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, &ErrQuery{Query: query, Cause: errors.New("empty query")}
	}

	uri, err := s.stage(query)
	if err != nil {
		return nil, &ErrQuery{Query: query, Cause: err}
	}

	start := time.Now()
	raw, err := s.run(ctx, uri, query)
	elapsed := time.Since(start)
	if err != nil {
		s.record(query, elapsed, nil, err)
		return nil, &ErrQuery{Query: query, Cause: err}
	}

	res := result.Parse(raw)
	res.ExecutionTime = elapsed
	s.record(query, elapsed, res.RowsAffected, nil)
	return &res, nil
}

func (s *Service) run(ctx context.Context, uri, query string) (json.RawMessage, error) {
	if err := s.server.SyncDocument(ctx, uri, query); err != nil {
		return nil, err
	}
	return s.server.ExecuteQuery(ctx, server.QueryRequest{URI: uri, ShowJSON: s.showJSON})
}

// stage writes query to the scratch document and returns its file URI.
func (s *Service) stage(query string) (string, error) {
	dir, err := filepath.Abs(s.scratchDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}
	path := filepath.Join(dir, ScratchFile)
	if err := os.WriteFile(path, []byte(query), 0o600); err != nil {
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String(), nil
}

func (s *Service) record(query string, elapsed time.Duration, affected *int64, runErr error) {
	if s.history == nil {
		return
	}
	entry := history.Entry{
		Alias:        s.server.ActiveAlias(),
		Query:        query,
		Duration:     elapsed,
		RowsAffected: affected,
		Success:      runErr == nil,
	}
	if runErr != nil {
		entry.ErrorMessage = runErr.Error()
	}
	if _, err := s.history.Add(entry); err != nil {
		s.logger.Warn("failed to record history", "error", err)
	}
}

// History returns the most recent queries.
func (s *Service) History(limit int) ([]history.Entry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(limit)
}

// SearchHistory returns recent queries containing text.
func (s *Service) SearchHistory(text string, limit int) ([]history.Entry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Search(text, limit)
}

// Export writes res to path; the extension selects the format.
func (s *Service) Export(path string, res result.QueryResult) error {
	return export.WriteFile(path, res)
}
