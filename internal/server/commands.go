package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sourcegraph/jsonrpc2"
	"github.com/tidwall/gjson"
)

// DidChangeConfiguration pushes the full connection list to the server.
// With switchDefault set and a resolvable default, it then switches to it.
func (s *Supervisor) DidChangeConfiguration(ctx context.Context, switchDefault bool) error {
	conn, err := s.liveConn()
	if err != nil {
		return err
	}
	settings, err := s.settings()
	if err != nil {
		return err
	}
	if err := s.notifyConfiguration(ctx, conn, settings); err != nil {
		s.classify(conn, err)
		return fmt.Errorf("didChangeConfiguration: %w", err)
	}
	if !switchDefault {
		return nil
	}
	return s.switchDefault(ctx, conn)
}

func (s *Supervisor) notifyConfiguration(ctx context.Context, conn *jsonrpc2.Conn, settings Settings) error {
	var params didChangeConfigurationParams
	params.Settings.SQLS = settings
	return conn.Notify(ctx, "workspace/didChangeConfiguration", params)
}

func (s *Supervisor) switchDefault(ctx context.Context, conn *jsonrpc2.Conn) error {
	cur, ok, err := s.conns.Current()
	if err != nil {
		return fmt.Errorf("resolve default connection: %w", err)
	}
	if !ok {
		return nil
	}
	return s.switchOn(ctx, conn, cur.Alias)
}

func (s *Supervisor) switchOn(ctx context.Context, conn *jsonrpc2.Conn, alias string) error {
	if _, err := s.call(ctx, conn, CommandSwitchConnections, []any{alias}); err != nil {
		return err
	}
	s.mu.Lock()
	if s.conn == conn {
		s.activeAlias = alias
	}
	s.mu.Unlock()
	return nil
}

// SwitchConnection makes alias the server's active connection.
func (s *Supervisor) SwitchConnection(ctx context.Context, alias string) error {
	conn, err := s.liveConn()
	if err != nil {
		return err
	}
	return s.switchOn(ctx, conn, alias)
}

// SwitchDatabase changes the database of the active connection.
func (s *Supervisor) SwitchDatabase(ctx context.Context, name string) error {
	_, err := s.ExecuteCommand(ctx, CommandSwitchDatabase, name)
	return err
}

// ListDatabases lists the databases of alias; "" means the active one.
//
// For another alias the server is switched to it, listed, and switched back
// to the previously active alias even when listing fails. That sequence is
// not atomic: a concurrent SwitchConnection or listing can interleave and
// leave a different alias active. Callers needing stronger guarantees must
// serialize themselves.
func (s *Supervisor) ListDatabases(ctx context.Context, alias string) ([]string, error) {
	return s.withAlias(ctx, alias, "", func(conn *jsonrpc2.Conn) ([]string, error) {
		raw, err := s.call(ctx, conn, CommandShowDatabases, nil)
		if err != nil {
			return nil, err
		}
		return splitNames(raw, ""), nil
	})
}

// ListTables lists the tables of database on alias; "" means the active
// alias, and an empty database means the connection's current one. Entries
// prefixed with "<database>." are stripped. The same non-atomic
// switch-list-restore sequence as ListDatabases applies.
func (s *Supervisor) ListTables(ctx context.Context, alias, database string) ([]string, error) {
	return s.withAlias(ctx, alias, database, func(conn *jsonrpc2.Conn) ([]string, error) {
		var args []any
		if database != "" {
			args = []any{database}
		}
		raw, err := s.call(ctx, conn, CommandShowTables, args)
		if err != nil {
			return nil, err
		}
		return splitNames(raw, database), nil
	})
}

func (s *Supervisor) withAlias(ctx context.Context, alias, database string, list func(*jsonrpc2.Conn) ([]string, error)) ([]string, error) {
	conn, err := s.liveConn()
	if err != nil {
		return nil, err
	}

	previous, err := s.previousAlias()
	if err != nil {
		return nil, err
	}
	if alias == "" || alias == previous {
		return list(conn)
	}

	names, err := s.listOn(ctx, conn, alias, database, list)
	if previous == "" {
		return names, err
	}
	if restoreErr := s.switchOn(context.WithoutCancel(ctx), conn, previous); restoreErr != nil {
		s.logger.Error("restore active connection failed", "alias", previous, "error", restoreErr)
		err = errors.Join(err, fmt.Errorf("restore connection %s: %w", previous, restoreErr))
	}
	return names, err
}

func (s *Supervisor) listOn(ctx context.Context, conn *jsonrpc2.Conn, alias, database string, list func(*jsonrpc2.Conn) ([]string, error)) ([]string, error) {
	if err := s.switchOn(ctx, conn, alias); err != nil {
		return nil, err
	}
	if database != "" {
		if _, err := s.call(ctx, conn, CommandSwitchDatabase, []any{database}); err != nil {
			return nil, err
		}
	}
	return list(conn)
}

func (s *Supervisor) previousAlias() (string, error) {
	if alias := s.ActiveAlias(); alias != "" {
		return alias, nil
	}
	cur, ok, err := s.conns.Current()
	if err != nil {
		return "", fmt.Errorf("resolve default connection: %w", err)
	}
	if !ok {
		return "", nil
	}
	return cur.Alias, nil
}

// splitNames turns a newline-delimited reply into trimmed, non-empty names.
func splitNames(raw json.RawMessage, scope string) []string {
	text := gjson.ParseBytes(raw).String()
	prefix := ""
	if scope != "" {
		prefix = scope + "."
	}

	var names []string
	for _, line := range strings.Split(text, "\n") {
		name := strings.TrimSpace(line)
		if prefix != "" {
			name = strings.TrimPrefix(name, prefix)
		}
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

// ExecuteQuery runs executeQuery for req. The document must have been
// synced with SyncDocument first.
func (s *Supervisor) ExecuteQuery(ctx context.Context, req QueryRequest) (json.RawMessage, error) {
	return s.ExecuteCommand(ctx, CommandExecuteQuery, req.arguments()...)
}

// SyncDocument sends the full text of uri to the server: didOpen the first
// time on a connection, didChange afterwards.
func (s *Supervisor) SyncDocument(ctx context.Context, uri, text string) error {
	s.mu.Lock()
	if s.state != Running || s.conn == nil {
		s.mu.Unlock()
		return ErrServerNotRunning
	}
	conn := s.conn
	version, open := s.documents[uri]
	version++
	s.documents[uri] = version
	s.mu.Unlock()

	var err error
	if !open {
		err = conn.Notify(ctx, "textDocument/didOpen", didOpenParams{
			TextDocument: textDocumentItem{URI: uri, LanguageID: "sql", Version: version, Text: text},
		})
	} else {
		err = conn.Notify(ctx, "textDocument/didChange", didChangeParams{
			TextDocument:   versionedTextDocumentIdentifier{URI: uri, Version: version},
			ContentChanges: []contentChange{{Text: text}},
		})
	}
	if err != nil {
		s.classify(conn, err)
		return fmt.Errorf("sync %s: %w", uri, err)
	}
	return nil
}
