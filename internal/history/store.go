package history

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
)

//go:embed schema.sql
var schemaSQL string

// Entry is one executed query.
type Entry struct {
	ID           string
	Alias        string
	Query        string
	ExecutedAt   time.Time
	Duration     time.Duration
	RowsAffected *int64
	Success      bool
	ErrorMessage string
}

// Store persists query history in a SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates the schema on db if needed.
func NewStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Add records entry, filling in ID and ExecutedAt when empty.
func (s *Store) Add(entry Entry) (Entry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = s.now()
	}

	var affected sql.NullInt64
	if entry.RowsAffected != nil {
		affected = sql.NullInt64{Int64: *entry.RowsAffected, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO query_history
		(id, alias, query, executed_at, duration_ms, rows_affected, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Alias,
		entry.Query,
		entry.ExecutedAt.UnixMilli(),
		entry.Duration.Milliseconds(),
		affected,
		entry.Success,
		entry.ErrorMessage,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("add history entry: %w", err)
	}
	return entry, nil
}

// Recent returns the newest entries first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	return s.query(`
		SELECT id, alias, query, executed_at, duration_ms, rows_affected, success, error_message
		FROM query_history
		ORDER BY executed_at DESC, rowid DESC
		LIMIT ?`, limit)
}

// Search returns entries whose query contains text, newest first.
func (s *Store) Search(text string, limit int) ([]Entry, error) {
	return s.query(`
		SELECT id, alias, query, executed_at, duration_ms, rows_affected, success, error_message
		FROM query_history
		WHERE instr(query, ?) > 0
		ORDER BY executed_at DESC, rowid DESC
		LIMIT ?`, text, limit)
}

func (s *Store) query(q string, args ...any) ([]Entry, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			executedAt int64
			durationMs int64
			affected   sql.NullInt64
		)
		err := rows.Scan(
			&e.ID,
			&e.Alias,
			&e.Query,
			&executedAt,
			&durationMs,
			&affected,
			&e.Success,
			&e.ErrorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}

		e.ExecutedAt = time.UnixMilli(executedAt)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		if affected.Valid {
			n := affected.Int64
			e.RowsAffected = &n
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
