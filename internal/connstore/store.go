// Package connstore keeps named connection configurations and the default
// alias pointer in the persisted state space.
//
// Keys are "{prefix}.conn.alias.{alias}" for each configuration and
// "{prefix}.conn.default" for the default pointer. Enumeration follows
// insertion order of the underlying state store.
package connstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/joacominatel/sqlbridge/internal/state"
)

// ErrNotFound is returned for an alias with no stored configuration.
var ErrNotFound = errors.New("connection not found")

// record is the persisted form. Secret means the DSN lives in the
// SecretStore and DataSourceName is empty.
type record struct {
	Alias          string `json:"alias"`
	Driver         Driver `json:"driver"`
	DataSourceName string `json:"dataSourceName,omitempty"`
	Secret         bool   `json:"secret,omitempty"`
}

// Store is the connection configuration store.
type Store struct {
	kv      state.Store
	prefix  string
	secrets SecretStore
}

// Option configures a Store.
type Option func(*Store)

// WithSecrets keeps data source names in s instead of the state store.
func WithSecrets(s SecretStore) Option {
	return func(st *Store) {
		st.secrets = s
	}
}

// New creates a Store over kv using prefix as the key namespace.
func New(kv state.Store, prefix string, opts ...Option) *Store {
	s := &Store{kv: kv, prefix: prefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) aliasPrefix() string {
	return s.prefix + ".conn.alias."
}

func (s *Store) aliasKey(alias string) string {
	return s.aliasPrefix() + alias
}

func (s *Store) defaultKey() string {
	return s.prefix + ".conn.default"
}

// Validate checks that cfg can be handed to the language server.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Alias) == "" {
		return fmt.Errorf("alias cannot be empty")
	}
	if _, err := ParseDriver(string(cfg.Driver)); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.DataSourceName) == "" {
		return fmt.Errorf("connection %s: data source name cannot be empty", cfg.Alias)
	}
	if cfg.Driver == PostgreSQL {
		if _, err := pgx.ParseConfig(cfg.DataSourceName); err != nil {
			return fmt.Errorf("connection %s: invalid postgresql dsn: %w", cfg.Alias, err)
		}
	}
	return nil
}

// Upsert writes cfg under its alias. The last write wins.
func (s *Store) Upsert(cfg Config) error {
	driver, err := ParseDriver(string(cfg.Driver))
	if err != nil {
		return err
	}
	cfg.Driver = driver
	if err := Validate(cfg); err != nil {
		return err
	}

	rec := record{Alias: cfg.Alias, Driver: cfg.Driver, DataSourceName: cfg.DataSourceName}
	if s.secrets != nil {
		if err := s.secrets.Set(cfg.Alias, cfg.DataSourceName); err != nil {
			return fmt.Errorf("store secret for %s: %w", cfg.Alias, err)
		}
		rec.DataSourceName = ""
		rec.Secret = true
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal connection %s: %w", cfg.Alias, err)
	}
	return s.kv.Set(s.aliasKey(cfg.Alias), string(data))
}

// Remove deletes the configuration for alias. The default pointer is left
// untouched even when it names alias; reads fall back instead.
func (s *Store) Remove(alias string) error {
	if err := s.kv.Delete(s.aliasKey(alias)); err != nil {
		return err
	}
	if s.secrets != nil {
		if err := s.secrets.Delete(alias); err != nil {
			return fmt.Errorf("delete secret for %s: %w", alias, err)
		}
	}
	return nil
}

// SetDefault overwrites the default pointer.
func (s *Store) SetDefault(alias string) error {
	return s.kv.Set(s.defaultKey(), alias)
}

// Default returns the raw default pointer, which may dangle.
func (s *Store) Default() (string, bool, error) {
	return s.kv.Get(s.defaultKey())
}

// ClearAll deletes the default pointer and every configuration.
func (s *Store) ClearAll() error {
	if err := s.kv.Delete(s.defaultKey()); err != nil {
		return err
	}
	keys, err := s.kv.Keys(s.aliasPrefix())
	if err != nil {
		return err
	}
	for _, key := range keys {
		alias := strings.TrimPrefix(key, s.aliasPrefix())
		if err := s.Remove(alias); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the configuration stored for alias.
func (s *Store) Get(alias string) (Config, bool, error) {
	raw, ok, err := s.kv.Get(s.aliasKey(alias))
	if err != nil || !ok {
		return Config{}, false, err
	}
	cfg, err := s.decode(raw)
	if err != nil {
		return Config{}, false, err
	}
	return cfg, true, nil
}

// ListAll returns every configuration in insertion order, flagging the
// default one.
func (s *Store) ListAll() ([]Entry, error) {
	keys, err := s.kv.Keys(s.aliasPrefix())
	if err != nil {
		return nil, err
	}

	def, _, err := s.Default()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		raw, ok, err := s.kv.Get(key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		cfg, err := s.decode(raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Config: cfg, Default: def != "" && cfg.Alias == def})
	}
	return entries, nil
}

// Current returns the default configuration when the pointer resolves,
// otherwise the first stored configuration.
func (s *Store) Current() (Config, bool, error) {
	if def, ok, err := s.Default(); err != nil {
		return Config{}, false, err
	} else if ok && def != "" {
		cfg, found, err := s.Get(def)
		if err != nil {
			return Config{}, false, err
		}
		if found {
			return cfg, true, nil
		}
	}

	entries, err := s.ListAll()
	if err != nil {
		return Config{}, false, err
	}
	if len(entries) == 0 {
		return Config{}, false, nil
	}
	return entries[0].Config, true, nil
}

func (s *Store) decode(raw string) (Config, error) {
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Config{}, fmt.Errorf("decode connection: %w", err)
	}

	cfg := Config{Alias: rec.Alias, Driver: rec.Driver, DataSourceName: rec.DataSourceName}
	if rec.Secret {
		if s.secrets == nil {
			return Config{}, fmt.Errorf("connection %s: secret storage is not configured", rec.Alias)
		}
		dsn, err := s.secrets.Get(rec.Alias)
		if err != nil {
			return Config{}, fmt.Errorf("connection %s: %w", rec.Alias, err)
		}
		cfg.DataSourceName = dsn
	}
	return cfg, nil
}
