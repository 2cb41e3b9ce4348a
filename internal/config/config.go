package config

import (
	"fmt"
	"log/slog"

	"github.com/joacominatel/sqlbridge/internal/connstore"
	"github.com/joacominatel/sqlbridge/internal/notify"
)

// Config represents the application configuration.
type Config struct {
	Server            Server             `mapstructure:"server" yaml:"server"`
	State             State              `mapstructure:"state" yaml:"state"`
	Log               Log                `mapstructure:"log" yaml:"log"`
	Messages          Messages           `mapstructure:"messages" yaml:"messages"`
	Connections       []connstore.Config `mapstructure:"connections" yaml:"connections"`
	DefaultConnection string             `mapstructure:"default_connection" yaml:"default_connection"`
}

// Server configures the sqls process.
type Server struct {
	// Root holds per-platform directories such as linux_amd64/sqls.
	Root string `mapstructure:"root" yaml:"root"`
	// Binary overrides the lookup under Root.
	Binary            string   `mapstructure:"binary" yaml:"binary,omitempty"`
	Args              []string `mapstructure:"args" yaml:"args,omitempty"`
	LowercaseKeywords bool     `mapstructure:"lowercase_keywords" yaml:"lowercase_keywords"`
	ShowJSON          bool     `mapstructure:"show_json" yaml:"show_json"`
	ScratchDir        string   `mapstructure:"scratch_dir" yaml:"scratch_dir"`
}

// State configures persisted state.
type State struct {
	Path      string `mapstructure:"path" yaml:"path"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	Keyring   bool   `mapstructure:"keyring" yaml:"keyring"`
	Ephemeral bool   `mapstructure:"ephemeral" yaml:"ephemeral"`
}

// Log configures the log file.
type Log struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

// Messages holds notification policy.
type Messages struct {
	Suppress []string      `mapstructure:"suppress" yaml:"suppress,omitempty"`
	Rewrite  []notify.Rule `mapstructure:"rewrite" yaml:"rewrite,omitempty"`
}

// Validate checks values that would otherwise fail late.
func (cfg *Config) Validate() error {
	if _, err := cfg.Log.SlogLevel(); err != nil {
		return err
	}
	if cfg.State.Prefix == "" {
		return fmt.Errorf("state.prefix must not be empty")
	}
	seen := make(map[string]bool, len(cfg.Connections))
	for _, c := range cfg.Connections {
		if err := connstore.Validate(c); err != nil {
			return fmt.Errorf("connection %q: %w", c.Alias, err)
		}
		if seen[c.Alias] {
			return fmt.Errorf("duplicate connection alias %q", c.Alias)
		}
		seen[c.Alias] = true
	}
	return nil
}

// SlogLevel parses Level.
func (l Log) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// Interceptor returns interceptor options built from the message policy.
func (m Messages) Interceptor() ([]notify.InterceptorOption, error) {
	var opts []notify.InterceptorOption
	if len(m.Suppress) > 0 {
		f, err := notify.SuppressMatching(m.Suppress)
		if err != nil {
			return nil, err
		}
		opts = append(opts, notify.WithFilter(f))
	}
	if len(m.Rewrite) > 0 {
		t, err := notify.RewriteMatching(m.Rewrite)
		if err != nil {
			return nil, err
		}
		opts = append(opts, notify.WithTransformer(t))
	}
	return opts, nil
}

// Seed adds configured connections missing from store and applies
// DefaultConnection. Connections already in the store are left as saved.
func Seed(cfg *Config, store *connstore.Store) (int, error) {
	added := 0
	for _, c := range cfg.Connections {
		_, ok, err := store.Get(c.Alias)
		if err != nil {
			return added, err
		}
		if ok {
			continue
		}
		if err := store.Upsert(c); err != nil {
			return added, fmt.Errorf("seed %s: %w", c.Alias, err)
		}
		added++
	}
	if cfg.DefaultConnection != "" {
		if err := store.SetDefault(cfg.DefaultConnection); err != nil {
			return added, err
		}
	}
	return added, nil
}
