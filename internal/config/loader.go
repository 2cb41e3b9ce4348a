package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configDir  = ".sqlbridge"
	configFile = "config"
	configType = "yaml"
	envPrefix  = "SQLBRIDGE"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"sqls-root":   "server.root",
	"sqls-binary": "server.binary",
	"show-json":   "server.show_json",
	"state":       "state.path",
	"keyring":     "state.keyring",
	"ephemeral":   "state.ephemeral",
	"log-file":    "log.file",
	"log-level":   "log.level",
	"connection":  "default_connection",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "config file (default ~/.sqlbridge/config.yaml)")
	fs.String("sqls-root", "", "directory holding {os}_{arch}/sqls")
	fs.String("sqls-binary", "", "explicit path to the sqls binary")
	fs.Bool("show-json", false, "request JSON results from sqls")
	fs.String("state", "", "state database path")
	fs.Bool("keyring", false, "keep data source names in the OS keyring")
	fs.Bool("ephemeral", false, "keep state in memory only")
	fs.String("log-file", "", "log file path")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("connection", "", "default connection alias")
}

// Load reads the configuration from the config file, SQLBRIDGE_* variables
// and fs, in increasing precedence. A missing default config file is not an
// error; a missing explicit one is.
func Load(fs *pflag.FlagSet) (*Config, error) {
	home, err := homeDir()
	if err != nil {
		return nil, fmt.Errorf("config dir: %w", err)
	}

	v := viper.New()
	setDefaults(v, home)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := ""
	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil {
			explicit = f.Value.String()
		}
	}
	if explicit == "" {
		explicit = os.Getenv(envPrefix + "_CONFIG")
	}

	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName(configFile)
		v.SetConfigType(configType)
		v.AddConfigPath(home)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("server.root", filepath.Join(home, "bin"))
	v.SetDefault("server.binary", "")
	v.SetDefault("server.args", []string{})
	v.SetDefault("server.lowercase_keywords", false)
	v.SetDefault("server.show_json", false)
	v.SetDefault("server.scratch_dir", filepath.Join(home, "scratch"))
	v.SetDefault("state.path", filepath.Join(home, "state.db"))
	v.SetDefault("state.prefix", "sqlbridge")
	v.SetDefault("state.keyring", false)
	v.SetDefault("state.ephemeral", false)
	v.SetDefault("log.file", filepath.Join(home, "sqlbridge.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("default_connection", "")
}

// homeDir returns ~/.sqlbridge, or $SQLBRIDGE_HOME when set.
func homeDir() (string, error) {
	if dir := os.Getenv(envPrefix + "_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configDir), nil
}
