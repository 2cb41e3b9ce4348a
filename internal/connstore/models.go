package connstore

import (
	"fmt"
	"strings"
)

// Driver identifies the database engine of a connection.
type Driver string

const (
	MySQL      Driver = "mysql"
	SQLite     Driver = "sqlite"
	PostgreSQL Driver = "postgresql"
	ClickHouse Driver = "clickhouse"
)

// Drivers lists the supported drivers.
var Drivers = []Driver{MySQL, SQLite, PostgreSQL, ClickHouse}

// ParseDriver maps a driver name to a Driver. Common aliases such as
// "postgres" and "sqlite3" are accepted.
func ParseDriver(name string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgresql", "postgres", "pg":
		return PostgreSQL, nil
	case "clickhouse":
		return ClickHouse, nil
	}
	return "", fmt.Errorf("unsupported driver %q", name)
}

// Config is a named connection the language server can switch to.
type Config struct {
	Alias          string `json:"alias" mapstructure:"alias" yaml:"alias"`
	Driver         Driver `json:"driver" mapstructure:"driver" yaml:"driver"`
	DataSourceName string `json:"dataSourceName" mapstructure:"data_source_name" yaml:"data_source_name"`
}

// Entry is a Config annotated with whether it is the default.
type Entry struct {
	Config
	Default bool
}

// DisplayString returns the alias and driver for lists.
func (c Config) DisplayString() string {
	return fmt.Sprintf("%s (%s)", c.Alias, c.Driver)
}
