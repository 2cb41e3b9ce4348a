// Package export writes a QueryResult in column order to CSV, JSON, YAML or
// a text table.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/joacominatel/sqlbridge/internal/result"
	"gopkg.in/yaml.v3"
)

// Format is an export format.
type Format string

const (
	CSV   Format = "csv"
	JSON  Format = "json"
	YAML  Format = "yaml"
	Table Format = "table"
)

// ParseFormat accepts a format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "table", "txt", "text":
		return Table, nil
	}
	return "", fmt.Errorf("unsupported export format %q", name)
}

// FormatForPath picks the format from the file extension.
func FormatForPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("no extension on %s", path)
	}
	return ParseFormat(ext)
}

// Write renders res to w in format f.
func Write(w io.Writer, res result.QueryResult, f Format) error {
	switch f {
	case CSV:
		return writeCSV(w, res)
	case JSON:
		return writeJSON(w, res)
	case YAML:
		return writeYAML(w, res)
	case Table:
		_, err := io.WriteString(w, RenderTable(res)+"\n")
		return err
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// WriteFile exports res to path using the format of its extension.
func WriteFile(path string, res result.QueryResult) error {
	f, err := FormatForPath(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := Write(&buf, res, f); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// NULL is written as an empty field.
func writeCSV(w io.Writer, res result.QueryResult) error {
	cw := csv.NewWriter(w)
	names := res.ColumnNames()
	if err := cw.Write(names); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(names))
	for _, row := range res.Rows {
		for i, name := range names {
			v := row[name]
			if v == nil {
				record[i] = ""
				continue
			}
			record[i] = result.FormatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeJSON emits an array of objects whose keys follow column order.
func writeJSON(w io.Writer, res result.QueryResult) error {
	names := res.ColumnNames()
	var buf bytes.Buffer
	buf.WriteByte('[')
	for r, row := range res.Rows {
		if r > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for i, name := range names {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(name)
			if err != nil {
				return err
			}
			value, err := json.Marshal(jsonValue(row[name]))
			if err != nil {
				return fmt.Errorf("failed to marshal column %s: %w", name, err)
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(value)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case json.Number:
		if json.Valid([]byte(x)) {
			return x
		}
		return string(x)
	default:
		return v
	}
}

func writeYAML(w io.Writer, res result.QueryResult) error {
	names := res.ColumnNames()
	doc := &yaml.Node{Kind: yaml.SequenceNode}
	for _, row := range res.Rows {
		m := &yaml.Node{Kind: yaml.MappingNode}
		for _, name := range names {
			m.Content = append(m.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: name},
				yamlValue(row[name]),
			)
		}
		doc.Content = append(doc.Content, m)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	return enc.Close()
}

func yamlValue(v any) *yaml.Node {
	switch x := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: x.String()}
		}
		if _, err := x.Float64(); err == nil {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: x.String()}
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: x.String()}
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprint(x)}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: result.FormatValue(v)}
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// RenderTable draws res as a bordered text table. NULL shows as NULL.
func RenderTable(res result.QueryResult) string {
	names := res.ColumnNames()
	rows := make([][]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		cells := make([]string, len(names))
		for i, name := range names {
			cells[i] = result.FormatValue(row[name])
		}
		rows = append(rows, cells)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(names...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.Render()
}
