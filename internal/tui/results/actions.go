package results

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/joacominatel/sqlbridge/internal/export"
	"github.com/joacominatel/sqlbridge/internal/result"
)

// clipboardWrite is swapped in tests.
var clipboardWrite = clipboard.WriteAll

func (m Model) currentRow() (result.Row, bool) {
	if m.result == nil || m.cursorY < 0 || m.cursorY >= len(m.result.Rows) {
		return nil, false
	}
	return m.result.Rows[m.cursorY], true
}

func (m Model) columnName() string {
	if m.result == nil || m.cursorX < 0 || m.cursorX >= len(m.result.Columns) {
		return ""
	}
	return m.result.Columns[m.cursorX].Name
}

func (m Model) cellValue() (any, bool) {
	row, ok := m.currentRow()
	col := m.columnName()
	if !ok || col == "" {
		return nil, false
	}
	return row[col], true
}

// --- Copy ---

func (m *Model) copy(text, what string) {
	if err := clipboardWrite(text); err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.statusMessage = "Copied " + what
}

func (m *Model) doCopyCell() {
	v, ok := m.cellValue()
	if !ok {
		m.statusMessage = "Nothing to copy"
		return
	}
	s := result.FormatValue(v)
	m.copy(s, truncateStatus(s, 40))
}

func (m *Model) doCopyRowJSON() {
	row, ok := m.currentRow()
	if !ok {
		m.statusMessage = "No row to copy"
		return
	}
	m.copy(rowToJSON(m.result.Columns, row), "row as JSON")
}

func (m *Model) doCopyRowCSV() {
	row, ok := m.currentRow()
	if !ok {
		m.statusMessage = "No row to copy"
		return
	}
	single := result.QueryResult{Columns: m.result.Columns, Rows: []result.Row{row}}
	var b strings.Builder
	if err := export.Write(&b, single, export.CSV); err != nil {
		m.statusMessage = "Copy failed: " + err.Error()
		return
	}
	m.copy(b.String(), "row as CSV")
}

// --- Filter ---

func (m *Model) doFilterByValue() tea.Cmd {
	v, ok := m.cellValue()
	if !ok {
		m.statusMessage = "Cannot filter: no cell selected"
		return nil
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s",
		extractTableName(m.lastQuery), condition(m.columnName(), v))

	return func() tea.Msg {
		return SetEditorQueryMsg{Query: query}
	}
}

// --- Delete ---

func (m *Model) doGenerateDelete() tea.Cmd {
	row, ok := m.currentRow()
	if !ok {
		return nil
	}

	conditions := make([]string, 0, len(m.result.Columns))
	for _, col := range m.result.Columns {
		conditions = append(conditions, condition(col.Name, row[col.Name]))
	}

	// sent to the editor for review, deletes never run on their own
	query := fmt.Sprintf("-- review before executing!\nDELETE FROM %s WHERE %s",
		extractTableName(m.lastQuery), strings.Join(conditions, " AND "))

	return func() tea.Msg {
		return SetEditorQueryMsg{Query: query}
	}
}

// --- Export ---

func (m Model) exportCmd(ext string) tea.Cmd {
	if m.result == nil {
		return nil
	}
	res := *m.result
	dir := m.exportDir
	return func() tea.Msg {
		name := fmt.Sprintf("sqlbridge_export_%s.%s", time.Now().Format("20060102_150405"), ext)
		path := filepath.Join(dir, name)
		if err := export.WriteFile(path, res); err != nil {
			return StatusNotifyMsg{Message: "Export failed: " + err.Error(), Err: true}
		}
		return StatusNotifyMsg{Message: fmt.Sprintf("Exported %d rows to %s", len(res.Rows), path)}
	}
}

// --- Helpers ---

func condition(column string, v any) string {
	if v == nil {
		return column + " IS NULL"
	}
	escaped := strings.ReplaceAll(result.FormatValue(v), "'", "''")
	return fmt.Sprintf("%s = '%s'", column, escaped)
}

func extractTableName(query string) string {
	tokens := strings.Fields(query)
	for i, tok := range tokens {
		switch strings.ToUpper(tok) {
		case "FROM", "INTO", "UPDATE":
			if i+1 < len(tokens) {
				if name := strings.TrimRight(tokens[i+1], ";,()"); name != "" {
					return name
				}
			}
		}
	}
	return "<table>"
}

// rowToJSON keeps column order, which map marshaling would not.
func rowToJSON(columns []result.Column, row result.Row) string {
	var b strings.Builder
	b.WriteString("{")
	for i, col := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		key, _ := json.Marshal(col.Name)
		b.Write(key)
		b.WriteString(": ")
		val, err := json.Marshal(row[col.Name])
		if err != nil {
			val, _ = json.Marshal(result.FormatValue(row[col.Name]))
		}
		b.Write(val)
	}
	b.WriteString("}")
	return b.String()
}

func truncateStatus(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
