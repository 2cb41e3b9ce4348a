package result

import (
	"errors"
	"strings"
	"unicode"
)

var (
	// ErrNotTable means the text has no ASCII table markers.
	ErrNotTable = errors.New("not an ascii table")

	// ErrNoColumnsFound means no usable header line was found.
	ErrNoColumnsFound = errors.New("no columns found in ascii table")
)

const (
	columnSeparator = "|"
	borderPrefix    = "+"
)

// IsASCIITable reports whether s carries the markers of a bordered text
// table: a border (+-- or +==), a pipe separator and at least one newline.
func IsASCIITable(s string) bool {
	hasBorder := strings.Contains(s, "+--") || strings.Contains(s, "+==")
	return hasBorder && strings.Contains(s, columnSeparator) && strings.Contains(s, "\n")
}

// ParseASCIITable parses a bordered text table such as
//
//	+----+------+
//	| ID | NAME |
//	+----+------+
//	|  1 | aaa  |
//	+----+------+
//	1 rows in set
//
// Rows whose field count differs from the header are dropped. The cells
// <nil>, NULL and the empty string become nil.
func ParseASCIITable(s string) (QueryResult, error) {
	if !IsASCIITable(s) {
		return QueryResult{}, ErrNotTable
	}

	lines := strings.Split(s, "\n")

	header := -1
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, columnSeparator) && strings.IndexFunc(line, unicode.IsLetter) >= 0 {
			header = i
			break
		}
	}
	if header < 0 {
		return QueryResult{}, ErrNoColumnsFound
	}

	names := splitFields(strings.TrimSpace(lines[header]))
	found := false
	for _, name := range names {
		if name != "" {
			found = true
			break
		}
	}
	if !found {
		return QueryResult{}, ErrNoColumnsFound
	}

	columns := make([]Column, len(names))
	for i, name := range names {
		columns[i] = Column{Name: name}
	}

	rows := make([]Row, 0)
	for _, line := range lines[header+1:] {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, borderPrefix) {
			continue
		}
		if !strings.HasPrefix(line, columnSeparator) {
			// footer such as "N rows in set"
			break
		}

		cells := splitFields(line)
		if len(cells) != len(columns) {
			continue
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			row[col.Name] = nullCell(cells[i])
		}
		rows = append(rows, row)
	}

	return QueryResult{
		Columns:      columns,
		Rows:         rows,
		RowsAffected: affected(len(rows)),
	}, nil
}

// splitFields splits a table line on the separator, drops the empty fields
// produced by the outer border and trims each field.
func splitFields(line string) []string {
	fields := strings.Split(line, columnSeparator)
	if len(fields) > 0 && strings.TrimSpace(fields[0]) == "" {
		fields = fields[1:]
	}
	if len(fields) > 0 && strings.TrimSpace(fields[len(fields)-1]) == "" {
		fields = fields[:len(fields)-1]
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields
}

func nullCell(cell string) any {
	switch cell {
	case "", "NULL", "<nil>":
		return nil
	}
	return cell
}
