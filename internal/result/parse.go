package result

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Column names used by the single-column shapes.
const (
	ResultColumn       = "result"
	RowsAffectedColumn = "rows_affected"
)

// Parse converts a command reply of unknown shape into a QueryResult. It
// never fails: anything it cannot read as a table comes back as a single
// "result" cell.
//
// Accepted inputs are QueryResult values, strings (ASCII tables, JSON text
// or plain text), raw JSON ([]byte, json.RawMessage) and any other value
// that encoding/json can marshal.
func Parse(v any) (res QueryResult) {
	defer func() {
		if r := recover(); r != nil {
			res = fallback(v)
		}
	}()

	switch val := v.(type) {
	case QueryResult:
		return val
	case *QueryResult:
		if val != nil {
			return *val
		}
		return fallback(v)
	case string:
		return parseString(val)
	case json.RawMessage:
		return parseRaw(val)
	case []byte:
		return parseRaw(val)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fallback(v)
	}
	return parseRaw(data)
}

// parseRaw handles JSON produced by the server. A JSON string is unwrapped
// and parsed as text, since table output arrives that way.
func parseRaw(data []byte) QueryResult {
	text := strings.TrimSpace(string(data))
	if text == "" || !gjson.Valid(text) {
		return single(ResultColumn, string(data))
	}
	doc := gjson.Parse(text)
	if doc.Type == gjson.String {
		return parseString(doc.Str)
	}
	if res, ok := parseStructured(doc); ok {
		return res
	}
	return single(ResultColumn, compact(doc.Raw))
}

func parseString(s string) QueryResult {
	if IsASCIITable(s) {
		if res, err := ParseASCIITable(s); err == nil {
			return res
		}
	}

	trimmed := strings.TrimSpace(s)
	if !gjson.Valid(trimmed) {
		return single(ResultColumn, s)
	}
	// Text that is itself JSON: a quoted string is unwrapped once more.
	doc := gjson.Parse(trimmed)
	if doc.Type == gjson.String {
		return parseString(doc.Str)
	}
	if res, ok := parseStructured(doc); ok {
		return res
	}

	return single(ResultColumn, s)
}

// parseStructured recognises the JSON shapes the server emits:
// {columns, rows} with object or positional rows, a plain array of
// objects, and a {rows_affected} acknowledgement.
func parseStructured(doc gjson.Result) (QueryResult, bool) {
	if doc.IsObject() {
		columns, rows := doc.Get("columns"), doc.Get("rows")
		if columns.IsArray() && rows.IsArray() {
			return tabular(columns, rows), true
		}

		if n := doc.Get(RowsAffectedColumn); n.Type == gjson.Number {
			count := n.Int()
			return QueryResult{
				Columns:      []Column{{Name: RowsAffectedColumn}},
				Rows:         []Row{{RowsAffectedColumn: json.Number(n.Raw)}},
				RowsAffected: &count,
			}, true
		}
		return QueryResult{}, false
	}

	if doc.IsArray() {
		items := doc.Array()
		if len(items) == 0 || !items[0].IsObject() {
			return QueryResult{}, false
		}
		columns := objectKeys(items[0])
		rows := make([]Row, 0, len(items))
		for _, item := range items {
			if !item.IsObject() {
				continue
			}
			rows = append(rows, objectRow(item, columns))
		}
		return QueryResult{
			Columns:      columns,
			Rows:         rows,
			RowsAffected: affected(len(rows)),
		}, true
	}

	return QueryResult{}, false
}

func tabular(columnsDoc, rowsDoc gjson.Result) QueryResult {
	var columns []Column
	columnsDoc.ForEach(func(_, c gjson.Result) bool {
		switch {
		case c.IsObject():
			columns = append(columns, Column{Name: c.Get("name").String(), Type: c.Get("type").String()})
		default:
			columns = append(columns, Column{Name: c.String()})
		}
		return true
	})

	items := rowsDoc.Array()
	if len(columns) == 0 && len(items) > 0 && items[0].IsObject() {
		columns = objectKeys(items[0])
	}

	rows := make([]Row, 0, len(items))
	for _, item := range items {
		switch {
		case item.IsArray():
			rows = append(rows, positionalRow(item, columns))
		case item.IsObject():
			rows = append(rows, objectRow(item, columns))
		}
	}

	if columns == nil {
		columns = []Column{}
	}
	return QueryResult{
		Columns:      columns,
		Rows:         rows,
		RowsAffected: affected(len(rows)),
	}
}

func positionalRow(item gjson.Result, columns []Column) Row {
	values := item.Array()
	row := make(Row, len(columns))
	for i, col := range columns {
		if i >= len(values) {
			row[col.Name] = nil
			continue
		}
		v := cellValue(values[i])
		if s, ok := v.(string); ok && (s == "null" || s == "<nil>") {
			v = nil
		}
		row[col.Name] = v
	}
	return row
}

// objectRow copies every key of item and fills missing columns with nil.
func objectRow(item gjson.Result, columns []Column) Row {
	row := make(Row, len(columns))
	item.ForEach(func(k, v gjson.Result) bool {
		row[k.String()] = cellValue(v)
		return true
	})
	for _, col := range columns {
		if _, ok := row[col.Name]; !ok {
			row[col.Name] = nil
		}
	}
	return row
}

// objectKeys returns the keys of a JSON object in document order.
func objectKeys(obj gjson.Result) []Column {
	var columns []Column
	obj.ForEach(func(k, _ gjson.Result) bool {
		columns = append(columns, Column{Name: k.String()})
		return true
	})
	return columns
}

func cellValue(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.Number:
		return json.Number(v.Raw)
	case gjson.String:
		return v.Str
	default:
		return compact(v.Raw)
	}
}

func single(column string, value any) QueryResult {
	return QueryResult{
		Columns: []Column{{Name: column}},
		Rows:    []Row{{column: value}},
	}
}

// fallback wraps the JSON form of v, or its fmt form, in a "result" cell.
func fallback(v any) QueryResult {
	data, err := json.Marshal(v)
	if err != nil {
		return single(ResultColumn, fmt.Sprintf("%v", v))
	}
	return single(ResultColumn, string(data))
}

func compact(raw string) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(raw)); err != nil {
		return raw
	}
	return buf.String()
}
