package result

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestParseASCIITable(t *testing.T) {
	input := "+----+------+\n| ID | NAME |\n+----+------+\n|  1 | aaa  |\n+----+------+\n1 rows in set\n"

	res, err := ParseASCIITable(input)
	if err != nil {
		t.Fatalf("ParseASCIITable failed: %v", err)
	}

	wantCols := []Column{{Name: "ID"}, {Name: "NAME"}}
	if !reflect.DeepEqual(res.Columns, wantCols) {
		t.Errorf("Expected columns %v, got %v", wantCols, res.Columns)
	}

	wantRows := []Row{{"ID": "1", "NAME": "aaa"}}
	if !reflect.DeepEqual(res.Rows, wantRows) {
		t.Errorf("Expected rows %v, got %v", wantRows, res.Rows)
	}

	if n, ok := res.Affected(); !ok || n != 1 {
		t.Errorf("Expected rowsAffected 1, got %d (set=%v)", n, ok)
	}
}

func TestParseASCIITableNulls(t *testing.T) {
	input := "+----+-------+------+\n" +
		"| id | name  | note |\n" +
		"+----+-------+------+\n" +
		"|  1 | <nil> | NULL |\n" +
		"|  2 |       | x    |\n" +
		"+----+-------+------+\n"

	res, err := ParseASCIITable(input)
	if err != nil {
		t.Fatalf("ParseASCIITable failed: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(res.Rows))
	}

	first := res.Rows[0]
	for _, col := range []string{"name", "note"} {
		v, ok := first[col]
		if !ok {
			t.Errorf("Row is missing key %q", col)
		}
		if v != nil {
			t.Errorf("Expected %q to be nil, got %#v", col, v)
		}
	}
	if res.Rows[1]["name"] != nil {
		t.Errorf("Expected empty cell to be nil, got %#v", res.Rows[1]["name"])
	}
	if res.Rows[1]["note"] != "x" {
		t.Errorf("Expected note 'x', got %#v", res.Rows[1]["note"])
	}
}

func TestParseASCIITableDropsMismatchedRows(t *testing.T) {
	input := "+----+------+\n" +
		"| ID | NAME |\n" +
		"+----+------+\n" +
		"|  1 | a|b  |\n" +
		"|  2 | bbb  |\n" +
		"+----+------+\n" +
		"2 rows in set\n" +
		"|  3 | ccc  |\n"

	res, err := ParseASCIITable(input)
	if err != nil {
		t.Fatalf("ParseASCIITable failed: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("Expected 1 row, got %d: %v", len(res.Rows), res.Rows)
	}
	if res.Rows[0]["ID"] != "2" {
		t.Errorf("Expected row ID 2, got %#v", res.Rows[0]["ID"])
	}
}

func TestParseASCIITableErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"plain text", "hello world", ErrNotTable},
		{"no header", "+--+\n| 1 |\n+--+\n", ErrNoColumnsFound},
		{"only borders", "+--+--+\n+--+--+\n|", ErrNoColumnsFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseASCIITable(tt.input)
			if err != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParsePositionalRows(t *testing.T) {
	input := map[string]any{
		"columns": []string{"id", "name"},
		"rows": [][]any{
			{1, "Alice"},
			{2, "Bob"},
		},
	}

	res := Parse(input)

	want := []Row{
		{"id": json.Number("1"), "name": "Alice"},
		{"id": json.Number("2"), "name": "Bob"},
	}
	if !reflect.DeepEqual(res.Rows, want) {
		t.Errorf("Expected rows %v, got %v", want, res.Rows)
	}
	if n, ok := res.Affected(); !ok || n != 2 {
		t.Errorf("Expected rowsAffected 2, got %d", n)
	}
}

func TestParsePositionalNullSentinels(t *testing.T) {
	raw := json.RawMessage(`{"columns":["a","b","c","d"],"rows":[["null",null,"<nil>"]]}`)

	res := Parse(raw)
	if len(res.Rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(res.Rows))
	}
	for _, col := range []string{"a", "b", "c", "d"} {
		v, ok := res.Rows[0][col]
		if !ok || v != nil {
			t.Errorf("Expected %q to be a nil key, got %#v (present=%v)", col, v, ok)
		}
	}
}

func TestParseRowsAffected(t *testing.T) {
	res := Parse(map[string]any{"rows_affected": 3})

	if len(res.Columns) != 1 || res.Columns[0].Name != "rows_affected" {
		t.Fatalf("Expected single rows_affected column, got %v", res.Columns)
	}
	if len(res.Rows) != 1 || res.Rows[0]["rows_affected"] != json.Number("3") {
		t.Errorf("Expected one row with 3, got %v", res.Rows)
	}
	if n, ok := res.Affected(); !ok || n != 3 {
		t.Errorf("Expected rowsAffected 3, got %d", n)
	}
}

func TestParseArrayOfObjects(t *testing.T) {
	raw := json.RawMessage(`[{"zeta":1,"alpha":"x"},{"alpha":"y"}]`)

	res := Parse(raw)

	wantCols := []Column{{Name: "zeta"}, {Name: "alpha"}}
	if !reflect.DeepEqual(res.Columns, wantCols) {
		t.Errorf("Expected document key order %v, got %v", wantCols, res.Columns)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(res.Rows))
	}
	if v, ok := res.Rows[1]["zeta"]; !ok || v != nil {
		t.Errorf("Expected missing zeta to normalize to nil, got %#v (present=%v)", v, ok)
	}
	if n, _ := res.Affected(); n != 2 {
		t.Errorf("Expected rowsAffected 2, got %d", n)
	}
}

func TestParseObjectRowsFastPath(t *testing.T) {
	raw := json.RawMessage(`{"columns":[{"name":"id","type":"INT"},"name"],"rows":[{"id":7,"name":"x"}]}`)

	res := Parse(raw)

	wantCols := []Column{{Name: "id", Type: "INT"}, {Name: "name"}}
	if !reflect.DeepEqual(res.Columns, wantCols) {
		t.Errorf("Expected columns %v, got %v", wantCols, res.Columns)
	}
	if res.Rows[0]["id"] != json.Number("7") {
		t.Errorf("Expected id 7, got %#v", res.Rows[0]["id"])
	}
}

func TestParseIdentity(t *testing.T) {
	n := int64(1)
	in := QueryResult{
		Columns:      []Column{{Name: "a"}},
		Rows:         []Row{{"a": nil}},
		RowsAffected: &n,
	}

	if got := Parse(in); !reflect.DeepEqual(got, in) {
		t.Errorf("Expected identity, got %v", got)
	}
	if got := Parse(&in); !reflect.DeepEqual(got, in) {
		t.Errorf("Expected identity through pointer, got %v", got)
	}
}

func TestParseStrings(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"plain text", "Query OK", "Query OK"},
		{"broken json", `{"columns": [`, `{"columns": [`},
		{"json string reply", json.RawMessage(`"done"`), "done"},
		{"quoted text", `"hello"`, "hello"},
		{"doubly quoted text", `"\"hello\""`, "hello"},
		{"json scalar text", " 42 ", " 42 "},
		{"number", 42, "42"},
		{"nil", nil, "null"},
		{"unknown object", map[string]any{"ok": true}, `{"ok":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.input)
			if len(res.Columns) != 1 || res.Columns[0].Name != ResultColumn {
				t.Fatalf("Expected single result column, got %v", res.Columns)
			}
			if got := res.Rows[0][ResultColumn]; got != tt.want {
				t.Errorf("Expected %#v, got %#v", tt.want, got)
			}
		})
	}
}

func TestParseTableInsideJSONString(t *testing.T) {
	table := "+---+\n| n |\n+---+\n| 5 |\n+---+\n"
	data, _ := json.Marshal(table)

	res := Parse(json.RawMessage(data))
	if len(res.Rows) != 1 || res.Rows[0]["n"] != "5" {
		t.Errorf("Expected table parsed from JSON string, got %v", res)
	}
}

func TestParseTableInsideQuotedText(t *testing.T) {
	table := "+---+\n| n |\n+---+\n| 5 |\n+---+\n"
	data, _ := json.Marshal(table)

	res := Parse(string(data))
	if len(res.Rows) != 1 || res.Rows[0]["n"] != "5" {
		t.Errorf("Expected table parsed from quoted text, got %v", res)
	}
}

func TestParseUnmarshalableValue(t *testing.T) {
	res := Parse(make(chan int))
	if len(res.Rows) != 1 {
		t.Fatalf("Expected fallback row, got %v", res)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{"", ""},
		{json.Number("12.50"), "12.50"},
		{true, "true"},
		{int64(9), "9"},
		{map[string]int{"a": 1}, `{"a":1}`},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%#v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func FuzzParse(f *testing.F) {
	f.Add("+----+\n| ID |\n+----+\n| 1 |\n+----+\n")
	f.Add(`{"columns":["a"],"rows":[[1],[2,3],"x"]}`)
	f.Add(`[{"a":1},2,{"b":[1,2]}]`)
	f.Add(`{"rows_affected": "x"}`)
	f.Add("+--|\n|")
	f.Add("")

	f.Fuzz(func(t *testing.T, s string) {
		res := Parse(s)
		for _, row := range res.Rows {
			for _, col := range res.Columns {
				if _, ok := row[col.Name]; !ok {
					t.Fatalf("row %v missing column %q", row, col.Name)
				}
			}
		}
		_ = Parse(json.RawMessage(s))
		_ = Parse([]byte(s))
	})
}
