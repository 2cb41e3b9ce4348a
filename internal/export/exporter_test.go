package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joacominatel/sqlbridge/internal/result"
	"gopkg.in/yaml.v3"
)

func sampleResult() result.QueryResult {
	return result.QueryResult{
		Columns: []result.Column{{Name: "name"}, {Name: "id"}, {Name: "note"}},
		Rows: []result.Row{
			{"id": json.Number("1"), "name": "Alice, \"A\"", "note": nil},
			{"id": json.Number("2"), "name": "Bob", "note": "ok"},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleResult(), CSV); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV back: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if strings.Join(records[0], ",") != "name,id,note" {
		t.Errorf("Unexpected header %v", records[0])
	}
	if records[1][0] != "Alice, \"A\"" || records[1][1] != "1" || records[1][2] != "" {
		t.Errorf("Unexpected first row %v", records[1])
	}
}

func TestWriteJSONKeepsColumnOrder(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleResult(), JSON); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	out := buf.String()

	if !(strings.Index(out, `"name"`) < strings.Index(out, `"id"`) && strings.Index(out, `"id"`) < strings.Index(out, `"note"`)) {
		t.Errorf("Expected column order name, id, note:\n%s", out)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if decoded[0]["note"] != nil || decoded[0]["id"] != float64(1) {
		t.Errorf("Unexpected first object %v", decoded[0])
	}
}

func TestWriteYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, sampleResult(), YAML); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var decoded []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not valid YAML: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(decoded))
	}
	if decoded[0]["note"] != nil || decoded[0]["id"] != 1 || decoded[1]["note"] != "ok" {
		t.Errorf("Unexpected rows %v", decoded)
	}
	if strings.Index(buf.String(), "name:") > strings.Index(buf.String(), "id:") {
		t.Errorf("Expected name before id:\n%s", buf.String())
	}
}

func TestRenderTable(t *testing.T) {
	out := RenderTable(sampleResult())
	for _, want := range []string{"name", "Bob", "NULL"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in table:\n%s", want, out)
		}
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "out.csv")
	if err := WriteFile(path, sampleResult()); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "name,id,note") {
		t.Errorf("Unexpected CSV content %q", data)
	}

	if err := WriteFile(filepath.Join(dir, "out.xlsx"), sampleResult()); err == nil {
		t.Error("Expected error for unknown extension")
	}
	if err := WriteFile(filepath.Join(dir, "noext"), sampleResult()); err == nil {
		t.Error("Expected error without extension")
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"CSV": CSV, "yml": YAML, "txt": Table, "json": JSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
}
