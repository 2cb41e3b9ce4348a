package result

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Column describes one result column. Type is empty when the source does
// not report it.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// Row maps column names to cell values. A nil value is SQL NULL, which is
// distinct from the empty string.
type Row map[string]any

// QueryResult is the canonical tabular form of any command reply.
type QueryResult struct {
	Columns       []Column      `json:"columns"`
	Rows          []Row         `json:"rows"`
	RowsAffected  *int64        `json:"rowsAffected,omitempty"`
	ExecutionTime time.Duration `json:"executionTime,omitempty"`
}

// ColumnNames returns the column names in order.
func (r QueryResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// Affected returns RowsAffected and whether it was set.
func (r QueryResult) Affected() (int64, bool) {
	if r.RowsAffected == nil {
		return 0, false
	}
	return *r.RowsAffected, true
}

// Cell returns the value at row i for the named column.
func (r QueryResult) Cell(i int, column string) any {
	if i < 0 || i >= len(r.Rows) {
		return nil
	}
	return r.Rows[i][column]
}

// FormatValue renders a cell value for display. NULL renders as "NULL".
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}

func affected(n int) *int64 {
	v := int64(n)
	return &v
}
