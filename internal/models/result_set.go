// internal/models/result_set.go
package models

// ResultSet is a fully materialized query result. Columns follow the cursor
// order and every row has len(Columns) values.
type ResultSet struct {
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

func (r *ResultSet) RowCount() int {
	if r == nil {
		return 0
	}
	return len(r.Rows)
}

// ColumnIndex returns the position of name, or -1.
func (r *ResultSet) ColumnIndex(name string) int {
	for i, c := range r.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns the values of one column in row order.
func (r *ResultSet) Column(name string) ([]interface{}, bool) {
	idx := r.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]interface{}, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = row[idx]
	}
	return out, true
}

// Head returns at most n rows.
func (r *ResultSet) Head(n int) [][]interface{} {
	if r == nil {
		return nil
	}
	if n < 0 || n >= len(r.Rows) {
		return r.Rows
	}
	return r.Rows[:n]
}

// Records converts the rows into column-keyed maps.
func (r *ResultSet) Records(n int) []map[string]interface{} {
	rows := r.Head(n)
	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		rec := make(map[string]interface{}, len(r.Columns))
		for j, c := range r.Columns {
			rec[c] = row[j]
		}
		out[i] = rec
	}
	return out
}
