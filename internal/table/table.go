// Package table implements the in-memory tabular structure passed between
// pipeline stages: named columns and an ordered sequence of rows.
//
// Cell values are one of: nil (null), string, float64, or time.Time. Row order
// is significant — gap filling depends on the stable order rows arrived in —
// so no operation reorders rows. Transformations never mutate a table in
// place; every derived table is a fresh value, which keeps validated inputs
// intact and makes single-run data flow trivially race-free.
package table

import (
	"fmt"
	"strconv"
	"time"

	"github.com/zeebo/xxh3"
)

// Table is a column-named, row-ordered data table.
type Table struct {
	cols  []string
	index map[string]int
	rows  [][]any
}

// New returns an empty table with the given column names.
// Duplicate column names are rejected.
func New(cols ...string) (*Table, error) {
	idx := make(map[string]int, len(cols))
	for i, c := range cols {
		if c == "" {
			return nil, fmt.Errorf("table: column %d has empty name", i)
		}
		if _, dup := idx[c]; dup {
			return nil, fmt.Errorf("table: duplicate column %q", c)
		}
		idx[c] = i
	}
	return &Table{cols: append([]string(nil), cols...), index: idx}, nil
}

// MustNew is New for fixed column sets known at compile time (tests, fixtures).
func MustNew(cols ...string) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// AppendRow appends a row. The value count must match the column count.
func (t *Table) AppendRow(vals ...any) error {
	if len(vals) != len(t.cols) {
		return fmt.Errorf("table: row has %d values, want %d", len(vals), len(t.cols))
	}
	t.rows = append(t.rows, append([]any(nil), vals...))
	return nil
}

// MustAppendRow is AppendRow for fixture construction.
func (t *Table) MustAppendRow(vals ...any) {
	if err := t.AppendRow(vals...); err != nil {
		panic(err)
	}
}

// Columns returns the column names in declaration order.
func (t *Table) Columns() []string { return append([]string(nil), t.cols...) }

// NumRows returns the number of rows.
func (t *Table) NumRows() int { return len(t.rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.cols) }

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Value returns the cell at (row, column name). It returns an error for an
// unknown column or an out-of-range row rather than panicking, since column
// sets are config-driven.
func (t *Table) Value(row int, col string) (any, error) {
	i, ok := t.index[col]
	if !ok {
		return nil, fmt.Errorf("table: unknown column %q", col)
	}
	if row < 0 || row >= len(t.rows) {
		return nil, fmt.Errorf("table: row %d out of range (rows=%d)", row, len(t.rows))
	}
	return t.rows[row][i], nil
}

// Set replaces the cell at (row, column name). Callers only set cells on
// tables they own exclusively (a fresh Clone); shared tables are never
// written.
func (t *Table) Set(row int, col string, v any) error {
	i, ok := t.index[col]
	if !ok {
		return fmt.Errorf("table: unknown column %q", col)
	}
	if row < 0 || row >= len(t.rows) {
		return fmt.Errorf("table: row %d out of range (rows=%d)", row, len(t.rows))
	}
	t.rows[row][i] = v
	return nil
}

// Row returns a copy of the row at i.
func (t *Table) Row(i int) []any {
	return append([]any(nil), t.rows[i]...)
}

// IsNull reports whether v counts as missing. Empty strings are treated the
// same as nil: the public extracts use "" for absent cells.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// NullCount returns the number of null cells in the named column.
func (t *Table) NullCount(col string) (int, error) {
	i, ok := t.index[col]
	if !ok {
		return 0, fmt.Errorf("table: unknown column %q", col)
	}
	n := 0
	for _, r := range t.rows {
		if IsNull(r[i]) {
			n++
		}
	}
	return n, nil
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := &Table{
		cols:  append([]string(nil), t.cols...),
		index: make(map[string]int, len(t.index)),
		rows:  make([][]any, len(t.rows)),
	}
	for k, v := range t.index {
		out.index[k] = v
	}
	for i, r := range t.rows {
		out.rows[i] = append([]any(nil), r...)
	}
	return out
}

// WithColumn returns a copy of the table with an extra column appended, its
// cells produced by fn(row index).
func (t *Table) WithColumn(name string, fn func(row int) any) (*Table, error) {
	if t.HasColumn(name) {
		return nil, fmt.Errorf("table: column %q already exists", name)
	}
	out, err := New(append(t.Columns(), name)...)
	if err != nil {
		return nil, err
	}
	for i, r := range t.rows {
		row := append(append([]any(nil), r...), fn(i))
		out.rows = append(out.rows, row)
	}
	return out, nil
}

// Select returns a copy containing only the named columns, in the given order.
func (t *Table) Select(cols ...string) (*Table, error) {
	src := make([]int, len(cols))
	for i, c := range cols {
		j, ok := t.index[c]
		if !ok {
			return nil, fmt.Errorf("table: unknown column %q", c)
		}
		src[i] = j
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	for _, r := range t.rows {
		row := make([]any, len(src))
		for i, j := range src {
			row[i] = r[j]
		}
		out.rows = append(out.rows, row)
	}
	return out, nil
}

// Rename returns a copy with columns renamed per the mapping. Names absent
// from the mapping are kept. Renaming to an existing name is an error.
func (t *Table) Rename(mapping map[string]string) (*Table, error) {
	cols := make([]string, len(t.cols))
	for i, c := range t.cols {
		if n, ok := mapping[c]; ok {
			cols[i] = n
		} else {
			cols[i] = c
		}
	}
	out, err := New(cols...)
	if err != nil {
		return nil, err
	}
	for _, r := range t.rows {
		out.rows = append(out.rows, append([]any(nil), r...))
	}
	return out, nil
}

// cellString renders a cell into the canonical string form used for
// fingerprinting and delimited output.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return x.Format(time.RFC3339)
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(x)
	}
}

// CellString renders a single cell for output writers.
func CellString(v any) string { return cellString(v) }

// Fingerprint returns a deterministic 64-bit digest of the table contents:
// column names, then every cell in row order. Two runs over identical inputs
// and rules produce identical fingerprints, which downstream consumers use as
// a cheap reproducibility check.
func (t *Table) Fingerprint() uint64 {
	h := xxh3.New()
	for _, c := range t.cols {
		_, _ = h.WriteString(c)
		_, _ = h.WriteString("\x1f")
	}
	_, _ = h.WriteString("\x1e")
	for _, r := range t.rows {
		for _, v := range r {
			_, _ = h.WriteString(cellString(v))
			_, _ = h.WriteString("\x1f")
		}
		_, _ = h.WriteString("\x1e")
	}
	return h.Sum64()
}
