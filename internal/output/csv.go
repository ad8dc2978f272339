package output

import (
	"encoding/csv"
	"fmt"
	"os"

	"wellnorm/internal/table"
)

// WriteCSV writes t with a header row, keeping the original column names.
// Nulls render as empty cells.
func WriteCSV(t *table.Table, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns()); err != nil {
		return fmt.Errorf("output: write csv header: %w", err)
	}

	cols := t.Columns()
	rec := make([]string, len(cols))
	for i := 0; i < t.NumRows(); i++ {
		for j, c := range cols {
			v, err := t.Value(i, c)
			if err != nil {
				return err
			}
			rec[j] = table.CellString(v)
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("output: write csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("output: flush csv: %w", err)
	}
	return f.Close()
}
