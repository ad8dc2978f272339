package output

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"wellnorm/internal/table"
)

// Quality summarizes production coverage in the final table, sliced by the
// well's operational mode and licence status when those columns are present.
type Quality struct {
	RowsWithOil        int `json:"rows_with_oil"`
	RowsWithGas        int `json:"rows_with_gas"`
	RowsWithProduction int `json:"rows_with_production"`

	ProductionByMode          map[string]int `json:"production_by_mode,omitempty"`
	ProductionByLicenceStatus map[string]int `json:"production_by_licence_status,omitempty"`
}

// AnalyzeQuality computes coverage counts. Columns are located by name shape
// rather than exact match, since joined column names carry source suffixes. A
// table without volume columns yields zero metrics rather than an error.
func AnalyzeQuality(t *table.Table) Quality {
	var q Quality

	oilCol := findColumn(t, "oil", "vol")
	gasCol := findColumn(t, "gas", "vol")
	if oilCol == "" || gasCol == "" {
		return q
	}
	modeCol := findColumn(t, "mode")
	statusCol := findColumn(t, "licen", "status")

	if modeCol != "" {
		q.ProductionByMode = map[string]int{}
	}
	if statusCol != "" {
		q.ProductionByLicenceStatus = map[string]int{}
	}

	for i := 0; i < t.NumRows(); i++ {
		oil := positiveVolume(t, i, oilCol)
		gas := positiveVolume(t, i, gasCol)
		if oil {
			q.RowsWithOil++
		}
		if gas {
			q.RowsWithGas++
		}
		if !oil && !gas {
			continue
		}
		q.RowsWithProduction++
		if modeCol != "" {
			v, _ := t.Value(i, modeCol)
			q.ProductionByMode[table.CellString(v)]++
		}
		if statusCol != "" {
			v, _ := t.Value(i, statusCol)
			q.ProductionByLicenceStatus[table.CellString(v)]++
		}
	}
	return q
}

// WriteQuality writes the metrics as indented JSON.
func WriteQuality(q Quality, path string) error {
	b, err := json.MarshalIndent(q, "", "  ")
	if err != nil {
		return fmt.Errorf("output: encode quality metrics: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

// findColumn returns the first column whose lowercased name contains every
// fragment, or "".
func findColumn(t *table.Table, fragments ...string) string {
	for _, c := range t.Columns() {
		lc := strings.ToLower(c)
		all := true
		for _, f := range fragments {
			if !strings.Contains(lc, f) {
				all = false
				break
			}
		}
		if all {
			return c
		}
	}
	return ""
}

func positiveVolume(t *table.Table, row int, col string) bool {
	v, _ := t.Value(row, col)
	f, ok := v.(float64)
	return ok && f > 0
}
