// Package output writes the normalized well table to its artifacts: a
// parquet file as the primary format, a CSV copy, and a quality metrics JSON.
// Artifacts can optionally be uploaded to an S3-compatible object store.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	writerfile "github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"wellnorm/internal/table"
)

// Canonical artifact names.
const (
	ParquetFile = "normalized_wells_ab.parquet"
	CSVFile     = "normalized_wells_ab.csv"
	QualityFile = "quality_metrics.json"
	ReportFile  = "run_report.json"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9]+`)

// WriteParquet writes t as a SNAPPY-compressed parquet file. Column names are
// sanitized to identifier form ("Latest Month OIL Production Volume" becomes
// "Latest_Month_OIL_Production_Volume"); every column is OPTIONAL so nulls
// survive the round trip.
func WriteParquet(t *table.Table, path string) error {
	names := parquetNames(t.Columns())

	buf := &bytes.Buffer{}
	pfw := writerfile.NewWriterFile(buf)
	pw, err := writer.NewJSONWriter(parquetSchema(t, names), pfw, 4)
	if err != nil {
		return fmt.Errorf("output: open parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	cols := t.Columns()
	for i := 0; i < t.NumRows(); i++ {
		row := make(map[string]any, len(cols))
		for j, c := range cols {
			v, err := t.Value(i, c)
			if err != nil {
				return err
			}
			row[names[j]] = parquetValue(v)
		}
		b, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("output: encode parquet row %d: %w", i, err)
		}
		if err := pw.Write(string(b)); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("output: write parquet row %d: %w", i, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("output: finish parquet: %w", err)
	}
	if err := pfw.Close(); err != nil {
		return fmt.Errorf("output: close parquet buffer: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}

// parquetNames maps table columns to unique parquet-safe names.
func parquetNames(cols []string) []string {
	names := make([]string, len(cols))
	seen := map[string]int{}
	for i, c := range cols {
		n := unsafeChars.ReplaceAllString(c, "_")
		if n == "" || n == "_" {
			n = fmt.Sprintf("col_%d", i)
		}
		if k := seen[n]; k > 0 {
			seen[n] = k + 1
			n = fmt.Sprintf("%s_%d", n, k+1)
		}
		seen[n]++
		names[i] = n
	}
	return names
}

// parquetSchema builds the dynamic JSON schema definition for t. The physical
// type per column follows the first non-null cell; all-null columns fall back
// to strings.
func parquetSchema(t *table.Table, names []string) string {
	fields := make([]map[string]string, 0, t.NumCols())
	for i, c := range t.Columns() {
		fields = append(fields, map[string]string{
			"Tag": fmt.Sprintf("name=%s, type=%s, repetitiontype=OPTIONAL", names[i], parquetType(t, c)),
		})
	}
	out := map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func parquetType(t *table.Table, col string) string {
	for i := 0; i < t.NumRows(); i++ {
		v, _ := t.Value(i, col)
		if table.IsNull(v) {
			continue
		}
		switch v.(type) {
		case float64:
			return "DOUBLE"
		case bool:
			return "BOOLEAN"
		default:
			return "BYTE_ARRAY, convertedtype=UTF8"
		}
	}
	return "BYTE_ARRAY, convertedtype=UTF8"
}

// parquetValue maps a cell to its JSON row representation. Dates serialize as
// RFC 3339 strings; nulls stay null.
func parquetValue(v any) any {
	if table.IsNull(v) {
		return nil
	}
	switch x := v.(type) {
	case float64, bool:
		return x
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return table.CellString(x)
	}
}
