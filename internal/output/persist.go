package output

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"wellnorm/internal/metrics"
	"wellnorm/internal/pipeline"
	"wellnorm/internal/table"
)

// Persist writes every artifact for one run into dir: the parquet table, the
// CSV copy, the quality metrics, and the run report. When up is non-nil the
// artifacts are then uploaded. Returns the paths (or object URLs) written.
func Persist(ctx context.Context, job string, t *table.Table, report *pipeline.Report, dir string, up *Uploader) ([]string, error) {
	start := time.Now()
	written, err := persist(ctx, t, report, dir, up)
	metrics.RecordStage(job, "persist", err, time.Since(start))
	if err == nil {
		metrics.RecordRows(job, "persisted", int64(t.NumRows()))
	}
	return written, err
}

func persist(ctx context.Context, t *table.Table, report *pipeline.Report, dir string, up *Uploader) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("output: create %s: %w", dir, err)
	}

	paths := []string{
		filepath.Join(dir, ParquetFile),
		filepath.Join(dir, CSVFile),
		filepath.Join(dir, QualityFile),
		filepath.Join(dir, ReportFile),
	}

	if err := WriteParquet(t, paths[0]); err != nil {
		return nil, err
	}
	if err := WriteCSV(t, paths[1]); err != nil {
		return nil, err
	}

	quality := AnalyzeQuality(t)
	if err := WriteQuality(quality, paths[2]); err != nil {
		return nil, err
	}
	log.Printf("quality: oil=%d gas=%d production=%d",
		quality.RowsWithOil, quality.RowsWithGas, quality.RowsWithProduction)

	if err := writeReport(report, paths[3]); err != nil {
		return nil, err
	}

	written := append([]string(nil), paths...)
	if up != nil {
		for _, p := range paths {
			url, err := up.Upload(ctx, p)
			if err != nil {
				return written, err
			}
			written = append(written, url)
		}
	}
	return written, nil
}

func writeReport(report *pipeline.Report, path string) error {
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("output: encode run report: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}
	return nil
}
