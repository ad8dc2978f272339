// This file wires one normalization run end-to-end: fetch the three extracts
// concurrently, unpack and parse them, standardize identifiers, run the core
// normalization, and persist the artifacts. It keeps the CLI layer thin: the
// only backend-specific import is the blank storage registration in main.go.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"wellnorm/internal/archive"
	"wellnorm/internal/config"
	"wellnorm/internal/datasource"
	"wellnorm/internal/datasource/file"
	"wellnorm/internal/datasource/httpds"
	"wellnorm/internal/datasource/period"
	"wellnorm/internal/metrics"
	"wellnorm/internal/output"
	csvparser "wellnorm/internal/parser/csv"
	"wellnorm/internal/pipeline"
	"wellnorm/internal/storage"
	"wellnorm/internal/table"
	"wellnorm/internal/wells"
)

// Function variables used to introduce test seams. In production these point
// to real implementations; tests can override them.
var (
	newSinkFn = storage.New

	loadSourceFn = loadSource
)

// skipDownload makes HTTP fetches reuse extracts staged by an earlier run
// when one is present. Set by the -skip-download flag.
var skipDownload bool

// run executes one full normalization from a decoded pipeline config.
func run(ctx context.Context, p config.Pipeline) error {
	job := p.Job

	var lic, drl, prod *table.Table
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		lic, err = loadSourceFn(gctx, job, "licensing", p.Sources.Licensing, p.Output.Dir)
		return err
	})
	g.Go(func() (err error) {
		drl, err = loadSourceFn(gctx, job, "drilling", p.Sources.Drilling, p.Output.Dir)
		return err
	})
	g.Go(func() (err error) {
		prod, err = loadSourceFn(gctx, job, "production", p.Sources.Production, p.Output.Dir)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	lic, drl, prod, err := prepareTables(p, lic, drl, prod)
	if err != nil {
		return err
	}

	final, report, err := pipeline.Normalize(lic, drl, prod, pipeline.Contracts{
		Licensing:  p.Sources.Licensing.Contract,
		Drilling:   p.Sources.Drilling.Contract,
		Production: p.Sources.Production.Contract,
	}, p.Join, p.Fill)
	if err != nil {
		return err
	}

	up, err := buildUploader(p.Output.ObjectStore)
	if err != nil {
		return err
	}
	written, err := output.Persist(ctx, job, final, report, p.Output.Dir, up)
	if err != nil {
		return err
	}
	for _, w := range written {
		log.Printf("artifact: %s", w)
	}

	return store(ctx, job, p.Storage, final)
}

// loadSource fetches one extract, unpacks it when archived, and parses it into
// a typed table.
func loadSource(ctx context.Context, job, name string, src config.SourceConfig, stagingDir string) (t *table.Table, err error) {
	start := time.Now()
	defer func() { metrics.RecordStage(job, "fetch_"+name, err, time.Since(start)) }()

	data, err := fetchRaw(ctx, name, src, stagingDir)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	if m := src.Archive.Member; m != "" {
		data, err = archive.ExtractMember(data, m)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	parser, err := buildParser(src.Parser)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	t, skipped, err := parser.Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: parse: %w", name, err)
	}
	if skipped > 0 {
		log.Printf("%s: skipped %d malformed rows", name, skipped)
	}
	metrics.RecordRows(job, name, int64(t.NumRows()))
	log.Printf("%s: rows=%d columns=%d", name, t.NumRows(), t.NumCols())
	return t, nil
}

// fetchRaw returns the raw bytes of one extract per its fetch config.
func fetchRaw(ctx context.Context, name string, src config.SourceConfig, stagingDir string) ([]byte, error) {
	switch src.Fetch.Kind {
	case "file":
		return datasource.ReadAll(ctx, file.NewLocal(src.Fetch.File.Path))

	case "http":
		h := src.Fetch.HTTP
		if skipDownload {
			if data, path, ok := stagedCopy(stagingDir, h); ok {
				log.Printf("%s: reusing staged extract %s", name, path)
				return data, nil
			}
			log.Printf("%s: no staged extract, downloading", name)
		}

		client := httpds.NewClient(httpds.Config{
			Timeout: time.Duration(h.TimeoutSeconds) * time.Second,
		})

		url := h.URL
		if h.LookbackMonths > 0 && strings.Contains(url, period.MonthToken) {
			resolver := &period.Resolver{Probe: client.Probe}
			res, err := resolver.ResolveLatest(ctx, url, h.LookbackMonths)
			if err != nil {
				return nil, err
			}
			log.Printf("%s: resolved month %s", name, res.Month)
			url = res.URL
		}

		data, err := datasource.ReadAll(ctx, httpds.NewRemote(client, url))
		if err != nil {
			return nil, err
		}
		stageRaw(stagingDir, url, data)
		return data, nil
	}
	return nil, fmt.Errorf("unsupported fetch.kind=%q", src.Fetch.Kind)
}

// stagedCopy looks for an extract a previous run staged under <dir>/raw. A
// month-token URL is checked newest month first over the lookback window.
func stagedCopy(dir string, h config.SourceHTTP) ([]byte, string, bool) {
	if dir == "" {
		return nil, "", false
	}

	candidates := []string{h.URL}
	if strings.Contains(h.URL, period.MonthToken) {
		candidates = candidates[:0]
		now := time.Now().UTC()
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		for back := 0; back <= h.LookbackMonths; back++ {
			month := first.AddDate(0, -back, 0).Format("2006-01")
			candidates = append(candidates, strings.ReplaceAll(h.URL, period.MonthToken, month))
		}
	}

	for _, url := range candidates {
		path := filepath.Join(dir, "raw", httpds.SafeFilenameFromURL(url))
		if data, err := os.ReadFile(path); err == nil {
			return data, path, true
		}
	}
	return nil, "", false
}

// stageRaw keeps a copy of a downloaded extract under <dir>/raw for
// reprocessing and debugging. Failures are logged, never fatal.
func stageRaw(dir, url string, data []byte) {
	if dir == "" {
		return
	}
	rawDir := filepath.Join(dir, "raw")
	if err := os.MkdirAll(rawDir, 0o755); err != nil {
		log.Printf("stage raw: %v", err)
		return
	}
	path := filepath.Join(rawDir, httpds.SafeFilenameFromURL(url))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("stage raw: %v", err)
		return
	}
	log.Printf("staged %d bytes to %s", len(data), path)
}

// buildParser maps parser configuration into a concrete parser implementation.
func buildParser(pc config.Parser) (*csvparser.Parser, error) {
	if pc.Kind != "csv" {
		return nil, fmt.Errorf("unsupported parser.kind=%q", pc.Kind)
	}

	types := map[string]csvparser.ValueType{}
	for col, kind := range pc.Options.StringMap("types") {
		switch strings.ToLower(kind) {
		case "string", "text":
			types[col] = csvparser.TypeString
		case "numeric", "float", "double":
			types[col] = csvparser.TypeNumeric
		case "date":
			types[col] = csvparser.TypeDate
		default:
			return nil, fmt.Errorf("unsupported column type %q for %q", kind, col)
		}
	}

	return csvparser.NewParser(csvparser.Options{
		Comma:       pc.Options.Rune("comma", ','),
		Encoding:    pc.Options.String("encoding", ""),
		Rename:      pc.Options.StringMap("rename"),
		Keep:        pc.Options.StringSlice("keep"),
		Types:       types,
		NullMarkers: pc.Options.StringSlice("null_markers"),
		DateLayouts: pc.Options.StringSlice("date_layouts"),
	}), nil
}

// prepareTables standardizes identifiers across the three parsed extracts so
// the join keys line up:
//
//   - licensing licence numbers drop their two-character type prefix
//   - drilling licence numbers are trimmed
//   - display-format well identifiers become Petrinex production IDs, with
//     the published form preserved in a "UWI Display" column
//   - a raw Petrinex extract is pivoted to one row per well
func prepareTables(p config.Pipeline, lic, drl, prod *table.Table) (*table.Table, *table.Table, *table.Table, error) {
	lc := p.Join.LicenceColumn
	if lc != "" {
		if err := applyString(lic, lc, wells.StandardizeLicensingLicence); err != nil {
			return nil, nil, nil, err
		}
		if err := applyString(drl, lc, wells.StandardizeDrillingLicence); err != nil {
			return nil, nil, nil, err
		}
	}

	var err error
	if lic, err = canonicalizeWellIDs(lic, p.Join.WellColumn); err != nil {
		return nil, nil, nil, err
	}
	if drl, err = canonicalizeWellIDs(drl, p.Join.WellColumn); err != nil {
		return nil, nil, nil, err
	}

	// A raw Petrinex extract carries per-product rows; pivot it to one row
	// per well. A pre-pivoted file passes through.
	if prod.HasColumn("FromToIDType") {
		if prod, err = wells.PrepareProduction(prod); err != nil {
			return nil, nil, nil, err
		}
	}
	return lic, drl, prod, nil
}

// applyString rewrites every non-null string cell of col through fn. Absent
// columns are ignored: not every extract carries every identifier.
func applyString(t *table.Table, col string, fn func(string) string) error {
	if !t.HasColumn(col) {
		return nil
	}
	for i := 0; i < t.NumRows(); i++ {
		v, err := t.Value(i, col)
		if err != nil {
			return err
		}
		if s, ok := v.(string); ok && s != "" {
			if err := t.Set(i, col, fn(s)); err != nil {
				return err
			}
		}
	}
	return nil
}

// canonicalizeWellIDs rewrites the well column into the Petrinex production ID
// form, keeping the published display form in "UWI Display". IDs already in
// production form pass through unchanged.
func canonicalizeWellIDs(t *table.Table, wellCol string) (*table.Table, error) {
	if wellCol == "" || !t.HasColumn(wellCol) {
		return t, nil
	}

	display := make([]any, t.NumRows())
	for i := range display {
		v, err := t.Value(i, wellCol)
		if err != nil {
			return nil, err
		}
		display[i] = v
	}

	out := t
	if !t.HasColumn("UWI Display") {
		var err error
		out, err = t.WithColumn("UWI Display", func(i int) any { return display[i] })
		if err != nil {
			return nil, err
		}
	}
	if err := applyString(out, wellCol, wells.DisplayToProductionID); err != nil {
		return nil, err
	}
	return out, nil
}

func buildUploader(cfg config.ObjectStore) (*output.Uploader, error) {
	if cfg.Bucket == "" {
		return nil, nil
	}
	return output.NewUploader(output.ObjectStoreConfig{
		Endpoint:     cfg.Endpoint,
		Bucket:       cfg.Bucket,
		Prefix:       cfg.Prefix,
		UseSSL:       cfg.UseSSL,
		AccessKeyEnv: cfg.AccessKeyEnv,
		SecretKeyEnv: cfg.SecretKeyEnv,
	})
}

// store writes the final table to the configured database sink, if any.
func store(ctx context.Context, job string, cfg config.Storage, final *table.Table) error {
	if cfg.Kind == "" {
		return nil
	}

	sink, err := newSinkFn(ctx, cfg.Kind, storage.Config{
		DSN:             cfg.DB.DSN,
		Table:           cfg.DB.Table,
		AutoCreateTable: cfg.DB.AutoCreateTable,
	})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer sink.Close()

	start := time.Now()
	n, err := sink.Store(ctx, final)
	metrics.RecordStage(job, "store", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	metrics.RecordRows(job, "stored", n)
	log.Printf("stored %d rows into %s", n, cfg.DB.Table)
	return nil
}
