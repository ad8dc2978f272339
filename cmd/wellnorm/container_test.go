package main

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"wellnorm/internal/config"
	"wellnorm/internal/fill"
	"wellnorm/internal/join"
	"wellnorm/internal/output"
	"wellnorm/internal/schema"
	"wellnorm/internal/storage"
	"wellnorm/internal/table"
	"wellnorm/internal/wells"
)

func testJoinPlan() join.Plan {
	return join.Plan{
		WellColumn:    "UWI",
		LicenceColumn: "Licence",
		Production:    join.ProductionKey{Column: wells.ColUWI, Kind: join.KeyWell},
		Coalesce: []join.CoalesceRule{
			{Column: "Licence"},
			{Column: "UWI Display"},
		},
	}
}

func testFillRules() []fill.Rule {
	return []fill.Rule{
		{Target: "Licence Status", GroupKey: "Licence", Method: fill.FirstNonNull},
	}
}

type fakeSink struct {
	stored *table.Table
	closed bool
}

func (f *fakeSink) Store(ctx context.Context, t *table.Table) (int64, error) {
	f.stored = t
	return int64(t.NumRows()), nil
}

func (f *fakeSink) Close() { f.closed = true }

func installFakeSink(t *testing.T) *fakeSink {
	t.Helper()
	sink := &fakeSink{}
	prev := newSinkFn
	newSinkFn = func(ctx context.Context, kind string, cfg storage.Config) (storage.Sink, error) {
		return sink, nil
	}
	t.Cleanup(func() { newSinkFn = prev })
	return sink
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeZipFixture(t *testing.T, dir, name, member, content string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(member)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return writeFixture(t, dir, name, buf.String())
}

// testPipeline builds a full run config over local fixture files: a licensing
// CSV, a zipped tab-delimited drilling registry, and a raw per-product
// production extract.
func testPipeline(t *testing.T) config.Pipeline {
	t.Helper()
	dir := t.TempDir()

	licPath := writeFixture(t, dir, "st1.csv",
		"UWI,LICENCE_NUMBER,LICENCE_STATUS\n"+
			"00/06-06-001-01W4/2,AB0489769,Issued\n")

	drlPath := writeZipFixture(t, dir, "st37.zip", "WellList.txt",
		"UWI\tLICENCE\tMODE\n"+
			"00/06-06-001-01W4/2\t 0489769 \tPumping\n"+
			"00/05-05-001-01W4/0\t 0489769 \tFlowing\n")

	prodPath := writeFixture(t, dir, "petrinex.csv",
		"FromToIDType,FromToIDIdentifier,ProductID,ActivityID,Volume,ProductionMonth\n"+
			"WI,100060600101W402,OIL,PROD,10.5,2025-06\n"+
			"WI,100060600101W402,OIL,PROD,4.5,2025-06\n"+
			"WI,100060600101W402,GAS,PROD,200,2025-06\n"+
			"BT,100060600101W402,OIL,PROD,999,2025-06\n")

	return config.Pipeline{
		Job: "wells_ab_test",
		Sources: config.Sources{
			Licensing: config.SourceConfig{
				Fetch: config.Fetch{Kind: "file", File: config.SourceFile{Path: licPath}},
				Parser: config.Parser{Kind: "csv", Options: config.Options{
					"rename": map[string]any{
						"LICENCE_NUMBER": "Licence",
						"LICENCE_STATUS": "Licence Status",
					},
				}},
				Contract: schema.Contract{
					Source: "licensing",
					Fields: []schema.Field{
						{Name: "UWI", Kind: schema.KindIdentifier, Required: true},
						{Name: "Licence", Kind: schema.KindIdentifier, Required: true},
						{Name: "Licence Status", Kind: schema.KindString, Nullable: true},
					},
				},
			},
			Drilling: config.SourceConfig{
				Fetch:   config.Fetch{Kind: "file", File: config.SourceFile{Path: drlPath}},
				Archive: config.Archive{Member: "WellList.txt"},
				Parser: config.Parser{Kind: "csv", Options: config.Options{
					"comma":  "\t",
					"rename": map[string]any{"LICENCE": "Licence", "MODE": "Mode"},
				}},
				Contract: schema.Contract{
					Source: "drilling",
					Fields: []schema.Field{
						{Name: "UWI", Kind: schema.KindIdentifier, Required: true},
						{Name: "Licence", Kind: schema.KindIdentifier, Required: true},
						{Name: "Mode", Kind: schema.KindString, Nullable: true},
					},
				},
			},
			Production: config.SourceConfig{
				Fetch: config.Fetch{Kind: "file", File: config.SourceFile{Path: prodPath}},
				Parser: config.Parser{Kind: "csv", Options: config.Options{
					"types": map[string]any{"Volume": "numeric"},
				}},
				Contract: schema.Contract{
					Source: "production",
					Fields: []schema.Field{
						{Name: wells.ColUWI, Kind: schema.KindIdentifier, Required: true},
						{Name: wells.ColOilVolume, Kind: schema.KindNumeric, Nullable: true},
						{Name: wells.ColGasVolume, Kind: schema.KindNumeric, Nullable: true},
						{Name: wells.ColProdMonth, Kind: schema.KindString, Nullable: true},
					},
				},
			},
		},
		Join: testJoinPlan(),
		Output: config.Output{
			Dir: filepath.Join(dir, "final"),
		},
		Storage: config.Storage{
			Kind: "postgres",
			DB:   config.DBConfig{DSN: "postgresql://unused", Table: "public.wells_ab"},
		},
	}
}

func TestRunEndToEnd(t *testing.T) {
	sink := installFakeSink(t)
	p := testPipeline(t)
	p.Join = testJoinPlan()
	p.Fill = testFillRules()

	if err := run(context.Background(), p); err != nil {
		t.Fatalf("run: %v", err)
	}

	if sink.stored == nil {
		t.Fatal("sink never received the final table")
	}
	if !sink.closed {
		t.Error("sink was not closed")
	}
	final := sink.stored

	// Well A from licensing order first, then drilling-only well B.
	if final.NumRows() != 2 {
		t.Fatalf("final rows = %d, want 2", final.NumRows())
	}

	uwi, _ := final.Value(0, "UWI")
	if uwi != "100060600101W402" {
		t.Errorf("UWI = %v, want Petrinex form", uwi)
	}
	disp, _ := final.Value(0, "UWI Display")
	if disp != "00/06-06-001-01W4/2" {
		t.Errorf("UWI Display = %v, want published form", disp)
	}

	// Licensing licence drops its two-character prefix; drilling trims.
	for i := 0; i < 2; i++ {
		lic, _ := final.Value(i, "Licence")
		if lic != "0489769" {
			t.Errorf("row %d Licence = %v, want 0489769", i, lic)
		}
	}

	// B has no licensing row; its status fills from licence sibling A.
	status, _ := final.Value(1, "Licence Status")
	if status != "Issued" {
		t.Errorf("filled Licence Status = %v, want Issued", status)
	}

	// OIL sums the WI/PROD rows only; the BT row is filtered out.
	oil, _ := final.Value(0, wells.ColOilVolume)
	if oil != 15.0 {
		t.Errorf("oil volume = %v, want 15", oil)
	}
	gas, _ := final.Value(0, wells.ColGasVolume)
	if gas != 200.0 {
		t.Errorf("gas volume = %v, want 200", gas)
	}
	month, _ := final.Value(0, wells.ColProdMonth)
	if month != "2025-06" {
		t.Errorf("production month = %v, want 2025-06", month)
	}
	// No production for B: null, never zero.
	oilB, _ := final.Value(1, wells.ColOilVolume)
	if !table.IsNull(oilB) {
		t.Errorf("oil volume for B = %v, want null", oilB)
	}

	for _, name := range []string{
		output.ParquetFile, output.CSVFile, output.QualityFile, output.ReportFile,
	} {
		if _, err := os.Stat(filepath.Join(p.Output.Dir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
}

func TestRunAbortsOnContractFailure(t *testing.T) {
	sink := installFakeSink(t)
	p := testPipeline(t)
	p.Join = testJoinPlan()
	// Demand a column the licensing extract does not carry.
	p.Sources.Licensing.Contract.Fields = append(p.Sources.Licensing.Contract.Fields,
		schema.Field{Name: "Operator", Kind: schema.KindString, Required: true})

	if err := run(context.Background(), p); err == nil {
		t.Fatal("expected contract failure")
	}
	if sink.stored != nil {
		t.Error("failed run must not reach the sink")
	}
	if _, err := os.Stat(filepath.Join(p.Output.Dir, output.ParquetFile)); err == nil {
		t.Error("failed run must not write artifacts")
	}
}

func TestRunWithoutStorage(t *testing.T) {
	p := testPipeline(t)
	p.Join = testJoinPlan()
	p.Storage = config.Storage{}

	if err := run(context.Background(), p); err != nil {
		t.Fatalf("run without storage: %v", err)
	}
	if _, err := os.Stat(filepath.Join(p.Output.Dir, output.CSVFile)); err != nil {
		t.Errorf("missing artifact: %v", err)
	}
}

func TestBuildParser(t *testing.T) {
	if _, err := buildParser(config.Parser{Kind: "xml"}); err == nil {
		t.Error("expected error for unsupported parser kind")
	}
	if _, err := buildParser(config.Parser{Kind: "csv", Options: config.Options{
		"types": map[string]any{"Volume": "uuid"},
	}}); err == nil {
		t.Error("expected error for unsupported column type")
	}
	if _, err := buildParser(config.Parser{Kind: "csv", Options: config.Options{
		"types": map[string]any{"Volume": "numeric", "Spud Date": "date"},
	}}); err != nil {
		t.Errorf("buildParser: %v", err)
	}
}

func TestFetchRawHTTPResolvesMonth(t *testing.T) {
	now := time.Now().UTC()
	current := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	previous := current.AddDate(0, -1, 0)

	body := "FromToIDType,FromToIDIdentifier\nWI,100060600101W402\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only the previous month's extract is published.
		if r.URL.Path == fmt.Sprintf("/Vol_%s.CSV", previous.Format("2006-01")) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(body))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	staging := t.TempDir()
	src := config.SourceConfig{
		Fetch: config.Fetch{Kind: "http", HTTP: config.SourceHTTP{
			URL:            srv.URL + "/Vol_{month}.CSV",
			LookbackMonths: 3,
			TimeoutSeconds: 2,
		}},
	}

	data, err := fetchRaw(context.Background(), "production", src, staging)
	if err != nil {
		t.Fatalf("fetchRaw: %v", err)
	}
	if string(data) != body {
		t.Errorf("fetched %q", data)
	}

	raw, err := os.ReadDir(filepath.Join(staging, "raw"))
	if err != nil || len(raw) != 1 {
		t.Errorf("expected one staged raw file, got %v (%v)", raw, err)
	}
}

func TestFetchRawSkipDownloadReusesStagedExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("skip-download run must not hit the network")
	}))
	defer srv.Close()

	staging := t.TempDir()
	url := srv.URL + "/WellList.zip"
	stageRaw(staging, url, []byte("staged-bytes"))

	skipDownload = true
	t.Cleanup(func() { skipDownload = false })

	src := config.SourceConfig{
		Fetch: config.Fetch{Kind: "http", HTTP: config.SourceHTTP{URL: url, TimeoutSeconds: 2}},
	}
	data, err := fetchRaw(context.Background(), "drilling", src, staging)
	if err != nil {
		t.Fatalf("fetchRaw: %v", err)
	}
	if string(data) != "staged-bytes" {
		t.Errorf("fetched %q, want staged copy", data)
	}
}

func TestStagedCopyMonthToken(t *testing.T) {
	staging := t.TempDir()
	now := time.Now().UTC()
	month := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).
		AddDate(0, -2, 0).Format("2006-01")
	template := "https://example.com/Vol_{month}.CSV"
	resolved := "https://example.com/Vol_" + month + ".CSV"
	stageRaw(staging, resolved, []byte("month-bytes"))

	h := config.SourceHTTP{URL: template, LookbackMonths: 3}
	data, path, ok := stagedCopy(staging, h)
	if !ok {
		t.Fatal("staged month extract not found")
	}
	if string(data) != "month-bytes" {
		t.Errorf("read %q", data)
	}
	if filepath.Dir(path) != filepath.Join(staging, "raw") {
		t.Errorf("unexpected staged path %s", path)
	}

	if _, _, ok := stagedCopy(staging, config.SourceHTTP{URL: template, LookbackMonths: 1}); ok {
		t.Error("lookback window should not reach a two-month-old extract")
	}
}

func TestFetchRawUnsupportedKind(t *testing.T) {
	src := config.SourceConfig{Fetch: config.Fetch{Kind: "carrier-pigeon"}}
	if _, err := fetchRaw(context.Background(), "licensing", src, ""); err == nil {
		t.Error("expected error for unsupported fetch kind")
	}
}
