// Package csv reads delimited source extracts into in-memory tables. It
// handles the quirks of the real exports: UTF-8 BOMs, legacy single-byte
// encodings, tab delimiters, assorted null markers, and per-column typing.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"wellnorm/internal/table"
)

// ValueType selects how raw cells of a column are parsed.
type ValueType string

const (
	// TypeString keeps cells as trimmed strings.
	TypeString ValueType = "string"
	// TypeNumeric parses cells as float64, stripping thousands separators.
	TypeNumeric ValueType = "numeric"
	// TypeDate parses cells as time.Time using the configured layouts.
	TypeDate ValueType = "date"
)

// Default markers treated as null in addition to the empty string.
var defaultNullMarkers = []string{"NA", "N/A", "NULL", "None", "***", "---"}

// Default layouts tried in order for date columns.
var defaultDateLayouts = []string{"2006-01-02", "02-Jan-2006", "2006/01/02", "20060102"}

// Options configures the loader. All fields are optional; zero values get
// sensible defaults.
type Options struct {
	// Comma is the field delimiter. When zero, ',' is used. The drilling
	// registry ships tab-separated files.
	Comma rune

	// Encoding names the source byte encoding: "utf-8" (default),
	// "latin-1", or "windows-1252". The production extract is published in
	// a single-byte encoding.
	Encoding string

	// Rename maps source header names to canonical column names. Headers
	// absent from the map keep their trimmed original name.
	Rename map[string]string

	// Keep, when non-empty, restricts the loaded table to these columns
	// (post-rename). Column order follows Keep.
	Keep []string

	// Types declares per-column parsing (post-rename). Columns without an
	// entry load as strings.
	Types map[string]ValueType

	// NullMarkers are cell values treated as null, in addition to the
	// empty string. When nil, the default marker set is used.
	NullMarkers []string

	// DateLayouts are tried in order for date columns. When nil, the
	// default layout set is used.
	DateLayouts []string
}

// Parser loads delimited data according to Options. It is safe to reuse
// across inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Load consumes the delimited input and returns the typed table plus the
// number of rows skipped for width mismatches or read errors. The first row
// is always treated as the header. Cells that fail their declared type parse
// are loaded as null rather than aborting; contract validation downstream
// decides whether that is fatal.
func (p *Parser) Load(r io.Reader) (*table.Table, int, error) {
	dec, err := decodeReader(r, p.opt.Encoding)
	if err != nil {
		return nil, 0, err
	}

	cr := csv.NewReader(dec)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read csv header: %w", err)
	}
	cols := p.normalizeHeader(header)

	keep := p.keepIndexes(cols)
	outCols := make([]string, len(keep))
	for i, ki := range keep {
		outCols[i] = cols[ki]
	}
	out, err := table.New(outCols...)
	if err != nil {
		return nil, 0, err
	}

	nulls := p.opt.NullMarkers
	if nulls == nil {
		nulls = defaultNullMarkers
	}

	const logLimit = 400
	skipped := 0
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < logLimit {
				log.Printf("Skipping row %d: %v", line, err)
			}
			skipped++
			continue
		}
		if len(row) != len(cols) {
			if skipped < logLimit {
				log.Printf("Skipping row %d: incorrect number of fields (expected %d, got %d)", line, len(cols), len(row))
			}
			skipped++
			continue
		}

		vals := make([]any, len(keep))
		for i, ki := range keep {
			vals[i] = p.parseCell(outCols[i], row[ki], nulls)
		}
		if err := out.AppendRow(vals...); err != nil {
			return nil, skipped, err
		}
	}
	return out, skipped, nil
}

// decodeReader wraps r with a charset decoder when the source is not UTF-8.
func decodeReader(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(encoding) {
	case "", "utf-8", "utf8":
		return r, nil
	case "latin-1", "latin1", "iso-8859-1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	case "windows-1252", "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	}
	return nil, fmt.Errorf("csv: unsupported encoding %q", encoding)
}

// normalizeHeader trims headers, strips a leading BOM, and applies renames.
func (p *Parser) normalizeHeader(h []string) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if m, ok := p.opt.Rename[c]; ok {
			c = m
		}
		res[i] = c
	}
	return res
}

// keepIndexes resolves Keep into source column indexes, or every column when
// Keep is empty. Requested columns missing from the header are dropped; the
// schema contract reports them with a precise violation later.
func (p *Parser) keepIndexes(cols []string) []int {
	if len(p.opt.Keep) == 0 {
		idx := make([]int, len(cols))
		for i := range cols {
			idx[i] = i
		}
		return idx
	}
	byName := make(map[string]int, len(cols))
	for i, c := range cols {
		if _, dup := byName[c]; !dup {
			byName[c] = i
		}
	}
	var idx []int
	for _, want := range p.opt.Keep {
		if i, ok := byName[want]; ok {
			idx = append(idx, i)
		}
	}
	return idx
}

// parseCell converts one raw cell per the column's declared type. Null
// markers map to nil; unparseable typed cells also load as nil.
func (p *Parser) parseCell(col, raw string, nulls []string) any {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil
	}
	for _, m := range nulls {
		if v == m {
			return nil
		}
	}

	switch p.opt.Types[col] {
	case TypeNumeric:
		f, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64)
		if err != nil {
			return nil
		}
		return f
	case TypeDate:
		layouts := p.opt.DateLayouts
		if layouts == nil {
			layouts = defaultDateLayouts
		}
		for _, l := range layouts {
			if ts, err := time.Parse(l, v); err == nil {
				return ts
			}
		}
		return nil
	}
	return v
}
