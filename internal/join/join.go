// Package join merges the three validated source tables into one
// row-per-well table.
//
// Step 1 is a full outer join of licensing and drilling on the well
// identifier: both registries contribute structural attributes, and a well
// known to only one side must still appear in the output. Step 2 is a left
// join of the result with production data — a well without production is a
// legitimate state, so step 2 never drops or adds rows.
package join

import (
	"fmt"

	"wellnorm/internal/schema"
	"wellnorm/internal/table"
)

// Source identifies the provenance of a column or table in a plan.
type Source string

const (
	SourceLicensing  Source = "licensing"
	SourceDrilling   Source = "drilling"
	SourceProduction Source = "production"
)

// KeyKind selects which base column production rows are matched against.
// Which key a Petrinex extract carries varies by vintage, so the choice is
// declared per run rather than hard-wired.
type KeyKind string

const (
	KeyWell    KeyKind = "well"
	KeyLicence KeyKind = "licence"
)

// ProductionKey declares how production rows are keyed.
type ProductionKey struct {
	// Column is the key column name inside the production table.
	Column string `json:"column"`
	// Kind selects the base column to match: the well identifier or the
	// licence identifier.
	Kind KeyKind `json:"kind"`
}

// CoalesceRule designates a column carried by both licensing and drilling as
// having the same semantic meaning. The merged table keeps a single column,
// taking the first non-null value in Priority order.
type CoalesceRule struct {
	Column   string   `json:"column"`
	Priority []Source `json:"priority,omitempty"` // default: licensing, drilling
}

// Plan declares the join keys, the production key choice, and how column-name
// collisions between sources are resolved.
type Plan struct {
	// WellColumn is the well identifier column name, present in both the
	// licensing and drilling tables.
	WellColumn string `json:"well_column"`
	// LicenceColumn is the licence identifier column name. It groups wells
	// for gap filling and may serve as the production join key.
	LicenceColumn string `json:"licence_column"`

	Production ProductionKey `json:"production"`

	// Suffixes appended to colliding column names per source. Defaults:
	// "_licensing", "_drilling", "_production".
	Suffixes map[Source]string `json:"suffixes,omitempty"`

	// Coalesce lists the columns merged across licensing and drilling
	// instead of being suffixed.
	Coalesce []CoalesceRule `json:"coalesce,omitempty"`
}

func (p Plan) suffix(s Source) string {
	if v, ok := p.Suffixes[s]; ok {
		return v
	}
	return "_" + string(s)
}

func (p Plan) coalesceRule(col string) (CoalesceRule, bool) {
	for _, r := range p.Coalesce {
		if r.Column == col {
			if len(r.Priority) == 0 {
				r.Priority = []Source{SourceLicensing, SourceDrilling}
			}
			return r, true
		}
	}
	return CoalesceRule{}, false
}

// KeyError reports a declared join key that is absent from a source table's
// columns. This is a configuration error, surfaced before any join work
// starts, and it aborts the run.
type KeyError struct {
	Source Source
	Column string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("join: declared key column %q not present in %s table", e.Column, e.Source)
}

// Stats summarizes one join for the normalization report.
type Stats struct {
	LicensingRows  int `json:"licensing_rows"`
	DrillingRows   int `json:"drilling_rows"`
	ProductionRows int `json:"production_rows"`

	DistinctWells int `json:"distinct_wells"`
	MatchedBoth   int `json:"matched_both"`
	LicensingOnly int `json:"licensing_only"`
	DrillingOnly  int `json:"drilling_only"`

	// ProductionMatched counts output rows that received production data.
	ProductionMatched int `json:"production_matched"`
}

// Join merges the validated sources per the plan. The output preserves
// licensing row order first, then drilling-only rows in drilling order; step
// 2 never changes the row count.
func Join(lic, drl, prod schema.ValidatedTable, plan Plan) (*table.Table, Stats, error) {
	var stats Stats
	stats.LicensingRows = lic.NumRows()
	stats.DrillingRows = drl.NumRows()
	stats.ProductionRows = prod.NumRows()

	if err := checkKeys(lic, drl, prod, plan); err != nil {
		return nil, stats, err
	}

	merged, err := outerJoin(lic.Table, drl.Table, plan, &stats)
	if err != nil {
		return nil, stats, err
	}

	final, err := leftJoinProduction(merged, prod.Table, plan, &stats)
	if err != nil {
		return nil, stats, err
	}
	return final, stats, nil
}

func checkKeys(lic, drl, prod schema.ValidatedTable, plan Plan) error {
	if !lic.HasColumn(plan.WellColumn) {
		return &KeyError{Source: SourceLicensing, Column: plan.WellColumn}
	}
	if !drl.HasColumn(plan.WellColumn) {
		return &KeyError{Source: SourceDrilling, Column: plan.WellColumn}
	}
	if !prod.HasColumn(plan.Production.Column) {
		return &KeyError{Source: SourceProduction, Column: plan.Production.Column}
	}
	switch plan.Production.Kind {
	case KeyWell:
		// base well column existence already checked above
	case KeyLicence:
		if !lic.HasColumn(plan.LicenceColumn) && !drl.HasColumn(plan.LicenceColumn) {
			return &KeyError{Source: SourceLicensing, Column: plan.LicenceColumn}
		}
	default:
		return fmt.Errorf("join: unknown production key kind %q", plan.Production.Kind)
	}
	return nil
}

// mergedColumn describes one output column of the step-1 table and where its
// values come from.
type mergedColumn struct {
	name     string
	licIdx   int // source column index in licensing, or -1
	drlIdx   int // source column index in drilling, or -1
	priority []Source
}

// planColumns computes the step-1 output column layout: the well identifier
// first, then licensing columns, then drilling-only columns. Colliding names
// are either coalesced (when designated by the plan) or kept under
// source-suffixed names so neither side silently overwrites the other.
func planColumns(lic, drl *table.Table, plan Plan) []mergedColumn {
	out := []mergedColumn{{
		name:     plan.WellColumn,
		licIdx:   lic.ColumnIndex(plan.WellColumn),
		drlIdx:   drl.ColumnIndex(plan.WellColumn),
		priority: []Source{SourceLicensing, SourceDrilling},
	}}

	for _, c := range lic.Columns() {
		if c == plan.WellColumn {
			continue
		}
		li := lic.ColumnIndex(c)
		di := drl.ColumnIndex(c)
		if di < 0 {
			out = append(out, mergedColumn{name: c, licIdx: li, drlIdx: -1})
			continue
		}
		if r, ok := plan.coalesceRule(c); ok {
			out = append(out, mergedColumn{name: c, licIdx: li, drlIdx: di, priority: r.Priority})
			continue
		}
		// Collision without a coalesce rule: keep both sides.
		out = append(out,
			mergedColumn{name: c + plan.suffix(SourceLicensing), licIdx: li, drlIdx: -1},
			mergedColumn{name: c + plan.suffix(SourceDrilling), licIdx: -1, drlIdx: di},
		)
	}

	for _, c := range drl.Columns() {
		if c == plan.WellColumn || lic.HasColumn(c) {
			continue
		}
		out = append(out, mergedColumn{name: c, licIdx: -1, drlIdx: drl.ColumnIndex(c)})
	}
	return out
}

func (m mergedColumn) value(licRow, drlRow []any) any {
	pick := func(s Source) any {
		switch s {
		case SourceLicensing:
			if m.licIdx >= 0 && licRow != nil {
				return licRow[m.licIdx]
			}
		case SourceDrilling:
			if m.drlIdx >= 0 && drlRow != nil {
				return drlRow[m.drlIdx]
			}
		}
		return nil
	}

	if len(m.priority) > 0 {
		for _, s := range m.priority {
			if v := pick(s); !table.IsNull(v) {
				return v
			}
		}
		return nil
	}
	if v := pick(SourceLicensing); v != nil {
		return v
	}
	return pick(SourceDrilling)
}

// outerJoin performs step 1. Each distinct well identifier yields exactly one
// output row; within a source, the first row for a given identifier wins.
// Rows whose well identifier is null (permitted only when the contract allows
// an identifier null budget) cannot match and are carried through unmatched.
func outerJoin(lic, drl *table.Table, plan Plan, stats *Stats) (*table.Table, error) {
	cols := planColumns(lic, drl, plan)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	out, err := table.New(names...)
	if err != nil {
		return nil, fmt.Errorf("join: step 1 layout: %w", err)
	}

	wellOf := func(t *table.Table, row []any) (string, bool) {
		v := row[t.ColumnIndex(plan.WellColumn)]
		if table.IsNull(v) {
			return "", false
		}
		s, ok := v.(string)
		return s, ok
	}

	// Index drilling rows by well identifier; first occurrence wins.
	drlByWell := make(map[string]int, drl.NumRows())
	for i := 0; i < drl.NumRows(); i++ {
		if w, ok := wellOf(drl, drl.Row(i)); ok {
			if _, dup := drlByWell[w]; !dup {
				drlByWell[w] = i
			}
		}
	}

	emit := func(licRow, drlRow []any) error {
		row := make([]any, len(cols))
		for i, c := range cols {
			row[i] = c.value(licRow, drlRow)
		}
		return out.AppendRow(row...)
	}

	seen := make(map[string]bool, lic.NumRows())
	for i := 0; i < lic.NumRows(); i++ {
		licRow := lic.Row(i)
		w, ok := wellOf(lic, licRow)
		if !ok {
			stats.LicensingOnly++
			if err := emit(licRow, nil); err != nil {
				return nil, err
			}
			continue
		}
		if seen[w] {
			continue
		}
		seen[w] = true
		if di, matched := drlByWell[w]; matched {
			stats.MatchedBoth++
			if err := emit(licRow, drl.Row(di)); err != nil {
				return nil, err
			}
		} else {
			stats.LicensingOnly++
			if err := emit(licRow, nil); err != nil {
				return nil, err
			}
		}
	}

	for i := 0; i < drl.NumRows(); i++ {
		drlRow := drl.Row(i)
		w, ok := wellOf(drl, drlRow)
		if ok {
			if seen[w] {
				continue
			}
			seen[w] = true
		}
		stats.DrillingOnly++
		if err := emit(nil, drlRow); err != nil {
			return nil, err
		}
	}

	stats.DistinctWells = len(seen)
	return out, nil
}

// leftJoinProduction performs step 2: every base row is retained, and
// production columns (minus the production key column) are appended, null
// where no production row matches.
func leftJoinProduction(base, prod *table.Table, plan Plan, stats *Stats) (*table.Table, error) {
	baseKey := plan.WellColumn
	if plan.Production.Kind == KeyLicence {
		baseKey = plan.LicenceColumn
	}
	if !base.HasColumn(baseKey) {
		// The licence column can disappear when the plan neither coalesces
		// nor carries it; surface that as a key configuration error.
		return nil, &KeyError{Source: SourceProduction, Column: baseKey}
	}

	prodCols := make([]string, 0, prod.NumCols())
	for _, c := range prod.Columns() {
		if c == plan.Production.Column {
			continue
		}
		prodCols = append(prodCols, c)
	}

	names := base.Columns()
	for _, c := range prodCols {
		n := c
		if base.HasColumn(n) {
			n += plan.suffix(SourceProduction)
		}
		names = append(names, n)
	}
	out, err := table.New(names...)
	if err != nil {
		return nil, fmt.Errorf("join: step 2 layout: %w", err)
	}

	prodByKey := make(map[string]int, prod.NumRows())
	ki := prod.ColumnIndex(plan.Production.Column)
	for i := 0; i < prod.NumRows(); i++ {
		v := prod.Row(i)[ki]
		if s, ok := v.(string); ok && s != "" {
			if _, dup := prodByKey[s]; !dup {
				prodByKey[s] = i
			}
		}
	}

	bi := base.ColumnIndex(baseKey)
	for i := 0; i < base.NumRows(); i++ {
		row := base.Row(i)
		var prodRow []any
		if s, ok := row[bi].(string); ok && s != "" {
			if pi, matched := prodByKey[s]; matched {
				prodRow = prod.Row(pi)
				stats.ProductionMatched++
			}
		}
		for _, c := range prodCols {
			if prodRow == nil {
				row = append(row, nil)
				continue
			}
			row = append(row, prodRow[prod.ColumnIndex(c)])
		}
		if err := out.AppendRow(row...); err != nil {
			return nil, err
		}
	}
	return out, nil
}
