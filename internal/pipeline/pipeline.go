// Package pipeline orchestrates the normalization run: validate every source
// against its contract, join the validated tables into one row per well, and
// fill gaps within licence groups.
//
// The stages run strictly in sequence with no I/O and no retries; fetching,
// archive extraction, and persistence happen at the collaborator boundary
// before and after Normalize. A contract or join-key failure aborts the whole
// run — no partial table ever reaches the caller.
package pipeline

import (
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"wellnorm/internal/fill"
	"wellnorm/internal/join"
	"wellnorm/internal/metrics"
	"wellnorm/internal/schema"
	"wellnorm/internal/table"
)

// Contracts bundles the per-source schema contracts for one run.
type Contracts struct {
	Licensing  schema.Contract `json:"licensing"`
	Drilling   schema.Contract `json:"drilling"`
	Production schema.Contract `json:"production"`
}

// Report is the structured account of one normalization run.
type Report struct {
	RunID string `json:"run_id"`

	SourceRows map[string]int `json:"source_rows"`
	Join       join.Stats     `json:"join"`

	// NullsBefore/NullsAfter count nulls per column in the joined table,
	// before and after gap filling.
	NullsBefore map[string]int `json:"nulls_before"`
	NullsAfter  map[string]int `json:"nulls_after"`

	// Outcomes lists every per-rule, per-group fill result; Conflicts is
	// the subset that hit divergent values under error-on-conflict.
	Outcomes  []fill.Outcome `json:"outcomes"`
	Conflicts []fill.Outcome `json:"conflicts"`

	// Fingerprint is a deterministic digest of the final table, printed in
	// hex. Identical inputs and rules always reproduce it.
	Fingerprint string `json:"fingerprint"`

	Elapsed time.Duration `json:"elapsed"`
}

// Normalize is the single entry point of the core. It is deterministic given
// identical inputs, contracts, plan, and rules.
func Normalize(
	licensing, drilling, production *table.Table,
	contracts Contracts,
	plan join.Plan,
	rules []fill.Rule,
) (*table.Table, *Report, error) {
	start := time.Now()
	report := &Report{
		RunID: uuid.NewString(),
		SourceRows: map[string]int{
			"licensing":  licensing.NumRows(),
			"drilling":   drilling.NumRows(),
			"production": production.NumRows(),
		},
	}

	lic, err := validateStage(licensing, contracts.Licensing)
	if err != nil {
		return nil, nil, err
	}
	drl, err := validateStage(drilling, contracts.Drilling)
	if err != nil {
		return nil, nil, err
	}
	prod, err := validateStage(production, contracts.Production)
	if err != nil {
		return nil, nil, err
	}

	joined, stats, err := join.Join(lic, drl, prod, plan)
	if err != nil {
		return nil, nil, err
	}
	report.Join = stats
	report.NullsBefore = nullCounts(joined)
	log.Printf("join: wells=%d matched=%d licensing_only=%d drilling_only=%d production_matched=%d",
		stats.DistinctWells, stats.MatchedBoth, stats.LicensingOnly, stats.DrillingOnly, stats.ProductionMatched)

	filled, outcomes, err := fill.Apply(joined, rules)
	if err != nil {
		return nil, nil, err
	}
	report.Outcomes = outcomes
	for _, o := range outcomes {
		if o.Status == fill.StatusConflict {
			report.Conflicts = append(report.Conflicts, o)
		}
	}
	report.NullsAfter = nullCounts(filled)

	report.Fingerprint = fmt.Sprintf("%016x", filled.Fingerprint())
	report.Elapsed = time.Since(start)

	metrics.RecordRows("normalize", "wells", int64(filled.NumRows()))
	metrics.RecordRows("normalize", "fill_conflicts", int64(len(report.Conflicts)))
	metrics.RecordStage("normalize", "core", nil, report.Elapsed)

	log.Printf("normalize: rows=%d conflicts=%d fingerprint=%s elapsed=%s",
		filled.NumRows(), len(report.Conflicts), report.Fingerprint,
		report.Elapsed.Truncate(time.Millisecond))

	return filled, report, nil
}

// validateStage wraps schema.Validate with stage metrics. Validation failures
// abort the run unmodified.
func validateStage(t *table.Table, c schema.Contract) (schema.ValidatedTable, error) {
	start := time.Now()
	v, err := schema.Validate(t, c)
	metrics.RecordStage("normalize", "validate_"+c.Source, err, time.Since(start))
	if err != nil {
		return schema.ValidatedTable{}, err
	}
	log.Printf("validate: source=%s rows=%d columns=%d ok", c.Source, t.NumRows(), t.NumCols())
	return v, nil
}

func nullCounts(t *table.Table) map[string]int {
	out := make(map[string]int, t.NumCols())
	for _, c := range t.Columns() {
		n, _ := t.NullCount(c)
		out[c] = n
	}
	return out
}
