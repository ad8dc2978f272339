package schema

import (
	"fmt"
	"strings"
	"time"

	"wellnorm/internal/table"
)

// ViolationKind classifies a single contract violation.
type ViolationKind string

const (
	// ViolationMissing means a required column is absent from the table.
	ViolationMissing ViolationKind = "missing"
	// ViolationWrongType means a cell's runtime type is incompatible with
	// the declared kind.
	ViolationWrongType ViolationKind = "wrong-type"
	// ViolationExcessNulls means an identifier column exceeds its allowed
	// null fraction.
	ViolationExcessNulls ViolationKind = "excess-nulls"
)

// Violation names one offending column and what it violated.
type Violation struct {
	Column string
	Kind   ViolationKind
	Detail string
}

// SchemaError reports every violation found in one source. It is always fatal
// to the run: the pipeline aborts rather than joining unvalidated data.
type SchemaError struct {
	Source     string
	Violations []Violation
}

func (e *SchemaError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s (%s): %s", v.Column, v.Kind, v.Detail)
	}
	return fmt.Sprintf("schema: source %q failed its contract: %s",
		e.Source, strings.Join(parts, "; "))
}

// ValidatedTable tags a table as having passed its contract. It carries the
// same data unchanged; the wrapper exists so the join engine can require
// validated inputs at compile time.
type ValidatedTable struct {
	*table.Table
	contract Contract
}

// Contract returns the contract the table was validated against.
func (v ValidatedTable) Contract() Contract { return v.contract }

// Validate checks t against c and returns the same data tagged as validated,
// or a *SchemaError naming every offending column. It never coerces values
// and never drops rows.
func Validate(t *table.Table, c Contract) (ValidatedTable, error) {
	var violations []Violation

	for _, f := range c.Fields {
		if !KnownKind(f.Kind) {
			violations = append(violations, Violation{
				Column: f.Name,
				Kind:   ViolationWrongType,
				Detail: fmt.Sprintf("contract declares unknown kind %q", f.Kind),
			})
			continue
		}

		if !t.HasColumn(f.Name) {
			if f.Required {
				violations = append(violations, Violation{
					Column: f.Name,
					Kind:   ViolationMissing,
					Detail: "required column not present",
				})
			}
			continue
		}

		if v, ok := checkColumnType(t, f); !ok {
			violations = append(violations, v)
			continue
		}

		if f.Kind == KindIdentifier {
			if v, ok := checkNullBudget(t, f); !ok {
				violations = append(violations, v)
			}
		}
	}

	if len(violations) > 0 {
		return ValidatedTable{}, &SchemaError{Source: c.Source, Violations: violations}
	}
	return ValidatedTable{Table: t, contract: c}, nil
}

// checkColumnType scans the column and reports the first cell whose runtime
// type is incompatible with the declared kind. Nulls are skipped here; the
// null budget is enforced separately.
func checkColumnType(t *table.Table, f Field) (Violation, bool) {
	for row := 0; row < t.NumRows(); row++ {
		v, _ := t.Value(row, f.Name)
		if table.IsNull(v) {
			continue
		}
		if !compatible(v, f.Kind) {
			return Violation{
				Column: f.Name,
				Kind:   ViolationWrongType,
				Detail: fmt.Sprintf("row %d holds %T, want %s", row, v, f.Kind),
			}, false
		}
	}
	return Violation{}, true
}

// checkNullBudget enforces the identifier null-fraction ceiling.
func checkNullBudget(t *table.Table, f Field) (Violation, bool) {
	if t.NumRows() == 0 {
		return Violation{}, true
	}
	nulls, _ := t.NullCount(f.Name)
	frac := float64(nulls) / float64(t.NumRows())
	if frac > f.MaxNullFraction {
		return Violation{
			Column: f.Name,
			Kind:   ViolationExcessNulls,
			Detail: fmt.Sprintf("%d of %d values null (%.4f > %.4f allowed)",
				nulls, t.NumRows(), frac, f.MaxNullFraction),
		}, false
	}
	return Violation{}, true
}

// compatible reports whether a non-null cell value matches the declared kind.
func compatible(v any, k Kind) bool {
	switch k {
	case KindIdentifier, KindString:
		_, ok := v.(string)
		return ok
	case KindNumeric:
		_, ok := v.(float64)
		return ok
	case KindDate:
		_, ok := v.(time.Time)
		return ok
	}
	return false
}
