// Package fill enriches the joined well table by filling missing attribute
// values from sibling rows in the same licence group.
//
// Filling is deliberately conservative: a value only ever moves between rows
// of one licence group, in the stable order rows left the join engine, and a
// column that is null across an entire group stays null. Divergent values
// inside a group are either resolved by a declared preference or recorded as
// a conflict and left untouched — the filler never guesses.
package fill

import (
	"fmt"

	"wellnorm/internal/table"
)

// Method selects how nulls inside a group are replaced.
type Method string

const (
	// FirstNonNull replaces every null with the group's first non-null
	// value in stable row order.
	FirstNonNull Method = "first-non-null-in-group"
	// ForwardFill propagates the nearest preceding non-null value.
	ForwardFill Method = "forward-fill-within-group"
	// BackwardFill propagates the nearest following non-null value.
	BackwardFill Method = "backward-fill-within-group"
)

// ConflictPolicy decides what happens when a group holds two or more distinct
// non-null values for the target column.
type ConflictPolicy string

const (
	// PreferEarliestRow resolves divergence in favor of the first non-null
	// value in row order.
	PreferEarliestRow ConflictPolicy = "prefer-earliest-row"
	// PreferMostCompleteRow resolves divergence in favor of the value held
	// by the group's row with the fewest nulls overall (earliest on ties).
	PreferMostCompleteRow ConflictPolicy = "prefer-most-complete-row"
	// ErrorOnConflict skips the group and records a conflict outcome
	// instead of picking a value. The run continues.
	ErrorOnConflict ConflictPolicy = "error-on-conflict"
)

// Rule declares one fill operation. Rules are applied in list order, and a
// later rule sees the values written by earlier ones.
type Rule struct {
	Target     string         `json:"target"`
	GroupKey   string         `json:"group_key"`
	Method     Method         `json:"method"`
	OnConflict ConflictPolicy `json:"on_conflict,omitempty"` // default prefer-earliest-row
}

// Status classifies a per-rule, per-group outcome.
type Status string

const (
	// StatusApplied means at least one null was filled.
	StatusApplied Status = "applied"
	// StatusConflict means the group held divergent values under
	// error-on-conflict and was skipped.
	StatusConflict Status = "skipped-conflict"
	// StatusComplete means the group had no nulls to fill.
	StatusComplete Status = "no-op-already-complete"
	// StatusNoData means the target column was null across the whole
	// group, so there was nothing to fill from.
	StatusNoData Status = "no-data-in-group"
)

// Outcome records the result of applying one rule to one licence group.
type Outcome struct {
	Rule   Rule   `json:"rule"`
	Group  string `json:"group"`
	Status Status `json:"status"`
	Filled int    `json:"filled"`
}

// Apply runs the rules in order against t and returns the filled table plus
// every per-group outcome. The input table is not modified. Rules naming
// columns absent from the table are configuration errors and abort filling.
func Apply(t *table.Table, rules []Rule) (*table.Table, []Outcome, error) {
	out := t.Clone()
	var outcomes []Outcome

	for i, r := range rules {
		if r.OnConflict == "" {
			r.OnConflict = PreferEarliestRow
		}
		if err := checkRule(out, r, i); err != nil {
			return nil, nil, err
		}
		res, err := applyRule(out, r)
		if err != nil {
			return nil, nil, err
		}
		outcomes = append(outcomes, res...)
	}
	return out, outcomes, nil
}

func checkRule(t *table.Table, r Rule, i int) error {
	if !t.HasColumn(r.Target) {
		return fmt.Errorf("fill: rule %d targets unknown column %q", i, r.Target)
	}
	if !t.HasColumn(r.GroupKey) {
		return fmt.Errorf("fill: rule %d groups by unknown column %q", i, r.GroupKey)
	}
	switch r.Method {
	case FirstNonNull, ForwardFill, BackwardFill:
	default:
		return fmt.Errorf("fill: rule %d has unknown method %q", i, r.Method)
	}
	switch r.OnConflict {
	case PreferEarliestRow, PreferMostCompleteRow, ErrorOnConflict:
	default:
		return fmt.Errorf("fill: rule %d has unknown conflict policy %q", i, r.OnConflict)
	}
	return nil
}

// applyRule partitions rows by the group key and fills each partition. Rows
// whose group key is null form an unfillable partition and are left alone:
// filling requires a known group.
func applyRule(t *table.Table, r Rule) ([]Outcome, error) {
	groups, order := partition(t, r.GroupKey)

	var outcomes []Outcome
	for _, g := range order {
		rows := groups[g]
		o, err := fillGroup(t, r, g, rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// partition maps group key value -> member row indexes (stable order), and
// returns group keys in first-appearance order so outcomes are deterministic.
func partition(t *table.Table, key string) (map[string][]int, []string) {
	groups := make(map[string][]int)
	var order []string
	ki := t.ColumnIndex(key)
	for i := 0; i < t.NumRows(); i++ {
		v := t.Row(i)[ki]
		if table.IsNull(v) {
			continue
		}
		g := table.CellString(v)
		if _, seen := groups[g]; !seen {
			order = append(order, g)
		}
		groups[g] = append(groups[g], i)
	}
	return groups, order
}

func fillGroup(t *table.Table, r Rule, group string, rows []int) (Outcome, error) {
	out := Outcome{Rule: r, Group: group}

	var (
		nulls    []int
		nonNull  []int
		distinct = map[string]struct{}{}
	)
	for _, row := range rows {
		v, err := t.Value(row, r.Target)
		if err != nil {
			return out, err
		}
		if table.IsNull(v) {
			nulls = append(nulls, row)
		} else {
			nonNull = append(nonNull, row)
			distinct[table.CellString(v)] = struct{}{}
		}
	}

	switch {
	case len(nonNull) == 0:
		out.Status = StatusNoData
		return out, nil
	case len(nulls) == 0:
		out.Status = StatusComplete
		return out, nil
	}

	if r.OnConflict == ErrorOnConflict && len(distinct) > 1 {
		out.Status = StatusConflict
		return out, nil
	}

	filled, err := fillNulls(t, r, rows)
	if err != nil {
		return out, err
	}
	out.Filled = filled
	if filled > 0 {
		out.Status = StatusApplied
	} else {
		// Forward/backward fill can leave leading/trailing nulls.
		out.Status = StatusComplete
	}
	return out, nil
}

func fillNulls(t *table.Table, r Rule, rows []int) (int, error) {
	switch r.Method {
	case FirstNonNull:
		v, err := pickFillValue(t, r, rows)
		if err != nil {
			return 0, err
		}
		filled := 0
		for _, row := range rows {
			cur, _ := t.Value(row, r.Target)
			if table.IsNull(cur) {
				if err := t.Set(row, r.Target, v); err != nil {
					return filled, err
				}
				filled++
			}
		}
		return filled, nil

	case ForwardFill:
		return propagate(t, r, rows, false)

	case BackwardFill:
		return propagate(t, r, rows, true)
	}
	return 0, fmt.Errorf("fill: unknown method %q", r.Method)
}

// pickFillValue selects the replacement value per the conflict policy.
func pickFillValue(t *table.Table, r Rule, rows []int) (any, error) {
	if r.OnConflict == PreferMostCompleteRow {
		best, bestNulls := -1, -1
		for _, row := range rows {
			v, _ := t.Value(row, r.Target)
			if table.IsNull(v) {
				continue
			}
			n := rowNulls(t, row)
			if best < 0 || n < bestNulls {
				best, bestNulls = row, n
			}
		}
		if best < 0 {
			return nil, fmt.Errorf("fill: no candidate value in group")
		}
		v, err := t.Value(best, r.Target)
		return v, err
	}

	// prefer-earliest-row (and error-on-conflict after the divergence
	// check): first non-null in stable order.
	for _, row := range rows {
		v, err := t.Value(row, r.Target)
		if err != nil {
			return nil, err
		}
		if !table.IsNull(v) {
			return v, nil
		}
	}
	return nil, fmt.Errorf("fill: no candidate value in group")
}

func rowNulls(t *table.Table, row int) int {
	n := 0
	for _, v := range t.Row(row) {
		if table.IsNull(v) {
			n++
		}
	}
	return n
}

// propagate carries the nearest non-null value through the group in stable
// row order; reverse=true walks the group backward.
func propagate(t *table.Table, r Rule, rows []int, reverse bool) (int, error) {
	idx := rows
	if reverse {
		idx = make([]int, len(rows))
		for i, row := range rows {
			idx[len(rows)-1-i] = row
		}
	}

	filled := 0
	var carry any
	haveCarry := false
	for _, row := range idx {
		v, err := t.Value(row, r.Target)
		if err != nil {
			return filled, err
		}
		if !table.IsNull(v) {
			carry, haveCarry = v, true
			continue
		}
		if haveCarry {
			if err := t.Set(row, r.Target, carry); err != nil {
				return filled, err
			}
			filled++
		}
	}
	return filled, nil
}
