package schema

import (
	"errors"
	"strings"
	"testing"
	"time"

	"wellnorm/internal/table"
)

func licensingContract() Contract {
	return Contract{
		Source: "licensing",
		Fields: []Field{
			{Name: "UWI", Kind: KindIdentifier, Required: true},
			{Name: "Licence", Kind: KindIdentifier, Required: true},
			{Name: "Licence Status", Kind: KindString, Nullable: true},
			{Name: "Final Total Depth", Kind: KindNumeric, Nullable: true},
			{Name: "Licence Issue Date", Kind: KindDate, Nullable: true},
		},
	}
}

func TestValidateOK(t *testing.T) {
	tbl := table.MustNew("UWI", "Licence", "Licence Status", "Final Total Depth", "Licence Issue Date")
	tbl.MustAppendRow("100060600101W402", "0489769", "Issued", 1250.5,
		time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	tbl.MustAppendRow("100060600202W402", "0489770", nil, nil, nil)

	v, err := Validate(tbl, licensingContract())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.Contract().Source != "licensing" {
		t.Errorf("contract source = %q", v.Contract().Source)
	}
	if v.NumRows() != 2 {
		t.Errorf("validated table rows = %d, want 2 (validation must not drop rows)", v.NumRows())
	}
}

func TestValidateMissingRequiredColumn(t *testing.T) {
	tbl := table.MustNew("UWI")
	tbl.MustAppendRow("100060600101W402")

	_, err := Validate(tbl, licensingContract())
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SchemaError", err)
	}
	if len(se.Violations) != 1 {
		t.Fatalf("violations = %v, want one", se.Violations)
	}
	if se.Violations[0].Column != "Licence" || se.Violations[0].Kind != ViolationMissing {
		t.Errorf("violation = %+v", se.Violations[0])
	}
}

func TestValidateOptionalColumnMayBeAbsent(t *testing.T) {
	tbl := table.MustNew("UWI", "Licence")
	tbl.MustAppendRow("100060600101W402", "0489769")

	if _, err := Validate(tbl, licensingContract()); err != nil {
		t.Fatalf("optional columns absent should validate: %v", err)
	}
}

func TestValidateWrongType(t *testing.T) {
	tbl := table.MustNew("UWI", "Licence", "Final Total Depth")
	tbl.MustAppendRow("100060600101W402", "0489769", nil)
	tbl.MustAppendRow("100060600202W402", "0489770", "deep")

	_, err := Validate(tbl, licensingContract())
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SchemaError", err)
	}
	v := se.Violations[0]
	if v.Column != "Final Total Depth" || v.Kind != ViolationWrongType {
		t.Errorf("violation = %+v", v)
	}
	if !strings.Contains(v.Detail, "row 1") {
		t.Errorf("detail should name the offending row: %q", v.Detail)
	}
}

func TestValidateIdentifierNullBudget(t *testing.T) {
	c := Contract{
		Source: "production",
		Fields: []Field{
			{Name: "UWI", Kind: KindIdentifier, Required: true, MaxNullFraction: 0.25},
		},
	}

	tbl := table.MustNew("UWI")
	tbl.MustAppendRow("a")
	tbl.MustAppendRow("b")
	tbl.MustAppendRow("c")
	tbl.MustAppendRow(nil)

	// 1 of 4 null: exactly at the ceiling, allowed.
	if _, err := Validate(tbl, c); err != nil {
		t.Fatalf("null fraction at ceiling should pass: %v", err)
	}

	tbl.MustAppendRow("")
	// 2 of 5 null: over the ceiling.
	_, err := Validate(tbl, c)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SchemaError", err)
	}
	if se.Violations[0].Kind != ViolationExcessNulls {
		t.Errorf("violation = %+v", se.Violations[0])
	}
}

func TestValidateZeroBudgetRejectsAnyNullIdentifier(t *testing.T) {
	c := Contract{
		Source: "drilling",
		Fields: []Field{{Name: "UWI", Kind: KindIdentifier, Required: true}},
	}
	tbl := table.MustNew("UWI")
	tbl.MustAppendRow("a")
	tbl.MustAppendRow(nil)

	if _, err := Validate(tbl, c); err == nil {
		t.Fatal("identifier null with zero budget should fail")
	}
}

func TestValidateCollectsAllViolations(t *testing.T) {
	tbl := table.MustNew("Final Total Depth")
	tbl.MustAppendRow("deep")

	_, err := Validate(tbl, licensingContract())
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *SchemaError", err)
	}
	// Both required identifiers missing plus the depth type violation.
	if len(se.Violations) != 3 {
		t.Errorf("violations = %d, want 3: %v", len(se.Violations), se.Violations)
	}
}

func TestValidateUnknownKind(t *testing.T) {
	c := Contract{
		Source: "licensing",
		Fields: []Field{{Name: "UWI", Kind: Kind("uuid"), Required: true}},
	}
	tbl := table.MustNew("UWI")
	if _, err := Validate(tbl, c); err == nil {
		t.Fatal("unknown contract kind should fail validation")
	}
}

func TestSchemaErrorMessage(t *testing.T) {
	err := &SchemaError{
		Source: "drilling",
		Violations: []Violation{
			{Column: "UWI", Kind: ViolationMissing, Detail: "required column not present"},
		},
	}
	msg := err.Error()
	for _, want := range []string{"drilling", "UWI", "missing"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}

func TestContractField(t *testing.T) {
	c := licensingContract()
	f, ok := c.Field("Licence")
	if !ok || f.Kind != KindIdentifier {
		t.Errorf("Field(Licence) = %+v, %v", f, ok)
	}
	if _, ok := c.Field("Nope"); ok {
		t.Error("Field(Nope) should not be found")
	}
}
