package wells

import (
	"testing"

	"wellnorm/internal/table"
)

func TestStandardizeLicensingLicence(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"W 0123456", "0123456"},
		{"W 0489769 ", "0489769"},
		{"AB12345", "12345"},
		{"W ", ""},
		{"", ""},
		{"X", "X"},
	}
	for _, c := range cases {
		if got := StandardizeLicensingLicence(c.in); got != c.want {
			t.Errorf("StandardizeLicensingLicence(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestStandardizeDrillingLicence(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{" 0123456 ", "0123456"},
		{"0489769", "0489769"},
		{"   ", ""},
	}
	for _, c := range cases {
		if got := StandardizeDrillingLicence(c.in); got != c.want {
			t.Errorf("StandardizeDrillingLicence(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDisplayToProductionID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"00/06-06-001-01W4/2", "100060600101W402"},
		{"00/06-06-001-01W4/0", "100060600101W400"},
		{"00/05-05-001-01W4/0", "100050500101W400"},
		// Already in production form: pass through after stripping.
		{"100060600101W402", "100060600101W402"},
		// Malformed values come back unchanged.
		{"", ""},
		{"///", "///"},
	}
	for _, c := range cases {
		if got := DisplayToProductionID(c.in); got != c.want {
			t.Errorf("DisplayToProductionID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func productionExtract(t *testing.T) *table.Table {
	t.Helper()
	tbl := table.MustNew(
		"FromToIDType", "FromToIDIdentifier", "ProductID", "ActivityID", "Volume", "ProductionMonth",
	)
	// Well A produces both products, split over two OIL entries.
	tbl.MustAppendRow("WI", "100060600101W402", "OIL", "PROD", 10.5, "2025-06")
	tbl.MustAppendRow("WI", "100060600101W402", "OIL", "PROD", 4.5, "2025-06")
	tbl.MustAppendRow("WI", "100060600101W402", "GAS", "PROD", 200.0, "2025-06")
	// Well B is gas only.
	tbl.MustAppendRow("WI", "100060600202W402", "GAS", "PROD", 75.0, "2025-05")
	// Rows that must be filtered out.
	tbl.MustAppendRow("BT", "ABBT0012345", "GAS", "PROD", 999.0, "2025-06")
	tbl.MustAppendRow("WI", "100060600303W402", "WATER", "PROD", 50.0, "2025-06")
	tbl.MustAppendRow("WI", "100060600303W402", "OIL", "INJ", 12.0, "2025-06")
	return tbl
}

func TestPrepareProduction(t *testing.T) {
	got, err := PrepareProduction(productionExtract(t))
	if err != nil {
		t.Fatalf("PrepareProduction: %v", err)
	}

	if got.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", got.NumRows())
	}

	oil, err := got.Value(0, ColOilVolume)
	if err != nil {
		t.Fatal(err)
	}
	if oil != 15.0 {
		t.Errorf("well A oil volume = %v, want 15", oil)
	}
	gas, _ := got.Value(0, ColGasVolume)
	if gas != 200.0 {
		t.Errorf("well A gas volume = %v, want 200", gas)
	}

	// Well B never reported oil: the column must stay null, not zero.
	bOil, _ := got.Value(1, ColOilVolume)
	if !table.IsNull(bOil) {
		t.Errorf("well B oil volume = %v, want null", bOil)
	}
	bGas, _ := got.Value(1, ColGasVolume)
	if bGas != 75.0 {
		t.Errorf("well B gas volume = %v, want 75", bGas)
	}

	// Every row carries the extract's latest month.
	for i := 0; i < got.NumRows(); i++ {
		m, _ := got.Value(i, ColProdMonth)
		if m != "2025-06" {
			t.Errorf("row %d production month = %v, want 2025-06", i, m)
		}
	}
}

func TestPrepareProductionMissingColumn(t *testing.T) {
	tbl := table.MustNew("FromToIDType", "ProductID")
	if _, err := PrepareProduction(tbl); err == nil {
		t.Fatal("expected error for missing columns, got nil")
	}
}
