package wells

import (
	"fmt"

	"wellnorm/internal/table"
)

// Column names in the raw monthly production extract.
const (
	colIDType     = "FromToIDType"
	colIdentifier = "FromToIDIdentifier"
	colProduct    = "ProductID"
	colActivity   = "ActivityID"
	colVolume     = "Volume"
	colMonth      = "ProductionMonth"
)

// Output column names after the pivot.
const (
	ColUWI       = "UWI"
	ColOilVolume = "Latest Month OIL Production Volume"
	ColGasVolume = "Latest Month GAS Production Volume"
	ColProdMonth = "Production Month"
)

// PrepareProduction reduces the raw monthly production extract to one row per
// well: it keeps only well-level production volumes (FromToIDType "WI",
// ActivityID "PROD", ProductID "OIL" or "GAS"), sums duplicate entries, and
// pivots the products into separate volume columns. Every output row also
// carries the extract's latest production month.
//
// Wells with rows for only one product get a null in the other volume column,
// never a zero.
func PrepareProduction(t *table.Table) (*table.Table, error) {
	for _, c := range []string{colIDType, colIdentifier, colProduct, colActivity, colVolume, colMonth} {
		if !t.HasColumn(c) {
			return nil, fmt.Errorf("wells: production extract missing column %q", c)
		}
	}

	type volumes struct {
		oil, gas         float64
		haveOil, haveGas bool
	}

	byWell := make(map[string]*volumes)
	var order []string
	latestMonth := ""

	for i := 0; i < t.NumRows(); i++ {
		idType, _ := t.Value(i, colIDType)
		activity, _ := t.Value(i, colActivity)
		product, _ := t.Value(i, colProduct)
		if table.CellString(idType) != "WI" || table.CellString(activity) != "PROD" {
			continue
		}
		prod := table.CellString(product)
		if prod != "OIL" && prod != "GAS" {
			continue
		}

		id, _ := t.Value(i, colIdentifier)
		if table.IsNull(id) {
			continue
		}
		uwi := table.CellString(id)

		if m, _ := t.Value(i, colMonth); !table.IsNull(m) {
			if s := table.CellString(m); s > latestMonth {
				latestMonth = s
			}
		}

		v, _ := t.Value(i, colVolume)
		if table.IsNull(v) {
			continue
		}
		vol, ok := v.(float64)
		if !ok {
			return nil, fmt.Errorf("wells: production row %d has non-numeric volume %T", i, v)
		}

		w := byWell[uwi]
		if w == nil {
			w = &volumes{}
			byWell[uwi] = w
			order = append(order, uwi)
		}
		if prod == "OIL" {
			w.oil += vol
			w.haveOil = true
		} else {
			w.gas += vol
			w.haveGas = true
		}
	}

	out, err := table.New(ColUWI, ColOilVolume, ColGasVolume, ColProdMonth)
	if err != nil {
		return nil, err
	}
	for _, uwi := range order {
		w := byWell[uwi]
		var oil, gas any
		if w.haveOil {
			oil = w.oil
		}
		if w.haveGas {
			gas = w.gas
		}
		var month any
		if latestMonth != "" {
			month = latestMonth
		}
		if err := out.AppendRow(uwi, oil, gas, month); err != nil {
			return nil, err
		}
	}
	return out, nil
}
