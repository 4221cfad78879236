package output

import "github.com/Textcat/dcf-valuation/pkg/decimal"

// roundMoney wraps a float64 in Money for display-grade rounding at the
// output boundary only. The numeric kernel itself never imports decimal
// — see DESIGN.md.
func roundMoney(v float64) string {
	return decimal.NewMoney(v).Round().String()
}
