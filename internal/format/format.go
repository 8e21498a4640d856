// Package format holds the display formatting shared by the KPI cards, the
// data table, the map popups and the export.
package format

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Currency renders an amount as "$1,234.56". Decimal math keeps the
// two-place rounding exact for values float64 represents inexactly.
func Currency(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	negative := d.IsNegative()
	if negative {
		d = d.Neg()
	}

	s := d.StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if negative {
		b.WriteString("-")
	}
	b.WriteString("$")
	b.WriteString(groupThousands(whole))
	b.WriteString(".")
	b.WriteString(frac)
	return b.String()
}

// Percent renders a rate as "12.5%".
func Percent(v float64) string {
	return decimal.NewFromFloat(v).Round(1).StringFixed(1) + "%"
}

// Int renders a count with thousands separators.
func Int(n int) string {
	s := strconv.Itoa(n)
	if n < 0 {
		return "-" + groupThousands(s[1:])
	}
	return groupThousands(s)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(",")
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
