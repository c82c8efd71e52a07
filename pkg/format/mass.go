package format

import (
	"math"
	"strconv"
	"strings"
)

// Mass renders a mass in kg with up to three decimals and thousands
// separators, trimming trailing zeros (e.g., "1,234.5 kg").
func Mass(kg float64) string {
	if math.Abs(kg) < 5e-4 {
		kg = 0
	}
	formatted := strconv.FormatFloat(math.Abs(kg), 'f', 3, 64)
	formatted = strings.TrimRight(strings.TrimRight(formatted, "0"), ".")
	formatted = groupThousands(formatted)
	if kg < 0 {
		formatted = "-" + formatted
	}
	return formatted + " kg"
}
