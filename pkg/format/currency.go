// Package format renders numbers for human-readable output.
package format

import (
	"fmt"
	"math"
	"strings"
)

// Currency renders a cost with a dollar sign, two decimals and thousands
// separators (e.g., "-$1,234.56").
func Currency(amount float64) string {
	formatted := groupThousands(fmt.Sprintf("%.2f", math.Abs(amount)))
	if amount < 0 {
		return "-$" + formatted
	}
	return "$" + formatted
}

// groupThousands inserts separators into the integer part of a formatted
// positive number.
func groupThousands(formatted string) string {
	parts := strings.SplitN(formatted, ".", 2)
	intPart := parts[0]

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	if len(parts) == 2 {
		return intPart + "." + parts[1]
	}
	return intPart
}
