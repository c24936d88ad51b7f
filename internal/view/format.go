// Package view renders monitor samples as terminal tables.
package view

import (
	"fmt"
	"math"
	"strconv"
)

// FormatPercent renders a CPU percentage. Values under 1% keep only their
// first significant digit so tiny-but-nonzero consumers don't display as 0.
func FormatPercent(num float64) string {
	if num < 1.0 {
		return strconv.FormatFloat(roundToFirstNonZero(num), 'f', -1, 64) + "%"
	}
	return fmt.Sprintf("%.2f%%", num)
}

func roundToFirstNonZero(num float64) float64 {
	if num == 0.0 {
		return 0.0
	}
	multiplier := 1.0
	for num*multiplier < 1.0 {
		multiplier *= 10.0
	}
	return math.Round(num*multiplier) / multiplier
}
