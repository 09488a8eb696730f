package utils

import (
	"math"
	"strconv"
)

var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// FormatBytes renders a byte count in IEC units with the given number of
// decimals. Zero and negative inputs render as "0 B".
func FormatBytes(bytes float64, precision int) string {
	if bytes <= 0 || math.IsNaN(bytes) {
		return "0 B"
	}
	if precision < 0 {
		precision = 0
	}

	value := bytes
	i := 0
	for value >= 1024 && i < len(byteUnits)-1 {
		value /= 1024
		i++
	}
	return strconv.FormatFloat(value, 'f', precision, 64) + " " + byteUnits[i]
}

// FormatPercent renders part/total as a percentage with the given decimals.
// A zero total yields zeroText.
func FormatPercent(part, total float64, precision int, zeroText string) string {
	if total == 0 {
		return zeroText
	}
	return strconv.FormatFloat(part/total*100, 'f', precision, 64) + "%"
}

// Percent returns part/total*100, or 0 when total is zero.
func Percent(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
