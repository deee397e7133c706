package rules

import (
	"fmt"
	"math"
	"strings"
)

// siPrefixes maps magnitude thresholds to engineering display prefixes.
var siPrefixes = []struct {
	factor float64
	letter string
}{
	{1e12, "T"},
	{1e9, "G"},
	{1e6, "M"},
	{1e3, "k"},
	{1, ""},
	{1e-3, "m"},
	{1e-6, "µ"},
	{1e-9, "n"},
	{1e-12, "p"},
}

// FormatReading renders a number for the multimeter's 7-segment screen:
// magnitudes below 1e-12 collapse to exactly 0, the value gets an
// engineering-prefix suffix with lower-case "k" normalized to "K", and the
// text is left-padded with spaces until its digit content (the decimal point
// is printed on the previous segment and does not count) occupies exactly 5
// characters.
func FormatReading(number float64) string {
	if math.Abs(number) < 1.0e-12 {
		number = 0.0
	}

	// The first pass fixes the prefix and the integer-digit count; the
	// second trims the precision so that digits plus prefix fill the screen.
	text := toPowerPrefix(number, 6)
	indexPoint := strings.Index(text, ".")
	text = toPowerPrefix(number, 4-indexPoint)
	text = strings.ReplaceAll(text, "k", "K")
	return padReading(text)
}

func padReading(text string) string {
	width := len([]rune(strings.ReplaceAll(text, ".", "")))
	if width < 5 {
		text = strings.Repeat(" ", 5-width) + text
	}
	return text
}

// toPowerPrefix formats the value as mantissa plus engineering prefix with
// the given number of decimals.
func toPowerPrefix(value float64, precision int) string {
	if precision < 0 {
		precision = 0
	}

	abs := math.Abs(value)
	for _, p := range siPrefixes {
		if abs >= p.factor {
			return fmt.Sprintf("%.*f%s", precision, value/p.factor, p.letter)
		}
	}
	return fmt.Sprintf("%.*f", precision, value)
}
