package part

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Engineering prefix multipliers. "meg" is accepted for SPICE-style input;
// for single letters the display convention applies: m is milli, M is mega.
var prefixMap = map[string]float64{
	"T":   1e12,
	"G":   1e9,
	"meg": 1e6,
	"M":   1e6,
	"K":   1e3,
	"k":   1e3,
	"m":   1e-3,
	"u":   1e-6,
	"µ": 1e-6,
	"n":   1e-9,
	"p":   1e-12,
}

var valueRe = regexp.MustCompile(`^([-+]?\d*\.?\d+(?:[eE][-+]?\d+)?)\s*(meg|[TGMKkmunp\x{00b5}])?`)

// ParseValue parses an engineering-prefixed number like "250m", "4.7K" or
// "1e-6". Trailing unit text after the prefix is ignored.
func ParseValue(val string) (float64, error) {
	matches := valueRe.FindStringSubmatch(strings.TrimSpace(val))
	if matches == nil {
		return 0, fmt.Errorf("part: invalid value format: %q", val)
	}

	num, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("part: invalid number in %q: %w", val, err)
	}

	if matches[2] != "" {
		num *= prefixMap[matches[2]]
	}
	return num, nil
}

// strips everything that is neither a digit, a decimal point nor an
// engineering prefix letter; best-effort cleanup for values whose unit
// symbol is not declared.
var nonValueRe = regexp.MustCompile(`[^pnu\x{00b5}mkKMGT\d.+-]`)

// MaxPropertyValue returns the numeric value of a part's named property,
// interpreting engineering prefixes. A missing or empty property means "no
// limit declared" and yields +Inf. When the property has a declared unit
// symbol the symbol is removed before parsing; otherwise all characters that
// cannot belong to a prefixed number are stripped first.
func MaxPropertyValue(p *Part, name string) float64 {
	raw := strings.TrimSpace(p.Property(name))
	if raw == "" {
		return math.Inf(1)
	}

	if symbol := p.PropertySymbol(name); symbol != "" {
		if idx := strings.LastIndex(strings.ToLower(raw), strings.ToLower(symbol)); idx >= 0 {
			raw = raw[:idx] + raw[idx+len(symbol):]
		}
	} else {
		raw = nonValueRe.ReplaceAllString(raw, "")
	}

	v, err := ParseValue(raw)
	if err != nil {
		return math.Inf(1)
	}
	return v
}
