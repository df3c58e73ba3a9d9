// Package valueparse parses compact magnitude strings such as "$6.87K".
package valueparse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var magnitudeRe = regexp.MustCompile(`^([+-]?(?:[0-9]+(?:\.[0-9]*)?|\.[0-9]+))([KkMmBb])?$`)

var stripper = strings.NewReplacer("$", "", ",", "")

// Parse converts a magnitude string to a number. "$6.87K" is 6870 and
// "$3.57M" is 3570000. Input that does not parse yields 0, which callers
// must read as "could not size" rather than "size is zero".
func Parse(s string) float64 {
	cleaned := strings.TrimSpace(stripper.Replace(strings.TrimSpace(s)))
	m := magnitudeRe.FindStringSubmatch(cleaned)
	if m == nil {
		return 0
	}

	d, err := decimal.NewFromString(strings.TrimSuffix(m[1], "."))
	if err != nil {
		return 0
	}

	switch strings.ToUpper(m[2]) {
	case "K":
		d = d.Shift(3)
	case "M":
		d = d.Shift(6)
	case "B":
		d = d.Shift(9)
	}

	return d.InexactFloat64()
}

// ParseCount parses an integer count that may contain thousands separators.
func ParseCount(s string) (int, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, false
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
