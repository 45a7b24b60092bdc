package normalize

import (
	"math"
	"strconv"
	"strings"
)

// ParseDecimal parses a human-entered number that may use Spanish formatting
// ("1.234,56"), English formatting ("1,234.56") or plain decimals. It returns
// nil for anything it cannot parse with certainty; a blank or garbled input
// must never silently become zero.
func ParseDecimal(s string) *float64 {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "€$")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return nil
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.234,56: dots are thousands separators.
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// 1,234.56: commas are thousands separators.
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ",") > 1:
		s = strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
