// Path: internal/scrape/number.go
package scrape

import (
	"math"
	"strconv"
	"strings"
)

// NormalizeCount parses a locale-formatted count such as "5,992,905", "650K"
// or "1.2M" into a non-negative integer. Empty or unparseable input yields 0;
// it never fails.
func NormalizeCount(text string) int64 {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return 0
	}

	// Thousands separators: commas and spaces.
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	multiplier := float64(1)
	switch {
	case strings.HasSuffix(cleaned, "M"):
		multiplier = 1_000_000
		cleaned = strings.TrimSuffix(cleaned, "M")
	case strings.HasSuffix(cleaned, "K"):
		multiplier = 1_000
		cleaned = strings.TrimSuffix(cleaned, "K")
	}

	num, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || num < 0 {
		return 0
	}
	return int64(math.Round(num * multiplier))
}

// NormalizeSignedDelta parses a signed change value such as "+1.2M" or
// "-994,294". It returns nil for an empty string, a bare dash, or a literal
// "0" placeholder, all of which the source uses to mean "no change".
func NormalizeSignedDelta(text string) *int64 {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" || cleaned == "0" || cleaned == "-" {
		return nil
	}

	negative := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimLeft(cleaned, "+-")

	value := NormalizeCount(cleaned)
	if negative {
		value = -value
	}
	return &value
}
