package chart

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Formatter renders a value for a label.
type Formatter func(v float64) string

// Percent formats v as a one-decimal percentage.
func Percent(v float64) string { return fmt.Sprintf("%.1f%%", v) }

// Bytes formats v as IEC bytes.
func Bytes(v float64) string {
	if v <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(v))
}

// ByteRate formats v as IEC bytes per second.
func ByteRate(v float64) string { return Bytes(v) + "/s" }

// Number formats v with at most one decimal.
func Number(v float64) string { return humanize.FtoaWithDigits(v, 1) }
