package util

import (
	"strconv"
	"time"
)

const (
	// TradingDateLayout is the compact date form used in storage and query params.
	TradingDateLayout = "20060102"
	// DateLabelLayout is the display form of a trading date.
	DateLabelLayout = "2006-01-02"
)

// ParseTradingDate parses YYYYMMDD. Returns (t, true) if it is a real calendar date.
func ParseTradingDate(s string) (time.Time, bool) {
	if len(s) != len(TradingDateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(TradingDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IsTradingDate reports whether s is a well-formed YYYYMMDD date.
func IsTradingDate(s string) bool {
	_, ok := ParseTradingDate(s)
	return ok
}

// FormatTradingDate renders t as YYYYMMDD.
func FormatTradingDate(t time.Time) string {
	return t.Format(TradingDateLayout)
}

// TradingDateValue converts YYYYMMDD to its integer form, e.g. 20260114.
func TradingDateValue(s string) (int, bool) {
	if !IsTradingDate(s) {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DateLabel converts an integer trading date into "YYYY-MM-DD".
// Returns "" when v is not a valid date.
func DateLabel(v int) string {
	t, ok := ParseTradingDate(strconv.Itoa(v))
	if !ok {
		return ""
	}
	return t.Format(DateLabelLayout)
}
