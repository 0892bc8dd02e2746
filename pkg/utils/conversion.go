package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToBool safely converts various types to boolean
// Handles bool, int, int64, float64, string ("1", "true", "yes", "on")
func ToBool(val interface{}) bool {
	if val == nil {
		return false
	}

	switch v := val.(type) {
	case bool:
		return v
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case []byte:
		return parseBoolString(string(v))
	case string:
		return parseBoolString(v)
	default:
		return parseBoolString(fmt.Sprintf("%v", v))
	}
}

func parseBoolString(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	if lower == "1" || lower == "yes" || lower == "on" {
		return true
	}
	b, err := strconv.ParseBool(lower)
	return err == nil && b
}

// ToFloat converts JSON-decoded numbers and numeric strings.
// ok is false for anything that is not a number.
func ToFloat(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

// ToInt64 is ToFloat truncated to an integer
func ToInt64(val interface{}) (int64, bool) {
	f, ok := ToFloat(val)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// ToString renders scalars as strings; nil becomes "".
func ToString(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToCents converts a currency amount to integer cents
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCents converts integer cents to a currency amount
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// Percentage returns round(part*100/whole); 0 when whole is not positive.
func Percentage(part, whole int64) int64 {
	if whole <= 0 {
		return 0
	}
	return int64(math.Round(float64(part) * 100 / float64(whole)))
}

// Growth returns the rounded percentage change from prev to cur; 0 when prev is 0.
func Growth(cur, prev int64) int64 {
	if prev == 0 {
		return 0
	}
	return int64(math.Round(float64(cur-prev) / float64(prev) * 100))
}
