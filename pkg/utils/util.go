package utils

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FlightCode joins carrier and number, or returns fallback when either is missing
func FlightCode(carrier, number, fallback string) string {
	if carrier == "" || number == "" {
		return fallback
	}
	return carrier + number
}

// Truncate cuts s to at most n bytes
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// NormalizeHeader lower-cases a CSV header and replaces spaces with underscores
func NormalizeHeader(header string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(header)), " ", "_")
}

// ParseDecimal reads a number that may carry a trailing % or thousands separators.
// ok is false for blank or non-numeric input.
func ParseDecimal(raw string) (float64, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, false
	}
	text = strings.NewReplacer("%", "", ",", "").Replace(text)
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseWhole reads an integer, accepting a float spelling such as "12.0"
func ParseWhole(raw string) (int, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return int(v), true
}

// StringifyData flattens a JSON object into the string map push payloads carry.
// Strings are kept as is, everything else is JSON encoded.
func StringifyData(data map[string]interface{}) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		default:
			b, err := json.Marshal(val)
			if err != nil {
				out[k] = fmt.Sprint(val)
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}
