package jsonutil

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DecodeLenient unmarshals raw into dst and reports whether it succeeded.
// Empty, null and malformed input leave dst untouched and return false, so
// callers treat the value as absent instead of failing.
func DecodeLenient(raw []byte, dst any) bool {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return false
	}
	if err := json.Unmarshal([]byte(trimmed), dst); err != nil {
		return false
	}
	return true
}

// FlexibleFloat converts a json.RawMessage holding a number or a numeric
// string into a float64. Returns false for anything else.
func FlexibleFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return num, true
	}

	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err == nil {
			return f, true
		}
	}
	return 0, false
}

// FlexibleFloatSlice decodes a JSON array whose elements may be numbers or
// numeric strings. Elements that cannot be parsed are dropped; a malformed
// document yields nil.
func FlexibleFloatSlice(raw []byte) []float64 {
	var items []json.RawMessage
	if !DecodeLenient(raw, &items) {
		return nil
	}
	out := make([]float64, 0, len(items))
	for _, item := range items {
		if f, ok := FlexibleFloat(item); ok {
			out = append(out, f)
		}
	}
	return out
}

// FlexibleInt64Slice decodes a JSON array of ids, accepting numbers or
// numeric strings. Non-integral or unparsable elements are dropped.
func FlexibleInt64Slice(raw []byte) []int64 {
	floats := FlexibleFloatSlice(raw)
	if floats == nil {
		return nil
	}
	out := make([]int64, 0, len(floats))
	for _, f := range floats {
		if f == float64(int64(f)) {
			out = append(out, int64(f))
		}
	}
	return out
}
