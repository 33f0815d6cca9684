package repositories

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

// errNoScope is returned when a repository method is called without a
// database scope in the context.
var errNoScope = errors.New("no database scope in context")

// nullString returns nil if the string is empty, otherwise returns the string pointer.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// jsonbValue converts a value to JSONB format for database insertion.
// Returns nil for empty slices and params so NULL is stored.
func jsonbValue(v any) any {
	switch val := v.(type) {
	case []float64:
		if len(val) == 0 {
			return nil
		}
		return val
	case models.DistParams:
		if val.IsEmpty() {
			return nil
		}
		return val
	default:
		return v
	}
}

// decodeDistParams reads an indicator's dist_params column.
// Malformed blobs are treated as absent.
func decodeDistParams(raw []byte) models.DistParams {
	var p models.DistParams
	if !jsonutil.DecodeLenient(raw, &p) {
		return models.DistParams{}
	}
	return p
}

func mustJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSONB value: %w", err)
	}
	return b, nil
}
