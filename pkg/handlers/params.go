package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"
)

// ParseMissionID extracts and validates the mission ID from the request path.
// Returns the ID and true on success, or 0 and false after writing a 400.
// Expects path parameter: mid
func ParseMissionID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	return parseID(w, r, "mid", "invalid_mission_id", "Invalid mission ID", logger)
}

// ParseDatasetID extracts and validates the dataset ID from the request path.
// Expects path parameter: did
func ParseDatasetID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	return parseID(w, r, "did", "invalid_dataset_id", "Invalid dataset ID", logger)
}

// parseID parses a positive integer path parameter.
func parseID(w http.ResponseWriter, r *http.Request, pathParam, errorCode, errorMessage string, logger *zap.Logger) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(pathParam), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, errorCode, errorMessage, logger)
		return 0, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter. Missing or malformed
// values yield def.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// queryBool reads an optional boolean query parameter.
func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
