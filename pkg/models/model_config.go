package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ModelConfig is a stored parameter preset for one analytical model.
type ModelConfig struct {
	ModelID   string         `json:"model_id"`
	Enabled   bool           `json:"enabled"`
	Params    map[string]any `json:"params"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ResultSnapshot persists the outcome of one or more model runs for a mission.
type ResultSnapshot struct {
	ID        int64           `json:"id"`
	MissionID int64           `json:"mission_id"`
	RunID     uuid.UUID       `json:"run_id"`
	ModelIDs  []string        `json:"model_ids"`
	Results   json.RawMessage `json:"results"`
	CreatedAt time.Time       `json:"created_at"`
}
