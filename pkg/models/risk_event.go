package models

// RiskEvent is a hazard scored on the 5x5 likelihood/severity matrix.
type RiskEvent struct {
	ID          int64  `json:"id"`
	MissionID   int64  `json:"mission_id"`
	Name        string `json:"name"`
	HazardType  string `json:"hazard_type,omitempty"`
	Description string `json:"description,omitempty"`
	Likelihood  int    `json:"likelihood"` // L, 1-5
	Severity    int    `json:"severity"`   // S, 1-5
}

// RiskScore returns R = L x S.
func (e *RiskEvent) RiskScore() int {
	return e.Likelihood * e.Severity
}
