package models

// FMEAItem is one failure mode row of a failure mode and effects analysis.
// Severity, Occurrence and Detection are each rated 1-10.
type FMEAItem struct {
	ID          int64  `json:"id"`
	MissionID   int64  `json:"mission_id"`
	System      string `json:"system"`
	FailureMode string `json:"failure_mode"`
	Effect      string `json:"effect,omitempty"`
	Cause       string `json:"cause,omitempty"`
	Control     string `json:"control,omitempty"`
	Severity    int    `json:"severity"`
	Occurrence  int    `json:"occurrence"`
	Detection   int    `json:"detection"`
}

// RPN returns the risk priority number S x O x D.
func (i *FMEAItem) RPN() int {
	return i.Severity * i.Occurrence * i.Detection
}
