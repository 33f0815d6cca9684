package models

import "time"

// Mission is the plan or operation whose risk is being quantified.
// Every other risk record is scoped to a mission.
type Mission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
