package apperrors

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrInvalidInput   = errors.New("invalid input")
	ErrInvalidParams  = errors.New("invalid model parameters")
	ErrModelNotFound  = errors.New("model not found")
	ErrModelDisabled  = errors.New("model is disabled")
	ErrMissingMission = errors.New("mission_id is required")
)
