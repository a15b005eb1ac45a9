package domain

import "errors"

var (
	ErrInvalidDirection       = errors.New("invalid direction")
	ErrInvalidCount           = errors.New("invalid count")
	ErrDuplicatePeriodicCheck = errors.New("periodic check already recorded for this time label")
	ErrChecklistNotFound      = errors.New("checklist not found")
	ErrChecklistItemNotFound  = errors.New("checklist item not found")
	ErrEjectionNotFound       = errors.New("ejection not found")
	ErrPeriodicNotFound       = errors.New("periodic check not found")
	ErrSessionNotFound        = errors.New("session not found")
	ErrAlertNotFound          = errors.New("alert not found")
	ErrInvalidAlertType       = errors.New("invalid alert type")
	ErrNotReady               = errors.New("venue context not ready")
	ErrTornDown               = errors.New("sync engine torn down")
	ErrInvalidID              = errors.New("invalid id")
)
