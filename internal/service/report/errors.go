package report

import "errors"

// Sentinel errors for the report service layer.
var (
	ErrNotFound     = errors.New("report not found")
	ErrEmptyReport  = errors.New("report has no records")
	ErrInvalidInput = errors.New("invalid report input")
)
