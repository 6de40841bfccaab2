package entity

import "errors"

var (
	// ErrValidation marks a request that is missing or has malformed fields
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a referenced record that does not exist
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a journey changed between read and write
	ErrVersionConflict = errors.New("journey modified concurrently")
)
