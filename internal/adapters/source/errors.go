package source

import "errors"

var (
	// ErrNoFiles is returned when discovery finds no sample files.
	ErrNoFiles = errors.New("no sample files found")
	// ErrMissingColumns is returned when a header lacks a required column.
	ErrMissingColumns = errors.New("missing required columns")
)
