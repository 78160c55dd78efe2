package service

import "errors"

var (
	// ErrNotStarted is returned when data is requested before Start.
	ErrNotStarted = errors.New("service not started")
	// ErrNotFitted is returned when a prediction is requested before Fit.
	ErrNotFitted = errors.New("no fitted model")
	// ErrInvalidSelection is returned when a file outside the discovered list is selected.
	ErrInvalidSelection = errors.New("invalid selection")
	// ErrNoSelection is returned when the explorer has nothing selected.
	ErrNoSelection = errors.New("no file selected")
	// ErrInvalidRange is returned for an unknown series window.
	ErrInvalidRange = errors.New("invalid range")
)
