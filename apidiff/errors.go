package apidiff

import "errors"

// ErrNoData is returned when either snapshot has no captured responses.
var ErrNoData = errors.New("apidiff: snapshot has no responses")

// ErrNotFound is returned when a stored snapshot or run does not exist.
var ErrNotFound = errors.New("apidiff: not found")

// ErrInvalidInput is returned when a request fails validation.
var ErrInvalidInput = errors.New("apidiff: invalid input")
