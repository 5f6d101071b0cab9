package repository

import "errors"

// ErrNotFound is returned when a lookup has no result.
var ErrNotFound = errors.New("not found")
