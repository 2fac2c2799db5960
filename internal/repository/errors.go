package repository

import "errors"

// ErrNotFound is returned when a requested record does not exist in the database.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned by Subscribe on a store that has been shut down.
var ErrClosed = errors.New("store closed")
