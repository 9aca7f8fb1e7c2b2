package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested document does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a document with the same id already exists.
	ErrDuplicate = errors.New("persistence: duplicate document")
	// ErrInvalidDocument is returned when stored fields cannot be decoded into a record.
	ErrInvalidDocument = errors.New("persistence: invalid document")
)
