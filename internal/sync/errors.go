package sync

import "errors"

// Common synchronization errors
var (
	// ErrMalformedRecord marks a record missing required fields or carrying
	// unparsable values. Batch imports record it per row instead of aborting.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrImportInProgress is returned when a batch import is already running.
	// Imports are serialized so per-record disambiguation sees earlier rows.
	ErrImportInProgress = errors.New("import already in progress")
)
