package sync

import "errors"

// Sentinel errors carried by a Report. Check with errors.Is.
var (
	// ErrImportWriteFailure wraps the error of a course whose rows could not
	// be written. The course's transaction was rolled back.
	ErrImportWriteFailure = errors.New("import write failure")

	// ErrSyncInProgress is returned for a sync suppressed because another
	// one was running.
	ErrSyncInProgress = errors.New("sync already in progress")
)
