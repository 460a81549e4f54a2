package catalog

import "errors"

// Errors returned by catalog readers.
//
// Check them with errors.Is:
//
//	if errors.Is(err, catalog.ErrCatalogUnavailable) {
//	    // keep serving the local replica
//	}
var (
	// ErrCatalogUnavailable is returned when the catalog could not be
	// produced at all: unreadable content root, network failure, non-2xx
	// response or an undecodable payload.
	ErrCatalogUnavailable = errors.New("catalog unavailable")

	// ErrInvalidCourse is returned by AvailableCourse.Validate.
	ErrInvalidCourse = errors.New("invalid course")

	// errNotACourse marks a directory that has no metadata file.
	errNotACourse = errors.New("not a course directory")
)
