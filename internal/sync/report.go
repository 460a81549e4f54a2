package sync

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Report summarizes one sync.
type Report struct {
	NewCoursesImported int             `json:"newCoursesImported"`
	CoursesUpdated     int             `json:"coursesUpdated"`
	CoursesSkipped     int             `json:"coursesSkipped"`
	Updates            []CourseUpdate  `json:"updates,omitempty"`
	Failures           []CourseFailure `json:"failures,omitempty"`
	Timestamp          time.Time       `json:"timestamp"`
	DurationMs         int64           `json:"durationMs"`
	Error              string          `json:"error,omitempty"`
	Suppressed         bool            `json:"suppressed,omitempty"`

	err error
}

// CourseUpdate records a version-triggered content replace.
type CourseUpdate struct {
	CourseID  string    `json:"courseId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Direction Direction `json:"direction"`
}

// CourseFailure records a course whose import was rolled back.
type CourseFailure struct {
	CourseID string `json:"courseId"`
	Error    string `json:"error"`

	err error
}

// Err returns the error carried by the report, or nil. It wraps
// catalog.ErrCatalogUnavailable, ErrSyncInProgress or ErrImportWriteFailure.
func (r *Report) Err() error {
	return r.err
}

// Changes is the number of courses whose rows were written.
func (r *Report) Changes() int {
	return r.NewCoursesImported + r.CoursesUpdated
}

// setError records the sync-level error.
func (r *Report) setError(err error) {
	r.err = err
	r.Error = err.Error()
}

// addFailure records a rolled-back course. The report error is rebuilt so
// Err always covers every failed course.
func (r *Report) addFailure(courseID string, err error) {
	err = fmt.Errorf("%w: course %s: %w", ErrImportWriteFailure, courseID, err)
	r.Failures = append(r.Failures, CourseFailure{CourseID: courseID, Error: err.Error(), err: err})

	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f.err
	}
	r.setError(errors.Join(errs...))
}

// String returns a one-line summary for logs.
func (r *Report) String() string {
	if r.Suppressed {
		return "sync suppressed: another sync is running"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "imported=%d updated=%d skipped=%d", r.NewCoursesImported, r.CoursesUpdated, r.CoursesSkipped)
	if len(r.Failures) > 0 {
		fmt.Fprintf(&b, " failed=%d", len(r.Failures))
	}
	fmt.Fprintf(&b, " (%dms)", r.DurationMs)
	if r.Error != "" && len(r.Failures) == 0 {
		fmt.Fprintf(&b, " error: %s", r.Error)
	}
	return b.String()
}
