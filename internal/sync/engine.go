package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	stdsync "sync"
	"time"

	"github.com/courseshelf/shelf/internal/catalog"
	"github.com/courseshelf/shelf/internal/store"
)

// Engine implements Syncer over a catalog.Reader and a store.Store.
type Engine struct {
	reader catalog.Reader
	store  *store.Store
	logger *log.Logger

	// running is held for the whole of a sync; TryLock gates re-entry.
	running stdsync.Mutex
	status  *coordinator
}

var _ Syncer = (*Engine)(nil)

// New creates an Engine.
//
// The store must already be migrated. If logger is nil, a default logger
// writing to stderr is used.
//
// Example:
//
//	st, err := store.Open(".shelf/shelf.db")
//	if err != nil {
//	    return err
//	}
//	engine := sync.New(catalog.NewFSReader("content", nil), st, nil)
//	report := engine.Sync(ctx)
func New(reader catalog.Reader, st *store.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Engine{
		reader: reader,
		store:  st,
		logger: logger,
		status: newCoordinator(),
	}
}

// Status implements Syncer.Status.
func (e *Engine) Status() Status {
	return e.status.get()
}

// Subscribe implements Syncer.Subscribe.
func (e *Engine) Subscribe(fn func(Status)) func() {
	return e.status.subscribe(fn)
}

// LastReport returns the most recent settled report, or nil before the
// first sync completes.
func (e *Engine) LastReport() *Report {
	return e.status.get().Report
}

// Sync implements Syncer.Sync.
func (e *Engine) Sync(ctx context.Context) *Report {
	if !e.running.TryLock() {
		report := &Report{Timestamp: time.Now().UTC(), Suppressed: true}
		report.setError(ErrSyncInProgress)
		e.logger.Printf("Sync suppressed: another sync is running")
		return report
	}
	defer e.running.Unlock()

	e.status.transition(StateSyncing, nil)

	start := time.Now()
	report := &Report{}
	e.run(ctx, report)
	report.Timestamp = time.Now().UTC()
	report.DurationMs = time.Since(start).Milliseconds()

	e.logger.Printf("Sync complete: %s", report)
	e.status.transition(StateSettled, report)
	return report
}

// run fills report. Any failure is recorded rather than returned.
func (e *Engine) run(ctx context.Context, report *Report) {
	courses, err := e.reader.ListAvailableCourses(ctx)
	if err != nil {
		if !errors.Is(err, catalog.ErrCatalogUnavailable) {
			err = fmt.Errorf("%w: %w", catalog.ErrCatalogUnavailable, err)
		}
		e.logger.Printf("WARNING: catalog fetch failed: %v", err)
		report.setError(err)
		return
	}

	versions, err := e.store.CourseVersions(ctx)
	if err != nil {
		report.setError(fmt.Errorf("failed to load stored courses: %w", err))
		return
	}

	// Writes run to completion once the catalog has been read.
	writeCtx := context.WithoutCancel(ctx)

	for i := range courses {
		course := &courses[i]
		stored, exists := versions[course.ID]

		decision := Classify(course, stored, exists)
		if decision == DecisionUnchanged {
			report.CoursesSkipped++
			continue
		}

		if err := e.importCourse(writeCtx, course, decision); err != nil {
			e.logger.Printf("WARNING: Failed to import course %s: %v", course.ID, err)
			report.addFailure(course.ID, err)
			continue
		}
		versions[course.ID] = course.Version

		switch decision {
		case DecisionNew:
			report.NewCoursesImported++
			e.logger.Printf("Imported course: %s (%s)", course.ID, course.Title)
		case DecisionChanged:
			report.CoursesUpdated++
			report.Updates = append(report.Updates, CourseUpdate{
				CourseID:  course.ID,
				From:      stored,
				To:        course.Version,
				Direction: VersionDirection(stored, course.Version),
			})
			e.logger.Printf("Updated course: %s (%s -> %s)", course.ID, displayVersion(stored), course.Version)
		}
	}
}

// importCourse writes one course in its own transaction. For a changed
// course the old parts, chapters and subchapters are removed first; the
// course row is updated in place.
func (e *Engine) importCourse(ctx context.Context, course *catalog.AvailableCourse, decision Decision) error {
	if err := course.Validate(); err != nil {
		return err
	}

	return e.store.WithTx(ctx, func(tx *store.Tx) error {
		if decision == DecisionChanged {
			if err := tx.DeleteCourseContent(course.ID); err != nil {
				return err
			}
		}
		return tx.PutCourseTree(course)
	})
}

func displayVersion(v string) string {
	if v == "" {
		return "unversioned"
	}
	return v
}
