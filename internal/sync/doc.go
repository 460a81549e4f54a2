// Package sync brings the local store's course content into agreement with
// the catalog while leaving the learner's progress and notes alone.
//
// # Overview
//
// One Sync call reads every available course from a catalog.Reader,
// compares each course's version with the version stored locally, and
// writes only what differs:
//
//	catalog.Reader ── ListAvailableCourses ──┐
//	                                         ↓
//	                          Classify (per course)
//	                      ┌──────────┼──────────────┐
//	                     New      Changed        Unchanged
//	                      │          │               │
//	                   import   delete content     skip
//	                      │      + import            │
//	                      └────┬─────┘               │
//	                     store transaction           │
//	                           ↓                     ↓
//	                         Report ◄────────────────┘
//
// A course whose catalog entry carries no version is imported once and then
// never updated automatically. Courses that disappear from the catalog are
// kept with all their rows.
//
// # Failures
//
// Sync never returns an error. A failed catalog fetch ends the sync with
// the store untouched and a report wrapping catalog.ErrCatalogUnavailable.
// Each course is written in its own transaction: when one course fails, its
// writes roll back, the failure is recorded in Report.Failures and the sync
// moves on to the next course.
//
// # Concurrency
//
// An Engine runs at most one sync at a time. A call made while a sync is
// running returns at once with Report.Suppressed set and
// ErrSyncInProgress. Status transitions (idle → syncing → settled) are
// published to subscribers:
//
//	engine := sync.New(reader, st, nil)
//	stop := engine.Subscribe(func(s sync.Status) {
//	    log.Printf("sync is %s", s.State)
//	})
//	defer stop()
//
//	report := engine.Sync(ctx)
//	fmt.Println(report)
package sync
