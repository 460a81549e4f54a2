// Package store is the local embedded replica of the course catalog plus the
// learner's own progress and notes.
//
// # Overview
//
// The store is a single SQLite database file opened in WAL mode so readers
// keep working while a sync writes. Six tables are kept:
//
//	courses      system-authored, one row per course id
//	parts        system-authored, id = courseId-partId
//	chapters     system-authored, id = courseId-chapterId
//	subchapters  system-authored, id = courseId-chapterId-subchapterId
//	progress     user-authored,   id = courseId-chapterId[-subchapterId]
//	notes        user-authored,   id = random UUID
//
// System-authored rows are written only through Tx, which upserts by
// natural key so replaying the same catalog never adds rows. User-authored
// rows are written only by the progress and note accessors, or removed by
// the explicit RemoveCourse cascade.
//
// # Schema Versions
//
// The schema version lives in PRAGMA user_version. Migrations are ordered
// and append-only; each one adds tables, columns or indexes and never drops
// or repurposes an existing field, so upgrading keeps every row.
//
// # Change Notifications
//
// Subscribe registers an observer that runs after every committed write with
// one ChangeEvent per touched table and course. Observers run on the writing
// goroutine and must not block.
//
// # Drivers
//
// The default driver is ncruces/go-sqlite3 (pure Go, WebAssembly build of
// SQLite). Building with -tags libsql also registers the embedded libSQL
// driver, selected with Options.Driver = "libsql".
package store
