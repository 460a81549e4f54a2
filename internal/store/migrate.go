package store

import (
	"context"
	"fmt"
)

// migration upgrades the schema by one version. Statements run in order
// inside one transaction. Migrations only add: existing tables and columns
// are never dropped, renamed or given a new meaning.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "base tables",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS courses (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				version TEXT,  -- NULL = unversioned
				sort_order INTEGER NOT NULL DEFAULT 999,
				imported_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS chapters (
				id TEXT PRIMARY KEY,  -- courseId-chapterId
				course_id TEXT NOT NULL,
				chapter_id TEXT NOT NULL,
				title TEXT NOT NULL,
				content TEXT NOT NULL DEFAULT '',
				sort_order INTEGER NOT NULL DEFAULT 999,
				UNIQUE (course_id, chapter_id)
			)`,
			`CREATE TABLE IF NOT EXISTS subchapters (
				id TEXT PRIMARY KEY,  -- courseId-chapterId-subchapterId
				course_id TEXT NOT NULL,
				chapter_id TEXT NOT NULL,
				subchapter_id TEXT NOT NULL,
				title TEXT NOT NULL,
				content TEXT NOT NULL DEFAULT '',
				sort_order INTEGER NOT NULL DEFAULT 999,
				UNIQUE (course_id, chapter_id, subchapter_id)
			)`,
			`CREATE TABLE IF NOT EXISTS progress (
				id TEXT PRIMARY KEY,  -- courseId-chapterId[-subchapterId]
				course_id TEXT NOT NULL,
				chapter_id TEXT NOT NULL,
				subchapter_id TEXT NOT NULL DEFAULT '',
				completed INTEGER NOT NULL DEFAULT 0,
				last_read TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS notes (
				id TEXT PRIMARY KEY,  -- UUID
				course_id TEXT NOT NULL,
				chapter_id TEXT,
				subchapter_id TEXT,
				title TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
	{
		version: 2,
		name:    "parts",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS parts (
				id TEXT PRIMARY KEY,  -- courseId-partId
				course_id TEXT NOT NULL,
				part_id TEXT NOT NULL,
				title TEXT NOT NULL,
				sort_order INTEGER NOT NULL DEFAULT 999,
				UNIQUE (course_id, part_id)
			)`,
			`ALTER TABLE chapters ADD COLUMN part_id TEXT`,
		},
	},
	{
		version: 3,
		name:    "course metadata",
		stmts: []string{
			`ALTER TABLE courses ADD COLUMN author TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE courses ADD COLUMN tags TEXT NOT NULL DEFAULT '[]'`,
			`ALTER TABLE courses ADD COLUMN difficulty TEXT NOT NULL DEFAULT ''`,
			`ALTER TABLE courses ADD COLUMN estimated_hours REAL`,
			`ALTER TABLE courses ADD COLUMN prerequisites TEXT NOT NULL DEFAULT '[]'`,
		},
	},
	{
		version: 4,
		name:    "secondary indexes",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_parts_course ON parts(course_id, sort_order)`,
			`CREATE INDEX IF NOT EXISTS idx_chapters_course ON chapters(course_id, sort_order)`,
			`CREATE INDEX IF NOT EXISTS idx_subchapters_chapter ON subchapters(course_id, chapter_id, sort_order)`,
			`CREATE INDEX IF NOT EXISTS idx_progress_course ON progress(course_id, chapter_id)`,
			`CREATE INDEX IF NOT EXISTS idx_notes_course ON notes(course_id, updated_at)`,
		},
	},
	{
		version: 5,
		name:    "progress natural key",
		stmts: []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_progress_target ON progress(course_id, chapter_id, subchapter_id)`,
		},
	},
}

// LatestVersion is the schema version this build migrates to.
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}

// SchemaVersion returns the schema version recorded in the database.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// Migrate upgrades the schema to LatestVersion.
//
// This is idempotent - safe to call multiple times.
func (s *Store) Migrate() error {
	return s.MigrateContext(context.Background())
}

// MigrateContext upgrades the schema with context support.
func (s *Store) MigrateContext(ctx context.Context) error {
	return s.MigrateTo(ctx, LatestVersion())
}

// MigrateTo applies pending migrations up to and including target. It never
// downgrades.
func (s *Store) MigrateTo(ctx context.Context, target int) error {
	for _, m := range migrations {
		if m.version > target {
			break
		}
		if err := s.applyMigration(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

// applyMigration runs one migration unless the database is already past it.
// The version is re-read inside the transaction so two processes opening the
// same file do not both apply it.
func (s *Store) applyMigration(ctx context.Context, m migration) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
	}
	defer tx.Rollback()

	var current int
	if err := tx.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current >= m.version {
		return nil
	}
	if current != m.version-1 {
		return fmt.Errorf("schema version %d cannot be migrated to %d", current, m.version)
	}

	for _, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
	}

	// PRAGMA does not accept bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
		return fmt.Errorf("failed to record schema version %d: %w", m.version, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
	}

	s.logger.Printf("Applied schema migration %d (%s)", m.version, m.name)
	return nil
}
