package store

import (
	"context"
	"fmt"
)

// Stats holds row counts per table.
type Stats struct {
	Courses     int `json:"courses"`
	Parts       int `json:"parts"`
	Chapters    int `json:"chapters"`
	Subchapters int `json:"subchapters"`
	Progress    int `json:"progress"`
	Notes       int `json:"notes"`
}

// Stats returns the number of rows in every table.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	query := `
	SELECT
		(SELECT COUNT(*) FROM courses),
		(SELECT COUNT(*) FROM parts),
		(SELECT COUNT(*) FROM chapters),
		(SELECT COUNT(*) FROM subchapters),
		(SELECT COUNT(*) FROM progress),
		(SELECT COUNT(*) FROM notes)
	`
	err := s.conn.QueryRowContext(ctx, query).Scan(
		&st.Courses, &st.Parts, &st.Chapters, &st.Subchapters, &st.Progress, &st.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	return &st, nil
}

// Integrity reports rows that break a referential rule.
//
// Dangling content rows point at a missing course or chapter and indicate a
// bug. Orphaned progress and notes are expected after a course update
// removes chapters and are reported for information only.
type Integrity struct {
	DanglingParts       int `json:"danglingParts"`
	DanglingChapters    int `json:"danglingChapters"`
	DanglingSubchapters int `json:"danglingSubchapters"`
	OrphanedProgress    int `json:"orphanedProgress"`
	OrphanedNotes       int `json:"orphanedNotes"`
}

// OK reports whether no dangling content rows were found.
func (i *Integrity) OK() bool {
	return i.DanglingParts == 0 && i.DanglingChapters == 0 && i.DanglingSubchapters == 0
}

// CheckIntegrity counts dangling content rows and orphaned user rows.
func (s *Store) CheckIntegrity(ctx context.Context) (*Integrity, error) {
	var in Integrity
	query := `
	SELECT
		(SELECT COUNT(*) FROM parts p
		  WHERE NOT EXISTS (SELECT 1 FROM courses c WHERE c.id = p.course_id)),
		(SELECT COUNT(*) FROM chapters ch
		  WHERE NOT EXISTS (SELECT 1 FROM courses c WHERE c.id = ch.course_id)),
		(SELECT COUNT(*) FROM subchapters s
		  WHERE NOT EXISTS (SELECT 1 FROM chapters ch
		                     WHERE ch.course_id = s.course_id AND ch.chapter_id = s.chapter_id))
	`
	if err := s.conn.QueryRowContext(ctx, query).Scan(
		&in.DanglingParts, &in.DanglingChapters, &in.DanglingSubchapters); err != nil {
		return nil, fmt.Errorf("failed to check content integrity: %w", err)
	}

	orphanQuery := `
	SELECT
		(SELECT COUNT(*) FROM (` + progressSelect + `) WHERE orphaned = 1),
		(SELECT COUNT(*) FROM (` + noteSelect + `) WHERE orphaned = 1)
	`
	if err := s.conn.QueryRowContext(ctx, orphanQuery).Scan(&in.OrphanedProgress, &in.OrphanedNotes); err != nil {
		return nil, fmt.Errorf("failed to count orphaned rows: %w", err)
	}

	return &in, nil
}
