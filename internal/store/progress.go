package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// MarkProgress records completion of a chapter (empty subchapterID) or a
// subchapter and stamps last_read with the current time.
func (s *Store) MarkProgress(ctx context.Context, courseID, chapterID, subchapterID string, completed bool) (*Progress, error) {
	p := &Progress{
		ID:           ProgressKey(courseID, chapterID, subchapterID),
		CourseID:     courseID,
		ChapterID:    chapterID,
		SubchapterID: subchapterID,
		Completed:    completed,
		LastRead:     time.Now().UTC(),
	}
	if err := s.PutProgress(ctx, p); err != nil {
		return nil, err
	}
	return s.GetProgress(ctx, p.ID)
}

// TouchLastRead updates last_read, creating an incomplete record when none
// exists. An existing completion flag is kept.
func (s *Store) TouchLastRead(ctx context.Context, courseID, chapterID, subchapterID string) error {
	if courseID == "" || chapterID == "" {
		return fmt.Errorf("course and chapter are required")
	}

	query := `
	INSERT INTO progress (id, course_id, chapter_id, subchapter_id, completed, last_read)
	VALUES (?, ?, ?, ?, 0, ?)
	ON CONFLICT(course_id, chapter_id, subchapter_id) DO UPDATE SET last_read = excluded.last_read
	`
	key := ProgressKey(courseID, chapterID, subchapterID)
	_, err := s.conn.ExecContext(ctx, query,
		key, courseID, chapterID, subchapterID, formatTime(time.Now()))
	if err != nil {
		return keyError(TableProgress, key, err)
	}

	s.notify(ChangeEvent{Table: TableProgress, CourseID: courseID, Op: OpUpsert})
	return nil
}

// PutProgress writes a progress record as given. Used by MarkProgress and
// by backup import. Records are matched on course, chapter and subchapter;
// a record whose id belongs to another target fails with ErrKeyCollision.
func (s *Store) PutProgress(ctx context.Context, p *Progress) error {
	if p.CourseID == "" || p.ChapterID == "" {
		return fmt.Errorf("course and chapter are required")
	}
	if p.ID == "" {
		p.ID = ProgressKey(p.CourseID, p.ChapterID, p.SubchapterID)
	}
	if p.LastRead.IsZero() {
		p.LastRead = time.Now().UTC()
	}

	query := `
	INSERT INTO progress (id, course_id, chapter_id, subchapter_id, completed, last_read)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(course_id, chapter_id, subchapter_id) DO UPDATE SET
		completed = excluded.completed,
		last_read = excluded.last_read
	`
	_, err := s.conn.ExecContext(ctx, query,
		p.ID, p.CourseID, p.ChapterID, p.SubchapterID, p.Completed, formatTime(p.LastRead))
	if err != nil {
		return keyError(TableProgress, p.ID, err)
	}

	s.notify(ChangeEvent{Table: TableProgress, CourseID: p.CourseID, Op: OpUpsert})
	return nil
}

// DeleteProgress removes one progress record.
func (s *Store) DeleteProgress(ctx context.Context, id string) error {
	var courseID string
	err := s.conn.QueryRowContext(ctx, `SELECT course_id FROM progress WHERE id = ?`, id).Scan(&courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("progress %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up progress %s: %w", id, err)
	}

	if _, err := s.conn.ExecContext(ctx, `DELETE FROM progress WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete progress %s: %w", id, err)
	}

	s.notify(ChangeEvent{Table: TableProgress, CourseID: courseID, Op: OpDelete})
	return nil
}

// progressSelect computes the orphan flag against the current content.
const progressSelect = `
	SELECT p.id, p.course_id, p.chapter_id, p.subchapter_id, p.completed, p.last_read,
	       CASE WHEN p.subchapter_id = '' THEN c.id IS NULL ELSE s.id IS NULL END AS orphaned
	FROM progress p
	LEFT JOIN chapters c
	       ON c.course_id = p.course_id AND c.chapter_id = p.chapter_id
	LEFT JOIN subchapters s
	       ON s.course_id = p.course_id AND s.chapter_id = p.chapter_id
	      AND s.subchapter_id = p.subchapter_id
`

// GetProgress returns one progress record by id.
func (s *Store) GetProgress(ctx context.Context, id string) (*Progress, error) {
	rows, err := s.conn.QueryContext(ctx, progressSelect+` WHERE p.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	list, err := scanProgress(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("progress %s: %w", id, ErrNotFound)
	}
	return list[0], nil
}

// ProgressFilter narrows ListProgress.
type ProgressFilter struct {
	// CourseID limits results to one course (empty = all).
	CourseID string
	// Since keeps records read at or after this time (zero = no limit).
	Since time.Time
	// OrphanedOnly keeps records whose target no longer exists.
	OrphanedOnly bool
}

// ListProgress returns progress records, most recently read first.
func (s *Store) ListProgress(ctx context.Context, filter ProgressFilter) ([]*Progress, error) {
	var conditions []string
	var args []any

	if filter.CourseID != "" {
		conditions = append(conditions, "p.course_id = ?")
		args = append(args, filter.CourseID)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "p.last_read >= ?")
		args = append(args, formatTime(filter.Since))
	}

	query := progressSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query = "SELECT * FROM (" + query + ")"
	if filter.OrphanedOnly {
		query += " WHERE orphaned = 1"
	}
	query += " ORDER BY last_read DESC, id ASC"

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	defer rows.Close()

	return scanProgress(rows)
}

func scanProgress(rows *sql.Rows) ([]*Progress, error) {
	var list []*Progress
	for rows.Next() {
		var p Progress
		var lastRead string
		if err := rows.Scan(&p.ID, &p.CourseID, &p.ChapterID, &p.SubchapterID,
			&p.Completed, &lastRead, &p.Orphaned); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		p.LastRead = parseTime(lastRead)
		list = append(list, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress: %w", err)
	}
	return list, nil
}
