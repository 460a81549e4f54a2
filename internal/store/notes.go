package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewNote is the input to CreateNote.
type NewNote struct {
	CourseID     string `json:"courseId"`
	ChapterID    string `json:"chapterId,omitempty"`
	SubchapterID string `json:"subchapterId,omitempty"`
	Title        string `json:"title"`
	Content      string `json:"content"`
}

// CreateNote stores a new note under a random UUID.
func (s *Store) CreateNote(ctx context.Context, in NewNote) (*Note, error) {
	if in.CourseID == "" {
		return nil, fmt.Errorf("course is required")
	}
	if in.SubchapterID != "" && in.ChapterID == "" {
		return nil, fmt.Errorf("subchapter %s needs a chapter", in.SubchapterID)
	}

	now := time.Now().UTC()
	n := &Note{
		ID:           uuid.NewString(),
		CourseID:     in.CourseID,
		ChapterID:    in.ChapterID,
		SubchapterID: in.SubchapterID,
		Title:        in.Title,
		Content:      in.Content,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.PutNote(ctx, n); err != nil {
		return nil, err
	}
	return s.GetNote(ctx, n.ID)
}

// PutNote writes a note as given, replacing any note with the same id.
func (s *Store) PutNote(ctx context.Context, n *Note) error {
	if n.ID == "" {
		return fmt.Errorf("note id is required")
	}
	if n.CourseID == "" {
		return fmt.Errorf("course is required")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}

	query := `
	INSERT INTO notes (id, course_id, chapter_id, subchapter_id, title, content, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		course_id = excluded.course_id,
		chapter_id = excluded.chapter_id,
		subchapter_id = excluded.subchapter_id,
		title = excluded.title,
		content = excluded.content,
		updated_at = excluded.updated_at
	`
	_, err := s.conn.ExecContext(ctx, query,
		n.ID, n.CourseID, nullString(n.ChapterID), nullString(n.SubchapterID),
		n.Title, n.Content, formatTime(n.CreatedAt), formatTime(n.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to write note %s: %w", n.ID, err)
	}

	s.notify(ChangeEvent{Table: TableNotes, CourseID: n.CourseID, Op: OpUpsert})
	return nil
}

// UpdateNote replaces the title and content of an existing note.
func (s *Store) UpdateNote(ctx context.Context, id, title, content string) (*Note, error) {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, updated_at = ? WHERE id = ?`,
		title, content, formatTime(time.Now()), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update note %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("note %s: %w", id, ErrNotFound)
	}

	note, err := s.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notify(ChangeEvent{Table: TableNotes, CourseID: note.CourseID, Op: OpUpsert})
	return note, nil
}

// DeleteNote removes one note.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	var courseID string
	err := s.conn.QueryRowContext(ctx, `SELECT course_id FROM notes WHERE id = ?`, id).Scan(&courseID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up note %s: %w", id, err)
	}

	if _, err := s.conn.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete note %s: %w", id, err)
	}

	s.notify(ChangeEvent{Table: TableNotes, CourseID: courseID, Op: OpDelete})
	return nil
}

// noteSelect computes the orphan flag: a course-level note is orphaned when
// the course is gone, a chapter note when the chapter is gone, and a
// subchapter note when the subchapter is gone.
const noteSelect = `
	SELECT n.id, n.course_id, COALESCE(n.chapter_id, ''), COALESCE(n.subchapter_id, ''),
	       n.title, n.content, n.created_at, n.updated_at,
	       CASE
	           WHEN n.chapter_id IS NULL THEN co.id IS NULL
	           WHEN n.subchapter_id IS NULL THEN c.id IS NULL
	           ELSE s.id IS NULL
	       END AS orphaned
	FROM notes n
	LEFT JOIN courses co ON co.id = n.course_id
	LEFT JOIN chapters c
	       ON c.course_id = n.course_id AND c.chapter_id = n.chapter_id
	LEFT JOIN subchapters s
	       ON s.course_id = n.course_id AND s.chapter_id = n.chapter_id
	      AND s.subchapter_id = n.subchapter_id
`

// GetNote returns one note by id.
func (s *Store) GetNote(ctx context.Context, id string) (*Note, error) {
	rows, err := s.conn.QueryContext(ctx, noteSelect+` WHERE n.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query note: %w", err)
	}
	defer rows.Close()

	notes, err := scanNotes(rows)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("note %s: %w", id, ErrNotFound)
	}
	return notes[0], nil
}

// NoteFilter narrows ListNotes.
type NoteFilter struct {
	CourseID  string    // empty = all courses
	ChapterID string    // empty = all chapters
	Since     time.Time // keep notes updated at or after (zero = no limit)
	Limit     int       // 0 = no limit
}

// ListNotes returns notes, most recently updated first.
func (s *Store) ListNotes(ctx context.Context, filter NoteFilter) ([]*Note, error) {
	var conditions []string
	var args []any

	if filter.CourseID != "" {
		conditions = append(conditions, "n.course_id = ?")
		args = append(args, filter.CourseID)
	}
	if filter.ChapterID != "" {
		conditions = append(conditions, "n.chapter_id = ?")
		args = append(args, filter.ChapterID)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "n.updated_at >= ?")
		args = append(args, formatTime(filter.Since))
	}

	query := noteSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY n.updated_at DESC, n.id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	return scanNotes(rows)
}

func scanNotes(rows *sql.Rows) ([]*Note, error) {
	var notes []*Note
	for rows.Next() {
		var n Note
		var createdAt, updatedAt string
		if err := rows.Scan(&n.ID, &n.CourseID, &n.ChapterID, &n.SubchapterID,
			&n.Title, &n.Content, &createdAt, &updatedAt, &n.Orphaned); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		n.CreatedAt = parseTime(createdAt)
		n.UpdatedAt = parseTime(updatedAt)
		notes = append(notes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notes: %w", err)
	}
	return notes, nil
}
