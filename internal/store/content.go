package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/courseshelf/shelf/internal/catalog"
)

// Tx is a write transaction over the system-authored tables.
//
// Obtain one with Store.WithTx. Change events collected by the transaction
// are delivered only after it commits.
type Tx struct {
	ctx    context.Context
	tx     *sql.Tx
	now    time.Time
	events eventSet
}

// WithTx runs fn in a single write transaction. The transaction commits when
// fn returns nil and rolls back otherwise; either way nothing is partially
// visible to readers.
//
// Example:
//
//	err := st.WithTx(ctx, func(tx *store.Tx) error {
//	    if err := tx.DeleteCourseContent(course.ID); err != nil {
//	        return err
//	    }
//	    return tx.PutCourseTree(&course)
//	})
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	tx := &Tx{ctx: ctx, tx: sqlTx, now: time.Now().UTC()}
	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.Printf("Warning: rollback failed: %v", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.notify(tx.events.events...)
	return nil
}

// UpsertCourse inserts the course row or updates it in place. The
// imported_at timestamp of an existing row is kept.
func (tx *Tx) UpsertCourse(c *catalog.AvailableCourse) error {
	query := `
	INSERT INTO courses (
		id, title, description, author, version, sort_order,
		tags, difficulty, estimated_hours, prerequisites,
		imported_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		author = excluded.author,
		version = excluded.version,
		sort_order = excluded.sort_order,
		tags = excluded.tags,
		difficulty = excluded.difficulty,
		estimated_hours = excluded.estimated_hours,
		prerequisites = excluded.prerequisites,
		updated_at = excluded.updated_at
	`

	now := formatTime(tx.now)
	_, err := tx.tx.ExecContext(tx.ctx, query,
		c.ID,
		c.Title,
		c.Description,
		c.Author,
		nullString(c.Version),
		catalog.OrderOf(c.Order),
		marshalList(c.Tags),
		c.Difficulty,
		nullFloat(c.EstimatedHours),
		marshalList(c.Prerequisites),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert course %s: %w", c.ID, err)
	}

	tx.events.add(TableCourses, c.ID, OpUpsert)
	return nil
}

// UpsertPart inserts or updates a part of courseID.
func (tx *Tx) UpsertPart(courseID string, p catalog.Part) error {
	query := `
	INSERT INTO parts (id, course_id, part_id, title, sort_order)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(course_id, part_id) DO UPDATE SET
		title = excluded.title,
		sort_order = excluded.sort_order
	`

	_, err := tx.tx.ExecContext(tx.ctx, query,
		PartKey(courseID, p.ID), courseID, p.ID, p.Title, catalog.OrderOf(p.Order))
	if err != nil {
		return keyError(TableParts, PartKey(courseID, p.ID), err)
	}

	tx.events.add(TableParts, courseID, OpUpsert)
	return nil
}

// UpsertChapter inserts or updates a chapter of courseID. Subchapters are
// written separately.
func (tx *Tx) UpsertChapter(courseID string, ch catalog.ChapterContent) error {
	query := `
	INSERT INTO chapters (id, course_id, chapter_id, part_id, title, content, sort_order)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(course_id, chapter_id) DO UPDATE SET
		part_id = excluded.part_id,
		title = excluded.title,
		content = excluded.content,
		sort_order = excluded.sort_order
	`

	_, err := tx.tx.ExecContext(tx.ctx, query,
		ChapterKey(courseID, ch.ID), courseID, ch.ID, nullString(ch.PartID),
		ch.Title, ch.Content, catalog.OrderOf(ch.Order))
	if err != nil {
		return keyError(TableChapters, ChapterKey(courseID, ch.ID), err)
	}

	tx.events.add(TableChapters, courseID, OpUpsert)
	return nil
}

// UpsertSubchapter inserts or updates a subchapter of courseID/chapterID.
func (tx *Tx) UpsertSubchapter(courseID, chapterID string, sub catalog.SubchapterContent) error {
	query := `
	INSERT INTO subchapters (id, course_id, chapter_id, subchapter_id, title, content, sort_order)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(course_id, chapter_id, subchapter_id) DO UPDATE SET
		title = excluded.title,
		content = excluded.content,
		sort_order = excluded.sort_order
	`

	key := SubchapterKey(courseID, chapterID, sub.ID)
	_, err := tx.tx.ExecContext(tx.ctx, query,
		key, courseID, chapterID, sub.ID, sub.Title, sub.Content, catalog.OrderOf(sub.Order))
	if err != nil {
		return keyError(TableSubchapters, key, err)
	}

	tx.events.add(TableSubchapters, courseID, OpUpsert)
	return nil
}

// PutCourseTree writes the course row followed by its parts, chapters and
// subchapters, each sorted by order.
func (tx *Tx) PutCourseTree(c *catalog.AvailableCourse) error {
	if err := tx.UpsertCourse(c); err != nil {
		return err
	}

	for _, p := range c.SortedParts() {
		if err := tx.UpsertPart(c.ID, p); err != nil {
			return err
		}
	}

	for _, ch := range c.SortedChapters() {
		if err := tx.UpsertChapter(c.ID, ch); err != nil {
			return err
		}
		for _, sub := range ch.SortedSubchapters() {
			if err := tx.UpsertSubchapter(c.ID, ch.ID, sub); err != nil {
				return err
			}
		}
	}

	return nil
}

// DeleteCourseContent removes the parts, chapters and subchapters of a
// course. The course row, progress and notes are kept.
func (tx *Tx) DeleteCourseContent(courseID string) error {
	for _, table := range []Table{TableSubchapters, TableChapters, TableParts} {
		if err := tx.deleteByCourse(table, courseID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteCourse removes a course and every row that references it,
// including the learner's progress and notes.
func (tx *Tx) DeleteCourse(courseID string) (*Removal, error) {
	removal := &Removal{CourseID: courseID}
	counts := []struct {
		table Table
		n     *int
	}{
		{TableSubchapters, &removal.Subchapters},
		{TableChapters, &removal.Chapters},
		{TableParts, &removal.Parts},
		{TableProgress, &removal.Progress},
		{TableNotes, &removal.Notes},
	}

	for _, c := range counts {
		n, err := tx.deleteByCourseCount(c.table, courseID)
		if err != nil {
			return nil, err
		}
		*c.n = n
	}

	res, err := tx.tx.ExecContext(tx.ctx, `DELETE FROM courses WHERE id = ?`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete course %s: %w", courseID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		removal.Course = true
		tx.events.add(TableCourses, courseID, OpDelete)
	}

	return removal, nil
}

func (tx *Tx) deleteByCourse(table Table, courseID string) error {
	_, err := tx.deleteByCourseCount(table, courseID)
	return err
}

func (tx *Tx) deleteByCourseCount(table Table, courseID string) (int, error) {
	// Table names come from the fixed Table constants, never from input.
	res, err := tx.tx.ExecContext(tx.ctx, "DELETE FROM "+string(table)+" WHERE course_id = ?", courseID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s of course %s: %w", table, courseID, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		tx.events.add(table, courseID, OpDelete)
	}
	return int(n), nil
}

// Removal reports what RemoveCourse deleted.
type Removal struct {
	CourseID    string `json:"courseId"`
	Course      bool   `json:"course"`
	Parts       int    `json:"parts"`
	Chapters    int    `json:"chapters"`
	Subchapters int    `json:"subchapters"`
	Progress    int    `json:"progress"`
	Notes       int    `json:"notes"`
}

// RemoveCourse deletes a course and all rows referencing it, in one
// transaction. This is the only path that deletes user-authored rows in
// bulk and must only be reached by an explicit user action.
//
// Returns ErrNotFound when neither the course nor any row referencing it
// exists.
func (s *Store) RemoveCourse(ctx context.Context, courseID string) (*Removal, error) {
	var removal *Removal
	err := s.WithTx(ctx, func(tx *Tx) error {
		var err error
		removal, err = tx.DeleteCourse(courseID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !removal.Course && removal.Parts+removal.Chapters+removal.Subchapters+removal.Progress+removal.Notes == 0 {
		return nil, fmt.Errorf("course %s: %w", courseID, ErrNotFound)
	}
	return removal, nil
}

const courseColumns = `id, title, description, author, version, sort_order,
	tags, difficulty, estimated_hours, prerequisites, imported_at, updated_at`

// GetCourse returns one course by id.
func (s *Store) GetCourse(ctx context.Context, id string) (*Course, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ?`, id)
	course, err := scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("course %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return course, nil
}

// ListCourses returns all courses ordered by sort order, then import time.
func (s *Store) ListCourses(ctx context.Context) ([]*Course, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+courseColumns+` FROM courses ORDER BY sort_order ASC, imported_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*Course
	for rows.Next() {
		course, err := scanCourse(rows)
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating courses: %w", err)
	}
	return courses, nil
}

// CourseVersions returns courseId -> stored version for every course. An
// unversioned course maps to "".
func (s *Store) CourseVersions(ctx context.Context) (map[string]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT id, version FROM courses`)
	if err != nil {
		return nil, fmt.Errorf("failed to load course versions: %w", err)
	}
	defer rows.Close()

	versions := make(map[string]string)
	for rows.Next() {
		var id string
		var version sql.NullString
		if err := rows.Scan(&id, &version); err != nil {
			return nil, fmt.Errorf("failed to scan course version: %w", err)
		}
		versions[id] = version.String
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating course versions: %w", err)
	}
	return versions, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(row rowScanner) (*Course, error) {
	var c Course
	var version sql.NullString
	var hours sql.NullFloat64
	var tags, prereqs, importedAt, updatedAt string

	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Description,
		&c.Author,
		&version,
		&c.Order,
		&tags,
		&c.Difficulty,
		&hours,
		&prereqs,
		&importedAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan course: %w", err)
	}

	c.Version = version.String
	c.EstimatedHours = floatPtr(hours)
	c.Tags = unmarshalList(tags)
	c.Prerequisites = unmarshalList(prereqs)
	c.ImportedAt = parseTime(importedAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

// ListParts returns the parts of a course in order.
func (s *Store) ListParts(ctx context.Context, courseID string) ([]*Part, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, course_id, part_id, title, sort_order
		FROM parts WHERE course_id = ?
		ORDER BY sort_order ASC, rowid ASC`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list parts: %w", err)
	}
	defer rows.Close()

	var parts []*Part
	for rows.Next() {
		var p Part
		if err := rows.Scan(&p.ID, &p.CourseID, &p.PartID, &p.Title, &p.Order); err != nil {
			return nil, fmt.Errorf("failed to scan part: %w", err)
		}
		parts = append(parts, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parts: %w", err)
	}
	return parts, nil
}

const chapterColumns = `id, course_id, chapter_id, part_id, title, content, sort_order`

// ListChapters returns the chapters of a course in order.
func (s *Store) ListChapters(ctx context.Context, courseID string) ([]*Chapter, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT `+chapterColumns+`
		FROM chapters WHERE course_id = ?
		ORDER BY sort_order ASC, rowid ASC`, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	defer rows.Close()

	var chapters []*Chapter
	for rows.Next() {
		ch, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chapters: %w", err)
	}
	return chapters, nil
}

// GetChapter returns one chapter by its natural key.
func (s *Store) GetChapter(ctx context.Context, courseID, chapterID string) (*Chapter, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT `+chapterColumns+` FROM chapters WHERE course_id = ? AND chapter_id = ?`,
		courseID, chapterID)
	ch, err := scanChapter(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chapter %s: %w", ChapterKey(courseID, chapterID), ErrNotFound)
	}
	return ch, err
}

func scanChapter(row rowScanner) (*Chapter, error) {
	var ch Chapter
	var partID sql.NullString
	err := row.Scan(&ch.ID, &ch.CourseID, &ch.ChapterID, &partID, &ch.Title, &ch.Content, &ch.Order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan chapter: %w", err)
	}
	ch.PartID = partID.String
	return &ch, nil
}

// ListSubchapters returns the subchapters of one chapter in order.
func (s *Store) ListSubchapters(ctx context.Context, courseID, chapterID string) ([]*Subchapter, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT id, course_id, chapter_id, subchapter_id, title, content, sort_order
		FROM subchapters WHERE course_id = ? AND chapter_id = ?
		ORDER BY sort_order ASC, rowid ASC`, courseID, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subchapters: %w", err)
	}
	defer rows.Close()

	var subs []*Subchapter
	for rows.Next() {
		var sub Subchapter
		if err := rows.Scan(&sub.ID, &sub.CourseID, &sub.ChapterID, &sub.SubchapterID,
			&sub.Title, &sub.Content, &sub.Order); err != nil {
			return nil, fmt.Errorf("failed to scan subchapter: %w", err)
		}
		subs = append(subs, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subchapters: %w", err)
	}
	return subs, nil
}
