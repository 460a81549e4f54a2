package store

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/courseshelf/shelf/internal/catalog"
)

// testDBPath returns a temporary path for test databases
func testDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.db")
}

// setupTestStore opens a fully migrated store that is closed with the test.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := OpenWithOptions(testDBPath(t), &Options{Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// sampleCourse is a small course with one part, two chapters and two
// subchapters, listed out of order.
func sampleCourse(id, version string) *catalog.AvailableCourse {
	return &catalog.AvailableCourse{
		ID:          id,
		Title:       "Course " + id,
		Description: "About " + id,
		Version:     version,
		Order:       catalog.IntPtr(1),
		Tags:        []string{"go"},
		Parts:       []catalog.Part{{ID: "p1", Title: "Part One", Order: catalog.IntPtr(1)}},
		ChaptersContent: []catalog.ChapterContent{
			{ID: "ch2", Title: "Second", PartID: "p1", Content: "two", Order: catalog.IntPtr(2)},
			{
				ID: "ch1", Title: "First", PartID: "p1", Content: "one", Order: catalog.IntPtr(1),
				Subchapters: []catalog.SubchapterContent{
					{ID: "s2", Title: "S2", Content: "s-two", Order: catalog.IntPtr(2)},
					{ID: "s1", Title: "S1", Content: "s-one", Order: catalog.IntPtr(1)},
				},
			},
		},
	}
}

func putCourse(t *testing.T, st *Store, c *catalog.AvailableCourse) {
	t.Helper()
	if err := st.WithTx(context.Background(), func(tx *Tx) error {
		return tx.PutCourseTree(c)
	}); err != nil {
		t.Fatalf("PutCourseTree(%s) failed: %v", c.ID, err)
	}
}

func TestOpen_Success(t *testing.T) {
	path := testDBPath(t)
	st, err := OpenWithOptions(path, &Options{Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer st.Close()

	if st.Path() != path {
		t.Errorf("Path() = %q, want %q", st.Path(), path)
	}
	if st.Driver() != DefaultDriver {
		t.Errorf("Driver() = %q, want %q", st.Driver(), DefaultDriver)
	}

	version, err := st.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() failed: %v", err)
	}
	if version != LatestVersion() {
		t.Errorf("SchemaVersion() = %d, want %d", version, LatestVersion())
	}

	for _, table := range AllTables {
		var count int
		err := st.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, string(table)).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Table %s does not exist", table)
		}
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := OpenWithOptions(testDBPath(t), &Options{Driver: "nope"})
	if !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("error = %v, want ErrUnknownDriver", err)
	}
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "shelf.db")
	st, err := OpenWithOptions(path, &Options{Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	_ = st.Close()
}

func TestClose_Idempotent(t *testing.T) {
	st, err := OpenWithOptions(testDBPath(t), &Options{Logger: log.New(io.Discard, "", 0)})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("first Close() failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Errorf("second Close() failed: %v", err)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	st := setupTestStore(t)

	if err := st.Migrate(); err != nil {
		t.Fatalf("second Migrate() failed: %v", err)
	}
	version, _ := st.SchemaVersion(context.Background())
	if version != LatestVersion() {
		t.Errorf("SchemaVersion() = %d, want %d", version, LatestVersion())
	}
}

func TestMigrate_PreservesRowsFromVersionOne(t *testing.T) {
	ctx := context.Background()
	path := testDBPath(t)
	logger := log.New(io.Discard, "", 0)

	st, err := OpenWithOptions(path, &Options{Logger: logger, SkipMigrations: true})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := st.MigrateTo(ctx, 1); err != nil {
		t.Fatalf("MigrateTo(1) failed: %v", err)
	}

	// Rows written by a version-1 build.
	stmts := []string{
		`INSERT INTO courses (id, title, description, version, sort_order, imported_at, updated_at)
		 VALUES ('c1', 'Old Course', 'desc', '1', 1, '2025-01-01T00:00:00.000000000Z', '2025-01-01T00:00:00.000000000Z')`,
		`INSERT INTO chapters (id, course_id, chapter_id, title, content, sort_order)
		 VALUES ('c1-ch1', 'c1', 'ch1', 'Intro', 'hello', 1)`,
		`INSERT INTO progress (id, course_id, chapter_id, subchapter_id, completed, last_read)
		 VALUES ('c1-ch1', 'c1', 'ch1', '', 1, '2025-01-02T00:00:00.000000000Z')`,
		`INSERT INTO notes (id, course_id, chapter_id, title, content, created_at, updated_at)
		 VALUES ('n1', 'c1', 'ch1', 'mine', 'keep me', '2025-01-02T00:00:00.000000000Z', '2025-01-02T00:00:00.000000000Z')`,
	}
	for _, stmt := range stmts {
		if _, err := st.conn.Exec(stmt); err != nil {
			t.Fatalf("seed v1 row failed: %v", err)
		}
	}
	_ = st.Close()

	st, err = OpenWithOptions(path, &Options{Logger: logger})
	if err != nil {
		t.Fatalf("reopen with migrations failed: %v", err)
	}
	defer st.Close()

	course, err := st.GetCourse(ctx, "c1")
	if err != nil {
		t.Fatalf("GetCourse() failed: %v", err)
	}
	if course.Title != "Old Course" || course.Version != "1" {
		t.Errorf("course = %+v", course)
	}
	if len(course.Tags) != 0 || course.EstimatedHours != nil {
		t.Errorf("new columns should take defaults, got %+v", course)
	}

	ch, err := st.GetChapter(ctx, "c1", "ch1")
	if err != nil {
		t.Fatalf("GetChapter() failed: %v", err)
	}
	if ch.Content != "hello" || ch.PartID != "" {
		t.Errorf("chapter = %+v", ch)
	}

	progress, err := st.GetProgress(ctx, "c1-ch1")
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	if !progress.Completed || progress.Orphaned {
		t.Errorf("progress = %+v", progress)
	}

	note, err := st.GetNote(ctx, "n1")
	if err != nil {
		t.Fatalf("GetNote() failed: %v", err)
	}
	if note.Content != "keep me" {
		t.Errorf("note = %+v", note)
	}
}

func TestKeys(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{PartKey("c1", "p1"), "c1-p1"},
		{ChapterKey("c1", "ch1"), "c1-ch1"},
		{SubchapterKey("c1", "ch1", "s1"), "c1-ch1-s1"},
		{ProgressKey("c1", "ch1", ""), "c1-ch1"},
		{ProgressKey("c1", "ch1", "s1"), "c1-ch1-s1"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("key = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestDrivers(t *testing.T) {
	found := false
	for _, name := range Drivers() {
		if name == DefaultDriver {
			found = true
		}
	}
	if !found {
		t.Errorf("Drivers() = %v, want it to include %q", Drivers(), DefaultDriver)
	}
}
