package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMarkProgress(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	putCourse(t, st, sampleCourse("c1", "1.0"))

	tests := []struct {
		name         string
		chapterID    string
		subchapterID string
		wantID       string
		wantOrphaned bool
	}{
		{"chapter", "ch1", "", "c1-ch1", false},
		{"subchapter", "ch1", "s2", "c1-ch1-s2", false},
		{"missing chapter", "nope", "", "c1-nope", true},
		{"missing subchapter", "ch2", "s9", "c1-ch2-s9", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := st.MarkProgress(ctx, "c1", tt.chapterID, tt.subchapterID, true)
			if err != nil {
				t.Fatalf("MarkProgress() failed: %v", err)
			}
			if p.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", p.ID, tt.wantID)
			}
			if !p.Completed {
				t.Error("Completed = false, want true")
			}
			if p.Orphaned != tt.wantOrphaned {
				t.Errorf("Orphaned = %v, want %v", p.Orphaned, tt.wantOrphaned)
			}
		})
	}
}

func TestMarkProgress_RequiresChapter(t *testing.T) {
	st := setupTestStore(t)
	if _, err := st.MarkProgress(context.Background(), "c1", "", "", true); err == nil {
		t.Error("expected an error without a chapter")
	}
}

func TestMarkProgress_KeyCollisionKeepsExistingRecord(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)

	// ("go", "intro", "setup") and ("go-intro", "setup", "") share "go-intro-setup".
	if _, err := st.MarkProgress(ctx, "go", "intro", "setup", true); err != nil {
		t.Fatalf("MarkProgress() failed: %v", err)
	}

	_, err := st.MarkProgress(ctx, "go-intro", "setup", "", false)
	if !errors.Is(err, ErrKeyCollision) {
		t.Fatalf("MarkProgress() error = %v, want ErrKeyCollision", err)
	}
	if err := st.TouchLastRead(ctx, "go-intro", "setup", ""); !errors.Is(err, ErrKeyCollision) {
		t.Errorf("TouchLastRead() error = %v, want ErrKeyCollision", err)
	}

	p, err := st.GetProgress(ctx, "go-intro-setup")
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	if p.CourseID != "go" || p.ChapterID != "intro" || p.SubchapterID != "setup" || !p.Completed {
		t.Errorf("existing record was overwritten: %+v", p)
	}

	list, err := st.ListProgress(ctx, ProgressFilter{CourseID: "go-intro"})
	if err != nil {
		t.Fatalf("ListProgress() failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("ListProgress(go-intro) = %+v, want none", list)
	}
}

func TestTouchLastRead_KeepsCompletion(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)

	first, err := st.MarkProgress(ctx, "c1", "ch1", "", true)
	if err != nil {
		t.Fatalf("MarkProgress() failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	if err := st.TouchLastRead(ctx, "c1", "ch1", ""); err != nil {
		t.Fatalf("TouchLastRead() failed: %v", err)
	}
	got, err := st.GetProgress(ctx, "c1-ch1")
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	if !got.Completed {
		t.Error("touch cleared the completion flag")
	}
	if !got.LastRead.After(first.LastRead) {
		t.Errorf("LastRead not advanced: %v -> %v", first.LastRead, got.LastRead)
	}

	if err := st.TouchLastRead(ctx, "c1", "ch2", ""); err != nil {
		t.Fatalf("TouchLastRead() on new chapter failed: %v", err)
	}
	fresh, err := st.GetProgress(ctx, "c1-ch2")
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	if fresh.Completed {
		t.Error("touch created a completed record")
	}
}

func TestListProgress_Filters(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	putCourse(t, st, sampleCourse("c1", "1.0"))

	old := &Progress{CourseID: "c1", ChapterID: "ch1", Completed: true,
		LastRead: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := st.PutProgress(ctx, old); err != nil {
		t.Fatalf("PutProgress() failed: %v", err)
	}
	_, _ = st.MarkProgress(ctx, "c1", "ch2", "", false)
	_, _ = st.MarkProgress(ctx, "c1", "removed", "", true)
	_, _ = st.MarkProgress(ctx, "c2", "ch1", "", true)

	tests := []struct {
		name   string
		filter ProgressFilter
		want   []string
	}{
		{"course", ProgressFilter{CourseID: "c1"}, []string{"c1-ch2", "c1-removed", "c1-ch1"}},
		{"since", ProgressFilter{CourseID: "c1", Since: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}, []string{"c1-ch2", "c1-removed"}},
		{"orphaned", ProgressFilter{CourseID: "c1", OrphanedOnly: true}, []string{"c1-removed"}},
		{"all orphaned", ProgressFilter{OrphanedOnly: true}, []string{"c1-removed", "c2-ch1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := st.ListProgress(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListProgress() failed: %v", err)
			}
			ids := make(map[string]bool)
			for _, p := range list {
				ids[p.ID] = true
			}
			if len(list) != len(tt.want) {
				t.Fatalf("got %d records, want %d", len(list), len(tt.want))
			}
			for _, id := range tt.want {
				if !ids[id] {
					t.Errorf("missing %s", id)
				}
			}
		})
	}

	// Most recently read first; the 2024 record is last.
	list, _ := st.ListProgress(ctx, ProgressFilter{CourseID: "c1"})
	if list[len(list)-1].ID != "c1-ch1" {
		t.Errorf("oldest record should be last, got %s", list[len(list)-1].ID)
	}
}

func TestDeleteProgress(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	_, _ = st.MarkProgress(ctx, "c1", "ch1", "", true)

	if err := st.DeleteProgress(ctx, "c1-ch1"); err != nil {
		t.Fatalf("DeleteProgress() failed: %v", err)
	}
	if err := st.DeleteProgress(ctx, "c1-ch1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteProgress() error = %v, want ErrNotFound", err)
	}
}

func TestProgressSurvivesContentReplace(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	putCourse(t, st, sampleCourse("c1", "1.0"))
	_, _ = st.MarkProgress(ctx, "c1", "ch2", "", true)

	// Version 2 drops ch2.
	v2 := sampleCourse("c1", "2.0")
	v2.ChaptersContent = v2.ChaptersContent[1:]
	if err := st.WithTx(ctx, func(tx *Tx) error {
		if err := tx.DeleteCourseContent("c1"); err != nil {
			return err
		}
		return tx.PutCourseTree(v2)
	}); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	p, err := st.GetProgress(ctx, "c1-ch2")
	if err != nil {
		t.Fatalf("GetProgress() failed: %v", err)
	}
	if !p.Completed || !p.Orphaned {
		t.Errorf("progress = %+v, want completed and orphaned", p)
	}

	// Bringing the chapter back clears the flag without touching the row.
	putCourse(t, st, sampleCourse("c1", "3.0"))
	p, _ = st.GetProgress(ctx, "c1-ch2")
	if p.Orphaned {
		t.Error("progress still orphaned after the chapter returned")
	}
}

func TestCreateNote(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	putCourse(t, st, sampleCourse("c1", "1.0"))

	tests := []struct {
		name         string
		in           NewNote
		wantErr      bool
		wantOrphaned bool
	}{
		{"course level", NewNote{CourseID: "c1", Content: "overall"}, false, false},
		{"chapter", NewNote{CourseID: "c1", ChapterID: "ch1", Title: "t", Content: "x"}, false, false},
		{"subchapter", NewNote{CourseID: "c1", ChapterID: "ch1", SubchapterID: "s1"}, false, false},
		{"missing course", NewNote{CourseID: "gone"}, false, true},
		{"missing chapter", NewNote{CourseID: "c1", ChapterID: "gone"}, false, true},
		{"missing subchapter", NewNote{CourseID: "c1", ChapterID: "ch2", SubchapterID: "s1"}, false, true},
		{"no course", NewNote{Content: "x"}, true, false},
		{"subchapter without chapter", NewNote{CourseID: "c1", SubchapterID: "s1"}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := st.CreateNote(ctx, tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateNote() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if n.ID == "" {
				t.Error("note id not assigned")
			}
			if n.Orphaned != tt.wantOrphaned {
				t.Errorf("Orphaned = %v, want %v", n.Orphaned, tt.wantOrphaned)
			}
			if n.CreatedAt.IsZero() || !n.CreatedAt.Equal(n.UpdatedAt) {
				t.Errorf("timestamps = %v / %v", n.CreatedAt, n.UpdatedAt)
			}
		})
	}
}

func TestUpdateAndDeleteNote(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)

	n, err := st.CreateNote(ctx, NewNote{CourseID: "c1", Title: "draft", Content: "v1"})
	if err != nil {
		t.Fatalf("CreateNote() failed: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	updated, err := st.UpdateNote(ctx, n.ID, "final", "v2")
	if err != nil {
		t.Fatalf("UpdateNote() failed: %v", err)
	}
	if updated.Title != "final" || updated.Content != "v2" {
		t.Errorf("note = %+v", updated)
	}
	if !updated.CreatedAt.Equal(n.CreatedAt) || !updated.UpdatedAt.After(n.UpdatedAt) {
		t.Errorf("timestamps not maintained: %+v", updated)
	}

	if _, err := st.UpdateNote(ctx, "missing", "a", "b"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateNote(missing) error = %v, want ErrNotFound", err)
	}

	if err := st.DeleteNote(ctx, n.ID); err != nil {
		t.Fatalf("DeleteNote() failed: %v", err)
	}
	if _, err := st.GetNote(ctx, n.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetNote() after delete error = %v, want ErrNotFound", err)
	}
	if err := st.DeleteNote(ctx, n.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteNote() error = %v, want ErrNotFound", err)
	}
}

func TestListNotes(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	notes := []*Note{
		{ID: "a", CourseID: "c1", ChapterID: "ch1", Content: "a", UpdatedAt: base},
		{ID: "b", CourseID: "c1", ChapterID: "ch2", Content: "b", UpdatedAt: base.Add(time.Hour)},
		{ID: "c", CourseID: "c1", ChapterID: "ch1", Content: "c", UpdatedAt: base.Add(2 * time.Hour)},
		{ID: "d", CourseID: "c2", Content: "d", UpdatedAt: base.Add(3 * time.Hour)},
	}
	for _, n := range notes {
		n.CreatedAt = base
		if err := st.PutNote(ctx, n); err != nil {
			t.Fatalf("PutNote(%s) failed: %v", n.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter NoteFilter
		want   []string
	}{
		{"all", NoteFilter{}, []string{"d", "c", "b", "a"}},
		{"course", NoteFilter{CourseID: "c1"}, []string{"c", "b", "a"}},
		{"chapter", NoteFilter{CourseID: "c1", ChapterID: "ch1"}, []string{"c", "a"}},
		{"since", NoteFilter{Since: base.Add(90 * time.Minute)}, []string{"d", "c"}},
		{"limit", NoteFilter{Limit: 2}, []string{"d", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ListNotes(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListNotes() failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d notes, want %d", len(got), len(tt.want))
			}
			for i, n := range got {
				if n.ID != tt.want[i] {
					t.Errorf("notes[%d] = %s, want %s", i, n.ID, tt.want[i])
				}
			}
		})
	}
}

func TestSeedIfEmpty(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)

	seeded, err := st.SeedIfEmpty(ctx)
	if err != nil {
		t.Fatalf("SeedIfEmpty() failed: %v", err)
	}
	if !seeded {
		t.Fatal("empty store was not seeded")
	}

	demo, err := DemoCourse()
	if err != nil {
		t.Fatalf("DemoCourse() failed: %v", err)
	}
	course, err := st.GetCourse(ctx, demo.ID)
	if err != nil {
		t.Fatalf("GetCourse(%s) failed: %v", demo.ID, err)
	}
	if course.Version != demo.Version {
		t.Errorf("Version = %q, want %q", course.Version, demo.Version)
	}
	chapters, _ := st.ListChapters(ctx, demo.ID)
	wantChapters, _ := demo.ChapterCount()
	if len(chapters) != wantChapters {
		t.Errorf("got %d chapters, want %d", len(chapters), wantChapters)
	}
	if err := demo.Validate(); err != nil {
		t.Errorf("demo course is invalid: %v", err)
	}

	seeded, err = st.SeedIfEmpty(ctx)
	if err != nil {
		t.Fatalf("second SeedIfEmpty() failed: %v", err)
	}
	if seeded {
		t.Error("non-empty store was seeded again")
	}
}

func TestSeedIfEmpty_SkipsPopulatedStore(t *testing.T) {
	ctx := context.Background()
	st := setupTestStore(t)
	putCourse(t, st, sampleCourse("c1", "1.0"))

	seeded, err := st.SeedIfEmpty(ctx)
	if err != nil {
		t.Fatalf("SeedIfEmpty() failed: %v", err)
	}
	if seeded {
		t.Error("populated store was seeded")
	}
	stats, _ := st.Stats(ctx)
	if stats.Courses != 1 {
		t.Errorf("Courses = %d, want 1", stats.Courses)
	}
}
