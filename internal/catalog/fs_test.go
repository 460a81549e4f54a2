package catalog

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
)

// writeFile creates parent directories and writes content.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestFSReader_ReadsLayout(t *testing.T) {
	root := t.TempDir()
	course := filepath.Join(root, "go-basics")

	writeFile(t, filepath.Join(course, "course.yaml"), `
id: go
title: Go Basics
description: Learn Go
version: 1.0.0
order: 2
tags: [go, beginner]
estimatedHours: 3.5
parts:
  - id: basics
    title: The Basics
    order: 1
`)
	writeFile(t, filepath.Join(course, "chapters", "01-intro.md"), `---
part: basics
---
# Welcome

Hello.`)
	writeFile(t, filepath.Join(course, "chapters", "02-types", "index.md"), "# Types\n\nAll about types.")
	writeFile(t, filepath.Join(course, "chapters", "02-types", "01-ints.md"), "# Integers")
	writeFile(t, filepath.Join(course, "chapters", "02-types", "02-strings.md"), `---
id: text
title: Strings and Text
order: 7
---
Body`)
	writeFile(t, filepath.Join(course, "chapters", "notes.txt"), "ignored")

	reader := NewFSReader(root, quietLogger())
	courses, err := reader.ListAvailableCourses(context.Background())
	if err != nil {
		t.Fatalf("ListAvailableCourses() failed: %v", err)
	}
	if len(courses) != 1 {
		t.Fatalf("got %d courses, want 1", len(courses))
	}

	c := courses[0]
	if c.ID != "go" || c.Title != "Go Basics" || c.Version != "1.0.0" {
		t.Errorf("course metadata = %+v", c)
	}
	if OrderOf(c.Order) != 2 {
		t.Errorf("order = %d, want 2", OrderOf(c.Order))
	}
	if c.EstimatedHours == nil || *c.EstimatedHours != 3.5 {
		t.Errorf("estimatedHours = %v, want 3.5", c.EstimatedHours)
	}
	if len(c.Tags) != 2 {
		t.Errorf("tags = %v", c.Tags)
	}
	if len(c.Parts) != 1 || c.Parts[0].ID != "basics" {
		t.Errorf("parts = %+v", c.Parts)
	}

	if len(c.ChaptersContent) != 2 {
		t.Fatalf("got %d chapters, want 2", len(c.ChaptersContent))
	}

	intro := c.ChaptersContent[0]
	if intro.ID != "intro" || intro.Title != "Welcome" || intro.PartID != "basics" || OrderOf(intro.Order) != 1 {
		t.Errorf("intro chapter = %+v", intro)
	}
	if intro.Content != "# Welcome\n\nHello." {
		t.Errorf("intro content = %q", intro.Content)
	}

	types := c.ChaptersContent[1]
	if types.ID != "types" || types.Title != "Types" || OrderOf(types.Order) != 2 {
		t.Errorf("types chapter = %+v", types)
	}
	if len(types.Subchapters) != 2 {
		t.Fatalf("got %d subchapters, want 2", len(types.Subchapters))
	}
	if sub := types.Subchapters[0]; sub.ID != "ints" || sub.Title != "Integers" || OrderOf(sub.Order) != 1 {
		t.Errorf("first subchapter = %+v", sub)
	}
	if sub := types.Subchapters[1]; sub.ID != "text" || sub.Title != "Strings and Text" || OrderOf(sub.Order) != 7 {
		t.Errorf("second subchapter = %+v", sub)
	}
}

func TestFSReader_MetadataFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"json", "course.json", `{"title": "From JSON", "version": "2", "order": 1}`},
		{"yaml", "course.yaml", "title: From YAML\nversion: \"2\"\norder: 1\n"},
		{"yml", "course.yml", "title: From YAML\nversion: \"2\"\norder: 1\n"},
		{"toml", "course.toml", "title = \"From TOML\"\nversion = \"2\"\norder = 1\n\n[[parts]]\nid = \"p1\"\ntitle = \"Part\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFile(t, filepath.Join(root, "course-dir", tt.file), tt.content)

			course, err := ReadCourseDir(filepath.Join(root, "course-dir"))
			if err != nil {
				t.Fatalf("ReadCourseDir() failed: %v", err)
			}
			if course.ID != "course-dir" {
				t.Errorf("id = %q, want directory name", course.ID)
			}
			if course.Version != "2" || OrderOf(course.Order) != 1 {
				t.Errorf("course = %+v", course)
			}
			if course.Title == "" {
				t.Error("title should be parsed")
			}
		})
	}
}

func TestFSReader_SkipsNonCoursesAndBrokenCourses(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "assets", "logo.svg"), "<svg/>")
	writeFile(t, filepath.Join(root, "broken", "course.json"), "{not json")
	writeFile(t, filepath.Join(root, "good", "course.json"), `{"title": "Good"}`)
	writeFile(t, filepath.Join(root, ".hidden", "course.json"), `{"title": "Hidden"}`)
	writeFile(t, filepath.Join(root, "README.md"), "# Content")

	reader := NewFSReader(root, quietLogger())
	courses, err := reader.ListAvailableCourses(context.Background())
	if err != nil {
		t.Fatalf("ListAvailableCourses() failed: %v", err)
	}
	if len(courses) != 1 || courses[0].ID != "good" {
		t.Errorf("courses = %+v, want only 'good'", courses)
	}
}

func TestFSReader_SortsByOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a", "course.json"), `{"title": "A", "order": 2}`)
	writeFile(t, filepath.Join(root, "b", "course.json"), `{"title": "B"}`)
	writeFile(t, filepath.Join(root, "c", "course.json"), `{"title": "C", "order": 1}`)

	courses, err := NewFSReader(root, quietLogger()).ListAvailableCourses(context.Background())
	if err != nil {
		t.Fatalf("ListAvailableCourses() failed: %v", err)
	}
	got := []string{courses[0].ID, courses[1].ID, courses[2].ID}
	if got[0] != "c" || got[1] != "a" || got[2] != "b" {
		t.Errorf("order = %v, want [c a b]", got)
	}
}

func TestFSReader_MissingRoot(t *testing.T) {
	reader := NewFSReader(filepath.Join(t.TempDir(), "missing"), quietLogger())
	_, err := reader.ListAvailableCourses(context.Background())
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("error = %v, want ErrCatalogUnavailable", err)
	}
}

func TestParseMarkdown(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantID    string
		wantOrder int
		wantBody  string
		wantErr   bool
	}{
		{"no frontmatter", "# Title\nbody", "", DefaultOrder, "# Title\nbody", false},
		{"frontmatter", "---\nid: x\norder: 3\n---\nbody", "x", 3, "body", false},
		{"crlf", "---\r\nid: x\r\n---\r\nbody", "x", DefaultOrder, "body", false},
		{"frontmatter only", "---\nid: x\n---", "x", DefaultOrder, "", false},
		{"unterminated", "---\nid: x\nbody", "", DefaultOrder, "---\nid: x\nbody", false},
		{"invalid yaml", "---\nid: [x\n---\nbody", "", DefaultOrder, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm, body, err := parseMarkdown([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseMarkdown() failed: %v", err)
			}
			if fm.ID != tt.wantID {
				t.Errorf("id = %q, want %q", fm.ID, tt.wantID)
			}
			if OrderOf(fm.Order) != tt.wantOrder {
				t.Errorf("order = %d, want %d", OrderOf(fm.Order), tt.wantOrder)
			}
			if body != tt.wantBody {
				t.Errorf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestSplitOrderPrefix(t *testing.T) {
	tests := []struct {
		in        string
		wantOrder int
		wantSlug  string
	}{
		{"01-intro", 1, "intro"},
		{"10_advanced", 10, "advanced"},
		{"3. wrap up", 3, "wrap up"},
		{"intro", DefaultOrder, "intro"},
		{"2024", DefaultOrder, "2024"},
	}
	for _, tt := range tests {
		order, slug := splitOrderPrefix(tt.in)
		if OrderOf(order) != tt.wantOrder || slug != tt.wantSlug {
			t.Errorf("splitOrderPrefix(%q) = (%d, %q), want (%d, %q)",
				tt.in, OrderOf(order), slug, tt.wantOrder, tt.wantSlug)
		}
	}
}
