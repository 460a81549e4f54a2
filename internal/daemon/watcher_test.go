package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// waitForEvent returns the first event matching want or fails after a
// timeout.
func waitForEvent(t *testing.T, fw *FileWatcher, want func(FileEvent) bool) FileEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-fw.Events():
			if !ok {
				t.Fatal("events channel closed")
			}
			if want(ev) {
				return ev
			}
		case err := <-fw.Errors():
			t.Fatalf("watcher error: %v", err)
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestNewFileWatcher(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if fw.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}
}

func TestFileWatcher_StartStop(t *testing.T) {
	root := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}

	if err := fw.Start(root); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !fw.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}
	if err := fw.Start(root); err == nil {
		t.Error("Second Start() should fail when watcher is already running")
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if fw.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}
}

func TestFileWatcher_MissingRoot(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Start() should fail for a missing root")
	}
}

func TestFileWatcher_ChapterEvents(t *testing.T) {
	root := t.TempDir()
	chapters := filepath.Join(root, "go101", "chapters")
	if err := os.MkdirAll(chapters, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()
	if err := fw.Start(root); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	path := filepath.Join(chapters, "01-intro.md")
	if err := os.WriteFile(path, []byte("# Intro\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	ev := waitForEvent(t, fw, func(ev FileEvent) bool { return ev.Path == path })
	if ev.Course != "go101" {
		t.Errorf("Course = %q, want go101", ev.Course)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	waitForEvent(t, fw, func(ev FileEvent) bool { return ev.Path == path && ev.Op == OpDelete })
}

func TestFileWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()
	if err := fw.Start(root); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	courseDir := filepath.Join(root, "rust101")
	if err := os.Mkdir(courseDir, 0755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	waitForEvent(t, fw, func(ev FileEvent) bool { return ev.Path == courseDir && ev.Op == OpCreate })

	meta := filepath.Join(courseDir, "course.yaml")
	if err := os.WriteFile(meta, []byte("title: Rust\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	ev := waitForEvent(t, fw, func(ev FileEvent) bool { return ev.Path == meta })
	if ev.Course != "rust101" {
		t.Errorf("Course = %q, want rust101", ev.Course)
	}
}

func TestFileWatcher_CourseOf(t *testing.T) {
	root := t.TempDir()
	fw := &FileWatcher{root: root}

	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{filepath.Join(root, "go101", "course.json"), "go101", true},
		{filepath.Join(root, "go101", "chapters", "01-a", "index.md"), "go101", true},
		{filepath.Join(root, "go101"), "go101", true},
		{filepath.Join(root, "README.md"), "", false},
		{filepath.Join(root, ".git", "HEAD"), "", false},
		{filepath.Join(root, "go101", ".draft.md"), "", false},
		{filepath.Join(root, "go101", "notes.md~"), "", false},
		{root, "", false},
		{filepath.Join(filepath.Dir(root), "elsewhere.md"), "", false},
	}

	for _, tt := range tests {
		got, ok := fw.courseOf(tt.path)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("courseOf(%s) = %q, %v; want %q, %v", tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestEventOp_String(t *testing.T) {
	tests := []struct {
		op   EventOp
		want string
	}{
		{OpCreate, "create"},
		{OpModify, "modify"},
		{OpDelete, "delete"},
		{EventOp(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.op, got, tt.want)
		}
	}
}
