package daemon

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate EventOp = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file or directory was deleted or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// contentExts are the file types that make up a course on disk.
var contentExts = map[string]bool{
	".md":   true,
	".json": true,
	".yaml": true,
	".yml":  true,
	".toml": true,
}

// FileEvent is a change to a file that belongs to a course.
type FileEvent struct {
	// Path is the absolute path that changed.
	Path string
	// Course is the name of the course directory directly under the root.
	Course string
	// Op is the operation that occurred.
	Op EventOp
}

// FileWatcher watches a content root and every directory below it.
// Directories created after Start are added as they appear.
type FileWatcher struct {
	watcher *fsnotify.Watcher
	events  chan FileEvent
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	root    string
}

// NewFileWatcher creates a new FileWatcher instance.
// The watcher must be started with Start() before it will emit events.
func NewFileWatcher() (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		events:  make(chan FileEvent, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching root recursively.
func (fw *FileWatcher) Start(root string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.running {
		return fmt.Errorf("watcher already running")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve content root %s: %w", root, err)
	}
	fw.root = absRoot

	if err := fw.addTree(absRoot); err != nil {
		return err
	}

	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents()

	return nil
}

// addTree watches dir and all non-hidden directories below it.
func (fw *FileWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			// Vanished between listing and visiting.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

// Stop stops watching for file system events and cleans up resources.
// It blocks until the event processing goroutine has exited.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return fw.watcher.Close()
	}
	fw.running = false
	fw.mu.Unlock()

	close(fw.done)

	// Closing the watcher unblocks the event loop.
	if err := fw.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	fw.wg.Wait()

	close(fw.events)
	close(fw.errors)

	return nil
}

// Events returns the channel that emits FileEvent notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Events() <-chan FileEvent {
	return fw.events
}

// Errors returns the channel that emits error notifications.
// This channel is closed when the watcher is stopped.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

// IsRunning returns true if the watcher is currently running.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			fileEvent, ok := fw.convertEvent(event)
			if !ok {
				continue
			}
			select {
			case fw.events <- fileEvent:
			case <-fw.done:
				return
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			}
		}
	}
}

// convertEvent maps an fsnotify event to a FileEvent. New directories are
// watched before their event is emitted so files written into them right
// away are not missed.
func (fw *FileWatcher) convertEvent(event fsnotify.Event) (FileEvent, bool) {
	course, ok := fw.courseOf(event.Name)
	if !ok {
		return FileEvent{}, false
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A rename is a delete here; the new name arrives as a create.
		op = OpDelete
	default:
		return FileEvent{}, false
	}

	if op == OpCreate {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.addTree(event.Name); err != nil {
				select {
				case fw.errors <- err:
				default:
				}
			}
			return FileEvent{Path: event.Name, Course: course, Op: op}, true
		}
	}

	// A removed directory has no extension; pass it through so the course
	// is re-read.
	ext := strings.ToLower(filepath.Ext(event.Name))
	if !contentExts[ext] && !(op == OpDelete && ext == "") {
		return FileEvent{}, false
	}

	return FileEvent{Path: event.Name, Course: course, Op: op}, true
}

// courseOf returns the top-level directory under the root that contains
// path. Hidden entries and files directly in the root are ignored.
func (fw *FileWatcher) courseOf(path string) (string, bool) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	rel, err := filepath.Rel(fw.root, absPath)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}

	segments := strings.Split(filepath.ToSlash(rel), "/")
	for _, s := range segments {
		if isHidden(s) || strings.HasSuffix(s, "~") {
			return "", false
		}
	}
	if len(segments) == 1 {
		// Top-level directories are courses; top-level files are not.
		if contentExts[strings.ToLower(filepath.Ext(segments[0]))] {
			return "", false
		}
	}
	return segments[0], true
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
