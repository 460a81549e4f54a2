// Package daemon re-syncs the catalog whenever the content tree changes.
//
// The daemon:
// 1. Runs an initial sync
// 2. Watches the content root for course file changes
// 3. Debounces bursts of changes into a single sync
// 4. Optionally re-syncs on a fixed interval
// 5. Handles graceful shutdown
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	shelfsync "github.com/courseshelf/shelf/internal/sync"
)

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long the tree must be quiet before a sync
	// runs. This batches editor saves and copies together.
	DebounceInterval time.Duration

	// ResyncInterval triggers a sync on a fixed schedule in addition to
	// file events. Zero disables it.
	ResyncInterval time.Duration

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon triggers syncs from content changes.
type Daemon struct {
	syncer shelfsync.Syncer
	root   string
	config *Config

	watcher       *FileWatcher
	changeQueue   map[string]time.Time // course dir -> last change
	changeQueueMu sync.Mutex

	syncs   int
	syncsMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon that watches root and runs syncer.
//
// Use Start() to begin watching and syncing.
func New(syncer shelfsync.Syncer, root string) (*Daemon, error) {
	return NewWithConfig(syncer, root, DefaultConfig())
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(syncer shelfsync.Syncer, root string, config *Config) (*Daemon, error) {
	if syncer == nil {
		return nil, fmt.Errorf("syncer cannot be nil")
	}
	if root == "" {
		return nil, fmt.Errorf("content root cannot be empty")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = DefaultConfig().Logger
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		syncer:      syncer,
		root:        root,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start runs the initial sync, starts watching and blocks until ctx is
// cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	if err := d.watcher.Start(d.root); err != nil {
		d.cancel()
		return fmt.Errorf("failed to watch content root: %w", err)
	}
	d.config.Logger.Printf("Watching: %s", d.root)

	// Watch first so changes made during the initial sync are queued.
	d.runSync("startup")

	workers := 2
	if d.config.ResyncInterval > 0 {
		workers++
	}
	d.wg.Add(workers)
	go d.watchFileEvents()
	go d.processChangeQueue()
	if d.config.ResyncInterval > 0 {
		go d.periodicResync()
	}

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Stop(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// SyncCount returns how many syncs the daemon has run, including the
// startup sync and suppressed attempts.
func (d *Daemon) SyncCount() int {
	d.syncsMu.Lock()
	defer d.syncsMu.Unlock()
	return d.syncs
}

// Pending returns the course directories waiting for the debounce window.
func (d *Daemon) Pending() []string {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	courses := make([]string, 0, len(d.changeQueue))
	for c := range d.changeQueue {
		courses = append(courses, c)
	}
	sort.Strings(courses)
	return courses
}

// runSync runs one sync and reports whether it was suppressed.
func (d *Daemon) runSync(reason string) (suppressed bool) {
	d.syncsMu.Lock()
	d.syncs++
	d.syncsMu.Unlock()

	report := d.syncer.Sync(d.ctx)
	if report.Suppressed {
		return true
	}

	if err := report.Err(); err != nil && errors.Is(err, shelfsync.ErrImportWriteFailure) {
		d.config.Logger.Printf("Sync (%s) finished with failures: %s", reason, report)
	} else if err != nil {
		d.config.Logger.Printf("Sync (%s) failed: %v", reason, err)
	} else {
		d.config.Logger.Printf("Sync (%s): %s", reason, report)
	}
	return false
}

// watchFileEvents monitors filesystem events and queues changes.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			d.config.Logger.Printf("File event: %s %s", event.Op, event.Path)
			d.queueChange(event.Course)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange records a change to a course directory.
func (d *Daemon) queueChange(course string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[course] = time.Now()
}

// processChangeQueue checks the queue on every debounce tick.
func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.processPendingChanges()
		}
	}
}

// processPendingChanges runs one sync once no course has changed for the
// debounce interval. A sync covers every course, so the whole queue is
// drained at once. If the sync was suppressed by one already running, the
// queue is restored and retried on a later tick.
func (d *Daemon) processPendingChanges() {
	d.changeQueueMu.Lock()
	if len(d.changeQueue) == 0 {
		d.changeQueueMu.Unlock()
		return
	}

	now := time.Now()
	for _, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			d.changeQueueMu.Unlock()
			return
		}
	}

	drained := d.changeQueue
	d.changeQueue = make(map[string]time.Time)
	d.changeQueueMu.Unlock()

	courses := make([]string, 0, len(drained))
	for c := range drained {
		courses = append(courses, c)
	}
	sort.Strings(courses)
	d.config.Logger.Printf("Processing changes: %v", courses)

	if suppressed := d.runSync("content change"); suppressed {
		d.config.Logger.Printf("Sync already running, will retry")
		d.changeQueueMu.Lock()
		for c, at := range drained {
			if _, ok := d.changeQueue[c]; !ok {
				d.changeQueue[c] = at
			}
		}
		d.changeQueueMu.Unlock()
	}
}

// periodicResync syncs on a fixed schedule.
func (d *Daemon) periodicResync() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.ResyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.runSync("interval")
		}
	}
}
