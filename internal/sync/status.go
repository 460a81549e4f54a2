package sync

import (
	stdsync "sync"
	"time"
)

// State is the lifecycle position of the engine.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateSettled State = "settled"
)

// Status is a read-only snapshot of the engine's state. Report is the most
// recent settled report and stays set while the next sync runs.
type Status struct {
	State  State     `json:"state"`
	Since  time.Time `json:"since"`
	Report *Report   `json:"report,omitempty"`
}

// coordinator owns the status and fans transitions out to subscribers.
type coordinator struct {
	mu          stdsync.Mutex
	status      Status
	subscribers map[int]func(Status)
	next        int
}

func newCoordinator() *coordinator {
	return &coordinator{
		status:      Status{State: StateIdle, Since: time.Now().UTC()},
		subscribers: make(map[int]func(Status)),
	}
}

func (c *coordinator) get() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *coordinator) subscribe(fn func(Status)) func() {
	c.mu.Lock()
	id := c.next
	c.next++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// transition moves to state. A nil report keeps the previous one.
func (c *coordinator) transition(state State, report *Report) {
	c.mu.Lock()
	c.status.State = state
	c.status.Since = time.Now().UTC()
	if report != nil {
		c.status.Report = report
	}
	snapshot := c.status
	fns := make([]func(Status), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	// Called outside the lock so subscribers may read Status.
	for _, fn := range fns {
		fn(snapshot)
	}
}
