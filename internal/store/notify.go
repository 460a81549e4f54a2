package store

// Table names a store table in change events.
type Table string

const (
	TableCourses     Table = "courses"
	TableParts       Table = "parts"
	TableChapters    Table = "chapters"
	TableSubchapters Table = "subchapters"
	TableProgress    Table = "progress"
	TableNotes       Table = "notes"
)

// AllTables lists every table in dependency order.
var AllTables = []Table{TableCourses, TableParts, TableChapters, TableSubchapters, TableProgress, TableNotes}

// Op is the kind of write that happened.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// ChangeEvent describes committed writes to one table for one course.
type ChangeEvent struct {
	Table    Table  `json:"table"`
	CourseID string `json:"courseId"`
	Op       Op     `json:"op"`
}

// Observer receives change events after the write is committed.
type Observer func(ChangeEvent)

type observer struct {
	fn     Observer
	tables map[Table]bool // nil = all tables
}

// Subscribe registers fn for changes to the given tables, or to all tables
// when none are given. The returned function unregisters it.
//
// Observers run synchronously after each commit; hand slow work off to a
// goroutine or a buffered channel.
func (s *Store) Subscribe(fn Observer, tables ...Table) (unsubscribe func()) {
	obs := &observer{fn: fn}
	if len(tables) > 0 {
		obs.tables = make(map[Table]bool, len(tables))
		for _, t := range tables {
			obs.tables[t] = true
		}
	}

	s.observersMu.Lock()
	id := s.nextObserver
	s.nextObserver++
	s.observers[id] = obs
	s.observersMu.Unlock()

	return func() {
		s.observersMu.Lock()
		delete(s.observers, id)
		s.observersMu.Unlock()
	}
}

// notify delivers committed events to matching observers.
func (s *Store) notify(events ...ChangeEvent) {
	if len(events) == 0 {
		return
	}

	s.observersMu.RLock()
	observers := make([]*observer, 0, len(s.observers))
	for _, obs := range s.observers {
		observers = append(observers, obs)
	}
	s.observersMu.RUnlock()

	for _, ev := range events {
		for _, obs := range observers {
			if obs.tables == nil || obs.tables[ev.Table] {
				obs.fn(ev)
			}
		}
	}
}

// eventSet collects the events of one transaction, once per table, course
// and op, in first-seen order.
type eventSet struct {
	seen   map[ChangeEvent]bool
	events []ChangeEvent
}

func (e *eventSet) add(table Table, courseID string, op Op) {
	ev := ChangeEvent{Table: table, CourseID: courseID, Op: op}
	if e.seen == nil {
		e.seen = make(map[ChangeEvent]bool)
	}
	if e.seen[ev] {
		return
	}
	e.seen[ev] = true
	e.events = append(e.events, ev)
}
