// Package loadtest measures read latency against the course store while a
// sync is importing content.
//
// It generates a synthetic catalog, imports it with a sync.Engine and runs
// concurrent readers that page through courses and chapters. Readers must
// never see an error, and they must never see a chapter whose course row is
// missing, since every course is written in a single transaction.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/courseshelf/shelf/internal/catalog"
	"github.com/courseshelf/shelf/internal/store"
	shelfsync "github.com/courseshelf/shelf/internal/sync"
)

// CatalogSpec shapes a generated catalog.
type CatalogSpec struct {
	Courses     int
	Chapters    int // per course
	Subchapters int // per chapter
	BodyBytes   int // size of each content body
	Version     string
	Seed        int64
}

// DefaultCatalogSpec returns a mid-sized catalog.
func DefaultCatalogSpec() CatalogSpec {
	return CatalogSpec{Courses: 20, Chapters: 12, Subchapters: 3, BodyBytes: 2048, Version: "1.0", Seed: 42}
}

// GenerateCatalog builds a deterministic catalog. Orders are shuffled so
// sorting is exercised, and every fifth course has no order.
func GenerateCatalog(spec CatalogSpec) catalog.Static {
	rng := rand.New(rand.NewSource(spec.Seed))
	body := strings.Repeat("lorem ipsum ", spec.BodyBytes/12+1)[:spec.BodyBytes]

	courses := make(catalog.Static, 0, spec.Courses)
	for i, order := range rng.Perm(spec.Courses) {
		c := catalog.AvailableCourse{
			ID:          fmt.Sprintf("course-%03d", i),
			Title:       fmt.Sprintf("Course %d", i),
			Description: "Generated for load testing",
			Version:     spec.Version,
			Tags:        []string{"loadtest", fmt.Sprintf("batch-%d", i/10)},
			Parts:       []catalog.Part{{ID: "main", Title: "Main", Order: catalog.IntPtr(1)}},
		}
		if i%5 != 4 {
			c.Order = catalog.IntPtr(order + 1)
		}

		for j, chOrder := range rng.Perm(spec.Chapters) {
			ch := catalog.ChapterContent{
				ID:      fmt.Sprintf("ch%02d", j),
				Title:   fmt.Sprintf("Chapter %d", j),
				PartID:  "main",
				Content: body,
				Order:   catalog.IntPtr(chOrder + 1),
			}
			for k := 0; k < spec.Subchapters; k++ {
				ch.Subchapters = append(ch.Subchapters, catalog.SubchapterContent{
					ID:      fmt.Sprintf("s%02d", k),
					Title:   fmt.Sprintf("Section %d", k),
					Content: body,
					Order:   catalog.IntPtr(k + 1),
				})
			}
			c.ChaptersContent = append(c.ChaptersContent, ch)
		}
		courses = append(courses, c)
	}
	return courses
}

// Harness is a populated store plus the engine that fills it.
type Harness struct {
	Store  *store.Store
	Engine *shelfsync.Engine
	reader *swapReader
}

// NewHarness opens a store at dbPath and prepares an engine reading the
// catalog generated from spec. Nothing is imported until Sync or RunDuringSync.
func NewHarness(dbPath string, spec CatalogSpec) (*Harness, error) {
	quiet := log.New(io.Discard, "", 0)

	st, err := store.OpenWithOptions(dbPath, &store.Options{Logger: quiet})
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	reader := &swapReader{courses: GenerateCatalog(spec)}
	return &Harness{
		Store:  st,
		Engine: shelfsync.New(reader, st, quiet),
		reader: reader,
	}, nil
}

// Close closes the store.
func (h *Harness) Close() error {
	return h.Store.Close()
}

// SetCatalog replaces the catalog the engine reads on its next sync.
func (h *Harness) SetCatalog(courses catalog.Static) {
	h.reader.set(courses)
}

// Sync runs one sync and fails on any recorded error.
func (h *Harness) Sync(ctx context.Context) (*shelfsync.Report, error) {
	report := h.Engine.Sync(ctx)
	if err := report.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// LatencyStats captures read performance.
type LatencyStats struct {
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration // Median
	P95          time.Duration
	P99          time.Duration
	TotalQueries int
	Errors       int
	Durations    []time.Duration
}

// Result is the outcome of RunDuringSync.
type Result struct {
	Stats  *LatencyStats
	Report *shelfsync.Report
	// Failures holds reader errors and consistency violations.
	Failures []error
}

// RunDuringSync starts numReaders readers, runs one sync, and stops the
// readers when the sync settles. Each reader lists courses and reads the
// chapters of one course per query.
func (h *Harness) RunDuringSync(ctx context.Context, numReaders int) (*Result, error) {
	readCtx, stopReaders := context.WithCancel(ctx)
	defer stopReaders()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var all []time.Duration
	var failures []error

	for i := 0; i < numReaders; i++ {
		wg.Add(1)
		go func(readerID int) {
			defer wg.Done()

			var durations []time.Duration
			defer func() {
				mu.Lock()
				all = append(all, durations...)
				mu.Unlock()
			}()

			for n := 0; ; n++ {
				select {
				case <-readCtx.Done():
					return
				default:
				}

				start := time.Now()
				err := h.readOnce(readCtx, readerID+n)
				durations = append(durations, time.Since(start))

				if err != nil && readCtx.Err() == nil {
					mu.Lock()
					failures = append(failures, fmt.Errorf("reader %d query %d: %w", readerID, n, err))
					mu.Unlock()
					return
				}
				time.Sleep(time.Millisecond)
			}
		}(i)
	}

	report := h.Engine.Sync(ctx)
	stopReaders()
	wg.Wait()

	if len(all) == 0 {
		return nil, fmt.Errorf("no queries completed")
	}

	stats := computeLatencyStats(all)
	stats.Errors = len(failures)
	return &Result{Stats: stats, Report: report, Failures: failures}, nil
}

// readOnce lists courses and reads the chapters of one of them. A chapter
// listed for a course must come with that course's row.
func (h *Harness) readOnce(ctx context.Context, pick int) error {
	courses, err := h.Store.ListCourses(ctx)
	if err != nil {
		return err
	}
	if len(courses) == 0 {
		return nil
	}

	course := courses[pick%len(courses)]
	chapters, err := h.Store.ListChapters(ctx, course.ID)
	if err != nil {
		return err
	}
	for _, ch := range chapters {
		if ch.CourseID != course.ID {
			return fmt.Errorf("chapter %s listed under course %s", ch.ID, course.ID)
		}
	}
	if len(chapters) == 0 {
		return nil
	}

	ch := chapters[pick%len(chapters)]
	if _, err := h.Store.ListSubchapters(ctx, course.ID, ch.ChapterID); err != nil {
		return err
	}
	return nil
}

// computeLatencyStats calculates statistics from a slice of durations.
func computeLatencyStats(durations []time.Duration) *LatencyStats {
	if len(durations) == 0 {
		return &LatencyStats{}
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return &LatencyStats{
		Min:          sorted[0],
		Max:          sorted[len(sorted)-1],
		Mean:         sum / time.Duration(len(durations)),
		P50:          sorted[len(sorted)*50/100],
		P95:          sorted[len(sorted)*95/100],
		P99:          sorted[len(sorted)*99/100],
		TotalQueries: len(durations),
		Durations:    sorted,
	}
}

// PrintStats writes latency statistics to w.
func (s *LatencyStats) PrintStats(w io.Writer) {
	fmt.Fprintf(w, "Latency Statistics:\n")
	fmt.Fprintf(w, "  Total Queries: %d\n", s.TotalQueries)
	fmt.Fprintf(w, "  Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "  Min:           %v\n", s.Min)
	fmt.Fprintf(w, "  P50 (Median):  %v\n", s.P50)
	fmt.Fprintf(w, "  Mean:          %v\n", s.Mean)
	fmt.Fprintf(w, "  P95:           %v\n", s.P95)
	fmt.Fprintf(w, "  P99:           %v\n", s.P99)
	fmt.Fprintf(w, "  Max:           %v\n", s.Max)
}

// swapReader serves a catalog that can be replaced between syncs.
type swapReader struct {
	mu      sync.Mutex
	courses catalog.Static
}

func (r *swapReader) set(courses catalog.Static) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.courses = courses
}

func (r *swapReader) ListAvailableCourses(ctx context.Context) ([]catalog.AvailableCourse, error) {
	r.mu.Lock()
	courses := r.courses
	r.mu.Unlock()
	return courses.ListAvailableCourses(ctx)
}
