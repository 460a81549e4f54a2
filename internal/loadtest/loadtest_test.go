package loadtest

import (
	"bytes"
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func smallSpec() CatalogSpec {
	return CatalogSpec{Courses: 10, Chapters: 5, Subchapters: 2, BodyBytes: 64, Version: "1.0", Seed: 7}
}

func TestGenerateCatalog(t *testing.T) {
	spec := smallSpec()
	a := GenerateCatalog(spec)
	b := GenerateCatalog(spec)

	if !reflect.DeepEqual(a, b) {
		t.Error("GenerateCatalog is not deterministic for a fixed seed")
	}
	if len(a) != spec.Courses {
		t.Fatalf("got %d courses, want %d", len(a), spec.Courses)
	}

	unordered := 0
	for i := range a {
		c := &a[i]
		if err := c.Validate(); err != nil {
			t.Errorf("course %s invalid: %v", c.ID, err)
		}
		chapters, subchapters := c.ChapterCount()
		if chapters != spec.Chapters || subchapters != spec.Chapters*spec.Subchapters {
			t.Errorf("course %s has %d/%d chapters/subchapters", c.ID, chapters, subchapters)
		}
		if len(c.ChaptersContent[0].Content) != spec.BodyBytes {
			t.Errorf("body is %d bytes, want %d", len(c.ChaptersContent[0].Content), spec.BodyBytes)
		}
		if c.Order == nil {
			unordered++
		}
	}
	if unordered != 2 {
		t.Errorf("got %d unordered courses, want 2", unordered)
	}
}

func TestHarness_Sync(t *testing.T) {
	h, err := NewHarness(filepath.Join(t.TempDir(), "load.db"), smallSpec())
	if err != nil {
		t.Fatalf("NewHarness() failed: %v", err)
	}
	defer h.Close()

	report, err := h.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if report.NewCoursesImported != 10 {
		t.Errorf("imported %d courses, want 10", report.NewCoursesImported)
	}

	stats, _ := h.Store.Stats(context.Background())
	if stats.Chapters != 50 || stats.Subchapters != 100 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRunDuringSync_ReadersNeverFail(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load test in short mode")
	}

	spec := smallSpec()
	spec.Courses = 30
	h, err := NewHarness(filepath.Join(t.TempDir(), "load.db"), spec)
	if err != nil {
		t.Fatalf("NewHarness() failed: %v", err)
	}
	defer h.Close()

	ctx := context.Background()

	// First pass imports everything while readers run.
	result, err := h.RunDuringSync(ctx, 8)
	if err != nil {
		t.Fatalf("RunDuringSync() failed: %v", err)
	}
	for _, f := range result.Failures {
		t.Errorf("reader failure: %v", f)
	}
	if result.Report.NewCoursesImported != 30 {
		t.Errorf("report = %s", result.Report)
	}

	// Second pass replaces every course's content under the readers.
	spec.Version = "2.0"
	h.SetCatalog(GenerateCatalog(spec))

	result, err = h.RunDuringSync(ctx, 8)
	if err != nil {
		t.Fatalf("RunDuringSync() failed: %v", err)
	}
	for _, f := range result.Failures {
		t.Errorf("reader failure during update: %v", f)
	}
	if result.Report.CoursesUpdated != 30 {
		t.Errorf("report = %s", result.Report)
	}

	var out bytes.Buffer
	result.Stats.PrintStats(&out)
	t.Log(out.String())
}

func TestComputeLatencyStats(t *testing.T) {
	tests := []struct {
		name      string
		durations []time.Duration
		want      LatencyStats
	}{
		{
			name: "empty",
			want: LatencyStats{},
		},
		{
			name:      "single",
			durations: []time.Duration{5 * time.Millisecond},
			want: LatencyStats{Min: 5 * time.Millisecond, Max: 5 * time.Millisecond, Mean: 5 * time.Millisecond,
				P50: 5 * time.Millisecond, P95: 5 * time.Millisecond, P99: 5 * time.Millisecond, TotalQueries: 1},
		},
		{
			name:      "unsorted",
			durations: []time.Duration{4, 1, 3, 2},
			want:      LatencyStats{Min: 1, Max: 4, Mean: 2, P50: 3, P95: 4, P99: 4, TotalQueries: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := computeLatencyStats(tt.durations)
			got.Durations = nil
			if !reflect.DeepEqual(*got, tt.want) {
				t.Errorf("computeLatencyStats() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestPrintStats(t *testing.T) {
	var out bytes.Buffer
	computeLatencyStats([]time.Duration{time.Millisecond}).PrintStats(&out)
	if !strings.Contains(out.String(), "Total Queries: 1") {
		t.Errorf("output = %q", out.String())
	}
}
