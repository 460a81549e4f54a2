package catalog

import (
	"context"
	"fmt"
	"sort"
)

// DefaultOrder is the sort position of anything without an explicit order.
const DefaultOrder = 999

// AvailableCourse is one course as published by the catalog, including the
// full text of its chapters.
type AvailableCourse struct {
	// ===== Identification =====
	ID      string `json:"id"`
	Version string `json:"version,omitempty"` // empty = unversioned, never auto-updated

	// ===== Metadata =====
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Author         string   `json:"author,omitempty"`
	Order          *int     `json:"order,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Difficulty     string   `json:"difficulty,omitempty"`
	EstimatedHours *float64 `json:"estimatedHours,omitempty"`
	Prerequisites  []string `json:"prerequisites,omitempty"`

	// ===== Content =====
	Parts           []Part           `json:"parts"`
	ChaptersContent []ChapterContent `json:"chaptersContent"`
}

// Part groups chapters inside a course.
type Part struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Order *int   `json:"order,omitempty"`
}

// ChapterContent is a chapter and its subchapters.
type ChapterContent struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	PartID      string              `json:"partId,omitempty"`
	Content     string              `json:"content"`
	Order       *int                `json:"order,omitempty"`
	Subchapters []SubchapterContent `json:"subchapters,omitempty"`
}

// SubchapterContent is a section of a chapter.
type SubchapterContent struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Order   *int   `json:"order,omitempty"`
}

// Reader produces the current catalog.
//
// Implementations return courses sorted ascending by order (missing order
// sorts as DefaultOrder) and wrap every failure in ErrCatalogUnavailable.
//
// Example:
//
//	reader := catalog.NewFSReader("content", nil)
//	courses, err := reader.ListAvailableCourses(ctx)
//	if errors.Is(err, catalog.ErrCatalogUnavailable) {
//	    return err
//	}
type Reader interface {
	ListAvailableCourses(ctx context.Context) ([]AvailableCourse, error)
}

// Static is a fixed, in-memory catalog.
type Static []AvailableCourse

// ListAvailableCourses implements Reader. The receiver is not modified.
func (s Static) ListAvailableCourses(ctx context.Context) ([]AvailableCourse, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	courses := make([]AvailableCourse, len(s))
	copy(courses, s)
	SortCourses(courses)
	return courses, nil
}

// IntPtr returns a pointer to v. Handy for building orders in literals.
func IntPtr(v int) *int {
	return &v
}

// OrderOf returns the effective sort position of an optional order.
func OrderOf(order *int) int {
	if order == nil {
		return DefaultOrder
	}
	return *order
}

// SortCourses sorts courses ascending by order. Ties keep their input order.
func SortCourses(courses []AvailableCourse) {
	sort.SliceStable(courses, func(i, j int) bool {
		return OrderOf(courses[i].Order) < OrderOf(courses[j].Order)
	})
}

// SortedParts returns the course parts sorted by order.
func (c *AvailableCourse) SortedParts() []Part {
	parts := make([]Part, len(c.Parts))
	copy(parts, c.Parts)
	sort.SliceStable(parts, func(i, j int) bool {
		return OrderOf(parts[i].Order) < OrderOf(parts[j].Order)
	})
	return parts
}

// SortedChapters returns the course chapters sorted by order.
func (c *AvailableCourse) SortedChapters() []ChapterContent {
	chapters := make([]ChapterContent, len(c.ChaptersContent))
	copy(chapters, c.ChaptersContent)
	sort.SliceStable(chapters, func(i, j int) bool {
		return OrderOf(chapters[i].Order) < OrderOf(chapters[j].Order)
	})
	return chapters
}

// SortedSubchapters returns the chapter's subchapters sorted by order.
func (ch *ChapterContent) SortedSubchapters() []SubchapterContent {
	subs := make([]SubchapterContent, len(ch.Subchapters))
	copy(subs, ch.Subchapters)
	sort.SliceStable(subs, func(i, j int) bool {
		return OrderOf(subs[i].Order) < OrderOf(subs[j].Order)
	})
	return subs
}

// Validate checks that the course can be stored without key collisions.
func (c *AvailableCourse) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidCourse)
	}
	if c.Title == "" {
		return fmt.Errorf("%w: course %s: title is required", ErrInvalidCourse, c.ID)
	}

	parts := make(map[string]bool, len(c.Parts))
	for _, p := range c.Parts {
		if p.ID == "" {
			return fmt.Errorf("%w: course %s: part id is required", ErrInvalidCourse, c.ID)
		}
		if parts[p.ID] {
			return fmt.Errorf("%w: course %s: duplicate part %s", ErrInvalidCourse, c.ID, p.ID)
		}
		parts[p.ID] = true
	}

	chapters := make(map[string]bool, len(c.ChaptersContent))
	for _, ch := range c.ChaptersContent {
		if ch.ID == "" {
			return fmt.Errorf("%w: course %s: chapter id is required", ErrInvalidCourse, c.ID)
		}
		if chapters[ch.ID] {
			return fmt.Errorf("%w: course %s: duplicate chapter %s", ErrInvalidCourse, c.ID, ch.ID)
		}
		chapters[ch.ID] = true

		subs := make(map[string]bool, len(ch.Subchapters))
		for _, sub := range ch.Subchapters {
			if sub.ID == "" {
				return fmt.Errorf("%w: course %s: chapter %s: subchapter id is required", ErrInvalidCourse, c.ID, ch.ID)
			}
			if subs[sub.ID] {
				return fmt.Errorf("%w: course %s: chapter %s: duplicate subchapter %s", ErrInvalidCourse, c.ID, ch.ID, sub.ID)
			}
			subs[sub.ID] = true
		}
	}

	return nil
}

// ChapterCount returns the number of chapters plus subchapters.
func (c *AvailableCourse) ChapterCount() (chapters, subchapters int) {
	for _, ch := range c.ChaptersContent {
		chapters++
		subchapters += len(ch.Subchapters)
	}
	return chapters, subchapters
}
