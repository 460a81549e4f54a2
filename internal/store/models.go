package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"
)

// Course is a stored course row.
type Course struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Author         string    `json:"author,omitempty"`
	Version        string    `json:"version,omitempty"` // empty = unversioned
	Order          int       `json:"order"`
	Tags           []string  `json:"tags"`
	Difficulty     string    `json:"difficulty,omitempty"`
	EstimatedHours *float64  `json:"estimatedHours,omitempty"`
	Prerequisites  []string  `json:"prerequisites"`
	ImportedAt     time.Time `json:"importedAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Part is a stored part row.
type Part struct {
	ID       string `json:"id"`
	CourseID string `json:"courseId"`
	PartID   string `json:"partId"`
	Title    string `json:"title"`
	Order    int    `json:"order"`
}

// Chapter is a stored chapter row.
type Chapter struct {
	ID        string `json:"id"`
	CourseID  string `json:"courseId"`
	ChapterID string `json:"chapterId"`
	PartID    string `json:"partId,omitempty"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Order     int    `json:"order"`
}

// Subchapter is a stored subchapter row.
type Subchapter struct {
	ID           string `json:"id"`
	CourseID     string `json:"courseId"`
	ChapterID    string `json:"chapterId"`
	SubchapterID string `json:"subchapterId"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	Order        int    `json:"order"`
}

// Progress records how far the learner got in a chapter or subchapter.
type Progress struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"courseId"`
	ChapterID    string    `json:"chapterId"`
	SubchapterID string    `json:"subchapterId,omitempty"` // empty = chapter level
	Completed    bool      `json:"completed"`
	LastRead     time.Time `json:"lastRead"`

	// Orphaned is computed on read: the chapter or subchapter no longer
	// exists in the replica. It is never stored.
	Orphaned bool `json:"orphaned,omitempty"`
}

// Note is a learner note attached to a course, chapter or subchapter.
type Note struct {
	ID           string    `json:"id"`
	CourseID     string    `json:"courseId"`
	ChapterID    string    `json:"chapterId,omitempty"`
	SubchapterID string    `json:"subchapterId,omitempty"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// Orphaned is computed on read, see Progress.Orphaned.
	Orphaned bool `json:"orphaned,omitempty"`
}

// timeFormat is fixed width so stored timestamps sort as strings.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		// Rows written by hand or by older tools may use plain RFC 3339.
		if t, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}

// nullString maps "" to NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

// marshalList stores a string slice as a JSON array; nil becomes [].
func marshalList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalList(s string) []string {
	list := []string{}
	if s == "" || s == "null" {
		return list
	}
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return []string{}
	}
	return list
}

// PartKey returns the row id of a part.
func PartKey(courseID, partID string) string {
	return joinKey(courseID, partID)
}

// ChapterKey returns the row id of a chapter.
func ChapterKey(courseID, chapterID string) string {
	return joinKey(courseID, chapterID)
}

// SubchapterKey returns the row id of a subchapter.
func SubchapterKey(courseID, chapterID, subchapterID string) string {
	return joinKey(courseID, chapterID, subchapterID)
}

// ProgressKey returns the row id of a progress record. An empty
// subchapterID addresses the chapter itself.
func ProgressKey(courseID, chapterID, subchapterID string) string {
	if subchapterID == "" {
		return joinKey(courseID, chapterID)
	}
	return joinKey(courseID, chapterID, subchapterID)
}

func joinKey(parts ...string) string {
	return strings.Join(parts, "-")
}
