// Package backup exports and imports the learner's own data (progress and
// notes) as JSON Lines. Course content is not included; it is restored by
// the next sync.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/courseshelf/shelf/internal/store"
)

// FormatVersion is written in the header record of every export.
const FormatVersion = 1

// Record kinds.
const (
	KindHeader   = "header"
	KindProgress = "progress"
	KindNote     = "note"
)

// ErrUnsupportedFormat is returned for files without a known header.
var ErrUnsupportedFormat = errors.New("unsupported backup format")

// Record is one line of a backup file. Exactly one payload is set,
// matching Kind.
type Record struct {
	Kind       string          `json:"kind"`
	Version    int             `json:"version,omitempty"`
	ExportedAt *time.Time      `json:"exportedAt,omitempty"`
	Progress   *store.Progress `json:"progress,omitempty"`
	Note       *store.Note     `json:"note,omitempty"`
}

// Result contains counts for an export or import.
type Result struct {
	Progress int      `json:"progress"`
	Notes    int      `json:"notes"`
	Removed  int      `json:"removed,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// Write streams a header followed by every progress record and note.
func Write(ctx context.Context, st *store.Store, w io.Writer) (*Result, error) {
	progress, err := st.ListProgress(ctx, store.ProgressFilter{})
	if err != nil {
		return nil, err
	}
	notes, err := st.ListNotes(ctx, store.NoteFilter{})
	if err != nil {
		return nil, err
	}

	enc := json.NewEncoder(w)
	now := time.Now().UTC()
	if err := enc.Encode(Record{Kind: KindHeader, Version: FormatVersion, ExportedAt: &now}); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	result := &Result{}
	for _, p := range progress {
		p.Orphaned = false
		if err := enc.Encode(Record{Kind: KindProgress, Progress: p}); err != nil {
			return nil, fmt.Errorf("failed to write progress %s: %w", p.ID, err)
		}
		result.Progress++
	}
	for _, n := range notes {
		n.Orphaned = false
		if err := enc.Encode(Record{Kind: KindNote, Note: n}); err != nil {
			return nil, fmt.Errorf("failed to write note %s: %w", n.ID, err)
		}
		result.Notes++
	}
	return result, nil
}

// Export writes a backup to path atomically via a temp file.
func Export(ctx context.Context, st *store.Store, path string) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	tmpPath := path + ".tmp"
	// #nosec G304 - controlled path from CLI
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	result, err := Write(ctx, st, f)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close temp file: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return nil, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return nil, fmt.Errorf("failed to rename temp file: %w", err)
	}
	return result, nil
}

// ImportOptions controls Import and Read.
type ImportOptions struct {
	// Replace deletes all existing progress and notes before importing.
	Replace bool
	// DryRun validates and counts records without writing.
	DryRun bool
}

// Read applies a backup stream to the store. Records are upserted by id,
// so importing the same file twice leaves one copy of each row. A record
// that fails to apply is noted in Result.Errors and the import continues.
func Read(ctx context.Context, st *store.Store, r io.Reader, opts ImportOptions) (*Result, error) {
	dec := json.NewDecoder(r)

	var header Record
	if err := dec.Decode(&header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrUnsupportedFormat)
		}
		return nil, fmt.Errorf("%w: invalid JSON at line 1: %w", ErrUnsupportedFormat, err)
	}
	if header.Kind != KindHeader || header.Version != FormatVersion {
		return nil, fmt.Errorf("%w: header kind=%q version=%d", ErrUnsupportedFormat, header.Kind, header.Version)
	}

	var records []Record
	for line := 2; ; line++ {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("invalid JSON at line %d: %w", line, err)
		}
		if err := validate(rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}

	result := &Result{}
	if opts.DryRun {
		for _, rec := range records {
			count(result, rec)
		}
		return result, nil
	}

	if opts.Replace {
		removed, err := clearUserData(ctx, st)
		result.Removed = removed
		if err != nil {
			return result, err
		}
	}

	for _, rec := range records {
		var err error
		switch rec.Kind {
		case KindProgress:
			err = st.PutProgress(ctx, rec.Progress)
		case KindNote:
			err = st.PutNote(ctx, rec.Note)
		}
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		count(result, rec)
	}
	return result, nil
}

// Import applies the backup file at path.
func Import(ctx context.Context, st *store.Store, path string, opts ImportOptions) (*Result, error) {
	// #nosec G304 - controlled path from CLI
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open backup file: %w", err)
	}
	defer f.Close()

	return Read(ctx, st, f, opts)
}

func validate(rec Record) error {
	switch rec.Kind {
	case KindProgress:
		if rec.Progress == nil || rec.Progress.CourseID == "" || rec.Progress.ChapterID == "" {
			return fmt.Errorf("progress record needs courseId and chapterId")
		}
	case KindNote:
		if rec.Note == nil || rec.Note.ID == "" || rec.Note.CourseID == "" {
			return fmt.Errorf("note record needs id and courseId")
		}
	default:
		return fmt.Errorf("unknown record kind %q", rec.Kind)
	}
	return nil
}

func count(result *Result, rec Record) {
	switch rec.Kind {
	case KindProgress:
		result.Progress++
	case KindNote:
		result.Notes++
	}
}

func clearUserData(ctx context.Context, st *store.Store) (int, error) {
	removed := 0
	progress, err := st.ListProgress(ctx, store.ProgressFilter{})
	if err != nil {
		return removed, err
	}
	for _, p := range progress {
		if err := st.DeleteProgress(ctx, p.ID); err != nil {
			return removed, err
		}
		removed++
	}

	notes, err := st.ListNotes(ctx, store.NoteFilter{})
	if err != nil {
		return removed, err
	}
	for _, n := range notes {
		if err := st.DeleteNote(ctx, n.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
