package store

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by the store.
var (
	// ErrNotFound is returned when a row looked up by id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownDriver is returned when Options.Driver names a driver that
	// was not compiled in.
	ErrUnknownDriver = errors.New("unknown database driver")

	// ErrKeyCollision is returned when two different natural keys join to
	// the same row id, e.g. course "a-b" chapter "c" and course "a"
	// chapter "b-c".
	ErrKeyCollision = errors.New("composite id collision")
)

// keyError wraps a failed write. A primary key violation on table means
// the row id is already taken by a row with a different natural key.
func keyError(table Table, key string, err error) error {
	if strings.Contains(err.Error(), "UNIQUE constraint failed: "+string(table)+".id") {
		return fmt.Errorf("%s %s: %w", table, key, ErrKeyCollision)
	}
	return fmt.Errorf("failed to write %s %s: %w", table, key, err)
}
