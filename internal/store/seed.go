package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/courseshelf/shelf/internal/catalog"
)

//go:embed seed/welcome.json
var welcomeCourse []byte

// DemoCourse returns the course written by SeedIfEmpty.
func DemoCourse() (*catalog.AvailableCourse, error) {
	var course catalog.AvailableCourse
	if err := json.Unmarshal(welcomeCourse, &course); err != nil {
		return nil, fmt.Errorf("failed to decode demo course: %w", err)
	}
	return &course, nil
}

// SeedIfEmpty writes the demo course when the store has no courses. The
// demo uses the same id scheme as synced content, so a later sync treats it
// like any other course. Reports whether the seed was written.
func (s *Store) SeedIfEmpty(ctx context.Context) (bool, error) {
	course, err := DemoCourse()
	if err != nil {
		return false, err
	}

	seeded := false
	err = s.WithTx(ctx, func(tx *Tx) error {
		var count int
		if err := tx.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses`).Scan(&count); err != nil {
			return fmt.Errorf("failed to count courses: %w", err)
		}
		if count > 0 {
			return nil
		}
		seeded = true
		return tx.PutCourseTree(course)
	})
	if err != nil {
		return false, fmt.Errorf("failed to seed demo course: %w", err)
	}

	if seeded {
		s.logger.Printf("Seeded demo course %s", course.ID)
	}
	return seeded, nil
}
