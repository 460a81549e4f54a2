package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var timeParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// parseSince turns a --since value into a time. It accepts a duration
// ("48h"), a date ("2025-01-31") or natural language ("3 days ago",
// "yesterday", "last monday"). An empty value means no limit.
func parseSince(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, nil
	}

	if d, err := time.ParseDuration(value); err == nil {
		return now.Add(-d), nil
	}
	if t, err := time.ParseInLocation("2006-01-02", value, now.Location()); err == nil {
		return t, nil
	}

	r, err := timeParser.Parse(value, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: %w", value, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("invalid --since %q: expected a duration, a date or e.g. \"3 days ago\"", value)
	}
	return r.Time, nil
}
