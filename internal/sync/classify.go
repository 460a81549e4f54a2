package sync

import (
	"strings"

	"golang.org/x/mod/semver"

	"github.com/courseshelf/shelf/internal/catalog"
)

// Decision is what a sync does with one available course.
type Decision int

const (
	// DecisionUnchanged courses are skipped and none of their rows are touched.
	DecisionUnchanged Decision = iota
	// DecisionNew courses are imported.
	DecisionNew
	// DecisionChanged courses have their content replaced. Progress and notes stay.
	DecisionChanged
)

func (d Decision) String() string {
	switch d {
	case DecisionNew:
		return "new"
	case DecisionChanged:
		return "changed"
	default:
		return "unchanged"
	}
}

// Classify decides how to treat an available course given the version
// stored locally. exists reports whether the course is stored at all.
//
// A course whose catalog entry has no version is never treated as changed,
// so unversioned content is imported once and then left alone.
func Classify(c *catalog.AvailableCourse, storedVersion string, exists bool) Decision {
	if !exists {
		return DecisionNew
	}
	if c.Version != "" && c.Version != storedVersion {
		return DecisionChanged
	}
	return DecisionUnchanged
}

// Direction describes a version change.
type Direction string

const (
	DirectionUpgrade   Direction = "upgrade"
	DirectionDowngrade Direction = "downgrade"
	// DirectionChanged is used when either version is not semver.
	DirectionChanged Direction = "changed"
)

// VersionDirection compares two course versions as semantic versions. A
// leading "v" is optional.
func VersionDirection(from, to string) Direction {
	f, t := canonicalVersion(from), canonicalVersion(to)
	if !semver.IsValid(f) || !semver.IsValid(t) {
		return DirectionChanged
	}
	switch semver.Compare(f, t) {
	case -1:
		return DirectionUpgrade
	case 1:
		return DirectionDowngrade
	default:
		return DirectionChanged
	}
}

func canonicalVersion(v string) string {
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
