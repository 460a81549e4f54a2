// Package catalog describes the authoritative course catalog and the readers
// that produce it.
//
// # Overview
//
// A catalog is an ordered list of AvailableCourse values. Each course carries
// its metadata, its parts and the full text of every chapter and subchapter.
// The catalog is system-authored: the local store replaces its copy whenever
// the course version changes.
//
// Two readers are provided:
//
//   - FSReader walks a content directory on disk.
//   - HTTPReader fetches GET /api/courses/available from a running server.
//
// Both return courses sorted ascending by their order field; a course
// without an order sorts as DefaultOrder (999). Any failure to produce the
// list is reported as ErrCatalogUnavailable.
//
// # Content Layout
//
// FSReader expects one directory per course:
//
//	content/
//	  go-basics/
//	    course.yaml            (or course.json, course.yml, course.toml)
//	    chapters/
//	      01-intro.md          (chapter without subchapters)
//	      02-types/
//	        index.md           (chapter body)
//	        01-ints.md         (subchapter)
//	        02-strings.md      (subchapter)
//
// Markdown files may start with YAML frontmatter:
//
//	---
//	id: intro
//	title: Introduction
//	order: 1
//	part: basics
//	---
//	# Introduction
//
// Missing values are derived from the file name: "01-intro.md" yields id
// "intro" and order 1. A missing title falls back to the first "# " heading,
// then to the id.
//
// # Metadata
//
// The course metadata file names the course and its parts:
//
//	id: go-basics
//	title: Go Basics
//	description: A first course
//	version: 1.2.0
//	order: 1
//	tags: [go, beginner]
//	parts:
//	  - id: basics
//	    title: The Basics
//	    order: 1
//
// A directory without a metadata file is not a course and is ignored. A
// course whose metadata cannot be parsed is logged and skipped so one broken
// course does not hide the rest of the catalog.
package catalog
