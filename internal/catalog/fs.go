package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// metadataFiles are tried in this order; the first one present wins.
var metadataFiles = []string{"course.json", "course.yaml", "course.yml", "course.toml"}

// ChaptersDir is the directory inside a course that holds chapter files.
const ChaptersDir = "chapters"

// courseMeta is the on-disk shape of a course metadata file.
type courseMeta struct {
	ID             string     `json:"id" yaml:"id" toml:"id"`
	Title          string     `json:"title" yaml:"title" toml:"title"`
	Description    string     `json:"description" yaml:"description" toml:"description"`
	Author         string     `json:"author" yaml:"author" toml:"author"`
	Version        string     `json:"version" yaml:"version" toml:"version"`
	Order          *int       `json:"order" yaml:"order" toml:"order"`
	Tags           []string   `json:"tags" yaml:"tags" toml:"tags"`
	Difficulty     string     `json:"difficulty" yaml:"difficulty" toml:"difficulty"`
	EstimatedHours *float64   `json:"estimatedHours" yaml:"estimatedHours" toml:"estimatedHours"`
	Prerequisites  []string   `json:"prerequisites" yaml:"prerequisites" toml:"prerequisites"`
	Parts          []metaPart `json:"parts" yaml:"parts" toml:"parts"`
}

type metaPart struct {
	ID    string `json:"id" yaml:"id" toml:"id"`
	Title string `json:"title" yaml:"title" toml:"title"`
	Order *int   `json:"order" yaml:"order" toml:"order"`
}

// FSReader reads the catalog from a content directory.
type FSReader struct {
	root   string
	logger *log.Logger
}

// NewFSReader creates a reader rooted at the given content directory.
//
// If logger is nil, a default logger writing to stderr is used.
func NewFSReader(root string, logger *log.Logger) *FSReader {
	if logger == nil {
		logger = log.New(os.Stderr, "[catalog] ", log.LstdFlags)
	}
	return &FSReader{root: root, logger: logger}
}

// Root returns the content directory.
func (r *FSReader) Root() string {
	return r.root
}

// ListAvailableCourses implements Reader.
func (r *FSReader) ListAvailableCourses(ctx context.Context) ([]AvailableCourse, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("%w: read content root %s: %w", ErrCatalogUnavailable, r.root, err)
	}

	courses := make([]AvailableCourse, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
		}
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		course, err := ReadCourseDir(filepath.Join(r.root, entry.Name()))
		if errors.Is(err, errNotACourse) {
			continue
		}
		if err != nil {
			r.logger.Printf("WARNING: Skipping course %s: %v", entry.Name(), err)
			continue
		}
		courses = append(courses, *course)
	}

	SortCourses(courses)
	return courses, nil
}

// ReadCourseDir reads one course directory.
func ReadCourseDir(dir string) (*AvailableCourse, error) {
	meta, err := readCourseMeta(dir)
	if err != nil {
		return nil, err
	}

	course := &AvailableCourse{
		ID:              meta.ID,
		Version:         meta.Version,
		Title:           meta.Title,
		Description:     meta.Description,
		Author:          meta.Author,
		Order:           meta.Order,
		Tags:            meta.Tags,
		Difficulty:      meta.Difficulty,
		EstimatedHours:  meta.EstimatedHours,
		Prerequisites:   meta.Prerequisites,
		Parts:           make([]Part, 0, len(meta.Parts)),
		ChaptersContent: []ChapterContent{},
	}
	if course.ID == "" {
		course.ID = filepath.Base(dir)
	}
	if course.Title == "" {
		course.Title = course.ID
	}
	for _, p := range meta.Parts {
		course.Parts = append(course.Parts, Part(p))
	}

	chapters, err := readChapters(filepath.Join(dir, ChaptersDir))
	if err != nil {
		return nil, err
	}
	course.ChaptersContent = chapters

	if err := course.Validate(); err != nil {
		return nil, err
	}
	return course, nil
}

// readCourseMeta finds and decodes the metadata file of a course directory.
func readCourseMeta(dir string) (*courseMeta, error) {
	for _, name := range metadataFiles {
		path := filepath.Join(dir, name)
		// #nosec G304 - path built from the configured content root
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}

		var meta courseMeta
		switch filepath.Ext(name) {
		case ".json":
			err = json.Unmarshal(data, &meta)
		case ".yaml", ".yml":
			err = yaml.Unmarshal(data, &meta)
		case ".toml":
			err = toml.Unmarshal(data, &meta)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		return &meta, nil
	}
	return nil, errNotACourse
}

// readChapters reads every chapter in a chapters directory. A missing
// directory means the course has no chapters yet.
func readChapters(dir string) ([]ChapterContent, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return []ChapterContent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chapters directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	chapters := make([]ChapterContent, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		var (
			ch  ChapterContent
			err error
		)
		switch {
		case entry.IsDir():
			ch, err = readChapterDir(filepath.Join(dir, name))
		case filepath.Ext(name) == ".md":
			ch, err = readChapterFile(filepath.Join(dir, name))
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("chapter %s: %w", name, err)
		}
		chapters = append(chapters, ch)
	}
	return chapters, nil
}

func readChapterFile(path string) (ChapterContent, error) {
	doc, err := readDocument(path, strings.TrimSuffix(filepath.Base(path), ".md"))
	if err != nil {
		return ChapterContent{}, err
	}
	return ChapterContent{
		ID:      doc.id,
		Title:   doc.title,
		PartID:  doc.part,
		Content: doc.body,
		Order:   doc.order,
	}, nil
}

func readChapterDir(dir string) (ChapterContent, error) {
	name := filepath.Base(dir)
	order, slug := splitOrderPrefix(name)
	ch := ChapterContent{ID: slug, Title: slug, Order: order}

	indexPath := filepath.Join(dir, "index.md")
	if _, err := os.Stat(indexPath); err == nil {
		doc, err := readDocument(indexPath, name)
		if err != nil {
			return ChapterContent{}, err
		}
		ch.ID, ch.Title, ch.PartID, ch.Content, ch.Order = doc.id, doc.title, doc.part, doc.body, doc.order
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ChapterContent{}, fmt.Errorf("failed to read chapter directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == "index.md" || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		doc, err := readDocument(filepath.Join(dir, entry.Name()), strings.TrimSuffix(entry.Name(), ".md"))
		if err != nil {
			return ChapterContent{}, fmt.Errorf("subchapter %s: %w", entry.Name(), err)
		}
		ch.Subchapters = append(ch.Subchapters, SubchapterContent{
			ID:      doc.id,
			Title:   doc.title,
			Content: doc.body,
			Order:   doc.order,
		})
	}
	return ch, nil
}

// document is a parsed markdown file with defaults applied.
type document struct {
	id    string
	title string
	part  string
	body  string
	order *int
}

// readDocument parses a markdown file. name supplies the default id and
// order when the frontmatter does not.
func readDocument(path, name string) (document, error) {
	// #nosec G304 - path built from the configured content root
	data, err := os.ReadFile(path)
	if err != nil {
		return document{}, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	fm, body, err := parseMarkdown(bytes.TrimSpace(data))
	if err != nil {
		return document{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}

	order, slug := splitOrderPrefix(name)
	doc := document{id: fm.ID, title: fm.Title, part: fm.Part, body: body, order: fm.Order}
	if doc.id == "" {
		doc.id = slug
	}
	if doc.order == nil {
		doc.order = order
	}
	if doc.title == "" {
		doc.title = firstHeading(body)
	}
	if doc.title == "" {
		doc.title = doc.id
	}
	return doc, nil
}
