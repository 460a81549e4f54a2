package catalog

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// frontmatter is the optional YAML header of a chapter or subchapter file.
type frontmatter struct {
	ID    string `yaml:"id"`
	Title string `yaml:"title"`
	Order *int   `yaml:"order"`
	Part  string `yaml:"part"`
}

var orderPrefix = regexp.MustCompile(`^(\d+)[-_. ]+(.+)$`)

// splitOrderPrefix turns "02-types" into (2, "types"). Names without a
// numeric prefix return a nil order and the name unchanged.
func splitOrderPrefix(name string) (*int, string) {
	m := orderPrefix.FindStringSubmatch(name)
	if m == nil {
		return nil, name
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, name
	}
	return &n, m[2]
}

// parseMarkdown splits a markdown document into its frontmatter and body.
func parseMarkdown(data []byte) (frontmatter, string, error) {
	var fm frontmatter

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	if !strings.HasPrefix(text, "---\n") {
		return fm, text, nil
	}

	rest := text[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	var header, body string
	switch {
	case end >= 0:
		header, body = rest[:end], rest[end+len("\n---\n"):]
	case strings.HasSuffix(rest, "\n---"):
		header, body = strings.TrimSuffix(rest, "\n---"), ""
	default:
		// Unterminated header: treat the whole file as body.
		return fm, text, nil
	}

	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return fm, "", fmt.Errorf("invalid frontmatter: %w", err)
	}

	return fm, strings.TrimLeft(body, "\n"), nil
}

// firstHeading returns the text of the first level-one heading.
func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}
