// Package promptfile implements the front-matter helper (§4.13): given
// a Markdown file's contents, split off a leading "---\n...\n---\n"
// YAML block as metadata and return the remainder as content.
package promptfile

import (
	"strings"

	"github.com/goccy/go-yaml"
)

const delimiter = "---"

// Result is the split content and parsed metadata.
type Result struct {
	Content  string
	Metadata map[string]any
}

// Strip parses front matter out of raw. Malformed metadata yields an
// empty Metadata map rather than an error — front matter is a
// convenience, never a reason to fail delivery.
func Strip(raw string) Result {
	lines := strings.SplitAfter(raw, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], "\n") != delimiter {
		return Result{Content: raw, Metadata: map[string]any{}}
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], "\n") == delimiter {
			end = i
			break
		}
	}
	if end == -1 {
		return Result{Content: raw, Metadata: map[string]any{}}
	}

	yamlBlock := strings.Join(lines[1:end], "")
	body := strings.Join(lines[end+1:], "")

	meta := map[string]any{}
	if err := yaml.Unmarshal([]byte(yamlBlock), &meta); err != nil {
		return Result{Content: body, Metadata: map[string]any{}}
	}
	return Result{Content: body, Metadata: meta}
}
