package promptfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripSeparatesFrontMatterFromBody(t *testing.T) {
	raw := "---\ntitle: Triage\npriority: high\n---\nPlease triage this issue.\n"

	res := Strip(raw)
	assert.Equal(t, "Please triage this issue.\n", res.Content)
	assert.Equal(t, "Triage", res.Metadata["title"])
	assert.Equal(t, "high", res.Metadata["priority"])
}

func TestStripNoFrontMatterReturnsRawAsContent(t *testing.T) {
	raw := "Just a plain prompt with no front matter.\n"
	res := Strip(raw)
	assert.Equal(t, raw, res.Content)
	assert.Empty(t, res.Metadata)
}

func TestStripUnterminatedFrontMatterReturnsRawAsContent(t *testing.T) {
	raw := "---\ntitle: Triage\nPlease triage this issue.\n"
	res := Strip(raw)
	assert.Equal(t, raw, res.Content)
	assert.Empty(t, res.Metadata)
}

func TestStripMalformedYAMLFallsBackToEmptyMetadata(t *testing.T) {
	raw := "---\n: not: valid: yaml: at: all:\n---\nBody text.\n"
	res := Strip(raw)
	assert.Equal(t, "Body text.\n", res.Content)
	assert.Empty(t, res.Metadata)
}

// TestStripIdempotent is the front-matter idempotence property: running
// Strip again on already-stripped content (which has no front matter)
// is a no-op.
func TestStripIdempotent(t *testing.T) {
	raw := "---\ntitle: Triage\n---\nBody text.\n"
	once := Strip(raw)
	twice := Strip(once.Content)
	assert.Equal(t, once.Content, twice.Content)
	assert.Empty(t, twice.Metadata)
}
