// ABOUTME: Tests for the response cache: exact/fuzzy hits, hit counts,
// ABOUTME: bypass keywords, update semantics, and snapshot persistence.

package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_ExactHitIncrementsCount(t *testing.T) {
	c := New()
	c.Put("What projects have you built?", "Several.", "mistral")

	entry, ok := c.Lookup("what projects have you built?")
	require.True(t, ok)
	assert.Equal(t, "Several.", entry.Response)
	assert.Equal(t, 1, entry.HitCount)

	entry, ok = c.Lookup("  What Projects Have You Built?  ")
	require.True(t, ok)
	assert.Equal(t, 2, entry.HitCount)
}

func TestCache_FuzzyHit(t *testing.T) {
	c := New()
	c.Put("what projects have you built", "Several.", "mistral")

	// One character changed: similarity well above 0.80
	entry, ok := c.Lookup("what projects have you build")
	require.True(t, ok)
	assert.Equal(t, "Several.", entry.Response)
	assert.Equal(t, 1, entry.HitCount)
}

func TestCache_FuzzyMiss(t *testing.T) {
	c := New()
	c.Put("what projects have you built", "Several.", "mistral")

	_, ok := c.Lookup("do you like trains")
	assert.False(t, ok)
}

func TestCache_BypassKeywords(t *testing.T) {
	c := New()
	c.Put("latest project news", "old answer", "mistral")

	// "latest" forces a bypass even though the entry matches exactly
	_, ok := c.Lookup("latest project news")
	assert.False(t, ok)
}

func TestCache_PutOverwritesNearDuplicatePreservingHits(t *testing.T) {
	c := New()
	c.Put("what projects have you built", "old", "mistral")

	_, ok := c.Lookup("what projects have you built")
	require.True(t, ok)

	// Near-duplicate write-through overwrites the existing entry's text
	c.Put("what projects have you build", "new", "mistral")

	entry, ok := c.Lookup("what projects have you built")
	require.True(t, ok)
	assert.Equal(t, "new", entry.Response)
	assert.Equal(t, 2, entry.HitCount, "hit count preserved across overwrite")

	entries, _ := c.Stats()
	assert.Equal(t, 1, entries, "no duplicate entry created")
}

func TestCache_Update(t *testing.T) {
	c := New()
	c.Put("q", "old", "mistral")
	c.Lookup("q")

	assert.True(t, c.Update("Q ", "edited"))
	entry, ok := c.Lookup("q")
	require.True(t, ok)
	assert.Equal(t, "edited", entry.Response)
	assert.Equal(t, 2, entry.HitCount)

	assert.False(t, c.Update("absent", "x"))
}

func TestCache_RemoveAndClear(t *testing.T) {
	c := New()
	c.Put("a", "1", "m")
	c.Put("completely different question", "2", "m")

	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))

	c.Clear()
	entries, hits := c.Stats()
	assert.Zero(t, entries)
	assert.Zero(t, hits)
}

func TestCache_Snapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	c := New()
	c.Put("q", "answer", "mistral")
	c.Lookup("q")
	require.NoError(t, c.Save(path))

	restored := New()
	require.NoError(t, restored.Load(path))

	entry, ok := restored.Lookup("q")
	require.True(t, ok)
	assert.Equal(t, "answer", entry.Response)
	assert.Equal(t, 2, entry.HitCount)
}

func TestCache_Load_MissingFile(t *testing.T) {
	c := New()
	assert.NoError(t, c.Load(filepath.Join(t.TempDir(), "nope.json")))
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"", "", 1, 1},
		{"same", "same", 1, 1},
		{"kitten", "sitting", 0.5, 0.6},
		{"abc", "xyz", 0, 0},
		{"what projects", "what project", 0.9, 1},
	}

	for _, tt := range tests {
		score := Similarity(tt.a, tt.b)
		assert.GreaterOrEqual(t, score, tt.min, "%q vs %q", tt.a, tt.b)
		assert.LessOrEqual(t, score, tt.max, "%q vs %q", tt.a, tt.b)
	}
}
