// ABOUTME: JSON snapshot persistence for the response cache.
// ABOUTME: Best-effort load on startup and save after mutations.

package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Load replaces the cache contents with entries read from a JSON snapshot.
// A missing file is not an error; the cache simply starts empty.
func (c *Cache) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading cache snapshot: %w", err)
	}

	var entries map[string]*Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing cache snapshot: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	if c.entries == nil {
		c.entries = make(map[string]*Entry)
	}
	return nil
}

// Save writes the current entries to a JSON snapshot, creating parent
// directories as needed.
func (c *Cache) Save(path string) error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding cache snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing cache snapshot: %w", err)
	}
	return nil
}
