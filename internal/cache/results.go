package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ResultEntry is one cached inference result.
type ResultEntry struct {
	Backend string    `json:"backend"`
	Model   string    `json:"model,omitempty"`
	Text    string    `json:"text"`
	SavedAt time.Time `json:"saved_at"`
}

// ResultCache stores inference results keyed by backend, model and prompt.
type ResultCache struct {
	Dir string
	// StrictPerms, when true, enforces 0700 on the cache directory and 0600 on
	// files.
	StrictPerms bool
}

// ResultKey builds the cache key of one inference call.
func ResultKey(backend, model, prompt string) string {
	return Key("result", backend, model, prompt)
}

func (c *ResultCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".result.json")
}

// Get returns the cached text if present. A missing or unreadable entry is a
// miss, not an error.
func (c *ResultCache) Get(_ context.Context, key string) (string, bool, error) {
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return "", false, err
	}
	p := c.pathFor(key)
	b, err := os.ReadFile(p)
	if err != nil {
		return "", false, nil
	}
	var e ResultEntry
	if err := json.Unmarshal(b, &e); err != nil || strings.TrimSpace(e.Text) == "" {
		return "", false, nil
	}
	now := time.Now()
	_ = os.Chtimes(p, now, now)
	return e.Text, true, nil
}

// Save writes a result to the cache.
func (c *ResultCache) Save(_ context.Context, key string, e ResultEntry) error {
	if err := ensureDir(c.Dir, c.StrictPerms); err != nil {
		return err
	}
	if e.SavedAt.IsZero() {
		e.SavedAt = time.Now().UTC()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return writeAtomic(c.pathFor(key), b, fileMode(c.StrictPerms))
}
