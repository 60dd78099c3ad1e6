package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id is not cached.
var ErrRunNotFound = errors.New("run not found")

// RunCache keeps the output of plan runs as JSON files, one per run id, so a
// report can be rendered again without recomputing the projection.
type RunCache struct {
	dir string
}

// RunEntry is one cached run.
type RunEntry struct {
	ID        string          `json:"id"`
	Client    string          `json:"client"`
	Scenario  string          `json:"scenario,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// NewRunCache creates a cache rooted at dir, defaulting to .cache/runs.
func NewRunCache(dir string) (*RunCache, error) {
	if dir == "" {
		dir = filepath.Join(".cache", "runs")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run cache dir: %w", err)
	}
	return &RunCache{dir: dir}, nil
}

// Save stores e under its id, which must be a UUID.
func (c *RunCache) Save(e *RunEntry) error {
	if _, err := uuid.Parse(e.ID); err != nil {
		return fmt.Errorf("invalid run id %q: %w", e.ID, err)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	if err := os.WriteFile(c.path(e.ID), data, 0644); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Get loads the run with the given id.
func (c *RunCache) Get(id string) (*RunEntry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	entry, err := c.loadEntry(c.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return nil, err
	}
	return entry, nil
}

// Latest returns the newest run for client, scanning the cache directory.
func (c *RunCache) Latest(client string) (*RunEntry, error) {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read run cache: %w", err)
	}

	var latest *RunEntry
	for _, f := range files {
		if filepath.Ext(f.Name()) != ".json" {
			continue
		}
		entry, err := c.loadEntry(filepath.Join(c.dir, f.Name()))
		if err != nil {
			continue
		}
		if !strings.EqualFold(entry.Client, client) {
			continue
		}
		if latest == nil || entry.CreatedAt.After(latest.CreatedAt) {
			latest = entry
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: no runs for %s", ErrRunNotFound, client)
	}
	return latest, nil
}

func (c *RunCache) path(id string) string {
	return filepath.Join(c.dir, strings.ToLower(id)+".json")
}

func (c *RunCache) loadEntry(path string) (*RunEntry, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry RunEntry
	if err := json.Unmarshal(bytes, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached run: %w", err)
	}
	return &entry, nil
}
