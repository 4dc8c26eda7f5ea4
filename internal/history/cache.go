// Package history keeps a client-side record of submitted batch jobs.
// The server store expires records after a TTL; this cache is what lets
// a client still list (and re-request) old jobs after that, so it must
// survive independently of the server's database.
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jus-team/legal-ocr-service/internal/batch"
)

// maxEntries caps the per-owner history; the oldest summaries fall off.
const maxEntries = 50

// Cache is a file-backed history of job summaries, one JSON file per
// owner key. Results are stripped before writing: the cache stores
// summaries, not document content.
type Cache struct {
	dir string

	mu sync.Mutex
}

func NewCache(dir string) (*Cache, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// ownerFile hashes the owner key into a filename. Access codes are
// user-chosen strings and cannot be trusted as path components.
func (c *Cache) ownerFile(ownerKey string) string {
	sum := sha256.Sum256([]byte(ownerKey))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:8])+".json")
}

// Save upserts one record into the owner's history, newest first.
func (c *Cache) Save(ownerKey string, record *batch.BatchJobRecord) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("record with an id is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := c.load(ownerKey)
	if err != nil {
		return err
	}

	summary := *record
	summary.Results = nil

	replaced := false
	for i := range entries {
		if entries[i].ID == summary.ID {
			entries[i] = &summary
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, &summary)
	}

	sortNewestFirst(entries)
	if len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	return c.write(ownerKey, entries)
}

// List returns the owner's cached summaries, newest first. A missing
// file is an empty history, not an error.
func (c *Cache) List(ownerKey string) ([]*batch.BatchJobRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ownerKey)
}

// Clear removes the owner's entire history file.
func (c *Cache) Clear(ownerKey string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.ownerFile(ownerKey))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (c *Cache) load(ownerKey string) ([]*batch.BatchJobRecord, error) {
	data, err := os.ReadFile(c.ownerFile(ownerKey))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []*batch.BatchJobRecord
	if err := json.Unmarshal(data, &entries); err != nil {
		// A corrupt cache file is discarded rather than wedging every
		// future save.
		return nil, nil
	}
	return entries, nil
}

func (c *Cache) write(ownerKey string, entries []*batch.BatchJobRecord) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	path := c.ownerFile(ownerKey)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func sortNewestFirst(entries []*batch.BatchJobRecord) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedTime().After(entries[j].CreatedTime())
	})
}

// Merge combines a server job list with locally cached summaries. A job
// present in both appears once with the server's state; jobs only the
// cache remembers (expired server-side) are appended. Output is newest
// first.
func Merge(server, local []*batch.BatchJobRecord) []*batch.BatchJobRecord {
	merged := make([]*batch.BatchJobRecord, 0, len(server)+len(local))
	seen := make(map[string]bool, len(server))

	for _, record := range server {
		merged = append(merged, record)
		seen[record.ID] = true
	}
	for _, record := range local {
		if !seen[record.ID] {
			merged = append(merged, record)
		}
	}

	sortNewestFirst(merged)
	return merged
}
