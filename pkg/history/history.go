package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"xscraper/pkg/logger"
)

// fileFormat is the on-disk shape of the history store: the full id set plus
// a last-updated timestamp.
type fileFormat struct {
	KnownIDs    []string  `json:"known_ids"`
	LastUpdated time.Time `json:"last_updated"`
	Version     int       `json:"version"`
}

// Store is a durable, append-only set of known record identifiers. It is the
// authoritative dedup oracle across process restarts: once an id is added it
// is never removed.
type Store struct {
	path   string
	logger logger.Logger

	mu          sync.RWMutex
	knownIDs    map[string]struct{}
	lastUpdated time.Time
}

// NewStore creates a history store backed by the file at path.
func NewStore(path string, log logger.Logger) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	return &Store{
		path:     path,
		logger:   log,
		knownIDs: make(map[string]struct{}),
	}, nil
}

// Load reads the persisted id set. Load fails soft: a missing or corrupt file
// yields an empty history rather than an error, so the conservative failure
// mode is "recollect", not "crash".
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.DebugWithFields("no history file, starting empty", map[string]interface{}{
				"path": s.path,
			})
			return nil
		}
		s.logger.WarnWithFields("failed to read history file, starting empty", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		return nil
	}

	var persisted fileFormat
	if err := json.Unmarshal(data, &persisted); err != nil {
		s.logger.WarnWithFields("corrupt history file, starting empty", map[string]interface{}{
			"path":  s.path,
			"error": err.Error(),
		})
		return nil
	}

	for _, id := range persisted.KnownIDs {
		s.knownIDs[id] = struct{}{}
	}
	s.lastUpdated = persisted.LastUpdated

	s.logger.InfoWithFields("history loaded", map[string]interface{}{
		"path":     s.path,
		"count":    len(s.knownIDs),
		"saved_at": persisted.LastUpdated,
	})

	return nil
}

// IsKnown reports whether the id was collected in this or any previous run.
func (s *Store) IsKnown(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, known := s.knownIDs[id]
	return known
}

// Add records an id as known.
func (s *Store) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.knownIDs[id] = struct{}{}
}

// Size returns the number of known ids.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.knownIDs)
}

// LastUpdated returns the timestamp of the most recent save, or the loaded
// file's timestamp if no save happened yet.
func (s *Store) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.lastUpdated
}

// Save writes the full id set atomically. Save is idempotent and safe to call
// repeatedly, at checkpoints and at run end.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.knownIDs))
	for id := range s.knownIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	s.lastUpdated = time.Now()
	persisted := fileFormat{
		KnownIDs:    ids,
		LastUpdated: s.lastUpdated,
		Version:     1,
	}

	tempPath := s.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary history file: %w", err)
	}

	encoder := json.NewEncoder(file)
	if err := encoder.Encode(&persisted); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode history: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync history file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close history file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	s.logger.DebugWithFields("history saved", map[string]interface{}{
		"path":  s.path,
		"count": len(ids),
	})

	return nil
}
