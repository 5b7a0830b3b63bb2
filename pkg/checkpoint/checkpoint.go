package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"xscraper/pkg/logger"
)

// MaxAge is how old a snapshot may be before it is discarded as stale on
// load. Snapshots are advisory: correctness rests on the history store, this
// file only carries position and statistics for a resumed run.
const MaxAge = 24 * time.Hour

// Snapshot is a persisted view of run progress.
type Snapshot struct {
	Account        string    `json:"account"`
	Phase          string    `json:"phase"`
	Cursor         string    `json:"cursor"`
	ExpectedTotal  int       `json:"expected_total"`
	CollectedSoFar int       `json:"collected_so_far"`
	RequestsIssued int       `json:"requests_issued"`
	RateLimitHits  int       `json:"rate_limit_hits"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	Version        int       `json:"version"`
}

// Manager handles snapshot persistence for one account.
type Manager struct {
	path   string
	logger logger.Logger
}

// NewManager creates a checkpoint manager storing snapshots under stateDir.
func NewManager(stateDir, account string, log logger.Logger) (*Manager, error) {
	dir := filepath.Join(stateDir, "checkpoints")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		path:   filepath.Join(dir, fmt.Sprintf("%s.checkpoint.json", account)),
		logger: log,
	}, nil
}

// Load reads the snapshot for this account. Missing files and snapshots
// older than MaxAge yield (nil, nil).
func (m *Manager) Load() (*Snapshot, error) {
	file, err := os.Open(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var snap Snapshot
	if err := json.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}

	if time.Since(snap.UpdatedAt) > MaxAge {
		m.logger.InfoWithFields("discarding stale checkpoint", map[string]interface{}{
			"account":    snap.Account,
			"updated_at": snap.UpdatedAt,
		})
		return nil, nil
	}

	m.logger.InfoWithFields("checkpoint loaded", map[string]interface{}{
		"account": snap.Account,
		"phase":   snap.Phase,
		"cursor":  snap.Cursor,
	})

	return &snap, nil
}

// Save writes the snapshot atomically.
func (m *Manager) Save(snap *Snapshot) error {
	if snap.CreatedAt.IsZero() {
		snap.CreatedAt = time.Now()
	}
	snap.UpdatedAt = time.Now()
	snap.Version = 1

	tempPath := m.path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	return nil
}

// Delete removes the snapshot file.
func (m *Manager) Delete() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Exists checks whether a snapshot file exists.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}
