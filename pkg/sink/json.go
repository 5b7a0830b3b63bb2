package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"xscraper/pkg/logger"
	"xscraper/pkg/models"
)

// jsonExport is the on-disk layout of an export file.
type jsonExport struct {
	Account    string          `json:"account"`
	ExportedAt time.Time       `json:"exported_at"`
	Count      int             `json:"count"`
	Records    []models.Record `json:"records"`
}

// JSONSink writes the record set to a per-account JSON export file. Writes
// are atomic so a crash never leaves a truncated export behind.
type JSONSink struct {
	baseDir string
	logger  logger.Logger
}

// NewJSONSink creates a JSON export sink rooted at baseDir.
func NewJSONSink(baseDir string, log logger.Logger) (*JSONSink, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	return &JSONSink{baseDir: baseDir, logger: log}, nil
}

func (s *JSONSink) Name() string { return "json" }

// Write exports the records for account, replacing any previous export.
func (s *JSONSink) Write(ctx context.Context, account string, records []models.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	export := jsonExport{
		Account:    account,
		ExportedAt: time.Now(),
		Count:      len(records),
		Records:    records,
	}

	path := filepath.Join(s.baseDir, fmt.Sprintf("%s.json", account))
	tempPath := path + ".tmp"

	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(&export); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode export: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync export file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close export file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace export file: %w", err)
	}

	s.logger.InfoWithFields("JSON export written", map[string]interface{}{
		"account": account,
		"count":   len(records),
		"path":    path,
	})

	return nil
}

func (s *JSONSink) Close() error { return nil }
