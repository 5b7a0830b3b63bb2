package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"xscraper/pkg/logger"
	"xscraper/pkg/models"
)

// SQLiteSink archives records into a local SQLite database. Inserts are
// keyed by record id with INSERT OR IGNORE, so delivering the same set
// twice changes nothing.
type SQLiteSink struct {
	db     *sql.DB
	logger logger.Logger
}

// NewSQLiteSink opens (or creates) the archive database under dataDir.
func NewSQLiteSink(dataDir string, log logger.Logger) (*SQLiteSink, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "archive.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteSink{db: db, logger: log}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *SQLiteSink) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		account TEXT NOT NULL,
		text TEXT NOT NULL,
		timestamp INTEGER,
		likes INTEGER NOT NULL DEFAULT 0,
		reposts INTEGER NOT NULL DEFAULT 0,
		replies INTEGER NOT NULL DEFAULT 0,
		quotes INTEGER NOT NULL DEFAULT 0,
		is_reply INTEGER NOT NULL DEFAULT 0,
		is_repost INTEGER NOT NULL DEFAULT 0,
		media TEXT DEFAULT '[]',
		permalink TEXT NOT NULL DEFAULT '',
		archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_records_account ON records(account);
	CREATE INDEX IF NOT EXISTS idx_records_timestamp ON records(timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteSink) Name() string { return "sqlite" }

// Write archives the records in one transaction.
func (s *SQLiteSink) Write(ctx context.Context, account string, records []models.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO records
		(id, account, text, timestamp, likes, reposts, replies, quotes, is_reply, is_repost, media, permalink, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	inserted := 0
	for _, rec := range records {
		mediaJSON, err := json.Marshal(rec.Media)
		if err != nil {
			return fmt.Errorf("failed to encode media for %s: %w", rec.ID, err)
		}

		var ts interface{}
		if rec.Timestamp != nil {
			ts = *rec.Timestamp
		}

		result, err := stmt.ExecContext(ctx,
			rec.ID, account, rec.Text, ts,
			rec.Engagement.Likes, rec.Engagement.Reposts, rec.Engagement.Replies, rec.Engagement.Quotes,
			rec.IsReply, rec.IsRepost, string(mediaJSON), rec.Permalink, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
		}
		if n, err := result.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive: %w", err)
	}

	s.logger.InfoWithFields("records archived", map[string]interface{}{
		"account":  account,
		"received": len(records),
		"inserted": inserted,
	})

	return nil
}

// Count returns how many records are archived for the account.
func (s *SQLiteSink) Count(ctx context.Context, account string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE account = ?", account).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
