// Package sink delivers finished record sets to their destinations. Sinks
// receive the merged, deduplicated output of a run; delivery must be
// idempotent because a re-run can deliver overlapping sets.
package sink

import (
	"context"

	"xscraper/pkg/models"
)

// Sink receives the final record set of a collection run.
type Sink interface {
	// Name identifies the sink in logs and statistics.
	Name() string

	// Write delivers records collected for the given account.
	Write(ctx context.Context, account string, records []models.Record) error

	// Close releases any resources held by the sink.
	Close() error
}
