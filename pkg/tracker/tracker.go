package tracker

import (
	"time"

	"xscraper/pkg/models"
)

// Config holds the stagnation thresholds. These are tunable policy constants.
type Config struct {
	// ConsecutiveKnownLimit is the number of consecutive already-known
	// records after which the pass is considered stuck.
	ConsecutiveKnownLimit int
	// ProgressTimeout is the wall-clock interval without a new record after
	// which the pass is considered stuck.
	ProgressTimeout time.Duration
}

// DefaultConfig returns the observed default thresholds.
func DefaultConfig() Config {
	return Config{
		ConsecutiveKnownLimit: 50,
		ProgressTimeout:       5 * time.Minute,
	}
}

// TimelineTracker observes the stream of records and cursors within one
// collection pass and decides when the pass has stopped making forward
// progress. It is reset at the start of each pass.
type TimelineTracker struct {
	cfg Config

	oldestSeen       *int64
	newestSeen       *int64
	seenIDs          map[string]struct{}
	cursorsSeen      map[string]struct{}
	consecutiveKnown int
	cursorRepeats    int
	lastProgress     time.Time

	now func() time.Time
}

// New creates a tracker with the given thresholds.
func New(cfg Config) *TimelineTracker {
	t := &TimelineTracker{cfg: cfg, now: time.Now}
	t.Reset()
	return t
}

// Reset clears the pass-local state and restarts the progress clock.
func (t *TimelineTracker) Reset() {
	t.oldestSeen = nil
	t.newestSeen = nil
	t.seenIDs = make(map[string]struct{})
	t.cursorsSeen = make(map[string]struct{})
	t.consecutiveKnown = 0
	t.cursorRepeats = 0
	t.lastProgress = t.now()
}

// TrackRecord observes one record and reports whether its id is new to this
// pass. New records reset the consecutive-known counter and the progress
// clock and widen the timestamp bounds.
func (t *TimelineTracker) TrackRecord(rec models.Record) bool {
	if _, seen := t.seenIDs[rec.ID]; seen {
		t.consecutiveKnown++
		return false
	}

	t.seenIDs[rec.ID] = struct{}{}
	t.consecutiveKnown = 0
	t.lastProgress = t.now()

	if rec.Timestamp != nil {
		ts := *rec.Timestamp
		if t.oldestSeen == nil || ts < *t.oldestSeen {
			t.oldestSeen = &ts
		}
		if t.newestSeen == nil || ts > *t.newestSeen {
			t.newestSeen = &ts
		}
	}

	return true
}

// TrackKnown observes a record that the dedup oracle already knows without
// registering it as pass progress.
func (t *TimelineTracker) TrackKnown(rec models.Record) {
	t.seenIDs[rec.ID] = struct{}{}
	t.consecutiveKnown++
}

// TrackCursor observes a cursor value and reports whether it repeats one seen
// earlier in the pass.
func (t *TimelineTracker) TrackCursor(cursor string) bool {
	if cursor == "" {
		return false
	}
	if _, seen := t.cursorsSeen[cursor]; seen {
		t.cursorRepeats++
		return true
	}
	t.cursorsSeen[cursor] = struct{}{}
	return false
}

// IsStuck reports whether the pass has stopped making forward progress:
// either too many consecutive known records, or no new record within the
// progress timeout. The dual heuristic tolerates sparse novel content
// without waiting indefinitely.
func (t *TimelineTracker) IsStuck() bool {
	if t.consecutiveKnown >= t.cfg.ConsecutiveKnownLimit {
		return true
	}
	if t.now().Sub(t.lastProgress) >= t.cfg.ProgressTimeout {
		return true
	}
	return false
}

// ConsecutiveKnown returns the current run of known records with no new
// record in between.
func (t *TimelineTracker) ConsecutiveKnown() int {
	return t.consecutiveKnown
}

// CursorRepeats returns the number of repeated cursors observed this pass.
func (t *TimelineTracker) CursorRepeats() int {
	return t.cursorRepeats
}

// SeenThisPass returns the number of distinct record ids observed this pass.
func (t *TimelineTracker) SeenThisPass() int {
	return len(t.seenIDs)
}

// Bounds returns the oldest and newest anchored timestamps observed this
// pass; either may be nil when no anchored record was seen.
func (t *TimelineTracker) Bounds() (oldest, newest *int64) {
	return t.oldestSeen, t.newestSeen
}
