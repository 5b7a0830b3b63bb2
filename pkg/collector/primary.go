package collector

import (
	"context"

	"xscraper/pkg/config"
	"xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
	"xscraper/pkg/ratelimit"
	"xscraper/pkg/retry"
	"xscraper/pkg/tracker"
	"xscraper/pkg/twitter"
)

// State identifies where the primary state machine is.
type State string

const (
	StateInit       State = "init"
	StateFetching   State = "fetching"
	StateEvaluating State = "evaluating"
	StateBackoff    State = "backoff"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// fetchFunc requests one batch of raw entries at the given cursor.
type fetchFunc func(ctx context.Context, cursor string, batch int) (*twitter.Timeline, error)

// BatchHook is called periodically after evaluated batches so the caller can
// checkpoint progress and report it.
type BatchHook func(phase, cursor string, collected int)

// PassResult is the outcome of one collection pass.
type PassResult struct {
	// Records collected (unknown to history) during the pass, in source order.
	Records []models.Record
	// Escalate is set when repeated throttling suggests switching to the
	// fallback path instead of retrying further.
	Escalate bool
	// State is the terminal state of the pass, StateDone or StateFailed.
	State State
	// Err is the terminal error when State is StateFailed. A failed pass
	// that still collected records is treated as a soft stop by the caller.
	Err error
}

// Primary walks the source's paginated API in batches, paced by the rate
// limiter, bounded by the stagnation tracker, and filtered through the dedup
// gate. The cursor it advances is the id of the last evaluated record, not
// the source's opaque token, so progress survives unstable source cursors.
type Primary struct {
	source  Source
	dedup   *Dedup
	limiter ratelimit.Limiter
	backoff retry.BackoffStrategy

	cfg        config.CollectorConfig
	maxRetries int

	stats   *RunStatistics
	logger  logger.Logger
	onBatch BatchHook

	state State
}

// NewPrimary creates a primary collector.
func NewPrimary(source Source, dedup *Dedup, limiter ratelimit.Limiter, backoff retry.BackoffStrategy, cfg config.CollectorConfig, maxRetries int, stats *RunStatistics, log logger.Logger) *Primary {
	return &Primary{
		source:     source,
		dedup:      dedup,
		limiter:    limiter,
		backoff:    backoff,
		cfg:        cfg,
		maxRetries: maxRetries,
		stats:      stats,
		logger:     log,
		state:      StateInit,
	}
}

// SetBatchHook installs the checkpoint/progress callback.
func (p *Primary) SetBatchHook(hook BatchHook) {
	p.onBatch = hook
}

// State returns the current state of the machine.
func (p *Primary) State() State {
	return p.state
}

// CollectTimeline runs the main pass over the user's timeline. A non-empty
// startCursor resumes the pass from a checkpointed position instead of the
// top of the timeline.
func (p *Primary) CollectTimeline(ctx context.Context, userID, account, startCursor string) (*PassResult, error) {
	fetch := func(ctx context.Context, cursor string, batch int) (*twitter.Timeline, error) {
		return p.source.FetchUserTimeline(ctx, userID, cursor, batch)
	}
	return p.runPass(ctx, "timeline", account, startCursor, fetch)
}

// CollectReplies runs the reply sub-pass against the search query. Same
// machine, same history, its own cursor and stagnation state.
func (p *Primary) CollectReplies(ctx context.Context, account, startCursor string) (*PassResult, error) {
	fetch := func(ctx context.Context, cursor string, batch int) (*twitter.Timeline, error) {
		return p.source.SearchReplies(ctx, account, cursor, batch)
	}
	return p.runPass(ctx, "replies", account, startCursor, fetch)
}

func (p *Primary) runPass(ctx context.Context, phase, account, startCursor string, fetch fetchFunc) (*PassResult, error) {
	tr := tracker.New(tracker.Config{
		ConsecutiveKnownLimit: p.cfg.ConsecutiveKnownLimit,
		ProgressTimeout:       p.cfg.ProgressTimeout,
	})

	result := &PassResult{}
	cursor := startCursor
	failures := 0
	rateLimitHits := 0
	batches := 0

	p.state = StateInit
	p.logger.InfoWithFields("collection pass started", map[string]interface{}{
		"phase":   phase,
		"account": account,
	})

	for {
		p.state = StateFetching
		if err := p.limiter.Wait(ctx); err != nil {
			return result, err
		}

		page, err := fetch(ctx, cursor, p.cfg.BatchSize)
		p.stats.RequestsIssued++
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}

			switch {
			case errors.IsRateLimit(err):
				p.stats.RateLimitHits++
				rateLimitHits++
				p.logger.WarnWithFields("source signalled throttling", map[string]interface{}{
					"phase": phase,
					"hits":  rateLimitHits,
				})
				if rateLimitHits >= p.cfg.RateLimitEscalation {
					// Repeated throttling: hand off rather than retry forever.
					result.Escalate = true
					p.state = StateDone
					result.State = StateDone
					p.logger.WarnWithFields("throttled past escalation threshold, ending pass", map[string]interface{}{
						"phase":     phase,
						"hits":      rateLimitHits,
						"collected": len(result.Records),
					})
					return result, nil
				}
				if err := p.limiter.HandleRateLimit(ctx); err != nil {
					return result, err
				}
				continue

			case errors.IsRetryable(errors.KindOf(err)):
				failures++
				p.stats.Retries++
				if failures > p.maxRetries {
					p.state = StateFailed
					result.State = StateFailed
					result.Err = err
					p.logger.ErrorWithFields("retries exhausted", map[string]interface{}{
						"phase":     phase,
						"failures":  failures,
						"collected": len(result.Records),
						"error":     err.Error(),
					})
					return result, nil
				}
				p.state = StateBackoff
				delay := p.backoff.NextDelay(failures)
				p.logger.WarnWithFields("transient failure, backing off", map[string]interface{}{
					"phase":   phase,
					"attempt": failures,
					"delay":   delay,
					"error":   err.Error(),
				})
				if err := retry.Wait(ctx, delay); err != nil {
					return result, err
				}
				continue

			default:
				p.state = StateFailed
				result.State = StateFailed
				result.Err = err
				if errors.IsAuth(err) {
					return result, err
				}
				p.logger.ErrorWithFields("unrecoverable fetch error", map[string]interface{}{
					"phase": phase,
					"error": err.Error(),
				})
				return result, nil
			}
		}

		// Any successful request resets the backoff run.
		failures = 0

		p.state = StateEvaluating
		if len(page.Entries) == 0 {
			p.logger.InfoWithFields("empty batch, pass complete", map[string]interface{}{
				"phase": phase,
			})
			break
		}

		for i := range page.Entries {
			rec, err := page.Entries[i].Normalize(account)
			if err != nil {
				p.stats.ParseErrors++
				p.logger.WarnWithFields("skipping unparseable record", map[string]interface{}{
					"phase": phase,
					"error": err.Error(),
				})
				continue
			}

			if p.dedup.Known(rec.ID) {
				tr.TrackKnown(rec)
			} else {
				tr.TrackRecord(rec)
				p.dedup.Admit(rec)
				result.Records = append(result.Records, rec)
			}
			cursor = rec.ID
		}

		batches++
		if p.onBatch != nil && p.cfg.CheckpointInterval > 0 && batches%p.cfg.CheckpointInterval == 0 {
			p.onBatch(phase, cursor, len(result.Records))
		}

		if tr.TrackCursor(page.NextCursor) {
			p.logger.WarnWithFields("source cursor repeated, pass complete", map[string]interface{}{
				"phase":  phase,
				"cursor": page.NextCursor,
			})
			break
		}
		if page.NextCursor == "" {
			p.logger.InfoWithFields("no further pages, pass complete", map[string]interface{}{
				"phase": phase,
			})
			break
		}
		if tr.IsStuck() {
			p.logger.InfoWithFields("stagnation detected, pass complete", map[string]interface{}{
				"phase":             phase,
				"consecutive_known": tr.ConsecutiveKnown(),
			})
			break
		}
	}

	p.state = StateDone
	result.State = StateDone
	p.logger.InfoWithFields("collection pass finished", map[string]interface{}{
		"phase":     phase,
		"account":   account,
		"collected": len(result.Records),
	})
	return result, nil
}
