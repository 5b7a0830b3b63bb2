package collector

import (
	"context"
	"time"

	"xscraper/pkg/config"
	"xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
	"xscraper/pkg/ratelimit"
)

// Fallback is the lower-throughput collection path. It drives an interactive
// session instead of the paginated API, with looser jittered pacing, a hard
// session-duration cap, and a pass-local stagnation rule. It runs only after
// the primary pass concludes, never concurrently with it.
type Fallback struct {
	session Session
	dedup   *Dedup
	limiter ratelimit.Limiter
	cfg     config.FallbackConfig
	stats   *RunStatistics
	logger  logger.Logger

	now func() time.Time
}

// NewFallback creates a fallback collector over the given session.
func NewFallback(session Session, dedup *Dedup, limiter ratelimit.Limiter, cfg config.FallbackConfig, stats *RunStatistics, log logger.Logger) *Fallback {
	return &Fallback{
		session: session,
		dedup:   dedup,
		limiter: limiter,
		cfg:     cfg,
		stats:   stats,
		logger:  log,
		now:     time.Now,
	}
}

// Collect runs one fallback session for the account. Errors are reported
// with the fallback kind so the orchestrator can absorb them; records
// collected before a failure are always returned.
func (f *Fallback) Collect(ctx context.Context, account string) ([]models.Record, error) {
	f.logger.InfoWithFields("fallback session started", map[string]interface{}{
		"account":     account,
		"session_cap": f.cfg.SessionCap,
	})

	if err := f.session.Authenticate(ctx); err != nil {
		return nil, errors.New(errors.KindFallback, 0, "session authentication failed: %v", err)
	}
	defer func() {
		// Best-effort logout, also on cancellation.
		if err := f.session.Logout(context.WithoutCancel(ctx)); err != nil {
			f.logger.WarnWithFields("session logout failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	if err := f.session.Open(ctx, account); err != nil {
		return nil, errors.New(errors.KindFallback, 0, "failed to open query view: %v", err)
	}

	var records []models.Record
	seenThisPass := make(map[string]struct{})
	stagnantPasses := 0
	start := f.now()

	for {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		if f.now().Sub(start) >= f.cfg.SessionCap {
			f.logger.WarnWithFields("session cap reached", map[string]interface{}{
				"account":   account,
				"collected": len(records),
			})
			break
		}

		if err := f.limiter.Wait(ctx); err != nil {
			return records, err
		}

		if err := f.session.Reveal(ctx); err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			return records, errors.New(errors.KindFallback, 0, "reveal failed: %v", err)
		}

		visible, err := f.session.Extract(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			return records, errors.New(errors.KindFallback, 0, "extract failed: %v", err)
		}

		newThisPass := 0
		for _, rec := range visible {
			if _, seen := seenThisPass[rec.ID]; seen {
				continue
			}
			seenThisPass[rec.ID] = struct{}{}
			newThisPass++

			if f.dedup.Admit(rec) {
				records = append(records, rec)
				// Counted on admission so interrupted sessions are not
				// understated.
				f.stats.FallbackRecords++
			}
		}

		if newThisPass == 0 {
			stagnantPasses++
			f.logger.DebugWithFields("stagnant reveal pass", map[string]interface{}{
				"stagnant_passes": stagnantPasses,
			})
			if stagnantPasses >= f.cfg.StagnantPassLimit {
				f.logger.InfoWithFields("fallback stagnated", map[string]interface{}{
					"account":   account,
					"passes":    stagnantPasses,
					"collected": len(records),
				})
				break
			}
		} else {
			stagnantPasses = 0
		}
	}

	f.logger.InfoWithFields("fallback session finished", map[string]interface{}{
		"account":   account,
		"collected": len(records),
		"duration":  f.now().Sub(start),
	})

	return records, nil
}
