package collector

import (
	"context"
	"fmt"

	"xscraper/pkg/checkpoint"
	"xscraper/pkg/config"
	"xscraper/pkg/errors"
	"xscraper/pkg/history"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
	"xscraper/pkg/ratelimit"
	"xscraper/pkg/retry"
	"xscraper/pkg/sink"
)

// Progress is a point-in-time view of a running collection, published on
// phase transitions and after every persisted batch.
type Progress struct {
	Phase         string
	Collected     int
	Expected      int
	Requests      int
	RateLimitHits int
}

// ProgressFunc receives progress snapshots for display.
type ProgressFunc func(p Progress)

// Options wires an orchestrator. Source, Authenticator, Config, History and
// Logger are required; Session, Checkpoints, Checkpoint, Sinks and
// OnProgress are optional.
type Options struct {
	Source        Source
	Authenticator Authenticator
	Session       Session
	Config        *config.Config
	History       *history.Store
	Checkpoints   *checkpoint.Manager
	Sinks         []sink.Sink
	Logger        logger.Logger
	OnProgress    ProgressFunc

	// Checkpoint, when set, is a snapshot from an interrupted run; the pass
	// it names resumes from its cursor instead of the top.
	Checkpoint *checkpoint.Snapshot

	// Pacing overrides. When nil, pacers are built from Config.
	PrimaryLimiter  ratelimit.Limiter
	FallbackLimiter ratelimit.Limiter
}

// Result is what one run produced.
type Result struct {
	Records []models.Record
	Stats   *RunStatistics
}

// Orchestrator sequences one collection run: authenticate, primary pass,
// reply sub-pass, coverage check, optional fallback, merge, persist, deliver.
type Orchestrator struct {
	opts  Options
	dedup *Dedup
	stats *RunStatistics
}

// NewOrchestrator creates an orchestrator from the given options.
func NewOrchestrator(opts Options) *Orchestrator {
	return &Orchestrator{
		opts:  opts,
		dedup: NewDedup(opts.History),
	}
}

// Run collects the account's records. Only an authentication failure or a
// run that ends with zero records after exhausted retries is a hard error;
// every other condition yields a possibly-partial result. On cancellation
// the collected history is persisted best-effort before returning.
func (o *Orchestrator) Run(ctx context.Context, account string) (*Result, error) {
	cfg := o.opts.Config
	log := o.opts.Logger
	stats := NewRunStatistics(account)
	result := &Result{Stats: stats}
	o.stats = stats

	log.InfoWithFields("run started", map[string]interface{}{
		"run_id":  stats.RunID,
		"account": account,
	})

	if err := o.opts.History.Load(); err != nil {
		return result, fmt.Errorf("failed to load history: %w", err)
	}
	knownBefore := o.dedup.Size()

	o.progress("authenticating", 0)
	identity, err := o.opts.Authenticator.VerifyCredentials(ctx)
	if err != nil {
		log.ErrorWithFields("authentication failed, aborting run", map[string]interface{}{
			"error": err.Error(),
		})
		return result, err
	}
	log.InfoWithFields("authenticated", map[string]interface{}{
		"screen_name": identity.ScreenName,
	})

	// Expected total steers the escalation threshold and progress display
	// only; failing to resolve it never stops the run.
	userID := ""
	if info, err := o.opts.Source.FetchUserInfo(ctx, account); err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if errors.IsAuth(err) || errors.KindOf(err) == errors.KindNotFound {
			return result, err
		}
		log.WarnWithFields("failed to resolve expected total, continuing", map[string]interface{}{
			"account": account,
			"error":   err.Error(),
		})
	} else {
		userID = info.UserID
		stats.ExpectedTotal = info.ExpectedTotal
		log.InfoWithFields("resolved account", map[string]interface{}{
			"account":        account,
			"user_id":        userID,
			"expected_total": info.ExpectedTotal,
		})
	}
	if userID == "" {
		userID = account
	}

	primaryLimiter := o.opts.PrimaryLimiter
	if primaryLimiter == nil {
		primaryLimiter = ratelimit.NewPacer(pacerConfig(cfg.RateLimit))
	}

	primary := NewPrimary(
		o.opts.Source,
		o.dedup,
		primaryLimiter,
		&retry.ExponentialBackoff{
			BaseDelay:    cfg.Retry.BaseDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   cfg.Retry.Multiplier,
			JitterFactor: cfg.Retry.Jitter,
		},
		cfg.Collector,
		cfg.Retry.MaxRetries,
		stats,
		log,
	)
	primary.SetBatchHook(func(phase, cursor string, collected int) {
		o.saveCheckpoint(account, phase, cursor, stats, collected)
		o.progress(phase, collected)
	})

	timelineCursor, replyCursor := o.resumeCursors(account)

	o.progress("timeline", 0)
	mainPass, err := primary.CollectTimeline(ctx, userID, account, timelineCursor)
	stats.PrimaryRecords = len(mainPass.Records)
	stats.Escalated = mainPass.Escalate
	result.Records = mainPass.Records
	if err != nil {
		return o.bailOut(ctx, result, err)
	}

	if cfg.Collector.IncludeReplies && mainPass.State != StateFailed {
		o.progress("replies", len(result.Records))
		replyPass, err := primary.CollectReplies(ctx, account, replyCursor)
		stats.ReplyRecords = len(replyPass.Records)
		stats.Escalated = stats.Escalated || replyPass.Escalate
		result.Records = models.MergeByID(result.Records, replyPass.Records)
		if err != nil {
			return o.bailOut(ctx, result, err)
		}
	}

	if o.shouldEscalate(stats) {
		stats.FallbackRan = true
		o.progress("fallback", len(result.Records))
		log.InfoWithFields("escalating to fallback", map[string]interface{}{
			"coverage":  stats.Coverage(),
			"threshold": cfg.Collector.CoverageThreshold,
			"throttled": stats.Escalated,
		})

		fallbackLimiter := o.opts.FallbackLimiter
		if fallbackLimiter == nil {
			fallbackLimiter = ratelimit.NewPacer(pacerConfig(cfg.Fallback.RateLimit))
		}

		fallback := NewFallback(
			o.opts.Session,
			o.dedup,
			fallbackLimiter,
			cfg.Fallback,
			stats,
			log,
		)
		fbRecords, err := fallback.Collect(ctx, account)
		result.Records = models.MergeByID(result.Records, fbRecords)
		if err != nil {
			if ctx.Err() != nil {
				return o.bailOut(ctx, result, err)
			}
			// Fallback failure is never fatal; primary results stand.
			log.WarnWithFields("fallback abandoned", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	// Zero records after exhausted retries is the one non-auth hard failure.
	if mainPass.State == StateFailed && len(result.Records) == 0 {
		o.finalize(ctx, result, account)
		return result, fmt.Errorf("no records collected: %w", mainPass.Err)
	}
	if mainPass.State == StateFailed {
		log.WarnWithFields("primary pass failed after partial collection, keeping results", map[string]interface{}{
			"collected": len(result.Records),
			"error":     mainPass.Err.Error(),
		})
	}

	o.finalize(ctx, result, account)
	o.clearCheckpoint()

	log.InfoWithFields("run finished", map[string]interface{}{
		"run_id":      stats.RunID,
		"records":     len(result.Records),
		"new_known":   o.dedup.Size() - knownBefore,
		"requests":    stats.RequestsIssued,
		"rate_limits": stats.RateLimitHits,
		"coverage":    stats.Coverage(),
		"duration":    stats.Duration(),
	})

	return result, nil
}

// shouldEscalate decides whether the fallback path runs: only when it is
// enabled and available, and the primary either hit the throttle threshold
// or fell short of the coverage target.
func (o *Orchestrator) shouldEscalate(stats *RunStatistics) bool {
	cfg := o.opts.Config
	if !cfg.Fallback.Enabled || o.opts.Session == nil {
		return false
	}
	if stats.Escalated {
		return true
	}
	return stats.Coverage() < cfg.Collector.CoverageThreshold
}

// resumeCursors maps the injected checkpoint onto the pass it interrupted.
// Only the named pass resumes; the other starts from the top.
func (o *Orchestrator) resumeCursors(account string) (timeline, replies string) {
	snap := o.opts.Checkpoint
	if snap == nil || snap.Cursor == "" {
		return "", ""
	}
	if snap.Account != account {
		o.opts.Logger.WarnWithFields("checkpoint belongs to another account, ignoring", map[string]interface{}{
			"checkpoint_account": snap.Account,
			"account":            account,
		})
		return "", ""
	}

	o.opts.Logger.InfoWithFields("resuming from checkpoint", map[string]interface{}{
		"phase":     snap.Phase,
		"cursor":    snap.Cursor,
		"collected": snap.CollectedSoFar,
	})
	switch snap.Phase {
	case "replies":
		return "", snap.Cursor
	default:
		return snap.Cursor, ""
	}
}

// bailOut persists what the run collected before returning the terminal
// error. Already-deduplicated records are never silently dropped, and the
// checkpoint stays in place so the next run can resume.
func (o *Orchestrator) bailOut(ctx context.Context, result *Result, cause error) (*Result, error) {
	o.finalize(ctx, result, result.Stats.Account)
	return result, cause
}

// finalize persists the history, stamps statistics, and delivers the record
// set to the sinks. Transient sink failures are retried; terminal ones are
// logged, not propagated.
func (o *Orchestrator) finalize(ctx context.Context, result *Result, account string) {
	log := o.opts.Logger

	if err := o.dedup.Persist(); err != nil {
		log.ErrorWithFields("failed to persist history", map[string]interface{}{
			"error": err.Error(),
		})
	}

	result.Stats.Finalize()

	if len(result.Records) == 0 {
		return
	}

	cfg := o.opts.Config
	deliveryCtx := context.WithoutCancel(ctx)
	retryCfg := &retry.Config{
		MaxAttempts: cfg.Retry.MaxRetries,
		Backoff: &retry.ExponentialBackoff{
			BaseDelay:    cfg.Retry.BaseDelay,
			MaxDelay:     cfg.Retry.MaxDelay,
			Multiplier:   cfg.Retry.Multiplier,
			JitterFactor: cfg.Retry.Jitter,
		},
		RetryIf: retry.DefaultRetryIf,
		Logger:  log,
	}
	for _, s := range o.opts.Sinks {
		err := retry.Do(deliveryCtx, func() error {
			return s.Write(deliveryCtx, account, result.Records)
		}, retryCfg)
		if err != nil {
			log.ErrorWithFields("sink delivery failed", map[string]interface{}{
				"sink":  s.Name(),
				"error": err.Error(),
			})
		}
	}
}

// clearCheckpoint removes the advisory snapshot once a run has completed.
// Interrupted runs keep theirs.
func (o *Orchestrator) clearCheckpoint() {
	if o.opts.Checkpoints == nil {
		return
	}
	if err := o.opts.Checkpoints.Delete(); err != nil {
		o.opts.Logger.WarnWithFields("failed to clear checkpoint", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// saveCheckpoint writes the advisory progress snapshot.
func (o *Orchestrator) saveCheckpoint(account, phase, cursor string, stats *RunStatistics, collected int) {
	if o.opts.Checkpoints == nil {
		return
	}

	snap := &checkpoint.Snapshot{
		Account:        account,
		Phase:          phase,
		Cursor:         cursor,
		ExpectedTotal:  stats.ExpectedTotal,
		CollectedSoFar: collected,
		RequestsIssued: stats.RequestsIssued,
		RateLimitHits:  stats.RateLimitHits,
	}
	if err := o.opts.Checkpoints.Save(snap); err != nil {
		o.opts.Logger.WarnWithFields("failed to save checkpoint", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if err := o.dedup.Persist(); err != nil {
		o.opts.Logger.WarnWithFields("failed to persist history at checkpoint", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (o *Orchestrator) progress(phase string, collected int) {
	if o.opts.OnProgress == nil {
		return
	}
	p := Progress{Phase: phase, Collected: collected}
	if o.stats != nil {
		p.Expected = o.stats.ExpectedTotal
		p.Requests = o.stats.RequestsIssued
		p.RateLimitHits = o.stats.RateLimitHits
	}
	o.opts.OnProgress(p)
}

// pacerConfig maps the configured rate limit onto the pacer's parameters.
func pacerConfig(rl config.RateLimitConfig) ratelimit.Config {
	return ratelimit.Config{
		MinDelay:     rl.MinDelay,
		MaxRequests:  rl.MaxRequestsPerWindow,
		Window:       rl.WindowDuration,
		JitterFactor: rl.JitterFactor,
	}
}
