package collector

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"xscraper/pkg/config"
	"xscraper/pkg/errors"
	"xscraper/pkg/history"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
	"xscraper/pkg/twitter"
)

// nopLimiter satisfies ratelimit.Limiter without sleeping.
type nopLimiter struct {
	waits     int
	rateWaits int
	onWait    func(waits int)
}

func (l *nopLimiter) Wait(ctx context.Context) error {
	l.waits++
	if l.onWait != nil {
		l.onWait(l.waits)
	}
	return ctx.Err()
}

func (l *nopLimiter) HandleRateLimit(ctx context.Context) error {
	l.rateWaits++
	return ctx.Err()
}

func (l *nopLimiter) Reset() {}

// fakeAuth satisfies Authenticator.
type fakeAuth struct {
	err      error
	verifies int
}

func (a *fakeAuth) VerifyCredentials(ctx context.Context) (*twitter.AccountIdentity, error) {
	a.verifies++
	if a.err != nil {
		return nil, a.err
	}
	return &twitter.AccountIdentity{UserID: "me", ScreenName: "operator"}, nil
}

// syntheticSource serves a fixed entry list in cursor-addressed pages. With
// loopTimeline set it keeps serving the tail of the list (all known records)
// after exhaustion instead of reporting the end, which is how a stagnating
// remote behaves.
type syntheticSource struct {
	info    *twitter.UserInfo
	infoErr error

	timeline     []twitter.Entry
	replies      []twitter.Entry
	loopTimeline bool

	// timelineErrs are consumed, one per call, before pages are served.
	timelineErrs []error
	// errAfter, when positive, fails every timeline call past that count.
	errAfter    int
	errAfterErr error

	calls         int
	timelineCalls int
	replyCalls    int
}

func (s *syntheticSource) FetchUserInfo(ctx context.Context, username string) (*twitter.UserInfo, error) {
	if s.infoErr != nil {
		return nil, s.infoErr
	}
	return s.info, nil
}

func (s *syntheticSource) FetchUserTimeline(ctx context.Context, userID, cursor string, batch int) (*twitter.Timeline, error) {
	s.timelineCalls++
	if len(s.timelineErrs) > 0 {
		err := s.timelineErrs[0]
		s.timelineErrs = s.timelineErrs[1:]
		return nil, err
	}
	if s.errAfter > 0 && s.timelineCalls > s.errAfter {
		return nil, s.errAfterErr
	}
	return s.page(s.timeline, cursor, batch, s.loopTimeline), nil
}

func (s *syntheticSource) SearchReplies(ctx context.Context, account, cursor string, batch int) (*twitter.Timeline, error) {
	s.replyCalls++
	return s.page(s.replies, cursor, batch, false), nil
}

func (s *syntheticSource) page(entries []twitter.Entry, cursor string, batch int, loop bool) *twitter.Timeline {
	s.calls++

	start := 0
	if cursor != "" {
		for i, e := range entries {
			if e.Tweet != nil && e.Tweet.RestID == cursor {
				start = i + 1
				break
			}
		}
	}

	if start >= len(entries) {
		if !loop || len(entries) == 0 {
			return &twitter.Timeline{}
		}
		start = len(entries) - batch
		if start < 0 {
			start = 0
		}
	}

	end := start + batch
	if end > len(entries) {
		end = len(entries)
	}

	page := &twitter.Timeline{Entries: entries[start:end]}
	if loop || end < len(entries) {
		page.NextCursor = fmt.Sprintf("cursor-%d", s.calls)
	}
	return page
}

// fakeSession reveals pre-staged batches one per Reveal call; Extract
// returns everything revealed so far, like a scrolled results view.
type fakeSession struct {
	batches  [][]models.Record
	revealed int

	authErr   error
	openErr   error
	revealErr error

	authCalls int
	reveals   int
	loggedOut bool
}

func (s *fakeSession) Authenticate(ctx context.Context) error {
	s.authCalls++
	return s.authErr
}

func (s *fakeSession) Open(ctx context.Context, account string) error {
	return s.openErr
}

func (s *fakeSession) Reveal(ctx context.Context) error {
	s.reveals++
	if s.revealErr != nil {
		return s.revealErr
	}
	if s.revealed < len(s.batches) {
		s.revealed++
	}
	return nil
}

func (s *fakeSession) Extract(ctx context.Context) ([]models.Record, error) {
	var out []models.Record
	for _, b := range s.batches[:s.revealed] {
		out = append(out, b...)
	}
	return out, nil
}

func (s *fakeSession) Logout(ctx context.Context) error {
	s.loggedOut = true
	return nil
}

// flakySink fails its first failures writes with a retryable server error.
type flakySink struct {
	failures  int
	writes    int
	delivered int
}

func (s *flakySink) Name() string { return "flaky" }

func (s *flakySink) Write(ctx context.Context, account string, records []models.Record) error {
	s.writes++
	if s.writes <= s.failures {
		return errors.New(errors.KindServer, 503, "backend unavailable")
	}
	s.delivered = len(records)
	return nil
}

func (s *flakySink) Close() error { return nil }

// timelineEntries generates n anchored entries id prefix0000..prefixN-1,
// newest first.
func timelineEntries(prefix string, n int) []twitter.Entry {
	base := int64(1730000000000)
	entries := make([]twitter.Entry, n)
	for i := range entries {
		entries[i] = twitter.Entry{Tweet: &twitter.CurrentTweet{
			RestID:      fmt.Sprintf("%s%04d", prefix, i),
			Text:        fmt.Sprintf("post %s%04d", prefix, i),
			CreatedAtMs: base - int64(i)*60_000,
		}}
	}
	return entries
}

// fallbackRecords generates n unanchored records, as a scraped view yields.
func fallbackRecords(prefix string, n int) []models.Record {
	records := make([]models.Record, n)
	for i := range records {
		records[i] = models.Record{
			ID:   fmt.Sprintf("%s%04d", prefix, i),
			Text: fmt.Sprintf("scraped %s%04d", prefix, i),
		}
	}
	return records
}

// testConfig returns defaults tightened for fast tests.
func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Retry.BaseDelay = time.Millisecond
	cfg.Retry.MaxDelay = 5 * time.Millisecond
	cfg.Retry.Jitter = 0
	cfg.Collector.IncludeReplies = false
	return cfg
}

func newTestHistory(t *testing.T, path string) *history.Store {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "history.json")
	}
	hist, err := history.NewStore(path, logger.Nop())
	require.NoError(t, err)
	return hist
}

func newTestOrchestrator(src *syntheticSource, auth *fakeAuth, sess Session, cfg *config.Config, hist *history.Store) *Orchestrator {
	return NewOrchestrator(Options{
		Source:          src,
		Authenticator:   auth,
		Session:         sess,
		Config:          cfg,
		History:         hist,
		Logger:          logger.Nop(),
		PrimaryLimiter:  &nopLimiter{},
		FallbackLimiter: &nopLimiter{},
	})
}
