package collector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xscraper/pkg/errors"
	"xscraper/pkg/logger"
	"xscraper/pkg/models"
)

func newTestFallback(t *testing.T, sess Session) (*Fallback, *Dedup) {
	t.Helper()
	hist := newTestHistory(t, "")
	require.NoError(t, hist.Load())
	dedup := NewDedup(hist)
	cfg := testConfig().Fallback
	f := NewFallback(sess, dedup, &nopLimiter{}, cfg, NewRunStatistics("testuser"), logger.Nop())
	return f, dedup
}

func TestFallbackStopsAfterStagnantPasses(t *testing.T) {
	sess := &fakeSession{batches: [][]models.Record{
		fallbackRecords("f", 8),
	}}
	f, _ := newTestFallback(t, sess)

	records, err := f.Collect(context.Background(), "testuser")
	require.NoError(t, err)
	assert.Len(t, records, 8)
	// One productive reveal, then the stagnant-pass budget.
	assert.Equal(t, 1+f.cfg.StagnantPassLimit, sess.reveals)
	assert.True(t, sess.loggedOut)
}

func TestFallbackStopsAtSessionCap(t *testing.T) {
	batches := make([][]models.Record, 10)
	for i := range batches {
		batches[i] = fallbackRecords(fmt.Sprintf("b%d-", i), 5)
	}
	sess := &fakeSession{batches: batches}
	f, _ := newTestFallback(t, sess)

	// Every clock read advances twenty minutes against a thirty minute cap.
	current := time.Unix(0, 0)
	f.now = func() time.Time {
		current = current.Add(20 * time.Minute)
		return current
	}

	records, err := f.Collect(context.Background(), "testuser")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.reveals)
	assert.Len(t, records, 5)
}

func TestFallbackAuthFailureIsFallbackKind(t *testing.T) {
	sess := &fakeSession{authErr: fmt.Errorf("challenge page")}
	f, _ := newTestFallback(t, sess)

	records, err := f.Collect(context.Background(), "testuser")
	require.Error(t, err)
	assert.Equal(t, errors.KindFallback, errors.KindOf(err))
	assert.Empty(t, records)
	assert.False(t, sess.loggedOut)
}

func TestFallbackRevealFailureKeepsNothingButLogsOut(t *testing.T) {
	sess := &fakeSession{
		batches:   [][]models.Record{fallbackRecords("f", 3)},
		revealErr: fmt.Errorf("view detached"),
	}
	f, _ := newTestFallback(t, sess)

	records, err := f.Collect(context.Background(), "testuser")
	require.Error(t, err)
	assert.Equal(t, errors.KindFallback, errors.KindOf(err))
	assert.Empty(t, records)
	assert.True(t, sess.loggedOut)
}

func TestFallbackSkipsRecordsAlreadyInHistory(t *testing.T) {
	batch := fallbackRecords("f", 6)
	sess := &fakeSession{batches: [][]models.Record{batch}}
	f, dedup := newTestFallback(t, sess)

	// Two of the visible records were collected by the primary pass.
	require.True(t, dedup.Admit(batch[0]))
	require.True(t, dedup.Admit(batch[3]))

	records, err := f.Collect(context.Background(), "testuser")
	require.NoError(t, err)
	assert.Len(t, records, 4)
	for _, rec := range records {
		assert.NotEqual(t, batch[0].ID, rec.ID)
		assert.NotEqual(t, batch[3].ID, rec.ID)
	}
}

func TestFallbackCancellationReturnsPartial(t *testing.T) {
	sess := &fakeSession{batches: [][]models.Record{
		fallbackRecords("f", 4),
	}}
	f, _ := newTestFallback(t, sess)

	ctx, cancel := context.WithCancel(context.Background())
	f.limiter = &nopLimiter{onWait: func(waits int) {
		if waits == 2 {
			cancel()
		}
	}}

	records, err := f.Collect(ctx, "testuser")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, records, 4)
	// Records handed back on the way out are accounted for.
	assert.Equal(t, 4, f.stats.FallbackRecords)
	assert.True(t, sess.loggedOut, "logout must still run on cancellation")
}

func TestFallbackCountsRecordsOnRevealFailureMidSession(t *testing.T) {
	sess := &fakeSession{batches: [][]models.Record{
		fallbackRecords("f", 5),
	}}
	f, _ := newTestFallback(t, sess)

	// First reveal yields a batch, the second breaks the view.
	f.limiter = &nopLimiter{onWait: func(waits int) {
		if waits == 2 {
			sess.revealErr = fmt.Errorf("view detached")
		}
	}}

	records, err := f.Collect(context.Background(), "testuser")
	require.Error(t, err)
	assert.Equal(t, errors.KindFallback, errors.KindOf(err))
	assert.Len(t, records, 5)
	assert.Equal(t, 5, f.stats.FallbackRecords)
}
