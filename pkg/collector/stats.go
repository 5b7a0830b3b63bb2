package collector

import (
	"time"

	"github.com/google/uuid"
)

// RunStatistics accumulates counters for the lifetime of one orchestrator
// run. Reported at run end; not persisted beyond the advisory checkpoint.
type RunStatistics struct {
	RunID   string `json:"run_id"`
	Account string `json:"account"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	ExpectedTotal   int  `json:"expected_total"`
	RequestsIssued  int  `json:"requests_issued"`
	RateLimitHits   int  `json:"rate_limit_hits"`
	Retries         int  `json:"retries"`
	ParseErrors     int  `json:"parse_errors"`
	PrimaryRecords  int  `json:"primary_records"`
	ReplyRecords    int  `json:"reply_records"`
	FallbackRecords int  `json:"fallback_records"`
	Escalated       bool `json:"escalated"`
	FallbackRan     bool `json:"fallback_ran"`
}

// NewRunStatistics starts the counters for one run.
func NewRunStatistics(account string) *RunStatistics {
	return &RunStatistics{
		RunID:     uuid.NewString(),
		Account:   account,
		StartedAt: time.Now(),
	}
}

// TotalRecords is the record count across all collection paths.
func (s *RunStatistics) TotalRecords() int {
	return s.PrimaryRecords + s.ReplyRecords + s.FallbackRecords
}

// Coverage is the fraction of the expected total collected this run.
// Zero expected total yields full coverage, since there is nothing to chase.
func (s *RunStatistics) Coverage() float64 {
	if s.ExpectedTotal <= 0 {
		return 1.0
	}
	return float64(s.TotalRecords()) / float64(s.ExpectedTotal)
}

// Finalize stamps the end of the run.
func (s *RunStatistics) Finalize() {
	s.FinishedAt = time.Now()
}

// Duration is the elapsed run time.
func (s *RunStatistics) Duration() time.Duration {
	end := s.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(s.StartedAt)
}
