package tui

import (
	"testing"
	"time"
)

func TestModel(t *testing.T) {
	model := NewModel("testuser")

	// Test phase transitions
	model.SetPhase("timeline", 120, 480)
	if model.phase != "timeline" {
		t.Errorf("Expected phase timeline, got %s", model.phase)
	}
	if model.collected != 120 {
		t.Errorf("Expected 120 collected, got %d", model.collected)
	}

	// Test coverage
	cov := model.Coverage()
	if cov != 0.25 {
		t.Errorf("Expected coverage 0.25, got %f", cov)
	}

	// Coverage with no expected total
	model.SetPhase("timeline", 120, 0)
	if model.Coverage() != 0 {
		t.Errorf("Expected coverage 0 with no expected total, got %f", model.Coverage())
	}

	// Coverage never exceeds 1
	model.SetPhase("fallback", 600, 480)
	if model.Coverage() != 1 {
		t.Errorf("Expected coverage capped at 1, got %f", model.Coverage())
	}

	// Test request stats
	model.SetRequestStats(42, 2)
	if model.requestsIssued != 42 {
		t.Errorf("Expected 42 requests issued, got %d", model.requestsIssued)
	}
	if model.rateLimitHits != 2 {
		t.Errorf("Expected 2 rate limit hits, got %d", model.rateLimitHits)
	}

	// Test log messages
	model.AddLogMessage("INFO", "Test message")
	if len(model.logMessages) != 1 {
		t.Errorf("Expected 1 log message, got %d", len(model.logMessages))
	}

	// Log tail stays bounded
	for i := 0; i < 100; i++ {
		model.AddLogMessage("INFO", "filler")
	}
	if len(model.logMessages) != model.maxLogMessages {
		t.Errorf("Expected %d log messages, got %d", model.maxLogMessages, len(model.logMessages))
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m30s"},
		{3725 * time.Second, "1h02m05s"},
	}

	for _, test := range tests {
		result := formatDuration(test.duration)
		if result != test.expected {
			t.Errorf("formatDuration(%v) = %s, expected %s", test.duration, result, test.expected)
		}
	}
}
