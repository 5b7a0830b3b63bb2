package tui

import (
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model represents the TUI model for a collection run
type Model struct {
	// UI components
	spinner spinner.Model

	// Run state
	account   string
	phase     string
	collected int
	expected  int

	// Request stats
	requestsIssued int
	rateLimitHits  int

	sessionStartTime time.Time

	// UI state
	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	// Mutex for thread safety
	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a new TUI model
func NewModel(account string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	return Model{
		spinner:          s,
		account:          account,
		phase:            "starting",
		sessionStartTime: time.Now(),
		logMessages:      []LogMessage{},
		maxLogMessages:   50,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// SetPhase records a phase transition with its running counts
func (m *Model) SetPhase(phase string, collected, expected int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = phase
	m.collected = collected
	m.expected = expected
}

// SetRequestStats updates the request and throttle counters
func (m *Model) SetRequestStats(issued, rateLimitHits int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestsIssued = issued
	m.rateLimitHits = rateLimitHits
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dimWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	// Keep only the last N messages
	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Coverage returns collection progress against the expected total. With no
// expected total there is nothing to measure, so it reports zero.
func (m *Model) Coverage() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.expected <= 0 {
		return 0
	}
	cov := float64(m.collected) / float64(m.expected)
	if cov > 1 {
		cov = 1
	}
	return cov
}

// CollectionRate returns the average records per minute for the session
func (m *Model) CollectionRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.sessionStartTime).Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(m.collected) / elapsed
}
