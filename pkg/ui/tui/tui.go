package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"xscraper/pkg/ui"
)

// TUI represents the terminal user interface for a collection run
type TUI struct {
	program *tea.Program
	model   *Model
}

var _ ui.Display = (*TUI)(nil)

// NewTUI creates a new TUI instance
func NewTUI(account string) *TUI {
	model := NewModel(account)
	program := tea.NewProgram(&model, tea.WithAltScreen())

	return &TUI{
		program: program,
		model:   &model,
	}
}

// Start starts the TUI and blocks until it exits
func (t *TUI) Start() error {
	go func() {
		// Send initial tick to start the spinner
		time.Sleep(100 * time.Millisecond)
		t.program.Send(TickMsg(time.Now()))
	}()

	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Send(RunDoneMsg{})
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// UpdatePhase reports a phase transition with running counts
func (t *TUI) UpdatePhase(phase string, collected, expected int) {
	t.Send(PhaseMsg{Phase: phase, Collected: collected, Expected: expected})
}

// UpdateRequests reports the request and throttle counters
func (t *TUI) UpdateRequests(issued, rateLimitHits int) {
	t.Send(RequestStatsMsg{Issued: issued, RateLimitHits: rateLimitHits})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	t.Send(LogMsg{Level: level, Message: message})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogSuccess logs a success message
func (t *TUI) LogSuccess(format string, args ...interface{}) {
	t.Log("SUCCESS", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

// LogError logs an error message
func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}
