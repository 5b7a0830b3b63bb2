package ui

import (
	"fmt"
	"strings"
	"time"
)

const (
	ProgressBar   = "█"
	ProgressEmpty = "░"
)

// RunTracker keeps track of collection progress for the plain terminal
// display. It is driven from the orchestrator's progress callback.
type RunTracker struct {
	Phase     string
	Collected int
	Expected  int
	StartTime time.Time
}

// NewRunTracker creates a new run tracker
func NewRunTracker() *RunTracker {
	return &RunTracker{
		Phase:     "starting",
		StartTime: time.Now(),
	}
}

// Update records the latest phase and counts
func (rt *RunTracker) Update(phase string, collected, expected int) {
	rt.Phase = phase
	rt.Collected = collected
	rt.Expected = expected
}

// CoverageBar returns a formatted progress bar against the expected total
func (rt *RunTracker) CoverageBar() string {
	const width = 20

	if rt.Expected <= 0 {
		return fmt.Sprintf("[%s] %d collected", strings.Repeat(ProgressEmpty, width), rt.Collected)
	}

	progress := float64(rt.Collected) / float64(rt.Expected)
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(width))

	bar := strings.Repeat(ProgressBar, filled) +
		strings.Repeat(ProgressEmpty, width-filled)

	return fmt.Sprintf("[%s] %d/%d", bar, rt.Collected, rt.Expected)
}

// GetElapsedTime returns the elapsed time since tracking started
func (rt *RunTracker) GetElapsedTime() time.Duration {
	return time.Since(rt.StartTime)
}

// GetCollectionRate returns the average collection rate (records per minute)
func (rt *RunTracker) GetCollectionRate() float64 {
	elapsed := rt.GetElapsedTime().Minutes()
	if elapsed == 0 {
		return 0
	}
	return float64(rt.Collected) / elapsed
}

// PrintProgress prints the current progress status on one line
func (rt *RunTracker) PrintProgress() {
	fmt.Printf("\r%s %s %s",
		Magenta("["+strings.ToUpper(rt.Phase)+"]"),
		rt.CoverageBar(),
		Dim(fmt.Sprintf("%.0f/min", rt.GetCollectionRate())))
}

// PrintPhase prints a phase transition on its own line
func (rt *RunTracker) PrintPhase() {
	fmt.Printf("\n%s %s\n", Magenta("[PHASE]"), Yellow(rt.Phase))
}
