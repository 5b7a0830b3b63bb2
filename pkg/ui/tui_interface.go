package ui

// Display is an interface for live run displays
type Display interface {
	UpdatePhase(phase string, collected, expected int)
	UpdateRequests(issued, rateLimitHits int)
	LogInfo(format string, args ...interface{})
	LogSuccess(format string, args ...interface{})
	LogWarning(format string, args ...interface{})
	LogError(format string, args ...interface{})
}
