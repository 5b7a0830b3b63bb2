package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// View renders the entire TUI
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string

	sections = append(sections, m.renderLogo())

	leftColumn := m.renderRunPanel()
	rightColumn := m.renderLogsPanel()

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftColumn,
		"  ", // spacing
		rightColumn,
	)
	sections = append(sections, mainContent)

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m Model) renderLogo() string {
	logo := `
╔══════════════════════════════════════════╗
║  X S C R A P E R                          ║
║  timeline archive utility                 ║
╚══════════════════════════════════════════╝`

	return logoStyle.Width(m.width).Render(logo)
}

// renderRunPanel renders the collection status panel
func (m Model) renderRunPanel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	width := (m.width - 4) / 2

	title := titleStyle.Render(" COLLECTION ")

	elapsed := time.Since(m.sessionStartTime)

	rows := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Account:"), statsValueStyle.Render("@"+m.account)),
		fmt.Sprintf("%s %s %s", statsLabelStyle.Render("Phase:"), m.spinner.View(), phaseStyle.Render(m.phase)),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Collected:"), statsValueStyle.Render(fmt.Sprintf("%d records", m.collected))),
	}

	if m.expected > 0 {
		rows = append(rows,
			fmt.Sprintf("%s %s", statsLabelStyle.Render("Expected:"), statsValueStyle.Render(fmt.Sprintf("%d", m.expected))),
			m.renderCoverageBar(width-8),
		)
	}

	rows = append(rows,
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Requests:"), statsValueStyle.Render(fmt.Sprintf("%d", m.requestsIssued))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Throttled:"), GetRateLimitStyle(m.rateLimitHits).Render(fmt.Sprintf("%d", m.rateLimitHits))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(formatDuration(elapsed))),
	)

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return panelStyle.Width(width).Render(title + "\n\n" + content)
}

// renderCoverageBar renders progress against the expected total
func (m Model) renderCoverageBar(width int) string {
	if width < 10 {
		width = 10
	}

	progress := float64(m.collected) / float64(m.expected)
	if progress > 1 {
		progress = 1
	}
	filled := int(progress * float64(width))

	bar := GetProgressBarStyle(progress*100).Render(strings.Repeat("█", filled)) +
		progressEmptyStyle.Render(strings.Repeat("░", width-filled))

	return fmt.Sprintf("%s %3.0f%%", bar, progress*100)
}

// renderLogsPanel renders the scrolling log tail
func (m Model) renderLogsPanel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	width := (m.width - 4) / 2

	title := titleStyle.Render(" ACTIVITY ")

	visible := 12
	start := 0
	if len(m.logMessages) > visible {
		start = len(m.logMessages) - visible
	}

	var rows []string
	for _, msg := range m.logMessages[start:] {
		line := fmt.Sprintf("%s %s",
			logTimestampStyle.Render(msg.Time.Format("15:04:05")),
			lipgloss.NewStyle().Foreground(msg.Color).Render(msg.Message))
		rows = append(rows, truncate(line, width-6))
	}
	if len(rows) == 0 {
		rows = append(rows, logTimestampStyle.Render("waiting for activity..."))
	}

	content := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return panelStyle.Width(width).Render(title + "\n\n" + content)
}

// renderHelp renders the keyboard help
func (m Model) renderHelp() string {
	help := []string{
		"q / ctrl+c  quit",
		"ctrl+l      clear logs",
		"?           toggle help",
	}
	return helpStyle.Render(strings.Join(help, "    "))
}

// formatDuration formats a duration as h/m/s
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// truncate clips a rendered line to the given display width
func truncate(s string, max int) string {
	if max <= 0 || lipgloss.Width(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max-1]) + "…"
	}
	return s
}
