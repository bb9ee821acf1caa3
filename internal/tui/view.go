package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/procedure-runner/internal/workflow/progress"
)

const recentOutcomes = 5

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).MarginBottom(1)
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	detailStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	skippedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

// View renders the watch screen.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	rightWidth := max(32, width/3)
	leftWidth := width - rightWidth - 4
	if leftWidth < 40 {
		leftWidth = width - 4
		rightWidth = 0
	}

	sections := []string{headerStyle.Render("⬡ PROCEDURE RUNNER")}
	left := boxStyle.Width(max(20, leftWidth)).Render(a.renderStatus())
	if rightWidth > 0 {
		right := boxStyle.Width(max(20, rightWidth)).Render(a.renderOutcomes())
		sections = append(sections, lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	} else {
		sections = append(sections, left, boxStyle.Width(max(20, leftWidth)).Render(a.renderOutcomes()))
	}
	if panel := a.renderFollowups(); panel != "" {
		sections = append(sections, panel)
	}
	sections = append(sections, mutedStyle.MarginTop(1).Render(a.footer()))
	return strings.Join(sections, "\n")
}

func (a *App) renderStatus() string {
	if a.err != nil {
		return failedStyle.Render("Cannot read progress: " + a.err.Error())
	}
	if !a.loaded {
		return fmt.Sprintf("%s Waiting for a run to start (%s)", a.spinner.View(), a.repo.Path())
	}
	snap := a.snapshot
	lines := []string{titleStyle.Render("CURRENT STATUS")}
	lines = append(lines, currentLines(snap, a.spinner.View())...)

	percent := 0.0
	if snap.Total > 0 {
		percent = float64(snap.Done()) / float64(snap.Total)
	}
	lines = append(lines,
		"",
		titleStyle.Render("PROGRESS"),
		a.bar.ViewAs(percent),
		fmt.Sprintf("%d/%d done · %s %d · %s %d · %s %d · %d remaining",
			snap.Done(), snap.Total,
			completedStyle.Render("completed"), len(snap.Completed),
			failedStyle.Render("failed"), len(snap.Failed),
			skippedStyle.Render("skipped"), len(snap.Skipped),
			len(snap.Remaining)),
		detailStyle.Render(fmt.Sprintf("Run %s · elapsed %s", shortID(snap.RunID), snap.Elapsed.Round(time.Second))),
	)
	return strings.Join(lines, "\n")
}

func currentLines(snap progress.Snapshot, spin string) []string {
	if snap.Finished {
		return []string{completedStyle.Render("Run finished")}
	}
	cur := snap.Current
	if cur == nil {
		return []string{detailStyle.Render("Idle, waiting for next unit")}
	}
	head := fmt.Sprintf("%s %s (%s)", spin, cur.Name, cur.Slot)
	if cur.Skip {
		head += mutedStyle.Render(" skip mode")
	}
	lines := []string{head}
	step := fmt.Sprintf("Step %d/%d", cur.Step, progress.TotalSteps)
	if cur.LastLabel != "" {
		step += " · " + cur.LastLabel
	}
	if cur.Attempt > 1 {
		step += fmt.Sprintf(" · attempt %d", cur.Attempt)
	}
	lines = append(lines, detailStyle.Render(step))
	if cur.Quantities != nil && cur.Quantities.Known() {
		lines = append(lines, detailStyle.Render("Sessions: "+cur.Quantities.String()))
	}
	if cur.LastError != "" {
		lines = append(lines, failedStyle.Render("Last error: ")+cur.LastError)
	}
	return lines
}

func (a *App) renderOutcomes() string {
	if !a.loaded {
		return mutedStyle.Render("No outcomes yet")
	}
	snap := a.snapshot
	var lines []string
	add := func(title string, style lipgloss.Style, outcomes []progress.Outcome, detail func(progress.Outcome) string) {
		lines = append(lines, style.Render(fmt.Sprintf("%s (%d)", title, len(outcomes))))
		if len(outcomes) == 0 {
			lines = append(lines, mutedStyle.Render("  none"))
			return
		}
		start := max(0, len(outcomes)-recentOutcomes)
		for _, o := range outcomes[start:] {
			line := fmt.Sprintf("  %s (%s)", o.Name, o.Slot)
			if d := detail(o); d != "" {
				line += " " + detailStyle.Render(d)
			}
			lines = append(lines, line)
		}
		lines = append(lines, "")
	}
	add("COMPLETED", completedStyle, snap.Completed, func(o progress.Outcome) string {
		return o.RegistrationNumber
	})
	add("FAILED", failedStyle, snap.Failed, func(o progress.Outcome) string {
		return o.Reason
	})
	add("SKIPPED", skippedStyle, snap.Skipped, func(o progress.Outcome) string {
		return o.Reason
	})
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

func (a *App) renderFollowups() string {
	if len(a.followups) == 0 {
		return ""
	}
	head := titleStyle.Render(fmt.Sprintf("FOLLOW-UPS · %s (%d)", filepath.Base(a.followupsPath), a.followupN))
	body := detailStyle.Render(strings.Join(a.followups, "\n"))
	return boxStyle.Render(head + "\n" + body)
}

func (a *App) footer() string {
	text := "q quit · r refresh"
	if !a.refreshed.IsZero() {
		text += " · updated " + a.refreshed.Format(time.TimeOnly)
	}
	return text
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
