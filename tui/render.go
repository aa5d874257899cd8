// ABOUTME: Static lipgloss rendering of plans, run reports and run history
// ABOUTME: Used by the plan, sync and status commands for human-readable output
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/patronsync/models"
	"github.com/harperreed/patronsync/sync"
)

// RenderPlan renders every list of a plan as text tables.
func RenderPlan(plan *sync.Plan) string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("FSI patron plan"))
	s.WriteString("\n")
	s.WriteString(planSummary(plan))
	s.WriteString("\n")

	sections := []struct {
		title   string
		columns []table.Column
		rows    []table.Row
	}{
		{"To create", contactColumns, contactRows(plan.Creates)},
		{"To update", contactColumns, contactRows(plan.Updates)},
		{"Skipped", skippedColumns, skippedRows(plan.Skipped)},
	}
	for _, sec := range sections {
		if len(sec.rows) == 0 {
			continue
		}
		s.WriteString("\n")
		s.WriteString(headerStyle.Render(sec.title))
		s.WriteString("\n")
		s.WriteString(renderRows(sec.columns, sec.rows))
	}

	return s.String()
}

func planSummary(plan *sync.Plan) string {
	parts := []string{
		okStyle.Render(fmt.Sprintf("%d to create", len(plan.Creates))),
		okStyle.Render(fmt.Sprintf("%d to update", len(plan.Updates))),
		mutedStyle.Render(fmt.Sprintf("%d unchanged", plan.Unchanged)),
	}

	skips := plan.SkipCounts()
	if n := skips[sync.SkipNoEmail]; n > 0 {
		parts = append(parts, warnStyle.Render(fmt.Sprintf("%d without email", n)))
	}
	if n := skips[sync.SkipNonTargetDomain]; n > 0 {
		parts = append(parts, warnStyle.Render(fmt.Sprintf("%d outside domain", n)))
	}
	if plan.Gaps > 0 {
		parts = append(parts, warnStyle.Render(fmt.Sprintf("%d staff without staff number", plan.Gaps)))
	}
	return strings.Join(parts, " • ")
}

// RenderReport summarizes a finished sync run.
func RenderReport(report *sync.Report) string {
	var s strings.Builder

	fmt.Fprintf(&s, "Edumate contacts found: %d\n", report.Contacts)
	fmt.Fprintf(&s, "FSI patrons found: %d\n", report.Patrons)
	if report.Plan != nil {
		fmt.Fprintf(&s, "Patrons to create: %d\n", len(report.Plan.Creates))
		fmt.Fprintf(&s, "Patrons to update: %d\n", len(report.Plan.Updates))
	}

	switch {
	case report.DryRun:
		s.WriteString(mutedStyle.Render("Dry run, nothing written."))
		s.WriteString("\n")
		return s.String()
	case report.Declined:
		s.WriteString(mutedStyle.Render("Cancelled at review, nothing written."))
		s.WriteString("\n")
		return s.String()
	}

	failures := report.Failures()
	written := len(report.Outcomes) - failures
	s.WriteString(okStyle.Render(fmt.Sprintf("✓ %d patrons written", written)))
	s.WriteString("\n")
	if failures > 0 {
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %d patrons failed", failures)))
		s.WriteString("\n")
		for _, o := range report.Outcomes {
			if o.Err != nil {
				s.WriteString(errorStyle.Render(fmt.Sprintf("  %s (%s): %v", o.Username, o.Action, o.Err)))
				s.WriteString("\n")
			}
		}
	}
	return s.String()
}

// RenderRuns renders the run history, newest first, relative to now.
func RenderRuns(runs []models.SyncRun, now time.Time) string {
	if len(runs) == 0 {
		return mutedStyle.Render("No sync runs recorded yet.") + "\n"
	}

	var s strings.Builder
	s.WriteString(headerStyle.Render("Recent sync runs"))
	s.WriteString("\n\n")

	for _, run := range runs {
		line := fmt.Sprintf("%s  %-9s  %s", run.ID.String()[:8], run.Status, formatTimeSince(run.StartedAt, now))
		if run.DryRun {
			line += " (dry run)"
		}
		s.WriteString(statusStyle(run.Status).Render(line))
		s.WriteString("\n")

		counts := fmt.Sprintf("    contacts %d • patrons %d • create %d • update %d • skipped %d • failed %d",
			run.Contacts, run.Patrons, run.Creates, run.Updates, run.Skipped, run.Failures)
		s.WriteString(mutedStyle.Render(counts))
		s.WriteString("\n")

		if run.ErrorMessage != "" {
			s.WriteString(errorStyle.Render("    " + run.ErrorMessage))
			s.WriteString("\n")
		}
	}
	return s.String()
}

// RenderFailures lists the failed writes of one run.
func RenderFailures(entries []models.SyncLogEntry) string {
	if len(entries) == 0 {
		return ""
	}

	var s strings.Builder
	s.WriteString("\n")
	s.WriteString(headerStyle.Render("Failed writes in latest run"))
	s.WriteString("\n")
	for _, e := range entries {
		s.WriteString(errorStyle.Render(fmt.Sprintf("  %s (%s): %s", e.Username, e.Action, e.Error)))
		s.WriteString("\n")
	}
	return s.String()
}

func statusStyle(status string) lipgloss.Style {
	switch status {
	case models.RunStatusSucceeded:
		return okStyle
	case models.RunStatusPartial, models.RunStatusRunning:
		return warnStyle
	case models.RunStatusFailed:
		return errorStyle
	}
	return mutedStyle
}

// formatTimeSince formats a time duration in a human-readable way.
func formatTimeSince(t, now time.Time) string {
	duration := now.Sub(t)

	if duration < time.Minute {
		return "just now"
	} else if duration < time.Hour {
		minutes := int(duration.Minutes())
		if minutes == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", minutes)
	} else if duration < 24*time.Hour {
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	}
	days := int(duration.Hours() / 24)
	if days == 1 {
		return "1 day ago"
	}
	return fmt.Sprintf("%d days ago", days)
}
