// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Shared styles and table helpers for the plan review screen and CLI summaries
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/patronsync/models"
	"github.com/harperreed/patronsync/sync"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			Underline(true)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)
)

var (
	contactColumns = []table.Column{
		{Title: "Kind", Width: 8},
		{Title: "ID", Width: 12},
		{Title: "Email", Width: 34},
		{Title: "Name", Width: 28},
		{Title: "Class", Width: 8},
	}

	skippedColumns = []table.Column{
		{Title: "Kind", Width: 8},
		{Title: "ID", Width: 12},
		{Title: "Name", Width: 28},
		{Title: "Reason", Width: 18},
		{Title: "Email", Width: 34},
	}
)

func contactRows(contacts []models.ContactRecord) []table.Row {
	rows := make([]table.Row, 0, len(contacts))
	for _, c := range contacts {
		rows = append(rows, table.Row{
			c.Kind.String(),
			c.Identifier,
			c.EmailValue(),
			fullName(c),
			sync.Project(c).Classgrade,
		})
	}
	return rows
}

func skippedRows(skipped []sync.Decision) []table.Row {
	rows := make([]table.Row, 0, len(skipped))
	for _, d := range skipped {
		rows = append(rows, table.Row{
			d.Contact.Kind.String(),
			d.Contact.Identifier,
			fullName(d.Contact),
			d.Reason.String(),
			d.Contact.EmailValue(),
		})
	}
	return rows
}

func fullName(c models.ContactRecord) string {
	return strings.TrimSpace(c.FirstName + " " + c.Surname)
}

// renderRows lays rows out in fixed-width columns for non-interactive output.
func renderRows(columns []table.Column, rows []table.Row) string {
	var s strings.Builder

	cells := make([]string, len(columns))
	for i, col := range columns {
		cells[i] = lipgloss.NewStyle().Width(col.Width).MaxWidth(col.Width).Bold(true).Render(col.Title)
	}
	s.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " "))
	s.WriteString("\n")

	for _, row := range rows {
		for i, col := range columns {
			value := ""
			if i < len(row) {
				value = truncate(row[i], col.Width-1)
			}
			cells[i] = lipgloss.NewStyle().Width(col.Width).MaxWidth(col.Width).Render(value)
		}
		s.WriteString(strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, cells...), " "))
		s.WriteString("\n")
	}
	return s.String()
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
