// ABOUTME: Full-screen review of a reconciliation plan before patrons are written
// ABOUTME: Tabs through creates, updates and skipped contacts and waits for confirm or cancel
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/patronsync/sync"
)

// reviewTab is one list of the plan.
type reviewTab int

const (
	tabCreates reviewTab = iota
	tabUpdates
	tabSkipped
	tabCount
)

func (t reviewTab) title(plan *sync.Plan) string {
	switch t {
	case tabCreates:
		return fmt.Sprintf("Create (%d)", len(plan.Creates))
	case tabUpdates:
		return fmt.Sprintf("Update (%d)", len(plan.Updates))
	case tabSkipped:
		return fmt.Sprintf("Skipped (%d)", len(plan.Skipped))
	}
	return ""
}

// ReviewModel is the bubbletea model of the plan review screen.
type ReviewModel struct {
	plan  *sync.Plan
	tab   reviewTab
	table table.Model

	width  int
	height int

	confirmed bool
	done      bool
}

// NewReviewModel creates a review screen for plan, opened on the creates tab.
func NewReviewModel(plan *sync.Plan) ReviewModel {
	m := ReviewModel{
		plan:   plan,
		tab:    tabCreates,
		width:  100,
		height: 24,
	}
	m.table = m.buildTable()
	return m
}

// Confirmed reports whether the operator approved the writes.
func (m ReviewModel) Confirmed() bool {
	return m.confirmed
}

func (m ReviewModel) Init() tea.Cmd {
	return nil
}

func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(m.tableHeight())
		return m, nil
	}
	return m, nil
}

func (m ReviewModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		m.confirmed = true
		m.done = true
		return m, tea.Quit
	case "n", "q", "esc", "ctrl+c":
		m.done = true
		return m, tea.Quit
	case "tab", "right", "l":
		m.tab = (m.tab + 1) % tabCount
		m.table = m.buildTable()
		return m, nil
	case "shift+tab", "left", "h":
		m.tab = (m.tab + tabCount - 1) % tabCount
		m.table = m.buildTable()
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m ReviewModel) View() string {
	if m.done {
		return ""
	}

	var s strings.Builder

	s.WriteString(titleStyle.Render("Review FSI patron changes"))
	s.WriteString("\n")
	s.WriteString(planSummary(m.plan))
	s.WriteString("\n\n")

	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	if len(m.table.Rows()) == 0 {
		s.WriteString(mutedStyle.Render("Nothing here."))
	} else {
		s.WriteString(m.table.View())
	}
	s.WriteString("\n")

	help := []string{
		"Tab/←/→: Switch list",
		"↑/↓: Scroll",
		"y/Enter: Write patrons",
		"n/q/Esc: Cancel",
	}
	s.WriteString(helpStyle.Render(strings.Join(help, " • ")))

	return s.String()
}

func (m ReviewModel) renderTabs() string {
	var rendered []string
	for t := tabCreates; t < tabCount; t++ {
		if t == m.tab {
			rendered = append(rendered, tabActiveStyle.Render(t.title(m.plan)))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(t.title(m.plan)))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m ReviewModel) buildTable() table.Model {
	columns := contactColumns
	var rows []table.Row
	switch m.tab {
	case tabCreates:
		rows = contactRows(m.plan.Creates)
	case tabUpdates:
		rows = contactRows(m.plan.Updates)
	case tabSkipped:
		columns = skippedColumns
		rows = skippedRows(m.plan.Skipped)
	}

	return table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(m.tableHeight()),
	)
}

func (m ReviewModel) tableHeight() int {
	return max(m.height-10, 3)
}

// Reviewer returns a sync.ReviewFunc that shows the plan full-screen and
// blocks until the operator confirms or cancels.
func Reviewer(opts ...tea.ProgramOption) sync.ReviewFunc {
	return func(ctx context.Context, plan *sync.Plan) (bool, error) {
		programOpts := append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)

		final, err := tea.NewProgram(NewReviewModel(plan), programOpts...).Run()
		if err != nil {
			return false, fmt.Errorf("failed to run review screen: %w", err)
		}

		m, ok := final.(ReviewModel)
		return ok && m.Confirmed(), nil
	}
}
