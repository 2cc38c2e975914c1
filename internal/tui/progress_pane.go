package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/openatelier/atelier/internal/events"
)

// contextState is the latest snapshot seen for one execution context.
type contextState struct {
	ContextID string
	Status    string
	Progress  float64
	Total     int
	Completed int
	Failed    int
	Running   int
	Pending   int
}

// ProgressPaneModel shows per-context progress bars built from execution
// snapshots.
type ProgressPaneModel struct {
	contexts map[string]*contextState
	width    int
	height   int
	focused  bool
}

// NewProgressPaneModel creates an empty progress pane.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{
		contexts: make(map[string]*contextState),
	}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case events.ContextSnapshotEvent:
		m.contexts[msg.ContextID] = &contextState{
			ContextID: msg.ContextID,
			Status:    msg.Status,
			Progress:  msg.Progress,
			Total:     msg.Total,
			Completed: msg.Completed,
			Failed:    msg.Failed,
			Running:   msg.Running,
			Pending:   msg.Pending,
		}
	}

	return m, nil
}

// View renders each context with a progress bar and task counts.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(stylePaneTitle.Render("Execution"))
	b.WriteString("\n\n")

	if len(m.contexts) == 0 {
		b.WriteString(styleStateIdle.Render("no active contexts"))
		b.WriteString("\n")
	}

	ids := make([]string, 0, len(m.contexts))
	for id := range m.contexts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	barWidth := max(m.width-14, 10)
	for _, id := range ids {
		c := m.contexts[id]

		short := c.ContextID
		if len(short) > 8 {
			short = short[:8]
		}
		header := fmt.Sprintf("%s  %s", short, c.Status)
		switch c.Status {
		case "running":
			header = styleStateRunning.Render(header)
		case "completed":
			header = styleStateDone.Render(header)
		case "failed", "cancelled":
			header = styleStateFailed.Render(header)
		default:
			header = styleStateIdle.Render(header)
		}
		b.WriteString(header)
		b.WriteString("\n")

		b.WriteString(renderBar(c.Progress, barWidth))
		b.WriteString(fmt.Sprintf(" %3.0f%%\n", c.Progress))

		b.WriteString(styleHelpBar.Render(fmt.Sprintf(
			"  %d done / %d failed / %d running / %d pending of %d",
			c.Completed, c.Failed, c.Running, c.Pending, c.Total)))
		b.WriteString("\n\n")
	}

	style := stylePaneIdle
	if m.focused {
		style = stylePaneActive
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// renderBar draws a fixed-width progress bar for a 0-100 percentage.
func renderBar(pct float64, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * float64(width))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
