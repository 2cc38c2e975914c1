package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/viewport"

	"github.com/openatelier/atelier/internal/events"
)

// taskState tracks one dispatched task for display.
type taskState struct {
	TaskID       string
	Name         string
	CapabilityID string
	Status       string // "running", "completed", "failed"
	Output       []string
	StartTime    time.Time
	Duration     time.Duration
}

// TaskPaneModel shows the dispatched task list and the selected task's
// output in a scrollable viewport.
type TaskPaneModel struct {
	tasks       map[string]*taskState
	taskOrder   []string // insertion order
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

// NewTaskPaneModel creates an empty task pane.
func NewTaskPaneModel() TaskPaneModel {
	return TaskPaneModel{
		tasks:    make(map[string]*taskState),
		viewport: viewport.New(0, 0),
	}
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewport()

	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.taskOrder)-1 {
				m.selectedIdx++
				m.refreshViewport()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.refreshViewport()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.TaskStartedEvent:
		if _, exists := m.tasks[msg.TaskID]; !exists {
			m.tasks[msg.TaskID] = &taskState{
				TaskID:       msg.TaskID,
				Name:         msg.TaskName,
				CapabilityID: msg.CapabilityID,
				Status:       "running",
				StartTime:    msg.Timestamp,
			}
			m.taskOrder = append(m.taskOrder, msg.TaskID)
			if len(m.taskOrder) == 1 {
				m.selectedIdx = 0
				m.refreshViewport()
			}
		}

	case events.TaskResolvedEvent:
		if t, exists := m.tasks[msg.TaskID]; exists {
			t.Duration = msg.Duration
			if msg.Success {
				t.Status = "completed"
				if msg.Output != "" {
					t.Output = append(t.Output, msg.Output)
				}
				t.Output = append(t.Output, fmt.Sprintf("[completed in %v]", msg.Duration.Round(time.Millisecond)))
			} else {
				t.Status = "failed"
				t.Output = append(t.Output, fmt.Sprintf("[failed: %s]", msg.Err))
			}
			if m.selectedTaskID() == msg.TaskID {
				m.refreshViewport()
			}
		}
	}

	return m, cmd
}

func (m *TaskPaneModel) selectedTaskID() string {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.taskOrder) {
		return ""
	}
	return m.taskOrder[m.selectedIdx]
}

func (m *TaskPaneModel) refreshViewport() {
	id := m.selectedTaskID()
	if id == "" {
		m.viewport.SetContent("")
		return
	}
	t := m.tasks[id]
	m.viewport.SetContent(strings.Join(t.Output, "\n"))
	m.viewport.GotoBottom()
}

func (m *TaskPaneModel) resizeViewport() {
	listHeight := len(m.taskOrder) + 3
	m.viewport.Width = m.width - 4
	m.viewport.Height = max(m.height-listHeight-4, 3)
	m.refreshViewport()
}

// View renders the task list with the selected task's output below it.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(stylePaneTitle.Render("Tasks"))
	b.WriteString("\n\n")

	if len(m.taskOrder) == 0 {
		b.WriteString(styleStateIdle.Render("waiting for dispatches..."))
		b.WriteString("\n")
	}

	for i, id := range m.taskOrder {
		t := m.tasks[id]
		marker := "  "
		if i == m.selectedIdx {
			marker = "> "
		}
		line := fmt.Sprintf("%s%s  %s (%s)", marker, statusGlyph(t.Status), t.TaskID, t.CapabilityID)
		switch t.Status {
		case "running":
			line = styleStateRunning.Render(line)
		case "completed":
			line = styleStateDone.Render(line)
		case "failed":
			line = styleStateFailed.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.viewport.View())

	style := stylePaneIdle
	if m.focused {
		style = stylePaneActive
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

func statusGlyph(status string) string {
	switch status {
	case "completed":
		return "+"
	case "failed":
		return "!"
	case "running":
		return "~"
	default:
		return "."
	}
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *TaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
