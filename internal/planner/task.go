package planner

import (
	"time"
)

// TaskStatus is the runtime state of a planned task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// PriorityCritical marks a task whose failure fails the whole context.
const PriorityCritical = 0

// Task is an atomic unit of required work. It exists only inside its owning
// plan; ids are unique per plan, not globally.
type Task struct {
	ID                string        `json:"id"`
	Type              string        `json:"type"`
	Description       string        `json:"description"`
	RequiredTags      []string      `json:"required_tags"`
	Input             string        `json:"input"`
	ExpectedOutput    string        `json:"expected_output"`
	Priority          int           `json:"priority"` // 0 is critical
	EstimatedDuration time.Duration `json:"estimated_duration"`
	DependsOn         []string      `json:"depends_on,omitempty"`
}

// Critical reports whether a failure of this task must fail the context.
func (t Task) Critical() bool { return t.Priority == PriorityCritical }

// PlannedTask is a Task bound to a capability and a schedule window.
// Invariant: the assigned capability satisfies at least one required tag at
// assignment time.
type PlannedTask struct {
	Task
	AssignedCapability  string     `json:"assigned_capability"`
	ScheduledStart      time.Time  `json:"scheduled_start"`
	EstimatedCompletion time.Time  `json:"estimated_completion"`
	Status              TaskStatus `json:"status"`
}

// Clone returns a deep copy, detaching slice fields.
func (t PlannedTask) Clone() PlannedTask {
	cp := t
	cp.RequiredTags = append([]string(nil), t.RequiredTags...)
	cp.DependsOn = append([]string(nil), t.DependsOn...)
	return cp
}
