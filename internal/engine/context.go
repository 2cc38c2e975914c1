package engine

import (
	"time"

	"github.com/openatelier/atelier/internal/invoker"
	"github.com/openatelier/atelier/internal/planner"
)

// Status is the state of an execution context.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Snapshot is an immutable view of an execution context, emitted to
// monitors after every mutation. Slices are detached copies.
type Snapshot struct {
	ID        string                `json:"id"`
	PlanID    string                `json:"plan_id"`
	Status    Status                `json:"status"`
	Progress  float64               `json:"progress"` // [0,100]
	Tasks     []planner.PlannedTask `json:"tasks"`
	Results   []invoker.TaskResult  `json:"results,omitempty"`
	Errors    []string              `json:"errors,omitempty"`
	StartTime time.Time             `json:"start_time"`
	EndTime   time.Time             `json:"end_time,omitempty"`
}

// TaskCounts tallies task states for progress reporting.
type TaskCounts struct {
	Total     int
	Completed int
	Failed    int
	Running   int
	Pending   int
}

// Counts computes the task state tally of the snapshot.
func (s Snapshot) Counts() TaskCounts {
	c := TaskCounts{Total: len(s.Tasks)}
	for _, t := range s.Tasks {
		switch t.Status {
		case planner.TaskCompleted:
			c.Completed++
		case planner.TaskFailed:
			c.Failed++
		case planner.TaskRunning:
			c.Running++
		default:
			c.Pending++
		}
	}
	return c
}

// runState is the live, mutable execution context. All fields below mu are
// guarded by it; the run loop is the only writer of task state, but
// Pause/Resume/Cancel and monitors touch status and watchers concurrently.
type runState struct {
	id     string
	planID string
	plan   *planner.Plan

	status     Status
	tasks      []planner.PlannedTask // runtime copies, plan order
	results    []invoker.TaskResult
	errs       []string
	progress   float64
	startTime  time.Time
	endTime    time.Time
	loopActive bool

	watchers []chan Snapshot
	closed   bool // watchers closed after terminal snapshot
}

// snapshotLocked builds a detached snapshot. Caller holds the state lock.
func (st *runState) snapshotLocked() Snapshot {
	tasks := make([]planner.PlannedTask, len(st.tasks))
	for i, t := range st.tasks {
		tasks[i] = t.Clone()
	}
	return Snapshot{
		ID:        st.id,
		PlanID:    st.planID,
		Status:    st.status,
		Progress:  st.progress,
		Tasks:     tasks,
		Results:   append([]invoker.TaskResult(nil), st.results...),
		Errors:    append([]string(nil), st.errs...),
		StartTime: st.startTime,
		EndTime:   st.endTime,
	}
}

// recomputeProgressLocked applies the progress invariant:
// resolved tasks (completed or failed) over total, times 100.
func (st *runState) recomputeProgressLocked() {
	if len(st.tasks) == 0 {
		st.progress = 100
		return
	}
	resolved := 0
	for _, t := range st.tasks {
		if t.Status.Terminal() {
			resolved++
		}
	}
	st.progress = float64(resolved) / float64(len(st.tasks)) * 100
}
