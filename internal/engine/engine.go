// Package engine drives execution plans to completion. Each context runs a
// single cooperative cursor: one task is dispatched at a time, dependencies
// gate eligibility, and pause/cancel are observed at scan boundaries only.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openatelier/atelier/internal/events"
	"github.com/openatelier/atelier/internal/invoker"
	"github.com/openatelier/atelier/internal/planner"
)

// ErrContextNotFound is returned for lookups of unknown context ids.
var ErrContextNotFound = errors.New("execution context not found")

// ErrNotTerminal rejects cleanup of contexts that are still live.
var ErrNotTerminal = errors.New("execution context not terminal")

// Engine owns execution contexts. Multiple contexts may run concurrently;
// they share only the registry (via the invoker) and the invoker's
// in-flight tracking.
type Engine struct {
	invoker *invoker.Invoker
	bus     *events.Bus // nil disables bus notifications

	mu       sync.Mutex
	contexts map[string]*runState
}

// New creates an Engine. bus may be nil.
func New(inv *invoker.Invoker, bus *events.Bus) *Engine {
	return &Engine{
		invoker:  inv,
		bus:      bus,
		contexts: make(map[string]*runState),
	}
}

// ExecutePlan creates a running context for the plan and starts its loop
// without blocking the caller. Returns the context id.
func (e *Engine) ExecutePlan(ctx context.Context, plan *planner.Plan) (string, error) {
	if plan == nil || len(plan.Tasks) == 0 {
		return "", fmt.Errorf("execute plan: plan has no tasks")
	}

	tasks := make([]planner.PlannedTask, len(plan.Tasks))
	for i, t := range plan.Tasks {
		cp := t.Clone()
		cp.Status = planner.TaskPending
		tasks[i] = cp
	}

	st := &runState{
		id:        uuid.NewString(),
		planID:    plan.ID,
		plan:      plan,
		status:    StatusRunning,
		tasks:     tasks,
		startTime: time.Now(),
	}
	st.recomputeProgressLocked()

	e.mu.Lock()
	e.contexts[st.id] = st
	st.loopActive = true
	e.mu.Unlock()

	go e.run(ctx, st)
	return st.id, nil
}

// run is the cooperative execution loop: one advancing cursor per context.
func (e *Engine) run(ctx context.Context, st *runState) {
	defer func() {
		e.mu.Lock()
		st.loopActive = false
		e.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			e.cancelInternal(st)
			return
		}

		e.mu.Lock()
		if st.status != StatusRunning {
			// Paused or terminal; the pass halts here. Resume relaunches.
			e.mu.Unlock()
			return
		}
		next := nextEligibleLocked(st.tasks)
		if next < 0 {
			// Nothing can advance. Tasks blocked behind a failed dependency
			// stay pending; the context still completes.
			st.status = StatusCompleted
			st.endTime = time.Now()
			snap := st.snapshotLocked()
			e.mu.Unlock()
			e.emit(st, snap, true)
			return
		}

		task := st.tasks[next]
		st.tasks[next].Status = planner.TaskRunning
		snap := st.snapshotLocked()
		e.mu.Unlock()

		e.emit(st, snap, false)
		e.publish(events.TaskStartedEvent{
			ContextID:    st.id,
			TaskID:       task.ID,
			TaskName:     task.Description,
			CapabilityID: task.AssignedCapability,
			Timestamp:    time.Now(),
		})

		start := time.Now()
		result := e.dispatch(ctx, st.plan, task)

		e.mu.Lock()
		if result.Succeeded() {
			st.tasks[next].Status = planner.TaskCompleted
			st.results = append(st.results, result)
		} else {
			st.tasks[next].Status = planner.TaskFailed
			st.errs = append(st.errs, fmt.Sprintf("task %s: %s", task.ID, result.Metadata.Error))
		}
		st.recomputeProgressLocked()

		critical := !result.Succeeded() && task.Critical()
		if critical && st.status == StatusRunning {
			st.status = StatusFailed
			st.endTime = time.Now()
		}
		terminal := st.status.Terminal()
		snap = st.snapshotLocked()
		e.mu.Unlock()

		e.publish(events.TaskResolvedEvent{
			ContextID: st.id,
			TaskID:    task.ID,
			Success:   result.Succeeded(),
			Output:    result.Output,
			Err:       result.Metadata.Error,
			Duration:  time.Since(start),
			Timestamp: time.Now(),
		})
		e.emit(st, snap, terminal)

		if critical {
			return
		}
	}
}

// dispatch invokes the assigned capability; on failure it tries the plan's
// fallback capability once. Pre-dispatch validation errors (capability
// removed or deactivated since planning) are folded into a failed result so
// the loop has a single resolution path.
func (e *Engine) dispatch(ctx context.Context, plan *planner.Plan, task planner.PlannedTask) invoker.TaskResult {
	result, err := e.invoker.Invoke(ctx, task.AssignedCapability, task.Task)
	if err != nil {
		result = failedResult(task.ID, err)
	}
	if result.Succeeded() {
		return result
	}

	fallbackID, ok := plan.FallbackFor(task.ID)
	if !ok {
		return result
	}
	log.Printf("task %q failed on %q, trying fallback %q", task.ID, task.AssignedCapability, fallbackID)
	fbResult, fbErr := e.invoker.Invoke(ctx, fallbackID, task.Task)
	if fbErr != nil {
		// Keep the original failure; the fallback never even dispatched.
		return result
	}
	if fbResult.Succeeded() {
		return fbResult
	}
	return result
}

func failedResult(taskID string, err error) invoker.TaskResult {
	return invoker.TaskResult{
		TaskID: taskID,
		Status: invoker.ResultFailed,
		Metadata: invoker.ResultMetadata{
			Error: err.Error(),
		},
	}
}

// nextEligibleLocked returns the index of the first pending task in plan
// order whose dependencies are all completed, or -1.
func nextEligibleLocked(tasks []planner.PlannedTask) int {
	byID := make(map[string]planner.TaskStatus, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t.Status
	}
	for i, t := range tasks {
		if t.Status != planner.TaskPending {
			continue
		}
		ready := true
		for _, dep := range t.DependsOn {
			if byID[dep] != planner.TaskCompleted {
				ready = false
				break
			}
		}
		if ready {
			return i
		}
	}
	return -1
}

// Pause moves a running context to paused and emits the paused snapshot.
// No-op in any other state.
func (e *Engine) Pause(contextID string) error {
	e.mu.Lock()
	st, ok := e.contexts[contextID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("pause %q: %w", contextID, ErrContextNotFound)
	}
	if st.status != StatusRunning {
		e.mu.Unlock()
		return nil
	}
	st.status = StatusPaused
	snap := st.snapshotLocked()
	e.mu.Unlock()

	e.emit(st, snap, false)
	return nil
}

// Resume moves a paused context back to running and relaunches its loop
// over the remaining pending tasks.
func (e *Engine) Resume(ctx context.Context, contextID string) error {
	e.mu.Lock()
	st, ok := e.contexts[contextID]
	if !ok {
		e.mu.Unlock()
		return fmt.Errorf("resume %q: %w", contextID, ErrContextNotFound)
	}
	if st.status != StatusPaused {
		e.mu.Unlock()
		return nil
	}
	st.status = StatusRunning
	relaunch := !st.loopActive
	if relaunch {
		st.loopActive = true
	}
	snap := st.snapshotLocked()
	e.mu.Unlock()

	e.emit(st, snap, false)
	if relaunch {
		go e.run(ctx, st)
	}
	return nil
}

// Cancel moves any non-terminal context to cancelled and records the end
// time. Cooperative: a task already dispatched is not aborted; the loop
// observes the new status at its next scan.
func (e *Engine) Cancel(contextID string) error {
	e.mu.Lock()
	st, ok := e.contexts[contextID]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("cancel %q: %w", contextID, ErrContextNotFound)
	}
	e.cancelInternal(st)
	return nil
}

func (e *Engine) cancelInternal(st *runState) {
	e.mu.Lock()
	if st.status.Terminal() {
		e.mu.Unlock()
		return
	}
	st.status = StatusCancelled
	st.endTime = time.Now()
	snap := st.snapshotLocked()
	e.mu.Unlock()

	e.emit(st, snap, true)
}

// Monitor returns a push stream of context snapshots: the current snapshot
// immediately, then one per mutation, until the context reaches a terminal
// state, at which point the channel is closed. This is the sole progress
// observation mechanism.
func (e *Engine) Monitor(contextID string) (<-chan Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.contexts[contextID]
	if !ok {
		return nil, fmt.Errorf("monitor %q: %w", contextID, ErrContextNotFound)
	}

	ch := make(chan Snapshot, 64)
	ch <- st.snapshotLocked()
	if st.status.Terminal() {
		close(ch)
		return ch, nil
	}
	st.watchers = append(st.watchers, ch)
	return ch, nil
}

// Get returns the current snapshot of a context.
func (e *Engine) Get(contextID string) (Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.contexts[contextID]
	if !ok {
		return Snapshot{}, fmt.Errorf("get %q: %w", contextID, ErrContextNotFound)
	}
	return st.snapshotLocked(), nil
}

// List returns snapshots of all known contexts, live and finished.
func (e *Engine) List() []Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Snapshot, 0, len(e.contexts))
	for _, st := range e.contexts {
		out = append(out, st.snapshotLocked())
	}
	return out
}

// Cleanup removes a terminal context from the engine's history.
func (e *Engine) Cleanup(contextID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.contexts[contextID]
	if !ok {
		return fmt.Errorf("cleanup %q: %w", contextID, ErrContextNotFound)
	}
	if !st.status.Terminal() {
		return fmt.Errorf("cleanup %q: %w", contextID, ErrNotTerminal)
	}
	delete(e.contexts, contextID)
	return nil
}

// emit pushes a snapshot to the context's watchers (non-blocking per
// watcher) and mirrors it onto the bus. After a terminal snapshot all
// watcher channels are closed; later emits are no-ops, so a task that
// resolves after cancellation produces no further snapshots. Sends and
// closes happen under the lock: watcher channels are buffered and overflow
// is dropped, so holding it never blocks, and a terminal emit can never
// close a channel a concurrent emit is about to send on.
func (e *Engine) emit(st *runState, snap Snapshot, terminal bool) {
	e.mu.Lock()
	if st.closed {
		e.mu.Unlock()
		return
	}
	for _, ch := range st.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
	if terminal {
		st.closed = true
		for _, ch := range st.watchers {
			close(ch)
		}
		st.watchers = nil
	}
	e.mu.Unlock()

	counts := snap.Counts()
	e.publish(events.ContextSnapshotEvent{
		ContextID: snap.ID,
		PlanID:    snap.PlanID,
		Status:    string(snap.Status),
		Progress:  snap.Progress,
		Total:     counts.Total,
		Completed: counts.Completed,
		Failed:    counts.Failed,
		Running:   counts.Running,
		Pending:   counts.Pending,
		Timestamp: time.Now(),
	})
}

func (e *Engine) publish(ev events.Event) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.TopicExecution, ev)
}
