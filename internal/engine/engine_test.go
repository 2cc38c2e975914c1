package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openatelier/atelier/internal/capability"
	"github.com/openatelier/atelier/internal/invoker"
	"github.com/openatelier/atelier/internal/planner"
)

func fastRetry() invoker.RetryConfig {
	return invoker.RetryConfig{
		InitialInterval:     time.Millisecond,
		MaxInterval:         5 * time.Millisecond,
		MaxElapsedTime:      25 * time.Millisecond,
		Multiplier:          2.0,
		RandomizationFactor: 0,
	}
}

func newEnv(t *testing.T, handlers map[string]capability.Handler) *Engine {
	t.Helper()
	reg := capability.NewRegistry(nil)
	for id, fn := range handlers {
		c, err := capability.New(capability.KindTool, capability.Spec{
			ID:   id,
			Name: "Capability " + id,
			Tags: []string{"work"},
		}, fn)
		if err != nil {
			t.Fatalf("new capability: %v", err)
		}
		if err := reg.Register(c); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	inv := invoker.New(reg, nil, invoker.Config{Retry: fastRetry()})
	return New(inv, nil)
}

func okHandler(ctx context.Context, req capability.Request) (capability.Response, error) {
	return capability.Response{Output: "finished work for " + req.TaskID}, nil
}

func failHandler(ctx context.Context, req capability.Request) (capability.Response, error) {
	return capability.Response{}, errors.New("provider failure")
}

func task(id string, priority int, cap string, deps ...string) planner.PlannedTask {
	return planner.PlannedTask{
		Task: planner.Task{
			ID:           id,
			Type:         "work",
			Description:  "task " + id,
			RequiredTags: []string{"work"},
			Input:        "input for " + id,
			Priority:     priority,
			DependsOn:    deps,
		},
		AssignedCapability: cap,
	}
}

func testPlan(tasks ...planner.PlannedTask) *planner.Plan {
	return &planner.Plan{
		ID:        "plan-1",
		IntentID:  "intent-1",
		Tasks:     tasks,
		CreatedAt: time.Now(),
	}
}

func drain(t *testing.T, ch <-chan Snapshot) []Snapshot {
	t.Helper()
	var snaps []Snapshot
	timeout := time.After(5 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return snaps
			}
			snaps = append(snaps, snap)
		case <-timeout:
			t.Fatal("timeout draining monitor channel")
		}
	}
}

// TestExecutePlanCompletes verifies the full happy path: dependency order,
// monotonic progress, and a final completed snapshot at 100%.
func TestExecutePlanCompletes(t *testing.T) {
	eng := newEnv(t, map[string]capability.Handler{"ok": okHandler})
	plan := testPlan(
		task("a", 0, "ok"),
		task("b", 1, "ok", "a"),
	)

	id, err := eng.ExecutePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	watch, err := eng.Monitor(id)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}

	snaps := drain(t, watch)
	if len(snaps) == 0 {
		t.Fatal("no snapshots received")
	}

	last := 0.0
	for _, s := range snaps {
		if s.Progress < last {
			t.Errorf("progress went backwards: %f -> %f", last, s.Progress)
		}
		last = s.Progress
	}

	final := snaps[len(snaps)-1]
	if final.Status != StatusCompleted {
		t.Errorf("final status = %s, errors = %v", final.Status, final.Errors)
	}
	if final.Progress != 100 {
		t.Errorf("final progress = %f", final.Progress)
	}
	if len(final.Results) != 2 {
		t.Errorf("results = %d, want 2", len(final.Results))
	}
	if final.EndTime.IsZero() {
		t.Error("end time not recorded")
	}
}

// TestBlockedTaskStaysPending verifies a task behind a failed non-critical
// dependency stays pending while the context still completes.
func TestBlockedTaskStaysPending(t *testing.T) {
	eng := newEnv(t, map[string]capability.Handler{
		"ok":  okHandler,
		"bad": failHandler,
	})
	plan := testPlan(
		task("a", 1, "bad"),
		task("b", 1, "ok", "a"),
	)

	id, err := eng.ExecutePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	watch, err := eng.Monitor(id)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}

	snaps := drain(t, watch)
	final := snaps[len(snaps)-1]

	if final.Status != StatusCompleted {
		t.Errorf("final status = %s, want completed", final.Status)
	}
	for _, task := range final.Tasks {
		switch task.ID {
		case "a":
			if task.Status != planner.TaskFailed {
				t.Errorf("task a = %s, want failed", task.Status)
			}
		case "b":
			if task.Status != planner.TaskPending {
				t.Errorf("task b = %s, want pending", task.Status)
			}
		}
	}
	if final.Progress != 50 {
		t.Errorf("progress = %f, want 50 (one of two tasks resolved)", final.Progress)
	}
	if len(final.Errors) != 1 {
		t.Errorf("errors = %v", final.Errors)
	}
}

// TestCriticalFailureFailsContext verifies a critical task failure moves the
// context to failed immediately.
func TestCriticalFailureFailsContext(t *testing.T) {
	eng := newEnv(t, map[string]capability.Handler{
		"ok":  okHandler,
		"bad": failHandler,
	})
	plan := testPlan(
		task("a", 0, "bad"), // critical
		task("b", 1, "ok"),
	)

	id, err := eng.ExecutePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	watch, err := eng.Monitor(id)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}

	snaps := drain(t, watch)
	final := snaps[len(snaps)-1]
	if final.Status != StatusFailed {
		t.Errorf("final status = %s, want failed", final.Status)
	}
	if final.EndTime.IsZero() {
		t.Error("end time not recorded")
	}

	// Task b was never dispatched.
	b, _ := finalTask(final, "b")
	if b.Status != planner.TaskPending {
		t.Errorf("task b = %s, want pending", b.Status)
	}
}

// TestFallbackRecoversTask verifies the plan fallback is tried once when the
// assigned capability fails, and its success resolves the task.
func TestFallbackRecoversTask(t *testing.T) {
	eng := newEnv(t, map[string]capability.Handler{
		"bad":    failHandler,
		"backup": okHandler,
	})
	plan := testPlan(task("a", 0, "bad"))
	plan.Fallbacks = []planner.Fallback{{
		TaskID:       "a",
		CapabilityID: "backup",
		Reason:       planner.FallbackReasonCapabilityFailure,
	}}

	id, err := eng.ExecutePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	watch, err := eng.Monitor(id)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}

	snaps := drain(t, watch)
	final := snaps[len(snaps)-1]
	if final.Status != StatusCompleted {
		t.Errorf("final status = %s, want completed (fallback should recover)", final.Status)
	}
	if len(final.Results) != 1 {
		t.Fatalf("results = %d", len(final.Results))
	}
}

// TestPauseResume verifies pause halts the cursor at a scan boundary, both
// transitions are observable through the monitor, and resume relaunches the
// loop over the remaining tasks.
func TestPauseResume(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	eng := newEnv(t, map[string]capability.Handler{
		"gate": func(ctx context.Context, req capability.Request) (capability.Response, error) {
			if req.TaskID == "a" {
				close(started)
				<-release
			}
			return capability.Response{Output: "done with " + req.TaskID}, nil
		},
	})
	plan := testPlan(
		task("a", 0, "gate"),
		task("b", 1, "gate"),
	)

	id, err := eng.ExecutePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	watch, err := eng.Monitor(id)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}

	<-started
	if err := eng.Pause(id); err != nil {
		t.Fatalf("pause: %v", err)
	}
	close(release)

	// Task a finishes (in-flight work is not aborted), then the loop
	// observes paused and halts before dispatching b.
	deadline := time.Now().Add(5 * time.Second)
	var snap Snapshot
	for time.Now().Before(deadline) {
		snap, _ = eng.Get(id)
		if a, _ := finalTask(snap, "a"); a.Status == planner.TaskCompleted {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	a, _ := finalTask(snap, "a")
	b, _ := finalTask(snap, "b")
	if a.Status != planner.TaskCompleted {
		t.Fatalf("task a = %s, want completed", a.Status)
	}
	if b.Status != planner.TaskPending {
		t.Errorf("task b = %s, want pending while paused", b.Status)
	}

	if err := eng.Resume(context.Background(), id); err != nil {
		t.Fatalf("resume: %v", err)
	}
	waitForStatus(t, eng, id, StatusCompleted)

	// The monitor saw the pause, never a dispatch of b while paused, and
	// the resumed run through to completion.
	snaps := drain(t, watch)
	sawPaused := false
	sawResumed := false
	for _, s := range snaps {
		if s.Status == StatusPaused {
			sawPaused = true
			if tb, _ := finalTask(s, "b"); tb.Status != planner.TaskPending {
				t.Errorf("task b = %s in a paused snapshot, want pending", tb.Status)
			}
		}
		if sawPaused && s.Status == StatusRunning {
			sawResumed = true
		}
	}
	if !sawPaused {
		t.Error("monitor never observed the paused status")
	}
	if !sawResumed {
		t.Error("monitor never observed the context running again after pause")
	}
	final := snaps[len(snaps)-1]
	if final.Status != StatusCompleted {
		t.Errorf("final status = %s, want completed", final.Status)
	}
}

// TestEmitCancelRace verifies a cancellation racing in-progress snapshot
// pushes never panics a watcher send and every monitor channel still closes.
func TestEmitCancelRace(t *testing.T) {
	for i := 0; i < 100; i++ {
		release := make(chan struct{})
		eng := newEnv(t, map[string]capability.Handler{
			"gate": func(ctx context.Context, req capability.Request) (capability.Response, error) {
				<-release
				return capability.Response{Output: "late"}, nil
			},
		})
		plan := testPlan(task("a", 1, "gate"))

		id, err := eng.ExecutePlan(context.Background(), plan)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		watchers := make([]<-chan Snapshot, 0, 8)
		for j := 0; j < 8; j++ {
			w, err := eng.Monitor(id)
			if err != nil {
				t.Fatalf("monitor: %v", err)
			}
			watchers = append(watchers, w)
		}

		eng.mu.Lock()
		st := eng.contexts[id]
		snap := st.snapshotLocked()
		eng.mu.Unlock()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for k := 0; k < 50; k++ {
				eng.emit(st, snap, false)
			}
		}()
		if err := eng.Cancel(id); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		<-done
		close(release)

		for _, w := range watchers {
			drain(t, w)
		}
	}
}

// TestCancelClosesWatchers verifies cancellation emits one terminal snapshot
// with an end time, closes the monitor channel, and suppresses snapshots for
// work that resolves afterwards.
func TestCancelClosesWatchers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	eng := newEnv(t, map[string]capability.Handler{
		"gate": func(ctx context.Context, req capability.Request) (capability.Response, error) {
			close(started)
			<-release
			return capability.Response{Output: "late completion"}, nil
		},
	})
	plan := testPlan(
		task("a", 0, "gate"),
		task("b", 1, "gate"),
	)

	id, err := eng.ExecutePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	watch, err := eng.Monitor(id)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}

	<-started
	if err := eng.Cancel(id); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	snaps := drain(t, watch) // closes after the terminal snapshot
	final := snaps[len(snaps)-1]
	if final.Status != StatusCancelled {
		t.Errorf("final status = %s, want cancelled", final.Status)
	}
	if final.EndTime.IsZero() {
		t.Error("cancelled context must record an end time")
	}

	// The in-flight task resolves after cancellation; its resolution must not
	// resurrect the context.
	close(release)
	time.Sleep(50 * time.Millisecond)
	snap, err := eng.Get(id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if snap.Status != StatusCancelled {
		t.Errorf("status after late resolution = %s, want cancelled", snap.Status)
	}

	// Cancelling again is a no-op.
	if err := eng.Cancel(id); err != nil {
		t.Errorf("second cancel: %v", err)
	}
}

// TestMonitorTerminalContext verifies monitoring a finished context yields
// one snapshot and an immediately closed channel.
func TestMonitorTerminalContext(t *testing.T) {
	eng := newEnv(t, map[string]capability.Handler{"ok": okHandler})
	plan := testPlan(task("a", 0, "ok"))

	id, err := eng.ExecutePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	waitForStatus(t, eng, id, StatusCompleted)

	watch, err := eng.Monitor(id)
	if err != nil {
		t.Fatalf("monitor: %v", err)
	}
	snaps := drain(t, watch)
	if len(snaps) != 1 {
		t.Fatalf("expected exactly one snapshot, got %d", len(snaps))
	}
	if snaps[0].Status != StatusCompleted {
		t.Errorf("status = %s", snaps[0].Status)
	}
}

// TestCleanup verifies only terminal contexts can be removed.
func TestCleanup(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	eng := newEnv(t, map[string]capability.Handler{
		"gate": func(ctx context.Context, req capability.Request) (capability.Response, error) {
			close(started)
			<-release
			return capability.Response{Output: "finished eventually"}, nil
		},
	})
	plan := testPlan(task("a", 0, "gate"))

	id, err := eng.ExecutePlan(context.Background(), plan)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	<-started

	if err := eng.Cleanup(id); !errors.Is(err, ErrNotTerminal) {
		t.Errorf("expected ErrNotTerminal for live context, got %v", err)
	}

	close(release)
	waitForStatus(t, eng, id, StatusCompleted)

	if err := eng.Cleanup(id); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if _, err := eng.Get(id); !errors.Is(err, ErrContextNotFound) {
		t.Errorf("expected ErrContextNotFound after cleanup, got %v", err)
	}
	if err := eng.Cleanup(id); !errors.Is(err, ErrContextNotFound) {
		t.Errorf("expected ErrContextNotFound for second cleanup, got %v", err)
	}
}

// TestExecutePlanRejectsEmpty verifies empty plans are rejected up front.
func TestExecutePlanRejectsEmpty(t *testing.T) {
	eng := newEnv(t, nil)
	if _, err := eng.ExecutePlan(context.Background(), nil); err == nil {
		t.Error("expected error for nil plan")
	}
	if _, err := eng.ExecutePlan(context.Background(), testPlan()); err == nil {
		t.Error("expected error for empty plan")
	}
}

func finalTask(snap Snapshot, id string) (planner.PlannedTask, bool) {
	for _, t := range snap.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return planner.PlannedTask{}, false
}

func waitForStatus(t *testing.T, eng *Engine, id string, want Status) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := eng.Get(id)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if snap.Status == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	snap, _ := eng.Get(id)
	t.Fatalf("timeout waiting for status %s (current %s)", want, snap.Status)
}
