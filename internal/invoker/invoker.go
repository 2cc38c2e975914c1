// Package invoker dispatches single tasks to capabilities. Provider
// failures never cross this boundary as errors: they come back as failed
// TaskResults with zero cost. Only pre-dispatch validation (unknown id,
// inactive capability, tag mismatch) is surfaced to the caller.
package invoker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/openatelier/atelier/internal/capability"
	"github.com/openatelier/atelier/internal/events"
	"github.com/openatelier/atelier/internal/planner"
)

var (
	// ErrCapabilityInactive rejects dispatch to non-active capabilities.
	ErrCapabilityInactive = errors.New("capability not active")
	// ErrUnsupportedTask rejects dispatch when no required tag matches.
	ErrUnsupportedTask = errors.New("capability does not support task")
)

// Config tunes the invoker.
type Config struct {
	Retry       RetryConfig
	TaskTimeout time.Duration // 0 disables the per-task timeout
}

// Flight is one in-progress invocation, tracked for observability only.
type Flight struct {
	TaskID       string
	CapabilityID string
	StartedAt    time.Time
}

// Invoker invokes one capability for one task, reporting observed health
// back to the registry after every dispatch.
type Invoker struct {
	registry *capability.Registry
	breakers *BreakerRegistry
	cfg      Config

	mu       sync.Mutex
	inflight map[string]Flight // keyed by task id
}

// New creates an Invoker. When bus is non-nil, the invoker observes
// capability removal events and discards in-flight bookkeeping for removed
// capabilities without interrupting the calls themselves.
func New(reg *capability.Registry, bus *events.Bus, cfg Config) *Invoker {
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	inv := &Invoker{
		registry: reg,
		breakers: NewBreakerRegistry(),
		cfg:      cfg,
		inflight: make(map[string]Flight),
	}
	if bus != nil {
		ch := bus.Subscribe(events.TopicCapability, 64)
		go func() {
			for ev := range ch {
				if removed, ok := ev.(events.CapabilityRemovedEvent); ok {
					inv.DiscardInFlight(removed.ID)
				}
			}
		}()
	}
	return inv
}

// Invoke resolves the capability, fails fast on validation problems, then
// dispatches with retry and breaker protection. Dispatch failures are
// returned as a failed TaskResult with a nil error.
func (inv *Invoker) Invoke(ctx context.Context, capabilityID string, task planner.Task) (TaskResult, error) {
	c, ok := inv.registry.Get(capabilityID)
	if !ok {
		return TaskResult{}, fmt.Errorf("invoke task %q: capability %q: %w", task.ID, capabilityID, capability.ErrNotFound)
	}
	spec := c.Spec()
	if spec.Status != capability.StatusActive {
		return TaskResult{}, fmt.Errorf("invoke task %q: capability %q has status %s: %w", task.ID, capabilityID, spec.Status, ErrCapabilityInactive)
	}
	if !capability.TagsMatch(spec.Tags, task.RequiredTags) {
		return TaskResult{}, fmt.Errorf("invoke task %q: capability %q matches none of %v: %w", task.ID, capabilityID, task.RequiredTags, ErrUnsupportedTask)
	}

	inv.track(task.ID, capabilityID)
	defer inv.untrack(task.ID)

	if inv.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.cfg.TaskTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := dispatchWithRetry(ctx, c, capability.Request{
		TaskID: task.ID,
		Input:  task.Input,
	}, inv.breakers.Get(c.Kind()), inv.cfg.Retry)
	elapsed := time.Since(start)

	if err != nil {
		// Health reporting is best-effort; the capability may have been
		// removed while the call was in flight.
		_ = inv.registry.UpdateHealth(capabilityID, capability.Unhealthy)
		return TaskResult{
			TaskID: task.ID,
			Status: ResultFailed,
			Metadata: ResultMetadata{
				ProcessingTime: elapsed,
				Cost:           0,
				Error:          err.Error(),
			},
		}, nil
	}

	_ = inv.registry.UpdateHealth(capabilityID, capability.Healthy)

	confidence := spec.Metadata.QualityScore
	if degenerate(resp.Output) {
		confidence *= 0.5
	}

	return TaskResult{
		TaskID: task.ID,
		Status: ResultSuccess,
		Output: resp.Output,
		Metadata: ResultMetadata{
			QualityScore:   spec.Metadata.QualityScore,
			Confidence:     confidence,
			ProcessingTime: elapsed,
			Cost:           resp.Cost,
			TokensUsed:     resp.TokensUsed,
		},
	}, nil
}

// degenerate flags near-empty output so confidence can be penalized.
func degenerate(output string) bool {
	return len(strings.TrimSpace(output)) < 10
}

// InFlight returns a snapshot of current in-flight invocations.
func (inv *Invoker) InFlight() []Flight {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	out := make([]Flight, 0, len(inv.inflight))
	for _, f := range inv.inflight {
		out = append(out, f)
	}
	return out
}

// DiscardInFlight drops bookkeeping for a removed capability. The calls
// themselves are not interrupted; they finish and report normally.
func (inv *Invoker) DiscardInFlight(capabilityID string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	for taskID, f := range inv.inflight {
		if f.CapabilityID == capabilityID {
			delete(inv.inflight, taskID)
		}
	}
}

func (inv *Invoker) track(taskID, capabilityID string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.inflight[taskID] = Flight{
		TaskID:       taskID,
		CapabilityID: capabilityID,
		StartedAt:    time.Now(),
	}
}

func (inv *Invoker) untrack(taskID string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	delete(inv.inflight, taskID)
}
