package events

import (
	"time"
)

// Event is the base interface for all events on the bus.
type Event interface {
	EventType() string
	Subject() string // capability id or execution context id
}

// Topic constants
const (
	TopicCapability = "capability"
	TopicExecution  = "execution"
)

// Event type constants
const (
	EventTypeCapabilityRegistered = "capability.registered"
	EventTypeCapabilityRemoved    = "capability.removed"
	EventTypeHealthChanged        = "capability.health"
	EventTypeTaskStarted          = "execution.task.started"
	EventTypeTaskResolved         = "execution.task.resolved"
	EventTypeContextSnapshot      = "execution.snapshot"
)

// CapabilityRegisteredEvent is published when a capability is first registered.
// Duplicate registrations are no-ops and do not publish.
type CapabilityRegisteredEvent struct {
	ID        string
	Name      string
	Kind      string
	Timestamp time.Time
}

func (e CapabilityRegisteredEvent) EventType() string { return EventTypeCapabilityRegistered }
func (e CapabilityRegisteredEvent) Subject() string   { return e.ID }

// CapabilityRemovedEvent is published when a capability is removed.
type CapabilityRemovedEvent struct {
	ID        string
	Timestamp time.Time
}

func (e CapabilityRemovedEvent) EventType() string { return EventTypeCapabilityRemoved }
func (e CapabilityRemovedEvent) Subject() string   { return e.ID }

// HealthChangedEvent is published on every observed health update.
type HealthChangedEvent struct {
	ID        string
	Health    string
	Timestamp time.Time
}

func (e HealthChangedEvent) EventType() string { return EventTypeHealthChanged }
func (e HealthChangedEvent) Subject() string   { return e.ID }

// TaskStartedEvent is published when the execution loop dispatches a task.
type TaskStartedEvent struct {
	ContextID    string
	TaskID       string
	TaskName     string
	CapabilityID string
	Timestamp    time.Time
}

func (e TaskStartedEvent) EventType() string { return EventTypeTaskStarted }
func (e TaskStartedEvent) Subject() string   { return e.ContextID }

// TaskResolvedEvent is published when a dispatched task completes or fails.
type TaskResolvedEvent struct {
	ContextID string
	TaskID    string
	Success   bool
	Output    string
	Err       string
	Duration  time.Duration
	Timestamp time.Time
}

func (e TaskResolvedEvent) EventType() string { return EventTypeTaskResolved }
func (e TaskResolvedEvent) Subject() string   { return e.ContextID }

// ContextSnapshotEvent carries the progress counters of a running context.
// One is published after every context mutation.
type ContextSnapshotEvent struct {
	ContextID string
	PlanID    string
	Status    string
	Progress  float64
	Total     int
	Completed int
	Failed    int
	Running   int
	Pending   int
	Timestamp time.Time
}

func (e ContextSnapshotEvent) EventType() string { return EventTypeContextSnapshot }
func (e ContextSnapshotEvent) Subject() string   { return e.ContextID }
