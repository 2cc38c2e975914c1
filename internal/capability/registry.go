package capability

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/openatelier/atelier/internal/events"
)

// ErrNotFound is returned for lookups of unregistered capability ids.
var ErrNotFound = errors.New("capability not found")

// Registry holds the set of available capabilities and their observed
// health. Safe for concurrent use from multiple execution contexts.
// Registration is idempotent: re-registering an existing id is a no-op.
type Registry struct {
	mu     sync.RWMutex
	caps   map[string]Capability
	health map[string]Health
	bus    *events.Bus // nil disables notifications
}

// NewRegistry creates an empty registry. bus may be nil.
func NewRegistry(bus *events.Bus) *Registry {
	return &Registry{
		caps:   make(map[string]Capability),
		health: make(map[string]Health),
		bus:    bus,
	}
}

// Register validates and adds a capability. A duplicate id is tolerated as a
// no-op so overlapping capability sets can bootstrap concurrently.
func (r *Registry) Register(c Capability) error {
	if c == nil {
		return fmt.Errorf("invalid capability: nil")
	}
	spec := c.Spec()
	if spec.ID == "" || spec.Name == "" {
		return fmt.Errorf("invalid capability: id and name are required")
	}
	if c.Kind() == "" {
		return fmt.Errorf("invalid capability %q: kind is required", spec.ID)
	}

	r.mu.Lock()
	if _, exists := r.caps[spec.ID]; exists {
		r.mu.Unlock()
		return nil
	}
	r.caps[spec.ID] = c
	r.health[spec.ID] = Healthy
	r.mu.Unlock()

	r.publish(events.CapabilityRegisteredEvent{
		ID:        spec.ID,
		Name:      spec.Name,
		Kind:      string(c.Kind()),
		Timestamp: time.Now(),
	})
	return nil
}

// Remove deletes a capability and its health entry.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	if _, exists := r.caps[id]; !exists {
		r.mu.Unlock()
		return fmt.Errorf("remove %q: %w", id, ErrNotFound)
	}
	delete(r.caps, id)
	delete(r.health, id)
	r.mu.Unlock()

	r.publish(events.CapabilityRemovedEvent{ID: id, Timestamp: time.Now()})
	return nil
}

// Get returns the capability for id.
func (r *Registry) Get(id string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.caps[id]
	return c, ok
}

// List returns all registered capabilities.
func (r *Registry) List() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Capability, 0, len(r.caps))
	for _, c := range r.caps {
		out = append(out, c)
	}
	return out
}

// ListAvailable returns capabilities with declared status active.
func (r *Registry) ListAvailable() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Capability{}
	for _, c := range r.caps {
		if c.Spec().Status == StatusActive {
			out = append(out, c)
		}
	}
	return out
}

// SearchByTags returns capabilities whose tag set intersects the query tags
// using case-insensitive substring matching, sorted by descending declared
// quality score.
func (r *Registry) SearchByTags(tags []string) []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Capability{}
	for _, c := range r.caps {
		if TagsMatch(c.Spec().Tags, tags) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Spec().Metadata.QualityScore > out[j].Spec().Metadata.QualityScore
	})
	return out
}

// TagsMatch reports whether any declared tag matches any query tag by
// case-insensitive substring in either direction. Shared with the planner's
// candidate filter and the invoker's pre-dispatch check.
func TagsMatch(declared, query []string) bool {
	for _, q := range query {
		ql := strings.ToLower(q)
		for _, d := range declared {
			dl := strings.ToLower(d)
			if strings.Contains(dl, ql) || strings.Contains(ql, dl) {
				return true
			}
		}
	}
	return false
}

// UpdateHealth records an observed health signal. Last write wins.
func (r *Registry) UpdateHealth(id string, h Health) error {
	r.mu.Lock()
	if _, exists := r.caps[id]; !exists {
		r.mu.Unlock()
		return fmt.Errorf("update health %q: %w", id, ErrNotFound)
	}
	r.health[id] = h
	r.mu.Unlock()

	r.publish(events.HealthChangedEvent{ID: id, Health: string(h), Timestamp: time.Now()})
	return nil
}

// HealthOf returns the observed health for id.
func (r *Registry) HealthOf(id string) (Health, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.health[id]
	return h, ok
}

// SetStatus updates the declared status of a registered capability.
func (r *Registry) SetStatus(id string, s Status) error {
	r.mu.RLock()
	c, ok := r.caps[id]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("set status %q: %w", id, ErrNotFound)
	}
	c.SetStatus(s)
	return nil
}

// Stats groups registry counts by kind, status, and health.
type Stats struct {
	Total    int
	ByKind   map[string]int
	ByStatus map[string]int
	ByHealth map[string]int
}

// Statistics returns counts grouped by kind, status, and health.
func (r *Registry) Statistics() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Total:    len(r.caps),
		ByKind:   make(map[string]int),
		ByStatus: make(map[string]int),
		ByHealth: make(map[string]int),
	}
	for id, c := range r.caps {
		stats.ByKind[string(c.Kind())]++
		stats.ByStatus[string(c.Spec().Status)]++
		stats.ByHealth[string(r.health[id])]++
	}
	return stats
}

func (r *Registry) publish(e events.Event) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(events.TopicCapability, e)
}
