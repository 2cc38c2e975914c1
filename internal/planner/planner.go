package planner

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gammazero/toposort"
	"github.com/google/uuid"

	"github.com/openatelier/atelier/internal/capability"
)

// ErrInfeasible is returned when any task has no eligible capability.
// Plan creation aborts entirely; no partial plan is ever returned.
var ErrInfeasible = errors.New("planning infeasible")

// Config tunes capability scoring and plan validation.
type Config struct {
	QualityWeight float64       // default 0.5
	CostWeight    float64       // default 0.3
	LatencyWeight float64       // default 0.2
	CostNorm      float64       // cost at which the cost term saturates, default 0.10
	LatencyNorm   time.Duration // latency at which the latency term saturates, default 10s
	CostCeiling   float64       // ValidatePlan fails plans above this, default 1.0
}

// DefaultConfig returns the documented scoring weights and ceilings.
func DefaultConfig() Config {
	return Config{
		QualityWeight: 0.5,
		CostWeight:    0.3,
		LatencyWeight: 0.2,
		CostNorm:      0.10,
		LatencyNorm:   10 * time.Second,
		CostCeiling:   1.0,
	}
}

// Planner turns enriched intents into execution plans.
type Planner struct {
	cfg Config
}

// New creates a Planner. Zero-valued config fields fall back to defaults.
func New(cfg Config) *Planner {
	def := DefaultConfig()
	if cfg.QualityWeight == 0 && cfg.CostWeight == 0 && cfg.LatencyWeight == 0 {
		cfg.QualityWeight = def.QualityWeight
		cfg.CostWeight = def.CostWeight
		cfg.LatencyWeight = def.LatencyWeight
	}
	if cfg.CostNorm == 0 {
		cfg.CostNorm = def.CostNorm
	}
	if cfg.LatencyNorm == 0 {
		cfg.LatencyNorm = def.LatencyNorm
	}
	if cfg.CostCeiling == 0 {
		cfg.CostCeiling = def.CostCeiling
	}
	return &Planner{cfg: cfg}
}

// CreatePlan decomposes the intent into tasks, assigns a capability to each,
// schedules them sequentially, computes aggregates, and derives a fallback
// set. Matching filters on declared status only; observed health is
// deliberately not consulted here.
func (p *Planner) CreatePlan(intent EnrichedIntent, caps []capability.Capability) (*Plan, error) {
	tasks := decompose(intent)

	planned := make([]PlannedTask, 0, len(tasks))
	for _, task := range tasks {
		assigned, err := p.assign(task, caps)
		if err != nil {
			return nil, err
		}
		planned = append(planned, PlannedTask{
			Task:               task,
			AssignedCapability: assigned,
			Status:             TaskPending,
		})
	}

	schedule(planned, time.Now())

	plan := &Plan{
		ID:        uuid.NewString(),
		IntentID:  intent.ID,
		Tasks:     planned,
		CreatedAt: time.Now(),
	}
	p.computeAggregates(plan, intent, caps)
	plan.Fallbacks = p.fallbacks(planned, caps)

	if err := validateDependencies(planned); err != nil {
		return nil, err
	}
	return plan, nil
}

// decompose always produces a primary generation task. Style preferences add
// a dependent formatting task; complex intents add a final analysis task
// depending on everything before it.
func decompose(intent EnrichedIntent) []Task {
	input := intent.RefinedGoal
	if input == "" {
		input = intent.RawRequest
	}

	primary := Task{
		ID:                "generate",
		Type:              "generation",
		Description:       fmt.Sprintf("Generate %s content: %s", intent.ContentType, input),
		RequiredTags:      requiredTagsFor(intent.ContentType),
		Input:             input,
		ExpectedOutput:    string(intent.ContentType),
		Priority:          PriorityCritical,
		EstimatedDuration: time.Duration(baseDurationFor(intent.ContentType)) * time.Second,
	}
	tasks := []Task{primary}

	if len(intent.StylePreferences) > 0 {
		tasks = append(tasks, Task{
			ID:                "format",
			Type:              "formatting",
			Description:       "Apply style preferences: " + strings.Join(intent.StylePreferences, ", "),
			RequiredTags:      []string{"formatting", "style_transfer"},
			Input:             strings.Join(intent.StylePreferences, ", "),
			ExpectedOutput:    string(intent.ContentType),
			Priority:          1,
			EstimatedDuration: 4 * time.Second,
			DependsOn:         []string{primary.ID},
		})
	}

	if intent.Complexity == ComplexityComplex {
		deps := make([]string, 0, len(tasks))
		for _, t := range tasks {
			deps = append(deps, t.ID)
		}
		tasks = append(tasks, Task{
			ID:                "analyze",
			Type:              "analysis",
			Description:       "Review generated content against the success criteria",
			RequiredTags:      []string{"analysis", "quality_review"},
			Input:             strings.Join(intent.SuccessCriteria, "; "),
			ExpectedOutput:    "report",
			Priority:          2,
			EstimatedDuration: 6 * time.Second,
			DependsOn:         deps,
		})
	}

	return tasks
}

// assign picks the highest-scoring active capability whose tags intersect
// the task's required tags.
func (p *Planner) assign(task Task, caps []capability.Capability) (string, error) {
	bestID := ""
	bestScore := -1.0

	for _, c := range caps {
		spec := c.Spec()
		if spec.Status != capability.StatusActive {
			continue
		}
		if !capability.TagsMatch(spec.Tags, task.RequiredTags) {
			continue
		}
		if s := p.Score(spec.Metadata); s > bestScore {
			bestScore = s
			bestID = spec.ID
		}
	}

	if bestID == "" {
		return "", fmt.Errorf("no capability matches task %q (tags %v): %w", task.ID, task.RequiredTags, ErrInfeasible)
	}
	return bestID, nil
}

// Score computes the multi-objective score of a capability profile:
// weighted quality plus normalized inverse cost and latency. Higher wins.
func (p *Planner) Score(m capability.Metadata) float64 {
	costTerm := 1 - clamp01(m.CostPerUse/p.cfg.CostNorm)
	latencyTerm := 1 - clamp01(float64(m.AverageLatency)/float64(p.cfg.LatencyNorm))
	return p.cfg.QualityWeight*m.QualityScore + p.cfg.CostWeight*costTerm + p.cfg.LatencyWeight*latencyTerm
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// schedule assigns strictly sequential windows: each task starts where the
// previous one is estimated to finish. Parallel grouping is a separate,
// explicit optimization and never applied here.
func schedule(tasks []PlannedTask, start time.Time) {
	cursor := start
	for i := range tasks {
		tasks[i].ScheduledStart = cursor
		tasks[i].EstimatedCompletion = cursor.Add(tasks[i].EstimatedDuration)
		cursor = tasks[i].EstimatedCompletion
	}
}

// computeAggregates fills duration/cost/quality totals and the risk level.
func (p *Planner) computeAggregates(plan *Plan, intent EnrichedIntent, caps []capability.Capability) {
	byID := make(map[string]capability.Spec, len(caps))
	for _, c := range caps {
		byID[c.Spec().ID] = c.Spec()
	}

	var totalDuration time.Duration
	var totalCost, qualitySum float64
	minQuality := 1.0

	for _, t := range plan.Tasks {
		totalDuration += t.EstimatedDuration
		spec := byID[t.AssignedCapability]
		totalCost += spec.Metadata.CostPerUse
		qualitySum += spec.Metadata.QualityScore
		if spec.Metadata.QualityScore < minQuality {
			minQuality = spec.Metadata.QualityScore
		}
	}

	plan.TotalDuration = totalDuration
	plan.TotalCost = totalCost
	if len(plan.Tasks) > 0 {
		plan.QualityExpectation = qualitySum / float64(len(plan.Tasks))
	}

	score := 0
	if intent.Complexity == ComplexityComplex {
		score += 2
	}
	if len(plan.Tasks) > 3 {
		score++
	}
	if minQuality < 0.7 {
		score += 2
	}
	if intent.Urgency == UrgencyHigh {
		score++
	}
	switch {
	case score >= 4:
		plan.Risk = RiskHigh
	case score >= 2:
		plan.Risk = RiskMedium
	default:
		plan.Risk = RiskLow
	}
}

// fallbacks picks, per task, the best-scoring eligible capability distinct
// from the assigned one. Tasks without an alternative are dropped from the
// fallback set.
func (p *Planner) fallbacks(tasks []PlannedTask, caps []capability.Capability) []Fallback {
	var out []Fallback
	for _, t := range tasks {
		bestID := ""
		bestScore := -1.0
		for _, c := range caps {
			spec := c.Spec()
			if spec.ID == t.AssignedCapability || spec.Status != capability.StatusActive {
				continue
			}
			if !capability.TagsMatch(spec.Tags, t.RequiredTags) {
				continue
			}
			if s := p.Score(spec.Metadata); s > bestScore {
				bestScore = s
				bestID = spec.ID
			}
		}
		if bestID != "" {
			out = append(out, Fallback{
				TaskID:       t.ID,
				CapabilityID: bestID,
				Reason:       FallbackReasonCapabilityFailure,
			})
		}
	}
	return out
}

// validateDependencies runs a topological sort over the plan's tasks,
// catching unknown dependency ids and cycles.
func validateDependencies(tasks []PlannedTask) error {
	known := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		known[t.ID] = true
	}
	for _, t := range tasks {
		for _, dep := range t.DependsOn {
			if !known[dep] {
				return fmt.Errorf("task %q depends on unknown task %q", t.ID, dep)
			}
		}
	}

	var edges []toposort.Edge
	for _, t := range tasks {
		if len(t.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, t.ID})
			continue
		}
		for _, dep := range t.DependsOn {
			edges = append(edges, toposort.Edge{dep, t.ID})
		}
	}
	if _, err := toposort.Toposort(edges); err != nil {
		return fmt.Errorf("plan dependencies contain cycle: %w", err)
	}
	return nil
}

// Optimize identifies parallelizable groups (informational only), reorders
// tasks by priority then duration, reschedules, and recomputes aggregates.
func (p *Planner) Optimize(plan *Plan, intent EnrichedIntent, caps []capability.Capability) {
	plan.ParallelGroups = parallelGroups(plan.Tasks)

	sort.SliceStable(plan.Tasks, func(i, j int) bool {
		if plan.Tasks[i].Priority != plan.Tasks[j].Priority {
			return plan.Tasks[i].Priority < plan.Tasks[j].Priority
		}
		return plan.Tasks[i].EstimatedDuration < plan.Tasks[j].EstimatedDuration
	})

	schedule(plan.Tasks, time.Now())
	p.computeAggregates(plan, intent, caps)
}

// parallelGroups levels the dependency graph: each group holds task ids
// whose dependencies are all satisfied by earlier groups. Execution stays
// sequential regardless; the grouping only informs callers.
func parallelGroups(tasks []PlannedTask) [][]string {
	placed := make(map[string]bool, len(tasks))
	remaining := len(tasks)
	var groups [][]string

	for remaining > 0 {
		var group []string
		for _, t := range tasks {
			if placed[t.ID] {
				continue
			}
			ready := true
			for _, dep := range t.DependsOn {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				group = append(group, t.ID)
			}
		}
		if len(group) == 0 {
			// Unsatisfiable dependencies; validateDependencies reports the
			// real error, grouping just stops.
			break
		}
		for _, id := range group {
			placed[id] = true
		}
		remaining -= len(group)
		groups = append(groups, group)
	}
	return groups
}

// Validate reports whether every task has an assigned, currently-active
// capability, every dependency resolves within the plan, and the total cost
// stays under the configured ceiling.
func (p *Planner) Validate(plan *Plan, caps []capability.Capability) bool {
	byID := make(map[string]capability.Spec, len(caps))
	for _, c := range caps {
		byID[c.Spec().ID] = c.Spec()
	}
	known := make(map[string]bool, len(plan.Tasks))
	for _, t := range plan.Tasks {
		known[t.ID] = true
	}

	for _, t := range plan.Tasks {
		spec, ok := byID[t.AssignedCapability]
		if !ok || spec.Status != capability.StatusActive {
			return false
		}
		for _, dep := range t.DependsOn {
			if !known[dep] {
				return false
			}
		}
	}
	return plan.TotalCost <= p.cfg.CostCeiling
}
