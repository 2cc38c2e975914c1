package planner

import (
	"time"
)

// RiskLevel is the coarse risk classification of a plan.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Fallback names an alternative capability for one task, to be used when
// the assigned capability fails.
type Fallback struct {
	TaskID       string `json:"task_id"`
	CapabilityID string `json:"capability_id"`
	Reason       string `json:"reason"`
}

// FallbackReasonCapabilityFailure is the only fallback trigger produced by
// plan creation.
const FallbackReasonCapabilityFailure = "on capability_failure"

// Plan is a fully assigned, scheduled set of tasks for one intent.
type Plan struct {
	ID                 string        `json:"id"`
	IntentID           string        `json:"intent_id"`
	Tasks              []PlannedTask `json:"tasks"`
	TotalDuration      time.Duration `json:"total_duration"`
	TotalCost          float64       `json:"total_cost"`
	QualityExpectation float64       `json:"quality_expectation"`
	Risk               RiskLevel     `json:"risk"`
	Fallbacks          []Fallback    `json:"fallbacks,omitempty"`
	ParallelGroups     [][]string    `json:"parallel_groups,omitempty"` // informational, set by Optimize
	CreatedAt          time.Time     `json:"created_at"`
}

// Task returns the planned task with the given id.
func (p *Plan) Task(id string) (*PlannedTask, bool) {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return &p.Tasks[i], true
		}
	}
	return nil, false
}

// FallbackFor returns the fallback capability id for a task, if any.
func (p *Plan) FallbackFor(taskID string) (string, bool) {
	for _, fb := range p.Fallbacks {
		if fb.TaskID == taskID {
			return fb.CapabilityID, true
		}
	}
	return "", false
}
