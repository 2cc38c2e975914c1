package invoker

import (
	"time"
)

// ResultStatus is the outcome of one invocation.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultFailed  ResultStatus = "failed"
)

// ResultMetadata carries the measured profile of one invocation.
type ResultMetadata struct {
	QualityScore   float64       `json:"quality_score"`
	Confidence     float64       `json:"confidence"`
	ProcessingTime time.Duration `json:"processing_time"`
	Cost           float64       `json:"cost"`
	TokensUsed     int           `json:"tokens_used,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// TaskResult is the structured outcome of invoking one capability for one
// task. Dispatch failures are expressed as a failed result, never as an
// error crossing the invocation boundary.
type TaskResult struct {
	TaskID   string         `json:"task_id"`
	Status   ResultStatus   `json:"status"`
	Output   string         `json:"output,omitempty"`
	Metadata ResultMetadata `json:"metadata"`
}

// Succeeded reports whether the invocation produced usable output.
func (r TaskResult) Succeeded() bool { return r.Status == ResultSuccess }
