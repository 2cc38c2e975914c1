package config

// PlannerConfig tunes capability scoring and plan validation.
type PlannerConfig struct {
	QualityWeight float64 `json:"quality_weight"`
	CostWeight    float64 `json:"cost_weight"`
	LatencyWeight float64 `json:"latency_weight"`
	CostNorm      float64 `json:"cost_norm"`       // cost saturation point
	LatencyNormMS int     `json:"latency_norm_ms"` // latency saturation point
	CostCeiling   float64 `json:"cost_ceiling"`    // plan validation ceiling
}

// InvokerConfig tunes dispatch resilience.
type InvokerConfig struct {
	TaskTimeoutMS      int `json:"task_timeout_ms"` // 0 disables
	RetryInitialMS     int `json:"retry_initial_ms"`
	RetryMaxIntervalMS int `json:"retry_max_interval_ms"`
	RetryMaxElapsedMS  int `json:"retry_max_elapsed_ms"`
}

// CollaboratorConfig selects the language collaborator. An empty provider
// runs rule-based fallbacks only.
type CollaboratorConfig struct {
	Provider string `json:"provider,omitempty"` // e.g. "openai", "ollama"
	Model    string `json:"model,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// Config is the top-level configuration.
type Config struct {
	Planner      PlannerConfig      `json:"planner"`
	Invoker      InvokerConfig      `json:"invoker"`
	Collaborator CollaboratorConfig `json:"collaborator"`
	HistoryDB    string             `json:"history_db,omitempty"` // empty disables the history store
}
