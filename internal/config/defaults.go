package config

// DefaultConfig returns the built-in configuration: documented scoring
// weights, a 60s task timeout, and no collaborator provider.
func DefaultConfig() *Config {
	return &Config{
		Planner: PlannerConfig{
			QualityWeight: 0.5,
			CostWeight:    0.3,
			LatencyWeight: 0.2,
			CostNorm:      0.10,
			LatencyNormMS: 10000,
			CostCeiling:   1.0,
		},
		Invoker: InvokerConfig{
			TaskTimeoutMS:      60000,
			RetryInitialMS:     100,
			RetryMaxIntervalMS: 5000,
			RetryMaxElapsedMS:  30000,
		},
	}
}
