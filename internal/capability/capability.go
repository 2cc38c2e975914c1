package capability

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Kind discriminates the four capability variants.
type Kind string

const (
	KindModel  Kind = "model"
	KindAgent  Kind = "agent"
	KindTool   Kind = "tool"
	KindEffect Kind = "effect"
)

// Status is the declared availability of a capability.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMaintenance Status = "maintenance"
)

// Health is the observed, eventually-consistent signal tracked by the
// registry. Distinct from Status, which is declared by the operator.
type Health string

const (
	Healthy   Health = "healthy"
	Degraded  Health = "degraded"
	Unhealthy Health = "unhealthy"
)

// Metadata is the static cost/latency/quality profile declared at
// registration. Used only for planning-time scoring, never enforced at
// invocation time.
type Metadata struct {
	CostPerUse       float64       `json:"cost_per_use"`
	AverageLatency   time.Duration `json:"average_latency"`
	QualityScore     float64       `json:"quality_score"` // [0,1]
	SupportedFormats []string      `json:"supported_formats,omitempty"`
}

// Spec is the declared identity and profile of a capability.
type Spec struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Tags     []string `json:"tags"`
	Metadata Metadata `json:"metadata"`
	Status   Status   `json:"status"`
}

// Request is the input to a single capability invocation.
type Request struct {
	TaskID  string
	Input   string
	Options map[string]string
}

// Response is the raw provider result of one invocation.
type Response struct {
	Output     string
	Cost       float64
	Latency    time.Duration
	TokensUsed int
}

// Handler is the provider-supplied implementation of a capability. Concrete
// providers (a specific text/image/voice/video generator) live outside this
// module and are plugged in through this function.
type Handler func(ctx context.Context, req Request) (Response, error)

// Capability is a pluggable unit of work. The registry stores these variant
// values; the invoker dispatches through Invoke.
type Capability interface {
	Spec() Spec
	Kind() Kind
	SetStatus(s Status)
	Invoke(ctx context.Context, req Request) (Response, error)
}

// New creates the variant matching kind. The handler may be nil only for
// kinds that define a pass-through default (effects).
func New(kind Kind, spec Spec, fn Handler) (Capability, error) {
	if spec.Status == "" {
		spec.Status = StatusActive
	}
	switch kind {
	case KindModel:
		return &Model{base: base{spec: spec, fn: fn}}, nil
	case KindAgent:
		return &Agent{base: base{spec: spec, fn: fn}}, nil
	case KindTool:
		return &Tool{base: base{spec: spec, fn: fn}}, nil
	case KindEffect:
		return &Effect{base: base{spec: spec, fn: fn}}, nil
	default:
		return nil, fmt.Errorf("unknown capability kind: %s", kind)
	}
}

// base holds the shared state of all variants. Status is the only mutable
// field after construction.
type base struct {
	mu   sync.RWMutex
	spec Spec
	fn   Handler
}

func (b *base) Spec() Spec {
	b.mu.RLock()
	defer b.mu.RUnlock()

	cp := b.spec
	cp.Tags = append([]string(nil), b.spec.Tags...)
	cp.Metadata.SupportedFormats = append([]string(nil), b.spec.Metadata.SupportedFormats...)
	return cp
}

func (b *base) SetStatus(s Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.spec.Status = s
}

// call runs the handler and backfills cost/latency from declared metadata
// when the provider did not report them.
func (b *base) call(ctx context.Context, req Request) (Response, error) {
	b.mu.RLock()
	fn := b.fn
	meta := b.spec.Metadata
	b.mu.RUnlock()

	if fn == nil {
		return Response{}, fmt.Errorf("capability %q has no handler", b.spec.ID)
	}

	start := time.Now()
	resp, err := fn(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if resp.Latency == 0 {
		resp.Latency = time.Since(start)
	}
	if resp.Cost == 0 {
		resp.Cost = meta.CostPerUse
	}
	return resp, nil
}

// Model is a generation model. Token usage is estimated from output length
// when the provider does not report it.
type Model struct {
	base
}

func (m *Model) Kind() Kind { return KindModel }

func (m *Model) Invoke(ctx context.Context, req Request) (Response, error) {
	resp, err := m.call(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if resp.TokensUsed == 0 {
		// Rough 4-chars-per-token estimate keeps cost reporting non-zero.
		resp.TokensUsed = (len(req.Input) + len(resp.Output)) / 4
	}
	return resp, nil
}

// Agent is an autonomous multi-step worker. Invocations always carry an
// objective option so agent providers can distinguish goal from raw input.
type Agent struct {
	base
}

func (a *Agent) Kind() Kind { return KindAgent }

func (a *Agent) Invoke(ctx context.Context, req Request) (Response, error) {
	if req.Options == nil {
		req.Options = map[string]string{}
	}
	if _, ok := req.Options["objective"]; !ok {
		req.Options["objective"] = req.Input
	}
	return a.call(ctx, req)
}

// Tool is a deterministic single-purpose function.
type Tool struct {
	base
}

func (t *Tool) Kind() Kind { return KindTool }

func (t *Tool) Invoke(ctx context.Context, req Request) (Response, error) {
	return t.call(ctx, req)
}

// Effect is an in-place transformation. A nil handler acts as identity,
// which lets plans carry declarative effects that providers may fill later.
type Effect struct {
	base
}

func (e *Effect) Kind() Kind { return KindEffect }

func (e *Effect) Invoke(ctx context.Context, req Request) (Response, error) {
	e.mu.RLock()
	fn := e.fn
	e.mu.RUnlock()

	if fn == nil {
		return Response{Output: req.Input, Cost: 0}, nil
	}
	resp, err := e.call(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if resp.Output == "" {
		resp.Output = req.Input
	}
	return resp, nil
}
