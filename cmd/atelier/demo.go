package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openatelier/atelier/internal/capability"
)

// registerBuiltins installs local demonstration capabilities so the binary
// does something useful without external providers configured. Real
// providers register the same way with network-backed handlers.
func registerBuiltins(reg *capability.Registry) error {
	writer, err := capability.New(capability.KindModel, capability.Spec{
		ID:   "local-writer",
		Name: "Local Draft Writer",
		Tags: []string{"text_generation", "creative_writing"},
		Metadata: capability.Metadata{
			CostPerUse:     0.002,
			AverageLatency: 300 * time.Millisecond,
			QualityScore:   0.82,
		},
	}, func(ctx context.Context, req capability.Request) (capability.Response, error) {
		select {
		case <-ctx.Done():
			return capability.Response{}, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
		out := fmt.Sprintf("Draft for %q:\n\nOnce there was a request, and it was fulfilled with care.", req.Input)
		return capability.Response{Output: out}, nil
	})
	if err != nil {
		return err
	}

	stylist, err := capability.New(capability.KindTool, capability.Spec{
		ID:   "local-stylist",
		Name: "Local Stylist",
		Tags: []string{"formatting", "style_transfer"},
		Metadata: capability.Metadata{
			CostPerUse:     0.0005,
			AverageLatency: 100 * time.Millisecond,
			QualityScore:   0.75,
		},
	}, func(ctx context.Context, req capability.Request) (capability.Response, error) {
		styled := strings.ToUpper(firstLine(req.Input))
		return capability.Response{Output: "Applied styles: " + styled}, nil
	})
	if err != nil {
		return err
	}

	reviewer, err := capability.New(capability.KindAgent, capability.Spec{
		ID:   "local-reviewer",
		Name: "Local Reviewer",
		Tags: []string{"analysis", "quality_review"},
		Metadata: capability.Metadata{
			CostPerUse:     0.001,
			AverageLatency: 200 * time.Millisecond,
			QualityScore:   0.7,
		},
	}, func(ctx context.Context, req capability.Request) (capability.Response, error) {
		return capability.Response{Output: "Review: meets stated criteria (" + req.Input + ")"}, nil
	})
	if err != nil {
		return err
	}

	// Pass-through effect; exercises the nil-handler default.
	echo, err := capability.New(capability.KindEffect, capability.Spec{
		ID:   "local-echo",
		Name: "Local Echo",
		Tags: []string{"multimodal", "text_generation"},
		Metadata: capability.Metadata{
			CostPerUse:     0,
			AverageLatency: 10 * time.Millisecond,
			QualityScore:   0.4,
		},
	}, nil)
	if err != nil {
		return err
	}

	for _, c := range []capability.Capability{writer, stylist, reviewer, echo} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
