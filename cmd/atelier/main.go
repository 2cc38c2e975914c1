package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/errgroup"

	"github.com/openatelier/atelier/internal/capability"
	"github.com/openatelier/atelier/internal/collab"
	"github.com/openatelier/atelier/internal/config"
	"github.com/openatelier/atelier/internal/engine"
	"github.com/openatelier/atelier/internal/events"
	"github.com/openatelier/atelier/internal/invoker"
	"github.com/openatelier/atelier/internal/iteration"
	"github.com/openatelier/atelier/internal/persistence"
	"github.com/openatelier/atelier/internal/planner"
	"github.com/openatelier/atelier/internal/tui"
)

func main() {
	// Signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	bus := events.NewBus()
	defer bus.Close()

	registry := capability.NewRegistry(bus)
	if err := registerBuiltins(registry); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering capabilities: %v\n", err)
		os.Exit(1)
	}

	inv := invoker.New(registry, bus, invokerConfigFrom(cfg))
	plnr := planner.New(plannerConfigFrom(cfg))
	eng := engine.New(inv, bus)
	collaborator := collab.NewResilient(buildPrimaryCollaborator(cfg))

	var store *persistence.Store
	var sink iteration.Sink
	if cfg.HistoryDB != "" {
		store, err = persistence.NewStore(ctx, cfg.HistoryDB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening history store: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		sink = store
	}
	iter := iteration.New(collaborator, sink)

	model := tui.New(bus)
	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	// Drive the sample requests concurrently so the TUI has live contexts.
	requests := sampleRequests(os.Args[1:])
	g, gctx := errgroup.WithContext(ctx)
	for _, raw := range requests {
		g.Go(func() error {
			return runRequest(gctx, raw, collaborator, plnr, registry, eng, iter, store)
		})
	}
	go func() {
		if err := g.Wait(); err != nil && gctx.Err() == nil {
			log.Printf("request pipeline error: %v", err)
		}
	}()

	select {
	case err := <-errChan:
		// Normal TUI exit (user pressed 'q' or TUI finished)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		// Signal received; restore default signal handling so a second
		// Ctrl+C force-exits.
		stop()
		log.Println("Shutdown signal received, cleaning up...")

		for _, snap := range eng.List() {
			if !snap.Status.Terminal() {
				if err := eng.Cancel(snap.ID); err != nil {
					log.Printf("Error cancelling context %s: %v", snap.ID, err)
				}
			}
		}

		p.Quit()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		select {
		case err := <-errChan:
			if err != nil {
				log.Printf("TUI exit error: %v", err)
			}
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing exit")
		}
	}

	log.Println("Shutdown complete")
}

// runRequest walks one creative request through the full pipeline:
// enrichment, planning, execution, quality recording, and (when configured)
// history recording.
func runRequest(ctx context.Context, raw string, collaborator collab.Collaborator, plnr *planner.Planner, registry *capability.Registry, eng *engine.Engine, iter *iteration.Iterator, store *persistence.Store) error {
	enrichment, err := collaborator.Enrich(ctx, raw, collab.UserContext{})
	if err != nil {
		return fmt.Errorf("enriching %q: %w", raw, err)
	}

	intent := planner.EnrichedIntent{
		ID:                   strings.ReplaceAll(strings.ToLower(raw), " ", "-"),
		RawRequest:           raw,
		ContentType:          planner.ContentText,
		StylePreferences:     []string{"concise"},
		Complexity:           planner.ComplexityComplex,
		Urgency:              planner.UrgencyNormal,
		RefinedGoal:          enrichment.RefinedGoal,
		ContextualBackground: enrichment.ContextualBackground,
		TargetAudience:       enrichment.TargetAudience,
		SuccessCriteria:      enrichment.SuccessCriteria,
	}

	caps := registry.List()
	plan, err := plnr.CreatePlan(intent, caps)
	if err != nil {
		return fmt.Errorf("planning %q: %w", raw, err)
	}
	plnr.Optimize(plan, intent, caps)
	if !plnr.Validate(plan, caps) {
		return fmt.Errorf("plan for %q failed validation", raw)
	}

	contextID, err := eng.ExecutePlan(ctx, plan)
	if err != nil {
		return fmt.Errorf("executing %q: %w", raw, err)
	}

	watch, err := eng.Monitor(contextID)
	if err != nil {
		return fmt.Errorf("monitoring %s: %w", contextID, err)
	}

	var last engine.Snapshot
	for snap := range watch {
		last = snap
	}

	for _, result := range last.Results {
		iter.RecordQuality(context.Background(), result.TaskID, iteration.QualityMetric{
			Score:      result.Metadata.QualityScore,
			Confidence: result.Metadata.Confidence,
			Source:     "invocation",
		})
	}

	if store != nil && last.Status.Terminal() {
		counts := last.Counts()
		summary := persistence.RunSummary{
			ContextID: last.ID,
			PlanID:    last.PlanID,
			Status:    string(last.Status),
			Progress:  last.Progress,
			Total:     counts.Total,
			Completed: counts.Completed,
			Failed:    counts.Failed,
			StartedAt: last.StartTime,
			EndedAt:   last.EndTime,
		}
		if err := store.SaveRunSummary(context.Background(), summary); err != nil {
			log.Printf("saving run summary for %s: %v", last.ID, err)
		}
	}
	return nil
}

// buildPrimaryCollaborator constructs the configured language collaborator,
// or nil when none is configured (rule-based fallbacks only).
func buildPrimaryCollaborator(cfg *config.Config) collab.Collaborator {
	switch cfg.Collaborator.Provider {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithModel(cfg.Collaborator.Model),
		}
		if cfg.Collaborator.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Collaborator.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			log.Printf("collaborator unavailable, using fallbacks: %v", err)
			return nil
		}
		return collab.NewLLM(llm)
	case "":
		return nil
	default:
		log.Printf("unknown collaborator provider %q, using fallbacks", cfg.Collaborator.Provider)
		return nil
	}
}

func plannerConfigFrom(cfg *config.Config) planner.Config {
	return planner.Config{
		QualityWeight: cfg.Planner.QualityWeight,
		CostWeight:    cfg.Planner.CostWeight,
		LatencyWeight: cfg.Planner.LatencyWeight,
		CostNorm:      cfg.Planner.CostNorm,
		LatencyNorm:   time.Duration(cfg.Planner.LatencyNormMS) * time.Millisecond,
		CostCeiling:   cfg.Planner.CostCeiling,
	}
}

func invokerConfigFrom(cfg *config.Config) invoker.Config {
	retry := invoker.DefaultRetryConfig()
	if cfg.Invoker.RetryInitialMS > 0 {
		retry.InitialInterval = time.Duration(cfg.Invoker.RetryInitialMS) * time.Millisecond
	}
	if cfg.Invoker.RetryMaxIntervalMS > 0 {
		retry.MaxInterval = time.Duration(cfg.Invoker.RetryMaxIntervalMS) * time.Millisecond
	}
	if cfg.Invoker.RetryMaxElapsedMS > 0 {
		retry.MaxElapsedTime = time.Duration(cfg.Invoker.RetryMaxElapsedMS) * time.Millisecond
	}
	return invoker.Config{
		Retry:       retry,
		TaskTimeout: time.Duration(cfg.Invoker.TaskTimeoutMS) * time.Millisecond,
	}
}

func sampleRequests(args []string) []string {
	if len(args) > 0 {
		return []string{strings.Join(args, " ")}
	}
	return []string{
		"write a short poem about lighthouses",
		"draft a product blurb for a coffee grinder",
	}
}
