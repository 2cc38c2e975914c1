package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/openatelier/atelier/internal/iteration"
)

func intp(v int) *int { return &v }

// The shared-cache memory database is one instance per process, so tests use
// distinct ids instead of asserting on table-wide counts.

func TestSaveAndListFeedback(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	fb := iteration.Feedback{
		ContentID: "fb-content-1",
		UserID:    "u1",
		Rating:    intp(4),
		Aspects:   &iteration.AspectRatings{Clarity: intp(5)},
		Comment:   "crisp and clear",
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveFeedback(ctx, fb); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Feedback without a rating exercises the NULL path.
	if err := store.SaveFeedback(ctx, iteration.Feedback{
		ContentID: "fb-content-1",
		UserID:    "u2",
		Comment:   "no score from me",
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("save unrated: %v", err)
	}

	got, err := store.ListFeedback(ctx, "fb-content-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d feedback rows, want 2", len(got))
	}

	first := got[0]
	if first.Rating == nil || *first.Rating != 4 {
		t.Errorf("rating = %v", first.Rating)
	}
	if first.Aspects == nil || first.Aspects.Clarity == nil || *first.Aspects.Clarity != 5 {
		t.Errorf("aspects = %+v", first.Aspects)
	}
	if first.Aspects.Relevance != nil {
		t.Error("unset aspect must stay nil")
	}

	second := got[1]
	if second.Rating != nil {
		t.Errorf("unrated feedback came back with rating %d", *second.Rating)
	}
	if second.Aspects != nil {
		t.Errorf("unrated feedback came back with aspects %+v", second.Aspects)
	}

	empty, err := store.ListFeedback(ctx, "fb-content-none")
	if err != nil {
		t.Fatalf("list empty: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no rows, got %d", len(empty))
	}
}

func TestQualitySeries(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	metrics := []iteration.QualityMetric{
		{Score: 0.6, Confidence: 0.9, Source: "invocation", RecordedAt: time.Now().UTC()},
		{Score: 0.8, Confidence: 0.7, Source: "feedback", RecordedAt: time.Now().UTC()},
	}
	for _, m := range metrics {
		if err := store.AppendQuality(ctx, "q-content-1", m); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	series, err := store.QualityHistory(ctx, "q-content-1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("got %d metrics, want 2", len(series))
	}
	if series[0].Score != 0.6 || series[1].Score != 0.8 {
		t.Errorf("order wrong: %+v", series)
	}
	if series[1].Source != "feedback" {
		t.Errorf("source = %s", series[1].Source)
	}
}

func TestRunSummaryUpsert(t *testing.T) {
	ctx := context.Background()
	store, err := NewMemoryStore(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	started := time.Now().UTC().Add(-time.Minute)
	summary := RunSummary{
		ContextID: "ctx-upsert-1",
		PlanID:    "plan-1",
		Status:    "running",
		Progress:  50,
		Total:     2,
		Completed: 1,
		StartedAt: started,
	}
	if err := store.SaveRunSummary(ctx, summary); err != nil {
		t.Fatalf("save: %v", err)
	}

	// Second save for the same context updates in place.
	summary.Status = "completed"
	summary.Progress = 100
	summary.Completed = 2
	summary.EndedAt = time.Now().UTC()
	if err := store.SaveRunSummary(ctx, summary); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	all, err := store.ListRunSummaries(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	var found *RunSummary
	matches := 0
	for i := range all {
		if all[i].ContextID == "ctx-upsert-1" {
			found = &all[i]
			matches++
		}
	}
	if matches != 1 {
		t.Fatalf("expected exactly one row for the context, got %d", matches)
	}
	if found.Status != "completed" || found.Progress != 100 || found.Completed != 2 {
		t.Errorf("row not updated: %+v", found)
	}
	if found.EndedAt.IsZero() {
		t.Error("ended-at not stored")
	}
}
