package main

import (
	"strings"
	"testing"

	"ffbatch/internal/batch"
	"ffbatch/internal/plan"
)

func TestRenderInteractiveShowsCurrentOverall(t *testing.T) {
	p := &plan.Plan{
		Targets: []plan.Target{
			{InputPath: "/src/a.mov", OutputPath: "/out/a.mp4", DurationSeconds: 10, Action: plan.ActionCreate},
		},
		CreateCount: 1,
	}

	events := make(chan batch.Event, 8)
	events <- batch.Event{Kind: batch.KindTargetStarted, TargetIndex: 0}
	events <- batch.Event{Kind: batch.KindTargetProgress, TargetIndex: 0, Fraction: 0.5, Speed: 2}
	events <- batch.Event{Kind: batch.KindOverall, Fraction: 0.25}
	close(events)

	var out strings.Builder
	renderInteractive(&out, p, events)

	rendered := out.String()
	if !strings.Contains(rendered, "a.mov") {
		t.Fatalf("bar label should name the input:\n%q", rendered)
	}
	if !strings.Contains(rendered, "25%") {
		t.Fatalf("bar label should carry the overall figure delivered with the tick:\n%q", rendered)
	}
}

func TestRenderInteractiveReportsFailure(t *testing.T) {
	p := &plan.Plan{
		Targets: []plan.Target{
			{InputPath: "/src/a.mov", OutputPath: "/out/a.mp4", DurationSeconds: 10, Action: plan.ActionCreate},
		},
		CreateCount: 1,
	}

	events := make(chan batch.Event, 8)
	events <- batch.Event{Kind: batch.KindTargetStarted, TargetIndex: 0}
	events <- batch.Event{Kind: batch.KindTargetFailed, TargetIndex: 0, Message: "unknown encoder"}
	events <- batch.Event{Kind: batch.KindOverall, Fraction: 1}
	close(events)

	var out strings.Builder
	renderInteractive(&out, p, events)

	rendered := out.String()
	if !strings.Contains(rendered, "failed: a.mov: unknown encoder") {
		t.Fatalf("failure line missing:\n%q", rendered)
	}
}
