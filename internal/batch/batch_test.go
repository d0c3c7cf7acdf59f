package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ffbatch/internal/ffmpeg"
	"ffbatch/internal/plan"
	"ffbatch/internal/preset"
)

// fakeClient scripts per-input behaviour: a positive duration yields two
// progress ticks and success; an entry in fail yields an error.
type fakeClient struct {
	mu        sync.Mutex
	calls     []ffmpeg.Request
	durations map[string]time.Duration
	fail      map[string]error
	inFlight  int
	maxFlight int
}

func (f *fakeClient) Convert(ctx context.Context, req ffmpeg.Request, progress func(ffmpeg.ProgressUpdate)) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.inFlight++
	if f.inFlight > f.maxFlight {
		f.maxFlight = f.inFlight
	}
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if err, ok := f.fail[req.Input]; ok {
		return err
	}
	total := f.durations[req.Input]
	if progress != nil {
		progress(ffmpeg.ProgressUpdate{OutTime: total / 2, FPS: 30, Speed: 2, BytesWritten: 100})
		progress(ffmpeg.ProgressUpdate{OutTime: total, Done: true, BytesWritten: 200})
	}
	return nil
}

func testPlan(outDir string) *plan.Plan {
	return &plan.Plan{
		Targets: []plan.Target{
			{InputPath: "/src/a.mov", OutputPath: filepath.Join(outDir, "a.mp4"), DurationSeconds: 10, Action: plan.ActionCreate},
			{InputPath: "/src/skipped.mov", OutputPath: filepath.Join(outDir, "skipped.mp4"), DurationSeconds: 99, Action: plan.ActionSkip},
			{InputPath: "/src/b.mov", OutputPath: filepath.Join(outDir, "sub", "b.mp4"), DurationSeconds: 30, Action: plan.ActionOverwrite},
		},
		CreateCount:    1,
		OverwriteCount: 1,
		SkipCount:      1,
	}
}

func run(t *testing.T, client *fakeClient, p *plan.Plan) (Result, []Event) {
	t.Helper()
	events := make(chan Event, 256)
	var collected []Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			collected = append(collected, ev)
		}
	}()
	result, err := New(client, nil).Run(context.Background(), p, preset.Preset{Name: "p", OutputExtension: ".mp4"}, events)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	<-done
	return result, collected
}

func TestRunSkipsSkipTargetsAndOrdersEvents(t *testing.T) {
	outDir := t.TempDir()
	client := &fakeClient{durations: map[string]time.Duration{
		"/src/a.mov": 10 * time.Second,
		"/src/b.mov": 30 * time.Second,
	}}
	result, events := run(t, client, testPlan(outDir))

	if result.Attempted != 2 || result.Completed != 2 || result.Failed != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected 2 conversions, got %d", len(client.calls))
	}
	if client.calls[0].Input != "/src/a.mov" || client.calls[1].Input != "/src/b.mov" {
		t.Fatalf("conversion order wrong: %+v", client.calls)
	}
	if !client.calls[1].Overwrite || client.calls[0].Overwrite {
		t.Fatalf("overwrite flag mismatch: %+v", client.calls)
	}

	// Events for target 0 must all precede events for target 2.
	lastOfFirst, firstOfSecond := -1, -1
	for i, ev := range events {
		if ev.Kind == KindOverall {
			continue
		}
		if ev.TargetIndex == 0 {
			lastOfFirst = i
		}
		if ev.TargetIndex == 2 && firstOfSecond == -1 {
			firstOfSecond = i
		}
	}
	if lastOfFirst == -1 || firstOfSecond == -1 || lastOfFirst > firstOfSecond {
		t.Fatalf("event ordering violated: last(0)=%d first(2)=%d", lastOfFirst, firstOfSecond)
	}
}

func TestOverallProgressMonotonicReachesOne(t *testing.T) {
	outDir := t.TempDir()
	client := &fakeClient{durations: map[string]time.Duration{
		"/src/a.mov": 10 * time.Second,
		"/src/b.mov": 30 * time.Second,
	}}
	_, events := run(t, client, testPlan(outDir))

	last := -1.0
	final := -1.0
	for _, ev := range events {
		if ev.Kind != KindOverall {
			continue
		}
		if ev.Fraction < last {
			t.Fatalf("overall fraction decreased: %v -> %v", last, ev.Fraction)
		}
		last = ev.Fraction
		final = ev.Fraction
	}
	if final != 1.0 {
		t.Fatalf("final overall fraction = %v, want 1.0", final)
	}
}

func TestFailureDoesNotStopBatch(t *testing.T) {
	outDir := t.TempDir()
	client := &fakeClient{
		durations: map[string]time.Duration{"/src/b.mov": 30 * time.Second},
		fail:      map[string]error{"/src/a.mov": errors.New("unknown encoder")},
	}
	result, events := run(t, client, testPlan(outDir))

	if result.Failed != 1 || result.Completed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.AllFailed() {
		t.Fatal("partial failure must not report all-failed")
	}
	sawFailed := false
	for _, ev := range events {
		if ev.Kind == KindTargetFailed && ev.TargetIndex == 0 {
			sawFailed = true
			if ev.Message == "" {
				t.Fatal("failed event should carry the tool message")
			}
		}
	}
	if !sawFailed {
		t.Fatal("expected a target-failed event")
	}
	if len(client.calls) != 2 {
		t.Fatalf("later targets must still be attempted, got %d calls", len(client.calls))
	}
}

func TestAllFailedResult(t *testing.T) {
	outDir := t.TempDir()
	client := &fakeClient{fail: map[string]error{
		"/src/a.mov": errors.New("boom"),
		"/src/b.mov": errors.New("boom"),
	}}
	result, _ := run(t, client, testPlan(outDir))
	if !result.AllFailed() {
		t.Fatalf("expected all-failed, got %+v", result)
	}
}

func TestRunCreatesOutputDirectories(t *testing.T) {
	outDir := t.TempDir()
	client := &fakeClient{durations: map[string]time.Duration{
		"/src/a.mov": 10 * time.Second,
		"/src/b.mov": 30 * time.Second,
	}}
	run(t, client, testPlan(outDir))

	if _, err := os.Stat(filepath.Join(outDir, "sub")); err != nil {
		t.Fatalf("expected nested output directory: %v", err)
	}
}

func TestRunSingleConversionInFlight(t *testing.T) {
	outDir := t.TempDir()
	client := &fakeClient{durations: map[string]time.Duration{
		"/src/a.mov": 10 * time.Second,
		"/src/b.mov": 30 * time.Second,
	}}
	run(t, client, testPlan(outDir))
	if client.maxFlight != 1 {
		t.Fatalf("expected at most one in-flight conversion, saw %d", client.maxFlight)
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	outDir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeClient{durations: map[string]time.Duration{"/src/a.mov": time.Second}}
	events := make(chan Event, 16)
	_, err := New(client, nil).Run(ctx, testPlan(outDir), preset.Preset{}, events)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
	if len(client.calls) != 0 {
		t.Fatalf("no conversion should start after cancellation, got %d", len(client.calls))
	}
}

type captureRecorder struct {
	mu      sync.Mutex
	records []string
}

func (c *captureRecorder) RecordTarget(_ context.Context, index int, target plan.Target, outcome, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, target.InputPath+":"+outcome)
}

func TestRecorderObservesOutcomes(t *testing.T) {
	outDir := t.TempDir()
	client := &fakeClient{
		durations: map[string]time.Duration{"/src/b.mov": 30 * time.Second},
		fail:      map[string]error{"/src/a.mov": errors.New("boom")},
	}
	rec := &captureRecorder{}
	events := make(chan Event, 256)
	go func() {
		for range events {
		}
	}()
	if _, err := New(client, nil, WithRecorder(rec)).Run(context.Background(), testPlan(outDir), preset.Preset{}, events); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"/src/a.mov:failed", "/src/b.mov:completed"}
	if len(rec.records) != len(want) {
		t.Fatalf("records = %v, want %v", rec.records, want)
	}
	for i := range want {
		if rec.records[i] != want[i] {
			t.Fatalf("records = %v, want %v", rec.records, want)
		}
	}
}
