package flume

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func collect[T any](ch <-chan Result[T]) []Result[T] {
	var out []Result[T]
	for r := range ch {
		out = append(out, r)
	}
	return out
}

func TestBuilder_EmptyExecuteEmitsNothing(t *testing.T) {
	builder := Prepare[string]()
	if !builder.Empty() {
		t.Error("Expected a fresh builder to be empty")
	}

	results := collect(builder.Execute(context.Background()))
	if len(results) != 0 {
		t.Errorf("Expected no items at all from an empty builder, got %d", len(results))
	}
}

func TestBuilder_LoadingAlwaysFirst(t *testing.T) {
	builder := Prepare[string]().
		Load(func(_ context.Context, _ Result[string]) (string, error) {
			return "d", nil
		})
	if builder.Empty() {
		t.Error("Expected builder with a stage not to be empty")
	}

	results := collect(builder.Execute(context.Background()))
	if len(results) != 2 {
		t.Fatalf("Expected [Loading, Success], got %d items", len(results))
	}
	if !results[0].IsLoading() {
		t.Error("Expected the first emission to be loading")
	}
	if !results[1].IsSuccess() || results[1].MustData() != "d" {
		t.Errorf("Expected Success('d'), got %+v", results[1])
	}
}

func TestBuilder_FailureSkipsRemainingStages(t *testing.T) {
	causeB := errors.New("stage B failed")
	cInvoked := false

	results := collect(Prepare[string]().
		Load(func(_ context.Context, _ Result[string]) (string, error) {
			return "a-data", nil
		}).
		Load(func(_ context.Context, _ Result[string]) (string, error) {
			return "", causeB
		}).
		Load(func(_ context.Context, _ Result[string]) (string, error) {
			cInvoked = true
			return "c-data", nil
		}).
		Execute(context.Background()))

	if cInvoked {
		t.Error("Expected stage C never invoked after B failed")
	}
	if len(results) != 2 {
		t.Fatalf("Expected [Loading, Failure], got %d items", len(results))
	}
	if !results[0].IsLoading() {
		t.Error("Expected loading first")
	}
	final := results[1]
	if !final.IsFailure() || !errors.Is(final.Cause(), causeB) {
		t.Errorf("Expected failure caused by B, got %+v", final)
	}
	if data, ok := final.Data(); !ok || data != "a-data" {
		t.Errorf("Expected A's data carried into the failure, got %q (present=%t)", data, ok)
	}
}

func TestBuilder_StartWithUpstreamSequence(t *testing.T) {
	results := collect(Prepare[string]().
		Load(func(_ context.Context, _ Result[string]) (string, error) {
			return "d1", nil
		}).
		Load(func(_ context.Context, _ Result[string]) (string, error) {
			return "d2", nil
		}, func(c *StageConfig[string]) {
			c.StartWithUpstream()
		}).
		Execute(context.Background()))

	if len(results) != 3 {
		t.Fatalf("Expected [Loading, Loading(d1), Success(d2)], got %d items", len(results))
	}
	if !results[0].IsLoading() || results[0].HasData() {
		t.Errorf("Expected bare loading first, got %+v", results[0])
	}
	if !results[1].IsLoading() || results[1].MustData() != "d1" {
		t.Errorf("Expected Loading('d1') second, got %+v", results[1])
	}
	if !results[2].IsSuccess() || results[2].MustData() != "d2" {
		t.Errorf("Expected Success('d2') last, got %+v", results[2])
	}
}

func TestBuilder_SaveCarriesUpstreamPayload(t *testing.T) {
	var saved string

	results := collect(Prepare[string]().
		Load(func(_ context.Context, _ Result[string]) (string, error) {
			return "payload", nil
		}).
		Save(func(_ context.Context, up Result[string]) error {
			saved = up.MustData()
			return nil
		}).
		Execute(context.Background()))

	if saved != "payload" {
		t.Errorf("Expected save block to observe the payload, got %q", saved)
	}
	final := results[len(results)-1]
	if !final.IsSuccess() || final.MustData() != "payload" {
		t.Errorf("Expected save to report success with the upstream payload, got %+v", final)
	}
}

func TestBuilder_FallbackStageHandlesFailure(t *testing.T) {
	results := collect(Prepare[string]().
		Load(func(_ context.Context, _ Result[string]) (string, error) {
			return "", errors.New("network down")
		}).
		Load(func(_ context.Context, _ Result[string]) (string, error) {
			return "from-disk", nil
		}, func(c *StageConfig[string]) {
			// Opt in to run even when upstream is failing.
			c.Filter(func(Result[string]) bool { return true })
		}).
		Execute(context.Background()))

	final := results[len(results)-1]
	if !final.IsSuccess() || final.MustData() != "from-disk" {
		t.Errorf("Expected fallback success, got %+v", final)
	}
}

func TestBuilder_LoadMaybeEmpty(t *testing.T) {
	results := collect(Prepare[string]().
		LoadMaybe(func(_ context.Context, _ Result[string]) (*string, error) {
			return nil, nil
		}).
		Execute(context.Background()))

	if len(results) != 2 {
		t.Fatalf("Expected [Loading, Success], got %d items", len(results))
	}
	if !results[1].IsSuccess() || results[1].HasData() {
		t.Errorf("Expected payload-less success for an empty load, got %+v", results[1])
	}
}

func TestBuilder_LoadManyEmitsEachResult(t *testing.T) {
	results := collect(Prepare[int]().
		LoadMany(func(_ context.Context, _ Result[int]) (Emitter[int], error) {
			return EmitterOf(LoadingWith(1), SuccessWith(2)), nil
		}).
		Execute(context.Background()))

	if len(results) != 3 {
		t.Fatalf("Expected [Loading, Loading(1), Success(2)], got %d items", len(results))
	}
	if !results[1].IsLoading() || results[1].MustData() != 1 {
		t.Errorf("Unexpected second item %+v", results[1])
	}
	if !results[2].IsSuccess() || results[2].MustData() != 2 {
		t.Errorf("Unexpected final item %+v", results[2])
	}
}

func TestBuilder_RateOncePersistsAcrossExecutions(t *testing.T) {
	var invocations int32
	rate := Once().WithKey("fixed")

	builder := Prepare[string]().
		Load(func(_ context.Context, _ Result[string]) (string, error) {
			atomic.AddInt32(&invocations, 1)
			return "fetched", nil
		}, func(c *StageConfig[string]) {
			c.LimitWith(rate)
		})

	first := collect(builder.Execute(context.Background()))
	second := collect(builder.Execute(context.Background()))

	if got := atomic.LoadInt32(&invocations); got != 1 {
		t.Errorf("Expected the body to run once across executions, ran %d times", got)
	}
	if final := first[len(first)-1]; !final.IsSuccess() || final.MustData() != "fetched" {
		t.Errorf("Expected first execution to load, got %+v", final)
	}
	// Second execution: the seed loading item passes through unmodified.
	if final := second[len(second)-1]; !final.IsLoading() {
		t.Errorf("Expected second execution to pass the seed through, got %+v", final)
	}
}

type countingScheduler struct {
	scheduled int32
}

func (s *countingScheduler) Schedule(fn func()) {
	atomic.AddInt32(&s.scheduled, 1)
	go fn()
}

func TestBuilder_SchedulerOptions(t *testing.T) {
	execute := &countingScheduler{}
	delivery := &countingScheduler{}

	results := collect(Prepare[string](
		WithExecuteScheduler(execute),
		WithDeliveryScheduler(delivery),
	).
		Load(func(_ context.Context, _ Result[string]) (string, error) {
			return "d", nil
		}).
		Execute(context.Background()))

	if len(results) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(results))
	}
	// Seed pump plus one stage pump.
	if got := atomic.LoadInt32(&execute.scheduled); got != 2 {
		t.Errorf("Expected 2 executions scheduled, got %d", got)
	}
	if got := atomic.LoadInt32(&delivery.scheduled); got != 1 {
		t.Errorf("Expected 1 delivery scheduled, got %d", got)
	}
}

func TestBuilder_GlobalSchedulerDefaults(t *testing.T) {
	global := &countingScheduler{}
	SetGlobalExecuteScheduler(global)
	defer SetGlobalExecuteScheduler(nil)

	collect(Prepare[int]().
		Load(func(_ context.Context, _ Result[int]) (int, error) {
			return 1, nil
		}).
		Execute(context.Background()))

	if atomic.LoadInt32(&global.scheduled) == 0 {
		t.Error("Expected the global execute scheduler to be used")
	}

	// Per-builder option wins over the global default.
	own := &countingScheduler{}
	before := atomic.LoadInt32(&global.scheduled)
	collect(Prepare[int](WithExecuteScheduler(own)).
		Load(func(_ context.Context, _ Result[int]) (int, error) {
			return 1, nil
		}).
		Execute(context.Background()))

	if atomic.LoadInt32(&own.scheduled) == 0 {
		t.Error("Expected the per-builder scheduler to be used")
	}
	if atomic.LoadInt32(&global.scheduled) != before {
		t.Error("Expected the global scheduler untouched when a per-builder one is set")
	}
}

func TestBuilder_CancelStopsExecution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	out := Prepare[string]().
		Load(func(ctx context.Context, _ Result[string]) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		}).
		Execute(ctx)

	// Drain the prepended loading item, then cancel mid-stage.
	select {
	case <-out:
	case <-time.After(time.Second):
		t.Fatal("Expected the loading item promptly")
	}
	cancel()

	deadline := time.After(time.Second)
	for {
		select {
		case _, open := <-out:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("Stream did not close after cancellation")
		}
	}
}
