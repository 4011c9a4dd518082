package flume

import (
	"errors"
	"testing"
)

func TestStageConfig_DefaultFilter(t *testing.T) {
	if newStageConfig(SuccessWith("d")).skip() {
		t.Error("Expected default filter to proceed on success")
	}
	if newStageConfig(Loading[string]()).skip() {
		t.Error("Expected default filter to proceed on loading")
	}
	if !newStageConfig(Failure[string](errors.New("x"))).skip() {
		t.Error("Expected default filter to skip on failure")
	}
}

func TestStageConfig_DefaultRecovery(t *testing.T) {
	cause := errors.New("boom")

	cfg := newStageConfig(SuccessWith("cached"))
	recovered := cfg.recovery(cause, cfg.upstream)
	if !recovered.IsFailure() || recovered.Cause() != cause {
		t.Errorf("Expected failure wrapping the cause, got %+v", recovered)
	}
	if data, ok := recovered.Data(); !ok || data != "cached" {
		t.Errorf("Expected upstream data carried, got %q (present=%t)", data, ok)
	}

	bare := newStageConfig(Loading[string]())
	recovered = bare.recovery(cause, bare.upstream)
	if recovered.HasData() {
		t.Error("Expected no data when upstream had none")
	}
}

func TestStageConfig_UpstreamBinding(t *testing.T) {
	upstream := SuccessWith(42)
	cfg := newStageConfig(upstream)

	if got := cfg.Upstream(); !got.IsSuccess() || got.MustData() != 42 {
		t.Errorf("Expected bound upstream, got %+v", got)
	}
}

func TestStageConfig_NilSettersKeepDefaults(t *testing.T) {
	cfg := newStageConfig(SuccessWith(1))
	cfg.Filter(nil)
	cfg.Recover(nil)
	cfg.Ignore(nil)

	if cfg.filter == nil || cfg.recovery == nil {
		t.Error("Expected nil setters to keep the defaults")
	}
	if cfg.ignored() {
		t.Error("Expected no suppression by default")
	}
}

func TestStageConfig_FirstRateWins(t *testing.T) {
	first := Once()
	second := Times(5)

	cfg := newStageConfig(SuccessWith(1))
	cfg.LimitWith(first)
	cfg.LimitWith(second)

	if cfg.rate != first {
		t.Error("Expected the first attached rate to win")
	}
}

func TestStageConfig_IgnorePredicateSeesUpstream(t *testing.T) {
	cfg := newStageConfig(SuccessWith("noisy"))
	cfg.Ignore(func(r Result[string]) bool {
		return r.MustData() == "noisy"
	})

	if !cfg.ignored() {
		t.Error("Expected suppression when the predicate matches the upstream")
	}
}
