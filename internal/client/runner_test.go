package client

import (
	"context"
	"errors"
	"testing"

	"quiz-attempt-service/internal/domain"
)

func TestRunnerAutoSubmitsOnceAtZero(t *testing.T) {
	api := &fakeAPI{}
	r := NewRunner(api, "a1", 0)
	r.timeRemaining = 3
	r.warnf = func(string, ...any) {}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if !r.Tick(ctx) {
			t.Fatalf("tick %d: attempt ended early", i)
		}
	}
	if r.TimeRemaining() != 1 {
		t.Fatalf("expected 1 second left, got %d", r.TimeRemaining())
	}

	if r.Tick(ctx) {
		t.Fatalf("expected final tick to end the attempt")
	}
	if !r.Submitted() {
		t.Fatalf("expected auto-submit at zero")
	}
	if api.submits != 1 || !api.lastAuto {
		t.Fatalf("expected exactly one auto submit, got submits=%d auto=%v", api.submits, api.lastAuto)
	}

	// Further ticks are no-ops.
	for i := 0; i < 5; i++ {
		if r.Tick(ctx) {
			t.Fatalf("tick after submit must report stopped")
		}
	}
	if api.submits != 1 {
		t.Fatalf("extra ticks resubmitted: %d", api.submits)
	}
}

func TestRunnerFailedSaveKeepsLocalSelection(t *testing.T) {
	api := &fakeAPI{saveErr: errors.New("network down")}
	r := NewRunner(api, "a1", 10)
	var warnings int
	r.warnf = func(string, ...any) { warnings++ }

	r.SelectOption(context.Background(), "q1", "o2")

	if r.Answers()["q1"] != "o2" {
		t.Fatalf("local cache must keep the selection after a failed save")
	}
	if warnings != 1 {
		t.Fatalf("expected one warning, got %d", warnings)
	}

	// Re-selecting retries the save.
	api.saveErr = nil
	r.SelectOption(context.Background(), "q1", "o2")
	if api.saves != 2 {
		t.Fatalf("expected retry to hit the API, saves=%d", api.saves)
	}
}

func TestRunnerManualSubmitStopsCountdown(t *testing.T) {
	api := &fakeAPI{result: domain.Result{ID: "r1", MarksObtained: 4}}
	r := NewRunner(api, "a1", 10)
	r.warnf = func(string, ...any) {}

	result, err := r.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.ID != "r1" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if api.lastAuto {
		t.Fatalf("manual submit must not be flagged auto")
	}

	remaining := r.TimeRemaining()
	if r.Tick(context.Background()) {
		t.Fatalf("tick after submit must report stopped")
	}
	if r.TimeRemaining() != remaining {
		t.Fatalf("countdown moved after submit")
	}
	if api.submits != 1 {
		t.Fatalf("expected one submit, got %d", api.submits)
	}

	// A repeat submit returns the cached result without another call.
	again, err := r.Submit(context.Background())
	if err != nil || again.ID != "r1" || api.submits != 1 {
		t.Fatalf("repeat submit: result=%+v err=%v submits=%d", again, err, api.submits)
	}
}

func TestRunnerIgnoresSelectionAfterSubmit(t *testing.T) {
	api := &fakeAPI{}
	r := NewRunner(api, "a1", 10)
	r.warnf = func(string, ...any) {}

	if _, err := r.Submit(context.Background()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	r.SelectOption(context.Background(), "q1", "o1")
	if api.saves != 0 {
		t.Fatalf("selection after submit must not reach the API")
	}
	if len(r.Answers()) != 0 {
		t.Fatalf("selection after submit must not be cached")
	}
}

type fakeAPI struct {
	saves    int
	saveErr  error
	submits  int
	lastAuto bool
	result   domain.Result
}

func (f *fakeAPI) SaveAnswer(_ context.Context, _, _, _ string) error {
	f.saves++
	return f.saveErr
}

func (f *fakeAPI) Submit(_ context.Context, _ string, auto bool) (domain.Result, error) {
	f.submits++
	f.lastAuto = auto
	return f.result, nil
}
