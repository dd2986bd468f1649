// Package client implements the attempt-side countdown and answer cache that
// mirrors server session state. The server re-validates every deadline; the
// runner is UX, not authority.
package client

import (
	"context"
	"log"
	"time"

	"quiz-attempt-service/internal/domain"
)

// API is the slice of the server contract the runner drives.
type API interface {
	SaveAnswer(ctx context.Context, attemptID, questionID, optionID string) error
	Submit(ctx context.Context, attemptID string, auto bool) (domain.Result, error)
}

// Runner is the cooperative attempt loop: a 1-second tick counts down from
// the attempt's time limit and triggers exactly one auto-submit at zero.
// It is not safe for concurrent use; drive it from one goroutine only.
type Runner struct {
	api       API
	attemptID string

	timeRemaining int // seconds
	answers       map[string]string
	submitted     bool
	result        domain.Result

	warnf func(format string, args ...any)
}

func NewRunner(api API, attemptID string, timeLimitMinutes int) *Runner {
	return &Runner{
		api:           api,
		attemptID:     attemptID,
		timeRemaining: timeLimitMinutes * 60,
		answers:       make(map[string]string),
		warnf:         log.Printf,
	}
}

// SelectOption records the choice locally first so the UI stays responsive,
// then persists it. A failed persist is a warning, never a rollback: the
// server's last-known-good answer map is the grading source, and re-selecting
// retries the save.
func (r *Runner) SelectOption(ctx context.Context, questionID, optionID string) {
	if r.submitted {
		r.warnf("attempt %s already submitted; selection ignored", r.attemptID)
		return
	}
	r.answers[questionID] = optionID
	if err := r.api.SaveAnswer(ctx, r.attemptID, questionID, optionID); err != nil {
		r.warnf("answer for %s not saved: %v", questionID, err)
	}
}

// Tick advances the countdown by one second. At zero it invokes the same
// submit path as a manual submit with auto=true and stops the clock; further
// ticks are no-ops. It reports whether the attempt is still running.
func (r *Runner) Tick(ctx context.Context) bool {
	if r.submitted {
		return false
	}
	if r.timeRemaining > 0 {
		r.timeRemaining--
	}
	if r.timeRemaining > 0 {
		return true
	}
	if _, err := r.submit(ctx, true); err != nil {
		r.warnf("auto-submit failed: %v", err)
	}
	return false
}

// Submit closes the attempt manually and stops the countdown.
func (r *Runner) Submit(ctx context.Context) (domain.Result, error) {
	return r.submit(ctx, false)
}

func (r *Runner) submit(ctx context.Context, auto bool) (domain.Result, error) {
	if r.submitted {
		return r.result, nil
	}
	result, err := r.api.Submit(ctx, r.attemptID, auto)
	if err != nil {
		return domain.Result{}, err
	}
	r.submitted = true
	r.result = result
	return result, nil
}

// Run drives the tick loop in real time until the attempt auto-submits or
// the context is cancelled, and returns the final result when there is one.
func (r *Runner) Run(ctx context.Context) (domain.Result, bool, error) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return r.result, r.submitted, ctx.Err()
		case <-ticker.C:
			if !r.Tick(ctx) {
				return r.result, r.submitted, nil
			}
		}
	}
}

// TimeRemaining reports the seconds left on the local countdown.
func (r *Runner) TimeRemaining() int {
	return r.timeRemaining
}

// Submitted reports whether the attempt has been closed.
func (r *Runner) Submitted() bool {
	return r.submitted
}

// Answers returns a copy of the local answer cache.
func (r *Runner) Answers() map[string]string {
	out := make(map[string]string, len(r.answers))
	for q, o := range r.answers {
		out[q] = o
	}
	return out
}
