package engine

import (
	"context"
	"time"

	"github.com/black-cross/playbook-engine/pkg/actions"
	"github.com/black-cross/playbook-engine/pkg/schema"
)

// DefaultRetryDelay is the inter-attempt delay when the retry policy does
// not set one.
const DefaultRetryDelay = 5 * time.Second

// attemptOutcome is the retry controller's report for one action: the last
// attempt's result plus how many retries beyond the first attempt were
// consumed.
type attemptOutcome struct {
	Success    bool
	Output     map[string]any
	Error      string
	Duration   time.Duration
	RetryCount int
}

// runWithRetry runs one action through a bounded sequential retry loop.
// Attempts never overlap; between a failed attempt and the next the loop
// suspends for the policy delay, and there is no suspension after the final
// attempt. Error-policy interpretation is the caller's job, not this loop's.
func (e *Engine) runWithRetry(ctx context.Context, action schema.Action, execCtx map[string]any, ctrl *control) attemptOutcome {
	maxAttempts := 1
	delay := DefaultRetryDelay
	if action.Retry != nil && action.Retry.Enabled {
		maxAttempts = action.Retry.MaxAttempts
		if action.Retry.Delay > 0 {
			delay = time.Duration(action.Retry.Delay) * time.Second
		}
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	start := time.Now()
	outcome := attemptOutcome{}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := e.sleep(ctx, delay); err != nil {
				break // cancelled while waiting; report the last attempt
			}
			// Cancellation stops the loop from issuing a further attempt.
			if ctrl != nil && ctrl.isCancelled() {
				break
			}
		}

		outcome.RetryCount = attempt
		result := e.executeAttempt(ctx, action, execCtx)
		outcome.Success = result.Success
		outcome.Output = result.Output
		outcome.Error = result.Error
		if result.Success {
			break
		}
	}

	outcome.Duration = time.Since(start)
	return outcome
}

// executeAttempt dispatches one attempt to the task runner, applying the
// optional per-action timeout.
func (e *Engine) executeAttempt(ctx context.Context, action schema.Action, execCtx map[string]any) *actions.Result {
	attemptCtx := ctx
	if action.Timeout != "" {
		if d, err := time.ParseDuration(action.Timeout); err == nil && d > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
	}

	result, err := e.runner.Execute(attemptCtx, action.Type, action.Parameters, execCtx)
	if err != nil {
		return &actions.Result{Success: false, Error: err.Error()}
	}
	if result == nil {
		return &actions.Result{Success: false, Error: "runner returned no result"}
	}
	return result
}

// sleepContext is the default sleeper: a timer that honors cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
