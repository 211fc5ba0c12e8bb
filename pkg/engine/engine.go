// Package engine implements the playbook execution engine: the execution
// lifecycle, conditional skipping, the retry controller, per-action error
// policy, the approval gate, and pause/resume/cancel control.
package engine

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/black-cross/playbook-engine/pkg/actions"
	"github.com/black-cross/playbook-engine/pkg/condition"
	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/governance"
	"github.com/black-cross/playbook-engine/pkg/schema"
	"github.com/black-cross/playbook-engine/pkg/stats"
	"github.com/black-cross/playbook-engine/pkg/store"
)

// Config configures an Engine.
type Config struct {
	Store  store.Store     // required
	Runner actions.Runner  // nil uses the built-in registry
	Stats  *stats.Recorder // nil disables aggregate counters

	// Pausable enables the pause/resume capability used by the
	// incident-response deployment of this engine.
	Pausable bool

	// TraceDir, if set, receives one JSONL trace file per execution.
	TraceDir string

	// Out receives progress lines; nil discards them.
	Out io.Writer

	// Sleep overrides the inter-retry-attempt suspension (tests inject a
	// recording sleeper). nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ExecuteRequest describes one requested playbook run.
type ExecuteRequest struct {
	Mode        string // live, test, simulation; defaults to live
	TriggeredBy string
	Variables   map[string]any
}

// Engine drives playbook executions. One engine serves many concurrent
// executions; each execution's action loop is strictly sequential.
type Engine struct {
	store    store.Store
	runner   actions.Runner
	stats    *stats.Recorder
	out      io.Writer
	traceDir string
	pausable bool
	sleep    func(ctx context.Context, d time.Duration) error

	mu       sync.Mutex
	controls map[string]*control
}

// New creates an engine from the given config.
func New(cfg Config) *Engine {
	runner := cfg.Runner
	if runner == nil {
		runner = actions.NewRegistry()
	}
	out := cfg.Out
	if out == nil {
		out = io.Discard
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	return &Engine{
		store:    cfg.Store,
		runner:   runner,
		stats:    cfg.Stats,
		out:      out,
		traceDir: cfg.TraceDir,
		pausable: cfg.Pausable,
		sleep:    sleep,
		controls: make(map[string]*control),
	}
}

// Execute validates the playbook, creates an execution record, and runs it.
// If the playbook requires approval and the requested mode is live, the
// execution transitions straight to awaiting_approval and is returned with
// zero actions executed.
func (e *Engine) Execute(ctx context.Context, playbookID string, req ExecuteRequest) (*execution.Execution, error) {
	pb, err := e.store.LoadPlaybook(playbookID)
	if err != nil {
		return nil, err
	}

	if errs := schema.ValidateDomain(pb); schema.HasErrors(errs) {
		return nil, fmt.Errorf("playbook %s failed validation: %v", playbookID, errs[0])
	}
	switch pb.Status {
	case schema.PlaybookDisabled, schema.PlaybookArchived:
		return nil, fmt.Errorf("playbook %s is %s and cannot be executed", playbookID, pb.Status)
	}

	mode := req.Mode
	if mode == "" {
		mode = execution.ModeLive
	}
	switch mode {
	case execution.ModeLive, execution.ModeTest, execution.ModeSimulation:
	default:
		return nil, fmt.Errorf("unknown execution mode %q", mode)
	}

	ex := execution.New(pb, mode, req.TriggeredBy, req.Variables)
	if err := e.store.SaveExecution(ex); err != nil {
		return nil, fmt.Errorf("save execution: %w", err)
	}

	if pb.ApprovalsRequired && mode == execution.ModeLive {
		if err := e.markAwaitingApproval(ex); err != nil {
			return nil, err
		}
		return ex, nil
	}

	if err := ex.Transition(execution.StatusRunning); err != nil {
		return nil, err
	}
	if err := e.store.SaveExecution(ex); err != nil {
		return nil, fmt.Errorf("save execution: %w", err)
	}

	e.run(ctx, pb, ex, req.Variables)
	return ex, nil
}

// run executes the playbook's action loop against the execution record.
// It mutates and persists the record as it goes and never returns an error:
// the execution record, not an error value, is the channel for reporting
// failure.
func (e *Engine) run(ctx context.Context, pb *schema.Playbook, ex *execution.Execution, variables map[string]any) {
	ctrl := e.registerControl(ex.ID)
	defer e.releaseControl(ex.ID)

	// Working context: engine-provided keys, then caller variables, then
	// per-action outputs merged under "actions" as they complete.
	actionOutputs := make(map[string]any)
	execCtx := map[string]any{
		"execution_mode": ex.Mode,
		"playbook_id":    pb.ID,
		"execution_id":   ex.ID,
		"actions":        actionOutputs,
	}
	for k, v := range variables {
		execCtx[k] = v
	}

	// Resolve attached decision points once, for later path analysis.
	for _, d := range pb.Decisions {
		if condition.Evaluate(d.Condition, execCtx) {
			ex.DecisionPaths[d.DecisionPoint] = d.TruePath
		} else {
			ex.DecisionPaths[d.DecisionPoint] = d.FalsePath
		}
	}

	gov := governance.New(pb.Governance)
	var redact []*governance.CompiledRedaction
	if pb.Governance != nil {
		// Patterns were validated with the playbook; a rule that fails to
		// compile here is dropped rather than aborting the run.
		redact, _ = governance.CompileRedactionRules(pb.Governance.Redact)
	}

	var trace *TraceWriter
	if e.traceDir != "" {
		if tw, err := NewTraceWriter(filepath.Join(e.traceDir, ex.ID+".jsonl")); err == nil {
			trace = tw
			defer trace.Close()
		}
	}

	sorted := pb.SortedActions()
	total := len(sorted)

	for i, action := range sorted {
		if stopped := e.checkpoint(ctx, ex, ctrl); stopped {
			return
		}

		// Condition gate: a false condition skips the action entirely —
		// no retry, no error, zero duration.
		if action.Condition != nil && !condition.Evaluate(action.Condition, execCtx) {
			now := time.Now()
			entry := &execution.ActionResult{
				ActionID:   action.ID,
				ActionName: action.Name,
				Status:     execution.ActionSkipped,
				StartedAt:  now,
				EndedAt:    now,
			}
			ex.ActionsExecuted = append(ex.ActionsExecuted, entry)
			ex.SkippedActions++
			e.persist(ex, entry, trace)
			fmt.Fprintf(e.out, "⊘ Action %d/%d: %s [%s] — skipped (condition false)\n", i+1, total, action.Name, action.ID)
			continue
		}

		fmt.Fprintf(e.out, "▶ Action %d/%d: %s [%s]\n", i+1, total, action.Name, action.ID)

		started := time.Now()
		var outcome attemptOutcome
		if err := gov.CheckAction(action.Type); err != nil {
			outcome = attemptOutcome{Error: fmt.Sprintf("governance: %v", err)}
		} else {
			outcome = e.runWithRetry(ctx, action, execCtx, ctrl)
		}

		output := governance.RedactOutput(outcome.Output, redact)
		entry := &execution.ActionResult{
			ActionID:   action.ID,
			ActionName: action.Name,
			StartedAt:  started,
			EndedAt:    started.Add(outcome.Duration),
			DurationMS: outcome.Duration.Milliseconds(),
			Output:     output,
			RetryCount: outcome.RetryCount,
		}

		if outcome.Success {
			entry.Status = execution.ActionCompleted
			ex.ActionsExecuted = append(ex.ActionsExecuted, entry)
			ex.SuccessfulActions++
			actionOutputs[action.ID] = output
			e.persist(ex, entry, trace)
			fmt.Fprintf(e.out, "  ✓ Action %q completed\n", action.ID)
			continue
		}

		entry.Status = execution.ActionFailed
		entry.Error = governance.RedactString(outcome.Error, redact)
		ex.ActionsExecuted = append(ex.ActionsExecuted, entry)
		ex.RecordFailure(action.ID, entry.Error)
		e.persist(ex, entry, trace)
		fmt.Fprintf(e.out, "  ✗ Action %q failed: %s\n", action.ID, entry.Error)

		switch action.OnErrorPolicy() {
		case schema.OnErrorContinue:
			continue
		default:
			// fail and skip both stop processing: remaining actions are
			// neither run nor logged.
			e.finalize(pb, ex)
			return
		}
	}

	e.finalize(pb, ex)
}

// finalize sets the terminal status and hands the finished execution to the
// statistics recorder.
//
// Compatibility constraint: an execution reports failed only when at least
// one action failed AND none succeeded. A run with one success and later
// failures reports completed. Callers depend on this exact rule; do not
// tighten it without a product decision.
func (e *Engine) finalize(pb *schema.Playbook, ex *execution.Execution) {
	ex.EndedAt = time.Now()

	terminal := execution.StatusCompleted
	if ex.FailedActions > 0 && ex.SuccessfulActions == 0 {
		terminal = execution.StatusFailed
	}
	if err := ex.Transition(terminal); err != nil {
		// Already cancelled at a checkpoint; leave the status as is.
		terminal = ex.Status
	}
	if err := e.store.SaveExecution(ex); err != nil {
		fmt.Fprintf(e.out, "  warning: save execution: %v\n", err)
	}

	fmt.Fprintf(e.out, "■ Execution %s: %s (%d ok, %d failed, %d skipped)\n",
		ex.ID, terminal, ex.SuccessfulActions, ex.FailedActions, ex.SkippedActions)

	if e.traceDir != "" {
		if err := writeManifest(e.traceDir, ex); err != nil {
			fmt.Fprintf(e.out, "  warning: %v\n", err)
		}
	}

	if e.stats != nil {
		e.stats.RecordCompletion(pb.ID, ex)
	}
}

// persist saves the execution after each action so an observer inspecting it
// mid-run sees a consistent partial state.
func (e *Engine) persist(ex *execution.Execution, entry *execution.ActionResult, trace *TraceWriter) {
	if err := e.store.SaveExecution(ex); err != nil {
		fmt.Fprintf(e.out, "  warning: save execution: %v\n", err)
	}
	if trace != nil {
		if err := trace.Write(ex.ID, entry); err != nil {
			fmt.Fprintf(e.out, "  warning: write trace: %v\n", err)
		}
	}
}

// checkpoint enforces cooperative cancel/pause at the action boundary.
// Returns true when the loop must stop (execution was cancelled).
func (e *Engine) checkpoint(ctx context.Context, ex *execution.Execution, ctrl *control) bool {
	if ctx.Err() != nil || ctrl.isCancelled() {
		e.cancelNow(ex)
		return true
	}

	if paused, resumeCh := ctrl.pauseState(); paused && e.pausable {
		if err := ex.Transition(execution.StatusPaused); err == nil {
			e.store.SaveExecution(ex)
			fmt.Fprintf(e.out, "‖ Execution %s paused\n", ex.ID)
		}
		select {
		case <-ctx.Done():
			e.cancelNow(ex)
			return true
		case <-resumeCh:
		}
		if ctrl.isCancelled() {
			e.cancelNow(ex)
			return true
		}
		if err := ex.Transition(execution.StatusRunning); err == nil {
			e.store.SaveExecution(ex)
			fmt.Fprintf(e.out, "▶ Execution %s resumed\n", ex.ID)
		}
	}
	return false
}

// cancelNow marks the execution cancelled, records the end time, and persists.
func (e *Engine) cancelNow(ex *execution.Execution) {
	if err := ex.Transition(execution.StatusCancelled); err != nil {
		return
	}
	ex.EndedAt = time.Now()
	if err := e.store.SaveExecution(ex); err != nil {
		fmt.Fprintf(e.out, "  warning: save execution: %v\n", err)
	}
	fmt.Fprintf(e.out, "■ Execution %s cancelled\n", ex.ID)
}

func (e *Engine) registerControl(executionID string) *control {
	e.mu.Lock()
	defer e.mu.Unlock()
	ctrl := newControl()
	e.controls[executionID] = ctrl
	return ctrl
}

func (e *Engine) releaseControl(executionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.controls, executionID)
}

func (e *Engine) controlFor(executionID string) *control {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controls[executionID]
}

// Cancel requests cancellation of an execution. A queued or suspended
// execution is cancelled immediately; a running one stops before its next
// action (the in-flight attempt is not interrupted). Cancelling a terminal
// execution is an error.
func (e *Engine) Cancel(ctx context.Context, executionID string) (*execution.Execution, error) {
	if ctrl := e.controlFor(executionID); ctrl != nil {
		ctrl.cancel()
		return e.store.LoadExecution(executionID)
	}

	ex, err := e.store.LoadExecution(executionID)
	if err != nil {
		return nil, err
	}
	if err := ex.Transition(execution.StatusCancelled); err != nil {
		return nil, err
	}
	ex.EndedAt = time.Now()
	if err := e.store.SaveExecution(ex); err != nil {
		return nil, fmt.Errorf("save execution: %w", err)
	}
	return ex, nil
}

// Pause requests a pause of a running execution at its next action boundary.
// Only available when the engine was configured as pausable.
func (e *Engine) Pause(ctx context.Context, executionID string) (*execution.Execution, error) {
	if !e.pausable {
		return nil, fmt.Errorf("engine is not configured for pause/resume")
	}
	ctrl := e.controlFor(executionID)
	if ctrl == nil {
		return nil, fmt.Errorf("execution %s is not running", executionID)
	}
	ctrl.pause()
	return e.store.LoadExecution(executionID)
}

// Resume releases a paused execution back into its action loop.
func (e *Engine) Resume(ctx context.Context, executionID string) (*execution.Execution, error) {
	if !e.pausable {
		return nil, fmt.Errorf("engine is not configured for pause/resume")
	}
	ctrl := e.controlFor(executionID)
	if ctrl == nil {
		return nil, fmt.Errorf("execution %s is not running", executionID)
	}
	ctrl.resume()
	return e.store.LoadExecution(executionID)
}
