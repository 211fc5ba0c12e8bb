package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/black-cross/playbook-engine/pkg/execution"
)

// markAwaitingApproval suspends a queued execution pending human sign-off.
// The wait is modeled as persisted state, not a blocked goroutine: Approve
// re-enters the engine with the stored execution id.
func (e *Engine) markAwaitingApproval(ex *execution.Execution) error {
	if err := ex.Transition(execution.StatusAwaitingApproval); err != nil {
		return err
	}
	ex.Approval.Required = true
	if err := e.store.SaveExecution(ex); err != nil {
		return fmt.Errorf("save execution: %w", err)
	}
	fmt.Fprintf(e.out, "‖ Execution %s awaiting approval\n", ex.ID)
	return nil
}

// Approve records the approver on an execution that is awaiting approval and
// runs the full action list from the top with the supplied variables.
// Approval is one-shot: any other current status is an INVALID_STATE error
// and the record is left untouched.
func (e *Engine) Approve(ctx context.Context, executionID, approver string, variables map[string]any) (*execution.Execution, error) {
	ex, err := e.store.LoadExecution(executionID)
	if err != nil {
		return nil, err
	}

	if ex.Status != execution.StatusAwaitingApproval {
		return nil, &execution.StateError{ExecutionID: ex.ID, From: ex.Status, To: execution.StatusRunning}
	}

	pb, err := e.store.LoadPlaybook(ex.PlaybookID)
	if err != nil {
		return nil, err
	}

	ex.Approval.ApprovedBy = approver
	ex.Approval.ApprovedAt = time.Now()
	if err := ex.Transition(execution.StatusRunning); err != nil {
		return nil, err
	}

	// Approval-time variables override the ones captured at request time.
	merged := make(map[string]any, len(ex.Variables)+len(variables))
	for k, v := range ex.Variables {
		merged[k] = v
	}
	for k, v := range variables {
		merged[k] = v
	}
	ex.Variables = merged

	if err := e.store.SaveExecution(ex); err != nil {
		return nil, fmt.Errorf("save execution: %w", err)
	}
	fmt.Fprintf(e.out, "✓ Execution %s approved by %s\n", ex.ID, approver)

	e.run(ctx, pb, ex, merged)
	return ex, nil
}
