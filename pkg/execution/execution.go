// Package execution defines the execution record and its lifecycle state machine.
package execution

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/black-cross/playbook-engine/pkg/schema"
)

// Lifecycle statuses.
const (
	StatusQueued            = "queued"
	StatusRunning           = "running"
	StatusAwaitingApproval  = "awaiting_approval"
	StatusPaused            = "paused"
	StatusCompleted         = "completed"
	StatusFailed            = "failed"
	StatusCancelled         = "cancelled"
)

// Execution modes.
const (
	ModeLive       = "live"
	ModeTest       = "test"
	ModeSimulation = "simulation"
)

// Per-action statuses in the action log.
const (
	ActionCompleted = "completed"
	ActionFailed    = "failed"
	ActionSkipped   = "skipped"
)

// Execution is one run of a playbook against a context, tracked through the
// lifecycle state machine. Mutated exclusively by the execution engine and
// the approval gate.
type Execution struct {
	ID              string `json:"id"`
	PlaybookID      string `json:"playbook_id"`
	PlaybookName    string `json:"playbook_name"`
	PlaybookVersion int    `json:"playbook_version"`
	Mode            string `json:"execution_mode"` // live, test, simulation
	Status          string `json:"status"`
	TriggeredBy     string `json:"triggered_by,omitempty"`

	Variables map[string]any `json:"variables,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitzero"`

	ActionsExecuted []*ActionResult `json:"actions_executed"`

	SuccessfulActions int `json:"successful_actions"`
	SkippedActions    int `json:"skipped_actions"`
	FailedActions     int `json:"failed_actions"`

	Errors   []ExecutionError `json:"errors,omitempty"`
	Approval ApprovalStatus   `json:"approval_status"`

	// DecisionPaths records which branch each attached decision point
	// resolved to at run start, keyed by decision_point name.
	DecisionPaths map[string]string `json:"decision_paths,omitempty"`
}

// ActionResult is one entry in the per-action execution log.
type ActionResult struct {
	ActionID   string         `json:"action_id"`
	ActionName string         `json:"action_name"`
	Status     string         `json:"status"` // completed, failed, skipped
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    time.Time      `json:"ended_at"`
	DurationMS int64          `json:"duration_ms"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	RetryCount int            `json:"retry_count"` // retries beyond the first attempt
}

// ExecutionError is a structured error appended when an action fails.
type ExecutionError struct {
	ActionID  string    `json:"action_id"`
	Message   string    `json:"error_message"`
	Timestamp time.Time `json:"timestamp"`
}

// ApprovalStatus tracks the approval-gate state of an execution.
type ApprovalStatus struct {
	Required   bool      `json:"required"`
	ApprovedBy string    `json:"approved_by,omitempty"`
	ApprovedAt time.Time `json:"approved_at,omitzero"`
}

// New creates a queued execution for the given playbook, snapshotting the
// playbook's name and version.
func New(pb *schema.Playbook, mode, triggeredBy string, variables map[string]any) *Execution {
	if variables == nil {
		variables = make(map[string]any)
	}
	return &Execution{
		ID:              uuid.New().String(),
		PlaybookID:      pb.ID,
		PlaybookName:    pb.Name,
		PlaybookVersion: pb.Version,
		Mode:            mode,
		Status:          StatusQueued,
		TriggeredBy:     triggeredBy,
		Variables:       variables,
		StartedAt:       time.Now(),
		DecisionPaths:   make(map[string]string),
	}
}

// transitions is the adjacency set of legal status changes.
var transitions = map[string][]string{
	StatusQueued:           {StatusRunning, StatusAwaitingApproval, StatusCancelled},
	StatusRunning:          {StatusPaused, StatusCompleted, StatusFailed, StatusCancelled},
	StatusAwaitingApproval: {StatusRunning, StatusCancelled},
	StatusPaused:           {StatusRunning, StatusCancelled},
	// completed, failed, cancelled are terminal
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether from → to is a legal status change.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateError reports an illegal status transition.
type StateError struct {
	ExecutionID string
	From        string
	To          string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("INVALID_STATE: execution %s cannot transition from %q to %q", e.ExecutionID, e.From, e.To)
}

// Transition moves the execution into the given status, or returns a
// StateError leaving the record untouched.
func (e *Execution) Transition(to string) error {
	if !CanTransition(e.Status, to) {
		return &StateError{ExecutionID: e.ID, From: e.Status, To: to}
	}
	e.Status = to
	return nil
}

// RecordFailure increments the failure counter and appends a structured error.
func (e *Execution) RecordFailure(actionID, message string) {
	e.FailedActions++
	e.Errors = append(e.Errors, ExecutionError{
		ActionID:  actionID,
		Message:   message,
		Timestamp: time.Now(),
	})
}

// Duration returns the wall-clock duration of the execution so far, or the
// final duration once ended.
func (e *Execution) Duration() time.Duration {
	if e.EndedAt.IsZero() {
		return time.Since(e.StartedAt)
	}
	return e.EndedAt.Sub(e.StartedAt)
}
