// Package store provides persistence for playbooks and execution records.
//
// The engine treats saves as synchronous, durable, last-write-wins writes;
// optimistic concurrency control is not implemented here.
package store

import (
	"fmt"

	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/schema"
)

// Store is the persistence interface the engine depends on.
type Store interface {
	SavePlaybook(pb *schema.Playbook) error
	LoadPlaybook(id string) (*schema.Playbook, error)
	SaveExecution(ex *execution.Execution) error
	LoadExecution(id string) (*execution.Execution, error)
	// ListExecutions returns executions for a playbook; an empty playbookID
	// returns all executions.
	ListExecutions(playbookID string) ([]*execution.Execution, error)
}

// NotFoundError reports a missing playbook or execution.
type NotFoundError struct {
	Kind string // "playbook" or "execution"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}
