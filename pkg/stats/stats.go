// Package stats maintains per-playbook aggregate counters across executions.
package stats

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/store"
)

// Recorder updates playbook aggregate counters when executions finish.
//
// Counter updates are read-modify-write against the store, so concurrent
// finalizations of two executions of the same playbook would race without
// serialization. The recorder holds a per-playbook lock across the
// load-update-save cycle to prevent lost updates.
type Recorder struct {
	store store.Store
	logw  io.Writer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewRecorder creates a recorder backed by the given store.
// Warnings go to logw (defaults to stderr); recording is fire-and-forget
// from the engine's point of view and never fails an execution.
func NewRecorder(s store.Store, logw io.Writer) *Recorder {
	if logw == nil {
		logw = os.Stderr
	}
	return &Recorder{
		store: s,
		logw:  logw,
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *Recorder) lockFor(playbookID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[playbookID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[playbookID] = l
	}
	return l
}

// RecordCompletion folds a finished execution into the playbook's aggregate
// counters: execution count, success/failure counts, and the running average
// execution time in seconds.
func (r *Recorder) RecordCompletion(playbookID string, ex *execution.Execution) {
	l := r.lockFor(playbookID)
	l.Lock()
	defer l.Unlock()

	pb, err := r.store.LoadPlaybook(playbookID)
	if err != nil {
		fmt.Fprintf(r.logw, "warning: stats: load playbook %s: %v\n", playbookID, err)
		return
	}

	prev := float64(pb.Stats.ExecutionCount)
	seconds := ex.Duration().Seconds()
	pb.Stats.AverageExecutionTime = (pb.Stats.AverageExecutionTime*prev + seconds) / (prev + 1)
	pb.Stats.ExecutionCount++

	switch ex.Status {
	case execution.StatusCompleted:
		pb.Stats.SuccessCount++
	case execution.StatusFailed:
		pb.Stats.FailureCount++
	}

	if err := r.store.SavePlaybook(pb); err != nil {
		fmt.Fprintf(r.logw, "warning: stats: save playbook %s: %v\n", playbookID, err)
	}
}
