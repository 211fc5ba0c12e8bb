package stats

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/schema"
	"github.com/black-cross/playbook-engine/pkg/store"
)

func finishedExecution(pb *schema.Playbook, status string, d time.Duration) *execution.Execution {
	ex := execution.New(pb, execution.ModeTest, "", nil)
	ex.Status = status
	ex.StartedAt = time.Now().Add(-d)
	ex.EndedAt = ex.StartedAt.Add(d)
	return ex
}

func TestRecordCompletionCounters(t *testing.T) {
	s := store.NewMemoryStore()
	pb := &schema.Playbook{APIVersion: "playbook/v1", ID: "pb-s", Name: "s"}
	if err := s.SavePlaybook(pb); err != nil {
		t.Fatal(err)
	}

	r := NewRecorder(s, io.Discard)
	r.RecordCompletion("pb-s", finishedExecution(pb, execution.StatusCompleted, 2*time.Second))
	r.RecordCompletion("pb-s", finishedExecution(pb, execution.StatusFailed, 4*time.Second))
	r.RecordCompletion("pb-s", finishedExecution(pb, execution.StatusCancelled, 3*time.Second))

	got, err := s.LoadPlaybook("pb-s")
	if err != nil {
		t.Fatal(err)
	}
	if got.Stats.ExecutionCount != 3 {
		t.Errorf("ExecutionCount = %d, want 3", got.Stats.ExecutionCount)
	}
	if got.Stats.SuccessCount != 1 || got.Stats.FailureCount != 1 {
		t.Errorf("success/failure = %d/%d, want 1/1", got.Stats.SuccessCount, got.Stats.FailureCount)
	}
	// Running average of 2s, 4s, 3s.
	if got.Stats.AverageExecutionTime < 2.9 || got.Stats.AverageExecutionTime > 3.1 {
		t.Errorf("AverageExecutionTime = %v, want ~3", got.Stats.AverageExecutionTime)
	}
}

func TestConcurrentFinalizationsLoseNoUpdates(t *testing.T) {
	s := store.NewMemoryStore()
	pb := &schema.Playbook{APIVersion: "playbook/v1", ID: "pb-c", Name: "c"}
	if err := s.SavePlaybook(pb); err != nil {
		t.Fatal(err)
	}

	r := NewRecorder(s, io.Discard)
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.RecordCompletion("pb-c", finishedExecution(pb, execution.StatusCompleted, time.Second))
		}()
	}
	wg.Wait()

	got, err := s.LoadPlaybook("pb-c")
	if err != nil {
		t.Fatal(err)
	}
	if got.Stats.ExecutionCount != n {
		t.Errorf("ExecutionCount = %d, want %d (lost updates)", got.Stats.ExecutionCount, n)
	}
	if got.Stats.SuccessCount != n {
		t.Errorf("SuccessCount = %d, want %d", got.Stats.SuccessCount, n)
	}
}

func TestMissingPlaybookDoesNotPanic(t *testing.T) {
	r := NewRecorder(store.NewMemoryStore(), io.Discard)
	ex := &execution.Execution{Status: execution.StatusCompleted}
	r.RecordCompletion("ghost", ex) // must not panic or error out
}
