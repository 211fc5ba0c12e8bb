package store

import (
	"testing"

	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/schema"
)

func testPlaybook() *schema.Playbook {
	return &schema.Playbook{
		APIVersion: "playbook/v1",
		ID:         "pb-store",
		Name:       "store test",
		Actions: []schema.Action{
			{ID: "a1", Name: "one", Type: "block_ip", Order: 0},
		},
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
	}
}

func TestPlaybookRoundTrip(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			pb := testPlaybook()
			if err := s.SavePlaybook(pb); err != nil {
				t.Fatalf("SavePlaybook: %v", err)
			}
			got, err := s.LoadPlaybook("pb-store")
			if err != nil {
				t.Fatalf("LoadPlaybook: %v", err)
			}
			if got.Name != pb.Name || len(got.Actions) != 1 {
				t.Errorf("loaded playbook differs: %+v", got)
			}
		})
	}
}

func TestLoadMissingIsNotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.LoadPlaybook("nope"); err == nil {
				t.Error("expected not-found error for playbook")
			} else if _, ok := err.(*NotFoundError); !ok {
				t.Errorf("error type = %T, want *NotFoundError", err)
			}
			if _, err := s.LoadExecution("nope"); err == nil {
				t.Error("expected not-found error for execution")
			} else if _, ok := err.(*NotFoundError); !ok {
				t.Errorf("error type = %T, want *NotFoundError", err)
			}
		})
	}
}

func TestExecutionRoundTripAndList(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			pb := testPlaybook()
			ex1 := execution.New(pb, execution.ModeTest, "tester", nil)
			ex2 := execution.New(pb, execution.ModeTest, "tester", nil)
			other := execution.New(&schema.Playbook{ID: "pb-other", Name: "other"}, execution.ModeTest, "", nil)

			for _, ex := range []*execution.Execution{ex1, ex2, other} {
				if err := s.SaveExecution(ex); err != nil {
					t.Fatalf("SaveExecution: %v", err)
				}
			}

			got, err := s.LoadExecution(ex1.ID)
			if err != nil {
				t.Fatalf("LoadExecution: %v", err)
			}
			if got.PlaybookID != "pb-store" || got.Status != execution.StatusQueued {
				t.Errorf("loaded execution differs: %+v", got)
			}

			list, err := s.ListExecutions("pb-store")
			if err != nil {
				t.Fatalf("ListExecutions: %v", err)
			}
			if len(list) != 2 {
				t.Errorf("ListExecutions returned %d records, want 2", len(list))
			}
		})
	}
}

func TestLoadedExecutionIsSnapshot(t *testing.T) {
	s := NewMemoryStore()
	pb := testPlaybook()
	ex := execution.New(pb, execution.ModeTest, "", nil)
	if err := s.SaveExecution(ex); err != nil {
		t.Fatalf("SaveExecution: %v", err)
	}

	// Mutating the live record must not change the stored snapshot.
	ex.SuccessfulActions = 99
	got, err := s.LoadExecution(ex.ID)
	if err != nil {
		t.Fatalf("LoadExecution: %v", err)
	}
	if got.SuccessfulActions != 0 {
		t.Error("stored snapshot reflects later mutation of the live record")
	}
}
