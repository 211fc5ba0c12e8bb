package schema

import (
	"strings"
	"testing"
)

const minimalPlaybook = `
apiVersion: playbook/v1
id: pb-ransomware
name: Ransomware containment
actions:
  - id: isolate
    name: Isolate endpoint
    type: isolate_endpoint
    order: 0
  - id: notify
    name: Notify SOC
    type: send_notification
    order: 1
`

func TestLoadMinimalPlaybook(t *testing.T) {
	pb, err := Load(strings.NewReader(minimalPlaybook))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if pb.ID != "pb-ransomware" {
		t.Errorf("ID = %q, want pb-ransomware", pb.ID)
	}
	if len(pb.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(pb.Actions))
	}
	if pb.Status != PlaybookDraft {
		t.Errorf("default status = %q, want %q", pb.Status, PlaybookDraft)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	doc := minimalPlaybook + "\nbogus_field: true\n"
	if _, err := Load(strings.NewReader(doc)); err == nil {
		t.Error("expected error for unknown top-level field")
	}
}

func TestSortedActionsStable(t *testing.T) {
	pb := &Playbook{
		Actions: []Action{
			{ID: "c", Order: 2},
			{ID: "a", Order: 0},
			{ID: "b", Order: 1},
		},
	}
	sorted := pb.SortedActions()
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if sorted[i].ID != id {
			t.Errorf("sorted[%d].ID = %q, want %q", i, sorted[i].ID, id)
		}
	}
	// Original slice untouched
	if pb.Actions[0].ID != "c" {
		t.Error("SortedActions mutated the playbook")
	}
}

func TestOnErrorPolicyDefault(t *testing.T) {
	a := Action{}
	if got := a.OnErrorPolicy(); got != OnErrorFail {
		t.Errorf("OnErrorPolicy() = %q, want %q", got, OnErrorFail)
	}
	a.OnError = OnErrorContinue
	if got := a.OnErrorPolicy(); got != OnErrorContinue {
		t.Errorf("OnErrorPolicy() = %q, want %q", got, OnErrorContinue)
	}
}
