package decision

import (
	"testing"

	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/schema"
	"github.com/black-cross/playbook-engine/pkg/store"
)

func seedPlaybook(t *testing.T, s store.Store) *schema.Playbook {
	t.Helper()
	pb := &schema.Playbook{
		APIVersion: "playbook/v1",
		ID:         "pb-1",
		Name:       "triage",
		Status:     schema.PlaybookActive,
		Actions: []schema.Action{
			{ID: "a1", Name: "notify", Type: "send_notification", Order: 0, Parameters: map[string]any{"channel": "#soc", "message": "hi"}},
		},
		Decisions: []schema.Decision{
			{
				ID:            "d-sev",
				DecisionPoint: "severity_check",
				Condition:     &schema.DecisionNode{Type: "simple", Variable: "severity", Operator: "equals", Value: "critical"},
				TruePath:      "escalate",
				FalsePath:     "monitor",
			},
		},
	}
	if err := s.SavePlaybook(pb); err != nil {
		t.Fatalf("SavePlaybook: %v", err)
	}
	return pb
}

func TestAddDecision(t *testing.T) {
	s := store.NewMemoryStore()
	seedPlaybook(t, s)
	svc := NewService(s)

	d, err := svc.AddDecision("pb-1", AddRequest{
		DecisionPoint: "risk_check",
		Condition:     &schema.DecisionNode{Type: "risk_based", RiskOperator: "above_threshold", RiskThreshold: 60},
		TruePath:      "contain",
		FalsePath:     "observe",
	})
	if err != nil {
		t.Fatalf("AddDecision: %v", err)
	}
	if d.ID == "" || d.CreatedAt.IsZero() {
		t.Errorf("generated fields missing: %+v", d)
	}

	pb, _ := s.LoadPlaybook("pb-1")
	if len(pb.Decisions) != 2 {
		t.Fatalf("persisted decisions = %d, want 2", len(pb.Decisions))
	}
	if pb.FindDecision(d.ID) == nil {
		t.Error("new decision not findable by id")
	}
}

func TestAddDecisionValidation(t *testing.T) {
	s := store.NewMemoryStore()
	seedPlaybook(t, s)
	svc := NewService(s)

	cases := []struct {
		name string
		req  AddRequest
	}{
		{"missing point", AddRequest{Condition: &schema.DecisionNode{Type: "simple", Variable: "x", Operator: "equals", Value: 1}, TruePath: "a", FalsePath: "b"}},
		{"missing condition", AddRequest{DecisionPoint: "p", TruePath: "a", FalsePath: "b"}},
		{"missing true path", AddRequest{DecisionPoint: "p", Condition: &schema.DecisionNode{Type: "simple", Variable: "x", Operator: "equals", Value: 1}, FalsePath: "b"}},
		{"missing false path", AddRequest{DecisionPoint: "p", Condition: &schema.DecisionNode{Type: "simple", Variable: "x", Operator: "equals", Value: 1}, TruePath: "a"}},
		{"duplicate point", AddRequest{DecisionPoint: "severity_check", Condition: &schema.DecisionNode{Type: "simple", Variable: "x", Operator: "equals", Value: 1}, TruePath: "a", FalsePath: "b"}},
		{"malformed condition", AddRequest{DecisionPoint: "p", Condition: &schema.DecisionNode{Type: "simple", Variable: "x"}, TruePath: "a", FalsePath: "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AddDecision("pb-1", tc.req); err == nil {
				t.Error("expected error")
			}
		})
	}

	pb, _ := s.LoadPlaybook("pb-1")
	if len(pb.Decisions) != 1 {
		t.Errorf("rejected decisions must not be persisted, have %d", len(pb.Decisions))
	}
}

func TestGetExecutionPathsIsPure(t *testing.T) {
	s := store.NewMemoryStore()
	seedPlaybook(t, s)
	svc := NewService(s)

	ctx := map[string]any{"severity": "critical"}
	for i := 0; i < 3; i++ {
		report, err := svc.GetExecutionPaths("pb-1", ctx)
		if err != nil {
			t.Fatalf("GetExecutionPaths: %v", err)
		}
		if len(report.Paths) != 1 {
			t.Fatalf("paths = %d, want 1", len(report.Paths))
		}
		p := report.Paths[0]
		if !p.Result || p.Taken != "escalate" {
			t.Errorf("iteration %d: %+v, want escalate/true", i, p)
		}
	}

	report, _ := svc.GetExecutionPaths("pb-1", map[string]any{"severity": "low"})
	if report.Paths[0].Taken != "monitor" {
		t.Errorf("non-matching context took %q, want monitor", report.Paths[0].Taken)
	}

	if list, _ := s.ListExecutions("pb-1"); len(list) != 0 {
		t.Error("path preview must not create execution records")
	}
}

func TestAnalyzeDecisions(t *testing.T) {
	s := store.NewMemoryStore()
	pb := seedPlaybook(t, s)
	svc := NewService(s)

	record := func(path string) {
		ex := execution.New(pb, execution.ModeLive, "test", nil)
		ex.DecisionPaths["severity_check"] = path
		if err := s.SaveExecution(ex); err != nil {
			t.Fatalf("SaveExecution: %v", err)
		}
	}
	record("escalate")
	record("escalate")
	record("monitor")

	analysis, err := svc.AnalyzeDecisions("pb-1")
	if err != nil {
		t.Fatalf("AnalyzeDecisions: %v", err)
	}
	if analysis.Executions != 3 {
		t.Errorf("Executions = %d, want 3", analysis.Executions)
	}
	if len(analysis.Points) != 1 {
		t.Fatalf("points = %d, want 1", len(analysis.Points))
	}
	got := map[string]int{}
	for _, b := range analysis.Points[0].Branches {
		got[b.Path] = b.Count
	}
	if got["escalate"] != 2 || got["monitor"] != 1 {
		t.Errorf("branch counts = %v", got)
	}
}

func TestAnalyzeDecisionsEmptyHistory(t *testing.T) {
	s := store.NewMemoryStore()
	seedPlaybook(t, s)
	svc := NewService(s)

	analysis, err := svc.AnalyzeDecisions("pb-1")
	if err != nil {
		t.Fatalf("AnalyzeDecisions: %v", err)
	}
	if analysis.Executions != 0 {
		t.Errorf("Executions = %d, want 0", analysis.Executions)
	}
	if len(analysis.Points) != 1 || len(analysis.Points[0].Branches) != 0 {
		t.Errorf("empty history should still list the point with no branches: %+v", analysis.Points)
	}
}
