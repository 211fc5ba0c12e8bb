package main

import (
	"strings"
	"testing"
	"time"

	"github.com/black-cross/playbook-engine/pkg/execution"
	"github.com/black-cross/playbook-engine/pkg/scenario"
)

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"severity=critical", "risk_score=85", "contained=true"})
	if err != nil {
		t.Fatalf("parseVars: %v", err)
	}
	if vars["severity"] != "critical" {
		t.Errorf("severity = %v", vars["severity"])
	}
	if vars["risk_score"] != 85 {
		t.Errorf("risk_score = %v (%T), want int 85", vars["risk_score"], vars["risk_score"])
	}
	if vars["contained"] != true {
		t.Errorf("contained = %v", vars["contained"])
	}
}

func TestParseVarsRejectsBarePairs(t *testing.T) {
	if _, err := parseVars([]string{"no-equals-sign"}); err == nil {
		t.Error("expected error for malformed pair")
	}
}

func TestParseVarsEmpty(t *testing.T) {
	vars, err := parseVars(nil)
	if err != nil || vars != nil {
		t.Errorf("parseVars(nil) = %v, %v", vars, err)
	}
}

func TestParseConditionFlagInline(t *testing.T) {
	node, err := parseConditionFlag(`{type: simple, variable: severity, operator: equals, value: critical}`)
	if err != nil {
		t.Fatalf("parseConditionFlag: %v", err)
	}
	if node.Type != "simple" || node.Variable != "severity" || node.Value != "critical" {
		t.Errorf("node = %+v", node)
	}
}

func TestParseConditionFlagRequired(t *testing.T) {
	if _, err := parseConditionFlag(""); err == nil {
		t.Error("empty condition should be rejected")
	}
	if _, err := parseConditionFlag("@/does/not/exist.yaml"); err == nil {
		t.Error("missing condition file should be rejected")
	}
}

func TestExecutionReport(t *testing.T) {
	now := time.Now()
	ex := &execution.Execution{
		ID:           "ex-1",
		PlaybookName: "phishing-response",
		Status:       execution.StatusCompleted,
		Mode:         execution.ModeLive,
		TriggeredBy:  "analyst-1",
		StartedAt:    now.Add(-3 * time.Second),
		EndedAt:      now,
		ActionsExecuted: []*execution.ActionResult{
			{ActionID: "enrich", Status: execution.ActionCompleted, DurationMS: 120},
			{ActionID: "contain", Status: execution.ActionFailed, Error: "firewall unreachable", RetryCount: 2},
		},
		SuccessfulActions: 1,
		FailedActions:     1,
		DecisionPaths:     map[string]string{"severity_check": "escalate"},
		Errors: []execution.ExecutionError{
			{ActionID: "contain", Message: "firewall unreachable"},
		},
	}

	report := executionReport(ex)
	for _, want := range []string{
		"# phishing-response",
		"ex-1",
		"severity_check → **escalate**",
		"| contain | failed |",
		"firewall unreachable",
		"1 ok / 1 failed / 0 skipped",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestSummarize(t *testing.T) {
	for status, want := range map[string]string{
		"passed":  "passed",
		"failed":  "failed",
		"skipped": "skipped",
		"error":   "errors",
	} {
		s := summarize(scenarioResult(status))
		if s.Total != 1 {
			t.Errorf("%s: total = %d", status, s.Total)
		}
		got := map[string]int{"passed": s.Passed, "failed": s.Failed, "skipped": s.Skipped, "errors": s.Errors}
		if got[want] != 1 {
			t.Errorf("%s: %+v", status, s)
		}
	}
}

func scenarioResult(status string) scenario.TestResult {
	return scenario.TestResult{ScenarioName: "s", Status: status}
}
