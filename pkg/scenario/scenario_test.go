package scenario

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestParseScenario(t *testing.T) {
	s, err := ParseScenario([]byte(`
responses:
  - action_type: enrich_ioc
    success: true
    output:
      risk_score: 85
  - action_type: block_ip
    success: false
    error: firewall unreachable
`))
	if err != nil {
		t.Fatalf("ParseScenario: %v", err)
	}
	if len(s.Responses) != 2 {
		t.Fatalf("responses = %d, want 2", len(s.Responses))
	}
	if s.Responses[0].Output["risk_score"] != 85 {
		t.Errorf("output = %v", s.Responses[0].Output)
	}
	if s.Responses[1].Error != "firewall unreachable" {
		t.Errorf("error = %q", s.Responses[1].Error)
	}
}

func TestParseScenarioEmpty(t *testing.T) {
	if _, err := ParseScenario([]byte("responses: []")); err == nil {
		t.Error("empty scenario should be rejected")
	}
}

func TestReplayRunnerConsumesEntriesOnce(t *testing.T) {
	s := &Scenario{Responses: []Response{
		{ActionType: "block_ip", Success: true, Output: map[string]any{"n": 1}},
		{ActionType: "block_ip", Success: false, Error: "second call fails"},
	}}
	r := NewReplayRunner(s)

	first, err := r.Execute(context.Background(), "block_ip", nil, nil)
	if err != nil || !first.Success {
		t.Fatalf("first call: %v, %v", first, err)
	}
	second, err := r.Execute(context.Background(), "block_ip", nil, nil)
	if err != nil || second.Success {
		t.Fatalf("second call should use the second entry: %v, %v", second, err)
	}
	if _, err := r.Execute(context.Background(), "block_ip", nil, nil); err == nil {
		t.Error("exhausted type should fail closed")
	}
}

func TestReplayRunnerUnknownTypeFailsClosed(t *testing.T) {
	r := NewReplayRunner(&Scenario{Responses: []Response{{ActionType: "wait", Success: true}}})
	if _, err := r.Execute(context.Background(), "create_ticket", nil, nil); err == nil {
		t.Error("unscripted action type should fail")
	}
}

func TestEvaluateAssertions(t *testing.T) {
	run := &RunResult{
		Status:     "completed",
		RanActions: []string{"enrich", "contain"},
		ActionStatuses: map[string]string{
			"enrich":  "completed",
			"contain": "failed",
			"notify":  "skipped",
		},
		Outputs: map[string]string{
			"enrich.risk_score": "85",
			"enrich.verdict":    "malicious",
		},
	}
	spec := &TestSpec{
		ExpectedStatus: "completed",
		ExpectedActionStatus: map[string]string{
			"contain": "failed",
			"notify":  "skipped",
		},
		ExpectedOutputs: map[string]string{
			"enrich.risk_score": ">=70",
			"enrich.verdict":    "/mal.*/",
		},
		MustRun:    []string{"enrich"},
		MustNotRun: []string{"notify"},
	}

	results := Evaluate(spec, run)
	if HasFailures(results) {
		for _, r := range results {
			if !r.Passed {
				t.Errorf("unexpected failure: %s %s: %s", r.Type, r.Key, r.Message)
			}
		}
	}
	if len(results) != 7 {
		t.Errorf("results = %d, want 7", len(results))
	}
}

func TestEvaluateReportsFailures(t *testing.T) {
	run := &RunResult{
		Status:         "failed",
		RanActions:     []string{"a1"},
		ActionStatuses: map[string]string{"a1": "failed"},
		Outputs:        map[string]string{"a1.count": "3"},
	}
	spec := &TestSpec{
		ExpectedStatus:  "completed",
		ExpectedOutputs: map[string]string{"a1.count": "<2", "a1.missing": "x"},
		MustNotRun:      []string{"a1"},
	}

	results := Evaluate(spec, run)
	if !HasFailures(results) {
		t.Fatal("expected failures")
	}
	failed := 0
	for _, r := range results {
		if !r.Passed {
			failed++
			if r.Message == "" {
				t.Errorf("failed assertion %s %s has no message", r.Type, r.Key)
			}
		}
	}
	if failed != 4 {
		t.Errorf("failed assertions = %d, want 4", failed)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

const replayPlaybook = `
apiVersion: playbook/v1
id: pb-replay
name: containment
status: active
actions:
  - id: enrich
    name: Enrich indicator
    type: enrich_ioc
    order: 0
    parameters:
      indicator: 203.0.113.9
  - id: contain
    name: Block the address
    type: block_ip
    order: 1
    condition:
      type: simple
      variable: actions.enrich.verdict
      operator: equals
      value: malicious
`

func TestRunAll(t *testing.T) {
	dir := t.TempDir()
	pbPath := filepath.Join(dir, "containment.playbook.yaml")
	writeFile(t, pbPath, replayPlaybook)

	scenDir := filepath.Join(dir, "scenarios", "containment", "malicious-ip")
	writeFile(t, filepath.Join(scenDir, "inputs.yaml"), "ip: 203.0.113.9\n")
	writeFile(t, filepath.Join(scenDir, "responses.yaml"), `
responses:
  - action_type: enrich_ioc
    success: true
    output:
      verdict: malicious
  - action_type: block_ip
    success: true
    output:
      blocked: true
`)
	writeFile(t, filepath.Join(scenDir, "test.yaml"), `
expected_status: completed
must_run:
  - enrich
  - contain
expected_outputs:
  enrich.verdict: malicious
`)

	// A scenario without test.yaml is discovered but skipped.
	bareDir := filepath.Join(dir, "scenarios", "containment", "no-spec")
	writeFile(t, filepath.Join(bareDir, "responses.yaml"), `
responses:
  - action_type: enrich_ioc
    success: true
`)

	r := &Runner{}
	out, err := r.RunAll(pbPath, false)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	if out.Summary.Total != 2 || out.Summary.Passed != 1 || out.Summary.Skipped != 1 {
		t.Errorf("summary = %+v", out.Summary)
	}
	for _, s := range out.Scenarios {
		if s.Status == "failed" || s.Status == "error" {
			t.Errorf("scenario %s: %s %s %v", s.ScenarioName, s.Status, s.Error, s.Assertions)
		}
	}
}

func TestRunScenarioBenignPathSkipsContainment(t *testing.T) {
	dir := t.TempDir()
	pbPath := filepath.Join(dir, "containment.playbook.yaml")
	writeFile(t, pbPath, replayPlaybook)

	scenDir := filepath.Join(dir, "scenarios", "containment", "benign-ip")
	writeFile(t, filepath.Join(scenDir, "responses.yaml"), `
responses:
  - action_type: enrich_ioc
    success: true
    output:
      verdict: benign
`)
	writeFile(t, filepath.Join(scenDir, "test.yaml"), `
expected_status: completed
expected_action_status:
  contain: skipped
must_not_run:
  - contain
`)

	r := &Runner{}
	result, err := r.RunScenario(pbPath, "benign-ip")
	if err != nil {
		t.Fatalf("RunScenario: %v", err)
	}
	if result.Status != "passed" {
		t.Errorf("status = %s: %s %v", result.Status, result.Error, result.Assertions)
	}
}

func TestDiscoverScenariosMissingDirectory(t *testing.T) {
	dir := t.TempDir()
	pbPath := filepath.Join(dir, "lonely.playbook.yaml")
	writeFile(t, pbPath, replayPlaybook)

	scenarios, err := DiscoverScenarios(pbPath)
	if err != nil {
		t.Fatalf("DiscoverScenarios: %v", err)
	}
	if scenarios != nil {
		t.Errorf("scenarios = %v, want nil", scenarios)
	}
}
