package scenario

// TestResult captures the outcome of running one scenario against a test spec.
type TestResult struct {
	PlaybookName string            `json:"playbook_name"`
	ScenarioName string            `json:"scenario_name"`
	ScenarioDir  string            `json:"scenario_dir"`
	Status       string            `json:"status"` // passed, failed, skipped, error
	DurationMs   int64             `json:"duration_ms"`
	Assertions   []AssertionResult `json:"assertions"`
	Error        string            `json:"error,omitempty"`
}

// AssertionResult is the outcome of a single assertion check.
type AssertionResult struct {
	Type     string `json:"type"`          // expected_status, expected_action_status, expected_output, must_run, must_not_run
	Key      string `json:"key,omitempty"` // action id or "action_id.field"
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
}

// TestSummary aggregates results across scenarios.
type TestSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// TestOutput is the top-level JSON structure for bxp test --json.
type TestOutput struct {
	Playbook  string       `json:"playbook"`
	Scenarios []TestResult `json:"scenarios"`
	Summary   TestSummary  `json:"summary"`
}

// RunResult holds the observed execution data collected from a replay run,
// used as input to the assertion evaluator.
type RunResult struct {
	Status         string            // terminal execution status
	RanActions     []string          // action IDs that were attempted (not skipped)
	ActionStatuses map[string]string // action ID → completed, failed, skipped
	Outputs        map[string]string // "action_id.field" → stringified output value
}
