package scenario

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Evaluate runs all assertions from a TestSpec against a RunResult and returns
// the individual assertion results. Each field in the TestSpec is checked
// independently; omitted fields produce no assertions.
func Evaluate(spec *TestSpec, run *RunResult) []AssertionResult {
	var results []AssertionResult

	if spec.ExpectedStatus != "" {
		results = append(results, evalStatus(spec.ExpectedStatus, run.Status))
	}

	for actionID, expected := range spec.ExpectedActionStatus {
		results = append(results, evalActionStatus(actionID, expected, run.ActionStatuses))
	}

	for key, expected := range spec.ExpectedOutputs {
		results = append(results, evalOutput(key, expected, run.Outputs))
	}

	for _, actionID := range spec.MustRun {
		results = append(results, evalMustRun(actionID, run.RanActions))
	}

	for _, actionID := range spec.MustNotRun {
		results = append(results, evalMustNotRun(actionID, run.RanActions))
	}

	return results
}

// HasFailures returns true if any assertion in the slice failed.
func HasFailures(results []AssertionResult) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}

func evalStatus(expected, actual string) AssertionResult {
	passed := expected == actual
	msg := ""
	if !passed {
		msg = fmt.Sprintf("expected status %q, got %q", expected, actual)
	}
	return AssertionResult{
		Type:     "expected_status",
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  msg,
	}
}

func evalActionStatus(actionID, expected string, statuses map[string]string) AssertionResult {
	actual, exists := statuses[actionID]
	if !exists {
		return AssertionResult{
			Type:     "expected_action_status",
			Key:      actionID,
			Expected: expected,
			Passed:   false,
			Message:  fmt.Sprintf("action %q not found in execution log", actionID),
		}
	}
	passed := expected == actual
	msg := ""
	if !passed {
		msg = fmt.Sprintf("action %q: expected status %q, got %q", actionID, expected, actual)
	}
	return AssertionResult{
		Type:     "expected_action_status",
		Key:      actionID,
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  msg,
	}
}

func evalOutput(key, expected string, outputs map[string]string) AssertionResult {
	actual, exists := outputs[key]
	if !exists {
		return AssertionResult{
			Type:     "expected_output",
			Key:      key,
			Expected: expected,
			Passed:   false,
			Message:  fmt.Sprintf("output %q not found", key),
		}
	}
	passed, msg := compareValue(expected, actual)
	return AssertionResult{
		Type:     "expected_output",
		Key:      key,
		Expected: expected,
		Actual:   actual,
		Passed:   passed,
		Message:  msg,
	}
}

// compareValue determines if an actual string satisfies an expected assertion.
// Supports three forms:
//   - Regex:   "/pattern/"
//   - Numeric: ">0", "<100", ">=1", "<=50", "==0", "!=0"
//   - Exact:   any other string (literal equality)
func compareValue(expected, actual string) (bool, string) {
	if len(expected) >= 2 && expected[0] == '/' && expected[len(expected)-1] == '/' {
		pattern := expected[1 : len(expected)-1]
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Sprintf("invalid regex %q: %v", pattern, err)
		}
		if re.MatchString(actual) {
			return true, ""
		}
		return false, fmt.Sprintf("value %q does not match pattern %s", actual, expected)
	}

	for _, op := range []string{">=", "<=", "!=", "==", ">", "<"} {
		if strings.HasPrefix(expected, op) {
			threshold := strings.TrimSpace(expected[len(op):])
			return compareNumeric(op, threshold, actual)
		}
	}

	if expected == actual {
		return true, ""
	}
	return false, fmt.Sprintf("expected %q, got %q", expected, actual)
}

func compareNumeric(op, threshold, actual string) (bool, string) {
	tVal, tErr := strconv.ParseFloat(threshold, 64)
	aVal, aErr := strconv.ParseFloat(actual, 64)
	if tErr != nil || aErr != nil {
		return false, fmt.Sprintf("numeric comparison %s%s failed: cannot parse %q as number", op, threshold, actual)
	}

	var passed bool
	switch op {
	case ">":
		passed = aVal > tVal
	case "<":
		passed = aVal < tVal
	case ">=":
		passed = aVal >= tVal
	case "<=":
		passed = aVal <= tVal
	case "==":
		passed = aVal == tVal
	case "!=":
		passed = aVal != tVal
	}

	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %s %s%s", actual, op, threshold)
}

func evalMustRun(actionID string, ran []string) AssertionResult {
	for _, id := range ran {
		if id == actionID {
			return AssertionResult{Type: "must_run", Key: actionID, Passed: true}
		}
	}
	return AssertionResult{
		Type:    "must_run",
		Key:     actionID,
		Passed:  false,
		Message: fmt.Sprintf("action %q was not run", actionID),
	}
}

func evalMustNotRun(actionID string, ran []string) AssertionResult {
	for _, id := range ran {
		if id == actionID {
			return AssertionResult{
				Type:    "must_not_run",
				Key:     actionID,
				Passed:  false,
				Message: fmt.Sprintf("action %q was run but should not have been", actionID),
			}
		}
	}
	return AssertionResult{Type: "must_not_run", Key: actionID, Passed: true}
}
