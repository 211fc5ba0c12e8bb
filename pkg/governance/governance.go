// Package governance implements action allowlist/denylist checks and output
// redaction applied before action results are logged or traced.
package governance

import (
	"fmt"
	"regexp"

	"github.com/black-cross/playbook-engine/pkg/schema"
)

// Engine evaluates governance policies before and during execution.
type Engine struct {
	AllowedActions []string
	DeniedActions  []string
}

// New creates a governance engine from a policy.
// A nil policy yields a permissive engine.
func New(policy *schema.GovernancePolicy) *Engine {
	if policy == nil {
		return &Engine{}
	}
	return &Engine{
		AllowedActions: policy.AllowedActions,
		DeniedActions:  policy.DeniedActions,
	}
}

// CheckAction validates an action type against the allowlist/denylist.
// Deny takes precedence over allow.
func (g *Engine) CheckAction(actionType string) error {
	for _, denied := range g.DeniedActions {
		if actionType == denied {
			return fmt.Errorf("action type %q is denied by governance policy", actionType)
		}
	}

	if len(g.AllowedActions) > 0 {
		for _, allowed := range g.AllowedActions {
			if actionType == allowed {
				return nil
			}
		}
		return fmt.Errorf("action type %q is not in the governance allowlist", actionType)
	}

	return nil
}

// CompiledRedaction is a pre-compiled redaction rule.
type CompiledRedaction struct {
	Pattern *regexp.Regexp
	Replace string
}

// CompileRedactionRules compiles redaction rules from the governance policy.
func CompileRedactionRules(rules []schema.RedactionRule) ([]*CompiledRedaction, error) {
	var compiled []*CompiledRedaction
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, &CompiledRedaction{Pattern: re, Replace: r.Replace})
	}
	return compiled, nil
}

// RedactString applies all compiled redaction rules to a string.
func RedactString(s string, rules []*CompiledRedaction) string {
	for _, r := range rules {
		s = r.Pattern.ReplaceAllString(s, r.Replace)
	}
	return s
}

// RedactOutput returns a copy of an action output map with every string
// value (including nested maps and slices) run through the redaction rules.
func RedactOutput(output map[string]any, rules []*CompiledRedaction) map[string]any {
	if len(rules) == 0 || output == nil {
		return output
	}
	redacted := make(map[string]any, len(output))
	for k, v := range output {
		redacted[k] = redactValue(v, rules)
	}
	return redacted
}

func redactValue(v any, rules []*CompiledRedaction) any {
	switch val := v.(type) {
	case string:
		return RedactString(val, rules)
	case map[string]any:
		return RedactOutput(val, rules)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item, rules)
		}
		return out
	default:
		return v
	}
}
