package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "actions[0].retry")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile performs the full 3-phase validation pipeline on a playbook file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Playbook, []*ValidationError) {
	pb, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return pb, Validate(pb)
}

// Validate runs the semantic and domain phases against an already-parsed playbook.
func Validate(pb *Playbook) []*ValidationError {
	var allErrors []*ValidationError
	allErrors = append(allErrors, validateSemantic(pb)...)
	allErrors = append(allErrors, ValidateDomain(pb)...)
	if len(allErrors) > 0 {
		return allErrors
	}
	return nil
}

// validateSemantic validates the playbook against the generated JSON Schema.
func validateSemantic(pb *Playbook) []*ValidationError {
	semErr := func(msg string) []*ValidationError {
		return []*ValidationError{{Phase: "semantic", Message: msg, Severity: "error"}}
	}

	data, err := json.Marshal(pb)
	if err != nil {
		return semErr(fmt.Sprintf("marshal for schema validation: %v", err))
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return semErr(fmt.Sprintf("generate schema: %v", err))
	}

	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return semErr(fmt.Sprintf("unmarshal schema: %v", err))
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("playbook-v1.json", schemaDoc); err != nil {
		return semErr(fmt.Sprintf("add schema resource: %v", err))
	}
	sch, err := c.Compile("playbook-v1.json")
	if err != nil {
		return semErr(fmt.Sprintf("compile schema: %v", err))
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return semErr(fmt.Sprintf("unmarshal document: %v", err))
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = semErr(err.Error())
		}
		return errs
	}
	return nil
}

// flattenValidationErrors collects leaf causes from a jsonschema validation error.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var out []*sjsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, flattenValidationErrors(c)...)
	}
	return out
}

// ValidateDomain applies custom Go rules that the JSON Schema cannot express.
func ValidateDomain(pb *Playbook) []*ValidationError {
	var errs []*ValidationError
	domainErr := func(path, msg string) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: path, Message: msg, Severity: "error"})
	}

	if len(pb.Actions) == 0 {
		domainErr("actions", "playbook has no actions")
	}

	// Action order values must be unique, zero-based, and contiguous.
	seen := make(map[int]string, len(pb.Actions))
	ids := make(map[string]bool, len(pb.Actions))
	for i, a := range pb.Actions {
		path := fmt.Sprintf("actions[%d]", i)

		if prev, dup := seen[a.Order]; dup {
			domainErr(path, fmt.Sprintf("duplicate order %d (also used by action %q)", a.Order, prev))
		}
		seen[a.Order] = a.ID

		if a.ID == "" {
			domainErr(path+".id", "action id is required")
		} else if ids[a.ID] {
			domainErr(path+".id", fmt.Sprintf("duplicate action id %q", a.ID))
		}
		ids[a.ID] = true

		switch a.OnError {
		case "", OnErrorFail, OnErrorSkip, OnErrorContinue:
		default:
			domainErr(path+".on_error", fmt.Sprintf("unknown on_error policy %q", a.OnError))
		}

		if a.Retry != nil && a.Retry.Enabled {
			if a.Retry.MaxAttempts < 1 {
				domainErr(path+".retry.max_attempts", "must be >= 1 when retry is enabled")
			}
			if a.Retry.Delay < 0 {
				domainErr(path+".retry.delay", "must not be negative")
			}
		}

		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				domainErr(path+".timeout", fmt.Sprintf("invalid duration %q", a.Timeout))
			}
		}

		if a.Condition != nil {
			errs = append(errs, validateNode(a.Condition, path+".condition")...)
		}
	}
	for n := 0; n < len(pb.Actions); n++ {
		if _, ok := seen[n]; !ok {
			domainErr("actions", fmt.Sprintf("order values must be contiguous from 0: missing order %d", n))
			break
		}
	}

	// Decisions must carry all four naming fields and a valid condition.
	for i, d := range pb.Decisions {
		path := fmt.Sprintf("decisions[%d]", i)
		if d.DecisionPoint == "" {
			domainErr(path+".decision_point", "decision_point is required")
		}
		if d.TruePath == "" {
			domainErr(path+".true_path", "true_path is required")
		}
		if d.FalsePath == "" {
			domainErr(path+".false_path", "false_path is required")
		}
		if d.Condition == nil {
			domainErr(path+".condition", "condition is required")
		} else {
			errs = append(errs, validateNode(d.Condition, path+".condition")...)
		}
	}

	// Governance redaction patterns must compile.
	if pb.Governance != nil {
		for i, r := range pb.Governance.Redact {
			if _, err := regexp.Compile(r.Pattern); err != nil {
				domainErr(fmt.Sprintf("governance.redact[%d].pattern", i), fmt.Sprintf("invalid pattern: %v", err))
			}
		}
	}

	return errs
}

// validateNode checks a decision node's tagged-union shape recursively.
func validateNode(n *DecisionNode, path string) []*ValidationError {
	var errs []*ValidationError
	nodeErr := func(p, msg string) {
		errs = append(errs, &ValidationError{Phase: "domain", Path: p, Message: msg, Severity: "error"})
	}

	switch n.Type {
	case NodeSimple:
		if n.Variable == "" {
			nodeErr(path+".variable", "simple condition requires a variable")
		}
		if n.Operator == "" {
			nodeErr(path+".operator", "simple condition requires an operator")
		}
	case NodeCompound:
		if n.Logic != "AND" && n.Logic != "OR" {
			nodeErr(path+".logic", fmt.Sprintf("compound logic must be AND or OR, got %q", n.Logic))
		}
		for i := range n.Children {
			errs = append(errs, validateNode(&n.Children[i], fmt.Sprintf("%s.children[%d]", path, i))...)
		}
	case NodeRiskBased:
		if n.RiskOperator == "" {
			nodeErr(path+".risk_operator", "risk_based condition requires a risk_operator")
		}
	case NodeExpression:
		if strings.TrimSpace(n.Expression) == "" {
			nodeErr(path+".expression", "expression condition requires an expression")
		}
	default:
		nodeErr(path+".type", fmt.Sprintf("unknown condition type %q", n.Type))
	}
	return errs
}

// HasErrors reports whether any validation error has severity "error".
func HasErrors(errs []*ValidationError) bool {
	for _, e := range errs {
		if e.Severity == "error" {
			return true
		}
	}
	return false
}
