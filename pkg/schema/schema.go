// Package schema defines the Go struct types for the playbook YAML schema
// and provides strict YAML parsing.
package schema

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Playbook statuses.
const (
	PlaybookDraft    = "draft"
	PlaybookActive   = "active"
	PlaybookDisabled = "disabled"
	PlaybookArchived = "archived"
)

// On-error policies for an action.
const (
	OnErrorFail     = "fail"
	OnErrorSkip     = "skip"
	OnErrorContinue = "continue"
)

// Playbook is the top-level document defining an automated response procedure.
type Playbook struct {
	APIVersion        string            `yaml:"apiVersion"          json:"apiVersion"          jsonschema:"required,enum=playbook/v1"`
	ID                string            `yaml:"id"                  json:"id"                  jsonschema:"required"`
	Name              string            `yaml:"name"                json:"name"                jsonschema:"required"`
	Description       string            `yaml:"description,omitempty" json:"description,omitempty"`
	Status            string            `yaml:"status,omitempty"    json:"status,omitempty"    jsonschema:"enum=draft,enum=active,enum=disabled,enum=archived"`
	Version           int               `yaml:"version,omitempty"   json:"version,omitempty"`
	ApprovalsRequired bool              `yaml:"approvals_required,omitempty" json:"approvals_required,omitempty"`
	Vars              map[string]string `yaml:"vars,omitempty"      json:"vars,omitempty"`
	Governance        *GovernancePolicy `yaml:"governance,omitempty" json:"governance,omitempty"`
	Actions           []Action          `yaml:"actions"             json:"actions"             jsonschema:"required"`
	Decisions         []Decision        `yaml:"decisions,omitempty" json:"decisions,omitempty"`
	Stats             PlaybookStats     `yaml:"stats,omitempty"     json:"stats,omitempty"`
}

// PlaybookStats holds aggregate counters maintained across executions.
// Updated only by the stats recorder after an execution finishes.
type PlaybookStats struct {
	ExecutionCount       int64   `yaml:"execution_count,omitempty"  json:"execution_count,omitempty"`
	SuccessCount         int64   `yaml:"success_count,omitempty"    json:"success_count,omitempty"`
	FailureCount         int64   `yaml:"failure_count,omitempty"    json:"failure_count,omitempty"`
	AverageExecutionTime float64 `yaml:"average_execution_time,omitempty" json:"average_execution_time,omitempty"` // seconds
}

// Action is one executable operation within a playbook.
// Immutable once an execution has started consuming it.
type Action struct {
	ID         string         `yaml:"id"                   json:"id"                   jsonschema:"required"`
	Name       string         `yaml:"name"                 json:"name"                 jsonschema:"required"`
	Type       string         `yaml:"type"                 json:"type"                 jsonschema:"required"`
	Order      int            `yaml:"order"                json:"order"`
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Condition  *DecisionNode  `yaml:"condition,omitempty"  json:"condition,omitempty"`
	OnError    string         `yaml:"on_error,omitempty"   json:"on_error,omitempty"   jsonschema:"enum=fail,enum=skip,enum=continue"`
	Retry      *RetryPolicy   `yaml:"retry,omitempty"      json:"retry,omitempty"`
	Timeout    string         `yaml:"timeout,omitempty"    json:"timeout,omitempty"` // e.g. "30s"; empty means no timeout
}

// OnErrorPolicy returns the effective error policy, defaulting to fail.
func (a Action) OnErrorPolicy() string {
	if a.OnError == "" {
		return OnErrorFail
	}
	return a.OnError
}

// RetryPolicy bounds re-attempts of a failing action.
type RetryPolicy struct {
	Enabled     bool `yaml:"enabled"                json:"enabled"`
	MaxAttempts int  `yaml:"max_attempts,omitempty" json:"max_attempts,omitempty"`
	Delay       int  `yaml:"delay,omitempty"        json:"delay,omitempty"` // seconds between attempts
}

// Condition node kinds.
const (
	NodeSimple     = "simple"
	NodeCompound   = "compound"
	NodeRiskBased  = "risk_based"
	NodeExpression = "expression"
)

// Simple condition operators.
const (
	OpEquals         = "equals"
	OpNotEquals      = "not_equals"
	OpGreaterThan    = "greater_than"
	OpLessThan       = "less_than"
	OpGreaterOrEqual = "greater_or_equal"
	OpLessOrEqual    = "less_or_equal"
	OpContains       = "contains"
	OpNotContains    = "not_contains"
	OpIn             = "in"
	OpNotIn          = "not_in"
)

// Risk operators.
const (
	RiskHigh           = "high_risk"
	RiskMedium         = "medium_risk"
	RiskLow            = "low_risk"
	RiskAboveThreshold = "above_threshold"
	RiskBelowThreshold = "below_threshold"
)

// DecisionNode is a boolean expression evaluated against an execution context.
// It is a tagged union on Type: exactly one kind's fields are meaningful.
// Read-only once attached to a playbook or decision point.
type DecisionNode struct {
	Type string `yaml:"type" json:"type" jsonschema:"required,enum=simple,enum=compound,enum=risk_based,enum=expression"`

	// simple: dot-path comparison against a literal value.
	Variable string `yaml:"variable,omitempty" json:"variable,omitempty"`
	Operator string `yaml:"operator,omitempty" json:"operator,omitempty"`
	Value    any    `yaml:"value,omitempty"    json:"value,omitempty"`

	// compound: AND/OR over child nodes.
	Logic    string         `yaml:"logic,omitempty"    json:"logic,omitempty" jsonschema:"enum=AND,enum=OR"`
	Children []DecisionNode `yaml:"children,omitempty" json:"children,omitempty"`

	// risk_based: compares the numeric risk_score context value.
	RiskOperator  string  `yaml:"risk_operator,omitempty"  json:"risk_operator,omitempty"`
	RiskThreshold float64 `yaml:"risk_threshold,omitempty" json:"risk_threshold,omitempty"`

	// expression: an expr-lang expression over the context.
	Expression string `yaml:"expression,omitempty" json:"expression,omitempty"`
}

// Decision is a named decision point attached to a playbook, resolving to
// one of two paths depending on its condition.
type Decision struct {
	ID            string        `yaml:"id"             json:"id"`
	DecisionPoint string        `yaml:"decision_point" json:"decision_point" jsonschema:"required"`
	Condition     *DecisionNode `yaml:"condition"      json:"condition"      jsonschema:"required"`
	TruePath      string        `yaml:"true_path"      json:"true_path"      jsonschema:"required"`
	FalsePath     string        `yaml:"false_path"     json:"false_path"     jsonschema:"required"`
	CreatedAt     time.Time     `yaml:"created_at,omitempty" json:"created_at,omitempty"`
}

// GovernancePolicy defines safety rules evaluated before and during execution.
type GovernancePolicy struct {
	AllowedActions []string        `yaml:"allowed_actions,omitempty" json:"allowed_actions,omitempty"`
	DeniedActions  []string        `yaml:"denied_actions,omitempty"  json:"denied_actions,omitempty"`
	Redact         []RedactionRule `yaml:"redact,omitempty"          json:"redact,omitempty"`
}

// RedactionRule replaces matches of Pattern with Replace in action output
// before it is logged or traced.
type RedactionRule struct {
	Pattern string `yaml:"pattern" json:"pattern" jsonschema:"required"`
	Replace string `yaml:"replace" json:"replace" jsonschema:"required"`
}

// Load parses a playbook from a reader with strict field checking.
// Unknown fields are an error.
func Load(r io.Reader) (*Playbook, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var pb Playbook
	if err := dec.Decode(&pb); err != nil {
		return nil, fmt.Errorf("parse playbook: %w", err)
	}
	if pb.Status == "" {
		pb.Status = PlaybookDraft
	}
	return &pb, nil
}

// LoadFile reads and parses a playbook YAML file.
func LoadFile(path string) (*Playbook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open playbook: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// SortedActions returns the playbook's actions ordered by ascending order
// value. The sort is stable; the playbook itself is not mutated.
func (p *Playbook) SortedActions() []Action {
	out := make([]Action, len(p.Actions))
	copy(out, p.Actions)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Order > out[j].Order; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// FindDecision returns the decision with the given id, or nil.
func (p *Playbook) FindDecision(id string) *Decision {
	for i := range p.Decisions {
		if p.Decisions[i].ID == id {
			return &p.Decisions[i]
		}
	}
	return nil
}
