package condition

import (
	"testing"

	"github.com/black-cross/playbook-engine/pkg/schema"
)

func TestNilNodePasses(t *testing.T) {
	if !Evaluate(nil, map[string]any{}) {
		t.Error("nil node should evaluate to true")
	}
}

func TestSimpleOperators(t *testing.T) {
	ctx := map[string]any{
		"severity": "critical",
		"count":    12,
		"alert": map[string]any{
			"source": map[string]any{"ip": "10.0.0.5"},
		},
		"tags": []any{"malware", "c2"},
	}

	tests := []struct {
		name string
		node schema.DecisionNode
		want bool
	}{
		{"equals", schema.DecisionNode{Type: "simple", Variable: "severity", Operator: "equals", Value: "critical"}, true},
		{"equals numeric string", schema.DecisionNode{Type: "simple", Variable: "count", Operator: "equals", Value: "12"}, true},
		{"not_equals", schema.DecisionNode{Type: "simple", Variable: "severity", Operator: "not_equals", Value: "low"}, true},
		{"greater_than", schema.DecisionNode{Type: "simple", Variable: "count", Operator: "greater_than", Value: 10}, true},
		{"less_than false", schema.DecisionNode{Type: "simple", Variable: "count", Operator: "less_than", Value: 10}, false},
		{"greater_or_equal", schema.DecisionNode{Type: "simple", Variable: "count", Operator: "greater_or_equal", Value: 12}, true},
		{"less_or_equal", schema.DecisionNode{Type: "simple", Variable: "count", Operator: "less_or_equal", Value: 12}, true},
		{"dot path", schema.DecisionNode{Type: "simple", Variable: "alert.source.ip", Operator: "equals", Value: "10.0.0.5"}, true},
		{"missing path equals", schema.DecisionNode{Type: "simple", Variable: "alert.dest.ip", Operator: "equals", Value: "x"}, false},
		{"missing path not_equals", schema.DecisionNode{Type: "simple", Variable: "alert.dest.ip", Operator: "not_equals", Value: "x"}, true},
		{"contains", schema.DecisionNode{Type: "simple", Variable: "severity", Operator: "contains", Value: "crit"}, true},
		{"not_contains", schema.DecisionNode{Type: "simple", Variable: "severity", Operator: "not_contains", Value: "low"}, true},
		{"in collection", schema.DecisionNode{Type: "simple", Variable: "severity", Operator: "in", Value: []any{"high", "critical"}}, true},
		{"in non-collection fails closed", schema.DecisionNode{Type: "simple", Variable: "severity", Operator: "in", Value: "critical"}, false},
		{"not_in non-collection", schema.DecisionNode{Type: "simple", Variable: "severity", Operator: "not_in", Value: "critical"}, true},
		{"unknown operator", schema.DecisionNode{Type: "simple", Variable: "severity", Operator: "matches", Value: "critical"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(&tt.node, ctx); got != tt.want {
				t.Errorf("Evaluate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompoundShortCircuit(t *testing.T) {
	ctx := map[string]any{"a": 1, "b": 2}
	pass := schema.DecisionNode{Type: "simple", Variable: "a", Operator: "equals", Value: 1}
	fail := schema.DecisionNode{Type: "simple", Variable: "a", Operator: "equals", Value: 9}

	and := schema.DecisionNode{Type: "compound", Logic: "AND", Children: []schema.DecisionNode{pass, fail}}
	if Evaluate(&and, ctx) {
		t.Error("AND with a failing child should be false")
	}

	or := schema.DecisionNode{Type: "compound", Logic: "OR", Children: []schema.DecisionNode{fail, pass}}
	if !Evaluate(&or, ctx) {
		t.Error("OR with a passing child should be true")
	}
}

func TestVacuousCompound(t *testing.T) {
	and := schema.DecisionNode{Type: "compound", Logic: "AND"}
	if !Evaluate(&and, map[string]any{}) {
		t.Error("empty AND should be a vacuous pass")
	}
	or := schema.DecisionNode{Type: "compound", Logic: "OR"}
	if !Evaluate(&or, map[string]any{}) {
		t.Error("empty OR should be a vacuous pass")
	}
}

func TestRiskBands(t *testing.T) {
	tests := []struct {
		op    string
		score any
		want  bool
	}{
		{"high_risk", 75, true},
		{"high_risk", 70, true},
		{"high_risk", 69, false},
		{"medium_risk", 40, true},
		{"medium_risk", 69, true},
		{"medium_risk", 70, false},
		{"medium_risk", 39, false},
		{"low_risk", 39, true},
		{"low_risk", 40, false},
		{"high_risk", nil, false}, // absent score defaults to 0
		{"low_risk", nil, true},
		{"unknown_band", 99, false},
	}
	for _, tt := range tests {
		ctx := map[string]any{}
		if tt.score != nil {
			ctx["risk_score"] = tt.score
		}
		node := schema.DecisionNode{Type: "risk_based", RiskOperator: tt.op}
		if got := Evaluate(&node, ctx); got != tt.want {
			t.Errorf("%s with score %v = %v, want %v", tt.op, tt.score, got, tt.want)
		}
	}
}

func TestRiskThreshold(t *testing.T) {
	ctx := map[string]any{"risk_score": 60}

	above := schema.DecisionNode{Type: "risk_based", RiskOperator: "above_threshold"}
	if !Evaluate(&above, ctx) {
		t.Error("60 should be above the default threshold of 50")
	}

	above.RiskThreshold = 65
	if Evaluate(&above, ctx) {
		t.Error("60 should not be above an explicit threshold of 65")
	}

	below := schema.DecisionNode{Type: "risk_based", RiskOperator: "below_threshold", RiskThreshold: 65}
	if !Evaluate(&below, ctx) {
		t.Error("60 should be below 65")
	}
}

func TestExpressionCondition(t *testing.T) {
	ctx := map[string]any{"count": 5, "severity": "high"}

	node := schema.DecisionNode{Type: "expression", Expression: `count > 3 && severity == "high"`}
	if !Evaluate(&node, ctx) {
		t.Error("expression should be true")
	}

	// Compile errors fail closed
	node.Expression = "count >>> nonsense("
	if Evaluate(&node, ctx) {
		t.Error("broken expression should fail closed")
	}

	// Non-boolean result fails closed
	node.Expression = "count + 1"
	if Evaluate(&node, ctx) {
		t.Error("non-boolean expression should fail closed")
	}
}

func TestUnknownNodeTypeFailsClosed(t *testing.T) {
	node := schema.DecisionNode{Type: "quantum"}
	if Evaluate(&node, map[string]any{}) {
		t.Error("unknown node type should evaluate to false")
	}
}

func TestResolve(t *testing.T) {
	ctx := map[string]any{
		"a": map[string]any{"b": map[string]any{"c": 42}},
	}
	v, ok := Resolve("a.b.c", ctx)
	if !ok || v != 42 {
		t.Errorf("Resolve(a.b.c) = %v, %v", v, ok)
	}
	if _, ok := Resolve("a.b.c.d", ctx); ok {
		t.Error("resolving through a scalar should fail")
	}
	if _, ok := Resolve("", ctx); ok {
		t.Error("empty path should not resolve")
	}
}
