// Package condition evaluates decision nodes against an execution context.
//
// Evaluation is fail-closed: a malformed node, an unknown operator, or any
// internal error yields false rather than an error, so a bad condition can
// never abort a running execution.
package condition

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/black-cross/playbook-engine/pkg/schema"
)

// DefaultRiskThreshold is used by above_threshold/below_threshold when the
// node does not set one.
const DefaultRiskThreshold = 50

// Risk band boundaries for high_risk/medium_risk/low_risk.
const (
	highRiskFloor   = 70
	mediumRiskFloor = 40
)

// Evaluate evaluates a decision node against the context.
// A nil node evaluates to true (unconditional pass).
func Evaluate(node *schema.DecisionNode, ctx map[string]any) (result bool) {
	if node == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			result = false
		}
	}()

	switch node.Type {
	case schema.NodeSimple:
		return evalSimple(node, ctx)
	case schema.NodeCompound:
		return evalCompound(node, ctx)
	case schema.NodeRiskBased:
		return evalRisk(node, ctx)
	case schema.NodeExpression:
		return evalExpression(node, ctx)
	default:
		return false
	}
}

// evalSimple resolves the variable via dot-path lookup and compares it
// against the node's literal value.
func evalSimple(node *schema.DecisionNode, ctx map[string]any) bool {
	left, _ := Resolve(node.Variable, ctx)

	switch node.Operator {
	case schema.OpEquals:
		return looseEqual(left, node.Value)
	case schema.OpNotEquals:
		return !looseEqual(left, node.Value)
	case schema.OpGreaterThan:
		return compareNumeric(left, node.Value, func(a, b float64) bool { return a > b })
	case schema.OpLessThan:
		return compareNumeric(left, node.Value, func(a, b float64) bool { return a < b })
	case schema.OpGreaterOrEqual:
		return compareNumeric(left, node.Value, func(a, b float64) bool { return a >= b })
	case schema.OpLessOrEqual:
		return compareNumeric(left, node.Value, func(a, b float64) bool { return a <= b })
	case schema.OpContains:
		return strings.Contains(toString(left), toString(node.Value))
	case schema.OpNotContains:
		return !strings.Contains(toString(left), toString(node.Value))
	case schema.OpIn:
		coll, ok := toCollection(node.Value)
		if !ok {
			return false // fails closed: non-collection right side
		}
		return collectionContains(coll, left)
	case schema.OpNotIn:
		coll, ok := toCollection(node.Value)
		if !ok {
			return true
		}
		return !collectionContains(coll, left)
	default:
		return false
	}
}

// evalCompound short-circuits AND on the first failing child and OR on the
// first passing child. Empty children is a vacuous pass.
func evalCompound(node *schema.DecisionNode, ctx map[string]any) bool {
	if len(node.Children) == 0 {
		return true
	}
	switch node.Logic {
	case "AND":
		for i := range node.Children {
			if !Evaluate(&node.Children[i], ctx) {
				return false
			}
		}
		return true
	case "OR":
		for i := range node.Children {
			if Evaluate(&node.Children[i], ctx) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// evalRisk reads the numeric risk_score from the context (0 if absent).
func evalRisk(node *schema.DecisionNode, ctx map[string]any) bool {
	score := 0.0
	if raw, ok := ctx["risk_score"]; ok {
		if f, ok := toFloat(raw); ok {
			score = f
		}
	}

	threshold := node.RiskThreshold
	if threshold == 0 {
		threshold = DefaultRiskThreshold
	}

	switch node.RiskOperator {
	case schema.RiskHigh:
		return score >= highRiskFloor
	case schema.RiskMedium:
		return score >= mediumRiskFloor && score < highRiskFloor
	case schema.RiskLow:
		return score < mediumRiskFloor
	case schema.RiskAboveThreshold:
		return score > threshold
	case schema.RiskBelowThreshold:
		return score < threshold
	default:
		return false
	}
}

// evalExpression compiles and runs an expr-lang expression over the context.
// Compile or runtime errors fail closed.
func evalExpression(node *schema.DecisionNode, ctx map[string]any) bool {
	program, err := expr.Compile(node.Expression, expr.Env(ctx), expr.AsBool())
	if err != nil {
		return false
	}
	out, err := expr.Run(program, ctx)
	if err != nil {
		return false
	}
	b, ok := out.(bool)
	return ok && b
}

// Resolve walks a dot-path (e.g. "alert.source.ip") into nested maps.
// A missing path returns (nil, false); it is not an error.
func Resolve(path string, ctx map[string]any) (any, bool) {
	if path == "" {
		return nil, false
	}
	var current any = ctx
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// looseEqual compares numerically when both sides are numeric, otherwise by
// string coercion. nil equals only nil.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return toString(a) == toString(b)
}

// compareNumeric applies cmp when both sides coerce to float64, else false.
func compareNumeric(a, b any, cmp func(a, b float64) bool) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return false
	}
	return cmp(af, bf)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// toCollection normalizes the right side of in/not_in to a []any.
func toCollection(v any) ([]any, bool) {
	switch c := v.(type) {
	case []any:
		return c, true
	case []string:
		out := make([]any, len(c))
		for i, s := range c {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func collectionContains(coll []any, v any) bool {
	for _, item := range coll {
		if looseEqual(item, v) {
			return true
		}
	}
	return false
}
