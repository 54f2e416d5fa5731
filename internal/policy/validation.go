package policy

import "fmt"

// ValidationErrorKind is one of the error kinds named in spec §6: the
// validator's report uses these exact names so they can be surfaced
// verbatim to a policy author.
type ValidationErrorKind string

const (
	DuplicateNodeID           ValidationErrorKind = "DuplicateNodeId"
	ExcessiveDepth            ValidationErrorKind = "ExcessiveDepth"
	InvalidFieldReference     ValidationErrorKind = "InvalidFieldReference"
	InvalidParameterReference ValidationErrorKind = "InvalidParameterReference"
	DivisionByZeroRisk        ValidationErrorKind = "DivisionByZeroRisk"
	UnreachableAction         ValidationErrorKind = "UnreachableAction"
)

// MaxTreeDepth is the maximum depth a tree may reach before validation
// rejects it.
const MaxTreeDepth = 64

// ValidationError is a single finding from Validate.
type ValidationError struct {
	Kind   ValidationErrorKind
	NodeID string
	Detail string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.NodeID, e.Detail)
}

// ValidationResult is the structured report returned by Validate.
type ValidationResult struct {
	Valid  bool
	Errors []ValidationError
}

// Validate runs every static check in §4.5 against a tree: unique node
// ids, bounded depth, recognized field references, declared parameter
// references, statically-flagged division-by-zero risk, and reachability
// of at least one Action beneath every Condition.
func Validate(def *DecisionTreeDef) ValidationResult {
	v := &validator{
		seen:       make(map[string]bool),
		bankLevel:  false,
		parameters: def.Parameters,
	}

	trees := []struct {
		node      *TreeNode
		bankLevel bool
	}{
		{def.PaymentTree, false},
		{def.BankTree, true},
		{def.StrategicCollateralTree, true},
		{def.EndOfTickCollateralTree, true},
	}

	for _, t := range trees {
		if t.node == nil {
			continue
		}
		v.bankLevel = t.bankLevel
		v.walk(t.node, 1)
	}

	return ValidationResult{Valid: len(v.errors) == 0, Errors: v.errors}
}

type validator struct {
	seen       map[string]bool
	bankLevel  bool
	parameters map[string]float64
	errors     []ValidationError
}

func (v *validator) walk(node *TreeNode, depth int) bool {
	if depth > MaxTreeDepth {
		v.errors = append(v.errors, ValidationError{Kind: ExcessiveDepth, NodeID: node.NodeID, Detail: "tree depth exceeds 64"})
		return false
	}
	if v.seen[node.NodeID] {
		v.errors = append(v.errors, ValidationError{Kind: DuplicateNodeID, NodeID: node.NodeID, Detail: "duplicate node_id"})
	}
	v.seen[node.NodeID] = true

	if node.Kind == NodeAction {
		v.checkParameters(node)
		return true
	}

	v.checkExpression(node.NodeID, &node.Condition)

	trueReachable := node.OnTrue != nil && v.walk(node.OnTrue, depth+1)
	falseReachable := node.OnFalse != nil && v.walk(node.OnFalse, depth+1)

	if !trueReachable && !falseReachable {
		v.errors = append(v.errors, ValidationError{Kind: UnreachableAction, NodeID: node.NodeID, Detail: "no reachable action beneath this condition"})
	}
	return trueReachable || falseReachable
}

func (v *validator) checkExpression(nodeID string, expr *Expression) {
	switch expr.Kind {
	case ExprGreaterThan, ExprLessThan, ExprEqual, ExprNotEqual, ExprGreaterOrEqual, ExprLessOrEqual:
		v.checkValue(nodeID, expr.Left)
		v.checkValue(nodeID, expr.Right)
	case ExprAnd, ExprOr:
		for i := range expr.Of {
			v.checkExpression(nodeID, &expr.Of[i])
		}
	case ExprNot:
		v.checkExpression(nodeID, expr.Operand)
	}
}

func (v *validator) checkValue(nodeID string, val *Value) {
	if val == nil {
		return
	}
	switch val.Kind {
	case ValueField:
		if !knownField(val.Field, v.bankLevel) {
			v.errors = append(v.errors, ValidationError{Kind: InvalidFieldReference, NodeID: nodeID, Detail: "unrecognized field: " + val.Field})
		}
	case ValueParameter:
		if _, ok := v.parameters[val.Parameter]; !ok {
			v.errors = append(v.errors, ValidationError{Kind: InvalidParameterReference, NodeID: nodeID, Detail: "undeclared parameter: " + val.Parameter})
		}
	case ValueCompute:
		v.checkComputation(nodeID, val.Compute)
	}
}

func (v *validator) checkComputation(nodeID string, c *Computation) {
	if c == nil {
		return
	}
	switch c.Op {
	case ComputeAdd, ComputeSub, ComputeMul, ComputeMin, ComputeMax:
		v.checkValue(nodeID, c.Left)
		v.checkValue(nodeID, c.Right)
	case ComputeDiv:
		v.checkValue(nodeID, c.Left)
		v.checkValue(nodeID, c.Right)
		if !isGuardedAgainstZero(c.Right) {
			v.errors = append(v.errors, ValidationError{Kind: DivisionByZeroRisk, NodeID: nodeID, Detail: "Div is not statically guarded against a zero divisor; use SafeDiv"})
		}
	case ComputeSafeDiv:
		v.checkValue(nodeID, c.Left)
		v.checkValue(nodeID, c.Right)
	case ComputeNeg, ComputeAbs, ComputeCeil, ComputeFloor, ComputeRound:
		v.checkValue(nodeID, c.Operand)
	case ComputeClamp:
		v.checkValue(nodeID, c.Operand)
		v.checkValue(nodeID, c.Lo)
		v.checkValue(nodeID, c.Hi)
	case ComputeIf:
		v.checkExpression(nodeID, c.Cond)
		v.checkValue(nodeID, c.Then)
		v.checkValue(nodeID, c.Else)
	}
}

// isGuardedAgainstZero recognizes the one static shape the validator can
// prove safe without running the tree: a literal non-zero divisor. Any
// field-, parameter-, or computation-derived divisor is flagged — the
// author should use SafeDiv or a null-guarding condition instead.
func isGuardedAgainstZero(divisor *Value) bool {
	if divisor == nil {
		return false
	}
	if divisor.Kind != ValueLiteral {
		return false
	}
	switch n := divisor.Literal.(type) {
	case float64:
		return n != 0
	case int:
		return n != 0
	case int64:
		return n != 0
	}
	return false
}

func (v *validator) checkParameters(node *TreeNode) {
	for _, val := range node.Parameters {
		valCopy := val
		v.checkValue(node.NodeID, &valCopy)
	}
}

func knownField(name string, bankLevel bool) bool {
	for _, n := range KnownFieldNames(bankLevel) {
		if n == name {
			return true
		}
	}
	// Cost-rate and state-register names are dynamic (depend on config /
	// per-agent registers); the validator accepts any bank_state_-prefixed
	// name and any name ending in a cost-rate suffix, and rejects the rest.
	if len(name) >= len("bank_state_") && name[:len("bank_state_")] == "bank_state_" {
		return true
	}
	return isLikelyCostRateName(name)
}

// isLikelyCostRateName is a permissive check: cost-rate field names are
// config-driven and not enumerable here without importing package costs
// (which would create an import cycle), so any snake_case identifier
// ending in a recognized cost-rate suffix is accepted.
func isLikelyCostRateName(name string) bool {
	suffixes := []string{"_bps", "_bps_per_tick", "_cost_per_tick_per_cent", "_multiplier", "_penalty", "_cost", "_rate"}
	for _, suf := range suffixes {
		if len(name) > len(suf) && name[len(name)-len(suf):] == suf {
			return true
		}
	}
	return false
}
