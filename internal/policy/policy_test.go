package policy

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	simerrors "rtgssim/pkg/errors"
)

func literal(v interface{}) *Value {
	return &Value{Kind: ValueLiteral, Literal: v}
}

func field(name string) *Value {
	return &Value{Kind: ValueField, Field: name}
}

func TestTraversePaymentTree_Submit(t *testing.T) {
	root := &TreeNode{Kind: NodeAction, NodeID: "a1", Action: ActionSubmit}
	ctx := &EvalContext{}

	decision, err := TraversePaymentTree(root, ctx)
	require.NoError(t, err)
	assert.Equal(t, ActionSubmit, decision.Action)
}

func TestTraversePaymentTree_ConditionBranches(t *testing.T) {
	submit := &TreeNode{Kind: NodeAction, NodeID: "submit", Action: ActionSubmit}
	hold := &TreeNode{Kind: NodeAction, NodeID: "hold", Action: ActionHold}
	root := &TreeNode{
		Kind:   NodeCondition,
		NodeID: "c1",
		Condition: Expression{
			Kind:  ExprGreaterThan,
			Left:  field("available_liquidity"),
			Right: literal(float64(100)),
		},
		OnTrue:  submit,
		OnFalse: hold,
	}

	decision, err := TraversePaymentTree(root, &EvalContext{AvailableLiquidity: 500})
	require.NoError(t, err)
	assert.Equal(t, ActionSubmit, decision.Action)

	decision, err = TraversePaymentTree(root, &EvalContext{AvailableLiquidity: 10})
	require.NoError(t, err)
	assert.Equal(t, ActionHold, decision.Action)
}

func TestEvaluateComputation_Div(t *testing.T) {
	c := &Computation{Op: ComputeDiv, Left: literal(10.0), Right: literal(0.0)}
	_, err := EvaluateComputation(c, &EvalContext{})
	assert.ErrorIs(t, err, simerrors.ErrDivisionByZero)
}

func TestEvaluateComputation_SafeDiv(t *testing.T) {
	c := &Computation{Op: ComputeSafeDiv, Left: literal(10.0), Right: literal(0.0), SafeDivDefault: -1}
	v, err := EvaluateComputation(c, &EvalContext{})
	require.NoError(t, err)
	assert.Equal(t, -1.0, v)
}

func TestEvaluateComputation_ClampAndIf(t *testing.T) {
	clamp := &Computation{Op: ComputeClamp, Operand: literal(150.0), Lo: literal(0.0), Hi: literal(100.0)}
	v, err := EvaluateComputation(clamp, &EvalContext{})
	require.NoError(t, err)
	assert.Equal(t, 100.0, v)

	ifExpr := &Computation{
		Op: ComputeIf,
		Cond: &Expression{
			Kind:  ExprGreaterThan,
			Left:  field("balance"),
			Right: literal(0.0),
		},
		Then: literal(1.0),
		Else: literal(-1.0),
	}
	v, err = EvaluateComputation(ifExpr, &EvalContext{Balance: 500})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestValidate_DuplicateNodeID(t *testing.T) {
	leaf := &TreeNode{Kind: NodeAction, NodeID: "dup", Action: ActionSubmit}
	root := &TreeNode{
		Kind:      NodeCondition,
		NodeID:    "c1",
		Condition: Expression{Kind: ExprEqual, Left: literal(1.0), Right: literal(1.0)},
		OnTrue:    leaf,
		OnFalse:   &TreeNode{Kind: NodeAction, NodeID: "dup", Action: ActionHold},
	}
	def := &DecisionTreeDef{PolicyID: "p1", Version: "1.0", PaymentTree: root}

	result := Validate(def)
	assert.False(t, result.Valid)
	assertHasKind(t, result.Errors, DuplicateNodeID)
}

func TestValidate_UnreachableAction(t *testing.T) {
	root := &TreeNode{
		Kind:      NodeCondition,
		NodeID:    "c1",
		Condition: Expression{Kind: ExprEqual, Left: literal(1.0), Right: literal(1.0)},
	}
	def := &DecisionTreeDef{PolicyID: "p1", Version: "1.0", PaymentTree: root}

	result := Validate(def)
	assert.False(t, result.Valid)
	assertHasKind(t, result.Errors, UnreachableAction)
}

func TestValidate_InvalidFieldReference(t *testing.T) {
	root := &TreeNode{
		Kind:   NodeCondition,
		NodeID: "c1",
		Condition: Expression{
			Kind:  ExprGreaterThan,
			Left:  field("not_a_real_field"),
			Right: literal(1.0),
		},
		OnTrue:  &TreeNode{Kind: NodeAction, NodeID: "a", Action: ActionSubmit},
		OnFalse: &TreeNode{Kind: NodeAction, NodeID: "b", Action: ActionHold},
	}
	def := &DecisionTreeDef{PolicyID: "p1", Version: "1.0", PaymentTree: root}

	result := Validate(def)
	assert.False(t, result.Valid)
	assertHasKind(t, result.Errors, InvalidFieldReference)
}

func TestValidate_DivisionByZeroRisk(t *testing.T) {
	root := &TreeNode{
		Kind:   NodeAction,
		NodeID: "a",
		Action: ActionSetState,
		Parameters: map[string]ValueOrCompute{
			"key": *literal("bank_state_x"),
			"value": {Kind: ValueCompute, Compute: &Computation{
				Op:    ComputeDiv,
				Left:  literal(1.0),
				Right: field("balance"),
			}},
		},
	}
	def := &DecisionTreeDef{PolicyID: "p1", Version: "1.0", PaymentTree: root}

	result := Validate(def)
	assert.False(t, result.Valid)
	assertHasKind(t, result.Errors, DivisionByZeroRisk)
}

func TestValidate_ExcessiveDepth(t *testing.T) {
	var node *TreeNode = &TreeNode{Kind: NodeAction, NodeID: "leaf", Action: ActionSubmit}
	for i := 0; i < MaxTreeDepth+2; i++ {
		node = &TreeNode{
			Kind:      NodeCondition,
			NodeID:    "c",
			Condition: Expression{Kind: ExprEqual, Left: literal(1.0), Right: literal(1.0)},
			OnTrue:    node,
			OnFalse:   &TreeNode{Kind: NodeAction, NodeID: "fallback", Action: ActionHold},
		}
	}
	// Re-key node_ids to avoid spurious duplicate errors masking the depth check.
	relabel(node, 0)
	def := &DecisionTreeDef{PolicyID: "p1", Version: "1.0", PaymentTree: node}

	result := Validate(def)
	assert.False(t, result.Valid)
	assertHasKind(t, result.Errors, ExcessiveDepth)
}

func relabel(n *TreeNode, depth int) {
	n.NodeID = "n" + strconv.Itoa(depth)
	if n.Kind == NodeCondition {
		if n.OnTrue != nil {
			relabel(n.OnTrue, depth+1)
		}
		if n.OnFalse != nil {
			relabel(n.OnFalse, depth+1)
		}
	}
}

func assertHasKind(t *testing.T, errs []ValidationError, kind ValidationErrorKind) {
	t.Helper()
	for _, e := range errs {
		if e.Kind == kind {
			return
		}
	}
	t.Fatalf("expected a %s validation error, got %+v", kind, errs)
}

func TestNewFIFOPolicy_Valid(t *testing.T) {
	def := NewFIFOPolicy("fifo")
	result := Validate(def)
	assert.True(t, result.Valid, "%+v", result.Errors)
}

func TestNewDeadlinePressurePolicy_Valid(t *testing.T) {
	def := NewDeadlinePressurePolicy("pressure")
	result := Validate(def)
	assert.True(t, result.Valid, "%+v", result.Errors)
}

func TestTraverseBankTree_SetReleaseBudgetWithFocus(t *testing.T) {
	root := &TreeNode{
		Kind:   NodeAction,
		NodeID: "budget",
		Action: ActionSetReleaseBudget,
		Parameters: map[string]ValueOrCompute{
			"amount": *literal(float64(50_000)),
			"focus":  *literal("B"),
		},
	}

	decision, err := TraverseBankTree(root, &EvalContext{})
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), decision.ReleaseBudget)
	assert.Equal(t, "B", decision.Focus)
}

func TestTraverseBankTree_SetReleaseBudgetWithoutFocus(t *testing.T) {
	root := &TreeNode{
		Kind:   NodeAction,
		NodeID: "budget",
		Action: ActionSetReleaseBudget,
		Parameters: map[string]ValueOrCompute{
			"amount": *literal(float64(10_000)),
		},
	}

	decision, err := TraverseBankTree(root, &EvalContext{})
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), decision.ReleaseBudget)
	assert.Empty(t, decision.Focus)
}
