package policy

import (
	"math"

	simerrors "rtgssim/pkg/errors"
)

// PaymentDecision is the outcome of traversing a payment tree.
type PaymentDecision struct {
	Action      ActionType
	Priority    *int
	TargetTick  *int
	Fraction    float64
}

// BankDecision is the outcome of traversing a bank-level tree.
type BankDecision struct {
	ReleaseBudget int64
	Focus         string
}

// CollateralDecision is the outcome of traversing a strategic or
// end-of-tick collateral tree.
type CollateralDecision struct {
	Action ActionType
	Amount int64
	Reason string
	ScheduleAt *int
}

// StateAction is a SetState/AddState action reachable from any tree kind.
type StateAction struct {
	Key   string
	Value float64
	IsAdd bool
}

// EvalError reports a recoverable evaluation failure for a single
// (agent, transaction) pair. Per §7, the caller's fallback is Hold.
type EvalError struct {
	NodeID string
	Err    error
}

func (e *EvalError) Error() string {
	return e.NodeID + ": " + e.Err.Error()
}

func (e *EvalError) Unwrap() error { return e.Err }

// EvaluateExpression walks an Expression against ctx and returns its
// boolean result.
func EvaluateExpression(expr *Expression, ctx *EvalContext) (bool, error) {
	switch expr.Kind {
	case ExprGreaterThan, ExprLessThan, ExprEqual, ExprNotEqual, ExprGreaterOrEqual, ExprLessOrEqual:
		left, err := EvaluateValue(expr.Left, ctx)
		if err != nil {
			return false, err
		}
		right, err := EvaluateValue(expr.Right, ctx)
		if err != nil {
			return false, err
		}
		switch expr.Kind {
		case ExprGreaterThan:
			return left > right, nil
		case ExprLessThan:
			return left < right, nil
		case ExprEqual:
			return left == right, nil
		case ExprNotEqual:
			return left != right, nil
		case ExprGreaterOrEqual:
			return left >= right, nil
		case ExprLessOrEqual:
			return left <= right, nil
		}
	case ExprAnd:
		for _, sub := range expr.Of {
			ok, err := EvaluateExpression(&sub, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case ExprOr:
		for _, sub := range expr.Of {
			ok, err := EvaluateExpression(&sub, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case ExprNot:
		ok, err := EvaluateExpression(expr.Operand, ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
	return false, simerrors.Wrap(simerrors.ErrInvalidTransaction, "unknown expression kind")
}

// EvaluateValue resolves a Value to a float64 against ctx.
func EvaluateValue(v *Value, ctx *EvalContext) (float64, error) {
	switch v.Kind {
	case ValueLiteral:
		return toFloat(v.Literal), nil
	case ValueField:
		f, ok := ctx.Field(v.Field)
		if !ok {
			return 0, simerrors.Wrap(simerrors.ErrInvalidTransaction, "unknown field: "+v.Field)
		}
		return f, nil
	case ValueParameter:
		// Parameters are merged by the caller into the context's
		// CostRates lookup when it builds the context; see evaluateParameter.
		return evaluateParameter(v.Parameter, ctx)
	case ValueCompute:
		return EvaluateComputation(v.Compute, ctx)
	}
	return 0, simerrors.Wrap(simerrors.ErrInvalidTransaction, "unknown value kind")
}

func evaluateParameter(name string, ctx *EvalContext) (float64, error) {
	if v, ok := ctx.CostRates[name]; ok {
		return v, nil
	}
	return 0, simerrors.Wrap(simerrors.ErrInvalidTransaction, "unknown parameter: "+name)
}

// EvaluateComputation resolves a Computation to a float64.
func EvaluateComputation(c *Computation, ctx *EvalContext) (float64, error) {
	switch c.Op {
	case ComputeAdd, ComputeSub, ComputeMul, ComputeDiv, ComputeSafeDiv, ComputeMin, ComputeMax:
		left, err := EvaluateValue(c.Left, ctx)
		if err != nil {
			return 0, err
		}
		right, err := EvaluateValue(c.Right, ctx)
		if err != nil {
			return 0, err
		}
		switch c.Op {
		case ComputeAdd:
			return left + right, nil
		case ComputeSub:
			return left - right, nil
		case ComputeMul:
			return left * right, nil
		case ComputeDiv:
			if right == 0 {
				return 0, simerrors.ErrDivisionByZero
			}
			return left / right, nil
		case ComputeSafeDiv:
			if right == 0 {
				return c.SafeDivDefault, nil
			}
			return left / right, nil
		case ComputeMin:
			return math.Min(left, right), nil
		case ComputeMax:
			return math.Max(left, right), nil
		}
	case ComputeNeg, ComputeAbs, ComputeCeil, ComputeFloor, ComputeRound:
		operand, err := EvaluateValue(c.Operand, ctx)
		if err != nil {
			return 0, err
		}
		switch c.Op {
		case ComputeNeg:
			return -operand, nil
		case ComputeAbs:
			return math.Abs(operand), nil
		case ComputeCeil:
			return math.Ceil(operand), nil
		case ComputeFloor:
			return math.Floor(operand), nil
		case ComputeRound:
			return math.Round(operand), nil
		}
	case ComputeClamp:
		operand, err := EvaluateValue(c.Operand, ctx)
		if err != nil {
			return 0, err
		}
		lo, err := EvaluateValue(c.Lo, ctx)
		if err != nil {
			return 0, err
		}
		hi, err := EvaluateValue(c.Hi, ctx)
		if err != nil {
			return 0, err
		}
		return math.Min(math.Max(operand, lo), hi), nil
	case ComputeIf:
		ok, err := EvaluateExpression(c.Cond, ctx)
		if err != nil {
			return 0, err
		}
		if ok {
			return EvaluateValue(c.Then, ctx)
		}
		return EvaluateValue(c.Else, ctx)
	}
	return 0, simerrors.Wrap(simerrors.ErrInvalidTransaction, "unknown computation op")
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// traverse walks from root, following Condition branches, until it reaches
// an Action node, returning that node. Depth is not re-checked here —
// Validate already bounds it to 64 before a tree is allowed to run.
func traverse(node *TreeNode, ctx *EvalContext) (*TreeNode, error) {
	for node.Kind == NodeCondition {
		ok, err := EvaluateExpression(&node.Condition, ctx)
		if err != nil {
			return nil, &EvalError{NodeID: node.NodeID, Err: err}
		}
		if ok {
			node = node.OnTrue
		} else {
			node = node.OnFalse
		}
	}
	return node, nil
}

// TraversePaymentTree evaluates root against ctx and builds a
// PaymentDecision from the reached Action node.
func TraversePaymentTree(root *TreeNode, ctx *EvalContext) (PaymentDecision, error) {
	node, err := traverse(root, ctx)
	if err != nil {
		return PaymentDecision{Action: ActionHold}, err
	}
	return buildPaymentDecision(node, ctx)
}

func buildPaymentDecision(node *TreeNode, ctx *EvalContext) (PaymentDecision, error) {
	d := PaymentDecision{Action: node.Action}
	switch node.Action {
	case ActionHold, ActionSubmit, ActionDrop:
		// No parameters needed.
	case ActionRelease:
		if v, ok := node.Parameters["priority"]; ok {
			f, err := EvaluateValue(&v, ctx)
			if err != nil {
				return d, &EvalError{NodeID: node.NodeID, Err: err}
			}
			p := int(f)
			d.Priority = &p
		}
		if v, ok := node.Parameters["target_tick"]; ok {
			f, err := EvaluateValue(&v, ctx)
			if err != nil {
				return d, &EvalError{NodeID: node.NodeID, Err: err}
			}
			t := int(f)
			d.TargetTick = &t
		}
	case ActionSubmitPartial:
		v, ok := node.Parameters["fraction"]
		if !ok {
			return d, &EvalError{NodeID: node.NodeID, Err: simerrors.Wrap(simerrors.ErrInvalidTransaction, "SubmitPartial requires fraction")}
		}
		f, err := EvaluateValue(&v, ctx)
		if err != nil {
			return d, &EvalError{NodeID: node.NodeID, Err: err}
		}
		d.Fraction = f
	}
	return d, nil
}

// TraverseBankTree evaluates root against a bank-level ctx.
func TraverseBankTree(root *TreeNode, ctx *EvalContext) (BankDecision, error) {
	node, err := traverse(root, ctx)
	if err != nil {
		return BankDecision{}, err
	}
	d := BankDecision{}
	if node.Action != ActionSetReleaseBudget {
		return d, nil
	}
	v, ok := node.Parameters["amount"]
	if !ok {
		return d, &EvalError{NodeID: node.NodeID, Err: simerrors.Wrap(simerrors.ErrInvalidTransaction, "SetReleaseBudget requires amount")}
	}
	f, err := EvaluateValue(&v, ctx)
	if err != nil {
		return d, &EvalError{NodeID: node.NodeID, Err: err}
	}
	d.ReleaseBudget = int64(f)
	if focus, ok := node.Parameters["focus"]; ok && focus.Kind == ValueLiteral {
		if s, ok := focus.Literal.(string); ok {
			d.Focus = s
		}
	}
	return d, nil
}

// TraverseCollateralTree evaluates root (strategic or end-of-tick) against
// ctx and builds a CollateralDecision.
func TraverseCollateralTree(root *TreeNode, ctx *EvalContext) (CollateralDecision, error) {
	node, err := traverse(root, ctx)
	if err != nil {
		return CollateralDecision{Action: ActionHoldCollateral}, err
	}
	d := CollateralDecision{Action: node.Action}
	switch node.Action {
	case ActionHoldCollateral:
		return d, nil
	case ActionPostCollateral, ActionWithdrawCollateral:
		v, ok := node.Parameters["amount"]
		if !ok {
			return d, &EvalError{NodeID: node.NodeID, Err: simerrors.Wrap(simerrors.ErrInvalidTransaction, "collateral action requires amount")}
		}
		f, err := EvaluateValue(&v, ctx)
		if err != nil {
			return d, &EvalError{NodeID: node.NodeID, Err: err}
		}
		d.Amount = int64(f)
		if reason, ok := node.Parameters["reason"]; ok && reason.Kind == ValueLiteral {
			if s, ok := reason.Literal.(string); ok {
				d.Reason = s
			}
		}
		if sched, ok := node.Parameters["schedule_at"]; ok {
			f, err := EvaluateValue(&sched, ctx)
			if err != nil {
				return d, &EvalError{NodeID: node.NodeID, Err: err}
			}
			t := int(f)
			d.ScheduleAt = &t
		}
	}
	return d, nil
}

// TraverseStateActions evaluates root looking only for SetState/AddState
// actions, applicable to any tree kind. Returns nil if the reached action
// is not a state action.
func TraverseStateActions(root *TreeNode, ctx *EvalContext) (*StateAction, error) {
	node, err := traverse(root, ctx)
	if err != nil {
		return nil, err
	}
	if node.Action != ActionSetState && node.Action != ActionAddState {
		return nil, nil
	}
	key, ok := node.Parameters["key"]
	if !ok || key.Kind != ValueLiteral {
		return nil, &EvalError{NodeID: node.NodeID, Err: simerrors.Wrap(simerrors.ErrInvalidTransaction, "state action requires literal key")}
	}
	keyStr, _ := key.Literal.(string)
	v, ok := node.Parameters["value"]
	if !ok {
		return nil, &EvalError{NodeID: node.NodeID, Err: simerrors.Wrap(simerrors.ErrInvalidTransaction, "state action requires value")}
	}
	f, err := EvaluateValue(&v, ctx)
	if err != nil {
		return nil, &EvalError{NodeID: node.NodeID, Err: err}
	}
	return &StateAction{Key: keyStr, Value: f, IsAdd: node.Action == ActionAddState}, nil
}
