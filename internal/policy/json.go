package policy

import (
	"encoding/json"
	"fmt"
)

// This file implements the JSON encoding for the policy tree types. The
// wire format mirrors the tagged-union shape used throughout the rest of
// the scenario/event configuration (a "type" discriminator field), so a
// policy author sees one consistent JSON dialect across the whole config.

type jsonDecisionTreeDef struct {
	PolicyID                string             `json:"policy_id"`
	Version                 string             `json:"version"`
	Description             string             `json:"description,omitempty"`
	PaymentTree             *TreeNode          `json:"payment_tree,omitempty"`
	BankTree                *TreeNode          `json:"bank_tree,omitempty"`
	StrategicCollateralTree *TreeNode          `json:"strategic_collateral_tree,omitempty"`
	EndOfTickCollateralTree *TreeNode          `json:"end_of_tick_collateral_tree,omitempty"`
	Parameters              map[string]float64 `json:"parameters,omitempty"`
}

func (d jsonDecisionTreeDef) toDomain() *DecisionTreeDef {
	return &DecisionTreeDef{
		PolicyID:                d.PolicyID,
		Version:                 d.Version,
		Description:             d.Description,
		PaymentTree:             d.PaymentTree,
		BankTree:                d.BankTree,
		StrategicCollateralTree: d.StrategicCollateralTree,
		EndOfTickCollateralTree: d.EndOfTickCollateralTree,
		Parameters:              d.Parameters,
	}
}

// --- TreeNode ---

type treeNodeWire struct {
	NodeID      string                     `json:"node_id"`
	Type        string                     `json:"type"`
	Description string                     `json:"description,omitempty"`
	Condition   *json.RawMessage           `json:"condition,omitempty"`
	OnTrue      *TreeNode                  `json:"on_true,omitempty"`
	OnFalse     *TreeNode                  `json:"on_false,omitempty"`
	Action      string                     `json:"action,omitempty"`
	Parameters  map[string]json.RawMessage `json:"parameters,omitempty"`
}

func (n *TreeNode) UnmarshalJSON(data []byte) error {
	var w treeNodeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	n.NodeID = w.NodeID
	switch w.Type {
	case "condition":
		n.Kind = NodeCondition
		n.Description = w.Description
		if w.Condition == nil {
			return fmt.Errorf("policy: condition node %s missing condition", n.NodeID)
		}
		var expr Expression
		if err := json.Unmarshal(*w.Condition, &expr); err != nil {
			return err
		}
		n.Condition = expr
		n.OnTrue = w.OnTrue
		n.OnFalse = w.OnFalse
	case "action":
		n.Kind = NodeAction
		action, err := parseActionType(w.Action)
		if err != nil {
			return err
		}
		n.Action = action
		if len(w.Parameters) > 0 {
			n.Parameters = make(map[string]ValueOrCompute, len(w.Parameters))
			for k, raw := range w.Parameters {
				var v Value
				if err := json.Unmarshal(raw, &v); err != nil {
					return err
				}
				n.Parameters[k] = v
			}
		}
	default:
		return fmt.Errorf("policy: unknown tree node type %q", w.Type)
	}
	return nil
}

func (n TreeNode) MarshalJSON() ([]byte, error) {
	w := treeNodeWire{NodeID: n.NodeID}
	switch n.Kind {
	case NodeCondition:
		w.Type = "condition"
		w.Description = n.Description
		raw, err := json.Marshal(n.Condition)
		if err != nil {
			return nil, err
		}
		rm := json.RawMessage(raw)
		w.Condition = &rm
		w.OnTrue = n.OnTrue
		w.OnFalse = n.OnFalse
	case NodeAction:
		w.Type = "action"
		w.Action = n.Action.String()
		if len(n.Parameters) > 0 {
			w.Parameters = make(map[string]json.RawMessage, len(n.Parameters))
			for k, v := range n.Parameters {
				raw, err := json.Marshal(v)
				if err != nil {
					return nil, err
				}
				w.Parameters[k] = raw
			}
		}
	}
	return json.Marshal(w)
}

func parseActionType(s string) (ActionType, error) {
	switch s {
	case "Hold":
		return ActionHold, nil
	case "Release":
		return ActionRelease, nil
	case "Submit":
		return ActionSubmit, nil
	case "SubmitPartial":
		return ActionSubmitPartial, nil
	case "Drop":
		return ActionDrop, nil
	case "SetReleaseBudget":
		return ActionSetReleaseBudget, nil
	case "PostCollateral":
		return ActionPostCollateral, nil
	case "WithdrawCollateral":
		return ActionWithdrawCollateral, nil
	case "HoldCollateral":
		return ActionHoldCollateral, nil
	case "SetState":
		return ActionSetState, nil
	case "AddState":
		return ActionAddState, nil
	default:
		return 0, fmt.Errorf("policy: unknown action type %q", s)
	}
}

// --- Expression ---

type expressionWire struct {
	Type    string           `json:"type"`
	Left    *json.RawMessage `json:"left,omitempty"`
	Right   *json.RawMessage `json:"right,omitempty"`
	Of      json.RawMessage  `json:"of,omitempty"`
	Operand *json.RawMessage `json:"operand,omitempty"`
}

var expressionKindNames = map[string]ExpressionKind{
	"greater_than":    ExprGreaterThan,
	"less_than":       ExprLessThan,
	"equal":           ExprEqual,
	"not_equal":       ExprNotEqual,
	"greater_or_equal": ExprGreaterOrEqual,
	"less_or_equal":   ExprLessOrEqual,
	"and":             ExprAnd,
	"or":              ExprOr,
	"not":             ExprNot,
}

var expressionKindWireNames = func() map[ExpressionKind]string {
	m := make(map[ExpressionKind]string, len(expressionKindNames))
	for k, v := range expressionKindNames {
		m[v] = k
	}
	return m
}()

func (e *Expression) UnmarshalJSON(data []byte) error {
	var w expressionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	kind, ok := expressionKindNames[w.Type]
	if !ok {
		return fmt.Errorf("policy: unknown expression type %q", w.Type)
	}
	e.Kind = kind
	switch kind {
	case ExprGreaterThan, ExprLessThan, ExprEqual, ExprNotEqual, ExprGreaterOrEqual, ExprLessOrEqual:
		if w.Left == nil || w.Right == nil {
			return fmt.Errorf("policy: comparison expression missing left/right")
		}
		var left, right Value
		if err := json.Unmarshal(*w.Left, &left); err != nil {
			return err
		}
		if err := json.Unmarshal(*w.Right, &right); err != nil {
			return err
		}
		e.Left, e.Right = &left, &right
	case ExprAnd, ExprOr:
		var raws []json.RawMessage
		if err := json.Unmarshal(w.Of, &raws); err != nil {
			return err
		}
		e.Of = make([]Expression, len(raws))
		for i, raw := range raws {
			if err := json.Unmarshal(raw, &e.Of[i]); err != nil {
				return err
			}
		}
	case ExprNot:
		if w.Operand == nil {
			return fmt.Errorf("policy: not expression missing operand")
		}
		var operand Expression
		if err := json.Unmarshal(*w.Operand, &operand); err != nil {
			return err
		}
		e.Operand = &operand
	}
	return nil
}

func (e Expression) MarshalJSON() ([]byte, error) {
	w := expressionWire{Type: expressionKindWireNames[e.Kind]}
	switch e.Kind {
	case ExprGreaterThan, ExprLessThan, ExprEqual, ExprNotEqual, ExprGreaterOrEqual, ExprLessOrEqual:
		left, err := json.Marshal(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := json.Marshal(e.Right)
		if err != nil {
			return nil, err
		}
		lm, rm := json.RawMessage(left), json.RawMessage(right)
		w.Left, w.Right = &lm, &rm
	case ExprAnd, ExprOr:
		raw, err := json.Marshal(e.Of)
		if err != nil {
			return nil, err
		}
		w.Of = raw
	case ExprNot:
		raw, err := json.Marshal(e.Operand)
		if err != nil {
			return nil, err
		}
		rm := json.RawMessage(raw)
		w.Operand = &rm
	}
	return json.Marshal(w)
}

// --- Value ---

type valueWire struct {
	Type      string           `json:"type"`
	Value     json.RawMessage  `json:"value,omitempty"`
	Field     string           `json:"field,omitempty"`
	Parameter string           `json:"name,omitempty"`
	Compute   *json.RawMessage `json:"op,omitempty"`
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var w valueWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	switch w.Type {
	case "literal":
		v.Kind = ValueLiteral
		if err := json.Unmarshal(w.Value, &v.Literal); err != nil {
			return err
		}
	case "field":
		v.Kind = ValueField
		v.Field = w.Field
	case "parameter":
		v.Kind = ValueParameter
		v.Parameter = w.Parameter
	case "compute":
		v.Kind = ValueCompute
		if w.Compute == nil {
			return fmt.Errorf("policy: compute value missing op")
		}
		var c Computation
		if err := json.Unmarshal(*w.Compute, &c); err != nil {
			return err
		}
		v.Compute = &c
	default:
		return fmt.Errorf("policy: unknown value type %q", w.Type)
	}
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	w := valueWire{}
	switch v.Kind {
	case ValueLiteral:
		w.Type = "literal"
		raw, err := json.Marshal(v.Literal)
		if err != nil {
			return nil, err
		}
		w.Value = raw
	case ValueField:
		w.Type = "field"
		w.Field = v.Field
	case ValueParameter:
		w.Type = "parameter"
		w.Parameter = v.Parameter
	case ValueCompute:
		w.Type = "compute"
		raw, err := json.Marshal(v.Compute)
		if err != nil {
			return nil, err
		}
		rm := json.RawMessage(raw)
		w.Compute = &rm
	}
	return json.Marshal(w)
}

// --- Computation ---

type computationWire struct {
	Op      string           `json:"op"`
	Left    *json.RawMessage `json:"left,omitempty"`
	Right   *json.RawMessage `json:"right,omitempty"`
	Operand *json.RawMessage `json:"operand,omitempty"`
	Default float64          `json:"default,omitempty"`
	Lo      *json.RawMessage `json:"lo,omitempty"`
	Hi      *json.RawMessage `json:"hi,omitempty"`
	Cond    *json.RawMessage `json:"cond,omitempty"`
	Then    *json.RawMessage `json:"then,omitempty"`
	Else    *json.RawMessage `json:"else,omitempty"`
}

var computationOpNames = map[string]ComputationOp{
	"add":      ComputeAdd,
	"sub":      ComputeSub,
	"mul":      ComputeMul,
	"div":      ComputeDiv,
	"safe_div": ComputeSafeDiv,
	"neg":      ComputeNeg,
	"abs":      ComputeAbs,
	"ceil":     ComputeCeil,
	"floor":    ComputeFloor,
	"round":    ComputeRound,
	"min":      ComputeMin,
	"max":      ComputeMax,
	"clamp":    ComputeClamp,
	"if":       ComputeIf,
}

var computationOpWireNames = func() map[ComputationOp]string {
	m := make(map[ComputationOp]string, len(computationOpNames))
	for k, v := range computationOpNames {
		m[v] = k
	}
	return m
}()

func unmarshalValuePtr(raw *json.RawMessage) (*Value, error) {
	if raw == nil {
		return nil, nil
	}
	var v Value
	if err := json.Unmarshal(*raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Computation) UnmarshalJSON(data []byte) error {
	var w computationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	op, ok := computationOpNames[w.Op]
	if !ok {
		return fmt.Errorf("policy: unknown computation op %q", w.Op)
	}
	c.Op = op

	var err error
	if c.Left, err = unmarshalValuePtr(w.Left); err != nil {
		return err
	}
	if c.Right, err = unmarshalValuePtr(w.Right); err != nil {
		return err
	}
	if c.Operand, err = unmarshalValuePtr(w.Operand); err != nil {
		return err
	}
	if c.Lo, err = unmarshalValuePtr(w.Lo); err != nil {
		return err
	}
	if c.Hi, err = unmarshalValuePtr(w.Hi); err != nil {
		return err
	}
	if c.Then, err = unmarshalValuePtr(w.Then); err != nil {
		return err
	}
	if c.Else, err = unmarshalValuePtr(w.Else); err != nil {
		return err
	}
	c.SafeDivDefault = w.Default

	if w.Cond != nil {
		var cond Expression
		if err := json.Unmarshal(*w.Cond, &cond); err != nil {
			return err
		}
		c.Cond = &cond
	}
	return nil
}

func (c Computation) MarshalJSON() ([]byte, error) {
	w := computationWire{Op: computationOpWireNames[c.Op], Default: c.SafeDivDefault}

	marshalInto := func(v *Value) (*json.RawMessage, error) {
		if v == nil {
			return nil, nil
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		rm := json.RawMessage(raw)
		return &rm, nil
	}

	var err error
	if w.Left, err = marshalInto(c.Left); err != nil {
		return nil, err
	}
	if w.Right, err = marshalInto(c.Right); err != nil {
		return nil, err
	}
	if w.Operand, err = marshalInto(c.Operand); err != nil {
		return nil, err
	}
	if w.Lo, err = marshalInto(c.Lo); err != nil {
		return nil, err
	}
	if w.Hi, err = marshalInto(c.Hi); err != nil {
		return nil, err
	}
	if w.Then, err = marshalInto(c.Then); err != nil {
		return nil, err
	}
	if w.Else, err = marshalInto(c.Else); err != nil {
		return nil, err
	}
	if c.Cond != nil {
		raw, err := json.Marshal(c.Cond)
		if err != nil {
			return nil, err
		}
		rm := json.RawMessage(raw)
		w.Cond = &rm
	}
	return json.Marshal(w)
}
