package policy

// NewFIFOPolicy builds the simplest valid policy: every transaction at the
// head of Queue 1 submits immediately, with no bank-level budget and no
// collateral management. It is used by the policy tests; an agent given no
// policy holds its transactions rather than falling back to this tree.
func NewFIFOPolicy(policyID string) *DecisionTreeDef {
	return &DecisionTreeDef{
		PolicyID: policyID,
		Version:  "1.0",
		PaymentTree: &TreeNode{
			Kind:   NodeAction,
			NodeID: "submit",
			Action: ActionSubmit,
		},
	}
}

// NewDeadlinePressurePolicy builds a slightly richer payment tree: submit
// immediately if the transaction is at most 5 ticks from its deadline or the
// agent is not using credit, otherwise hold. Demonstrates a Condition node
// and the ticks_to_deadline/credit_used fields for the tests.
func NewDeadlinePressurePolicy(policyID string) *DecisionTreeDef {
	submit := &TreeNode{Kind: NodeAction, NodeID: "submit", Action: ActionSubmit}
	hold := &TreeNode{Kind: NodeAction, NodeID: "hold", Action: ActionHold}

	condition := &TreeNode{
		Kind:        NodeCondition,
		NodeID:      "check_pressure",
		Description: "submit unless overdue escalation would help more by waiting",
		Condition: Expression{
			Kind: ExprOr,
			Of: []Expression{
				{
					Kind:  ExprLessOrEqual,
					Left:  &Value{Kind: ValueField, Field: "ticks_to_deadline"},
					Right: &Value{Kind: ValueLiteral, Literal: float64(5)},
				},
				{
					Kind:  ExprEqual,
					Left:  &Value{Kind: ValueField, Field: "credit_used"},
					Right: &Value{Kind: ValueLiteral, Literal: float64(0)},
				},
			},
		},
		OnTrue:  submit,
		OnFalse: hold,
	}

	return &DecisionTreeDef{
		PolicyID:    policyID,
		Version:     "1.0",
		PaymentTree: condition,
	}
}
