package policy

import (
	"encoding/json"

	playval "github.com/go-playground/validator/v10"

	simerrors "rtgssim/pkg/errors"
)

var structValidator = playval.New()

// LoadFromJSON parses and validates a policy document in two stages, per
// §6: a struct-tag pass (policy_id/version presence, well-formed JSON)
// followed by the semantic tree walk in Validate. A tree that fails either
// stage is fatal (ErrPolicyValidationError) — the orchestrator never
// starts with an invalid policy.
func LoadFromJSON(raw []byte) (*DecisionTreeDef, ValidationResult, error) {
	var doc jsonDecisionTreeDef
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, ValidationResult{}, simerrors.Wrap(simerrors.ErrPolicyValidationError, err.Error())
	}

	def := doc.toDomain()

	if err := structValidator.Struct(def); err != nil {
		return nil, ValidationResult{}, simerrors.Wrap(simerrors.ErrPolicyValidationError, err.Error())
	}

	result := Validate(def)
	if !result.Valid {
		return nil, result, simerrors.ErrPolicyValidationError
	}
	return def, result, nil
}
