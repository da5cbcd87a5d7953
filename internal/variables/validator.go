// Package variables resolves the environment of a new server from an egg's
// variable definitions and the submitted values.
package variables

import (
	"context"
	"fmt"

	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/logging"
	"github.com/hearth-panel/hearth-ctl/internal/model"
	"github.com/hearth-panel/hearth-ctl/internal/rules"
)

// FieldPrefix namespaces variable errors in a ValidationError.
const FieldPrefix = "environment."

// EggLoader loads an egg with its variable definitions.
type EggLoader interface {
	GetEgg(ctx context.Context, id int64) (*model.Egg, error)
}

// Validator checks submitted environment values against an egg.
type Validator struct {
	eggs EggLoader
}

// NewValidator returns a Validator reading eggs from loader.
func NewValidator(loader EggLoader) *Validator {
	return &Validator{eggs: loader}
}

// Validate loads the egg and resolves env against its definitions. See
// Resolve for the rules applied.
func (v *Validator) Validate(ctx context.Context, eggID int64, env map[string]string, actingAsAdmin bool) ([]model.ServerVariable, error) {
	egg, err := v.eggs.GetEgg(ctx, eggID)
	if err != nil {
		return nil, err
	}
	logging.Debug("validating variables", "egg", egg.Name, "definitions", len(egg.Variables), "admin", actingAsAdmin)
	return Resolve(egg.Variables, env, actingAsAdmin)
}

// Resolve returns one ServerVariable per definition, in definition order.
//
// When actingAsAdmin is false and a definition is not user-editable, the
// submitted value is ignored and the default is used without validation.
// Otherwise the submitted value, or the default when the key is absent, is
// checked against the definition's rules. Every failure is collected under
// "environment.<ENV_KEY>" and returned together as a *errors.ValidationError.
func Resolve(defs []model.VariableDefinition, env map[string]string, actingAsAdmin bool) ([]model.ServerVariable, error) {
	verr := errors.NewValidationError()
	resolved := make([]model.ServerVariable, 0, len(defs))

	for _, def := range defs {
		value, submitted := env[def.EnvVariable]
		if !submitted {
			value = def.DefaultValue
		}

		if !actingAsAdmin && !def.UserEditable {
			value = def.DefaultValue
		} else {
			set, err := rules.Parse(def.Rules)
			if err != nil {
				return nil, fmt.Errorf("egg variable %s has invalid rules: %w", def.EnvVariable, err)
			}
			for _, msg := range set.Check(Attribute(def), value) {
				verr.Add(FieldPrefix+def.EnvVariable, msg)
			}
		}

		resolved = append(resolved, model.ServerVariable{
			VariableID:  def.ID,
			EnvVariable: def.EnvVariable,
			Value:       value,
		})
	}

	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return resolved, nil
}

// Attribute is the label used for a definition in error messages.
func Attribute(def model.VariableDefinition) string {
	return def.Name + " variable"
}
