package policy

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"
)

// CELEngine compiles account classification expressions.
//
// Expressions see two variables: `account`, the account name or the ID when no
// name is known, and `account_id`, the numeric ID or "" when unknown. They must evaluate to a bool (true means Internal) or to a
// string naming the classification.
type CELEngine struct {
	env *cel.Env
}

// NewCELEngine initializes the CEL environment.
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("account", cel.StringType),
		cel.Variable("account_id", cel.StringType),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &CELEngine{env: env}, nil
}

// Compile type-checks expr and returns an executable program.
func (e *CELEngine) Compile(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("classifier expression compilation error: %w", issues.Err())
	}

	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.StringType) {
		return nil, fmt.Errorf("classifier expression must return bool or string, got %s", out)
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("classifier program creation error: %w", err)
	}
	return prg, nil
}
