package cel

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// Evaluator compiles and runs rule condition guards. Expressions see the
// target as `target` (a string map) plus the well-known fields as top level
// string variables.
type Evaluator struct {
	env      *cel.Env
	programs sync.Map // expression -> cel.Program
}

var topLevelVars = []string{"id", "compliance_head", "sub_head", "entity", "document_type"}

func NewEvaluator() (*Evaluator, error) {
	opts := []cel.EnvOption{
		cel.Variable("target", cel.MapType(cel.StringType, cel.StringType)),
	}
	for _, name := range topLevelVars {
		opts = append(opts, cel.Variable(name, cel.StringType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// ValidateCondition checks that expression compiles and yields a bool.
func (e *Evaluator) ValidateCondition(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("condition must return bool, got %v", ast.OutputType())
	}

	return nil
}

// EvaluateCondition satisfies rules.ConditionEvaluator.
func (e *Evaluator) EvaluateCondition(expression string, vars map[string]string) (bool, error) {
	return e.EvaluateConditionCtx(context.Background(), expression, vars)
}

func (e *Evaluator) EvaluateConditionCtx(ctx context.Context, expression string, vars map[string]string) (bool, error) {
	program, err := e.program(expression)
	if err != nil {
		return false, err
	}

	activation := map[string]interface{}{
		"target": copyVars(vars),
	}
	for _, name := range topLevelVars {
		activation[name] = vars[name]
	}

	result, _, err := program.ContextEval(ctx, activation)
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

func (e *Evaluator) program(expression string) (cel.Program, error) {
	if p, ok := e.programs.Load(expression); ok {
		return p.(cel.Program), nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile CEL expression: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("condition must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	e.programs.Store(expression, program)
	return program, nil
}

func copyVars(vars map[string]string) map[string]string {
	out := make(map[string]string, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	return out
}
