package cron

import (
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// conditionEnv is the shared CEL type-checking environment for Job.Condition
// expressions (spec.md SUPPLEMENTED FEATURES #5): guards evaluated against
// {hour, weekday, remaining} before a due job actually runs.
var conditionEnv, conditionEnvErr = cel.NewEnv(
	cel.Variable("hour", cel.IntType),
	cel.Variable("weekday", cel.IntType),
	cel.Variable("remaining", cel.IntType),
)

// EvalCondition compiles and evaluates expr against now and the job's
// remaining-run count. An empty expr always passes (no condition
// configured). Compile/evaluation failures are treated as "do not run" —
// a malformed condition should never silently execute a job its operator
// meant to gate.
func EvalCondition(expr string, now time.Time, remaining int) (bool, error) {
	if expr == "" {
		return true, nil
	}
	if conditionEnvErr != nil {
		return false, fmt.Errorf("cron: condition environment unavailable: %w", conditionEnvErr)
	}

	ast, issues := conditionEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return false, fmt.Errorf("cron: invalid condition %q: %w", expr, issues.Err())
	}
	program, err := conditionEnv.Program(ast)
	if err != nil {
		return false, fmt.Errorf("cron: condition program build failed for %q: %w", expr, err)
	}

	out, _, err := program.Eval(map[string]interface{}{
		"hour":      int64(now.Hour()),
		"weekday":   int64(now.Weekday()),
		"remaining": int64(remaining),
	})
	if err != nil {
		return false, fmt.Errorf("cron: condition %q evaluation failed: %w", expr, err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("cron: condition %q did not evaluate to a bool", expr)
	}
	return result, nil
}
