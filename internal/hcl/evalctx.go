package hcl

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"github.com/vk/wheelgrid/internal/artifact"
)

// Functions returns the function table available to pipeline expressions.
func Functions() map[string]function.Function {
	return map[string]function.Function{
		"wheel_artifact": artifact.WheelNameFunc,
		"upper":          stdlib.UpperFunc,
		"lower":          stdlib.LowerFunc,
		"join":           stdlib.JoinFunc,
		"format":         stdlib.FormatFunc,
		"replace":        stdlib.ReplaceFunc,
		"trimprefix":     stdlib.TrimPrefixFunc,
		"concat":         stdlib.ConcatFunc,
	}
}

// EvalContext builds an evaluation context over the given variables.
func EvalContext(vars map[string]cty.Value) *hcl.EvalContext {
	return &hcl.EvalContext{
		Variables: vars,
		Functions: Functions(),
	}
}

// StaticVariables holds what is known before an event is chosen: only `env`.
func StaticVariables(env map[string]string) map[string]cty.Value {
	return map[string]cty.Value{"env": EnvValue(env)}
}

// EnvValue converts an environment map into a cty map of strings.
func EnvValue(env map[string]string) cty.Value {
	if len(env) == 0 {
		return cty.MapValEmpty(cty.String)
	}
	vals := make(map[string]cty.Value, len(env))
	for k, v := range env {
		vals[k] = cty.StringVal(v)
	}
	return cty.MapVal(vals)
}

// EvalCondition evaluates a `when` expression. A nil expression is true.
func EvalCondition(expr hcl.Expression, evalCtx *hcl.EvalContext) (bool, error) {
	if expr == nil {
		return true, nil
	}
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return false, diags
	}
	if val.IsNull() {
		return false, fmt.Errorf("%s: condition evaluated to null", expr.Range())
	}
	if !val.IsKnown() {
		return false, fmt.Errorf("%s: condition is not known before the run", expr.Range())
	}
	b, err := convert.Convert(val, cty.Bool)
	if err != nil {
		return false, fmt.Errorf("%s: condition must be a bool: %w", expr.Range(), err)
	}
	return b.True(), nil
}
