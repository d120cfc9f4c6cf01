package hcl

import (
	"testing"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func parseExpr(t *testing.T, src string) hcl.Expression {
	t.Helper()
	expr, diags := hclsyntax.ParseExpression([]byte(src), "test.hcl", hcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors(), diags.Error())
	return expr
}

func TestEvalContext_Functions(t *testing.T) {
	ctx := EvalContext(map[string]cty.Value{
		"matrix": cty.ObjectVal(map[string]cty.Value{
			"python":   cty.StringVal("3.9"),
			"wordsize": cty.StringVal("32"),
		}),
		"env": EnvValue(map[string]string{"PKG": "tskit"}),
	})

	testCases := map[string]string{
		`wheel_artifact("windows", matrix.python, matrix.wordsize)`: "windows-wheel-3.9-32",
		`wheel_artifact("osx", matrix.python)`:                       "osx-wheel-3.9",
		`upper(env.PKG)`:                                             "TSKIT",
		`format("%s-%s", lower("A"), "b")`:                           "a-b",
		`join(",", ["x", "y"])`:                                      "x,y",
		`trimprefix("refs/tags/v1", "refs/tags/")`:                   "v1",
	}
	for src, want := range testCases {
		t.Run(src, func(t *testing.T) {
			val, diags := parseExpr(t, src).Value(ctx)
			require.False(t, diags.HasErrors(), diags.Error())
			assert.Equal(t, want, val.AsString())
		})
	}
}

func TestEvalCondition(t *testing.T) {
	ctx := EvalContext(map[string]cty.Value{
		"gate": cty.ObjectVal(map[string]cty.Value{"staging": cty.True}),
	})

	ok, err := EvalCondition(nil, ctx)
	require.NoError(t, err)
	assert.True(t, ok, "a missing condition is true")

	ok, err = EvalCondition(parseExpr(t, "gate.staging"), ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvalCondition(parseExpr(t, "!gate.staging"), ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = EvalCondition(parseExpr(t, `"maybe"`), ctx)
	assert.ErrorContains(t, err, "must be a bool")

	_, err = EvalCondition(parseExpr(t, "null"), ctx)
	assert.ErrorContains(t, err, "null")

	_, err = EvalCondition(parseExpr(t, "gate.missing"), ctx)
	assert.Error(t, err)
}

func TestEnvValue_Empty(t *testing.T) {
	assert.True(t, EnvValue(nil).Type().IsMapType())
}
