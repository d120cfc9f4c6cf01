package artifact

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// WheelNameFunc exposes WheelName to pipeline expressions as
// wheel_artifact(platform, python[, word_size]).
var WheelNameFunc = function.New(&function.Spec{
	Description: "Returns the artifact name of the wheel built for one matrix cell.",
	Params: []function.Parameter{
		{Name: "platform", Type: cty.String},
		{Name: "python", Type: cty.String},
	},
	VarParam: &function.Parameter{Name: "word_size", Type: cty.String},
	Type:     function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		if len(args) > 3 {
			return cty.UnknownVal(cty.String), fmt.Errorf("wheel_artifact takes at most one word_size, got %d", len(args)-2)
		}
		var wordSize string
		if len(args) == 3 {
			wordSize = args[2].AsString()
		}
		name := WheelName(args[0].AsString(), args[1].AsString(), wordSize)
		if err := ValidateName(name); err != nil {
			return cty.UnknownVal(cty.String), err
		}
		return cty.StringVal(name), nil
	},
})
