package expr

import (
	"math"
	"path"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
	"github.com/tidwall/gjson"
)

type lib struct{}

func (lib) CompileOptions() []cel.EnvOption {
	return []cel.EnvOption{
		ext.Math(),
		ext.Strings(),
		ext.Lists(),
		cel.OptionalTypes(),

		// `pathBase` returns the last element of a slash separated task path.
		// Example: pathBase(task) == "todo".
		cel.Function("pathBase",
			cel.Overload("path_base", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(p ref.Val) ref.Val {
					s, ok := p.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathBase: invalid string value")
					}

					return types.String(path.Base(s))
				}),
			),
		),

		// `pathDir` returns all but the last element of a slash separated task path.
		// Example: pathDir(task).startsWith("trt/").
		cel.Function("pathDir",
			cel.Overload("path_dir", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(p ref.Val) ref.Val {
					s, ok := p.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathDir: invalid string value")
					}

					return types.String(path.Dir(s))
				}),
			),
		),

		// `pathExt` returns the extension of the last element of a task path.
		// Example: pathExt(task) in [".csv", ".json"].
		cel.Function("pathExt",
			cel.Overload("path_ext", []*cel.Type{cel.StringType}, cel.StringType,
				cel.UnaryBinding(func(p ref.Val) ref.Val {
					s, ok := p.(types.String).Value().(string)
					if !ok {
						return types.NewErr("pathExt: invalid string value")
					}

					return types.String(path.Ext(s))
				}),
			),
		),

		// `jsonPath` extracts a value from a JSON document held in a property,
		// using a gjson path. Returns null if the document is invalid or the path
		// does not exist.
		// Example: jsonPath(props.item, "status") == "ready".
		cel.Function("jsonPath",
			cel.Overload("json_path", []*cel.Type{cel.StringType, cel.StringType}, cel.DynType,
				cel.BinaryBinding(func(doc, p ref.Val) ref.Val {
					docStr, ok := doc.(types.String).Value().(string)
					if !ok {
						return types.NewErr("jsonPath: invalid document")
					}

					pathStr, ok := p.(types.String).Value().(string)
					if !ok {
						return types.NewErr("jsonPath: invalid path")
					}

					if !gjson.Valid(docStr) {
						return types.NullValue
					}

					result := gjson.Get(docStr, pathStr)
					if !result.Exists() {
						return types.NullValue
					}

					return ConvertToCELValue(result.Value())
				}),
			),
		),
	}
}

func (lib) ProgramOptions() []cel.ProgramOption {
	return []cel.ProgramOption{}
}

// ConvertToCELValue converts a Go value to a CEL value.
// Handles the types produced by JSON decoding and returns null for unsupported types.
//
//nolint:ireturn // Following CEL's function signature.
func ConvertToCELValue(value any) ref.Val {
	switch v := value.(type) {
	case nil:
		return types.NullValue

	case bool:
		return types.Bool(v)

	case int:
		return types.Int(v)

	case int64:
		return types.Int(v)

	case uint64:
		// Check for overflow when converting to int64.
		if v > math.MaxInt64 {
			return types.Double(float64(v))
		}

		return types.Int(int64(v))

	case float64:
		// JSON numbers decode to float64; keep integral values as ints so
		// `jsonPath(doc, "count") == 1` works.
		if v == math.Trunc(v) && math.Abs(v) < math.MaxInt64 {
			return types.Int(int64(v))
		}

		return types.Double(v)

	case string:
		return types.String(v)

	case []any:
		celValues := make([]ref.Val, len(v))
		for i, item := range v {
			celValues[i] = ConvertToCELValue(item)
		}

		return types.NewDynamicList(types.DefaultTypeAdapter, celValues)

	case map[string]any:
		celMap := make(map[ref.Val]ref.Val)
		for key, val := range v {
			celMap[types.String(key)] = ConvertToCELValue(val)
		}

		return types.NewDynamicMap(types.DefaultTypeAdapter, celMap)

	default:
		// For unsupported types, return null instead of erroring.
		return types.NullValue
	}
}
