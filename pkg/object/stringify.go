package object

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pebbl-lang/pebbl/pkg/value"
)

// Stringify renders v as PEBBL's `print`/`str` built-ins do: int32
// decimal, double with the host's default precision, raw string bytes,
// bracketed array/dict literals, and angle-bracket function tags.
func Stringify(v value.Value) string {
	switch {
	case v.IsNil():
		return "nil"
	case v.IsUndefined():
		return "undefined"
	case v.IsBool():
		if v.Bool() {
			return "true"
		}
		return "false"
	case v.IsInt32():
		return strconv.FormatInt(int64(v.Int32()), 10)
	case v.IsFloat():
		return strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case v.IsHeap():
		return stringifyHeap(v)
	default:
		return fmt.Sprintf("<?%#x>", uint64(v))
	}
}

func stringifyHeap(v value.Value) string {
	switch o := FromValue(v).(type) {
	case *String:
		return o.String()
	case *Array:
		parts := make([]string, len(o.Elements))
		for i, e := range o.Elements {
			parts[i] = Stringify(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Dict:
		parts := make([]string, 0, len(o.Entries))
		for k, v := range o.Entries {
			parts = append(parts, fmt.Sprintf("%q: %s", k, Stringify(v)))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Function:
		return "<function " + o.Name + ">"
	case *BuiltinFunction:
		return "<builtin " + o.Name + ">"
	case *Environment:
		return "<environment>"
	default:
		return "<?>"
	}
}

// TypeName returns the `type()` built-in's name for v.
func TypeName(v value.Value) string {
	switch {
	case v.IsNil():
		return "null"
	case v.IsUndefined():
		return "null"
	case v.IsBool():
		return "boolean"
	case v.IsInt32():
		return "integer"
	case v.IsFloat():
		return "float"
	case v.IsHeap():
		switch FromValue(v).(type) {
		case *String:
			return "string"
		case *Array:
			return "array"
		case *Dict:
			return "dict"
		case *Function:
			return "function"
		case *BuiltinFunction:
			return "builtin_function"
		case *Environment:
			return "environment"
		}
	}
	return "null"
}

// Equal implements PEBBL's equality rule: same-variant comparison except
// int32/double are numerically cross-compared after widening; nil == nil;
// heap values compare by pointer identity.
func Equal(a, b value.Value) bool {
	switch {
	case a.IsNil() && b.IsNil():
		return true
	case a.IsBool() && b.IsBool():
		return a.Bool() == b.Bool()
	case isNumeric(a) && isNumeric(b):
		return numericValue(a) == numericValue(b)
	case a.IsHeap() && b.IsHeap():
		return a.Ptr() == b.Ptr()
	default:
		return false
	}
}

func isNumeric(v value.Value) bool { return v.IsInt32() || v.IsFloat() }

func numericValue(v value.Value) float64 {
	if v.IsInt32() {
		return float64(v.Int32())
	}
	return v.Float64()
}
