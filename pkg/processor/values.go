package processor

import (
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/chazu/hardeen/pkg/geometry"
	"github.com/zclconf/go-cty/cty"
)

var (
	positionType     = cty.Tuple([]cty.Type{cty.Number, cty.Number})
	positionListType = cty.List(positionType)
)

// CtyType returns the value type parameters of type p carry.
func (p ParamType) CtyType() cty.Type {
	switch p {
	case Integer, UnsignedInteger, Float:
		return cty.Number
	case Boolean:
		return cty.Bool
	case String:
		return cty.String
	case PositionParam:
		return positionType
	case PositionList:
		return positionListType
	default:
		return cty.DynamicPseudoType
	}
}

// PositionVal wraps a position as a parameter value.
func PositionVal(p geometry.Position) cty.Value {
	return cty.TupleVal([]cty.Value{cty.NumberFloatVal(p.X), cty.NumberFloatVal(p.Y)})
}

// PositionListVal wraps a list of positions as a parameter value.
func PositionListVal(ps []geometry.Position) cty.Value {
	if len(ps) == 0 {
		return cty.ListValEmpty(positionType)
	}
	vals := make([]cty.Value, len(ps))
	for i, p := range ps {
		vals[i] = PositionVal(p)
	}
	return cty.ListVal(vals)
}

// CheckValue verifies that v is a valid value for a parameter of type p.
func CheckValue(p ParamType, v cty.Value) error {
	if v.IsNull() || !v.IsWhollyKnown() {
		return fmt.Errorf("%s parameter requires a known, non-null value", p)
	}
	if !v.Type().Equals(p.CtyType()) {
		return fmt.Errorf("%s parameter cannot hold %s", p, v.Type().FriendlyName())
	}
	switch p {
	case Integer, UnsignedInteger:
		bf := v.AsBigFloat()
		if !bf.IsInt() {
			return fmt.Errorf("%s parameter requires a whole number, got %s", p, bf.Text('g', -1))
		}
		if p == UnsignedInteger && bf.Sign() < 0 {
			return fmt.Errorf("%s parameter requires a non-negative number, got %s", p, bf.Text('g', -1))
		}
		var acc big.Accuracy
		if p == Integer {
			_, acc = bf.Int64()
		} else {
			_, acc = bf.Uint64()
		}
		if acc != big.Exact {
			return fmt.Errorf("%s parameter out of range, got %s", p, bf.Text('g', -1))
		}
	case PositionParam:
		return checkPosition(v)
	case PositionList:
		for _, el := range v.AsValueSlice() {
			if el.IsNull() {
				return fmt.Errorf("%s parameter contains a null position", p)
			}
			if err := checkPosition(el); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkPosition(v cty.Value) error {
	for _, c := range v.AsValueSlice() {
		if c.IsNull() {
			return fmt.Errorf("Position parameter contains a null coordinate")
		}
	}
	return nil
}

// ParseValue converts the textual form of a parameter into a value of type p.
// Positions use "x,y" and position lists "x,y;x,y".
func ParseValue(p ParamType, raw string) (cty.Value, error) {
	switch p {
	case Integer:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.NumberIntVal(n), nil
	case UnsignedInteger:
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.NumberUIntVal(n), nil
	case Float:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return cty.NilVal, err
		}
		if math.IsNaN(f) {
			return cty.NilVal, fmt.Errorf("%q is not a number", raw)
		}
		return cty.NumberFloatVal(f), nil
	case Boolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.BoolVal(b), nil
	case String:
		return cty.StringVal(raw), nil
	case PositionParam:
		pos, err := geometry.ParsePosition(raw)
		if err != nil {
			return cty.NilVal, err
		}
		return PositionVal(pos), nil
	case PositionList:
		ps, err := geometry.ParsePositionList(raw)
		if err != nil {
			return cty.NilVal, err
		}
		return PositionListVal(ps), nil
	}
	return cty.NilVal, fmt.Errorf("unknown parameter type %d", int(p))
}

// FormatValue renders v in the textual form accepted by ParseValue.
func FormatValue(p ParamType, v cty.Value) string {
	if CheckValue(p, v) != nil {
		return ""
	}
	switch p {
	case Integer, UnsignedInteger, Float:
		return v.AsBigFloat().Text('g', -1)
	case Boolean:
		return strconv.FormatBool(v.True())
	case String:
		return v.AsString()
	case PositionParam:
		return geometry.FormatPosition(toPosition(v))
	case PositionList:
		return geometry.FormatPositionList(toPositions(v))
	}
	return ""
}

func toPosition(v cty.Value) geometry.Position {
	els := v.AsValueSlice()
	x, _ := els[0].AsBigFloat().Float64()
	y, _ := els[1].AsBigFloat().Float64()
	return geometry.Pos(x, y)
}

func toPositions(v cty.Value) []geometry.Position {
	if v.LengthInt() == 0 {
		return nil
	}
	els := v.AsValueSlice()
	out := make([]geometry.Position, len(els))
	for i, el := range els {
		out[i] = toPosition(el)
	}
	return out
}

// Params holds the validated parameter values of one node. Accessors return
// the zero value for names that are absent; callers only read names declared
// by their own type.
type Params map[string]cty.Value

func (p Params) number(name string) (cty.Value, bool) {
	v, ok := p[name]
	if !ok || v.IsNull() || !v.IsKnown() || !v.Type().Equals(cty.Number) {
		return cty.NilVal, false
	}
	return v, true
}

// Float returns a numeric parameter as float64.
func (p Params) Float(name string) float64 {
	v, ok := p.number(name)
	if !ok {
		return 0
	}
	f, _ := v.AsBigFloat().Float64()
	return f
}

// Int returns an integer parameter.
func (p Params) Int(name string) int64 {
	v, ok := p.number(name)
	if !ok {
		return 0
	}
	n, _ := v.AsBigFloat().Int64()
	return n
}

// Uint returns an unsigned integer parameter.
func (p Params) Uint(name string) uint64 {
	v, ok := p.number(name)
	if !ok {
		return 0
	}
	n, _ := v.AsBigFloat().Uint64()
	return n
}

// Bool returns a boolean parameter.
func (p Params) Bool(name string) bool {
	v, ok := p[name]
	if !ok || CheckValue(Boolean, v) != nil {
		return false
	}
	return v.True()
}

// Text returns a string parameter.
func (p Params) Text(name string) string {
	v, ok := p[name]
	if !ok || CheckValue(String, v) != nil {
		return ""
	}
	return v.AsString()
}

// Position returns a position parameter.
func (p Params) Position(name string) geometry.Position {
	v, ok := p[name]
	if !ok || CheckValue(PositionParam, v) != nil {
		return geometry.Position{}
	}
	return toPosition(v)
}

// Positions returns a position list parameter.
func (p Params) Positions(name string) []geometry.Position {
	v, ok := p[name]
	if !ok || CheckValue(PositionList, v) != nil {
		return nil
	}
	return toPositions(v)
}
