package processor

import (
	"context"
	"time"

	"github.com/chazu/hardeen/pkg/geometry"
	"github.com/zclconf/go-cty/cty"
)

// InputInfo describes one input slot.
type InputInfo struct {
	Name     string   `json:"name" yaml:"name"`
	Type     DataType `json:"type" yaml:"type"`
	Optional bool     `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// ParameterInfo is the externally visible schema of a parameter.
type ParameterInfo struct {
	Name string    `json:"name" yaml:"name"`
	Type ParamType `json:"type" yaml:"type"`
}

// TypeInfo is the read-only description of a processor type used by
// introspecting callers.
type TypeInfo struct {
	Type       Type            `json:"-" yaml:"-"`
	Name       string          `json:"name" yaml:"name"`
	Inputs     []InputInfo     `json:"inputs" yaml:"inputs"`
	Parameters []ParameterInfo `json:"parameters" yaml:"parameters"`
	Output     DataType        `json:"output" yaml:"output"`
	Subgraph   bool            `json:"subgraph,omitempty" yaml:"subgraph,omitempty"`
}

// Parameter declares a parameter with its default value.
type Parameter struct {
	Name    string
	Type    ParamType
	Default cty.Value
}

// Invocation is everything a processor computation receives.
type Invocation struct {
	// Node names the node being computed, for error messages.
	Node   string
	Params Params
	// Inputs holds one world per declared slot; unbound optional slots are nil.
	Inputs []*geometry.World
	// Subgraph evaluates the node's child graph. It is nil for types without
	// a subgraph and returns a nil world when the child has no output.
	Subgraph func(ctx context.Context) (*geometry.World, error)
	// ScriptTimeout bounds embedded predicate evaluation.
	ScriptTimeout time.Duration
}

// Input returns the world bound to slot i, or nil.
func (inv Invocation) Input(i int) *geometry.World {
	if i < 0 || i >= len(inv.Inputs) {
		return nil
	}
	return inv.Inputs[i]
}

// ComputeFunc performs a processor's computation. Implementations must not
// mutate their input worlds.
type ComputeFunc func(ctx context.Context, inv Invocation) (*geometry.World, error)

// Descriptor is the complete registry entry for a processor type.
type Descriptor struct {
	Type       Type
	Inputs     []InputInfo
	Parameters []Parameter
	Output     DataType
	Subgraph   bool
	Compute    ComputeFunc
}

// Parameter returns the declaration of the named parameter.
func (d *Descriptor) Parameter(name string) (Parameter, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Defaults returns a fresh map of default parameter values.
func (d *Descriptor) Defaults() Params {
	out := make(Params, len(d.Parameters))
	for _, p := range d.Parameters {
		out[p.Name] = p.Default
	}
	return out
}

// Info returns the external description of d.
func (d *Descriptor) Info() TypeInfo {
	params := make([]ParameterInfo, len(d.Parameters))
	for i, p := range d.Parameters {
		params[i] = ParameterInfo{Name: p.Name, Type: p.Type}
	}
	return TypeInfo{
		Type:       d.Type,
		Name:       d.Type.String(),
		Inputs:     append([]InputInfo(nil), d.Inputs...),
		Parameters: params,
		Output:     d.Output,
		Subgraph:   d.Subgraph,
	}
}

func param(name string, t ParamType, def cty.Value) Parameter {
	return Parameter{Name: name, Type: t, Default: def}
}

func slot(name string, t DataType) InputInfo {
	return InputInfo{Name: name, Type: t}
}

func seedParam() Parameter {
	return param("seed", UnsignedInteger, cty.NumberUIntVal(0))
}

var (
	zeroPos = PositionVal(geometry.Position{})
	allName = cty.StringVal(geometry.AllGroup)
)

var descriptors = [typeCount]Descriptor{
	Empty: {
		Output:  Nothing,
		Compute: computeEmpty,
	},
	CreateRectangle: {
		Output: Shapes,
		Parameters: []Parameter{
			param("width", Float, cty.NumberFloatVal(10)),
			param("height", Float, cty.NumberFloatVal(10)),
			param("position", PositionParam, zeroPos),
		},
		Compute: computeCreateRectangle,
	},
	ScatterPoints: {
		Output: Points,
		Parameters: []Parameter{
			param("num_points", UnsignedInteger, cty.NumberUIntVal(10)),
			param("min_position", PositionParam, PositionVal(geometry.Pos(-200, -200))),
			param("max_position", PositionParam, PositionVal(geometry.Pos(200, 200))),
			seedParam(),
		},
		Compute: computeScatterPoints,
	},
	Scale: {
		Inputs: []InputInfo{slot("shapes", Shapes)},
		Output: Shapes,
		Parameters: []Parameter{
			param("factor", Float, cty.NumberFloatVal(1)),
			param("factor_x", Float, cty.NumberFloatVal(1)),
			param("factor_y", Float, cty.NumberFloatVal(1)),
		},
		Compute: computeScale,
	},
	RandomTangents: {
		Inputs: []InputInfo{slot("shapes", Shapes)},
		Output: Shapes,
		Parameters: []Parameter{
			param("strength", Float, cty.NumberFloatVal(2)),
			seedParam(),
		},
		Compute: computeRandomTangents,
	},
	SmoothTangents: {
		Inputs: []InputInfo{slot("shapes", Shapes)},
		Output: Shapes,
		Parameters: []Parameter{
			param("strength", Float, cty.NumberFloatVal(2)),
		},
		Compute: computeSmoothTangents,
	},
	AddPoints: {
		Inputs: []InputInfo{{Name: "points", Type: Points, Optional: true}},
		Output: Points,
		Parameters: []Parameter{
			param("positions", PositionList, PositionListVal(nil)),
		},
		Compute: computeAddPoints,
	},
	Merge: {
		Inputs:  []InputInfo{slot("a", Shapes), slot("b", Shapes)},
		Output:  Shapes,
		Compute: computeMerge,
	},
	CopyPointsAndOffset: {
		Inputs: []InputInfo{slot("points", Points)},
		Output: Points,
		Parameters: []Parameter{
			param("offset_position", PositionParam, zeroPos),
		},
		Compute: computeCopyPointsAndOffset,
	},
	SortPointsX: {
		Inputs:  []InputInfo{slot("points", Points)},
		Output:  Points,
		Compute: computeSortPointsX,
	},
	CreateShapeFromGroup: {
		Inputs: []InputInfo{slot("groups", Groups)},
		Output: Shapes,
		Parameters: []Parameter{
			param("group_name", String, allName),
			param("closed", Boolean, cty.False),
		},
		Compute: computeCreateShapeFromGroup,
	},
	CreateShapeFromAllGroups: {
		Inputs: []InputInfo{slot("groups", Groups)},
		Output: Shapes,
		Parameters: []Parameter{
			param("closed", Boolean, cty.False),
		},
		Compute: computeCreateShapeFromAllGroups,
	},
	Translate: {
		Inputs: []InputInfo{slot("shapes", Shapes)},
		Output: Shapes,
		Parameters: []Parameter{
			param("offset", PositionParam, zeroPos),
			param("group_name", String, allName),
		},
		Compute: computeTranslate,
	},
	RandomTranslate: {
		Inputs: []InputInfo{slot("shapes", Shapes)},
		Output: Shapes,
		Parameters: []Parameter{
			param("min_offset", PositionParam, zeroPos),
			param("max_offset", PositionParam, zeroPos),
			param("group_name", String, allName),
			seedParam(),
		},
		Compute: computeRandomTranslate,
	},
	CopyPointsAndRandomOffset: {
		Inputs: []InputInfo{slot("points", Points)},
		Output: Groups,
		Parameters: []Parameter{
			param("min_offset", PositionParam, zeroPos),
			param("max_offset", PositionParam, zeroPos),
			param("group_name", String, allName),
			param("group", Boolean, cty.True),
			param("iterations", UnsignedInteger, cty.NumberUIntVal(1)),
			seedParam(),
		},
		Compute: computeCopyPointsAndRandomOffset,
	},
	InstanceOnPoints: {
		Inputs: []InputInfo{slot("points", Points)},
		Output: Shapes,
		Parameters: []Parameter{
			param("group_name", String, allName),
		},
		Subgraph: true,
		Compute:  computeInstanceOnPoints,
	},
	ExtrudeShape: {
		Inputs: []InputInfo{slot("shapes", Shapes)},
		Output: Shapes,
		Parameters: []Parameter{
			param("min_thickness", Float, cty.NumberFloatVal(1)),
			param("max_thickness", Float, cty.NumberFloatVal(1)),
			seedParam(),
		},
		Compute: computeExtrudeShape,
	},
	GroupPoints: {
		Inputs: []InputInfo{slot("points", Points)},
		Output: Groups,
		Parameters: []Parameter{
			param("group_name", String, cty.StringVal("")),
			param("condition", String, cty.StringVal("false")),
		},
		Compute: computeGroupPoints,
	},
}

func init() {
	for i := range descriptors {
		descriptors[i].Type = Type(i)
	}
}

// Lookup returns the registry entry for t.
func Lookup(t Type) (*Descriptor, bool) {
	if !t.Valid() {
		return nil, false
	}
	return &descriptors[t], true
}

// Describe returns the description of t. Unknown types describe as Empty.
func Describe(t Type) TypeInfo {
	if !t.Valid() {
		t = Empty
	}
	return descriptors[t].Info()
}

// List returns every processor type in enum order.
func List() []TypeInfo {
	out := make([]TypeInfo, len(descriptors))
	for i := range descriptors {
		out[i] = descriptors[i].Info()
	}
	return out
}
