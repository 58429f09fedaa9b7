package processor

import (
	"math"
	"testing"

	"github.com/chazu/hardeen/pkg/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func TestTypeOrderIsStable(t *testing.T) {
	assert.Equal(t, 0, int(Empty))
	assert.Equal(t, 1, int(CreateRectangle))
	assert.Equal(t, 7, int(Merge))
	assert.Equal(t, 15, int(InstanceOnPoints))
	assert.Equal(t, 17, int(GroupPoints))
}

func TestListCoversEveryType(t *testing.T) {
	infos := List()
	require.Len(t, infos, int(typeCount))
	for i, info := range infos {
		assert.Equal(t, Type(i), info.Type)
		assert.Equal(t, Type(i).String(), info.Name)

		d, ok := Lookup(Type(i))
		require.True(t, ok)
		require.NotNil(t, d.Compute, "%s has no computation", info.Name)
		for _, p := range d.Parameters {
			assert.NoError(t, CheckValue(p.Type, p.Default), "%s.%s default", info.Name, p.Name)
		}
	}
}

func TestDescribeInvalidIsEmpty(t *testing.T) {
	info := Describe(Type(-1))
	assert.Equal(t, "Empty", info.Name)
	assert.Empty(t, info.Parameters)
	assert.Empty(t, info.Inputs)

	_, ok := Lookup(Type(99))
	assert.False(t, ok)
}

func TestDescribeReturnsCopies(t *testing.T) {
	info := Describe(Scale)
	info.Parameters[0].Name = "mutated"
	assert.Equal(t, "factor", Describe(Scale).Parameters[0].Name)
}

func TestParseType(t *testing.T) {
	typ, ok := ParseType("InstanceOnPoints")
	require.True(t, ok)
	assert.Equal(t, InstanceOnPoints, typ)

	_, ok = ParseType("SortPointsY")
	assert.False(t, ok)
}

func TestScaleSchema(t *testing.T) {
	info := Describe(Scale)
	require.Len(t, info.Inputs, 1)
	assert.Equal(t, Shapes, info.Inputs[0].Type)
	assert.Equal(t, Shapes, info.Output)
	assert.Equal(t, []ParameterInfo{
		{Name: "factor", Type: Float},
		{Name: "factor_x", Type: Float},
		{Name: "factor_y", Type: Float},
	}, info.Parameters)
}

func TestOnlyInstanceOnPointsHasSubgraph(t *testing.T) {
	for _, info := range List() {
		assert.Equal(t, info.Type == InstanceOnPoints, info.Subgraph, info.Name)
	}
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible(Shapes, Shapes))
	assert.True(t, Compatible(Points, Points))
	assert.False(t, Compatible(Points, Shapes))
	assert.False(t, Compatible(Groups, Points))
	assert.False(t, Compatible(Nothing, Nothing))
}

// ---------------------------------------------------------------------------
// Values
// ---------------------------------------------------------------------------

func TestCheckValue(t *testing.T) {
	tests := []struct {
		name string
		typ  ParamType
		val  cty.Value
		ok   bool
	}{
		{"float", Float, cty.NumberFloatVal(2.5), true},
		{"float from string", Float, cty.StringVal("2.5"), false},
		{"integer whole", Integer, cty.NumberIntVal(-3), true},
		{"integer fractional", Integer, cty.NumberFloatVal(1.5), false},
		{"unsigned negative", UnsignedInteger, cty.NumberIntVal(-1), false},
		{"unsigned", UnsignedInteger, cty.NumberUIntVal(4), true},
		{"unsigned max", UnsignedInteger, cty.NumberUIntVal(math.MaxUint64), true},
		{"unsigned too large", UnsignedInteger, cty.NumberFloatVal(1e30), false},
		{"integer min", Integer, cty.NumberIntVal(math.MinInt64), true},
		{"integer too large", Integer, cty.NumberFloatVal(1e19), false},
		{"bool", Boolean, cty.True, true},
		{"null", Boolean, cty.NullVal(cty.Bool), false},
		{"string", String, cty.StringVal("all"), true},
		{"position", PositionParam, PositionVal(geometry.Pos(1, 2)), true},
		{"position as list", PositionParam, cty.ListVal([]cty.Value{cty.NumberIntVal(1), cty.NumberIntVal(2)}), false},
		{"empty list", PositionList, PositionListVal(nil), true},
		{"list", PositionList, PositionListVal([]geometry.Position{geometry.Pos(1, 2)}), true},
		{"unknown", Float, cty.UnknownVal(cty.Number), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckValue(tt.typ, tt.val)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseAndFormatValue(t *testing.T) {
	tests := []struct {
		typ ParamType
		raw string
	}{
		{Integer, "-7"},
		{UnsignedInteger, "12"},
		{Float, "2.5"},
		{Boolean, "true"},
		{String, "cg0"},
		{PositionParam, "1,-2.5"},
		{PositionList, "0,0;10,5"},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			v, err := ParseValue(tt.typ, tt.raw)
			require.NoError(t, err)
			require.NoError(t, CheckValue(tt.typ, v))
			assert.Equal(t, tt.raw, FormatValue(tt.typ, v))
		})
	}
}

func TestParseValueRejectsGarbage(t *testing.T) {
	for _, typ := range []ParamType{Integer, UnsignedInteger, Float, Boolean, PositionParam, PositionList} {
		_, err := ParseValue(typ, "nope")
		assert.Error(t, err, typ.String())
	}
	_, err := ParseValue(Float, "NaN")
	assert.Error(t, err)
	_, err = ParseValue(UnsignedInteger, "-1")
	assert.Error(t, err)
}

func TestParamsAccessors(t *testing.T) {
	d, _ := Lookup(CopyPointsAndRandomOffset)
	p := d.Defaults()
	assert.Equal(t, "all", p.Text("group_name"))
	assert.True(t, p.Bool("group"))
	assert.Equal(t, uint64(1), p.Uint("iterations"))
	assert.Equal(t, geometry.Position{}, p.Position("min_offset"))

	// Absent names read as zero values.
	assert.Equal(t, 0.0, p.Float("missing"))
	assert.Equal(t, "", p.Text("missing"))
	assert.Nil(t, p.Positions("missing"))
}
