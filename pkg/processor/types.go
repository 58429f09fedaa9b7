// Package processor is the static catalog of processor types: their input
// slots, typed parameters, output data type, and the computation each one
// performs on geometry.
package processor

// Type enumerates the processor types. The order is stable and part of the
// external contract.
type Type int

const (
	Empty Type = iota
	CreateRectangle
	ScatterPoints
	Scale
	RandomTangents
	SmoothTangents
	AddPoints
	Merge
	CopyPointsAndOffset
	SortPointsX
	CreateShapeFromGroup
	CreateShapeFromAllGroups
	Translate
	RandomTranslate
	CopyPointsAndRandomOffset
	InstanceOnPoints
	ExtrudeShape
	GroupPoints

	typeCount
)

var typeNames = [typeCount]string{
	Empty:                     "Empty",
	CreateRectangle:           "CreateRectangle",
	ScatterPoints:             "ScatterPoints",
	Scale:                     "Scale",
	RandomTangents:            "RandomTangents",
	SmoothTangents:            "SmoothTangents",
	AddPoints:                 "AddPoints",
	Merge:                     "Merge",
	CopyPointsAndOffset:       "CopyPointsAndOffset",
	SortPointsX:               "SortPointsX",
	CreateShapeFromGroup:      "CreateShapeFromGroup",
	CreateShapeFromAllGroups:  "CreateShapeFromAllGroups",
	Translate:                 "Translate",
	RandomTranslate:           "RandomTranslate",
	CopyPointsAndRandomOffset: "CopyPointsAndRandomOffset",
	InstanceOnPoints:          "InstanceOnPoints",
	ExtrudeShape:              "ExtrudeShape",
	GroupPoints:               "GroupPoints",
}

// Valid reports whether t is one of the declared types.
func (t Type) Valid() bool {
	return t >= 0 && t < typeCount
}

func (t Type) String() string {
	if !t.Valid() {
		return "unknown"
	}
	return typeNames[t]
}

// ParseType looks a type up by its name.
func ParseType(name string) (Type, bool) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), true
		}
	}
	return 0, false
}

// DataType is the nominal kind of geometry a node produces or consumes.
type DataType int

const (
	Nothing DataType = iota // produced by Empty, accepted by no slot
	Points                  // loose point clouds
	Shapes                  // outlines built from points
	Groups                  // points organized into named groups
)

func (d DataType) String() string {
	switch d {
	case Nothing:
		return "nothing"
	case Points:
		return "points"
	case Shapes:
		return "shapes"
	case Groups:
		return "groups"
	default:
		return "unknown"
	}
}

// MarshalText renders the data type by name.
func (d DataType) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Compatible reports whether an output of type out may feed an input slot of
// type in. Only exact matches are accepted; Nothing feeds nothing.
func Compatible(out, in DataType) bool {
	return out == in && out != Nothing
}

// ParamType is the declared type of a processor parameter.
type ParamType int

const (
	Integer ParamType = iota
	UnsignedInteger
	Float
	Boolean
	PositionParam
	String
	PositionList
)

func (p ParamType) String() string {
	switch p {
	case Integer:
		return "Integer"
	case UnsignedInteger:
		return "UnsignedInteger"
	case Float:
		return "Float"
	case Boolean:
		return "Boolean"
	case PositionParam:
		return "Position"
	case String:
		return "String"
	case PositionList:
		return "PositionList"
	default:
		return "unknown"
	}
}

// MarshalText renders the parameter type by name.
func (p ParamType) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
