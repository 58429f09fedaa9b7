// Package kernel defines the abstract solid-modeling interface used to turn
// 2D shapes into meshes. The sdfx subpackage provides the implementation.
package kernel

import v2 "github.com/deadsy/sdfx/vec/v2"

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Extrude lifts a closed polygon outline into a prism of the given
	// height with its base on z=0.
	Extrude(outline []v2.Vec, height float64) (Solid, error)

	// Union joins two solids.
	Union(a, b Solid) Solid

	// Translate moves a solid by (x, y, z).
	Translate(s Solid, x, y, z float64) Solid

	// ToMesh triangulates a solid.
	ToMesh(s Solid) (*Mesh, error)
}
