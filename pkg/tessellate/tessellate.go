// Package tessellate turns the closed shapes of an evaluated World into
// triangle meshes by extruding each outline with a geometry kernel. One mesh
// is produced per shape unless Merged is requested.
package tessellate

import (
	"errors"
	"fmt"

	"github.com/chazu/hardeen/pkg/geometry"
	"github.com/chazu/hardeen/pkg/kernel"
)

// ErrNoHeight is returned when the extrusion height is not positive.
var ErrNoHeight = errors.New("tessellate: extrusion height must be positive")

// Options controls tessellation.
type Options struct {
	// Height is the extrusion height for every shape.
	Height float64
	// Base is the z coordinate of every extrusion's bottom face.
	Base float64
	// Merged unions all shapes into a single mesh.
	Merged bool
}

// Tessellate extrudes every closed shape of w with at least three vertices.
// Open and degenerate shapes are skipped. The World is never mutated.
func Tessellate(w *geometry.World, k kernel.Kernel, opts Options) ([]*kernel.Mesh, error) {
	if w == nil {
		return nil, nil
	}
	if opts.Height <= 0 {
		return nil, ErrNoHeight
	}

	type part struct {
		name  string
		solid kernel.Solid
	}
	var parts []part
	for h, s := range w.Shapes() {
		if !s.Closed || len(s.Vertices) < 3 {
			continue
		}
		outline, err := w.ShapeOutline(h)
		if err != nil {
			return nil, fmt.Errorf("tessellate: shape %s: %w", h, err)
		}
		solid, err := k.Extrude(outline, opts.Height)
		if err != nil {
			return nil, fmt.Errorf("tessellate: extrude shape %s: %w", h, err)
		}
		if opts.Base != 0 {
			solid = k.Translate(solid, 0, 0, opts.Base)
		}
		parts = append(parts, part{name: "shape " + h.String(), solid: solid})
	}
	if len(parts) == 0 {
		return nil, nil
	}

	if opts.Merged {
		merged := parts[0].solid
		for _, p := range parts[1:] {
			merged = k.Union(merged, p.solid)
		}
		parts = []part{{name: "merged", solid: merged}}
	}

	meshes := make([]*kernel.Mesh, 0, len(parts))
	for _, p := range parts {
		mesh, err := k.ToMesh(p.solid)
		if err != nil {
			return nil, fmt.Errorf("tessellate: ToMesh failed for %s: %w", p.name, err)
		}
		mesh.Name = p.name
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}
