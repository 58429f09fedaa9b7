package processor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/chazu/hardeen/pkg/geometry"
	"github.com/chazu/hardeen/pkg/script"
)

// errMissingInput is returned when a required slot reaches a computation
// unbound. The evaluator checks readiness first, so this indicates misuse.
var errMissingInput = errors.New("required input missing")

func required(inv Invocation, i int) (*geometry.World, error) {
	w := inv.Input(i)
	if w == nil {
		return nil, fmt.Errorf("%s: slot %d: %w", inv.Node, i, errMissingInput)
	}
	return w, nil
}

// newRand returns a deterministic generator for a node's seed parameter.
func newRand(p Params) *rand.Rand {
	seed := p.Uint("seed")
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// between returns a uniformly distributed offset in [min, max).
func between(r *rand.Rand, min, max geometry.Position) geometry.Position {
	return geometry.Pos(
		min.X+r.Float64()*(max.X-min.X),
		min.Y+r.Float64()*(max.Y-min.Y),
	)
}

func groupNamed(w *geometry.World, name string) (geometry.GroupHandle, error) {
	g, ok := w.GroupByName(name)
	if !ok {
		return geometry.GroupHandle{}, fmt.Errorf("no group named %q", name)
	}
	return g, nil
}

func computeEmpty(_ context.Context, _ Invocation) (*geometry.World, error) {
	return geometry.New(), nil
}

func computeCreateRectangle(_ context.Context, inv Invocation) (*geometry.World, error) {
	c := inv.Params.Position("position")
	hw := inv.Params.Float("width") / 2
	hh := inv.Params.Float("height") / 2

	w := geometry.New()
	rect := w.CreateShape(true)
	err := w.AddPointsToShape(rect,
		w.CreatePoint(geometry.LinearPoint(geometry.Pos(c.X-hw, c.Y-hh))),
		w.CreatePoint(geometry.LinearPoint(geometry.Pos(c.X+hw, c.Y-hh))),
		w.CreatePoint(geometry.LinearPoint(geometry.Pos(c.X+hw, c.Y+hh))),
		w.CreatePoint(geometry.LinearPoint(geometry.Pos(c.X-hw, c.Y+hh))),
	)
	return w, err
}

func computeScatterPoints(ctx context.Context, inv Invocation) (*geometry.World, error) {
	r := newRand(inv.Params)
	lo := inv.Params.Position("min_position")
	hi := inv.Params.Position("max_position")
	n := inv.Params.Uint("num_points")

	w := geometry.New()
	for i := uint64(0); i < n; i++ {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		w.CreatePoint(geometry.LinearPoint(between(r, lo, hi)))
	}
	return w, nil
}

func computeScale(_ context.Context, inv Invocation) (*geometry.World, error) {
	in, err := required(inv, 0)
	if err != nil {
		return nil, err
	}
	f := inv.Params.Float("factor")
	fx := f * inv.Params.Float("factor_x")
	fy := f * inv.Params.Float("factor_y")

	w := in.Clone()
	w.MutateAllPoints(func(p *geometry.Point) {
		p.Position = geometry.Pos(p.Position.X*fx, p.Position.Y*fy)
	})
	return w, nil
}

func computeRandomTangents(_ context.Context, inv Invocation) (*geometry.World, error) {
	in, err := required(inv, 0)
	if err != nil {
		return nil, err
	}
	r := newRand(inv.Params)
	s := inv.Params.Float("strength")

	w := in.Clone()
	w.MutateAllPoints(func(p *geometry.Point) {
		off := geometry.Pos((r.Float64()-0.5)*s, (r.Float64()-0.5)*s)
		p.InTangent = off
		p.OutTangent = off.MulScalar(-1)
	})
	return w, nil
}

func computeSmoothTangents(_ context.Context, inv Invocation) (*geometry.World, error) {
	in, err := required(inv, 0)
	if err != nil {
		return nil, err
	}
	s := inv.Params.Float("strength")
	w := in.Clone()

	for _, shape := range in.Shapes() {
		verts := shape.Vertices
		if len(verts) < 3 {
			continue
		}
		// Closed outlines wrap around; open ones keep their end tangents.
		window := verts
		if shape.Closed {
			window = make([]geometry.PointHandle, 0, len(verts)+2)
			window = append(window, verts[len(verts)-1])
			window = append(window, verts...)
			window = append(window, verts[0])
		}
		for i := 1; i+1 < len(window); i++ {
			prev, err := in.Point(window[i-1])
			if err != nil {
				return nil, err
			}
			cur, err := in.Point(window[i])
			if err != nil {
				return nil, err
			}
			next, err := in.Point(window[i+1])
			if err != nil {
				return nil, err
			}
			cur.OutTangent = next.Position.Sub(prev.Position).MulScalar(s)
			cur.InTangent = prev.Position.Sub(next.Position).MulScalar(s)
			if err := w.SetPoint(window[i], cur); err != nil {
				return nil, err
			}
		}
	}
	return w, nil
}

func computeAddPoints(_ context.Context, inv Invocation) (*geometry.World, error) {
	var w *geometry.World
	if in := inv.Input(0); in != nil {
		w = in.Clone()
	} else {
		w = geometry.New()
	}
	for _, p := range inv.Params.Positions("positions") {
		w.CreatePoint(geometry.LinearPoint(p))
	}
	return w, nil
}

func computeMerge(_ context.Context, inv Invocation) (*geometry.World, error) {
	a, err := required(inv, 0)
	if err != nil {
		return nil, err
	}
	b, err := required(inv, 1)
	if err != nil {
		return nil, err
	}
	w := a.Clone()
	w.Merge(b)
	return w, nil
}

func computeCopyPointsAndOffset(_ context.Context, inv Invocation) (*geometry.World, error) {
	in, err := required(inv, 0)
	if err != nil {
		return nil, err
	}
	off := inv.Params.Position("offset_position")

	w := in.Clone()
	for _, h := range in.AllPoints() {
		p, err := in.Point(h)
		if err != nil {
			return nil, err
		}
		p.Position = p.Position.Add(off)
		w.CreatePoint(p)
	}
	return w, nil
}

func computeSortPointsX(_ context.Context, inv Invocation) (*geometry.World, error) {
	in, err := required(inv, 0)
	if err != nil {
		return nil, err
	}
	w := in.Clone()
	all, err := groupNamed(w, geometry.AllGroup)
	if err != nil {
		return nil, err
	}
	return w, w.SortGroup(all, geometry.CompareX)
}

func computeCreateShapeFromGroup(_ context.Context, inv Invocation) (*geometry.World, error) {
	in, err := required(inv, 0)
	if err != nil {
		return nil, err
	}
	w := in.Clone()
	gh, err := groupNamed(w, inv.Params.Text("group_name"))
	if err != nil {
		return nil, err
	}
	g, err := w.Group(gh)
	if err != nil {
		return nil, err
	}
	shape := w.CreateShape(inv.Params.Bool("closed"))
	return w, w.AddPointsToShape(shape, g.Points...)
}

func computeCreateShapeFromAllGroups(_ context.Context, inv Invocation) (*geometry.World, error) {
	in, err := required(inv, 0)
	if err != nil {
		return nil, err
	}
	closed := inv.Params.Bool("closed")
	w := in.Clone()
	for _, g := range in.Groups() {
		if g.Name == geometry.AllGroup {
			continue
		}
		shape := w.CreateShape(closed)
		if err := w.AddPointsToShape(shape, g.Points...); err != nil {
			return nil, err
		}
	}
	return w, nil
}

func computeTranslate(_ context.Context, inv Invocation) (*geometry.World, error) {
	in, err := required(inv, 0)
	if err != nil {
		return nil, err
	}
	off := inv.Params.Position("offset")
	w := in.Clone()
	gh, err := groupNamed(w, inv.Params.Text("group_name"))
	if err != nil {
		return nil, err
	}
	return w, w.MutateGroupPoints(gh, func(p *geometry.Point) {
		p.Position = p.Position.Add(off)
	})
}

func computeRandomTranslate(_ context.Context, inv Invocation) (*geometry.World, error) {
	in, err := required(inv, 0)
	if err != nil {
		return nil, err
	}
	r := newRand(inv.Params)
	lo := inv.Params.Position("min_offset")
	hi := inv.Params.Position("max_offset")
	w := in.Clone()
	gh, err := groupNamed(w, inv.Params.Text("group_name"))
	if err != nil {
		return nil, err
	}
	return w, w.MutateGroupPoints(gh, func(p *geometry.Point) {
		p.Position = p.Position.Add(between(r, lo, hi))
	})
}

func computeCopyPointsAndRandomOffset(_ context.Context, inv Invocation) (*geometry.World, error) {
	in, err := required(inv, 0)
	if err != nil {
		return nil, err
	}
	r := newRand(inv.Params)
	lo := inv.Params.Position("min_offset")
	hi := inv.Params.Position("max_offset")
	grouped := inv.Params.Bool("group")
	iterations := inv.Params.Uint("iterations")

	src, err := groupNamed(in, inv.Params.Text("group_name"))
	if err != nil {
		return nil, err
	}
	g, err := in.Group(src)
	if err != nil {
		return nil, err
	}

	w := in.Clone()
	for c, h := range g.Points {
		last, err := in.Point(h)
		if err != nil {
			return nil, err
		}
		// Each source point starts a chain "cg<c>" of its successive copies.
		var chain geometry.GroupHandle
		if grouped {
			chain = w.CreateGroup(fmt.Sprintf("cg%d", c))
			if err := w.AddPointsToGroup(chain, h); err != nil {
				return nil, err
			}
		}
		for range iterations {
			last.Position = last.Position.Add(between(r, lo, hi))
			nh := w.CreatePoint(last)
			if grouped {
				if err := w.AddPointsToGroup(chain, nh); err != nil {
					return nil, err
				}
			}
		}
	}
	return w, nil
}

func computeInstanceOnPoints(ctx context.Context, inv Invocation) (*geometry.World, error) {
	in, err := required(inv, 0)
	if err != nil {
		return nil, err
	}
	w := geometry.New()
	if inv.Subgraph == nil {
		return w, nil
	}
	instance, err := inv.Subgraph(ctx)
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return w, nil
	}

	gh, err := groupNamed(in, inv.Params.Text("group_name"))
	if err != nil {
		return nil, err
	}
	g, err := in.Group(gh)
	if err != nil {
		return nil, err
	}
	for _, h := range g.Points {
		at, err := in.Point(h)
		if err != nil {
			return nil, err
		}
		placed := instance.Clone()
		placed.MutateAllPoints(func(p *geometry.Point) {
			p.Position = p.Position.Add(at.Position)
		})
		w.Merge(placed)
	}
	return w, nil
}

func computeExtrudeShape(_ context.Context, inv Invocation) (*geometry.World, error) {
	in, err := required(inv, 0)
	if err != nil {
		return nil, err
	}
	r := newRand(inv.Params)
	lo := inv.Params.Float("min_thickness")
	hi := inv.Params.Float("max_thickness")
	thickness := func() float64 { return lo + r.Float64()*(hi-lo) }

	w := in.Clone()
	for sh, shape := range in.Shapes() {
		if shape.Closed || len(shape.Vertices) < 2 {
			continue
		}
		outline, err := in.ShapeOutline(sh)
		if err != nil {
			return nil, err
		}

		left := make([]geometry.PointHandle, 0, len(outline))
		right := make([]geometry.PointHandle, 0, len(outline))
		for i, pos := range outline {
			n := outlineNormal(outline, i)
			src, _ := in.Point(shape.Vertices[i])
			left = append(left, w.CreatePoint(geometry.Point{
				Position:   pos.Add(n.MulScalar(thickness())),
				InTangent:  src.InTangent,
				OutTangent: src.OutTangent,
			}))
			right = append(right, w.CreatePoint(geometry.Point{
				Position:   pos.Sub(n.MulScalar(thickness())),
				InTangent:  src.OutTangent,
				OutTangent: src.InTangent,
			}))
		}

		// One side runs backwards so the two offsets form a single loop.
		for i, j := 0, len(left)-1; i < j; i, j = i+1, j-1 {
			left[i], left[j] = left[j], left[i]
		}
		band := w.CreateShape(true)
		if err := w.AddPointsToShape(band, append(left, right...)...); err != nil {
			return nil, err
		}
		if err := w.RemoveShape(sh); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// outlineNormal returns the unit normal of an open polyline at vertex i,
// averaging the directions of its adjacent segments.
func outlineNormal(outline []geometry.Position, i int) geometry.Position {
	var dir geometry.Position
	if i+1 < len(outline) {
		dir = dir.Add(geometry.Normalize(outline[i+1].Sub(outline[i])))
	}
	if i > 0 {
		dir = dir.Add(geometry.Normalize(outline[i].Sub(outline[i-1])))
	}
	return geometry.Normalize(geometry.Pos(-dir.Y, dir.X))
}

func computeGroupPoints(ctx context.Context, inv Invocation) (*geometry.World, error) {
	in, err := required(inv, 0)
	if err != nil {
		return nil, err
	}
	w := in.Clone()
	name := inv.Params.Text("group_name")
	if name == "" {
		return w, nil
	}

	handles := in.AllPoints()
	pts := make([]script.Point, len(handles))
	for i, h := range handles {
		p, err := in.Point(h)
		if err != nil {
			return nil, err
		}
		pts[i] = script.Point{X: p.Position.X, Y: p.Position.Y, N: i + 1}
	}
	pred := script.Predicate{Source: inv.Params.Text("condition"), Timeout: inv.ScriptTimeout}
	matches, err := pred.Eval(ctx, pts)
	if err != nil {
		return nil, err
	}

	g := w.CreateGroup(name)
	var members []geometry.PointHandle
	for i, ok := range matches {
		if ok {
			members = append(members, handles[i])
		}
	}
	return w, w.AddPointsToGroup(g, members...)
}
