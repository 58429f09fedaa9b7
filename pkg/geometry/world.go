package geometry

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	"github.com/chazu/hardeen/pkg/handle"
)

// AllGroup is the name of the implicit group every point belongs to.
const AllGroup = "all"

type (
	PointHandle = handle.Handle
	ShapeHandle = handle.Handle
	GroupHandle = handle.Handle
)

// Point is a vertex with bezier tangents. Tangents are stored relative to
// the owning position; zero tangents denote a linear segment.
type Point struct {
	Position   Position
	InTangent  Position
	OutTangent Position
}

// LinearPoint returns a point with zero tangents.
func LinearPoint(p Position) Point {
	return Point{Position: p}
}

// Shape is an ordered outline through points of the same World.
type Shape struct {
	Vertices []PointHandle
	Closed   bool
}

// Group is a named, ordered selection of points.
type Group struct {
	Name   string
	Points []PointHandle
}

// World is a self-contained collection of points, shapes and groups. A World
// returned from a processor is never mutated again; processors Clone their
// inputs before changing them.
type World struct {
	points handle.Arena[Point]
	shapes handle.Arena[Shape]
	groups handle.Arena[Group]
	all    GroupHandle
}

// New returns an empty World holding only the implicit "all" group.
func New() *World {
	w := &World{}
	w.all = w.groups.Insert(Group{Name: AllGroup})
	return w
}

// Clone returns a deep copy of w. Handles into w stay valid for the copy.
func (w *World) Clone() *World {
	return &World{
		points: *w.points.Clone(nil),
		shapes: *w.shapes.Clone(func(s Shape) Shape {
			s.Vertices = slices.Clone(s.Vertices)
			return s
		}),
		groups: *w.groups.Clone(func(g Group) Group {
			g.Points = slices.Clone(g.Points)
			return g
		}),
		all: w.all,
	}
}

// ---------------------------------------------------------------------------
// Points
// ---------------------------------------------------------------------------

// CreatePoint adds p to the world and to the "all" group.
func (w *World) CreatePoint(p Point) PointHandle {
	h := w.points.Insert(p)
	g, _ := w.groups.Ptr(w.all)
	g.Points = append(g.Points, h)
	return h
}

// Point returns the point behind h.
func (w *World) Point(h PointHandle) (Point, error) {
	p, err := w.points.Get(h)
	if err != nil {
		return Point{}, fmt.Errorf("geometry: point %s: %w", h, err)
	}
	return p, nil
}

// SetPoint replaces the point behind h.
func (w *World) SetPoint(h PointHandle, p Point) error {
	if err := w.points.Set(h, p); err != nil {
		return fmt.Errorf("geometry: point %s: %w", h, err)
	}
	return nil
}

// PointCount returns the number of points.
func (w *World) PointCount() int {
	return w.points.Len()
}

// AllPoints returns the handles of the "all" group in group order.
func (w *World) AllPoints() []PointHandle {
	g, _ := w.groups.Get(w.all)
	return slices.Clone(g.Points)
}

// Positions returns point positions in "all" group order.
func (w *World) Positions() []Position {
	g, _ := w.groups.Get(w.all)
	out := make([]Position, 0, len(g.Points))
	for _, h := range g.Points {
		if p, err := w.points.Get(h); err == nil {
			out = append(out, p.Position)
		}
	}
	return out
}

// MutateAllPoints applies fn to every point.
func (w *World) MutateAllPoints(fn func(*Point)) {
	for _, h := range w.points.Handles() {
		p, _ := w.points.Ptr(h)
		fn(p)
	}
}

// MutateGroupPoints applies fn once to each distinct point of group g.
func (w *World) MutateGroupPoints(g GroupHandle, fn func(*Point)) error {
	grp, err := w.groups.Get(g)
	if err != nil {
		return fmt.Errorf("geometry: group %s: %w", g, err)
	}
	seen := make(map[PointHandle]struct{}, len(grp.Points))
	for _, h := range grp.Points {
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		p, err := w.points.Ptr(h)
		if err != nil {
			return fmt.Errorf("geometry: group %q point %s: %w", grp.Name, h, err)
		}
		fn(p)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Shapes
// ---------------------------------------------------------------------------

// CreateShape adds an empty shape.
func (w *World) CreateShape(closed bool) ShapeHandle {
	return w.shapes.Insert(Shape{Closed: closed})
}

// AddPointsToShape appends pts, in order, to the vertices of s.
func (w *World) AddPointsToShape(s ShapeHandle, pts ...PointHandle) error {
	shape, err := w.shapes.Ptr(s)
	if err != nil {
		return fmt.Errorf("geometry: shape %s: %w", s, err)
	}
	for _, p := range pts {
		if !w.points.Contains(p) {
			return fmt.Errorf("geometry: shape %s: unknown point %s", s, p)
		}
	}
	shape.Vertices = append(shape.Vertices, pts...)
	return nil
}

// Shape returns the shape behind h.
func (w *World) Shape(h ShapeHandle) (Shape, error) {
	s, err := w.shapes.Get(h)
	if err != nil {
		return Shape{}, fmt.Errorf("geometry: shape %s: %w", h, err)
	}
	return s, nil
}

// RemoveShape deletes a shape. Its points are kept.
func (w *World) RemoveShape(h ShapeHandle) error {
	if err := w.shapes.Remove(h); err != nil {
		return fmt.Errorf("geometry: shape %s: %w", h, err)
	}
	return nil
}

// Shapes iterates shapes in creation order.
func (w *World) Shapes() iter.Seq2[ShapeHandle, Shape] {
	return w.shapes.All()
}

// ShapeCount returns the number of shapes.
func (w *World) ShapeCount() int {
	return w.shapes.Len()
}

// ShapeOutline returns the vertex positions of shape h.
func (w *World) ShapeOutline(h ShapeHandle) ([]Position, error) {
	s, err := w.Shape(h)
	if err != nil {
		return nil, err
	}
	out := make([]Position, 0, len(s.Vertices))
	for _, v := range s.Vertices {
		p, err := w.Point(v)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Position)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Groups
// ---------------------------------------------------------------------------

// CreateGroup adds an empty group. Names are not required to be unique;
// GroupByName returns the first match.
func (w *World) CreateGroup(name string) GroupHandle {
	return w.groups.Insert(Group{Name: name})
}

// GroupByName looks a group up by name.
func (w *World) GroupByName(name string) (GroupHandle, bool) {
	for h, g := range w.groups.All() {
		if g.Name == name {
			return h, true
		}
	}
	return GroupHandle{}, false
}

// Group returns the group behind h.
func (w *World) Group(h GroupHandle) (Group, error) {
	g, err := w.groups.Get(h)
	if err != nil {
		return Group{}, fmt.Errorf("geometry: group %s: %w", h, err)
	}
	return g, nil
}

// AddPointsToGroup appends pts to group g.
func (w *World) AddPointsToGroup(g GroupHandle, pts ...PointHandle) error {
	grp, err := w.groups.Ptr(g)
	if err != nil {
		return fmt.Errorf("geometry: group %s: %w", g, err)
	}
	for _, p := range pts {
		if !w.points.Contains(p) {
			return fmt.Errorf("geometry: group %q: unknown point %s", grp.Name, p)
		}
	}
	grp.Points = append(grp.Points, pts...)
	return nil
}

// SortGroup reorders the points of g with a stable sort.
func (w *World) SortGroup(g GroupHandle, compare func(a, b Point) int) error {
	grp, err := w.groups.Ptr(g)
	if err != nil {
		return fmt.Errorf("geometry: group %s: %w", g, err)
	}
	slices.SortStableFunc(grp.Points, func(a, b PointHandle) int {
		pa, _ := w.points.Get(a)
		pb, _ := w.points.Get(b)
		return compare(pa, pb)
	})
	return nil
}

// Groups iterates groups in creation order, "all" first.
func (w *World) Groups() iter.Seq2[GroupHandle, Group] {
	return w.groups.All()
}

// GroupCount returns the number of groups including "all".
func (w *World) GroupCount() int {
	return w.groups.Len()
}

// CompareX orders points by X, then Y.
func CompareX(a, b Point) int {
	if c := cmp.Compare(a.Position.X, b.Position.X); c != 0 {
		return c
	}
	return cmp.Compare(a.Position.Y, b.Position.Y)
}

// ---------------------------------------------------------------------------
// Whole-world operations
// ---------------------------------------------------------------------------

// Merge copies every point, shape and group of other into w. Groups with a
// name already present in w are extended instead of duplicated.
func (w *World) Merge(other *World) {
	remap := make(map[PointHandle]PointHandle, other.points.Len())
	for _, h := range other.AllPoints() {
		p, _ := other.points.Get(h)
		remap[h] = w.CreatePoint(p)
	}
	for _, s := range other.shapes.All() {
		nh := w.CreateShape(s.Closed)
		verts := make([]PointHandle, len(s.Vertices))
		for i, v := range s.Vertices {
			verts[i] = remap[v]
		}
		_ = w.AddPointsToShape(nh, verts...)
	}
	for gh, g := range other.groups.All() {
		if gh == other.all {
			continue
		}
		target, ok := w.GroupByName(g.Name)
		if !ok {
			target = w.CreateGroup(g.Name)
		}
		pts := make([]PointHandle, len(g.Points))
		for i, p := range g.Points {
			pts[i] = remap[p]
		}
		_ = w.AddPointsToGroup(target, pts...)
	}
}

// BoundingRect returns the axis-aligned bounds of all point positions. ok is
// false for a world without points.
func (w *World) BoundingRect() (min, max Position, ok bool) {
	for _, p := range w.points.All() {
		if !ok {
			min, max, ok = p.Position, p.Position, true
			continue
		}
		min = min.Min(p.Position)
		max = max.Max(p.Position)
	}
	return min, max, ok
}
