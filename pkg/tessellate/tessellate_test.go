package tessellate_test

import (
	"errors"
	"math"
	"testing"

	"github.com/chazu/hardeen/pkg/geometry"
	"github.com/chazu/hardeen/pkg/kernel"
	"github.com/chazu/hardeen/pkg/kernel/sdfx"
	"github.com/chazu/hardeen/pkg/tessellate"
)

// newKernel returns a coarse sdfx kernel for testing.
func newKernel() kernel.Kernel {
	return sdfx.New(32)
}

// addSquare adds a closed square shape of the given size at (x, y).
func addSquare(w *geometry.World, x, y, size float64) {
	s := w.CreateShape(true)
	for _, p := range []geometry.Position{
		geometry.Pos(x, y),
		geometry.Pos(x+size, y),
		geometry.Pos(x+size, y+size),
		geometry.Pos(x, y+size),
	} {
		if err := w.AddPointsToShape(s, w.CreatePoint(geometry.LinearPoint(p))); err != nil {
			panic(err)
		}
	}
}

func TestSingleSquare(t *testing.T) {
	w := geometry.New()
	addSquare(w, 0, 0, 10)

	meshes, err := tessellate.Tessellate(w, newKernel(), tessellate.Options{Height: 5})
	if err != nil {
		t.Fatalf("Tessellate: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(meshes))
	}
	m := meshes[0]
	if m.IsEmpty() {
		t.Fatal("mesh is empty")
	}
	if m.Name == "" {
		t.Error("mesh should be named after its shape")
	}
	lo, hi, ok := m.Bounds()
	if !ok {
		t.Fatal("expected mesh bounds")
	}
	const tol = 1.0
	if math.Abs(float64(lo[2])) > tol || math.Abs(float64(hi[2])-5) > tol {
		t.Errorf("z extent = [%f, %f], expected ~[0, 5]", lo[2], hi[2])
	}
}

func TestBaseOffset(t *testing.T) {
	w := geometry.New()
	addSquare(w, 0, 0, 10)

	meshes, err := tessellate.Tessellate(w, newKernel(), tessellate.Options{Height: 5, Base: 20})
	if err != nil {
		t.Fatalf("Tessellate: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 mesh, got %d", len(meshes))
	}
	lo, hi, _ := meshes[0].Bounds()
	const tol = 1.0
	if math.Abs(float64(lo[2])-20) > tol || math.Abs(float64(hi[2])-25) > tol {
		t.Errorf("z extent = [%f, %f], expected ~[20, 25]", lo[2], hi[2])
	}
}

func TestOneMeshPerShape(t *testing.T) {
	w := geometry.New()
	addSquare(w, 0, 0, 10)
	addSquare(w, 50, 0, 10)

	meshes, err := tessellate.Tessellate(w, newKernel(), tessellate.Options{Height: 2})
	if err != nil {
		t.Fatalf("Tessellate: %v", err)
	}
	if len(meshes) != 2 {
		t.Fatalf("expected 2 meshes, got %d", len(meshes))
	}
	if meshes[0].Name == meshes[1].Name {
		t.Errorf("mesh names should differ, both %q", meshes[0].Name)
	}
}

func TestMerged(t *testing.T) {
	w := geometry.New()
	addSquare(w, 0, 0, 10)
	addSquare(w, 50, 0, 10)

	meshes, err := tessellate.Tessellate(w, newKernel(), tessellate.Options{Height: 2, Merged: true})
	if err != nil {
		t.Fatalf("Tessellate: %v", err)
	}
	if len(meshes) != 1 {
		t.Fatalf("expected 1 merged mesh, got %d", len(meshes))
	}
	lo, hi, _ := meshes[0].Bounds()
	if lo[0] > 1 || hi[0] < 59 {
		t.Errorf("merged x extent = [%f, %f], expected to span both squares", lo[0], hi[0])
	}
}

func TestSkipsOpenAndDegenerateShapes(t *testing.T) {
	w := geometry.New()
	open := w.CreateShape(false)
	for _, p := range []geometry.Position{geometry.Pos(0, 0), geometry.Pos(1, 0), geometry.Pos(1, 1)} {
		_ = w.AddPointsToShape(open, w.CreatePoint(geometry.LinearPoint(p)))
	}
	line := w.CreateShape(true)
	for _, p := range []geometry.Position{geometry.Pos(0, 0), geometry.Pos(1, 0)} {
		_ = w.AddPointsToShape(line, w.CreatePoint(geometry.LinearPoint(p)))
	}

	meshes, err := tessellate.Tessellate(w, newKernel(), tessellate.Options{Height: 1})
	if err != nil {
		t.Fatalf("Tessellate: %v", err)
	}
	if len(meshes) != 0 {
		t.Errorf("expected no meshes, got %d", len(meshes))
	}
}

func TestNilWorld(t *testing.T) {
	meshes, err := tessellate.Tessellate(nil, newKernel(), tessellate.Options{Height: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meshes != nil {
		t.Error("expected nil meshes for nil world")
	}
}

func TestRejectsNonPositiveHeight(t *testing.T) {
	w := geometry.New()
	addSquare(w, 0, 0, 10)
	_, err := tessellate.Tessellate(w, newKernel(), tessellate.Options{})
	if !errors.Is(err, tessellate.ErrNoHeight) {
		t.Errorf("expected ErrNoHeight, got %v", err)
	}
}
