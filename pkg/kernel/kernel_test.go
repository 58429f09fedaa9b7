package kernel

import (
	"testing"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// --- Mesh helper method tests ---

func TestMeshVertexCount(t *testing.T) {
	tests := []struct {
		name     string
		vertices []float32
		want     int
	}{
		{"empty", nil, 0},
		{"one vertex", []float32{1, 2, 3}, 1},
		{"four vertices", []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Vertices: tt.vertices}
			if got := m.VertexCount(); got != tt.want {
				t.Errorf("VertexCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshTriangleCount(t *testing.T) {
	tests := []struct {
		name    string
		indices []uint32
		want    int
	}{
		{"empty", nil, 0},
		{"one triangle", []uint32{0, 1, 2}, 1},
		{"two triangles", []uint32{0, 1, 2, 2, 3, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Mesh{Indices: tt.indices}
			if got := m.TriangleCount(); got != tt.want {
				t.Errorf("TriangleCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestMeshIsEmpty(t *testing.T) {
	t.Run("empty mesh", func(t *testing.T) {
		m := &Mesh{}
		if !m.IsEmpty() {
			t.Error("IsEmpty() = false for empty mesh, want true")
		}
	})
	t.Run("non-empty mesh", func(t *testing.T) {
		m := &Mesh{Vertices: []float32{1, 2, 3}}
		if m.IsEmpty() {
			t.Error("IsEmpty() = true for non-empty mesh, want false")
		}
	})
}

func TestMeshBounds(t *testing.T) {
	m := &Mesh{Vertices: []float32{1, 5, 0, -2, 3, 4, 0, 7, -1}}
	min, max, ok := m.Bounds()
	if !ok {
		t.Fatal("Bounds() ok = false for non-empty mesh")
	}
	if min != [3]float32{-2, 3, -1} {
		t.Errorf("min = %v, want [-2 3 -1]", min)
	}
	if max != [3]float32{1, 7, 4} {
		t.Errorf("max = %v, want [1 7 4]", max)
	}

	if _, _, ok := (&Mesh{}).Bounds(); ok {
		t.Error("Bounds() ok = true for empty mesh")
	}
}

// --- Compile-time interface check with a stub kernel ---

// stubSolid is a minimal Solid implementation for testing.
type stubSolid struct {
	minBB, maxBB [3]float64
}

func (s *stubSolid) BoundingBox() (min, max [3]float64) {
	return s.minBB, s.maxBB
}

// stubKernel is a minimal Kernel implementation that proves the interface
// is satisfiable.
type stubKernel struct{}

func (k *stubKernel) Extrude(outline []v2.Vec, height float64) (Solid, error) {
	s := &stubSolid{}
	for i, p := range outline {
		if i == 0 || p.X < s.minBB[0] {
			s.minBB[0] = p.X
		}
		if i == 0 || p.Y < s.minBB[1] {
			s.minBB[1] = p.Y
		}
		if i == 0 || p.X > s.maxBB[0] {
			s.maxBB[0] = p.X
		}
		if i == 0 || p.Y > s.maxBB[1] {
			s.maxBB[1] = p.Y
		}
	}
	s.maxBB[2] = height
	return s, nil
}

func (k *stubKernel) Union(a, _ Solid) Solid                   { return a }
func (k *stubKernel) Translate(s Solid, _, _, _ float64) Solid { return s }

func (k *stubKernel) ToMesh(_ Solid) (*Mesh, error) {
	return &Mesh{}, nil
}

// Compile-time checks that the stubs implement the interfaces.
var _ Solid = (*stubSolid)(nil)
var _ Kernel = (*stubKernel)(nil)

func TestStubKernelExtrudeBoundingBox(t *testing.T) {
	var k Kernel = &stubKernel{}
	s, err := k.Extrude([]v2.Vec{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 20}}, 30)
	if err != nil {
		t.Fatalf("Extrude() error = %v", err)
	}
	min, max := s.BoundingBox()
	if min != [3]float64{0, 0, 0} {
		t.Errorf("min = %v, want [0 0 0]", min)
	}
	if max != [3]float64{10, 20, 30} {
		t.Errorf("max = %v, want [10 20 30]", max)
	}
}
