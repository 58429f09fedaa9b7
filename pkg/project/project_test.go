package project

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/chazu/hardeen/pkg/geometry"
	"github.com/chazu/hardeen/pkg/graph"
	"github.com/chazu/hardeen/pkg/processor"
	"github.com/chazu/hardeen/pkg/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func assertCode(t *testing.T, want status.Code, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, status.CodeOf(err), "error: %v", err)
}

func mustAdd(t *testing.T, p *Project, typ processor.Type) *graph.NodeHandle {
	t.Helper()
	h, err := p.AddNode(typ)
	require.NoError(t, err)
	return h
}

func TestScaledRectangleScenario(t *testing.T) {
	p := New()
	a := mustAdd(t, p, processor.CreateRectangle)
	b := mustAdd(t, p, processor.Scale)
	require.NoError(t, p.Connect(a, b, 0))
	require.NoError(t, p.SetParameter(b, "factor", cty.NumberFloatVal(2.0)))

	w, err := p.EvaluateNode(context.Background(), b)
	require.NoError(t, err)
	lo, hi, ok := w.BoundingRect()
	require.True(t, ok)
	assert.Equal(t, geometry.Pos(-10, -10), lo)
	assert.Equal(t, geometry.Pos(10, 10), hi)

	require.NoError(t, p.SetOutput(b))
	again, err := p.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, w.Positions(), again.Positions())
}

func TestUnconnectedScaleScenario(t *testing.T) {
	p := New()
	c := mustAdd(t, p, processor.Scale)
	_, err := p.EvaluateNode(context.Background(), c)
	assertCode(t, status.NodeInputNotSatisfied, err)
}

func TestNoOutputScenario(t *testing.T) {
	p := New()
	_, err := p.Evaluate(context.Background())
	assertCode(t, status.GraphOutputNotSet, err)
	_, err = p.Output()
	assertCode(t, status.GraphOutputNotSet, err)
}

func TestPointsIntoShapesScenario(t *testing.T) {
	p := New()
	scatter := mustAdd(t, p, processor.ScatterPoints)
	sc := mustAdd(t, p, processor.Scale)
	assertCode(t, status.NodeInputTypeMismatch, p.Connect(scatter, sc, 0))
}

func TestInputSatisfied(t *testing.T) {
	p := New()
	rect := mustAdd(t, p, processor.CreateRectangle)
	sc := mustAdd(t, p, processor.Scale)

	ok, err := p.InputSatisfied(sc)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, p.Connect(rect, sc, 0))
	ok, err = p.InputSatisfied(sc)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = p.InputSatisfied(nil)
	assertCode(t, status.GotNullPointer, err)
}

func TestAddNodeByName(t *testing.T) {
	p := New()
	h, err := p.AddNodeByName("SortPointsX")
	require.NoError(t, err)
	typ, err := p.NodeType(h)
	require.NoError(t, err)
	assert.Equal(t, processor.SortPointsX, typ)

	_, err = p.AddNodeByName("Rotate")
	assertCode(t, status.NodeTypeInvalid, err)
}

func TestNilProject(t *testing.T) {
	var p *Project
	_, err := p.AddNode(processor.Scale)
	assertCode(t, status.GotNullPointer, err)
	_, err = p.AddNodeByName("Nope")
	assertCode(t, status.GotNullPointer, err)
	assertCode(t, status.GotNullPointer, p.Destroy())
	_, err = p.Evaluate(context.Background())
	assertCode(t, status.GotNullPointer, err)
}

func TestDestroyInvalidatesEverything(t *testing.T) {
	p := New()
	h := mustAdd(t, p, processor.CreateRectangle)
	require.NoError(t, p.Destroy())

	_, err := p.NodeType(h)
	assertCode(t, status.InvalidReference, err)
	_, err = p.AddNode(processor.Scale)
	assertCode(t, status.InvalidReference, err)
	assertCode(t, status.InvalidReference, p.Destroy())
	assertCode(t, status.InvalidReference, p.ExitSubgraph())
}

func TestHandlesDoNotCrossProjects(t *testing.T) {
	a, b := New(), New()
	h := mustAdd(t, a, processor.CreateRectangle)
	_, err := b.NodeType(h)
	assertCode(t, status.InvalidReference, err)
	assertCode(t, status.InvalidReference, b.ReleaseHandle(h))
}

func TestReleaseHandle(t *testing.T) {
	p := New()
	h := mustAdd(t, p, processor.CreateRectangle)
	require.NoError(t, p.ReleaseHandle(h))
	require.NoError(t, p.ReleaseHandle(h))
	assertCode(t, status.GotNullPointer, p.ReleaseHandle(nil))

	_, err := p.NodeType(h)
	assertCode(t, status.InvalidHandle, err)

	nodes, err := p.Nodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1, "release must not delete the node")
}

func TestGenerationCheckAfterDelete(t *testing.T) {
	p := New()
	old := mustAdd(t, p, processor.CreateRectangle)
	require.NoError(t, p.DeleteNode(old))
	fresh := mustAdd(t, p, processor.CreateRectangle)

	_, err := p.NodeType(old)
	assertCode(t, status.InvalidHandle, err)
	_, err = p.NodeType(fresh)
	assert.NoError(t, err)
}

func TestNavigation(t *testing.T) {
	p := New()
	pts := mustAdd(t, p, processor.AddPoints)
	require.NoError(t, p.SetParameterString(pts, "positions", "0,0;50,0;100,0"))
	inst := mustAdd(t, p, processor.InstanceOnPoints)
	require.NoError(t, p.Connect(pts, inst, 0))
	require.NoError(t, p.SetOutput(inst))

	sc := mustAdd(t, p, processor.Scale)
	assertCode(t, status.NodeSlotDoesNotExist, p.EnterSubgraph(sc))

	require.NoError(t, p.EnterSubgraph(inst))
	depth, _ := p.Depth()
	assert.Equal(t, 1, depth)

	// Root handles are not addressable from inside the subgraph.
	assertCode(t, status.InvalidReference, p.SetOutput(inst))

	rect := mustAdd(t, p, processor.CreateRectangle)
	require.NoError(t, p.SetParameter(rect, "width", cty.NumberFloatVal(2)))
	require.NoError(t, p.SetParameter(rect, "height", cty.NumberFloatVal(2)))
	require.NoError(t, p.SetOutput(rect))

	require.NoError(t, p.ExitSubgraph())
	require.NoError(t, p.ExitSubgraph())
	depth, _ = p.Depth()
	assert.Equal(t, 0, depth)

	w, err := p.Evaluate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, w.ShapeCount())
	assert.Equal(t, 12, w.PointCount())
}

func TestExitToRoot(t *testing.T) {
	p := New()
	outer := mustAdd(t, p, processor.InstanceOnPoints)
	require.NoError(t, p.EnterSubgraph(outer))
	inner := mustAdd(t, p, processor.InstanceOnPoints)
	require.NoError(t, p.EnterSubgraph(inner))
	depth, _ := p.Depth()
	require.Equal(t, 2, depth)

	require.NoError(t, p.ExitToRoot())
	depth, _ = p.Depth()
	assert.Equal(t, 0, depth)
	require.NoError(t, p.ExitToRoot())
}

func TestDeletingInstanceInvalidatesSubgraphHandles(t *testing.T) {
	p := New()
	inst := mustAdd(t, p, processor.InstanceOnPoints)
	require.NoError(t, p.EnterSubgraph(inst))
	inner := mustAdd(t, p, processor.CreateRectangle)
	require.NoError(t, p.ExitSubgraph())

	require.NoError(t, p.DeleteNode(inst))
	_, err := p.NodeType(inner)
	assertCode(t, status.InvalidHandle, err)
}

func TestExposedParameters(t *testing.T) {
	p := New()
	h := mustAdd(t, p, processor.ScatterPoints)
	require.NoError(t, p.ExposeParameter("count", h, "num_points"))
	require.NoError(t, p.SetExposedParameter("count", cty.NumberUIntVal(3)))
	assertCode(t, status.ExposedParameterDoesNotExist, p.SetExposedParameter("other", cty.NumberUIntVal(3)))

	exposed, err := p.ExposedParameters()
	require.NoError(t, err)
	require.Len(t, exposed, 1)
	assert.Equal(t, processor.UnsignedInteger, exposed[0].Type)

	w, err := p.EvaluateNode(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, 3, w.PointCount())
}

func TestEvaluationIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p := New(WithLogger(logger), WithWorkers(2))
	h := mustAdd(t, p, processor.CreateRectangle)
	_, err := p.EvaluateNode(context.Background(), h)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "evaluation finished")
	assert.Contains(t, buf.String(), "node evaluated")
}

func TestProcessorTypes(t *testing.T) {
	types := ProcessorTypes()
	require.NotEmpty(t, types)
	assert.Equal(t, "Empty", types[0].Name)
	assert.Equal(t, "GroupPoints", types[len(types)-1].Name)
}
