package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOrderIsStable(t *testing.T) {
	// The numeric values are part of the external contract.
	assert.Equal(t, 0, int(Ok))
	assert.Equal(t, 1, int(GotNullPointer))
	assert.Equal(t, 10, int(InvalidHandle))
	assert.Equal(t, 12, int(GraphOutputNotSet))
	assert.Equal(t, 14, int(ExposedParameterDoesNotExist))
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "NodeInputTypeMismatch", NodeInputTypeMismatch.String())
	assert.Equal(t, "Code(99)", Code(99).String())
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, Ok},
		{"bare code", InvalidHandle, InvalidHandle},
		{"structured", Errorf(NodeTypeInvalid, "bad type %d", 42), NodeTypeInvalid},
		{"wrapped", fmt.Errorf("project: connect: %w", Errorf(NodeInputTypeMismatch, "x")), NodeInputTypeMismatch},
		{"foreign", errors.New("boom"), ErrorProcessingNode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestErrorIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("graph: %w", Errorf(NodeInputNotSatisfied, "unbound").WithNode("Scale#1").WithSlot(0))

	require.ErrorIs(t, err, NodeInputNotSatisfied)
	assert.NotErrorIs(t, err, InvalidHandle)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "Scale#1", se.Node)
	assert.Equal(t, 0, se.Slot)
	assert.Contains(t, err.Error(), "node=Scale#1 slot=0")
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("division by zero")
	err := Wrap(ErrorProcessingNode, cause).WithParam("factor")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `param="factor"`)
	assert.NotContains(t, err.Error(), "slot=")
}
