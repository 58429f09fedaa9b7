// Package status defines the closed set of result codes returned by every
// fallible hardeen operation, and the structured error that carries them.
package status

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a result code. The numeric values are stable and form part of the
// external contract.
type Code int

const (
	Ok Code = iota
	GotNullPointer
	InvalidReference
	NodeSlotDoesNotExist
	InvalidInputSlotNumber
	NodeParameterDoesNotExist
	NodeInputTypeMismatch
	NodeRunTypeMismatch
	NodeOutputHandleInvalid
	NodeInputNotSatisfied
	InvalidHandle
	NodeTypeInvalid
	GraphOutputNotSet
	ErrorProcessingNode
	ExposedParameterDoesNotExist
)

var codeNames = [...]string{
	Ok:                           "Ok",
	GotNullPointer:               "GotNullPointer",
	InvalidReference:             "InvalidReference",
	NodeSlotDoesNotExist:         "NodeSlotDoesNotExist",
	InvalidInputSlotNumber:       "InvalidInputSlotNumber",
	NodeParameterDoesNotExist:    "NodeParameterDoesNotExist",
	NodeInputTypeMismatch:        "NodeInputTypeMismatch",
	NodeRunTypeMismatch:          "NodeRunTypeMismatch",
	NodeOutputHandleInvalid:      "NodeOutputHandleInvalid",
	NodeInputNotSatisfied:        "NodeInputNotSatisfied",
	InvalidHandle:                "InvalidHandle",
	NodeTypeInvalid:              "NodeTypeInvalid",
	GraphOutputNotSet:            "GraphOutputNotSet",
	ErrorProcessingNode:          "ErrorProcessingNode",
	ExposedParameterDoesNotExist: "ExposedParameterDoesNotExist",
}

func (c Code) String() string {
	if c < 0 || int(c) >= len(codeNames) {
		return fmt.Sprintf("Code(%d)", int(c))
	}
	return codeNames[c]
}

// Error lets a bare Code be returned and matched with errors.Is.
func (c Code) Error() string {
	return c.String()
}

// Error is the structured failure returned by hardeen operations. Node, Slot
// and Param are filled in when the failure can be attributed to them.
type Error struct {
	Code  Code
	Node  string
	Slot  int
	Param string
	Err   error
}

// Errorf builds an Error for code with a formatted cause. Slot defaults to -1.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Slot: -1, Err: fmt.Errorf(format, args...)}
}

// Wrap builds an Error for code around an existing cause.
func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Slot: -1, Err: err}
}

// WithNode attaches the name of the node the failure belongs to.
func (e *Error) WithNode(node string) *Error {
	e.Node = node
	return e
}

// WithSlot attaches an input slot index.
func (e *Error) WithSlot(slot int) *Error {
	e.Slot = slot
	return e
}

// WithParam attaches a parameter name.
func (e *Error) WithParam(name string) *Error {
	e.Param = name
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.String())
	if e.Node != "" {
		fmt.Fprintf(&b, " node=%s", e.Node)
	}
	if e.Slot >= 0 {
		fmt.Fprintf(&b, " slot=%d", e.Slot)
	}
	if e.Param != "" {
		fmt.Fprintf(&b, " param=%q", e.Param)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the same Code as e.
func (e *Error) Is(target error) bool {
	c, ok := target.(Code)
	return ok && c == e.Code
}

// CodeOf maps an error to its result code. nil is Ok; errors that carry no
// code are reported as ErrorProcessingNode.
func CodeOf(err error) Code {
	if err == nil {
		return Ok
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return ErrorProcessingNode
}
