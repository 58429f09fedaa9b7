// Package script evaluates small user-supplied expressions in a sandboxed
// zygomys environment. Processors use it for per-point predicates; the
// engine package uses its error parsing for whole programs.
package script

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"
)

// DefaultTimeout bounds a single expression batch when the caller does not
// supply one.
const DefaultTimeout = 5 * time.Second

// EvalError represents a parse or runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?is)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?is)^line (\d+):\s*(.*)`)

// ParseError converts a zygomys error into one or more EvalError values,
// extracting a line number when the message carries one.
func ParseError(err error) []EvalError {
	msg := err.Error()

	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}

// Point is the set of bindings visible to a predicate: the point's
// coordinates and its 1-based position in the evaluated sequence.
type Point struct {
	X, Y float64
	N    int
}

// Predicate is a boolean zygomys expression over x, y and n.
type Predicate struct {
	Source  string
	Timeout time.Duration
}

// predicateFn is the name the expression is bound to inside the sandbox.
const predicateFn = "__predicate"

// Eval evaluates the predicate once per point and returns the results in
// order. All points are evaluated in a single fresh sandbox.
func (p Predicate) Eval(ctx context.Context, pts []Point) ([]bool, error) {
	if len(pts) == 0 {
		return nil, nil
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	type result struct {
		vals []bool
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result{err: fmt.Errorf("script: panic during evaluation: %v", r)}
			}
		}()
		vals, err := p.eval(pts)
		ch <- result{vals: vals, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.vals, res.err
	case <-timer.C:
		return nil, fmt.Errorf("script: evaluation timed out after %s", timeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("script: %w", ctx.Err())
	}
}

func (p Predicate) eval(pts []Point) ([]bool, error) {
	var b strings.Builder
	// The function header shares the first line with the expression so that
	// reported line numbers match the user's source.
	fmt.Fprintf(&b, "(defn %s [x y n] %s)\n[", predicateFn, p.Source)
	for i, pt := range pts {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "(%s %s %s %d)", predicateFn, formatFloat(pt.X), formatFloat(pt.Y), pt.N)
	}
	b.WriteString("]\n")

	env := zygo.NewZlispSandbox()
	defer env.Stop()

	if err := env.LoadString(b.String()); err != nil {
		return nil, fmt.Errorf("script: %w", ParseError(err)[0])
	}
	out, err := env.Run()
	if err != nil {
		return nil, fmt.Errorf("script: %w", ParseError(err)[0])
	}

	arr, ok := out.(*zygo.SexpArray)
	if !ok || len(arr.Val) != len(pts) {
		return nil, fmt.Errorf("script: unexpected result %T", out)
	}
	vals := make([]bool, len(pts))
	for i, v := range arr.Val {
		bv, ok := v.(*zygo.SexpBool)
		if !ok {
			return nil, fmt.Errorf("script: predicate must return a boolean, got %s", v.SexpString(nil))
		}
		vals[i] = bv.Val
	}
	return vals, nil
}

// formatFloat renders f so that zygomys reads it back as a float literal.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}
