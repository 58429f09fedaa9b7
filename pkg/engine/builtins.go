package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/hardeen/pkg/geometry"
	"github.com/chazu/hardeen/pkg/graph"
	"github.com/chazu/hardeen/pkg/processor"
	"github.com/chazu/hardeen/pkg/project"
	"github.com/chazu/hardeen/pkg/status"
	zygo "github.com/glycerine/zygomys/zygo"
	"github.com/zclconf/go-cty/cty"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites hardeen Lisp source before passing it to
// zygomys:
//
//  1. :keyword becomes the string literal "__kw_keyword".
//  2. kebab-case identifiers become snake_case (set-exposed -> set_exposed);
//     zygomys reads a hyphen as subtraction.
//  3. ; line comments become // comments.
//
// String literals are left untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		// Skip double-quoted string literals.
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Skip backtick-quoted string literals.
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Convert ; line comments to // comments for zygomys.
		// zygomys uses // for line comments, not the traditional Lisp ;.
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			// Skip additional ; characters (;; style).
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		// Transform :keyword to "__kw_keyword".
		if b[i] == ':' && i+1 < len(b) {
			// Preserve := (assignment operator).
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			// Check for keyword: colon followed by a letter.
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				kwName := string(b[i+1 : j])
				result = append(result, '"')
				result = append(result, []byte(kwPrefix)...)
				result = append(result, []byte(kwName)...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// Transform kebab-case identifiers: alpha-alpha -> alpha_alpha.
		// Only when hyphen sits between identifier characters (not a minus operator).
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isIdentStartChar(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

func isIdentStartChar(c byte) bool {
	return isLetter(c)
}

// ---------------------------------------------------------------------------
// Custom Sexp types for passing Go values through the zygomys environment
// ---------------------------------------------------------------------------

// sexpNode wraps a node handle so it can be passed between builtins.
type sexpNode struct {
	h   *graph.NodeHandle
	typ processor.Type
}

func (n *sexpNode) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(node %q %s)", n.typ, n.h.ID())
}
func (n *sexpNode) Type() *zygo.RegisteredType { return nil }

// sexpPos wraps a 2D position.
type sexpPos struct {
	pos geometry.Position
}

func (p *sexpPos) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(pos %g %g)", p.pos.X, p.pos.Y)
}
func (p *sexpPos) Type() *zygo.RegisteredType { return nil }

// sexpPositions wraps a position list.
type sexpPositions struct {
	list []geometry.Position
}

func (p *sexpPositions) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(positions %q)", geometry.FormatPositionList(p.list))
}
func (p *sexpPositions) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

// isKW checks if a Sexp is a preprocessed keyword string.
// Returns the keyword name (without prefix) and true if it is.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", false
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], true
	}
	return "", false
}

// kwArgs holds the result of parsing a mixed positional+keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	keys       []string // keyword names in source order
	positional []zygo.Sexp
}

// parseArgs separates args into keyword and positional arguments. Keyword
// names are normalized to snake_case so :factor-x addresses factor_x.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	i := 0
	for i < len(args) {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			i++
			continue
		}
		name = strings.ReplaceAll(name, "-", "_")
		if _, seen := result.kw[name]; !seen {
			result.keys = append(result.keys, name)
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i += 2
		} else {
			// Trailing keyword with no value.
			result.kw[name] = zygo.SexpNull
			i++
		}
	}
	return result
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

// toFloat64 extracts a float64 from a Sexp (SexpInt or SexpFloat).
func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		if math.IsNaN(v.Val) || math.IsInf(v.Val, 0) {
			return 0, fmt.Errorf("expected finite number, got %s", v.SexpString(nil))
		}
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

// toInt extracts an integer from a SexpInt.
func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// toKeywordString extracts a keyword name or plain string from a Sexp.
// Handles both preprocessed keywords (__kw_z) and plain strings ("z").
func toKeywordString(s zygo.Sexp) (string, error) {
	str, ok := s.(*zygo.SexpStr)
	if !ok {
		return "", fmt.Errorf("expected keyword or string, got %T (%s)", s, s.SexpString(nil))
	}
	if strings.HasPrefix(str.S, kwPrefix) {
		return str.S[len(kwPrefix):], nil
	}
	return str.S, nil
}

func toNode(s zygo.Sexp) (*sexpNode, error) {
	if n, ok := s.(*sexpNode); ok {
		return n, nil
	}
	return nil, fmt.Errorf("expected node, got %T (%s)", s, s.SexpString(nil))
}

func toPos(s zygo.Sexp) (geometry.Position, error) {
	if p, ok := s.(*sexpPos); ok {
		return p.pos, nil
	}
	return geometry.Position{}, fmt.Errorf("expected (pos x y), got %T (%s)", s, s.SexpString(nil))
}

// toPositions accepts (positions ...) or a list/array of (pos x y).
func toPositions(s zygo.Sexp) ([]geometry.Position, error) {
	if p, ok := s.(*sexpPositions); ok {
		return p.list, nil
	}
	items, err := sexpListToSlice(s)
	if err != nil {
		return nil, err
	}
	out := make([]geometry.Position, 0, len(items))
	for i, item := range items {
		p, err := toPos(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, p)
	}
	return out, nil
}

// sexpListToSlice converts a SexpPair (Lisp list) or SexpArray to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// toValue converts a Sexp into a parameter value of type t.
func toValue(t processor.ParamType, s zygo.Sexp) (cty.Value, error) {
	switch t {
	case processor.Integer, processor.UnsignedInteger:
		switch v := s.(type) {
		case *zygo.SexpInt:
			return cty.NumberIntVal(v.Val), nil
		case *zygo.SexpFloat:
			f, err := toFloat64(v)
			if err != nil {
				return cty.NilVal, err
			}
			return cty.NumberFloatVal(f), nil
		}
		return cty.NilVal, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
	case processor.Float:
		f, err := toFloat64(s)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.NumberFloatVal(f), nil
	case processor.Boolean:
		if b, ok := s.(*zygo.SexpBool); ok {
			return cty.BoolVal(b.Val), nil
		}
		return cty.NilVal, fmt.Errorf("expected boolean, got %T (%s)", s, s.SexpString(nil))
	case processor.String:
		str, err := toKeywordString(s)
		if err != nil {
			return cty.NilVal, err
		}
		return cty.StringVal(str), nil
	case processor.PositionParam:
		p, err := toPos(s)
		if err != nil {
			return cty.NilVal, err
		}
		return processor.PositionVal(p), nil
	case processor.PositionList:
		ps, err := toPositions(s)
		if err != nil {
			return cty.NilVal, err
		}
		return processor.PositionListVal(ps), nil
	}
	return cty.NilVal, fmt.Errorf("unsupported parameter type %s", t)
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

type builtinFunc = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// builder applies DSL calls to a project and tracks the handles it holds.
type builder struct {
	p       *project.Project
	handles []*graph.NodeHandle
	created int
}

func newBuilder(p *project.Project) *builder {
	return &builder{p: p}
}

// releaseAll gives up every handle the script held. Nodes stay in the
// project.
func (b *builder) releaseAll() {
	for _, h := range b.handles {
		_ = b.p.ReleaseHandle(h)
	}
	b.handles = nil
}

func (b *builder) setParam(n *sexpNode, name string, v zygo.Sexp) error {
	d, ok := processor.Lookup(n.typ)
	if !ok {
		return status.Errorf(status.NodeTypeInvalid, "unknown processor type %d", int(n.typ))
	}
	decl, ok := d.Parameter(name)
	if !ok {
		return status.Errorf(status.NodeParameterDoesNotExist, "%s has no parameter %q", n.typ, name).WithParam(name)
	}
	val, err := toValue(decl.Type, v)
	if err != nil {
		return status.Wrap(status.NodeRunTypeMismatch, err).WithParam(name)
	}
	return b.p.SetParameter(n.h, name, val)
}

// register installs the hardeen DSL builtins into a zygomys environment.
//
// Source code must be preprocessed with preprocessSource() so that :keyword
// tokens and kebab-case names reach the builtins in their expected form.
func (b *builder) register(env *zygo.Zlisp) {

	// -----------------------------------------------------------------------
	// (node "Scale" :factor 2.0)
	// -----------------------------------------------------------------------
	env.AddFunction("node", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) < 1 {
			return zygo.SexpNull, fmt.Errorf("node requires a processor type name")
		}
		typeName, err := toKeywordString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node: type: %w", err)
		}
		h, err := b.p.AddNodeByName(typeName)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("node: %w", err)
		}
		b.handles = append(b.handles, h)
		b.created++

		typ, _ := processor.ParseType(typeName)
		n := &sexpNode{h: h, typ: typ}
		for _, k := range pa.keys {
			if err := b.setParam(n, k, pa.kw[k]); err != nil {
				return zygo.SexpNull, fmt.Errorf("node: %s: %w", k, err)
			}
		}
		return n, nil
	})

	// -----------------------------------------------------------------------
	// (param n "factor" 2.0)
	// -----------------------------------------------------------------------
	env.AddFunction("param", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("param requires a node, a parameter name and a value")
		}
		n, err := toNode(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("param: %w", err)
		}
		pname, err := toKeywordString(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("param: name: %w", err)
		}
		if err := b.setParam(n, pname, args[2]); err != nil {
			return zygo.SexpNull, fmt.Errorf("param: %w", err)
		}
		return n, nil
	})

	// -----------------------------------------------------------------------
	// (connect src dst :slot 0) and (disconnect src dst :slot 0)
	// -----------------------------------------------------------------------
	edge := func(verb string, apply func(src, dst *graph.NodeHandle, slot int) error) builtinFunc {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			pa := parseArgs(args)
			if len(pa.positional) != 2 {
				return zygo.SexpNull, fmt.Errorf("%s requires a source and a destination node", verb)
			}
			src, err := toNode(pa.positional[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: source: %w", verb, err)
			}
			dst, err := toNode(pa.positional[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: destination: %w", verb, err)
			}
			slot := 0
			if v, ok := pa.kw["slot"]; ok {
				if slot, err = toInt(v); err != nil {
					return zygo.SexpNull, fmt.Errorf("%s: slot: %w", verb, err)
				}
			}
			if err := apply(src.h, dst.h, slot); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", verb, err)
			}
			return dst, nil
		}
	}
	env.AddFunction("connect", edge("connect", b.p.Connect))
	env.AddFunction("disconnect", edge("disconnect", b.p.Disconnect))

	// -----------------------------------------------------------------------
	// (pos 1 2) and (positions (pos 0 0) (pos 1 1))
	// -----------------------------------------------------------------------
	env.AddFunction("pos", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("pos requires exactly 2 arguments, got %d", len(args))
		}
		x, err := toFloat64(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pos: x: %w", err)
		}
		y, err := toFloat64(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("pos: y: %w", err)
		}
		return &sexpPos{pos: geometry.Pos(x, y)}, nil
	})

	env.AddFunction("positions", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		list := make([]geometry.Position, 0, len(args))
		for i, a := range args {
			p, err := toPos(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("positions: entry %d: %w", i, err)
			}
			list = append(list, p)
		}
		return &sexpPositions{list: list}, nil
	})

	// -----------------------------------------------------------------------
	// (output n), (delete n), (enter n), (exit)
	// -----------------------------------------------------------------------
	unary := func(verb string, apply func(h *graph.NodeHandle) error) builtinFunc {
		return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			if len(args) != 1 {
				return zygo.SexpNull, fmt.Errorf("%s requires a node", verb)
			}
			n, err := toNode(args[0])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", verb, err)
			}
			if err := apply(n.h); err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %w", verb, err)
			}
			return zygo.SexpNull, nil
		}
	}
	env.AddFunction("output", unary("output", b.p.SetOutput))
	env.AddFunction("delete", unary("delete", b.p.DeleteNode))
	env.AddFunction("enter", unary("enter", b.p.EnterSubgraph))

	env.AddFunction("exit", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if err := b.p.ExitSubgraph(); err != nil {
			return zygo.SexpNull, fmt.Errorf("exit: %w", err)
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (expose "size" n "factor") and (set-exposed "size" 3.0)
	// -----------------------------------------------------------------------
	env.AddFunction("expose", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 3 {
			return zygo.SexpNull, fmt.Errorf("expose requires a name, a node and a parameter name")
		}
		alias, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("expose: name: %w", err)
		}
		n, err := toNode(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("expose: %w", err)
		}
		pname, err := toKeywordString(args[2])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("expose: parameter: %w", err)
		}
		if err := b.p.ExposeParameter(alias, n.h, pname); err != nil {
			return zygo.SexpNull, fmt.Errorf("expose: %w", err)
		}
		return zygo.SexpNull, nil
	})

	env.AddFunction("set_exposed", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("set-exposed requires a name and a value")
		}
		alias, err := toKeywordString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-exposed: name: %w", err)
		}
		exposed, err := b.p.ExposedParameters()
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("set-exposed: %w", err)
		}
		for _, e := range exposed {
			if e.Name != alias {
				continue
			}
			val, err := toValue(e.Type, args[1])
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("set-exposed: %w", status.Wrap(status.NodeRunTypeMismatch, err).WithParam(alias))
			}
			if err := b.p.SetExposedParameter(alias, val); err != nil {
				return zygo.SexpNull, fmt.Errorf("set-exposed: %w", err)
			}
			return zygo.SexpNull, nil
		}
		return zygo.SexpNull, fmt.Errorf("set-exposed: %w",
			status.Errorf(status.ExposedParameterDoesNotExist, "no exposed parameter %q", alias))
	})
}
