// Package geometry holds the data that flows along graph edges: a World of
// points with bezier tangents, shapes built from those points, and named
// point groups.
package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	v2 "github.com/deadsy/sdfx/vec/v2"
)

// Position is a 2D coordinate or offset.
type Position = v2.Vec

// Pos is shorthand for a Position literal.
func Pos(x, y float64) Position {
	return Position{X: x, Y: y}
}

// Normalize returns p scaled to unit length; the zero vector stays zero.
func Normalize(p Position) Position {
	l := p.Length()
	if l == 0 {
		return Position{}
	}
	return p.MulScalar(1 / l)
}

// IsZero reports whether p is the origin.
func IsZero(p Position) bool {
	return p.X == 0 && p.Y == 0
}

// FormatPosition renders p as "x,y".
func FormatPosition(p Position) string {
	return strconv.FormatFloat(p.X, 'g', -1, 64) + "," + strconv.FormatFloat(p.Y, 'g', -1, 64)
}

// ParsePosition parses the "x,y" form.
func ParsePosition(s string) (Position, error) {
	xs, ys, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return Position{}, fmt.Errorf("geometry: position %q: want \"x,y\"", s)
	}
	x, err := strconv.ParseFloat(strings.TrimSpace(xs), 64)
	if err != nil {
		return Position{}, fmt.Errorf("geometry: position %q: %w", s, err)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(ys), 64)
	if err != nil {
		return Position{}, fmt.Errorf("geometry: position %q: %w", s, err)
	}
	if math.IsNaN(x) || math.IsNaN(y) {
		return Position{}, fmt.Errorf("geometry: position %q: NaN coordinate", s)
	}
	return Pos(x, y), nil
}

// ParsePositionList parses "x,y;x,y;...". Empty entries are skipped, so a
// trailing separator is accepted.
func ParsePositionList(s string) ([]Position, error) {
	var out []Position
	for _, part := range strings.Split(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := ParsePosition(part)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// FormatPositionList renders ps in the form accepted by ParsePositionList.
func FormatPositionList(ps []Position) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = FormatPosition(p)
	}
	return strings.Join(parts, ";")
}
