package timeline

import (
	"fmt"
	"strconv"
	"strings"
)

// TimePoint selects which resolved instant of a referenced object an
// expression reads.
type TimePoint string

const (
	PointStart TimePoint = "start"
	PointEnd   TimePoint = "end"
)

// Expression is the parsed form of a timing reference like
// "#introGfx.end - 200". Offsets chain left-to-right with plain
// add/subtract, so they collapse into a single signed value.
type Expression struct {
	Ref    string
	Point  TimePoint
	Offset int64
}

// ParseExpression parses the textual grammar
// "#<objectId>.<start|end> [ (+|-) <number> ]*".
func ParseExpression(s string) (*Expression, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		return nil, fmt.Errorf("expression %q: missing '#' reference", s)
	}

	rest := s[1:]
	refEnd := strings.IndexByte(rest, '.')
	if refEnd <= 0 {
		return nil, fmt.Errorf("expression %q: missing '.start' or '.end'", s)
	}
	ref := rest[:refEnd]
	rest = rest[refEnd+1:]

	var point TimePoint
	switch {
	case strings.HasPrefix(rest, string(PointStart)):
		point = PointStart
		rest = rest[len(PointStart):]
	case strings.HasPrefix(rest, string(PointEnd)):
		point = PointEnd
		rest = rest[len(PointEnd):]
	default:
		return nil, fmt.Errorf("expression %q: reference point must be start or end", s)
	}

	expr := &Expression{Ref: ref, Point: point}

	// Consume the offset chain: [+-] <number> repeated.
	rest = strings.TrimSpace(rest)
	for rest != "" {
		sign := int64(1)
		switch rest[0] {
		case '+':
		case '-':
			sign = -1
		default:
			return nil, fmt.Errorf("expression %q: unexpected %q", s, rest)
		}
		rest = strings.TrimSpace(rest[1:])

		i := 0
		for i < len(rest) && (rest[i] >= '0' && rest[i] <= '9') {
			i++
		}
		if i == 0 {
			return nil, fmt.Errorf("expression %q: operator without operand", s)
		}
		n, err := strconv.ParseInt(rest[:i], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expression %q: %w", s, err)
		}
		expr.Offset += sign * n
		rest = strings.TrimSpace(rest[i:])
	}

	return expr, nil
}

// Evaluate resolves the expression against already-resolved instants. The
// lookup returns false for anything not (yet) resolved, and that propagates
// upward as an unresolved result. Evaluation never fails any other way.
func (e *Expression) Evaluate(resolve func(ref string, point TimePoint) (int64, bool)) (int64, bool) {
	base, ok := resolve(e.Ref, e.Point)
	if !ok {
		return 0, false
	}
	return base + e.Offset, true
}

func (e *Expression) String() string {
	s := "#" + e.Ref + "." + string(e.Point)
	if e.Offset > 0 {
		s += fmt.Sprintf(" + %d", e.Offset)
	} else if e.Offset < 0 {
		s += fmt.Sprintf(" - %d", -e.Offset)
	}
	return s
}
