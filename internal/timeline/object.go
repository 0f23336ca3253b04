package timeline

import (
	"fmt"
	"strconv"
	"strings"
)

// InstantKind discriminates the parsed forms an enable term can take.
type InstantKind int

const (
	// InstantNone means the term is absent.
	InstantNone InstantKind = iota
	// InstantAbsolute is a concrete time in milliseconds.
	InstantAbsolute
	// InstantNow resolves to the resolution pass's base time.
	InstantNow
	// InstantExpression references another object's start or end.
	InstantExpression
)

// Instant is one term of an enable descriptor: absolute ms, "now", or an
// expression referencing another object. The textual grammar is the
// interchange format with persisted data; it is parsed once at the boundary.
type Instant struct {
	Kind InstantKind
	Abs  int64
	Expr *Expression
}

func Absolute(ms int64) Instant { return Instant{Kind: InstantAbsolute, Abs: ms} }
func Now() Instant              { return Instant{Kind: InstantNow} }

// Ref builds an expression instant without going through the parser.
func Ref(id string, point TimePoint, offset int64) Instant {
	return Instant{Kind: InstantExpression, Expr: &Expression{Ref: id, Point: point, Offset: offset}}
}

// ParseInstant parses the stored string form of an enable term. Empty means
// absent, "now" is the now trigger, a bare number is absolute, anything else
// must be a reference expression.
func ParseInstant(raw string) (Instant, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Instant{}, nil
	}
	if raw == "now" {
		return Now(), nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return Absolute(n), nil
	}
	expr, err := ParseExpression(raw)
	if err != nil {
		return Instant{}, err
	}
	return Instant{Kind: InstantExpression, Expr: expr}, nil
}

// MustInstant is ParseInstant for literals known good at compile time.
func MustInstant(raw string) Instant {
	i, err := ParseInstant(raw)
	if err != nil {
		panic(fmt.Sprintf("timeline: bad instant %q: %v", raw, err))
	}
	return i
}

func (i Instant) IsSet() bool { return i.Kind != InstantNone }

func (i Instant) String() string {
	switch i.Kind {
	case InstantAbsolute:
		return strconv.FormatInt(i.Abs, 10)
	case InstantNow:
		return "now"
	case InstantExpression:
		return i.Expr.String()
	default:
		return ""
	}
}

// Enable describes when an object is active. Start/End/Duration follow the
// usual pairings; While makes the object indefinitely active (a literal
// truthy While) or active exactly while a referenced object is (an
// expression While). SetFromNow marks a start that used to be "now" and has
// been frozen to a concrete time; later passes must not re-evaluate it.
type Enable struct {
	Start    Instant
	End      Instant
	Duration Instant
	While    Instant

	SetFromNow bool
}

// HoldMode controls visibility of piece content objects during a rundown
// hold.
type HoldMode string

const (
	HoldModeNone   HoldMode = ""
	HoldModeExcept HoldMode = "except"
	HoldModeOnly   HoldMode = "only"
)

// ObjectType separates device-facing rundown objects from the bookkeeping
// stat object in the persisted timeline.
type ObjectType string

const (
	ObjectTypeRundown ObjectType = "rundown"
	ObjectTypeStat    ObjectType = "stat"
)

// Object is the unit the resolver operates on: a flat timed object, or a
// group carrying children that are flattened before resolution. Objects are
// built fresh on every resolution pass and discarded after the pass's output
// is consumed.
type Object struct {
	ID       string
	Enable   Enable
	Priority int
	Layer    string

	// InGroup confines this object's window to its parent group's window;
	// the parent must resolve first.
	InGroup string

	IsGroup  bool
	Children []Object

	ObjectType ObjectType
	RundownID  string
	StudioID   string
	Classes    []string
	HoldMode   HoldMode
	Content    map[string]interface{}
}

// ResolvedInstant is the resolver output for one object. Resolved=false
// means the reference chain bottomed out in a dangling or cyclic expression;
// the object is still reported so the consumer can log and move on.
type ResolvedInstant struct {
	Start    *int64
	End      *int64
	Resolved bool
}

func i64p(v int64) *int64 { return &v }
