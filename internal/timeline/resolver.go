package timeline

// Options controls one resolution pass.
type Options struct {
	// BaseTime is the concrete time that "now" triggers resolve to. Objects
	// whose "now" was already frozen carry an absolute start instead, so the
	// resolver never re-evaluates them.
	BaseTime int64
}

// Resolve turns a flat collection of timed objects into concrete instants.
//
// Resolution is an iterative fixed point: each pass resolves every object
// whose dependencies (referenced objects and parent group) are already
// resolved, capped at len(objects)+1 passes. Anything still pending after
// the cap - dangling references and cycles - is reported with
// Resolved=false rather than dropped or panicked on.
//
// Child objects with a numeric start or end are placed relative to their
// parent group's start; expression and "now" terms are absolute. Children
// are clamped into the parent's resolved window either way.
//
// The result is a pure function of the input set and BaseTime: input order
// never affects the resolved instants, only the dependency structure does.
func Resolve(objects []Object, opts Options) map[string]ResolvedInstant {
	out := make(map[string]ResolvedInstant, len(objects))

	byID := make(map[string]*Object, len(objects))
	pending := make([]string, 0, len(objects))
	for i := range objects {
		o := &objects[i]
		if _, dup := byID[o.ID]; dup {
			continue
		}
		byID[o.ID] = o
		pending = append(pending, o.ID)
	}

	lookup := func(ref string, point TimePoint) (int64, bool) {
		r, ok := out[ref]
		if !ok || !r.Resolved {
			return 0, false
		}
		if point == PointStart {
			if r.Start == nil {
				return 0, false
			}
			return *r.Start, true
		}
		if r.End == nil {
			return 0, false
		}
		return *r.End, true
	}

	maxPasses := len(objects) + 1
	for pass := 0; pass < maxPasses && len(pending) > 0; pass++ {
		changed := false
		next := pending[:0]
		for _, id := range pending {
			r, ok := resolveOne(byID[id], out, lookup, opts.BaseTime)
			if ok {
				out[id] = r
				changed = true
			} else {
				next = append(next, id)
			}
		}
		pending = next
		if !changed {
			break
		}
	}

	for _, id := range pending {
		out[id] = ResolvedInstant{Resolved: false}
	}
	return out
}

// resolveOne attempts to resolve a single object against the instants
// resolved so far. ok=false means a dependency is still missing and the
// object should be retried on a later pass.
func resolveOne(o *Object, resolved map[string]ResolvedInstant, lookup func(string, TimePoint) (int64, bool), baseTime int64) (ResolvedInstant, bool) {
	var parent *ResolvedInstant
	if o.InGroup != "" {
		p, ok := resolved[o.InGroup]
		if !ok {
			return ResolvedInstant{}, false
		}
		if !p.Resolved {
			// The whole branch is unresolvable.
			return ResolvedInstant{Resolved: false}, true
		}
		parent = &p
	}

	eval := func(ins Instant) (int64, bool) {
		switch ins.Kind {
		case InstantAbsolute:
			return ins.Abs, true
		case InstantNow:
			return baseTime, true
		case InstantExpression:
			return ins.Expr.Evaluate(lookup)
		default:
			return 0, false
		}
	}

	parentStart := int64(0)
	if parent != nil && parent.Start != nil {
		parentStart = *parent.Start
	}

	var start, end *int64

	switch {
	case o.Enable.While.IsSet():
		switch o.Enable.While.Kind {
		case InstantAbsolute:
			if o.Enable.While.Abs == 0 {
				// Never active.
				return ResolvedInstant{Resolved: true}, true
			}
			start = i64p(parentStart)
		case InstantExpression:
			// Active exactly while the referenced object is.
			s, ok := lookup(o.Enable.While.Expr.Ref, PointStart)
			if !ok {
				return ResolvedInstant{}, false
			}
			start = i64p(s + o.Enable.While.Expr.Offset)
			if e, ok := lookup(o.Enable.While.Expr.Ref, PointEnd); ok {
				end = i64p(e + o.Enable.While.Expr.Offset)
			}
		default:
			start = i64p(parentStart)
		}

	default:
		durV, durSet := int64(0), false
		if o.Enable.Duration.IsSet() {
			v, ok := eval(o.Enable.Duration)
			if !ok {
				return ResolvedInstant{}, false
			}
			durV, durSet = v, true
		}
		endV, endSet := int64(0), false
		if o.Enable.End.IsSet() {
			v, ok := eval(o.Enable.End)
			if !ok {
				return ResolvedInstant{}, false
			}
			if parent != nil && o.Enable.End.Kind == InstantAbsolute {
				v += parentStart
			}
			endV, endSet = v, true
		}

		switch {
		case o.Enable.Start.IsSet():
			v, ok := eval(o.Enable.Start)
			if !ok {
				return ResolvedInstant{}, false
			}
			if parent != nil && o.Enable.Start.Kind == InstantAbsolute {
				v += parentStart
			}
			start = i64p(v)
		case endSet && durSet:
			start = i64p(endV - durV)
		default:
			start = i64p(parentStart)
		}

		switch {
		case endSet:
			end = i64p(endV)
		case durSet:
			end = i64p(*start + durV)
		}
	}

	// Containment: a child cannot leave its parent's window.
	if parent != nil {
		if parent.Start != nil && *start < *parent.Start {
			start = i64p(*parent.Start)
		}
		if parent.End != nil && (end == nil || *end > *parent.End) {
			end = i64p(*parent.End)
		}
	}

	return ResolvedInstant{Start: start, End: end, Resolved: true}, true
}
