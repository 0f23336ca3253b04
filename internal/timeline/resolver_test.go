package timeline

import (
	"math/rand"
	"reflect"
	"testing"
)

func ri(t *testing.T, m map[string]ResolvedInstant, id string) ResolvedInstant {
	t.Helper()
	r, ok := m[id]
	if !ok {
		t.Fatalf("object %q missing from resolver output", id)
	}
	return r
}

func val(p *int64) int64 {
	if p == nil {
		return -1
	}
	return *p
}

func TestResolveBasics(t *testing.T) {
	objs := []Object{
		{ID: "a", Enable: Enable{Start: Absolute(1000), Duration: Absolute(3000)}},
		{ID: "b", Enable: Enable{Start: Ref("a", PointEnd, -200)}},
		{ID: "c", Enable: Enable{Start: Absolute(500), End: Absolute(2500)}},
		{ID: "d", Enable: Enable{End: Absolute(5000), Duration: Absolute(1000)}},
	}
	out := Resolve(objs, Options{BaseTime: 0})

	a := ri(t, out, "a")
	if !a.Resolved || val(a.Start) != 1000 || val(a.End) != 4000 {
		t.Errorf("a = start %d end %d, want 1000/4000", val(a.Start), val(a.End))
	}
	b := ri(t, out, "b")
	if !b.Resolved || val(b.Start) != 3800 || b.End != nil {
		t.Errorf("b = start %d end %v, want 3800/open", val(b.Start), b.End)
	}
	c := ri(t, out, "c")
	if val(c.End) != 2500 {
		t.Errorf("c end = %d, want 2500", val(c.End))
	}
	d := ri(t, out, "d")
	if val(d.Start) != 4000 || val(d.End) != 5000 {
		t.Errorf("d = %d/%d, want 4000/5000 (start derived from end-duration)", val(d.Start), val(d.End))
	}
}

func TestResolveNow(t *testing.T) {
	objs := []Object{
		{ID: "grp", Enable: Enable{Start: Now()}},
		{ID: "frozen", Enable: Enable{Start: Absolute(5000), SetFromNow: true}},
	}
	out := Resolve(objs, Options{BaseTime: 9000})

	if got := val(ri(t, out, "grp").Start); got != 9000 {
		t.Errorf(`"now" start = %d, want base time 9000`, got)
	}
	// A frozen start carries an absolute value and must not drift back to
	// the new base time.
	if got := val(ri(t, out, "frozen").Start); got != 5000 {
		t.Errorf("frozen start = %d, want preserved 5000", got)
	}
}

func TestResolveIdempotence(t *testing.T) {
	objs := []Object{
		{ID: "a", Enable: Enable{Start: Now(), Duration: Absolute(2000)}},
		{ID: "b", Enable: Enable{Start: Ref("a", PointEnd, 0), Duration: Absolute(500)}},
		{ID: "c", Enable: Enable{Start: Absolute(0)}},
	}
	first := Resolve(objs, Options{BaseTime: 1234})
	second := Resolve(objs, Options{BaseTime: 1234})
	if !reflect.DeepEqual(first, second) {
		t.Errorf("same input and base time resolved differently:\n%v\n%v", first, second)
	}
}

func TestResolveOrderIndependence(t *testing.T) {
	base := []Object{
		{ID: "part", Enable: Enable{Start: Absolute(10000), Duration: Absolute(60000)}, IsGroup: true},
		{ID: "piece1", InGroup: "part", Enable: Enable{Start: Absolute(0), Duration: Absolute(5000)}},
		{ID: "piece2", InGroup: "part", Enable: Enable{Start: Ref("piece1", PointEnd, 0)}},
		{ID: "next", Enable: Enable{Start: Ref("part", PointEnd, -2000)}},
	}
	want := Resolve(base, Options{BaseTime: 0})

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]Object, len(base))
		copy(shuffled, base)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		got := Resolve(shuffled, Options{BaseTime: 0})
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("shuffle %d resolved differently:\n%v\n%v", i, got, want)
		}
	}
}

func TestResolveContainment(t *testing.T) {
	objs := []Object{
		{ID: "parent", Enable: Enable{Start: Absolute(1000), End: Absolute(5000)}, IsGroup: true},
		// Numeric child times are relative to the parent start.
		{ID: "inside", InGroup: "parent", Enable: Enable{Start: Absolute(500), Duration: Absolute(1000)}},
		// An absolute sibling reference pointing before the parent gets clamped.
		{ID: "early", InGroup: "parent", Enable: Enable{Start: Ref("parent", PointStart, -300)}},
		// Open-ended child is capped by the parent end.
		{ID: "long", InGroup: "parent", Enable: Enable{Start: Absolute(0)}},
		// Missing start defaults to the parent start.
		{ID: "bare", InGroup: "parent", Enable: Enable{Duration: Absolute(100)}},
	}
	out := Resolve(objs, Options{BaseTime: 0})

	parent := ri(t, out, "parent")
	for _, id := range []string{"inside", "early", "long", "bare"} {
		r := ri(t, out, id)
		if !r.Resolved {
			t.Fatalf("%s did not resolve", id)
		}
		if val(r.Start) < val(parent.Start) {
			t.Errorf("%s starts at %d, before its parent %d", id, val(r.Start), val(parent.Start))
		}
		if r.End != nil && val(r.End) > val(parent.End) {
			t.Errorf("%s ends at %d, after its parent %d", id, val(r.End), val(parent.End))
		}
	}

	if got := val(ri(t, out, "inside").Start); got != 1500 {
		t.Errorf("inside start = %d, want parent-relative 1500", got)
	}
	if got := val(ri(t, out, "early").Start); got != 1000 {
		t.Errorf("early start = %d, want clamp to parent start 1000", got)
	}
	if got := val(ri(t, out, "long").End); got != 5000 {
		t.Errorf("long end = %d, want parent end 5000", got)
	}
	if got := val(ri(t, out, "bare").Start); got != 1000 {
		t.Errorf("bare start = %d, want parent start 1000", got)
	}
}

func TestResolveCycleDoesNotCrash(t *testing.T) {
	objs := []Object{
		{ID: "a", Enable: Enable{Start: Ref("b", PointStart, 0)}},
		{ID: "b", Enable: Enable{Start: Ref("a", PointStart, 0)}},
		{ID: "ok", Enable: Enable{Start: Absolute(100)}},
		{ID: "dangling", Enable: Enable{Start: Ref("ghost", PointStart, 0)}},
	}
	out := Resolve(objs, Options{BaseTime: 0})

	if len(out) != 4 {
		t.Fatalf("expected all 4 objects reported, got %d", len(out))
	}
	for _, id := range []string{"a", "b", "dangling"} {
		if ri(t, out, id).Resolved {
			t.Errorf("%s should be reported unresolved", id)
		}
	}
	if !ri(t, out, "ok").Resolved {
		t.Error("independent object must still resolve alongside a cycle")
	}
}

func TestResolveUnresolvedParentPropagates(t *testing.T) {
	objs := []Object{
		{ID: "parent", Enable: Enable{Start: Ref("ghost", PointStart, 0)}, IsGroup: true},
		{ID: "child", InGroup: "parent", Enable: Enable{Start: Absolute(0)}},
	}
	out := Resolve(objs, Options{BaseTime: 0})
	if ri(t, out, "child").Resolved {
		t.Error("child of an unresolvable parent must be unresolved")
	}
}

func TestResolveWhile(t *testing.T) {
	objs := []Object{
		{ID: "status", Enable: Enable{While: Absolute(1)}},
		{ID: "off", Enable: Enable{While: Absolute(0)}},
		{ID: "anchor", Enable: Enable{Start: Absolute(2000), End: Absolute(3000)}},
		{ID: "tracker", Enable: Enable{While: Ref("anchor", PointStart, 0)}},
	}
	out := Resolve(objs, Options{BaseTime: 0})

	status := ri(t, out, "status")
	if !status.Resolved || val(status.Start) != 0 || status.End != nil {
		t.Errorf("while:1 = %d/%v, want 0/open", val(status.Start), status.End)
	}
	off := ri(t, out, "off")
	if !off.Resolved || off.Start != nil {
		t.Error("while:0 should resolve as never active")
	}
	tracker := ri(t, out, "tracker")
	if val(tracker.Start) != 2000 || val(tracker.End) != 3000 {
		t.Errorf("while-ref = %d/%d, want anchor window 2000/3000", val(tracker.Start), val(tracker.End))
	}
}
