package playout

import (
	"encoding/json"
	"log"
	"sort"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/models"
	"github.com/chrisryanouellette/tv-automation-server-core/internal/timeline"
)

// pieceContentObj is the stored JSON shape of one device timeline object a
// piece contributes (the opaque payload the hardware gateways understand).
type pieceContentObj struct {
	ID       string                 `json:"id"`
	Layer    string                 `json:"layer"`
	HoldMode string                 `json:"holdMode,omitempty"`
	Enable   map[string]string      `json:"enable,omitempty"`
	Content  map[string]interface{} `json:"content"`
}

func decodeContentObjects(pi *models.PieceInstance) []pieceContentObj {
	if pi.ContentObjects == "" {
		return nil
	}
	var objs []pieceContentObj
	if err := json.Unmarshal([]byte(pi.ContentObjects), &objs); err != nil {
		log.Printf("⚠️ Piece instance %q has malformed content objects: %v", pi.ID, err)
		return nil
	}
	return objs
}

// parseInstantLenient parses a stored enable term, logging and treating it
// as absent when malformed. Shape problems never abort a build.
func parseInstantLenient(owner, raw string) timeline.Instant {
	ins, err := timeline.ParseInstant(raw)
	if err != nil {
		log.Printf("⚠️ %s: bad enable term %q: %v", owner, raw, err)
		return timeline.Instant{}
	}
	return ins
}

// pieceInstanceEnable computes the enable for a piece group, honoring the
// override chain: actual playout duration beats the operator's override
// beats the planned enable.
func pieceInstanceEnable(pi *models.PieceInstance) timeline.Enable {
	start := parseInstantLenient("piece "+pi.ID, pi.EnableStart)
	planEnd := parseInstantLenient("piece "+pi.ID, pi.EnableEnd)
	planDuration := parseInstantLenient("piece "+pi.ID, pi.EnableDuration)

	var duration, end timeline.Instant
	switch {
	case pi.PlayoutDuration != nil:
		duration = timeline.Absolute(*pi.PlayoutDuration)
	case pi.UserDurationDuration != "" || pi.UserDurationEnd != "":
		duration = parseInstantLenient("piece "+pi.ID, pi.UserDurationDuration)
		end = parseInstantLenient("piece "+pi.ID, pi.UserDurationEnd)
	default:
		duration = planDuration
		end = planEnd
	}

	// End-only pieces anchor backwards from the end.
	if (end.IsSet() || planEnd.IsSet()) && !start.IsSet() {
		if !end.IsSet() {
			end = planEnd
		}
		return timeline.Enable{End: end, Duration: duration}
	}

	if start.IsSet() {
		enable := timeline.Enable{Start: start}
		switch {
		case duration.IsSet():
			enable.Duration = duration
		case end.IsSet():
			enable.End = end
		case planEnd.IsSet():
			enable.End = planEnd
		}
		return enable
	}

	return timeline.Enable{Start: timeline.Absolute(0), Duration: duration, End: end}
}

// createPieceGroup makes the group object every piece's content objects
// nest inside. effectiveID differs from the instance id only for infinite
// continuations, which reuse the infinite identity so references stay
// continuous across parts.
func createPieceGroup(pi *models.PieceInstance, effectiveID string, enable timeline.Enable, partGroup *timeline.Object) timeline.Object {
	group := timeline.Object{
		ID:         pieceGroupID(effectiveID),
		Enable:     enable,
		Layer:      pi.SourceLayerID,
		IsGroup:    true,
		ObjectType: timeline.ObjectTypeRundown,
		RundownID:  pi.RundownID,
		Content: map[string]interface{}{
			"deviceType": "abstract",
			"type":       "group",
			"pieceId":    pi.ID,
		},
	}
	if partGroup != nil {
		group.InGroup = partGroup.ID
	}
	return group
}

func createPieceGroupFirstObject(pi *models.PieceInstance, pieceGroup *timeline.Object, firstObjClasses []string) timeline.Object {
	return timeline.Object{
		ID:         pieceFirstObjectID(pi.ID),
		Enable:     timeline.Enable{Start: timeline.Absolute(0)},
		Layer:      pi.SourceLayerID + "_firstobject",
		InGroup:    pieceGroup.ID,
		ObjectType: timeline.ObjectTypeRundown,
		RundownID:  pi.RundownID,
		Classes:    firstObjClasses,
		Content: map[string]interface{}{
			"deviceType":      "abstract",
			"type":            "callback",
			"callBack":        "piecePlaybackStarted",
			"callBackData":    map[string]interface{}{"rundownId": pi.RundownID, "pieceInstanceId": pi.ID},
			"callBackStopped": "piecePlaybackStopped",
		},
	}
}

// ResolvedPieceInstance is a piece instance with concrete timing relative
// to its part.
type ResolvedPieceInstance struct {
	Instance models.PieceInstance
	Start    int64
	Duration *int64
	Resolved bool
}

// resolvePieceInstances runs the shared part-scoped resolution: every piece
// becomes a group shifted to a non-zero offset (the resolver treats t=0
// specially for "now"-like anchors), resolves, and maps the instants back.
func resolvePieceInstances(pieces []models.PieceInstance, offset int64) []ResolvedPieceInstance {
	objs := make([]timeline.Object, 0, len(pieces))
	for i := range pieces {
		pi := &pieces[i]
		enable := pieceInstanceEnable(pi)
		if enable.Start.Kind == timeline.InstantNow || (enable.Start.Kind == timeline.InstantAbsolute && enable.Start.Abs == 0) {
			enable.Start = timeline.Absolute(offset)
		} else if enable.Start.Kind == timeline.InstantAbsolute {
			enable.Start = timeline.Absolute(enable.Start.Abs + offset)
		}
		// Absolute ends shift too, or the offset bleeds into the duration.
		if enable.End.Kind == timeline.InstantAbsolute {
			enable.End = timeline.Absolute(enable.End.Abs + offset)
		}
		objs = append(objs, createPieceGroup(pi, pi.ID, enable, nil))
	}

	resolved := timeline.Resolve(objs, timeline.Options{BaseTime: offset})

	out := make([]ResolvedPieceInstance, 0, len(pieces))
	unresolvedCount := 0
	for i := range pieces {
		pi := pieces[i]
		r := resolved[pieceGroupID(pi.ID)]
		item := ResolvedPieceInstance{Instance: pi, Resolved: r.Resolved}
		if r.Resolved && r.Start != nil {
			item.Start = *r.Start - offset
			if item.Start < 0 {
				item.Start = 0
			}
			if r.End != nil {
				d := *r.End - *r.Start
				item.Duration = &d
			}
		} else {
			unresolvedCount++
		}
		out = append(out, item)
	}
	if unresolvedCount > 0 {
		log.Printf("⚠️ got %d unresolved pieces out of %d", unresolvedCount, len(pieces))
	}
	if len(out) != len(pieces) {
		log.Printf("⚠️ got %d resolved pieces, expected %d", len(out), len(pieces))
	}

	// Same start on the same pass: transitions first, then declaration
	// order. Declaration order is the original piece list order and is
	// never recomputed.
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Start != out[b].Start {
			return out[a].Start < out[b].Start
		}
		if out[a].Instance.IsTransition != out[b].Instance.IsTransition {
			return out[a].Instance.IsTransition
		}
		return false
	})
	return out
}

// OrderedPieceInstances returns a part's pieces in playback order.
func OrderedPieceInstances(pieces []models.PieceInstance) []ResolvedPieceInstance {
	return resolvePieceInstances(pieces, 100)
}

// ResolvedPieceInstances returns a part's pieces with concrete in-part
// start/duration, cropping uncapped infinites against the next piece on the
// same source layer.
func ResolvedPieceInstances(pieces []models.PieceInstance) []ResolvedPieceInstance {
	out := resolvePieceInstances(pieces, 1)

	for i := range out {
		if out[i].Instance.InfiniteMode == models.LifespanNormal {
			continue
		}
		for j := i + 1; j < len(out); j++ {
			if out[j].Instance.SourceLayerID == out[i].Instance.SourceLayerID {
				d := out[j].Start - out[i].Start
				out[i].Duration = &d
				break
			}
		}
	}
	return out
}
