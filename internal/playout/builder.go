package playout

import (
	"log"
	"strings"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/models"
	"github.com/chrisryanouellette/tv-automation-server-core/internal/timeline"
)

// LayerRundownStatus carries the always-on marker object for the active
// rundown; gateways and the web UI watch it for the active/rehearsal class.
const LayerRundownStatus = "rundown_status"

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func splitClasses(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, c := range strings.Split(csv, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// calcPartKeepaliveDuration is how long the outgoing part's content must be
// kept alive after the incoming part starts, so a mix/wipe has both sources.
// relativeToFrom selects which part's clock the answer is expressed on.
func calcPartKeepaliveDuration(from, to *models.PartInstance, relativeToFrom bool) int64 {
	allowTransition := !from.DisableOutTransition
	if !allowTransition {
		if from.AutoNext {
			return from.AutoNextOverlap
		}
		return 0
	}

	if relativeToFrom {
		if to.TransitionKeepaliveDuration == nil {
			return to.PrerollDuration
		}
		transPieceDelay := max64(0, to.PrerollDuration-deref(to.TransitionPrerollDuration))
		return transPieceDelay + *to.TransitionKeepaliveDuration
	}

	if to.TransitionKeepaliveDuration == nil {
		if from.AutoNext {
			return from.AutoNextOverlap
		}
		return 0
	}
	return 0
}

// calcPartTargetDuration is the part group duration used when an auto-next
// is armed: planned duration corrected for the preroll/keepalive overhang
// around both boundaries.
func calcPartTargetDuration(prev, current *models.PartInstance) int64 {
	if current.ExpectedDuration == 0 {
		return 0
	}

	maxPreroll := max64(deref(current.TransitionPrerollDuration), current.PrerollDuration)
	maxKeepalive := max64(deref(current.TransitionKeepaliveDuration), current.PrerollDuration)
	lengthAdjustment := maxPreroll - maxKeepalive
	rawExpectedDuration := current.ExpectedDuration - lengthAdjustment

	if prev == nil || prev.DisableOutTransition {
		return rawExpectedDuration + current.PrerollDuration
	}

	prerollDuration := deref(current.TransitionPrerollDuration)
	if prerollDuration == 0 {
		prerollDuration = current.PrerollDuration
	}
	return rawExpectedDuration + prev.AutoNextOverlap + prerollDuration
}

// calcPartOverlapDuration is how far before the current part's end the next
// part starts on auto-next.
func calcPartOverlapDuration(from, to *models.PartInstance) int64 {
	allowTransition := !from.DisableOutTransition
	overlap := to.PrerollDuration
	if allowTransition && deref(to.TransitionPrerollDuration) > 0 {
		overlap = calcPartKeepaliveDuration(from, to, true)
	}
	if from.AutoNext {
		overlap += from.AutoNextOverlap
	}
	return overlap
}

func createPartGroup(part *models.PartInstance, enable timeline.Enable) timeline.Object {
	if !enable.Start.IsSet() {
		enable.Start = timeline.Now()
	}
	return timeline.Object{
		ID:         partGroupID(part.ID),
		Enable:     enable,
		Priority:   5,
		IsGroup:    true,
		ObjectType: timeline.ObjectTypeRundown,
		RundownID:  part.RundownID,
		Content: map[string]interface{}{
			"deviceType":     "abstract",
			"type":           "group",
			"partInstanceId": part.ID,
		},
	}
}

// createPartGroupFirstObject is the callback sentinel that fires
// partPlaybackStarted when the group goes on air. It also carries the part's
// classes plus whatever the previous part hands forward.
func createPartGroupFirstObject(part *models.PartInstance, partGroup *timeline.Object, previousPart *models.PartInstance) timeline.Object {
	classes := splitClasses(part.Classes)
	if previousPart != nil {
		classes = append(classes, splitClasses(previousPart.ClassesForNext)...)
	}
	return timeline.Object{
		ID:         partFirstObjectID(part.ID),
		Enable:     timeline.Enable{Start: timeline.Absolute(0)},
		Layer:      "group_first_object",
		InGroup:    partGroup.ID,
		ObjectType: timeline.ObjectTypeRundown,
		RundownID:  part.RundownID,
		Classes:    classes,
		Content: map[string]interface{}{
			"deviceType":      "abstract",
			"type":            "callback",
			"callBack":        "partPlaybackStarted",
			"callBackData":    map[string]interface{}{"rundownId": part.RundownID, "partInstanceId": part.ID},
			"callBackStopped": "partPlaybackStopped",
		},
	}
}

// transitionProps is the slice of the outgoing/incoming part timing that
// transformPartIntoTimeline needs to place an in-transition.
type transitionProps struct {
	allowed             bool
	preroll             int64
	transitionPreroll   *int64
	transitionKeepalive *int64
}

func contentObjToTimeline(c pieceContentObj, pi *models.PieceInstance, groupID string) timeline.Object {
	var enable timeline.Enable
	if raw, ok := c.Enable["start"]; ok {
		enable.Start = parseInstantLenient(c.ID, raw)
	}
	if raw, ok := c.Enable["end"]; ok {
		enable.End = parseInstantLenient(c.ID, raw)
	}
	if raw, ok := c.Enable["duration"]; ok {
		enable.Duration = parseInstantLenient(c.ID, raw)
	}
	if raw, ok := c.Enable["while"]; ok {
		enable.While = parseInstantLenient(c.ID, raw)
	}
	// An object with no enable of its own covers its whole piece group.
	if !enable.Start.IsSet() && !enable.While.IsSet() && !enable.End.IsSet() {
		enable.Start = timeline.Absolute(0)
	}
	return timeline.Object{
		ID:         c.ID,
		Enable:     enable,
		Layer:      c.Layer,
		InGroup:    groupID,
		ObjectType: timeline.ObjectTypeRundown,
		RundownID:  pi.RundownID,
		HoldMode:   timeline.HoldMode(c.HoldMode),
		Content:    c.Content,
	}
}

// transformPartIntoTimeline turns one part's piece instances into piece
// groups, first objects and nested content objects, applying transition
// delays and hold filtering.
func transformPartIntoTimeline(
	pieces []models.PieceInstance,
	firstObjClasses []string,
	partGroup *timeline.Object,
	trans *transitionProps,
	holdState models.RundownHoldState,
	showHoldExcept bool,
) []timeline.Object {
	var objs []timeline.Object

	isHold := holdState == models.HoldStateActive
	allowTransition := trans != nil && trans.allowed && !isHold && holdState != models.HoldStateComplete

	var transitionPiece *models.PieceInstance
	if allowTransition {
		for i := range pieces {
			if pieces[i].IsTransition && !pieces[i].Disabled {
				transitionPiece = &pieces[i]
				break
			}
		}
	}

	var transitionPieceDelay, transitionContentsDelay int64
	if trans != nil {
		tp := deref(trans.transitionPreroll)
		transitionPieceDelay = max64(0, trans.preroll-tp)
		transitionContentsDelay = tp - trans.preroll
	}

	for i := range pieces {
		pi := &pieces[i]
		if pi.Disabled {
			continue
		}
		if pi.IsTransition && (!allowTransition || isHold) {
			continue
		}

		effectiveID := pi.ID
		isContinuation := pi.IsInfiniteContinuation()
		if isContinuation {
			// Continuations reuse the infinite identity so expression
			// references keep pointing at one continuous group.
			effectiveID = pi.InfiniteID
		}

		enable := pieceInstanceEnable(pi)
		startsAtZero := enable.Start.Kind == timeline.InstantAbsolute && enable.Start.Abs == 0
		if startsAtZero && !isContinuation {
			if !pi.IsTransition && transitionPiece != nil && pi.AdLibSourceID == "" {
				// Normal content waits for the in-transition contents point.
				enable.Start = timeline.Ref(pieceGroupID(transitionPiece.ID), timeline.PointStart, transitionContentsDelay)
			} else if pi.IsTransition && transitionPieceDelay > 0 {
				enable.Start = timeline.Absolute(transitionPieceDelay)
			}
		}

		pieceGroup := createPieceGroup(pi, effectiveID, enable, partGroup)
		objs = append(objs, pieceGroup)

		if pi.Virtual {
			continue
		}
		objs = append(objs, createPieceGroupFirstObject(pi, &pieceGroup, firstObjClasses))

		for _, c := range decodeContentObjects(pi) {
			switch timeline.HoldMode(c.HoldMode) {
			case timeline.HoldModeExcept:
				if isHold && !showHoldExcept {
					continue
				}
			case timeline.HoldModeOnly:
				if !isHold {
					continue
				}
			}
			objs = append(objs, contentObjToTimeline(c, pi, pieceGroup.ID))
		}
	}
	return objs
}

// PrefixAllObjectIDs renames every object and rewrites in-group and
// expression references among the given objects, leaving references to
// outside objects untouched.
func PrefixAllObjectIDs(objs []timeline.Object, prefix string) []timeline.Object {
	ids := make(map[string]bool, len(objs))
	for i := range objs {
		ids[objs[i].ID] = true
	}
	rewrite := func(ins timeline.Instant) timeline.Instant {
		if ins.Kind == timeline.InstantExpression && ins.Expr != nil && ids[ins.Expr.Ref] {
			e := *ins.Expr
			e.Ref = prefix + e.Ref
			ins.Expr = &e
		}
		return ins
	}
	out := make([]timeline.Object, len(objs))
	for i, o := range objs {
		o.ID = prefix + o.ID
		if o.InGroup != "" && ids[o.InGroup] {
			o.InGroup = prefix + o.InGroup
		}
		o.Enable.Start = rewrite(o.Enable.Start)
		o.Enable.End = rewrite(o.Enable.End)
		o.Enable.Duration = rewrite(o.Enable.Duration)
		o.Enable.While = rewrite(o.Enable.While)
		out[i] = o
	}
	return out
}

// BuildTimelineObjs assembles the full device timeline for one active
// rundown: status marker, baseline, previous part tail, current part with
// its infinites, and the armed next part on auto-next.
func BuildTimelineObjs(data *RundownInstancesData, baseline []timeline.Object) []timeline.Object {
	var objs []timeline.Object
	rundown := &data.Rundown

	statusClasses := []string{"rundown_active"}
	if rundown.Rehearsal {
		statusClasses = append(statusClasses, "rundown_rehearsal")
	}
	objs = append(objs, timeline.Object{
		ID:         rundown.ID + "_status",
		Enable:     timeline.Enable{While: timeline.Absolute(1)},
		Layer:      LayerRundownStatus,
		ObjectType: timeline.ObjectTypeRundown,
		RundownID:  rundown.ID,
		Classes:    statusClasses,
		Content:    map[string]interface{}{"deviceType": "abstract"},
	})

	for _, b := range baseline {
		b.ObjectType = timeline.ObjectTypeRundown
		b.RundownID = rundown.ID
		objs = append(objs, b)
	}

	if data.Current == nil {
		if data.Next == nil {
			log.Printf("📺 Rundown %q has no current or next part, playout is at the end", rundown.ID)
		}
		return objs
	}

	currentPart := &data.Current.Part
	var previousPart *models.PartInstance
	if data.Previous != nil {
		previousPart = &data.Previous.Part
	}

	var currentInfinites, currentNormal []models.PieceInstance
	for _, p := range data.Current.Pieces {
		if p.IsInfiniteContinuation() {
			currentInfinites = append(currentInfinites, p)
		} else {
			currentNormal = append(currentNormal, p)
		}
	}
	currentInfiniteIDs := map[string]bool{}
	for _, p := range data.Current.Pieces {
		if p.InfiniteID != "" {
			currentInfiniteIDs[p.InfiniteID] = true
		}
	}

	allowTransition := false
	if previousPart != nil {
		allowTransition = !previousPart.DisableOutTransition

		if previousPart.StartedPlayback != nil {
			// Keep the outgoing part alive under the incoming one for the
			// duration of the out-transition. An auto-next overlap wins over
			// the transition keepalive.
			prevOverlap := calcPartKeepaliveDuration(previousPart, currentPart, true)
			if previousPart.AutoNext && previousPart.AutoNextOverlap > 0 {
				prevOverlap = previousPart.AutoNextOverlap
			}
			prevGroup := createPartGroup(previousPart, timeline.Enable{
				Start: timeline.Absolute(*previousPart.StartedPlayback),
				End:   timeline.Ref(partGroupID(currentPart.ID), timeline.PointStart, prevOverlap),
			})
			prevGroup.Priority = -1

			var prevPieces []models.PieceInstance
			for _, p := range data.Previous.Pieces {
				// Infinites carried into the current part get their own
				// continuous group instead.
				if p.InfiniteID != "" && currentInfiniteIDs[p.InfiniteID] {
					continue
				}
				prevPieces = append(prevPieces, p)
			}

			prevObjs := []timeline.Object{prevGroup}
			prevObjs = append(prevObjs, transformPartIntoTimeline(
				prevPieces, []string{"previous_part"}, &prevGroup, nil, rundown.HoldState, false)...)
			objs = append(objs, PrefixAllObjectIDs(prevObjs, "previous_")...)
		}
	}

	currentEnable := timeline.Enable{}
	if data.Next != nil && currentPart.AutoNext {
		if d := calcPartTargetDuration(previousPart, currentPart); d > 0 {
			currentEnable.Duration = timeline.Absolute(d)
		}
	}
	if currentPart.StartedPlayback != nil {
		currentEnable.Start = timeline.Absolute(*currentPart.StartedPlayback)
	}
	currentPartGroup := createPartGroup(currentPart, currentEnable)

	for i := range currentInfinites {
		pi := &currentInfinites[i]

		infiniteGroup := createPartGroup(currentPart, timeline.Enable{
			Start:    currentPartGroup.Enable.Start,
			Duration: parseInstantLenient("piece "+pi.ID, pi.EnableDuration),
		})
		infiniteGroup.ID = partGroupID(pi.ID) + "_infinite"
		infiniteGroup.Priority = 1
		infiniteGroup.Classes = []string{"current_part"}
		if previousPart != nil && data.Previous != nil {
			for _, pp := range data.Previous.Pieces {
				if pp.InfiniteID != "" && pp.InfiniteID == pi.InfiniteID {
					infiniteGroup.Classes = append(infiniteGroup.Classes, "continues_infinite")
					break
				}
			}
		}

		if original, ok := data.OriginalInfinites[pi.InfiniteID]; ok && original.StartedPlayback != nil {
			// Anchor at the moment the infinite first went on air so the
			// content does not restart on every take.
			infiniteGroup.Enable.Start = timeline.Absolute(*original.StartedPlayback)

			hasUserDuration := pi.UserDurationEnd != "" || pi.UserDurationDuration != ""
			if hasUserDuration && currentPart.StartedPlayback != nil {
				// The operator's duration is relative to the current part;
				// shift it onto the infinite group's older clock.
				prevPartsDuration := *currentPart.StartedPlayback - *original.StartedPlayback
				if pi.UserDurationEnd != "" {
					infiniteGroup.Enable.Duration = timeline.Instant{}
					infiniteGroup.Enable.End = parseInstantLenient("piece "+pi.ID, pi.UserDurationEnd)
				} else {
					ud := parseInstantLenient("piece "+pi.ID, pi.UserDurationDuration)
					if ud.Kind == timeline.InstantAbsolute {
						ud.Abs += prevPartsDuration
					}
					infiniteGroup.Enable.Duration = ud
				}
			}
		}

		objs = append(objs, infiniteGroup)
		objs = append(objs, transformPartIntoTimeline(
			[]models.PieceInstance{*pi}, []string{"current_part"}, &infiniteGroup,
			nil, rundown.HoldState, pi.IsInfiniteContinuation())...)
	}

	currentTrans := &transitionProps{
		allowed:             allowTransition,
		preroll:             currentPart.PrerollDuration,
		transitionPreroll:   currentPart.TransitionPrerollDuration,
		transitionKeepalive: currentPart.TransitionKeepaliveDuration,
	}
	objs = append(objs, currentPartGroup)
	objs = append(objs, transformPartIntoTimeline(
		currentNormal, []string{"current_part"}, &currentPartGroup,
		currentTrans, rundown.HoldState, false)...)
	objs = append(objs, createPartGroupFirstObject(currentPart, &currentPartGroup, previousPart))

	if data.Next != nil && currentPart.AutoNext {
		nextPart := &data.Next.Part
		overlap := calcPartOverlapDuration(currentPart, nextPart)
		nextGroup := createPartGroup(nextPart, timeline.Enable{
			Start: timeline.Ref(currentPartGroup.ID, timeline.PointEnd, -overlap),
		})

		var nextPieces []models.PieceInstance
		for _, p := range data.Next.Pieces {
			if p.InfiniteID != "" && currentInfiniteIDs[p.InfiniteID] {
				continue
			}
			nextPieces = append(nextPieces, p)
		}

		nextTrans := &transitionProps{
			allowed:             !currentPart.DisableOutTransition,
			preroll:             nextPart.PrerollDuration,
			transitionPreroll:   nextPart.TransitionPrerollDuration,
			transitionKeepalive: nextPart.TransitionKeepaliveDuration,
		}
		objs = append(objs, nextGroup)
		objs = append(objs, transformPartIntoTimeline(
			nextPieces, []string{"next_part"}, &nextGroup,
			nextTrans, models.HoldStateNone, false)...)
		objs = append(objs, createPartGroupFirstObject(nextPart, &nextGroup, currentPart))
	}

	return objs
}
