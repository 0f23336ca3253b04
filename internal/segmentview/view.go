// Package segmentview projects a segment's parts and pieces into the
// rendered form the UI draws: in-points and durations relative to the part
// start, display-duration budgets shared across parts, and cropping where
// pieces compete for the same output+source layer. It reads plan data only
// and never writes.
package segmentview

import (
	"log"
	"sort"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/models"
	"github.com/chrisryanouellette/tv-automation-server-core/internal/timeline"
)

// Pieces are resolved at a small offset because an absolute start of 0 is
// indistinguishable from "unset" for several enable combinations.
const timelineTempOffset int64 = 1

// Args is everything the projection needs, read by the caller in one pass.
type Args struct {
	Segment models.Segment
	// Parts in rank order, with their plan pieces.
	Parts        []models.Part
	PiecesByPart map[string][]models.Piece

	SourceLayers map[string]models.SourceLayer
	OutputLayers map[string]models.OutputLayer

	// CurrentPartID / NextPartID are part (not instance) ids of the
	// playback position, empty when nothing is on air.
	CurrentPartID string
	NextPartID    string
	// PlayedPartIDs are parts with playback already stamped.
	PlayedPartIDs map[string]bool

	// DefaultDisplayDuration is the rendered width for parts with no
	// planned duration.
	DefaultDisplayDuration int64

	// FollowingPart is the part immediately after the segment, with its
	// pieces, previewed on the layer views without counting as used.
	FollowingPart   *models.Part
	FollowingPieces []models.Piece
}

// ResolvedPiece is one piece with rendered timing relative to its part.
type ResolvedPiece struct {
	Piece models.Piece `json:"piece"`

	RenderedInPoint  int64  `json:"rendered_in_point"`
	RenderedDuration *int64 `json:"rendered_duration"`
	Cropped          bool   `json:"cropped"`
	// InfiniteMode may be demoted from the piece's own when cropping cut
	// the infinite short.
	InfiniteMode models.PieceLifespan `json:"infinite_mode"`

	// MaxLabelWidth is the start-to-start gap to the next piece on the
	// same layer; the UI truncates labels to it.
	MaxLabelWidth *int64 `json:"max_label_width"`

	// ContinuesRef / ContinuedByRef link the shards of one infinite piece
	// across the parts of the segment.
	ContinuesRef   string `json:"continues_ref,omitempty"`
	ContinuedByRef string `json:"continued_by_ref,omitempty"`
}

// ResolvedPart is one part with its rendered pieces and width.
type ResolvedPart struct {
	Part   models.Part     `json:"part"`
	Pieces []ResolvedPiece `json:"pieces"`

	RenderedDuration int64 `json:"rendered_duration"`

	IsLive           bool `json:"is_live"`
	IsNext           bool `json:"is_next"`
	HasAlreadyPlayed bool `json:"has_already_played"`
	WillAutoNext     bool `json:"will_auto_next"`
}

// SourceLayerView is one source layer with the segment's usage of it and
// the preview pieces of the part right after the segment.
type SourceLayerView struct {
	Layer models.SourceLayer `json:"layer"`
	Used  bool               `json:"used"`

	FollowingPieces []models.Piece `json:"following_pieces,omitempty"`
}

// ResolvedSegment is the full projection.
type ResolvedSegment struct {
	Segment models.Segment `json:"segment"`
	Parts   []ResolvedPart `json:"parts"`

	SourceLayers map[string]models.SourceLayer `json:"source_layers"`
	OutputLayers map[string]models.OutputLayer `json:"output_layers"`
	LayerViews   map[string]SourceLayerView    `json:"layer_views"`

	FollowingPart *models.Part `json:"following_part,omitempty"`

	IsLiveSegment    bool `json:"is_live_segment"`
	IsNextSegment    bool `json:"is_next_segment"`
	HasRemoteItems   bool `json:"has_remote_items"`
	HasGuestItems    bool `json:"has_guest_items"`
	HasAlreadyPlayed bool `json:"has_already_played"`
	AutoNextPart     bool `json:"auto_next_part"`
}

// Project computes the resolved view. Pure: safe to call repeatedly on the
// same inputs.
func Project(args Args) ResolvedSegment {
	out := ResolvedSegment{
		Segment:      args.Segment,
		SourceLayers: args.SourceLayers,
		OutputLayers: args.OutputLayers,
	}

	// Uncapped infinites flowing across part boundaries, keyed by
	// (outputLayerId, sourceLayerId). Cleared when cropping ends one.
	type ongoingInfinite struct {
		pieceID  string
		lifespan models.PieceLifespan
		// owner points at the resolved piece of the part that declared the
		// infinite, so the back-link can be stamped.
		owner *ResolvedPiece
	}
	ongoing := map[[2]string]*ongoingInfinite{}

	for _, part := range args.Parts {
		rp := ResolvedPart{
			Part:             part,
			IsLive:           part.ID == args.CurrentPartID,
			IsNext:           part.ID == args.NextPartID,
			HasAlreadyPlayed: args.PlayedPartIDs[part.ID],
			WillAutoNext:     part.AutoNext,
		}

		rp.Pieces = resolvePartPieces(part, args.PiecesByPart[part.ID])

		// Carry ongoing infinites from earlier parts in as zero-in-point
		// continuation shards.
		for key, inf := range ongoing {
			shard := ResolvedPiece{
				Piece: models.Piece{
					ID:            inf.pieceID + "_" + part.ID,
					RundownID:     part.RundownID,
					PartID:        part.ID,
					SourceLayerID: key[1],
					OutputLayerID: key[0],
					InfiniteMode:  inf.lifespan,
				},
				RenderedInPoint: 0,
				InfiniteMode:    inf.lifespan,
				ContinuesRef:    inf.pieceID,
			}
			if inf.owner != nil && inf.owner.ContinuedByRef == "" {
				inf.owner.ContinuedByRef = shard.Piece.ID
			}
			rp.Pieces = append(rp.Pieces, shard)
		}

		cropPieces(rp.Pieces)

		// Register this part's surviving infinites and drop those the
		// cropping demoted.
		for i := range rp.Pieces {
			p := &rp.Pieces[i]
			key := [2]string{p.Piece.OutputLayerID, p.Piece.SourceLayerID}
			if p.ContinuesRef != "" {
				if p.InfiniteMode == models.LifespanNormal {
					delete(ongoing, key)
				}
				continue
			}
			if p.InfiniteMode != models.LifespanNormal && p.RenderedDuration == nil {
				ongoing[key] = &ongoingInfinite{pieceID: p.Piece.ID, lifespan: p.InfiniteMode, owner: p}
			}
		}

		for _, p := range rp.Pieces {
			if sl, ok := args.SourceLayers[p.Piece.SourceLayerID]; ok {
				if sl.IsRemoteInput {
					out.HasRemoteItems = true
				}
				if sl.IsGuestInput {
					out.HasGuestItems = true
				}
			}
		}

		out.Parts = append(out.Parts, rp)

		if rp.IsLive {
			out.IsLiveSegment = true
			if part.AutoNext {
				out.AutoNextPart = true
			}
		}
		if rp.IsNext {
			out.IsNextSegment = true
		}
		if rp.HasAlreadyPlayed {
			out.HasAlreadyPlayed = true
		}
	}

	applyDisplayDurations(out.Parts, args.DefaultDisplayDuration)
	out.LayerViews = buildLayerViews(args, out.Parts)
	if args.FollowingPart != nil {
		fp := *args.FollowingPart
		out.FollowingPart = &fp
	}
	return out
}

// buildLayerViews marks each source layer used when a rendered piece sits
// on it and attaches the following part's pieces as previews. Preview
// pieces never mark a layer used.
func buildLayerViews(args Args, parts []ResolvedPart) map[string]SourceLayerView {
	views := map[string]SourceLayerView{}
	view := func(id string) SourceLayerView {
		if v, ok := views[id]; ok {
			return v
		}
		layer, ok := args.SourceLayers[id]
		if !ok {
			layer = models.SourceLayer{ID: id}
		}
		return SourceLayerView{Layer: layer}
	}

	for id := range args.SourceLayers {
		views[id] = view(id)
	}
	for _, rp := range parts {
		for _, p := range rp.Pieces {
			if p.Piece.SourceLayerID == "" {
				continue
			}
			v := view(p.Piece.SourceLayerID)
			v.Used = true
			views[p.Piece.SourceLayerID] = v
		}
	}
	if args.FollowingPart != nil {
		for _, piece := range args.FollowingPieces {
			if piece.SourceLayerID == "" {
				continue
			}
			v := view(piece.SourceLayerID)
			v.FollowingPieces = append(v.FollowingPieces, piece)
			views[piece.SourceLayerID] = v
		}
	}
	return views
}

// resolvePartPieces runs the expression resolver over just this part's
// pieces to turn relative enables into rendered in-points and durations.
func resolvePartPieces(part models.Part, pieces []models.Piece) []ResolvedPiece {
	objs := make([]timeline.Object, 0, len(pieces))
	for i := range pieces {
		p := &pieces[i]
		enable := pieceEnable(p)
		if enable.Start.Kind == timeline.InstantNow || (enable.Start.Kind == timeline.InstantAbsolute && enable.Start.Abs == 0) {
			enable.Start = timeline.Absolute(timelineTempOffset)
		} else if enable.Start.Kind == timeline.InstantAbsolute {
			enable.Start = timeline.Absolute(enable.Start.Abs + timelineTempOffset)
		}
		// Absolute ends shift too, or the offset bleeds into the duration.
		if enable.End.Kind == timeline.InstantAbsolute {
			enable.End = timeline.Absolute(enable.End.Abs + timelineTempOffset)
		}
		objs = append(objs, timeline.Object{
			ID:        "piece_group_" + p.ID,
			Enable:    enable,
			Layer:     p.SourceLayerID,
			RundownID: p.RundownID,
		})
	}
	resolved := timeline.Resolve(objs, timeline.Options{BaseTime: timelineTempOffset})

	out := make([]ResolvedPiece, 0, len(pieces))
	unresolvedCount := 0
	for i := range pieces {
		p := pieces[i]
		r := resolved["piece_group_"+p.ID]
		rp := ResolvedPiece{Piece: p, InfiniteMode: p.InfiniteMode}
		if r.Resolved && r.Start != nil {
			rp.RenderedInPoint = *r.Start - timelineTempOffset
			if rp.RenderedInPoint < 0 {
				rp.RenderedInPoint = 0
			}
			if r.End != nil {
				d := *r.End - *r.Start
				rp.RenderedDuration = &d
			}
		} else {
			unresolvedCount++
		}
		out = append(out, rp)
	}
	if unresolvedCount > 0 {
		log.Printf("⚠️ Part %q has %d unresolved pieces out of %d", part.ID, unresolvedCount, len(pieces))
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].RenderedInPoint != out[b].RenderedInPoint {
			return out[a].RenderedInPoint < out[b].RenderedInPoint
		}
		if out[a].Piece.IsTransition != out[b].Piece.IsTransition {
			return out[a].Piece.IsTransition
		}
		return false
	})
	return out
}

func pieceEnable(p *models.Piece) timeline.Enable {
	parse := func(raw string) timeline.Instant {
		ins, err := timeline.ParseInstant(raw)
		if err != nil {
			log.Printf("⚠️ piece %q: bad enable term %q: %v", p.ID, raw, err)
			return timeline.Instant{}
		}
		return ins
	}
	enable := timeline.Enable{
		Start:    parse(p.EnableStart),
		End:      parse(p.EnableEnd),
		Duration: parse(p.EnableDuration),
	}
	if !enable.Start.IsSet() && !enable.End.IsSet() {
		enable.Start = timeline.Absolute(0)
	}
	return enable
}

// cropPieces trims overlapping pieces sharing an output+source layer. The
// earlier piece on the layer ends where the next begins; an infinite cut
// this way is demoted to a normal lifespan.
func cropPieces(pieces []ResolvedPiece) {
	byLayer := map[[2]string][]*ResolvedPiece{}
	for i := range pieces {
		key := [2]string{pieces[i].Piece.OutputLayerID, pieces[i].Piece.SourceLayerID}
		byLayer[key] = append(byLayer[key], &pieces[i])
	}

	for _, group := range byLayer {
		sort.SliceStable(group, func(a, b int) bool {
			return group[a].RenderedInPoint < group[b].RenderedInPoint
		})
		for i := 0; i < len(group)-1; i++ {
			earlier, later := group[i], group[i+1]
			gap := later.RenderedInPoint - earlier.RenderedInPoint
			earlier.MaxLabelWidth = &gap

			uncappedInfinite := earlier.InfiniteMode != models.LifespanNormal && earlier.RenderedDuration == nil
			overruns := earlier.RenderedDuration != nil &&
				earlier.RenderedInPoint+*earlier.RenderedDuration > later.RenderedInPoint
			if uncappedInfinite || overruns {
				d := gap
				earlier.RenderedDuration = &d
				earlier.Cropped = true
				if earlier.InfiniteMode != models.LifespanNormal {
					earlier.InfiniteMode = models.LifespanNormal
				}
			}
		}
	}
}

// applyDisplayDurations computes each part's rendered width. Parts tagged
// with the same display duration group pool their planned durations: each
// part contributes its expectedDuration and immediately draws its own
// width from the just-incremented pool (an explicit displayDuration draws
// exactly that, zero draws the remainder). The self-inclusion of the first
// member's contribution is kept exactly as the shipped arithmetic has it.
func applyDisplayDurations(parts []ResolvedPart, defaultDuration int64) {
	pools := map[string]int64{}
	for i := range parts {
		part := &parts[i].Part
		if part.DisplayDurationGroup == "" {
			if part.ExpectedDuration > 0 {
				parts[i].RenderedDuration = part.ExpectedDuration
			} else {
				parts[i].RenderedDuration = defaultDuration
			}
			continue
		}

		pools[part.DisplayDurationGroup] += part.ExpectedDuration
		var rendered int64
		if part.DisplayDuration != 0 {
			rendered = part.DisplayDuration
		} else {
			rendered = pools[part.DisplayDurationGroup]
		}
		pools[part.DisplayDurationGroup] -= rendered
		if pools[part.DisplayDurationGroup] < 0 {
			pools[part.DisplayDurationGroup] = 0
		}
		parts[i].RenderedDuration = rendered
	}
}
