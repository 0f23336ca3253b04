package segmentview

import (
	"testing"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/models"
)

func baseArgs() Args {
	return Args{
		Segment:                models.Segment{ID: "seg1", RundownID: "rd1", Name: "News"},
		SourceLayers:           map[string]models.SourceLayer{},
		OutputLayers:           map[string]models.OutputLayer{},
		PiecesByPart:           map[string][]models.Piece{},
		PlayedPartIDs:          map[string]bool{},
		DefaultDisplayDuration: 3000,
	}
}

func pieceOf(t *testing.T, part ResolvedPart, id string) ResolvedPiece {
	t.Helper()
	for _, p := range part.Pieces {
		if p.Piece.ID == id {
			return p
		}
	}
	t.Fatalf("piece %q not in part %q (%d pieces)", id, part.Part.ID, len(part.Pieces))
	return ResolvedPiece{}
}

func TestProjectRenderedPoints(t *testing.T) {
	args := baseArgs()
	args.Parts = []models.Part{{ID: "p1", RundownID: "rd1", SegmentID: "seg1", Rank: 1}}
	args.PiecesByPart["p1"] = []models.Piece{
		{ID: "a", PartID: "p1", SourceLayerID: "cam", OutputLayerID: "pgm",
			EnableStart: "0", EnableDuration: "2000"},
		{ID: "b", PartID: "p1", SourceLayerID: "gfx", OutputLayerID: "pgm",
			EnableStart: "#piece_group_a.end + 500"},
	}

	got := Project(args)
	if len(got.Parts) != 1 {
		t.Fatalf("got %d parts", len(got.Parts))
	}

	a := pieceOf(t, got.Parts[0], "a")
	if a.RenderedInPoint != 0 || a.RenderedDuration == nil || *a.RenderedDuration != 2000 {
		t.Errorf("a rendered = %d/%v, want 0/2000", a.RenderedInPoint, a.RenderedDuration)
	}

	b := pieceOf(t, got.Parts[0], "b")
	if b.RenderedInPoint != 2500 {
		t.Errorf("b rendered in-point = %d, want 2500", b.RenderedInPoint)
	}
	if b.RenderedDuration != nil {
		t.Errorf("open-ended b should have no duration, got %v", *b.RenderedDuration)
	}
}

func TestProjectEndAnchoredDuration(t *testing.T) {
	args := baseArgs()
	args.Parts = []models.Part{{ID: "p1", SegmentID: "seg1", Rank: 1}}
	args.PiecesByPart["p1"] = []models.Piece{
		{ID: "capped", PartID: "p1", SourceLayerID: "cam", OutputLayerID: "pgm",
			EnableStart: "0", EnableEnd: "4000"},
	}

	got := Project(args)
	capped := pieceOf(t, got.Parts[0], "capped")
	if capped.RenderedInPoint != 0 {
		t.Errorf("in-point = %d, want 0", capped.RenderedInPoint)
	}
	if capped.RenderedDuration == nil || *capped.RenderedDuration != 4000 {
		t.Errorf("end-anchored duration = %v, want the full 4000", capped.RenderedDuration)
	}
}

func TestProjectCropOverlappingPieces(t *testing.T) {
	args := baseArgs()
	args.Parts = []models.Part{{ID: "p1", SegmentID: "seg1", Rank: 1}}
	args.PiecesByPart["p1"] = []models.Piece{
		{ID: "a", PartID: "p1", SourceLayerID: "cam1", OutputLayerID: "pgm",
			EnableStart: "0", EnableDuration: "5000"},
		{ID: "b", PartID: "p1", SourceLayerID: "cam1", OutputLayerID: "pgm",
			EnableStart: "3000"},
		{ID: "c", PartID: "p1", SourceLayerID: "cam2", OutputLayerID: "pgm",
			EnableStart: "1000"},
	}

	got := Project(args)

	a := pieceOf(t, got.Parts[0], "a")
	if a.RenderedDuration == nil || *a.RenderedDuration != 3000 || !a.Cropped {
		t.Errorf("a = %v cropped=%v, want duration 3000 cropped", a.RenderedDuration, a.Cropped)
	}
	if a.MaxLabelWidth == nil || *a.MaxLabelWidth != 3000 {
		t.Errorf("a.MaxLabelWidth = %v, want 3000", a.MaxLabelWidth)
	}

	// Other layers are untouched.
	c := pieceOf(t, got.Parts[0], "c")
	if c.Cropped {
		t.Error("piece on its own layer must not be cropped")
	}

	b := pieceOf(t, got.Parts[0], "b")
	if b.Cropped {
		t.Error("the later piece is never the one cropped")
	}
}

func TestProjectNoCropWithoutOverlap(t *testing.T) {
	args := baseArgs()
	args.Parts = []models.Part{{ID: "p1", SegmentID: "seg1", Rank: 1}}
	args.PiecesByPart["p1"] = []models.Piece{
		{ID: "a", PartID: "p1", SourceLayerID: "cam1", OutputLayerID: "pgm",
			EnableStart: "0", EnableDuration: "2000"},
		{ID: "b", PartID: "p1", SourceLayerID: "cam1", OutputLayerID: "pgm",
			EnableStart: "3000"},
	}

	got := Project(args)
	a := pieceOf(t, got.Parts[0], "a")
	if a.Cropped || *a.RenderedDuration != 2000 {
		t.Errorf("a = %v cropped=%v, want untouched 2000", a.RenderedDuration, a.Cropped)
	}
	// Label width is still recorded: it is a layout value, not a crop flag.
	if a.MaxLabelWidth == nil || *a.MaxLabelWidth != 3000 {
		t.Errorf("a.MaxLabelWidth = %v, want 3000", a.MaxLabelWidth)
	}
}

func TestProjectInfiniteDemotedWhenCropped(t *testing.T) {
	args := baseArgs()
	args.Parts = []models.Part{{ID: "p1", SegmentID: "seg1", Rank: 1}}
	args.PiecesByPart["p1"] = []models.Piece{
		{ID: "inf", PartID: "p1", SourceLayerID: "gfx", OutputLayerID: "pgm",
			EnableStart: "0", InfiniteMode: models.LifespanOnRundownEnd},
		{ID: "b", PartID: "p1", SourceLayerID: "gfx", OutputLayerID: "pgm",
			EnableStart: "4000"},
	}

	got := Project(args)
	inf := pieceOf(t, got.Parts[0], "inf")
	if !inf.Cropped || inf.RenderedDuration == nil || *inf.RenderedDuration != 4000 {
		t.Errorf("infinite = %v cropped=%v, want cropped at 4000", inf.RenderedDuration, inf.Cropped)
	}
	if inf.InfiniteMode != models.LifespanNormal {
		t.Errorf("cropped infinite must be demoted to normal, got %d", inf.InfiniteMode)
	}
	// The plan data itself is untouched.
	if inf.Piece.InfiniteMode != models.LifespanOnRundownEnd {
		t.Error("projection must not rewrite the piece's own lifespan")
	}
}

func TestProjectInfiniteContinuesAcrossParts(t *testing.T) {
	args := baseArgs()
	args.Parts = []models.Part{
		{ID: "p1", SegmentID: "seg1", Rank: 1},
		{ID: "p2", SegmentID: "seg1", Rank: 2},
		{ID: "p3", SegmentID: "seg1", Rank: 3},
	}
	args.PiecesByPart["p1"] = []models.Piece{
		{ID: "ticker", PartID: "p1", SourceLayerID: "gfx", OutputLayerID: "pgm",
			EnableStart: "0", InfiniteMode: models.LifespanOnSegmentEnd},
	}
	// p2 is empty; p3 replaces the layer.
	args.PiecesByPart["p3"] = []models.Piece{
		{ID: "fullscreen", PartID: "p3", SourceLayerID: "gfx", OutputLayerID: "pgm",
			EnableStart: "2000"},
	}

	got := Project(args)

	shard2 := pieceOf(t, got.Parts[1], "ticker_p2")
	if shard2.ContinuesRef != "ticker" || shard2.RenderedInPoint != 0 {
		t.Errorf("continuation shard = %+v", shard2)
	}

	original := pieceOf(t, got.Parts[0], "ticker")
	if original.ContinuedByRef != "ticker_p2" {
		t.Errorf("original.ContinuedByRef = %q, want ticker_p2", original.ContinuedByRef)
	}

	// In p3 the shard is cropped against the fullscreen graphic and the
	// infinite stops flowing.
	shard3 := pieceOf(t, got.Parts[2], "ticker_p3")
	if !shard3.Cropped || shard3.RenderedDuration == nil || *shard3.RenderedDuration != 2000 {
		t.Errorf("shard in p3 = %+v, want cropped at 2000", shard3)
	}
	if shard3.InfiniteMode != models.LifespanNormal {
		t.Error("cropped shard must be demoted")
	}
}

func TestProjectDisplayDurationGroups(t *testing.T) {
	p1 := models.Part{ID: "p1", SegmentID: "seg1", Rank: 1,
		ExpectedDuration: 4000, DisplayDurationGroup: "g", DisplayDuration: 0}
	p2 := models.Part{ID: "p2", SegmentID: "seg1", Rank: 2,
		ExpectedDuration: 2000, DisplayDurationGroup: "g", DisplayDuration: 1000}

	// Each part contributes its expected duration and immediately draws
	// from the just-incremented pool, so the result depends on order.
	t.Run("rank order p1 p2", func(t *testing.T) {
		args := baseArgs()
		args.Parts = []models.Part{p1, p2}
		got := Project(args)
		if got.Parts[0].RenderedDuration != 4000 {
			t.Errorf("p1 rendered = %d, want 4000", got.Parts[0].RenderedDuration)
		}
		if got.Parts[1].RenderedDuration != 1000 {
			t.Errorf("p2 rendered = %d, want its explicit 1000", got.Parts[1].RenderedDuration)
		}
	})

	t.Run("rank order p2 p1", func(t *testing.T) {
		args := baseArgs()
		args.Parts = []models.Part{p2, p1}
		got := Project(args)
		if got.Parts[0].RenderedDuration != 1000 {
			t.Errorf("p2 rendered = %d, want its explicit 1000", got.Parts[0].RenderedDuration)
		}
		// p1 draws the remainder: p2 left 1000 in the pool, p1 adds 4000.
		if got.Parts[1].RenderedDuration != 5000 {
			t.Errorf("p1 rendered = %d, want 5000", got.Parts[1].RenderedDuration)
		}
	})
}

func TestProjectDefaultDisplayDuration(t *testing.T) {
	args := baseArgs()
	args.Parts = []models.Part{
		{ID: "planned", SegmentID: "seg1", Rank: 1, ExpectedDuration: 8000},
		{ID: "unplanned", SegmentID: "seg1", Rank: 2},
	}

	got := Project(args)
	if got.Parts[0].RenderedDuration != 8000 {
		t.Errorf("planned part rendered = %d, want 8000", got.Parts[0].RenderedDuration)
	}
	if got.Parts[1].RenderedDuration != 3000 {
		t.Errorf("unplanned part rendered = %d, want the 3000 default", got.Parts[1].RenderedDuration)
	}
}

func TestProjectSegmentFlags(t *testing.T) {
	args := baseArgs()
	args.Parts = []models.Part{
		{ID: "p1", SegmentID: "seg1", Rank: 1, AutoNext: true},
		{ID: "p2", SegmentID: "seg1", Rank: 2},
	}
	args.PiecesByPart["p1"] = []models.Piece{
		{ID: "rem", PartID: "p1", SourceLayerID: "remote1", OutputLayerID: "pgm", EnableStart: "0"},
	}
	args.PiecesByPart["p2"] = []models.Piece{
		{ID: "guest", PartID: "p2", SourceLayerID: "guest1", OutputLayerID: "pgm", EnableStart: "0"},
	}
	args.SourceLayers["remote1"] = models.SourceLayer{ID: "remote1", IsRemoteInput: true}
	args.SourceLayers["guest1"] = models.SourceLayer{ID: "guest1", IsGuestInput: true}
	args.CurrentPartID = "p1"
	args.NextPartID = "p2"
	args.PlayedPartIDs = map[string]bool{"p1": true}

	got := Project(args)

	if !got.IsLiveSegment || !got.IsNextSegment {
		t.Errorf("segment live/next = %v/%v, want both", got.IsLiveSegment, got.IsNextSegment)
	}
	if !got.HasRemoteItems || !got.HasGuestItems {
		t.Errorf("remote/guest = %v/%v, want both", got.HasRemoteItems, got.HasGuestItems)
	}
	if !got.HasAlreadyPlayed {
		t.Error("segment with a played part must flag hasAlreadyPlayed")
	}
	if !got.AutoNextPart {
		t.Error("live part with auto-next must flag autoNextPart")
	}
	if !got.Parts[0].IsLive || !got.Parts[1].IsNext {
		t.Errorf("part flags: %+v %+v", got.Parts[0], got.Parts[1])
	}
}

func TestProjectOtherSegmentIsNeitherLiveNorNext(t *testing.T) {
	args := baseArgs()
	args.Parts = []models.Part{{ID: "p1", SegmentID: "seg1", Rank: 1}}
	args.CurrentPartID = "elsewhere"
	args.NextPartID = "elsewhere2"

	got := Project(args)
	if got.IsLiveSegment || got.IsNextSegment || got.AutoNextPart {
		t.Errorf("flags leaked from another segment: %+v", got)
	}
}

func TestProjectFollowingPartPreview(t *testing.T) {
	args := baseArgs()
	args.Parts = []models.Part{{ID: "p1", SegmentID: "seg1", Rank: 1}}
	args.PiecesByPart["p1"] = []models.Piece{
		{ID: "a", PartID: "p1", SourceLayerID: "cam", OutputLayerID: "pgm", EnableStart: "0"},
	}
	args.SourceLayers["cam"] = models.SourceLayer{ID: "cam", Name: "Cameras"}
	args.SourceLayers["vt"] = models.SourceLayer{ID: "vt", Name: "Clips"}
	args.FollowingPart = &models.Part{ID: "after", SegmentID: "seg2", Rank: 1}
	args.FollowingPieces = []models.Piece{
		{ID: "clip", PartID: "after", SourceLayerID: "vt", OutputLayerID: "pgm", EnableStart: "0"},
	}

	got := Project(args)

	if got.FollowingPart == nil || got.FollowingPart.ID != "after" {
		t.Fatalf("FollowingPart = %+v, want after", got.FollowingPart)
	}

	cam := got.LayerViews["cam"]
	if !cam.Used || len(cam.FollowingPieces) != 0 {
		t.Errorf("cam view = %+v, want used with no previews", cam)
	}

	// The preview attaches but does not mark the layer used.
	vt := got.LayerViews["vt"]
	if vt.Used {
		t.Error("a preview piece must not mark its layer used")
	}
	if len(vt.FollowingPieces) != 1 || vt.FollowingPieces[0].ID != "clip" {
		t.Errorf("vt view previews = %+v, want the clip", vt.FollowingPieces)
	}
}

func TestProjectLayerViewsWithoutFollowingPart(t *testing.T) {
	args := baseArgs()
	args.Parts = []models.Part{{ID: "p1", SegmentID: "seg1", Rank: 1}}
	args.PiecesByPart["p1"] = []models.Piece{
		{ID: "a", PartID: "p1", SourceLayerID: "cam", OutputLayerID: "pgm", EnableStart: "0"},
	}

	got := Project(args)
	if got.FollowingPart != nil {
		t.Errorf("FollowingPart = %+v, want nil", got.FollowingPart)
	}
	// Layers only referenced by pieces still get a view.
	if v, ok := got.LayerViews["cam"]; !ok || !v.Used {
		t.Errorf("cam view = %+v, want used", got.LayerViews["cam"])
	}
}

func TestProjectIsPure(t *testing.T) {
	args := baseArgs()
	args.Parts = []models.Part{{ID: "p1", SegmentID: "seg1", Rank: 1,
		ExpectedDuration: 4000, DisplayDurationGroup: "g"}}
	args.PiecesByPart["p1"] = []models.Piece{
		{ID: "inf", PartID: "p1", SourceLayerID: "gfx", OutputLayerID: "pgm",
			EnableStart: "0", InfiniteMode: models.LifespanOnRundownEnd},
		{ID: "b", PartID: "p1", SourceLayerID: "gfx", OutputLayerID: "pgm",
			EnableStart: "4000"},
	}

	first := Project(args)
	second := Project(args)

	if len(first.Parts) != len(second.Parts) {
		t.Fatal("repeated projection changed shape")
	}
	f := pieceOf(t, first.Parts[0], "inf")
	s := pieceOf(t, second.Parts[0], "inf")
	if f.Cropped != s.Cropped || *f.RenderedDuration != *s.RenderedDuration || f.InfiniteMode != s.InfiniteMode {
		t.Error("repeated projection changed results; projector must be pure")
	}
	if first.Parts[0].RenderedDuration != second.Parts[0].RenderedDuration {
		t.Error("display duration pool leaked between projections")
	}
}
