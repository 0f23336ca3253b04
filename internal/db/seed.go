package database

import (
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chrisryanouellette/tv-automation-server-core/internal/models"
)

// SeedDemoStudio populates the DB with one studio, a small layer set and a
// demo rundown so the service is driveable straight after first boot.
func SeedDemoStudio(db *gorm.DB) {
	studio := models.Studio{ID: "studio0", Name: "Studio 0", BaselinePath: "./baseline.yaml"}

	sourceLayers := []models.SourceLayer{
		{ID: "cam1", Name: "Camera", Type: "camera", Rank: 0},
		{ID: "vt", Name: "Clips", Type: "vt", Rank: 1},
		{ID: "gfx_lower", Name: "Lower Thirds", Type: "graphics", Rank: 2},
		{ID: "gfx_ticker", Name: "Ticker", Type: "graphics", Rank: 3},
		{ID: "remote1", Name: "Live Remote", Type: "remote", Rank: 4, IsRemoteInput: true},
		{ID: "trans", Name: "Transitions", Type: "transition", Rank: 5, IsHidden: true},
	}
	outputLayers := []models.OutputLayer{
		{ID: "pgm", Name: "Program", Rank: 0, IsPGM: true},
		{ID: "monitor", Name: "Monitor Wall", Rank: 1},
	}

	rundown := models.Rundown{ID: "demo", StudioID: studio.ID, Name: "Demo Bulletin"}
	segments := []models.Segment{
		{ID: "seg_headlines", RundownID: rundown.ID, Rank: 1, Name: "Headlines"},
		{ID: "seg_weather", RundownID: rundown.ID, Rank: 2, Name: "Weather"},
	}

	parts := []models.Part{
		{
			ID: "part_open", RundownID: rundown.ID, SegmentID: "seg_headlines", Rank: 1,
			Title: "Show Open", ExpectedDuration: 8000, AutoNext: true,
			PrerollDuration: 200,
		},
		{
			ID: "part_lead", RundownID: rundown.ID, SegmentID: "seg_headlines", Rank: 2,
			Title: "Lead Story", ExpectedDuration: 20000,
			PrerollDuration: 120, TransitionPrerollDuration: i64(500), TransitionKeepaliveDuration: i64(400),
		},
		{
			ID: "part_voq", RundownID: rundown.ID, SegmentID: "seg_headlines", Rank: 3,
			Title: "VO Sequence", ExpectedDuration: 12000,
			DisplayDurationGroup: "headlines_vo", DisplayDuration: 0,
		},
		{
			ID: "part_voq2", RundownID: rundown.ID, SegmentID: "seg_headlines", Rank: 4,
			Title: "VO B-Roll", ExpectedDuration: 6000,
			DisplayDurationGroup: "headlines_vo", DisplayDuration: 4000,
		},
		{
			ID: "part_weather", RundownID: rundown.ID, SegmentID: "seg_weather", Rank: 5,
			Title: "Weather", ExpectedDuration: 30000, PrerollDuration: 80,
		},
	}

	pieces := []models.Piece{
		{
			ID: "p_open_vt", RundownID: rundown.ID, PartID: "part_open", Rank: 0,
			Name: "Opening Titles", SourceLayerID: "vt", OutputLayerID: "pgm",
			EnableStart: "0", EnableDuration: "8000",
			ContentObjects: `[{"id":"p_open_vt_media","layer":"play_server_1","content":{"deviceType":"caspar","file":"OPEN_2026"}}]`,
		},
		{
			ID: "p_lead_cam", RundownID: rundown.ID, PartID: "part_lead", Rank: 0,
			Name: "CAM 1", SourceLayerID: "cam1", OutputLayerID: "pgm",
			EnableStart: "0",
			ContentObjects: `[{"id":"p_lead_cam_me","layer":"vision_mixer_me1","content":{"deviceType":"atem","input":1}}]`,
		},
		{
			ID: "p_lead_mix", RundownID: rundown.ID, PartID: "part_lead", Rank: 1,
			Name: "MIX 500", SourceLayerID: "trans", OutputLayerID: "pgm", IsTransition: true,
			EnableStart: "0", EnableDuration: "500",
			ContentObjects: `[{"id":"p_lead_mix_me","layer":"vision_mixer_me1_trans","content":{"deviceType":"atem","style":"mix","rate":500}}]`,
		},
		{
			ID: "p_lead_lower", RundownID: rundown.ID, PartID: "part_lead", Rank: 2,
			Name: "Name Strap", SourceLayerID: "gfx_lower", OutputLayerID: "pgm",
			EnableStart: "2000", EnableDuration: "5000",
			ContentObjects: `[{"id":"p_lead_lower_gfx","layer":"gfx_1","content":{"deviceType":"caspar","template":"LOWER_THIRD"}}]`,
		},
		{
			ID: "p_ticker", RundownID: rundown.ID, PartID: "part_lead", Rank: 3,
			Name: "News Ticker", SourceLayerID: "gfx_ticker", OutputLayerID: "pgm",
			EnableStart: "0", InfiniteMode: models.LifespanOnRundownEnd,
			ContentObjects: `[{"id":"p_ticker_gfx","layer":"gfx_ticker","content":{"deviceType":"caspar","template":"TICKER"}}]`,
		},
		{
			ID: "p_vo_broll", RundownID: rundown.ID, PartID: "part_voq", Rank: 0,
			Name: "B-Roll", SourceLayerID: "vt", OutputLayerID: "pgm",
			EnableStart: "0",
			ContentObjects: `[{"id":"p_vo_broll_media","layer":"play_server_1","content":{"deviceType":"caspar","file":"BROLL_0901"}}]`,
		},
		{
			ID: "p_vo_remote", RundownID: rundown.ID, PartID: "part_voq2", Rank: 0,
			Name: "Remote Feed", SourceLayerID: "remote1", OutputLayerID: "pgm",
			EnableStart: "0",
			ContentObjects: `[{"id":"p_vo_remote_me","layer":"vision_mixer_me1","content":{"deviceType":"atem","input":7}}]`,
		},
		{
			ID: "p_weather_cam", RundownID: rundown.ID, PartID: "part_weather", Rank: 0,
			Name: "CAM 2", SourceLayerID: "cam1", OutputLayerID: "pgm",
			EnableStart: "0",
			ContentObjects: `[{"id":"p_weather_cam_me","layer":"vision_mixer_me1","content":{"deviceType":"atem","input":2}}]`,
		},
	}

	onConflict := clause.OnConflict{DoNothing: true}
	db.Clauses(onConflict).Create(&studio)
	db.Clauses(onConflict).Create(&sourceLayers)
	db.Clauses(onConflict).Create(&outputLayers)
	db.Clauses(onConflict).Create(&rundown)
	db.Clauses(onConflict).Create(&segments)
	db.Clauses(onConflict).Create(&parts)
	db.Clauses(onConflict).Create(&pieces)

	log.Printf("✅ Seeded demo studio %q with rundown %q (%d parts, %d pieces)",
		studio.ID, rundown.ID, len(parts), len(pieces))
}

func i64(v int64) *int64 { return &v }
