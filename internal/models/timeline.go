package models

import "time"

// TimelineObjRecord is one persisted device-facing timeline object. The
// whole set for a studio is replaced on every recomputation; the hardware
// gateways consume it together with the TimelineStat fingerprint.
type TimelineObjRecord struct {
	// ID is studioID + "_" + ObjectID so rows from different studios never
	// collide.
	ID        string    `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	StudioID  string `json:"studio_id" gorm:"index;not null"`
	RundownID string `json:"rundown_id" gorm:"index"`
	ObjectID  string `json:"object_id" gorm:"index;not null"`

	ObjectType string `json:"object_type" gorm:"index"`

	EnableStart    string `json:"enable_start"`
	EnableEnd      string `json:"enable_end"`
	EnableDuration string `json:"enable_duration"`
	EnableWhile    string `json:"enable_while"`
	// SetFromNow marks a start that was "now" and has been frozen to a
	// concrete time; rebuilds must not let it drift.
	SetFromNow bool `json:"set_from_now"`

	Layer    string `json:"layer"`
	InGroup  string `json:"in_group"`
	IsGroup  bool   `json:"is_group"`
	Priority int    `json:"priority"`
	Classes  string `json:"classes"`
	HoldMode string `json:"hold_mode"`

	// Content is the opaque device payload, JSON-encoded.
	Content string `json:"content"`

	// Resolved instants from the last resolution pass. Resolved=false rows
	// are still written so operators can see what failed.
	ResolvedStart *int64 `json:"resolved_start"`
	ResolvedEnd   *int64 `json:"resolved_end"`
	Resolved      bool   `json:"resolved"`
}

// TimelineStat is the per-studio fingerprint the gateways poll to decide
// whether to re-fetch the full timeline. One row per studio.
type TimelineStat struct {
	StudioID string `gorm:"primaryKey" json:"studio_id"`
	ObjCount int    `json:"obj_count"`
	ObjHash  string `json:"obj_hash"`
	Modified int64  `json:"modified"`
}

// TableName overrides the default pluralization
func (TimelineStat) TableName() string {
	return "timeline_stat"
}
