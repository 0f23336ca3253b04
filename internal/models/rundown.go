package models

import "time"

// RundownHoldState tracks the two-step hold (split take) of a rundown.
type RundownHoldState int

const (
	HoldStateNone     RundownHoldState = 0
	HoldStatePending  RundownHoldState = 1
	HoldStateActive   RundownHoldState = 2
	HoldStateComplete RundownHoldState = 3
)

// Rundown is one show: an ordered list of segments and parts, plus the
// playback position. At most one rundown is active per studio.
//
// The three instance pointers, when non-null, always refer to distinct
// PartInstances, and each pointed-to instance must exist - a missing one is
// a consistency error that aborts timeline updates rather than silently
// producing an empty timeline.
type Rundown struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	StudioID string `json:"studio_id" gorm:"index;not null"`
	Name     string `json:"name" gorm:"not null"`

	Active    bool             `json:"active" gorm:"index"`
	Rehearsal bool             `json:"rehearsal"`
	HoldState RundownHoldState `json:"hold_state"`

	CurrentPartInstanceID  *string `json:"current_part_instance_id"`
	NextPartInstanceID     *string `json:"next_part_instance_id"`
	PreviousPartInstanceID *string `json:"previous_part_instance_id"`

	// NextPartManual records whether the next was set by an operator rather
	// than by the natural rundown order.
	NextPartManual bool   `json:"next_part_manual"`
	NextTimeOffset *int64 `json:"next_time_offset"`

	// StartedPlayback is the wall-clock ms when the first take happened.
	StartedPlayback *int64 `json:"started_playback"`
}

// Segment groups consecutive parts, typically one story.
type Segment struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RundownID string  `json:"rundown_id" gorm:"index;not null"`
	Rank      float64 `json:"rank" gorm:"index"`
	Name      string  `json:"name"`
}
