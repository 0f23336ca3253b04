package models

import "time"

// Part is a single step in a rundown, ordered by Rank within its segment.
// The transition timing fields use pointers where the reference behavior
// distinguishes unset from zero (keepalive falls back to preroll only when
// the field is truly absent).
type Part struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RundownID string  `json:"rundown_id" gorm:"index;not null"`
	SegmentID string  `json:"segment_id" gorm:"index;not null"`
	Rank      float64 `json:"rank" gorm:"index"`
	Title     string  `json:"title"`

	// ExpectedDuration is the planned runtime in ms, as declared by the
	// show's blueprints.
	ExpectedDuration int64 `json:"expected_duration"`

	AutoNext        bool  `json:"auto_next"`
	AutoNextOverlap int64 `json:"auto_next_overlap"`

	PrerollDuration             int64  `json:"preroll_duration"`
	TransitionPrerollDuration   *int64 `json:"transition_preroll_duration"`
	TransitionKeepaliveDuration *int64 `json:"transition_keepalive_duration"`
	DisableOutTransition        bool   `json:"disable_out_transition"`

	// DisplayDuration and DisplayDurationGroup drive the UI budget-sharing
	// of rendered part widths; they never affect device timing.
	DisplayDuration      int64  `json:"display_duration"`
	DisplayDurationGroup string `json:"display_duration_group" gorm:"index"`

	Invalid bool `json:"invalid"`

	// Classes are free-form markers copied onto the part group,
	// comma-separated. ClassesForNext are handed to whichever part follows.
	Classes        string `json:"classes"`
	ClassesForNext string `json:"classes_for_next"`
}

// PartInstance is the per-playback materialization of a Part: the part
// fields are copied at set-next time so later rundown edits cannot change
// what is on air, and the playback state lives here.
type PartInstance struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PartID    string  `json:"part_id" gorm:"index;not null"`
	RundownID string  `json:"rundown_id" gorm:"index;not null"`
	SegmentID string  `json:"segment_id" gorm:"index"`
	Rank      float64 `json:"rank"`
	Title     string  `json:"title"`

	ExpectedDuration            int64  `json:"expected_duration"`
	AutoNext                    bool   `json:"auto_next"`
	AutoNextOverlap             int64  `json:"auto_next_overlap"`
	PrerollDuration             int64  `json:"preroll_duration"`
	TransitionPrerollDuration   *int64 `json:"transition_preroll_duration"`
	TransitionKeepaliveDuration *int64 `json:"transition_keepalive_duration"`
	DisableOutTransition        bool   `json:"disable_out_transition"`

	Classes        string `json:"classes"`
	ClassesForNext string `json:"classes_for_next"`

	// StartedPlayback is stamped (ms) when this instance goes on air;
	// Duration when it stops. IsReset marks instances invalidated by a
	// rundown reset.
	StartedPlayback *int64 `json:"started_playback"`
	Duration        *int64 `json:"duration"`
	IsReset         bool   `json:"is_reset"`
	TakeOut         *int64 `json:"take_out"`
	NextTime        *int64 `json:"next_time"`
}
