package models

import "time"

// PieceLifespan is how far an infinite piece continues past its part.
type PieceLifespan int

const (
	LifespanNormal       PieceLifespan = 0
	LifespanOnSegmentEnd PieceLifespan = 1
	LifespanOnRundownEnd PieceLifespan = 2
)

// Piece is a playable element (graphic, clip, camera cut) attached to a
// part. Enable terms are stored in their textual grammar - absolute ms,
// "now", or "#<id>.<start|end> ± <offset>" - and parsed at the boundary.
type Piece struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RundownID string  `json:"rundown_id" gorm:"index;not null"`
	PartID    string  `json:"part_id" gorm:"index;not null"`
	Rank      float64 `json:"rank"`
	Name      string  `json:"name"`

	SourceLayerID string `json:"source_layer_id" gorm:"index;not null"`
	OutputLayerID string `json:"output_layer_id" gorm:"index;not null"`

	EnableStart    string `json:"enable_start"`
	EnableEnd      string `json:"enable_end"`
	EnableDuration string `json:"enable_duration"`

	InfiniteMode PieceLifespan `json:"infinite_mode"`
	IsTransition bool          `json:"is_transition"`
	Virtual      bool          `json:"virtual"`

	// ContentObjects is a JSON array of device timeline objects this piece
	// contributes, nested inside the piece group at build time.
	ContentObjects string `json:"content_objects"`
}

// PieceInstance is the per-playback-attempt materialization of a Piece,
// bound to one PartInstance. All instances of one continuing infinite piece
// share InfiniteID; the original instance is the one whose PieceID equals
// its InfiniteID, and its StartedPlayback anchors every continuation.
type PieceInstance struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PieceID        string  `json:"piece_id" gorm:"index;not null"`
	PartInstanceID string  `json:"part_instance_id" gorm:"index;not null"`
	RundownID      string  `json:"rundown_id" gorm:"index;not null"`
	Rank           float64 `json:"rank"`
	Name           string  `json:"name"`

	SourceLayerID string `json:"source_layer_id"`
	OutputLayerID string `json:"output_layer_id"`

	EnableStart    string `json:"enable_start"`
	EnableEnd      string `json:"enable_end"`
	EnableDuration string `json:"enable_duration"`

	InfiniteMode PieceLifespan `json:"infinite_mode"`
	InfiniteID   string        `json:"infinite_id" gorm:"index"`
	IsTransition bool          `json:"is_transition"`
	Virtual      bool          `json:"virtual"`
	Disabled     bool          `json:"disabled"`

	// AdLibSourceID is set when this instance was inserted from an adlib
	// rather than the planned rundown.
	AdLibSourceID string `json:"ad_lib_source_id"`

	ContentObjects string `json:"content_objects"`

	StartedPlayback *int64 `json:"started_playback"`
	// PlayoutDuration is the actual played duration, stamped by playback
	// feedback; UserDuration* are operator overrides.
	PlayoutDuration      *int64 `json:"playout_duration"`
	UserDurationEnd      string `json:"user_duration_end"`
	UserDurationDuration string `json:"user_duration_duration"`
}

// IsInfiniteContinuation reports whether this instance continues an
// infinite started by an earlier part, rather than being the original.
func (p *PieceInstance) IsInfiniteContinuation() bool {
	return p.InfiniteMode != LifespanNormal && p.InfiniteID != "" && p.InfiniteID != p.PieceID
}
