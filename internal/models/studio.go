package models

import "time"

// Studio is one physical installation: a set of devices driven by a single
// playout timeline. Timeline recomputation is serialized per studio.
type Studio struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string `json:"name" gorm:"not null"`

	// BaselinePath points at the YAML file with this studio's pre-built
	// baseline timeline objects (router states, idle graphics, ...).
	BaselinePath string `json:"baseline_path"`
}

// SourceLayer is a logical input category (camera, VT, graphic) pieces are
// placed on.
type SourceLayer struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name string  `json:"name" gorm:"not null"`
	Type string  `json:"type" gorm:"index"` // camera, vt, graphics, audio, transition...
	Rank float64 `json:"rank"`

	IsRemoteInput bool `json:"is_remote_input"`
	IsGuestInput  bool `json:"is_guest_input"`
	IsHidden      bool `json:"is_hidden"`
}

// OutputLayer is a physical output bus (program, preview) a piece is routed
// to.
type OutputLayer struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name  string  `json:"name" gorm:"not null"`
	Rank  float64 `json:"rank"`
	IsPGM bool    `json:"is_pgm"`
}
