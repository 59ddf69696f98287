// Package models contains the database model definitions.
// A show is stored as one row per fixture, scene, animation, MIDI controller
// and timeline entry; Position keeps the order of the in-memory slices.
package models

import (
	"time"

	"github.com/bbernstein/lacylights-live/internal/state"
)

// Fixture represents a patched fixture.
// Table: fixtures
type Fixture struct {
	ID         string           `gorm:"column:id;primaryKey"`
	Position   int              `gorm:"column:position;index"`
	Type       string           `gorm:"column:type"`
	Name       string           `gorm:"column:name"`
	Universe   int              `gorm:"column:universe;default:0"`
	Address    int              `gorm:"column:address;default:0"`
	Properties state.Properties `gorm:"column:properties;type:text;serializer:json"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (Fixture) TableName() string { return "fixtures" }

// Scene represents a lighting scene.
// Table: scenes
type Scene struct {
	ID         string    `gorm:"column:id;primaryKey"`
	Position   int       `gorm:"column:position;index"`
	Name       string    `gorm:"column:name"`
	Fixtures   []string  `gorm:"column:fixtures;type:text;serializer:json"`
	Animations []string  `gorm:"column:animations;type:text;serializer:json"`
	Running    bool      `gorm:"column:is_running;default:false"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Scene) TableName() string { return "scenes" }

// Animation represents a keyframe animation.
// Table: animations
type Animation struct {
	ID            string          `gorm:"column:id;primaryKey"`
	Position      int             `gorm:"column:position;index"`
	Name          string          `gorm:"column:name"`
	DurationBeats int             `gorm:"column:duration_beats;default:0"`
	Keyframes     state.Keyframes `gorm:"column:keyframes;type:text;serializer:json"` // step -> properties
	Running       bool            `gorm:"column:is_running;default:false"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Animation) TableName() string { return "animations" }

// MIDIController represents a MIDI input device and its button mappings.
// Table: midi_controllers
type MIDIController struct {
	ID        string                    `gorm:"column:id;primaryKey"`
	Position  int                       `gorm:"column:position;index"`
	Name      string                    `gorm:"column:name"`
	Input     string                    `gorm:"column:input"`
	Mapping   map[int]state.MIDIMapping `gorm:"column:mapping;type:text;serializer:json"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

func (MIDIController) TableName() string { return "midi_controllers" }

// TimelineEntry is one scene slot on the timeline. The same scene may
// appear more than once, so entries carry their own id.
// Table: timeline_entries
type TimelineEntry struct {
	ID       string `gorm:"column:id;primaryKey"`
	Position int    `gorm:"column:position;index"`
	SceneID  string `gorm:"column:scene_id;index"`
}

func (TimelineEntry) TableName() string { return "timeline_entries" }

// Setting represents a system setting.
// Table: settings
type Setting struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Key       string    `gorm:"column:key;uniqueIndex"`
	Value     string    `gorm:"column:value"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Setting) TableName() string { return "settings" }

// All returns every model, in migration order.
func All() []any {
	return []any{
		&Fixture{},
		&Scene{},
		&Animation{},
		&MIDIController{},
		&TimelineEntry{},
		&Setting{},
	}
}
