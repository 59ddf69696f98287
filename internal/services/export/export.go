// Package export provides show export functionality.
package export

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/bbernstein/lacylights-live/internal/state"
)

// FormatVersion is the version written to exported shows.
const FormatVersion = "1.0"

// ExportedShow represents a full show export.
type ExportedShow struct {
	Version         string                 `json:"version"`
	Metadata        *ExportMetadata        `json:"metadata,omitempty"`
	BPM             int                    `json:"bpm"`
	Fixtures        []state.Fixture        `json:"fixtures"`
	Scenes          []state.Scene          `json:"scenes"`
	Animations      []state.Animation      `json:"animations"`
	MIDIControllers []state.MIDIController `json:"midiControllers"`
	Timeline        []string               `json:"timeline"`
}

// ExportMetadata contains export metadata.
type ExportMetadata struct {
	ExportedAt        string  `json:"exportedAt"`
	LacyLightsVersion string  `json:"lacyLightsVersion"`
	Description       *string `json:"description,omitempty"`
}

// ExportStats contains statistics about an export.
type ExportStats struct {
	FixturesCount        int `json:"fixturesCount"`
	ScenesCount          int `json:"scenesCount"`
	AnimationsCount      int `json:"animationsCount"`
	MIDIControllersCount int `json:"midiControllersCount"`
	TimelineCount        int `json:"timelineCount"`
}

// Options selects what goes into an export.
type Options struct {
	IncludeFixtures   bool
	IncludeScenes     bool
	IncludeAnimations bool
	IncludeMIDI       bool
	IncludeTimeline   bool
	Description       *string
}

// AllOptions exports everything.
func AllOptions() Options {
	return Options{
		IncludeFixtures:   true,
		IncludeScenes:     true,
		IncludeAnimations: true,
		IncludeMIDI:       true,
		IncludeTimeline:   true,
	}
}

// ExportShow copies the show part of s. Running flags are cleared so an
// imported show starts dark.
func ExportShow(s state.State, version string, opts Options) (*ExportedShow, *ExportStats) {
	exported := &ExportedShow{
		Version: FormatVersion,
		Metadata: &ExportMetadata{
			ExportedAt:        time.Now().UTC().Format(time.RFC3339),
			LacyLightsVersion: version,
			Description:       opts.Description,
		},
		BPM:             s.BPM,
		Fixtures:        []state.Fixture{},
		Scenes:          []state.Scene{},
		Animations:      []state.Animation{},
		MIDIControllers: []state.MIDIController{},
		Timeline:        []string{},
	}
	stats := &ExportStats{}

	if opts.IncludeFixtures {
		exported.Fixtures = slices.Clone(s.Fixtures)
		stats.FixturesCount = len(exported.Fixtures)
	}
	if opts.IncludeScenes {
		for _, sc := range s.Scenes {
			sc.Running = false
			exported.Scenes = append(exported.Scenes, sc)
		}
		stats.ScenesCount = len(exported.Scenes)
	}
	if opts.IncludeAnimations {
		for _, a := range s.Animations {
			a.Running = false
			exported.Animations = append(exported.Animations, a)
		}
		stats.AnimationsCount = len(exported.Animations)
	}
	if opts.IncludeMIDI {
		for _, c := range s.MIDI.Controllers {
			mapping := make(map[int]state.MIDIMapping, len(c.Mapping))
			for k, m := range c.Mapping {
				m.Active = false
				mapping[k] = m
			}
			c.Mapping = mapping
			exported.MIDIControllers = append(exported.MIDIControllers, c)
		}
		stats.MIDIControllersCount = len(exported.MIDIControllers)
	}
	if opts.IncludeTimeline {
		exported.Timeline = slices.Clone(s.Timeline.Scenes)
		stats.TimelineCount = len(exported.Timeline)
	}

	return exported, stats
}

// ToJSON converts an exported show to JSON string.
func (e *ExportedShow) ToJSON() (string, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ParseExportedShow parses JSON into an ExportedShow.
func ParseExportedShow(jsonContent string) (*ExportedShow, error) {
	var exported ExportedShow
	if err := json.Unmarshal([]byte(jsonContent), &exported); err != nil {
		return nil, fmt.Errorf("invalid show export: %w", err)
	}
	if exported.Version == "" {
		return nil, fmt.Errorf("invalid show export: missing version")
	}
	return &exported, nil
}

// GetDescription returns the description from the exported data.
func (e *ExportedShow) GetDescription() *string {
	if e.Metadata != nil {
		return e.Metadata.Description
	}
	return nil
}
