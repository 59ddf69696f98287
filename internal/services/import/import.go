// Package importservice provides show import functionality.
package importservice

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/lucsky/cuid"

	"github.com/bbernstein/lacylights-live/internal/services/export"
	"github.com/bbernstein/lacylights-live/internal/state"
)

// ImportMode determines how to handle the import.
type ImportMode string

const (
	ImportModeMerge   ImportMode = "MERGE"
	ImportModeReplace ImportMode = "REPLACE"
)

// FixtureConflictStrategy determines how to handle fixture id conflicts
// in merge mode.
type FixtureConflictStrategy string

const (
	FixtureConflictSkip    FixtureConflictStrategy = "SKIP"
	FixtureConflictReplace FixtureConflictStrategy = "REPLACE"
	FixtureConflictRename  FixtureConflictStrategy = "RENAME"
)

// ImportStats contains statistics about an import.
type ImportStats struct {
	FixturesCreated        int `json:"fixturesCreated"`
	ScenesCreated          int `json:"scenesCreated"`
	AnimationsCreated      int `json:"animationsCreated"`
	MIDIControllersCreated int `json:"midiControllersCreated"`
	TimelineEntriesCreated int `json:"timelineEntriesCreated"`
	Skipped                int `json:"skipped"`
}

// ImportOptions configures the import behavior.
type ImportOptions struct {
	Mode                    ImportMode
	FixtureConflictStrategy FixtureConflictStrategy
}

// Dispatcher applies actions to the live state.
type Dispatcher interface {
	Dispatch(action state.Action) error
	GetState() state.State
}

// Service handles show import operations.
type Service struct {
	store Dispatcher
}

// NewService creates a new import service.
func NewService(store Dispatcher) *Service {
	return &Service{store: store}
}

// ParseMode converts a query value to an ImportMode. Empty means merge.
func ParseMode(s string) (ImportMode, error) {
	switch ImportMode(s) {
	case "", ImportModeMerge:
		return ImportModeMerge, nil
	case ImportModeReplace:
		return ImportModeReplace, nil
	}
	return "", fmt.Errorf("unknown import mode %q", s)
}

// ImportShow loads an exported show into the store. Records whose id is
// already taken are skipped and reported as warnings. When a dispatch fails
// partway, the records applied so far stay applied and their stats and
// warnings are returned with the error; stats are nil only when nothing
// was applied.
func (s *Service) ImportShow(ctx context.Context, jsonContent string, options ImportOptions) (*ImportStats, []string, error) {
	exported, err := export.ParseExportedShow(jsonContent)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	stats := &ImportStats{}
	var warnings []string

	add := func(what, id string, action state.Action, created *int) error {
		err := s.store.Dispatch(action)
		switch {
		case err == nil:
			*created++
		case errors.Is(err, state.ErrDuplicateID):
			stats.Skipped++
			warnings = append(warnings, fmt.Sprintf("%s %q already exists, skipped", what, id))
		default:
			return fmt.Errorf("import %s %q: %w", what, id, err)
		}
		return nil
	}

	if options.Mode == ImportModeReplace {
		if err := s.clear(); err != nil {
			return stats, warnings, err
		}
		if err := s.store.Dispatch(state.SetBPM{Value: exported.BPM}); err != nil {
			warnings = append(warnings, fmt.Sprintf("bpm %d not applied: %v", exported.BPM, err))
		}
	}

	renamed := map[string]string{}
	current := s.store.GetState()
	for _, f := range exported.Fixtures {
		if options.Mode == ImportModeMerge && hasFixture(current, f.ID) {
			switch options.FixtureConflictStrategy {
			case FixtureConflictReplace:
				if err := s.store.Dispatch(state.RemoveFixture{FixtureID: f.ID}); err != nil {
					return stats, warnings, fmt.Errorf("replace fixture %q: %w", f.ID, err)
				}
			case FixtureConflictRename:
				id := cuid.New()
				renamed[f.ID] = id
				warnings = append(warnings, fmt.Sprintf("fixture %q imported as %q", f.ID, id))
				f.ID = id
			}
		}
		if err := add("fixture", f.ID, state.AddFixture{Fixture: f}, &stats.FixturesCreated); err != nil {
			return stats, warnings, err
		}
	}

	for _, sc := range exported.Scenes {
		if len(renamed) > 0 {
			sc.Fixtures = remap(sc.Fixtures, renamed)
		}
		if err := add("scene", sc.ID, state.AddScene{Scene: sc}, &stats.ScenesCreated); err != nil {
			return stats, warnings, err
		}
	}
	for _, a := range exported.Animations {
		if err := add("animation", a.ID, state.AddAnimation{Animation: a}, &stats.AnimationsCreated); err != nil {
			return stats, warnings, err
		}
	}
	for _, c := range exported.MIDIControllers {
		if err := add("midi controller", c.ID, state.AddMIDI{Controller: c}, &stats.MIDIControllersCreated); err != nil {
			return stats, warnings, err
		}
	}

	timeline := s.store.GetState().Timeline.Scenes
	for _, id := range exported.Timeline {
		if slices.Contains(timeline, id) {
			stats.Skipped++
			continue
		}
		if err := s.store.Dispatch(state.AddSceneToTimeline{SceneID: id}); err != nil {
			return stats, warnings, fmt.Errorf("import timeline scene %q: %w", id, err)
		}
		timeline = append(timeline, id)
		stats.TimelineEntriesCreated++
	}

	return stats, warnings, nil
}

// clear removes every show record. Indexed removals go from the back so
// earlier indices stay valid.
func (s *Service) clear() error {
	current := s.store.GetState()
	var actions []state.Action
	for i := len(current.Scenes) - 1; i >= 0; i-- {
		actions = append(actions, state.RemoveScene{SceneIndex: i})
	}
	for i := len(current.Animations) - 1; i >= 0; i-- {
		actions = append(actions, state.RemoveAnimation{AnimationIndex: i})
	}
	for i := len(current.MIDI.Controllers) - 1; i >= 0; i-- {
		actions = append(actions, state.RemoveMIDI{ControllerIndex: i})
	}
	for _, f := range current.Fixtures {
		actions = append(actions, state.RemoveFixture{FixtureID: f.ID})
	}
	actions = append(actions, state.ResetTimeline{})

	for _, action := range actions {
		if err := s.store.Dispatch(action); err != nil {
			return fmt.Errorf("clear show: %w", err)
		}
	}
	return nil
}

func hasFixture(s state.State, id string) bool {
	return slices.ContainsFunc(s.Fixtures, func(f state.Fixture) bool { return f.ID == id })
}

func remap(ids []string, renamed map[string]string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		if to, ok := renamed[id]; ok {
			id = to
		}
		out[i] = id
	}
	return out
}
