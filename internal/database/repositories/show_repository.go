package repositories

import (
	"context"
	"fmt"
	"strconv"

	"github.com/lucsky/cuid"
	"gorm.io/gorm"

	"github.com/bbernstein/lacylights-live/internal/database/models"
	"github.com/bbernstein/lacylights-live/internal/state"
)

// ShowRepository stores the persistent part of the application state:
// fixtures, scenes, animations, MIDI controllers, the timeline and the
// tempo. Universes are rendered from fixtures and are not stored.
type ShowRepository struct {
	db *gorm.DB
}

// NewShowRepository creates a new ShowRepository.
func NewShowRepository(db *gorm.DB) *ShowRepository {
	return &ShowRepository{db: db}
}

// Save replaces every stored show row with the contents of s.
func (r *ShowRepository) Save(ctx context.Context, s state.State) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, table := range []any{
			&models.Fixture{},
			&models.Scene{},
			&models.Animation{},
			&models.MIDIController{},
			&models.TimelineEntry{},
		} {
			if err := tx.Where("1 = 1").Delete(table).Error; err != nil {
				return fmt.Errorf("failed to clear %T: %w", table, err)
			}
		}

		fixtures := make([]models.Fixture, len(s.Fixtures))
		for i, f := range s.Fixtures {
			fixtures[i] = models.Fixture{
				ID:         f.ID,
				Position:   i,
				Type:       f.Type,
				Name:       f.Name,
				Universe:   f.Universe,
				Address:    f.Address,
				Properties: f.Properties,
			}
		}
		if err := createAll(tx, fixtures); err != nil {
			return fmt.Errorf("failed to save fixtures: %w", err)
		}

		scenes := make([]models.Scene, len(s.Scenes))
		for i, sc := range s.Scenes {
			scenes[i] = models.Scene{
				ID:         sc.ID,
				Position:   i,
				Name:       sc.Name,
				Fixtures:   sc.Fixtures,
				Animations: sc.Animations,
				Running:    sc.Running,
			}
		}
		if err := createAll(tx, scenes); err != nil {
			return fmt.Errorf("failed to save scenes: %w", err)
		}

		animations := make([]models.Animation, len(s.Animations))
		for i, a := range s.Animations {
			animations[i] = models.Animation{
				ID:            a.ID,
				Position:      i,
				Name:          a.Name,
				DurationBeats: a.DurationBeats,
				Keyframes:     a.Keyframes,
				Running:       a.Running,
			}
		}
		if err := createAll(tx, animations); err != nil {
			return fmt.Errorf("failed to save animations: %w", err)
		}

		controllers := make([]models.MIDIController, len(s.MIDI.Controllers))
		for i, c := range s.MIDI.Controllers {
			controllers[i] = models.MIDIController{
				ID:       c.ID,
				Position: i,
				Name:     c.Name,
				Input:    c.Input,
				Mapping:  c.Mapping,
			}
		}
		if err := createAll(tx, controllers); err != nil {
			return fmt.Errorf("failed to save MIDI controllers: %w", err)
		}

		entries := make([]models.TimelineEntry, len(s.Timeline.Scenes))
		for i, id := range s.Timeline.Scenes {
			entries[i] = models.TimelineEntry{ID: cuid.New(), Position: i, SceneID: id}
		}
		if err := createAll(tx, entries); err != nil {
			return fmt.Errorf("failed to save timeline: %w", err)
		}

		if err := upsertSetting(tx, SettingBPM, strconv.Itoa(s.BPM)); err != nil {
			return err
		}
		return upsertSetting(tx, SettingMIDIEnabled, strconv.FormatBool(s.MIDI.Enabled))
	})
}

// Load rebuilds a state from the stored rows. Slices with no rows keep
// their initial value.
func (r *ShowRepository) Load(ctx context.Context) (state.State, error) {
	s := state.Initial()
	db := r.db.WithContext(ctx)

	var fixtures []models.Fixture
	if err := db.Order("position ASC").Find(&fixtures).Error; err != nil {
		return state.Initial(), fmt.Errorf("failed to load fixtures: %w", err)
	}
	for _, f := range fixtures {
		props := f.Properties
		if props == nil {
			props = state.Properties{}
		}
		s.Fixtures = append(s.Fixtures, state.Fixture{
			ID:         f.ID,
			Type:       f.Type,
			Name:       f.Name,
			Universe:   f.Universe,
			Address:    f.Address,
			Properties: props,
		})
	}

	var scenes []models.Scene
	if err := db.Order("position ASC").Find(&scenes).Error; err != nil {
		return state.Initial(), fmt.Errorf("failed to load scenes: %w", err)
	}
	for _, sc := range scenes {
		s.Scenes = append(s.Scenes, state.Scene{
			ID:         sc.ID,
			Name:       sc.Name,
			Fixtures:   nonNil(sc.Fixtures),
			Animations: nonNil(sc.Animations),
			Running:    sc.Running,
		})
	}

	var animations []models.Animation
	if err := db.Order("position ASC").Find(&animations).Error; err != nil {
		return state.Initial(), fmt.Errorf("failed to load animations: %w", err)
	}
	for _, a := range animations {
		keyframes := a.Keyframes
		if keyframes == nil {
			keyframes = state.Keyframes{}
		}
		s.Animations = append(s.Animations, state.Animation{
			ID:            a.ID,
			Name:          a.Name,
			DurationBeats: a.DurationBeats,
			Keyframes:     keyframes,
			Running:       a.Running,
		})
	}

	var controllers []models.MIDIController
	if err := db.Order("position ASC").Find(&controllers).Error; err != nil {
		return state.Initial(), fmt.Errorf("failed to load MIDI controllers: %w", err)
	}
	for _, c := range controllers {
		mapping := make(map[int]state.MIDIMapping, len(c.Mapping))
		for k, m := range c.Mapping {
			m.Scenes = nonNil(m.Scenes)
			mapping[k] = m
		}
		s.MIDI.Controllers = append(s.MIDI.Controllers, state.MIDIController{
			ID:      c.ID,
			Name:    c.Name,
			Input:   c.Input,
			Mapping: mapping,
		})
	}

	var entries []models.TimelineEntry
	if err := db.Order("position ASC").Find(&entries).Error; err != nil {
		return state.Initial(), fmt.Errorf("failed to load timeline: %w", err)
	}
	for _, e := range entries {
		s.Timeline.Scenes = append(s.Timeline.Scenes, e.SceneID)
	}

	var settings []models.Setting
	if err := db.Where("key IN ?", []string{SettingBPM, SettingMIDIEnabled}).Find(&settings).Error; err != nil {
		return state.Initial(), fmt.Errorf("failed to load settings: %w", err)
	}
	values := settingsByKey(settings)
	if bpm := parseIntSetting(values, SettingBPM, s.BPM); bpm > 0 {
		s.BPM = bpm
	}
	s.MIDI.Enabled = values[SettingMIDIEnabled] == "true"

	return s, nil
}

func createAll[T any](tx *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return tx.Create(&rows).Error
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
