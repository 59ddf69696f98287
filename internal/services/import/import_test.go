package importservice

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacylights-live/internal/services/export"
	"github.com/bbernstein/lacylights-live/internal/state"
	"github.com/bbernstein/lacylights-live/internal/store"
)

func exportedShow(t *testing.T) string {
	t.Helper()
	s := state.Initial()
	s.BPM = 140
	s.Fixtures = []state.Fixture{
		{ID: "f1", Type: "Dimmer", Name: "Front", Address: 1, Properties: state.Properties{"dimmer": state.Int(255)}},
	}
	s.Scenes = []state.Scene{{ID: "s1", Name: "Wash", Fixtures: []string{"f1"}, Animations: []string{"a1"}}}
	s.Animations = []state.Animation{{ID: "a1", Name: "Pulse", Keyframes: state.Keyframes{1: {"dimmer": state.Int(0)}}}}
	s.MIDI.Controllers = []state.MIDIController{{ID: "m1", Name: "Pads", Mapping: map[int]state.MIDIMapping{}}}
	s.Timeline.Scenes = []string{"s1"}

	exported, _ := export.ExportShow(s, "test", export.AllOptions())
	jsonStr, err := exported.ToJSON()
	require.NoError(t, err)
	return jsonStr
}

func existingShow() state.State {
	s := state.Initial()
	s.BPM = 90
	s.Fixtures = []state.Fixture{
		{ID: "f1", Type: "RGB Par", Name: "Old", Address: 10, Properties: state.Properties{}},
		{ID: "f9", Type: "Dimmer", Name: "Side", Address: 20, Properties: state.Properties{}},
	}
	s.Scenes = []state.Scene{{ID: "s9", Name: "Old scene", Fixtures: []string{"f9"}, Animations: []string{}}}
	s.Timeline.Scenes = []string{"s9"}
	return s
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    ImportMode
		wantErr bool
	}{
		{"", ImportModeMerge, false},
		{"MERGE", ImportModeMerge, false},
		{"REPLACE", ImportModeReplace, false},
		{"CREATE", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestImportShow_IntoEmpty(t *testing.T) {
	st := store.New(state.Initial())
	svc := NewService(st)

	stats, warnings, err := svc.ImportShow(context.Background(), exportedShow(t), ImportOptions{Mode: ImportModeMerge})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, ImportStats{
		FixturesCreated:        1,
		ScenesCreated:          1,
		AnimationsCreated:      1,
		MIDIControllersCreated: 1,
		TimelineEntriesCreated: 1,
	}, *stats)

	s := st.GetState()
	assert.Equal(t, state.DefaultBPM, s.BPM, "merge keeps the current bpm")
	assert.Equal(t, []string{"s1"}, s.Timeline.Scenes)
	assert.Equal(t, state.Int(255), s.Fixtures[0].Properties["dimmer"])
}

func TestImportShow_Replace(t *testing.T) {
	st := store.New(existingShow())
	svc := NewService(st)

	stats, warnings, err := svc.ImportShow(context.Background(), exportedShow(t), ImportOptions{Mode: ImportModeReplace})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 1, stats.FixturesCreated)
	assert.Zero(t, stats.Skipped)

	s := st.GetState()
	assert.Equal(t, 140, s.BPM)
	require.Len(t, s.Fixtures, 1)
	assert.Equal(t, "Front", s.Fixtures[0].Name)
	require.Len(t, s.Scenes, 1)
	assert.Equal(t, "s1", s.Scenes[0].ID)
	assert.Equal(t, []string{"s1"}, s.Timeline.Scenes)
}

func TestImportShow_MergeSkipsDuplicates(t *testing.T) {
	st := store.New(existingShow())
	svc := NewService(st)

	stats, warnings, err := svc.ImportShow(context.Background(), exportedShow(t), ImportOptions{
		Mode:                    ImportModeMerge,
		FixtureConflictStrategy: FixtureConflictSkip,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.FixturesCreated)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], `fixture "f1"`)

	s := st.GetState()
	assert.Equal(t, "Old", s.Fixtures[0].Name)
	assert.Len(t, s.Scenes, 2)
	assert.Equal(t, []string{"s9", "s1"}, s.Timeline.Scenes)
}

func TestImportShow_MergeReplaceFixture(t *testing.T) {
	st := store.New(existingShow())
	svc := NewService(st)

	stats, _, err := svc.ImportShow(context.Background(), exportedShow(t), ImportOptions{
		Mode:                    ImportModeMerge,
		FixtureConflictStrategy: FixtureConflictReplace,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FixturesCreated)

	s := st.GetState()
	require.Len(t, s.Fixtures, 2)
	assert.Equal(t, "f9", s.Fixtures[0].ID)
	assert.Equal(t, "Front", s.Fixtures[1].Name)
}

func TestImportShow_MergeRenameFixture(t *testing.T) {
	st := store.New(existingShow())
	svc := NewService(st)

	stats, warnings, err := svc.ImportShow(context.Background(), exportedShow(t), ImportOptions{
		Mode:                    ImportModeMerge,
		FixtureConflictStrategy: FixtureConflictRename,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.FixturesCreated)
	require.Len(t, warnings, 1)
	assert.True(t, strings.HasPrefix(warnings[0], `fixture "f1" imported as`))

	s := st.GetState()
	require.Len(t, s.Fixtures, 3)
	newID := s.Fixtures[2].ID
	assert.NotEqual(t, "f1", newID)

	// The imported scene points at the renamed fixture
	require.Len(t, s.Scenes, 2)
	assert.Equal(t, []string{newID}, s.Scenes[1].Fixtures)
}

func TestImportShow_TwiceIsIdempotent(t *testing.T) {
	st := store.New(state.Initial())
	svc := NewService(st)
	content := exportedShow(t)

	_, _, err := svc.ImportShow(context.Background(), content, ImportOptions{Mode: ImportModeMerge})
	require.NoError(t, err)
	before := st.GetState()

	stats, warnings, err := svc.ImportShow(context.Background(), content, ImportOptions{Mode: ImportModeMerge})
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Skipped)
	assert.Len(t, warnings, 4)
	assert.Equal(t, before, st.GetState())
}

func TestImportShow_InvalidJSON(t *testing.T) {
	svc := NewService(store.New(state.Initial()))

	_, _, err := svc.ImportShow(context.Background(), "{not json", ImportOptions{})
	assert.Error(t, err)
}

func TestImportShow_CancelledContext(t *testing.T) {
	st := store.New(state.Initial())
	svc := NewService(st)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := svc.ImportShow(ctx, exportedShow(t), ImportOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, st.GetState().Fixtures)
}

// failingDispatcher rejects one kind of action and forwards the rest.
type failingDispatcher struct {
	*store.Store
	kind state.Kind
}

func (d failingDispatcher) Dispatch(action state.Action) error {
	if action.Kind() == d.kind {
		return errors.New("rejected")
	}
	return d.Store.Dispatch(action)
}

func TestImportShow_PartialFailureReportsProgress(t *testing.T) {
	st := store.New(state.Initial())
	svc := NewService(failingDispatcher{Store: st, kind: state.KindAddAnimation})

	stats, _, err := svc.ImportShow(context.Background(), exportedShow(t), ImportOptions{Mode: ImportModeMerge})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `import animation "a1"`)
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.FixturesCreated)
	assert.Equal(t, 1, stats.ScenesCreated)
	assert.Zero(t, stats.AnimationsCreated)

	s := st.GetState()
	assert.Len(t, s.Fixtures, 1)
	assert.Empty(t, s.Animations)
}
