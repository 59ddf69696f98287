package snapshot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbernstein/lacylights-live/internal/services/testutil"
	"github.com/bbernstein/lacylights-live/internal/state"
	"github.com/bbernstein/lacylights-live/internal/store"
)

type fakeSaver struct {
	mu     sync.Mutex
	states []state.State
	err    error
}

func (f *fakeSaver) Save(_ context.Context, s state.State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.states = append(f.states, s)
	return nil
}

func (f *fakeSaver) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.states)
}

func (f *fakeSaver) last() state.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[len(f.states)-1]
}

func TestNewService_DefaultDebounce(t *testing.T) {
	svc := NewService(store.New(state.Initial()), &fakeSaver{}, 0)
	assert.Equal(t, DefaultDebounce, svc.debounce)
	assert.False(t, svc.IsRunning())
}

func TestService_CoalescesChanges(t *testing.T) {
	st := store.New(state.Initial())
	saver := &fakeSaver{}
	svc := NewService(st, saver, 50*time.Millisecond)
	svc.Start()
	defer svc.Stop()

	require.NoError(t, st.Dispatch(state.AddFixture{Fixture: testutil.NewFixture("Dimmer")}))
	require.NoError(t, st.Dispatch(state.AddFixture{Fixture: testutil.NewFixture("Dimmer")}))
	require.NoError(t, st.Dispatch(state.SetBPM{Value: 90}))

	require.Eventually(t, func() bool { return saver.count() == 1 }, time.Second, 10*time.Millisecond)
	saved := saver.last()
	assert.Len(t, saved.Fixtures, 2)
	assert.Equal(t, 90, saved.BPM)

	// No further saves without further changes
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, 1, saver.count())
	assert.Equal(t, 1, svc.Saves())
	assert.False(t, svc.LastSave().IsZero())
}

func TestService_IgnoresTransientChanges(t *testing.T) {
	st := store.New(state.Initial())
	saver := &fakeSaver{}
	svc := NewService(st, saver, 20*time.Millisecond)
	svc.Start()
	defer svc.Stop()

	require.NoError(t, st.Dispatch(state.SetTimelineProgress{Progress: 0.5}))
	require.NoError(t, st.Dispatch(state.PlayTimeline{Playing: true}))
	require.NoError(t, st.Dispatch(state.SetLive{Value: true}))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, saver.count())
}

func TestService_StopFlushesPending(t *testing.T) {
	st := store.New(state.Initial())
	saver := &fakeSaver{}
	svc := NewService(st, saver, time.Hour)
	svc.Start()

	require.NoError(t, st.Dispatch(state.AddScene{Scene: state.Scene{ID: "s1"}}))
	svc.Stop()

	require.Equal(t, 1, saver.count())
	assert.Len(t, saver.last().Scenes, 1)
	assert.False(t, svc.IsRunning())
}

func TestService_StopWithoutChanges(t *testing.T) {
	saver := &fakeSaver{}
	svc := NewService(store.New(state.Initial()), saver, 10*time.Millisecond)
	svc.Start()
	svc.Start()
	svc.Stop()
	svc.Stop()
	assert.Equal(t, 0, saver.count())
}

func TestService_SaveError(t *testing.T) {
	saver := &fakeSaver{err: errors.New("disk full")}
	svc := NewService(store.New(state.Initial()), saver, 0)

	err := svc.SaveNow(context.Background())
	require.Error(t, err)
	assert.Equal(t, err, svc.LastError())
	assert.Equal(t, 0, svc.Saves())
}

func TestService_PersistsToDatabase(t *testing.T) {
	testDB, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	st := store.New(state.Initial())
	svc := NewService(st, testDB.ShowRepo, 20*time.Millisecond)
	svc.Start()

	f := testutil.NewFixture("MiniLed")
	require.NoError(t, st.Dispatch(state.AddFixture{Fixture: f}))
	require.NoError(t, st.Dispatch(state.AddScene{Scene: state.Scene{ID: "s1", Name: "Intro"}}))
	require.NoError(t, st.Dispatch(state.AddFixtureToScene{SceneIndex: 0, FixtureID: f.ID}))
	require.NoError(t, st.Dispatch(state.AddSceneToTimeline{SceneID: "s1"}))

	require.Eventually(t, func() bool { return svc.Saves() >= 1 }, time.Second, 10*time.Millisecond)
	svc.Stop()

	loaded, err := testDB.ShowRepo.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded.Fixtures, 1)
	assert.Equal(t, f.ID, loaded.Fixtures[0].ID)
	require.Len(t, loaded.Scenes, 1)
	assert.Equal(t, []string{f.ID}, loaded.Scenes[0].Fixtures)
	assert.Equal(t, []string{"s1"}, loaded.Timeline.Scenes)
}
