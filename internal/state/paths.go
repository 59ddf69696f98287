package state

// Slice names a top-level part of the state tree by its JSON path.
type Slice string

const (
	SliceBPM         Slice = "bpm"
	SliceLive        Slice = "live"
	SliceUSB         Slice = "usbManager"
	SliceModV        Slice = "modvManager"
	SliceFivetwelve  Slice = "fivetwelveManager"
	SliceConnections Slice = "connectionManager"
	SliceUniverses   Slice = "universeManager"
	SliceScenes      Slice = "sceneManager"
	SliceAnimations  Slice = "animationManager"
	SliceFixtures    Slice = "fixtureManager"
	SliceMIDI        Slice = "midiManager"
	SliceTimeline    Slice = "timelineManager"
)

// AllSlices lists every slice in reduction order.
var AllSlices = []Slice{
	SliceBPM, SliceLive, SliceUSB, SliceModV, SliceFivetwelve, SliceConnections,
	SliceUniverses, SliceScenes, SliceAnimations, SliceFixtures, SliceMIDI, SliceTimeline,
}

// Get returns the slice at the given path.
func (s State) Get(path Slice) (any, bool) {
	switch path {
	case SliceBPM:
		return s.BPM, true
	case SliceLive:
		return s.Live, true
	case SliceUSB:
		return s.USB, true
	case SliceModV:
		return s.ModV, true
	case SliceFivetwelve:
		return s.Fivetwelve, true
	case SliceConnections:
		return s.Connections, true
	case SliceUniverses:
		return s.Universes, true
	case SliceScenes:
		return s.Scenes, true
	case SliceAnimations:
		return s.Animations, true
	case SliceFixtures:
		return s.Fixtures, true
	case SliceMIDI:
		return s.MIDI, true
	case SliceTimeline:
		return s.Timeline, true
	}
	return nil, false
}

// FixtureIndex returns the position of the fixture with the given id, or -1.
func (s State) FixtureIndex(id string) int {
	return indexByID(s.Fixtures, id, func(f Fixture) string { return f.ID })
}

// Fixture returns the fixture with the given id.
func (s State) Fixture(id string) (Fixture, bool) {
	if i := s.FixtureIndex(id); i >= 0 {
		return s.Fixtures[i], true
	}
	return Fixture{}, false
}

// SceneIndex returns the position of the scene with the given id, or -1.
func (s State) SceneIndex(id string) int {
	return indexByID(s.Scenes, id, func(sc Scene) string { return sc.ID })
}

// Scene returns the scene with the given id.
func (s State) Scene(id string) (Scene, bool) {
	if i := s.SceneIndex(id); i >= 0 {
		return s.Scenes[i], true
	}
	return Scene{}, false
}

// Animation returns the animation with the given id.
func (s State) Animation(id string) (Animation, bool) {
	if i := indexByID(s.Animations, id, func(a Animation) string { return a.ID }); i >= 0 {
		return s.Animations[i], true
	}
	return Animation{}, false
}

func indexByID[T any](items []T, id string, idOf func(T) string) int {
	for i, item := range items {
		if idOf(item) == id {
			return i
		}
	}
	return -1
}
