package midi

import (
	"fmt"
	"log"
	"slices"
	"sort"
	"strconv"
	"sync"

	"github.com/lucsky/cuid"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/bbernstein/lacylights-live/internal/services/pubsub"
	"github.com/bbernstein/lacylights-live/internal/state"
	"github.com/bbernstein/lacylights-live/internal/store"
)

// Controller applies controller input to the state: in learn mode the next
// press is bound to the mapping being learned, otherwise a press toggles the
// matching mapping and its scenes on the timeline.
type Controller struct {
	store   *store.Store
	decoder Decoder

	// handling serializes Handle so each press sees the previous one's
	// result. Listener callbacks run on driver goroutines.
	handling sync.Mutex

	mu    sync.Mutex
	stops []func()
}

// NewController creates a controller for st.
func NewController(st *store.Store) *Controller {
	return &Controller{store: st}
}

// Handle applies one event from the controller at controllerIndex.
func (c *Controller) Handle(controllerIndex int, ev Event) error {
	c.store.PubSub().Publish(pubsub.TopicMIDIEvent, ev, strconv.Itoa(controllerIndex))

	if !ev.Pressed() {
		return nil
	}

	c.handling.Lock()
	defer c.handling.Unlock()

	s := c.store.GetState()
	if controllerIndex < 0 || controllerIndex >= len(s.MIDI.Controllers) {
		return fmt.Errorf("midi controller %d: %w", controllerIndex, state.ErrNotFound)
	}

	if s.MIDI.Learning >= 0 {
		return c.learn(controllerIndex, s.MIDI.Learning, ev)
	}
	if !s.MIDI.Enabled {
		return nil
	}

	mappings := s.MIDI.Controllers[controllerIndex].Mapping
	indexes := make([]int, 0, len(mappings))
	for i := range mappings {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	for _, i := range indexes {
		m := mappings[i]
		if m.Note != int(ev.Number) || mappingType(m) != ev.Type {
			continue
		}
		return c.toggle(s, controllerIndex, i, m)
	}
	return nil
}

func mappingType(m state.MIDIMapping) string {
	if m.Type == "" {
		return TypeNote
	}
	return m.Type
}

func (c *Controller) learn(controllerIndex, mappingIndex int, ev Event) error {
	note := int(ev.Number)
	typ := ev.Type
	errs := c.store.DispatchAll(
		state.AddMIDIMapping{
			ControllerIndex: controllerIndex,
			MappingIndex:    mappingIndex,
			Mapping:         state.MIDIMappingPatch{Type: &typ, Note: &note},
		},
		state.LearnMIDI{MappingIndex: state.NotLearning},
	)
	if len(errs) > 0 {
		return errs[0]
	}
	log.Printf("🎹 Learned %s for mapping %d", ev, mappingIndex)
	return nil
}

func (c *Controller) toggle(s state.State, controllerIndex, mappingIndex int, m state.MIDIMapping) error {
	active := !m.Active
	actions := []state.Action{state.SetMIDIMappingActive{
		ControllerIndex: controllerIndex,
		MappingIndex:    mappingIndex,
		Active:          active,
	}}

	onTimeline := slices.Clone(s.Timeline.Scenes)
	for _, sceneID := range m.Scenes {
		present := slices.Contains(onTimeline, sceneID)
		switch {
		case active && !present:
			actions = append(actions, state.AddSceneToTimeline{SceneID: sceneID})
			onTimeline = append(onTimeline, sceneID)
		case !active && present:
			actions = append(actions, state.RemoveSceneFromTimeline{SceneID: sceneID})
			onTimeline = slices.DeleteFunc(onTimeline, func(id string) bool { return id == sceneID })
		}
	}

	if errs := c.store.DispatchAll(actions...); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Listen feeds every message from port to Handle for controllerIndex.
func (c *Controller) Listen(controllerIndex int, port drivers.In) error {
	stop, err := midi.ListenTo(port, func(msg midi.Message, timestampms int32) {
		ev := c.decoder.Decode(msg)
		if ev == nil {
			return
		}
		if err := c.Handle(controllerIndex, *ev); err != nil {
			log.Printf("⚠️  MIDI %s: %v", ev, err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to listen to %s: %w", port, err)
	}

	c.mu.Lock()
	c.stops = append(c.stops, stop)
	c.mu.Unlock()
	return nil
}

// Open finds the input port matching substr, registers it as a controller
// unless one with the same input already exists, and starts listening.
func (c *Controller) Open(substr string) (int, error) {
	port, err := FindInPort(substr)
	if err != nil {
		return -1, err
	}

	index := c.controllerIndex(port.String())
	if index < 0 {
		if err := c.store.Dispatch(state.AddMIDI{Controller: state.MIDIController{
			ID:      cuid.New(),
			Name:    port.String(),
			Input:   port.String(),
			Mapping: map[int]state.MIDIMapping{},
		}}); err != nil {
			return -1, err
		}
		index = c.controllerIndex(port.String())
	}

	if err := c.Listen(index, port); err != nil {
		return -1, err
	}
	log.Printf("🎹 Listening to MIDI input %s as controller %d", port, index)
	return index, nil
}

func (c *Controller) controllerIndex(input string) int {
	return slices.IndexFunc(c.store.GetState().MIDI.Controllers, func(mc state.MIDIController) bool {
		return mc.Input == input
	})
}

// Close stops every listener.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, stop := range c.stops {
		stop()
	}
	c.stops = nil
}
