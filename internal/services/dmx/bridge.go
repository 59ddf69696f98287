package dmx

import (
	"log"
	"slices"
	"sync"
	"time"

	"github.com/bbernstein/lacylights-live/internal/fixture"
	"github.com/bbernstein/lacylights-live/internal/state"
	"github.com/bbernstein/lacylights-live/internal/store"
)

// reportInterval bounds how often transmissions are recorded in the
// fivetwelveManager slice.
const reportInterval = time.Second

// Output receives rendered universe frames.
type Output interface {
	SetAllChannels(universe int, values []byte)
	IsEnabled() bool
}

// Bridge keeps DMX output in step with the state: fixture changes are
// rendered into universe channels, and universe changes are copied to the
// output.
type Bridge struct {
	store   *store.Store
	catalog *fixture.Catalog
	output  Output

	mu         sync.Mutex
	lastReport time.Time
	warned     map[string]bool

	// Universe counts seen by the last render and push. Only the bridge
	// loop touches them after Start.
	rendered int
	pushed   int

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewBridge creates a bridge between st and out.
func NewBridge(st *store.Store, catalog *fixture.Catalog, out Output) *Bridge {
	return &Bridge{
		store:    st,
		catalog:  catalog,
		output:   out,
		warned:   make(map[string]bool),
		stopChan: make(chan struct{}),
	}
}

// Start renders the current state once and then follows every change.
func (b *Bridge) Start() {
	sub := b.store.Subscribe(state.SliceFixtures, state.SliceUniverses)

	_ = b.store.Dispatch(state.ConnectFivetwelve{Connected: b.output.IsEnabled()})
	current := b.store.GetState()
	b.renderFixtures(current)
	b.push(b.store.GetState())

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.store.Unsubscribe(sub)
		for {
			select {
			case <-b.stopChan:
				return
			case msg, ok := <-sub.Channel:
				if !ok {
					return
				}
				change, ok := msg.(store.Change)
				if !ok {
					continue
				}
				b.handle(change)
			}
		}
	}()

	log.Printf("🔌 DMX bridge started (%d fixture types)", len(b.catalog.Types()))
}

// Stop ends the bridge loop.
func (b *Bridge) Stop() {
	select {
	case <-b.stopChan:
		return
	default:
		close(b.stopChan)
	}
	b.wg.Wait()
	_ = b.store.Dispatch(state.ConnectFivetwelve{Connected: false})
}

func (b *Bridge) handle(change store.Change) {
	universesChanged := slices.Contains(change.Slices, state.SliceUniverses)
	if slices.Contains(change.Slices, state.SliceFixtures) ||
		(universesChanged && len(change.State.Universes) != b.rendered) {
		b.renderFixtures(change.State)
	}
	if universesChanged {
		b.push(change.State)
	}
}

// renderFixtures dispatches SET_CHANNELS for every universe whose rendered
// frame differs from its channels in s.
func (b *Bridge) renderFixtures(s state.State) {
	b.rendered = len(s.Universes)
	if len(s.Fixtures) == 0 && len(s.Universes) == 0 {
		return
	}
	frames, err := b.catalog.RenderFrames(s.Fixtures, len(s.Universes))
	if err != nil {
		b.warnOnce(err)
	}
	for i, frame := range frames {
		if slices.Equal(frame, s.Universes[i].Channels) {
			continue
		}
		_ = b.store.Dispatch(state.SetChannels{UniverseIndex: i, Channels: frame})
	}
}

// push copies the universe channels of s to the output. Universes removed
// since the last push are blacked out.
func (b *Bridge) push(s state.State) {
	for i, u := range s.Universes {
		values := make([]byte, len(u.Channels))
		for j, v := range u.Channels {
			values[j] = byte(v)
		}
		b.output.SetAllChannels(i, values)
	}
	for i := len(s.Universes); i < b.pushed; i++ {
		b.output.SetAllChannels(i, make([]byte, state.UniverseSize))
	}
	b.pushed = len(s.Universes)

	b.mu.Lock()
	report := time.Since(b.lastReport) >= reportInterval
	if report {
		b.lastReport = time.Now()
	}
	b.mu.Unlock()

	if report && len(s.Universes) > 0 && b.output.IsEnabled() {
		_ = b.store.Dispatch(state.SendUniverseToFivetwelve{Value: time.Now().UnixMilli()})
	}
}

func (b *Bridge) warnOnce(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	msg := err.Error()
	if b.warned[msg] {
		return
	}
	b.warned[msg] = true
	log.Printf("⚠️  DMX render: %v", err)
}
