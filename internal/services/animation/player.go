package animation

import (
	"log"
	"math"
	"sync"
	"time"

	"github.com/bbernstein/lacylights-live/internal/state"
	"github.com/bbernstein/lacylights-live/internal/store"
)

// Config holds player configuration.
type Config struct {
	UpdateRateHz int
	BeatsPerBar  int
	Easing       Easing
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() Config {
	return Config{
		UpdateRateHz: 40,
		BeatsPerBar:  4,
		Easing:       DefaultEasing,
	}
}

// Player advances the timeline while it is playing and drives the fixtures
// of every scene on the timeline from that scene's animations.
type Player struct {
	mu sync.Mutex

	store  *store.Store
	config Config

	// beats counts the beats played since playback last started.
	beats    float64
	lastTick time.Time

	stopChan chan struct{}
	running  bool
	wg       sync.WaitGroup
}

// NewPlayer creates a player for st.
func NewPlayer(st *store.Store, cfg Config) *Player {
	defaults := DefaultConfig()
	if cfg.UpdateRateHz <= 0 {
		cfg.UpdateRateHz = defaults.UpdateRateHz
	}
	if cfg.BeatsPerBar <= 0 {
		cfg.BeatsPerBar = defaults.BeatsPerBar
	}
	if cfg.Easing == "" {
		cfg.Easing = defaults.Easing
	}
	return &Player{
		store:    st,
		config:   cfg,
		stopChan: make(chan struct{}),
	}
}

// Start starts the player's update loop.
func (p *Player) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.updateLoop()
	log.Printf("🎬 Timeline player started at %dHz", p.config.UpdateRateHz)
}

// Stop stops the player.
func (p *Player) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
}

// IsRunning returns whether the update loop is active.
func (p *Player) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Player) updateLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Second / time.Duration(p.config.UpdateRateHz))
	defer ticker.Stop()

	for {
		select {
		case <-p.stopChan:
			return
		case now := <-ticker.C:
			p.mu.Lock()
			var elapsed time.Duration
			if !p.lastTick.IsZero() {
				elapsed = now.Sub(p.lastTick)
			}
			p.lastTick = now
			p.mu.Unlock()

			p.Tick(elapsed)
		}
	}
}

// Tick advances playback by elapsed. It does nothing while the timeline is
// stopped.
func (p *Player) Tick(elapsed time.Duration) {
	s := p.store.GetState()
	if !s.Timeline.Playing || s.BPM <= 0 {
		p.mu.Lock()
		p.beats = 0
		p.lastTick = time.Time{}
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	p.beats += elapsed.Minutes() * float64(s.BPM)
	beats := p.beats
	p.mu.Unlock()

	barBeats := float64(p.config.BeatsPerBar)
	progress := wrap(s.Timeline.Progress + elapsed.Minutes()*float64(s.BPM)/barBeats)
	_ = p.store.Dispatch(state.SetTimelineProgress{Progress: progress})

	batch := p.Frame(s, progress, beats)
	if len(batch) > 0 {
		_ = p.store.Dispatch(state.SetAllFixtureProperties{FixtureBatch: batch})
	}
}

// Frame samples the animations of every timeline scene and returns the
// property batch for their fixtures. Animations with a duration loop over
// that many beats; the others loop once per bar.
func (p *Player) Frame(s state.State, barProgress, beats float64) map[string]state.Properties {
	batch := make(map[string]state.Properties)
	for _, sceneID := range s.Timeline.Scenes {
		scene, ok := s.Scene(sceneID)
		if !ok {
			continue
		}
		for _, animID := range scene.Animations {
			anim, ok := s.Animation(animID)
			if !ok || len(anim.Keyframes) == 0 {
				continue
			}
			progress := barProgress
			if anim.DurationBeats > 0 {
				progress = wrap(beats / float64(anim.DurationBeats))
			}
			props := Sample(anim, progress, p.config.Easing)
			for _, fixtureID := range scene.Fixtures {
				batch[fixtureID] = batch[fixtureID].Merge(props)
			}
		}
	}
	return batch
}

// wrap returns x modulo 1 in [0,1).
func wrap(x float64) float64 {
	x = math.Mod(x, 1)
	if x < 0 {
		x++
	}
	return x
}
