// Package snapshot persists the show part of the application state.
package snapshot

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/bbernstein/lacylights-live/internal/state"
	"github.com/bbernstein/lacylights-live/internal/store"
)

// DefaultDebounce is the delay between the first unsaved change and the save.
const DefaultDebounce = 500 * time.Millisecond

// saveTimeout bounds a single save.
const saveTimeout = 10 * time.Second

// PersistentSlices are the slices written to the database.
var PersistentSlices = []state.Slice{
	state.SliceBPM,
	state.SliceFixtures,
	state.SliceScenes,
	state.SliceAnimations,
	state.SliceMIDI,
	state.SliceTimeline,
}

// transient kinds only touch fields that are not stored, or are emitted at
// frame rate by the animation player.
var transient = map[state.Kind]bool{
	state.KindSetTimelineProgress:     true,
	state.KindPlayTimeline:            true,
	state.KindLearnMIDI:               true,
	state.KindSetAllFixtureProperties: true,
}

func persistent(msg interface{}) bool {
	change, ok := msg.(store.Change)
	return ok && !transient[change.Action.Kind()]
}

// Saver stores a state snapshot.
type Saver interface {
	Save(ctx context.Context, s state.State) error
}

// Service saves the state a short while after it changes. Changes arriving
// while a save is pending are folded into that save.
type Service struct {
	store    *store.Store
	saver    Saver
	debounce time.Duration

	mu       sync.Mutex
	running  bool
	saves    int
	lastSave time.Time
	lastErr  error

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewService creates a snapshot service. A non-positive debounce uses
// DefaultDebounce.
func NewService(st *store.Store, saver Saver, debounce time.Duration) *Service {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Service{
		store:    st,
		saver:    saver,
		debounce: debounce,
	}
}

// Start begins following state changes.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	stopChan := s.stopChan
	s.mu.Unlock()

	sub := s.store.Subscribe(PersistentSlices...)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.store.Unsubscribe(sub)

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-stopChan:
				pending := timer != nil
				if pending {
					timer.Stop()
				}
				for drained := false; !drained; {
					select {
					case msg := <-sub.Channel:
						pending = pending || persistent(msg)
					default:
						drained = true
					}
				}
				if pending {
					s.save()
				}
				return
			case msg, ok := <-sub.Channel:
				if !ok {
					return
				}
				if !persistent(msg) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(s.debounce)
					fire = timer.C
				}
			case <-fire:
				timer, fire = nil, nil
				s.save()
			}
		}
	}()

	log.Printf("💾 Snapshot service started (debounce %v)", s.debounce)
}

// Stop ends the subscription, saving first if a change is pending.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.mu.Unlock()

	s.wg.Wait()
	log.Println("💾 Snapshot service stopped")
}

// SaveNow writes the current state immediately.
func (s *Service) SaveNow(ctx context.Context) error {
	err := s.saver.Save(ctx, s.store.GetState())
	s.mu.Lock()
	s.lastErr = err
	if err == nil {
		s.saves++
		s.lastSave = time.Now()
	}
	s.mu.Unlock()
	return err
}

func (s *Service) save() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := s.SaveNow(ctx); err != nil {
		log.Printf("Warning: failed to save show: %v", err)
	}
}

// IsRunning reports whether the service follows changes.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Saves returns the number of successful saves.
func (s *Service) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// LastSave returns the time of the last successful save.
func (s *Service) LastSave() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSave
}

// LastError returns the error of the last save attempt, if any.
func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
