// Package store holds the current application state and applies actions to
// it one at a time.
package store

import (
	"log"
	"sync"

	"github.com/bbernstein/lacylights-live/internal/services/pubsub"
	"github.com/bbernstein/lacylights-live/internal/state"
)

// DefaultBufferSize is the channel buffer used by Subscribe.
const DefaultBufferSize = 64

// Change is published on pubsub.TopicStateChanged after every dispatch that
// a reducer recognized.
type Change struct {
	Action state.Action
	State  state.State
	Slices []state.Slice
	Err    error
}

// Reducer computes the next state from the current one.
type Reducer func(state.State, state.Action) (state.State, error)

// Option configures a Store.
type Option func(*Store)

// WithPubSub publishes change notifications on ps instead of a private
// instance.
func WithPubSub(ps *pubsub.PubSub) Option {
	return func(s *Store) { s.pubsub = ps }
}

// WithReducer replaces state.Reduce.
func WithReducer(r Reducer) Option {
	return func(s *Store) { s.reduce = r }
}

// WithLogger sets the logger used for reducer diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store is the single owner of the state tree.
type Store struct {
	mu      sync.Mutex
	current state.State
	reduce  Reducer
	pubsub  *pubsub.PubSub
	logger  *log.Logger
}

// New creates a store holding initial.
func New(initial state.State, opts ...Option) *Store {
	s := &Store{
		current: initial,
		reduce:  state.Reduce,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pubsub == nil {
		s.pubsub = pubsub.New()
	}
	return s
}

// Dispatch applies one action and publishes the new snapshot. The returned
// error carries reducer diagnostics; the new state is in place either way.
func (s *Store) Dispatch(action state.Action) error {
	s.mu.Lock()
	next, err := s.reduce(s.current, action)
	s.current = next
	// Publish under the lock so subscribers observe changes in dispatch order.
	if state.IsKnown(action.Kind()) {
		slices := state.SlicesOf(action.Kind())
		filters := make([]string, len(slices))
		for i, sl := range slices {
			filters[i] = string(sl)
		}
		s.pubsub.Publish(pubsub.TopicStateChanged, Change{Action: action, State: next, Slices: slices, Err: err}, filters...)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Printf("⚠️  %s: %v", action.Kind(), err)
	}
	return err
}

// DispatchAll applies actions in order and returns the diagnostics of each
// that reported one.
func (s *Store) DispatchAll(actions ...state.Action) []error {
	var errs []error
	for _, a := range actions {
		if err := s.Dispatch(a); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// GetState returns the current snapshot. The snapshot must not be modified.
func (s *Store) GetState() state.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Subscribe returns a subscription to changes touching any of the given
// slices, or to every change when none are given. Messages are Change values.
func (s *Store) Subscribe(slices ...state.Slice) *pubsub.Subscriber {
	filters := make([]string, len(slices))
	for i, sl := range slices {
		filters[i] = string(sl)
	}
	return s.pubsub.Subscribe(pubsub.TopicStateChanged, DefaultBufferSize, filters...)
}

// Unsubscribe ends a subscription created by Subscribe.
func (s *Store) Unsubscribe(sub *pubsub.Subscriber) {
	s.pubsub.Unsubscribe(sub)
}

// PubSub returns the notification hub used by the store.
func (s *Store) PubSub() *pubsub.PubSub {
	return s.pubsub
}
