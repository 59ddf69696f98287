// Package state holds the application state tree of the lighting console and
// the pure reducers that compute the next state from an action.
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
)

// UniverseSize is the number of channels in a DMX512 universe.
const UniverseSize = 512

// NotLearning is the value of MIDIManager.Learning when learn mode is off.
const NotLearning = -1

// DefaultBPM is the tempo of a fresh state.
const DefaultBPM = 130

// Value is a fixture or keyframe property value: either a single integer or
// an integer tuple such as an RGB color.
type Value struct {
	Scalar int
	Tuple  []int
}

// Int returns a scalar value.
func Int(v int) Value {
	return Value{Scalar: v}
}

// Tuple returns a tuple value.
func Tuple(vs ...int) Value {
	return Value{Tuple: slices.Clone(vs)}
}

// RGB returns a three component tuple value.
func RGB(r, g, b int) Value {
	return Tuple(r, g, b)
}

// IsTuple reports whether the value holds a tuple.
func (v Value) IsTuple() bool {
	return v.Tuple != nil
}

// Component returns the i-th tuple component. Scalars answer their value
// for every component so a dimmer can drive an RGB channel group.
func (v Value) Component(i int) int {
	if !v.IsTuple() {
		return v.Scalar
	}
	if i < 0 || i >= len(v.Tuple) {
		return 0
	}
	return v.Tuple[i]
}

// Equal reports whether two values hold the same scalar or tuple.
func (v Value) Equal(o Value) bool {
	if v.IsTuple() != o.IsTuple() {
		return false
	}
	if v.IsTuple() {
		return slices.Equal(v.Tuple, o.Tuple)
	}
	return v.Scalar == o.Scalar
}

func (v Value) clone() Value {
	if v.Tuple != nil {
		v.Tuple = slices.Clone(v.Tuple)
	}
	return v
}

func (v Value) String() string {
	if v.IsTuple() {
		return fmt.Sprint(v.Tuple)
	}
	return strconv.Itoa(v.Scalar)
}

// MarshalJSON encodes scalars as numbers and tuples as arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsTuple() {
		return json.Marshal(v.Tuple)
	}
	return json.Marshal(v.Scalar)
}

// UnmarshalJSON accepts a number or an array of numbers.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var tuple []int
		if err := json.Unmarshal(data, &tuple); err != nil {
			return fmt.Errorf("invalid tuple value: %w", err)
		}
		if tuple == nil {
			tuple = []int{}
		}
		*v = Value{Tuple: tuple}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid scalar value: %w", err)
	}
	if f < math.MinInt32 || f > math.MaxInt32 {
		return fmt.Errorf("scalar value %v: %w", f, ErrInvalidValue)
	}
	*v = Value{Scalar: int(f)}
	return nil
}

// Properties maps a property name (dimmer, color, strobe...) to its value.
type Properties map[string]Value

// Merge returns a new map holding p overlaid with patch. Keys missing from
// patch keep their value from p.
func (p Properties) Merge(patch Properties) Properties {
	out := make(Properties, len(p)+len(patch))
	maps.Copy(out, p)
	for k, v := range patch {
		out[k] = v.clone()
	}
	return out
}

// Step is the position of a keyframe within an animation, from 0 to 1.
type Step float64

// MarshalText lets steps act as JSON object keys.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(s), 'f', -1, 64)), nil
}

// UnmarshalText parses a step key.
func (s *Step) UnmarshalText(text []byte) error {
	f, err := strconv.ParseFloat(string(text), 64)
	if err != nil {
		return fmt.Errorf("invalid keyframe step %q: %w", text, err)
	}
	*s = Step(f)
	return nil
}

// UnmarshalJSON accepts a step given as a number or a string.
func (s *Step) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		return s.UnmarshalText([]byte(str))
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid keyframe step: %w", err)
	}
	*s = Step(f)
	return nil
}

// Keyframes maps a step to the property values reached at that step.
type Keyframes map[Step]Properties

// Steps returns the keyframe steps in ascending order.
func (k Keyframes) Steps() []Step {
	steps := make([]Step, 0, len(k))
	for s := range k {
		steps = append(steps, s)
	}
	slices.Sort(steps)
	return steps
}

// Fixture is a patched lighting device.
type Fixture struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Name       string     `json:"name"`
	Universe   int        `json:"universe"`
	Address    int        `json:"address"`
	Properties Properties `json:"properties"`
}

// Scene groups fixtures and the animations that drive them.
type Scene struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Fixtures   []string `json:"fixtures"`
	Animations []string `json:"animations"`
	Running    bool     `json:"isRunning"`
}

// Animation is a set of keyframes played over DurationBeats beats.
type Animation struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	DurationBeats int       `json:"duration,omitempty"`
	Keyframes     Keyframes `json:"keyframes"`
	Running       bool      `json:"isRunning"`
}

// Universe is one DMX512 channel set.
type Universe struct {
	ID       string `json:"id,omitempty"`
	Channels []int  `json:"channels"`
}

// MIDIMapping binds a controller button to a set of scenes.
type MIDIMapping struct {
	Type   string   `json:"type,omitempty"`
	Note   int      `json:"note"`
	Label  string   `json:"label,omitempty"`
	Active bool     `json:"active"`
	Scenes []string `json:"scenes"`
}

// MIDIMappingPatch is a partial MIDIMapping; nil fields are left untouched.
type MIDIMappingPatch struct {
	Type   *string  `json:"type,omitempty"`
	Note   *int     `json:"note,omitempty"`
	Label  *string  `json:"label,omitempty"`
	Active *bool    `json:"active,omitempty"`
	Scenes []string `json:"scenes,omitempty"`
}

func (m MIDIMapping) apply(p MIDIMappingPatch) MIDIMapping {
	if p.Type != nil {
		m.Type = *p.Type
	}
	if p.Note != nil {
		m.Note = *p.Note
	}
	if p.Label != nil {
		m.Label = *p.Label
	}
	if p.Active != nil {
		m.Active = *p.Active
	}
	if p.Scenes != nil {
		m.Scenes = slices.Clone(p.Scenes)
	}
	if m.Scenes == nil {
		m.Scenes = []string{}
	}
	return m
}

// MIDIController is a connected MIDI input device and its mappings.
type MIDIController struct {
	ID      string              `json:"id"`
	Name    string              `json:"name"`
	Input   string              `json:"input,omitempty"`
	Mapping map[int]MIDIMapping `json:"mapping"`
}

// MIDIManager is the midiManager slice.
type MIDIManager struct {
	Controllers []MIDIController `json:"controllers"`
	Enabled     bool             `json:"enabled"`
	Learning    int              `json:"learning"`
}

// Timeline is the ordered list of scenes being played.
type Timeline struct {
	Scenes   []string `json:"scenes"`
	Playing  bool     `json:"playing"`
	Progress float64  `json:"progress"`
}

// Link is the status of a device connection.
type Link struct {
	Connected bool `json:"connected"`
}

// Connections tracks the USB and Bluetooth DMX links.
type Connections struct {
	USB       Link `json:"usb"`
	Bluetooth Link `json:"bluetooth"`
}

// USBManager tracks transmissions to the USB DMX interface.
type USBManager struct {
	LastTransmission int64 `json:"lastTransmission"`
}

// ModVManager tracks the modV visual synthesizer link.
type ModVManager struct {
	Color     []int `json:"color"`
	Connected bool  `json:"connected"`
}

// FivetwelveManager tracks the fivetwelve DMX bridge.
type FivetwelveManager struct {
	Connected        bool  `json:"connected"`
	LastTransmission int64 `json:"lastTransmission"`
}

// State is the whole application state. A State is never modified after it
// has been returned by Reduce; callers must treat it as read-only.
type State struct {
	BPM         int               `json:"bpm"`
	Live        bool              `json:"live"`
	USB         USBManager        `json:"usbManager"`
	ModV        ModVManager       `json:"modvManager"`
	Fivetwelve  FivetwelveManager `json:"fivetwelveManager"`
	Connections Connections       `json:"connectionManager"`
	Universes   []Universe        `json:"universeManager"`
	Scenes      []Scene           `json:"sceneManager"`
	Animations  []Animation       `json:"animationManager"`
	Fixtures    []Fixture         `json:"fixtureManager"`
	MIDI        MIDIManager       `json:"midiManager"`
	Timeline    Timeline          `json:"timelineManager"`
}

// Initial returns the state of a freshly started console.
func Initial() State {
	return State{
		BPM:        DefaultBPM,
		ModV:       ModVManager{Color: []int{0, 0, 0}},
		Universes:  []Universe{},
		Scenes:     []Scene{},
		Animations: []Animation{},
		Fixtures:   []Fixture{},
		MIDI: MIDIManager{
			Controllers: []MIDIController{},
			Learning:    NotLearning,
		},
		Timeline: Timeline{Scenes: []string{}},
	}
}

// NewUniverse returns a universe with all channels at zero.
func NewUniverse(id string) Universe {
	return Universe{ID: id, Channels: make([]int, UniverseSize)}
}
