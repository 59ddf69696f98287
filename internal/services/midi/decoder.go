// Package midi turns MIDI controller input into state actions.
package midi

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// Event types, as stored in state.MIDIMapping.Type.
const (
	TypeNote          = "note"
	TypeControlChange = "cc"
)

// Event is a decoded controller input.
type Event struct {
	Type    string `json:"type"`
	Channel uint8  `json:"channel"`
	Number  uint8  `json:"number"`
	Value   uint8  `json:"value"`
}

// Pressed reports whether the event is a key or button going down.
func (e Event) Pressed() bool {
	return e.Value > 0
}

func (e Event) String() string {
	if e.Type == TypeControlChange {
		return fmt.Sprintf("CC %d = %d (ch %d)", e.Number, e.Value, e.Channel)
	}
	action := "released"
	if e.Pressed() {
		action = "pressed"
	}
	return fmt.Sprintf("Note %d %s (ch %d)", e.Number, action, e.Channel)
}

// Decoder converts raw MIDI messages to events.
type Decoder struct{}

// Decode returns nil for messages other than note on/off and control change.
func (Decoder) Decode(msg midi.Message) *Event {
	switch {
	case msg.Is(midi.NoteOnMsg):
		var channel, key, velocity uint8
		msg.GetNoteOn(&channel, &key, &velocity)
		return &Event{Type: TypeNote, Channel: channel, Number: key, Value: velocity}

	case msg.Is(midi.NoteOffMsg):
		var channel, key, velocity uint8
		msg.GetNoteOff(&channel, &key, &velocity)
		return &Event{Type: TypeNote, Channel: channel, Number: key}

	case msg.Is(midi.ControlChangeMsg):
		var channel, controller, value uint8
		msg.GetControlChange(&channel, &controller, &value)
		return &Event{Type: TypeControlChange, Channel: channel, Number: controller, Value: value}
	}
	return nil
}

// FindInPort returns the first input port whose name contains substr,
// ignoring case. An empty substr matches the first port.
func FindInPort(substr string) (drivers.In, error) {
	lower := strings.ToLower(substr)
	for _, port := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(port.String()), lower) {
			return port, nil
		}
	}
	return nil, fmt.Errorf("no MIDI input port matching %q", substr)
}
