package export

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bbernstein/lacylights-live/internal/state"
)

func sampleState() state.State {
	s := state.Initial()
	s.BPM = 128
	s.Fixtures = []state.Fixture{
		{ID: "f1", Type: "Dimmer", Name: "Front", Address: 1, Properties: state.Properties{"dimmer": state.Int(255)}},
		{ID: "f2", Type: "RGB Par", Name: "Back", Address: 2, Properties: state.Properties{"color": state.Tuple(255, 0, 0)}},
	}
	s.Scenes = []state.Scene{
		{ID: "s1", Name: "Wash", Fixtures: []string{"f1", "f2"}, Animations: []string{"a1"}, Running: true},
	}
	s.Animations = []state.Animation{
		{ID: "a1", Name: "Pulse", DurationBeats: 4, Keyframes: state.Keyframes{
			0:   {"dimmer": state.Int(0)},
			0.5: {"dimmer": state.Int(255)},
		}, Running: true},
	}
	s.MIDI.Controllers = []state.MIDIController{
		{ID: "m1", Name: "Pads", Mapping: map[int]state.MIDIMapping{
			36: {Note: 36, Active: true, Scenes: []string{"s1"}},
		}},
	}
	s.Timeline.Scenes = []string{"s1"}
	return s
}

func TestExportShow(t *testing.T) {
	exported, stats := ExportShow(sampleState(), "1.2.3", AllOptions())

	if exported.Version != FormatVersion {
		t.Errorf("Expected version %s, got %s", FormatVersion, exported.Version)
	}
	if exported.Metadata == nil || exported.Metadata.LacyLightsVersion != "1.2.3" {
		t.Errorf("Unexpected metadata: %+v", exported.Metadata)
	}
	if exported.BPM != 128 {
		t.Errorf("Expected BPM 128, got %d", exported.BPM)
	}

	want := ExportStats{
		FixturesCount:        2,
		ScenesCount:          1,
		AnimationsCount:      1,
		MIDIControllersCount: 1,
		TimelineCount:        1,
	}
	if diff := cmp.Diff(want, *stats); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
}

func TestExportShow_ClearsRunningFlags(t *testing.T) {
	s := sampleState()
	exported, _ := ExportShow(s, "test", AllOptions())

	if exported.Scenes[0].Running {
		t.Error("Expected exported scene to be stopped")
	}
	if exported.Animations[0].Running {
		t.Error("Expected exported animation to be stopped")
	}
	if exported.MIDIControllers[0].Mapping[36].Active {
		t.Error("Expected exported mapping to be inactive")
	}

	// The source state is untouched
	if !s.Scenes[0].Running || !s.MIDI.Controllers[0].Mapping[36].Active {
		t.Error("Export must not modify the source state")
	}
}

func TestExportShow_Selective(t *testing.T) {
	exported, stats := ExportShow(sampleState(), "test", Options{IncludeFixtures: true})

	if stats.FixturesCount != 2 {
		t.Errorf("Expected 2 fixtures, got %d", stats.FixturesCount)
	}
	if len(exported.Scenes) != 0 || len(exported.Animations) != 0 || len(exported.Timeline) != 0 {
		t.Error("Expected only fixtures to be exported")
	}
	if exported.Scenes == nil {
		t.Error("Excluded collections should be empty, not nil")
	}
}

func TestExportShow_Description(t *testing.T) {
	desc := "Friday rehearsal"
	opts := AllOptions()
	opts.Description = &desc

	exported, _ := ExportShow(state.Initial(), "test", opts)
	if got := exported.GetDescription(); got == nil || *got != desc {
		t.Errorf("Expected description %q, got %v", desc, got)
	}

	exported.Metadata = nil
	if exported.GetDescription() != nil {
		t.Error("Expected nil description without metadata")
	}
}

func TestToJSON_ParseRoundTrip(t *testing.T) {
	exported, _ := ExportShow(sampleState(), "test", AllOptions())

	jsonStr, err := exported.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}
	for _, key := range []string{`"fixtures"`, `"midiControllers"`, `"timeline"`, `"0.5"`} {
		if !strings.Contains(jsonStr, key) {
			t.Errorf("Expected %s in JSON output", key)
		}
	}

	parsed, err := ParseExportedShow(jsonStr)
	if err != nil {
		t.Fatalf("ParseExportedShow failed: %v", err)
	}
	if diff := cmp.Diff(exported, parsed); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParseExportedShow_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", "{invalid"},
		{"missing version", `{"bpm": 120}`},
		{"bad step", `{"version": "1.0", "animations": [{"id": "a", "keyframes": {"x": {}}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseExportedShow(tt.input); err == nil {
				t.Error("Expected error")
			}
		})
	}
}
