package state

import (
	"encoding/json"
	"fmt"
)

// Kind is the wire name of an action.
type Kind string

const (
	KindSetBPM Kind = "SET_BPM"

	KindSetLive Kind = "SET_LIVE"

	KindSendUniverseToUSB Kind = "SEND_UNIVERSE_TO_USB"

	KindConnectModV  Kind = "CONNECT_MODV"
	KindSetModVColor Kind = "SET_MODV_COLOR"

	KindConnectFivetwelve        Kind = "CONNECT_FIVETWELVE"
	KindSendUniverseToFivetwelve Kind = "SEND_UNIVERSE_TO_FIVETWELVE"

	KindConnectUSB       Kind = "CONNECT_USB"
	KindConnectBluetooth Kind = "CONNECT_BLUETOOTH"

	KindAddUniverse    Kind = "ADD_UNIVERSE"
	KindRemoveUniverse Kind = "REMOVE_UNIVERSE"
	KindSetChannel     Kind = "SET_CHANNEL"
	KindSetChannels    Kind = "SET_CHANNELS"

	KindAddScene                 Kind = "ADD_SCENE"
	KindRunScene                 Kind = "RUN_SCENE"
	KindStopScene                Kind = "STOP_SCENE"
	KindRemoveScene              Kind = "REMOVE_SCENE"
	KindAddAnimationToScene      Kind = "ADD_ANIMATION_TO_SCENE"
	KindRemoveAnimationFromScene Kind = "REMOVE_ANIMATION_FROM_SCENE"
	KindAddFixtureToScene        Kind = "ADD_FIXTURE_TO_SCENE"
	KindRemoveFixtureFromScene   Kind = "REMOVE_FIXTURE_FROM_SCENE"

	KindAddAnimation    Kind = "ADD_ANIMATION"
	KindAddKeyframe     Kind = "ADD_KEYFRAME"
	KindRunAnimation    Kind = "RUN_ANIMATION"
	KindStopAnimation   Kind = "STOP_ANIMATION"
	KindRemoveAnimation Kind = "REMOVE_ANIMATION"

	KindAddFixture                  Kind = "ADD_FIXTURE"
	KindSetFixtureProperties        Kind = "SET_FIXTURE_PROPERTIES"
	KindSetAllFixtureProperties     Kind = "SET_ALL_FIXTURE_PROPERTIES"
	KindResetFixtureProperties      Kind = "RESET_FIXTURE_PROPERTIES"
	KindRemoveFixture               Kind = "REMOVE_FIXTURE"
	KindRemoveFixtureFromEverywhere Kind = "REMOVE_FIXTURE_FROM_EVERYWHERE"

	KindEnableMIDI           Kind = "ENABLE_MIDI"
	KindAddMIDI              Kind = "ADD_MIDI"
	KindAddMIDIMapping       Kind = "ADD_MIDI_MAPPING"
	KindSetMIDIMappingActive Kind = "SET_MIDI_MAPPING_ACTIVE"
	KindAddSceneToMIDI       Kind = "ADD_SCENE_TO_MIDI"
	KindRemoveSceneFromMIDI  Kind = "REMOVE_SCENE_FROM_MIDI"
	KindLearnMIDI            Kind = "LEARN_MIDI"
	KindRemoveMIDI           Kind = "REMOVE_MIDI"

	KindPlayTimeline            Kind = "PLAY_TIMELINE"
	KindAddSceneToTimeline      Kind = "ADD_SCENE_TO_TIMELINE"
	KindRemoveSceneFromTimeline Kind = "REMOVE_SCENE_FROM_TIMELINE"
	KindResetTimeline           Kind = "RESET_TIMELINE"
	KindSetTimelineProgress     Kind = "SET_TIMELINE_PROGRESS"
)

// Action is a request to change the state. The set of actions is closed:
// every implementation lives in this file.
type Action interface {
	Kind() Kind
}

type (
	SetBPM struct {
		Value int `json:"value"`
	}
	SetLive struct {
		Value bool `json:"value"`
	}

	SendUniverseToUSB struct {
		Value int64 `json:"value"`
	}
	ConnectModV struct {
		Connected bool `json:"connected"`
	}
	SetModVColor struct {
		Color []int `json:"color"`
	}
	ConnectFivetwelve struct {
		Connected bool `json:"connected"`
	}
	SendUniverseToFivetwelve struct {
		Value int64 `json:"value"`
	}
	ConnectUSB struct {
		Connected bool `json:"connected"`
	}
	ConnectBluetooth struct {
		Connected bool `json:"connected"`
	}

	AddUniverse struct {
		Universe Universe `json:"universe"`
	}
	RemoveUniverse struct {
		UniverseIndex int `json:"universeIndex"`
	}
	SetChannel struct {
		UniverseIndex int `json:"universeIndex"`
		ChannelIndex  int `json:"channelIndex"`
		Value         int `json:"value"`
	}
	SetChannels struct {
		UniverseIndex int   `json:"universeIndex"`
		Channels      []int `json:"channels"`
	}

	AddScene struct {
		Scene Scene `json:"scene"`
	}
	RunScene struct {
		SceneIndex int `json:"sceneIndex"`
	}
	StopScene struct {
		SceneIndex int `json:"sceneIndex"`
	}
	RemoveScene struct {
		SceneIndex int `json:"sceneIndex"`
	}
	AddAnimationToScene struct {
		SceneIndex  int    `json:"sceneIndex"`
		AnimationID string `json:"animationId"`
	}
	RemoveAnimationFromScene struct {
		SceneIndex     int `json:"sceneIndex"`
		AnimationIndex int `json:"animationIndex"`
	}
	AddFixtureToScene struct {
		SceneIndex int    `json:"sceneIndex"`
		FixtureID  string `json:"fixtureId"`
	}
	RemoveFixtureFromScene struct {
		SceneIndex   int `json:"sceneIndex"`
		FixtureIndex int `json:"fixtureIndex"`
	}

	AddAnimation struct {
		Animation Animation `json:"animation"`
	}
	// AddKeyframe carries the raw text typed by the user; see
	// ParseKeyframeValue for how it is interpreted.
	AddKeyframe struct {
		AnimationIndex   int    `json:"animationIndex"`
		KeyframeStep     Step   `json:"keyframeStep"`
		KeyframeProperty string `json:"keyframeProperty"`
		KeyframeValue    string `json:"keyframeValue"`
	}
	RunAnimation struct {
		AnimationIndex int `json:"animationIndex"`
	}
	StopAnimation struct {
		AnimationIndex int `json:"animationIndex"`
	}
	RemoveAnimation struct {
		AnimationIndex int `json:"animationIndex"`
	}

	AddFixture struct {
		Fixture Fixture `json:"fixture"`
	}
	SetFixtureProperties struct {
		FixtureID  string     `json:"fixtureId"`
		Properties Properties `json:"properties"`
	}
	SetAllFixtureProperties struct {
		FixtureBatch map[string]Properties `json:"fixtureBatch"`
	}
	ResetFixtureProperties struct {
		FixtureID string `json:"fixtureId"`
	}
	RemoveFixture struct {
		FixtureID string `json:"fixtureId"`
	}
	RemoveFixtureFromEverywhere struct {
		FixtureID string `json:"fixtureId"`
	}

	EnableMIDI struct {
		Enabled bool `json:"enabled"`
	}
	AddMIDI struct {
		Controller MIDIController `json:"controller"`
	}
	AddMIDIMapping struct {
		ControllerIndex int              `json:"controllerIndex"`
		MappingIndex    int              `json:"mappingIndex"`
		Mapping         MIDIMappingPatch `json:"mapping"`
	}
	SetMIDIMappingActive struct {
		ControllerIndex int  `json:"controllerIndex"`
		MappingIndex    int  `json:"mappingIndex"`
		Active          bool `json:"active"`
	}
	AddSceneToMIDI struct {
		ControllerIndex int    `json:"controllerIndex"`
		MappingIndex    int    `json:"mappingIndex"`
		SceneID         string `json:"sceneId"`
	}
	RemoveSceneFromMIDI struct {
		ControllerIndex int `json:"controllerIndex"`
		MappingIndex    int `json:"mappingIndex"`
		SceneIndex      int `json:"sceneIndex"`
	}
	// LearnMIDI arms learn mode for MappingIndex; a negative index disarms it.
	LearnMIDI struct {
		MappingIndex int `json:"mappingIndex"`
	}
	RemoveMIDI struct {
		ControllerIndex int `json:"controllerIndex"`
	}

	PlayTimeline struct {
		Playing bool `json:"playing"`
	}
	AddSceneToTimeline struct {
		SceneID string `json:"sceneId"`
	}
	RemoveSceneFromTimeline struct {
		SceneID string `json:"sceneId"`
	}
	ResetTimeline       struct{}
	SetTimelineProgress struct {
		Progress float64 `json:"progress"`
	}

	// Unknown is an action whose type no reducer recognizes.
	Unknown struct {
		Type string `json:"type"`
	}
)

func (SetBPM) Kind() Kind                      { return KindSetBPM }
func (SetLive) Kind() Kind                     { return KindSetLive }
func (SendUniverseToUSB) Kind() Kind           { return KindSendUniverseToUSB }
func (ConnectModV) Kind() Kind                 { return KindConnectModV }
func (SetModVColor) Kind() Kind                { return KindSetModVColor }
func (ConnectFivetwelve) Kind() Kind           { return KindConnectFivetwelve }
func (SendUniverseToFivetwelve) Kind() Kind    { return KindSendUniverseToFivetwelve }
func (ConnectUSB) Kind() Kind                  { return KindConnectUSB }
func (ConnectBluetooth) Kind() Kind            { return KindConnectBluetooth }
func (AddUniverse) Kind() Kind                 { return KindAddUniverse }
func (RemoveUniverse) Kind() Kind              { return KindRemoveUniverse }
func (SetChannel) Kind() Kind                  { return KindSetChannel }
func (SetChannels) Kind() Kind                 { return KindSetChannels }
func (AddScene) Kind() Kind                    { return KindAddScene }
func (RunScene) Kind() Kind                    { return KindRunScene }
func (StopScene) Kind() Kind                   { return KindStopScene }
func (RemoveScene) Kind() Kind                 { return KindRemoveScene }
func (AddAnimationToScene) Kind() Kind         { return KindAddAnimationToScene }
func (RemoveAnimationFromScene) Kind() Kind    { return KindRemoveAnimationFromScene }
func (AddFixtureToScene) Kind() Kind           { return KindAddFixtureToScene }
func (RemoveFixtureFromScene) Kind() Kind      { return KindRemoveFixtureFromScene }
func (AddAnimation) Kind() Kind                { return KindAddAnimation }
func (AddKeyframe) Kind() Kind                 { return KindAddKeyframe }
func (RunAnimation) Kind() Kind                { return KindRunAnimation }
func (StopAnimation) Kind() Kind               { return KindStopAnimation }
func (RemoveAnimation) Kind() Kind             { return KindRemoveAnimation }
func (AddFixture) Kind() Kind                  { return KindAddFixture }
func (SetFixtureProperties) Kind() Kind        { return KindSetFixtureProperties }
func (SetAllFixtureProperties) Kind() Kind     { return KindSetAllFixtureProperties }
func (ResetFixtureProperties) Kind() Kind      { return KindResetFixtureProperties }
func (RemoveFixture) Kind() Kind               { return KindRemoveFixture }
func (RemoveFixtureFromEverywhere) Kind() Kind { return KindRemoveFixtureFromEverywhere }
func (EnableMIDI) Kind() Kind                  { return KindEnableMIDI }
func (AddMIDI) Kind() Kind                     { return KindAddMIDI }
func (AddMIDIMapping) Kind() Kind              { return KindAddMIDIMapping }
func (SetMIDIMappingActive) Kind() Kind        { return KindSetMIDIMappingActive }
func (AddSceneToMIDI) Kind() Kind              { return KindAddSceneToMIDI }
func (RemoveSceneFromMIDI) Kind() Kind         { return KindRemoveSceneFromMIDI }
func (LearnMIDI) Kind() Kind                   { return KindLearnMIDI }
func (RemoveMIDI) Kind() Kind                  { return KindRemoveMIDI }
func (PlayTimeline) Kind() Kind                { return KindPlayTimeline }
func (AddSceneToTimeline) Kind() Kind          { return KindAddSceneToTimeline }
func (RemoveSceneFromTimeline) Kind() Kind     { return KindRemoveSceneFromTimeline }
func (ResetTimeline) Kind() Kind               { return KindResetTimeline }
func (SetTimelineProgress) Kind() Kind         { return KindSetTimelineProgress }
func (u Unknown) Kind() Kind                   { return Kind(u.Type) }

type kindInfo struct {
	decode func([]byte) (Action, error)
	slices []Slice
}

func decodeAs[T Action](data []byte) (Action, error) {
	var a T
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return a, nil
}

func info[T Action](slices ...Slice) kindInfo {
	return kindInfo{decode: decodeAs[T], slices: slices}
}

var kinds = map[Kind]kindInfo{
	KindSetBPM:                   info[SetBPM](SliceBPM),
	KindSetLive:                  info[SetLive](SliceLive),
	KindSendUniverseToUSB:        info[SendUniverseToUSB](SliceUSB),
	KindConnectModV:              info[ConnectModV](SliceModV),
	KindSetModVColor:             info[SetModVColor](SliceModV),
	KindConnectFivetwelve:        info[ConnectFivetwelve](SliceFivetwelve),
	KindSendUniverseToFivetwelve: info[SendUniverseToFivetwelve](SliceFivetwelve),
	KindConnectUSB:               info[ConnectUSB](SliceConnections),
	KindConnectBluetooth:         info[ConnectBluetooth](SliceConnections),

	KindAddUniverse:    info[AddUniverse](SliceUniverses),
	KindRemoveUniverse: info[RemoveUniverse](SliceUniverses),
	KindSetChannel:     info[SetChannel](SliceUniverses),
	KindSetChannels:    info[SetChannels](SliceUniverses),

	KindAddScene:                 info[AddScene](SliceScenes),
	KindRunScene:                 info[RunScene](SliceScenes),
	KindStopScene:                info[StopScene](SliceScenes),
	KindRemoveScene:              info[RemoveScene](SliceScenes),
	KindAddAnimationToScene:      info[AddAnimationToScene](SliceScenes),
	KindRemoveAnimationFromScene: info[RemoveAnimationFromScene](SliceScenes),
	KindAddFixtureToScene:        info[AddFixtureToScene](SliceScenes),
	KindRemoveFixtureFromScene:   info[RemoveFixtureFromScene](SliceScenes),

	KindAddAnimation:    info[AddAnimation](SliceAnimations),
	KindAddKeyframe:     info[AddKeyframe](SliceAnimations),
	KindRunAnimation:    info[RunAnimation](SliceAnimations),
	KindStopAnimation:   info[StopAnimation](SliceAnimations),
	KindRemoveAnimation: info[RemoveAnimation](SliceAnimations),

	KindAddFixture:                  info[AddFixture](SliceFixtures),
	KindSetFixtureProperties:        info[SetFixtureProperties](SliceFixtures),
	KindSetAllFixtureProperties:     info[SetAllFixtureProperties](SliceFixtures),
	KindResetFixtureProperties:      info[ResetFixtureProperties](SliceFixtures),
	KindRemoveFixture:               info[RemoveFixture](SliceFixtures),
	KindRemoveFixtureFromEverywhere: info[RemoveFixtureFromEverywhere](SliceFixtures, SliceScenes),

	KindEnableMIDI:           info[EnableMIDI](SliceMIDI),
	KindAddMIDI:              info[AddMIDI](SliceMIDI),
	KindAddMIDIMapping:       info[AddMIDIMapping](SliceMIDI),
	KindSetMIDIMappingActive: info[SetMIDIMappingActive](SliceMIDI),
	KindAddSceneToMIDI:       info[AddSceneToMIDI](SliceMIDI),
	KindRemoveSceneFromMIDI:  info[RemoveSceneFromMIDI](SliceMIDI),
	KindLearnMIDI:            info[LearnMIDI](SliceMIDI),
	KindRemoveMIDI:           info[RemoveMIDI](SliceMIDI),

	KindPlayTimeline:            info[PlayTimeline](SliceTimeline),
	KindAddSceneToTimeline:      info[AddSceneToTimeline](SliceTimeline),
	KindRemoveSceneFromTimeline: info[RemoveSceneFromTimeline](SliceTimeline),
	KindResetTimeline:           info[ResetTimeline](SliceTimeline),
	KindSetTimelineProgress:     info[SetTimelineProgress](SliceTimeline),
}

// SlicesOf returns the slices an action of the given kind may change.
// Unknown kinds change nothing.
func SlicesOf(k Kind) []Slice {
	return kinds[k].slices
}

// IsKnown reports whether any reducer handles the kind.
func IsKnown(k Kind) bool {
	_, ok := kinds[k]
	return ok
}

// DecodeAction parses a JSON action of the form {"type": KIND, ...payload}.
// Types no reducer handles decode to Unknown.
func DecodeAction(data []byte) (Action, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode action: %w", err)
	}
	if envelope.Type == "" {
		return nil, fmt.Errorf("failed to decode action: missing type")
	}
	k, ok := kinds[Kind(envelope.Type)]
	if !ok {
		return Unknown{Type: envelope.Type}, nil
	}
	action, err := k.decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", envelope.Type, err)
	}
	return action, nil
}

// EncodeAction renders an action in the form accepted by DecodeAction.
func EncodeAction(a Action) ([]byte, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", a.Kind(), err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", a.Kind(), err)
	}
	kind, _ := json.Marshal(string(a.Kind()))
	fields["type"] = kind
	return json.Marshal(fields)
}
