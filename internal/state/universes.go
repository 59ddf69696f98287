package state

import (
	"fmt"
	"slices"
)

// reduceUniverses handles the universeManager slice.
func reduceUniverses(prev []Universe, action Action) ([]Universe, error) {
	switch a := action.(type) {
	case AddUniverse:
		if a.Universe.ID != "" && indexByID(prev, a.Universe.ID, func(u Universe) string { return u.ID }) >= 0 {
			return prev, fmt.Errorf("add universe %q: %w", a.Universe.ID, ErrDuplicateID)
		}
		universe := Universe{ID: a.Universe.ID, Channels: normalizeChannels(a.Universe.Channels)}
		return append(slices.Clip(prev), universe), nil

	case RemoveUniverse:
		if !inRange(prev, a.UniverseIndex) {
			return prev, fmt.Errorf("remove universe %d: %w", a.UniverseIndex, ErrNotFound)
		}
		return slices.Delete(slices.Clone(prev), a.UniverseIndex, a.UniverseIndex+1), nil

	case SetChannel:
		if !inRange(prev, a.UniverseIndex) {
			return prev, fmt.Errorf("set channel in universe %d: %w", a.UniverseIndex, ErrNotFound)
		}
		channels := prev[a.UniverseIndex].Channels
		if !inRange(channels, a.ChannelIndex) {
			return prev, fmt.Errorf("set channel %d in universe %d: %w", a.ChannelIndex, a.UniverseIndex, ErrNotFound)
		}
		value := clampChannel(a.Value)
		if channels[a.ChannelIndex] == value {
			return prev, nil
		}
		next := slices.Clone(prev)
		next[a.UniverseIndex].Channels = slices.Clone(channels)
		next[a.UniverseIndex].Channels[a.ChannelIndex] = value
		return next, nil

	case SetChannels:
		if !inRange(prev, a.UniverseIndex) {
			return prev, fmt.Errorf("set channels in universe %d: %w", a.UniverseIndex, ErrNotFound)
		}
		channels := normalizeChannels(a.Channels)
		if slices.Equal(prev[a.UniverseIndex].Channels, channels) {
			return prev, nil
		}
		next := slices.Clone(prev)
		next[a.UniverseIndex].Channels = channels
		return next, nil
	}
	return prev, nil
}

// normalizeChannels returns a fresh UniverseSize long copy of channels with
// every value clamped to the DMX range. Missing channels are zero.
func normalizeChannels(channels []int) []int {
	out := make([]int, UniverseSize)
	for i := 0; i < UniverseSize && i < len(channels); i++ {
		out[i] = clampChannel(channels[i])
	}
	return out
}

func clampChannel(v int) int {
	return min(max(v, 0), 255)
}
