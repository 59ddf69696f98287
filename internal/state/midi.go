package state

import (
	"fmt"
	"maps"
	"slices"
)

// reduceMIDI handles the midiManager slice.
func reduceMIDI(prev MIDIManager, action Action) (MIDIManager, error) {
	switch a := action.(type) {
	case EnableMIDI:
		next := prev
		next.Enabled = a.Enabled
		return next, nil

	case AddMIDI:
		if indexByID(prev.Controllers, a.Controller.ID, func(c MIDIController) string { return c.ID }) >= 0 {
			return prev, fmt.Errorf("add midi controller %q: %w", a.Controller.ID, ErrDuplicateID)
		}
		controller := a.Controller
		controller.Mapping = maps.Clone(a.Controller.Mapping)
		if controller.Mapping == nil {
			controller.Mapping = map[int]MIDIMapping{}
		}
		next := prev
		next.Controllers = append(slices.Clip(prev.Controllers), controller)
		return next, nil

	case AddMIDIMapping:
		return patchMapping(prev, a.ControllerIndex, a.MappingIndex, true, func(m MIDIMapping) (MIDIMapping, error) {
			return m.apply(a.Mapping), nil
		})

	case SetMIDIMappingActive:
		return patchMapping(prev, a.ControllerIndex, a.MappingIndex, false, func(m MIDIMapping) (MIDIMapping, error) {
			m.Active = a.Active
			return m, nil
		})

	case AddSceneToMIDI:
		return patchMapping(prev, a.ControllerIndex, a.MappingIndex, false, func(m MIDIMapping) (MIDIMapping, error) {
			m.Scenes = append(slices.Clip(m.Scenes), a.SceneID)
			return m, nil
		})

	case RemoveSceneFromMIDI:
		return patchMapping(prev, a.ControllerIndex, a.MappingIndex, false, func(m MIDIMapping) (MIDIMapping, error) {
			if !inRange(m.Scenes, a.SceneIndex) {
				return m, fmt.Errorf("scene %d: %w", a.SceneIndex, ErrNotFound)
			}
			m.Scenes = slices.Delete(slices.Clone(m.Scenes), a.SceneIndex, a.SceneIndex+1)
			return m, nil
		})

	case LearnMIDI:
		next := prev
		next.Learning = max(a.MappingIndex, NotLearning)
		return next, nil

	case RemoveMIDI:
		if !inRange(prev.Controllers, a.ControllerIndex) {
			return prev, fmt.Errorf("remove midi controller %d: %w", a.ControllerIndex, ErrNotFound)
		}
		next := prev
		next.Controllers = slices.Delete(slices.Clone(prev.Controllers), a.ControllerIndex, a.ControllerIndex+1)
		return next, nil
	}
	return prev, nil
}

// patchMapping copies the controller list and the addressed mapping table,
// then stores fn's result at mappingIndex. When create is false the mapping
// must already exist.
func patchMapping(prev MIDIManager, controllerIndex, mappingIndex int, create bool, fn func(MIDIMapping) (MIDIMapping, error)) (MIDIManager, error) {
	if !inRange(prev.Controllers, controllerIndex) {
		return prev, fmt.Errorf("midi controller %d: %w", controllerIndex, ErrNotFound)
	}
	controller := prev.Controllers[controllerIndex]
	old, ok := controller.Mapping[mappingIndex]
	if !ok && !create {
		return prev, fmt.Errorf("midi mapping %d of controller %d: %w", mappingIndex, controllerIndex, ErrNotFound)
	}
	updated, err := fn(old)
	if err != nil {
		return prev, fmt.Errorf("midi mapping %d of controller %d: %w", mappingIndex, controllerIndex, err)
	}

	mapping := maps.Clone(controller.Mapping)
	if mapping == nil {
		mapping = map[int]MIDIMapping{}
	}
	mapping[mappingIndex] = updated
	controller.Mapping = mapping

	next := prev
	next.Controllers = slices.Clone(prev.Controllers)
	next.Controllers[controllerIndex] = controller
	return next, nil
}
