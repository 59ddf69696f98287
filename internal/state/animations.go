package state

import (
	"fmt"
	"maps"
	"slices"
)

// reduceAnimations handles the animationManager slice.
func reduceAnimations(prev []Animation, action Action) ([]Animation, error) {
	switch a := action.(type) {
	case AddAnimation:
		if indexByID(prev, a.Animation.ID, func(an Animation) string { return an.ID }) >= 0 {
			return prev, fmt.Errorf("add animation %q: %w", a.Animation.ID, ErrDuplicateID)
		}
		animation := a.Animation
		animation.Keyframes = make(Keyframes, len(a.Animation.Keyframes))
		for step, props := range a.Animation.Keyframes {
			animation.Keyframes[step] = Properties{}.Merge(props)
		}
		return append(slices.Clip(prev), animation), nil

	case AddKeyframe:
		if !inRange(prev, a.AnimationIndex) {
			return prev, fmt.Errorf("add keyframe to animation %d: %w", a.AnimationIndex, ErrNotFound)
		}
		value, err := ParseKeyframeValue(a.KeyframeValue)
		if err != nil {
			return prev, fmt.Errorf("add keyframe %s at step %v to animation %d: %w",
				a.KeyframeProperty, float64(a.KeyframeStep), a.AnimationIndex, err)
		}
		next := slices.Clone(prev)
		keyframes := maps.Clone(prev[a.AnimationIndex].Keyframes)
		if keyframes == nil {
			keyframes = Keyframes{}
		}
		keyframes[a.KeyframeStep] = keyframes[a.KeyframeStep].Merge(Properties{a.KeyframeProperty: value})
		next[a.AnimationIndex].Keyframes = keyframes
		return next, nil

	case RunAnimation:
		return patchAnimation(prev, a.AnimationIndex, "run", true)

	case StopAnimation:
		return patchAnimation(prev, a.AnimationIndex, "stop", false)

	case RemoveAnimation:
		if !inRange(prev, a.AnimationIndex) {
			return prev, fmt.Errorf("remove animation %d: %w", a.AnimationIndex, ErrNotFound)
		}
		return slices.Delete(slices.Clone(prev), a.AnimationIndex, a.AnimationIndex+1), nil
	}
	return prev, nil
}

func patchAnimation(prev []Animation, index int, verb string, running bool) ([]Animation, error) {
	if !inRange(prev, index) {
		return prev, fmt.Errorf("%s animation %d: %w", verb, index, ErrNotFound)
	}
	next := slices.Clone(prev)
	next[index].Running = running
	return next, nil
}
