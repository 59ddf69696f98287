package state

import (
	"fmt"
	"slices"
)

// reduceScenes handles the sceneManager slice.
func reduceScenes(prev []Scene, action Action) ([]Scene, error) {
	switch a := action.(type) {
	case AddScene:
		if indexByID(prev, a.Scene.ID, func(s Scene) string { return s.ID }) >= 0 {
			return prev, fmt.Errorf("add scene %q: %w", a.Scene.ID, ErrDuplicateID)
		}
		scene := a.Scene
		scene.Fixtures = cloneIDs(a.Scene.Fixtures)
		scene.Animations = cloneIDs(a.Scene.Animations)
		return append(slices.Clip(prev), scene), nil

	case RunScene:
		return patchScene(prev, a.SceneIndex, "run", func(s *Scene) error {
			s.Running = true
			return nil
		})

	case StopScene:
		return patchScene(prev, a.SceneIndex, "stop", func(s *Scene) error {
			s.Running = false
			return nil
		})

	case RemoveScene:
		if !inRange(prev, a.SceneIndex) {
			return prev, fmt.Errorf("remove scene %d: %w", a.SceneIndex, ErrNotFound)
		}
		return slices.Delete(slices.Clone(prev), a.SceneIndex, a.SceneIndex+1), nil

	case AddAnimationToScene:
		return patchScene(prev, a.SceneIndex, "add animation to", func(s *Scene) error {
			s.Animations = append(slices.Clip(s.Animations), a.AnimationID)
			return nil
		})

	case RemoveAnimationFromScene:
		return patchScene(prev, a.SceneIndex, "remove animation from", func(s *Scene) error {
			if !inRange(s.Animations, a.AnimationIndex) {
				return fmt.Errorf("animation %d: %w", a.AnimationIndex, ErrNotFound)
			}
			s.Animations = slices.Delete(slices.Clone(s.Animations), a.AnimationIndex, a.AnimationIndex+1)
			return nil
		})

	case AddFixtureToScene:
		return patchScene(prev, a.SceneIndex, "add fixture to", func(s *Scene) error {
			s.Fixtures = append(slices.Clip(s.Fixtures), a.FixtureID)
			return nil
		})

	case RemoveFixtureFromScene:
		return patchScene(prev, a.SceneIndex, "remove fixture from", func(s *Scene) error {
			if !inRange(s.Fixtures, a.FixtureIndex) {
				return fmt.Errorf("fixture %d: %w", a.FixtureIndex, ErrNotFound)
			}
			s.Fixtures = slices.Delete(slices.Clone(s.Fixtures), a.FixtureIndex, a.FixtureIndex+1)
			return nil
		})

	case RemoveFixtureFromEverywhere:
		var next []Scene
		for i, scene := range prev {
			if !slices.Contains(scene.Fixtures, a.FixtureID) {
				continue
			}
			if next == nil {
				next = slices.Clone(prev)
			}
			next[i].Fixtures = slices.DeleteFunc(slices.Clone(scene.Fixtures), func(id string) bool {
				return id == a.FixtureID
			})
		}
		if next == nil {
			return prev, nil
		}
		return next, nil
	}
	return prev, nil
}

// patchScene copies the scene list and applies fn to the copy at index.
func patchScene(prev []Scene, index int, verb string, fn func(*Scene) error) ([]Scene, error) {
	if !inRange(prev, index) {
		return prev, fmt.Errorf("%s scene %d: %w", verb, index, ErrNotFound)
	}
	next := slices.Clone(prev)
	if err := fn(&next[index]); err != nil {
		return prev, fmt.Errorf("%s scene %d: %w", verb, index, err)
	}
	return next, nil
}

func inRange[T any](items []T, i int) bool {
	return i >= 0 && i < len(items)
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return slices.Clone(ids)
}
