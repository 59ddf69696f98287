package state

import (
	"fmt"
	"slices"
)

// reduceTimeline handles the timelineManager slice.
func reduceTimeline(prev Timeline, action Action) (Timeline, error) {
	next := prev
	switch a := action.(type) {
	case PlayTimeline:
		next.Playing = a.Playing
	case AddSceneToTimeline:
		next.Scenes = append(slices.Clip(prev.Scenes), a.SceneID)
	case RemoveSceneFromTimeline:
		i := slices.Index(prev.Scenes, a.SceneID)
		if i < 0 {
			return prev, fmt.Errorf("remove scene %q from timeline: %w", a.SceneID, ErrNotFound)
		}
		next.Scenes = slices.Delete(slices.Clone(prev.Scenes), i, i+1)
	case ResetTimeline:
		next.Scenes = []string{}
	case SetTimelineProgress:
		next.Progress = a.Progress
	default:
		return prev, nil
	}
	return next, nil
}
