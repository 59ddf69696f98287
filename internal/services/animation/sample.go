package animation

import (
	"math"
	"sort"

	"github.com/bbernstein/lacylights-live/internal/state"
)

type point struct {
	step  float64
	value state.Value
}

// Sample returns the property values of anim at progress in [0,1]. Each
// property is interpolated between the nearest keyframes that set it before
// and after progress; outside that range it holds the first or last value.
// Tuples interpolate per component.
func Sample(anim state.Animation, progress float64, easing Easing) state.Properties {
	tracks := make(map[string][]point)
	for step, props := range anim.Keyframes {
		for name, v := range props {
			tracks[name] = append(tracks[name], point{step: float64(step), value: v})
		}
	}

	out := make(state.Properties, len(tracks))
	for name, points := range tracks {
		sort.Slice(points, func(i, j int) bool { return points[i].step < points[j].step })
		out[name] = sampleTrack(points, progress, easing)
	}
	return out
}

func sampleTrack(points []point, progress float64, easing Easing) state.Value {
	first, last := points[0], points[len(points)-1]
	if progress <= first.step {
		return first.value
	}
	if progress >= last.step {
		return last.value
	}

	i := sort.Search(len(points), func(i int) bool { return points[i].step > progress })
	a, b := points[i-1], points[i]
	t := (progress - a.step) / (b.step - a.step)

	if !a.value.IsTuple() && !b.value.IsTuple() {
		return state.Int(lerpInt(a.value.Scalar, b.value.Scalar, t, easing))
	}
	n := max(len(a.value.Tuple), len(b.value.Tuple))
	components := make([]int, n)
	for c := range components {
		components[c] = lerpInt(a.value.Component(c), b.value.Component(c), t, easing)
	}
	return state.Tuple(components...)
}

func lerpInt(start, end int, t float64, easing Easing) int {
	return int(math.Round(easing.Lerp(float64(start), float64(end), t)))
}
