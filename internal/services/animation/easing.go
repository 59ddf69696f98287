// Package animation samples keyframe animations and plays the timeline.
package animation

import (
	"math"
)

// Easing names a curve that maps linear progress to eased progress.
type Easing string

const (
	// EasingLinear provides constant rate of change.
	EasingLinear Easing = "LINEAR"
	// EasingInOutCubic provides smooth acceleration and deceleration.
	EasingInOutCubic Easing = "EASE_IN_OUT_CUBIC"
	// EasingInOutSine provides gentle sine wave easing.
	EasingInOutSine Easing = "EASE_IN_OUT_SINE"
	// EasingOutExponential provides sharp start, smooth end.
	EasingOutExponential Easing = "EASE_OUT_EXPONENTIAL"
	// EasingSCurve provides sigmoid easing.
	EasingSCurve Easing = "S_CURVE"
	// EasingStep holds each keyframe until the next one.
	EasingStep Easing = "STEP"
)

// DefaultEasing is used when no easing is given.
const DefaultEasing = EasingLinear

// Apply maps progress in [0,1] through the curve. Unknown curves are linear.
func (e Easing) Apply(progress float64) float64 {
	progress = math.Max(0, math.Min(1, progress))

	switch e {
	case EasingInOutCubic:
		if progress < 0.5 {
			return 4 * progress * progress * progress
		}
		temp := -2*progress + 2
		return 1 - temp*temp*temp/2

	case EasingInOutSine:
		return -(math.Cos(math.Pi*progress) - 1) / 2

	case EasingOutExponential:
		if progress == 1 {
			return 1
		}
		return 1 - math.Pow(2, -10*progress)

	case EasingSCurve:
		// Logistic curve rescaled so that 0 and 1 map to themselves.
		const k = 10.0
		lo := 1 / (1 + math.Exp(k*0.5))
		hi := 1 / (1 + math.Exp(-k*0.5))
		return (1/(1+math.Exp(-k*(progress-0.5))) - lo) / (hi - lo)

	case EasingStep:
		if progress < 1 {
			return 0
		}
		return 1

	default:
		return progress
	}
}

// Lerp returns the value between start and end at the eased progress.
func (e Easing) Lerp(start, end, progress float64) float64 {
	return start + (end-start)*e.Apply(progress)
}
