package state

import "errors"

// Reduce applies one action to s and returns the next state. Every slice
// reducer sees the action; slices that do not handle it are carried over
// as is. The returned error joins the diagnostics of all slices and never
// means the state is unusable: a slice that reports a diagnostic keeps its
// previous value.
func Reduce(s State, action Action) (State, error) {
	var (
		next State
		errs = make([]error, 0, len(AllSlices))
		err  error
	)

	next.BPM, err = reduceBPM(s.BPM, action)
	errs = append(errs, err)
	next.Live, err = reduceLive(s.Live, action)
	errs = append(errs, err)
	next.USB, err = reduceUSB(s.USB, action)
	errs = append(errs, err)
	next.ModV, err = reduceModV(s.ModV, action)
	errs = append(errs, err)
	next.Fivetwelve, err = reduceFivetwelve(s.Fivetwelve, action)
	errs = append(errs, err)
	next.Connections, err = reduceConnections(s.Connections, action)
	errs = append(errs, err)
	next.Universes, err = reduceUniverses(s.Universes, action)
	errs = append(errs, err)
	next.Scenes, err = reduceScenes(s.Scenes, action)
	errs = append(errs, err)
	next.Animations, err = reduceAnimations(s.Animations, action)
	errs = append(errs, err)
	next.Fixtures, err = reduceFixtures(s.Fixtures, action)
	errs = append(errs, err)
	next.MIDI, err = reduceMIDI(s.MIDI, action)
	errs = append(errs, err)
	next.Timeline, err = reduceTimeline(s.Timeline, action)
	errs = append(errs, err)

	return next, errors.Join(errs...)
}
