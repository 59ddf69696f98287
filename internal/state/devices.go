package state

import (
	"fmt"
	"slices"
)

func reduceBPM(prev int, action Action) (int, error) {
	if a, ok := action.(SetBPM); ok {
		if a.Value <= 0 {
			return prev, fmt.Errorf("set bpm %d: %w", a.Value, ErrInvalidValue)
		}
		return a.Value, nil
	}
	return prev, nil
}

func reduceLive(prev bool, action Action) (bool, error) {
	if a, ok := action.(SetLive); ok {
		return a.Value, nil
	}
	return prev, nil
}

func reduceUSB(prev USBManager, action Action) (USBManager, error) {
	if a, ok := action.(SendUniverseToUSB); ok {
		return USBManager{LastTransmission: a.Value}, nil
	}
	return prev, nil
}

func reduceModV(prev ModVManager, action Action) (ModVManager, error) {
	next := prev
	switch a := action.(type) {
	case ConnectModV:
		next.Connected = a.Connected
	case SetModVColor:
		if len(a.Color) != 3 {
			return prev, fmt.Errorf("set modv color %v: %w", a.Color, ErrInvalidValue)
		}
		next.Color = slices.Clone(a.Color)
	default:
		return prev, nil
	}
	return next, nil
}

func reduceFivetwelve(prev FivetwelveManager, action Action) (FivetwelveManager, error) {
	next := prev
	switch a := action.(type) {
	case ConnectFivetwelve:
		next.Connected = a.Connected
	case SendUniverseToFivetwelve:
		next.LastTransmission = a.Value
	default:
		return prev, nil
	}
	return next, nil
}

func reduceConnections(prev Connections, action Action) (Connections, error) {
	next := prev
	switch a := action.(type) {
	case ConnectUSB:
		next.USB = Link{Connected: a.Connected}
	case ConnectBluetooth:
		next.Bluetooth = Link{Connected: a.Connected}
	default:
		return prev, nil
	}
	return next, nil
}
