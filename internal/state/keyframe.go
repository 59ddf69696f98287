package state

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseKeyframeValue converts the text entered for a keyframe into a Value.
// Numeric text becomes a scalar holding its leading integer ("7.9" is 7,
// "1e3" is 1). Comma separated text becomes a tuple of each segment's
// leading integer ("255,0,128", "1.5,2" is [1,2]). Anything else is rejected
// with ErrUnhandledKeyframeValue.
func ParseKeyframeValue(raw string) (Value, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Value{}, fmt.Errorf("%w: empty value", ErrUnhandledKeyframeValue)
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		n, err := leadingInt(s)
		if err != nil {
			return Value{}, fmt.Errorf("%w: %q %v", ErrUnhandledKeyframeValue, raw, err)
		}
		return Int(n), nil
	}

	if strings.Contains(s, ",") {
		parts := strings.Split(s, ",")
		tuple := make([]int, len(parts))
		for i, part := range parts {
			n, err := leadingInt(strings.TrimSpace(part))
			if err != nil {
				return Value{}, fmt.Errorf("%w: %q component %q %v", ErrUnhandledKeyframeValue, raw, part, err)
			}
			tuple[i] = n
		}
		return Value{Tuple: tuple}, nil
	}

	return Value{}, fmt.Errorf("%w: %q", ErrUnhandledKeyframeValue, raw)
}

// leadingInt reads an optionally signed run of decimal digits from the
// start of s and ignores the rest.
func leadingInt(s string) (int, error) {
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, fmt.Errorf("has no leading integer")
	}
	n, err := strconv.ParseInt(s[:end], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("is out of range")
	}
	return int(n), nil
}
