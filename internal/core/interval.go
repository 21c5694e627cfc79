// Package core holds the shared data model: intervals, datapoints, and
// detection results used across the loader, detectors, store, and
// orchestrator packages.
package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Interval is a strictly positive span of seconds on the metric grid.
type Interval struct {
	seconds int64
}

var intervalLiteral = regexp.MustCompile(`(?i)^([1-9][0-9]*)(s|sec|m|min|h|hour|d|day)s?$`)

// ParseInterval accepts either a positive integer number of seconds or a
// literal like "10min", "1h", "7days" (case-insensitive).
func ParseInterval(raw interface{}) (Interval, error) {
	switch v := raw.(type) {
	case int:
		return NewInterval(int64(v))
	case int64:
		return NewInterval(v)
	case string:
		return parseIntervalString(v)
	default:
		return Interval{}, fmt.Errorf("interval: unsupported type %T", raw)
	}
}

// NewInterval validates a raw seconds count.
func NewInterval(seconds int64) (Interval, error) {
	if seconds <= 0 {
		return Interval{}, fmt.Errorf("interval: seconds must be positive, got %d", seconds)
	}
	return Interval{seconds: seconds}, nil
}

func parseIntervalString(raw string) (Interval, error) {
	m := intervalLiteral.FindStringSubmatch(raw)
	if m == nil {
		return Interval{}, fmt.Errorf("interval: invalid interval format %q", raw)
	}

	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Interval{}, fmt.Errorf("interval: invalid interval format %q", raw)
	}

	unit := strings.ToLower(m[2])
	var mult int64
	switch unit {
	case "s", "sec":
		mult = 1
	case "m", "min":
		mult = 60
	case "h", "hour":
		mult = 3600
	case "d", "day":
		mult = 86400
	default:
		return Interval{}, fmt.Errorf("interval: unknown time unit %q", unit)
	}

	return NewInterval(n * mult)
}

// Seconds returns the interval length in seconds.
func (i Interval) Seconds() int64 { return i.seconds }

// Equal reports whether two intervals have the same length.
func (i Interval) Equal(other Interval) bool { return i.seconds == other.seconds }

// String renders the shortest matching unit form, falling back to raw
// seconds when not evenly divisible.
func (i Interval) String() string {
	s := i.seconds
	switch {
	case s%86400 == 0:
		return fmt.Sprintf("%dd", s/86400)
	case s%3600 == 0:
		return fmt.Sprintf("%dh", s/3600)
	case s%60 == 0:
		return fmt.Sprintf("%dmin", s/60)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
