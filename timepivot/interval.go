package timepivot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// IntervalUnit is the unit component of a parsed interval.
type IntervalUnit int

const (
	Minute IntervalUnit = iota
	Hour
	Day
)

// String returns the SQL spelling of the unit (MINUTE, HOUR, DAY).
func (u IntervalUnit) String() string {
	switch u {
	case Minute:
		return "MINUTE"
	case Hour:
		return "HOUR"
	case Day:
		return "DAY"
	}
	return fmt.Sprintf("IntervalUnit(%d)", int(u))
}

// Interval is a parsed (value, unit) pair, e.g. "10d" -> {10, Day}.
// Intervals are fixed-length: a day is always 24 hours, with no calendar arithmetic.
type Interval struct {
	Value int
	Unit  IntervalUnit
}

// Duration returns the fixed-length duration of the interval.
func (iv Interval) Duration() time.Duration {
	switch iv.Unit {
	case Minute:
		return time.Duration(iv.Value) * time.Minute
	case Hour:
		return time.Duration(iv.Value) * time.Hour
	default:
		return time.Duration(iv.Value) * 24 * time.Hour
	}
}

// Seconds returns the interval length in whole seconds.
func (iv Interval) Seconds() int64 {
	return int64(iv.Duration() / time.Second)
}

func (iv Interval) String() string {
	return fmt.Sprintf("%d %s", iv.Value, iv.Unit)
}

// Accepts an optional integer (defaults to 1) followed by a unit token.
var intervalPattern = regexp.MustCompile(`(?i)^(?:(\d+)\s*)?(m|min|minute|minutes|h|hour|hours|d|day|days)$`)

// ParseInterval parses an interval expression like "5m", "10min", "4h", "2d" or a bare
// unit like "d" (value defaults to 1) into an Interval. Matching is case-insensitive and
// surrounding whitespace is ignored. Any text that does not match the grammar, including
// unsupported units such as weeks, fails with ErrInvalidFormat.
func ParseInterval(s string) (Interval, error) {
	trimmed := strings.TrimSpace(s)
	match := intervalPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	value := 1
	if match[1] != "" {
		parsed, err := strconv.Atoi(match[1])
		if err != nil {
			return Interval{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
		}
		value = parsed
	}
	if value < 1 {
		return Interval{}, fmt.Errorf("%w: interval value must be at least 1, got %q", ErrInvalidFormat, s)
	}
	switch strings.ToLower(match[2])[0] {
	case 'm':
		return Interval{Value: value, Unit: Minute}, nil
	case 'h':
		return Interval{Value: value, Unit: Hour}, nil
	default:
		return Interval{Value: value, Unit: Day}, nil
	}
}

// parseIntervalSpec accepts the dynamically typed interval forms the aggregation entry
// points take: a string interval expression or an int meaning "days back".
func parseIntervalSpec(spec interface{}) (Interval, error) {
	switch v := spec.(type) {
	case string:
		return ParseInterval(v)
	case int:
		return ParseInterval(fmt.Sprintf("%dd", v))
	default:
		return Interval{}, fmt.Errorf("%w: interval spec must be a string or int, got %T", ErrTypeMismatch, spec)
	}
}
