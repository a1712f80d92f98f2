package timepivot

import (
	"fmt"
	"time"
)

// timeNow is swapped out in tests.
var timeNow = time.Now

// TimeWindow is a half-open [Start, End) time range. A window whose End is not after its
// Start is not an error; queries over it simply match no rows.
type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// ResolveWindow derives the [start, end) window an aggregation is restricted to.
//
// since may be:
//   - a time.Time, used as the window start directly;
//   - an int, meaning that many days back from end (legacy shorthand for "{n}d");
//   - a string interval expression accepted by ParseInterval, subtracted from end.
//
// end defaults to the current time when nil. Any other type for since fails with
// ErrTypeMismatch.
func ResolveWindow(since interface{}, end *time.Time) (TimeWindow, error) {
	windowEnd := timeNow()
	if end != nil {
		windowEnd = *end
	}
	switch v := since.(type) {
	case time.Time:
		return TimeWindow{Start: v, End: windowEnd}, nil
	case int, string:
		iv, err := parseIntervalSpec(v)
		if err != nil {
			return TimeWindow{}, err
		}
		return TimeWindow{Start: windowEnd.Add(-iv.Duration()), End: windowEnd}, nil
	default:
		return TimeWindow{}, fmt.Errorf("%w: window start must be a time.Time, int or string, got %T", ErrTypeMismatch, since)
	}
}
