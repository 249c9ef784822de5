package reconcile

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ageUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
	"year":   365 * 24 * time.Hour,
}

// ParseAge converts a human age expression such as "365 days", "2 weeks"
// or "1 hour" into a duration. Multiple terms accumulate: "1 day 6 hours".
// Months and years use fixed 30 and 365 day lengths.
func ParseAge(expr string) (time.Duration, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(expr)))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty age expression")
	}
	if len(fields)%2 != 0 {
		return 0, fmt.Errorf("malformed age expression %q", expr)
	}

	var total time.Duration
	for i := 0; i < len(fields); i += 2 {
		n, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return 0, fmt.Errorf("malformed age expression %q: %w", expr, err)
		}
		unit := strings.TrimSuffix(fields[i+1], "s")
		d, ok := ageUnits[unit]
		if !ok {
			return 0, fmt.Errorf("unknown age unit %q in %q", fields[i+1], expr)
		}
		total += time.Duration(n * float64(d))
	}
	if total <= 0 {
		return 0, fmt.Errorf("age expression %q is not positive", expr)
	}
	return total, nil
}

// maxAgeOf extracts the staleness window from a desired field set. The value
// may be an age expression string or a raw number of seconds. A zero return
// means no window applies.
func maxAgeOf(desired map[string]any) (time.Duration, error) {
	raw, ok := desired["maxAge"]
	if !ok || raw == nil {
		return 0, nil
	}
	switch v := raw.(type) {
	case string:
		return ParseAge(v)
	case time.Duration:
		return v, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("unsupported maxAge type %T", raw)
	}
}

// timestampOf reads a provider timestamp field, which arrives either as a
// time.Time or an RFC 3339 string.
func timestampOf(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}
