// Package clock implements the duration and cron expression parsing
// used by the scheduler (§4.4) and the cron source's backward-scan
// matching. These algorithms are non-trivial enough, and referenced by
// enough tests, to warrant their own package.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration accepts "<number><suffix>" where suffix is one of ms,
// s, m, h, d, as well as an "every <duration>" form (used by the cron
// source). It does not accept bare Go duration strings like "1h30m".
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "every "); ok {
		s = strings.TrimSpace(rest)
	}
	if s == "" {
		return 0, fmt.Errorf("clock: empty duration")
	}

	idx := len(s)
	for idx > 0 && (s[idx-1] < '0' || s[idx-1] > '9') {
		idx--
	}
	numPart, suffix := s[:idx], s[idx:]
	if numPart == "" {
		return 0, fmt.Errorf("clock: invalid duration %q", s)
	}
	n, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("clock: invalid duration %q: %w", s, err)
	}

	var unit time.Duration
	switch suffix {
	case "ms":
		unit = time.Millisecond
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	default:
		return 0, fmt.Errorf("clock: unknown duration suffix %q in %q", suffix, s)
	}

	return time.Duration(n * float64(unit)), nil
}

// Render produces a canonical string for d, choosing the largest unit
// that divides it evenly, so that ParseDuration(Render(d)) == d for
// canonical renderings.
func Render(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0 && d >= 24*time.Hour:
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	case d%time.Hour == 0 && d >= time.Hour:
		return fmt.Sprintf("%dh", d/time.Hour)
	case d%time.Minute == 0 && d >= time.Minute:
		return fmt.Sprintf("%dm", d/time.Minute)
	case d%time.Second == 0 && d >= time.Second:
		return fmt.Sprintf("%ds", d/time.Second)
	default:
		return fmt.Sprintf("%dms", d/time.Millisecond)
	}
}
