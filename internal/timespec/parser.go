// Package timespec parses the --since/--until flags of the history command.
package timespec

import (
	"fmt"
	"time"
)

// Range is a half-open window [Since, Until) in Unix milliseconds. A zero
// bound is open.
type Range struct {
	Since int64
	Until int64
}

// Contains reports whether ms falls inside the window.
func (r Range) Contains(ms int64) bool {
	if r.Since > 0 && ms < r.Since {
		return false
	}
	if r.Until > 0 && ms >= r.Until {
		return false
	}
	return true
}

// IsOpen reports whether neither bound is set.
func (r Range) IsOpen() bool {
	return r.Since == 0 && r.Until == 0
}

// Parse turns a time specification into Unix milliseconds relative to now.
// Accepted forms are a Go duration meaning "that long ago" ("90m", "1h30m")
// and an RFC3339 timestamp ("2025-10-29T13:00:00Z").
func Parse(spec string, now time.Time) (int64, error) {
	if spec == "" {
		return 0, fmt.Errorf("empty time specification")
	}

	if t, err := time.Parse(time.RFC3339, spec); err == nil {
		return t.UnixMilli(), nil
	}

	if d, err := time.ParseDuration(spec); err == nil {
		return now.Add(-d).UnixMilli(), nil
	}

	return 0, fmt.Errorf("invalid time specification: %s (use duration like '1h30m' or RFC3339 like '2025-10-29T13:00:00Z')", spec)
}

// ParseRange parses both flags. Empty flags leave that bound open.
func ParseRange(since, until string, now time.Time) (Range, error) {
	var r Range
	var err error

	if since != "" {
		if r.Since, err = Parse(since, now); err != nil {
			return Range{}, fmt.Errorf("invalid --since: %w", err)
		}
	}
	if until != "" {
		if r.Until, err = Parse(until, now); err != nil {
			return Range{}, fmt.Errorf("invalid --until: %w", err)
		}
	}

	if r.Since > 0 && r.Until > 0 && r.Since >= r.Until {
		return Range{}, fmt.Errorf("--since must be before --until")
	}
	return r, nil
}
