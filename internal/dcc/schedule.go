package dcc

import (
	"strconv"
	"strings"
	"time"

	srvErrors "github.com/openwatch/netmon-server/pkg/errors"
)

// MatchScheduleExpression evaluates a cron-like schedule expression against
// a civil-time instant. The grammar is `min hour dom month dow [sec]`; each
// field is a comma separated list of `*`, single values, or ranges, any of
// which may carry a `/step` suffix. Day-of-week accepts 0-7 with 7 meaning
// Sunday.
//
// withSeconds reports whether the expression carries the optional seconds
// field; without it a match covers the whole minute and the caller must
// deduplicate per (item, minute). In the seconds field `*/n` matches when
// the epoch timestamp is divisible by n, keeping sub-minute cadences phase
// stable across items.
func MatchScheduleExpression(expr string, now time.Time) (matched bool, withSeconds bool, err error) {
	fields := strings.Fields(expr)
	if len(fields) < 5 || len(fields) > 6 {
		return false, false, srvErrors.NewScheduleSyntaxError(expr, "expected 5 or 6 fields")
	}

	checks := []struct {
		spec    string
		current int
		max     int
	}{
		{fields[0], now.Minute(), 59},
		{fields[1], now.Hour(), 23},
		{fields[2], now.Day(), 31},
		{fields[3], int(now.Month()), 12},
		{fields[4], int(now.Weekday()), 7},
	}

	for n, c := range checks {
		ok, err := matchScheduleField(c.spec, c.current, c.max, -1)
		if err == nil && !ok && n == 4 && c.current == 0 {
			// Sunday may also be written as 7.
			ok, err = matchScheduleField(c.spec, 7, c.max, -1)
		}
		if err != nil {
			return false, false, srvErrors.NewScheduleSyntaxError(expr, err.Error())
		}
		if !ok {
			return false, false, nil
		}
	}

	if len(fields) == 6 {
		ok, err := matchScheduleField(fields[5], now.Second(), 59, now.Unix())
		if err != nil {
			return false, true, srvErrors.NewScheduleSyntaxError(expr, err.Error())
		}
		return ok, true, nil
	}

	return true, false, nil
}

// matchScheduleField matches one field against the current component value.
// timestamp is >= 0 only for the seconds field, where `*/step` divides the
// epoch timestamp instead of the component.
func matchScheduleField(spec string, current, max int, timestamp int64) (bool, error) {
	for _, segment := range strings.Split(spec, ",") {
		ok, err := matchScheduleSegment(segment, current, max, timestamp)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func matchScheduleSegment(segment string, current, max int, timestamp int64) (bool, error) {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return false, srvErrors.NewScheduleSyntaxError(segment, "empty segment")
	}

	step := 0
	if base, stepStr, found := strings.Cut(segment, "/"); found {
		s, err := strconv.Atoi(stepStr)
		if err != nil || s <= 0 {
			return false, srvErrors.NewScheduleSyntaxError(segment, "invalid step")
		}
		step = s
		segment = base
	}

	if segment == "*" {
		if step == 0 {
			return true, nil
		}
		if timestamp >= 0 {
			return timestamp%int64(step) == 0, nil
		}
		return current%step == 0, nil
	}

	if lowStr, highStr, found := strings.Cut(segment, "-"); found {
		low, err := parseScheduleValue(lowStr, max)
		if err != nil {
			return false, err
		}
		high, err := parseScheduleValue(highStr, max)
		if err != nil {
			return false, err
		}
		if low > high {
			return false, srvErrors.NewScheduleSyntaxError(segment, "range low above high")
		}
		if current < low || current > high {
			return false, nil
		}
		if step > 0 {
			return (current-low)%step == 0, nil
		}
		return true, nil
	}

	value, err := parseScheduleValue(segment, max)
	if err != nil {
		return false, err
	}
	if step > 0 {
		// A step on a single value anchors at that value.
		return current >= value && (current-value)%step == 0, nil
	}
	return current == value, nil
}

func parseScheduleValue(s string, max int) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, srvErrors.NewScheduleSyntaxError(s, "not a number")
	}
	if v < 0 || v > max {
		return 0, srvErrors.NewScheduleSyntaxError(s, "value out of range")
	}
	return v, nil
}
