// Package recurrence interprets RFC 5545 recurrence rules stored with
// standing orders. Rules are kept as opaque text and parsed on every use.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// ErrNoStart is returned for rules without a DTSTART line. Without it the
// occurrence set would depend on the time of parsing.
var ErrNoStart = errors.New("rule has no DTSTART")

// ErrZoned is returned for rules carrying a TZID. Rules are expanded in UTC
// so occurrences do not move with daylight saving time.
var ErrZoned = errors.New("rule times must be UTC, TZID is not supported")

// Rule is a parsed recurrence set. Times are UTC with second precision.
type Rule struct {
	set  *rrule.Set
	text string
}

// Parse parses rule text such as
//
//	DTSTART:20240101T090000Z
//	RRULE:FREQ=MONTHLY;BYMONTHDAY=1;COUNT=12
//
// RDATE and EXDATE lines are supported as well. Times without a Z suffix
// are read as UTC.
func Parse(text string) (*Rule, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(text), "\r\n", "\n")

	if zoned(normalized) {
		return nil, ErrZoned
	}

	set, err := rrule.StrToRRuleSet(normalized)
	if err != nil {
		return nil, fmt.Errorf("parse rule: %w", err)
	}

	if set.GetDTStart().IsZero() {
		return nil, ErrNoStart
	}

	if set.GetRRule() == nil && len(set.GetRDate()) == 0 {
		return nil, errors.New("parse rule: no RRULE or RDATE")
	}

	return &Rule{set: set, text: text}, nil
}

// String returns the rule text exactly as given to Parse.
func (r *Rule) String() string {
	return r.text
}

// Start returns DTSTART in UTC.
func (r *Rule) Start() time.Time {
	return r.set.GetDTStart().UTC()
}

// First returns the first occurrence, or false for an empty set.
func (r *Rule) First() (time.Time, bool) {
	next := r.set.Iterator()

	t, ok := next()
	if !ok {
		return time.Time{}, false
	}

	return t.UTC(), true
}

// Between returns occurrences in [from, to], increasing.
func (r *Rule) Between(from, to time.Time) []time.Time {
	if to.Before(from) {
		return nil
	}

	occurrences := r.set.Between(from, to, true)
	for i := range occurrences {
		occurrences[i] = occurrences[i].UTC()
	}

	return occurrences
}

// BetweenN returns at most limit occurrences in [from, to], increasing.
// A limit of zero or less means no limit.
func (r *Rule) BetweenN(from, to time.Time, limit int) []time.Time {
	if limit <= 0 {
		return r.Between(from, to)
	}

	var occurrences []time.Time

	next := r.set.Iterator()
	for len(occurrences) < limit {
		o, ok := next()
		if !ok || o.After(to) {
			break
		}

		if !o.Before(from) {
			occurrences = append(occurrences, o.UTC())
		}
	}

	return occurrences
}

// Before returns occurrences strictly before t, increasing.
func (r *Rule) Before(t time.Time) []time.Time {
	var occurrences []time.Time

	next := r.set.Iterator()
	for {
		o, ok := next()
		if !ok || !o.Before(t) {
			return occurrences
		}

		occurrences = append(occurrences, o.UTC())
	}
}

// After returns the first occurrence strictly after t, or false when the
// set is exhausted.
func (r *Rule) After(t time.Time) (time.Time, bool) {
	next := r.set.After(t, false)
	if next.IsZero() {
		return time.Time{}, false
	}

	return next.UTC(), true
}

// zoned reports whether a DTSTART, RDATE or EXDATE line has a TZID parameter.
func zoned(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		name, _, found := strings.Cut(line, ":")
		if !found {
			continue
		}

		params := strings.Split(strings.ToUpper(strings.TrimSpace(name)), ";")
		switch params[0] {
		case "DTSTART", "RDATE", "EXDATE":
		default:
			continue
		}

		for _, p := range params[1:] {
			if strings.HasPrefix(strings.TrimSpace(p), "TZID=") {
				return true
			}
		}
	}

	return false
}
