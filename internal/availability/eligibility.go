package availability

import (
	"fmt"
	"time"
)

// DateLayout is the ISO calendar date format used for blackout days.
const DateLayout = "2006-01-02"

type AdvanceNoticePolicy struct {
	MinDaysAhead int
}

// BlackoutSet holds dates on which the workshop takes no drop-offs.
type BlackoutSet map[string]struct{}

// ParseBlackoutSet builds a set from YYYY-MM-DD strings.
func ParseBlackoutSet(days []string) (BlackoutSet, error) {
	set := make(BlackoutSet, len(days))
	for _, d := range days {
		t, err := time.Parse(DateLayout, d)
		if err != nil {
			return nil, fmt.Errorf("blackout day %q: %w", d, err)
		}
		set[t.Format(DateLayout)] = struct{}{}
	}
	return set, nil
}

func (b BlackoutSet) Contains(date time.Time) bool {
	_, ok := b[date.Format(DateLayout)]
	return ok
}

func (b BlackoutSet) Days() []string {
	out := make([]string, 0, len(b))
	for d := range b {
		out = append(out, d)
	}
	return out
}

// IsSelectable reports whether candidate can be chosen as a drop-off date.
// Only candidate's calendar date matters; it is compared in today's location.
func IsSelectable(candidate, today time.Time, policy AdvanceNoticePolicy, blackout BlackoutSet) bool {
	y, m, d := candidate.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, today.Location())
	minDate := DateOnly(today).AddDate(0, 0, policy.MinDaysAhead)
	if day.Before(minDate) {
		return false
	}
	switch day.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !blackout.Contains(day)
}

// SelectableDates lists the selectable dates from today through today+days-1.
func SelectableDates(today time.Time, days int, policy AdvanceNoticePolicy, blackout BlackoutSet) []time.Time {
	start := DateOnly(today)
	var out []time.Time
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		if IsSelectable(d, today, policy, blackout) {
			out = append(out, d)
		}
	}
	return out
}

// DateOnly zeroes the time of day, keeping t's location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
