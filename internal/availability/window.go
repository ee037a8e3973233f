package availability

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidWindow = errors.New("invalid service window")

// Clock is a time of day in minutes after midnight.
type Clock int

// ParseClock accepts "HH:MM" or "HH:MM:SS". Seconds must be zero.
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if len(parts) == 3 {
		sec, err := strconv.Atoi(parts[2])
		if err != nil || sec != 0 {
			return 0, fmt.Errorf("invalid second in %q", s)
		}
	}
	return Clock(h*60 + m), nil
}

func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

// String renders HH:MM.
func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

// Long renders HH:MM:SS, the format the settings store uses.
func (c Clock) Long() string { return c.String() + ":00" }

// On anchors the clock on date's calendar day in date's location.
func (c Clock) On(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, date.Location())
}

// ServiceWindow is the daily drop-off range [Start, End) split into slots.
type ServiceWindow struct {
	Start       Clock
	End         Clock
	SlotMinutes int
}

func (w ServiceWindow) Validate() error {
	if w.Start >= w.End {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidWindow, w.Start, w.End)
	}
	if w.SlotMinutes <= 0 {
		return fmt.Errorf("%w: slot minutes must be positive (got %d)", ErrInvalidWindow, w.SlotMinutes)
	}
	return nil
}

// ComputeSlots returns the drop-off times on date, starting at w.Start and
// stepping by w.SlotMinutes while strictly before w.End.
func ComputeSlots(w ServiceWindow, date time.Time) ([]time.Time, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	start := w.Start.On(date)
	end := w.End.On(date)
	step := time.Duration(w.SlotMinutes) * time.Minute

	slots := make([]time.Time, 0, int(w.End-w.Start)/w.SlotMinutes+1)
	for cur := start; cur.Before(end); cur = cur.Add(step) {
		slots = append(slots, cur)
	}
	return slots, nil
}

// Labels formats slots as HH:MM.
func Labels(slots []time.Time) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Format("15:04"))
	}
	return out
}

// Schedule is the default window plus per-date overrides keyed by YYYY-MM-DD.
type Schedule struct {
	Default   ServiceWindow
	Overrides map[string]ServiceWindow
}

func (s Schedule) For(date time.Time) ServiceWindow {
	if w, ok := s.Overrides[date.Format(DateLayout)]; ok {
		return w
	}
	return s.Default
}
