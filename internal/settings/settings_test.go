package settings

import (
	"errors"
	"testing"
	"time"

	"github.com/example/workshop-booking/internal/availability"
)

func TestFromDefaultsRoundTripsWindowAndPolicy(t *testing.T) {
	d := availability.StandardDefaults()
	s := FromDefaults(d)
	if s.Window() != d.Window {
		t.Fatalf("expected window %+v, got %+v", d.Window, s.Window())
	}
	if s.Policy() != d.Policy {
		t.Fatalf("expected policy %+v, got %+v", d.Policy, s.Policy())
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := FromDefaults(availability.StandardDefaults())

	cases := []struct {
		name   string
		mutate func(*ServiceSettings)
		window bool
	}{
		{"start after end", func(s *ServiceSettings) { s.DropOffStart, s.DropOffEnd = s.DropOffEnd, s.DropOffStart }, true},
		{"start equals end", func(s *ServiceSettings) { s.DropOffEnd = s.DropOffStart }, true},
		{"zero slot", func(s *ServiceSettings) { s.SlotMinutes = 0 }, true},
		{"negative notice", func(s *ServiceSettings) { s.AdvanceNoticeDays = -1 }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := base
			tc.mutate(&s)
			err := s.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if got := errors.Is(err, availability.ErrInvalidWindow); got != tc.window {
				t.Fatalf("expected ErrInvalidWindow=%v, got %v", tc.window, err)
			}
		})
	}
}

func TestScheduleAppliesOverrides(t *testing.T) {
	s := FromDefaults(availability.StandardDefaults())
	day := time.Date(2024, 12, 24, 0, 0, 0, 0, time.UTC)
	sched := Schedule(s, []Override{{
		Day:   day,
		Start: availability.MustClock("09:00"),
		End:   availability.MustClock("12:00"),
	}})

	w := sched.For(day)
	if w.End != availability.MustClock("12:00") || w.SlotMinutes != s.SlotMinutes {
		t.Fatalf("expected shortened window with default slot size, got %+v", w)
	}
	if got := sched.For(day.AddDate(0, 0, 1)); got != s.Window() {
		t.Fatalf("expected default window on other days, got %+v", got)
	}
}

func TestParseOverride(t *testing.T) {
	o, err := parseOverride("2024-12-24", "09:00:00", "12:30:00")
	if err != nil {
		t.Fatalf("expected override to parse, got %v", err)
	}
	if o.Day.Format(availability.DateLayout) != "2024-12-24" || o.End.String() != "12:30" {
		t.Fatalf("unexpected override %+v", o)
	}
	if _, err := parseOverride("24/12/2024", "09:00:00", "12:30:00"); err == nil {
		t.Fatalf("expected bad date to fail")
	}
}
