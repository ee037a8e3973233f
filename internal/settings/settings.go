package settings

import (
	"context"
	"fmt"
	"time"

	"github.com/example/workshop-booking/internal/availability"
	"github.com/example/workshop-booking/internal/db"
)

// ServiceSettings is the workshop's single row of booking configuration.
type ServiceSettings struct {
	DropOffStart      availability.Clock
	DropOffEnd        availability.Clock
	SlotMinutes       int
	AdvanceNoticeDays int
	UpdatedAt         time.Time
}

func FromDefaults(d availability.Defaults) ServiceSettings {
	return ServiceSettings{
		DropOffStart:      d.Window.Start,
		DropOffEnd:        d.Window.End,
		SlotMinutes:       d.Window.SlotMinutes,
		AdvanceNoticeDays: d.Policy.MinDaysAhead,
	}
}

func (s ServiceSettings) Window() availability.ServiceWindow {
	return availability.ServiceWindow{Start: s.DropOffStart, End: s.DropOffEnd, SlotMinutes: s.SlotMinutes}
}

func (s ServiceSettings) Policy() availability.AdvanceNoticePolicy {
	return availability.AdvanceNoticePolicy{MinDaysAhead: s.AdvanceNoticeDays}
}

func (s ServiceSettings) Validate() error {
	if err := s.Window().Validate(); err != nil {
		return err
	}
	if s.AdvanceNoticeDays < 0 {
		return fmt.Errorf("booking advance notice must be >= 0")
	}
	return nil
}

// Override replaces the default drop-off window on one date.
type Override struct {
	Day   time.Time
	Start availability.Clock
	End   availability.Clock
}

type Repo struct {
	db       *db.DB
	defaults availability.Defaults
}

// NewRepo returns a settings repository. defaults seed the singleton row the
// first time it is read.
func NewRepo(d *db.DB, defaults availability.Defaults) *Repo {
	return &Repo{db: d, defaults: defaults}
}

// Get returns the settings row, creating it from the defaults when missing.
func (r *Repo) Get(ctx context.Context) (ServiceSettings, error) {
	seed := FromDefaults(r.defaults)
	if err := r.db.Exec(ctx, `
INSERT INTO service_settings(id, drop_off_start_time, drop_off_end_time, slot_minutes, booking_advance_notice)
VALUES (1, $1::text::time, $2::text::time, $3, $4)
ON CONFLICT (id) DO NOTHING`,
		seed.DropOffStart.Long(), seed.DropOffEnd.Long(), seed.SlotMinutes, seed.AdvanceNoticeDays,
	); err != nil {
		return ServiceSettings{}, fmt.Errorf("seed service settings: %w", err)
	}

	var s ServiceSettings
	var start, end string
	err := r.db.QueryRow(ctx, `
SELECT to_char(drop_off_start_time, 'HH24:MI:SS'), to_char(drop_off_end_time, 'HH24:MI:SS'), slot_minutes, booking_advance_notice, updated_at
FROM service_settings
WHERE id=1`).Scan(&start, &end, &s.SlotMinutes, &s.AdvanceNoticeDays, &s.UpdatedAt)
	if err != nil {
		return ServiceSettings{}, db.WrapNotFound(err)
	}
	if s.DropOffStart, err = availability.ParseClock(start); err != nil {
		return ServiceSettings{}, fmt.Errorf("stored drop_off_start_time: %w", err)
	}
	if s.DropOffEnd, err = availability.ParseClock(end); err != nil {
		return ServiceSettings{}, fmt.Errorf("stored drop_off_end_time: %w", err)
	}
	return s, nil
}

func (r *Repo) Update(ctx context.Context, s ServiceSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return r.db.Exec(ctx, `
INSERT INTO service_settings(id, drop_off_start_time, drop_off_end_time, slot_minutes, booking_advance_notice, updated_at)
VALUES (1, $1::text::time, $2::text::time, $3, $4, now())
ON CONFLICT (id) DO UPDATE SET
  drop_off_start_time=EXCLUDED.drop_off_start_time,
  drop_off_end_time=EXCLUDED.drop_off_end_time,
  slot_minutes=EXCLUDED.slot_minutes,
  booking_advance_notice=EXCLUDED.booking_advance_notice,
  updated_at=now()`,
		s.DropOffStart.Long(), s.DropOffEnd.Long(), s.SlotMinutes, s.AdvanceNoticeDays)
}

// Overrides returns the per-date windows on or after from.
func (r *Repo) Overrides(ctx context.Context, from time.Time) ([]Override, error) {
	rows, err := r.db.Query(ctx, `
SELECT to_char(day, 'YYYY-MM-DD'), to_char(drop_off_start_time, 'HH24:MI:SS'), to_char(drop_off_end_time, 'HH24:MI:SS')
FROM service_window_overrides
WHERE day >= $1::text::date
ORDER BY day ASC`, from.Format(availability.DateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Override
	for rows.Next() {
		var day, start, end string
		if err := rows.Scan(&day, &start, &end); err != nil {
			return nil, err
		}
		o, err := parseOverride(day, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) SetOverride(ctx context.Context, o Override) error {
	w := availability.ServiceWindow{Start: o.Start, End: o.End, SlotMinutes: 1}
	if err := w.Validate(); err != nil {
		return err
	}
	return r.db.Exec(ctx, `
INSERT INTO service_window_overrides(day, drop_off_start_time, drop_off_end_time)
VALUES ($1::text::date, $2::text::time, $3::text::time)
ON CONFLICT (day) DO UPDATE SET drop_off_start_time=EXCLUDED.drop_off_start_time, drop_off_end_time=EXCLUDED.drop_off_end_time`,
		o.Day.Format(availability.DateLayout), o.Start.Long(), o.End.Long())
}

func (r *Repo) DeleteOverride(ctx context.Context, day time.Time) error {
	n, err := r.db.ExecAffected(ctx, `DELETE FROM service_window_overrides WHERE day=$1::text::date`, day.Format(availability.DateLayout))
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

func parseOverride(day, start, end string) (Override, error) {
	d, err := time.Parse(availability.DateLayout, day)
	if err != nil {
		return Override{}, err
	}
	s, err := availability.ParseClock(start)
	if err != nil {
		return Override{}, err
	}
	e, err := availability.ParseClock(end)
	if err != nil {
		return Override{}, err
	}
	return Override{Day: d, Start: s, End: e}, nil
}

// Schedule combines the default window with per-date overrides.
func Schedule(s ServiceSettings, overrides []Override) availability.Schedule {
	sched := availability.Schedule{Default: s.Window()}
	if len(overrides) == 0 {
		return sched
	}
	sched.Overrides = make(map[string]availability.ServiceWindow, len(overrides))
	for _, o := range overrides {
		sched.Overrides[o.Day.Format(availability.DateLayout)] = availability.ServiceWindow{
			Start:       o.Start,
			End:         o.End,
			SlotMinutes: s.SlotMinutes,
		}
	}
	return sched
}
