package booking

import (
	"strings"
	"time"

	"github.com/example/workshop-booking/internal/availability"
)

// DropOffLayout is the combined drop-off format sent upstream.
const DropOffLayout = "02/01/2006 15:04"

// NoClock in an Update clears the drop-off time.
const NoClock availability.Clock = -1

// MaxNoteLength bounds the free-text note, in characters, so the draft
// fits in its cookie.
const MaxNoteLength = 1000

// Draft is the booking form data accumulated across the wizard steps.
// It is persisted flat, as one JSON object.
type Draft struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Email     string `json:"email"`

	RegistrationNumber string `json:"registration_number"`
	Make               string `json:"make"`
	Model              string `json:"model"`
	Year               *int   `json:"year"`
	Odometer           *int   `json:"odometer"`

	// JobTypeNames has set semantics; order carries no meaning.
	JobTypeNames             []string `json:"job_type_names"`
	DropOffTime              string   `json:"drop_off_time"`
	CourtesyVehicleRequested bool     `json:"courtesy_vehicle_requested"`
	Note                     string   `json:"note"`

	TermsAccepted bool `json:"terms_accepted"`
}

func Empty() Draft {
	return Draft{JobTypeNames: []string{}}
}

// FullName is the customer name the upstream expects.
func (d Draft) FullName() string {
	return strings.TrimSpace(d.FirstName + " " + d.LastName)
}

func (d Draft) HasJobType(name string) bool {
	for _, n := range d.JobTypeNames {
		if n == name {
			return true
		}
	}
	return false
}

// DropOff splits the combined drop-off string back into its date (in loc)
// and time of day. ok is false when no complete drop-off is recorded.
func (d Draft) DropOff(loc *time.Location) (date time.Time, clock availability.Clock, ok bool) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DropOffLayout, d.DropOffTime, loc)
	if err != nil {
		return time.Time{}, 0, false
	}
	return availability.DateOnly(t), availability.Clock(t.Hour()*60 + t.Minute()), true
}

func FormatDropOff(date time.Time, clock availability.Clock) string {
	return date.Format("02/01/2006") + " " + clock.String()
}

func (d Draft) clone() Draft {
	out := d
	out.JobTypeNames = append([]string{}, d.JobTypeNames...)
	if d.Year != nil {
		y := *d.Year
		out.Year = &y
	}
	if d.Odometer != nil {
		o := *d.Odometer
		out.Odometer = &o
	}
	return out
}

// Field is one optional assignment inside an Update.
type Field[T any] struct {
	value T
	set   bool
}

func Set[T any](v T) Field[T] { return Field[T]{value: v, set: true} }

func (f Field[T]) IsSet() bool { return f.set }
func (f Field[T]) Value() T    { return f.value }

func (f Field[T]) apply(dst *T) {
	if f.set {
		*dst = f.value
	}
}

// Update is a partial change to a Draft. Unset fields are left alone.
type Update struct {
	FirstName Field[string]
	LastName  Field[string]
	Phone     Field[string]
	Email     Field[string]

	RegistrationNumber Field[string]
	Make               Field[string]
	Model              Field[string]
	Year               Field[*int]
	Odometer           Field[*int]

	JobTypeNames             Field[[]string]
	DropOffDate              Field[time.Time]
	DropOffClock             Field[availability.Clock]
	CourtesyVehicleRequested Field[bool]
	Note                     Field[string]

	TermsAccepted Field[bool]
}

// Merge applies u to d and returns the result; d is not modified.
// The combined drop-off string is rebuilt whenever both a date and a time
// are known, taking each part from u when set and from d otherwise. A zero
// date or NoClock clears it.
func Merge(d Draft, u Update) Draft {
	out := d.clone()

	u.FirstName.apply(&out.FirstName)
	u.LastName.apply(&out.LastName)
	u.Phone.apply(&out.Phone)
	u.Email.apply(&out.Email)

	u.RegistrationNumber.apply(&out.RegistrationNumber)
	u.Make.apply(&out.Make)
	u.Model.apply(&out.Model)
	u.Year.apply(&out.Year)
	u.Odometer.apply(&out.Odometer)

	if u.JobTypeNames.set {
		out.JobTypeNames = normalizeNames(u.JobTypeNames.value)
	}
	u.CourtesyVehicleRequested.apply(&out.CourtesyVehicleRequested)
	u.Note.apply(&out.Note)
	u.TermsAccepted.apply(&out.TermsAccepted)

	if u.DropOffDate.set || u.DropOffClock.set {
		date, clock, ok := d.DropOff(nil)
		haveDate, haveClock := ok, ok
		if u.DropOffDate.set {
			date, haveDate = u.DropOffDate.value, !u.DropOffDate.value.IsZero()
		}
		if u.DropOffClock.set {
			clock, haveClock = u.DropOffClock.value, u.DropOffClock.value >= 0
		}
		if haveDate && haveClock {
			out.DropOffTime = FormatDropOff(date, clock)
		} else {
			out.DropOffTime = ""
		}
	}
	return out
}

// ToggleJobType adds name to the selection, or removes it if present.
func ToggleJobType(d Draft, name string) Update {
	next := make([]string, 0, len(d.JobTypeNames)+1)
	found := false
	for _, n := range d.JobTypeNames {
		if n == name {
			found = true
			continue
		}
		next = append(next, n)
	}
	if !found {
		next = append(next, name)
	}
	return Update{JobTypeNames: Set(next)}
}

func normalizeNames(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, n := range in {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
