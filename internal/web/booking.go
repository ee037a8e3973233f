package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/workshop-booking/internal/availability"
	"github.com/example/workshop-booking/internal/backend"
	"github.com/example/workshop-booking/internal/booking"
	"github.com/example/workshop-booking/internal/logger"
	"github.com/example/workshop-booking/internal/workshop"
)

type jobTypeOption struct {
	Name        string
	Description string
	Slug        string
	Checked     bool
}

type option struct {
	Value    string
	Label    string
	Selected bool
}

type bookingData struct {
	Title  string
	Flash  string
	Errors map[string]bool

	Step  int
	Draft booking.Draft

	// step 1
	NoteMax         int
	JobTypes        []jobTypeOption
	JobTypesLoading bool
	Dates           []option
	DatesLoading    bool
	Times           []option

	// step 2
	Year     string
	Odometer string
}

type successData struct {
	Title     string
	Flash     string
	Reference string
}

// calendar is what step 1 needs to offer and check drop-off dates.
type calendar struct {
	today    time.Time
	hours    workshop.Hours
	blackout availability.BlackoutSet
	loaded   bool
}

func (s *Server) location() *time.Location {
	if s.Rules.Location == nil {
		return time.UTC
	}
	return s.Rules.Location
}

func (s *Server) loadCalendar(ctx context.Context) calendar {
	c := calendar{today: s.Workshop.Today(), hours: s.Workshop.Hours(ctx)}
	set, err := s.Workshop.Blackout(ctx, c.hours.LookaheadDays)
	if err != nil {
		logger.Warn("unavailable days not loaded", "request_id", requestID(ctx), "err", err)
		return c
	}
	c.blackout, c.loaded = set, true
	return c
}

func (c calendar) dates() []time.Time {
	if !c.loaded {
		return nil
	}
	return availability.SelectableDates(c.today, c.hours.LookaheadDays, c.hours.Policy, c.blackout)
}

func (c calendar) selectable(d time.Time) bool {
	if !c.loaded {
		return false
	}
	last := c.today.AddDate(0, 0, c.hours.LookaheadDays)
	return d.Before(last) && availability.IsSelectable(d, c.today, c.hours.Policy, c.blackout)
}

func (c calendar) slots(d time.Time) ([]string, error) {
	slots, err := availability.ComputeSlots(c.hours.Schedule.For(d), d)
	if err != nil {
		return nil, err
	}
	return availability.Labels(slots), nil
}

func (s *Server) handleBookingStart(w http.ResponseWriter, r *http.Request) {
	wz := booking.NewWizard(s.Cookies.Store(w, r), s.Rules)
	s.renderStep(w, r, wz, stepView{})
}

func (s *Server) handleBookingStep(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()

	step, _ := strconv.Atoi(r.PostForm.Get("step"))
	wz := booking.Resume(s.Cookies.Store(w, r), s.Rules, booking.Step(step))

	var (
		u    booking.Update
		view stepView
	)
	switch wz.Step() {
	case booking.StepServiceDetails:
		u, view = s.serviceUpdate(ctx, r.PostForm)
	case booking.StepVehicleDetails:
		u, view.bad = vehicleUpdate(r.PostForm)
	case booking.StepPersonalDetails:
		u = personalUpdate(r.PostForm)
	}
	if _, err := wz.Update(u); err != nil {
		logger.Warn("booking draft not saved", "request_id", requestID(ctx), "err", err)
		view.flash = "We couldn't save your details. Please shorten the note or any long answers and try again."
		s.renderStep(w, r, wz, view)
		return
	}

	action := r.PostForm.Get("action")
	if len(view.bad) > 0 && (action == "next" || action == "submit") {
		if view.flash == "" {
			view.flash = "Please check the highlighted fields."
		}
		s.renderStep(w, r, wz, view)
		return
	}

	switch action {
	case "back":
		_ = wz.Back()
		s.renderStep(w, r, wz, stepView{})
	case "next":
		if err := wz.Next(); err != nil {
			view.flash, view.bad = stepMessage(err)
			s.renderStep(w, r, wz, view)
			return
		}
		s.renderStep(w, r, wz, stepView{})
	case "submit":
		conf, err := wz.Submit(ctx, s.Workshop)
		if err != nil {
			logger.Info("booking not submitted", "request_id", requestID(ctx), "err", err)
			view.flash, view.bad = stepMessage(err)
			s.renderStep(w, r, wz, view)
			return
		}
		http.Redirect(w, r, s.url("/booking/success?ref="+url.QueryEscape(conf.Reference)), http.StatusSeeOther)
	default:
		s.renderStep(w, r, wz, view)
	}
}

func (s *Server) handleBookingSuccess(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("ref"))
	if ref == "" {
		http.Redirect(w, r, s.url("/booking"), http.StatusFound)
		return
	}
	s.render(w, "templates/success.html", successData{Title: "Booking received", Reference: ref})
}

// stepMessage turns a wizard error into a flash message and field marks.
func stepMessage(err error) (string, map[string]bool) {
	var se *booking.StepError
	fields := map[string]bool{}
	if errors.As(err, &se) {
		for _, f := range se.Fields {
			fields[f] = true
		}
	}

	switch {
	case errors.Is(err, booking.ErrTermsNotAccepted):
		return "Please accept the terms and conditions to continue.", fields
	case se != nil && se.Step == booking.StepServiceDetails:
		return "Please choose a drop-off date, a drop-off time and at least one service.", fields
	case errors.Is(err, booking.ErrStepIncomplete):
		return "Please fill in your name, phone number and a valid email address.", fields
	case errors.Is(err, booking.ErrSubmitFailed):
		var ue *backend.Error
		if errors.As(err, &ue) && ue.Status != 0 {
			return "We couldn't submit your booking: " + ue.Detail + ". Please try again.", fields
		}
		return "We couldn't reach the workshop right now. Your details are saved, please try again.", fields
	default:
		return "Something went wrong, please try again.", fields
	}
}

// serviceUpdate reads the step 1 fields. A posted date must be selectable
// and the time one of that date's slots; a time that does not fit the
// posted date is cleared so it never carries over to another day.
func (s *Server) serviceUpdate(ctx context.Context, form url.Values) (booking.Update, stepView) {
	var u booking.Update
	view := stepView{bad: map[string]bool{}}
	cal := s.loadCalendar(ctx)

	// a disabled date field is not posted; the draft is left alone then
	date := time.Time{}
	if form.Has("drop_off_date") {
		v := strings.TrimSpace(form.Get("drop_off_date"))
		d, err := time.ParseInLocation(availability.DateLayout, v, s.location())
		switch {
		case v == "":
			u.DropOffDate = booking.Set(time.Time{})
		case err != nil:
			view.bad["drop_off_date"] = true
			u.DropOffDate = booking.Set(time.Time{})
		case !cal.loaded:
			view.bad["drop_off_date"] = true
			view.flash = "Available dates are still loading, please try again in a moment."
		case !cal.selectable(d):
			view.bad["drop_off_date"] = true
			view.flash = "That drop-off date is not available, please choose another."
			u.DropOffDate = booking.Set(time.Time{})
		default:
			date = d
			view.picked = d
			u.DropOffDate = booking.Set(d)
		}
	}

	if !date.IsZero() {
		v := strings.TrimSpace(form.Get("drop_off_time"))
		labels, err := cal.slots(date)
		if err != nil {
			logger.Error("service window invalid", "err", err)
		}
		clock, perr := availability.ParseClock(v)
		switch {
		case v == "":
			u.DropOffClock = booking.Set(booking.NoClock)
		case perr != nil || !contains(labels, clock.String()):
			view.bad["drop_off_time"] = true
			if view.flash == "" {
				view.flash = "That drop-off time is not available on the chosen date."
			}
			u.DropOffClock = booking.Set(booking.NoClock)
		default:
			u.DropOffClock = booking.Set(clock)
		}
	}

	names := form["job_type_names"]
	if offered, err := s.Workshop.JobTypes(ctx); err == nil {
		known := make(map[string]bool, len(offered))
		for _, jt := range offered {
			known[jt.Name] = true
		}
		var kept []string
		for _, n := range names {
			if known[n] {
				kept = append(kept, n)
			}
		}
		names = kept
	}
	u.JobTypeNames = booking.Set(names)
	u.CourtesyVehicleRequested = booking.Set(checked(form, "courtesy_vehicle_requested"))

	note := strings.TrimSpace(form.Get("note"))
	if utf8.RuneCountInString(note) > booking.MaxNoteLength {
		view.bad["note"] = true
		if view.flash == "" {
			view.flash = fmt.Sprintf("Please keep the note under %d characters.", booking.MaxNoteLength)
		}
		note = string([]rune(note)[:booking.MaxNoteLength])
	}
	u.Note = booking.Set(note)

	return u, view
}

func vehicleUpdate(form url.Values) (booking.Update, map[string]bool) {
	bad := map[string]bool{}
	u := booking.Update{
		RegistrationNumber: booking.Set(strings.ToUpper(strings.TrimSpace(form.Get("registration_number")))),
		Make:               booking.Set(strings.TrimSpace(form.Get("make"))),
		Model:              booking.Set(strings.TrimSpace(form.Get("model"))),
	}
	if n, ok := optionalInt(form.Get("year")); ok {
		u.Year = booking.Set(n)
	} else {
		bad["year"] = true
	}
	if n, ok := optionalInt(form.Get("odometer")); ok {
		u.Odometer = booking.Set(n)
	} else {
		bad["odometer"] = true
	}
	return u, bad
}

func personalUpdate(form url.Values) booking.Update {
	return booking.Update{
		FirstName:     booking.Set(strings.TrimSpace(form.Get("first_name"))),
		LastName:      booking.Set(strings.TrimSpace(form.Get("last_name"))),
		Phone:         booking.Set(strings.TrimSpace(form.Get("phone"))),
		Email:         booking.Set(strings.TrimSpace(form.Get("email"))),
		TermsAccepted: booking.Set(checked(form, "terms_accepted")),
	}
}

// optionalInt parses a non-negative number; blank clears the value.
func optionalInt(v string) (*int, bool) {
	v = strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
	if v == "" {
		return nil, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, false
	}
	return &n, true
}

func checked(form url.Values, key string) bool {
	switch strings.ToLower(form.Get(key)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// stepView is what a re-rendered step shows besides the draft.
type stepView struct {
	flash string
	bad   map[string]bool
	// picked is the date posted on step 1; its slots are listed even when
	// no time has been chosen for it yet.
	picked time.Time
}

func (s *Server) renderStep(w http.ResponseWriter, r *http.Request, wz *booking.Wizard, view stepView) {
	d := wz.Draft()
	data := bookingData{
		Title:  "Book a Service",
		Flash:  view.flash,
		Errors: view.bad,
		Step:   int(wz.Step()),
		Draft:  d,
	}

	switch wz.Step() {
	case booking.StepServiceDetails:
		data.NoteMax = booking.MaxNoteLength
		s.fillServiceStep(r.Context(), &data, view.picked)
	case booking.StepVehicleDetails:
		if d.Year != nil {
			data.Year = strconv.Itoa(*d.Year)
		}
		if d.Odometer != nil {
			data.Odometer = strconv.Itoa(*d.Odometer)
		}
	}
	s.render(w, "templates/booking.html", data)
}

func (s *Server) fillServiceStep(ctx context.Context, data *bookingData, picked time.Time) {
	jts, err := s.Workshop.JobTypes(ctx)
	if err != nil {
		logger.Warn("job types unavailable", "request_id", requestID(ctx), "err", err)
		data.JobTypesLoading = true
	}
	for _, jt := range jts {
		data.JobTypes = append(data.JobTypes, jobTypeOption{
			Name:        jt.Name,
			Description: jt.Description,
			Slug:        jt.Slug,
			Checked:     data.Draft.HasJobType(jt.Name),
		})
	}

	cal := s.loadCalendar(ctx)
	selDate, selClock, hasDropOff := data.Draft.DropOff(s.location())
	if !picked.IsZero() {
		hasDropOff = hasDropOff && sameDay(selDate, picked)
		selDate = picked
	}
	hasDate := hasDropOff || !picked.IsZero()

	dates := cal.dates()
	data.DatesLoading = !cal.loaded
	for _, d := range dates {
		data.Dates = append(data.Dates, option{
			Value:    d.Format(availability.DateLayout),
			Label:    d.Format("Mon 2 Jan 2006"),
			Selected: hasDate && sameDay(d, selDate),
		})
	}

	slotDay := selDate
	if !hasDate {
		slotDay = cal.today
		if len(dates) > 0 {
			slotDay = dates[0]
		}
	}
	labels, err := cal.slots(slotDay)
	if err != nil {
		logger.Error("service window invalid", "err", err)
		data.Flash = "Drop-off times are unavailable at the moment. Please call the workshop."
	}
	for _, l := range labels {
		data.Times = append(data.Times, option{
			Value:    l,
			Label:    l,
			Selected: hasDropOff && l == selClock.String(),
		})
	}
}

func sameDay(a, b time.Time) bool {
	return a.Format(availability.DateLayout) == b.Format(availability.DateLayout)
}
