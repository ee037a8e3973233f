package workshop

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/example/workshop-booking/internal/availability"
	"github.com/example/workshop-booking/internal/backend"
	"github.com/example/workshop-booking/internal/booking"
	"github.com/example/workshop-booking/internal/bookinglog"
	"github.com/example/workshop-booking/internal/settings"
)

type fakeUpstream struct {
	mu        sync.Mutex
	jobTypes  []string
	days      []string
	err       error
	bookErr   error
	inDays    []int
	jobCalls  int
	bookings  []backend.BookingRequest
	bookReply backend.BookingResponse
}

func (f *fakeUpstream) JobTypes(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobCalls++
	return f.jobTypes, f.err
}

func (f *fakeUpstream) UnavailableDays(_ context.Context, inDays int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inDays = append(f.inDays, inDays)
	return f.days, f.err
}

func (f *fakeUpstream) CreateBooking(_ context.Context, req backend.BookingRequest) (backend.BookingResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookings = append(f.bookings, req)
	return f.bookReply, f.bookErr
}

type fakeSettings struct {
	st        settings.ServiceSettings
	overrides []settings.Override
	err       error
}

func (f *fakeSettings) Get(context.Context) (settings.ServiceSettings, error) { return f.st, f.err }

func (f *fakeSettings) Overrides(context.Context, time.Time) ([]settings.Override, error) {
	return f.overrides, nil
}

type fakeJobTypeStore struct {
	rows []settings.JobType
	err  error
}

func (f *fakeJobTypeStore) List(context.Context, bool) ([]settings.JobType, error) { return f.rows, f.err }

type fakeLog struct{ entries []bookinglog.Entry }

func (f *fakeLog) Record(_ context.Context, e bookinglog.Entry) (int64, error) {
	f.entries = append(f.entries, e)
	return int64(len(f.entries)), nil
}

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *memCache) Set(_ context.Context, key string, v any, _ time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func newService(up *fakeUpstream) *Service {
	return &Service{
		Upstream: up,
		Defaults: availability.StandardDefaults(),
		Location: time.UTC,
		Now:      func() time.Time { return time.Date(2024, 6, 10, 15, 4, 0, 0, time.UTC) },
	}
}

func TestJobTypes_EnrichedInUpstreamOrder(t *testing.T) {
	up := &fakeUpstream{jobTypes: []string{"Tyre Change", "Major Service", "Diagnostics", "Tyre  Change"}}
	s := newService(up)
	s.JobTypeStore = &fakeJobTypeStore{rows: []settings.JobType{
		{Name: "Major Service", Description: "Full service with parts", IsActive: true},
		{Name: "Diagnostics", IsActive: false},
	}}

	got, err := s.JobTypes(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	want := []JobType{
		{Name: "Tyre Change", Slug: "tyre-change"},
		{Name: "Major Service", Description: "Full service with parts", Slug: "major-service"},
		{Name: "Tyre  Change", Slug: "tyre-change-2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestJobTypes_LocalStoreFailureKeepsUpstreamNames(t *testing.T) {
	s := newService(&fakeUpstream{jobTypes: []string{"Service"}})
	s.JobTypeStore = &fakeJobTypeStore{err: errors.New("db down")}

	got, err := s.JobTypes(context.Background())
	if err != nil || len(got) != 1 || got[0].Name != "Service" {
		t.Fatalf("expected upstream names, got %+v (%v)", got, err)
	}
}

func TestJobTypes_UpstreamFailure(t *testing.T) {
	s := newService(&fakeUpstream{err: errors.New("timeout")})
	if _, err := s.JobTypes(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestJobTypes_ServedFromCache(t *testing.T) {
	up := &fakeUpstream{jobTypes: []string{"Service"}}
	s := newService(up)
	s.Cache = newMemCache()

	for i := 0; i < 3; i++ {
		if _, err := s.JobTypes(context.Background()); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if up.jobCalls != 1 {
		t.Fatalf("expected one upstream call, got %d", up.jobCalls)
	}
}

func TestBlackout_ClampsAndParses(t *testing.T) {
	up := &fakeUpstream{days: []string{"2024-06-13", "2024-06-14"}}
	s := newService(up)

	set, err := s.Blackout(context.Background(), 500)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !set.Contains(time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC)) || len(set) != 2 {
		t.Fatalf("unexpected blackout set %v", set.Days())
	}
	if !reflect.DeepEqual(up.inDays, []int{90}) {
		t.Fatalf("expected in_days clamped to 90, got %v", up.inDays)
	}
}

func TestBlackout_MalformedDayIsAnError(t *testing.T) {
	s := newService(&fakeUpstream{days: []string{"13/06/2024"}})
	s.Cache = newMemCache()
	if _, err := s.Blackout(context.Background(), 30); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := s.Cache.(*memCache).data["unavailable_days:30"]; ok {
		t.Fatalf("malformed reply must not be cached")
	}
}

func TestHours_FallsBackToDefaults(t *testing.T) {
	s := newService(&fakeUpstream{})
	s.Settings = &fakeSettings{err: errors.New("db down")}

	h := s.Hours(context.Background())
	if !h.Fallback || h.Schedule.Default != s.Defaults.Window || h.Policy != s.Defaults.Policy {
		t.Fatalf("expected defaults, got %+v", h)
	}

	s.Settings = &fakeSettings{st: settings.ServiceSettings{
		DropOffStart: availability.MustClock("17:00"),
		DropOffEnd:   availability.MustClock("09:00"),
		SlotMinutes:  30,
	}}
	if h := s.Hours(context.Background()); !h.Fallback {
		t.Fatalf("expected invalid stored window to fall back, got %+v", h)
	}
}

func TestHours_FromSettingsWithOverrides(t *testing.T) {
	s := newService(&fakeUpstream{})
	day := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)
	s.Settings = &fakeSettings{
		st: settings.ServiceSettings{
			DropOffStart:      availability.MustClock("08:00"),
			DropOffEnd:        availability.MustClock("16:00"),
			SlotMinutes:       60,
			AdvanceNoticeDays: 1,
		},
		overrides: []settings.Override{{Day: day, Start: availability.MustClock("08:00"), End: availability.MustClock("10:00")}},
	}

	h := s.Hours(context.Background())
	if h.Fallback || h.Policy.MinDaysAhead != 1 {
		t.Fatalf("expected stored settings, got %+v", h)
	}
	slots, err := availability.ComputeSlots(h.Schedule.For(day), day)
	if err != nil {
		t.Fatalf("compute slots: %v", err)
	}
	if got := availability.Labels(slots); !reflect.DeepEqual(got, []string{"08:00", "09:00"}) {
		t.Fatalf("expected override slots, got %v", got)
	}
}

func TestToday(t *testing.T) {
	s := newService(&fakeUpstream{})
	s.Location = time.FixedZone("AWST", 8*3600)
	s.Now = func() time.Time { return time.Date(2024, 6, 10, 20, 0, 0, 0, time.UTC) }
	if got := s.Today().Format(availability.DateLayout); got != "2024-06-11" {
		t.Fatalf("expected the workshop's local date 2024-06-11, got %s", got)
	}
}

func draftForSubmit() booking.Draft {
	year, odo := 2021, 12000
	d := booking.Empty()
	d.FirstName, d.LastName = "Jane", "Doe"
	d.Email = "jane@example.com"
	d.RegistrationNumber = "1ABC234"
	d.Year, d.Odometer = &year, &odo
	d.JobTypeNames = []string{"Service"}
	d.DropOffTime = "12/06/2024 09:30"
	d.TermsAccepted = true
	return d
}

func TestNewBookingRequest(t *testing.T) {
	req := NewBookingRequest(draftForSubmit())
	if req.Name != "Jane Doe" || req.Year != "2021" || req.Odometer != "12000" || req.CourtesyVehicleRequested != "false" {
		t.Fatalf("unexpected payload %+v", req)
	}

	empty := NewBookingRequest(booking.Empty())
	if empty.Year != "" || empty.Odometer != "" || empty.JobTypeNames == nil {
		t.Fatalf("expected blank numbers and an empty job list, got %+v", empty)
	}
}

func TestCreateBooking_RecordsSuccess(t *testing.T) {
	up := &fakeUpstream{bookReply: backend.BookingResponse{Status: 201, Body: json.RawMessage(`{"id":5}`)}}
	log := &fakeLog{}
	s := newService(up)
	s.Log = log

	conf, err := s.CreateBooking(context.Background(), draftForSubmit())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(conf.Reference) != 8 {
		t.Fatalf("expected an 8 character reference, got %q", conf.Reference)
	}
	if len(up.bookings) != 1 || up.bookings[0].DropOffTime != "12/06/2024 09:30" {
		t.Fatalf("unexpected upstream calls %+v", up.bookings)
	}
	if len(log.entries) != 1 {
		t.Fatalf("expected one log entry, got %d", len(log.entries))
	}
	e := log.entries[0]
	if e.Status != bookinglog.StatusSuccess || e.Reference != conf.Reference || e.CustomerName != "Jane Doe" || e.ResponseStatus != 201 {
		t.Fatalf("unexpected log entry %+v", e)
	}
	if err := e.Validate(); err != nil {
		t.Fatalf("expected a storable entry, got %v", err)
	}
}

func TestCreateBooking_RecordsFailure(t *testing.T) {
	upErr := &backend.Error{Status: 422, Detail: "Drop-off time is no longer available"}
	up := &fakeUpstream{bookErr: upErr, bookReply: backend.BookingResponse{Status: 422, Body: json.RawMessage(`{"detail":"x"}`)}}
	log := &fakeLog{}
	s := newService(up)
	s.Log = log

	_, err := s.CreateBooking(context.Background(), draftForSubmit())
	if !errors.Is(err, upErr) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if len(log.entries) != 1 || log.entries[0].Status != bookinglog.StatusFailed {
		t.Fatalf("expected a failed log entry, got %+v", log.entries)
	}
}

func TestRefreshWarmsCache(t *testing.T) {
	up := &fakeUpstream{jobTypes: []string{"Service"}, days: []string{"2024-06-13"}}
	s := newService(up)
	cache := newMemCache()
	s.Cache = cache

	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	for _, key := range []string{"job_types", "unavailable_days:30"} {
		if _, ok := cache.data[key]; !ok {
			t.Fatalf("expected %s cached", key)
		}
	}
}

func TestRefresherStopsWithContext(t *testing.T) {
	up := &fakeUpstream{jobTypes: []string{"Service"}}
	r := &Refresher{Service: newService(up), Interval: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if up.jobCalls != 1 {
		t.Fatalf("expected the immediate refresh to run once, got %d", up.jobCalls)
	}
}
