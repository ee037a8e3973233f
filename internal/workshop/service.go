package workshop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gosimple/slug"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/example/workshop-booking/internal/availability"
	"github.com/example/workshop-booking/internal/backend"
	"github.com/example/workshop-booking/internal/booking"
	"github.com/example/workshop-booking/internal/bookinglog"
	"github.com/example/workshop-booking/internal/logger"
	"github.com/example/workshop-booking/internal/settings"
)

type Upstream interface {
	JobTypes(ctx context.Context) ([]string, error)
	UnavailableDays(ctx context.Context, inDays int) ([]string, error)
	CreateBooking(ctx context.Context, req backend.BookingRequest) (backend.BookingResponse, error)
}

type SettingsStore interface {
	Get(ctx context.Context) (settings.ServiceSettings, error)
	Overrides(ctx context.Context, from time.Time) ([]settings.Override, error)
}

type JobTypeStore interface {
	List(ctx context.Context, activeOnly bool) ([]settings.JobType, error)
}

type RequestLog interface {
	Record(ctx context.Context, e bookinglog.Entry) (int64, error)
}

// JobType is an offered job type as shown to customers.
type JobType struct {
	Name        string
	Description string
	Slug        string
}

// Hours is the booking calendar configuration in effect.
type Hours struct {
	Schedule      availability.Schedule
	Policy        availability.AdvanceNoticePolicy
	LookaheadDays int
	// Fallback is set when the settings store could not be used.
	Fallback bool
}

const referenceAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	keyJobTypes        = "job_types"
	keyUnavailableDays = "unavailable_days:%d"
)

// Service is the booking backend seen by the web layer. It combines the
// upstream API with local settings and records every submission.
type Service struct {
	Upstream     Upstream
	Settings     SettingsStore
	JobTypeStore JobTypeStore
	Log          RequestLog
	Cache        Cache

	Defaults availability.Defaults
	Location *time.Location
	CacheTTL time.Duration
	Timeout  time.Duration
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) loc() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s *Service) cache() Cache {
	if s.Cache == nil {
		return NopCache{}
	}
	return s.Cache
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

// Today is the current calendar date in the workshop's time zone.
func (s *Service) Today() time.Time {
	return availability.DateOnly(s.now().In(s.loc()))
}

// Hours reads the service settings and date overrides. When the store is
// unavailable or holds an invalid window the injected defaults are used.
func (s *Service) Hours(ctx context.Context) Hours {
	h := Hours{
		Schedule:      availability.Schedule{Default: s.Defaults.Window},
		Policy:        s.Defaults.Policy,
		LookaheadDays: backend.ClampLookahead(s.Defaults.LookaheadDays),
		Fallback:      true,
	}
	if s.Settings == nil {
		return h
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	st, err := s.Settings.Get(ctx)
	if err == nil {
		err = st.Validate()
	}
	if err != nil {
		logger.Warn("service settings unavailable, using defaults", "err", err)
		return h
	}

	overrides, err := s.Settings.Overrides(ctx, s.Today())
	if err != nil {
		logger.Warn("service window overrides unavailable", "err", err)
		overrides = nil
	}
	h.Schedule = settings.Schedule(st, overrides)
	h.Policy = st.Policy()
	h.Fallback = false
	return h
}

// JobTypes returns the upstream's job types in upstream order, minus the
// ones disabled locally, with local descriptions attached.
func (s *Service) JobTypes(ctx context.Context) ([]JobType, error) {
	var names []string
	hit, err := s.cache().Get(ctx, keyJobTypes, &names)
	if err != nil {
		logger.Warn("cache read failed", "key", keyJobTypes, "err", err)
	}
	if !hit {
		if names, err = s.fetchJobTypes(ctx); err != nil {
			return nil, err
		}
	}

	local := map[string]settings.JobType{}
	if s.JobTypeStore != nil {
		ctx, cancel := s.withTimeout(ctx)
		rows, err := s.JobTypeStore.List(ctx, false)
		cancel()
		if err != nil {
			logger.Warn("job type descriptions unavailable", "err", err)
		}
		for _, r := range rows {
			local[r.Name] = r
		}
	}

	out := make([]JobType, 0, len(names))
	used := map[string]int{}
	for _, n := range names {
		jt := JobType{Name: n}
		if l, ok := local[n]; ok {
			if !l.IsActive {
				continue
			}
			jt.Description = l.Description
		}
		jt.Slug = uniqueSlug(n, used)
		out = append(out, jt)
	}
	return out, nil
}

func uniqueSlug(name string, used map[string]int) string {
	base := slug.Make(name)
	if base == "" {
		base = "job-type"
	}
	used[base]++
	if n := used[base]; n > 1 {
		return fmt.Sprintf("%s-%d", base, n)
	}
	return base
}

func (s *Service) fetchJobTypes(ctx context.Context) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	names, err := s.Upstream.JobTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch job types: %w", err)
	}
	s.store(ctx, keyJobTypes, names)
	return names, nil
}

// Blackout returns the dates the workshop is closed within the look-ahead.
func (s *Service) Blackout(ctx context.Context, inDays int) (availability.BlackoutSet, error) {
	inDays = backend.ClampLookahead(inDays)
	key := fmt.Sprintf(keyUnavailableDays, inDays)

	var days []string
	hit, err := s.cache().Get(ctx, key, &days)
	if err != nil {
		logger.Warn("cache read failed", "key", key, "err", err)
	}
	if !hit {
		if days, err = s.fetchUnavailableDays(ctx, inDays); err != nil {
			return nil, err
		}
	}
	return availability.ParseBlackoutSet(days)
}

func (s *Service) fetchUnavailableDays(ctx context.Context, inDays int) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	days, err := s.Upstream.UnavailableDays(ctx, inDays)
	if err != nil {
		return nil, fmt.Errorf("fetch unavailable days: %w", err)
	}
	if _, err := availability.ParseBlackoutSet(days); err != nil {
		return nil, err
	}
	s.store(ctx, fmt.Sprintf(keyUnavailableDays, inDays), days)
	return days, nil
}

func (s *Service) store(ctx context.Context, key string, v any) {
	if err := s.cache().Set(ctx, key, v, s.CacheTTL); err != nil {
		logger.Warn("cache write failed", "key", key, "err", err)
	}
}

// Refresh re-fetches the upstream lookups into the cache.
func (s *Service) Refresh(ctx context.Context) error {
	var (
		wg         sync.WaitGroup
		errJobs    error
		errClosing error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errJobs = s.fetchJobTypes(ctx)
	}()
	go func() {
		defer wg.Done()
		_, errClosing = s.fetchUnavailableDays(ctx, s.Defaults.LookaheadDays)
	}()
	wg.Wait()
	return errors.Join(errJobs, errClosing)
}

// CreateBooking sends the draft upstream and records the attempt. It
// satisfies booking.Submitter.
func (s *Service) CreateBooking(ctx context.Context, d booking.Draft) (booking.Confirmation, error) {
	ref, err := NewReference()
	if err != nil {
		return booking.Confirmation{}, err
	}
	req := NewBookingRequest(d)
	payload, err := json.Marshal(req)
	if err != nil {
		return booking.Confirmation{}, err
	}

	callCtx, cancel := s.withTimeout(ctx)
	resp, err := s.Upstream.CreateBooking(callCtx, req)
	cancel()

	entry := bookinglog.Entry{
		Reference:          ref,
		CustomerName:       req.Name,
		CustomerEmail:      req.Email,
		RegistrationNumber: req.RegistrationNumber,
		RequestPayload:     payload,
		ResponseStatus:     resp.Status,
		ResponseBody:       resp.Body,
		Status:             bookinglog.StatusSuccess,
	}
	if err != nil {
		entry.Status = bookinglog.StatusFailed
	}
	s.record(context.WithoutCancel(ctx), entry)

	if err != nil {
		logger.Warn("booking request failed", "reference", ref, "status", resp.Status, "err", err)
		return booking.Confirmation{}, err
	}
	logger.Info("booking request created", "reference", ref, "status", resp.Status)
	return booking.Confirmation{
		Reference: ref,
		Message:   "Thanks " + d.FirstName + ", your booking request has been received. We'll be in touch to confirm.",
	}, nil
}

func (s *Service) record(ctx context.Context, e bookinglog.Entry) {
	if s.Log == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := s.Log.Record(ctx, e); err != nil {
		logger.Error("booking request log failed", "reference", e.Reference, "err", err)
	}
}

// NewBookingRequest shapes a draft into the upstream create_booking payload.
func NewBookingRequest(d booking.Draft) backend.BookingRequest {
	req := backend.BookingRequest{
		Name:                     d.FullName(),
		FirstName:                d.FirstName,
		LastName:                 d.LastName,
		Phone:                    d.Phone,
		Email:                    d.Email,
		RegistrationNumber:       d.RegistrationNumber,
		Make:                     d.Make,
		Model:                    d.Model,
		DropOffTime:              d.DropOffTime,
		JobTypeNames:             append([]string{}, d.JobTypeNames...),
		CourtesyVehicleRequested: strconv.FormatBool(d.CourtesyVehicleRequested),
		Note:                     d.Note,
	}
	if d.Year != nil {
		req.Year = strconv.Itoa(*d.Year)
	}
	if d.Odometer != nil {
		req.Odometer = strconv.Itoa(*d.Odometer)
	}
	return req
}

// NewReference returns a short booking reference customers can quote.
func NewReference() (string, error) {
	return gonanoid.Generate(referenceAlphabet, 8)
}
