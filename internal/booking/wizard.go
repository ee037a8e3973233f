package booking

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Step int

const (
	StepServiceDetails Step = iota + 1
	StepVehicleDetails
	StepPersonalDetails
)

func (s Step) String() string {
	switch s {
	case StepServiceDetails:
		return "service details"
	case StepVehicleDetails:
		return "vehicle details"
	case StepPersonalDetails:
		return "personal details"
	default:
		return fmt.Sprintf("step %d", int(s))
	}
}

func (s Step) Valid() bool { return s >= StepServiceDetails && s <= StepPersonalDetails }

var (
	ErrStepIncomplete   = errors.New("step incomplete")
	ErrTermsNotAccepted = errors.New("terms and conditions not accepted")
	ErrNoSuchStep       = errors.New("no such step")
	ErrSubmitFailed     = errors.New("booking submission failed")
	ErrDraftNotSaved    = errors.New("booking draft could not be saved")
)

// StepError lists the draft fields that keep the wizard from advancing.
type StepError struct {
	Step   Step
	Fields []string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v (%s)", e.Step, e.Err, strings.Join(e.Fields, ", "))
}

func (e *StepError) Unwrap() error { return e.Err }

// Confirmation is what the booking sink returns on success.
type Confirmation struct {
	Reference string
	Message   string
}

type Submitter interface {
	CreateBooking(ctx context.Context, d Draft) (Confirmation, error)
}

// Rules tunes the checks made at the wizard boundary.
type Rules struct {
	// StrictPersonalDetails requires name, phone and a valid email before
	// submission. Off by default: only the terms checkbox is enforced.
	StrictPersonalDetails bool
	// Location is the workshop's time zone; drop-off strings are read in it.
	Location *time.Location
}

// Wizard sequences the three booking steps over one persisted draft.
type Wizard struct {
	step  Step
	draft Draft
	store Store
	rules Rules
}

// NewWizard restores the draft from store and starts at step 1.
func NewWizard(store Store, rules Rules) *Wizard {
	return Resume(store, rules, StepServiceDetails)
}

// Resume restores the draft and positions the wizard on step. Out of range
// steps start over at step 1.
func Resume(store Store, rules Rules, step Step) *Wizard {
	if !step.Valid() {
		step = StepServiceDetails
	}
	if rules.Location == nil {
		rules.Location = time.UTC
	}
	return &Wizard{step: step, draft: store.Load(), store: store, rules: rules}
}

func (w *Wizard) Step() Step   { return w.step }
func (w *Wizard) Draft() Draft { return w.draft.clone() }

// Update merges u into the draft and persists the result. When the store
// rejects the draft the merged value is still returned, with
// ErrDraftNotSaved, and the caller should not move on.
func (w *Wizard) Update(u Update) (Draft, error) {
	w.draft = Merge(w.draft, u)
	if err := w.store.Persist(w.draft); err != nil {
		return w.Draft(), fmt.Errorf("%w: %w", ErrDraftNotSaved, err)
	}
	return w.Draft(), nil
}

// Next advances one step if the current step's requirements are met.
func (w *Wizard) Next() error {
	switch w.step {
	case StepServiceDetails:
		if err := checkServiceDetails(w.draft, w.rules.Location); err != nil {
			return err
		}
	case StepVehicleDetails:
		// vehicle fields are optional
	default:
		return fmt.Errorf("%w: nothing after %s", ErrNoSuchStep, w.step)
	}
	w.step++
	return nil
}

// Back returns to the previous step. The draft is untouched.
func (w *Wizard) Back() error {
	if w.step == StepServiceDetails {
		return fmt.Errorf("%w: nothing before %s", ErrNoSuchStep, w.step)
	}
	w.step--
	return nil
}

// Submit sends the draft to sink from the last step. The persisted draft is
// cleared only when sink accepts it; on failure the wizard stays put.
func (w *Wizard) Submit(ctx context.Context, sink Submitter) (Confirmation, error) {
	if w.step != StepPersonalDetails {
		return Confirmation{}, fmt.Errorf("%w: submit is only possible from %s", ErrNoSuchStep, StepPersonalDetails)
	}
	if err := checkConsent(w.draft, w.rules); err != nil {
		return Confirmation{}, err
	}
	// the step index comes from the client, so step 1 is rechecked here
	if err := checkServiceDetails(w.draft, w.rules.Location); err != nil {
		return Confirmation{}, err
	}

	conf, err := sink.CreateBooking(ctx, w.draft.clone())
	if err != nil {
		return Confirmation{}, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	w.store.Clear()
	return conf, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

type serviceDetails struct {
	DropOffDate  string   `json:"drop_off_date" validate:"required"`
	DropOffTime  string   `json:"drop_off_time" validate:"required"`
	JobTypeNames []string `json:"job_type_names" validate:"min=1,dive,required"`
}

type personalDetails struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Phone     string `json:"phone" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
}

type consent struct {
	TermsAccepted bool `json:"terms_accepted" validate:"required"`
}

func checkServiceDetails(d Draft, loc *time.Location) error {
	view := serviceDetails{JobTypeNames: d.JobTypeNames}
	if date, clock, ok := d.DropOff(loc); ok {
		view.DropOffDate = date.Format("2006-01-02")
		view.DropOffTime = clock.String()
	}
	return stepError(StepServiceDetails, ErrStepIncomplete, validate.Struct(view))
}

func checkConsent(d Draft, rules Rules) error {
	if err := validate.Struct(consent{TermsAccepted: d.TermsAccepted}); err != nil {
		return stepError(StepPersonalDetails, ErrTermsNotAccepted, err)
	}
	if !rules.StrictPersonalDetails {
		return nil
	}
	view := personalDetails{
		FirstName: strings.TrimSpace(d.FirstName),
		LastName:  strings.TrimSpace(d.LastName),
		Phone:     strings.TrimSpace(d.Phone),
		Email:     strings.TrimSpace(d.Email),
	}
	return stepError(StepPersonalDetails, ErrStepIncomplete, validate.Struct(view))
}

func stepError(step Step, kind, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate %s: %w", step, err)
	}
	fields := make([]string, 0, len(verrs))
	seen := map[string]bool{}
	for _, fe := range verrs {
		name := fe.Field()
		if i := strings.IndexByte(name, '['); i >= 0 {
			name = name[:i]
		}
		if !seen[name] {
			seen[name] = true
			fields = append(fields, name)
		}
	}
	return &StepError{Step: step, Fields: fields, Err: kind}
}
