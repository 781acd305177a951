package flow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nextsteps-go/internal/clock"
	"nextsteps-go/internal/models"
)

const (
	DefaultContinueDelay = 2 * time.Minute

	SubmitFailureNotice = "There was an error setting up your reminder. Please try again."
)

// Submitter delivers a reminder request to the subscriber endpoint.
type Submitter interface {
	Submit(ctx context.Context, req *models.ReminderRequest) error
}

type SubmitterFunc func(ctx context.Context, req *models.ReminderRequest) error

func (f SubmitterFunc) Submit(ctx context.Context, req *models.ReminderRequest) error {
	return f(ctx, req)
}

type Snapshot struct {
	View              View                   `json:"view"`
	Form              models.ReminderRequest `json:"form"`
	FieldErrors       map[string]string      `json:"fieldErrors,omitempty"`
	Submitting        bool                   `json:"submitting"`
	Notice            string                 `json:"notice,omitempty"`
	ContinueUnlocksAt *time.Time             `json:"continueUnlocksAt,omitempty"`
}

type Option func(*Controller)

func WithInitialView(v View) Option {
	return func(c *Controller) { c.view = v }
}

func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clock = clk }
}

func WithContinueDelay(d time.Duration) Option {
	return func(c *Controller) { c.continueDelay = d }
}

// Controller sequences the post-registration views. All methods are safe for
// concurrent use; Submit releases the lock while the call is outstanding.
type Controller struct {
	mu            sync.Mutex
	view          View
	form          models.ReminderRequest
	fieldErrors   map[string]string
	submitting    bool
	notice        string
	shownAt       time.Time
	continueDelay time.Duration

	clock     clock.Clock
	submitter Submitter
	tracer    trace.Tracer
}

func NewController(submitter Submitter, opts ...Option) *Controller {
	c := &Controller{
		view:          ViewRegistrationForm,
		continueDelay: DefaultContinueDelay,
		clock:         clock.RealClock{},
		submitter:     submitter,
		tracer:        otel.Tracer("flow"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.shownAt = c.clock.Now()
	if c.view == ViewReminderForm {
		c.resetForm()
	}
	return c
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Fire applies event to the current view.
func (c *Controller) Fire(event Event) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fire(event); err != nil {
		return c.snapshot(), err
	}
	return c.snapshot(), nil
}

// HandleEmbedMessage fires form-completed when raw is a completion message and
// the registration form is showing. It reports whether the event fired.
func (c *Controller) HandleEmbedMessage(raw []byte) bool {
	if !DetectFormCompletion(raw) {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.view != ViewRegistrationForm {
		return false
	}
	return c.fire(EventFormCompleted) == nil
}

// SetForm replaces the reminder form. Field errors are cleared.
func (c *Controller) SetForm(form models.ReminderRequest) (Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.submitting {
		return c.snapshot(), ErrSubmissionInFlight
	}
	if c.view != ViewReminderForm {
		return c.snapshot(), fmt.Errorf("%w: form is not editable in %s", ErrInvalidTransition, c.view)
	}

	if form.ReminderTime == "" {
		form.ReminderTime = models.DefaultReminderOption
	}
	c.form = form
	c.fieldErrors = nil
	return c.snapshot(), nil
}

// Submit validates the form and makes exactly one call through the submitter.
// The view does not change until that call returns.
func (c *Controller) Submit(ctx context.Context) (Snapshot, error) {
	ctx, span := c.tracer.Start(ctx, "flow.submit",
		trace.WithAttributes(attribute.String("operation", "flow.submit")))
	defer span.End()

	c.mu.Lock()
	if c.submitting {
		snap := c.snapshot()
		c.mu.Unlock()
		span.SetAttributes(attribute.Bool("flow.in_flight", true))
		return snap, ErrSubmissionInFlight
	}
	if c.view != ViewReminderForm {
		snap := c.snapshot()
		c.mu.Unlock()
		return snap, fmt.Errorf("%w: cannot submit from %s", ErrInvalidTransition, snap.View)
	}
	if err := c.form.Validate(); err != nil {
		c.fieldErrors = map[string]string{"email": models.EmailErrorMessage(err)}
		snap := c.snapshot()
		c.mu.Unlock()
		return snap, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	c.fieldErrors = nil
	c.notice = ""
	c.submitting = true
	req := c.form
	c.mu.Unlock()

	err := c.submitter.Submit(ctx, &req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false

	if err != nil {
		c.notice = SubmitFailureNotice
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission failed")
		return c.snapshot(), fmt.Errorf("%w: %v", ErrSubmissionFailed, err)
	}

	c.view = ViewReminderSuccess
	span.SetAttributes(attribute.Bool("success", true))
	return c.snapshot(), nil
}

func (c *Controller) fire(event Event) error {
	if c.submitting {
		return ErrSubmissionInFlight
	}

	to, ok := next(c.view, event)
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, c.view)
	}

	switch {
	case event == EventBack:
		c.form = models.ReminderRequest{}
		c.fieldErrors = nil
	case to == ViewReminderForm:
		c.resetForm()
	}
	c.notice = ""
	c.view = to
	return nil
}

func (c *Controller) resetForm() {
	c.form = models.ReminderRequest{ReminderTime: models.DefaultReminderOption}
	c.fieldErrors = nil
}

func (c *Controller) snapshot() Snapshot {
	snap := Snapshot{
		View:       c.view,
		Form:       c.form,
		Submitting: c.submitting,
		Notice:     c.notice,
	}
	if len(c.fieldErrors) > 0 {
		snap.FieldErrors = make(map[string]string, len(c.fieldErrors))
		for k, v := range c.fieldErrors {
			snap.FieldErrors[k] = v
		}
	}
	if c.view == ViewRegistrationForm {
		unlocks := c.shownAt.Add(c.continueDelay)
		snap.ContinueUnlocksAt = &unlocks
	}
	return snap
}
