package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kingrea/procedure-runner/internal/driver"
	"github.com/kingrea/procedure-runner/internal/extract"
	"github.com/kingrea/procedure-runner/internal/workflow"
	"github.com/kingrea/procedure-runner/internal/workflow/progress"
	"github.com/kingrea/procedure-runner/internal/workflow/retry"
)

// RowLookupRetries bounds how often the execution row lookup refreshes the
// authorization data and looks again after a miss.
const RowLookupRetries = 1

// MinJustificationProbe is the shortest wait that tells a missing
// justification field apart from one that is still loading.
const MinJustificationProbe = 5 * time.Second

// ReasonRowNotFound is the failure reason when no guide is in execution.
const ReasonRowNotFound = "row not found"

var (
	// ErrOperatorNotFound means the operator list has no entry for the
	// assigned operator, or no operator was assigned at all.
	ErrOperatorNotFound = errors.New("engine: operator not found")
	// ErrUnexpectedMessage means the portal answered with a message outside
	// the known categories.
	ErrUnexpectedMessage = errors.New("engine: unexpected portal message")
	// ErrMissingControl means a required control never became visible.
	ErrMissingControl = errors.New("engine: control not visible")
)

// Reporter receives unit and step progress. *progress.Tracker implements it.
type Reporter interface {
	StartUnit(workflow.WorkUnit)
	RecordStep(index int, label string, ok bool)
	AttachQuantities(extract.Quantities)
	RecordFailure(step int, err error)
	CompleteUnit(ok bool, extra progress.Completion)
	SkipUnit(unit workflow.WorkUnit, reason string)
}

// Journal receives entries needing manual follow-up. *logbook.Logbook
// implements it.
type Journal interface {
	Warn(format string, args ...any) error
}

// Credentials authenticate the portal session.
type Credentials struct {
	Clinic   string
	User     string
	Password string
}

// Settings are the tunables of the procedure.
type Settings struct {
	BaseURL                    string
	Credentials                Credentials
	Timeout                    time.Duration
	JustificationProbe         time.Duration
	ConfirmationTimeout        time.Duration
	JustificationCode          string
	BiometricJustificationCode string
	DefaultOperator            string
	ScreenshotOnError          bool
	DumpOnError                bool
}

func (s Settings) withDefaults() Settings {
	if s.Timeout <= 0 {
		s.Timeout = driver.DefaultTimeout
	}
	if s.JustificationProbe < MinJustificationProbe {
		s.JustificationProbe = MinJustificationProbe
	}
	if s.ConfirmationTimeout <= 0 {
		s.ConfirmationTimeout = 10 * time.Second
	}
	if s.JustificationCode == "" {
		s.JustificationCode = "100"
	}
	if s.BiometricJustificationCode == "" {
		s.BiometricJustificationCode = "200"
	}
	return s
}

// Status is the terminal state a unit reached without an error.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Outcome describes how Execute retired a unit.
type Outcome struct {
	Status             Status
	Reason             string
	CrossCoverage      bool
	RegistrationNumber string
	RealizationDate    string
	Quantities         extract.Quantities
}

// StepError carries the step a unit failed at.
type StepError struct {
	Step  int
	Label string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("engine: step %d (%s): %v", e.Step, e.Label, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Engine executes units one at a time through a PageDriver.
type Engine struct {
	page     driver.PageDriver
	reporter Reporter
	journal  Journal
	settings Settings
	log      zerolog.Logger
	clock    func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithSleeper replaces the pause used between page interactions.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithJournal records unrecognised questions for manual follow-up.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// New wires an engine to the page driver and the progress reporter.
func New(page driver.PageDriver, reporter Reporter, settings Settings, opts ...Option) (*Engine, error) {
	if page == nil {
		return nil, fmt.Errorf("workflow engine: page driver is required")
	}
	if reporter == nil {
		return nil, fmt.Errorf("workflow engine: progress reporter is required")
	}
	e := &Engine{
		page:     page,
		reporter: reporter,
		settings: settings.withDefaults(),
		log:      zerolog.Nop(),
		clock:    time.Now,
		sleep:    retry.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Settings returns the effective settings.
func (e *Engine) Settings() Settings { return e.settings }

func (e *Engine) now() time.Time {
	return e.clock()
}

func (e *Engine) pause(ctx context.Context, d time.Duration) error {
	return e.sleep(ctx, d)
}

// require waits for loc and turns absence into an error.
func (e *Engine) require(ctx context.Context, loc driver.Locator, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = e.settings.Timeout
	}
	ok, err := e.page.WaitFor(ctx, loc, timeout)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s after %s", ErrMissingControl, loc, timeout)
	}
	return nil
}

func (e *Engine) clickThenRequire(ctx context.Context, click, want driver.Locator) error {
	if err := e.page.Click(ctx, click); err != nil {
		return err
	}
	return e.require(ctx, want, 0)
}
