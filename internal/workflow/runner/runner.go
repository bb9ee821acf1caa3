package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kingrea/procedure-runner/internal/driver"
	"github.com/kingrea/procedure-runner/internal/records"
	"github.com/kingrea/procedure-runner/internal/workflow"
	"github.com/kingrea/procedure-runner/internal/workflow/engine"
	"github.com/kingrea/procedure-runner/internal/workflow/progress"
	"github.com/kingrea/procedure-runner/internal/workflow/retry"
	"github.com/kingrea/procedure-runner/internal/workflow/window"
)

// Session is a browser session owned by the runner for the whole batch.
type Session interface {
	driver.PageDriver
	Close() error
}

// Launcher opens the browser session.
type Launcher func(ctx context.Context) (Session, error)

// Executor runs single units on a logged in session. *engine.Engine
// implements it.
type Executor interface {
	Login(ctx context.Context) error
	Execute(ctx context.Context, unit workflow.WorkUnit) (engine.Outcome, error)
}

// ExecutorFactory binds an executor to the opened session.
type ExecutorFactory func(page driver.PageDriver) (Executor, error)

// Journal records failures needing manual follow-up. *logbook.Logbook
// implements it.
type Journal interface {
	Error(format string, args ...any) error
}

// Settings bound retries and pacing.
type Settings struct {
	RetryAttempts int
	RetryDelay    time.Duration
	UnitPause     time.Duration
}

// Runner executes batches of records.
type Runner struct {
	launch   Launcher
	executor ExecutorFactory
	tracker  *progress.Tracker
	settings Settings
	journal  Journal
	log      zerolog.Logger
	clock    func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customizes the runner instance.
type Option func(*Runner)

// WithClock injects the run date source. The run date gates which slots are
// executed.
func WithClock(clock func() time.Time) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithSleeper replaces the pause between units and retries.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithJournal records units that failed every attempt.
func WithJournal(j Journal) Option {
	return func(r *Runner) { r.journal = j }
}

// New creates a runner.
func New(launch Launcher, executor ExecutorFactory, tracker *progress.Tracker, settings Settings, opts ...Option) (*Runner, error) {
	if launch == nil {
		return nil, errors.New("runner: launcher is required")
	}
	if executor == nil {
		return nil, errors.New("runner: executor factory is required")
	}
	if tracker == nil {
		return nil, errors.New("runner: progress tracker is required")
	}
	if settings.RetryAttempts < 1 {
		settings.RetryAttempts = 1
	}
	r := &Runner{
		launch:   launch,
		executor: executor,
		tracker:  tracker,
		settings: settings,
		log:      zerolog.Nop(),
		clock:    time.Now,
		sleep:    retry.Sleep,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run executes every unit of list. It returns an error only when the batch
// could not start (session or login); unit failures are reported through the
// tracker. Cancelling ctx stops the batch before the next unit.
func (r *Runner) Run(ctx context.Context, list []records.Record) (progress.Snapshot, error) {
	units := workflow.Units(list)
	for _, rec := range list {
		if len(rec.Slots()) == 0 {
			r.log.Warn().Str("record", rec.Name).Msg("Record has no slots configured")
		}
	}
	r.tracker.Seed(units)
	r.log.Info().Int("records", len(list)).Int("units", len(units)).Msg("Starting batch")

	session, err := r.launch(ctx)
	if err != nil {
		return r.tracker.Finish(), fmt.Errorf("runner: open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			r.log.Error().Err(err).Msg("Closing browser session failed")
		}
	}()

	exec, err := r.executor(session)
	if err != nil {
		return r.tracker.Finish(), fmt.Errorf("runner: %w", err)
	}
	if err := exec.Login(ctx); err != nil {
		return r.tracker.Finish(), fmt.Errorf("runner: %w", err)
	}

	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			r.log.Warn().Err(err).Int("left", len(units)-i).Msg("Batch interrupted")
			break
		}
		if !r.admit(unit) {
			continue
		}
		r.runUnit(ctx, exec, unit)
		if i < len(units)-1 {
			if err := r.sleep(ctx, r.settings.UnitPause); err != nil {
				r.log.Warn().Err(err).Msg("Batch interrupted")
				break
			}
		}
	}

	snap := r.tracker.Finish()
	r.log.Info().
		Int("completed", len(snap.Completed)).
		Int("failed", len(snap.Failed)).
		Int("skipped", len(snap.Skipped)).
		Int("remaining", len(snap.Remaining)).
		Msg("Batch finished")
	return snap, nil
}

// admit checks the slot date before touching the portal. Units outside the
// window are retired as skipped.
func (r *Runner) admit(unit workflow.WorkUnit) bool {
	res, err := window.ResolveAndValidate(unit.Slot, r.clock())
	reason := res.Message
	if err != nil {
		reason = err.Error()
	} else if res.Valid {
		return true
	}
	r.log.Info().Str("unit", unit.Label()).Str("reason", reason).Msg("Skipping unit")
	r.tracker.StartUnit(unit)
	r.tracker.SkipUnit(unit, reason)
	return false
}

func (r *Runner) runUnit(ctx context.Context, exec Executor, unit workflow.WorkUnit) {
	policy := retry.Policy{
		Attempts: r.settings.RetryAttempts,
		Delay:    r.settings.RetryDelay,
		Sleep:    r.sleep,
		OnRetry: func(attempt int, err error) {
			r.log.Warn().Err(err).Str("unit", unit.Label()).Int("attempt", attempt).Msg("Retrying unit")
		},
	}
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		_, err := exec.Execute(ctx, unit)
		if err != nil && !engine.Retryable(err) {
			return retry.Stop(err)
		}
		return err
	})
	if err == nil {
		return
	}
	// The unit is still in flight after its last failed attempt.
	r.tracker.CompleteUnit(false, progress.Completion{Reason: err.Error()})
	r.log.Error().Err(err).Str("unit", unit.Label()).Msg("Unit failed")
	if r.journal != nil {
		if jerr := r.journal.Error("%s failed: %v", unit.Label(), err); jerr != nil {
			r.log.Error().Err(jerr).Msg("Could not append follow-up")
		}
	}
}
