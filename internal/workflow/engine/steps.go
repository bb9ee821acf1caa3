package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kingrea/procedure-runner/internal/driver"
	"github.com/kingrea/procedure-runner/internal/extract"
	"github.com/kingrea/procedure-runner/internal/workflow"
	"github.com/kingrea/procedure-runner/internal/workflow/progress"
	"github.com/kingrea/procedure-runner/internal/workflow/window"
)

const (
	operatorListTimeout = 10 * time.Second
	servicesTimeout     = 5 * time.Second
	confirmationPoll    = 500 * time.Millisecond
)

var digitalReleasePattern = regexp.MustCompile(`(?i)Liberação\s+Digital`)

// Login opens the portal and authenticates. An interstitial "Liberação
// Digital" screen is dismissed when present; failing to do so is logged only.
func (e *Engine) Login(ctx context.Context) error {
	e.log.Info().Str("url", e.settings.BaseURL).Msg("Navigating to login page")
	if err := e.page.Navigate(ctx, e.settings.BaseURL); err != nil {
		return fmt.Errorf("engine: login: %w", err)
	}
	creds := e.settings.Credentials
	fields := []struct {
		loc   driver.Locator
		value string
	}{
		{loginUser, creds.User},
		{loginClinic, creds.Clinic},
		{loginPassword, creds.Password},
	}
	for _, f := range fields {
		if err := e.page.Fill(ctx, f.loc, f.value); err != nil {
			return fmt.Errorf("engine: login: %w", err)
		}
	}
	if err := e.page.Click(ctx, loginSubmit); err != nil {
		return fmt.Errorf("engine: login: %w", err)
	}
	if err := e.pause(ctx, 2*time.Second); err != nil {
		return fmt.Errorf("engine: login: %w", err)
	}
	if err := e.dismissDigitalRelease(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("engine: login: %w", ctx.Err())
		}
		e.log.Error().Err(err).Msg("Could not check for digital release screen")
	}
	e.log.Info().Msg("Login completed")
	return nil
}

func (e *Engine) dismissDigitalRelease(ctx context.Context) error {
	res, err := e.page.Evaluate(ctx, driver.Query{Kind: driver.QueryBodyText})
	if err != nil {
		return err
	}
	if !digitalReleasePattern.MatchString(res.Text) {
		e.log.Debug().Msg("Digital release screen not shown")
		return nil
	}
	e.log.Info().Msg("Dismissing digital release screen")
	return e.page.Click(ctx, loginCancel)
}

// execution is the state of one Execute call.
type execution struct {
	*Engine
	unit  workflow.WorkUnit
	today time.Time
	step  int
	label string
}

func (x *execution) begin(step int, label string) {
	x.step = step
	x.label = label
	x.log.Info().Str("unit", x.unit.Label()).Int("step", step).Msg(label)
}

func (x *execution) done(label string) {
	x.reporter.RecordStep(x.step, label, true)
}

// Execute runs the procedure for one unit. Expected branches (row not found,
// slot outside the window) retire the unit and return a nil error; any other
// failure is recorded as a failed attempt and returned as a *StepError with
// the unit left in flight for the caller to retry or retire.
func (e *Engine) Execute(ctx context.Context, unit workflow.WorkUnit) (Outcome, error) {
	x := &execution{Engine: e, unit: unit, today: e.now()}
	e.reporter.StartUnit(unit)
	e.log.Info().Str("unit", unit.Label()).Str("key", unit.Key()).Msg("Processing unit")

	out, err := x.run(ctx)
	if err != nil {
		stepErr := &StepError{Step: x.step, Label: x.label, Err: err}
		e.reporter.RecordFailure(x.step, err)
		e.log.Error().Err(err).Str("unit", unit.Label()).Int("step", x.step).Msg("Unit attempt failed")
		e.captureFailure(ctx, unit)
		return Outcome{}, stepErr
	}
	return out, nil
}

func (x *execution) run(ctx context.Context) (Outcome, error) {
	rec := x.unit.Record
	var out Outcome

	x.begin(1, "Opening check-in and registering without card")
	if err := x.page.Click(ctx, checkInMenu); err != nil {
		return out, err
	}
	if err := x.require(ctx, noCardButton, 0); err != nil {
		return out, err
	}
	if err := x.clickThenRequire(ctx, noCardButton, noCardDialog); err != nil {
		return out, err
	}
	x.done("Checkin accessed and Register Without Card clicked")

	x.begin(2, "Filling card number and justification")
	crossCoverage, err := x.registerCard(ctx, rec.Card)
	if err != nil {
		return out, err
	}
	out.CrossCoverage = crossCoverage
	if crossCoverage {
		x.done("Card number filled (cross-coverage, no justification needed)")
	} else {
		x.done("Card number and justification filled")
	}

	x.begin(3, "Handling confirmation dialog")
	response, err := x.awaitConfirmation(ctx)
	if err != nil {
		return out, err
	}
	if err := x.page.Click(ctx, confirmButton); err != nil {
		return out, err
	}
	if response == ResponseCrossCoverageReleased {
		x.done("Confirmation dialog handled (cross-coverage)")
	} else {
		x.done("Confirmation dialog handled")
	}

	if rec.Skip {
		x.log.Info().Str("unit", x.unit.Label()).Msg("Record already registered, skipping biometrics and validation")
		x.step = 6
		x.reporter.RecordStep(6, "Skipped biometric/validation - already registered", true)
	} else {
		if err := x.biometrics(ctx); err != nil {
			return out, err
		}
	}

	x.begin(7, "Loading authorization data")
	if err := x.loadAuthorizations(ctx); err != nil {
		return out, err
	}
	x.done("Authorization data loaded")

	x.begin(8, "Locating execution row")
	row, err := x.findExecutionRow(ctx)
	if err != nil {
		return out, err
	}
	if !row.Found {
		x.log.Warn().Str("unit", x.unit.Label()).Msg("Execution row not found, giving up on unit")
		x.reporter.RecordStep(8, "Execution row not found", false)
		x.reporter.CompleteUnit(false, progress.Completion{Reason: ReasonRowNotFound})
		out.Status = StatusFailed
		out.Reason = ReasonRowNotFound
		return out, nil
	}
	out.Quantities = row.Quantities
	x.done("Execution row found and clicked")
	if row.Quantities.Known() {
		x.log.Info().Str("unit", x.unit.Label()).Str("quantities", row.Quantities.String()).Msg("Authorization quantities")
		x.reporter.AttachQuantities(row.Quantities)
	}

	x.begin(9, "Filling procedure date")
	res, err := window.ResolveAndValidate(x.unit.Slot, x.today)
	if err != nil {
		return out, err
	}
	if !res.Valid {
		x.log.Warn().Str("unit", x.unit.Label()).Str("reason", string(res.Reason)).Msg(res.Message)
		x.reporter.SkipUnit(x.unit, res.Message)
		out.Status = StatusSkipped
		out.Reason = res.Message
		return out, nil
	}
	if err := x.require(ctx, dateInput, 0); err != nil {
		return out, err
	}
	if err := x.pause(ctx, 500*time.Millisecond); err != nil {
		return out, err
	}
	if err := x.page.Fill(ctx, dateInput, res.Formatted()); err != nil {
		return out, err
	}
	x.done("Procedure date filled")

	x.begin(10, "Selecting operator")
	if err := x.selectOperator(ctx, rec.Operator); err != nil {
		return out, err
	}
	x.done("Operator selected")

	x.begin(11, "Executing procedure")
	if err := x.require(ctx, executeButton, 0); err != nil {
		return out, err
	}
	if err := x.pause(ctx, 500*time.Millisecond); err != nil {
		return out, err
	}
	if err := x.page.Click(ctx, executeButton); err != nil {
		return out, err
	}
	x.done("Execute button clicked")

	x.begin(12, "Handling success confirmation")
	number, err := x.confirmExecution(ctx)
	if err != nil {
		return out, err
	}
	out.RegistrationNumber = number
	x.done("Success confirmation handled")

	x.begin(13, "Capturing realization date")
	out.RealizationDate = x.realizationDate(ctx)
	if out.RealizationDate != "" {
		x.done("Realization date captured: " + out.RealizationDate)
	}

	x.reporter.CompleteUnit(true, progress.Completion{
		RegistrationNumber: out.RegistrationNumber,
		RealizationDate:    out.RealizationDate,
	})
	out.Status = StatusCompleted
	x.log.Info().Str("unit", x.unit.Label()).Str("registration", out.RegistrationNumber).Msg("Unit completed")
	return out, nil
}

// registerCard fills the card and reports whether the portal treated it as
// cross-coverage, which is known only once the justification probe expires.
func (x *execution) registerCard(ctx context.Context, card string) (bool, error) {
	if err := x.page.Fill(ctx, cardInput, card); err != nil {
		return false, err
	}
	if err := x.page.Blur(ctx, cardInput); err != nil {
		return false, err
	}
	if err := x.pause(ctx, time.Second); err != nil {
		return false, err
	}
	present, err := x.page.WaitFor(ctx, justificationSelect, x.settings.JustificationProbe)
	if err != nil {
		return false, err
	}
	if !present {
		x.log.Info().Dur("probe", x.settings.JustificationProbe).Msg("Justification field absent, treating as cross-coverage")
		return true, x.page.Click(ctx, crossCoverageOK)
	}
	if err := x.page.SelectOption(ctx, justificationSelect, x.settings.JustificationCode); err != nil {
		return false, err
	}
	return false, x.page.Click(ctx, justificationSend)
}

func (x *execution) awaitConfirmation(ctx context.Context) (Response, error) {
	deadline := x.now().Add(x.settings.ConfirmationTimeout)
	for {
		res, err := x.page.Evaluate(ctx, driver.Query{Kind: driver.QueryBodyText})
		if err != nil {
			return ResponseUnknown, err
		}
		if r := Classify(res.Text); r.Confirmation() {
			x.log.Info().Str("response", r.String()).Msg("Confirmation detected")
			return r, nil
		}
		if !x.now().Before(deadline) {
			return ResponseUnknown, fmt.Errorf("%w: no confirmation message after %s", driver.ErrTimeout, x.settings.ConfirmationTimeout)
		}
		if err := x.pause(ctx, confirmationPoll); err != nil {
			return ResponseUnknown, err
		}
	}
}

func (x *execution) biometrics(ctx context.Context) error {
	x.begin(4, "Registering without biometrics")
	if err := x.clickThenRequire(ctx, noBioButton, noBioDialog); err != nil {
		return err
	}
	x.done("Register Without Biometrics clicked")

	x.begin(5, "Filling biometric justification")
	if err := x.page.SelectOption(ctx, bioSelect, x.settings.BiometricJustificationCode); err != nil {
		return err
	}
	if err := x.page.Click(ctx, bioSend); err != nil {
		return err
	}
	x.done("Biometric justification filled")

	x.begin(6, "Answering validation questions")
	if err := x.answerQuestions(ctx); err != nil {
		return err
	}
	x.done("Validation questions answered")
	return nil
}

var answerInputs = []driver.Locator{firstAnswer, secondAnswer, thirdAnswer}

func (x *execution) answerQuestions(ctx context.Context) error {
	if err := x.require(ctx, firstAnswer, 0); err != nil {
		return err
	}
	res, err := x.page.Evaluate(ctx, driver.Query{Kind: driver.QueryQuestions})
	if err != nil {
		return err
	}
	x.log.Info().Strs("questions", res.Questions).Msg("Validation questions")
	for i, question := range res.Questions {
		answer, field := AnswerQuestion(question, x.unit.Record, x.today)
		if field == FieldUnknown {
			x.log.Warn().Str("question", question).Str("unit", x.unit.Label()).Msg("Unrecognised validation question")
			if x.journal != nil {
				if err := x.journal.Warn("unrecognised validation question for %s: %q", x.unit.Label(), question); err != nil {
					x.log.Error().Err(err).Msg("Could not append follow-up")
				}
			}
		}
		if i >= len(answerInputs) || answer == "" {
			continue
		}
		if err := x.page.Fill(ctx, answerInputs[i], answer); err != nil {
			return err
		}
	}
	return x.page.Click(ctx, validationSubmit)
}

func (x *execution) loadAuthorizations(ctx context.Context) error {
	res, err := x.page.Evaluate(ctx, driver.Query{Kind: driver.QueryModalVisible, Target: contactModal})
	if err != nil {
		return err
	}
	if res.Visible {
		x.log.Info().Msg("Dismissing contact update modal")
		if err := x.page.Click(ctx, contactCancel); err != nil {
			return err
		}
		if err := x.pause(ctx, time.Second); err != nil {
			return err
		}
	}
	return x.page.Click(ctx, refreshIcon)
}

// findExecutionRow looks for the guide in execution, refreshing the grid up
// to RowLookupRetries times. A failed refresh ends the search as not found.
func (x *execution) findExecutionRow(ctx context.Context) (extract.ExecutionRow, error) {
	for attempt := 0; ; attempt++ {
		if err := x.require(ctx, guidesTable, 0); err != nil {
			return extract.ExecutionRow{}, err
		}
		if err := x.pause(ctx, time.Second); err != nil {
			return extract.ExecutionRow{}, err
		}
		res, err := x.page.Evaluate(ctx, driver.Query{Kind: driver.QueryExecutionRow})
		if err != nil {
			return extract.ExecutionRow{}, err
		}
		if res.Row.Found {
			if err := x.page.Click(ctx, actionLink(res.Row.Row)); err != nil {
				return extract.ExecutionRow{}, err
			}
			return res.Row, nil
		}
		if attempt >= RowLookupRetries {
			return extract.ExecutionRow{}, nil
		}
		x.log.Info().Msg("Execution row not found, refreshing authorization data")
		if err := x.page.Click(ctx, refreshIcon); err != nil {
			if ctx.Err() != nil {
				return extract.ExecutionRow{}, ctx.Err()
			}
			x.log.Error().Err(err).Msg("Could not refresh authorization data")
			return extract.ExecutionRow{}, nil
		}
		if err := x.pause(ctx, 2*time.Second); err != nil {
			return extract.ExecutionRow{}, err
		}
	}
}

func (x *execution) selectOperator(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(x.settings.DefaultOperator)
	}
	if name == "" {
		return fmt.Errorf("%w: no operator assigned to %s", ErrOperatorNotFound, x.unit.Record.Name)
	}
	if err := x.page.Click(ctx, operatorOpen.Nth(0)); err != nil {
		return err
	}
	if err := x.require(ctx, operatorList, operatorListTimeout); err != nil {
		return err
	}
	if err := x.pause(ctx, time.Second); err != nil {
		return err
	}
	res, err := x.page.Evaluate(ctx, driver.Query{Kind: driver.QueryOperator, Name: name})
	if err != nil {
		return err
	}
	if res.Operator < 0 {
		return fmt.Errorf("%w: %q", ErrOperatorNotFound, name)
	}
	if err := x.page.Click(ctx, operatorLinks.Nth(res.Operator)); err != nil {
		return err
	}
	return x.pause(ctx, time.Second)
}

func (x *execution) confirmExecution(ctx context.Context) (string, error) {
	if err := x.require(ctx, resultDialog, 0); err != nil {
		return "", err
	}
	if err := x.pause(ctx, time.Second); err != nil {
		return "", err
	}
	message, err := x.page.ReadText(ctx, resultMessage)
	if err != nil {
		return "", err
	}
	x.log.Info().Str("message", message).Msg("Execution result")
	if Classify(message) != ResponseExecutionSucceeded {
		return "", fmt.Errorf("%w: %q", ErrUnexpectedMessage, strings.TrimSpace(message))
	}
	number := RegistrationNumber(message)
	if err := x.page.Click(ctx, resultReturn); err != nil {
		return "", err
	}
	return number, nil
}

// realizationDate is best effort; every failure yields "".
func (x *execution) realizationDate(ctx context.Context) string {
	ok, err := x.page.WaitFor(ctx, servicesTable, servicesTimeout)
	if err != nil || !ok {
		x.log.Warn().Err(err).Msg("Services table not shown, realization date unknown")
		return ""
	}
	if err := x.pause(ctx, 500*time.Millisecond); err != nil {
		return ""
	}
	text, err := x.page.ReadText(ctx, servicesCell)
	if err != nil {
		x.log.Warn().Err(err).Msg("Could not read realization date")
		return ""
	}
	return strings.TrimSpace(text)
}

// captureFailure saves a screenshot and a page dump when enabled.
func (e *Engine) captureFailure(ctx context.Context, unit workflow.WorkUnit) {
	if ctx.Err() != nil {
		return
	}
	name := "error_" + unit.Record.Card
	if e.settings.ScreenshotOnError {
		if path, err := e.page.Screenshot(ctx, name); err != nil {
			e.log.Warn().Err(err).Msg("Could not take screenshot")
		} else {
			e.log.Info().Str("path", path).Msg("Screenshot saved")
		}
	}
	if !e.settings.DumpOnError {
		return
	}
	dumper, ok := e.page.(driver.Dumper)
	if !ok {
		return
	}
	if path, err := dumper.Dump(ctx, name); err != nil {
		e.log.Warn().Err(err).Msg("Could not dump page")
	} else {
		e.log.Info().Str("path", path).Msg("Page dump saved")
	}
}

// Retryable reports whether another attempt at the unit can help. Context
// cancellation ends the run instead.
func Retryable(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
