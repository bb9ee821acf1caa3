package progress

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kingrea/procedure-runner/internal/extract"
	"github.com/kingrea/procedure-runner/internal/workflow"
)

// Sink receives every snapshot the tracker publishes.
type Sink interface {
	Persist(Snapshot) error
}

// Tracker is the single writer of run progress. Methods are safe for
// concurrent use although a run drives it from one goroutine.
type Tracker struct {
	mu      sync.Mutex
	clock   func() time.Time
	log     zerolog.Logger
	sinks   []Sink
	runID   string
	started time.Time

	seeded    []UnitRef
	index     map[string]int
	retired   map[string]struct{}
	completed []Outcome
	failed    []Outcome
	skipped   []Outcome
	current   *Current
	finished  bool
}

// Option customizes the tracker instance.
type Option func(*Tracker)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// WithLogger sets the logger used for sink failures and misuse warnings.
func WithLogger(log zerolog.Logger) Option {
	return func(t *Tracker) { t.log = log }
}

// WithSinks adds snapshot destinations.
func WithSinks(sinks ...Sink) Option {
	return func(t *Tracker) {
		for _, s := range sinks {
			if s != nil {
				t.sinks = append(t.sinks, s)
			}
		}
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(t *Tracker) {
		if id != "" {
			t.runID = id
		}
	}
}

// NewTracker creates an empty tracker. Call Seed before starting units.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		clock:   time.Now,
		log:     zerolog.Nop(),
		runID:   uuid.NewString(),
		index:   map[string]int{},
		retired: map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.started = t.clock()
	return t
}

// RunID identifies this run in persisted snapshots.
func (t *Tracker) RunID() string { return t.runID }

// Seed replaces the work list and clears every bucket.
func (t *Tracker) Seed(units []workflow.WorkUnit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seeded = t.seeded[:0]
	t.index = make(map[string]int, len(units))
	t.retired = map[string]struct{}{}
	t.completed, t.failed, t.skipped = nil, nil, nil
	t.current = nil
	t.finished = false
	for _, unit := range units {
		t.addLocked(unit)
	}
	t.publishLocked()
}

// StartUnit marks unit as in flight. Starting the unit already in flight is a
// retry: its steps reset and the attempt counter grows.
func (t *Tracker) StartUnit(unit workflow.WorkUnit) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := unit.Key()
	if _, done := t.retired[key]; done {
		t.log.Warn().Str("unit", key).Msg("Ignoring start of a retired unit")
		return
	}
	if _, ok := t.index[key]; !ok {
		t.log.Warn().Str("unit", key).Msg("Starting a unit that was not seeded")
		t.addLocked(unit)
	}
	now := t.clock()
	if t.current != nil && t.current.Key == key {
		t.current.Attempt++
		t.current.Step = 0
		t.current.LastLabel = ""
		t.current.LastOK = false
		t.current.Steps = nil
		t.current.Quantities = nil
		t.publishLocked()
		return
	}
	if t.current != nil {
		t.log.Warn().Str("unit", t.current.Key).Str("next", key).Msg("Abandoning unit still in flight")
	}
	t.current = &Current{
		UnitRef:   t.seeded[t.index[key]],
		Attempt:   1,
		StartedAt: now,
	}
	t.publishLocked()
}

// RecordStep appends a step outcome to the unit in flight.
func (t *Tracker) RecordStep(index int, label string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return
	}
	t.current.Step = index
	t.current.LastLabel = label
	t.current.LastOK = ok
	t.current.Steps = append(t.current.Steps, StepOutcome{Index: index, Label: label, OK: ok, At: t.clock()})
	t.publishLocked()
}

// AttachQuantities stores the authorization counts read for the unit in
// flight.
func (t *Tracker) AttachQuantities(q extract.Quantities) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || !q.Known() {
		return
	}
	copied := q
	t.current.Quantities = &copied
	t.publishLocked()
}

// RecordFailure annotates the unit in flight with a failed attempt. The unit
// stays in flight; the caller decides whether to retry or retire it.
func (t *Tracker) RecordFailure(step int, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || err == nil {
		return
	}
	if step > 0 {
		t.current.Step = step
	}
	t.current.LastOK = false
	t.current.LastError = err.Error()
	t.publishLocked()
}

// CompleteUnit retires the unit in flight as completed or failed.
func (t *Tracker) CompleteUnit(ok bool, extra Completion) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return
	}
	outcome := t.retireLocked(extra)
	if ok {
		t.completed = append(t.completed, outcome)
	} else {
		if outcome.Reason == "" {
			outcome.Reason = t.current.LastError
		}
		t.failed = append(t.failed, outcome)
	}
	t.current = nil
	t.publishLocked()
}

// SkipUnit retires unit as skipped. It only acts on the unit in flight.
func (t *Tracker) SkipUnit(unit workflow.WorkUnit, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil || t.current.Key != unit.Key() {
		return
	}
	outcome := t.retireLocked(Completion{Reason: reason})
	t.skipped = append(t.skipped, outcome)
	t.current = nil
	t.publishLocked()
}

// Finish marks the run as over and publishes a final snapshot.
func (t *Tracker) Finish() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished = true
	t.publishLocked()
	return t.snapshotLocked()
}

// Snapshot returns the current reconciled view.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) addLocked(unit workflow.WorkUnit) {
	key := unit.Key()
	if _, dup := t.index[key]; dup {
		return
	}
	t.index[key] = len(t.seeded)
	t.seeded = append(t.seeded, UnitRef{
		Key:         key,
		RecordIndex: unit.RecordIndex,
		Name:        unit.Record.Name,
		Slot:        unit.Slot,
		Skip:        unit.Record.Skip,
	})
}

func (t *Tracker) retireLocked(extra Completion) Outcome {
	now := t.clock()
	cur := t.current
	t.retired[cur.Key] = struct{}{}
	return Outcome{
		UnitRef:            cur.UnitRef,
		Attempts:           cur.Attempt,
		Steps:              cur.Step,
		LastLabel:          cur.LastLabel,
		RegistrationNumber: extra.RegistrationNumber,
		RealizationDate:    extra.RealizationDate,
		Reason:             extra.Reason,
		Quantities:         cur.Quantities,
		StartedAt:          cur.StartedAt,
		FinishedAt:         now,
		Duration:           now.Sub(cur.StartedAt),
	}
}

func (t *Tracker) snapshotLocked() Snapshot {
	now := t.clock()
	remaining := make([]UnitRef, 0, len(t.seeded)-len(t.retired))
	for _, ref := range t.seeded {
		if _, done := t.retired[ref.Key]; !done {
			remaining = append(remaining, ref)
		}
	}
	snap := Snapshot{
		RunID:     t.runID,
		StartedAt: t.started,
		UpdatedAt: now,
		Elapsed:   now.Sub(t.started),
		Total:     len(t.seeded),
		Completed: append([]Outcome{}, t.completed...),
		Failed:    append([]Outcome{}, t.failed...),
		Skipped:   append([]Outcome{}, t.skipped...),
		Remaining: remaining,
		Finished:  t.finished,
	}
	if t.current != nil {
		cur := *t.current
		cur.Steps = append([]StepOutcome(nil), t.current.Steps...)
		snap.Current = &cur
	}
	return snap
}

func (t *Tracker) publishLocked() {
	if len(t.sinks) == 0 {
		return
	}
	snap := t.snapshotLocked()
	for _, sink := range t.sinks {
		if err := sink.Persist(snap); err != nil {
			t.log.Error().Err(err).Msg("Failed to persist progress snapshot")
		}
	}
}
