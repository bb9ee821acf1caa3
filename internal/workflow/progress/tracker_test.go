package progress

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kingrea/procedure-runner/internal/extract"
	"github.com/kingrea/procedure-runner/internal/records"
	"github.com/kingrea/procedure-runner/internal/workflow"
)

type recordingSink struct {
	snaps []Snapshot
	err   error
}

func (s *recordingSink) Persist(snap Snapshot) error {
	s.snaps = append(s.snaps, snap)
	return s.err
}

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func seededUnits() []workflow.WorkUnit {
	return workflow.Units([]records.Record{
		{Name: "ANA SILVA", Weekdays: []string{"monday", "wednesday"}},
		{Name: "BRUNO", Skip: true, Weekdays: []string{"friday"}},
	})
}

func newTestTracker(sink Sink) *Tracker {
	clock := &stepClock{now: time.Date(2025, time.June, 2, 8, 0, 0, 0, time.UTC)}
	return NewTracker(WithClock(clock.Now), WithSinks(sink), WithRunID("run-1"))
}

func TestTrackerKeepsBucketsReconciledAfterEveryCall(t *testing.T) {
	sink := &recordingSink{}
	tracker := newTestTracker(sink)
	units := seededUnits()
	tracker.Seed(units)

	tracker.StartUnit(units[0])
	tracker.RecordStep(1, "Check-in opened", true)
	tracker.AttachQuantities(extract.Quantities{Requested: intPtr(10), Authorized: intPtr(8)})
	tracker.RecordFailure(2, errors.New("timeout"))
	tracker.StartUnit(units[0])
	tracker.RecordStep(12, "Success confirmed", true)
	tracker.CompleteUnit(true, Completion{RegistrationNumber: "123456789012"})

	tracker.StartUnit(units[1])
	tracker.RecordStep(8, "Execution row not found", false)
	tracker.CompleteUnit(false, Completion{Reason: "row not found"})

	tracker.StartUnit(units[2])
	tracker.SkipUnit(units[2], "Date 06/06/2025 is after run date")

	for i, snap := range sink.snaps {
		if !snap.Accounted() {
			t.Fatalf("snapshot %d not reconciled: %+v", i, snap)
		}
	}
	final := tracker.Finish()
	if len(final.Completed) != 1 || len(final.Failed) != 1 || len(final.Skipped) != 1 || len(final.Remaining) != 0 {
		t.Fatalf("unexpected final buckets %+v", final)
	}
	if final.Completed[0].Attempts != 2 || final.Completed[0].Steps != 12 {
		t.Fatalf("retry must not double count: %+v", final.Completed[0])
	}
	if final.Failed[0].Reason != "row not found" || final.Skipped[0].Reason == "" {
		t.Fatalf("reasons not kept: %+v %+v", final.Failed[0], final.Skipped[0])
	}
	if !final.Finished || final.RunID != "run-1" {
		t.Fatalf("unexpected run metadata %+v", final)
	}
}

func TestRetryResetsStepsButKeepsUnitRemaining(t *testing.T) {
	tracker := newTestTracker(&recordingSink{})
	units := seededUnits()
	tracker.Seed(units)
	tracker.StartUnit(units[0])
	tracker.RecordStep(3, "Confirmation handled", true)
	tracker.StartUnit(units[0])
	snap := tracker.Snapshot()
	if snap.Current == nil || snap.Current.Attempt != 2 || len(snap.Current.Steps) != 0 {
		t.Fatalf("expected reset second attempt, got %+v", snap.Current)
	}
	if len(snap.Remaining) != 3 {
		t.Fatalf("in-flight unit must stay remaining, got %d", len(snap.Remaining))
	}
}

func TestCompleteAndSkipAreNoOpsWithoutUnitInFlight(t *testing.T) {
	sink := &recordingSink{}
	tracker := newTestTracker(sink)
	units := seededUnits()
	tracker.Seed(units)
	before := len(sink.snaps)
	tracker.CompleteUnit(true, Completion{})
	tracker.SkipUnit(units[0], "nothing in flight")
	tracker.StartUnit(units[0])
	tracker.SkipUnit(units[1], "not the unit in flight")
	snap := tracker.Snapshot()
	if snap.Done() != 0 {
		t.Fatalf("expected nothing retired, got %+v", snap)
	}
	if len(sink.snaps) != before+1 {
		t.Fatalf("no-ops must not publish, got %d snapshots", len(sink.snaps)-before)
	}
}

func TestRetiredUnitsCannotRestart(t *testing.T) {
	tracker := newTestTracker(&recordingSink{})
	units := seededUnits()
	tracker.Seed(units)
	tracker.StartUnit(units[0])
	tracker.CompleteUnit(true, Completion{})
	tracker.StartUnit(units[0])
	tracker.CompleteUnit(true, Completion{})
	snap := tracker.Snapshot()
	if len(snap.Completed) != 1 || !snap.Accounted() {
		t.Fatalf("unit counted twice: %+v", snap)
	}
}

func TestFailedOutcomeFallsBackToLastError(t *testing.T) {
	tracker := newTestTracker(&recordingSink{})
	units := seededUnits()
	tracker.Seed(units)
	tracker.StartUnit(units[0])
	tracker.RecordFailure(10, errors.New(`operator "X" not found`))
	tracker.CompleteUnit(false, Completion{})
	failed := tracker.Snapshot().Failed
	if len(failed) != 1 || !strings.Contains(failed[0].Reason, "operator") || failed[0].Steps != 10 {
		t.Fatalf("unexpected failure %+v", failed)
	}
}

func TestSinkErrorsAreNotFatal(t *testing.T) {
	sink := &recordingSink{err: errors.New("disk full")}
	tracker := newTestTracker(sink)
	tracker.Seed(seededUnits())
	if tracker.Snapshot().Total != 3 {
		t.Fatalf("tracker must keep working when a sink fails")
	}
}

func TestRepositoryRoundTrip(t *testing.T) {
	repo := NewRepository(filepath.Join(t.TempDir(), "state", "progress.json"))
	if _, err := repo.Load(); !errors.Is(err, ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
	tracker := newTestTracker(repo)
	tracker.Seed(seededUnits())
	tracker.StartUnit(seededUnits()[0])
	loaded, err := repo.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Total != 3 || loaded.Current == nil || loaded.Current.Name != "ANA SILVA" {
		t.Fatalf("unexpected snapshot %+v", loaded)
	}
}

func intPtr(v int) *int { return &v }
