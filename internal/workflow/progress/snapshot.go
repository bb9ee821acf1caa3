package progress

import (
	"time"

	"github.com/kingrea/procedure-runner/internal/extract"
)

// TotalSteps is the number of steps of the per-unit procedure.
const TotalSteps = 13

// StepOutcome records one reported step of the unit in flight.
type StepOutcome struct {
	Index int       `json:"index"`
	Label string    `json:"label"`
	OK    bool      `json:"ok"`
	At    time.Time `json:"at"`
}

// UnitRef identifies a seeded unit without its outcome.
type UnitRef struct {
	Key         string `json:"key"`
	RecordIndex int    `json:"record_index"`
	Name        string `json:"name"`
	Slot        string `json:"slot"`
	Skip        bool   `json:"skip,omitempty"`
}

// Current is the unit in flight.
type Current struct {
	UnitRef
	Attempt    int                 `json:"attempt"`
	Step       int                 `json:"step"`
	LastLabel  string              `json:"last_label,omitempty"`
	LastOK     bool                `json:"last_ok"`
	Steps      []StepOutcome       `json:"steps,omitempty"`
	Quantities *extract.Quantities `json:"quantities,omitempty"`
	LastError  string              `json:"last_error,omitempty"`
	StartedAt  time.Time           `json:"started_at"`
}

// Outcome is a retired unit. Step details are discarded on retirement; only
// the count and the last label survive.
type Outcome struct {
	UnitRef
	Attempts           int                 `json:"attempts,omitempty"`
	Steps              int                 `json:"steps"`
	LastLabel          string              `json:"last_label,omitempty"`
	RegistrationNumber string              `json:"registration_number,omitempty"`
	RealizationDate    string              `json:"realization_date,omitempty"`
	Reason             string              `json:"reason,omitempty"`
	Quantities         *extract.Quantities `json:"quantities,omitempty"`
	StartedAt          time.Time           `json:"started_at,omitempty"`
	FinishedAt         time.Time           `json:"finished_at"`
	Duration           time.Duration       `json:"duration"`
}

// Snapshot is the reconciled view of a run.
type Snapshot struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Elapsed   time.Duration `json:"elapsed"`
	Total     int           `json:"total"`
	Completed []Outcome     `json:"completed"`
	Failed    []Outcome     `json:"failed"`
	Skipped   []Outcome     `json:"skipped"`
	Remaining []UnitRef     `json:"remaining"`
	Current   *Current      `json:"current,omitempty"`
	Finished  bool          `json:"finished"`
}

// Accounted reports whether every seeded unit sits in exactly one bucket.
func (s Snapshot) Accounted() bool {
	return len(s.Completed)+len(s.Failed)+len(s.Skipped)+len(s.Remaining) == s.Total
}

// Done counts retired units.
func (s Snapshot) Done() int {
	return len(s.Completed) + len(s.Failed) + len(s.Skipped)
}

// Completion carries the details reported when a unit is retired.
type Completion struct {
	RegistrationNumber string
	RealizationDate    string
	Reason             string
}
