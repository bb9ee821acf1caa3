package workflow

import (
	"fmt"

	"github.com/kingrea/procedure-runner/internal/records"
)

// Slot is a canonical weekday name or a day of the month in decimal.
type Slot = string

// WorkUnit is one (record, slot) pair executed at most once per run.
type WorkUnit struct {
	RecordIndex int
	Record      records.Record
	Slot        Slot
}

// Key identifies the unit within a run.
func (u WorkUnit) Key() string {
	return fmt.Sprintf("%d:%s", u.RecordIndex, u.Slot)
}

// Label renders the unit for humans.
func (u WorkUnit) Label() string {
	return fmt.Sprintf("%s (%s)", u.Record.Name, u.Slot)
}

// Units expands records into work units, record order then slot order. A
// slot listed twice for a record (a numeric weekday entry repeating a day of
// the month, say) yields one unit.
func Units(list []records.Record) []WorkUnit {
	var units []WorkUnit
	seen := make(map[string]struct{})
	for i, rec := range list {
		for _, slot := range rec.Slots() {
			unit := WorkUnit{RecordIndex: i, Record: rec, Slot: slot}
			if _, dup := seen[unit.Key()]; dup {
				continue
			}
			seen[unit.Key()] = struct{}{}
			units = append(units, unit)
		}
	}
	return units
}
