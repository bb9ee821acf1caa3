// Package records loads the patient list a run operates on and converts the
// spreadsheet export maintained by the clinic into that format.
package records
