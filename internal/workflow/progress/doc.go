// Package progress keeps the run-wide accounting of work units. The tracker
// owns the completed, failed, skipped and remaining buckets plus the unit in
// flight, and republishes a full snapshot to its sinks after every change so
// the run can be followed from outside the process.
package progress
