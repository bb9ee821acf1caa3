// Package retry re-invokes a whole unit of work a bounded number of times with
// a fixed pause between attempts.
package retry
