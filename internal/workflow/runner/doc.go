// Package runner drives a batch: it seeds progress with every work unit,
// opens one portal session, logs in and executes the units in record order
// with bounded retries, pausing between units.
package runner
