// Package tui renders the live progress of a running batch in the terminal by
// following the snapshot the runner persists.
package tui
