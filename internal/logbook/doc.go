// Package logbook appends operator follow-ups to a plain text journal that
// the watch screen tails.
package logbook
