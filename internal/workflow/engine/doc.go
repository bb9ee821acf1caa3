// Package engine runs the thirteen step check-in and execution procedure for
// a single work unit against the authorization portal. Branches are chosen
// from what the portal shows (the justification field, the confirmation
// text, the execution row) and every step is reported to the progress
// tracker as it completes.
package engine
