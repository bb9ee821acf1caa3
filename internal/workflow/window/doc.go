// Package window resolves record slots (weekday names or days of the month)
// to calendar dates and decides whether a resolved date falls inside the
// execution window accepted by the portal: the current month, and never in
// the future unless the run happens on a Sunday, which catches up the week
// that just ended.
package window
