package window

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the portal's date format.
const DateLayout = "02/01/2006"

var (
	// ErrInvalidWeekday is returned for names outside the weekday catalog.
	ErrInvalidWeekday = errors.New("window: invalid weekday")
	// ErrInvalidDay is returned for day-of-month slots outside 1..31.
	ErrInvalidDay = errors.New("window: invalid day of month")
)

// Reason enumerates why a resolution is not valid.
type Reason string

const (
	ReasonInvalidDayForMonth Reason = "invalid_day_for_month"
	ReasonPastMonth          Reason = "past_month"
	ReasonFutureMonth        Reason = "future_month"
	ReasonFutureDate         Reason = "future_date"
)

// Window captures the run date and the fields derived from it.
type Window struct {
	Today     time.Time
	Year      int
	Month     time.Month
	WeekStart time.Time
}

// New derives the execution window for a run date. On Sundays the week start
// is the preceding Monday so the run targets the week that just ended.
func New(today time.Time) Window {
	day := dateOnly(today)
	offset := int(day.Weekday()) - int(time.Monday)
	if day.Weekday() == time.Sunday {
		offset = 6
	}
	return Window{
		Today:     day,
		Year:      day.Year(),
		Month:     day.Month(),
		WeekStart: day.AddDate(0, 0, -offset),
	}
}

// CatchUp reports whether the run date is the designated catch-up day.
func (w Window) CatchUp() bool {
	return w.Today.Weekday() == time.Sunday
}

// Contains reports whether day falls inside the execution week.
func (w Window) Contains(day time.Time) bool {
	day = dateOnly(day)
	return !day.Before(w.WeekStart) && day.Before(w.WeekStart.AddDate(0, 0, 7))
}

// Resolution is the outcome of mapping a slot to a calendar date.
type Resolution struct {
	Slot    string
	Date    time.Time
	Valid   bool
	Reason  Reason
	Message string
	// Monthly marks day-of-month slots. They are only held to the current
	// month, never to the run date.
	Monthly bool
}

// Formatted renders the resolved date in the portal's layout.
func (r Resolution) Formatted() string {
	if r.Date.IsZero() {
		return ""
	}
	return r.Date.Format(DateLayout)
}

// WeekdayResolution is returned by ResolveWeekday.
type WeekdayResolution struct {
	Resolution
	// Offsets maps every canonical weekday name to its distance from the
	// week start.
	Offsets map[string]int
}

// Resolve maps a slot to a date. Numeric slots are days of the month,
// anything else is a weekday name.
func Resolve(slot string, today time.Time) (Resolution, error) {
	trimmed := strings.TrimSpace(slot)
	if day, err := strconv.Atoi(trimmed); err == nil {
		return ResolveMonthDay(day, today)
	}
	res, err := ResolveWeekday(trimmed, today)
	if err != nil {
		return Resolution{}, err
	}
	return res.Resolution, nil
}

// ResolveWeekday computes the date of the named weekday inside the current
// execution week.
func ResolveWeekday(name string, today time.Time) (WeekdayResolution, error) {
	weekday, ok := ParseWeekday(name)
	if !ok {
		return WeekdayResolution{}, fmt.Errorf("%w: %q", ErrInvalidWeekday, name)
	}
	w := New(today)
	offsets := make(map[string]int, len(weekOrder))
	for i, day := range weekOrder {
		offsets[day] = i
	}
	return WeekdayResolution{
		Resolution: Resolution{
			Slot:  weekday,
			Date:  w.WeekStart.AddDate(0, 0, offsets[weekday]),
			Valid: true,
		},
		Offsets: offsets,
	}, nil
}

// ResolveMonthDay computes the date of a day number in the current month.
func ResolveMonthDay(day int, today time.Time) (Resolution, error) {
	if day < 1 || day > 31 {
		return Resolution{}, fmt.Errorf("%w: %d", ErrInvalidDay, day)
	}
	w := New(today)
	target := time.Date(w.Year, w.Month, day, 0, 0, 0, 0, w.Today.Location())
	slot := strconv.Itoa(day)
	if target.Month() != w.Month {
		return Resolution{
			Slot:    slot,
			Monthly: true,
			Reason:  ReasonInvalidDayForMonth,
			Message: fmt.Sprintf("Day %d does not exist in current month", day),
		}, nil
	}
	return Resolution{Slot: slot, Date: target, Valid: true, Monthly: true}, nil
}

// Validate fails closed: a resolution is only valid when its date lies in
// today's month. Weekday resolutions must also not be after today, except
// inside the execution week on the Sunday catch-up run.
func Validate(res Resolution, today time.Time) Resolution {
	if !res.Valid || res.Date.IsZero() {
		if res.Reason == "" {
			res.Valid = false
			res.Reason = ReasonInvalidDayForMonth
			res.Message = "Invalid date information"
		}
		return res
	}
	w := New(today)
	target := dateOnly(res.Date)
	if target.Year() != w.Year || target.Month() != w.Month {
		res.Valid = false
		res.Reason = ReasonFutureMonth
		if target.Before(w.Today) {
			res.Reason = ReasonPastMonth
		}
		res.Message = fmt.Sprintf("Date must be in current month (%s): %s", w.Today.Format("01/2006"), res.Formatted())
		return res
	}
	if !res.Monthly && target.After(w.Today) && !(w.CatchUp() && w.Contains(target)) {
		res.Valid = false
		res.Reason = ReasonFutureDate
		res.Message = fmt.Sprintf("Date %s is after run date %s", res.Formatted(), w.Today.Format(DateLayout))
		return res
	}
	res.Valid = true
	res.Reason = ""
	res.Message = ""
	return res
}

// ResolveAndValidate is the composition the engine and runner use.
func ResolveAndValidate(slot string, today time.Time) (Resolution, error) {
	res, err := Resolve(slot, today)
	if err != nil {
		return Resolution{}, err
	}
	return Validate(res, today), nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
