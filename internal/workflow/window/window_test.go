package window

import (
	"errors"
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestResolveWeekdayWithinCurrentWeek(t *testing.T) {
	wednesday := day(2025, time.June, 4)
	cases := map[string]string{
		"monday":        "02/06/2025",
		"Segunda-feira": "02/06/2025",
		"segunta":       "02/06/2025",
		"TERÇA":         "03/06/2025",
		"terca":         "03/06/2025",
		"quarta":        "04/06/2025",
		"Sábado":        "07/06/2025",
		"domingo":       "08/06/2025",
	}
	for name, want := range cases {
		res, err := ResolveWeekday(name, wednesday)
		if err != nil {
			t.Fatalf("resolve %q: %v", name, err)
		}
		if got := res.Formatted(); got != want {
			t.Fatalf("resolve %q = %s, want %s", name, got, want)
		}
		if len(res.Offsets) != 7 || res.Offsets[Monday] != 0 || res.Offsets[Sunday] != 6 {
			t.Fatalf("unexpected offsets %+v", res.Offsets)
		}
	}
}

func TestResolveWeekdayIsDeterministicAndContainsToday(t *testing.T) {
	start := day(2025, time.May, 26)
	for i := 0; i < 14; i++ {
		today := start.AddDate(0, 0, i)
		w := New(today)
		for _, name := range Weekdays() {
			first, err := ResolveWeekday(name, today)
			if err != nil {
				t.Fatalf("resolve %s: %v", name, err)
			}
			second, _ := ResolveWeekday(name, today)
			if !first.Date.Equal(second.Date) {
				t.Fatalf("resolution not deterministic for %s on %s", name, today)
			}
			if !w.Contains(first.Date) {
				t.Fatalf("%s on %s resolved outside the week: %s", name, today.Format(DateLayout), first.Formatted())
			}
			if !w.Contains(today) {
				t.Fatalf("week starting %s does not contain %s", w.WeekStart, today)
			}
		}
	}
}

func TestSundayTargetsWeekThatJustEnded(t *testing.T) {
	sunday := day(2025, time.June, 15)
	w := New(sunday)
	if got := w.WeekStart.Format(DateLayout); got != "09/06/2025" {
		t.Fatalf("expected week start 09/06/2025, got %s", got)
	}
	for _, name := range Weekdays() {
		res, err := ResolveAndValidate(name, sunday)
		if err != nil {
			t.Fatalf("resolve %s: %v", name, err)
		}
		if !res.Valid {
			t.Fatalf("expected %s valid on catch-up day, got %s (%s)", name, res.Reason, res.Message)
		}
	}
}

func TestResolveWeekdayRejectsUnknownNames(t *testing.T) {
	_, err := ResolveWeekday("someday", day(2025, time.June, 4))
	if !errors.Is(err, ErrInvalidWeekday) {
		t.Fatalf("expected ErrInvalidWeekday, got %v", err)
	}
}

func TestValidateRejectsFutureDatesOnWeekdays(t *testing.T) {
	wednesday := day(2025, time.June, 4)
	res, err := ResolveAndValidate("friday", wednesday)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Valid || res.Reason != ReasonFutureDate {
		t.Fatalf("expected future_date, got %+v", res)
	}
	res, _ = ResolveAndValidate("quarta", wednesday)
	if !res.Valid {
		t.Fatalf("expected today to be valid, got %+v", res)
	}
}

func TestValidateMonthRuleWinsOverWeekdayRule(t *testing.T) {
	cases := []struct {
		name   string
		today  time.Time
		slot   string
		reason Reason
	}{
		{name: "sunday catch-up crossing into previous month", today: day(2025, time.June, 1), slot: "monday", reason: ReasonPastMonth},
		{name: "start of month", today: day(2025, time.July, 1), slot: "monday", reason: ReasonPastMonth},
		{name: "end of month", today: day(2025, time.June, 30), slot: "wednesday", reason: ReasonFutureMonth},
	}
	for _, tc := range cases {
		res, err := ResolveAndValidate(tc.slot, tc.today)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if res.Valid || res.Reason != tc.reason {
			t.Fatalf("%s: expected %s, got %+v", tc.name, tc.reason, res)
		}
		if res.Message == "" {
			t.Fatalf("%s: expected a message", tc.name)
		}
	}
}

func TestResolveMonthDay(t *testing.T) {
	today := day(2025, time.June, 20)
	res, err := Resolve("15", today)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Formatted() != "15/06/2025" || !Validate(res, today).Valid {
		t.Fatalf("unexpected resolution %+v", res)
	}
	res, err = Resolve("31", today)
	if err != nil {
		t.Fatalf("resolve 31: %v", err)
	}
	if res.Valid || res.Reason != ReasonInvalidDayForMonth {
		t.Fatalf("expected invalid_day_for_month, got %+v", res)
	}
	if got := Validate(res, today); got.Valid || got.Reason != ReasonInvalidDayForMonth {
		t.Fatalf("validate must keep the resolver reason, got %+v", got)
	}
	if _, err := ResolveMonthDay(0, today); !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}
	if got := Validate(mustResolve(t, "25", today), today); !got.Valid {
		t.Fatalf("later day of the current month must stay valid, got %+v", got)
	}
}

func TestMonthDaySlotsIgnoreRunDate(t *testing.T) {
	thursday := day(2026, time.October, 15)
	monthly, err := ResolveAndValidate("28", thursday)
	if err != nil {
		t.Fatalf("resolve 28: %v", err)
	}
	if !monthly.Valid || !monthly.Monthly || monthly.Formatted() != "28/10/2026" {
		t.Fatalf("expected 28/10/2026 to be valid, got %+v", monthly)
	}
	weekly, err := ResolveAndValidate("friday", thursday)
	if err != nil {
		t.Fatalf("resolve friday: %v", err)
	}
	if weekly.Valid || weekly.Monthly || weekly.Reason != ReasonFutureDate {
		t.Fatalf("expected future_date for friday, got %+v", weekly)
	}
	nextMonth := Validate(Resolution{Slot: "3", Date: day(2026, time.November, 3), Valid: true, Monthly: true}, thursday)
	if nextMonth.Valid || nextMonth.Reason != ReasonFutureMonth {
		t.Fatalf("month rule must still apply to monthly slots, got %+v", nextMonth)
	}
}

func TestValidateFailsClosedOnEmptyResolution(t *testing.T) {
	if got := Validate(Resolution{Valid: true}, day(2025, time.June, 4)); got.Valid {
		t.Fatalf("expected zero date to be invalid")
	}
}

func mustResolve(t *testing.T, slot string, today time.Time) Resolution {
	t.Helper()
	res, err := Resolve(slot, today)
	if err != nil {
		t.Fatalf("resolve %s: %v", slot, err)
	}
	return res
}
