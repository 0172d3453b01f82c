package billing_test

import (
	"testing"
	"time"

	"github.com/warp/billing-engine/billing"
)

func TestDaysInMonth(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.January, 31},
		{2024, time.February, 29}, // leap year
		{2023, time.February, 28},
		{2024, time.April, 30},
		{2024, time.December, 31},
		{2100, time.February, 28}, // century non-leap
	}
	for _, c := range cases {
		if got := billing.DaysInMonth(c.year, c.month); got != c.want {
			t.Errorf("DaysInMonth(%d, %v) = %d, want %d", c.year, c.month, got, c.want)
		}
	}
}

func TestInclusiveDays(t *testing.T) {
	cases := []struct {
		name string
		from billing.Date
		to   billing.Date
		want int
	}{
		{"same day", billing.NewDate(2024, time.May, 15), billing.NewDate(2024, time.May, 15), 1},
		{"mid-month to month end", billing.NewDate(2024, time.May, 15), billing.NewDate(2024, time.May, 31), 17},
		{"full May", billing.NewDate(2024, time.May, 1), billing.NewDate(2024, time.May, 31), 31},
		{"end before start", billing.NewDate(2024, time.May, 10), billing.NewDate(2024, time.May, 9), 0},
		{"across month boundary", billing.NewDate(2024, time.April, 29), billing.NewDate(2024, time.May, 2), 4},
		{"across DST change dates", billing.NewDate(2024, time.March, 9), billing.NewDate(2024, time.March, 11), 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := billing.InclusiveDays(c.from, c.to); got != c.want {
				t.Errorf("InclusiveDays(%s, %s) = %d, want %d", c.from, c.to, got, c.want)
			}
		})
	}
}

func TestCompleteMonthsBetween(t *testing.T) {
	cases := []struct {
		name string
		from billing.Date
		to   billing.Date
		want int
	}{
		{"17 whole months", billing.NewDate(2022, time.January, 1), billing.NewDate(2023, time.June, 1), 17},
		{"day not reached yet", billing.NewDate(2022, time.January, 15), billing.NewDate(2023, time.June, 1), 16},
		{"exactly one year", billing.NewDate(2022, time.March, 1), billing.NewDate(2023, time.March, 1), 12},
		{"one day short of a year", billing.NewDate(2022, time.March, 2), billing.NewDate(2023, time.March, 1), 11},
		{"to before from", billing.NewDate(2024, time.June, 1), billing.NewDate(2024, time.May, 1), 0},
		{"same date", billing.NewDate(2024, time.May, 1), billing.NewDate(2024, time.May, 1), 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := billing.CompleteMonthsBetween(c.from, c.to); got != c.want {
				t.Errorf("CompleteMonthsBetween(%s, %s) = %d, want %d", c.from, c.to, got, c.want)
			}
		})
	}
}

func TestMonthPeriod(t *testing.T) {
	p := billing.MonthPeriod(2024, time.February)

	if !p.Start.Equal(billing.NewDate(2024, time.February, 1)) {
		t.Errorf("start = %s, want 2024-02-01", p.Start)
	}
	if !p.End.Equal(billing.NewDate(2024, time.February, 29)) {
		t.Errorf("end = %s, want 2024-02-29", p.End)
	}
	if p.Days() != 29 {
		t.Errorf("days = %d, want 29", p.Days())
	}
}

func TestPeriodClamp(t *testing.T) {
	may := billing.MonthPeriod(2024, time.May)
	june1 := billing.NewDate(2024, time.June, 1)
	april30 := billing.NewDate(2024, time.April, 30)
	may20 := billing.NewDate(2024, time.May, 20)

	// Open-ended interval starting before the month covers the whole month.
	full, ok := may.Clamp(billing.NewDate(2024, time.January, 1), nil)
	if !ok || full.Days() != 31 {
		t.Errorf("open-ended clamp = %v days (ok=%v), want 31", full.Days(), ok)
	}

	// Starting mid-month.
	mid, ok := may.Clamp(billing.NewDate(2024, time.May, 15), nil)
	if !ok || mid.Days() != 17 {
		t.Errorf("mid-month clamp = %v days (ok=%v), want 17", mid.Days(), ok)
	}

	// Ending mid-month.
	ended, ok := may.Clamp(billing.NewDate(2024, time.January, 1), &may20)
	if !ok || ended.Days() != 20 {
		t.Errorf("ended clamp = %v days (ok=%v), want 20", ended.Days(), ok)
	}

	// Interval entirely after the month.
	if _, ok := may.Clamp(june1, nil); ok {
		t.Error("interval starting after the month should be disjoint")
	}

	// Interval entirely before the month.
	if _, ok := may.Clamp(billing.NewDate(2024, time.January, 1), &april30); ok {
		t.Error("interval ending before the month should be disjoint")
	}

	// Start and end both inside the month, never exceeding its length.
	within, ok := may.Clamp(billing.NewDate(2024, time.May, 10), &may20)
	if !ok || within.Days() != 11 {
		t.Errorf("within-month clamp = %v days (ok=%v), want 11", within.Days(), ok)
	}
}

func TestParseDate(t *testing.T) {
	d, err := billing.ParseDate("2024-05-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Equal(billing.NewDate(2024, time.May, 15)) {
		t.Errorf("parsed %s, want 2024-05-15", d)
	}

	if _, err := billing.ParseDate("15/05/2024"); err == nil {
		t.Error("expected error for non-ISO date")
	}
}

func TestDateOf_NormalizesToUTCMidnight(t *testing.T) {
	// Early morning in a +10 zone is still the prior day in UTC; DateOf
	// must follow UTC.
	zone := time.FixedZone("UTC+10", 10*3600)
	d := billing.DateOf(time.Date(2024, time.June, 1, 5, 30, 0, 0, zone))

	if !d.Equal(billing.NewDate(2024, time.May, 31)) {
		t.Errorf("got %s, want 2024-05-31", d)
	}
}
