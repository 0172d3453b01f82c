package billing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
)

func TestProrate_FixedThirtyDayBaseline(t *testing.T) {
	cases := []struct {
		name string
		rate int64
		days int
		want int64
	}{
		{"17 of 30 exact", 1500, 17, 850},     // 1500*17/30 = 850.00
		{"17 of 30 rounds up", 2500, 17, 1417}, // 2500*17/30 = 1416.67
		{"full 30-day equivalent", 1500, 30, 1500},
		{"31-day month bills above rate", 1500, 31, 1550},
		{"full February bills below rate", 1500, 28, 1400},
		{"zero days", 1500, 0, 0},
		{"one day", 1000, 1, 33}, // 33.33 rounds down
		{"half rounds up", 900, 1, 30}, // 30.00 exact
		{"zero rate", 0, 15, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := billing.Prorate(decimal.NewFromInt(c.rate), c.days)
			if !got.Equal(decimal.NewFromInt(c.want)) {
				t.Errorf("Prorate(%d, %d) = %s, want %d", c.rate, c.days, got, c.want)
			}
		})
	}
}

func TestProrate_RoundsHalfUp(t *testing.T) {
	// 1545 * 15 / 30 = 772.5 -> 773
	got := billing.Prorate(decimal.NewFromInt(1545), 15)
	if !got.Equal(decimal.NewFromInt(773)) {
		t.Errorf("got %s, want 773", got)
	}
}

func TestProrate_FullMonthNeverUsesActualLength(t *testing.T) {
	// GIVEN: a rate of 3000 and full coverage of months of every length
	// THEN: the divisor stays 30 regardless of the month's actual day count
	rate := decimal.NewFromInt(3000)
	for _, c := range []struct {
		year  int
		month time.Month
		want  int64
	}{
		{2024, time.January, 3100},  // 31 days
		{2024, time.February, 2900}, // 29 days
		{2023, time.February, 2800}, // 28 days
		{2024, time.April, 3000},    // 30 days
	} {
		days := billing.DaysInMonth(c.year, c.month)
		got := billing.Prorate(rate, days)
		if !got.Equal(decimal.NewFromInt(c.want)) {
			t.Errorf("full %d-%02d (%d days): got %s, want %d", c.year, int(c.month), days, got, c.want)
		}
	}
}
