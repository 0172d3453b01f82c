package billing_test

import (
	"testing"
	"time"

	"github.com/warp/billing-engine/billing"
)

func TestResolveTier(t *testing.T) {
	cases := []struct {
		name       string
		start      billing.Date
		monthStart billing.Date
		want       int
	}{
		{"first month", billing.NewDate(2024, time.May, 15), billing.NewDate(2024, time.May, 1), billing.TierYear1},
		{"eleven months in", billing.NewDate(2023, time.June, 1), billing.NewDate(2024, time.May, 1), billing.TierYear1},
		{"exactly one year", billing.NewDate(2023, time.May, 1), billing.NewDate(2024, time.May, 1), billing.TierYear2},
		{"seventeen months", billing.NewDate(2022, time.January, 1), billing.NewDate(2023, time.June, 1), billing.TierYear2},
		{"just under two years", billing.NewDate(2022, time.June, 1), billing.NewDate(2024, time.May, 1), billing.TierYear2},
		{"exactly two years", billing.NewDate(2022, time.May, 1), billing.NewDate(2024, time.May, 1), billing.TierYear3},
		{"beyond third anniversary stays year 3", billing.NewDate(2018, time.January, 1), billing.NewDate(2024, time.May, 1), billing.TierYear3},
		{"start after month start", billing.NewDate(2024, time.May, 20), billing.NewDate(2024, time.May, 1), billing.TierYear1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := billing.ResolveTier(c.start, c.monthStart); got != c.want {
				t.Errorf("ResolveTier(%s, %s) = %d, want %d", c.start, c.monthStart, got, c.want)
			}
		})
	}
}

func TestServiceFeeForTier(t *testing.T) {
	rs := billing.RateSchedule{
		ServiceFeeYear1: dec(1500),
		ServiceFeeYear2: dec(1300),
		ServiceFeeYear3: dec(1100),
	}

	if !rs.ServiceFeeForTier(billing.TierYear1).Equal(dec(1500)) {
		t.Error("tier 0 should use the year-1 rate")
	}
	if !rs.ServiceFeeForTier(billing.TierYear2).Equal(dec(1300)) {
		t.Error("tier 1 should use the year-2 rate")
	}
	if !rs.ServiceFeeForTier(billing.TierYear3).Equal(dec(1100)) {
		t.Error("tier 2 should use the year-3 rate")
	}
}
