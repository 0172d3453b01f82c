package billing

// =============================================================================
// TIER RESOLUTION - Which contract year's service rate applies
// =============================================================================

// Service fee tiers are indexed 0..2 and map to the year-1/2/3 rates on a
// RateSchedule. The schedule is stepped, not escalating: past its third
// anniversary a deployment stays on the year-3 rate.
const (
	TierYear1 = 0
	TierYear2 = 1
	TierYear3 = 2
)

// ResolveTier returns the tier index for a deployment that started on
// startDate, billed for the month beginning at monthStart.
//
// Elapsed full years are counted in complete months: 17 full months since
// the start is floor(17/12) = 1 elapsed year, so the year-2 rate. A start
// date after monthStart resolves to tier 0 (the deployment is in its first
// contract year for its entire first month).
func ResolveTier(startDate, monthStart Date) int {
	elapsedYears := CompleteMonthsBetween(startDate, monthStart) / 12
	if elapsedYears < 0 {
		return TierYear1
	}
	if elapsedYears > TierYear3 {
		return TierYear3
	}
	return elapsedYears
}
