package billing

import "time"

// =============================================================================
// PERIOD - Inclusive date interval
// =============================================================================

// Period is an inclusive [Start, End] range of calendar days. The billing
// engine only ever works with one shape of period (a calendar month), but
// the overlap math is the same for any interval.
type Period struct {
	Start Date
	End   Date
}

// MonthPeriod returns the period covering an entire calendar month.
func MonthPeriod(year int, month time.Month) Period {
	return Period{Start: StartOfMonth(year, month), End: EndOfMonth(year, month)}
}

// Contains reports whether the date falls within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns the inclusive day count of the period.
func (p Period) Days() int { return InclusiveDays(p.Start, p.End) }

// Clamp intersects another interval with this period. The second return
// value is false when the intervals are disjoint. An open end (zero openEnd
// date) is treated as extending through p.End.
func (p Period) Clamp(start Date, end *Date) (Period, bool) {
	effectiveStart := start.Max(p.Start)
	effectiveEnd := p.End
	if end != nil {
		effectiveEnd = end.Min(p.End)
	}
	if effectiveEnd.Before(effectiveStart) {
		return Period{}, false
	}
	return Period{Start: effectiveStart, End: effectiveEnd}, true
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
