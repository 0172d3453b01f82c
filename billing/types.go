/*
Package billing generates monthly fees for worker deployments.

PURPOSE:
  A deployment is one worker placed with one employer, with a start date and
  an optional end date. Each deployment carries a rate schedule: a monthly
  service fee stepped by contract year (year 1/2/3) and a flat monthly
  accommodation fee. Once a month, the generator computes the fees owed for
  every deployment active during that month, prorated by active days against
  a fixed 30-day baseline, and upserts one BillLine per (deployment, year,
  month).

KEY CONCEPTS IN THIS FILE (types.go):
  - Deployment: the placement interval being billed
  - RateSchedule: the contractual monthly rates for one deployment
  - BillLine: one persisted charge record for one deployment and month

DESIGN PRINCIPLES:
  1. Idempotency: regenerating a month overwrites, never duplicates
  2. Precision: decimal.Decimal for all money, no floats
  3. Civil dates: all day arithmetic is UTC calendar math (see date.go)
  4. Read-only inputs: the generator never mutates deployments or schedules

SEE ALSO:
  - tier.go: which service-fee tier applies
  - prorate.go: the fixed-30 proration formula
  - generator.go: the batch run orchestrating everything
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type DeploymentID string

// =============================================================================
// DEPLOYMENT - One worker's placement with one employer
// =============================================================================

type DeploymentStatus string

const (
	StatusActive     DeploymentStatus = "active"
	StatusEnded      DeploymentStatus = "ended"
	StatusTerminated DeploymentStatus = "terminated"
)

type Deployment struct {
	ID         DeploymentID
	WorkerID   string
	EmployerID string
	StartDate  Date
	EndDate    *Date // nil = still active
	Status     DeploymentStatus
}

// ActiveDaysIn returns how many days of the period the deployment was
// active, clamping its [StartDate, EndDate] interval to the period. A
// deployment with no end date is active through the period's end.
func (d Deployment) ActiveDaysIn(p Period) int {
	overlap, ok := p.Clamp(d.StartDate, d.EndDate)
	if !ok {
		return 0
	}
	return overlap.Days()
}

// =============================================================================
// RATE SCHEDULE - Contractual monthly rates, one per deployment
// =============================================================================

// RateSchedule holds the monthly rates for a deployment. Service fees step
// by contract year; the accommodation fee is flat. A deployment without a
// schedule is not billable and must be skipped, never defaulted to zero.
type RateSchedule struct {
	DeploymentID     DeploymentID
	ServiceFeeYear1  decimal.Decimal
	ServiceFeeYear2  decimal.Decimal
	ServiceFeeYear3  decimal.Decimal
	AccommodationFee decimal.Decimal
}

// ServiceFeeForTier returns the monthly service rate for a tier index
// (0 = year 1, 1 = year 2, 2 = year 3).
func (rs RateSchedule) ServiceFeeForTier(tier int) decimal.Decimal {
	switch tier {
	case 0:
		return rs.ServiceFeeYear1
	case 1:
		return rs.ServiceFeeYear2
	default:
		return rs.ServiceFeeYear3
	}
}

// =============================================================================
// BILL LINE - One charge record for one deployment and month
// =============================================================================

// BillLine is the unit the generator produces. At most one line exists per
// (DeploymentID, Year, Month); regeneration replaces the prior line. A line
// with ActiveDays = 0 is valid and records that generation evaluated the
// deployment and found no chargeable days.
type BillLine struct {
	DeploymentID           DeploymentID
	Year                   int
	Month                  time.Month
	ActiveDays             int
	ServiceFeeAmount       decimal.Decimal
	AccommodationFeeAmount decimal.Decimal
	GeneratedAt            time.Time
}
