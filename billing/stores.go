package billing

import "context"

// =============================================================================
// COLLABORATOR CONTRACTS - The generator's view of persistence
// =============================================================================
// The engine owns no storage. It reads deployments and schedules through
// narrow query contracts and writes bill lines through an upsert contract;
// store/sqlite implements all three, billing/store implements them in memory
// for tests.

// DeploymentDirectory is the read model of placements.
type DeploymentDirectory interface {
	// ListOverlapping returns every deployment whose active interval could
	// overlap the period: StartDate <= period.End and (EndDate is nil or
	// EndDate >= period.Start). Deployments outside that window are never
	// candidates.
	ListOverlapping(ctx context.Context, period Period) ([]Deployment, error)
}

// RateScheduleStore is the read model of contractual rates.
type RateScheduleStore interface {
	// ScheduleFor returns the deployment's rate schedule, or an error
	// wrapping ErrScheduleMissing when none exists.
	ScheduleFor(ctx context.Context, id DeploymentID) (RateSchedule, error)
}

// BillingLedger is the durable store of generated bill lines.
type BillingLedger interface {
	// UpsertBillLine writes a line keyed by (DeploymentID, Year, Month),
	// replacing any prior line for that key. Each upsert is atomic;
	// last-writer-wins is safe because generation is deterministic.
	UpsertBillLine(ctx context.Context, line BillLine) error
}
