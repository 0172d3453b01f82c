/*
errors.go - Centralized error types for the billing engine

ERROR CATEGORIES:
  1. Validation errors - malformed (year, month) input, rejected up front
  2. Per-deployment errors - recorded as skips, the batch continues
  3. Store errors - fatal to the in-flight batch, committed lines stand

USAGE:
  Callers classify with errors.Is:

    if errors.Is(err, billing.ErrInvalidPeriod) { ... 400 ... }
    if errors.Is(err, billing.ErrStoreUnavailable) { ... 502, partial count ... }
*/
package billing

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPeriod is returned when the requested (year, month) is
	// malformed. Nothing is read or written.
	ErrInvalidPeriod = errors.New("invalid billing period")

	// ErrScheduleMissing is returned by a RateScheduleStore when a deployment
	// has no rate schedule. The generator records a skip and continues.
	ErrScheduleMissing = errors.New("rate schedule missing")

	// ErrStoreUnavailable wraps store-level failures. Fatal to the batch;
	// already written lines remain valid and a rerun is safe.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InvalidPeriodError reports a rejected (year, month) input.
type InvalidPeriodError struct {
	Year  int
	Month time.Month
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid billing period %04d-%02d (month must be 1-12, year %d-%d)",
		e.Year, int(e.Month), MinBillingYear, MaxBillingYear)
}

func (e *InvalidPeriodError) Unwrap() error { return ErrInvalidPeriod }

// InvariantError reports a computed value that should be impossible: a
// negative active-day count, a tier outside [0,2]. It indicates a bug, not
// bad user input; the generator logs it and skips the deployment.
type InvariantError struct {
	DeploymentID DeploymentID
	Detail       string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("computation invariant violated for %s: %s", e.DeploymentID, e.Detail)
}

// =============================================================================
// SKIP REASONS - Why a deployment produced no bill line
// =============================================================================

type SkipReason string

const (
	SkipScheduleMissing    SkipReason = "schedule_missing"
	SkipNotStarted         SkipReason = "not_started"
	SkipInvariantViolation SkipReason = "invariant_violation"
)

// SkippedDeployment is one entry in a run's skip list.
type SkippedDeployment struct {
	DeploymentID DeploymentID `json:"deployment_id"`
	Reason       SkipReason   `json:"reason"`
}
