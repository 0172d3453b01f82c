/*
generator.go - Monthly fee generation batch

PURPOSE:
  One Generate call processes one (year, month): it fetches every deployment
  that could overlap the month, computes active days, resolves the service
  tier, prorates both fees, and upserts one BillLine per deployment.

RUN SHAPE:
  Validating -> Fetching -> Processing -> Completed | Failed

  - Validation rejects the period before any store access.
  - Per-deployment problems (no schedule, invariant violation) become skip
    entries; the batch continues.
  - Store failures abort the remaining loop. Lines already upserted stand,
    the partial written count is reported, and a rerun is safe because every
    line is derived deterministically and keyed by (deployment, year, month).

CONCURRENCY:
  Deployments are independent, so they are processed over a bounded worker
  pool. Two concurrent runs for the same (year, month) serialize on an
  in-process run lock; the second run re-derives and overwrites the same
  values.
*/
package billing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

// Administrative sanity bounds for the billing year.
const (
	MinBillingYear = 2000
	MaxBillingYear = 2100
)

const defaultWorkers = 4

// =============================================================================
// GENERATOR
// =============================================================================

// Generator runs monthly fee generation. All dependencies are explicit; the
// zero value of Workers means defaultWorkers and a nil Now means time.Now.
type Generator struct {
	Directory DeploymentDirectory
	Schedules RateScheduleStore
	Ledger    BillingLedger

	// Workers bounds the per-deployment concurrency.
	Workers int

	// Now stamps GeneratedAt on produced lines. Overridable for tests.
	Now func() time.Time

	mu       sync.Mutex
	runLocks map[string]*sync.Mutex
}

// NewGenerator creates a generator over the three collaborator stores.
func NewGenerator(directory DeploymentDirectory, schedules RateScheduleStore, ledger BillingLedger) *Generator {
	return &Generator{Directory: directory, Schedules: schedules, Ledger: ledger}
}

// RunResult summarizes one batch run. On a store failure Written reflects
// the lines committed before the abort.
type RunResult struct {
	Year    int
	Month   time.Month
	Written int
	Skipped []SkippedDeployment
}

// Generate produces bill lines for every deployment active during the given
// month. It returns a non-nil RunResult alongside any error so callers can
// report partial progress.
func (g *Generator) Generate(ctx context.Context, year int, month time.Month) (*RunResult, error) {
	// Validating
	if month < time.January || month > time.December ||
		year < MinBillingYear || year > MaxBillingYear {
		return nil, &InvalidPeriodError{Year: year, Month: month}
	}

	// Concurrent runs for the same month serialize here; the loser simply
	// recomputes and overwrites identical values.
	lock := g.runLock(year, month)
	lock.Lock()
	defer lock.Unlock()

	period := MonthPeriod(year, month)
	result := &RunResult{Year: year, Month: month}

	// Fetching
	candidates, err := g.Directory.ListOverlapping(ctx, period)
	if err != nil {
		return result, storeFailure("list deployments", err)
	}

	log.Printf("[Billing] Generating %04d-%02d: %d candidate deployments", year, int(month), len(candidates))

	// Processing
	fatal := g.process(ctx, candidates, period, result)

	sort.Slice(result.Skipped, func(i, j int) bool {
		return result.Skipped[i].DeploymentID < result.Skipped[j].DeploymentID
	})

	if fatal != nil {
		log.Printf("[Billing] Run %04d-%02d failed after %d lines: %v", year, int(month), result.Written, fatal)
		return result, fatal
	}

	log.Printf("[Billing] Run %04d-%02d completed: %d written, %d skipped", year, int(month), result.Written, len(result.Skipped))
	return result, nil
}

// process fans candidates out over the worker pool and folds outcomes into
// result. It returns the first fatal store error, if any.
func (g *Generator) process(ctx context.Context, candidates []Deployment, period Period, result *RunResult) error {
	workers := g.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > len(candidates) && len(candidates) > 0 {
		workers = len(candidates)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan Deployment)
	var (
		mu    sync.Mutex
		fatal error
		wg    sync.WaitGroup
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				out := g.processDeployment(runCtx, d, period)
				mu.Lock()
				switch {
				case out.fatal != nil:
					if fatal == nil {
						fatal = out.fatal
						cancel() // abort the remaining loop
					}
				case out.skip != nil:
					result.Skipped = append(result.Skipped, *out.skip)
				case out.written:
					result.Written++
				}
				mu.Unlock()
			}
		}()
	}

feed:
	for _, d := range candidates {
		select {
		case jobs <- d:
		case <-runCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if fatal == nil && ctx.Err() != nil {
		fatal = storeFailure("run canceled", ctx.Err())
	}
	return fatal
}

type deploymentOutcome struct {
	written bool
	skip    *SkippedDeployment
	fatal   error
}

func (g *Generator) processDeployment(ctx context.Context, d Deployment, period Period) deploymentOutcome {
	// A deployment starting after the month's end does not exist yet for
	// this period: no line at all, not a zero line.
	if d.StartDate.After(period.End) {
		return skip(d.ID, SkipNotStarted)
	}

	activeDays := d.ActiveDaysIn(period)
	if activeDays < 0 || activeDays > period.Days() {
		g.logInvariant(&InvariantError{DeploymentID: d.ID, Detail: fmt.Sprintf("active days %d outside [0, %d]", activeDays, period.Days())})
		return skip(d.ID, SkipInvariantViolation)
	}

	schedule, err := g.Schedules.ScheduleFor(ctx, d.ID)
	if errors.Is(err, ErrScheduleMissing) {
		return skip(d.ID, SkipScheduleMissing)
	}
	if err != nil {
		return deploymentOutcome{fatal: storeFailure("load rate schedule", err)}
	}

	tier := ResolveTier(d.StartDate, period.Start)
	if tier < TierYear1 || tier > TierYear3 {
		g.logInvariant(&InvariantError{DeploymentID: d.ID, Detail: fmt.Sprintf("tier %d outside [0, 2]", tier)})
		return skip(d.ID, SkipInvariantViolation)
	}

	// The two fees prorate and round independently.
	serviceFee := Prorate(schedule.ServiceFeeForTier(tier), activeDays)
	accommodationFee := Prorate(schedule.AccommodationFee, activeDays)
	if serviceFee.IsNegative() || accommodationFee.IsNegative() {
		g.logInvariant(&InvariantError{DeploymentID: d.ID, Detail: "negative fee amount"})
		return skip(d.ID, SkipInvariantViolation)
	}

	line := BillLine{
		DeploymentID:           d.ID,
		Year:                   period.Start.Year(),
		Month:                  period.Start.Month(),
		ActiveDays:             activeDays,
		ServiceFeeAmount:       serviceFee,
		AccommodationFeeAmount: accommodationFee,
		GeneratedAt:            g.now(),
	}
	if err := g.Ledger.UpsertBillLine(ctx, line); err != nil {
		return deploymentOutcome{fatal: storeFailure("upsert bill line", err)}
	}
	return deploymentOutcome{written: true}
}

// =============================================================================
// HELPERS
// =============================================================================

func (g *Generator) now() time.Time {
	if g.Now != nil {
		return g.Now().UTC()
	}
	return time.Now().UTC()
}

func (g *Generator) runLock(year int, month time.Month) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.runLocks == nil {
		g.runLocks = make(map[string]*sync.Mutex)
	}
	key := fmt.Sprintf("%04d-%02d", year, int(month))
	lock, ok := g.runLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		g.runLocks[key] = lock
	}
	return lock
}

func (g *Generator) logInvariant(err *InvariantError) {
	log.Printf("[Billing] %v (skipping deployment)", err)
}

func skip(id DeploymentID, reason SkipReason) deploymentOutcome {
	return deploymentOutcome{skip: &SkippedDeployment{DeploymentID: id, Reason: reason}}
}

func storeFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
