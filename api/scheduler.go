/*
scheduler.go - Automated monthly billing scheduler

PURPOSE:
  Periodically checks whether the previous calendar month has been billed
  and, if not, runs generation for it. Manual runs through the HTTP trigger
  remain possible at any time; generation is idempotent, so overlap between
  the two is harmless.

DESIGN:
  - Background goroutine with a configurable check interval
  - Generates a month at most once: completed runs are recorded in
    billing_runs and checked before generating
  - A failed run leaves no completed record, so the next tick retries

USAGE:
  scheduler := NewBillingScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunGeneration (shared run/audit/metrics path)
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/billing-engine/store/sqlite"
)

// BillingScheduler handles automated previous-month fee generation.
type BillingScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	// Now is overridable for tests.
	Now func() time.Time

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBillingScheduler creates a new scheduler.
func NewBillingScheduler(store *sqlite.Store, handler *Handler) *BillingScheduler {
	return &BillingScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 12 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (bs *BillingScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	bs.ticker = time.NewTicker(bs.CheckInterval)
	bs.wg.Add(1)

	go bs.run()

	log.Printf("[Scheduler] Started with check interval: %v", bs.CheckInterval)
}

// Stop stops the scheduler.
func (bs *BillingScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (bs *BillingScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start
	bs.checkAndGenerate()

	for {
		select {
		case <-bs.ticker.C:
			bs.checkAndGenerate()
		case <-bs.stop:
			return
		}
	}
}

func (bs *BillingScheduler) checkAndGenerate() {
	ctx := context.Background()
	year, month := bs.previousMonth()

	done, err := bs.Store.HasCompletedRun(ctx, year, month)
	if err != nil {
		log.Printf("[Scheduler] Error checking billing runs: %v", err)
		return
	}
	if done {
		return
	}

	log.Printf("[Scheduler] Generating fees for %04d-%02d", year, int(month))
	result, err := bs.Handler.RunGeneration(ctx, year, month)
	if err != nil {
		log.Printf("[Scheduler] Generation for %04d-%02d failed: %v", year, int(month), err)
		return
	}
	log.Printf("[Scheduler] Generated %04d-%02d: %d written, %d skipped",
		year, int(month), result.Written, len(result.Skipped))
}

// previousMonth returns the calendar month before the current one.
func (bs *BillingScheduler) previousMonth() (int, time.Month) {
	now := time.Now()
	if bs.Now != nil {
		now = bs.Now()
	}
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}

// RunNow triggers an immediate check (for testing/admin).
func (bs *BillingScheduler) RunNow() {
	bs.checkAndGenerate()
}
