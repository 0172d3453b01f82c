// Package store provides in-memory implementations of the billing store
// contracts, for tests and local development.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/billing-engine/billing"
)

// Memory implements billing.DeploymentDirectory, billing.RateScheduleStore
// and billing.BillingLedger in one struct. Fail* hooks inject store errors
// so batch abort behavior can be tested.
type Memory struct {
	mu          sync.RWMutex
	deployments map[billing.DeploymentID]billing.Deployment
	schedules   map[billing.DeploymentID]billing.RateSchedule
	lines       map[lineKey]billing.BillLine

	FailList     error // returned by ListOverlapping when set
	FailSchedule error // returned by ScheduleFor when set (non-missing failure)
	FailUpsert   error // returned by UpsertBillLine when set

	// FailUpsertAfter injects FailUpsert only after N successful upserts,
	// for partial-commit tests. Ignored when FailUpsert is nil.
	FailUpsertAfter int
	upserts         int
}

type lineKey struct {
	DeploymentID billing.DeploymentID
	Year         int
	Month        int
}

func NewMemory() *Memory {
	return &Memory{
		deployments: make(map[billing.DeploymentID]billing.Deployment),
		schedules:   make(map[billing.DeploymentID]billing.RateSchedule),
		lines:       make(map[lineKey]billing.BillLine),
	}
}

// =============================================================================
// SEEDING
// =============================================================================

func (m *Memory) PutDeployment(d billing.Deployment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deployments[d.ID] = d
}

func (m *Memory) PutSchedule(s billing.RateSchedule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules[s.DeploymentID] = s
}

// =============================================================================
// billing.DeploymentDirectory
// =============================================================================

func (m *Memory) ListOverlapping(_ context.Context, period billing.Period) ([]billing.Deployment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailList != nil {
		return nil, m.FailList
	}

	var out []billing.Deployment
	for _, d := range m.deployments {
		if d.StartDate.After(period.End) {
			continue
		}
		if d.EndDate != nil && d.EndDate.Before(period.Start) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// billing.RateScheduleStore
// =============================================================================

func (m *Memory) ScheduleFor(_ context.Context, id billing.DeploymentID) (billing.RateSchedule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailSchedule != nil {
		return billing.RateSchedule{}, m.FailSchedule
	}
	s, ok := m.schedules[id]
	if !ok {
		return billing.RateSchedule{}, fmt.Errorf("deployment %s: %w", id, billing.ErrScheduleMissing)
	}
	return s, nil
}

// =============================================================================
// billing.BillingLedger
// =============================================================================

func (m *Memory) UpsertBillLine(_ context.Context, line billing.BillLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUpsert != nil && m.upserts >= m.FailUpsertAfter {
		return m.FailUpsert
	}
	m.upserts++
	m.lines[lineKey{line.DeploymentID, line.Year, int(line.Month)}] = line
	return nil
}

// =============================================================================
// INSPECTION (tests)
// =============================================================================

// Line returns the stored line for a key, if any.
func (m *Memory) Line(id billing.DeploymentID, year, month int) (billing.BillLine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	line, ok := m.lines[lineKey{id, year, month}]
	return line, ok
}

// Lines returns all stored lines ordered by deployment ID.
func (m *Memory) Lines() []billing.BillLine {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]billing.BillLine, 0, len(m.lines))
	for _, l := range m.lines {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeploymentID != out[j].DeploymentID {
			return out[i].DeploymentID < out[j].DeploymentID
		}
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out
}

// LineCount returns how many lines are stored.
func (m *Memory) LineCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.lines)
}
