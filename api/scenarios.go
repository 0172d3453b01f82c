/*
scenarios.go - Demo data loaders

PURPOSE:
  Seeds the store with small, named datasets so the billing flow can be
  exercised from the UI or curl without manual data entry. Scenarios use
  fixed IDs, so loading one twice upserts the same rows.

SCENARIOS:
  proration-basics: full-month, mid-month-start, and mid-month-end
                    deployments against 2024-05
  tier-boundaries:  deployments straddling the year-2 and year-3 anniversaries
  missing-schedule: one billable deployment and one with no rate schedule
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/store/sqlite"
)

type scenario struct {
	ID          string
	Name        string
	Description string
	Load        func(ctx context.Context, s *sqlite.Store) error
}

var scenarios = []scenario{
	{
		ID:          "proration-basics",
		Name:        "Proration basics",
		Description: "Full month, mid-month start (2024-05-15), and mid-month end against May 2024.",
		Load:        loadProrationBasics,
	},
	{
		ID:          "tier-boundaries",
		Name:        "Tier boundaries",
		Description: "Deployments just before and after their year-2 and year-3 anniversaries.",
		Load:        loadTierBoundaries,
	},
	{
		ID:          "missing-schedule",
		Name:        "Missing schedule",
		Description: "One billable deployment and one that must be skipped for lack of rates.",
		Load:        loadMissingSchedule,
	},
}

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, sc := range scenarios {
		dtos[i] = ScenarioDTO{ID: sc.ID, Name: sc.Name, Description: sc.Description}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario seeds one demo scenario.
// POST /api/scenarios/load {"id": "proration-basics"}
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	for _, sc := range scenarios {
		if sc.ID == req.ID {
			if err := sc.Load(r.Context(), h.Store); err != nil {
				writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"message": "Loaded scenario: " + sc.Name})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Unknown scenario: "+req.ID, nil)
}

// =============================================================================
// SCENARIO DATA
// =============================================================================

type seedDeployment struct {
	id      string
	worker  string
	start   billing.Date
	end     *billing.Date
	status  billing.DeploymentStatus
	noRates bool
}

func seed(ctx context.Context, s *sqlite.Store, employerID, employerName string, deployments []seedDeployment) error {
	if err := s.SaveEmployer(ctx, sqlite.Employer{ID: employerID, Name: employerName}); err != nil {
		return err
	}
	for _, sd := range deployments {
		workerID := sd.id + "-worker"
		if err := s.SaveWorker(ctx, sqlite.Worker{ID: workerID, Name: sd.worker}); err != nil {
			return err
		}
		status := sd.status
		if status == "" {
			status = billing.StatusActive
		}
		d := billing.Deployment{
			ID:         billing.DeploymentID(sd.id),
			WorkerID:   workerID,
			EmployerID: employerID,
			StartDate:  sd.start,
			EndDate:    sd.end,
			Status:     status,
		}
		if err := s.SaveDeployment(ctx, d); err != nil {
			return err
		}
		if sd.noRates {
			continue
		}
		rs := billing.RateSchedule{
			DeploymentID:     d.ID,
			ServiceFeeYear1:  decimal.NewFromInt(1500),
			ServiceFeeYear2:  decimal.NewFromInt(1300),
			ServiceFeeYear3:  decimal.NewFromInt(1100),
			AccommodationFee: decimal.NewFromInt(2500),
		}
		if err := s.SaveRateSchedule(ctx, rs); err != nil {
			return err
		}
	}
	return nil
}

func loadProrationBasics(ctx context.Context, s *sqlite.Store) error {
	may20 := billing.NewDate(2024, time.May, 20)
	return seed(ctx, s, "emp-harbor", "Harbor Manufacturing", []seedDeployment{
		{id: "dep-full-month", worker: "Ana Reyes", start: billing.NewDate(2024, time.January, 10)},
		{id: "dep-mid-start", worker: "Budi Santoso", start: billing.NewDate(2024, time.May, 15)},
		{id: "dep-mid-end", worker: "Chau Nguyen", start: billing.NewDate(2023, time.November, 1),
			end: &may20, status: billing.StatusEnded},
	})
}

func loadTierBoundaries(ctx context.Context, s *sqlite.Store) error {
	return seed(ctx, s, "emp-delta", "Delta Agriculture", []seedDeployment{
		{id: "dep-year1", worker: "Dewi Lestari", start: billing.NewDate(2023, time.July, 1)},
		{id: "dep-year2", worker: "Elena Cruz", start: billing.NewDate(2022, time.January, 1)},
		{id: "dep-year3", worker: "Farid Rahman", start: billing.NewDate(2021, time.March, 1)},
		{id: "dep-beyond-year3", worker: "Grace Lim", start: billing.NewDate(2018, time.June, 1)},
	})
}

func loadMissingSchedule(ctx context.Context, s *sqlite.Store) error {
	return seed(ctx, s, "emp-coast", "Coastline Services", []seedDeployment{
		{id: "dep-billable", worker: "Hana Wati", start: billing.NewDate(2024, time.February, 1)},
		{id: "dep-no-rates", worker: "Indra Putra", start: billing.NewDate(2024, time.March, 1), noRates: true},
	})
}
