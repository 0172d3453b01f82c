/*
handlers.go - HTTP API handlers for the placement billing system

PURPOSE:
  Exposes the billing engine via REST. Handles HTTP request/response, JSON
  serialization, and delegates to the generator and store.

ENDPOINTS:
  Billing:
    POST   /api/billing/generate        Generate fees for a (year, month)
    GET    /api/billing/lines           Bill lines for a month
    GET    /api/billing/runs            Generation run history

  Admin:
    GET/POST /api/workers               Worker records
    GET/POST /api/employers             Employer records
    GET/POST /api/deployments           Placements
    POST   /api/deployments/{id}/end    Conclude a placement
    GET/PUT /api/deployments/{id}/schedule  Rate schedule

ERROR HANDLING:
  - 400: invalid period, malformed input
  - 404: missing record
  - 502: a backing store failed mid-run (response carries the partial count)
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/metrics"
	"github.com/warp/billing-engine/store/sqlite"
)

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     *sqlite.Store
	Generator *billing.Generator
}

// NewHandler wires a handler over the sqlite store, which serves as all
// three of the generator's collaborators.
func NewHandler(store *sqlite.Store, workers int) *Handler {
	gen := billing.NewGenerator(store, store, store)
	gen.Workers = workers
	return &Handler{Store: store, Generator: gen}
}

// =============================================================================
// BILLING
// =============================================================================

// GenerateMonthlyFees runs fee generation for one month.
// POST /api/billing/generate {"year": 2024, "month": 5}
func (h *Handler) GenerateMonthlyFees(w http.ResponseWriter, r *http.Request) {
	var req GenerateFeesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.RunGeneration(r.Context(), req.Year, time.Month(req.Month))
	if errors.Is(err, billing.ErrInvalidPeriod) {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if err != nil {
		// A store failed mid-run. Lines already written stand; report the
		// partial count so the caller knows a rerun is needed (and safe).
		written := 0
		if result != nil {
			written = result.Written
		}
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   fmt.Sprintf("generation aborted after %d bill lines", written),
			Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, GenerateFeesResponse{
		Message: fmt.Sprintf("Generated %d bill lines for %04d-%02d", result.Written, result.Year, int(result.Month)),
		Count:   result.Written,
		Skipped: result.Skipped,
	})
}

// RunGeneration executes one generation run and records the audit row and
// metrics around it. Shared by the HTTP trigger and the scheduler.
func (h *Handler) RunGeneration(ctx context.Context, year int, month time.Month) (*billing.RunResult, error) {
	started := time.Now()
	result, err := h.Generator.Generate(ctx, year, month)
	if errors.Is(err, billing.ErrInvalidPeriod) {
		return nil, err
	}

	run := sqlite.BillingRun{
		ID:        uuid.NewString(),
		Year:      year,
		Month:     month,
		Status:    "completed",
		StartedAt: started.UTC(),
	}
	if result != nil {
		run.Written = result.Written
		run.Skipped = len(result.Skipped)
	}
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
	}
	completed := time.Now().UTC()
	run.CompletedAt = &completed
	if saveErr := h.Store.SaveBillingRun(ctx, run); saveErr != nil {
		log.Printf("[API] Failed to record billing run %s: %v", run.ID, saveErr)
	}

	metrics.ObserveRun(run.Status, run.Written, skippedByReason(result), time.Since(started))
	return result, err
}

func skippedByReason(result *billing.RunResult) map[string]int {
	if result == nil {
		return nil
	}
	byReason := make(map[string]int)
	for _, s := range result.Skipped {
		byReason[string(s.Reason)]++
	}
	return byReason
}

// ListBillLines returns the generated lines for a month.
// GET /api/billing/lines?year=2024&month=5
func (h *Handler) ListBillLines(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	lines, err := h.Store.ListBillLines(r.Context(), year, time.Month(month))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bill lines", err)
		return
	}

	dtos := make([]BillLineDTO, len(lines))
	for i, line := range lines {
		dtos[i] = toBillLineDTO(line)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListBillingRuns returns recent generation runs.
// GET /api/billing/runs
func (h *Handler) ListBillingRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListBillingRuns(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list billing runs", err)
		return
	}

	dtos := make([]BillingRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toBillingRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// WORKERS
// =============================================================================

// ListWorkers returns all workers.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list workers", err)
		return
	}

	dtos := make([]WorkerDTO, len(workers))
	for i, wk := range workers {
		dtos[i] = WorkerDTO{
			ID:          wk.ID,
			Name:        wk.Name,
			PassportNo:  wk.PassportNo,
			Nationality: wk.Nationality,
			CreatedAt:   wk.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateWorker creates a worker record.
func (h *Handler) CreateWorker(w http.ResponseWriter, r *http.Request) {
	var req CreateWorkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Worker name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	wk := sqlite.Worker{ID: req.ID, Name: req.Name, PassportNo: req.PassportNo, Nationality: req.Nationality}
	if err := h.Store.SaveWorker(r.Context(), wk); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create worker", err)
		return
	}

	writeJSON(w, http.StatusCreated, WorkerDTO{ID: wk.ID, Name: wk.Name, PassportNo: wk.PassportNo, Nationality: wk.Nationality})
}

// =============================================================================
// EMPLOYERS
// =============================================================================

// ListEmployers returns all employers.
func (h *Handler) ListEmployers(w http.ResponseWriter, r *http.Request) {
	employers, err := h.Store.ListEmployers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employers", err)
		return
	}

	dtos := make([]EmployerDTO, len(employers))
	for i, e := range employers {
		dtos[i] = EmployerDTO{
			ID:           e.ID,
			Name:         e.Name,
			ContactEmail: e.ContactEmail,
			CreatedAt:    e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployer creates an employer record.
func (h *Handler) CreateEmployer(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Employer name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	e := sqlite.Employer{ID: req.ID, Name: req.Name, ContactEmail: req.ContactEmail}
	if err := h.Store.SaveEmployer(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create employer", err)
		return
	}

	writeJSON(w, http.StatusCreated, EmployerDTO{ID: e.ID, Name: e.Name, ContactEmail: e.ContactEmail})
}

// =============================================================================
// DEPLOYMENTS
// =============================================================================

// ListDeployments returns all deployments.
func (h *Handler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	deployments, err := h.Store.ListDeployments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list deployments", err)
		return
	}

	dtos := make([]DeploymentDTO, len(deployments))
	for i, d := range deployments {
		dtos[i] = toDeploymentDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetDeployment returns one deployment.
func (h *Handler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	id := billing.DeploymentID(chi.URLParam(r, "id"))

	d, err := h.Store.GetDeployment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get deployment", err)
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "Deployment not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toDeploymentDTO(*d))
}

// CreateDeployment creates a placement.
func (h *Handler) CreateDeployment(w http.ResponseWriter, r *http.Request) {
	var req CreateDeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.WorkerID == "" || req.EmployerID == "" {
		writeError(w, http.StatusBadRequest, "worker_id and employer_id are required", nil)
		return
	}

	startDate, err := billing.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	d := billing.Deployment{
		ID:         billing.DeploymentID(req.ID),
		WorkerID:   req.WorkerID,
		EmployerID: req.EmployerID,
		StartDate:  startDate,
		Status:     billing.StatusActive,
	}
	if err := h.Store.SaveDeployment(r.Context(), d); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create deployment", err)
		return
	}

	writeJSON(w, http.StatusCreated, toDeploymentDTO(d))
}

// EndDeployment concludes a placement.
// POST /api/deployments/{id}/end {"end_date": "2024-05-20", "status": "ended"}
func (h *Handler) EndDeployment(w http.ResponseWriter, r *http.Request) {
	id := billing.DeploymentID(chi.URLParam(r, "id"))

	var req EndDeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	endDate, err := billing.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}
	status := billing.DeploymentStatus(req.Status)
	if status == "" {
		status = billing.StatusEnded
	}

	if err := h.Store.EndDeployment(r.Context(), id, endDate, status); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to end deployment", err)
		return
	}

	d, err := h.Store.GetDeployment(r.Context(), id)
	if err != nil || d == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload deployment", err)
		return
	}
	writeJSON(w, http.StatusOK, toDeploymentDTO(*d))
}

// GetRateSchedule returns a deployment's rate schedule.
func (h *Handler) GetRateSchedule(w http.ResponseWriter, r *http.Request) {
	id := billing.DeploymentID(chi.URLParam(r, "id"))

	rs, err := h.Store.ScheduleFor(r.Context(), id)
	if errors.Is(err, billing.ErrScheduleMissing) {
		writeError(w, http.StatusNotFound, "Rate schedule not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get rate schedule", err)
		return
	}

	writeJSON(w, http.StatusOK, RateScheduleDTO{
		ServiceFeeYear1:  rs.ServiceFeeYear1,
		ServiceFeeYear2:  rs.ServiceFeeYear2,
		ServiceFeeYear3:  rs.ServiceFeeYear3,
		AccommodationFee: rs.AccommodationFee,
	})
}

// PutRateSchedule creates or amends a deployment's rate schedule.
func (h *Handler) PutRateSchedule(w http.ResponseWriter, r *http.Request) {
	id := billing.DeploymentID(chi.URLParam(r, "id"))

	var req RateScheduleDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ServiceFeeYear1.IsNegative() || req.ServiceFeeYear2.IsNegative() ||
		req.ServiceFeeYear3.IsNegative() || req.AccommodationFee.IsNegative() {
		writeError(w, http.StatusBadRequest, "Rates must be non-negative", nil)
		return
	}

	d, err := h.Store.GetDeployment(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get deployment", err)
		return
	}
	if d == nil {
		writeError(w, http.StatusNotFound, "Deployment not found", nil)
		return
	}

	rs := billing.RateSchedule{
		DeploymentID:     id,
		ServiceFeeYear1:  req.ServiceFeeYear1,
		ServiceFeeYear2:  req.ServiceFeeYear2,
		ServiceFeeYear3:  req.ServiceFeeYear3,
		AccommodationFee: req.AccommodationFee,
	}
	if err := h.Store.SaveRateSchedule(r.Context(), rs); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save rate schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
