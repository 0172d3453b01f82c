/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupling the internal
  domain model from the external contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.
  Money fields are decimal.Decimal, which accepts both JSON numbers and
  numeric strings and never round-trips through float64.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/store/sqlite"
)

// =============================================================================
// BILLING
// =============================================================================

// GenerateFeesRequest triggers monthly fee generation.
type GenerateFeesRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// GenerateFeesResponse summarizes a generation run.
type GenerateFeesResponse struct {
	Message string                      `json:"message"`
	Count   int                         `json:"count"`
	Skipped []billing.SkippedDeployment `json:"skipped,omitempty"`
}

// BillLineDTO represents one generated charge.
type BillLineDTO struct {
	DeploymentID     string          `json:"deployment_id"`
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	ActiveDays       int             `json:"active_days"`
	ServiceFee       decimal.Decimal `json:"service_fee_amount"`
	AccommodationFee decimal.Decimal `json:"accommodation_fee_amount"`
	GeneratedAt      string          `json:"generated_at"`
}

// BillingRunDTO represents one run audit row.
type BillingRunDTO struct {
	ID          string  `json:"id"`
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	Status      string  `json:"status"`
	Written     int     `json:"written"`
	Skipped     int     `json:"skipped"`
	Error       string  `json:"error,omitempty"`
	StartedAt   string  `json:"started_at"`
	CompletedAt *string `json:"completed_at,omitempty"`
}

// =============================================================================
// WORKERS / EMPLOYERS
// =============================================================================

type WorkerDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PassportNo  string `json:"passport_no,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type CreateWorkerRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PassportNo  string `json:"passport_no"`
	Nationality string `json:"nationality"`
}

type EmployerDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

type CreateEmployerRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
}

// =============================================================================
// DEPLOYMENTS
// =============================================================================

type DeploymentDTO struct {
	ID         string  `json:"id"`
	WorkerID   string  `json:"worker_id"`
	EmployerID string  `json:"employer_id"`
	StartDate  string  `json:"start_date"`
	EndDate    *string `json:"end_date,omitempty"`
	Status     string  `json:"status"`
}

type CreateDeploymentRequest struct {
	ID         string `json:"id"`
	WorkerID   string `json:"worker_id"`
	EmployerID string `json:"employer_id"`
	StartDate  string `json:"start_date"`
}

// EndDeploymentRequest concludes a placement.
type EndDeploymentRequest struct {
	EndDate string `json:"end_date"`
	Status  string `json:"status"` // "ended" or "terminated"
}

// RateScheduleDTO is both the read and write shape of a deployment's rates.
type RateScheduleDTO struct {
	ServiceFeeYear1  decimal.Decimal `json:"service_fee_year1"`
	ServiceFeeYear2  decimal.Decimal `json:"service_fee_year2"`
	ServiceFeeYear3  decimal.Decimal `json:"service_fee_year3"`
	AccommodationFee decimal.Decimal `json:"accommodation_fee"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ID string `json:"id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toBillLineDTO(line billing.BillLine) BillLineDTO {
	return BillLineDTO{
		DeploymentID:     string(line.DeploymentID),
		Year:             line.Year,
		Month:            int(line.Month),
		ActiveDays:       line.ActiveDays,
		ServiceFee:       line.ServiceFeeAmount,
		AccommodationFee: line.AccommodationFeeAmount,
		GeneratedAt:      line.GeneratedAt.Format(time.RFC3339),
	}
}

func toDeploymentDTO(d billing.Deployment) DeploymentDTO {
	dto := DeploymentDTO{
		ID:         string(d.ID),
		WorkerID:   d.WorkerID,
		EmployerID: d.EmployerID,
		StartDate:  d.StartDate.String(),
		Status:     string(d.Status),
	}
	if d.EndDate != nil {
		end := d.EndDate.String()
		dto.EndDate = &end
	}
	return dto
}

func toBillingRunDTO(run sqlite.BillingRun) BillingRunDTO {
	dto := BillingRunDTO{
		ID:        run.ID,
		Year:      run.Year,
		Month:     int(run.Month),
		Status:    run.Status,
		Written:   run.Written,
		Skipped:   run.Skipped,
		Error:     run.Error,
		StartedAt: run.StartedAt.Format(time.RFC3339),
	}
	if run.CompletedAt != nil {
		s := run.CompletedAt.Format(time.RFC3339)
		dto.CompletedAt = &s
	}
	return dto
}
