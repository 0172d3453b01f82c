/*
Package sqlite provides the SQLite-backed store for the billing engine.

PURPOSE:
  Implements the three billing collaborator contracts (DeploymentDirectory,
  RateScheduleStore, BillingLedger) plus the thin administrative tables the
  directory is fed from (workers, employers) and the run audit log used by
  the scheduler and UI.

INTERFACES IMPLEMENTED:
  billing.DeploymentDirectory: candidate query for a month
  billing.RateScheduleStore:   per-deployment rates
  billing.BillingLedger:       bill line upsert

IDEMPOTENCY ENFORCEMENT:
  bill_lines carries UNIQUE(deployment_id, year, month); UpsertBillLine uses
  INSERT ... ON CONFLICT DO UPDATE so regeneration replaces the prior line
  atomically. There is no code path that duplicates a line.

KEY TABLES:
  workers, employers:  entity records behind deployments
  deployments:         placement intervals (start, optional end, status)
  rate_schedules:      one row per deployment, three service tiers + lodging
  bill_lines:          one row per (deployment, year, month)
  billing_runs:        audit rows, one per generation run

DATA ENCODING:
  Dates as 'YYYY-MM-DD' text, timestamps as RFC3339 text, money as decimal
  strings. SQLite is opened with WAL and foreign keys on.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  gen := billing.NewGenerator(store, store, store)

SEE ALSO:
  - billing/stores.go: interface definitions
  - billing/store/memory.go: in-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS workers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		passport_no TEXT,
		nationality TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS employers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contact_email TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS deployments (
		id TEXT PRIMARY KEY,
		worker_id TEXT NOT NULL,
		employer_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deployments_worker
		ON deployments(worker_id);
	CREATE INDEX IF NOT EXISTS idx_deployments_employer
		ON deployments(employer_id);

	-- Candidate query for a billing month (hot path):
	-- start_date <= month end AND (end_date IS NULL OR end_date >= month start)
	CREATE INDEX IF NOT EXISTS idx_deployments_interval
		ON deployments(start_date, end_date);

	CREATE TABLE IF NOT EXISTS rate_schedules (
		deployment_id TEXT PRIMARY KEY,
		service_fee_year1 TEXT NOT NULL,
		service_fee_year2 TEXT NOT NULL,
		service_fee_year3 TEXT NOT NULL,
		accommodation_fee TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bill_lines (
		deployment_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		active_days INTEGER NOT NULL,
		service_fee_amount TEXT NOT NULL,
		accommodation_fee_amount TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		UNIQUE(deployment_id, year, month)
	);

	CREATE INDEX IF NOT EXISTS idx_bill_lines_period
		ON bill_lines(year, month);

	CREATE TABLE IF NOT EXISTS billing_runs (
		id TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		written INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_billing_runs_period
		ON billing_runs(year, month);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// WORKERS / EMPLOYERS
// =============================================================================

type Worker struct {
	ID          string
	Name        string
	PassportNo  string
	Nationality string
	CreatedAt   time.Time
}

type Employer struct {
	ID           string
	Name         string
	ContactEmail string
	CreatedAt    time.Time
}

func (s *Store) SaveWorker(ctx context.Context, w Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workers (id, name, passport_no, nationality, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			passport_no = excluded.passport_no,
			nationality = excluded.nationality`,
		w.ID, w.Name, w.PassportNo, w.Nationality, timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save worker: %w", err)
	}
	return nil
}

func (s *Store) GetWorker(ctx context.Context, id string) (*Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, passport_no, nationality, created_at
		FROM workers WHERE id = ?`, id)

	var w Worker
	var createdAt string
	err := row.Scan(&w.ID, &w.Name, &w.PassportNo, &w.Nationality, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}
	w.CreatedAt = parseTimestamp(createdAt)
	return &w, nil
}

func (s *Store) ListWorkers(ctx context.Context) ([]Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, passport_no, nationality, created_at
		FROM workers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}
	defer rows.Close()

	var workers []Worker
	for rows.Next() {
		var w Worker
		var createdAt string
		if err := rows.Scan(&w.ID, &w.Name, &w.PassportNo, &w.Nationality, &createdAt); err != nil {
			return nil, err
		}
		w.CreatedAt = parseTimestamp(createdAt)
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

func (s *Store) SaveEmployer(ctx context.Context, e Employer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employers (id, name, contact_email, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			contact_email = excluded.contact_email`,
		e.ID, e.Name, e.ContactEmail, timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save employer: %w", err)
	}
	return nil
}

func (s *Store) ListEmployers(ctx context.Context) ([]Employer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact_email, created_at
		FROM employers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employers: %w", err)
	}
	defer rows.Close()

	var employers []Employer
	for rows.Next() {
		var e Employer
		var createdAt string
		if err := rows.Scan(&e.ID, &e.Name, &e.ContactEmail, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTimestamp(createdAt)
		employers = append(employers, e)
	}
	return employers, rows.Err()
}

// =============================================================================
// DEPLOYMENTS (billing.DeploymentDirectory)
// =============================================================================

func (s *Store) SaveDeployment(ctx context.Context, d billing.Deployment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var endDate any
	if d.EndDate != nil {
		endDate = d.EndDate.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deployments (id, worker_id, employer_id, start_date, end_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			worker_id = excluded.worker_id,
			employer_id = excluded.employer_id,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			status = excluded.status`,
		d.ID, d.WorkerID, d.EmployerID, d.StartDate.String(), endDate, d.Status, timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save deployment: %w", err)
	}
	return nil
}

func (s *Store) GetDeployment(ctx context.Context, id billing.DeploymentID) (*billing.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, worker_id, employer_id, start_date, end_date, status
		FROM deployments WHERE id = ?`, id)

	d, err := scanDeployment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}
	return d, nil
}

func (s *Store) ListDeployments(ctx context.Context) ([]billing.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, worker_id, employer_id, start_date, end_date, status
		FROM deployments ORDER BY start_date, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}
	defer rows.Close()
	return collectDeployments(rows)
}

// ListOverlapping implements billing.DeploymentDirectory: only deployments
// whose interval can intersect the period are returned, so generation never
// scans the full placement history.
func (s *Store) ListOverlapping(ctx context.Context, period billing.Period) ([]billing.Deployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, worker_id, employer_id, start_date, end_date, status
		FROM deployments
		WHERE start_date <= ? AND (end_date IS NULL OR end_date >= ?)
		ORDER BY id`,
		period.End.String(), period.Start.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list overlapping deployments: %w", err)
	}
	defer rows.Close()
	return collectDeployments(rows)
}

// EndDeployment concludes a placement. The end date and status are set
// exactly once; calling it again on a concluded deployment is an error.
func (s *Store) EndDeployment(ctx context.Context, id billing.DeploymentID, endDate billing.Date, status billing.DeploymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status != billing.StatusEnded && status != billing.StatusTerminated {
		return fmt.Errorf("invalid concluding status %q", status)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE deployments SET end_date = ?, status = ?
		WHERE id = ? AND status = 'active' AND start_date <= ?`,
		endDate.String(), status, id, endDate.String())
	if err != nil {
		return fmt.Errorf("failed to end deployment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("deployment %s is not active or end date precedes its start", id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row rowScanner) (*billing.Deployment, error) {
	var d billing.Deployment
	var startDate string
	var endDate sql.NullString
	if err := row.Scan(&d.ID, &d.WorkerID, &d.EmployerID, &startDate, &endDate, &d.Status); err != nil {
		return nil, err
	}

	start, err := billing.ParseDate(startDate)
	if err != nil {
		return nil, err
	}
	d.StartDate = start

	if endDate.Valid && strings.TrimSpace(endDate.String) != "" {
		end, err := billing.ParseDate(endDate.String)
		if err != nil {
			return nil, err
		}
		d.EndDate = &end
	}
	return &d, nil
}

func collectDeployments(rows *sql.Rows) ([]billing.Deployment, error) {
	var deployments []billing.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, rows.Err()
}

// =============================================================================
// RATE SCHEDULES (billing.RateScheduleStore)
// =============================================================================

func (s *Store) SaveRateSchedule(ctx context.Context, rs billing.RateSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rate_schedules
		(deployment_id, service_fee_year1, service_fee_year2, service_fee_year3, accommodation_fee, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(deployment_id) DO UPDATE SET
			service_fee_year1 = excluded.service_fee_year1,
			service_fee_year2 = excluded.service_fee_year2,
			service_fee_year3 = excluded.service_fee_year3,
			accommodation_fee = excluded.accommodation_fee,
			updated_at = excluded.updated_at`,
		rs.DeploymentID,
		rs.ServiceFeeYear1.String(),
		rs.ServiceFeeYear2.String(),
		rs.ServiceFeeYear3.String(),
		rs.AccommodationFee.String(),
		timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save rate schedule: %w", err)
	}
	return nil
}

// ScheduleFor implements billing.RateScheduleStore. A missing row wraps
// billing.ErrScheduleMissing so the generator records a skip instead of
// aborting.
func (s *Store) ScheduleFor(ctx context.Context, id billing.DeploymentID) (billing.RateSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT deployment_id, service_fee_year1, service_fee_year2, service_fee_year3, accommodation_fee
		FROM rate_schedules WHERE deployment_id = ?`, id)

	var rs billing.RateSchedule
	var y1, y2, y3, accom string
	err := row.Scan(&rs.DeploymentID, &y1, &y2, &y3, &accom)
	if err == sql.ErrNoRows {
		return billing.RateSchedule{}, fmt.Errorf("deployment %s: %w", id, billing.ErrScheduleMissing)
	}
	if err != nil {
		return billing.RateSchedule{}, fmt.Errorf("failed to get rate schedule: %w", err)
	}

	for _, pair := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&rs.ServiceFeeYear1, y1},
		{&rs.ServiceFeeYear2, y2},
		{&rs.ServiceFeeYear3, y3},
		{&rs.AccommodationFee, accom},
	} {
		d, err := decimal.NewFromString(pair.src)
		if err != nil {
			return billing.RateSchedule{}, fmt.Errorf("corrupt rate %q for %s: %w", pair.src, id, err)
		}
		*pair.dst = d
	}
	return rs, nil
}

// =============================================================================
// BILL LINES (billing.BillingLedger)
// =============================================================================

// UpsertBillLine implements billing.BillingLedger. The ON CONFLICT clause
// makes regeneration replace the prior line for the same key atomically.
func (s *Store) UpsertBillLine(ctx context.Context, line billing.BillLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bill_lines
		(deployment_id, year, month, active_days, service_fee_amount, accommodation_fee_amount, generated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(deployment_id, year, month) DO UPDATE SET
			active_days = excluded.active_days,
			service_fee_amount = excluded.service_fee_amount,
			accommodation_fee_amount = excluded.accommodation_fee_amount,
			generated_at = excluded.generated_at`,
		line.DeploymentID, line.Year, int(line.Month), line.ActiveDays,
		line.ServiceFeeAmount.String(), line.AccommodationFeeAmount.String(),
		timestamp(line.GeneratedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert bill line: %w", err)
	}
	return nil
}

func (s *Store) ListBillLines(ctx context.Context, year int, month time.Month) ([]billing.BillLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT deployment_id, year, month, active_days, service_fee_amount, accommodation_fee_amount, generated_at
		FROM bill_lines WHERE year = ? AND month = ?
		ORDER BY deployment_id`, year, int(month))
	if err != nil {
		return nil, fmt.Errorf("failed to list bill lines: %w", err)
	}
	defer rows.Close()

	var lines []billing.BillLine
	for rows.Next() {
		line, err := scanBillLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, *line)
	}
	return lines, rows.Err()
}

func (s *Store) GetBillLine(ctx context.Context, id billing.DeploymentID, year int, month time.Month) (*billing.BillLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT deployment_id, year, month, active_days, service_fee_amount, accommodation_fee_amount, generated_at
		FROM bill_lines WHERE deployment_id = ? AND year = ? AND month = ?`,
		id, year, int(month))

	line, err := scanBillLine(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill line: %w", err)
	}
	return line, nil
}

func scanBillLine(row rowScanner) (*billing.BillLine, error) {
	var line billing.BillLine
	var month int
	var service, accom, generatedAt string
	if err := row.Scan(&line.DeploymentID, &line.Year, &month, &line.ActiveDays, &service, &accom, &generatedAt); err != nil {
		return nil, err
	}
	line.Month = time.Month(month)

	var err error
	if line.ServiceFeeAmount, err = decimal.NewFromString(service); err != nil {
		return nil, fmt.Errorf("corrupt service fee %q: %w", service, err)
	}
	if line.AccommodationFeeAmount, err = decimal.NewFromString(accom); err != nil {
		return nil, fmt.Errorf("corrupt accommodation fee %q: %w", accom, err)
	}
	line.GeneratedAt = parseTimestamp(generatedAt)
	return &line, nil
}

// =============================================================================
// BILLING RUNS - Audit rows, one per generation run
// =============================================================================

type BillingRun struct {
	ID          string
	Year        int
	Month       time.Month
	Status      string // running, completed, failed
	Written     int
	Skipped     int
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

func (s *Store) SaveBillingRun(ctx context.Context, run BillingRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var completedAt any
	if run.CompletedAt != nil {
		completedAt = timestamp(*run.CompletedAt)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO billing_runs (id, year, month, status, written, skipped, error, started_at, completed_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			written = excluded.written,
			skipped = excluded.skipped,
			error = excluded.error,
			completed_at = excluded.completed_at`,
		run.ID, run.Year, int(run.Month), run.Status, run.Written, run.Skipped,
		run.Error, timestamp(run.StartedAt), completedAt, timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save billing run: %w", err)
	}
	return nil
}

func (s *Store) ListBillingRuns(ctx context.Context, limit int) ([]BillingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, year, month, status, written, skipped, COALESCE(error, ''), started_at, completed_at
		FROM billing_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list billing runs: %w", err)
	}
	defer rows.Close()

	var runs []BillingRun
	for rows.Next() {
		var run BillingRun
		var month int
		var startedAt string
		var completedAt sql.NullString
		if err := rows.Scan(&run.ID, &run.Year, &month, &run.Status, &run.Written, &run.Skipped, &run.Error, &startedAt, &completedAt); err != nil {
			return nil, err
		}
		run.Month = time.Month(month)
		run.StartedAt = parseTimestamp(startedAt)
		if completedAt.Valid {
			t := parseTimestamp(completedAt.String)
			run.CompletedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// HasCompletedRun reports whether a completed run exists for the month.
// The scheduler uses this to generate each month exactly once.
func (s *Store) HasCompletedRun(ctx context.Context, year int, month time.Month) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM billing_runs
		WHERE year = ? AND month = ? AND status = 'completed'`,
		year, int(month)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check billing runs: %w", err)
	}
	return n > 0, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
