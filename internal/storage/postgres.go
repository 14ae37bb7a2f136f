package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/taxtrack/itax-automation/internal/config"
	"github.com/taxtrack/itax-automation/internal/models"
)

// CompanyStore reads the company register.
type CompanyStore interface {
	// ListCompanies returns the companies covered by the selection, in
	// ascending ID order.
	ListCompanies(ctx context.Context, sel models.Selection) ([]models.Company, error)
}

// ResultSink persists one extraction result: the register status plus
// the structured payload.
type ResultSink interface {
	SaveResult(ctx context.Context, result models.ExtractionResult) error
}

// RunStore records batch run summaries.
type RunStore interface {
	CreateRun(ctx context.Context, run models.BatchRun) error
	FinishRun(ctx context.Context, run models.BatchRun) error
	ListRuns(ctx context.Context, limit int) ([]models.BatchRun, error)
}

// PostgresStore implements CompanyStore, ResultSink and RunStore over a
// pgx connection pool.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

// NewPostgresStore connects to the database and verifies the
// connection.
func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, logger *logrus.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	logger.Info("Connected to database")
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Health reports pool status for the health endpoint.
func (s *PostgresStore) Health(ctx context.Context) map[string]interface{} {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := s.pool.Ping(pingCtx); err != nil {
		return map[string]interface{}{"status": "unhealthy", "error": err.Error()}
	}
	stat := s.pool.Stat()
	return map[string]interface{}{
		"status":      "healthy",
		"total_conns": stat.TotalConns(),
		"idle_conns":  stat.IdleConns(),
	}
}

// ListCompanies returns companies in ascending ID order. A selection
// can narrow by explicit IDs or by a start index and batch size for
// sharded workers; both narrow against the same ordering, so shards
// never overlap.
func (s *PostgresStore) ListCompanies(ctx context.Context, sel models.Selection) ([]models.Company, error) {
	query := `
		SELECT id, company_name, kra_pin, kra_password, status, last_checked
		FROM companies`
	args := []interface{}{}

	if len(sel.IDs) > 0 {
		query += ` WHERE id = ANY($1)`
		args = append(args, sel.IDs)
	}
	query += ` ORDER BY id ASC`

	if sel.BatchSize > 0 {
		query += fmt.Sprintf(` OFFSET %d LIMIT %d`, sel.StartIndex, sel.BatchSize)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []models.Company
	for rows.Next() {
		var c models.Company
		if err := rows.Scan(&c.ID, &c.Name, &c.TaxPIN, &c.Password, &c.Status, &c.LastChecked); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}

// SaveResult writes everything one task run produced: the register
// status, the day-keyed extraction payload and any ledger rows. Each
// piece lands independently so a partial failure loses as little as
// possible.
func (s *PostgresStore) SaveResult(ctx context.Context, result models.ExtractionResult) error {
	if err := s.updateCompanyStatus(ctx, result.CompanyID, result.Status); err != nil {
		return err
	}
	if err := s.upsertExtraction(ctx, result); err != nil {
		return err
	}
	if len(result.LedgerRows) > 0 {
		if err := s.replaceLedgerRows(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) updateCompanyStatus(ctx context.Context, companyID int64, status string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE companies
		SET status = $2, last_checked = now()
		WHERE id = $1`,
		companyID, status)
	if err != nil {
		return fmt.Errorf("failed to update company status: %w", err)
	}
	return nil
}

// upsertExtraction keeps one payload per company, task and calendar
// day. Re-running the same task on the same day replaces that day's
// payload; a new day appends a new row.
func (s *PostgresStore) upsertExtraction(ctx context.Context, result models.ExtractionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode extraction payload: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO extractions (company_id, task, extracted_on, status, payload, completed_at)
		VALUES ($1, $2, $3::date, $4, $5, $6)
		ON CONFLICT (company_id, task, extracted_on)
		DO UPDATE SET status = EXCLUDED.status,
		              payload = EXCLUDED.payload,
		              completed_at = EXCLUDED.completed_at`,
		result.CompanyID, result.TaskName, result.CompletedAt, result.Status, payload, result.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert extraction: %w", err)
	}
	return nil
}

// replaceLedgerRows swaps the company's rows for the extraction day.
func (s *PostgresStore) replaceLedgerRows(ctx context.Context, result models.ExtractionResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM ledger_entries
		WHERE company_id = $1 AND extracted_on = $2::date`,
		result.CompanyID, result.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to clear ledger rows: %w", err)
	}

	batch := &pgx.Batch{}
	for _, row := range result.LedgerRows {
		batch.Queue(`
			INSERT INTO ledger_entries
				(company_id, extracted_on, tax_obligation, transaction_date,
				 reference_number, particulars, transaction_type, debit, credit)
			VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9)`,
			result.CompanyID, result.CompletedAt, row.Obligation, row.TransactionDate,
			row.Reference, row.Particulars, row.TransactionType, row.Debit, row.Credit)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert ledger rows: %w", err)
	}
	return tx.Commit(ctx)
}

// CreateRun records a run at start time.
func (s *PostgresStore) CreateRun(ctx context.Context, run models.BatchRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO batch_runs (id, task, total, succeeded, failed, report_path, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID, run.TaskName, run.Total, run.Succeeded, run.Failed, run.ReportPath, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// FinishRun writes the final counters and finish time.
func (s *PostgresStore) FinishRun(ctx context.Context, run models.BatchRun) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE batch_runs
		SET succeeded = $2, failed = $3, report_path = $4, finished_at = $5
		WHERE id = $1`,
		run.ID, run.Succeeded, run.Failed, run.ReportPath, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]models.BatchRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, task, total, succeeded, failed, report_path, started_at, finished_at
		FROM batch_runs
		ORDER BY started_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []models.BatchRun
	for rows.Next() {
		var run models.BatchRun
		if err := rows.Scan(&run.ID, &run.TaskName, &run.Total, &run.Succeeded,
			&run.Failed, &run.ReportPath, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
