package services

import (
	"context"
	"database/sql"
	"time"

	"phoenixd-dashboard-server/models"
)

const recurringColumns = `id, contact_id, address_id, node_id, category_id, amount_sat,
	frequency, time_of_day, day_of_week, day_of_month, message, status,
	next_run_at, last_run_at, last_error, total_paid_sat, payment_count,
	created_at, updated_at`

// CreateRecurringPayment inserts a new recurring payment
func (s *DBService) CreateRecurringPayment(ctx context.Context, rp *models.RecurringPayment) (*models.RecurringPayment, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO recurring_payments
			(contact_id, address_id, node_id, category_id, amount_sat, frequency,
			 time_of_day, day_of_week, day_of_month, message, status, next_run_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at
	`, rp.ContactID, rp.AddressID, rp.NodeID, rp.CategoryID, rp.AmountSat, rp.Frequency,
		rp.TimeOfDay, rp.DayOfWeek, rp.DayOfMonth, rp.Message, rp.Status, rp.NextRunAt).
		Scan(&rp.ID, &rp.CreatedAt, &rp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rp, nil
}

// GetRecurringPayment retrieves a recurring payment with its contact and
// addresses loaded, ready for the executor.
func (s *DBService) GetRecurringPayment(ctx context.Context, id int64) (*models.RecurringPayment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recurringColumns+` FROM recurring_payments WHERE id = $1
	`, id)

	rp, err := scanRecurringPayment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	contact, err := s.GetContact(ctx, rp.ContactID)
	if err != nil {
		return nil, err
	}
	rp.Contact = contact

	return rp, nil
}

// ListRecurringPayments returns all recurring payments, newest first
func (s *DBService) ListRecurringPayments(ctx context.Context) ([]models.RecurringPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recurringColumns+` FROM recurring_payments ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecurringPayments(rows)
}

// ListDueRecurringPayments returns active schedules due at now whose node
// affinity matches the given node or is absent, oldest due first. Contacts
// are loaded so the rows can go straight to the executor.
func (s *DBService) ListDueRecurringPayments(ctx context.Context, now time.Time, nodeID int64) ([]models.RecurringPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recurringColumns+` FROM recurring_payments
		WHERE status = $1 AND next_run_at <= $2 AND (node_id = $3 OR node_id IS NULL)
		ORDER BY next_run_at
	`, models.RecurringActive, now, nodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	due, err := collectRecurringPayments(rows)
	if err != nil {
		return nil, err
	}

	for i := range due {
		contact, err := s.GetContact(ctx, due[i].ContactID)
		if err != nil {
			return nil, err
		}
		due[i].Contact = contact
	}

	return due, nil
}

// UpdateRecurringPayment persists edited cadence/amount/target fields and
// the recomputed next run time.
func (s *DBService) UpdateRecurringPayment(ctx context.Context, rp *models.RecurringPayment) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE recurring_payments
		SET address_id = $2, amount_sat = $3, frequency = $4, time_of_day = $5,
			day_of_week = $6, day_of_month = $7, message = $8, category_id = $9,
			next_run_at = $10, updated_at = now()
		WHERE id = $1
	`, rp.ID, rp.AddressID, rp.AmountSat, rp.Frequency, rp.TimeOfDay,
		rp.DayOfWeek, rp.DayOfMonth, rp.Message, rp.CategoryID, rp.NextRunAt)
	return err
}

// SetRecurringPaymentStatus updates the lifecycle status
func (s *DBService) SetRecurringPaymentStatus(ctx context.Context, id int64, status string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE recurring_payments SET status = $2, updated_at = now() WHERE id = $1
	`, id, status)
	return err
}

// RecordExecutionResult appends the execution record and applies the
// schedule state update (and the payment link, on success) in one
// transaction, so a crash cannot leave an attempt without a trace.
func (s *DBService) RecordExecutionResult(ctx context.Context, exec *models.PaymentExecution, upd *models.RunStateUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO recurring_payment_executions
			(attempt_id, recurring_payment_id, status, amount_sat, payment_id, payment_hash, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, exec.AttemptID, exec.RecurringPaymentID, exec.Status, exec.AmountSat,
		nullIfEmpty(exec.PaymentID), nullIfEmpty(exec.PaymentHash), nullIfEmpty(exec.ErrorMessage)).
		Scan(&exec.ID, &exec.CreatedAt)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE recurring_payments
		SET next_run_at = COALESCE($2, next_run_at),
			last_run_at = COALESCE($3, last_run_at),
			last_error = $4,
			total_paid_sat = total_paid_sat + $5,
			payment_count = payment_count + $6,
			updated_at = now()
		WHERE id = $1
	`, upd.RecurringPaymentID, upd.NextRunAt, upd.LastRunAt,
		nullIfEmpty(upd.LastError), upd.AmountPaidSat, upd.CountDelta)
	if err != nil {
		return err
	}

	if upd.Link != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payment_links (payment_id, contact_id, category_id, recurring_payment_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (payment_id) DO UPDATE
			SET contact_id = EXCLUDED.contact_id,
				category_id = EXCLUDED.category_id,
				recurring_payment_id = EXCLUDED.recurring_payment_id
		`, upd.Link.PaymentID, upd.Link.ContactID, upd.Link.CategoryID, upd.Link.RecurringPaymentID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListExecutions returns execution history for a recurring payment
func (s *DBService) ListExecutions(ctx context.Context, recurringID int64, limit int) ([]models.PaymentExecution, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, attempt_id, recurring_payment_id, status, amount_sat,
			payment_id, payment_hash, error_message, created_at
		FROM recurring_payment_executions
		WHERE recurring_payment_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, recurringID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []models.PaymentExecution
	for rows.Next() {
		var exec models.PaymentExecution
		var paymentID, paymentHash, errorMessage sql.NullString
		err := rows.Scan(&exec.ID, &exec.AttemptID, &exec.RecurringPaymentID, &exec.Status,
			&exec.AmountSat, &paymentID, &paymentHash, &errorMessage, &exec.CreatedAt)
		if err != nil {
			return nil, err
		}
		if paymentID.Valid {
			exec.PaymentID = paymentID.String
		}
		if paymentHash.Valid {
			exec.PaymentHash = paymentHash.String
		}
		if errorMessage.Valid {
			exec.ErrorMessage = errorMessage.String
		}
		executions = append(executions, exec)
	}

	return executions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecurringPayment(row rowScanner) (*models.RecurringPayment, error) {
	var rp models.RecurringPayment
	var nodeID, categoryID sql.NullInt64
	var message, lastError sql.NullString
	var lastRunAt sql.NullTime

	err := row.Scan(&rp.ID, &rp.ContactID, &rp.AddressID, &nodeID, &categoryID, &rp.AmountSat,
		&rp.Frequency, &rp.TimeOfDay, &rp.DayOfWeek, &rp.DayOfMonth, &message, &rp.Status,
		&rp.NextRunAt, &lastRunAt, &lastError, &rp.TotalPaidSat, &rp.PaymentCount,
		&rp.CreatedAt, &rp.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if nodeID.Valid {
		rp.NodeID = &nodeID.Int64
	}
	if categoryID.Valid {
		rp.CategoryID = &categoryID.Int64
	}
	if message.Valid {
		rp.Message = message.String
	}
	if lastError.Valid {
		rp.LastError = lastError.String
	}
	if lastRunAt.Valid {
		rp.LastRunAt = &lastRunAt.Time
	}

	return &rp, nil
}

func collectRecurringPayments(rows *sql.Rows) ([]models.RecurringPayment, error) {
	var payments []models.RecurringPayment
	for rows.Next() {
		rp, err := scanRecurringPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *rp)
	}
	return payments, rows.Err()
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
