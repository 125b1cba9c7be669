package models

import "time"

// Execution status constants
const (
	ExecutionSuccess = "success"
	ExecutionFailed  = "failed"
)

// Event names published on execution outcomes
const (
	EventRecurringSuccess = "recurring_payment_success"
	EventRecurringFailure = "recurring_payment_failure"
)

// PaymentExecution is the immutable record of one execution attempt
type PaymentExecution struct {
	ID                 int64     `json:"id"`
	AttemptID          string    `json:"attempt_id"`
	RecurringPaymentID int64     `json:"recurring_payment_id"`
	Status             string    `json:"status"`
	AmountSat          int64     `json:"amount_sat"`
	PaymentID          string    `json:"payment_id,omitempty"`
	PaymentHash        string    `json:"payment_hash,omitempty"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// RunStateUpdate carries the mutable schedule state applied together with
// an execution record. A nil NextRunAt leaves next_run_at untouched (the
// missing-address case); an empty LastError clears the stored error.
type RunStateUpdate struct {
	RecurringPaymentID int64
	NextRunAt          *time.Time
	LastRunAt          *time.Time
	LastError          string
	AmountPaidSat      int64
	CountDelta         int64
	Link               *PaymentLink
}

// PaymentLink associates a settled payment with the contact (and category)
// it paid, keyed by the gateway payment id so re-linking is idempotent.
type PaymentLink struct {
	PaymentID          string `json:"payment_id"`
	ContactID          int64  `json:"contact_id"`
	CategoryID         *int64 `json:"category_id,omitempty"`
	RecurringPaymentID int64  `json:"recurring_payment_id"`
}

// RecurringPaymentEvent is the payload broadcast after an execution
type RecurringPaymentEvent struct {
	RecurringPaymentID int64     `json:"recurring_payment_id"`
	ContactID          int64     `json:"contact_id"`
	Status             string    `json:"status"`
	AmountSat          int64     `json:"amount_sat"`
	PaymentHash        string    `json:"payment_hash,omitempty"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	ExecutedAt         time.Time `json:"executed_at"`
}

// ExecutionExport is the snapshot written by the history export endpoint
type ExecutionExport struct {
	RecurringPaymentID int64              `json:"recurring_payment_id"`
	ExportedAt         time.Time          `json:"exported_at"`
	TotalPaidSat       int64              `json:"total_paid_sat"`
	PaymentCount       int64              `json:"payment_count"`
	Executions         []PaymentExecution `json:"executions"`
}
