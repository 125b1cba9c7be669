package models

import "time"

// Frequency constants for recurring payments
const (
	FreqEveryMinute = "every_minute"
	Freq5Minutes    = "every_5_minutes"
	Freq15Minutes   = "every_15_minutes"
	Freq30Minutes   = "every_30_minutes"
	FreqHourly      = "hourly"
	FreqDaily       = "daily"
	FreqWeekly      = "weekly"
	FreqMonthly     = "monthly"
)

// Recurring payment status constants
const (
	RecurringActive    = "active"
	RecurringPaused    = "paused"
	RecurringCancelled = "cancelled"
)

// RecurringPayment represents a standing payment order to a contact address
type RecurringPayment struct {
	ID           int64      `json:"id"`
	ContactID    int64      `json:"contact_id"`
	AddressID    int64      `json:"address_id"`
	NodeID       *int64     `json:"node_id,omitempty"`
	CategoryID   *int64     `json:"category_id,omitempty"`
	AmountSat    int64      `json:"amount_sat"`
	Frequency    string     `json:"frequency"`
	TimeOfDay    string     `json:"time_of_day"`
	DayOfWeek    int        `json:"day_of_week"`
	DayOfMonth   int        `json:"day_of_month"`
	Message      string     `json:"message,omitempty"`
	Status       string     `json:"status"`
	NextRunAt    time.Time  `json:"next_run_at"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	TotalPaidSat int64      `json:"total_paid_sat"`
	PaymentCount int64      `json:"payment_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Contact      *Contact   `json:"contact,omitempty"`
}

// TargetAddress returns the contact address this payment is bound to
func (rp *RecurringPayment) TargetAddress() *ContactAddress {
	if rp.Contact == nil {
		return nil
	}
	for i := range rp.Contact.Addresses {
		if rp.Contact.Addresses[i].ID == rp.AddressID {
			return &rp.Contact.Addresses[i]
		}
	}
	return nil
}

// CreateRecurringPaymentRequest is the request body for creating a recurring payment
type CreateRecurringPaymentRequest struct {
	ContactID  int64  `json:"contact_id"`
	AddressID  int64  `json:"address_id"`
	NodeID     *int64 `json:"node_id,omitempty"`
	CategoryID *int64 `json:"category_id,omitempty"`
	AmountSat  int64  `json:"amount_sat"`
	Frequency  string `json:"frequency"`
	TimeOfDay  string `json:"time_of_day"`
	DayOfWeek  *int   `json:"day_of_week,omitempty"`
	DayOfMonth *int   `json:"day_of_month,omitempty"`
	Message    string `json:"message,omitempty"`
}

// UpdateRecurringPaymentRequest is the request body for editing a recurring payment
type UpdateRecurringPaymentRequest struct {
	AddressID  *int64  `json:"address_id,omitempty"`
	AmountSat  *int64  `json:"amount_sat,omitempty"`
	Frequency  *string `json:"frequency,omitempty"`
	TimeOfDay  *string `json:"time_of_day,omitempty"`
	DayOfWeek  *int    `json:"day_of_week,omitempty"`
	DayOfMonth *int    `json:"day_of_month,omitempty"`
	Message    *string `json:"message,omitempty"`
	CategoryID *int64  `json:"category_id,omitempty"`
}
