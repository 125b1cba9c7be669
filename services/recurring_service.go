package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"phoenixd-dashboard-server/models"
)

var (
	// ErrExecutionInProgress is returned when an execution is requested
	// for a schedule that is already being executed.
	ErrExecutionInProgress = errors.New("recurring payment execution already in progress")
	// ErrRecurringNotFound is returned for unknown schedule ids
	ErrRecurringNotFound = errors.New("recurring payment not found")
)

// RecurringLedger is the persistence contract for recurring payments:
// schedule CRUD, the atomic due query, and the append-only execution log.
type RecurringLedger interface {
	CreateRecurringPayment(ctx context.Context, rp *models.RecurringPayment) (*models.RecurringPayment, error)
	GetRecurringPayment(ctx context.Context, id int64) (*models.RecurringPayment, error)
	ListRecurringPayments(ctx context.Context) ([]models.RecurringPayment, error)
	UpdateRecurringPayment(ctx context.Context, rp *models.RecurringPayment) error
	SetRecurringPaymentStatus(ctx context.Context, id int64, status string) error
	ListDueRecurringPayments(ctx context.Context, now time.Time, nodeID int64) ([]models.RecurringPayment, error)
	RecordExecutionResult(ctx context.Context, exec *models.PaymentExecution, upd *models.RunStateUpdate) error
	ListExecutions(ctx context.Context, recurringID int64, limit int) ([]models.PaymentExecution, error)
	GetContact(ctx context.Context, id int64) (*models.Contact, error)
	GetActiveNode(ctx context.Context) (*models.NodeConnection, error)
}

const exportHistoryLimit = 1000

// RecurringService orchestrates recurring payment executions and owns the
// schedule lifecycle operations behind the REST surface.
type RecurringService struct {
	ledger   RecurringLedger
	gateway  PaymentGateway
	resolver AddressResolver
	events   EventPublisher
	storage  StorageService

	// NotifyOnFailure also publishes an event for failed executions.
	// The dashboard historically only notified on success.
	NotifyOnFailure bool

	mu       sync.Mutex
	inflight map[int64]struct{}
}

func NewRecurringService(ledger RecurringLedger, gateway PaymentGateway, resolver AddressResolver, events EventPublisher, storage StorageService) *RecurringService {
	return &RecurringService{
		ledger:   ledger,
		gateway:  gateway,
		resolver: resolver,
		events:   events,
		storage:  storage,
		inflight: make(map[int64]struct{}),
	}
}

// CreateRecurringPayment validates and stores a new recurring payment with
// its first run time computed from now.
func (s *RecurringService) CreateRecurringPayment(ctx context.Context, req *models.CreateRecurringPaymentRequest) (*models.RecurringPayment, error) {
	if req.AmountSat <= 0 {
		return nil, fmt.Errorf("amount_sat must be positive")
	}

	dayOfWeek := 1 // Monday
	if req.DayOfWeek != nil {
		dayOfWeek = *req.DayOfWeek
	}
	dayOfMonth := 1
	if req.DayOfMonth != nil {
		dayOfMonth = *req.DayOfMonth
	}
	timeOfDay := req.TimeOfDay
	if timeOfDay == "" {
		timeOfDay = "00:00"
	}
	if err := ValidateCadence(req.Frequency, timeOfDay, dayOfWeek, dayOfMonth); err != nil {
		return nil, err
	}

	contact, err := s.ledger.GetContact(ctx, req.ContactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, fmt.Errorf("contact not found: %d", req.ContactID)
	}
	addr := findAddress(contact, req.AddressID)
	if addr == nil {
		return nil, fmt.Errorf("address %d does not belong to contact %d", req.AddressID, req.ContactID)
	}
	if !addr.SupportsRecurring() {
		return nil, fmt.Errorf("address type %s cannot be paid unattended", addr.Type)
	}

	now := time.Now().UTC()
	rp := &models.RecurringPayment{
		ContactID:  req.ContactID,
		AddressID:  req.AddressID,
		NodeID:     req.NodeID,
		CategoryID: req.CategoryID,
		AmountSat:  req.AmountSat,
		Frequency:  req.Frequency,
		TimeOfDay:  timeOfDay,
		DayOfWeek:  dayOfWeek,
		DayOfMonth: dayOfMonth,
		Message:    req.Message,
		Status:     models.RecurringActive,
		NextRunAt:  NextRunAt(req.Frequency, timeOfDay, dayOfWeek, dayOfMonth, now),
	}

	created, err := s.ledger.CreateRecurringPayment(ctx, rp)
	if err != nil {
		return nil, err
	}
	created.Contact = contact

	return created, nil
}

// UpdateRecurringPayment applies edits and recomputes the next run time
// when the cadence changed.
func (s *RecurringService) UpdateRecurringPayment(ctx context.Context, id int64, req *models.UpdateRecurringPaymentRequest) (*models.RecurringPayment, error) {
	rp, err := s.ledger.GetRecurringPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if rp == nil {
		return nil, ErrRecurringNotFound
	}

	cadenceChanged := false
	if req.AmountSat != nil {
		if *req.AmountSat <= 0 {
			return nil, fmt.Errorf("amount_sat must be positive")
		}
		rp.AmountSat = *req.AmountSat
	}
	if req.Frequency != nil {
		rp.Frequency = *req.Frequency
		cadenceChanged = true
	}
	if req.TimeOfDay != nil {
		rp.TimeOfDay = *req.TimeOfDay
		cadenceChanged = true
	}
	if req.DayOfWeek != nil {
		rp.DayOfWeek = *req.DayOfWeek
		cadenceChanged = true
	}
	if req.DayOfMonth != nil {
		rp.DayOfMonth = *req.DayOfMonth
		cadenceChanged = true
	}
	if req.Message != nil {
		rp.Message = *req.Message
	}
	if req.CategoryID != nil {
		rp.CategoryID = req.CategoryID
	}
	if req.AddressID != nil {
		addr := findAddress(rp.Contact, *req.AddressID)
		if addr == nil {
			return nil, fmt.Errorf("address %d does not belong to contact %d", *req.AddressID, rp.ContactID)
		}
		if !addr.SupportsRecurring() {
			return nil, fmt.Errorf("address type %s cannot be paid unattended", addr.Type)
		}
		rp.AddressID = *req.AddressID
	}

	if err := ValidateCadence(rp.Frequency, rp.TimeOfDay, rp.DayOfWeek, rp.DayOfMonth); err != nil {
		return nil, err
	}
	if cadenceChanged {
		rp.NextRunAt = NextRunAt(rp.Frequency, rp.TimeOfDay, rp.DayOfWeek, rp.DayOfMonth, time.Now().UTC())
	}

	if err := s.ledger.UpdateRecurringPayment(ctx, rp); err != nil {
		return nil, err
	}

	return rp, nil
}

// SetStatus pauses, resumes, or cancels a recurring payment
func (s *RecurringService) SetStatus(ctx context.Context, id int64, status string) error {
	rp, err := s.ledger.GetRecurringPayment(ctx, id)
	if err != nil {
		return err
	}
	if rp == nil {
		return ErrRecurringNotFound
	}
	if rp.Status == models.RecurringCancelled {
		return fmt.Errorf("recurring payment %d is cancelled", id)
	}
	return s.ledger.SetRecurringPaymentStatus(ctx, id, status)
}

// Get returns a recurring payment with its contact loaded
func (s *RecurringService) Get(ctx context.Context, id int64) (*models.RecurringPayment, error) {
	return s.ledger.GetRecurringPayment(ctx, id)
}

// List returns all recurring payments
func (s *RecurringService) List(ctx context.Context) ([]models.RecurringPayment, error) {
	return s.ledger.ListRecurringPayments(ctx)
}

// ListExecutions returns execution history for a recurring payment
func (s *RecurringService) ListExecutions(ctx context.Context, id int64, limit int) ([]models.PaymentExecution, error) {
	return s.ledger.ListExecutions(ctx, id, limit)
}

// ExecuteByID runs one recurring payment on demand. Cancelled schedules
// are refused; paused ones may be run manually by the operator.
func (s *RecurringService) ExecuteByID(ctx context.Context, id int64) (*models.PaymentExecution, error) {
	rp, err := s.ledger.GetRecurringPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if rp == nil {
		return nil, ErrRecurringNotFound
	}
	if rp.Status == models.RecurringCancelled {
		return nil, fmt.Errorf("recurring payment %d is cancelled", id)
	}
	return s.Execute(ctx, rp)
}

// Execute runs one payment attempt for the given schedule. Payment-level
// failures are captured into a failed execution record and returned as a
// result, never as an error; only lock contention and persistence failures
// propagate. Exactly one execution record is written per invocation.
func (s *RecurringService) Execute(ctx context.Context, rp *models.RecurringPayment) (*models.PaymentExecution, error) {
	if !s.acquire(rp.ID) {
		return nil, ErrExecutionInProgress
	}
	defer s.release(rp.ID)

	now := time.Now().UTC()
	exec := &models.PaymentExecution{
		AttemptID:          uuid.New().String(),
		RecurringPaymentID: rp.ID,
		AmountSat:          rp.AmountSat,
	}

	addr := rp.TargetAddress()
	if addr == nil {
		// Configuration defect: the target address is gone. Record the
		// failure but do not reschedule; this needs operator attention.
		exec.Status = models.ExecutionFailed
		exec.ErrorMessage = fmt.Sprintf("payment address %d no longer exists on contact %d", rp.AddressID, rp.ContactID)
		upd := &models.RunStateUpdate{
			RecurringPaymentID: rp.ID,
			LastError:          exec.ErrorMessage,
		}
		if err := s.ledger.RecordExecutionResult(ctx, exec, upd); err != nil {
			return nil, err
		}
		log.Printf("recurring: payment %d failed: %s", rp.ID, exec.ErrorMessage)
		return exec, nil
	}

	result, payErr := s.dispatch(ctx, rp, addr)
	next := NextRunAt(rp.Frequency, rp.TimeOfDay, rp.DayOfWeek, rp.DayOfMonth, now)

	if payErr != nil {
		exec.Status = models.ExecutionFailed
		exec.ErrorMessage = payErr.Error()
		upd := &models.RunStateUpdate{
			RecurringPaymentID: rp.ID,
			NextRunAt:          &next,
			LastError:          exec.ErrorMessage,
		}
		if err := s.ledger.RecordExecutionResult(ctx, exec, upd); err != nil {
			return nil, err
		}
		log.Printf("recurring: payment %d to contact %d failed: %v", rp.ID, rp.ContactID, payErr)
		if s.NotifyOnFailure {
			s.publish(ctx, models.EventRecurringFailure, rp, exec, now)
		}
		return exec, nil
	}

	exec.Status = models.ExecutionSuccess
	exec.PaymentID = result.PaymentID
	exec.PaymentHash = result.PaymentHash
	upd := &models.RunStateUpdate{
		RecurringPaymentID: rp.ID,
		NextRunAt:          &next,
		LastRunAt:          &now,
		AmountPaidSat:      rp.AmountSat,
		CountDelta:         1,
	}
	if result.PaymentID != "" {
		upd.Link = &models.PaymentLink{
			PaymentID:          result.PaymentID,
			ContactID:          rp.ContactID,
			CategoryID:         rp.CategoryID,
			RecurringPaymentID: rp.ID,
		}
	}
	if err := s.ledger.RecordExecutionResult(ctx, exec, upd); err != nil {
		return nil, err
	}
	log.Printf("recurring: payment %d paid %d sat to contact %d, next run %s",
		rp.ID, rp.AmountSat, rp.ContactID, next.Format(time.RFC3339))
	s.publish(ctx, models.EventRecurringSuccess, rp, exec, now)

	return exec, nil
}

// dispatch selects the gateway operation for the address kind. Lightning
// addresses fall back to direct LNURL resolution when phoenixd reports a
// connectivity-class resolution failure; offers have no fallback path.
func (s *RecurringService) dispatch(ctx context.Context, rp *models.RecurringPayment, addr *models.ContactAddress) (*models.PayResult, error) {
	switch addr.Type {
	case models.AddressTypeLightning:
		result, err := s.gateway.PayLnAddress(ctx, addr.Address, rp.AmountSat, rp.Message)
		if err != nil && IsConnectivityError(err) {
			log.Printf("recurring: payment %d: node could not resolve %s, trying lnurl fallback: %v", rp.ID, addr.Address, err)
			invoice, rerr := s.resolver.ResolveInvoice(ctx, addr.Address, rp.AmountSat, rp.Message)
			if rerr != nil {
				return nil, rerr
			}
			return s.gateway.PayInvoice(ctx, invoice, rp.AmountSat)
		}
		return result, err
	case models.AddressTypeOffer:
		return s.gateway.PayOffer(ctx, addr.Address, rp.AmountSat, rp.Message)
	default:
		return nil, fmt.Errorf("unsupported address type for unattended payment: %s", addr.Type)
	}
}

// ExportExecutions writes a JSON snapshot of a schedule's execution
// history to the export store and returns the storage key.
func (s *RecurringService) ExportExecutions(ctx context.Context, id int64) (string, error) {
	rp, err := s.ledger.GetRecurringPayment(ctx, id)
	if err != nil {
		return "", err
	}
	if rp == nil {
		return "", ErrRecurringNotFound
	}
	executions, err := s.ledger.ListExecutions(ctx, id, exportHistoryLimit)
	if err != nil {
		return "", err
	}

	snapshot := models.ExecutionExport{
		RecurringPaymentID: id,
		ExportedAt:         time.Now().UTC(),
		TotalPaidSat:       rp.TotalPaidSat,
		PaymentCount:       rp.PaymentCount,
		Executions:         executions,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", err
	}

	key := GenerateExportKey(id)
	if err := s.storage.SaveExport(ctx, key, data); err != nil {
		return "", err
	}

	return key, nil
}

// publish is fire and forget; a dead notifier never fails an execution
func (s *RecurringService) publish(ctx context.Context, event string, rp *models.RecurringPayment, exec *models.PaymentExecution, at time.Time) {
	payload := models.RecurringPaymentEvent{
		RecurringPaymentID: rp.ID,
		ContactID:          rp.ContactID,
		Status:             exec.Status,
		AmountSat:          exec.AmountSat,
		PaymentHash:        exec.PaymentHash,
		ErrorMessage:       exec.ErrorMessage,
		ExecutedAt:         at,
	}
	if err := s.events.Publish(ctx, event, payload); err != nil {
		log.Printf("recurring: publish %s for payment %d: %v", event, rp.ID, err)
	}
}

// acquire takes the advisory lock for a schedule id. A manual run and a
// scheduled tick can otherwise race on the same schedule.
func (s *RecurringService) acquire(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[id]; busy {
		return false
	}
	s.inflight[id] = struct{}{}
	return true
}

func (s *RecurringService) release(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

func findAddress(contact *models.Contact, addressID int64) *models.ContactAddress {
	if contact == nil {
		return nil
	}
	for i := range contact.Addresses {
		if contact.Addresses[i].ID == addressID {
			return &contact.Addresses[i]
		}
	}
	return nil
}
