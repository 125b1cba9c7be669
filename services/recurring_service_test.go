package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phoenixd-dashboard-server/models"
)

// fakeLedger is an in-memory RecurringLedger honoring the same contracts
// as the Postgres implementation: the due query filters on status, time,
// and affinity; RecordExecutionResult applies the execution record and the
// run-state update atomically.
type fakeLedger struct {
	mu         sync.Mutex
	nextID     int64
	payments   map[int64]*models.RecurringPayment
	contacts   map[int64]*models.Contact
	executions []models.PaymentExecution
	links      []models.PaymentLink
	activeNode *models.NodeConnection
	recordErr  map[int64]error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		payments:  make(map[int64]*models.RecurringPayment),
		contacts:  make(map[int64]*models.Contact),
		recordErr: make(map[int64]error),
	}
}

func (l *fakeLedger) CreateRecurringPayment(ctx context.Context, rp *models.RecurringPayment) (*models.RecurringPayment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	rp.ID = l.nextID
	rp.CreatedAt = time.Now().UTC()
	rp.UpdatedAt = rp.CreatedAt
	stored := *rp
	l.payments[rp.ID] = &stored
	return rp, nil
}

func (l *fakeLedger) GetRecurringPayment(ctx context.Context, id int64) (*models.RecurringPayment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rp, ok := l.payments[id]
	if !ok {
		return nil, nil
	}
	copied := *rp
	copied.Contact = l.contacts[rp.ContactID]
	return &copied, nil
}

func (l *fakeLedger) ListRecurringPayments(ctx context.Context) ([]models.RecurringPayment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.RecurringPayment
	for _, rp := range l.payments {
		out = append(out, *rp)
	}
	return out, nil
}

func (l *fakeLedger) UpdateRecurringPayment(ctx context.Context, rp *models.RecurringPayment) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored := *rp
	stored.Contact = nil
	l.payments[rp.ID] = &stored
	return nil
}

func (l *fakeLedger) SetRecurringPaymentStatus(ctx context.Context, id int64, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rp, ok := l.payments[id]; ok {
		rp.Status = status
	}
	return nil
}

func (l *fakeLedger) ListDueRecurringPayments(ctx context.Context, now time.Time, nodeID int64) ([]models.RecurringPayment, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var due []models.RecurringPayment
	for _, rp := range l.payments {
		if rp.Status != models.RecurringActive {
			continue
		}
		if rp.NextRunAt.After(now) {
			continue
		}
		if rp.NodeID != nil && *rp.NodeID != nodeID {
			continue
		}
		copied := *rp
		copied.Contact = l.contacts[rp.ContactID]
		due = append(due, copied)
	}
	return due, nil
}

func (l *fakeLedger) RecordExecutionResult(ctx context.Context, exec *models.PaymentExecution, upd *models.RunStateUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.recordErr[exec.RecurringPaymentID]; err != nil {
		return err
	}
	exec.ID = int64(len(l.executions) + 1)
	exec.CreatedAt = time.Now().UTC()
	l.executions = append(l.executions, *exec)

	if rp, ok := l.payments[upd.RecurringPaymentID]; ok {
		if upd.NextRunAt != nil {
			rp.NextRunAt = *upd.NextRunAt
		}
		if upd.LastRunAt != nil {
			rp.LastRunAt = upd.LastRunAt
		}
		rp.LastError = upd.LastError
		rp.TotalPaidSat += upd.AmountPaidSat
		rp.PaymentCount += upd.CountDelta
	}
	if upd.Link != nil {
		l.links = append(l.links, *upd.Link)
	}
	return nil
}

func (l *fakeLedger) ListExecutions(ctx context.Context, recurringID int64, limit int) ([]models.PaymentExecution, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.PaymentExecution
	for _, exec := range l.executions {
		if exec.RecurringPaymentID == recurringID {
			out = append(out, exec)
		}
	}
	return out, nil
}

func (l *fakeLedger) GetContact(ctx context.Context, id int64) (*models.Contact, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.contacts[id], nil
}

func (l *fakeLedger) GetActiveNode(ctx context.Context) (*models.NodeConnection, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.activeNode, nil
}

type fakeGateway struct {
	mu             sync.Mutex
	lnAddressCalls int
	offerCalls     int
	invoiceCalls   int
	lastInvoice    string
	lnAddressErr   error
	offerErr       error
	invoiceErr     error
	result         *models.PayResult
}

func (g *fakeGateway) PayLnAddress(ctx context.Context, address string, amountSat int64, message string) (*models.PayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lnAddressCalls++
	if g.lnAddressErr != nil {
		return nil, g.lnAddressErr
	}
	return g.result, nil
}

func (g *fakeGateway) PayOffer(ctx context.Context, offer string, amountSat int64, message string) (*models.PayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offerCalls++
	if g.offerErr != nil {
		return nil, g.offerErr
	}
	return g.result, nil
}

func (g *fakeGateway) PayInvoice(ctx context.Context, invoice string, amountSat int64) (*models.PayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.invoiceCalls++
	g.lastInvoice = invoice
	if g.invoiceErr != nil {
		return nil, g.invoiceErr
	}
	return g.result, nil
}

type fakeResolver struct {
	calls   int
	invoice string
	err     error
}

func (r *fakeResolver) ResolveInvoice(ctx context.Context, address string, amountSat int64, message string) (string, error) {
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return r.invoice, nil
}

type publishedEvent struct {
	name    string
	payload interface{}
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, event string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{name: event, payload: payload})
	return nil
}

func (p *fakePublisher) eventNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var names []string
	for _, e := range p.events {
		names = append(names, e.name)
	}
	return names
}

type testEnv struct {
	ledger    *fakeLedger
	gateway   *fakeGateway
	resolver  *fakeResolver
	publisher *fakePublisher
	service   *RecurringService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ledger := newFakeLedger()
	gateway := &fakeGateway{
		result: &models.PayResult{PaymentID: "pay-1", PaymentHash: "hash-1", AmountSat: 1000},
	}
	resolver := &fakeResolver{invoice: "lnbc10u1fakeinvoice"}
	publisher := &fakePublisher{}

	storage, err := NewLocalStorageService(t.TempDir())
	require.NoError(t, err)

	service := NewRecurringService(ledger, gateway, resolver, publisher, storage)
	return &testEnv{
		ledger:    ledger,
		gateway:   gateway,
		resolver:  resolver,
		publisher: publisher,
		service:   service,
	}
}

// seedPayment stores a contact with a lightning address and an offer, and
// an active daily schedule targeting the lightning address.
func (env *testEnv) seedPayment(t *testing.T) *models.RecurringPayment {
	t.Helper()
	env.ledger.contacts[1] = &models.Contact{
		ID:   1,
		Name: "Alice",
		Addresses: []models.ContactAddress{
			{ID: 10, ContactID: 1, Type: models.AddressTypeLightning, Address: "alice@example.com"},
			{ID: 11, ContactID: 1, Type: models.AddressTypeOffer, Address: "lno1fakeoffer"},
			{ID: 12, ContactID: 1, Type: models.AddressTypeInvoice, Address: "lnbc1singleuse"},
		},
	}

	rp, err := env.service.CreateRecurringPayment(context.Background(), &models.CreateRecurringPaymentRequest{
		ContactID: 1,
		AddressID: 10,
		AmountSat: 1000,
		Frequency: models.FreqDaily,
		TimeOfDay: "09:00",
	})
	require.NoError(t, err)
	return rp
}

func TestCreateRecurringPayment(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)

	assert.Equal(t, models.RecurringActive, rp.Status)
	assert.Equal(t, 1, rp.DayOfWeek)
	assert.Equal(t, 1, rp.DayOfMonth)
	assert.True(t, rp.NextRunAt.After(time.Now().UTC().Add(-time.Minute)))
}

func TestCreateRecurringPaymentRejectsSingleUseInvoice(t *testing.T) {
	env := newTestEnv(t)
	env.seedPayment(t)

	_, err := env.service.CreateRecurringPayment(context.Background(), &models.CreateRecurringPaymentRequest{
		ContactID: 1,
		AddressID: 12,
		AmountSat: 1000,
		Frequency: models.FreqDaily,
		TimeOfDay: "09:00",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be paid unattended")
}

func TestCreateRecurringPaymentValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedPayment(t)

	cases := []models.CreateRecurringPaymentRequest{
		{ContactID: 1, AddressID: 10, AmountSat: 0, Frequency: models.FreqDaily, TimeOfDay: "09:00"},
		{ContactID: 1, AddressID: 10, AmountSat: 1000, Frequency: "fortnightly", TimeOfDay: "09:00"},
		{ContactID: 99, AddressID: 10, AmountSat: 1000, Frequency: models.FreqDaily, TimeOfDay: "09:00"},
		{ContactID: 1, AddressID: 99, AmountSat: 1000, Frequency: models.FreqDaily, TimeOfDay: "09:00"},
	}
	for _, req := range cases {
		_, err := env.service.CreateRecurringPayment(context.Background(), &req)
		assert.Error(t, err)
	}
}

func TestExecuteSuccess(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)
	before, _ := env.ledger.GetRecurringPayment(context.Background(), rp.ID)

	exec, err := env.service.ExecuteByID(context.Background(), rp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, exec.Status)
	assert.Equal(t, "pay-1", exec.PaymentID)
	assert.Equal(t, "hash-1", exec.PaymentHash)
	assert.NotEmpty(t, exec.AttemptID)

	after, _ := env.ledger.GetRecurringPayment(context.Background(), rp.ID)
	assert.Equal(t, int64(1), after.PaymentCount)
	assert.Equal(t, int64(1000), after.TotalPaidSat)
	assert.Empty(t, after.LastError)
	assert.NotNil(t, after.LastRunAt)
	assert.True(t, after.NextRunAt.After(before.NextRunAt) || after.NextRunAt.Equal(before.NextRunAt),
		"next run must not move backwards")

	// Payment linked to the contact, keyed by payment id
	require.Len(t, env.ledger.links, 1)
	assert.Equal(t, "pay-1", env.ledger.links[0].PaymentID)
	assert.Equal(t, int64(1), env.ledger.links[0].ContactID)

	assert.Equal(t, []string{models.EventRecurringSuccess}, env.publisher.eventNames())
}

func TestTwoExecutionsAccumulateAggregates(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)

	_, err := env.service.ExecuteByID(context.Background(), rp.ID)
	require.NoError(t, err)
	_, err = env.service.ExecuteByID(context.Background(), rp.ID)
	require.NoError(t, err)

	after, _ := env.ledger.GetRecurringPayment(context.Background(), rp.ID)
	assert.Equal(t, int64(2), after.PaymentCount)
	assert.Equal(t, int64(2000), after.TotalPaidSat)
	assert.Len(t, env.ledger.executions, 2)
}

func TestExecuteGatewayReasonFailure(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)
	env.gateway.lnAddressErr = &GatewayError{Kind: ErrKindPayment, Message: "not enough funds"}
	before, _ := env.ledger.GetRecurringPayment(context.Background(), rp.ID)

	exec, err := env.service.ExecuteByID(context.Background(), rp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, exec.Status)
	assert.Equal(t, "not enough funds", exec.ErrorMessage)

	// Non-connectivity failures never trigger the fallback
	assert.Equal(t, 0, env.resolver.calls)
	assert.Equal(t, 0, env.gateway.invoiceCalls)

	// The failure is rescheduled on the normal cadence
	after, _ := env.ledger.GetRecurringPayment(context.Background(), rp.ID)
	assert.Equal(t, "not enough funds", after.LastError)
	assert.False(t, after.NextRunAt.Before(before.NextRunAt))
	assert.Equal(t, int64(0), after.PaymentCount)

	// No event on failure by default
	assert.Empty(t, env.publisher.eventNames())
}

func TestExecuteFallbackOnConnectivityError(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)
	env.gateway.lnAddressErr = &GatewayError{Kind: ErrKindConnectivity, Message: "could not resolve address"}

	exec, err := env.service.ExecuteByID(context.Background(), rp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSuccess, exec.Status)

	// Fallback invoked exactly once, and its invoice paid directly
	assert.Equal(t, 1, env.resolver.calls)
	assert.Equal(t, 1, env.gateway.invoiceCalls)
	assert.Equal(t, "lnbc10u1fakeinvoice", env.gateway.lastInvoice)
}

func TestExecuteFallbackFailureIsRecorded(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)
	env.gateway.lnAddressErr = &GatewayError{Kind: ErrKindConnectivity, Message: "could not resolve address"}
	env.resolver.err = errors.New("lnurl callback error: wallet offline")

	exec, err := env.service.ExecuteByID(context.Background(), rp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, exec.Status)
	assert.Contains(t, exec.ErrorMessage, "wallet offline")
	assert.Equal(t, 0, env.gateway.invoiceCalls)
}

func TestExecuteOfferHasNoFallback(t *testing.T) {
	env := newTestEnv(t)
	env.seedPayment(t)

	rp, err := env.service.CreateRecurringPayment(context.Background(), &models.CreateRecurringPaymentRequest{
		ContactID: 1,
		AddressID: 11,
		AmountSat: 500,
		Frequency: models.FreqHourly,
	})
	require.NoError(t, err)

	env.gateway.offerErr = &GatewayError{Kind: ErrKindConnectivity, Message: "node unreachable"}
	exec, err := env.service.ExecuteByID(context.Background(), rp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, exec.Status)
	assert.Equal(t, 1, env.gateway.offerCalls)
	assert.Equal(t, 0, env.resolver.calls)
}

func TestExecuteMissingAddressDoesNotReschedule(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)

	// The operator deleted the address after the schedule was created
	env.ledger.contacts[1].Addresses = env.ledger.contacts[1].Addresses[1:]
	before, _ := env.ledger.GetRecurringPayment(context.Background(), rp.ID)

	exec, err := env.service.ExecuteByID(context.Background(), rp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, exec.Status)
	assert.Contains(t, exec.ErrorMessage, "no longer exists")

	// Configuration defect: next_run_at is left untouched
	after, _ := env.ledger.GetRecurringPayment(context.Background(), rp.ID)
	assert.True(t, after.NextRunAt.Equal(before.NextRunAt))
	assert.Contains(t, after.LastError, "no longer exists")
	assert.Equal(t, 0, env.gateway.lnAddressCalls)

	// The attempt still left exactly one record
	assert.Len(t, env.ledger.executions, 1)
}

func TestExecuteRejectsConcurrentRunForSameSchedule(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)

	require.True(t, env.service.acquire(rp.ID))
	defer env.service.release(rp.ID)

	_, err := env.service.ExecuteByID(context.Background(), rp.ID)
	assert.ErrorIs(t, err, ErrExecutionInProgress)
	assert.Empty(t, env.ledger.executions)
}

func TestExecuteByIDCancelledRefused(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)
	require.NoError(t, env.ledger.SetRecurringPaymentStatus(context.Background(), rp.ID, models.RecurringCancelled))

	_, err := env.service.ExecuteByID(context.Background(), rp.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestExecuteByIDUnknownSchedule(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.ExecuteByID(context.Background(), 999)
	assert.ErrorIs(t, err, ErrRecurringNotFound)
}

func TestNotifyOnFailurePublishesEvent(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)
	env.service.NotifyOnFailure = true
	env.gateway.lnAddressErr = &GatewayError{Kind: ErrKindPayment, Message: "not enough funds"}

	_, err := env.service.ExecuteByID(context.Background(), rp.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{models.EventRecurringFailure}, env.publisher.eventNames())
}

func TestPersistenceErrorPropagates(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)
	env.ledger.recordErr[rp.ID] = errors.New("connection reset")

	_, err := env.service.ExecuteByID(context.Background(), rp.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestUpdateRecurringPaymentRecomputesNextRun(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)

	freq := models.FreqEveryMinute
	updated, err := env.service.UpdateRecurringPayment(context.Background(), rp.ID, &models.UpdateRecurringPaymentRequest{
		Frequency: &freq,
	})
	require.NoError(t, err)
	assert.Equal(t, models.FreqEveryMinute, updated.Frequency)
	assert.True(t, updated.NextRunAt.Before(time.Now().UTC().Add(2*time.Minute)))
}

func TestExportExecutionsWritesSnapshot(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)
	_, err := env.service.ExecuteByID(context.Background(), rp.ID)
	require.NoError(t, err)

	key, err := env.service.ExportExecutions(context.Background(), rp.ID)
	require.NoError(t, err)
	assert.Contains(t, key, "exports/recurring/")

	data, err := env.service.storage.GetExport(context.Background(), key)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"pay-1"`)
}
