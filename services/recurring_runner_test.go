package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phoenixd-dashboard-server/models"
)

func newTestRunner(env *testEnv) *RecurringRunner {
	r := NewRecurringRunner(env.ledger, env.service, time.Minute)
	r.itemDelay = 0
	return r
}

func makeDue(t *testing.T, env *testEnv, rp *models.RecurringPayment) {
	t.Helper()
	stored, err := env.ledger.GetRecurringPayment(context.Background(), rp.ID)
	require.NoError(t, err)
	stored.NextRunAt = time.Now().UTC().Add(-time.Minute)
	require.NoError(t, env.ledger.UpdateRecurringPayment(context.Background(), stored))
}

func TestRunnerSkipsTickWithoutActiveNode(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)
	makeDue(t, env, rp)

	runner := newTestRunner(env)
	runner.processDuePayments()

	assert.Empty(t, env.ledger.executions)
	assert.Equal(t, 0, env.gateway.lnAddressCalls)
}

func TestRunnerExecutesDuePayments(t *testing.T) {
	env := newTestEnv(t)
	rp := env.seedPayment(t)
	makeDue(t, env, rp)
	env.ledger.activeNode = &models.NodeConnection{ID: 1, Label: "home", Active: true}

	runner := newTestRunner(env)
	runner.processDuePayments()

	require.Len(t, env.ledger.executions, 1)
	assert.Equal(t, models.ExecutionSuccess, env.ledger.executions[0].Status)

	// The successful run pushed next_run_at forward, so the next tick
	// finds nothing due
	runner.processDuePayments()
	assert.Len(t, env.ledger.executions, 1)
}

func TestRunnerIgnoresPausedAndMismatchedSchedules(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.activeNode = &models.NodeConnection{ID: 1, Label: "home", Active: true}

	due := env.seedPayment(t)
	makeDue(t, env, due)

	paused := env.seedPayment(t)
	makeDue(t, env, paused)
	require.NoError(t, env.ledger.SetRecurringPaymentStatus(context.Background(), paused.ID, models.RecurringPaused))

	otherNodeID := int64(2)
	pinned, err := env.service.CreateRecurringPayment(context.Background(), &models.CreateRecurringPaymentRequest{
		ContactID: 1,
		AddressID: 10,
		AmountSat: 1000,
		Frequency: models.FreqDaily,
		TimeOfDay: "09:00",
		NodeID:    &otherNodeID,
	})
	require.NoError(t, err)
	makeDue(t, env, pinned)

	runner := newTestRunner(env)
	runner.processDuePayments()

	require.Len(t, env.ledger.executions, 1)
	assert.Equal(t, due.ID, env.ledger.executions[0].RecurringPaymentID)
}

func TestRunnerContinuesPastFailingItem(t *testing.T) {
	env := newTestEnv(t)
	env.ledger.activeNode = &models.NodeConnection{ID: 1, Label: "home", Active: true}

	broken := env.seedPayment(t)
	makeDue(t, env, broken)
	env.ledger.recordErr[broken.ID] = errors.New("connection reset")

	healthy := env.seedPayment(t)
	makeDue(t, env, healthy)

	runner := newTestRunner(env)
	runner.processDuePayments()

	// The persistence failure on one schedule never blocks the other
	require.Len(t, env.ledger.executions, 1)
	assert.Equal(t, healthy.ID, env.ledger.executions[0].RecurringPaymentID)
}

func TestRunnerStartStop(t *testing.T) {
	env := newTestEnv(t)
	runner := NewRecurringRunner(env.ledger, env.service, 50*time.Millisecond)
	runner.itemDelay = 0

	runner.Start()
	time.Sleep(120 * time.Millisecond)
	runner.Stop()

	// No active node was configured, so ticks ran but executed nothing
	assert.Empty(t, env.ledger.executions)
}
