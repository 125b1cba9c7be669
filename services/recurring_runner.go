package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// RecurringRunner polls the ledger for due recurring payments on a fixed
// timer and hands them to the executor one at a time. phoenixd is a single
// physical node, so due items are deliberately never executed in parallel
// and a small delay is kept between them.
type RecurringRunner struct {
	ledger    RecurringLedger
	service   *RecurringService
	interval  time.Duration
	itemDelay time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewRecurringRunner(ledger RecurringLedger, service *RecurringService, interval time.Duration) *RecurringRunner {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &RecurringRunner{
		ledger:    ledger,
		service:   service,
		interval:  interval,
		itemDelay: time.Second,
		stopCh:    make(chan struct{}),
	}
}

// Start launches the polling loop
func (r *RecurringRunner) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.processDuePayments()
			case <-r.stopCh:
				return
			}
		}
	}()
	log.Printf("scheduler: started, polling every %s", r.interval)
}

// Stop halts the timer and waits for an in-flight tick to finish. In-flight
// gateway calls are bounded by their own timeouts.
func (r *RecurringRunner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	log.Println("scheduler: stopped")
}

func (r *RecurringRunner) processDuePayments() {
	ctx, seg := xray.BeginSegment(context.Background(), "recurring-scheduler")
	var tickErr error
	defer func() {
		if seg != nil {
			seg.Close(tickErr)
		}
	}()

	// The active connection is read once per tick; affinity is a
	// pre-filter and is not re-validated per item.
	node, err := r.ledger.GetActiveNode(ctx)
	if err != nil {
		tickErr = err
		log.Printf("scheduler: failed to read active node: %v", err)
		return
	}
	if node == nil {
		log.Println("scheduler: no active node connection, skipping tick")
		return
	}

	due, err := r.ledger.ListDueRecurringPayments(ctx, time.Now().UTC(), node.ID)
	if err != nil {
		tickErr = err
		log.Printf("scheduler: failed to query due payments: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}
	log.Printf("scheduler: %d recurring payment(s) due on node %d", len(due), node.ID)

	for i := range due {
		if i > 0 {
			time.Sleep(r.itemDelay)
		}
		// One bad schedule never blocks the rest of the tick
		if _, err := r.service.Execute(ctx, &due[i]); err != nil {
			log.Printf("scheduler: recurring payment %d: %v", due[i].ID, err)
		}
	}
}
