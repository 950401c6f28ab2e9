package monitor

import (
	"context"
	"log"
	"time"

	"github.com/benbjohnson/clock"

	"sniper-core/internal/events"
	"sniper-core/pkg/db"
	"sniper-core/pkg/ledger"
)

// Monitor polls the ledger for confirmation of pending transactions on a
// fixed interval and removes confirmed entries from the shared set. Entries
// whose confirmation call fails transiently stay for the next tick; entries
// older than MaxPendingAge are reaped with an alert.
type Monitor struct {
	Set      *PendingSet
	Client   ledger.Client
	Bus      *events.Bus
	DB       *db.Database // optional transaction-history persistence
	Interval time.Duration
	// MaxPendingAge bounds how long an entry may stay unconfirmed. Zero
	// disables reaping.
	MaxPendingAge time.Duration
	Clock         clock.Clock
}

// Start launches the polling loop. It runs until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	if m.Set == nil || m.Client == nil {
		log.Println("pending monitor not fully configured; skipping")
		return
	}
	if m.Clock == nil {
		m.Clock = clock.New()
	}
	interval := m.Interval
	if interval <= 0 {
		interval = time.Second
	}

	go func() {
		ticker := m.Clock.Ticker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.scan(ctx)
			}
		}
	}()
}

// scan processes one tick over a snapshot of the pending set. The set lock is
// only held while snapshotting and removing, never across Confirm calls.
func (m *Monitor) scan(ctx context.Context) {
	pending := m.Set.Snapshot()
	if len(pending) == 0 {
		return
	}
	log.Printf("monitoring %d pending transaction(s)", len(pending))

	now := m.Clock.Now()
	for _, tx := range pending {
		confirmed, err := m.Client.Confirm(ctx, tx.Signature)
		switch {
		case err == nil && confirmed:
			if m.Set.Remove(tx.Signature) {
				log.Printf("transaction confirmed: %s", tx.Signature)
				m.record(ctx, tx.Signature, db.TxStatusConfirmed)
				if m.Bus != nil {
					m.Bus.Publish(events.EventTxConfirmed, string(tx.Signature))
				}
			}
			continue
		case err != nil:
			// Transient RPC failure: the entry stays for the next tick. It
			// was already submitted, so it is never re-sent.
			log.Printf("confirmation check failed for %s: %v", tx.Signature, err)
		}

		if m.MaxPendingAge > 0 && now.Sub(tx.SubmittedAt) > m.MaxPendingAge {
			if m.Set.Remove(tx.Signature) {
				log.Printf("transaction %s pending beyond %s; reaping", tx.Signature, m.MaxPendingAge)
				m.record(ctx, tx.Signature, db.TxStatusReaped)
				if m.Bus != nil {
					m.Bus.Publish(events.EventTxReaped, string(tx.Signature))
					m.Bus.Publish(events.EventRiskAlert, "transaction reaped without confirmation: "+string(tx.Signature))
				}
			}
		}
	}
}

func (m *Monitor) record(ctx context.Context, sig ledger.Signature, status string) {
	if m.DB == nil {
		return
	}
	if err := m.DB.MarkTransactionStatus(ctx, string(sig), status); err != nil {
		log.Printf("record transaction status: %v", err)
	}
}
