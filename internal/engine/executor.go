package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/benbjohnson/clock"

	"sniper-core/internal/events"
	"sniper-core/internal/monitor"
	"sniper-core/pkg/db"
	"sniper-core/pkg/ledger"
)

// Executor converts instruction sequences into fee-prioritized transactions,
// submits them with simulate-before-send semantics and bounded retry, and
// registers successful submissions for confirmation tracking.
type Executor struct {
	Client  ledger.Client
	Pending *monitor.PendingSet
	Bus     *events.Bus
	DB      *db.Database // optional transaction-history persistence

	// MaxPriceImpact thresholds caller-supplied price impact in
	// ValidateOpportunity. Percent, e.g. 2.0.
	MaxPriceImpact float64

	signer ledger.Signer
	clock  clock.Clock
}

// NewExecutor wires an executor around the ledger client and the payer's
// signing handle.
func NewExecutor(client ledger.Client, signer ledger.Signer, pending *monitor.PendingSet, bus *events.Bus, database *db.Database) *Executor {
	return &Executor{
		Client:         client,
		Pending:        pending,
		Bus:            bus,
		DB:             database,
		MaxPriceImpact: 2.0,
		signer:         signer,
		clock:          clock.New(),
	}
}

// SetClock replaces the wall clock. Used by tests to control pacing.
func (e *Executor) SetClock(c clock.Clock) {
	e.clock = c
}

// Execute dispatches one instruction sequence. Per attempt the state machine
// is Built -> Simulated -> Submitted -> {Confirmed | Failed | TimedOut |
// RetryExhausted}: the priority instructions are prepended, the transaction
// is simulated when required (a simulation failure is fatal and skips the
// retry loop entirely), then submission is retried on transient failure with
// a fixed delay until either the attempt cap or the wall-clock deadline hits.
// The deadline is checked first, so it can fire before the cap is reached.
func (e *Executor) Execute(ctx context.Context, instructions []ledger.Instruction, cfg Config) (Result, error) {
	start := e.clock.Now()

	ixs := make([]ledger.Instruction, 0, len(instructions)+2)
	ixs = append(ixs, PriorityInstructions(cfg.Priority)...)
	ixs = append(ixs, instructions...)

	if cfg.SimulationRequired {
		if err := e.Client.Simulate(ctx, ixs, e.signer.Public()); err != nil {
			e.publishFailure(err)
			return Result{}, &SimulationError{Err: err}
		}
	}

	retries := 0
	for {
		if e.clock.Since(start) > cfg.Timeout {
			e.publishFailure(ErrTimeout)
			return Result{Retries: retries}, ErrTimeout
		}
		if retries >= cfg.MaxRetries {
			e.publishFailure(ErrRetryExhausted)
			return Result{Retries: retries}, ErrRetryExhausted
		}

		sig, err := e.Client.SendAndConfirm(ctx, ixs, []ledger.Signer{e.signer})
		if err == nil {
			log.Printf("transaction executed after %d retry(s): %s", retries, sig)
			e.track(ctx, sig, ixs, cfg, retries)
			return Result{Signature: sig, Retries: retries}, nil
		}

		log.Printf("transaction send failed (retry %d/%d): %v", retries+1, cfg.MaxRetries, err)
		retries++
		select {
		case <-ctx.Done():
			return Result{Retries: retries}, ctx.Err()
		case <-e.clock.After(cfg.RetryDelay):
		}
	}
}

// ExecuteBatch dispatches independent requests concurrently and returns one
// outcome per input in input order. A failing input never cancels or blocks
// the others.
func (e *Executor) ExecuteBatch(ctx context.Context, reqs []BatchRequest) []Outcome {
	outcomes := make([]Outcome, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req BatchRequest) {
			defer wg.Done()
			res, err := e.Execute(ctx, req.Instructions, req.Config)
			outcomes[i] = Outcome{Result: res, Err: err}
		}(i, req)
	}
	wg.Wait()
	return outcomes
}

// ValidateOpportunity pre-checks a prospective dispatch: the payer must hold
// at least the required amount and the caller-supplied price impact must stay
// under the threshold.
func (e *Executor) ValidateOpportunity(ctx context.Context, requiredAmount uint64, priceImpact float64) error {
	balance, err := e.Client.GetBalance(ctx, e.signer.Public())
	if err != nil {
		return fmt.Errorf("check balance: %w", err)
	}
	if balance < requiredAmount {
		return fmt.Errorf("%w: balance %d < required %d", ErrInsufficientFunds, balance, requiredAmount)
	}
	if priceImpact > e.MaxPriceImpact {
		return fmt.Errorf("%w: %.2f%% > %.2f%%", ErrPriceImpactTooHigh, priceImpact, e.MaxPriceImpact)
	}
	return nil
}

// Payer returns the identity whose key signs dispatched transactions.
func (e *Executor) Payer() ledger.Identity {
	return e.signer.Public()
}

// track registers a successful submission for confirmation polling and
// persists the transaction row. The pending insert is keyed by signature, so
// a duplicate submission reference is never double-tracked.
func (e *Executor) track(ctx context.Context, sig ledger.Signature, ixs []ledger.Instruction, cfg Config, retries int) {
	if e.Pending != nil {
		if !e.Pending.Add(monitor.PendingTransaction{
			Signature:    sig,
			SubmittedAt:  e.clock.Now(),
			Instructions: ixs,
		}) {
			log.Printf("transaction %s already tracked; skipping duplicate", sig)
		}
	}
	if e.DB != nil {
		rec := db.TransactionRecord{
			Signature: string(sig),
			Payer:     e.signer.Public().String(),
			Priority:  cfg.Priority.String(),
			Retries:   retries,
			Status:    db.TxStatusSubmitted,
		}
		if err := e.DB.InsertTransaction(ctx, rec); err != nil {
			log.Printf("store transaction record: %v", err)
		}
	}
	if e.Bus != nil {
		e.Bus.Publish(events.EventTxSubmitted, string(sig))
	}
}

func (e *Executor) publishFailure(err error) {
	if e.Bus != nil {
		e.Bus.Publish(events.EventTxFailed, err.Error())
	}
}
