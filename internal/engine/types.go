package engine

import (
	"errors"
	"fmt"
	"time"

	"sniper-core/pkg/ledger"
)

// Terminal execution failures. Submission errors from the ledger client are
// transient and retried internally; these surface only once the retry or
// timeout budget is spent.
var (
	// ErrTimeout: the wall-clock deadline elapsed before a send succeeded.
	ErrTimeout = errors.New("transaction timeout")
	// ErrRetryExhausted: the attempt cap was reached before the deadline.
	ErrRetryExhausted = errors.New("maximum retries exceeded")
	// ErrInsufficientFunds: payer balance below the required amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrPriceImpactTooHigh: caller-supplied price impact over the threshold.
	ErrPriceImpactTooHigh = errors.New("price impact too high")
)

// SimulationError wraps a failed dry run. Fatal: a failing simulation is not
// transient, so it is never retried.
type SimulationError struct {
	Err error
}

func (e *SimulationError) Error() string { return fmt.Sprintf("simulation failed: %v", e.Err) }
func (e *SimulationError) Unwrap() error { return e.Err }

// Priority is the ordinal execution urgency. It maps to fixed compute-budget
// parameters prepended to every dispatched transaction.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// PriorityFromLevel maps the wire encoding 0..3 to a priority. Unknown levels
// fall back to Medium.
func PriorityFromLevel(level uint8) Priority {
	switch level {
	case 0:
		return PriorityLow
	case 1:
		return PriorityMedium
	case 2:
		return PriorityHigh
	case 3:
		return PriorityCritical
	default:
		return PriorityMedium
	}
}

// ComputeUnits returns the compute-unit limit for the priority.
func (p Priority) ComputeUnits() uint32 {
	switch p {
	case PriorityLow:
		return 200_000
	case PriorityHigh:
		return 600_000
	case PriorityCritical:
		return 1_200_000
	default:
		return 400_000
	}
}

// FeeMicroLamports returns the per-compute-unit fee for the priority.
func (p Priority) FeeMicroLamports() uint64 {
	switch p {
	case PriorityLow:
		return 1
	case PriorityHigh:
		return 10
	case PriorityCritical:
		return 25
	default:
		return 5
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityMedium:
		return "MEDIUM"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	default:
		return "MEDIUM"
	}
}

// Config controls one dispatch attempt sequence.
type Config struct {
	Priority           Priority
	MaxRetries         int
	RetryDelay         time.Duration
	Timeout            time.Duration
	SimulationRequired bool
}

// DefaultConfig matches the engine defaults: Medium priority, 3 retries,
// fixed 500ms delay, 30s wall-clock timeout, simulate before send.
func DefaultConfig() Config {
	return Config{
		Priority:           PriorityMedium,
		MaxRetries:         3,
		RetryDelay:         500 * time.Millisecond,
		Timeout:            30 * time.Second,
		SimulationRequired: true,
	}
}

// Result is a successful dispatch: the transaction reference plus how many
// retries it took.
type Result struct {
	Signature ledger.Signature
	Retries   int
}

// BatchRequest pairs one instruction sequence with its dispatch config.
type BatchRequest struct {
	Instructions []ledger.Instruction
	Config       Config
}

// Outcome is one batch slot: either a Result or the terminal error.
type Outcome struct {
	Result Result
	Err    error
}
