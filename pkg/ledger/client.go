package ledger

import (
	"context"
	"fmt"
	"strings"
)

// Client is the ledger access surface the engine and monitor depend on.
type Client interface {
	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, id Identity) (uint64, error)
	// LatestBlockhash fetches a recent blockhash for transaction assembly.
	LatestBlockhash(ctx context.Context) (string, error)
	// Simulate dry-runs the instruction sequence as payer without submitting.
	Simulate(ctx context.Context, instructions []Instruction, payer Identity) error
	// SendAndConfirm assembles, signs, submits and waits for confirmation.
	SendAndConfirm(ctx context.Context, instructions []Instruction, signers []Signer) (Signature, error)
	// Confirm reports whether a previously submitted transaction landed.
	Confirm(ctx context.Context, sig Signature) (bool, error)
}

// SimulateError carries the failure reason and program logs of a dry run.
type SimulateError struct {
	Reason string
	Logs   []string
}

func (e *SimulateError) Error() string {
	if len(e.Logs) == 0 {
		return fmt.Sprintf("simulate: %s", e.Reason)
	}
	return fmt.Sprintf("simulate: %s; logs: %s", e.Reason, strings.Join(e.Logs, " | "))
}
