package risk

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sync"

	"sniper-core/pkg/db"
	"sniper-core/pkg/ledger"
)

// ErrInvalidSignature is returned by VerifySigned for a bad signature.
var ErrInvalidSignature = errors.New("invalid signature")

// Gate validates every request before dispatch: token admissibility, amount
// cap, per-identity daily volume, blacklist membership. Each shared structure
// has its own lock; counters are per identity so unrelated payers never
// serialize on each other.
type Gate struct {
	database *db.Database // nil in memory-only mode

	limitsMu sync.RWMutex
	limits   Limits

	volMu   sync.RWMutex
	volumes map[ledger.Identity]*volumeCounter

	blMu      sync.RWMutex
	blacklist map[ledger.Identity]string

	validator TokenValidator
}

type volumeCounter struct {
	mu    sync.Mutex
	total uint64
}

// NewGate creates a gate backed by the DB. The active limits row is loaded,
// or the default policy inserted when none exists; persisted blacklist
// entries are reloaded.
func NewGate(database *db.Database) (*Gate, error) {
	g := &Gate{
		database:  database,
		volumes:   make(map[ledger.Identity]*volumeCounter),
		blacklist: make(map[ledger.Identity]string),
	}

	if err := g.loadLimits(); err != nil {
		if err == sql.ErrNoRows {
			def := DefaultLimits()
			if err := g.insertLimits(def); err != nil {
				return nil, fmt.Errorf("insert default limits: %w", err)
			}
			g.limits = def
		} else {
			return nil, fmt.Errorf("load limits: %w", err)
		}
	}

	if err := g.loadBlacklist(); err != nil {
		return nil, fmt.Errorf("load blacklist: %w", err)
	}

	log.Printf("risk gate initialized: max_tx=%d daily=%d", g.limits.MaxTransactionAmount, g.limits.DailyLimit)
	return g, nil
}

// NewInMemory creates a gate without DB persistence.
func NewInMemory(limits Limits) *Gate {
	return &Gate{
		limits:    limits,
		volumes:   make(map[ledger.Identity]*volumeCounter),
		blacklist: make(map[ledger.Identity]string),
	}
}

// SetTokenValidator installs the admissibility hook.
func (g *Gate) SetTokenValidator(v TokenValidator) {
	g.validator = v
}

// Check validates one request. Evaluation stops at the first failing step and
// reports only that reason. The daily-volume commit happens only when every
// step passes, inside the per-identity critical section, so concurrent
// requests from the same identity cannot both slip under the limit.
func (g *Gate) Check(req Request) (bool, string) {
	if g.validator != nil && !g.validator(req.Token) {
		return false, "token rejected by validator"
	}

	limits := g.GetLimits()
	if req.Amount > limits.MaxTransactionAmount {
		return false, fmt.Sprintf("amount %d exceeds per-transaction limit %d", req.Amount, limits.MaxTransactionAmount)
	}

	ctr := g.counter(req.Identity)
	ctr.mu.Lock()
	// Compared via subtraction so huge configured limits cannot wrap the sum.
	if ctr.total > limits.DailyLimit || req.Amount > limits.DailyLimit-ctr.total {
		total := ctr.total
		ctr.mu.Unlock()
		return false, fmt.Sprintf("daily limit exceeded: %d + %d > %d", total, req.Amount, limits.DailyLimit)
	}

	// Blacklist membership is resolved before the volume commit so a flagged
	// request leaves no trace in the counters.
	if tokenID, err := ledger.ParseIdentity(req.Token); err == nil {
		if reason, flagged := g.IsBlacklisted(tokenID); flagged {
			ctr.mu.Unlock()
			return false, fmt.Sprintf("token %s blacklisted: %s", req.Token, reason)
		}
	}

	ctr.total += req.Amount
	ctr.mu.Unlock()
	return true, ""
}

// MarkBlacklisted flags a token identity. The flag is authoritative for all
// subsequent checks until explicitly removed with Unflag.
func (g *Gate) MarkBlacklisted(id ledger.Identity, reason string) {
	g.blMu.Lock()
	g.blacklist[id] = reason
	g.blMu.Unlock()

	log.Printf("risk: token %s blacklisted: %s", id, reason)
	if g.database != nil {
		if err := g.database.UpsertBlacklist(context.Background(), id.String(), reason); err != nil {
			log.Printf("risk: persist blacklist entry: %v", err)
		}
	}
}

// Unflag removes a token from the blacklist. Explicit administrative action.
func (g *Gate) Unflag(id ledger.Identity) {
	g.blMu.Lock()
	delete(g.blacklist, id)
	g.blMu.Unlock()

	if g.database != nil {
		if err := g.database.DeleteBlacklist(context.Background(), id.String()); err != nil {
			log.Printf("risk: remove blacklist entry: %v", err)
		}
	}
}

// IsBlacklisted reports whether the identity is flagged and why.
func (g *Gate) IsBlacklisted(id ledger.Identity) (string, bool) {
	g.blMu.RLock()
	defer g.blMu.RUnlock()
	reason, ok := g.blacklist[id]
	return reason, ok
}

// Blacklist returns a snapshot of flagged identities.
func (g *Gate) Blacklist() map[ledger.Identity]string {
	g.blMu.RLock()
	defer g.blMu.RUnlock()
	out := make(map[ledger.Identity]string, len(g.blacklist))
	for id, reason := range g.blacklist {
		out[id] = reason
	}
	return out
}

// GetLimits returns a copy of the current policy.
func (g *Gate) GetLimits() Limits {
	g.limitsMu.RLock()
	defer g.limitsMu.RUnlock()
	return g.limits
}

// UpdateLimits replaces the policy as a whole unit and persists it.
func (g *Gate) UpdateLimits(ctx context.Context, limits Limits) error {
	g.limitsMu.Lock()
	g.limits = limits
	g.limitsMu.Unlock()

	if g.database == nil {
		return nil
	}
	_, err := g.database.DB.ExecContext(ctx, `
		UPDATE risk_limits
		SET max_transaction_amount = ?, daily_limit = ?, max_slippage_percent = ?,
		    min_liquidity = ?, updated_at = CURRENT_TIMESTAMP
		WHERE is_active = 1
	`, limits.MaxTransactionAmount, limits.DailyLimit, limits.MaxSlippagePercent, limits.MinLiquidity)
	if err != nil {
		return fmt.Errorf("update limits: %w", err)
	}
	log.Printf("risk: limits updated: max_tx=%d daily=%d", limits.MaxTransactionAmount, limits.DailyLimit)
	return nil
}

// ResetDailyVolumes clears all accumulated volume. Called only externally
// (day rollover is the caller's schedule, never implicit).
func (g *Gate) ResetDailyVolumes() {
	g.volMu.Lock()
	g.volumes = make(map[ledger.Identity]*volumeCounter)
	g.volMu.Unlock()
	log.Println("risk: daily volumes reset")
}

// Volume returns the accumulated validated amount for an identity.
func (g *Gate) Volume(id ledger.Identity) uint64 {
	g.volMu.RLock()
	ctr, ok := g.volumes[id]
	g.volMu.RUnlock()
	if !ok {
		return 0
	}
	ctr.mu.Lock()
	defer ctr.mu.Unlock()
	return ctr.total
}

// VerifySigned checks an ed25519 signature made by the identity.
func (g *Gate) VerifySigned(id ledger.Identity, message, sig []byte) error {
	if !ledger.VerifySignature(id, message, sig) {
		return fmt.Errorf("identity %s: %w", id, ErrInvalidSignature)
	}
	return nil
}

func (g *Gate) counter(id ledger.Identity) *volumeCounter {
	g.volMu.RLock()
	ctr, ok := g.volumes[id]
	g.volMu.RUnlock()
	if ok {
		return ctr
	}

	g.volMu.Lock()
	defer g.volMu.Unlock()
	if ctr, ok := g.volumes[id]; ok {
		return ctr
	}
	ctr = &volumeCounter{}
	g.volumes[id] = ctr
	return ctr
}

func (g *Gate) loadLimits() error {
	if g.database == nil {
		g.limits = DefaultLimits()
		return nil
	}

	var l Limits
	err := g.database.DB.QueryRow(`
		SELECT max_transaction_amount, daily_limit, max_slippage_percent, min_liquidity
		FROM risk_limits
		WHERE is_active = 1
		LIMIT 1
	`).Scan(&l.MaxTransactionAmount, &l.DailyLimit, &l.MaxSlippagePercent, &l.MinLiquidity)
	if err != nil {
		return err
	}
	g.limits = l
	return nil
}

func (g *Gate) insertLimits(l Limits) error {
	if g.database == nil {
		return nil
	}
	_, err := g.database.DB.Exec(`
		INSERT INTO risk_limits (name, max_transaction_amount, daily_limit, max_slippage_percent, min_liquidity, is_active)
		VALUES ('default', ?, ?, ?, ?, 1)
	`, l.MaxTransactionAmount, l.DailyLimit, l.MaxSlippagePercent, l.MinLiquidity)
	return err
}

func (g *Gate) loadBlacklist() error {
	if g.database == nil {
		return nil
	}
	entries, err := g.database.ListBlacklist(context.Background())
	if err != nil {
		return err
	}
	for _, e := range entries {
		id, err := ledger.ParseIdentity(e.Token)
		if err != nil {
			log.Printf("risk: skipping malformed blacklist token %q: %v", e.Token, err)
			continue
		}
		g.blacklist[id] = e.Reason
	}
	return nil
}
