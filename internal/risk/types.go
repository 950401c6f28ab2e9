package risk

import "sniper-core/pkg/ledger"

// Limits is the trading-limit policy. It is replaced as a whole unit at
// runtime, never field by field.
type Limits struct {
	MaxTransactionAmount uint64  `yaml:"max_transaction_amount" json:"max_transaction_amount"`
	DailyLimit           uint64  `yaml:"daily_limit" json:"daily_limit"`
	MaxSlippagePercent   float64 `yaml:"max_slippage_percent" json:"max_slippage_percent"`
	MinLiquidity         float64 `yaml:"min_liquidity" json:"min_liquidity"`
}

// DefaultLimits returns the built-in policy: 10 SOL per transaction, 100 SOL
// per day, 1% slippage, $10,000 minimum liquidity.
func DefaultLimits() Limits {
	return Limits{
		MaxTransactionAmount: 10_000_000_000,
		DailyLimit:           100_000_000_000,
		MaxSlippagePercent:   1.0,
		MinLiquidity:         10_000.0,
	}
}

// Request is the validation context for one prospective transaction.
type Request struct {
	Identity ledger.Identity // payer whose daily volume the amount is charged to
	Token    string          // token under consideration, base58
	Amount   uint64
}

// TokenValidator is the pluggable admissibility hook run before any limit
// checks. The default accepts every token.
type TokenValidator func(token string) bool
