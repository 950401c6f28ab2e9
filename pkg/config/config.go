package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds environment-driven settings for the dispatch core.
type Config struct {
	Port string

	// Ledger RPC
	RPCURL       string
	RPCRateLimit float64 // requests per second, 0 = unlimited

	// Wallet
	WalletType        string // "import" or "dedicated"
	WalletKeypairPath string
	ImportedSecret    string // base58-encoded secret for import mode

	// IPC
	SocketPath string

	// Execution defaults
	RetryDelay     time.Duration
	ExecTimeout    time.Duration
	SimulateFirst  bool
	MaxPriceImpact float64

	// Pending monitor
	ConfirmInterval time.Duration
	MaxPendingAge   time.Duration

	// Database
	DBPath string

	// Risk limits override file (YAML, optional)
	RiskLimitsPath string

	// Auth
	JWTSecret     string
	AdminPassword string
}

// LimitsFile is the optional YAML override for trading limits.
type LimitsFile struct {
	MaxTransactionAmount uint64  `yaml:"max_transaction_amount"`
	DailyLimit           uint64  `yaml:"daily_limit"`
	MaxSlippagePercent   float64 `yaml:"max_slippage_percent"`
	MinLiquidity         float64 `yaml:"min_liquidity"`
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:              getEnv("PORT", "8080"),
		RPCURL:            getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
		RPCRateLimit:      getEnvFloat("RPC_RATE_LIMIT", 10),
		WalletType:        getEnv("WALLET_TYPE", "dedicated"),
		WalletKeypairPath: getEnv("WALLET_KEYPAIR_PATH", "./wallet/keypair.bin"),
		ImportedSecret:    os.Getenv("WALLET_PRIVATE_KEY"),
		SocketPath:        getEnv("IPC_SOCKET_PATH", "/tmp/trading_bot.sock"),
		RetryDelay:        getEnvDuration("RETRY_DELAY_MS", 500) * time.Millisecond,
		ExecTimeout:       getEnvDuration("EXEC_TIMEOUT_SEC", 30) * time.Second,
		SimulateFirst:     getEnv("SIMULATE_FIRST", "true") == "true",
		MaxPriceImpact:    getEnvFloat("MAX_PRICE_IMPACT", 2.0),
		ConfirmInterval:   getEnvDuration("CONFIRM_INTERVAL_MS", 1000) * time.Millisecond,
		MaxPendingAge:     getEnvDuration("MAX_PENDING_AGE_SEC", 300) * time.Second,
		DBPath:            getEnv("DB_PATH", "./data/dispatch.db"),
		RiskLimitsPath:    getEnv("RISK_LIMITS_PATH", ""),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
	}, nil
}

// LoadLimitsFile parses the YAML limits override. Returns nil when path is
// empty, an error when the file is set but unreadable or malformed.
func LoadLimitsFile(path string) (*LimitsFile, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read limits file: %w", err)
	}
	var lf LimitsFile
	if err := yaml.Unmarshal(raw, &lf); err != nil {
		return nil, fmt.Errorf("parse limits file: %w", err)
	}
	return &lf, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def int64) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(i)
		}
	}
	return time.Duration(def)
}
