package custody

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/mr-tron/base58"

	"sniper-core/pkg/ledger"
)

var (
	// ErrInvalidKeyMaterial covers missing or undecodable secret key input.
	ErrInvalidKeyMaterial = errors.New("invalid key material")
	// ErrUnknownIdentity is returned when no key is registered for an identity.
	ErrUnknownIdentity = errors.New("unknown identity")
)

// Wallet policy modes.
const (
	ModeImport    = "import"    // decode an externally supplied base58 secret
	ModeDedicated = "dedicated" // load the key file if present, else generate
)

// Policy describes how the wallet key is obtained at setup time.
type Policy struct {
	Mode          string
	KeypairPath   string // dedicated mode: where the key file lives
	EncodedSecret string // import mode: base58-encoded 64-byte secret
}

// Store owns signing-key material per public identity. Secret bytes never
// leave the store: callers obtain a ledger.Signer handle that borrows the key
// for individual signing operations.
type Store struct {
	mu   sync.RWMutex
	keys map[ledger.Identity]ed25519.PrivateKey
}

// NewStore creates an empty custody store.
func NewStore() *Store {
	return &Store{keys: make(map[ledger.Identity]ed25519.PrivateKey)}
}

// SetupWallet loads or creates the wallet key per policy and returns its
// public identity. Dedicated mode is idempotent: repeated calls with the same
// path return the same identity without rewriting the key file.
func (s *Store) SetupWallet(policy Policy) (ledger.Identity, error) {
	switch policy.Mode {
	case ModeImport:
		if policy.EncodedSecret == "" {
			return ledger.Identity{}, fmt.Errorf("import wallet: %w: no secret supplied", ErrInvalidKeyMaterial)
		}
		raw, err := base58.Decode(policy.EncodedSecret)
		if err != nil {
			return ledger.Identity{}, fmt.Errorf("import wallet: %w: %v", ErrInvalidKeyMaterial, err)
		}
		id, err := s.register(raw)
		if err != nil {
			return ledger.Identity{}, fmt.Errorf("import wallet: %w", err)
		}
		log.Printf("custody: imported wallet %s", id)
		return id, nil

	case ModeDedicated:
		if policy.KeypairPath == "" {
			return ledger.Identity{}, fmt.Errorf("dedicated wallet: %w: no keypair path", ErrInvalidKeyMaterial)
		}
		if _, err := os.Stat(policy.KeypairPath); err == nil {
			return s.Load(policy.KeypairPath)
		}

		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return ledger.Identity{}, fmt.Errorf("generate wallet key: %w", err)
		}
		id, err := s.register(priv)
		if err != nil {
			return ledger.Identity{}, err
		}
		if err := s.Save(id, policy.KeypairPath); err != nil {
			return ledger.Identity{}, err
		}
		log.Printf("custody: created dedicated wallet %s", id)
		return id, nil

	default:
		return ledger.Identity{}, fmt.Errorf("wallet policy %q: %w", policy.Mode, ErrInvalidKeyMaterial)
	}
}

// Load reads a raw secret-key file and registers it.
func (s *Store) Load(path string) (ledger.Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ledger.Identity{}, fmt.Errorf("read keypair file: %w", err)
	}
	id, err := s.register(raw)
	if err != nil {
		return ledger.Identity{}, fmt.Errorf("keypair file %s: %w", path, err)
	}
	log.Printf("custody: loaded wallet %s", id)
	return id, nil
}

// Save persists the secret key for an identity, creating parent directories
// as needed. The file is owner-readable only.
func (s *Store) Save(id ledger.Identity, path string) error {
	s.mu.RLock()
	priv, ok := s.keys[id]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("save %s: %w", id, ErrUnknownIdentity)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create keypair directory: %w", err)
		}
	}
	if err := os.WriteFile(path, priv, 0o600); err != nil {
		return fmt.Errorf("write keypair file: %w", err)
	}
	return nil
}

// Signer returns a signing handle for the identity, or false when the store
// holds no key for it. The handle borrows the key per signature and never
// exposes secret bytes.
func (s *Store) Signer(id ledger.Identity) (ledger.Signer, bool) {
	s.mu.RLock()
	_, ok := s.keys[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return &handle{store: s, id: id}, true
}

// register validates raw secret bytes and inserts them keyed by identity.
// Only one copy exists per identity; re-registering the same key is a no-op.
func (s *Store) register(raw []byte) (ledger.Identity, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return ledger.Identity{}, fmt.Errorf("%w: secret must be %d bytes, got %d",
			ErrInvalidKeyMaterial, ed25519.PrivateKeySize, len(raw))
	}
	priv := ed25519.PrivateKey(append([]byte(nil), raw...))
	pub := priv.Public().(ed25519.PublicKey)

	var id ledger.Identity
	copy(id[:], pub)

	s.mu.Lock()
	s.keys[id] = priv
	s.mu.Unlock()
	return id, nil
}

// handle implements ledger.Signer without holding key material itself.
type handle struct {
	store *Store
	id    ledger.Identity
}

func (h *handle) Public() ledger.Identity { return h.id }

func (h *handle) Sign(message []byte) ([]byte, error) {
	h.store.mu.RLock()
	priv, ok := h.store.keys[h.id]
	h.store.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sign as %s: %w", h.id, ErrUnknownIdentity)
	}
	return ed25519.Sign(priv, message), nil
}
