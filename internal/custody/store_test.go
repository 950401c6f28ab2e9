package custody

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mr-tron/base58"

	"sniper-core/pkg/ledger"
)

func TestSetupWalletDedicatedIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallet", "keypair.bin")
	policy := Policy{Mode: ModeDedicated, KeypairPath: path}

	first, err := NewStore().SetupWallet(policy)
	if err != nil {
		t.Fatalf("first setup: %v", err)
	}
	created, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("key file not written: %v", err)
	}
	if info, _ := os.Stat(path); info.Mode().Perm() != 0o600 {
		t.Errorf("key file mode = %v, want 0600", info.Mode().Perm())
	}

	// Second setup against the same path loads rather than regenerates.
	second, err := NewStore().SetupWallet(policy)
	if err != nil {
		t.Fatalf("second setup: %v", err)
	}
	if first != second {
		t.Errorf("identities differ across setups: %s vs %s", first, second)
	}
	after, _ := os.ReadFile(path)
	if !bytes.Equal(created, after) {
		t.Error("key file rewritten on repeated setup")
	}
}

func TestSetupWalletImport(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	store := NewStore()
	id, err := store.SetupWallet(Policy{Mode: ModeImport, EncodedSecret: base58.Encode(priv)})
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	var want ledger.Identity
	copy(want[:], pub)
	if id != want {
		t.Errorf("imported identity = %s, want %s", id, want)
	}

	signer, ok := store.Signer(id)
	if !ok {
		t.Fatal("no signer for imported identity")
	}
	msg := []byte("hello")
	sig, err := signer.Sign(msg)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if !ledger.VerifySignature(id, msg, sig) {
		t.Error("signature does not verify against the imported identity")
	}
}

func TestSetupWalletRejectsBadInput(t *testing.T) {
	cases := []struct {
		name   string
		policy Policy
	}{
		{"empty import secret", Policy{Mode: ModeImport}},
		{"undecodable secret", Policy{Mode: ModeImport, EncodedSecret: "0OIl not base58"}},
		{"wrong length secret", Policy{Mode: ModeImport, EncodedSecret: base58.Encode(make([]byte, 10))}},
		{"dedicated without path", Policy{Mode: ModeDedicated}},
		{"unknown mode", Policy{Mode: "hardware"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewStore().SetupWallet(tc.policy)
			if !errors.Is(err, ErrInvalidKeyMaterial) {
				t.Errorf("err = %v, want ErrInvalidKeyMaterial", err)
			}
		})
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	if err := os.WriteFile(path, make([]byte, 10), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := NewStore().Load(path); !errors.Is(err, ErrInvalidKeyMaterial) {
		t.Errorf("err = %v, want ErrInvalidKeyMaterial", err)
	}
}

func TestSignerForUnknownIdentity(t *testing.T) {
	if _, ok := NewStore().Signer(ledger.Identity{1}); ok {
		t.Error("empty store handed out a signer")
	}
}
