package risk

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"sync"
	"testing"

	"sniper-core/pkg/ledger"
)

func testIdentity(b byte) ledger.Identity {
	var id ledger.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

func TestCheckAcceptsWithinLimits(t *testing.T) {
	g := NewInMemory(Limits{MaxTransactionAmount: 5000, DailyLimit: 10000})
	payer := testIdentity(1)

	ok, reason := g.Check(Request{Identity: payer, Token: testIdentity(2).String(), Amount: 4000})
	if !ok {
		t.Fatalf("expected accept, got rejection: %s", reason)
	}
	if got := g.Volume(payer); got != 4000 {
		t.Errorf("volume = %d, want 4000", got)
	}
}

func TestCheckAmountOverLimitLeavesNoVolume(t *testing.T) {
	g := NewInMemory(Limits{MaxTransactionAmount: 5000, DailyLimit: 10000})
	payer := testIdentity(1)

	ok, reason := g.Check(Request{Identity: payer, Amount: 5001})
	if ok {
		t.Fatal("expected rejection for amount over per-transaction limit")
	}
	if !strings.Contains(reason, "per-transaction limit") {
		t.Errorf("reason = %q, want per-transaction limit mention", reason)
	}
	if got := g.Volume(payer); got != 0 {
		t.Errorf("rejected request mutated volume: %d", got)
	}
}

func TestCheckDailyLimitSequence(t *testing.T) {
	g := NewInMemory(Limits{MaxTransactionAmount: 5000, DailyLimit: 10000})
	payer := testIdentity(1)

	for _, amount := range []uint64{5000, 3000} {
		if ok, reason := g.Check(Request{Identity: payer, Amount: amount}); !ok {
			t.Fatalf("amount %d rejected: %s", amount, reason)
		}
	}

	// 8000 accumulated; 2500 more would cross 10000.
	ok, reason := g.Check(Request{Identity: payer, Amount: 2500})
	if ok {
		t.Fatal("expected rejection for daily limit")
	}
	if !strings.Contains(reason, "daily limit") {
		t.Errorf("reason = %q, want daily limit mention", reason)
	}
	if got := g.Volume(payer); got != 8000 {
		t.Errorf("volume = %d, want 8000 (rejection must not commit)", got)
	}

	// A smaller amount that still fits is accepted.
	if ok, reason := g.Check(Request{Identity: payer, Amount: 2000}); !ok {
		t.Fatalf("fitting amount rejected: %s", reason)
	}
	if got := g.Volume(payer); got != 10000 {
		t.Errorf("volume = %d, want 10000", got)
	}
}

func TestCheckDailyLimitNearUint64Max(t *testing.T) {
	const max = ^uint64(0)
	g := NewInMemory(Limits{MaxTransactionAmount: max, DailyLimit: max - 1})
	payer := testIdentity(1)

	if ok, reason := g.Check(Request{Identity: payer, Amount: max - 10}); !ok {
		t.Fatalf("fitting amount rejected: %s", reason)
	}

	// total + amount would wrap past zero; the gate must still reject.
	ok, reason := g.Check(Request{Identity: payer, Amount: 100})
	if ok {
		t.Fatal("overflowing amount accepted")
	}
	if !strings.Contains(reason, "daily limit") {
		t.Errorf("reason = %q, want daily limit mention", reason)
	}
	if got := g.Volume(payer); got != max-10 {
		t.Errorf("volume = %d, want %d (rejection must not commit)", got, max-10)
	}
}

func TestVolumesAreIndependentPerIdentity(t *testing.T) {
	g := NewInMemory(Limits{MaxTransactionAmount: 5000, DailyLimit: 5000})
	a, b := testIdentity(1), testIdentity(2)

	if ok, _ := g.Check(Request{Identity: a, Amount: 5000}); !ok {
		t.Fatal("first identity rejected")
	}
	if ok, _ := g.Check(Request{Identity: b, Amount: 5000}); !ok {
		t.Fatal("second identity should have its own counter")
	}
	if ok, _ := g.Check(Request{Identity: a, Amount: 1}); ok {
		t.Fatal("first identity should be at its daily limit")
	}
}

func TestBlacklistRejectsWithoutVolumeCommit(t *testing.T) {
	g := NewInMemory(DefaultLimits())
	payer := testIdentity(1)
	token := testIdentity(9)

	g.MarkBlacklisted(token, "honeypot")

	ok, reason := g.Check(Request{Identity: payer, Token: token.String(), Amount: 1000})
	if ok {
		t.Fatal("expected rejection for blacklisted token")
	}
	if !strings.Contains(reason, "blacklisted") || !strings.Contains(reason, "honeypot") {
		t.Errorf("reason = %q, want blacklist mention with stored reason", reason)
	}
	if got := g.Volume(payer); got != 0 {
		t.Errorf("blacklisted request mutated volume: %d", got)
	}

	// The flag is authoritative until explicitly removed.
	if ok, _ := g.Check(Request{Identity: payer, Token: token.String(), Amount: 1000}); ok {
		t.Fatal("flag must persist across checks")
	}
	g.Unflag(token)
	if ok, reason := g.Check(Request{Identity: payer, Token: token.String(), Amount: 1000}); !ok {
		t.Fatalf("unflagged token still rejected: %s", reason)
	}
}

func TestTokenValidatorRunsFirst(t *testing.T) {
	g := NewInMemory(DefaultLimits())
	g.SetTokenValidator(func(token string) bool { return false })

	ok, reason := g.Check(Request{Identity: testIdentity(1), Token: "anything", Amount: 1})
	if ok {
		t.Fatal("expected validator rejection")
	}
	if !strings.Contains(reason, "validator") {
		t.Errorf("reason = %q, want validator mention", reason)
	}
	if got := g.Volume(testIdentity(1)); got != 0 {
		t.Errorf("validator rejection mutated volume: %d", got)
	}
}

func TestConcurrentChecksNeverOvershootDailyLimit(t *testing.T) {
	g := NewInMemory(Limits{MaxTransactionAmount: 1, DailyLimit: 10})
	payer := testIdentity(1)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := g.Check(Request{Identity: payer, Amount: 1}); ok {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 10 {
		t.Errorf("accepted = %d, want exactly 10", accepted)
	}
	if got := g.Volume(payer); got != 10 {
		t.Errorf("volume = %d, want 10", got)
	}
}

func TestUpdateLimitsReplacesWholePolicy(t *testing.T) {
	g := NewInMemory(Limits{MaxTransactionAmount: 100, DailyLimit: 200})

	next := Limits{MaxTransactionAmount: 1, DailyLimit: 2, MaxSlippagePercent: 0.5, MinLiquidity: 50}
	if err := g.UpdateLimits(context.Background(), next); err != nil {
		t.Fatalf("UpdateLimits: %v", err)
	}
	if got := g.GetLimits(); got != next {
		t.Errorf("limits = %+v, want %+v", got, next)
	}
	if ok, _ := g.Check(Request{Identity: testIdentity(1), Amount: 2}); ok {
		t.Error("new per-transaction limit not enforced")
	}
}

func TestResetDailyVolumes(t *testing.T) {
	g := NewInMemory(Limits{MaxTransactionAmount: 10, DailyLimit: 10})
	payer := testIdentity(1)

	g.Check(Request{Identity: payer, Amount: 10})
	if ok, _ := g.Check(Request{Identity: payer, Amount: 1}); ok {
		t.Fatal("expected daily limit hit")
	}

	g.ResetDailyVolumes()
	if got := g.Volume(payer); got != 0 {
		t.Errorf("volume after reset = %d, want 0", got)
	}
	if ok, _ := g.Check(Request{Identity: payer, Amount: 10}); !ok {
		t.Error("check after reset should pass")
	}
}

func TestVerifySigned(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	var id ledger.Identity
	copy(id[:], pub)

	g := NewInMemory(DefaultLimits())
	msg := []byte("dispatch request")
	sig := ed25519.Sign(priv, msg)

	if err := g.VerifySigned(id, msg, sig); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
	sig[0] ^= 0xff
	if err := g.VerifySigned(id, msg, sig); err == nil {
		t.Fatal("tampered signature accepted")
	}
}
