package ipc

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sniper-core/internal/engine"
	"sniper-core/internal/events"
	"sniper-core/internal/monitor"
	"sniper-core/internal/risk"
	"sniper-core/pkg/ledger"
)

type stubSigner struct{ id ledger.Identity }

func (s stubSigner) Public() ledger.Identity         { return s.id }
func (s stubSigner) Sign(msg []byte) ([]byte, error) { return make([]byte, 64), nil }

// stubClient accepts every simulation and submission.
type stubClient struct{}

func (stubClient) GetBalance(ctx context.Context, id ledger.Identity) (uint64, error) {
	return 1_000_000_000, nil
}
func (stubClient) LatestBlockhash(ctx context.Context) (string, error) { return "", nil }
func (stubClient) Simulate(ctx context.Context, ixs []ledger.Instruction, payer ledger.Identity) error {
	return nil
}
func (stubClient) SendAndConfirm(ctx context.Context, ixs []ledger.Instruction, signers []ledger.Signer) (ledger.Signature, error) {
	return "stub-signature", nil
}
func (stubClient) Confirm(ctx context.Context, sig ledger.Signature) (bool, error) {
	return true, nil
}

func startTestServer(t *testing.T, gate *risk.Gate) string {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "core.sock")

	exec := engine.NewExecutor(stubClient{}, stubSigner{id: ledger.Identity{1}}, monitor.NewPendingSet(), events.NewBus(), nil)
	defaults := engine.DefaultConfig()
	defaults.RetryDelay = time.Millisecond
	defaults.Timeout = time.Second

	srv := &Server{SocketPath: socket, Gate: gate, Exec: exec, Defaults: defaults}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		if err := srv.Start(ctx); err != nil {
			t.Errorf("server: %v", err)
		}
	}()

	deadline := time.Now().Add(time.Second)
	for {
		if _, err := os.Stat(socket); err == nil {
			return socket
		}
		if time.Now().After(deadline) {
			t.Fatal("socket never appeared")
		}
		time.Sleep(time.Millisecond)
	}
}

func roundTrip(t *testing.T, socket string, req any) []byte {
	t.Helper()
	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	payload, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	if err := writeFrame(conn, payload); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	resp, err := readFrame(conn)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return resp
}

func TestSecurityCheckRoundTrip(t *testing.T) {
	gate := risk.NewInMemory(risk.DefaultLimits())
	socket := startTestServer(t, gate)
	token := ledger.Identity{9}

	raw := roundTrip(t, socket, Request{Type: TypeSecurityCheck, Token: token.String(), Amount: 1000})
	var resp SecurityResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Type != TypeSecurityResponse || !resp.IsSafe {
		t.Fatalf("resp = %+v, want safe security_response", resp)
	}

	gate.MarkBlacklisted(token, "rug pull")
	raw = roundTrip(t, socket, Request{Type: TypeSecurityCheck, Token: token.String(), Amount: 1000})
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.IsSafe {
		t.Error("blacklisted token reported safe")
	}
	if resp.Reason == "" {
		t.Error("rejection carried no reason")
	}
}

func TestExecuteTransactionRoundTrip(t *testing.T) {
	socket := startTestServer(t, risk.NewInMemory(risk.DefaultLimits()))

	ixs, err := ledger.EncodeInstructions([]ledger.Instruction{
		{ProgramID: ledger.Identity{7}, Data: []byte{1, 2, 3}},
	})
	if err != nil {
		t.Fatal(err)
	}

	raw := roundTrip(t, socket, Request{
		Type:         TypeExecuteTransaction,
		Instructions: ixs,
		Priority:     2,
		MaxRetries:   1,
	})
	var resp TransactionResult
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Success {
		t.Fatalf("execution failed: %s", resp.Error)
	}
	if resp.Signature != "stub-signature" {
		t.Errorf("signature = %q, want stub-signature", resp.Signature)
	}
}

func TestExecuteTransactionRiskRejected(t *testing.T) {
	gate := risk.NewInMemory(risk.Limits{MaxTransactionAmount: 100, DailyLimit: 100})
	socket := startTestServer(t, gate)

	ixs, _ := ledger.EncodeInstructions(nil)
	raw := roundTrip(t, socket, Request{
		Type:         TypeExecuteTransaction,
		Instructions: ixs,
		Token:        ledger.Identity{9}.String(),
		Amount:       500,
	})
	var resp TransactionResult
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Success {
		t.Fatal("over-limit request succeeded")
	}
	if resp.Error == "" {
		t.Error("rejection carried no error")
	}
}

func TestMalformedMessageDropsOnlyThatConnection(t *testing.T) {
	socket := startTestServer(t, risk.NewInMemory(risk.DefaultLimits()))

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := writeFrame(conn, []byte("{not json")); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if _, err := readFrame(conn); err == nil {
		t.Error("expected dropped connection for malformed payload")
	}
	conn.Close()

	// The server keeps serving other clients.
	raw := roundTrip(t, socket, Request{Type: TypeSecurityCheck, Token: ledger.Identity{3}.String(), Amount: 1})
	var resp SecurityResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.IsSafe {
		t.Errorf("follow-up check rejected: %s", resp.Reason)
	}
}

func TestUnknownMessageTypeDropped(t *testing.T) {
	socket := startTestServer(t, risk.NewInMemory(risk.DefaultLimits()))

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	payload, _ := json.Marshal(Request{Type: "bogus"})
	if err := writeFrame(conn, payload); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	if _, err := readFrame(conn); err == nil {
		t.Error("expected no response for unrecognized type")
	}
}
