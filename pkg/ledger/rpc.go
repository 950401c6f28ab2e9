package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mr-tron/base58"
	"golang.org/x/time/rate"
)

// RPCClient talks JSON-RPC to a ledger node. Every call passes through a
// client-side rate limiter so bursts never trip the node's own throttling.
type RPCClient struct {
	url     string
	http    *http.Client
	limiter *rate.Limiter
	reqID   atomic.Int64

	// confirmation polling
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewRPCClient creates a client for the node at url, limited to ratePerSec
// requests per second (0 disables limiting).
func NewRPCClient(url string, ratePerSec float64) *RPCClient {
	limit := rate.Inf
	burst := 1
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
		burst = int(ratePerSec)
		if burst < 1 {
			burst = 1
		}
	}
	return &RPCClient{
		url:          url,
		http:         &http.Client{Timeout: 30 * time.Second},
		limiter:      rate.NewLimiter(limit, burst),
		pollInterval: 400 * time.Millisecond,
		pollTimeout:  30 * time.Second,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *RPCClient) call(ctx context.Context, method string, params []any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if parsed.Error != nil {
		return fmt.Errorf("%s: %w", method, parsed.Error)
	}
	if out != nil {
		if err := json.Unmarshal(parsed.Result, out); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

// GetBalance returns the lamport balance of an account at confirmed
// commitment.
func (c *RPCClient) GetBalance(ctx context.Context, id Identity) (uint64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	params := []any{id.String(), map[string]string{"commitment": "confirmed"}}
	if err := c.call(ctx, "getBalance", params, &result); err != nil {
		return 0, err
	}
	return result.Value, nil
}

// LatestBlockhash fetches a recent blockhash for transaction assembly.
func (c *RPCClient) LatestBlockhash(ctx context.Context) (string, error) {
	var result struct {
		Value struct {
			Blockhash string `json:"blockhash"`
		} `json:"value"`
	}
	params := []any{map[string]string{"commitment": "confirmed"}}
	if err := c.call(ctx, "getLatestBlockhash", params, &result); err != nil {
		return "", err
	}
	return result.Value.Blockhash, nil
}

// Simulate dry-runs the instruction sequence as payer. Signature verification
// is disabled so a placeholder signature stands in for the payer's.
func (c *RPCClient) Simulate(ctx context.Context, instructions []Instruction, payer Identity) error {
	blockhash, err := c.LatestBlockhash(ctx)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}

	msg, err := compileMessage(instructions, payer, blockhash)
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	// One placeholder signature for the payer; sigVerify is off.
	tx := assembleTransaction([][]byte{make([]byte, 64)}, msg)

	var result struct {
		Value struct {
			Err  json.RawMessage `json:"err"`
			Logs []string        `json:"logs"`
		} `json:"value"`
	}
	params := []any{
		base64.StdEncoding.EncodeToString(tx),
		map[string]any{"sigVerify": false, "encoding": "base64", "commitment": "confirmed"},
	}
	if err := c.call(ctx, "simulateTransaction", params, &result); err != nil {
		return err
	}
	if len(result.Value.Err) > 0 && string(result.Value.Err) != "null" {
		return &SimulateError{Reason: string(result.Value.Err), Logs: result.Value.Logs}
	}
	return nil
}

// SendAndConfirm assembles and signs the transaction, submits it, then polls
// until it confirms or the polling budget runs out.
func (c *RPCClient) SendAndConfirm(ctx context.Context, instructions []Instruction, signers []Signer) (Signature, error) {
	if len(signers) == 0 {
		return "", fmt.Errorf("send: no signers")
	}

	blockhash, err := c.LatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("send: %w", err)
	}

	msg, err := compileMessage(instructions, signers[0].Public(), blockhash)
	if err != nil {
		return "", fmt.Errorf("send: %w", err)
	}

	sigs := make([][]byte, 0, len(signers))
	for _, signer := range signers {
		sig, err := signer.Sign(msg)
		if err != nil {
			return "", fmt.Errorf("sign as %s: %w", signer.Public(), err)
		}
		sigs = append(sigs, sig)
	}
	tx := assembleTransaction(sigs, msg)

	var sigStr string
	params := []any{
		base64.StdEncoding.EncodeToString(tx),
		map[string]any{"encoding": "base64", "skipPreflight": true},
	}
	if err := c.call(ctx, "sendTransaction", params, &sigStr); err != nil {
		return "", err
	}
	sig := Signature(sigStr)

	deadline := time.Now().Add(c.pollTimeout)
	for time.Now().Before(deadline) {
		confirmed, err := c.Confirm(ctx, sig)
		if err != nil {
			return "", fmt.Errorf("confirm %s: %w", sig, err)
		}
		if confirmed {
			return sig, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return "", fmt.Errorf("transaction %s not confirmed within %s", sig, c.pollTimeout)
}

// Confirm reports whether a submitted transaction reached confirmed or
// finalized commitment.
func (c *RPCClient) Confirm(ctx context.Context, sig Signature) (bool, error) {
	var result struct {
		Value []*struct {
			ConfirmationStatus string          `json:"confirmationStatus"`
			Err                json.RawMessage `json:"err"`
		} `json:"value"`
	}
	params := []any{[]string{string(sig)}}
	if err := c.call(ctx, "getSignatureStatuses", params, &result); err != nil {
		return false, err
	}
	if len(result.Value) == 0 || result.Value[0] == nil {
		return false, nil
	}
	status := result.Value[0]
	if len(status.Err) > 0 && string(status.Err) != "null" {
		return false, fmt.Errorf("transaction %s failed on chain: %s", sig, status.Err)
	}
	return status.ConfirmationStatus == "confirmed" || status.ConfirmationStatus == "finalized", nil
}

// compileMessage builds a legacy transaction message: header, compact account
// list ordered writable-signers, readonly-signers, writable-others,
// readonly-others (payer first), the recent blockhash, then the compiled
// instructions referencing accounts by index.
func compileMessage(instructions []Instruction, payer Identity, blockhash string) ([]byte, error) {
	type accountInfo struct {
		signer   bool
		writable bool
	}
	infos := map[Identity]*accountInfo{
		payer: {signer: true, writable: true},
	}
	upsert := func(id Identity, signer, writable bool) {
		info, ok := infos[id]
		if !ok {
			infos[id] = &accountInfo{signer: signer, writable: writable}
			return
		}
		info.signer = info.signer || signer
		info.writable = info.writable || writable
	}
	for _, ix := range instructions {
		upsert(ix.ProgramID, false, false)
		for _, acc := range ix.Accounts {
			upsert(acc.Identity, acc.IsSigner, acc.IsWritable)
		}
	}

	var writableSigners, readonlySigners, writableOthers, readonlyOthers []Identity
	add := func(id Identity, info *accountInfo) {
		switch {
		case info.signer && info.writable:
			writableSigners = append(writableSigners, id)
		case info.signer:
			readonlySigners = append(readonlySigners, id)
		case info.writable:
			writableOthers = append(writableOthers, id)
		default:
			readonlyOthers = append(readonlyOthers, id)
		}
	}
	add(payer, infos[payer])
	for _, ix := range instructions {
		for _, acc := range ix.Accounts {
			if acc.Identity == payer {
				continue
			}
			if info, ok := infos[acc.Identity]; ok {
				add(acc.Identity, info)
				delete(infos, acc.Identity)
			}
		}
	}
	for _, ix := range instructions {
		if info, ok := infos[ix.ProgramID]; ok && ix.ProgramID != payer {
			add(ix.ProgramID, info)
			delete(infos, ix.ProgramID)
		}
	}

	keys := make([]Identity, 0, len(writableSigners)+len(readonlySigners)+len(writableOthers)+len(readonlyOthers))
	keys = append(keys, writableSigners...)
	keys = append(keys, readonlySigners...)
	keys = append(keys, writableOthers...)
	keys = append(keys, readonlyOthers...)

	index := make(map[Identity]int, len(keys))
	for i, k := range keys {
		index[k] = i
	}

	hashRaw, err := base58.Decode(blockhash)
	if err != nil || len(hashRaw) != 32 {
		return nil, fmt.Errorf("invalid blockhash %q", blockhash)
	}

	var msg []byte
	msg = append(msg,
		byte(len(writableSigners)+len(readonlySigners)),
		byte(len(readonlySigners)),
		byte(len(readonlyOthers)),
	)
	msg = appendCompactU16(msg, len(keys))
	for _, k := range keys {
		msg = append(msg, k[:]...)
	}
	msg = append(msg, hashRaw...)
	msg = appendCompactU16(msg, len(instructions))
	for _, ix := range instructions {
		msg = append(msg, byte(index[ix.ProgramID]))
		msg = appendCompactU16(msg, len(ix.Accounts))
		for _, acc := range ix.Accounts {
			msg = append(msg, byte(index[acc.Identity]))
		}
		msg = appendCompactU16(msg, len(ix.Data))
		msg = append(msg, ix.Data...)
	}
	return msg, nil
}

// assembleTransaction prefixes the message with its compact signature array.
func assembleTransaction(sigs [][]byte, msg []byte) []byte {
	var tx []byte
	tx = appendCompactU16(tx, len(sigs))
	for _, sig := range sigs {
		tx = append(tx, sig...)
	}
	return append(tx, msg...)
}

// appendCompactU16 writes the shortvec length encoding.
func appendCompactU16(buf []byte, v int) []byte {
	for {
		if v < 0x80 {
			return append(buf, byte(v))
		}
		buf = append(buf, byte(v&0x7f)|0x80)
		v >>= 7
	}
}
