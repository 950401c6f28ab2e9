package ipc

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"

	"github.com/google/uuid"

	"sniper-core/internal/engine"
	"sniper-core/internal/risk"
	"sniper-core/pkg/ledger"
)

// maxFrameSize bounds a single message payload.
const maxFrameSize = 1 << 20

// Server accepts one request message per connection over a unix domain
// socket and answers it with exactly one response. Frames are a 4-byte
// big-endian length followed by a JSON payload. Malformed payloads fail the
// connection, never the server.
type Server struct {
	SocketPath string
	Gate       *risk.Gate
	Exec       *engine.Executor
	// Defaults seeds the per-request dispatch config; the message overrides
	// priority, attempt cap and simulate flag.
	Defaults engine.Config

	ln net.Listener
}

// Start binds the socket and serves until ctx is cancelled. A stale socket
// file from a previous run is removed first.
func (s *Server) Start(ctx context.Context) error {
	if _, err := os.Stat(s.SocketPath); err == nil {
		if err := os.Remove(s.SocketPath); err != nil {
			return fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", s.SocketPath)
	if err != nil {
		return fmt.Errorf("bind ipc socket: %w", err)
	}
	s.ln = ln
	log.Printf("ipc server listening on %s", s.SocketPath)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("ipc accept error: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	connID := uuid.NewString()[:8]

	payload, err := readFrame(conn)
	if err != nil {
		log.Printf("ipc[%s] read frame: %v", connID, err)
		return
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		// Serialization error: drop this connection, keep serving others.
		log.Printf("ipc[%s] malformed message: %v", connID, err)
		return
	}

	var resp any
	switch req.Type {
	case TypeExecuteTransaction:
		log.Printf("ipc[%s] transaction request: priority=%d max_retries=%d", connID, req.Priority, req.MaxRetries)
		resp = s.handleExecute(ctx, req)
	case TypeSecurityCheck:
		log.Printf("ipc[%s] security check: token=%s amount=%d", connID, req.Token, req.Amount)
		allowed, reason := s.Gate.Check(risk.Request{
			Identity: s.Exec.Payer(),
			Token:    req.Token,
			Amount:   req.Amount,
		})
		resp = SecurityResponse{Type: TypeSecurityResponse, IsSafe: allowed, Reason: reason}
	default:
		log.Printf("ipc[%s] unrecognized message type %q; dropping", connID, req.Type)
		return
	}

	out, err := json.Marshal(resp)
	if err != nil {
		log.Printf("ipc[%s] marshal response: %v", connID, err)
		return
	}
	if err := writeFrame(conn, out); err != nil {
		log.Printf("ipc[%s] write response: %v", connID, err)
	}
}

func (s *Server) handleExecute(ctx context.Context, req Request) TransactionResult {
	fail := func(err error) TransactionResult {
		return TransactionResult{Type: TypeTransactionResult, Success: false, Error: err.Error()}
	}

	// Risk-gate the request when it carries an amount context. Validation
	// failures surface synchronously, before any ledger round trip.
	if req.Token != "" || req.Amount > 0 {
		if allowed, reason := s.Gate.Check(risk.Request{
			Identity: s.Exec.Payer(),
			Token:    req.Token,
			Amount:   req.Amount,
		}); !allowed {
			return fail(errors.New(reason))
		}
	}

	ixs, err := ledger.DecodeInstructions(req.Instructions)
	if err != nil {
		return fail(err)
	}

	cfg := s.Defaults
	cfg.Priority = engine.PriorityFromLevel(req.Priority)
	if req.MaxRetries > 0 {
		cfg.MaxRetries = int(req.MaxRetries)
	}
	if req.Simulate != nil {
		cfg.SimulationRequired = *req.Simulate
	}

	res, err := s.Exec.Execute(ctx, ixs, cfg)
	if err != nil {
		return fail(err)
	}
	return TransactionResult{
		Type:      TypeTransactionResult,
		Success:   true,
		Signature: string(res.Signature),
	}
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if size == 0 || size > maxFrameSize {
		return nil, fmt.Errorf("invalid frame size %d", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}
