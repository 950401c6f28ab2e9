package ledger

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/mr-tron/base58"
)

// Identity is a 32-byte public key addressing an account on the ledger.
// Rendered base58 everywhere it crosses a text boundary.
type Identity [32]byte

// ParseIdentity decodes a base58 identity string.
func ParseIdentity(s string) (Identity, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Identity{}, fmt.Errorf("decode identity: %w", err)
	}
	if len(raw) != 32 {
		return Identity{}, fmt.Errorf("identity must be 32 bytes, got %d", len(raw))
	}
	var id Identity
	copy(id[:], raw)
	return id, nil
}

func (id Identity) String() string {
	return base58.Encode(id[:])
}

func (id Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

func (id *Identity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseIdentity(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Signature is the base58-encoded transaction reference returned on
// submission and used for confirmation lookups.
type Signature string

// AccountMeta declares how an instruction touches one account.
type AccountMeta struct {
	Identity   Identity `json:"identity"`
	IsSigner   bool     `json:"is_signer"`
	IsWritable bool     `json:"is_writable"`
}

// Instruction is one program invocation: the program to run, the accounts it
// touches, and its opaque input data.
type Instruction struct {
	ProgramID Identity      `json:"program_id"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data"`
}

// Signer produces signatures for an identity without exposing its key
// material.
type Signer interface {
	Public() Identity
	Sign(message []byte) ([]byte, error)
}

// VerifySignature checks an ed25519 signature against the identity's key.
func VerifySignature(id Identity, message, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(id[:]), message, sig)
}

// EncodeInstructions serializes an instruction list for transport.
func EncodeInstructions(ixs []Instruction) ([]byte, error) {
	return json.Marshal(ixs)
}

// DecodeInstructions parses a transported instruction list.
func DecodeInstructions(raw []byte) ([]Instruction, error) {
	var ixs []Instruction
	if err := json.Unmarshal(raw, &ixs); err != nil {
		return nil, fmt.Errorf("decode instructions: %w", err)
	}
	return ixs, nil
}
