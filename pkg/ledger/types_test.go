package ledger

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"testing"
)

func TestIdentityBase58RoundTrip(t *testing.T) {
	var id Identity
	for i := range id {
		id[i] = byte(i)
	}
	parsed, err := ParseIdentity(id.String())
	if err != nil {
		t.Fatalf("ParseIdentity: %v", err)
	}
	if parsed != id {
		t.Errorf("round trip mismatch: %s vs %s", parsed, id)
	}
}

func TestParseIdentityRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"invalid characters": "0OIl!!",
		"wrong length":       "abc",
		"empty":              "",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseIdentity(input); err == nil {
				t.Errorf("ParseIdentity(%q) accepted", input)
			}
		})
	}
}

func TestIdentityJSON(t *testing.T) {
	id := Identity{1, 2, 3}
	raw, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Identity
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != id {
		t.Errorf("round trip mismatch: %s vs %s", back, id)
	}
	if err := json.Unmarshal([]byte(`"too short"`), &back); err == nil {
		t.Error("malformed identity accepted")
	}
}

func TestInstructionCodec(t *testing.T) {
	ixs := []Instruction{
		{
			ProgramID: Identity{7},
			Accounts: []AccountMeta{
				{Identity: Identity{1}, IsSigner: true, IsWritable: true},
				{Identity: Identity{2}},
			},
			Data: []byte{0xde, 0xad},
		},
		{ProgramID: Identity{8}},
	}
	raw, err := EncodeInstructions(ixs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := DecodeInstructions(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(back) != 2 {
		t.Fatalf("got %d instructions, want 2", len(back))
	}
	if back[0].ProgramID != ixs[0].ProgramID || !bytes.Equal(back[0].Data, ixs[0].Data) {
		t.Error("first instruction mangled")
	}
	if !back[0].Accounts[0].IsSigner || !back[0].Accounts[0].IsWritable {
		t.Error("account flags lost")
	}

	if _, err := DecodeInstructions([]byte("nope")); err == nil {
		t.Error("malformed payload accepted")
	}
}

func TestVerifySignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	var id Identity
	copy(id[:], pub)

	msg := []byte("payload")
	sig := ed25519.Sign(priv, msg)
	if !VerifySignature(id, msg, sig) {
		t.Error("valid signature rejected")
	}
	sig[0] ^= 0xff
	if VerifySignature(id, msg, sig) {
		t.Error("tampered signature accepted")
	}
}
