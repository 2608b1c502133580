package escrow

import (
	"encoding/hex"
	"testing"
)

func TestSignAndVerify(t *testing.T) {
	priv, addr, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if !IsIdentity(addr) {
		t.Fatalf("expected identity address, got %s", addr)
	}

	derived, err := PrivKeyToAddr(priv, IdentityPrefix)
	if err != nil {
		t.Fatalf("priv to addr: %v", err)
	}
	if derived != addr {
		t.Fatalf("address mismatch: %s != %s", derived, addr)
	}

	data := []byte(`{"signer":"x"}`)
	sig, err := SignBytes(data, priv)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := VerifySignature(data, sig, addr); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if err := VerifySignature([]byte(`{"signer":"y"}`), sig, addr); err == nil {
		t.Fatalf("expected verification failure for tampered data")
	}

	_, other, _ := GenerateKey()
	if err := VerifySignature(data, sig, other); err == nil {
		t.Fatalf("expected verification failure for other address")
	}
}

func TestSignCommand(t *testing.T) {
	priv, addr, _ := GenerateKey()
	sc, err := SignCommand([]byte("doc"), priv)
	if err != nil {
		t.Fatalf("sign command: %v", err)
	}
	if sc.Proof.Type != ProofTypeEcrecover {
		t.Fatalf("unexpected proof type %s", sc.Proof.Type)
	}
	sig, err := hex.DecodeString(sc.Proof.Signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	if err := VerifySignature([]byte(sc.Document), sig, addr); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestDeriveSlot(t *testing.T) {
	_, alice, _ := GenerateKey()
	_, bob, _ := GenerateKey()

	a1, err := CampaignSlot(alice)
	if err != nil {
		t.Fatalf("campaign slot: %v", err)
	}
	a2, _ := CampaignSlot(alice)
	if a1 != a2 {
		t.Fatalf("derivation is not stable")
	}
	if !IsSlot(a1) {
		t.Fatalf("expected slot address, got %s", a1)
	}

	b1, _ := CampaignSlot(bob)
	if a1 == b1 {
		t.Fatalf("different creators share a slot")
	}

	// role tags are part of the derivation
	c1, _ := DeriveSlot(RoleContributor, alice)
	if c1 == a1 {
		t.Fatalf("role tag ignored")
	}

	// contributor slots are bound to the campaign
	p1, _ := ContributorSlot(a1, bob)
	p2, _ := ContributorSlot(b1, bob)
	if p1 == p2 {
		t.Fatalf("contributor slot not bound to campaign")
	}

	x, _ := DeriveSlot("r", "ab", "c")
	y, _ := DeriveSlot("r", "a", "bc")
	if x == y {
		t.Fatalf("component boundaries are ambiguous")
	}

	if _, err := DeriveSlot("r"); err == nil {
		t.Fatalf("expected error without owners")
	}
}

func TestCommandID(t *testing.T) {
	if CommandID("a") == CommandID("b") {
		t.Fatalf("distinct documents share an id")
	}
	if CommandID("a") != CommandID("a") {
		t.Fatalf("command id is not stable")
	}
	if len(CommandID("a")) != 32 {
		t.Fatalf("unexpected id length %d", len(CommandID("a")))
	}
}
