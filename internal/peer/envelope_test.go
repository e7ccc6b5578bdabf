package peer

import (
	"crypto/ed25519"
	"testing"
	"time"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	env := Envelope{
		From:      "beacon",
		To:        "sentry",
		Type:      TypeText,
		Timestamp: time.Now(),
		MessageID: "msg-1",
		Nonce:     "nonce-1",
		Payload:   Payload{Text: "hello"},
	}
	signed, err := Sign(env, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if signed.Signature == "" {
		t.Fatal("expected Sign to set a signature")
	}
	if !Verify(signed, pub) {
		t.Error("expected signature to verify against the matching public key")
	}
}

func TestVerifyFailsWithWrongKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	otherPub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	env := Envelope{From: "beacon", To: "sentry", Type: TypeText, Timestamp: time.Now(), MessageID: "m", Nonce: "n"}
	signed, err := Sign(env, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if Verify(signed, otherPub) {
		t.Error("expected signature not to verify against an unrelated public key")
	}
}

func TestVerifyFailsIfPayloadTampered(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	env := Envelope{From: "beacon", To: "sentry", Type: TypeText, Timestamp: time.Now(), MessageID: "m", Nonce: "n", Payload: Payload{Text: "original"}}
	signed, err := Sign(env, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	signed.Payload.Text = "tampered"
	if Verify(signed, pub) {
		t.Error("expected tampered payload to fail verification")
	}
}

func TestWithinClockSkew(t *testing.T) {
	now := time.Now()
	env := Envelope{Timestamp: now.Add(-5 * time.Minute)}
	if !WithinClockSkew(env, now, 5*time.Minute) {
		t.Error("expected exactly 5 minutes old to be accepted")
	}
	env2 := Envelope{Timestamp: now.Add(-5*time.Minute - time.Second)}
	if WithinClockSkew(env2, now, 5*time.Minute) {
		t.Error("expected 5 minutes and 1 second old to be rejected")
	}
}
