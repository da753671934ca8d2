package ledger

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
)

func testSigner(t *testing.T) (*Signer, ed25519.PublicKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return NewSigner(priv), pub
}

func TestSigner_GenerateHeaders(t *testing.T) {
	signer, pub := testSigner(t)

	body := []byte(`{"name":"fx.swap"}`)
	headers := signer.GenerateHeaders("POST", "/v1/actions", body)

	if headers["X-Ledger-Key"] != base64.StdEncoding.EncodeToString(pub) {
		t.Errorf("X-Ledger-Key = %s, want base64 public key", headers["X-Ledger-Key"])
	}
	if len(headers["X-Ledger-Timestamp"]) != 13 { // Milliseconds
		t.Errorf("Expected timestamp len 13, got %s", headers["X-Ledger-Timestamp"])
	}
	if headers["X-Ledger-Signature"] == "" {
		t.Fatal("X-Ledger-Signature should not be empty")
	}

	// The signature must verify over timestamp + method + path + body.
	sig, err := base64.StdEncoding.DecodeString(headers["X-Ledger-Signature"])
	if err != nil {
		t.Fatalf("signature is not base64: %v", err)
	}
	payload := headers["X-Ledger-Timestamp"] + "POST" + "/v1/actions" + string(body)
	if !ed25519.Verify(pub, []byte(payload), sig) {
		t.Error("signature did not verify")
	}
}

func TestSigner_Sign(t *testing.T) {
	signer, pub := testSigner(t)

	sig, err := base64.StdEncoding.DecodeString(signer.Sign("1600000000000", "GET", "/v1/accounts/aa01", nil))
	if err != nil {
		t.Fatalf("signature is not base64: %v", err)
	}
	if !ed25519.Verify(pub, []byte("1600000000000GET/v1/accounts/aa01"), sig) {
		t.Error("signature did not verify")
	}
}

func TestLoadSigner(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "node.pem")
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if err := os.WriteFile(path, pemData, 0600); err != nil {
		t.Fatalf("write key: %v", err)
	}

	t.Run("loads PKCS#8 PEM", func(t *testing.T) {
		signer, err := LoadSigner(path)
		if err != nil {
			t.Fatalf("LoadSigner failed: %v", err)
		}
		if signer.PublicKey() != base64.StdEncoding.EncodeToString(pub) {
			t.Error("loaded signer has wrong public key")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadSigner(filepath.Join(t.TempDir(), "nope.pem")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("not a PEM file", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.pem")
		os.WriteFile(bad, []byte("not pem"), 0600)
		if _, err := LoadSigner(bad); err == nil {
			t.Error("expected error for non-PEM file")
		}
	})
}
