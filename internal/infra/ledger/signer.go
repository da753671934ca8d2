package ledger

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"time"

	"crypto/x509"
)

// Signer signs ledger gateway requests with the node's ed25519 key. The
// gateway authenticates the caller from the public key header and verifies
// the signature over timestamp + method + path + body.
type Signer struct {
	priv ed25519.PrivateKey
	pub  string
}

// NewSigner wraps an in-memory key pair.
func NewSigner(priv ed25519.PrivateKey) *Signer {
	pub := priv.Public().(ed25519.PublicKey)
	return &Signer{
		priv: priv,
		pub:  base64.StdEncoding.EncodeToString(pub),
	}
}

// LoadSigner reads an ed25519 private key from a PEM-encoded PKCS#8 file.
func LoadSigner(path string) (*Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key pair: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse key pair: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key in %s is %T, want ed25519", path, key)
	}
	return NewSigner(priv), nil
}

// PublicKey returns the base64-encoded public key.
func (s *Signer) PublicKey() string {
	return s.pub
}

// Sign returns the base64 signature over the canonical request string.
func (s *Signer) Sign(timestamp, method, path string, body []byte) string {
	payload := timestamp + method + path + string(body)
	return base64.StdEncoding.EncodeToString(ed25519.Sign(s.priv, []byte(payload)))
}

// GenerateHeaders creates the authentication headers for a request.
// method: GET, POST, etc.
// path: /v1/accounts/abcd (no host, query included if present)
// body: json body (empty if none)
func (s *Signer) GenerateHeaders(method, path string, body []byte) map[string]string {
	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())

	headers := map[string]string{
		"X-Ledger-Key":       s.pub,
		"X-Ledger-Timestamp": timestamp,
		"X-Ledger-Signature": s.Sign(timestamp, method, path, body),
		"Content-Type":       "application/json",
	}

	return headers
}
