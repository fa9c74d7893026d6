package kvcrypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// KeyBits is the RSA modulus size used for the server's long-term keypair.
// 2048 bits keeps the r_block ciphertext at exactly RBlockCiphertextLen
// (256) bytes while leaving OAEP/SHA-256 plenty of headroom for the
// 128-byte r_block plaintext.
const KeyBits = 2048

// GenerateKeyPair creates a fresh RSA keypair for server use.
func GenerateKeyPair() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, KeyBits)
	if err != nil {
		return nil, fmt.Errorf("kvcrypto: generating key pair: %w", err)
	}
	return key, nil
}

// LoadPrivateKey reads a PEM-encoded PKCS#1 or PKCS#8 private key from path.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kvcrypto: reading key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("kvcrypto: %s does not contain PEM data", path)
	}

	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("kvcrypto: parsing private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("kvcrypto: %s is not an RSA private key", path)
	}
	return key, nil
}

// SavePrivateKey writes key to path as PEM-encoded PKCS#1, creating the file
// with owner-only permissions since it guards the server's long-term
// identity.
func SavePrivateKey(path string, key *rsa.PrivateKey) error {
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	return os.WriteFile(path, pem.EncodeToMemory(block), 0o600)
}

// PublicKeyPEM renders pub as a PEM-encoded PKIX public key, the exact form
// the KEY handshake command returns to clients (see internal/session).
func PublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("kvcrypto: marshaling public key: %w", err)
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}
	return pem.EncodeToMemory(block), nil
}
