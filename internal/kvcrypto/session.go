package kvcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// SessionCipher wraps a single AES-256-CTR keystream shared by the a_block
// decrypt and the response encrypt within one connection. The zero value is
// not usable; construct with NewSessionCipher.
type SessionCipher struct {
	stream cipher.Stream
}

// NewSessionCipher builds the per-connection keystream from the key and IV
// carried in the r_block.
func NewSessionCipher(key [AESKeyLen]byte, iv [AESIVLen]byte) (*SessionCipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("kvcrypto: constructing AES cipher: %w", err)
	}
	return &SessionCipher{stream: cipher.NewCTR(block, iv[:])}, nil
}

// Apply XORs src against the next len(src) bytes of the session keystream,
// writing the result to dst (which may alias src). It is used for both
// decrypting the inbound a_block and encrypting the outbound response —
// AES-CTR's XOR operation is its own inverse, and calling Apply twice on the
// same *SessionCipher advances the keystream rather than reusing it.
func (c *SessionCipher) Apply(dst, src []byte) {
	c.stream.XORKeyStream(dst, src)
}

// Decrypt is Apply under a name matching its use at the call site.
func (c *SessionCipher) Decrypt(ciphertext []byte) []byte {
	out := make([]byte, len(ciphertext))
	c.Apply(out, ciphertext)
	return out
}

// Encrypt is Apply under a name matching its use at the call site.
func (c *SessionCipher) Encrypt(plaintext []byte) []byte {
	out := make([]byte, len(plaintext))
	c.Apply(out, plaintext)
	return out
}

// NewSessionKeyMaterial generates a fresh random AES key and IV for a new
// session, used by tests and by any client-side tooling in this module.
func NewSessionKeyMaterial() (key [AESKeyLen]byte, iv [AESIVLen]byte, err error) {
	if _, err = rand.Read(key[:]); err != nil {
		return key, iv, fmt.Errorf("kvcrypto: generating session key: %w", err)
	}
	if _, err = rand.Read(iv[:]); err != nil {
		return key, iv, fmt.Errorf("kvcrypto: generating session iv: %w", err)
	}
	return key, iv, nil
}
