package kvcrypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRBlockRoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair()
	require.NoError(t, err)

	key, iv, err := NewSessionKeyMaterial()
	require.NoError(t, err)

	want := RBlock{Cmd: "KVI", AESKey: key, AESIV: iv, ABlockLen: 4096}

	ciphertext, err := EncodeRBlock(&priv.PublicKey, want)
	require.NoError(t, err)
	require.Len(t, ciphertext, RBlockCiphertextLen)

	got, err := DecodeRBlock(priv, ciphertext)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestIsKeyHandshake(t *testing.T) {
	block := make([]byte, RBlockCiphertextLen)
	copy(block, "KEY")
	require.True(t, IsKeyHandshake(block))

	block[10] = 1
	require.False(t, IsKeyHandshake(block))

	require.False(t, IsKeyHandshake(make([]byte, 10)))
}

func TestSessionCipherDoesNotReuseKeystream(t *testing.T) {
	key, iv, err := NewSessionKeyMaterial()
	require.NoError(t, err)

	c, err := NewSessionCipher(key, iv)
	require.NoError(t, err)

	request := []byte("request payload.......")
	response := []byte("response payload......")

	ct1 := c.Encrypt(request)
	ct2 := c.Encrypt(response)
	require.NotEqual(t, ct1, ct2)

	// A fresh cipher from the same key/iv decrypts the first message alone.
	c2, err := NewSessionCipher(key, iv)
	require.NoError(t, err)
	require.Equal(t, request, c2.Decrypt(ct1))
}

func TestPasswordKDFRoundTrip(t *testing.T) {
	blob := HashPasswordKDF("correct horse battery staple")
	require.True(t, VerifyPasswordKDF("correct horse battery staple", blob))
	require.False(t, VerifyPasswordKDF("wrong password", blob))
}

func TestLegacyMD5Compat(t *testing.T) {
	digest := MD5PasswordHash("pw1")
	require.True(t, VerifyMD5Password("pw1", digest))
	require.False(t, VerifyMD5Password("pw2", digest))
}
