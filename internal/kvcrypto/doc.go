// Package kvcrypto implements the session-level cryptography: the server's
// long-term RSA keypair, the r_block handshake codec, and the AES-CTR
// session cipher each connection derives from it.
//
// # Handshake shape
//
// The first 256 bytes a client sends are an RSA-OAEP(SHA-256) ciphertext
// over a fixed 128-byte plaintext r_block:
//
//	cmd[3] | aes_key[32] | iv[16] | a_block_len: u32 | padding[73]
//
// 2048-bit RSA with OAEP/SHA-256 has a maximum plaintext of 190 bytes, so
// the 128-byte r_block fits with room to spare, and its ciphertext is
// exactly 256 bytes, the fixed RBlockCiphertextLen.
//
// # Session cipher
//
// The 32-byte key and 16-byte IV decoded from the r_block seed a single
// AES-256-CTR keystream for the lifetime of the connection. Because a
// session carries exactly one request and one response, the a_block
// decrypt and the response encrypt are applied against the *same*,
// continuously-advancing keystream (cipher.Stream is stateful) rather than
// two independent streams reset to the same IV — reusing the IV for two
// XORs against the same point in the stream would let an eavesdropper XOR
// the two ciphertexts to cancel the keystream out entirely.
package kvcrypto
