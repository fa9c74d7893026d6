package session

import (
	"crypto/rsa"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/kvault/internal/kvcrypto"
	"github.com/dreamware/kvault/internal/persist"
	"github.com/dreamware/kvault/internal/store"
	"github.com/dreamware/kvault/internal/wire"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	log, err := persist.Open(t.TempDir() + "/kvault.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })

	cfg := store.Config{
		Buckets:     4,
		AdminName:   "admin",
		MRUCapacity: 8,
		UploadMax:   1 << 20,
		DownloadMax: 1 << 20,
		RequestMax:  1 << 20,
		Window:      time.Minute,
	}
	return store.New(cfg, log, nil, zerolog.Nop())
}

func field(s string) []byte {
	return wire.PutString(nil, []byte(s))
}

func concatFields(fields ...[]byte) []byte {
	var out []byte
	for _, f := range fields {
		out = append(out, f...)
	}
	return out
}

// roundTrip acts as a minimal reference client: it builds and encrypts an
// r_block for cmd, sends it plus the encrypted ablock, and returns the
// decrypted response body (token, optionally followed by a length-prefixed
// payload).
func roundTrip(t *testing.T, h *Handler, pub *rsa.PublicKey, cmd string, ablock []byte) []byte {
	t.Helper()

	key, iv, err := kvcrypto.NewSessionKeyMaterial()
	require.NoError(t, err)
	cipher, err := kvcrypto.NewSessionCipher(key, iv)
	require.NoError(t, err)

	encryptedAblock := cipher.Encrypt(ablock)

	rblock, err := kvcrypto.EncodeRBlock(pub, kvcrypto.RBlock{
		Cmd:       cmd,
		AESKey:    key,
		AESIV:     iv,
		ABlockLen: uint32(len(encryptedAblock)),
	})
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	done := make(chan struct{})
	go func() {
		h.Serve(serverConn)
		close(done)
	}()

	writeErrCh := make(chan error, 1)
	go func() {
		if err := writeAll(clientConn, rblock); err != nil {
			writeErrCh <- err
			return
		}
		writeErrCh <- writeAll(clientConn, encryptedAblock)
	}()
	require.NoError(t, <-writeErrCh)

	respFrame, err := wire.ReadFrame(clientConn)
	require.NoError(t, err)
	<-done

	return cipher.Decrypt(respFrame)
}

func writeAll(conn net.Conn, b []byte) error {
	for len(b) > 0 {
		n, err := conn.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

func splitTokenPayload(t *testing.T, resp []byte) (string, []byte) {
	t.Helper()
	for _, tok := range []string{TokenOKInsert, TokenOKUpdate, TokenOK} {
		if len(resp) >= len(tok) && string(resp[:len(tok)]) == tok {
			rest := resp[len(tok):]
			if len(rest) == 0 {
				return tok, nil
			}
			payload, _, err := wire.TakeString(rest)
			require.NoError(t, err)
			return tok, payload
		}
	}
	return string(resp), nil
}

func TestKeyHandshake(t *testing.T) {
	priv, err := kvcrypto.GenerateKeyPair()
	require.NoError(t, err)

	h := NewHandler(priv, newTestStore(t), zerolog.Nop(), nil)

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	done := make(chan struct{})
	go func() {
		h.Serve(serverConn)
		close(done)
	}()

	block := make([]byte, kvcrypto.RBlockCiphertextLen)
	copy(block[:3], "KEY")
	require.NoError(t, writeAll(clientConn, block))

	pemBytes := make([]byte, 4096)
	n, err := clientConn.Read(pemBytes)
	require.NoError(t, err)
	require.Contains(t, string(pemBytes[:n]), "PUBLIC KEY")
	<-done
}

func TestRegAndKVRoundTrip(t *testing.T) {
	priv, err := kvcrypto.GenerateKeyPair()
	require.NoError(t, err)
	st := newTestStore(t)

	resp := roundTrip(t, NewHandler(priv, st, zerolog.Nop(), nil), &priv.PublicKey, CmdReg, concatFields(field("alice"), field("pw1")))
	require.Equal(t, TokenOK, string(resp))

	resp = roundTrip(t, NewHandler(priv, st, zerolog.Nop(), nil), &priv.PublicKey, CmdKVI, concatFields(field("alice"), field("pw1"), field("k"), field("v1")))
	require.Equal(t, TokenOK, string(resp))

	resp = roundTrip(t, NewHandler(priv, st, zerolog.Nop(), nil), &priv.PublicKey, CmdKVG, concatFields(field("alice"), field("pw1"), field("k")))
	token, payload := splitTokenPayload(t, resp)
	require.Equal(t, TokenOK, token)
	require.Equal(t, []byte("v1"), payload)
}

func TestKVUpsertDistinguishesInsertAndUpdate(t *testing.T) {
	priv, err := kvcrypto.GenerateKeyPair()
	require.NoError(t, err)
	st := newTestStore(t)
	pub := &priv.PublicKey

	resp := roundTrip(t, NewHandler(priv, st, zerolog.Nop(), nil), pub, CmdReg, concatFields(field("alice"), field("pw1")))
	require.Equal(t, TokenOK, string(resp))

	resp = roundTrip(t, NewHandler(priv, st, zerolog.Nop(), nil), pub, CmdKVU, concatFields(field("alice"), field("pw1"), field("k"), field("v1")))
	require.Equal(t, TokenOKInsert, string(resp))

	resp = roundTrip(t, NewHandler(priv, st, zerolog.Nop(), nil), pub, CmdKVU, concatFields(field("alice"), field("pw1"), field("k"), field("v2")))
	require.Equal(t, TokenOKUpdate, string(resp))
}

func TestRegDuplicateUser(t *testing.T) {
	priv, err := kvcrypto.GenerateKeyPair()
	require.NoError(t, err)
	st := newTestStore(t)
	pub := &priv.PublicKey

	resp := roundTrip(t, NewHandler(priv, st, zerolog.Nop(), nil), pub, CmdReg, concatFields(field("alice"), field("pw1")))
	require.Equal(t, TokenOK, string(resp))

	resp = roundTrip(t, NewHandler(priv, st, zerolog.Nop(), nil), pub, CmdReg, concatFields(field("alice"), field("pw1")))
	require.Equal(t, TokenErrUserEx, string(resp))
}

func TestUnknownCommandYieldsErrInvCmd(t *testing.T) {
	priv, err := kvcrypto.GenerateKeyPair()
	require.NoError(t, err)
	st := newTestStore(t)

	resp := roundTrip(t, NewHandler(priv, st, zerolog.Nop(), nil), &priv.PublicKey, "ZZZ", nil)
	require.Equal(t, TokenErrInvCmd, string(resp))
}

func TestMalformedAblockYieldsErrMsgFmt(t *testing.T) {
	priv, err := kvcrypto.GenerateKeyPair()
	require.NoError(t, err)
	st := newTestStore(t)

	// REG expects two length-prefixed fields; one truncated field is
	// structurally malformed.
	resp := roundTrip(t, NewHandler(priv, st, zerolog.Nop(), nil), &priv.PublicKey, CmdReg, []byte{1, 0, 0, 0})
	require.Equal(t, TokenErrMsgFmt, string(resp))
}

func TestByeTriggersOnByeHook(t *testing.T) {
	priv, err := kvcrypto.GenerateKeyPair()
	require.NoError(t, err)
	st := newTestStore(t)
	pub := &priv.PublicKey

	var halted bool
	resp := roundTrip(t, NewHandler(priv, st, zerolog.Nop(), nil), pub, CmdReg, concatFields(field("alice"), field("pw1")))
	require.Equal(t, TokenOK, string(resp))

	resp = roundTrip(t, NewHandler(priv, st, zerolog.Nop(), func() { halted = true }), pub, CmdBye, concatFields(field("alice"), field("pw1")))
	require.Equal(t, TokenOK, string(resp))
	require.True(t, halted)
}

func TestLoginFailureDoesNotDistinguishMissingUserFromWrongPassword(t *testing.T) {
	priv, err := kvcrypto.GenerateKeyPair()
	require.NoError(t, err)
	st := newTestStore(t)
	pub := &priv.PublicKey

	resp := roundTrip(t, NewHandler(priv, st, zerolog.Nop(), nil), pub, CmdReg, concatFields(field("alice"), field("pw1")))
	require.Equal(t, TokenOK, string(resp))

	resp = roundTrip(t, NewHandler(priv, st, zerolog.Nop(), nil), pub, CmdKVG, concatFields(field("alice"), field("wrong"), field("k")))
	require.Equal(t, TokenErrLogin, string(resp))

	resp = roundTrip(t, NewHandler(priv, st, zerolog.Nop(), nil), pub, CmdKVG, concatFields(field("ghost"), field("pw1"), field("k")))
	require.Equal(t, TokenErrLogin, string(resp))
}
