package session

import (
	"crypto/rsa"
	"net"

	"github.com/rs/zerolog"

	"github.com/dreamware/kvault/internal/kvcrypto"
	"github.com/dreamware/kvault/internal/store"
	"github.com/dreamware/kvault/internal/wire"
)

// Handler dispatches one command per connection against a Store.
type Handler struct {
	priv   *rsa.PrivateKey
	store  *store.Store
	logger zerolog.Logger
	// onBye is invoked after a BYE command is accepted from an
	// authenticated user, once the acknowledgement has been sent. Nil is
	// fine if the caller doesn't want a shutdown hook.
	onBye func()
}

// NewHandler constructs a Handler serving against st, authenticating the
// handshake with priv and invoking onBye after every successful BYE.
func NewHandler(priv *rsa.PrivateKey, st *store.Store, logger zerolog.Logger, onBye func()) *Handler {
	return &Handler{priv: priv, store: st, logger: logger, onBye: onBye}
}

// Serve handles exactly one command over conn and returns once the
// response has been sent (or the connection could not be serviced). The
// caller is expected to call this once per accepted net.Conn, typically
// in its own goroutine.
func (h *Handler) Serve(conn net.Conn) {
	defer conn.Close()

	block, err := wire.ReadFixed(conn, kvcrypto.RBlockCiphertextLen)
	if err != nil {
		h.logger.Debug().Err(err).Msg("reading initial handshake block")
		return
	}

	if kvcrypto.IsKeyHandshake(block) {
		h.serveKeyHandshake(conn)
		return
	}

	r, err := kvcrypto.DecodeRBlock(h.priv, block)
	if err != nil {
		// No session key material could be recovered; there is nothing
		// to encrypt a response under, so the connection is simply
		// dropped. See doc.go.
		h.logger.Debug().Err(err).Msg("decoding r_block")
		return
	}

	cipher, err := kvcrypto.NewSessionCipher(r.AESKey, r.AESIV)
	if err != nil {
		h.logger.Error().Err(err).Msg("constructing session cipher")
		return
	}

	if r.ABlockLen > wire.MaxFrameSize {
		h.respond(conn, cipher, TokenErrMsgFmt, nil, false)
		return
	}

	ablockCipher, err := wire.ReadFixed(conn, int(r.ABlockLen))
	if err != nil {
		h.logger.Debug().Err(err).Msg("reading a_block")
		return
	}
	ablock := cipher.Decrypt(ablockCipher)

	token, payload, hasPayload, halt := h.dispatch(r.Cmd, ablock)
	h.respond(conn, cipher, token, payload, hasPayload)

	if halt && h.onBye != nil {
		h.onBye()
	}
}

func (h *Handler) serveKeyHandshake(conn net.Conn) {
	pemBytes, err := kvcrypto.PublicKeyPEM(&h.priv.PublicKey)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshaling public key for KEY handshake")
		return
	}
	if _, err := conn.Write(pemBytes); err != nil {
		h.logger.Debug().Err(err).Msg("writing KEY handshake response")
	}
}

// respond builds the response body (token, plus a length-prefixed payload
// for tokens that carry data), encrypts it under cipher, and sends it as
// one frame.
func (h *Handler) respond(conn net.Conn, cipher *kvcrypto.SessionCipher, token string, payload []byte, hasPayload bool) {
	body := []byte(token)
	if hasPayload {
		body = wire.PutString(body, payload)
	}
	encrypted := cipher.Encrypt(body)
	if err := wire.WriteFrame(conn, encrypted); err != nil {
		h.logger.Debug().Err(err).Msg("writing response frame")
	}
}
