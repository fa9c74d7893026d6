package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds any single length-prefixed frame read from the wire.
// It matches the largest a_block the session protocol allows (see
// internal/session), so a declared length above this is rejected outright
// rather than triggering a large allocation.
const MaxFrameSize = 1_048_780

// HandshakeBlockSize is the size of the very first message on a connection,
// read before any framing applies (see internal/session's KEY command and
// r_block handshake).
const HandshakeBlockSize = 256

// ErrFrameTooLarge is returned by ReadFrame when the declared length exceeds
// MaxFrameSize.
var ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")

// ReadFrame reads one length-prefixed frame: a little-endian u32 length
// followed by that many bytes. It returns ErrFrameTooLarge without reading
// the body if the declared length is unreasonable, and io.ErrUnexpectedEOF
// (via io.ReadFull) if the connection closes mid-frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("wire: reading frame length: %w", err)
	}

	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("wire: reading frame body: %w", err)
		}
	}
	return buf, nil
}

// WriteFrame writes one length-prefixed frame: a little-endian u32 length
// followed by payload. It loops until the full frame is written or an error
// occurs, since Write on a net.Conn may write fewer bytes than requested.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))

	if err := writeFull(w, lenBuf[:]); err != nil {
		return fmt.Errorf("wire: writing frame length: %w", err)
	}
	if err := writeFull(w, payload); err != nil {
		return fmt.Errorf("wire: writing frame body: %w", err)
	}
	return nil
}

// ReadFixed reads exactly n bytes, used for the handshake's fixed-size
// initial block where no length prefix precedes the data.
func ReadFixed(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("wire: reading fixed block: %w", err)
	}
	return buf, nil
}

// writeFull writes buf in full, looping over short writes.
func writeFull(w io.Writer, buf []byte) error {
	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// PutString appends a length-prefixed (u32 LE) string field to dst, matching
// the on-disk and on-wire "u32 len | bytes" encoding used throughout the
// protocol and persistence formats.
func PutString(dst []byte, s []byte) []byte {
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(s)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, s...)
	return dst
}

// TakeString consumes a length-prefixed (u32 LE) field from the front of
// src, returning the field bytes and the remainder of src. It returns an
// error if src is too short to contain the declared length — the
// "structurally malformed" case both the session protocol and the
// persistence replay loader must reject.
func TakeString(src []byte) (value []byte, rest []byte, err error) {
	if len(src) < 4 {
		return nil, nil, fmt.Errorf("wire: truncated length prefix")
	}
	n := binary.LittleEndian.Uint32(src[:4])
	src = src[4:]
	if uint64(n) > uint64(len(src)) {
		return nil, nil, fmt.Errorf("wire: declared length %d exceeds remaining %d bytes", n, len(src))
	}
	return src[:n], src[n:], nil
}
