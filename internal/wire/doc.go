// Package wire implements the length-prefixed framing used for every message
// that crosses a kvault session socket, plus the small number of fixed-size
// reads the handshake needs before a frame length even makes sense.
//
// # Framing
//
// Every message other than the initial 256-byte handshake block is sent as
//
//	u32 length (little-endian) | length bytes of payload
//
// ReadFrame and WriteFrame carry every framed message; ReadFixed reads the
// unframed handshake block and the a_block, and the KEY handshake reply in
// internal/session is the one write made on the net.Conn directly. ReadFrame
// and WriteFrame both retry on short reads/writes the way a raw POSIX
// socket requires — io.ReadFull already does this for reads, and WriteFrame
// loops until Write has consumed the whole buffer or returns an error,
// since net.Conn.Write is not guaranteed to write everything in one call.
//
// # Size limits
//
// ReadFrame rejects a declared length above MaxFrameSize before allocating
// a buffer for it, so a malformed or hostile declared length can't be used
// to force an unbounded allocation.
package wire
