// Package session implements kvault's wire protocol: the KEY handshake,
// the RSA-OAEP r_block that transports a per-connection AES-256-CTR
// session key, and the single command/response exchange that follows.
//
// Handler.Serve is a small state machine over one raw net.Conn: decode,
// authenticate/validate, call the domain layer, encode, respond. A
// connection carries exactly one command, then closes — sessions are
// short-lived and the accept loop in cmd/kvaultd dispatches each one to
// its own goroutine.
//
// Two corners of the protocol worth calling out:
//
//   - If the r_block itself fails to decrypt, the connection is closed
//     without a response — there is no key material yet to encrypt an
//     ERR_MSG_FMT reply under, so nothing can be sent that the client
//     could meaningfully decode.
//   - ErrNotAdmin (a KMR from a non-admin user) maps to ERR_LOGIN; the
//     token table has no dedicated "forbidden" response, and ERR_LOGIN's
//     existing "authentication failed, no further detail" meaning covers
//     it without inventing a new one.
package session
