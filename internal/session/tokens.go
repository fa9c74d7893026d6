package session

import (
	"errors"

	"github.com/dreamware/kvault/internal/store"
)

// Command tokens. KEY is handled out-of-band in Handler.Serve before an
// RBlock is ever decoded, so it never appears in the dispatch switch.
const (
	CmdReg = "REG"
	CmdBye = "BYE"
	CmdSav = "SAV"
	CmdSet = "SET"
	CmdGet = "GET"
	CmdAll = "ALL"
	CmdKVI = "KVI"
	CmdKVU = "KVU"
	CmdKVG = "KVG"
	CmdKVD = "KVD"
	CmdKVA = "KVA"
	CmdKVT = "KVT"
	CmdKMR = "KMR"
	CmdKIR = "KIR"
)

// Response tokens, the first bytes of every response payload.
const (
	TokenOK          = "OK"
	TokenOKInsert    = "OK_INSERT"
	TokenOKUpdate    = "OK_UPDATE"
	TokenErrLogin    = "ERR_LOGIN"
	TokenErrUserEx   = "ERR_USER_EXISTS"
	TokenErrNoUser   = "ERR_NO_USER"
	TokenErrNoData   = "ERR_NO_DATA"
	TokenErrKey      = "ERR_KEY"
	TokenErrInvCmd   = "ERR_INV_CMD"
	TokenErrMsgFmt   = "ERR_MSG_FMT"
	TokenErrServer   = "ERR_SERVER"
	TokenErrQuotaReq = "ERR_QUOTA_REQ"
	TokenErrQuotaUp  = "ERR_QUOTA_UP"
	TokenErrQuotaDn  = "ERR_QUOTA_DOWN"
	TokenErrSO       = "ERR_SO"
	TokenErrFunc     = "ERR_FUNC"
)

// errToken maps a store sentinel error to its wire response token. It is
// the one place a Go error gets translated to something a client sees —
// no error string ever reaches the wire.
func errToken(err error) string {
	switch {
	case errors.Is(err, store.ErrLogin), errors.Is(err, store.ErrNotAdmin):
		return TokenErrLogin
	case errors.Is(err, store.ErrUserExists):
		return TokenErrUserEx
	case errors.Is(err, store.ErrNoUser):
		return TokenErrNoUser
	case errors.Is(err, store.ErrNoData):
		return TokenErrNoData
	case errors.Is(err, store.ErrKey):
		return TokenErrKey
	case errors.Is(err, store.ErrQuotaReq):
		return TokenErrQuotaReq
	case errors.Is(err, store.ErrQuotaUp):
		return TokenErrQuotaUp
	case errors.Is(err, store.ErrQuotaDown):
		return TokenErrQuotaDn
	case errors.Is(err, store.ErrSOLoad):
		return TokenErrSO
	case errors.Is(err, store.ErrFuncExists), errors.Is(err, store.ErrFuncMissing):
		return TokenErrFunc
	case errors.Is(err, store.ErrServer):
		return TokenErrServer
	default:
		return TokenErrServer
	}
}
