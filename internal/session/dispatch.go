package session

import (
	"errors"

	"github.com/dreamware/kvault/internal/wire"
)

// Wire bounds on client-supplied fields.
const (
	MaxUsername = 64
	MaxPassword = 128
	MaxContent  = 1 << 20
)

// dispatch parses the decrypted a_block according to cmd's layout, calls
// the matching Store operation, and returns the response token plus an
// optional payload. halt is true only for a successful BYE.
func (h *Handler) dispatch(cmd string, ablock []byte) (token string, payload []byte, hasPayload bool, halt bool) {
	switch cmd {
	case CmdReg:
		user, pass, _, err := takeUserPass(ablock)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		if err := h.store.AddUser(user, pass); err != nil {
			return errToken(err), nil, false, false
		}
		return TokenOK, nil, false, false

	case CmdBye:
		user, pass, _, err := takeUserPass(ablock)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		if err := h.store.Bye(user, pass); err != nil {
			return errToken(err), nil, false, false
		}
		return TokenOK, nil, false, true

	case CmdSav:
		user, pass, _, err := takeUserPass(ablock)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		if err := h.store.Sav(user, pass); err != nil {
			return errToken(err), nil, false, false
		}
		return TokenOK, nil, false, false

	case CmdSet:
		user, pass, rest, err := takeUserPass(ablock)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		content, _, err := wire.TakeString(rest)
		if err != nil || len(content) > MaxContent {
			return TokenErrMsgFmt, nil, false, false
		}
		if err := h.store.SetUserData(user, pass, content); err != nil {
			return errToken(err), nil, false, false
		}
		return TokenOK, nil, false, false

	case CmdGet:
		user, pass, rest, err := takeUserPass(ablock)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		who, _, err := wire.TakeString(rest)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		data, err := h.store.GetUserData(user, pass, string(who))
		if err != nil {
			return errToken(err), nil, false, false
		}
		return TokenOK, data, true, false

	case CmdAll:
		user, pass, _, err := takeUserPass(ablock)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		data, err := h.store.GetAllUsers(user, pass)
		if err != nil {
			return errToken(err), nil, false, false
		}
		return TokenOK, data, true, false

	case CmdKVI:
		user, pass, key, value, err := takeUserPassKV(ablock)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		if err := h.store.KVInsert(user, pass, key, value); err != nil {
			return errToken(err), nil, false, false
		}
		return TokenOK, nil, false, false

	case CmdKVU:
		user, pass, key, value, err := takeUserPassKV(ablock)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		inserted, err := h.store.KVUpsert(user, pass, key, value)
		if err != nil {
			return errToken(err), nil, false, false
		}
		if inserted {
			return TokenOKInsert, nil, false, false
		}
		return TokenOKUpdate, nil, false, false

	case CmdKVG:
		user, pass, key, err := takeUserPassKey(ablock)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		value, err := h.store.KVGet(user, pass, key)
		if err != nil {
			return errToken(err), nil, false, false
		}
		return TokenOK, value, true, false

	case CmdKVD:
		user, pass, key, err := takeUserPassKey(ablock)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		if err := h.store.KVDelete(user, pass, key); err != nil {
			return errToken(err), nil, false, false
		}
		return TokenOK, nil, false, false

	case CmdKVA:
		user, pass, _, err := takeUserPass(ablock)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		data, err := h.store.KVAll(user, pass)
		if err != nil {
			return errToken(err), nil, false, false
		}
		return TokenOK, data, true, false

	case CmdKVT:
		user, pass, _, err := takeUserPass(ablock)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		data, err := h.store.KVTop(user, pass)
		if err != nil {
			return errToken(err), nil, false, false
		}
		return TokenOK, data, true, false

	case CmdKMR:
		user, pass, rest, err := takeUserPass(ablock)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		name, rest, err := wire.TakeString(rest)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		so, _, err := wire.TakeString(rest)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		if err := h.store.RegisterMR(user, pass, string(name), so); err != nil {
			return errToken(err), nil, false, false
		}
		return TokenOK, nil, false, false

	case CmdKIR:
		user, pass, rest, err := takeUserPass(ablock)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		name, _, err := wire.TakeString(rest)
		if err != nil {
			return TokenErrMsgFmt, nil, false, false
		}
		result, err := h.store.InvokeMR(user, pass, string(name))
		if err != nil {
			return errToken(err), nil, false, false
		}
		return TokenOK, result, true, false

	default:
		return TokenErrInvCmd, nil, false, false
	}
}

func takeUserPass(ablock []byte) (user, pass string, rest []byte, err error) {
	u, rest, err := wire.TakeString(ablock)
	if err != nil {
		return "", "", nil, err
	}
	if len(u) > MaxUsername {
		return "", "", nil, errFieldTooLong
	}
	p, rest, err := wire.TakeString(rest)
	if err != nil {
		return "", "", nil, err
	}
	if len(p) > MaxPassword {
		return "", "", nil, errFieldTooLong
	}
	return string(u), string(p), rest, nil
}

func takeUserPassKV(ablock []byte) (user, pass, key string, value []byte, err error) {
	user, pass, rest, err := takeUserPass(ablock)
	if err != nil {
		return "", "", "", nil, err
	}
	k, rest, err := wire.TakeString(rest)
	if err != nil {
		return "", "", "", nil, err
	}
	v, _, err := wire.TakeString(rest)
	if err != nil {
		return "", "", "", nil, err
	}
	return user, pass, string(k), v, nil
}

func takeUserPassKey(ablock []byte) (user, pass, key string, err error) {
	user, pass, rest, err := takeUserPass(ablock)
	if err != nil {
		return "", "", "", err
	}
	k, _, err := wire.TakeString(rest)
	if err != nil {
		return "", "", "", err
	}
	return user, pass, string(k), nil
}

var errFieldTooLong = errors.New("session: field exceeds wire bound")
