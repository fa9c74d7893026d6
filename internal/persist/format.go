package persist

import (
	"fmt"

	"github.com/dreamware/kvault/internal/wire"
)

// Magic identifiers. Each is exactly 8 ASCII bytes.
const (
	MagicAuthSnapshot = "AUTHAUTH"
	MagicKVSnapshot   = "KVKVKVKV"
	MagicAuthDiff     = "AUTHDIFF"
	MagicKVUpdate     = "KVUPDATE"
	MagicKVDelete     = "KVDELETE"
)

const magicLen = 8

// Password field tags, distinguishing the two password storage schemes a
// replayed file can contain: legacy bare MD5 digests from files written
// before the argon2id upgrade, and current salted argon2id blobs.
const (
	passwordTagMD5   = 0
	passwordTagArgon = 1
)

// PasswordField is the on-disk representation of a user's password
// verifier: either a legacy bare MD5 digest (replay compatibility only) or
// a current argon2id salt+hash blob.
type PasswordField struct {
	Legacy bool
	MD5    [16]byte
	KDF    []byte
}

// EncodePasswordField renders pf as the tagged byte blob stored in AUTHAUTH
// records.
func EncodePasswordField(pf PasswordField) []byte {
	if pf.Legacy {
		out := make([]byte, 0, 17)
		out = append(out, passwordTagMD5)
		return append(out, pf.MD5[:]...)
	}
	out := make([]byte, 0, 1+len(pf.KDF))
	out = append(out, passwordTagArgon)
	return append(out, pf.KDF...)
}

// DecodePasswordField parses the tagged blob back into a PasswordField.
func DecodePasswordField(b []byte) (PasswordField, error) {
	if len(b) < 1 {
		return PasswordField{}, fmt.Errorf("persist: empty password field")
	}
	switch b[0] {
	case passwordTagMD5:
		if len(b) != 17 {
			return PasswordField{}, fmt.Errorf("persist: malformed legacy password field")
		}
		var pf PasswordField
		pf.Legacy = true
		copy(pf.MD5[:], b[1:])
		return pf, nil
	case passwordTagArgon:
		pf := PasswordField{KDF: append([]byte(nil), b[1:]...)}
		return pf, nil
	default:
		return PasswordField{}, fmt.Errorf("persist: unknown password field tag %d", b[0])
	}
}

// EncodeAuthSnapshot builds an AUTHAUTH record for username with the given
// password field and content.
func EncodeAuthSnapshot(username string, pf PasswordField, content []byte) []byte {
	rec := make([]byte, 0, magicLen+len(username)+len(content)+32)
	rec = append(rec, MagicAuthSnapshot...)
	rec = wire.PutString(rec, []byte(username))
	rec = wire.PutString(rec, EncodePasswordField(pf))
	rec = wire.PutString(rec, content)
	return rec
}

// EncodeKVSnapshot builds a KVKVKVKV record for key/value.
func EncodeKVSnapshot(key string, value []byte) []byte {
	rec := make([]byte, 0, magicLen+len(key)+len(value)+8)
	rec = append(rec, MagicKVSnapshot...)
	rec = wire.PutString(rec, []byte(key))
	rec = wire.PutString(rec, value)
	return rec
}

// EncodeAuthDiff builds an AUTHDIFF record recording that username's
// content was replaced.
func EncodeAuthDiff(username string, content []byte) []byte {
	rec := make([]byte, 0, magicLen+len(username)+len(content)+8)
	rec = append(rec, MagicAuthDiff...)
	rec = wire.PutString(rec, []byte(username))
	rec = wire.PutString(rec, content)
	return rec
}

// EncodeKVUpdate builds a KVUPDATE record recording that key was inserted
// or upserted to value.
func EncodeKVUpdate(key string, value []byte) []byte {
	rec := make([]byte, 0, magicLen+len(key)+len(value)+8)
	rec = append(rec, MagicKVUpdate...)
	rec = wire.PutString(rec, []byte(key))
	rec = wire.PutString(rec, value)
	return rec
}

// EncodeKVDelete builds a KVDELETE record recording that key was removed.
func EncodeKVDelete(key string) []byte {
	rec := make([]byte, 0, magicLen+len(key)+4)
	rec = append(rec, MagicKVDelete...)
	rec = wire.PutString(rec, []byte(key))
	return rec
}
