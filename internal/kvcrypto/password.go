package kvcrypto

import (
	"crypto/md5" //nolint:gosec // retained only to replay pre-existing legacy records, see MD5PasswordHash
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2 tuning. These are conservative interactive-login parameters, not
// tuned for any particular hardware target.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // KiB
	argon2Threads = 4
	argon2KeyLen  = 32
	saltLen       = 16
)

// HashPasswordKDF derives an argon2id hash for a newly registered password.
// The returned blob is self-describing (salt || hash) so verification never
// needs the tuning parameters passed back in separately.
func HashPasswordKDF(password string) []byte {
	salt := make([]byte, saltLen)
	_, _ = rand.Read(salt) // crypto/rand only fails on catastrophic system error

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return append(salt, hash...)
}

// VerifyPasswordKDF checks password against a blob produced by
// HashPasswordKDF, in constant time.
func VerifyPasswordKDF(password string, blob []byte) bool {
	if len(blob) != saltLen+argon2KeyLen {
		return false
	}
	salt, want := blob[:saltLen], blob[saltLen:]
	got := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// MD5PasswordHash computes the legacy password hash: a bare MD5 digest
// with no salt. It exists solely so replaying an on-disk file written
// before the argon2id upgrade still authenticates correctly — new
// registrations never use it.
func MD5PasswordHash(password string) [16]byte {
	return md5.Sum([]byte(password)) //nolint:gosec // legacy replay compatibility only
}

// VerifyMD5Password checks password against a legacy 16-byte MD5 digest.
func VerifyMD5Password(password string, digest [16]byte) bool {
	got := MD5PasswordHash(password)
	return subtle.ConstantTimeCompare(got[:], digest[:]) == 1
}

// FormatMD5 renders a legacy digest for error messages and logs without
// leaking it verbatim in a reusable form.
func FormatMD5(digest [16]byte) string {
	return fmt.Sprintf("%x", digest[:4])
}
