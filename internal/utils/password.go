package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"golang.org/x/crypto/argon2"
)

// HashParams are the argon2id cost parameters a hash was produced with.
type HashParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
}

// PasswordHasher hashes passwords with argon2id using its current params.
type PasswordHasher struct {
	params     HashParams
	saltLength uint32
	keyLength  uint32
}

func NewPasswordHasher(params HashParams, saltLength, keyLength uint32) *PasswordHasher {
	return &PasswordHasher{params: params, saltLength: saltLength, keyLength: keyLength}
}

// Params returns the parameters new hashes are created with.
func (h *PasswordHasher) Params() HashParams {
	return h.params
}

// Hash returns the base64 hash and salt together with the params used.
func (h *PasswordHasher) Hash(password string) (hash, salt string, params HashParams, err error) {
	saltBytes := make([]byte, h.saltLength)
	if _, err = rand.Read(saltBytes); err != nil {
		return "", "", HashParams{}, err
	}

	key := argon2.IDKey([]byte(password), saltBytes, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.keyLength)

	return base64.StdEncoding.EncodeToString(key),
		base64.StdEncoding.EncodeToString(saltBytes),
		h.params, nil
}

// Verify recomputes the hash with the stored params and compares in constant time.
func (h *PasswordHasher) Verify(password, hash, salt string, params HashParams) bool {
	expected, err := base64.StdEncoding.DecodeString(hash)
	if err != nil || len(expected) == 0 {
		return false
	}
	saltBytes, err := base64.StdEncoding.DecodeString(salt)
	if err != nil || len(saltBytes) == 0 {
		return false
	}
	if params.Iterations == 0 || params.MemoryKiB == 0 || params.Parallelism == 0 {
		return false
	}

	actual := argon2.IDKey([]byte(password), saltBytes, params.Iterations, params.MemoryKiB, params.Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

// NeedsRehash reports whether a hash made with params is weaker or different
// from the current configuration.
func (h *PasswordHasher) NeedsRehash(params HashParams) bool {
	return params != h.params
}
