package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	AlgorithmHMACSHA512 = "hmac-sha512"
	AlgorithmArgon2id   = "argon2id"
)

const (
	// SaltLen matches the default HMAC-SHA512 key size, so stored salts
	// double as HMAC keys.
	SaltLen = 128
	HashLen = sha512.Size
)

// argon2id parameters, OWASP minimums.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// Hasher derives and verifies salted password hashes. It holds no mutable
// state and is safe for concurrent use.
type Hasher struct {
	algorithm string
}

func NewHasher(algorithm string) (*Hasher, error) {
	switch algorithm {
	case AlgorithmHMACSHA512, AlgorithmArgon2id:
		return &Hasher{algorithm: algorithm}, nil
	default:
		return nil, fmt.Errorf("%w: unknown hashing algorithm %q", ErrConfiguration, algorithm)
	}
}

// CreatePasswordHash returns the hash of password under a freshly generated salt.
func (h *Hasher) CreatePasswordHash(password string) (hash, salt []byte, err error) {
	const op = "auth.CreatePasswordHash"

	salt = make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}

	return h.compute(password, salt), salt, nil
}

// VerifyPasswordHash reports whether password hashes to storedHash under
// storedSalt. A mismatch is (false, nil); malformed stored material is an error.
func (h *Hasher) VerifyPasswordHash(password string, storedHash, storedSalt []byte) (bool, error) {
	const op = "auth.VerifyPasswordHash"

	if len(storedSalt) != SaltLen {
		return false, fmt.Errorf("%s: %w: salt length %d", op, ErrConfiguration, len(storedSalt))
	}
	if len(storedHash) != HashLen {
		return false, fmt.Errorf("%s: %w: hash length %d", op, ErrConfiguration, len(storedHash))
	}

	computed := h.compute(password, storedSalt)

	return subtle.ConstantTimeCompare(computed, storedHash) == 1, nil
}

func (h *Hasher) compute(password string, salt []byte) []byte {
	if h.algorithm == AlgorithmArgon2id {
		return argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, HashLen)
	}

	mac := hmac.New(sha512.New, salt)
	mac.Write([]byte(password))
	return mac.Sum(nil)
}
