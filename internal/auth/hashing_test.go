package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHasher_UnknownAlgorithm(t *testing.T) {
	_, err := NewHasher("md5")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestHasher(t *testing.T) {
	for _, algorithm := range []string{AlgorithmHMACSHA512, AlgorithmArgon2id} {
		t.Run(algorithm, func(t *testing.T) {
			hasher, err := NewHasher(algorithm)
			require.NoError(t, err)

			t.Run("verifies the hashed password", func(t *testing.T) {
				hash, salt, err := hasher.CreatePasswordHash("pw123")
				require.NoError(t, err)
				assert.Len(t, hash, HashLen)
				assert.Len(t, salt, SaltLen)

				ok, err := hasher.VerifyPasswordHash("pw123", hash, salt)
				require.NoError(t, err)
				assert.True(t, ok)
			})

			t.Run("rejects another password", func(t *testing.T) {
				hash, salt, err := hasher.CreatePasswordHash("pw123")
				require.NoError(t, err)

				for _, other := range []string{"pw124", "PW123", "", "pw123 "} {
					ok, err := hasher.VerifyPasswordHash(other, hash, salt)
					require.NoError(t, err)
					assert.False(t, ok, "password %q", other)
				}
			})

			t.Run("fresh salt per call", func(t *testing.T) {
				hash1, salt1, err := hasher.CreatePasswordHash("same")
				require.NoError(t, err)
				hash2, salt2, err := hasher.CreatePasswordHash("same")
				require.NoError(t, err)

				assert.NotEqual(t, salt1, salt2)
				assert.NotEqual(t, hash1, hash2)
			})

			t.Run("deterministic for a fixed salt", func(t *testing.T) {
				_, salt, err := hasher.CreatePasswordHash("pw")
				require.NoError(t, err)

				assert.Equal(t, hasher.compute("pw", salt), hasher.compute("pw", salt))
			})

			t.Run("malformed salt is a configuration error", func(t *testing.T) {
				hash, _, err := hasher.CreatePasswordHash("pw")
				require.NoError(t, err)

				_, err = hasher.VerifyPasswordHash("pw", hash, []byte("short"))
				assert.ErrorIs(t, err, ErrConfiguration)

				_, err = hasher.VerifyPasswordHash("pw", hash, nil)
				assert.ErrorIs(t, err, ErrConfiguration)
			})

			t.Run("malformed hash is a configuration error", func(t *testing.T) {
				_, salt, err := hasher.CreatePasswordHash("pw")
				require.NoError(t, err)

				_, err = hasher.VerifyPasswordHash("pw", make([]byte, 32), salt)
				assert.ErrorIs(t, err, ErrConfiguration)
			})
		})
	}
}

func TestHasher_AlgorithmsAreNotInterchangeable(t *testing.T) {
	hmacHasher, err := NewHasher(AlgorithmHMACSHA512)
	require.NoError(t, err)
	argonHasher, err := NewHasher(AlgorithmArgon2id)
	require.NoError(t, err)

	hash, salt, err := hmacHasher.CreatePasswordHash("pw")
	require.NoError(t, err)

	ok, err := argonHasher.VerifyPasswordHash("pw", hash, salt)
	require.NoError(t, err)
	assert.False(t, ok)
}
