package main

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity_service/internal/auth"
	"identity_service/internal/config"
	"identity_service/internal/storage"
)

func TestSetupLogger(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		env       string
		debugging bool
	}{
		{env: envLocal, debugging: true},
		{env: envDev, debugging: true},
		{env: envProd, debugging: false},
		{env: "unknown", debugging: false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			lgr := setupLogger(tt.env)
			require.NotNil(t, lgr)
			assert.Equal(t, tt.debugging, lgr.Enabled(ctx, slog.LevelDebug))
			assert.True(t, lgr.Enabled(ctx, slog.LevelInfo))
		})
	}
}

func TestNewStorage_Memory(t *testing.T) {
	st, err := newStorage(context.Background(), &config.Config{Storage: config.StorageMemory})
	require.NoError(t, err)
	assert.IsType(t, &storage.MemoryStorage{}, st)
}

func TestRun_ConfigurationErrorsAreFatal(t *testing.T) {
	lgr := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := &config.Config{
		Storage: config.StorageMemory,
		Token:   config.Token{Issuer: "i", Audience: "a", SecurityKey: "short"},
		Hashing: config.Hashing{Algorithm: auth.AlgorithmHMACSHA512},
	}
	err := run(context.Background(), cfg, lgr)
	assert.ErrorIs(t, err, auth.ErrConfiguration)

	cfg.Hashing.Algorithm = "md5"
	err = run(context.Background(), cfg, lgr)
	assert.ErrorIs(t, err, auth.ErrConfiguration)
}

func TestRun_UnknownDefaultClaimIsFatal(t *testing.T) {
	cfg := &config.Config{
		Storage:        config.StorageMemory,
		DefaultClaimID: 99,
		Token: config.Token{
			Issuer:                "identity_service",
			Audience:              "identity_service",
			SecurityKey:           "main-test-signing-key-0123456789abcdef",
			AccessTokenExpiration: time.Minute,
		},
		Hashing: config.Hashing{Algorithm: auth.AlgorithmHMACSHA512},
	}

	err := run(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, auth.ErrConfiguration)
	assert.ErrorIs(t, err, storage.ErrClaimNotFound)
}

func TestCheckDefaultClaim(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()

	assert.NoError(t, checkDefaultClaim(ctx, st, 2))

	err := checkDefaultClaim(ctx, st, 0)
	assert.ErrorIs(t, err, auth.ErrConfiguration)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	err = checkDefaultClaim(canceled, st, 2)
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	assert.NotErrorIs(t, err, auth.ErrConfiguration)
}
