package auth

import "errors"

var (
	// ErrConfiguration marks invalid key material or hashing parameters.
	// It is fatal at startup and never a credential failure.
	ErrConfiguration = errors.New("auth configuration error")

	ErrInvalidToken = errors.New("invalid token")
)
