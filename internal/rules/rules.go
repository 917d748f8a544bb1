// Package rules holds the business invariants checked by the registration
// and login flows. Every violation is an oops error wrapping one of the
// package sentinels, so callers can match with errors.Is.
package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/oops"

	"identity_service/internal/models"
	"identity_service/internal/storage"
)

type PasswordVerifier interface {
	VerifyPasswordHash(password string, storedHash, storedSalt []byte) (bool, error)
}

type AuthRules struct {
	storage  storage.Storage
	verifier PasswordVerifier
}

func NewAuthRules(st storage.Storage, verifier PasswordVerifier) *AuthRules {
	return &AuthRules{
		storage:  st,
		verifier: verifier,
	}
}

// UserShouldExist must run before any field of user is read.
func (r *AuthRules) UserShouldExist(user *models.User) error {
	if user == nil {
		return oops.Code(CodeUserNotFound).Wrap(ErrUserNotFound)
	}
	return nil
}

func (r *AuthRules) VerifyUserPasswordHash(password string, hash, salt []byte) error {
	const op = "rules.VerifyUserPasswordHash"

	ok, err := r.verifier.VerifyPasswordHash(password, hash, salt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return oops.Code(CodeInvalidCredentials).Wrap(ErrInvalidCredentials)
	}
	return nil
}

// UserCanNotBeDuplicated is a best-effort check; the store's unique index
// settles concurrent registrations.
func (r *AuthRules) UserCanNotBeDuplicated(ctx context.Context, email string) error {
	const op = "rules.UserCanNotBeDuplicated"

	_, err := r.storage.FindUserByEmail(ctx, email, false)
	switch {
	case err == nil:
		return oops.Code(CodeDuplicateUser).Wrap(ErrDuplicateUser)
	case errors.Is(err, storage.ErrUserNotFound):
		return nil
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
