package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/oops"

	"identity_service/internal/auth"
	"identity_service/internal/models"
	"identity_service/internal/rules"
	"identity_service/internal/storage"
)

var ErrInvalidInput = errors.New("invalid input")

type RegisterCommand struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type Service interface {
	Register(ctx context.Context, cmd RegisterCommand) (models.AccessToken, error)
	Login(ctx context.Context, creds models.Credentials) (models.AccessToken, error)
}

type PasswordHasher interface {
	CreatePasswordHash(password string) (hash, salt []byte, err error)
	VerifyPasswordHash(password string, storedHash, storedSalt []byte) (bool, error)
}

type TokenSigner interface {
	CreateToken(user models.User, claims []models.OperationClaim) (models.AccessToken, error)
}

type service struct {
	storage        storage.Storage
	hasher         PasswordHasher
	signer         TokenSigner
	rules          *rules.AuthRules
	defaultClaimID int

	// Verified against when the email is unknown, so both login failures
	// cost one hash computation.
	dummyHash []byte
	dummySalt []byte
}

func NewService(st storage.Storage, hasher PasswordHasher, signer TokenSigner, defaultClaimID int) *service {
	return &service{
		storage:        st,
		hasher:         hasher,
		signer:         signer,
		rules:          rules.NewAuthRules(st, hasher),
		defaultClaimID: defaultClaimID,
		dummyHash:      make([]byte, auth.HashLen),
		dummySalt:      make([]byte, auth.SaltLen),
	}
}

func (s *service) Register(ctx context.Context, cmd RegisterCommand) (models.AccessToken, error) {
	const op = "service.Register"

	cmd = normalizeRegister(cmd)
	if cmd.Email == "" || cmd.Password == "" || cmd.FirstName == "" || cmd.LastName == "" {
		return models.AccessToken{}, fmt.Errorf("%s: %w: email, password, first and last name are required", op, ErrInvalidInput)
	}

	passwordHash, passwordSalt, err := s.hasher.CreatePasswordHash(cmd.Password)
	if err != nil {
		return models.AccessToken{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.rules.UserCanNotBeDuplicated(ctx, cmd.Email); err != nil {
		return models.AccessToken{}, err
	}

	createdUser, err := s.storage.InsertUser(ctx, newUser(cmd, passwordHash, passwordSalt))
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return models.AccessToken{}, oops.Code(rules.CodeDuplicateUser).
				With("operation", "insert user").
				Wrap(rules.ErrDuplicateUser)
		}
		return models.AccessToken{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.storage.InsertUserClaim(ctx, createdUser.ID, s.defaultClaimID); err != nil {
		return models.AccessToken{}, fmt.Errorf("%s: assign default claim: %w", op, err)
	}

	userClaims, err := s.storage.ListUserClaims(ctx, createdUser.ID)
	if err != nil {
		return models.AccessToken{}, fmt.Errorf("%s: %w", op, err)
	}
	createdUser.UserOperationClaims = userClaims

	accessToken, err := s.signer.CreateToken(createdUser, createdUser.OperationClaims())
	if err != nil {
		return models.AccessToken{}, fmt.Errorf("%s: %w", op, err)
	}

	return accessToken, nil
}

func (s *service) Login(ctx context.Context, creds models.Credentials) (models.AccessToken, error) {
	const op = "service.Login"

	user, err := s.storage.FindUserByEmail(ctx, normalizeEmail(creds.Email), true)
	if err != nil && !errors.Is(err, storage.ErrUserNotFound) {
		return models.AccessToken{}, fmt.Errorf("%s: %w", op, err)
	}

	if user == nil {
		_, _ = s.hasher.VerifyPasswordHash(creds.Password, s.dummyHash, s.dummySalt)
	}
	if err := s.rules.UserShouldExist(user); err != nil {
		return models.AccessToken{}, err
	}

	if err := s.rules.VerifyUserPasswordHash(creds.Password, user.PasswordHash, user.PasswordSalt); err != nil {
		return models.AccessToken{}, err
	}

	accessToken, err := s.signer.CreateToken(*user, user.OperationClaims())
	if err != nil {
		return models.AccessToken{}, fmt.Errorf("%s: %w", op, err)
	}

	return accessToken, nil
}

// newUser builds the record persisted for a registration; the plaintext
// password is not part of it.
func newUser(cmd RegisterCommand, passwordHash, passwordSalt []byte) models.User {
	return models.User{
		Email:        cmd.Email,
		FirstName:    cmd.FirstName,
		LastName:     cmd.LastName,
		PasswordHash: passwordHash,
		PasswordSalt: passwordSalt,
		Status:       true,
	}
}

func normalizeRegister(cmd RegisterCommand) RegisterCommand {
	cmd.Email = normalizeEmail(cmd.Email)
	cmd.FirstName = strings.TrimSpace(cmd.FirstName)
	cmd.LastName = strings.TrimSpace(cmd.LastName)
	return cmd
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
