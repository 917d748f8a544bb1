package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid"
	"github.com/golang-jwt/jwt/v5"
	googleuuid "github.com/google/uuid"

	"identity_service/internal/config"
	"identity_service/internal/models"
)

// MinSecurityKeyLen is the shortest accepted HMAC signing key, in bytes.
const MinSecurityKeyLen = 32

var signingMethod = jwt.SigningMethodHS512

var errNilUserID = errors.New("user id is required")

type Claims struct {
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenSigner issues and verifies access tokens. Its options are fixed at
// construction.
type TokenSigner struct {
	key      []byte
	issuer   string
	audience string
	lifetime time.Duration
	now      func() time.Time
}

func NewTokenSigner(cfg config.Token) (*TokenSigner, error) {
	const op = "auth.NewTokenSigner"

	if len(cfg.SecurityKey) < MinSecurityKeyLen {
		return nil, fmt.Errorf("%s: %w: security key must be at least %d bytes", op, ErrConfiguration, MinSecurityKeyLen)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("%s: %w: issuer is required", op, ErrConfiguration)
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, fmt.Errorf("%s: %w: audience is required", op, ErrConfiguration)
	}
	if cfg.AccessTokenExpiration <= 0 {
		return nil, fmt.Errorf("%s: %w: access token expiration must be positive", op, ErrConfiguration)
	}

	return &TokenSigner{
		key:      []byte(cfg.SecurityKey),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		lifetime: cfg.AccessTokenExpiration,
		now:      time.Now,
	}, nil
}

// CreateToken signs an access token for user carrying the names of claims.
func (s *TokenSigner) CreateToken(user models.User, claims []models.OperationClaim) (models.AccessToken, error) {
	const op = "auth.CreateToken"

	if user.ID == uuid.Nil {
		return models.AccessToken{}, fmt.Errorf("%s: %w", op, errNilUserID)
	}

	roles := make([]string, 0, len(claims))
	for _, c := range claims {
		roles = append(roles, c.Name)
	}

	now := s.now()
	tokenClaims := &Claims{
		Email: user.Email,
		Name:  strings.TrimSpace(user.FirstName + " " + user.LastName),
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        googleuuid.NewString(),
			Subject:   user.ID.String(),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(signingMethod, tokenClaims).SignedString(s.key)
	if err != nil {
		return models.AccessToken{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.AccessToken{
		Token:      signed,
		Expiration: tokenClaims.ExpiresAt.Time,
	}, nil
}

// ParseToken verifies signature, algorithm, issuer, audience and lifetime.
func (s *TokenSigner) ParseToken(tokenStr string) (*Claims, error) {
	const op = "auth.ParseToken"

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(*jwt.Token) (interface{}, error) {
			return s.key, nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}
