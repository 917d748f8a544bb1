package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Credentials are request-scoped and must never be logged or stored.
type Credentials struct {
	Email    string
	Password string
}

type User struct {
	ID           uuid.UUID
	Email        string
	FirstName    string
	LastName     string
	PasswordHash []byte
	PasswordSalt []byte
	Status       bool
	CreatedAt    time.Time

	// Populated only when the user is read together with its claims.
	UserOperationClaims []UserOperationClaim
}

// OperationClaims flattens the user's claim associations.
func (u *User) OperationClaims() []OperationClaim {
	claims := make([]OperationClaim, 0, len(u.UserOperationClaims))
	for _, uoc := range u.UserOperationClaims {
		claims = append(claims, uoc.OperationClaim)
	}
	return claims
}

type OperationClaim struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type UserOperationClaim struct {
	ID               int64
	UserID           uuid.UUID
	OperationClaimID int
	OperationClaim   OperationClaim
}

type AccessToken struct {
	Token      string
	Expiration time.Time
}
