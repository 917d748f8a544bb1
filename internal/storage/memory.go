package storage

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"

	"identity_service/internal/models"
)

// MemoryStorage keeps records in process memory. It backs local runs and
// tests and enforces the same email uniqueness as the PostgreSQL schema.
type MemoryStorage struct {
	mu sync.RWMutex

	users       map[uuid.UUID]models.User
	emails      map[string]uuid.UUID
	claims      map[int]models.OperationClaim
	userClaims  []models.UserOperationClaim
	nextClaimID int64
}

// NewMemoryStorage seeds the given claims, or DefaultOperationClaims when none.
func NewMemoryStorage(claims ...models.OperationClaim) *MemoryStorage {
	if len(claims) == 0 {
		claims = DefaultOperationClaims
	}

	s := &MemoryStorage{
		users:  make(map[uuid.UUID]models.User),
		emails: make(map[string]uuid.UUID),
		claims: make(map[int]models.OperationClaim, len(claims)),
	}
	for _, c := range claims {
		s.claims[c.ID] = c
	}
	return s
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *MemoryStorage) FindUserByEmail(ctx context.Context, email string, includeClaims bool) (*models.User, error) {
	const op = "storage.FindUserByEmail"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[emailKey(email)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	user := cloneUser(m.users[id])
	if includeClaims {
		user.UserOperationClaims = m.userClaimsLocked(id)
	}

	return &user, nil
}

func (m *MemoryStorage) InsertUser(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.InsertUser"

	if err := ctx.Err(); err != nil {
		return models.User{}, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := emailKey(user.Email)
	if _, exists := m.emails[key]; exists {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrUserExists)
	}

	user = cloneUser(user)
	user.ID = id
	user.CreatedAt = time.Now().UTC()
	user.UserOperationClaims = nil

	m.users[id] = user
	m.emails[key] = id

	return cloneUser(user), nil
}

func (m *MemoryStorage) InsertUserClaim(ctx context.Context, userID uuid.UUID, claimID int) error {
	const op = "storage.InsertUserClaim"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	claim, ok := m.claims[claimID]
	if !ok {
		return fmt.Errorf("%s: claim %d: %w", op, claimID, ErrClaimNotFound)
	}

	for _, uoc := range m.userClaims {
		if uoc.UserID == userID && uoc.OperationClaimID == claimID {
			return fmt.Errorf("%s: claim %d already assigned", op, claimID)
		}
	}

	m.nextClaimID++
	m.userClaims = append(m.userClaims, models.UserOperationClaim{
		ID:               m.nextClaimID,
		UserID:           userID,
		OperationClaimID: claimID,
		OperationClaim:   claim,
	})

	return nil
}

func (m *MemoryStorage) ListUserClaims(ctx context.Context, userID uuid.UUID) ([]models.UserOperationClaim, error) {
	const op = "storage.ListUserClaims"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.userClaimsLocked(userID), nil
}

func (m *MemoryStorage) FindOperationClaim(ctx context.Context, claimID int) (models.OperationClaim, error) {
	const op = "storage.FindOperationClaim"

	if err := ctx.Err(); err != nil {
		return models.OperationClaim{}, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	claim, ok := m.claims[claimID]
	if !ok {
		return models.OperationClaim{}, fmt.Errorf("%s: claim %d: %w", op, claimID, ErrClaimNotFound)
	}
	return claim, nil
}

// Users returns a snapshot of every stored user.
func (m *MemoryStorage) Users() []models.User {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, cloneUser(u))
	}
	return users
}

func (m *MemoryStorage) Close() {}

func (m *MemoryStorage) userClaimsLocked(userID uuid.UUID) []models.UserOperationClaim {
	claims := []models.UserOperationClaim{}
	for _, uoc := range m.userClaims {
		if uoc.UserID == userID {
			claims = append(claims, uoc)
		}
	}
	slices.SortFunc(claims, func(a, b models.UserOperationClaim) int {
		return a.OperationClaimID - b.OperationClaimID
	})
	return claims
}

func cloneUser(u models.User) models.User {
	u.PasswordHash = slices.Clone(u.PasswordHash)
	u.PasswordSalt = slices.Clone(u.PasswordSalt)
	u.UserOperationClaims = slices.Clone(u.UserOperationClaims)
	return u
}
