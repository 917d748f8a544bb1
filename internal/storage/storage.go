package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"identity_service/internal/models"
)

const (
	usersTable               = "users"
	operationClaimsTable     = "operation_claims"
	userOperationClaimsTable = "user_operation_claims"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrClaimNotFound = errors.New("operation claim not found")

	// ErrUnavailable wraps driver and network failures. Callers treat it as
	// transient and never as a credential outcome.
	ErrUnavailable = errors.New("storage unavailable")
)

// DefaultOperationClaims is the reference claim set seeded by schema.sql.
var DefaultOperationClaims = []models.OperationClaim{
	{ID: 1, Name: "admin"},
	{ID: 2, Name: "user"},
}

type Storage interface {
	// FindUserByEmail matches email case-insensitively. With includeClaims the
	// user's claim associations and claim names are loaded in the same read.
	FindUserByEmail(ctx context.Context, email string, includeClaims bool) (*models.User, error)
	InsertUser(ctx context.Context, user models.User) (models.User, error)
	InsertUserClaim(ctx context.Context, userID uuid.UUID, claimID int) error
	ListUserClaims(ctx context.Context, userID uuid.UUID) ([]models.UserOperationClaim, error)
	FindOperationClaim(ctx context.Context, claimID int) (models.OperationClaim, error)

	Close()
}

// pgxPool is the subset of *pgxpool.Pool used here; pgxmock satisfies it too.
type pgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

type PostgresStorage struct {
	db pgxPool
}

var (
	findUserByEmailQuery = fmt.Sprintf(`SELECT id, email, first_name, last_name, password_hash, password_salt, status, created_at
	FROM %s WHERE LOWER(email) = LOWER($1);`, usersTable)

	findUserWithClaimsByEmailQuery = fmt.Sprintf(`SELECT u.id, u.email, u.first_name, u.last_name, u.password_hash, u.password_salt, u.status, u.created_at,
	COALESCE(
		json_agg(json_build_object('id', uoc.id, 'operation_claim_id', oc.id, 'name', oc.name) ORDER BY oc.id)
			FILTER (WHERE oc.id IS NOT NULL),
		'[]'::json)
	FROM %s u
	LEFT JOIN %s uoc ON uoc.user_id = u.id
	LEFT JOIN %s oc ON oc.id = uoc.operation_claim_id
	WHERE LOWER(u.email) = LOWER($1)
	GROUP BY u.id;`, usersTable, userOperationClaimsTable, operationClaimsTable)

	insertUserQuery = fmt.Sprintf(`INSERT INTO %s(email, first_name, last_name, password_hash, password_salt, status)
	VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at;`, usersTable)

	insertUserClaimQuery = fmt.Sprintf("INSERT INTO %s(user_id, operation_claim_id) VALUES ($1, $2);", userOperationClaimsTable)

	listUserClaimsQuery = fmt.Sprintf(`SELECT uoc.id, uoc.user_id, oc.id, oc.name
	FROM %s uoc JOIN %s oc ON oc.id = uoc.operation_claim_id
	WHERE uoc.user_id = $1 ORDER BY oc.id;`, userOperationClaimsTable, operationClaimsTable)

	findOperationClaimQuery = fmt.Sprintf("SELECT id, name FROM %s WHERE id = $1;", operationClaimsTable)
)

func NewPostgresStorage(ctx context.Context, DbURL string) (*PostgresStorage, error) {
	const op = "storage.NewPostgresStorage"

	pool, err := pgxpool.New(ctx, DbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	return &PostgresStorage{
		db: pool,
	}, nil
}

func (p *PostgresStorage) FindUserByEmail(ctx context.Context, email string, includeClaims bool) (*models.User, error) {
	const op = "storage.FindUserByEmail"

	var user models.User
	dest := []any{
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.PasswordSalt,
		&user.Status,
		&user.CreatedAt,
	}

	query := findUserByEmailQuery
	var claimsJSON []byte
	if includeClaims {
		query = findUserWithClaimsByEmailQuery
		dest = append(dest, &claimsJSON)
	}

	err := p.db.QueryRow(ctx, query, email).Scan(dest...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	if includeClaims {
		claims, err := decodeUserClaims(user.ID, claimsJSON)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		user.UserOperationClaims = claims
	}

	return &user, nil
}

type userClaimRow struct {
	ID               int64  `json:"id"`
	OperationClaimID int    `json:"operation_claim_id"`
	Name             string `json:"name"`
}

func decodeUserClaims(userID uuid.UUID, raw []byte) ([]models.UserOperationClaim, error) {
	var rows []userClaimRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode user claims: %w", err)
	}

	claims := make([]models.UserOperationClaim, 0, len(rows))
	for _, r := range rows {
		claims = append(claims, models.UserOperationClaim{
			ID:               r.ID,
			UserID:           userID,
			OperationClaimID: r.OperationClaimID,
			OperationClaim:   models.OperationClaim{ID: r.OperationClaimID, Name: r.Name},
		})
	}
	return claims, nil
}

func (p *PostgresStorage) InsertUser(ctx context.Context, user models.User) (models.User, error) {
	const op = "storage.InsertUser"

	err := p.db.QueryRow(ctx, insertUserQuery,
		user.Email,
		user.FirstName,
		user.LastName,
		user.PasswordHash,
		user.PasswordSalt,
		user.Status,
	).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		if isPgError(err, pgerrcode.UniqueViolation) {
			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserExists)
		}
		return models.User{}, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	return user, nil
}

func (p *PostgresStorage) InsertUserClaim(ctx context.Context, userID uuid.UUID, claimID int) error {
	const op = "storage.InsertUserClaim"

	_, err := p.db.Exec(ctx, insertUserClaimQuery, userID, claimID)
	if err != nil {
		if isPgError(err, pgerrcode.ForeignKeyViolation) {
			return fmt.Errorf("%s: claim %d: %w", op, claimID, ErrClaimNotFound)
		}
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	return nil
}

func (p *PostgresStorage) ListUserClaims(ctx context.Context, userID uuid.UUID) ([]models.UserOperationClaim, error) {
	const op = "storage.ListUserClaims"

	rows, err := p.db.Query(ctx, listUserClaimsQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
	defer rows.Close()

	claims := []models.UserOperationClaim{}
	for rows.Next() {
		var uoc models.UserOperationClaim

		err := rows.Scan(&uoc.ID, &uoc.UserID, &uoc.OperationClaim.ID, &uoc.OperationClaim.Name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
		}
		uoc.OperationClaimID = uoc.OperationClaim.ID

		claims = append(claims, uoc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s (rows): %w: %w", op, ErrUnavailable, err)
	}

	return claims, nil
}

func (p *PostgresStorage) FindOperationClaim(ctx context.Context, claimID int) (models.OperationClaim, error) {
	const op = "storage.FindOperationClaim"

	var claim models.OperationClaim
	err := p.db.QueryRow(ctx, findOperationClaimQuery, claimID).Scan(&claim.ID, &claim.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.OperationClaim{}, fmt.Errorf("%s: claim %d: %w", op, claimID, ErrClaimNotFound)
	}
	if err != nil {
		return models.OperationClaim{}, fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}

	return claim, nil
}

func (p *PostgresStorage) Close() {
	p.db.Close()
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
