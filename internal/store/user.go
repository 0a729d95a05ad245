package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aimaster/apiserver/internal/db"
	"github.com/aimaster/apiserver/types"
)

const userColumns = `id, email, username, password_hash, credits, created_at, updated_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	q db.DBTX
}

func NewUserRepository(q db.DBTX) *UserRepository {
	return &UserRepository{q: q}
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return scanUser(r.q.QueryRowContext(ctx, query, id))
}

// GetByEmail matches the email case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.q.QueryRowContext(ctx, query, email))
}

// GetByUsername matches the username case-insensitively.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(username) = LOWER($1)`
	return scanUser(r.q.QueryRowContext(ctx, query, username))
}

// GetByEmailLocalPart returns the oldest user whose email starts with
// localPart followed by "@", ignoring case.
func (r *UserRepository) GetByEmailLocalPart(ctx context.Context, localPart string) (types.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE LEFT(LOWER(email), LENGTH($1) + 1) = LOWER($1) || '@'
		ORDER BY id
		LIMIT 1`
	return scanUser(r.q.QueryRowContext(ctx, query, localPart))
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	const query = `
		INSERT INTO users (email, username, password_hash, credits, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.q.QueryRowContext(
		ctx,
		query,
		user.Email,
		nullString(user.Username),
		user.PasswordHash,
		user.Credits,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID); err != nil {
		return types.User{}, mapWriteError(err)
	}
	return user, nil
}

// AddCredits adds amount to the user's balance and returns the new balance.
func (r *UserRepository) AddCredits(ctx context.Context, id, amount int) (int, error) {
	const query = `
		UPDATE users
		SET credits = credits + $1,
			updated_at = $2
		WHERE id = $3
		RETURNING credits`
	var credits int
	err := r.q.QueryRowContext(ctx, query, amount, time.Now().UTC(), id).Scan(&credits)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return credits, nil
}

func scanUser(row rowScanner) (types.User, error) {
	var user types.User
	var username sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Email,
		&username,
		&user.PasswordHash,
		&user.Credits,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	user.Username = username.String
	return user, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
