package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/aimaster/apiserver/internal/db"
	"github.com/aimaster/apiserver/internal/store"
	"github.com/aimaster/apiserver/types"
)

// UserOptions tunes account creation.
type UserOptions struct {
	// SeedCredits is the balance of a new account.
	SeedCredits int
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// InitialRoutines are copied to every new account.
	InitialRoutines []types.Routine
}

// UserService encapsulates account use-cases: registration, credential
// checks and the credit balance.
type UserService struct {
	conn  *sql.DB
	repos store.Manager
	opts  UserOptions
}

func NewUserService(conn *sql.DB, repos store.Manager, opts UserOptions) *UserService {
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.SeedCredits < 0 {
		opts.SeedCredits = 0
	}
	return &UserService{conn: conn, repos: repos, opts: opts}
}

// Register creates the account and its initial routines in one transaction.
func (s *UserService) Register(ctx context.Context, email, password, username string) (types.User, error) {
	email = strings.TrimSpace(email)
	username = strings.TrimSpace(username)
	if email == "" {
		return types.User{}, invalidf("email is required")
	}
	if !strings.Contains(email, "@") {
		return types.User{}, invalidf("email must be a valid email")
	}
	if password == "" {
		return types.User{}, invalidf("password is required")
	}
	// Lookups treat identifiers with "@" as emails.
	if strings.Contains(username, "@") {
		return types.User{}, invalidf("username must not contain @")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	var created types.User
	err = db.WithTx(ctx, s.conn, func(ctx context.Context, tx db.DBTX) error {
		user, err := s.repos.Users(tx).Create(ctx, types.User{
			Email:        email,
			Username:     username,
			PasswordHash: string(hashed),
			Credits:      s.opts.SeedCredits,
		})
		if err != nil {
			return conflictToDomain(err)
		}

		routines := s.repos.Routines(tx)
		for _, seed := range s.opts.InitialRoutines {
			seed.OwnerID = user.ID
			if _, err := routines.Create(ctx, seed); err != nil {
				return fmt.Errorf("seed routine %q: %w", seed.Name, err)
			}
		}

		created = user
		return nil
	})
	if err != nil {
		return types.User{}, err
	}
	return created, nil
}

// Authenticate returns the user owning email when password matches.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return types.User{}, ErrInvalidCredentials
	}

	user, err := s.repos.Users(s.conn).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrInvalidCredentials
		}
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := s.repos.Users(s.conn).GetByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.User{}, ErrUserNotFound
	}
	return user, err
}

// AddCredits adds a positive amount to the balance and returns the new one.
func (s *UserService) AddCredits(ctx context.Context, id, amount int) (int, error) {
	if amount <= 0 {
		return 0, invalidf("amount must be greater than 0")
	}
	credits, err := s.repos.Users(s.conn).AddCredits(ctx, id, amount)
	if errors.Is(err, store.ErrNotFound) {
		return 0, ErrUserNotFound
	}
	return credits, err
}

func conflictToDomain(err error) error {
	var conflict *store.ConflictError
	if !errors.As(err, &conflict) {
		return err
	}
	if conflict.Constraint == store.UsersUsernameIndex {
		return ErrUsernameTaken
	}
	return ErrEmailTaken
}
