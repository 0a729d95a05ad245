package store

import (
	"context"

	"github.com/aimaster/apiserver/internal/db"
	"github.com/aimaster/apiserver/types"
)

// Users is the persistence contract for user accounts.
type Users interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmailLocalPart(ctx context.Context, localPart string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	AddCredits(ctx context.Context, id, amount int) (int, error)
}

// Decks is the persistence contract for decks.
type Decks interface {
	List(ctx context.Context, ownerID int) ([]types.Deck, error)
	Get(ctx context.Context, ownerID, id int) (types.Deck, error)
	GetForUpdate(ctx context.Context, ownerID, id int) (types.Deck, error)
	Lock(ctx context.Context, ownerID, id int) error
	FindByName(ctx context.Context, ownerID int, name string) (types.Deck, error)
	Create(ctx context.Context, deck types.Deck) (types.Deck, error)
	Update(ctx context.Context, deck types.Deck) (types.Deck, error)
	Delete(ctx context.Context, ownerID, id int) error
}

// Routines is the persistence contract for routines.
type Routines interface {
	List(ctx context.Context, ownerID int) ([]types.Routine, error)
	Get(ctx context.Context, ownerID, id int) (types.Routine, error)
	GetForUpdate(ctx context.Context, ownerID, id int) (types.Routine, error)
	Create(ctx context.Context, routine types.Routine) (types.Routine, error)
	Update(ctx context.Context, routine types.Routine) (types.Routine, error)
	Delete(ctx context.Context, ownerID, id int) error
}

// Publishes is the persistence contract for publish records.
type Publishes interface {
	Upsert(ctx context.Context, userID int, text string) (types.PublishRecord, error)
	GetByUserID(ctx context.Context, userID int) (types.PublishRecord, error)
}

// Manager hands out repositories bound to a connection or a transaction.
type Manager interface {
	Users(q db.DBTX) Users
	Decks(q db.DBTX) Decks
	Routines(q db.DBTX) Routines
	Publishes(q db.DBTX) Publishes
}

// PostgresManager is the Manager backed by the Postgres repositories.
type PostgresManager struct{}

func NewPostgresManager() PostgresManager {
	return PostgresManager{}
}

func (PostgresManager) Users(q db.DBTX) Users         { return NewUserRepository(q) }
func (PostgresManager) Decks(q db.DBTX) Decks         { return NewDeckRepository(q) }
func (PostgresManager) Routines(q db.DBTX) Routines   { return NewRoutineRepository(q) }
func (PostgresManager) Publishes(q db.DBTX) Publishes { return NewPublishRepository(q) }
