package services

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/aimaster/apiserver/internal/db"
	"github.com/aimaster/apiserver/internal/store"
	"github.com/aimaster/apiserver/types"
)

// memStore is an in-memory store.Manager. The DBTX handed to it is ignored;
// transactions are exercised separately through sqlmock expectations.
type memStore struct {
	mu        sync.Mutex
	nextID    int
	users     map[int]types.User
	decks     map[int]types.Deck
	routines  map[int]types.Routine
	publishes map[int]types.PublishRecord

	failCreateRoutine error
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[int]types.User),
		decks:     make(map[int]types.Deck),
		routines:  make(map[int]types.Routine),
		publishes: make(map[int]types.PublishRecord),
	}
}

func (m *memStore) id() int {
	m.nextID++
	return m.nextID
}

func (m *memStore) Users(db.DBTX) store.Users         { return memUsers{m} }
func (m *memStore) Decks(db.DBTX) store.Decks         { return memDecks{m} }
func (m *memStore) Routines(db.DBTX) store.Routines   { return memRoutines{m} }
func (m *memStore) Publishes(db.DBTX) store.Publishes { return memPublishes{m} }

type memUsers struct{ m *memStore }

func (r memUsers) GetByID(_ context.Context, id int) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u, nil
}

func (r memUsers) find(match func(types.User) bool) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ids := make([]int, 0, len(r.m.users))
	for id := range r.m.users {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if match(r.m.users[id]) {
			return r.m.users[id], nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r memUsers) GetByEmail(_ context.Context, email string) (types.User, error) {
	return r.find(func(u types.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r memUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	return r.find(func(u types.User) bool { return u.Username != "" && strings.EqualFold(u.Username, username) })
}

func (r memUsers) GetByEmailLocalPart(_ context.Context, local string) (types.User, error) {
	prefix := strings.ToLower(local) + "@"
	return r.find(func(u types.User) bool { return strings.HasPrefix(strings.ToLower(u.Email), prefix) })
}

func (r memUsers) Create(_ context.Context, user types.User) (types.User, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, u := range r.m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return types.User{}, &store.ConflictError{Constraint: store.UsersEmailIndex}
		}
		if user.Username != "" && strings.EqualFold(u.Username, user.Username) {
			return types.User{}, &store.ConflictError{Constraint: store.UsersUsernameIndex}
		}
	}
	user.ID = r.m.id()
	r.m.users[user.ID] = user
	return user, nil
}

func (r memUsers) AddCredits(_ context.Context, id, amount int) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	u, ok := r.m.users[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	u.Credits += amount
	r.m.users[id] = u
	return u.Credits, nil
}

type memDecks struct{ m *memStore }

func (r memDecks) List(_ context.Context, ownerID int) ([]types.Deck, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]types.Deck, 0)
	for _, d := range r.m.decks {
		if d.OwnerID == ownerID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memDecks) Get(_ context.Context, ownerID, id int) (types.Deck, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, ok := r.m.decks[id]
	if !ok || d.OwnerID != ownerID {
		return types.Deck{}, store.ErrNotFound
	}
	return d, nil
}

func (r memDecks) GetForUpdate(ctx context.Context, ownerID, id int) (types.Deck, error) {
	return r.Get(ctx, ownerID, id)
}

func (r memDecks) Lock(ctx context.Context, ownerID, id int) error {
	_, err := r.Get(ctx, ownerID, id)
	return err
}

func (r memDecks) FindByName(ctx context.Context, ownerID int, name string) (types.Deck, error) {
	decks, _ := r.List(ctx, ownerID)
	for _, d := range decks {
		if d.Name == name {
			return d, nil
		}
	}
	return types.Deck{}, store.ErrNotFound
}

func (r memDecks) Create(_ context.Context, deck types.Deck) (types.Deck, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	deck.ID = r.m.id()
	deck.CreatedAt = time.Now()
	deck.UpdatedAt = deck.CreatedAt
	r.m.decks[deck.ID] = deck
	return deck, nil
}

func (r memDecks) Update(_ context.Context, deck types.Deck) (types.Deck, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, ok := r.m.decks[deck.ID]
	if !ok || cur.OwnerID != deck.OwnerID {
		return types.Deck{}, store.ErrNotFound
	}
	r.m.decks[deck.ID] = deck
	return deck, nil
}

func (r memDecks) Delete(_ context.Context, ownerID, id int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, ok := r.m.decks[id]
	if !ok || d.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(r.m.decks, id)
	// ON DELETE SET NULL
	for rid, routine := range r.m.routines {
		if routine.DeckID != nil && *routine.DeckID == id {
			routine.DeckID = nil
			r.m.routines[rid] = routine
		}
	}
	return nil
}

type memRoutines struct{ m *memStore }

func (r memRoutines) List(_ context.Context, ownerID int) ([]types.Routine, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	out := make([]types.Routine, 0)
	for _, rt := range r.m.routines {
		if rt.OwnerID == ownerID {
			out = append(out, rt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memRoutines) Get(_ context.Context, ownerID, id int) (types.Routine, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rt, ok := r.m.routines[id]
	if !ok || rt.OwnerID != ownerID {
		return types.Routine{}, store.ErrNotFound
	}
	return rt, nil
}

func (r memRoutines) GetForUpdate(ctx context.Context, ownerID, id int) (types.Routine, error) {
	return r.Get(ctx, ownerID, id)
}

func (r memRoutines) Create(_ context.Context, routine types.Routine) (types.Routine, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if r.m.failCreateRoutine != nil {
		return types.Routine{}, r.m.failCreateRoutine
	}
	routine.ID = r.m.id()
	r.m.routines[routine.ID] = routine
	return routine, nil
}

func (r memRoutines) Update(_ context.Context, routine types.Routine) (types.Routine, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cur, ok := r.m.routines[routine.ID]
	if !ok || cur.OwnerID != routine.OwnerID {
		return types.Routine{}, store.ErrNotFound
	}
	r.m.routines[routine.ID] = routine
	return routine, nil
}

func (r memRoutines) Delete(_ context.Context, ownerID, id int) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rt, ok := r.m.routines[id]
	if !ok || rt.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(r.m.routines, id)
	return nil
}

type memPublishes struct{ m *memStore }

func (r memPublishes) Upsert(_ context.Context, userID int, text string) (types.PublishRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	now := time.Now()
	t := text
	rec := types.PublishRecord{UserID: userID, Text: &t, UpdatedAt: &now}
	r.m.publishes[userID] = rec
	return rec, nil
}

func (r memPublishes) GetByUserID(_ context.Context, userID int) (types.PublishRecord, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	rec, ok := r.m.publishes[userID]
	if !ok {
		return types.PublishRecord{}, store.ErrNotFound
	}
	return rec, nil
}

// newTxMock returns a sqlmock connection for services that open transactions.
func newTxMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, mock
}

func memUser(email, username string) types.User {
	return types.User{Email: email, Username: username, PasswordHash: "hash"}
}
