package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/aimaster/apiserver/types"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn, mock
}

var deckCols = []string{"id", "owner_id", "name", "description", "nodes", "created_at", "updated_at"}

func TestDeckGet_FiltersOnOwner(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewDeckRepository(conn)

	q := regexp.QuoteMeta("SELECT id, owner_id, name, description, nodes, created_at, updated_at FROM decks WHERE id = $1 AND owner_id = $2")
	mock.ExpectQuery("^" + q + "$").
		WithArgs(7, 3).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 3, 7)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeckGetForUpdate_AppendsLock(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewDeckRepository(conn)

	now := time.Now()
	mock.ExpectQuery(`FROM decks WHERE id = \$1 AND owner_id = \$2 FOR UPDATE$`).
		WithArgs(7, 3).
		WillReturnRows(sqlmock.NewRows(deckCols).AddRow(7, 3, "D1", "desc", []byte(`[1,"two"]`), now, now))

	deck, err := repo.GetForUpdate(context.Background(), 3, 7)
	require.NoError(t, err)
	require.Equal(t, "D1", deck.Name)
	require.NotNil(t, deck.Description)
	require.Equal(t, "desc", *deck.Description)
	require.Len(t, deck.Nodes, 2)
	require.JSONEq(t, `"two"`, string(deck.Nodes[1].Raw()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeckList_ReturnsOwnedRowsInOrder(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewDeckRepository(conn)

	now := time.Now()
	rows := sqlmock.NewRows(deckCols).
		AddRow(1, 3, "A", nil, []byte(`[]`), now, now).
		AddRow(2, 3, "B", nil, nil, now, now)
	mock.ExpectQuery(`^SELECT .* FROM decks WHERE owner_id = \$1 ORDER BY id$`).
		WithArgs(3).
		WillReturnRows(rows)

	decks, err := repo.List(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, decks, 2)
	require.Equal(t, "A", decks[0].Name)
	require.Nil(t, decks[0].Description)
	require.NotNil(t, decks[1].Nodes)
	require.Empty(t, decks[1].Nodes)
}

func TestDeckList_EmptyIsNotNil(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewDeckRepository(conn)

	mock.ExpectQuery(`FROM decks WHERE owner_id = \$1`).
		WithArgs(9).
		WillReturnRows(sqlmock.NewRows(deckCols))

	decks, err := repo.List(context.Background(), 9)
	require.NoError(t, err)
	require.NotNil(t, decks)
	require.Empty(t, decks)
}

func TestDeckCreate_InsertsWithOwner(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewDeckRepository(conn)

	q := regexp.QuoteMeta("INSERT INTO decks (owner_id, name, description, nodes, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, owner_id, name, description, nodes, created_at, updated_at")
	now := time.Now()
	mock.ExpectQuery("^"+q+"$").
		WithArgs(3, "D1", nil, "[]", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(deckCols).AddRow(11, 3, "D1", nil, []byte(`[]`), now, now))

	created, err := repo.Create(context.Background(), types.Deck{OwnerID: 3, Name: "D1"})
	require.NoError(t, err)
	require.Equal(t, 11, created.ID)
	require.Equal(t, 3, created.OwnerID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeckUpdate_NotOwnedIsNotFound(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewDeckRepository(conn)

	q := regexp.QuoteMeta("UPDATE decks SET name = $1, description = $2, nodes = $3, updated_at = $4 WHERE id = $5 AND owner_id = $6 RETURNING")
	mock.ExpectQuery("^"+q).
		WithArgs("new", nil, `[{"id":"n1"}]`, sqlmock.AnyArg(), 7, 4).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), types.Deck{
		ID:      7,
		OwnerID: 4,
		Name:    "new",
		Nodes:   types.Nodes{types.NewNode([]byte(`{"id":"n1"}`))},
	})
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeckDelete(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewDeckRepository(conn)

	q := `^DELETE FROM decks WHERE id = \$1 AND owner_id = \$2$`
	mock.ExpectExec(q).WithArgs(7, 3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs(7, 3).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 3, 7))
	require.ErrorIs(t, repo.Delete(context.Background(), 3, 7), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeckLock(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewDeckRepository(conn)

	q := `^SELECT id FROM decks WHERE id = \$1 AND owner_id = \$2 FOR SHARE$`
	mock.ExpectQuery(q).WithArgs(5, 1).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectQuery(q).WithArgs(5, 2).WillReturnError(sql.ErrNoRows)

	require.NoError(t, repo.Lock(context.Background(), 1, 5))
	require.ErrorIs(t, repo.Lock(context.Background(), 2, 5), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeckFindByName(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewDeckRepository(conn)

	now := time.Now()
	mock.ExpectQuery(`FROM decks WHERE owner_id = \$1 AND name = \$2 ORDER BY id LIMIT 1$`).
		WithArgs(1, "Orden1").
		WillReturnRows(sqlmock.NewRows(deckCols).AddRow(4, 1, "Orden1", nil, []byte(`[]`), now, now))

	deck, err := repo.FindByName(context.Background(), 1, "Orden1")
	require.NoError(t, err)
	require.Equal(t, 4, deck.ID)
}

var routineCols = []string{
	"id", "owner_id", "name", "stack", "deck_id", "nodes", "deck_order",
	"created_at", "updated_at", "last_run_at",
}

func TestRoutineGet_ScansNullables(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewRoutineRepository(conn)

	now := time.Now()
	mock.ExpectQuery(`FROM routines WHERE id = \$1 AND owner_id = \$2$`).
		WithArgs(2, 1).
		WillReturnRows(sqlmock.NewRows(routineCols).
			AddRow(2, 1, "R1", nil, nil, []byte(`[]`), nil, now, now, nil))

	routine, err := repo.Get(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Nil(t, routine.Stack)
	require.Nil(t, routine.DeckID)
	require.Nil(t, routine.DeckOrder)
	require.Nil(t, routine.LastRunAt)
}

func TestRoutineGet_ScansValues(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewRoutineRepository(conn)

	now := time.Now()
	mock.ExpectQuery(`FROM routines WHERE id = \$1 AND owner_id = \$2$`).
		WithArgs(2, 1).
		WillReturnRows(sqlmock.NewRows(routineCols).
			AddRow(2, 1, "R1", "Orden1", int64(9), []byte(`[{"id":"n1","type":"Iniciar","config":{}}]`), []byte(`["AS","2H"]`), now, now, now))

	routine, err := repo.Get(context.Background(), 1, 2)
	require.NoError(t, err)
	require.Equal(t, "Orden1", *routine.Stack)
	require.Equal(t, 9, *routine.DeckID)
	require.Len(t, routine.Nodes, 1)
	require.True(t, routine.Nodes[0].HasShape())
	require.Len(t, routine.DeckOrder, 2)
	require.NotNil(t, routine.LastRunAt)
}

func TestRoutineUpdate_ArgumentOrder(t *testing.T) {
	conn, mock := newMock(t)
	repo := NewRoutineRepository(conn)

	deckID := 9
	stack := "S"
	now := time.Now()
	q := regexp.QuoteMeta("UPDATE routines SET name = $1, stack = $2, deck_id = $3, nodes = $4, deck_order = $5, updated_at = $6, last_run_at = $7 WHERE id = $8 AND owner_id = $9 RETURNING")
	mock.ExpectQuery("^"+q).
		WithArgs("R1", "S", 9, "[]", `["x"]`, sqlmock.AnyArg(), nil, 2, 1).
		WillReturnRows(sqlmock.NewRows(routineCols).
			AddRow(2, 1, "R1", "S", int64(9), []byte(`[]`), []byte(`["x"]`), now, now, nil))

	_, err := repo.Update(context.Background(), types.Routine{
		ID:        2,
		OwnerID:   1,
		Name:      "R1",
		Stack:     &stack,
		DeckID:    &deckID,
		DeckOrder: []json.RawMessage{json.RawMessage(`"x"`)},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
