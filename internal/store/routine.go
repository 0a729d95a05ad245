package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aimaster/apiserver/internal/db"
	"github.com/aimaster/apiserver/types"
)

var routineTable = newOwnedTable(tableSpec[types.Routine]{
	Table: "routines",
	Columns: []string{
		"id", "owner_id", "name", "stack", "deck_id", "nodes", "deck_order",
		"created_at", "updated_at", "last_run_at",
	},
	Scan:          scanRoutine,
	InsertColumns: []string{"name", "stack", "deck_id", "nodes", "deck_order", "created_at", "updated_at"},
	InsertValues: func(r types.Routine) ([]any, error) {
		nodes, order, err := encodeRoutineJSON(r)
		if err != nil {
			return nil, err
		}
		return []any{r.Name, r.Stack, r.DeckID, nodes, order, r.CreatedAt, r.UpdatedAt}, nil
	},
	UpdateColumns: []string{"name", "stack", "deck_id", "nodes", "deck_order", "updated_at", "last_run_at"},
	UpdateValues: func(r types.Routine) ([]any, error) {
		nodes, order, err := encodeRoutineJSON(r)
		if err != nil {
			return nil, err
		}
		return []any{r.Name, r.Stack, r.DeckID, nodes, order, r.UpdatedAt, r.LastRunAt}, nil
	},
})

func scanRoutine(row rowScanner) (types.Routine, error) {
	var routine types.Routine
	var stack sql.NullString
	var deckID sql.NullInt64
	var nodesJSON, orderJSON []byte
	var lastRun sql.NullTime
	if err := row.Scan(
		&routine.ID,
		&routine.OwnerID,
		&routine.Name,
		&stack,
		&deckID,
		&nodesJSON,
		&orderJSON,
		&routine.CreatedAt,
		&routine.UpdatedAt,
		&lastRun,
	); err != nil {
		return types.Routine{}, err
	}
	if stack.Valid {
		routine.Stack = &stack.String
	}
	if deckID.Valid {
		id := int(deckID.Int64)
		routine.DeckID = &id
	}
	if lastRun.Valid {
		routine.LastRunAt = &lastRun.Time
	}

	nodes, err := decodeNodes(nodesJSON)
	if err != nil {
		return types.Routine{}, err
	}
	routine.Nodes = nodes

	if orderJSON != nil {
		if err := json.Unmarshal(orderJSON, &routine.DeckOrder); err != nil {
			return types.Routine{}, fmt.Errorf("decode deck_order: %w", err)
		}
	}
	return routine, nil
}

func encodeRoutineJSON(r types.Routine) (string, *string, error) {
	nodes, err := encodeNodes(r.Nodes)
	if err != nil {
		return "", nil, err
	}
	if r.DeckOrder == nil {
		return nodes, nil, nil
	}
	data, err := json.Marshal(r.DeckOrder)
	if err != nil {
		return "", nil, fmt.Errorf("encode deck_order: %w", err)
	}
	order := string(data)
	return nodes, &order, nil
}

// RoutineRepository handles persistence for routines. All methods are scoped
// to an owner.
type RoutineRepository struct {
	q db.DBTX
}

func NewRoutineRepository(q db.DBTX) *RoutineRepository {
	return &RoutineRepository{q: q}
}

func (r *RoutineRepository) List(ctx context.Context, ownerID int) ([]types.Routine, error) {
	return routineTable.list(ctx, r.q, ownerID)
}

func (r *RoutineRepository) Get(ctx context.Context, ownerID, id int) (types.Routine, error) {
	return routineTable.get(ctx, r.q, ownerID, id, false)
}

// GetForUpdate reads the routine and locks it until the transaction ends.
func (r *RoutineRepository) GetForUpdate(ctx context.Context, ownerID, id int) (types.Routine, error) {
	return routineTable.get(ctx, r.q, ownerID, id, true)
}

func (r *RoutineRepository) Create(ctx context.Context, routine types.Routine) (types.Routine, error) {
	now := time.Now().UTC()
	routine.CreatedAt = now
	routine.UpdatedAt = now
	return routineTable.insert(ctx, r.q, routine.OwnerID, routine)
}

func (r *RoutineRepository) Update(ctx context.Context, routine types.Routine) (types.Routine, error) {
	routine.UpdatedAt = time.Now().UTC()
	return routineTable.update(ctx, r.q, routine.OwnerID, routine.ID, routine)
}

func (r *RoutineRepository) Delete(ctx context.Context, ownerID, id int) error {
	return routineTable.delete(ctx, r.q, ownerID, id)
}
