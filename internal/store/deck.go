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

var deckTable = newOwnedTable(tableSpec[types.Deck]{
	Table:         "decks",
	Columns:       []string{"id", "owner_id", "name", "description", "nodes", "created_at", "updated_at"},
	Scan:          scanDeck,
	InsertColumns: []string{"name", "description", "nodes", "created_at", "updated_at"},
	InsertValues: func(d types.Deck) ([]any, error) {
		nodes, err := encodeNodes(d.Nodes)
		if err != nil {
			return nil, err
		}
		return []any{d.Name, d.Description, nodes, d.CreatedAt, d.UpdatedAt}, nil
	},
	UpdateColumns: []string{"name", "description", "nodes", "updated_at"},
	UpdateValues: func(d types.Deck) ([]any, error) {
		nodes, err := encodeNodes(d.Nodes)
		if err != nil {
			return nil, err
		}
		return []any{d.Name, d.Description, nodes, d.UpdatedAt}, nil
	},
})

func scanDeck(row rowScanner) (types.Deck, error) {
	var deck types.Deck
	var description sql.NullString
	var nodesJSON []byte
	if err := row.Scan(
		&deck.ID,
		&deck.OwnerID,
		&deck.Name,
		&description,
		&nodesJSON,
		&deck.CreatedAt,
		&deck.UpdatedAt,
	); err != nil {
		return types.Deck{}, err
	}
	if description.Valid {
		deck.Description = &description.String
	}
	nodes, err := decodeNodes(nodesJSON)
	if err != nil {
		return types.Deck{}, err
	}
	deck.Nodes = nodes
	return deck, nil
}

// DeckRepository handles persistence for decks. All methods are scoped to an
// owner.
type DeckRepository struct {
	q db.DBTX
}

func NewDeckRepository(q db.DBTX) *DeckRepository {
	return &DeckRepository{q: q}
}

func (r *DeckRepository) List(ctx context.Context, ownerID int) ([]types.Deck, error) {
	return deckTable.list(ctx, r.q, ownerID)
}

func (r *DeckRepository) Get(ctx context.Context, ownerID, id int) (types.Deck, error) {
	return deckTable.get(ctx, r.q, ownerID, id, false)
}

// GetForUpdate reads the deck and locks it until the transaction ends.
func (r *DeckRepository) GetForUpdate(ctx context.Context, ownerID, id int) (types.Deck, error) {
	return deckTable.get(ctx, r.q, ownerID, id, true)
}

// Lock verifies ownership and holds a share lock on the deck, so a routine
// can reference it without racing a concurrent delete.
func (r *DeckRepository) Lock(ctx context.Context, ownerID, id int) error {
	return deckTable.lock(ctx, r.q, ownerID, id)
}

// FindByName returns the owner's first deck with exactly this name.
func (r *DeckRepository) FindByName(ctx context.Context, ownerID int, name string) (types.Deck, error) {
	return deckTable.findBy(ctx, r.q, ownerID, "name", name)
}

func (r *DeckRepository) Create(ctx context.Context, deck types.Deck) (types.Deck, error) {
	now := time.Now().UTC()
	deck.CreatedAt = now
	deck.UpdatedAt = now
	return deckTable.insert(ctx, r.q, deck.OwnerID, deck)
}

func (r *DeckRepository) Update(ctx context.Context, deck types.Deck) (types.Deck, error) {
	deck.UpdatedAt = time.Now().UTC()
	return deckTable.update(ctx, r.q, deck.OwnerID, deck.ID, deck)
}

func (r *DeckRepository) Delete(ctx context.Context, ownerID, id int) error {
	return deckTable.delete(ctx, r.q, ownerID, id)
}

// encodeNodes renders nodes for a JSONB column. lib/pq sends []byte as bytea,
// so the JSON goes over the wire as text.
func encodeNodes(nodes types.Nodes) (string, error) {
	if nodes == nil {
		nodes = types.Nodes{}
	}
	data, err := json.Marshal(nodes)
	if err != nil {
		return "", fmt.Errorf("encode nodes: %w", err)
	}
	return string(data), nil
}

func decodeNodes(data []byte) (types.Nodes, error) {
	nodes := types.Nodes{}
	if len(data) == 0 {
		return nodes, nil
	}
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, fmt.Errorf("decode nodes: %w", err)
	}
	return nodes, nil
}
