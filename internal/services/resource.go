package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/aimaster/apiserver/internal/db"
	"github.com/aimaster/apiserver/internal/metrics"
	"github.com/aimaster/apiserver/internal/store"
	"github.com/aimaster/apiserver/types"
)

// Optional is a request field that may be absent. Set distinguishes an absent
// field from one explicitly sent with its zero value.
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// DeckInput carries the fields of a deck create or update request.
type DeckInput struct {
	Name        Optional[string]
	Description Optional[*string]
	Nodes       Optional[types.Nodes]
	// EchoOrder returns the nodes under "order" as well, for clients that
	// sent them under that name.
	EchoOrder bool
}

// RoutineInput carries the fields of a routine create or update request.
// A nil DeckID value clears the deck reference.
type RoutineInput struct {
	Name      Optional[string]
	Stack     Optional[*string]
	DeckID    Optional[*int]
	Nodes     Optional[types.Nodes]
	DeckOrder Optional[[]json.RawMessage]
	LastRunAt Optional[*time.Time]
}

// ResourceService implements the owner-scoped deck and routine use-cases.
// Every call takes the caller's id and never touches rows of other owners.
type ResourceService struct {
	conn        *sql.DB
	repos       store.Manager
	strictNodes bool
}

func NewResourceService(conn *sql.DB, repos store.Manager, strictNodes bool) *ResourceService {
	return &ResourceService{conn: conn, repos: repos, strictNodes: strictNodes}
}

func (s *ResourceService) ListDecks(ctx context.Context, ownerID int) ([]types.Deck, error) {
	return s.repos.Decks(s.conn).List(ctx, ownerID)
}

func (s *ResourceService) GetDeck(ctx context.Context, ownerID, id int) (types.Deck, error) {
	return s.repos.Decks(s.conn).Get(ctx, ownerID, id)
}

func (s *ResourceService) CreateDeck(ctx context.Context, ownerID int, in DeckInput) (types.Deck, error) {
	name := strings.TrimSpace(in.Name.Value)
	if name == "" {
		return types.Deck{}, invalidf("name required")
	}
	deck := types.Deck{
		OwnerID:     ownerID,
		Name:        name,
		Description: in.Description.Value,
		Nodes:       types.Nodes{},
	}
	if in.Nodes.Set && in.Nodes.Value != nil {
		deck.Nodes = in.Nodes.Value
	}

	created, err := s.repos.Decks(s.conn).Create(ctx, deck)
	if err != nil {
		return types.Deck{}, err
	}
	metrics.ResourceMutationsTotal.WithLabelValues("deck", "create").Inc()
	if in.EchoOrder {
		order := created.Nodes
		created.Order = &order
	}
	return created, nil
}

// UpdateDeck applies the fields present in in. Nodes are replaced whole.
func (s *ResourceService) UpdateDeck(ctx context.Context, ownerID, id int, in DeckInput) (types.Deck, error) {
	if in.Name.Set && strings.TrimSpace(in.Name.Value) == "" {
		return types.Deck{}, invalidf("name required")
	}

	var updated types.Deck
	err := db.WithTx(ctx, s.conn, func(ctx context.Context, tx db.DBTX) error {
		decks := s.repos.Decks(tx)
		deck, err := decks.GetForUpdate(ctx, ownerID, id)
		if err != nil {
			return err
		}
		if in.Name.Set {
			deck.Name = strings.TrimSpace(in.Name.Value)
		}
		if in.Description.Set {
			deck.Description = in.Description.Value
		}
		if in.Nodes.Set {
			deck.Nodes = in.Nodes.Value
			if deck.Nodes == nil {
				deck.Nodes = types.Nodes{}
			}
		}
		updated, err = decks.Update(ctx, deck)
		return err
	})
	if err != nil {
		return types.Deck{}, err
	}
	metrics.ResourceMutationsTotal.WithLabelValues("deck", "update").Inc()
	if in.EchoOrder {
		order := updated.Nodes
		updated.Order = &order
	}
	return updated, nil
}

// DeleteDeck removes the deck. Routines that referenced it keep existing with
// no deck.
func (s *ResourceService) DeleteDeck(ctx context.Context, ownerID, id int) error {
	if err := s.repos.Decks(s.conn).Delete(ctx, ownerID, id); err != nil {
		return err
	}
	metrics.ResourceMutationsTotal.WithLabelValues("deck", "delete").Inc()
	return nil
}

func (s *ResourceService) ListRoutines(ctx context.Context, ownerID int) ([]types.Routine, error) {
	return s.repos.Routines(s.conn).List(ctx, ownerID)
}

func (s *ResourceService) GetRoutine(ctx context.Context, ownerID, id int) (types.Routine, error) {
	return s.repos.Routines(s.conn).Get(ctx, ownerID, id)
}

// CreateRoutine validates the deck reference inside the insert transaction.
// Without a deck id, a stack label naming one of the caller's decks binds the
// routine to that deck; no match leaves it unbound.
func (s *ResourceService) CreateRoutine(ctx context.Context, ownerID int, in RoutineInput) (types.Routine, error) {
	name := strings.TrimSpace(in.Name.Value)
	if name == "" {
		return types.Routine{}, invalidf("name required")
	}
	routine := types.Routine{
		OwnerID:   ownerID,
		Name:      name,
		Stack:     in.Stack.Value,
		DeckID:    in.DeckID.Value,
		Nodes:     types.Nodes{},
		DeckOrder: in.DeckOrder.Value,
		LastRunAt: in.LastRunAt.Value,
	}
	if in.Nodes.Set && in.Nodes.Value != nil {
		routine.Nodes = in.Nodes.Value
	}
	if err := s.checkNodes(routine.Nodes); err != nil {
		return types.Routine{}, err
	}

	var created types.Routine
	err := db.WithTx(ctx, s.conn, func(ctx context.Context, tx db.DBTX) error {
		decks := s.repos.Decks(tx)
		switch {
		case routine.DeckID != nil:
			if err := lockDeck(ctx, decks, ownerID, *routine.DeckID); err != nil {
				return err
			}
		case routine.Stack != nil && *routine.Stack != "":
			deckID, err := resolveStack(ctx, decks, ownerID, *routine.Stack)
			if err != nil {
				return err
			}
			routine.DeckID = deckID
		}

		var err error
		created, err = s.repos.Routines(tx).Create(ctx, routine)
		return err
	})
	if err != nil {
		return types.Routine{}, err
	}
	metrics.ResourceMutationsTotal.WithLabelValues("routine", "create").Inc()
	return created, nil
}

// UpdateRoutine applies the fields present in in. A new deck id is checked
// for ownership exactly as on create.
func (s *ResourceService) UpdateRoutine(ctx context.Context, ownerID, id int, in RoutineInput) (types.Routine, error) {
	if in.Name.Set && strings.TrimSpace(in.Name.Value) == "" {
		return types.Routine{}, invalidf("name required")
	}
	if in.Nodes.Set {
		if err := s.checkNodes(in.Nodes.Value); err != nil {
			return types.Routine{}, err
		}
	}

	var updated types.Routine
	err := db.WithTx(ctx, s.conn, func(ctx context.Context, tx db.DBTX) error {
		routines := s.repos.Routines(tx)
		routine, err := routines.GetForUpdate(ctx, ownerID, id)
		if err != nil {
			return err
		}

		if in.DeckID.Set && in.DeckID.Value != nil {
			if err := lockDeck(ctx, s.repos.Decks(tx), ownerID, *in.DeckID.Value); err != nil {
				return err
			}
		}

		if in.Name.Set {
			routine.Name = strings.TrimSpace(in.Name.Value)
		}
		if in.Stack.Set {
			routine.Stack = in.Stack.Value
		}
		if in.DeckID.Set {
			routine.DeckID = in.DeckID.Value
		}
		if in.Nodes.Set {
			routine.Nodes = in.Nodes.Value
			if routine.Nodes == nil {
				routine.Nodes = types.Nodes{}
			}
		}
		if in.DeckOrder.Set {
			routine.DeckOrder = in.DeckOrder.Value
		}
		if in.LastRunAt.Set {
			routine.LastRunAt = in.LastRunAt.Value
		}

		updated, err = routines.Update(ctx, routine)
		return err
	})
	if err != nil {
		return types.Routine{}, err
	}
	metrics.ResourceMutationsTotal.WithLabelValues("routine", "update").Inc()
	return updated, nil
}

func (s *ResourceService) DeleteRoutine(ctx context.Context, ownerID, id int) error {
	if err := s.repos.Routines(s.conn).Delete(ctx, ownerID, id); err != nil {
		return err
	}
	metrics.ResourceMutationsTotal.WithLabelValues("routine", "delete").Inc()
	return nil
}

func (s *ResourceService) checkNodes(nodes types.Nodes) error {
	if !s.strictNodes {
		return nil
	}
	for _, node := range nodes {
		if !node.HasShape() {
			return invalidf("each node must be an object with id, type, config")
		}
	}
	return nil
}

// lockDeck holds the caller's deck until the transaction ends so it cannot be
// deleted under a routine that is being bound to it.
func lockDeck(ctx context.Context, decks store.Decks, ownerID, deckID int) error {
	err := decks.Lock(ctx, ownerID, deckID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrDeckNotFound
	}
	return err
}

func resolveStack(ctx context.Context, decks store.Decks, ownerID int, stack string) (*int, error) {
	deck, err := decks.FindByName(ctx, ownerID, stack)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// A concurrent delete between the lookup and the lock leaves the routine
	// unbound, the same as no match.
	if err := decks.Lock(ctx, ownerID, deck.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	id := deck.ID
	return &id, nil
}
