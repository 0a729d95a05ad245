package types

import (
	"encoding/json"
	"time"
)

// Deck is an ordered list of nodes owned by a single user.
type Deck struct {
	// ID is the unique identifier of the deck.
	ID int `json:"id,string" db:"id"`

	// OwnerID references the user that created the deck. It never changes.
	OwnerID int `json:"owner_id,string" db:"owner_id"`

	// Name is the required, non-empty deck name. Routines may refer to a
	// deck by this name through their stack label.
	Name string `json:"name" db:"name"`

	// Description is optional free text.
	Description *string `json:"description" db:"description"`

	// Nodes is the ordered node list, replaced as a whole on update.
	Nodes Nodes `json:"nodes" db:"nodes"`

	// Order echoes the nodes under "order" when the deck was created from
	// a card order. It is never persisted.
	Order *Nodes `json:"order,omitempty" db:"-"`

	// CreatedAt is the timestamp at which the deck was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the deck.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Routine is an executable node graph owned by a single user, optionally
// bound to one of the same user's decks.
type Routine struct {
	// ID is the unique identifier of the routine.
	ID int `json:"id,string" db:"id"`

	// OwnerID references the user that created the routine. It never changes.
	OwnerID int `json:"owner_id,string" db:"owner_id"`

	// Name is the required, non-empty routine name.
	Name string `json:"name" db:"name"`

	// Stack is a free-text label. On creation without a deck id it is
	// matched against the owner's deck names.
	Stack *string `json:"stack" db:"stack"`

	// DeckID references a deck with the same owner, or is nil.
	DeckID *int `json:"deck_id,string" db:"deck_id"`

	// Nodes is the ordered node list, replaced as a whole on update.
	Nodes Nodes `json:"nodes" db:"nodes"`

	// DeckOrder is an optional, schema-free ordering of the deck's cards.
	DeckOrder []json.RawMessage `json:"deck_order" db:"deck_order"`

	// CreatedAt is the timestamp at which the routine was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the routine.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// LastRunAt is the last time a client reported running the routine.
	LastRunAt *time.Time `json:"last_run_at" db:"last_run_at"`
}
