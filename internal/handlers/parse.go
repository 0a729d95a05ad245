package handlers

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/aimaster/apiserver/internal/services"
	"github.com/aimaster/apiserver/types"
)

// fields is a request object whose members are type-checked one by one,
// since for resource payloads both presence and type matter.
type fields map[string]json.RawMessage

// lookup returns the first present member among names.
func (f fields) lookup(names ...string) (json.RawMessage, string, bool) {
	for _, name := range names {
		if raw, ok := f[name]; ok {
			return raw, name, true
		}
	}
	return nil, "", false
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func parseString(raw json.RawMessage, field string) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", invalid(field + " must be a string")
	}
	return s, nil
}

// parseNullableString maps JSON null to nil.
func parseNullableString(raw json.RawMessage, field string) (*string, error) {
	if isNull(raw) {
		return nil, nil
	}
	s, err := parseString(raw, field)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// parseList accepts only a JSON array. Elements are kept verbatim.
func parseList(raw json.RawMessage, field string) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, invalid(field + " must be a list")
	}
	items := make([]json.RawMessage, 0)
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, invalid(field + " must be a list")
	}
	return items, nil
}

func parseNodes(raw json.RawMessage, field string) (types.Nodes, error) {
	items, err := parseList(raw, field)
	if err != nil {
		return nil, err
	}
	nodes := make(types.Nodes, 0, len(items))
	for _, item := range items {
		nodes = append(nodes, types.NewNode(item))
	}
	return nodes, nil
}

// parseDeckID reads a deck reference. null, "" and 0 clear it. A string that
// is not a number cannot name a deck.
func parseDeckID(raw json.RawMessage) (*int, error) {
	if isNull(raw) {
		return nil, nil
	}
	trimmed := bytes.TrimSpace(raw)

	var text string
	switch trimmed[0] {
	case '"':
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil, invalid("deck_id must be an integer")
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, nil
		}
		if _, err := strconv.Atoi(text); err != nil {
			return nil, services.ErrDeckNotFound
		}
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		text = string(trimmed)
	default:
		return nil, invalid("deck_id must be an integer")
	}

	id, err := strconv.Atoi(text)
	if err != nil {
		return nil, invalid("deck_id must be an integer")
	}
	if id == 0 {
		return nil, nil
	}
	return &id, nil
}

// parseTimestamp reads an RFC 3339 time or null.
func parseTimestamp(raw json.RawMessage, field string) (*time.Time, error) {
	s, err := parseNullableString(raw, field)
	if err != nil || s == nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(*s))
	if err != nil {
		return nil, invalid(field + " must be an RFC 3339 timestamp")
	}
	t = t.UTC()
	return &t, nil
}

func parseDeckInput(f fields) (services.DeckInput, error) {
	var in services.DeckInput

	if raw, field, ok := f.lookup("name", "stack"); ok {
		name, err := parseString(raw, field)
		if err != nil {
			return in, err
		}
		in.Name = services.Some(name)
	}
	if raw, ok := f["description"]; ok {
		desc, err := parseNullableString(raw, "description")
		if err != nil {
			return in, err
		}
		in.Description = services.Some(desc)
	}
	if raw, field, ok := f.lookup("nodes", "order"); ok {
		nodes, err := parseNodes(raw, field)
		if err != nil {
			return in, err
		}
		in.Nodes = services.Some(nodes)
		in.EchoOrder = field == "order"
	}
	return in, nil
}

func parseRoutineInput(f fields) (services.RoutineInput, error) {
	var in services.RoutineInput

	if raw, ok := f["name"]; ok {
		name, err := parseString(raw, "name")
		if err != nil {
			return in, err
		}
		in.Name = services.Some(name)
	}
	if raw, field, ok := f.lookup("stack", "deck_name"); ok {
		stack, err := parseNullableString(raw, field)
		if err != nil {
			return in, err
		}
		in.Stack = services.Some(stack)
	}
	if raw, field, ok := f.lookup("nodes"); ok {
		nodes, err := parseNodes(raw, field)
		if err != nil {
			return in, err
		}
		in.Nodes = services.Some(nodes)
	}
	if raw, ok := f["deck_order"]; ok {
		if isNull(raw) {
			in.DeckOrder = services.Some[[]json.RawMessage](nil)
		} else {
			order, err := parseList(raw, "deck_order")
			if err != nil {
				return in, err
			}
			in.DeckOrder = services.Some(order)
		}
	}
	if raw, ok := f["last_run_at"]; ok {
		at, err := parseTimestamp(raw, "last_run_at")
		if err != nil {
			return in, err
		}
		in.LastRunAt = services.Some(at)
	}
	// deck_id last: a reference to a deck that cannot exist must not mask a
	// malformed field.
	if raw, ok := f["deck_id"]; ok {
		deckID, err := parseDeckID(raw)
		if err != nil {
			return in, err
		}
		in.DeckID = services.Some(deckID)
	}
	return in, nil
}
