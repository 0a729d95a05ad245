package services

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/aimaster/apiserver/types"
)

//go:embed initial_routines.json
var initialRoutinesJSON []byte

type seedRoutine struct {
	Name  string      `json:"name"`
	Stack string      `json:"stack"`
	Nodes types.Nodes `json:"nodes"`
}

// InitialRoutines returns the routines every new user starts with, detached
// from any owner or deck.
func InitialRoutines() ([]types.Routine, error) {
	var seeds []seedRoutine
	if err := json.Unmarshal(initialRoutinesJSON, &seeds); err != nil {
		return nil, fmt.Errorf("decode initial routines: %w", err)
	}
	routines := make([]types.Routine, 0, len(seeds))
	for _, seed := range seeds {
		stack := seed.Stack
		routines = append(routines, types.Routine{
			Name:  seed.Name,
			Stack: &stack,
			Nodes: seed.Nodes,
		})
	}
	return routines, nil
}
