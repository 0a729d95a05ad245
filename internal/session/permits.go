package session

import (
	"sort"
	"sync"
)

// PermitStore holds, per user, the set of values the user may publish with the
// two-phase flow. Sets live in memory only.
type PermitStore struct {
	mu    sync.RWMutex
	users map[int]map[string]struct{}
}

func NewPermitStore() *PermitStore {
	return &PermitStore{users: make(map[int]map[string]struct{})}
}

// Replace swaps the user's whole set for values and returns the new set
// sorted. Duplicates collapse.
func (p *PermitStore) Replace(userID int, values []string) []string {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}

	p.mu.Lock()
	p.users[userID] = set
	p.mu.Unlock()

	return sortedKeys(set)
}

// Contains reports whether value is in the user's current set. It is false for
// users that never initialized.
func (p *PermitStore) Contains(userID int, value string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	set, ok := p.users[userID]
	if !ok {
		return false
	}
	_, ok = set[value]
	return ok
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
