// Package session keeps the process-local authentication state: the bearer
// token registry and the per-user permit sets of the two-phase publish flow.
//
// Both types are safe for concurrent use and are meant to be constructed once
// and handed to the layers that need them.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const tokenEntropyBytes = 8

// Registry maps opaque bearer tokens to user ids for the lifetime of the
// process. A user may hold several live tokens. Tokens never expire; they are
// removed by Revoke or lost on restart.
type Registry struct {
	mu     sync.RWMutex
	tokens map[string]int
	now    func() time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithClock replaces the time source used to stamp new tokens.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tokens: make(map[string]int),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Issue creates a token bound to userID and stores it. The returned token is
// unique among the live tokens of the registry.
func (r *Registry) Issue(userID int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		token, err := r.newToken(userID)
		if err != nil {
			return "", err
		}
		if _, taken := r.tokens[token]; taken {
			continue
		}
		r.tokens[token] = userID
		return token, nil
	}
}

// Resolve returns the user bound to token.
func (r *Registry) Resolve(token string) (int, bool) {
	if token == "" {
		return 0, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.tokens[token]
	return userID, ok
}

// Revoke removes token. Unknown tokens are ignored.
func (r *Registry) Revoke(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
}

// Len returns the number of live tokens.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tokens)
}

func (r *Registry) newToken(userID int) (string, error) {
	var buf [tokenEntropyBytes]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return fmt.Sprintf("token-%d-%d-%s", userID, r.now().Unix(), hex.EncodeToString(buf[:])), nil
}
