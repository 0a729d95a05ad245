package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegistry_IssueResolveRevoke(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	r := NewRegistry(WithClock(func() time.Time { return fixed }))

	token, err := r.Issue(7)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(token, "token-7-1700000000-"), token)

	userID, ok := r.Resolve(token)
	require.True(t, ok)
	require.Equal(t, 7, userID)

	r.Revoke(token)
	_, ok = r.Resolve(token)
	require.False(t, ok)

	// revoking twice is a no-op
	r.Revoke(token)
	r.Revoke("never-issued")
	require.Equal(t, 0, r.Len())
}

func TestRegistry_SameSecondTokensAreDistinct(t *testing.T) {
	fixed := time.Unix(1700000000, 0)
	r := NewRegistry(WithClock(func() time.Time { return fixed }))

	first, err := r.Issue(1)
	require.NoError(t, err)
	second, err := r.Issue(1)
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.Equal(t, 2, r.Len())

	r.Revoke(first)
	userID, ok := r.Resolve(second)
	require.True(t, ok)
	require.Equal(t, 1, userID)
}

func TestRegistry_ResolveEmpty(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Resolve("")
	require.False(t, ok)
}

func TestRegistry_ConcurrentUsers(t *testing.T) {
	r := NewRegistry()

	const users = 20
	const perUser = 25

	var wg sync.WaitGroup
	tokens := make([][]string, users)
	for u := 0; u < users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			for i := 0; i < perUser; i++ {
				token, err := r.Issue(u + 1)
				if err != nil {
					t.Errorf("issue: %v", err)
					return
				}
				tokens[u] = append(tokens[u], token)
			}
		}(u)
	}
	wg.Wait()
	require.Equal(t, users*perUser, r.Len())

	for u := 0; u < users; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			for i, token := range tokens[u] {
				if i%2 == 0 {
					r.Revoke(token)
				}
			}
		}(u)
	}
	wg.Wait()

	for u := 0; u < users; u++ {
		for i, token := range tokens[u] {
			userID, ok := r.Resolve(token)
			if i%2 == 0 {
				require.False(t, ok, "token %s should be revoked", token)
				continue
			}
			require.True(t, ok)
			require.Equal(t, u+1, userID, fmt.Sprintf("token %s", token))
		}
	}
}

func TestPermitStore_ReplaceIsNotMerge(t *testing.T) {
	p := NewPermitStore()

	require.False(t, p.Contains(1, "a"))

	got := p.Replace(1, []string{"b", "a", "b"})
	require.Equal(t, []string{"a", "b"}, got)
	require.True(t, p.Contains(1, "a"))

	got = p.Replace(1, []string{"c"})
	require.Equal(t, []string{"c"}, got)
	require.False(t, p.Contains(1, "a"))
	require.True(t, p.Contains(1, "c"))
}

func TestPermitStore_UsersAreIsolated(t *testing.T) {
	p := NewPermitStore()
	p.Replace(1, []string{"x"})

	require.False(t, p.Contains(2, "x"))
	p.Replace(2, []string{"y"})
	require.True(t, p.Contains(1, "x"))
	require.False(t, p.Contains(1, "y"))
}

func TestPermitStore_EmptyInitStillInitializes(t *testing.T) {
	p := NewPermitStore()
	got := p.Replace(3, nil)
	require.Empty(t, got)
	require.False(t, p.Contains(3, ""))
}
