package handlers

import (
	"net/http"
	"strings"
)

// TokenResolver maps bearer tokens to user ids.
type TokenResolver interface {
	Resolve(token string) (int, bool)
}

// Guard resolves the caller of a request. The browser session cookie is
// checked first and the bearer token second.
type Guard struct {
	tokens  TokenResolver
	cookies *SessionCookies
}

// NewGuard builds a Guard. cookies may be nil.
func NewGuard(tokens TokenResolver, cookies *SessionCookies) *Guard {
	return &Guard{tokens: tokens, cookies: cookies}
}

// RequireUser rejects requests without a resolvable caller and injects the
// caller's id into the request context.
func (g *Guard) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := g.identify(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
	})
}

func (g *Guard) identify(r *http.Request) (int, bool) {
	if userID, ok := g.cookies.UserID(r); ok {
		return userID, true
	}
	token := bearerToken(r)
	if token == "" {
		return 0, false
	}
	return g.tokens.Resolve(token)
}

// bearerToken reads the token from "Authorization: Bearer <t>", a bare
// "Authorization: <t>", or the token query parameter, in that order.
func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return auth
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}
