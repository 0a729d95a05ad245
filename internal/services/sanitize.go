package services

import (
	"strconv"
	"strings"

	"github.com/aimaster/apiserver/types"
)

// placeholderIdentifier names the artifacts of a user with neither a usable
// email local-part nor an id.
const placeholderIdentifier = "user"

// SanitizeToken lowercases s and drops every character outside [a-z0-9_-].
// The result may be empty.
func SanitizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// UserIdentifier derives the stable artifact identifier of u: the sanitized
// email local-part, else the user id, else a fixed placeholder.
func UserIdentifier(u types.User) string {
	local := u.Email
	if at := strings.IndexByte(local, '@'); at >= 0 {
		local = local[:at]
	}
	if ident := SanitizeToken(local); ident != "" {
		return ident
	}
	if u.ID > 0 {
		return strconv.Itoa(u.ID)
	}
	return placeholderIdentifier
}
