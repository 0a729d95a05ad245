package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionCookieName = "aimaster_session"
	defaultSessionTTL = 24 * time.Hour
)

// SessionCookies issues and reads the signed browser session cookie. It is
// disabled when constructed with an empty secret.
type SessionCookies struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

func NewSessionCookies(secret string, ttl time.Duration, secure bool) *SessionCookies {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionCookies{
		secret: []byte(strings.TrimSpace(secret)),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

func (c *SessionCookies) enabled() bool {
	return c != nil && len(c.secret) > 0
}

// Set writes a session cookie for userID.
func (c *SessionCookies) Set(w http.ResponseWriter, userID int) error {
	if !c.enabled() {
		return nil
	}
	token, err := issueToken(userID, c.secret, c.now(), c.ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (c *SessionCookies) Clear(w http.ResponseWriter) {
	if !c.enabled() {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// UserID returns the user of a valid session cookie.
func (c *SessionCookies) UserID(r *http.Request) (int, bool) {
	if !c.enabled() {
		return 0, false
	}
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return 0, false
	}
	subject, err := parseTokenSubject(cookie.Value, c.secret)
	if err != nil {
		return 0, false
	}
	userID, err := strconv.Atoi(subject)
	if err != nil || userID < 1 {
		return 0, false
	}
	return userID, true
}

func issueToken(userID int, secret []byte, now time.Time, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}
