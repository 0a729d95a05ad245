package types

import "time"

// User represents an account in the system.
// It contains identity, credential, and credit balance data.
type User struct {
	// ID is the unique identifier of the user.
	// It is rendered as a string in API responses.
	ID int `json:"id,string" db:"id"`

	// Email is the user's email address. It is stored as given and
	// matched case-insensitively.
	Email string `json:"email" db:"email"`

	// Username is an optional public handle, distinct from the email.
	// An empty value is stored as NULL.
	Username string `json:"username,omitempty" db:"username"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Credits is the user's non-negative credit balance.
	Credits int `json:"credits" db:"credits"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DisplayName returns the username when set and the email otherwise.
func (u User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}
