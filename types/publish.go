package types

import "time"

// PublishRecord is the single published status value of a user.
//
// There is at most one record per user. Publishing replaces Text and
// refreshes UpdatedAt. A user who never published resolves to a record
// with nil Text and nil UpdatedAt.
type PublishRecord struct {
	// UserID identifies the publishing user.
	UserID int `json:"user_id,string" db:"user_id"`

	// Username is the user's public handle, falling back to the email.
	// It is filled in by the service layer, not stored with the record.
	Username string `json:"username" db:"-"`

	// Text is the current published value.
	Text *string `json:"text" db:"text"`

	// UpdatedAt is the server time of the latest publish.
	UpdatedAt *time.Time `json:"updated_at" db:"updated_at"`
}

// Artifact describes the outcome of writing a public artifact.
type Artifact struct {
	// OK is true when the artifact was written.
	OK bool `json:"ok"`

	// Key is the storage key of the artifact.
	Key string `json:"key"`

	// URL is the public path or URL of the artifact.
	URL string `json:"url"`

	// Error is a short description of the failure when OK is false.
	Error string `json:"error,omitempty"`
}

// PublishEvent is emitted after a successful publish of either flow.
type PublishEvent struct {
	// UserID identifies the publishing user.
	UserID int `json:"user_id,string"`

	// Flow is "actuar" for single-value publishes and "actuar2" for the
	// two-phase flow.
	Flow string `json:"flow"`

	// Value is the permitted value named by a two-phase publish.
	Value string `json:"value,omitempty"`

	// Text is the published text.
	Text string `json:"text"`

	// Key and URL locate the artifact, when it was written.
	Key string `json:"key"`
	URL string `json:"url,omitempty"`

	// PublishedAt is the server time of the publish.
	PublishedAt time.Time `json:"published_at"`
}
