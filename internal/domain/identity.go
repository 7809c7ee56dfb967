package domain

import (
	"strings"
	"time"
)

// Identity represents the authenticated principal issued by the identity provider
type Identity struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Session is a live identity plus the tokens that prove it
type Session struct {
	Identity     Identity `json:"identity"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"-"`
	ExpiresIn    int      `json:"expires_in"`
}

// EventType names an identity provider session change
type EventType string

const (
	EventInitialSession EventType = "INITIAL_SESSION"
	EventSignedIn       EventType = "SIGNED_IN"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventSignedOut      EventType = "SIGNED_OUT"
)

// AuthEvent is emitted by the identity provider on every session change.
// Session is nil for sign-out; UserID always names the affected user so
// listeners serving many users can route the event.
type AuthEvent struct {
	Type       EventType
	Session    *Session
	UserID     string
	OccurredAt time.Time
}

// Identity returns the event's identity or nil when the session is gone
func (e AuthEvent) Identity() *Identity {
	if e.Session == nil {
		return nil
	}
	id := e.Session.Identity
	return &id
}

// MetadataString returns a string metadata value or "" when absent
func (i Identity) MetadataString(key string) string {
	if i.Metadata == nil {
		return ""
	}
	v, _ := i.Metadata[key].(string)
	return v
}

// MetadataBool returns a boolean metadata value, accepting "true" strings
func (i Identity) MetadataBool(key string) bool {
	if i.Metadata == nil {
		return false
	}
	switch v := i.Metadata[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	}
	return false
}

// AvatarURL returns the avatar advertised by the identity provider, if any
func (i Identity) AvatarURL() *string {
	for _, key := range []string{"avatar_url", "picture"} {
		if v := i.MetadataString(key); v != "" {
			return &v
		}
	}
	return nil
}

// EmailLocalPart returns the part of the email before "@"
func (i Identity) EmailLocalPart() string {
	local, _, _ := strings.Cut(i.Email, "@")
	return local
}
