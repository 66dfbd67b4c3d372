// Package models provides data model definitions for the scanner core.
package models

import "time"

// Session holds the backend auth tokens for the signed-in user.
// Persisted only through secure storage, never in the plain database.
type Session struct {
	UserID       string `json:"user_id"`
	Email        string `json:"email,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Expired reports whether the access token's lifetime has passed.
func (s *Session) Expired() bool {
	if s == nil || s.AccessToken == "" {
		return true
	}
	if s.ExpiresAt == 0 {
		return false
	}
	return time.Now().Unix() >= s.ExpiresAt
}

// ExpiresAtTime returns ExpiresAt as time.Time.
func (s *Session) ExpiresAtTime() time.Time {
	return time.Unix(s.ExpiresAt, 0)
}
