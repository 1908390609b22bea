package model

import (
	"time"
)

// Session is the backend-issued proof of an authenticated account. The device
// core looks only at its presence and UserID.
type Session struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// SessionRecord is what the backend keeps per session token hash.
type SessionRecord struct {
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
