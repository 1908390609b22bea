package model

import (
	"time"
)

type LinkingCode struct {
	Code      string     `db:"code" json:"code"`
	ChildID   string     `db:"child_id" json:"childId"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	UsedAt    *time.Time `db:"used_at" json:"usedAt,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

type CreateLinkingCodeParams struct {
	Code      string
	ChildID   string
	ExpiresAt time.Time
}

func (c *LinkingCode) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

func (c *LinkingCode) IsUsed() bool {
	return c.UsedAt != nil
}

// VerifyResult is the wire contract of the code verification call.
type VerifyResult struct {
	Success bool   `json:"success"`
	Child   *Child `json:"child,omitempty"`
	Error   string `json:"error,omitempty"` // INVALID_CODE, CODE_EXPIRED
}
