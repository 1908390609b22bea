package model

import (
	"time"
)

type Role string

const (
	RoleParent           Role = "parent"
	RoleIndependentChild Role = "child_independent"
)

func (r Role) Valid() bool {
	return r == RoleParent || r == RoleIndependentChild
}

type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Profile is one registered account. ID equals the session user id.
type Profile struct {
	ID        string    `db:"id" json:"id"`
	Role      Role      `db:"role" json:"role"`
	FamilyID  *string   `db:"family_id" json:"familyId,omitempty"`
	FullName  string    `db:"full_name" json:"fullName"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type Family struct {
	ID        string    `db:"id" json:"id"`
	ParentID  string    `db:"parent_id" json:"parentId"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Child is one trainee. FamilyID is nil for an independent child, UserID is nil
// for a family-linked child without an account of its own.
type Child struct {
	ID               string     `db:"id" json:"id"`
	FamilyID         *string    `db:"family_id" json:"familyId,omitempty"`
	UserID           *string    `db:"user_id" json:"userId,omitempty"`
	Name             string     `db:"name" json:"name"`
	Age              int        `db:"age" json:"age"`
	LinkingCode      *string    `db:"linking_code" json:"linkingCode,omitempty"`
	CodeGeneratedAt  *time.Time `db:"code_generated_at" json:"codeGeneratedAt,omitempty"`
	ConsecutiveDays  int        `db:"consecutive_days" json:"consecutiveDays"`
	MinutesPracticed int        `db:"minutes_practiced" json:"minutesPracticed"`
	CurrentStep      int        `db:"current_step" json:"currentStep"`
	TotalSteps       int        `db:"total_steps" json:"totalSteps"`
	LastPracticeDate *time.Time `db:"last_practice_date" json:"lastPracticeDate,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`

	// IsLinkedDevice is set on the device only, never persisted by the backend.
	IsLinkedDevice bool `db:"-" json:"isLinkedDevice,omitempty"`
}

// AsLinkedDevice returns a copy of c marked as resolved through a pairing code.
func (c Child) AsLinkedDevice() Child {
	c.IsLinkedDevice = true
	return c
}

type CreateUserParams struct {
	ID           string
	Email        string
	PasswordHash string
}

type CreateProfileParams struct {
	ID       string
	Role     Role
	FamilyID *string
	FullName string
	Email    string
}

type CreateChildParams struct {
	FamilyID *string
	UserID   *string
	Name     string
	Age      int
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignUpParams struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FullName  string `json:"fullName"`
	Role      Role   `json:"role"`
	ChildName string `json:"childName,omitempty"`
	ChildAge  int    `json:"childAge,omitempty"`
}

// CreateAccountParams is everything sign-up writes in one transaction. The
// child fields are used only for an independent child.
type CreateAccountParams struct {
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
	FamilyName   string
	ChildName    string
	ChildAge     int
}
