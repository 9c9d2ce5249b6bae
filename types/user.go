package types

import (
	"strings"
	"time"
)

// Role is a user's authorization level.
type Role string

// Supported roles. RoleOrganizer is not assigned at signup but is honored
// for hackathon creation rights.
const (
	RoleParticipant Role = "participant"
	RoleJudge       Role = "judge"
	RoleOrganizer   Role = "organizer"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleParticipant, RoleJudge, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

// ParseRole normalizes a role name. Unknown names yield false.
func ParseRole(raw string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	return r, r.Valid()
}

// User represents an account on the platform.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id"`

	// Name is the user's display name.
	Name string `json:"name"`

	// Email is unique and always stored lower-cased.
	Email string `json:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-"`

	// Role determines what the user may do.
	Role Role `json:"role"`

	College string   `json:"college"`
	Phone   string   `json:"phone"`
	Skills  []string `json:"skills"`

	// IsVerified is set for accounts whose email has been confirmed.
	IsVerified bool `json:"isVerified"`

	ProfilePicture string `json:"profilePicture"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UserSummary is the public subset of a user embedded in hackathon payloads.
type UserSummary struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	College string   `json:"college,omitempty"`
	Skills  []string `json:"skills,omitempty"`
}

// Summary returns the public subset of u.
func (u User) Summary() UserSummary {
	return UserSummary{
		ID:      u.ID,
		Name:    u.Name,
		Email:   u.Email,
		College: u.College,
		Skills:  u.Skills,
	}
}
