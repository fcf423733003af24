package models

import (
	"time"

	"github.com/google/uuid"
)

// Role separates landlords (scoped to one organization) from platform admins.
type Role string

const (
	RoleLandlord Role = "landlord"
	RoleAdmin    Role = "admin"
)

type User struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	OrganizationID *uuid.UUID `json:"organization_id,omitempty" db:"organization_id"`
	Email          string     `json:"email" db:"email"`
	PasswordHash   string     `json:"-" db:"password_hash"` // Never serialize in JSON
	FullName       string     `json:"full_name" db:"full_name"`
	Role           Role       `json:"role" db:"role"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}
