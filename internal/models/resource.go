package models

import (
	"time"

	"github.com/google/uuid"
)

// Resource is a row in one of the plan-gated tables. Only the columns the
// subscription core needs are modelled here.
type Resource struct {
	ID             uuid.UUID `json:"id" db:"id"`
	OrganizationID uuid.UUID `json:"organization_id" db:"organization_id"`
	Feature        Feature   `json:"feature" db:"-"`
	Name           string    `json:"name" db:"name"`
	Details        JSONB     `json:"details,omitempty" db:"details"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
