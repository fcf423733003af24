package models

import "time"

// TokenResponse is returned by login, signup and impersonation.
type TokenResponse struct {
	AccessToken    string    `json:"access_token"`
	TokenType      string    `json:"token_type"`
	ExpiresIn      int       `json:"expires_in"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Role           Role      `json:"role"`
	ImpersonatedBy string    `json:"impersonated_by,omitempty"`
	IssuedAt       time.Time `json:"issued_at"`
}
