package handlers

import (
	"net/http"

	"rentdesk/internal/services"

	"github.com/labstack/echo/v4"
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	authService services.AuthService
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(authService services.AuthService) *AuthHandlers {
	return &AuthHandlers{authService: authService}
}

// SignupRequest registers a landlord and their organization
type SignupRequest struct {
	OrganizationName string  `json:"organization_name" validate:"required,max=200"`
	FullName         string  `json:"full_name" validate:"required,max=200"`
	Email            string  `json:"email" validate:"required,email"`
	Password         string  `json:"password" validate:"required,min=8,max=72"`
	ContactPhone     *string `json:"contact_phone,omitempty" validate:"omitempty,max=32"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Signup godoc
// @Summary Register a landlord organization on a free trial
// @Tags auth
// @Accept json
// @Produce json
// @Param body body SignupRequest true "Signup payload"
// @Success 201 {object} models.TokenResponse
// @Failure 409 {object} common.ErrorResponse
// @Router /v1/auth/signup [post]
func (h *AuthHandlers) Signup(c echo.Context) error {
	var req SignupRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	token, err := h.authService.Signup(c.Request().Context(), services.SignupInput{
		OrganizationName: req.OrganizationName,
		ContactPhone:     req.ContactPhone,
		FullName:         req.FullName,
		Email:            req.Email,
		Password:         req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, token)
}

// Login godoc
// @Summary Exchange email and password for an access token
// @Tags auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Credentials"
// @Success 200 {object} models.TokenResponse
// @Failure 401 {object} common.ErrorResponse
// @Router /v1/auth/login [post]
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if handled, err := bindAndValidate(c, &req); handled {
		return err
	}

	token, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, token)
}
