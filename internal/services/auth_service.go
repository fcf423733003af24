package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentdesk/internal/caching"
	"rentdesk/internal/models"
	"rentdesk/internal/repositories"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenIssuer   = "rentdesk-auth"
	tokenAudience = "rentdesk-api"

	minPasswordLength = 8

	loginAttemptLimit  = 10
	loginAttemptWindow = 15 * time.Minute
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrTooManyAttempts    = errors.New("too many login attempts, try again later")
	ErrPasswordTooShort   = fmt.Errorf("password must be at least %d characters", minPasswordLength)
)

// TokenClaims represents JWT claims
type TokenClaims struct {
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id,omitempty"`
	Role           string `json:"role"`
	ImpersonatedBy string `json:"impersonated_by,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs HS256 access tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    Clock
}

func NewTokenIssuer(secret string, ttl time.Duration, clock Clock) *TokenIssuer {
	if clock == nil {
		clock = systemClock
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: clock}
}

// Secret is the signing key, shared with the echo-jwt middleware.
func (t *TokenIssuer) Secret() []byte {
	return t.secret
}

// Issue signs a token for user. ttl overrides the default lifetime when positive.
func (t *TokenIssuer) Issue(user *models.User, impersonatedBy *uuid.UUID, ttl time.Duration) (*models.TokenResponse, error) {
	if ttl <= 0 {
		ttl = t.ttl
	}
	now := t.now()
	tokenID := uuid.NewString()

	claims := TokenClaims{
		UserID: user.ID.String(),
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        tokenID,
		},
	}
	if user.OrganizationID != nil {
		claims.OrganizationID = user.OrganizationID.String()
	}
	if impersonatedBy != nil {
		claims.ImpersonatedBy = impersonatedBy.String()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign JWT: %w", err)
	}

	return &models.TokenResponse{
		AccessToken:    signed,
		TokenType:      "Bearer",
		ExpiresIn:      int(ttl.Seconds()),
		UserID:         claims.UserID,
		OrganizationID: claims.OrganizationID,
		Role:           user.Role,
		ImpersonatedBy: claims.ImpersonatedBy,
		IssuedAt:       now,
	}, nil
}

// Parse validates a signed token and returns its claims.
func (t *TokenIssuer) Parse(token string) (*TokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithAudience(tokenAudience))
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if claims, ok := parsed.Claims.(*TokenClaims); ok && parsed.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token claims")
}

// SignupInput registers a landlord together with their organization.
type SignupInput struct {
	OrganizationName string
	ContactPhone     *string
	FullName         string
	Email            string
	Password         string
}

// AuthService handles signup, login and admin bootstrap
type AuthService interface {
	Signup(ctx context.Context, input SignupInput) (*models.TokenResponse, error)
	Login(ctx context.Context, email, password string) (*models.TokenResponse, error)
	// EnsureAdmin creates the platform admin account if it does not exist yet.
	EnsureAdmin(ctx context.Context, email, password string) error
}

type authService struct {
	store  repositories.Store
	orgs   OrganizationAdminService
	tokens *TokenIssuer
	cache  caching.CacheService
	logger zerolog.Logger
	now    Clock
}

func NewAuthService(store repositories.Store, orgs OrganizationAdminService, tokens *TokenIssuer, cache caching.CacheService, logger zerolog.Logger, clock Clock) AuthService {
	if clock == nil {
		clock = systemClock
	}
	return &authService{
		store:  store,
		orgs:   orgs,
		tokens: tokens,
		cache:  cache,
		logger: logger.With().Str("component", "auth").Logger(),
		now:    clock,
	}
}

func (s *authService) Signup(ctx context.Context, input SignupInput) (*models.TokenResponse, error) {
	_, owner, err := s.orgs.CreateOrganization(ctx, CreateOrganizationInput{
		Name:          input.OrganizationName,
		ContactEmail:  input.Email,
		ContactPhone:  input.ContactPhone,
		OwnerName:     input.FullName,
		OwnerEmail:    input.Email,
		OwnerPassword: input.Password,
	}, nil)
	if err != nil {
		return nil, err
	}
	return s.tokens.Issue(owner, nil, 0)
}

func (s *authService) Login(ctx context.Context, email, password string) (*models.TokenResponse, error) {
	email = normalizeEmail(email)
	limiterKey := "login:" + email

	if s.cache != nil {
		limited, err := s.cache.IsRateLimited(ctx, limiterKey, loginAttemptLimit, loginAttemptWindow)
		if err != nil {
			s.logger.Warn().Err(err).Msg("login rate limiter unavailable")
		} else if limited {
			return nil, ErrTooManyAttempts
		}
	}

	user, err := s.store.Repos().Users.GetByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if s.cache != nil {
		if err := s.cache.ResetRateLimit(ctx, limiterKey); err != nil {
			s.logger.Warn().Err(err).Msg("login rate limiter reset failed")
		}
	}
	return s.tokens.Issue(user, nil, 0)
}

func (s *authService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	users := s.store.Repos().Users

	if _, err := users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return err
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}
	now := s.now()
	err = users.Create(ctx, &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FullName:     "Platform Admin",
		Role:         models.RoleAdmin,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, repositories.ErrEmailTaken) {
		return nil
	}
	if err == nil {
		s.logger.Info().Str("email", email).Msg("bootstrap admin created")
	}
	return err
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
