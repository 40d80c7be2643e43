package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
)

// Token types carried in the "type" claim
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// JWTService defines operations for managing JWT authentication tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for the user and role.
	GenerateToken(ctx context.Context, userID uuid.UUID, role domain.UserRole) (string, error)

	// ValidateToken validates an access token and returns its claims.
	// Refresh tokens are rejected with ErrWrongTokenType.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)

	// GenerateRefreshToken creates a signed refresh token with a longer lifetime.
	GenerateRefreshToken(ctx context.Context, userID uuid.UUID, role domain.UserRole) (string, error)

	// ValidateRefreshToken validates a refresh token and returns its claims.
	ValidateRefreshToken(ctx context.Context, tokenString string) (*Claims, error)

	// AccessTokenLifetime reports how long generated access tokens stay valid.
	AccessTokenLifetime() time.Duration
}

// Claims represents the application view of a validated token.
type Claims struct {
	UserID    uuid.UUID       `json:"uid,omitempty"`
	Role      domain.UserRole `json:"role,omitempty"`
	TokenType string          `json:"type,omitempty"`
	Subject   string          `json:"sub,omitempty"`
	IssuedAt  time.Time       `json:"iat,omitempty"`
	ExpiresAt time.Time       `json:"exp,omitempty"`
	ID        string          `json:"jti,omitempty"`
}

// IsAdmin reports whether the token was issued to an ADMIN.
func (c *Claims) IsAdmin() bool {
	return c.Role == domain.UserRoleAdmin
}
