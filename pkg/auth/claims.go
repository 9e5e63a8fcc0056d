package auth

import (
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	Name   string
	JTI    string
}

// AccessTokenClaims represents the typed JWT presented by storefront clients.
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	Name   string         `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token carries the administrative role.
func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == enums.UserRoleAdmin
}
