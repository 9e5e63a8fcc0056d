package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/phoneshop-backend/pkg/config"
	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtSigningMethod = jwt.SigningMethodHS256

var (
	ErrMissingUser = errors.New("token carries no user identity")
	ErrInvalidRole = errors.New("token carries an unknown role")
)

// MintAccessToken issues a token shaped like the identity service's. Only
// tests and dev tooling call it.
func MintAccessToken(cfg config.JWTConfig, now time.Time, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", fmt.Errorf("jwt secret is required")
	case cfg.Issuer == "":
		return "", fmt.Errorf("jwt issuer is required")
	case cfg.ExpirationMinutes <= 0:
		return "", fmt.Errorf("jwt expiration minutes must be positive")
	case !payload.Role.IsValid():
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, payload.Role)
	}

	jti := strings.TrimSpace(payload.JTI)
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := AccessTokenClaims{
		UserID: payload.UserID,
		Role:   payload.Role,
		Name:   payload.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   payload.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.ExpirationMinutes) * time.Minute)),
			ID:        jti,
		},
	}

	signed, err := jwt.NewWithClaims(jwtSigningMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies an identity service token. The user id comes from
// the user_id claim, falling back to sub. Roles are matched case-insensitively
// and an absent role means customer.
func ParseAccessToken(cfg config.JWTConfig, tokenString string) (*AccessTokenClaims, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}

	claims := &AccessTokenClaims{}
	if _, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, opts...); err != nil {
		return nil, err
	}

	if claims.UserID == uuid.Nil {
		sub, err := uuid.Parse(strings.TrimSpace(claims.Subject))
		if err != nil || sub == uuid.Nil {
			return nil, ErrMissingUser
		}
		claims.UserID = sub
	}

	role, err := normalizeRole(claims.Role)
	if err != nil {
		return nil, err
	}
	claims.Role = role
	return claims, nil
}

func normalizeRole(raw enums.UserRole) (enums.UserRole, error) {
	value := strings.ToLower(strings.TrimSpace(string(raw)))
	if value == "" {
		return enums.UserRoleCustomer, nil
	}
	role, err := enums.ParseUserRole(value)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
	return role, nil
}
