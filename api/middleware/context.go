package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/phoneshop-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
	ctxName   contextKey = "user_name"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

func NameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxName).(string); ok {
		return v
	}
	return ""
}

// UserUUIDFromContext parses the authenticated user id; ok is false for
// anonymous callers.
func UserUUIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// RoleEnumFromContext returns the caller's role, empty for anonymous callers.
func RoleEnumFromContext(ctx context.Context) enums.UserRole {
	return enums.UserRole(RoleFromContext(ctx))
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithRole injects the caller role into the context.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}
