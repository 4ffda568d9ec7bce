package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/emekandu/kasuwa-backend/pkg/enums"
	pkgerrors "github.com/emekandu/kasuwa-backend/pkg/errors"
	"github.com/emekandu/kasuwa-backend/pkg/types"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
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

// ActorFromContext assembles the authenticated caller from context values.
func ActorFromContext(ctx context.Context) (types.Actor, error) {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return types.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return types.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity")
	}
	role, err := enums.ParseMemberRole(RoleFromContext(ctx))
	if err != nil {
		return types.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor role missing")
	}
	return types.Actor{UserID: userID, Role: role}, nil
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// WithRole injects the actor role into the context.
func WithRole(ctx context.Context, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRole, role)
}
