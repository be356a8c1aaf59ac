package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderflow/pkg/enums"
)

type callerKey struct{}

// Caller is the authenticated user a request acts for. Auth puts it on the
// context; controllers read it back with CallerFrom.
type Caller struct {
	UserID uuid.UUID
	Role   enums.ActorRole
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok && c.UserID != uuid.Nil
}

// callerKeyPart is the caller's id for rate and replay keys, empty when the
// request is anonymous.
func callerKeyPart(ctx context.Context) string {
	if c, ok := CallerFrom(ctx); ok {
		return c.UserID.String()
	}
	return ""
}
