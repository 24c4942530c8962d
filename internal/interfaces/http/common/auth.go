package common

import "context"

type contextKey string

const adminContextKey contextKey = "adminUser"

// AdminUser represents the principal taken from an admin JWT.
type AdminUser struct {
	ID    string   `json:"id"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// ContextWithAdmin stores the authenticated admin into context.
func ContextWithAdmin(ctx context.Context, user AdminUser) context.Context {
	return context.WithValue(ctx, adminContextKey, user)
}

// AdminFromContext extracts the authenticated admin from context.
func AdminFromContext(ctx context.Context) (AdminUser, bool) {
	user, ok := ctx.Value(adminContextKey).(AdminUser)
	return user, ok
}
