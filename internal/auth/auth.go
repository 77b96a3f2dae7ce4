package auth

import (
	"context"

	"github.com/frahmantamala/attendance-management/internal"
	"github.com/golang-jwt/jwt/v5"
)

// User is the authenticated caller as carried by the bearer token. Session
// issuance lives outside this service.
type User struct {
	ID          int64    `json:"id"`
	Email       string   `json:"email"`
	Permissions []string `json:"permissions,omitempty"`
}

func (u *User) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

func (u *User) HasAnyPermission(permissions []string) bool {
	for _, required := range permissions {
		if u.HasPermission(required) {
			return true
		}
	}
	return false
}

// Claims represents JWT token claims
type Claims struct {
	UserID      int64    `json:"user_id"`
	Email       string   `json:"email,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) User() *User {
	return &User{ID: c.UserID, Email: c.Email, Permissions: c.Permissions}
}

// ContextWithUser stores the caller and its id for handlers and services.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	ctx = context.WithValue(ctx, internal.ContextUserKey, u)
	return internal.ContextWithUserID(ctx, u.ID)
}

func UserFromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(internal.ContextUserKey).(*User)
	return u, ok && u != nil
}
