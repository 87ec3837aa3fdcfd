package auth

import (
	"context"

	"alvacus/internal/models"
)

// Principal is the authenticated identity attached to a request. It is built
// from the stored user, never from token contents alone.
type Principal struct {
	UserID  uint
	Role    string
	Profile UserInfo
}

// NewPrincipal resolves the principal for u.
func NewPrincipal(u *models.User) *Principal {
	return &Principal{
		UserID:  u.ID,
		Role:    u.Role,
		Profile: SnapshotOf(u),
	}
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == models.RoleAdmin
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored in ctx, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}
