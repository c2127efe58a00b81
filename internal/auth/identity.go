package auth

import "context"

// Identity is the caller resolved for a single request. It is built by the
// authentication middleware and never shared between requests.
type Identity struct {
	AccountID   int64
	Username    string
	Role        Role
	ProfileID   *int64
	Authorities Authorities
}

// NewIdentity derives the authority set from role.
func NewIdentity(accountID int64, username string, role Role, profileID *int64) *Identity {
	return &Identity{
		AccountID:   accountID,
		Username:    username,
		Role:        role,
		ProfileID:   profileID,
		Authorities: AuthoritiesOf(role),
	}
}

// HasRole reports whether the identity carries role's authority label.
func (i *Identity) HasRole(role Role) bool {
	if i == nil {
		return false
	}
	return i.Authorities.HasRole(role)
}

type identityContextKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFrom returns the identity attached to ctx, if any.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	id, ok := ctx.Value(identityContextKey{}).(*Identity)
	if !ok || id == nil {
		return nil, false
	}
	return id, true
}
