package auth

import "context"

// SignOuter is implemented by providers that can revoke a session.
type SignOuter interface {
	SignOut(ctx context.Context) error
}

var _ SignOuter = (*JWTProvider)(nil)
